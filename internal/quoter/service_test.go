package quoter

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	zcommon "github.com/zcurve-labs/quote-engine/internal/common"
	"github.com/zcurve-labs/quote-engine/internal/config"
	"github.com/zcurve-labs/quote-engine/internal/domain"
	"github.com/zcurve-labs/quote-engine/internal/services/market"
	"github.com/zcurve-labs/quote-engine/internal/services/pricing"
)

var (
	qWETH   = common.HexToAddress("0x000000000000000000000000000000000000Ee11")
	qTokenA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	qTokenB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	qCoin   = common.HexToAddress("0x00000000000000000000000000000000000C0111")
)

func mustQBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad integer literal %q", s)
	}
	return v
}

func qe18(n int64) *big.Int {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	return unit.Mul(unit, big.NewInt(n))
}

func testEngineConfig() *config.EngineConfig {
	return &config.EngineConfig{
		CacheCapacity:    50,
		CacheTTLMillis:   2000,
		HopMarginBps:     200,
		ImpactEpsilonBps: 100,
		WETH:             qWETH,
	}
}

// testRegistry holds the canonical two-pool market: A/ETH at 1000:10
// and ETH/B at 10:2000, plus one launch-shaped sale at netSold 100.
func testRegistry(t *testing.T, srcFee, dstFee uint16) *market.MarketRegistry {
	t.Helper()
	reg := market.NewMarketRegistry(qWETH)

	pools := []*domain.Pool{
		{
			Address:  common.HexToAddress("0x0000000000000000000000000000000000000101"),
			Token0:   qTokenA,
			Token1:   qWETH,
			Reserve0: qe18(1000),
			Reserve1: qe18(10),
			FeeBps:   srcFee,
			Active:   true,
			Ready:    true,
		},
		{
			Address:  common.HexToAddress("0x0000000000000000000000000000000000000102"),
			Token0:   qWETH,
			Token1:   qTokenB,
			Reserve0: qe18(10),
			Reserve1: qe18(2000),
			FeeBps:   dstFee,
			Active:   true,
			Ready:    true,
		},
	}
	for _, p := range pools {
		if err := reg.UpsertPool(p); err != nil {
			t.Fatalf("UpsertPool(%s): %v", p.Address.Hex(), err)
		}
	}

	sale := &domain.SaleParameters{
		Coin:      qCoin,
		SaleCap:   qe18(1_000_000),
		Divisor:   big.NewInt(1000),
		QuadCap:   qe18(500_000),
		NetSold:   qe18(100),
		UnitScale: qe18(1),
	}
	if err := reg.UpsertSale(sale); err != nil {
		t.Fatalf("UpsertSale: %v", err)
	}
	return reg
}

func newTestService(t *testing.T, reg *market.MarketRegistry) *Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{Engine: testEngineConfig(), Registry: reg})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestNewServiceValidates(t *testing.T) {
	if _, err := NewService(ServiceConfig{Registry: market.NewMarketRegistry(qWETH)}); err == nil {
		t.Error("nil engine config accepted")
	}
	if _, err := NewService(ServiceConfig{Engine: testEngineConfig()}); err == nil {
		t.Error("nil registry accepted")
	}
}

func TestSwapQuoteDirectExactIn(t *testing.T) {
	svc := newTestService(t, testRegistry(t, 0, 0))

	res, err := svc.SwapQuote(&SwapQuoteRequest{
		TokenIn:     qTokenA,
		TokenOut:    qWETH,
		Amount:      qe18(10),
		Mode:        domain.SwapModeExactIn,
		SlippageBps: 100,
	})
	if err != nil {
		t.Fatalf("SwapQuote: %v", err)
	}

	if want := mustQBig(t, "99009900990099009"); res.Result.AmountOut.Cmp(want) != 0 {
		t.Errorf("AmountOut = %s, want %s", res.Result.AmountOut, want)
	}
	if len(res.Result.Hops) != 1 {
		t.Fatalf("hops = %d, want 1", len(res.Result.Hops))
	}
	if res.Result.IntermediateETH != nil {
		t.Errorf("direct quote reported intermediate ETH %s", res.Result.IntermediateETH)
	}
	if want := mustQBig(t, "98019801980198018"); res.OtherAmountThreshold.Cmp(want) != 0 {
		t.Errorf("OtherAmountThreshold = %s, want %s", res.OtherAmountThreshold, want)
	}
	if res.FeeBps != 0 {
		t.Errorf("FeeBps = %d, want 0", res.FeeBps)
	}
	if res.Impact == nil {
		t.Fatal("Impact = nil, want estimate")
	}
	if res.Impact.Percent <= 0 {
		t.Errorf("Impact.Percent = %f, want > 0", res.Impact.Percent)
	}
	if res.Impact.Severity != "none" {
		t.Errorf("Impact.Severity = %q, want none", res.Impact.Severity)
	}
}

func TestSwapQuoteDirectExactOut(t *testing.T) {
	svc := newTestService(t, testRegistry(t, 30, 0))

	want := mustQBig(t, "99009900990099009")
	back, err := svc.SwapQuote(&SwapQuoteRequest{
		TokenIn:     qTokenA,
		TokenOut:    qWETH,
		Amount:      want,
		Mode:        domain.SwapModeExactOut,
		SlippageBps: 50,
	})
	if err != nil {
		t.Fatalf("SwapQuote exact-out: %v", err)
	}
	if back.Result.AmountOut.Cmp(want) != 0 {
		t.Errorf("AmountOut = %s, want %s", back.Result.AmountOut, want)
	}
	if back.Result.AmountIn.Sign() <= 0 {
		t.Fatalf("AmountIn = %s, want positive", back.Result.AmountIn)
	}
	if got, want := back.OtherAmountThreshold, pricing.MaxAmountWithSlippage(back.Result.AmountIn, 50); got.Cmp(want) != 0 {
		t.Errorf("OtherAmountThreshold = %s, want %s", got, want)
	}

	// Paying the quoted input must clear the requested output.
	fwd, err := svc.SwapQuote(&SwapQuoteRequest{
		TokenIn:  qTokenA,
		TokenOut: qWETH,
		Amount:   back.Result.AmountIn,
		Mode:     domain.SwapModeExactIn,
	})
	if err != nil {
		t.Fatalf("SwapQuote replay: %v", err)
	}
	if fwd.Result.AmountOut.Cmp(want) < 0 {
		t.Errorf("replayed output %s below requested %s", fwd.Result.AmountOut, want)
	}
}

// Hopped quotes must be exactly the hop estimator's composition over
// the registry's deepest ETH pairs.
func TestSwapQuoteHopComposes(t *testing.T) {
	reg := testRegistry(t, 30, 25)
	svc := newTestService(t, reg)

	res, err := svc.SwapQuote(&SwapQuoteRequest{
		TokenIn:  qTokenA,
		TokenOut: qTokenB,
		Amount:   qe18(1),
		Mode:     domain.SwapModeExactIn,
	})
	if err != nil {
		t.Fatalf("SwapQuote hop: %v", err)
	}

	src, err := reg.ETHPoolFor(qTokenA)
	if err != nil {
		t.Fatalf("ETHPoolFor(A): %v", err)
	}
	dst, err := reg.ETHPoolFor(qTokenB)
	if err != nil {
		t.Fatalf("ETHPoolFor(B): %v", err)
	}
	est := pricing.NewHopEstimator(pricing.NewPairQuoter(nil), qWETH, 200)
	want, err := est.EstimateExactIn(src, dst, qTokenA, qTokenB, qe18(1))
	if err != nil {
		t.Fatalf("EstimateExactIn: %v", err)
	}

	if res.Result.AmountOut.Cmp(want.AmountOut) != 0 {
		t.Errorf("AmountOut = %s, want %s", res.Result.AmountOut, want.AmountOut)
	}
	if res.Result.IntermediateETH.Cmp(want.IntermediateETH) != 0 {
		t.Errorf("IntermediateETH = %s, want %s", res.Result.IntermediateETH, want.IntermediateETH)
	}
	if len(res.Result.Hops) != 2 {
		t.Fatalf("hops = %d, want 2", len(res.Result.Hops))
	}
	if res.Result.MarginBps != 200 {
		t.Errorf("MarginBps = %d, want 200", res.Result.MarginBps)
	}
	if res.FeeBps != 55 {
		t.Errorf("FeeBps = %d, want 55", res.FeeBps)
	}
}

func TestSwapQuoteHopExactOut(t *testing.T) {
	reg := testRegistry(t, 0, 0)
	svc := newTestService(t, reg)

	res, err := svc.SwapQuote(&SwapQuoteRequest{
		TokenIn:  qTokenA,
		TokenOut: qTokenB,
		Amount:   qe18(1),
		Mode:     domain.SwapModeExactOut,
	})
	if err != nil {
		t.Fatalf("SwapQuote hop exact-out: %v", err)
	}

	// Grossed up by the default 200 bps margin.
	if want := mustQBig(t, "5104593112882973"); res.Result.IntermediateETH.Cmp(want) != 0 {
		t.Errorf("IntermediateETH = %s, want %s", res.Result.IntermediateETH, want)
	}
	if res.Result.AmountOut.Cmp(qe18(1)) != 0 {
		t.Errorf("AmountOut = %s, want 1e18", res.Result.AmountOut)
	}
	if res.Result.AmountIn.Sign() <= 0 {
		t.Errorf("AmountIn = %s, want positive", res.Result.AmountIn)
	}
}

func TestSwapQuoteMarginOverride(t *testing.T) {
	svc := newTestService(t, testRegistry(t, 0, 0))

	res, err := svc.SwapQuote(&SwapQuoteRequest{
		TokenIn:   qTokenA,
		TokenOut:  qTokenB,
		Amount:    qe18(1),
		Mode:      domain.SwapModeExactIn,
		MarginBps: 500,
	})
	if err != nil {
		t.Fatalf("SwapQuote: %v", err)
	}
	if want := mustQBig(t, "9490509490509490"); res.Result.IntermediateETH.Cmp(want) != 0 {
		t.Errorf("IntermediateETH = %s, want %s", res.Result.IntermediateETH, want)
	}
	if res.Result.MarginBps != 500 {
		t.Errorf("MarginBps = %d, want 500", res.Result.MarginBps)
	}
}

// The native-ETH pseudo-address quotes exactly like WETH.
func TestSwapQuoteNormalizesNativeETH(t *testing.T) {
	svc := newTestService(t, testRegistry(t, 0, 0))

	native, err := svc.SwapQuote(&SwapQuoteRequest{
		TokenIn:  zcommon.NativeETH,
		TokenOut: qTokenA,
		Amount:   qe18(1),
		Mode:     domain.SwapModeExactIn,
	})
	if err != nil {
		t.Fatalf("SwapQuote native: %v", err)
	}
	wrapped, err := svc.SwapQuote(&SwapQuoteRequest{
		TokenIn:  qWETH,
		TokenOut: qTokenA,
		Amount:   qe18(1),
		Mode:     domain.SwapModeExactIn,
	})
	if err != nil {
		t.Fatalf("SwapQuote wrapped: %v", err)
	}
	if native.Result.AmountOut.Cmp(wrapped.Result.AmountOut) != 0 {
		t.Errorf("native out %s != wrapped out %s", native.Result.AmountOut, wrapped.Result.AmountOut)
	}
	if native.Result.TokenIn != qWETH {
		t.Errorf("TokenIn = %s, want WETH", native.Result.TokenIn.Hex())
	}
}

func TestSwapQuoteRejections(t *testing.T) {
	svc := newTestService(t, testRegistry(t, 0, 0))
	unknown := common.HexToAddress("0x00000000000000000000000000000000000000cc")

	tests := []struct {
		name string
		req  *SwapQuoteRequest
		want error
	}{
		{
			"same token",
			&SwapQuoteRequest{TokenIn: qTokenA, TokenOut: qTokenA, Amount: qe18(1), Mode: domain.SwapModeExactIn},
			ErrSameToken,
		},
		{
			"native vs wrapped",
			&SwapQuoteRequest{TokenIn: zcommon.NativeETH, TokenOut: qWETH, Amount: qe18(1), Mode: domain.SwapModeExactIn},
			ErrSameToken,
		},
		{
			"unknown token",
			&SwapQuoteRequest{TokenIn: unknown, TokenOut: qTokenA, Amount: qe18(1), Mode: domain.SwapModeExactIn},
			ErrNoRoute,
		},
		{
			"weth to unknown",
			&SwapQuoteRequest{TokenIn: qWETH, TokenOut: unknown, Amount: qe18(1), Mode: domain.SwapModeExactIn},
			ErrNoRoute,
		},
	}
	for _, tt := range tests {
		if _, err := svc.SwapQuote(tt.req); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}

	if _, err := svc.SwapQuote(&SwapQuoteRequest{TokenIn: qTokenA, TokenOut: qWETH, Amount: qe18(1), Mode: "Bogus"}); err == nil {
		t.Error("bogus swap mode accepted")
	}
}

func TestCurveQuoteDispatch(t *testing.T) {
	svc := newTestService(t, testRegistry(t, 0, 0))

	// Golden values on the launch shape at netSold 100: buying the next
	// 10 units costs cost(110)-cost(100), selling the last 10 refunds
	// cost(100)-cost(90).
	buyEth := "18214166666666666666"
	sellEth := "14897500000000000000"

	tests := []struct {
		name      string
		side      domain.TradeSide
		mode      domain.SwapMode
		amount    *big.Int
		wantToken *big.Int
		wantEth   *big.Int
	}{
		{"buy exact tokens", domain.SideBuy, domain.SwapModeExactOut, qe18(10), qe18(10), mustQBig(t, buyEth)},
		{"buy exact eth", domain.SideBuy, domain.SwapModeExactIn, mustQBig(t, buyEth), qe18(10), mustQBig(t, buyEth)},
		{"sell exact tokens", domain.SideSell, domain.SwapModeExactIn, qe18(10), qe18(10), mustQBig(t, sellEth)},
		{"sell exact eth", domain.SideSell, domain.SwapModeExactOut, mustQBig(t, sellEth), qe18(10), mustQBig(t, sellEth)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.CurveQuote(&CurveQuoteRequest{
				Coin:   qCoin,
				Side:   tt.side,
				Mode:   tt.mode,
				Amount: tt.amount,
			})
			if err != nil {
				t.Fatalf("CurveQuote: %v", err)
			}
			if res.Quote.TokenAmount.Cmp(tt.wantToken) != 0 {
				t.Errorf("TokenAmount = %s, want %s", res.Quote.TokenAmount, tt.wantToken)
			}
			if res.Quote.EthAmount.Cmp(tt.wantEth) != 0 {
				t.Errorf("EthAmount = %s, want %s", res.Quote.EthAmount, tt.wantEth)
			}
			if res.Quote.Side != tt.side {
				t.Errorf("Side = %v, want %v", res.Quote.Side, tt.side)
			}
			if want := qe18(999_900); res.Remaining.Cmp(want) != 0 {
				t.Errorf("Remaining = %s, want %s", res.Remaining, want)
			}
		})
	}
}

func TestCurveQuoteBuyHasImpact(t *testing.T) {
	svc := newTestService(t, testRegistry(t, 0, 0))

	res, err := svc.CurveQuote(&CurveQuoteRequest{
		Coin:   qCoin,
		Side:   domain.SideBuy,
		Mode:   domain.SwapModeExactOut,
		Amount: qe18(1000),
	})
	if err != nil {
		t.Fatalf("CurveQuote: %v", err)
	}
	if res.Impact == nil {
		t.Fatal("Impact = nil, want estimate")
	}
	if res.Impact.Percent <= 0 {
		t.Errorf("Impact.Percent = %f, want > 0 on a rising curve", res.Impact.Percent)
	}
}

func TestCurveQuoteUnknownSale(t *testing.T) {
	svc := newTestService(t, testRegistry(t, 0, 0))

	_, err := svc.CurveQuote(&CurveQuoteRequest{
		Coin:   common.HexToAddress("0x00000000000000000000000000000000000000dd"),
		Side:   domain.SideBuy,
		Mode:   domain.SwapModeExactIn,
		Amount: qe18(1),
	})
	if !errors.Is(err, market.ErrSaleNotFound) {
		t.Errorf("err = %v, want ErrSaleNotFound", err)
	}
}

func TestCurveChart(t *testing.T) {
	svc := newTestService(t, testRegistry(t, 0, 0))

	points, err := svc.CurveChart(qCoin, 10)
	if err != nil {
		t.Fatalf("CurveChart: %v", err)
	}
	if len(points) != 10 {
		t.Fatalf("points = %d, want 10", len(points))
	}
	if points[0].TokensSold != "0" {
		t.Errorf("first point sold = %s, want 0", points[0].TokensSold)
	}
	if points[len(points)-1].TokensSold != "1000000" {
		t.Errorf("last point sold = %s, want 1000000", points[len(points)-1].TokensSold)
	}

	if _, err := svc.CurveChart(common.HexToAddress("0x00000000000000000000000000000000000000dd"), 10); !errors.Is(err, market.ErrSaleNotFound) {
		t.Errorf("unknown coin err = %v, want ErrSaleNotFound", err)
	}
}

type fakeStore struct {
	pools []*domain.Pool
	sales []*domain.SaleParameters

	savedPools [][]*domain.Pool
	savedSales [][]*domain.SaleParameters
	closed     bool
}

func (s *fakeStore) LoadAllPools() ([]*domain.Pool, error) { return s.pools, nil }

func (s *fakeStore) LoadAllSales() ([]*domain.SaleParameters, error) { return s.sales, nil }

func (s *fakeStore) SavePoolBatch(b []*domain.Pool) error {
	s.savedPools = append(s.savedPools, b)
	return nil
}

func (s *fakeStore) SaveSaleBatch(b []*domain.SaleParameters) error {
	s.savedSales = append(s.savedSales, b)
	return nil
}

func (s *fakeStore) Close() error {
	s.closed = true
	return nil
}

func TestServiceLifecyclePersists(t *testing.T) {
	store := &fakeStore{
		pools: []*domain.Pool{{
			Address:  common.HexToAddress("0x0000000000000000000000000000000000000101"),
			Token0:   qTokenA,
			Token1:   qWETH,
			Reserve0: qe18(1000),
			Reserve1: qe18(10),
			Active:   true,
			Ready:    true,
		}},
		sales: []*domain.SaleParameters{{
			Coin:      qCoin,
			SaleCap:   qe18(1_000_000),
			Divisor:   big.NewInt(1000),
			QuadCap:   qe18(500_000),
			NetSold:   new(big.Int),
			UnitScale: qe18(1),
		}},
	}

	reg := market.NewMarketRegistry(qWETH)
	svc, err := NewService(ServiceConfig{Engine: testEngineConfig(), Registry: reg, Store: store})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := svc.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if reg.PoolCount() != 1 || reg.SaleCount() != 1 {
		t.Fatalf("loaded (%d pools, %d sales), want (1, 1)", reg.PoolCount(), reg.SaleCount())
	}

	// Dirty the registry so the shutdown flush has something to write.
	if err := reg.UpdateNetSold(qCoin, qe18(5), 0); err != nil {
		t.Fatalf("UpdateNetSold: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if len(store.savedPools) == 0 || len(store.savedSales) == 0 {
		t.Fatal("shutdown flush wrote nothing")
	}
	lastSales := store.savedSales[len(store.savedSales)-1]
	if len(lastSales) != 1 || lastSales[0].NetSold.Cmp(qe18(5)) != 0 {
		t.Errorf("flushed sale netSold = %v, want 5e18", lastSales)
	}
	if !store.closed {
		t.Error("store left open after Stop")
	}
}

func TestServiceSeedsEmptyStore(t *testing.T) {
	seeded := false
	seeds := func(path string) ([]*domain.Pool, []*domain.SaleParameters, error) {
		seeded = true
		if path != "seeds.json" {
			t.Errorf("seed path = %q, want seeds.json", path)
		}
		return []*domain.Pool{{
				Address:  common.HexToAddress("0x0000000000000000000000000000000000000101"),
				Token0:   qTokenA,
				Token1:   qWETH,
				Reserve0: qe18(1000),
				Reserve1: qe18(10),
				Active:   true,
				Ready:    true,
			}}, []*domain.SaleParameters{{
				Coin:      qCoin,
				SaleCap:   qe18(1_000_000),
				Divisor:   big.NewInt(1000),
				QuadCap:   qe18(500_000),
				UnitScale: qe18(1),
			}}, nil
	}

	reg := market.NewMarketRegistry(qWETH)
	svc, err := NewService(ServiceConfig{
		Engine:    testEngineConfig(),
		Registry:  reg,
		Store:     &fakeStore{},
		Seeds:     seeds,
		SeedsPath: "seeds.json",
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := svc.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Stop()

	if !seeded {
		t.Fatal("seed loader never consulted for an empty store")
	}
	if reg.PoolCount() != 1 || reg.SaleCount() != 1 {
		t.Errorf("seeded (%d pools, %d sales), want (1, 1)", reg.PoolCount(), reg.SaleCount())
	}
}

func TestServiceSkipsSeedsWhenStoreLoaded(t *testing.T) {
	store := &fakeStore{
		pools: []*domain.Pool{{
			Address:  common.HexToAddress("0x0000000000000000000000000000000000000101"),
			Token0:   qTokenA,
			Token1:   qWETH,
			Reserve0: qe18(1000),
			Reserve1: qe18(10),
		}},
	}
	seeds := func(string) ([]*domain.Pool, []*domain.SaleParameters, error) {
		t.Fatal("seed loader consulted despite persisted snapshots")
		return nil, nil, nil
	}

	svc, err := NewService(ServiceConfig{
		Engine:    testEngineConfig(),
		Registry:  market.NewMarketRegistry(qWETH),
		Store:     store,
		Seeds:     seeds,
		SeedsPath: "seeds.json",
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := svc.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	svc.Stop()
}

func TestServiceStats(t *testing.T) {
	svc := newTestService(t, testRegistry(t, 0, 0))

	stats := svc.Stats()
	if stats.PoolCount != 2 || stats.ReadyPoolCount != 2 || stats.SaleCount != 1 {
		t.Errorf("Stats = %+v, want 2 pools, 2 ready, 1 sale", stats)
	}
	if stats.UpdateCount != 3 {
		t.Errorf("UpdateCount = %d, want 3", stats.UpdateCount)
	}
}
