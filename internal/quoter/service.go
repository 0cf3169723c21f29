// Package quoter composes the snapshot registry, the pricing engine and
// snapshot persistence into the service surface the HTTP layer exposes.
// The pricing package stays pure; everything stateful (snapshots, cache
// lifetime, persistence timing) is owned here.
package quoter

import (
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	zcommon "github.com/zcurve-labs/quote-engine/internal/common"
	"github.com/zcurve-labs/quote-engine/internal/config"
	"github.com/zcurve-labs/quote-engine/internal/domain"
	"github.com/zcurve-labs/quote-engine/internal/metrics"
	"github.com/zcurve-labs/quote-engine/internal/services"
	"github.com/zcurve-labs/quote-engine/internal/services/market"
	"github.com/zcurve-labs/quote-engine/internal/services/pricing"
)

const ServiceName = "quoter-service"

// DefaultPersistInterval paces background snapshot flushes.
const DefaultPersistInterval = 30 * time.Second

var (
	ErrSameToken = errors.New("input and output tokens are identical")
	ErrNoRoute   = errors.New("no route between tokens")
)

// SnapshotStore is the persistence contract the service flushes to and
// boots from. A nil store disables persistence entirely.
type SnapshotStore interface {
	LoadAllPools() ([]*domain.Pool, error)
	LoadAllSales() ([]*domain.SaleParameters, error)
	SavePoolBatch(pools []*domain.Pool) error
	SaveSaleBatch(sales []*domain.SaleParameters) error
	Close() error
}

// SeedLoader hydrates an empty registry on first boot. Wired to the
// persistence package's JSON seed reader; nil disables seeding.
type SeedLoader func(path string) ([]*domain.Pool, []*domain.SaleParameters, error)

// ServiceConfig carries the explicit wiring NewService needs.
type ServiceConfig struct {
	Engine   *config.EngineConfig
	Registry *market.MarketRegistry
	Store    SnapshotStore
	Seeds    SeedLoader
	// SeedsPath is consulted only when the store held nothing.
	SeedsPath       string
	PersistInterval time.Duration
}

// Service answers quote requests against the current snapshots. All
// methods are safe for concurrent use: snapshots are cloned out of the
// registry and the quote cache carries its own lock.
type Service struct {
	registry *market.MarketRegistry
	quoter   *pricing.PairQuoter
	hops     *pricing.HopEstimator
	store    SnapshotStore
	seeds    SeedLoader
	logger   *services.ServiceLogger

	weth            common.Address
	epsilonBps      uint16
	seedsPath       string
	persistInterval time.Duration

	lastPersisted atomic.Uint64
	stop          chan struct{}
	done          chan struct{}
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Engine == nil {
		return nil, errors.New("quoter: nil engine config")
	}
	if cfg.Registry == nil {
		return nil, errors.New("quoter: nil registry")
	}
	if cfg.PersistInterval <= 0 {
		cfg.PersistInterval = DefaultPersistInterval
	}

	cache := pricing.NewQuoteCache(cfg.Engine.CacheCapacity, time.Duration(cfg.Engine.CacheTTLMillis)*time.Millisecond)
	pairQuoter := pricing.NewPairQuoter(cache)

	svc := &Service{
		registry:        cfg.Registry,
		quoter:          pairQuoter,
		hops:            pricing.NewHopEstimator(pairQuoter, cfg.Engine.WETH, uint16(cfg.Engine.HopMarginBps)),
		store:           cfg.Store,
		seeds:           cfg.Seeds,
		weth:            cfg.Engine.WETH,
		epsilonBps:      uint16(cfg.Engine.ImpactEpsilonBps),
		seedsPath:       cfg.SeedsPath,
		persistInterval: cfg.PersistInterval,
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
	svc.logger = services.NewServiceLogger(svc)
	return svc, nil
}

func (svc *Service) ID() string {
	return ServiceName
}

// Registry exposes the snapshot registry for the admin surface.
func (svc *Service) Registry() *market.MarketRegistry {
	return svc.registry
}

// WETH returns the hop token every tracked pool pairs against.
func (svc *Service) WETH() common.Address {
	return svc.weth
}

// HopMarginBps returns the default inter-hop haircut.
func (svc *Service) HopMarginBps() uint16 {
	return svc.hops.MarginBps()
}

// Start hydrates the registry from the store (or the seed file when the
// store held nothing) and launches the persistence and stats loops.
func (svc *Service) Start() error {
	loaded := svc.loadSnapshots()
	if loaded == 0 && svc.seedsPath != "" && svc.seeds != nil {
		if err := svc.loadSeeds(); err != nil {
			svc.logger.Error().Err(err).Str("path", svc.seedsPath).Msg("seed load failed")
		}
	}
	svc.lastPersisted.Store(svc.registry.Updates())

	go svc.backgroundLoop()
	return nil
}

// Stop flushes snapshots, stops the background loop and closes the
// store.
func (svc *Service) Stop() error {
	close(svc.stop)
	<-svc.done

	svc.persistSnapshots()
	if svc.store != nil {
		if err := svc.store.Close(); err != nil {
			svc.logger.Error().Err(err).Msg("failed to close snapshot store")
			return err
		}
	}
	svc.logger.Info().Msg("quoter service stopped")
	return nil
}

func (svc *Service) loadSnapshots() int {
	if svc.store == nil {
		return 0
	}
	start := time.Now()
	loaded := 0

	pools, err := svc.store.LoadAllPools()
	if err != nil {
		svc.logger.Error().Err(err).Msg("failed to load pool snapshots")
	}
	for _, pool := range pools {
		if err := svc.registry.UpsertPool(pool); err != nil {
			svc.logger.Warn().Err(err).Str("pool", pool.Address.Hex()).Msg("skipping persisted pool")
			continue
		}
		loaded++
	}

	sales, err := svc.store.LoadAllSales()
	if err != nil {
		svc.logger.Error().Err(err).Msg("failed to load sale snapshots")
	}
	for _, sale := range sales {
		if err := svc.registry.UpsertSale(sale); err != nil {
			svc.logger.Warn().Err(err).Str("coin", sale.Coin.Hex()).Msg("skipping persisted sale")
			continue
		}
		loaded++
	}

	metrics.SnapshotLoadDuration.Set(time.Since(start).Seconds())
	svc.logger.Info().
		Int("pools", svc.registry.PoolCount()).
		Int("sales", svc.registry.SaleCount()).
		Msg("snapshots loaded")
	return loaded
}

func (svc *Service) loadSeeds() error {
	pools, sales, err := svc.seeds(svc.seedsPath)
	if err != nil {
		return err
	}
	for _, pool := range pools {
		if err := svc.registry.UpsertPool(pool); err != nil {
			svc.logger.Warn().Err(err).Str("pool", pool.Address.Hex()).Msg("skipping seed pool")
		}
	}
	for _, sale := range sales {
		if err := svc.registry.UpsertSale(sale); err != nil {
			svc.logger.Warn().Err(err).Str("coin", sale.Coin.Hex()).Msg("skipping seed sale")
		}
	}
	svc.logger.Info().
		Int("pools", len(pools)).
		Int("sales", len(sales)).
		Str("path", svc.seedsPath).
		Msg("registry seeded")
	return nil
}

func (svc *Service) backgroundLoop() {
	defer close(svc.done)

	persist := time.NewTicker(svc.persistInterval)
	stats := time.NewTicker(10 * time.Second)
	defer persist.Stop()
	defer stats.Stop()

	for {
		select {
		case <-svc.stop:
			return
		case <-persist.C:
			svc.persistSnapshots()
		case <-stats.C:
			svc.logger.Debug().
				Int("pools", svc.registry.PoolCount()).
				Int("ready_pools", svc.registry.ReadyPoolCount()).
				Int("sales", svc.registry.SaleCount()).
				Uint64("updates", svc.registry.Updates()).
				Msg("registry stats")
		}
	}
}

// persistSnapshots flushes the full registry when anything changed
// since the last flush. Snapshot volume is small (hundreds, not
// millions), so whole-registry writes beat dirty tracking.
func (svc *Service) persistSnapshots() {
	if svc.store == nil {
		return
	}
	updates := svc.registry.Updates()
	if updates == svc.lastPersisted.Load() {
		return
	}

	if err := svc.store.SavePoolBatch(svc.registry.ListPools(false)); err != nil {
		svc.logger.Error().Err(err).Msg("failed to persist pools")
		return
	}
	if err := svc.store.SaveSaleBatch(svc.registry.ListSales()); err != nil {
		svc.logger.Error().Err(err).Msg("failed to persist sales")
		return
	}
	svc.lastPersisted.Store(updates)
	svc.logger.Debug().Uint64("updates", updates).Msg("snapshots persisted")
}

// normalize maps the wallet-facing native-ETH pseudo-address onto the
// wrapped token every pool actually holds.
func (svc *Service) normalize(token common.Address) common.Address {
	if token == zcommon.NativeETH {
		return svc.weth
	}
	return token
}

// SwapQuoteRequest asks for a pool-swap preview. Amount is the exact
// input for ExactIn and the exact output for ExactOut. A zero MarginBps
// keeps the service default for hopped routes.
type SwapQuoteRequest struct {
	TokenIn     common.Address
	TokenOut    common.Address
	Amount      *big.Int
	Mode        domain.SwapMode
	SlippageBps uint16
	MarginBps   uint16
}

// SwapQuote is the full preview handed to the HTTP layer: the hop
// breakdown, the slippage threshold for the non-fixed side and the
// display-only impact estimate (nil when no estimate was possible).
type SwapQuote struct {
	Result               *domain.MultiHopQuoteResult
	Mode                 domain.SwapMode
	FeeBps               uint16
	SlippageBps          uint16
	OtherAmountThreshold *big.Int
	Impact               *domain.PriceImpact
}

// SwapQuote prices tokenIn against tokenOut. Direct pools win; when no
// direct pool exists both tokens are routed through their deepest ETH
// pair with the safety margin between the legs.
func (svc *Service) SwapQuote(req *SwapQuoteRequest) (*SwapQuote, error) {
	start := time.Now()
	kind := "direct"
	status := "success"
	defer func() {
		metrics.QuoteRequests.WithLabelValues(kind, string(req.Mode), status).Inc()
		metrics.QuoteDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	tokenIn := svc.normalize(req.TokenIn)
	tokenOut := svc.normalize(req.TokenOut)
	if tokenIn == tokenOut {
		status = "error"
		return nil, ErrSameToken
	}
	if req.Mode != domain.SwapModeExactIn && req.Mode != domain.SwapModeExactOut {
		status = "error"
		return nil, fmt.Errorf("invalid swap mode %q", req.Mode)
	}

	var (
		quote *SwapQuote
		err   error
	)
	if direct, derr := svc.registry.PoolForPair(tokenIn, tokenOut); derr == nil {
		quote, err = svc.directQuote(direct, tokenIn, tokenOut, req)
	} else if tokenIn != svc.weth && tokenOut != svc.weth {
		kind = "hop"
		quote, err = svc.hopQuote(tokenIn, tokenOut, req)
	} else {
		status = "error"
		return nil, fmt.Errorf("%w: %s/%s", ErrNoRoute, tokenIn.Hex(), tokenOut.Hex())
	}
	if err != nil {
		status = "error"
		return nil, err
	}

	quote.Mode = req.Mode
	quote.SlippageBps = req.SlippageBps
	if req.Mode == domain.SwapModeExactIn {
		quote.OtherAmountThreshold = pricing.MinAmountWithSlippage(quote.Result.AmountOut, req.SlippageBps)
	} else {
		quote.OtherAmountThreshold = pricing.MaxAmountWithSlippage(quote.Result.AmountIn, req.SlippageBps)
	}
	svc.observeImpact(quote.Impact)
	return quote, nil
}

func (svc *Service) directQuote(pool *domain.Pool, tokenIn, tokenOut common.Address, req *SwapQuoteRequest) (*SwapQuote, error) {
	reserveIn, reserveOut, _ := pool.ReservesFor(tokenIn)

	var amountIn, amountOut *big.Int
	var err error
	if req.Mode == domain.SwapModeExactIn {
		amountIn = req.Amount
		amountOut, err = svc.quoter.AmountOut(req.Amount, reserveIn, reserveOut, pool.FeeBps)
	} else {
		amountOut = req.Amount
		amountIn, err = svc.quoter.AmountIn(req.Amount, reserveIn, reserveOut, pool.FeeBps)
	}
	if err != nil {
		return nil, err
	}

	fn := func(amount *big.Int) (*big.Int, *big.Int, error) {
		if req.Mode == domain.SwapModeExactIn {
			out, ferr := svc.quoter.AmountOut(amount, reserveIn, reserveOut, pool.FeeBps)
			return amount, out, ferr
		}
		in, ferr := svc.quoter.AmountIn(amount, reserveIn, reserveOut, pool.FeeBps)
		return in, amount, ferr
	}
	impact, err := pricing.EstimatePriceImpact(fn, req.Amount, svc.epsilonBps)
	if err != nil {
		svc.logger.Debug().Err(err).Msg("impact estimate unavailable")
	}

	return &SwapQuote{
		Result: &domain.MultiHopQuoteResult{
			TokenIn:  tokenIn,
			TokenOut: tokenOut,
			Hops: []domain.HopQuote{
				{Pool: pool, TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: amountIn, AmountOut: amountOut},
			},
			AmountIn:  amountIn,
			AmountOut: amountOut,
		},
		FeeBps: pool.FeeBps,
		Impact: impact,
	}, nil
}

func (svc *Service) hopQuote(tokenIn, tokenOut common.Address, req *SwapQuoteRequest) (*SwapQuote, error) {
	src, err := svc.registry.ETHPoolFor(tokenIn)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRoute, err)
	}
	dst, err := svc.registry.ETHPoolFor(tokenOut)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRoute, err)
	}

	est := svc.hops
	if req.MarginBps != 0 {
		est = pricing.NewHopEstimator(svc.quoter, svc.weth, req.MarginBps)
	}

	var result *domain.MultiHopQuoteResult
	if req.Mode == domain.SwapModeExactIn {
		result, err = est.EstimateExactIn(src, dst, tokenIn, tokenOut, req.Amount)
	} else {
		result, err = est.EstimateExactOut(src, dst, tokenIn, tokenOut, req.Amount)
	}
	if err != nil {
		return nil, err
	}

	fn := func(amount *big.Int) (*big.Int, *big.Int, error) {
		if req.Mode == domain.SwapModeExactIn {
			res, ferr := est.EstimateExactIn(src, dst, tokenIn, tokenOut, amount)
			if ferr != nil {
				return nil, nil, ferr
			}
			return res.AmountIn, res.AmountOut, nil
		}
		res, ferr := est.EstimateExactOut(src, dst, tokenIn, tokenOut, amount)
		if ferr != nil {
			return nil, nil, ferr
		}
		return res.AmountIn, res.AmountOut, nil
	}
	impact, err := pricing.EstimatePriceImpact(fn, req.Amount, svc.epsilonBps)
	if err != nil {
		svc.logger.Debug().Err(err).Msg("impact estimate unavailable")
	}

	return &SwapQuote{
		Result: result,
		FeeBps: src.FeeBps + dst.FeeBps,
		Impact: impact,
	}, nil
}

// CurveQuoteRequest asks for a sale preview. The amount is ETH wei when
// the fixed side is ETH (buy/ExactIn, sell/ExactOut) and token wei when
// the fixed side is the coin (buy/ExactOut, sell/ExactIn).
type CurveQuoteRequest struct {
	Coin   common.Address
	Side   domain.TradeSide
	Mode   domain.SwapMode
	Amount *big.Int
}

// CurvePreview pairs the settlement-exact quote with the display-only
// impact estimate and the unsold remainder for the UI's max button.
type CurvePreview struct {
	Quote     *domain.CurveQuote
	Impact    *domain.PriceImpact
	Remaining *big.Int
}

// CurveQuote previews a bonding-curve trade against the current sale
// snapshot.
func (svc *Service) CurveQuote(req *CurveQuoteRequest) (*CurvePreview, error) {
	start := time.Now()
	status := "success"
	defer func() {
		metrics.QuoteRequests.WithLabelValues("curve", string(req.Mode), status).Inc()
		metrics.QuoteDuration.WithLabelValues("curve").Observe(time.Since(start).Seconds())
	}()

	sale, ok := svc.registry.GetSale(req.Coin)
	if !ok {
		status = "error"
		return nil, fmt.Errorf("%w: %s", market.ErrSaleNotFound, req.Coin.Hex())
	}
	curve, err := pricing.NewCurve(sale)
	if err != nil {
		status = "error"
		return nil, err
	}

	dispatch := func(amount *big.Int) (*domain.CurveQuote, error) {
		switch {
		case req.Side == domain.SideBuy && req.Mode == domain.SwapModeExactIn:
			return curve.QuoteBuyExactEth(amount)
		case req.Side == domain.SideBuy && req.Mode == domain.SwapModeExactOut:
			return curve.QuoteBuyExactTokens(amount)
		case req.Side == domain.SideSell && req.Mode == domain.SwapModeExactIn:
			return curve.QuoteSellExactTokens(amount)
		case req.Side == domain.SideSell && req.Mode == domain.SwapModeExactOut:
			return curve.QuoteSellExactEth(amount)
		default:
			return nil, fmt.Errorf("invalid curve quote side %v mode %q", req.Side, req.Mode)
		}
	}

	quote, err := dispatch(req.Amount)
	if err != nil {
		status = "error"
		return nil, err
	}

	// Execution price is always ETH per token; probing a bumped size
	// through the same dispatch shows the curve's drift.
	fn := func(amount *big.Int) (*big.Int, *big.Int, error) {
		q, ferr := dispatch(amount)
		if ferr != nil {
			return nil, nil, ferr
		}
		if req.Side == domain.SideBuy {
			return q.EthAmount, q.TokenAmount, nil
		}
		return q.TokenAmount, q.EthAmount, nil
	}
	impact, err := pricing.EstimatePriceImpact(fn, req.Amount, svc.epsilonBps)
	if err != nil {
		svc.logger.Debug().Err(err).Msg("impact estimate unavailable")
	}
	svc.observeImpact(impact)

	return &CurvePreview{
		Quote:     quote,
		Impact:    impact,
		Remaining: curve.Remaining(),
	}, nil
}

// CurveChart samples the sale curve for charting.
func (svc *Service) CurveChart(coin common.Address, points int) ([]domain.ChartPoint, error) {
	sale, ok := svc.registry.GetSale(coin)
	if !ok {
		return nil, fmt.Errorf("%w: %s", market.ErrSaleNotFound, coin.Hex())
	}
	return pricing.CurveSeries(sale, points)
}

func (svc *Service) observeImpact(impact *domain.PriceImpact) {
	if impact == nil {
		return
	}
	metrics.PriceImpact.WithLabelValues(impact.Severity).Observe(impact.Percent)
}

// Stats reports registry counters for the public stats endpoint.
type Stats struct {
	PoolCount      int
	ReadyPoolCount int
	SaleCount      int
	UpdateCount    uint64
}

func (svc *Service) Stats() Stats {
	return Stats{
		PoolCount:      svc.registry.PoolCount(),
		ReadyPoolCount: svc.registry.ReadyPoolCount(),
		SaleCount:      svc.registry.SaleCount(),
		UpdateCount:    svc.registry.Updates(),
	}
}
