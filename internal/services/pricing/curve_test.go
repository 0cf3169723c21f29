package pricing

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zcurve-labs/quote-engine/internal/domain"
)

// launchSale is the canonical launch shape used across curve tests:
// 1M coin cap, quadratic for the first 500k coins, divisor 1000.
func launchSale() *domain.SaleParameters {
	return &domain.SaleParameters{
		Coin:      common.HexToAddress("0x00000000000000000000000000000000000c0111"),
		SaleCap:   e18(1_000_000),
		Divisor:   big.NewInt(1000),
		QuadCap:   e18(500_000),
		NetSold:   big.NewInt(0),
		UnitScale: e18(1),
	}
}

func newLaunchCurve(t *testing.T, netSoldUnits int64) *Curve {
	t.Helper()
	sale := launchSale()
	sale.NetSold = e18(netSoldUnits)
	c, err := NewCurve(sale)
	if err != nil {
		t.Fatalf("NewCurve: %v", err)
	}
	return c
}

func TestCostGolden(t *testing.T) {
	c := newLaunchCurve(t, 0)

	tests := []struct {
		units int64
		want  string
	}{
		{0, "0"},
		{1, "0"}, // first unit costs nothing
		{2, "166666666666666"},
		{3, "833333333333333"},
		{10, "47500000000000000"},
		{90, "39827500000000000000"},
		{100, "54725000000000000000"},
		{109, "70959000000000000000"},
		{110, "72939166666666666666"},
	}
	for _, tt := range tests {
		got, err := c.Cost(e18(tt.units))
		if err != nil {
			t.Fatalf("Cost(%d): %v", tt.units, err)
		}
		if want := mustBig(tt.want); got.Cmp(want) != 0 {
			t.Errorf("Cost(%d units) = %s, want %s", tt.units, got, want)
		}
	}
}

func TestCostLinearPhase(t *testing.T) {
	// Small curve so the knee is cheap to cross: quadratic for 50
	// units, capped at 100.
	sale := launchSale()
	sale.SaleCap = e18(100)
	sale.QuadCap = e18(50)
	c, err := NewCurve(sale)
	if err != nil {
		t.Fatalf("NewCurve: %v", err)
	}

	costAt := func(units int64) *big.Int {
		t.Helper()
		v, err := c.Cost(e18(units))
		if err != nil {
			t.Fatalf("Cost(%d): %v", units, err)
		}
		return v
	}

	// Terminal unit price freezes at the knee: K^2 * 1e18 / (6 * divisor).
	pK, err := MulDiv(new(big.Int).Mul(big.NewInt(50), big.NewInt(50)), OneUnit, big.NewInt(6000))
	if err != nil {
		t.Fatalf("MulDiv: %v", err)
	}

	kneeCost := costAt(50)
	for _, extra := range []int64{1, 10, 50} {
		want := new(big.Int).Mul(pK, big.NewInt(extra))
		want.Add(want, kneeCost)
		if got := costAt(50 + extra); got.Cmp(want) != 0 {
			t.Errorf("Cost(K+%d) = %s, want knee + %d*pK = %s", extra, got, extra, want)
		}
	}
}

func TestCostMonotonic(t *testing.T) {
	sale := launchSale()
	sale.SaleCap = e18(300)
	sale.QuadCap = e18(120)
	c, err := NewCurve(sale)
	if err != nil {
		t.Fatalf("NewCurve: %v", err)
	}

	prev := big.NewInt(-1)
	for units := int64(0); units <= 300; units++ {
		got, err := c.Cost(e18(units))
		if err != nil {
			t.Fatalf("Cost(%d): %v", units, err)
		}
		if got.Cmp(prev) < 0 {
			t.Fatalf("cost decreased at %d units: %s < %s", units, got, prev)
		}
		prev = got
	}
}

func TestMarginalPriceGolden(t *testing.T) {
	c := newLaunchCurve(t, 0)

	tests := []struct {
		units int64
		want  string
	}{
		{0, "0"},
		{1, "666666666666666"},
		{2, "666666666666666"},
		{100, "33333333333333333"},
		{500_000, "166666666666666666666"},
		{600_000, "166666666666666666666"}, // frozen past the knee
	}
	for _, tt := range tests {
		got, err := c.MarginalPrice(e18(tt.units))
		if err != nil {
			t.Fatalf("MarginalPrice(%d): %v", tt.units, err)
		}
		if want := mustBig(tt.want); got.Cmp(want) != 0 {
			t.Errorf("MarginalPrice(%d units) = %s, want %s", tt.units, got, want)
		}
	}
}

func TestQuoteBuyExactTokens(t *testing.T) {
	c := newLaunchCurve(t, 100)

	q, err := c.QuoteBuyExactTokens(e18(10))
	if err != nil {
		t.Fatalf("QuoteBuyExactTokens: %v", err)
	}
	if want := mustBig("18214166666666666666"); q.EthAmount.Cmp(want) != 0 {
		t.Errorf("EthAmount = %s, want %s", q.EthAmount, want)
	}
	if q.TokenAmount.Cmp(e18(10)) != 0 {
		t.Errorf("TokenAmount = %s, want 10e18", q.TokenAmount)
	}
	if q.ClampedToSaleCap {
		t.Error("unexpected clamp")
	}
}

func TestQuoteBuyExactTokensQuantizes(t *testing.T) {
	c := newLaunchCurve(t, 100)

	// 10.7 coins prices as 10: partial units are truncated, not priced.
	q, err := c.QuoteBuyExactTokens(mustBig("10700000000000000000"))
	if err != nil {
		t.Fatalf("QuoteBuyExactTokens: %v", err)
	}
	if q.TokenAmount.Cmp(e18(10)) != 0 {
		t.Errorf("TokenAmount = %s, want 10e18", q.TokenAmount)
	}

	if _, err := c.QuoteBuyExactTokens(mustBig("500000000000000000")); !errors.Is(err, ErrBelowMinimumUnit) {
		t.Errorf("dust buy: err = %v, want ErrBelowMinimumUnit", err)
	}

	q, err = c.QuoteBuyExactTokens(big.NewInt(0))
	if err != nil {
		t.Fatalf("zero buy: %v", err)
	}
	if q.TokenAmount.Sign() != 0 || q.EthAmount.Sign() != 0 {
		t.Errorf("zero buy = (%s, %s), want zeros", q.TokenAmount, q.EthAmount)
	}
}

func TestQuoteBuyExactTokensClamped(t *testing.T) {
	c := newLaunchCurve(t, 999_998)

	q, err := c.QuoteBuyExactTokens(e18(10))
	if err != nil {
		t.Fatalf("QuoteBuyExactTokens: %v", err)
	}
	if q.TokenAmount.Cmp(e18(2)) != 0 {
		t.Errorf("TokenAmount = %s, want remaining 2e18", q.TokenAmount)
	}
	if !q.ClampedToSaleCap {
		t.Error("expected clamp against sale cap")
	}

	soldOut := newLaunchCurve(t, 1_000_000)
	q, err = soldOut.QuoteBuyExactTokens(e18(1))
	if err != nil {
		t.Fatalf("sold out buy: %v", err)
	}
	if q.TokenAmount.Sign() != 0 || !q.ClampedToSaleCap {
		t.Errorf("sold out buy = (%s, clamped=%v), want (0, true)", q.TokenAmount, q.ClampedToSaleCap)
	}
}

func TestQuoteBuyExactEth(t *testing.T) {
	c := newLaunchCurve(t, 100)

	// Budget exactly covers ten units.
	q, err := c.QuoteBuyExactEth(mustBig("18214166666666666666"))
	if err != nil {
		t.Fatalf("QuoteBuyExactEth: %v", err)
	}
	if q.TokenAmount.Cmp(e18(10)) != 0 {
		t.Errorf("TokenAmount = %s, want 10e18", q.TokenAmount)
	}
	if want := mustBig("18214166666666666666"); q.EthAmount.Cmp(want) != 0 {
		t.Errorf("EthAmount = %s, want %s", q.EthAmount, want)
	}

	// One wei short drops to nine units and charges their exact cost.
	q, err = c.QuoteBuyExactEth(mustBig("18214166666666666665"))
	if err != nil {
		t.Fatalf("QuoteBuyExactEth: %v", err)
	}
	if q.TokenAmount.Cmp(e18(9)) != 0 {
		t.Errorf("TokenAmount = %s, want 9e18", q.TokenAmount)
	}
	if want := mustBig("16234000000000000000"); q.EthAmount.Cmp(want) != 0 {
		t.Errorf("EthAmount = %s, want %s", q.EthAmount, want)
	}
}

func TestQuoteBuyExactEthFirstUnitFree(t *testing.T) {
	c := newLaunchCurve(t, 0)

	q, err := c.QuoteBuyExactEth(big.NewInt(0))
	if err != nil {
		t.Fatalf("QuoteBuyExactEth: %v", err)
	}
	if q.TokenAmount.Cmp(e18(1)) != 0 {
		t.Errorf("TokenAmount = %s, want the free first unit", q.TokenAmount)
	}
	if q.EthAmount.Sign() != 0 {
		t.Errorf("EthAmount = %s, want 0", q.EthAmount)
	}
}

func TestQuoteBuyExactEthClamped(t *testing.T) {
	c := newLaunchCurve(t, 0)

	full, err := c.Cost(e18(1_000_000))
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}

	budget := new(big.Int).Add(full, e18(5))
	q, err := c.QuoteBuyExactEth(budget)
	if err != nil {
		t.Fatalf("QuoteBuyExactEth: %v", err)
	}
	if q.TokenAmount.Cmp(e18(1_000_000)) != 0 {
		t.Errorf("TokenAmount = %s, want full cap", q.TokenAmount)
	}
	if q.EthAmount.Cmp(full) != 0 {
		t.Errorf("EthAmount = %s, want %s", q.EthAmount, full)
	}
	if !q.ClampedToSaleCap {
		t.Error("expected clamp against sale cap")
	}
}

func TestQuoteBuyRoundTrip(t *testing.T) {
	c := newLaunchCurve(t, 100)

	budgets := []*big.Int{
		big.NewInt(1),
		mustBig("1700000000000000000"),
		e18(5),
		e18(120),
		mustBig("999999999999999999999"),
	}
	for _, budget := range budgets {
		q, err := c.QuoteBuyExactEth(budget)
		if err != nil {
			t.Fatalf("QuoteBuyExactEth(%s): %v", budget, err)
		}
		if q.EthAmount.Cmp(budget) > 0 {
			t.Fatalf("budget %s: charged %s over budget", budget, q.EthAmount)
		}

		back, err := c.QuoteBuyExactTokens(q.TokenAmount)
		if err != nil {
			t.Fatalf("QuoteBuyExactTokens(%s): %v", q.TokenAmount, err)
		}
		if back.EthAmount.Cmp(q.EthAmount) != 0 {
			t.Errorf("budget %s: re-pricing %s units gave %s, want %s",
				budget, q.TokenAmount, back.EthAmount, q.EthAmount)
		}

		// Maximality: one more unit must not fit the budget.
		if !q.ClampedToSaleCap {
			more, err := c.QuoteBuyExactTokens(new(big.Int).Add(q.TokenAmount, e18(1)))
			if err != nil {
				t.Fatalf("QuoteBuyExactTokens(+1): %v", err)
			}
			if more.EthAmount.Cmp(budget) <= 0 {
				t.Errorf("budget %s: +1 unit costs %s, still within budget", budget, more.EthAmount)
			}
		}
	}
}

func TestQuoteSellExactTokens(t *testing.T) {
	c := newLaunchCurve(t, 100)

	q, err := c.QuoteSellExactTokens(e18(10))
	if err != nil {
		t.Fatalf("QuoteSellExactTokens: %v", err)
	}
	if want := mustBig("14897500000000000000"); q.EthAmount.Cmp(want) != 0 {
		t.Errorf("EthAmount = %s, want %s", q.EthAmount, want)
	}
	if q.TokenAmount.Cmp(e18(10)) != 0 {
		t.Errorf("TokenAmount = %s, want 10e18", q.TokenAmount)
	}
}

func TestQuoteSellClampsToNetSold(t *testing.T) {
	c := newLaunchCurve(t, 100)

	q, err := c.QuoteSellExactTokens(e18(200))
	if err != nil {
		t.Fatalf("QuoteSellExactTokens: %v", err)
	}
	if q.TokenAmount.Cmp(e18(100)) != 0 {
		t.Errorf("TokenAmount = %s, want 100e18", q.TokenAmount)
	}
	if want := mustBig("54725000000000000000"); q.EthAmount.Cmp(want) != 0 {
		t.Errorf("full unwind refund = %s, want %s", q.EthAmount, want)
	}
	if !q.ClampedToSaleCap {
		t.Error("expected clamp against net sold")
	}
}

func TestQuoteSellExactEth(t *testing.T) {
	c := newLaunchCurve(t, 100)

	// Exactly the ten-unit refund.
	q, err := c.QuoteSellExactEth(mustBig("14897500000000000000"))
	if err != nil {
		t.Fatalf("QuoteSellExactEth: %v", err)
	}
	if q.TokenAmount.Cmp(e18(10)) != 0 {
		t.Errorf("TokenAmount = %s, want 10e18", q.TokenAmount)
	}

	// Just past the nine-unit refund still needs ten units.
	nine, err := c.QuoteSellExactTokens(e18(9))
	if err != nil {
		t.Fatalf("QuoteSellExactTokens: %v", err)
	}
	q, err = c.QuoteSellExactEth(new(big.Int).Add(nine.EthAmount, ONE))
	if err != nil {
		t.Fatalf("QuoteSellExactEth: %v", err)
	}
	if q.TokenAmount.Cmp(e18(10)) != 0 {
		t.Errorf("TokenAmount = %s, want 10e18", q.TokenAmount)
	}
	if q.EthAmount.Cmp(new(big.Int).Add(nine.EthAmount, ONE)) < 0 {
		t.Errorf("refund %s below requested amount", q.EthAmount)
	}

	// More than the whole position is worth.
	full, err := c.QuoteSellExactTokens(e18(100))
	if err != nil {
		t.Fatalf("QuoteSellExactTokens: %v", err)
	}
	if _, err := c.QuoteSellExactEth(new(big.Int).Add(full.EthAmount, ONE)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Errorf("oversized want: err = %v, want ErrInsufficientLiquidity", err)
	}
}

func TestNewCurveValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.SaleParameters)
	}{
		{"zero sale cap", func(s *domain.SaleParameters) { s.SaleCap = big.NewInt(0) }},
		{"zero divisor", func(s *domain.SaleParameters) { s.Divisor = big.NewInt(0) }},
		{"negative divisor", func(s *domain.SaleParameters) { s.Divisor = big.NewInt(-5) }},
		{"zero unit scale", func(s *domain.SaleParameters) { s.UnitScale = big.NewInt(0) }},
		{"quad cap above sale cap", func(s *domain.SaleParameters) { s.QuadCap = e18(2_000_000) }},
		{"net sold above sale cap", func(s *domain.SaleParameters) { s.NetSold = e18(2_000_000) }},
		{"negative net sold", func(s *domain.SaleParameters) { s.NetSold = big.NewInt(-1) }},
		{"nil sale cap", func(s *domain.SaleParameters) { s.SaleCap = nil }},
		{"nil divisor", func(s *domain.SaleParameters) { s.Divisor = nil }},
	}
	for _, tt := range tests {
		sale := launchSale()
		tt.mutate(sale)
		if _, err := NewCurve(sale); !errors.Is(err, ErrInvalidCurveParams) {
			t.Errorf("%s: err = %v, want ErrInvalidCurveParams", tt.name, err)
		}
	}

	if _, err := NewCurve(nil); !errors.Is(err, ErrInvalidCurveParams) {
		t.Errorf("nil sale: err = %v, want ErrInvalidCurveParams", err)
	}
}

func BenchmarkQuoteBuyExactTokens(b *testing.B) {
	sale := launchSale()
	sale.NetSold = e18(250_000)
	c, err := NewCurve(sale)
	if err != nil {
		b.Fatal(err)
	}
	amount := e18(1000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.QuoteBuyExactTokens(amount); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkQuoteBuyExactEth(b *testing.B) {
	sale := launchSale()
	sale.NetSold = e18(250_000)
	c, err := NewCurve(sale)
	if err != nil {
		b.Fatal(err)
	}
	budget := e18(40)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.QuoteBuyExactEth(budget); err != nil {
			b.Fatal(err)
		}
	}
}
