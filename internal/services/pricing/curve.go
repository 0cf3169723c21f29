package pricing

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/zcurve-labs/quote-engine/internal/domain"
	"github.com/zcurve-labs/quote-engine/internal/metrics"
)

var (
	two   = big.NewInt(2)
	three = big.NewInt(3)
	six   = big.NewInt(6)
)

// Curve prices one sale's quadratic-then-linear bonding curve on the
// whole-unit grid. All amounts cross the API in wei; internally the
// model works in units of UnitScale wei, exactly like the sale
// contract. A Curve is immutable after construction and safe for
// concurrent use.
type Curve struct {
	coin      domain.SaleParameters
	unitScale *big.Int
	divisor   *big.Int

	capUnits  *big.Int // saleCap on the unit grid
	kUnits    *big.Int // quadCap on the unit grid
	soldUnits *big.Int // netSold on the unit grid
	remUnits  *big.Int // capUnits - soldUnits
	denom     *big.Int // 6*divisor
	floorDen  *big.Int // 3*divisor, denominator of the spot-price floor

	baseCost *big.Int // cumulative cost at soldUnits
}

// NewCurve validates the snapshot and precomputes the unit-grid state.
// saleCap, divisor and unitScale must be positive, quadCap must not
// exceed saleCap and netSold must stay within the cap.
func NewCurve(sale *domain.SaleParameters) (*Curve, error) {
	if sale == nil {
		return nil, fmt.Errorf("%w: nil sale", ErrInvalidCurveParams)
	}
	if sale.SaleCap == nil || sale.Divisor == nil || sale.QuadCap == nil || sale.UnitScale == nil {
		return nil, fmt.Errorf("%w: missing field", ErrInvalidCurveParams)
	}
	if sale.SaleCap.Sign() <= 0 {
		return nil, fmt.Errorf("%w: saleCap must be positive", ErrInvalidCurveParams)
	}
	if sale.Divisor.Sign() <= 0 {
		return nil, fmt.Errorf("%w: divisor must be positive", ErrInvalidCurveParams)
	}
	if sale.UnitScale.Sign() <= 0 {
		return nil, fmt.Errorf("%w: unitScale must be positive", ErrInvalidCurveParams)
	}
	if sale.QuadCap.Sign() < 0 || sale.QuadCap.Cmp(sale.SaleCap) > 0 {
		return nil, fmt.Errorf("%w: quadCap must stay within saleCap", ErrInvalidCurveParams)
	}
	netSold := sale.NetSold
	if netSold == nil {
		netSold = ZERO
	}
	if netSold.Sign() < 0 || netSold.Cmp(sale.SaleCap) > 0 {
		return nil, fmt.Errorf("%w: netSold must stay within saleCap", ErrInvalidCurveParams)
	}

	c := &Curve{
		coin:      *sale,
		unitScale: new(big.Int).Set(sale.UnitScale),
		divisor:   new(big.Int).Set(sale.Divisor),
		capUnits:  new(big.Int).Div(sale.SaleCap, sale.UnitScale),
		kUnits:    new(big.Int).Div(sale.QuadCap, sale.UnitScale),
		soldUnits: new(big.Int).Div(netSold, sale.UnitScale),
		denom:     new(big.Int).Mul(six, sale.Divisor),
		floorDen:  new(big.Int).Mul(three, sale.Divisor),
	}
	c.remUnits = new(big.Int).Sub(c.capUnits, c.soldUnits)

	base, err := c.costUnits(c.soldUnits)
	if err != nil {
		return nil, err
	}
	c.baseCost = base
	return c, nil
}

// costUnits is the cumulative curve integral: the wei cost of the
// first m units. The first unit is free (m < 2 prices to zero), the
// quadratic phase is the sum-of-squares closed form scaled by
// oneUnit/denom, and past kUnits the price is frozen at the final
// quadratic step.
func (c *Curve) costUnits(m *big.Int) (*big.Int, error) {
	if m.Cmp(two) < 0 {
		return new(big.Int), nil
	}
	if m.Cmp(c.kUnits) <= 0 {
		return c.quadCost(m)
	}

	quadK, err := c.quadCost(c.kUnits)
	if err != nil {
		return nil, err
	}
	pK, err := c.terminalUnitPrice()
	if err != nil {
		return nil, err
	}
	tail := new(big.Int).Sub(m, c.kUnits)
	tail.Mul(tail, pK)
	out := tail.Add(tail, quadK)
	if out.Cmp(MAX_UINT256) > 0 {
		return nil, ErrOverflow
	}
	return out, nil
}

// quadCost evaluates floor(m*(m-1)*(2m-1)/6) * oneUnit / denom with
// the same two mulDiv steps, in the same order, as the sale contract.
func (c *Curve) quadCost(m *big.Int) (*big.Int, error) {
	if m.Cmp(two) < 0 {
		return new(big.Int), nil
	}
	mm1 := new(big.Int).Sub(m, ONE)
	mm1.Mul(mm1, m)
	tm1 := new(big.Int).Lsh(m, 1)
	tm1.Sub(tm1, ONE)
	sumSq, err := MulDiv(mm1, tm1, six)
	if err != nil {
		return nil, err
	}
	return MulDiv(sumSq, OneUnit, c.denom)
}

// terminalUnitPrice is pK = floor(K*K*oneUnit/denom), the per-unit
// price of the linear phase.
func (c *Curve) terminalUnitPrice() (*big.Int, error) {
	kk := new(big.Int).Mul(c.kUnits, c.kUnits)
	return MulDiv(kk, OneUnit, c.denom)
}

// marginalPriceUnits is the display spot price after m units sold, in
// wei per unit. Below two units it uses the 2*oneUnit/(3*divisor)
// floor scaled by min(m,1); past kUnits it stays at the last
// quadratic-phase value.
func (c *Curve) marginalPriceUnits(m *big.Int) (*big.Int, error) {
	if m.Cmp(two) < 0 {
		minM := m
		if m.Cmp(ONE) > 0 {
			minM = ONE
		}
		num := new(big.Int).Mul(two, minM)
		return MulDiv(num, OneUnit, c.floorDen)
	}
	if m.Cmp(c.kUnits) > 0 {
		m = c.kUnits
	}
	num := new(big.Int).Mul(two, m)
	return MulDiv(num, OneUnit, c.denom)
}

// Cost returns the cumulative wei cost of the first amountTokens wei
// of curve supply, flooring the amount onto the unit grid.
func (c *Curve) Cost(amountTokens *big.Int) (*big.Int, error) {
	if amountTokens == nil || amountTokens.Sign() < 0 {
		return nil, ErrNegativeInput
	}
	m := new(big.Int).Div(amountTokens, c.unitScale)
	return c.costUnits(m)
}

// MarginalPrice returns the display spot price, in wei per unit, after
// amountTokens wei have been sold.
func (c *Curve) MarginalPrice(amountTokens *big.Int) (*big.Int, error) {
	if amountTokens == nil || amountTokens.Sign() < 0 {
		return nil, ErrNegativeInput
	}
	m := new(big.Int).Div(amountTokens, c.unitScale)
	return c.marginalPriceUnits(m)
}

// costFrom prices dm units bought from the current NetSold level.
func (c *Curve) costFrom(dm *big.Int) (*big.Int, error) {
	m := new(big.Int).Add(c.soldUnits, dm)
	total, err := c.costUnits(m)
	if err != nil {
		return nil, err
	}
	return total.Sub(total, c.baseCost), nil
}

// refundFor prices dm units sold back from the current NetSold level.
func (c *Curve) refundFor(dm *big.Int) (*big.Int, error) {
	m := new(big.Int).Sub(c.soldUnits, dm)
	atM, err := c.costUnits(m)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Sub(c.baseCost, atM), nil
}

// QuoteBuyExactTokens previews buying tokensOut wei of the coin. The
// amount is quantized to the unit grid; requests past the remaining
// supply clamp and set ClampedToSaleCap. EthAmount is exactly what
// settlement would charge.
func (c *Curve) QuoteBuyExactTokens(tokensOut *big.Int) (*domain.CurveQuote, error) {
	quantized, err := Quantize(tokensOut, c.unitScale)
	if err != nil {
		return nil, err
	}
	dm := new(big.Int).Div(quantized, c.unitScale)

	clamped := false
	if dm.Cmp(c.remUnits) > 0 {
		dm.Set(c.remUnits)
		clamped = true
	}
	cost, err := c.costFrom(dm)
	if err != nil {
		return nil, err
	}
	return c.quote(domain.SideBuy, dm, cost, clamped)
}

// QuoteBuyExactEth previews spending budgetWei on the curve: the
// largest unit count whose cost from the current level fits the
// budget. EthAmount is the exact cost of those units, which may be
// below the budget; ClampedToSaleCap reports budget left over at the
// supply cap.
func (c *Curve) QuoteBuyExactEth(budgetWei *big.Int) (*domain.CurveQuote, error) {
	if budgetWei == nil || budgetWei.Sign() < 0 {
		return nil, ErrNegativeInput
	}

	// Largest dm in [0, remUnits] with costFrom(dm) <= budget. The
	// integral is nondecreasing in dm, so plain binary search works; a
	// probe that overflows 256 bits is simply beyond any budget.
	lo := new(big.Int)
	hi := new(big.Int).Set(c.remUnits)
	mid := new(big.Int)
	iters := 0
	for lo.Cmp(hi) < 0 {
		iters++
		mid.Add(lo, hi)
		mid.Add(mid, ONE)
		mid.Rsh(mid, 1)
		cost, err := c.costFrom(mid)
		switch {
		case err == nil && cost.Cmp(budgetWei) <= 0:
			lo.Set(mid)
		case err == nil || errors.Is(err, ErrOverflow):
			hi.Sub(mid, ONE)
		default:
			return nil, err
		}
	}
	metrics.CurveSearchIterations.Observe(float64(iters))

	cost, err := c.costFrom(lo)
	if err != nil {
		return nil, err
	}
	clamped := lo.Cmp(c.remUnits) == 0 && budgetWei.Cmp(cost) > 0
	return c.quote(domain.SideBuy, lo, cost, clamped)
}

// QuoteSellExactTokens previews selling tokensIn wei back to the
// curve. The amount is quantized; selling more than NetSold clamps to
// the full position and sets ClampedToSaleCap.
func (c *Curve) QuoteSellExactTokens(tokensIn *big.Int) (*domain.CurveQuote, error) {
	quantized, err := Quantize(tokensIn, c.unitScale)
	if err != nil {
		return nil, err
	}
	dm := new(big.Int).Div(quantized, c.unitScale)

	clamped := false
	if dm.Cmp(c.soldUnits) > 0 {
		dm.Set(c.soldUnits)
		clamped = true
	}
	refund, err := c.refundFor(dm)
	if err != nil {
		return nil, err
	}
	return c.quote(domain.SideSell, dm, refund, clamped)
}

// QuoteSellExactEth previews selling just enough of the coin to
// receive at least wantWei: the smallest unit count whose refund
// reaches the target. When the whole position refunds less than
// wantWei the quote fails with ErrInsufficientLiquidity.
func (c *Curve) QuoteSellExactEth(wantWei *big.Int) (*domain.CurveQuote, error) {
	if wantWei == nil || wantWei.Sign() < 0 {
		return nil, ErrNegativeInput
	}
	if wantWei.Sign() == 0 {
		return c.quote(domain.SideSell, new(big.Int), new(big.Int), false)
	}

	full, err := c.refundFor(c.soldUnits)
	if err != nil {
		return nil, err
	}
	if full.Cmp(wantWei) < 0 {
		return nil, fmt.Errorf("%w: position refunds %s wei, want %s", ErrInsufficientLiquidity, full.String(), wantWei.String())
	}

	// Smallest dm in [0, soldUnits] with refundFor(dm) >= want.
	lo := new(big.Int)
	hi := new(big.Int).Set(c.soldUnits)
	mid := new(big.Int)
	iters := 0
	for lo.Cmp(hi) < 0 {
		iters++
		mid.Add(lo, hi)
		mid.Rsh(mid, 1)
		refund, err := c.refundFor(mid)
		if err != nil {
			return nil, err
		}
		if refund.Cmp(wantWei) >= 0 {
			hi.Set(mid)
		} else {
			lo.Add(mid, ONE)
		}
	}
	metrics.CurveSearchIterations.Observe(float64(iters))

	refund, err := c.refundFor(lo)
	if err != nil {
		return nil, err
	}
	return c.quote(domain.SideSell, lo, refund, false)
}

// quote assembles the preview, pricing the display spot at the
// post-trade supply level.
func (c *Curve) quote(side domain.TradeSide, dm, eth *big.Int, clamped bool) (*domain.CurveQuote, error) {
	after := new(big.Int)
	if side == domain.SideBuy {
		after.Add(c.soldUnits, dm)
	} else {
		after.Sub(c.soldUnits, dm)
	}
	spot, err := c.marginalPriceUnits(after)
	if err != nil {
		return nil, err
	}
	return &domain.CurveQuote{
		Coin:             c.coin.Coin,
		Side:             side,
		TokenAmount:      new(big.Int).Mul(dm, c.unitScale),
		EthAmount:        eth,
		MarginalPriceWei: spot,
		ClampedToSaleCap: clamped,
	}, nil
}

// Remaining returns the unsold wei still purchasable on the curve.
func (c *Curve) Remaining() *big.Int {
	return new(big.Int).Mul(c.remUnits, c.unitScale)
}

// UnitScale returns the sale's quantization step in wei.
func (c *Curve) UnitScale() *big.Int {
	return new(big.Int).Set(c.unitScale)
}
