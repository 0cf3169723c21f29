package pricing

import (
	"errors"
	"math"
	"math/big"

	"github.com/zcurve-labs/quote-engine/internal/domain"
)

// Price impact thresholds in percent
const (
	PriceImpactLow      = 1.0
	PriceImpactModerate = 3.0
	PriceImpactHigh     = 5.0
	PriceImpactExtreme  = 10.0
)

// PriceImpactSeverity represents the severity level of price impact
type PriceImpactSeverity string

const (
	SeverityNone     PriceImpactSeverity = "none"     // < 1%
	SeverityLow      PriceImpactSeverity = "low"      // 1-3%
	SeverityModerate PriceImpactSeverity = "moderate" // 3-5%
	SeverityHigh     PriceImpactSeverity = "high"     // 5-10%
	SeverityExtreme  PriceImpactSeverity = "extreme"  // > 10%
)

// DefaultImpactEpsilonBps bumps the probe amount by 1%.
const DefaultImpactEpsilonBps = 100

// QuoteFn produces the (amountIn, amountOut) pair one probe amount
// settles to, in the caller's direction. For exact-in probes amount is
// the input; for exact-out probes it is the requested output.
type QuoteFn func(amount *big.Int) (amountIn, amountOut *big.Int, err error)

// EstimatePriceImpact quotes fn at amount and at amount bumped by
// epsilonBps, compares the in/out execution prices and reports the
// drift in percent. The result is nil, with no error, whenever the
// inputs cannot produce a finite estimate: zero amounts, zero quotes,
// or a bumped probe that runs out of liquidity. Everything up to the
// final percentage stays in integer math.
func EstimatePriceImpact(fn QuoteFn, amount *big.Int, epsilonBps uint16) (*domain.PriceImpact, error) {
	if fn == nil || amount == nil || amount.Sign() <= 0 {
		return nil, nil
	}
	if epsilonBps == 0 {
		epsilonBps = DefaultImpactEpsilonBps
	}

	in0, out0, err := fn(amount)
	if err != nil {
		if recoverable(err) {
			return nil, nil
		}
		return nil, err
	}

	bumped := new(big.Int).Mul(amount, big.NewInt(int64(10000+int(epsilonBps))))
	bumped.Div(bumped, BPS_DENOM)
	if bumped.Cmp(amount) == 0 {
		bumped.Add(amount, ONE)
	}
	in1, out1, err := fn(bumped)
	if err != nil {
		if recoverable(err) {
			return nil, nil
		}
		return nil, err
	}

	p0, ok := priceRatio(in0, out0)
	if !ok {
		return nil, nil
	}
	p1, ok := priceRatio(in1, out1)
	if !ok {
		return nil, nil
	}

	percent := (p1/p0 - 1) * 100
	if math.IsNaN(percent) || math.IsInf(percent, 0) {
		return nil, nil
	}

	severity := GetPriceImpactSeverity(percent)
	return &domain.PriceImpact{
		Percent:  percent,
		Severity: string(severity),
		Warning:  GetPriceImpactWarning(percent),
	}, nil
}

// priceRatio converts one quote to its execution price in/out. ok is
// false for non-positive legs, which the caller must treat as "no
// estimate" rather than an error.
func priceRatio(in, out *big.Int) (float64, bool) {
	if in == nil || out == nil || in.Sign() <= 0 || out.Sign() <= 0 {
		return 0, false
	}
	f := new(big.Float).Quo(new(big.Float).SetInt(in), new(big.Float).SetInt(out))
	ratio, _ := f.Float64()
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return 0, false
	}
	return ratio, true
}

func recoverable(err error) bool {
	return errors.Is(err, ErrInsufficientLiquidity) || errors.Is(err, ErrBelowMinimumUnit)
}

// GetPriceImpactSeverity returns the severity level for an impact percent
func GetPriceImpactSeverity(percent float64) PriceImpactSeverity {
	switch {
	case percent < PriceImpactLow:
		return SeverityNone
	case percent < PriceImpactModerate:
		return SeverityLow
	case percent < PriceImpactHigh:
		return SeverityModerate
	case percent < PriceImpactExtreme:
		return SeverityHigh
	default:
		return SeverityExtreme
	}
}

// GetPriceImpactWarning returns a user-friendly warning message based on impact
func GetPriceImpactWarning(percent float64) string {
	switch GetPriceImpactSeverity(percent) {
	case SeverityNone:
		return ""
	case SeverityLow:
		return "Low price impact"
	case SeverityModerate:
		return "Moderate price impact - consider reducing trade size"
	case SeverityHigh:
		return "High price impact - you may receive significantly less tokens"
	case SeverityExtreme:
		return "EXTREME price impact - this trade will severely impact the market price"
	default:
		return ""
	}
}
