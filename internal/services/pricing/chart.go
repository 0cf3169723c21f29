package pricing

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/zcurve-labs/quote-engine/internal/domain"
)

const (
	DefaultChartPoints = 100
	MaxChartPoints     = 500
)

// CurveSeries samples the sale curve at evenly spaced supply levels
// for charting. Point values are display strings in whole-coin and
// whole-ETH units; the sampling itself stays on the integer unit grid.
func CurveSeries(sale *domain.SaleParameters, points int) ([]domain.ChartPoint, error) {
	curve, err := NewCurve(sale)
	if err != nil {
		return nil, err
	}
	if points <= 0 {
		points = DefaultChartPoints
	}
	if points > MaxChartPoints {
		points = MaxChartPoints
	}
	if points < 2 {
		points = 2
	}
	// A grid smaller than the requested resolution collapses to one
	// point per unit.
	capUnits := curve.capUnits
	if capUnits.IsUint64() && capUnits.Uint64()+1 < uint64(points) {
		points = int(capUnits.Uint64()) + 1
	}

	step := new(big.Int).SetInt64(1)
	if points > 1 {
		step.Div(capUnits, big.NewInt(int64(points-1)))
		if step.Sign() == 0 {
			step.SetInt64(1)
		}
	}

	out := make([]domain.ChartPoint, 0, points)
	m := new(big.Int)
	sold := new(big.Int)
	for i := 0; i < points; i++ {
		if i == points-1 {
			m.Set(capUnits)
		} else {
			m.Mul(step, big.NewInt(int64(i)))
		}
		cost, err := curve.costUnits(m)
		if err != nil {
			return nil, err
		}
		price, err := curve.marginalPriceUnits(m)
		if err != nil {
			return nil, err
		}
		sold.Mul(m, curve.unitScale)
		out = append(out, domain.ChartPoint{
			TokensSold:    decimal.NewFromBigInt(new(big.Int).Set(sold), -18).String(),
			PriceEth:      decimal.NewFromBigInt(price, -18).String(),
			CumulativeEth: decimal.NewFromBigInt(cost, -18).String(),
		})
	}
	return out, nil
}
