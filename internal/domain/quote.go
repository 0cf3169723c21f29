package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type SwapMode string

const (
	SwapModeExactIn  SwapMode = "ExactIn"
	SwapModeExactOut SwapMode = "ExactOut"
)

type TradeSide uint8

const (
	SideBuy TradeSide = iota
	SideSell
)

func (s TradeSide) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "UNKNOWN"
	}
}

// QuoteResult is a single-pool swap quote.
type QuoteResult struct {
	Pool      *Pool
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
	FeeAmount *big.Int
}

type HopQuote struct {
	Pool      *Pool
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
}

// MultiHopQuoteResult is a token->ETH->token estimate. IntermediateETH
// is the ETH leg after the safety margin was taken off (exact-in) or
// added on (exact-out).
type MultiHopQuoteResult struct {
	TokenIn         common.Address
	TokenOut        common.Address
	Hops            []HopQuote
	AmountIn        *big.Int
	AmountOut       *big.Int
	IntermediateETH *big.Int
	MarginBps       uint16
}

// CurveQuote is a bonding-curve trade preview. TokenAmount is always
// quantized to the sale's unit grid; EthAmount is the exact wei the
// settlement path would move for it.
type CurveQuote struct {
	Coin             common.Address
	Side             TradeSide
	TokenAmount      *big.Int
	EthAmount        *big.Int
	MarginalPriceWei *big.Int
	ClampedToSaleCap bool
}

// PriceImpact is a display-only estimate of execution price drift. A
// nil *PriceImpact means no estimate was possible for the inputs.
type PriceImpact struct {
	Percent  float64 `json:"percent"`
	Severity string  `json:"severity"`
	Warning  string  `json:"warning,omitempty"`
}

// ChartPoint is one sampled point of a sale curve, pre-formatted for
// display. Values are decimal strings in whole-ETH / whole-coin units.
type ChartPoint struct {
	TokensSold    string `json:"tokensSold"`
	PriceEth      string `json:"priceEth"`
	CumulativeEth string `json:"cumulativeEth"`
}
