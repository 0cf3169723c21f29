package pricing

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zcurve-labs/quote-engine/internal/domain"
)

// DefaultHopMarginBps is the safety haircut taken between the two legs
// of a token->ETH->token estimate.
const DefaultHopMarginBps = 200

var ErrInvalidRoute = errors.New("route pools do not connect through ETH")

// HopEstimator composes two ETH-paired pool quotes into a two-leg
// estimate. The margin models the second leg executing after the
// market moved against the first.
type HopEstimator struct {
	quoter    *PairQuoter
	weth      common.Address
	marginBps uint16
}

// NewHopEstimator builds an estimator quoting through the given wrapped
// ETH address. A zero margin selects DefaultHopMarginBps.
func NewHopEstimator(quoter *PairQuoter, weth common.Address, marginBps uint16) *HopEstimator {
	if marginBps == 0 || marginBps >= 10000 {
		marginBps = DefaultHopMarginBps
	}
	return &HopEstimator{quoter: quoter, weth: weth, marginBps: marginBps}
}

// MarginBps returns the configured inter-hop haircut.
func (e *HopEstimator) MarginBps() uint16 {
	return e.marginBps
}

// EstimateExactIn quotes amountIn of tokenIn through src into ETH,
// takes the margin off the ETH leg, and quotes the remainder through
// dst into tokenOut. Either leg quoting to zero makes the whole
// estimate zero, never an error.
func (e *HopEstimator) EstimateExactIn(src, dst *domain.Pool, tokenIn, tokenOut common.Address, amountIn *big.Int) (*domain.MultiHopQuoteResult, error) {
	srcIn, srcOut, dstIn, dstOut, err := e.orient(src, dst, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}

	ethOut, err := e.quoter.AmountOut(amountIn, srcIn, srcOut, src.FeeBps)
	if err != nil {
		return nil, err
	}
	safeEth := MinAmountWithSlippage(ethOut, e.marginBps)

	out := new(big.Int)
	if safeEth.Sign() > 0 {
		out, err = e.quoter.AmountOut(safeEth, dstIn, dstOut, dst.FeeBps)
		if err != nil {
			return nil, err
		}
	}

	return &domain.MultiHopQuoteResult{
		TokenIn:  tokenIn,
		TokenOut: tokenOut,
		Hops: []domain.HopQuote{
			{Pool: src, TokenIn: tokenIn, TokenOut: e.weth, AmountIn: amountIn, AmountOut: ethOut},
			{Pool: dst, TokenIn: e.weth, TokenOut: tokenOut, AmountIn: safeEth, AmountOut: out},
		},
		AmountIn:        amountIn,
		AmountOut:       out,
		IntermediateETH: safeEth,
		MarginBps:       e.marginBps,
	}, nil
}

// EstimateExactOut works the legs backwards: the ETH the second leg
// needs for amountOut is grossed up by the margin before pricing the
// first leg's input.
func (e *HopEstimator) EstimateExactOut(src, dst *domain.Pool, tokenIn, tokenOut common.Address, amountOut *big.Int) (*domain.MultiHopQuoteResult, error) {
	srcIn, srcOut, dstIn, dstOut, err := e.orient(src, dst, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}

	ethNeeded, err := e.quoter.AmountIn(amountOut, dstIn, dstOut, dst.FeeBps)
	if err != nil {
		return nil, err
	}
	grossEth := MaxAmountWithSlippage(ethNeeded, e.marginBps)

	in := new(big.Int)
	if grossEth.Sign() > 0 {
		in, err = e.quoter.AmountIn(grossEth, srcIn, srcOut, src.FeeBps)
		if err != nil {
			return nil, err
		}
	}

	return &domain.MultiHopQuoteResult{
		TokenIn:  tokenIn,
		TokenOut: tokenOut,
		Hops: []domain.HopQuote{
			{Pool: src, TokenIn: tokenIn, TokenOut: e.weth, AmountIn: in, AmountOut: grossEth},
			{Pool: dst, TokenIn: e.weth, TokenOut: tokenOut, AmountIn: ethNeeded, AmountOut: amountOut},
		},
		AmountIn:        in,
		AmountOut:       amountOut,
		IntermediateETH: grossEth,
		MarginBps:       e.marginBps,
	}, nil
}

// orient checks both pools pair their token with ETH and returns the
// reserves in swap order: src sells tokenIn for ETH, dst sells ETH for
// tokenOut.
func (e *HopEstimator) orient(src, dst *domain.Pool, tokenIn, tokenOut common.Address) (srcIn, srcOut, dstIn, dstOut *big.Int, err error) {
	if src == nil || dst == nil {
		return nil, nil, nil, nil, fmt.Errorf("%w: nil pool", ErrInvalidRoute)
	}
	srcIn, srcOut, ok := src.ReservesFor(tokenIn)
	if !ok || src.OtherToken(tokenIn) != e.weth {
		return nil, nil, nil, nil, fmt.Errorf("%w: %s is not an ETH pair for %s", ErrInvalidRoute, src.Address.Hex(), tokenIn.Hex())
	}
	dstIn, dstOut, ok = dst.ReservesFor(e.weth)
	if !ok || dst.OtherToken(e.weth) != tokenOut {
		return nil, nil, nil, nil, fmt.Errorf("%w: %s is not an ETH pair for %s", ErrInvalidRoute, dst.Address.Hex(), tokenOut.Hex())
	}
	return srcIn, srcOut, dstIn, dstOut, nil
}
