package pricing

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/zcurve-labs/quote-engine/internal/metrics"
)

// PairQuoter prices swaps against constant-product pair snapshots with
// the x*y=k formulas the pair contract settles on. Results are looked
// up in the QuoteCache before computing; a nil cache degrades to
// direct computation.
type PairQuoter struct {
	cache *QuoteCache
}

func NewPairQuoter(cache *QuoteCache) *PairQuoter {
	return &PairQuoter{cache: cache}
}

// AmountOut quotes the output of swapping amountIn against the given
// reserves with a feeBps swap fee. A zero amount or an empty reserve
// side quotes to zero without touching the cache.
func (q *PairQuoter) AmountOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint16) (*big.Int, error) {
	if feeBps >= 10000 {
		return nil, fmt.Errorf("%w: %d bps", ErrInvalidFee, feeBps)
	}
	if amountIn == nil || reserveIn == nil || reserveOut == nil {
		return new(big.Int), nil
	}
	if amountIn.Sign() < 0 || reserveIn.Sign() < 0 || reserveOut.Sign() < 0 {
		return nil, ErrNegativeInput
	}
	if amountIn.Sign() == 0 || reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return new(big.Int), nil
	}

	var key string
	if q != nil && q.cache != nil {
		key = quoteKey(amountIn, reserveIn, reserveOut, feeBps)
		if v, ok := q.cache.GetForward(key); ok {
			metrics.QuoteCacheHits.Inc()
			return v, nil
		}
		metrics.QuoteCacheMisses.Inc()
	}

	out, err := computeAmountOut(amountIn, reserveIn, reserveOut, feeBps)
	if err != nil {
		return nil, err
	}
	if key != "" {
		q.cache.PutForward(key, out)
		q.observeCacheSize()
	}
	return out, nil
}

// AmountIn quotes the input required to receive exactly amountOut,
// with the +1 wei ceiling the pair contract applies. Draining or
// exceeding reserveOut fails with ErrInsufficientLiquidity; a zero
// amountOut quotes to zero.
func (q *PairQuoter) AmountIn(amountOut, reserveIn, reserveOut *big.Int, feeBps uint16) (*big.Int, error) {
	if feeBps >= 10000 {
		return nil, fmt.Errorf("%w: %d bps", ErrInvalidFee, feeBps)
	}
	if amountOut == nil || reserveIn == nil || reserveOut == nil {
		return new(big.Int), nil
	}
	if amountOut.Sign() < 0 || reserveIn.Sign() < 0 || reserveOut.Sign() < 0 {
		return nil, ErrNegativeInput
	}
	if amountOut.Sign() == 0 {
		return new(big.Int), nil
	}
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, fmt.Errorf("%w: empty reserves", ErrInsufficientLiquidity)
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return nil, fmt.Errorf("%w: amountOut %s exceeds reserve %s", ErrInsufficientLiquidity, amountOut.String(), reserveOut.String())
	}

	var key string
	if q != nil && q.cache != nil {
		key = quoteKey(amountOut, reserveIn, reserveOut, feeBps)
		if v, ok := q.cache.GetInverse(key); ok {
			metrics.QuoteCacheHits.Inc()
			return v, nil
		}
		metrics.QuoteCacheMisses.Inc()
	}

	in, err := computeAmountIn(amountOut, reserveIn, reserveOut, feeBps)
	if err != nil {
		return nil, err
	}
	if key != "" {
		q.cache.PutInverse(key, in)
		q.observeCacheSize()
	}
	return in, nil
}

func (q *PairQuoter) observeCacheSize() {
	f, i := q.cache.Len()
	metrics.QuoteCacheEntries.Set(float64(f + i))
}

// computeAmountOut is the raw pair formula:
// floor(amountInAfterFee*reserveOut / (reserveIn*10000 + amountInAfterFee))
// with amountInAfterFee = amountIn*(10000-feeBps).
func computeAmountOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint16) (*big.Int, error) {
	afterFee := new(big.Int).Mul(amountIn, big.NewInt(int64(10000-feeBps)))
	den := new(big.Int).Mul(reserveIn, BPS_DENOM)
	den.Add(den, afterFee)
	return MulDiv(afterFee, reserveOut, den)
}

// computeAmountIn is the raw inverse formula:
// floor(reserveIn*amountOut*10000 / ((reserveOut-amountOut)*(10000-feeBps))) + 1.
func computeAmountIn(amountOut, reserveIn, reserveOut *big.Int, feeBps uint16) (*big.Int, error) {
	num := new(big.Int).Mul(reserveIn, amountOut)
	den := new(big.Int).Sub(reserveOut, amountOut)
	den.Mul(den, big.NewInt(int64(10000-feeBps)))
	in, err := MulDiv(num, BPS_DENOM, den)
	if err != nil {
		return nil, err
	}
	in.Add(in, ONE)
	if in.Cmp(MAX_UINT256) > 0 {
		return nil, ErrOverflow
	}
	return in, nil
}

// quoteKey concatenates the full input tuple so an entry can only ever
// be read back for identical inputs.
func quoteKey(amount, reserveIn, reserveOut *big.Int, feeBps uint16) string {
	var sb strings.Builder
	sb.Grow(64)
	sb.WriteString(amount.String())
	sb.WriteByte('|')
	sb.WriteString(reserveIn.String())
	sb.WriteByte('|')
	sb.WriteString(reserveOut.String())
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatUint(uint64(feeBps), 10))
	return sb.String()
}
