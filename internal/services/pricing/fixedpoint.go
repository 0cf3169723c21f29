package pricing

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
)

// Error taxonomy shared by every component in this package.
// ErrInvalidCurveParams, ErrInvalidFee, ErrNegativeInput,
// ErrDivisionByZero and ErrOverflow are configuration-level and abort
// the request; ErrBelowMinimumUnit and ErrInsufficientLiquidity are
// input-level and map to user-facing validation upstream.
var (
	ErrInvalidCurveParams    = errors.New("invalid curve parameters")
	ErrBelowMinimumUnit      = errors.New("amount below minimum sale unit")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrOverflow              = errors.New("result exceeds 256 bits")
	ErrNegativeInput         = errors.New("negative input")
	ErrDivisionByZero        = errors.New("division by zero")
	ErrInvalidFee            = errors.New("fee out of range")
)

// Pre-computed constants (avoid allocation on every call)
var (
	// OneUnit = 10^18 wei, the scale of one whole quote-currency unit
	OneUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	// BPS_DENOM = 10000 for basis points
	BPS_DENOM = big.NewInt(10000)
	// MAX_UINT256 = 2^256 - 1, the settlement word size
	MAX_UINT256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	// ZERO for comparisons
	ZERO = big.NewInt(0)
	// ONE for calculations
	ONE = big.NewInt(1)
)

// Object pools for the quote hot path

var uint256Pool = sync.Pool{
	New: func() interface{} {
		return new(uint256.Int)
	},
}

var bigIntPool = sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

// GetU256 gets a uint256.Int from the pool
func GetU256() *uint256.Int {
	return uint256Pool.Get().(*uint256.Int)
}

// PutU256 returns a uint256.Int to the pool
func PutU256(v *uint256.Int) {
	v.Clear()
	uint256Pool.Put(v)
}

// GetBigInt gets a big.Int from the pool
func GetBigInt() *big.Int {
	return bigIntPool.Get().(*big.Int)
}

// PutBigInt returns a big.Int to the pool
func PutBigInt(v *big.Int) {
	v.SetInt64(0)
	bigIntPool.Put(v)
}

// MulDiv computes floor(a*b/denominator) with a full-precision
// intermediate. The intermediate product may exceed 256 bits; the
// inputs and the result may not. Inputs must be non-negative and the
// denominator nonzero.
func MulDiv(a, b, denominator *big.Int) (*big.Int, error) {
	if a.Sign() < 0 || b.Sign() < 0 || denominator.Sign() < 0 {
		return nil, ErrNegativeInput
	}
	if denominator.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	if a.Cmp(MAX_UINT256) > 0 || b.Cmp(MAX_UINT256) > 0 || denominator.Cmp(MAX_UINT256) > 0 {
		return nil, ErrOverflow
	}
	if a.Sign() == 0 || b.Sign() == 0 {
		return new(big.Int), nil
	}

	// Fast path: the product itself fits the settlement word.
	ua := GetU256()
	ub := GetU256()
	defer func() {
		PutU256(ua)
		PutU256(ub)
	}()
	ua.SetFromBig(a)
	ub.SetFromBig(b)
	if _, overflow := ua.MulOverflow(ua, ub); !overflow {
		ub.SetFromBig(denominator)
		ua.Div(ua, ub)
		return ua.ToBig(), nil
	}

	// Slow path: 512-bit intermediate in big.Int.
	out := new(big.Int).Mul(a, b)
	out.Div(out, denominator)
	if out.Cmp(MAX_UINT256) > 0 {
		return nil, ErrOverflow
	}
	return out, nil
}

// CeilDiv computes ceil(a/b) as floor((a+b-1)/b), the rounding the
// settlement layer applies to exact-output amounts.
func CeilDiv(a, b *big.Int) (*big.Int, error) {
	if a.Sign() < 0 || b.Sign() < 0 {
		return nil, ErrNegativeInput
	}
	if b.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	if a.Cmp(MAX_UINT256) > 0 || b.Cmp(MAX_UINT256) > 0 {
		return nil, ErrOverflow
	}
	out := new(big.Int).Add(a, b)
	out.Sub(out, ONE)
	return out.Div(out, b), nil
}

// Quantize floors amount onto the sale's unit grid:
// floor(amount/unitScale)*unitScale. A nonzero amount that floors to
// zero reports ErrBelowMinimumUnit instead of returning 0.
func Quantize(amount, unitScale *big.Int) (*big.Int, error) {
	if amount.Sign() < 0 || unitScale.Sign() < 0 {
		return nil, ErrNegativeInput
	}
	if unitScale.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	out := new(big.Int).Div(amount, unitScale)
	out.Mul(out, unitScale)
	if out.Sign() == 0 && amount.Sign() > 0 {
		return nil, fmt.Errorf("%w: %s wei is less than one unit of %s", ErrBelowMinimumUnit, amount.String(), unitScale.String())
	}
	return out, nil
}

// MinAmountWithSlippage returns amount*(10000-bps)/10000 rounded down,
// the minimum-received threshold for an exact-in quote.
func MinAmountWithSlippage(amount *big.Int, bps uint16) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps >= 10000 {
		return new(big.Int)
	}
	if bps == 0 {
		return new(big.Int).Set(amount)
	}
	out := new(big.Int).Mul(amount, big.NewInt(int64(10000-bps)))
	return out.Div(out, BPS_DENOM)
}

// MaxAmountWithSlippage returns amount*10000/(10000-bps) rounded up,
// the maximum-paid threshold for an exact-out quote.
func MaxAmountWithSlippage(amount *big.Int, bps uint16) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return new(big.Int)
	}
	if bps == 0 {
		return new(big.Int).Set(amount)
	}
	if bps >= 10000 {
		bps = 9999
	}
	den := big.NewInt(int64(10000 - bps))
	out := new(big.Int).Mul(amount, BPS_DENOM)
	out.Add(out, new(big.Int).Sub(den, ONE))
	return out.Div(out, den)
}

// SafeUint64 safely converts big.Int to uint64, returning 0 if overflow
func SafeUint64(b *big.Int) uint64 {
	if b == nil || b.Sign() <= 0 {
		return 0
	}
	if !b.IsUint64() {
		return 0
	}
	return b.Uint64()
}
