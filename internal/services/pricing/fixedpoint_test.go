package pricing

import (
	"errors"
	"math/big"
	"testing"
)

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad big literal: " + s)
	}
	return v
}

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), OneUnit)
}

func TestMulDiv(t *testing.T) {
	pow := func(bits uint) *big.Int { return new(big.Int).Lsh(ONE, bits) }

	tests := []struct {
		name    string
		a, b, d *big.Int
		want    *big.Int
	}{
		{"exact", big.NewInt(6), big.NewInt(7), big.NewInt(2), big.NewInt(21)},
		{"floors", big.NewInt(10), big.NewInt(10), big.NewInt(3), big.NewInt(33)},
		{"floors down", big.NewInt(10), big.NewInt(10), big.NewInt(6), big.NewInt(16)},
		{"zero a", big.NewInt(0), big.NewInt(5), big.NewInt(7), big.NewInt(0)},
		{"zero b", big.NewInt(5), big.NewInt(0), big.NewInt(7), big.NewInt(0)},
		{"identity at word size", MAX_UINT256, big.NewInt(1), big.NewInt(1), MAX_UINT256},
		{"max cancels", MAX_UINT256, MAX_UINT256, MAX_UINT256, MAX_UINT256},
		{"wide intermediate", pow(200), pow(200), pow(200), pow(200)},
		{"wei scale", e18(1), big.NewInt(9970), big.NewInt(10000), mustBig("997000000000000000")},
	}
	for _, tt := range tests {
		got, err := MulDiv(tt.a, tt.b, tt.d)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if got.Cmp(tt.want) != 0 {
			t.Errorf("%s: MulDiv = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestMulDivErrors(t *testing.T) {
	over := new(big.Int).Add(MAX_UINT256, ONE)

	tests := []struct {
		name    string
		a, b, d *big.Int
		want    error
	}{
		{"negative a", big.NewInt(-1), big.NewInt(2), big.NewInt(3), ErrNegativeInput},
		{"negative b", big.NewInt(1), big.NewInt(-2), big.NewInt(3), ErrNegativeInput},
		{"negative denominator", big.NewInt(1), big.NewInt(2), big.NewInt(-3), ErrNegativeInput},
		{"zero denominator", big.NewInt(1), big.NewInt(2), big.NewInt(0), ErrDivisionByZero},
		{"a beyond word", over, big.NewInt(1), big.NewInt(1), ErrOverflow},
		{"denominator beyond word", big.NewInt(1), big.NewInt(1), over, ErrOverflow},
		{"result beyond word", MAX_UINT256, MAX_UINT256, big.NewInt(1), ErrOverflow},
	}
	for _, tt := range tests {
		if _, err := MulDiv(tt.a, tt.b, tt.d); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

// The uint256 fast path and the big.Int slow path must agree bit for
// bit across operand sizes.
func TestMulDivMatchesReference(t *testing.T) {
	operands := []*big.Int{
		big.NewInt(1),
		big.NewInt(3),
		big.NewInt(9999),
		big.NewInt(10000),
		e18(1),
		e18(1_000_000),
		new(big.Int).Lsh(ONE, 63),
		new(big.Int).Sub(new(big.Int).Lsh(ONE, 64), ONE),
		new(big.Int).Add(new(big.Int).Lsh(ONE, 128), big.NewInt(3)),
		new(big.Int).Lsh(ONE, 200),
		MAX_UINT256,
	}

	for _, a := range operands {
		for _, b := range operands {
			for _, d := range operands {
				got, err := MulDiv(a, b, d)
				want := new(big.Int).Mul(a, b)
				want.Div(want, d)
				if want.Cmp(MAX_UINT256) > 0 {
					if !errors.Is(err, ErrOverflow) {
						t.Fatalf("MulDiv(%s,%s,%s): want overflow, got %v", a, b, d, err)
					}
					continue
				}
				if err != nil {
					t.Fatalf("MulDiv(%s,%s,%s): %v", a, b, d, err)
				}
				if got.Cmp(want) != 0 {
					t.Fatalf("MulDiv(%s,%s,%s) = %s, want %s", a, b, d, got, want)
				}
			}
		}
	}
}

func TestCeilDiv(t *testing.T) {
	tests := []struct {
		a, b *big.Int
		want *big.Int
	}{
		{big.NewInt(10), big.NewInt(3), big.NewInt(4)},
		{big.NewInt(9), big.NewInt(3), big.NewInt(3)},
		{big.NewInt(0), big.NewInt(5), big.NewInt(0)},
		{big.NewInt(1), big.NewInt(1), big.NewInt(1)},
		{big.NewInt(1), new(big.Int).Lsh(ONE, 255), big.NewInt(1)},
		{MAX_UINT256, MAX_UINT256, big.NewInt(1)},
	}
	for _, tt := range tests {
		got, err := CeilDiv(tt.a, tt.b)
		if err != nil {
			t.Fatalf("CeilDiv(%s,%s): %v", tt.a, tt.b, err)
		}
		if got.Cmp(tt.want) != 0 {
			t.Errorf("CeilDiv(%s,%s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}

	if _, err := CeilDiv(big.NewInt(1), big.NewInt(0)); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("zero divisor: err = %v, want ErrDivisionByZero", err)
	}
	if _, err := CeilDiv(big.NewInt(-1), big.NewInt(2)); !errors.Is(err, ErrNegativeInput) {
		t.Errorf("negative: err = %v, want ErrNegativeInput", err)
	}
}

func TestQuantize(t *testing.T) {
	unit := e18(1)

	got, err := Quantize(mustBig("1500000000000000000"), unit)
	if err != nil {
		t.Fatalf("Quantize: %v", err)
	}
	if got.Cmp(e18(1)) != 0 {
		t.Errorf("Quantize(1.5e18) = %s, want 1e18", got)
	}

	got, err = Quantize(e18(2), unit)
	if err != nil {
		t.Fatalf("Quantize: %v", err)
	}
	if got.Cmp(e18(2)) != 0 {
		t.Errorf("Quantize(2e18) = %s, want 2e18", got)
	}

	got, err = Quantize(big.NewInt(0), unit)
	if err != nil {
		t.Fatalf("Quantize(0): %v", err)
	}
	if got.Sign() != 0 {
		t.Errorf("Quantize(0) = %s, want 0", got)
	}

	if _, err := Quantize(mustBig("999999999999999999"), unit); !errors.Is(err, ErrBelowMinimumUnit) {
		t.Errorf("dust: err = %v, want ErrBelowMinimumUnit", err)
	}
	if _, err := Quantize(big.NewInt(-1), unit); !errors.Is(err, ErrNegativeInput) {
		t.Errorf("negative: err = %v, want ErrNegativeInput", err)
	}
	if _, err := Quantize(e18(1), big.NewInt(0)); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("zero unit: err = %v, want ErrDivisionByZero", err)
	}
}

func TestSlippageHelpers(t *testing.T) {
	got := MinAmountWithSlippage(mustBig("9990009990009990"), 200)
	if want := mustBig("9790209790209790"); got.Cmp(want) != 0 {
		t.Errorf("MinAmountWithSlippage = %s, want %s", got, want)
	}

	got = MaxAmountWithSlippage(big.NewInt(9800), 200)
	if want := big.NewInt(10000); got.Cmp(want) != 0 {
		t.Errorf("MaxAmountWithSlippage = %s, want %s", got, want)
	}

	if got := MinAmountWithSlippage(big.NewInt(12345), 0); got.Cmp(big.NewInt(12345)) != 0 {
		t.Errorf("zero bps should be identity, got %s", got)
	}

	// Grossing up then taking the haircut never loses principal.
	for _, amount := range []*big.Int{big.NewInt(1), big.NewInt(997), e18(3)} {
		for _, bps := range []uint16{1, 30, 200, 5000} {
			gross := MaxAmountWithSlippage(amount, bps)
			back := MinAmountWithSlippage(gross, bps)
			if back.Cmp(amount) < 0 {
				t.Errorf("round trip lost principal: %s bps=%d -> %s -> %s", amount, bps, gross, back)
			}
		}
	}
}

func BenchmarkMulDivWord(b *testing.B) {
	x := e18(1234)
	y := big.NewInt(9970)
	d := big.NewInt(10000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := MulDiv(x, y, d); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMulDivWide(b *testing.B) {
	x := new(big.Int).Lsh(ONE, 200)
	y := new(big.Int).Lsh(ONE, 180)
	d := new(big.Int).Lsh(ONE, 190)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := MulDiv(x, y, d); err != nil {
			b.Fatal(err)
		}
	}
}
