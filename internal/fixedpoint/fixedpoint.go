// Package fixedpoint implements the 256-bit, 1e18-scaled integer arithmetic
// the trade settlement layer performs on-chain. Every operation is a pure
// function: values are never mutated in place and the same inputs always
// produce the same result or the same typed error. Floating point is never
// used anywhere in this package — one ULP of float drift would change
// downstream trade outputs.
package fixedpoint

import (
	"errors"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// The complete kernel error vocabulary. Callers distinguish these with
// errors.Is; the settlement layer this package mirrors reverts with exactly
// these distinct conditions, so they must never be merged or re-worded into
// message-text checks.
var (
	ErrOverflow        = errors.New("fixedpoint: addition overflow")
	ErrUnderflow       = errors.New("fixedpoint: subtraction underflow")
	ErrInvalidInput    = errors.New("fixedpoint: invalid mul-div input")
	ErrDomain          = errors.New("fixedpoint: logarithm of non-positive value")
	ErrInvalidExponent = errors.New("fixedpoint: exponent out of range")
)

// FixedPoint is a real number scaled by 10^18, stored in a 256-bit integer.
// Public arithmetic treats values as unsigned; Ln and Exp operate in the
// signed two's-complement domain (Ln of a value below One is negative, Exp
// accepts negative exponents), matching the reference integer contract.
type FixedPoint struct {
	i uint256.Int
}

// One is 1.0 in 1e18 fixed point. Treat package-level values as constants.
var (
	One     = FromUint64(1_000_000_000_000_000_000)
	oneU256 = uint256.NewInt(1_000_000_000_000_000_000)
)

// FromUint64 wraps an already-scaled raw value.
func FromUint64(raw uint64) FixedPoint {
	var v FixedPoint
	v.i.SetUint64(raw)
	return v
}

// Scaled returns n * 1e18. It is the usual way to build whole-number
// amounts ("1_000 base") in tests and adapters.
func Scaled(n uint64) FixedPoint {
	var v FixedPoint
	v.i.SetUint64(n)
	v.i.Mul(&v.i, oneU256)
	return v
}

// ParseDecimal converts a decimal string such as "1234.5" or "0.01" into a
// 1e18-scaled value. At most 18 fractional digits are accepted; this is the
// boundary conversion adapters perform, the kernel itself never re-scales.
func ParseDecimal(s string) (FixedPoint, error) {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	if s == "" {
		return FixedPoint{}, ErrInvalidInput
	}
	intPart := s
	fracPart := ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, fracPart = s[:dot], s[dot+1:]
	}
	if len(fracPart) > 18 {
		return FixedPoint{}, ErrInvalidInput
	}
	if intPart == "" {
		intPart = "0"
	}
	fracPart += strings.Repeat("0", 18-len(fracPart))

	whole, err := uint256.FromDecimal(intPart)
	if err != nil {
		return FixedPoint{}, ErrInvalidInput
	}
	frac, err := uint256.FromDecimal(fracPart)
	if err != nil {
		return FixedPoint{}, ErrInvalidInput
	}
	var v FixedPoint
	if _, overflow := v.i.MulOverflow(whole, oneU256); overflow {
		return FixedPoint{}, ErrOverflow
	}
	if _, overflow := v.i.AddOverflow(&v.i, frac); overflow {
		return FixedPoint{}, ErrOverflow
	}
	if neg {
		v.i.Neg(&v.i)
	}
	return v, nil
}

// ParseDec parses the raw scaled integer form produced by Dec. This is
// the inverse boundary conversion: wire payloads carry raw 1e18-scaled
// integers, never floats.
func ParseDec(s string) (FixedPoint, error) {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	if s == "" {
		return FixedPoint{}, ErrInvalidInput
	}
	raw, err := uint256.FromDecimal(s)
	if err != nil {
		return FixedPoint{}, ErrInvalidInput
	}
	var v FixedPoint
	v.i.Set(raw)
	if neg {
		v.i.Neg(&v.i)
	}
	return v, nil
}

// MustParseDecimal is ParseDecimal for compile-time-known literals.
func MustParseDecimal(s string) FixedPoint {
	v, err := ParseDecimal(s)
	if err != nil {
		panic("fixedpoint: bad literal " + s)
	}
	return v
}

// String renders the value as a decimal with the 1e18 scale applied,
// interpreting the two's-complement sign. Trailing fractional zeros are
// trimmed.
func (a FixedPoint) String() string {
	mag := a.i
	sign := ""
	if a.IsNegative() {
		mag.Neg(&a.i)
		sign = "-"
	}
	var quo, rem uint256.Int
	quo.Div(&mag, oneU256)
	rem.Mod(&mag, oneU256)
	if rem.IsZero() {
		return sign + quo.Dec()
	}
	frac := rem.Dec()
	frac = strings.Repeat("0", 18-len(frac)) + frac
	frac = strings.TrimRight(frac, "0")
	return sign + quo.Dec() + "." + frac
}

// Dec returns the raw scaled integer in decimal, two's complement intact.
// This is the wire representation used at the service boundary.
func (a FixedPoint) Dec() string {
	if a.IsNegative() {
		var mag uint256.Int
		mag.Neg(&a.i)
		return "-" + mag.Dec()
	}
	return a.i.Dec()
}

// IsZero reports whether the value is exactly zero.
func (a FixedPoint) IsZero() bool { return a.i.IsZero() }

// IsNegative reports whether the value is negative under the signed
// two's-complement interpretation.
func (a FixedPoint) IsNegative() bool { return a.i.Sign() < 0 }

// Cmp compares unsigned magnitudes: -1 if a < b, 0 if equal, 1 if a > b.
func (a FixedPoint) Cmp(b FixedPoint) int { return a.i.Cmp(&b.i) }

// Eq reports exact equality.
func (a FixedPoint) Eq(b FixedPoint) bool { return a.i.Eq(&b.i) }

// Lt reports a < b on unsigned magnitudes.
func (a FixedPoint) Lt(b FixedPoint) bool { return a.i.Lt(&b.i) }

// Gt reports a > b on unsigned magnitudes.
func (a FixedPoint) Gt(b FixedPoint) bool { return a.i.Gt(&b.i) }

// Neg returns -a in two's complement.
func Neg(a FixedPoint) FixedPoint {
	var v FixedPoint
	v.i.Neg(&a.i)
	return v
}

// Abs returns the magnitude of a signed value.
func Abs(a FixedPoint) FixedPoint {
	if a.IsNegative() {
		return Neg(a)
	}
	return a
}

// Add returns a + b, signalling ErrOverflow if the unsigned sum wraps.
func Add(a, b FixedPoint) (FixedPoint, error) {
	var v FixedPoint
	if _, carry := v.i.AddOverflow(&a.i, &b.i); carry {
		return FixedPoint{}, ErrOverflow
	}
	return v, nil
}

// Sub returns a - b, signalling ErrUnderflow when b > a.
func Sub(a, b FixedPoint) (FixedPoint, error) {
	if b.i.Gt(&a.i) {
		return FixedPoint{}, ErrUnderflow
	}
	var v FixedPoint
	v.i.Sub(&a.i, &b.i)
	return v, nil
}

// SignedAdd returns a + b under the signed interpretation, used when
// assembling trade deltas that mix signs. Signals ErrOverflow if two
// same-signed operands produce a result of the opposite sign.
func SignedAdd(a, b FixedPoint) (FixedPoint, error) {
	var v FixedPoint
	v.i.Add(&a.i, &b.i)
	if a.i.Sign() > 0 && b.i.Sign() > 0 && v.i.Sign() < 0 {
		return FixedPoint{}, ErrOverflow
	}
	if a.i.Sign() < 0 && b.i.Sign() < 0 && v.i.Sign() >= 0 {
		return FixedPoint{}, ErrOverflow
	}
	return v, nil
}

// MulDivDown computes floor(x*y/d). The product is widened through big.Int
// (a 256x256-bit product needs 512 bits of intermediate precision) and the
// quotient narrowed back with an explicit range check.
func MulDivDown(x, y, d FixedPoint) (FixedPoint, error) {
	if d.i.IsZero() {
		return FixedPoint{}, ErrInvalidInput
	}
	prod := new(big.Int).Mul(x.i.ToBig(), y.i.ToBig())
	prod.Div(prod, d.i.ToBig())
	var v FixedPoint
	if overflow := v.i.SetFromBig(prod); overflow {
		return FixedPoint{}, ErrOverflow
	}
	return v, nil
}

// MulDivUp computes ceil(x*y/d) as (x*y - 1)/d + 1 with a zero-product
// short-circuit, mirroring the reference rounding construction.
func MulDivUp(x, y, d FixedPoint) (FixedPoint, error) {
	if d.i.IsZero() {
		return FixedPoint{}, ErrInvalidInput
	}
	prod := new(big.Int).Mul(x.i.ToBig(), y.i.ToBig())
	if prod.Sign() == 0 {
		return FixedPoint{}, nil
	}
	prod.Sub(prod, big.NewInt(1))
	prod.Div(prod, d.i.ToBig())
	prod.Add(prod, big.NewInt(1))
	var v FixedPoint
	if overflow := v.i.SetFromBig(prod); overflow {
		return FixedPoint{}, ErrOverflow
	}
	return v, nil
}

// MulDown multiplies two 1e18-scaled values, rounding down.
func MulDown(a, b FixedPoint) (FixedPoint, error) { return MulDivDown(a, b, One) }

// MulUp multiplies two 1e18-scaled values, rounding up.
func MulUp(a, b FixedPoint) (FixedPoint, error) { return MulDivUp(a, b, One) }

// DivDown divides two 1e18-scaled values, rounding down.
func DivDown(a, b FixedPoint) (FixedPoint, error) { return MulDivDown(a, One, b) }

// DivUp divides two 1e18-scaled values, rounding up.
func DivUp(a, b FixedPoint) (FixedPoint, error) { return MulDivUp(a, One, b) }
