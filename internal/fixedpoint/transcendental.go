package fixedpoint

import "github.com/holiman/uint256"

// Natural log and exponential in 1e18 fixed point, ported from the on-chain
// rational (Padé-style) approximations. The coefficient tables are
// mathematical constants of the approximation, not configuration: changing
// any of them, or the order they are applied in, changes results at the
// last unit and breaks parity with settlement.
//
// ExpMin is the input at which the true result rounds to zero at this
// precision (floor(log(0.5e-18)*1e18)); at or below it Exp returns zero,
// which is defined saturation behaviour, not an error. ExpMax is
// floor(log((2^255-1)/1e18)*1e18); at or above it the result does not fit
// and Exp signals ErrInvalidExponent.
var (
	ExpMin = Neg(MustParseDecimal("42.139678854452767622"))
	ExpMax = MustParseDecimal("135.305999368893231589")

	// ln(2) in 2^96 basis.
	ln2x96 = uint256.MustFromDecimal("54916777467707473351141471128")
	// 5^18, the 1e18 <-> 2^96 basis-change divisor (1e18/2^96 = 5^18/2^78).
	five18 = uint256.MustFromDecimal("3814697265625")

	// (8,8)-term rational approximation of ln on (1, 2) * 2^96.
	lnP0 = uint256.MustFromDecimal("3273285459638523848632254066296")
	lnP1 = uint256.MustFromDecimal("24828157081833163892658089445524")
	lnP2 = uint256.MustFromDecimal("43456485725739037958740375743393")
	lnP3 = uint256.MustFromDecimal("11111509109440967052023855526967")
	lnP4 = uint256.MustFromDecimal("45023709667254063763336534515857")
	lnP5 = uint256.MustFromDecimal("14706773417378608786704636184526")
	lnP6 = new(uint256.Int).Lsh(uint256.MustFromDecimal("795164235651350426258249787498"), 96)

	lnQ0 = uint256.MustFromDecimal("5573035233440673466300451813936")
	lnQ1 = uint256.MustFromDecimal("71694874799317883764090561454958")
	lnQ2 = uint256.MustFromDecimal("283447036172924575727196451306956")
	lnQ3 = uint256.MustFromDecimal("401686690394027663651624208769553")
	lnQ4 = uint256.MustFromDecimal("204048457590392012362485061816622")
	lnQ5 = uint256.MustFromDecimal("31853899698501571402653359427138")
	lnQ6 = uint256.MustFromDecimal("909429971244387300277376558375")

	// Finalization constants: scale factor s * 5e18 * 2^96, ln(2) * k term in
	// 5**18 * 2^192 basis, and ln(2^96/10^18) in the same basis.
	lnScale  = uint256.MustFromDecimal("1677202110996718588342820967067443963516166")
	lnK      = uint256.MustFromDecimal("16597577552685614221487285958193947469193820559219878177908093499208371")
	lnRebase = uint256.MustFromDecimal("600920179829731861736702779321621459595472258049074101567377883020018308")

	// (6,7)-term rational approximation of exp on (-0.5 ln2, 0.5 ln2) * 2^96.
	expP0 = uint256.MustFromDecimal("2772001395605857295435445496992")
	expP1 = uint256.MustFromDecimal("44335888930127919016834873520032")
	expP2 = uint256.MustFromDecimal("398888492587501845352592340339721")
	expP3 = uint256.MustFromDecimal("1993839819670624470859228494792842")
	expP4 = new(uint256.Int).Lsh(uint256.MustFromDecimal("4385272521454847904659076985693276"), 96)

	expZ0 = uint256.MustFromDecimal("750530180792738023273180420736")
	expZ1 = uint256.MustFromDecimal("32788456221302202726307501949080")
	expW0 = uint256.MustFromDecimal("2218138959503481824038194425854")
	expW1 = uint256.MustFromDecimal("892943633302991980437332862907700")
	expQ0 = uint256.MustFromDecimal("78174809823045304726920794422040")
	expQ1 = uint256.MustFromDecimal("4203224763890128580604056984195872")

	// Scale factor * 2^k reconstruction multiplier for exp, 2^213 basis.
	expScale = uint256.MustFromDecimal("3822833074963236453042738258902158003155416615667")

	two95 = new(uint256.Int).Lsh(uint256.NewInt(1), 95)
)

// sdivFloor sets z to floor(x / d) under the signed interpretation. The
// reference arithmetic floors (rounds toward negative infinity), while the
// native signed division truncates toward zero, so the quotient is adjusted
// when the division is inexact and the operand signs differ.
func sdivFloor(z, x, d *uint256.Int) *uint256.Int {
	var rem uint256.Int
	rem.SMod(x, d)
	negQuot := (x.Sign() < 0) != (d.Sign() < 0)
	z.SDiv(x, d)
	if !rem.IsZero() && negQuot {
		z.Sub(z, uint256.NewInt(1))
	}
	return z
}

// mulSrsh96 sets z to (z * x) >> 96 with an arithmetic shift, the Horner
// step of both rational approximations.
func mulSrsh96(z, x *uint256.Int) {
	z.Mul(z, x)
	z.SRsh(z, 96)
}

// Ln computes the natural logarithm of x in 1e18 fixed point. The result is
// negative (two's complement) for x < One. Signals ErrDomain when x <= 0.
func Ln(x FixedPoint) (FixedPoint, error) {
	if x.i.Sign() <= 0 {
		return FixedPoint{}, ErrDomain
	}

	// Rebase into (1, 2) * 2^96: ln(2^k * x') = k*ln(2) + ln(x'). The
	// basis-change constant ln(2^96/1e18) is folded into the finalization.
	k := x.i.BitLen() - 1 - 96
	var v uint256.Int
	v.Lsh(&x.i, uint(159-k))
	v.Rsh(&v, 159)

	// p is monic; the scale factor is applied during finalization. The last
	// step leaves p in 2^192 basis so the division needs no re-scaling.
	var p uint256.Int
	p.Add(&v, lnP0)
	mulSrsh96(&p, &v)
	p.Add(&p, lnP1)
	mulSrsh96(&p, &v)
	p.Add(&p, lnP2)
	mulSrsh96(&p, &v)
	p.Sub(&p, lnP3)
	mulSrsh96(&p, &v)
	p.Sub(&p, lnP4)
	mulSrsh96(&p, &v)
	p.Sub(&p, lnP5)
	p.Mul(&p, &v)
	p.Sub(&p, lnP6)

	var q uint256.Int
	q.Add(&v, lnQ0)
	mulSrsh96(&q, &v)
	q.Add(&q, lnQ1)
	mulSrsh96(&q, &v)
	q.Add(&q, lnQ2)
	mulSrsh96(&q, &v)
	q.Add(&q, lnQ3)
	mulSrsh96(&q, &v)
	q.Add(&q, lnQ4)
	mulSrsh96(&q, &v)
	q.Add(&q, lnQ5)
	mulSrsh96(&q, &v)
	q.Add(&q, lnQ6)

	// r is in (0, 0.125) * 2^96.
	var r uint256.Int
	sdivFloor(&r, &p, &q)

	r.Mul(&r, lnScale)
	var kTerm uint256.Int
	if k >= 0 {
		kTerm.Mul(lnK, uint256.NewInt(uint64(k)))
		r.Add(&r, &kTerm)
	} else {
		kTerm.Mul(lnK, uint256.NewInt(uint64(-k)))
		r.Sub(&r, &kTerm)
	}
	r.Add(&r, lnRebase)
	r.SRsh(&r, 174)

	return FixedPoint{i: r}, nil
}

// Exp computes e^x in 1e18 fixed point, where x may be negative. Returns
// zero at or below ExpMin (defined saturation, not an error) and signals
// ErrInvalidExponent at or above ExpMax.
func Exp(x FixedPoint) (FixedPoint, error) {
	if !x.i.Sgt(&ExpMin.i) {
		return FixedPoint{}, nil
	}
	if !x.i.Slt(&ExpMax.i) {
		return FixedPoint{}, ErrInvalidExponent
	}

	// Convert to the 2^96 binary basis for intermediate precision.
	var v uint256.Int
	v.Lsh(&x.i, 78)
	sdivFloor(&v, &v, five18)

	// Factor out powers of two: exp(v) = exp(v') * 2^k with
	// k = round(v / ln 2), v' = v - k*ln(2). k lands in [-61, 195].
	var kw uint256.Int
	kw.Lsh(&v, 96)
	sdivFloor(&kw, &kw, ln2x96)
	kw.Add(&kw, two95)
	kw.SRsh(&kw, 96)
	var k int64
	if kw.Sign() < 0 {
		var mag uint256.Int
		mag.Neg(&kw)
		k = -int64(mag.Uint64())
	} else {
		k = int64(kw.Uint64())
	}

	var kLn2 uint256.Int
	if k >= 0 {
		kLn2.Mul(ln2x96, uint256.NewInt(uint64(k)))
		v.Sub(&v, &kLn2)
	} else {
		kLn2.Mul(ln2x96, uint256.NewInt(uint64(-k)))
		v.Add(&v, &kLn2)
	}

	var p uint256.Int
	p.Add(&v, expP0)
	mulSrsh96(&p, &v)
	p.Add(&p, expP1)
	mulSrsh96(&p, &v)
	p.Add(&p, expP2)
	mulSrsh96(&p, &v)
	p.Add(&p, expP3)
	p.Mul(&p, &v)
	p.Add(&p, expP4)

	// Denominator evaluated with Knuth's scheme.
	var z uint256.Int
	z.Add(&v, expZ0)
	mulSrsh96(&z, &v)
	z.Add(&z, expZ1)

	var w uint256.Int
	w.Sub(&v, expW0)
	mulSrsh96(&w, &z)
	w.Add(&w, expW1)

	var q uint256.Int
	q.Add(&z, &w)
	q.Sub(&q, expQ0)
	mulSrsh96(&q, &w)
	q.Add(&q, expQ1)

	// r is in (0.09, 0.25) * 2^96.
	var r uint256.Int
	sdivFloor(&r, &p, &q)

	// Apply the scale factor, the 2^k range-reduction factor, and the
	// 1e18/2^96 base conversion in one multiply; the intermediate sits in
	// 2^213 basis so the final shift is always non-negative.
	r.Mul(&r, expScale)
	if shift := 195 - k; shift > 255 {
		r.Clear()
	} else {
		r.Rsh(&r, uint(shift))
	}

	return FixedPoint{i: r}, nil
}

// Pow computes x^y as exp(y * ln(x) / 1e18). It inherits Ln's domain
// restriction (x must be positive); y may make the intermediate exponent
// negative, which Exp handles.
func Pow(x, y FixedPoint) (FixedPoint, error) {
	lnx, err := Ln(x)
	if err != nil {
		return FixedPoint{}, err
	}
	var e uint256.Int
	e.Mul(&y.i, &lnx.i)
	sdivFloor(&e, &e, oneU256)
	return Exp(FixedPoint{i: e})
}
