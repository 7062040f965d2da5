package market

import "YieldPricer/internal/fixedpoint"

// StretchedTime carries the remaining term of a position together with
// the pool's time-stretch calibration. DaysRemaining and
// NormalizingConstant are in days (1e18 fixed point); TimeStretch is the
// dimensionless stretch divisor.
type StretchedTime struct {
	DaysRemaining       fixedpoint.FixedPoint
	TimeStretch         fixedpoint.FixedPoint
	NormalizingConstant fixedpoint.FixedPoint
}

// NewStretchedTime builds a StretchedTime from day counts and a stretch.
func NewStretchedTime(daysRemaining, timeStretch, normalizingConstant fixedpoint.FixedPoint) StretchedTime {
	return StretchedTime{
		DaysRemaining:       daysRemaining,
		TimeStretch:         timeStretch,
		NormalizingConstant: normalizingConstant,
	}
}

// NormalizedTime is the remaining term as a fraction of the full term,
// 1.0 at issue and 0 at maturity.
func (t StretchedTime) NormalizedTime() (fixedpoint.FixedPoint, error) {
	return fixedpoint.DivDown(t.DaysRemaining, t.NormalizingConstant)
}

// StretchedTau is the curve exponent tau: the normalized time divided by
// the time stretch.
func (t StretchedTime) StretchedTau() (fixedpoint.FixedPoint, error) {
	norm, err := t.NormalizedTime()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return fixedpoint.DivDown(norm, t.TimeStretch)
}

// FullTerm returns the same calibration pinned to a full remaining term.
// The curve leg of a trade is always priced as if freshly issued; the
// matured fraction is handled by the flat leg.
func (t StretchedTime) FullTerm() StretchedTime {
	return StretchedTime{
		DaysRemaining:       t.NormalizingConstant,
		TimeStretch:         t.TimeStretch,
		NormalizingConstant: t.NormalizingConstant,
	}
}
