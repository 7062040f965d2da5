package market

import "YieldPricer/internal/fixedpoint"

// Calibration constants for the time stretch. The stretch maps a target
// fixed rate to the curve exponent divisor so that pools quoted at that
// rate sit on a comparable part of the curve regardless of term.
var (
	timeStretchNum   = fixedpoint.MustParseDecimal("3.09396")
	timeStretchDenom = fixedpoint.MustParseDecimal("2.789")
	daysPerYear      = fixedpoint.Scaled(365)
)

// CalcTimeStretch derives the time-stretch divisor for a pool targeting
// the given APR (1e18 fraction, e.g. 0.05 for 5%).
func CalcTimeStretch(apr fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	denom, err := fixedpoint.MulDown(timeStretchDenom, apr)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return fixedpoint.DivDown(timeStretchNum, denom)
}

// APRFromSpotPrice converts a bond spot price to the annualized fixed
// rate it implies over the remaining term: (1 - p) / (p * t_years).
// A spot price above one has no defined rate and surfaces as an
// underflow from the kernel.
func APRFromSpotPrice(price fixedpoint.FixedPoint, t StretchedTime) (fixedpoint.FixedPoint, error) {
	years, err := fixedpoint.DivDown(t.DaysRemaining, daysPerYear)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	discount, err := fixedpoint.Sub(fixedpoint.One, price)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	denom, err := fixedpoint.MulDown(price, years)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return fixedpoint.DivDown(discount, denom)
}

// SpotPriceFromAPR inverts APRFromSpotPrice: p = 1 / (1 + r * t_years).
func SpotPriceFromAPR(apr fixedpoint.FixedPoint, t StretchedTime) (fixedpoint.FixedPoint, error) {
	years, err := fixedpoint.DivDown(t.DaysRemaining, daysPerYear)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	growth, err := fixedpoint.MulDown(apr, years)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	denom, err := fixedpoint.Add(fixedpoint.One, growth)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return fixedpoint.DivDown(fixedpoint.One, denom)
}
