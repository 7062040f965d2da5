// Package curve solves the YieldSpace bonding-curve invariant for spot
// prices and single-sided trade amounts. It operates on reserve snapshots
// and a stretched-time exponent; fees and flat/curve decomposition live
// one layer up in the pricing engine.
package curve

import (
	"errors"

	"YieldPricer/internal/fixedpoint"
	"YieldPricer/internal/market"
)

// ErrNegativeOrZeroInput signals that a trade would drive a reserve
// quantity to zero or below, leaving the fractional power in the
// invariant undefined. Depleted pools and oversized trades surface here.
var ErrNegativeOrZeroInput = errors.New("curve: negative or zero input to fractional power")

// TotalSupplyApprox approximates the pool's LP total supply as
// y + c*z. The invariant and spot price use y + s as the effective bond
// side, so s never needs to be tracked exactly here.
func TotalSupplyApprox(p market.PoolState) (fixedpoint.FixedPoint, error) {
	base, err := fixedpoint.MulDown(p.SharePrice, p.ShareReserves)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return fixedpoint.Add(p.BondReserves, base)
}

// bondSide returns y + s = 2y + c*z.
func bondSide(p market.PoolState) (fixedpoint.FixedPoint, error) {
	s, err := TotalSupplyApprox(p)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return fixedpoint.Add(p.BondReserves, s)
}

// invariantK evaluates k = (c/mu)*(mu*z)^te + (y+s)^te with
// te = 1 - tau. Trades must leave k unchanged; the solvers below invert
// this equality for the unknown side.
func invariantK(p market.PoolState, te fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	cDivMu, err := fixedpoint.DivDown(p.SharePrice, p.InitSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	muZ, err := fixedpoint.MulDown(p.InitSharePrice, p.ShareReserves)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	shareTerm, err := fixedpoint.Pow(muZ, te)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	shareTerm, err = fixedpoint.MulDown(cDivMu, shareTerm)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	ys, err := bondSide(p)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	bondTerm, err := fixedpoint.Pow(ys, te)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return fixedpoint.Add(shareTerm, bondTerm)
}

// SpotPrice returns the instantaneous bond price in base,
// ((mu*z)/(y+s))^tau. Healthy pools price below one; the caller decides
// what an above-one price means.
func SpotPrice(p market.PoolState, tau fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	if p.ShareReserves.IsZero() || p.BondReserves.IsZero() {
		return fixedpoint.FixedPoint{}, ErrNegativeOrZeroInput
	}
	muZ, err := fixedpoint.MulDown(p.InitSharePrice, p.ShareReserves)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	ys, err := bondSide(p)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	ratio, err := fixedpoint.DivDown(muZ, ys)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	if ratio.IsZero() {
		return fixedpoint.FixedPoint{}, ErrNegativeOrZeroInput
	}
	return fixedpoint.Pow(ratio, tau)
}

// OutGivenIn solves the invariant for the amount of the opposite token a
// trade of amountIn yields. The result rounds down (the pool never pays
// out a rounding unit).
func OutGivenIn(in market.Quantity, p market.PoolState, tau fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	if in.Amount.IsZero() {
		return fixedpoint.FixedPoint{}, nil
	}
	if p.ShareReserves.IsZero() || p.BondReserves.IsZero() {
		return fixedpoint.FixedPoint{}, ErrNegativeOrZeroInput
	}
	te, err := fixedpoint.Sub(fixedpoint.One, tau)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	invTe, err := fixedpoint.DivUp(fixedpoint.One, te)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	k, err := invariantK(p, te)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	ys, err := bondSide(p)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	switch in.Unit {
	case market.TokenBase:
		// Bonds out: y + s - (k - (c/mu)*(mu*(z + dz))^te)^(1/te).
		dShares, err := fixedpoint.DivDown(in.Amount, p.SharePrice)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		newZ, err := fixedpoint.Add(p.ShareReserves, dShares)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		shareTerm, err := scaledShareTerm(p, newZ, te)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		rhs, err := fixedpoint.Sub(k, shareTerm)
		if err != nil || rhs.IsZero() {
			return fixedpoint.FixedPoint{}, ErrNegativeOrZeroInput
		}
		newYS, err := fixedpoint.Pow(rhs, invTe)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		return fixedpoint.Sub(ys, newYS)

	case market.TokenBond:
		// Base out: c*(z - (1/mu)*((mu/c)*(k - (y+s+dy)^te))^(1/te)).
		newYS, err := fixedpoint.Add(ys, in.Amount)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		bondTerm, err := fixedpoint.Pow(newYS, te)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		rhs, err := fixedpoint.Sub(k, bondTerm)
		if err != nil || rhs.IsZero() {
			return fixedpoint.FixedPoint{}, ErrNegativeOrZeroInput
		}
		muDivC, err := fixedpoint.DivDown(p.InitSharePrice, p.SharePrice)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		scaled, err := fixedpoint.MulDown(muDivC, rhs)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		if scaled.IsZero() {
			return fixedpoint.FixedPoint{}, ErrNegativeOrZeroInput
		}
		inner, err := fixedpoint.Pow(scaled, invTe)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		newZ, err := fixedpoint.DivDown(inner, p.InitSharePrice)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		dShares, err := fixedpoint.Sub(p.ShareReserves, newZ)
		if err != nil {
			return fixedpoint.FixedPoint{}, ErrNegativeOrZeroInput
		}
		return fixedpoint.MulDown(p.SharePrice, dShares)

	default:
		return fixedpoint.FixedPoint{}, fixedpoint.ErrInvalidInput
	}
}

// InGivenOut solves the invariant for the amount of the opposite token a
// trader must provide to withdraw amountOut. The result rounds up (the
// pool never undercharges a rounding unit).
func InGivenOut(out market.Quantity, p market.PoolState, tau fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	if out.Amount.IsZero() {
		return fixedpoint.FixedPoint{}, nil
	}
	if p.ShareReserves.IsZero() || p.BondReserves.IsZero() {
		return fixedpoint.FixedPoint{}, ErrNegativeOrZeroInput
	}
	te, err := fixedpoint.Sub(fixedpoint.One, tau)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	invTe, err := fixedpoint.DivUp(fixedpoint.One, te)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	k, err := invariantK(p, te)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	ys, err := bondSide(p)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	switch out.Unit {
	case market.TokenBase:
		// Bonds in: (k - (c/mu)*(mu*(z - dz))^te)^(1/te) - (y+s).
		dShares, err := fixedpoint.DivUp(out.Amount, p.SharePrice)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		newZ, err := fixedpoint.Sub(p.ShareReserves, dShares)
		if err != nil || newZ.IsZero() {
			return fixedpoint.FixedPoint{}, ErrNegativeOrZeroInput
		}
		shareTerm, err := scaledShareTerm(p, newZ, te)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		rhs, err := fixedpoint.Sub(k, shareTerm)
		if err != nil || rhs.IsZero() {
			return fixedpoint.FixedPoint{}, ErrNegativeOrZeroInput
		}
		newYS, err := fixedpoint.Pow(rhs, invTe)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		return fixedpoint.Sub(newYS, ys)

	case market.TokenBond:
		// Base in: c*((1/mu)*((mu/c)*(k - (y+s-dy)^te))^(1/te) - z).
		newYS, err := fixedpoint.Sub(ys, out.Amount)
		if err != nil || newYS.IsZero() {
			return fixedpoint.FixedPoint{}, ErrNegativeOrZeroInput
		}
		bondTerm, err := fixedpoint.Pow(newYS, te)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		rhs, err := fixedpoint.Sub(k, bondTerm)
		if err != nil || rhs.IsZero() {
			return fixedpoint.FixedPoint{}, ErrNegativeOrZeroInput
		}
		muDivC, err := fixedpoint.DivUp(p.InitSharePrice, p.SharePrice)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		scaled, err := fixedpoint.MulUp(muDivC, rhs)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		inner, err := fixedpoint.Pow(scaled, invTe)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		newZ, err := fixedpoint.DivUp(inner, p.InitSharePrice)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		dShares, err := fixedpoint.Sub(newZ, p.ShareReserves)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		return fixedpoint.MulUp(p.SharePrice, dShares)

	default:
		return fixedpoint.FixedPoint{}, fixedpoint.ErrInvalidInput
	}
}

// scaledShareTerm computes (c/mu)*(mu*newZ)^te.
func scaledShareTerm(p market.PoolState, newZ, te fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	muZ, err := fixedpoint.MulDown(p.InitSharePrice, newZ)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	if muZ.IsZero() {
		return fixedpoint.FixedPoint{}, ErrNegativeOrZeroInput
	}
	powed, err := fixedpoint.Pow(muZ, te)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	cDivMu, err := fixedpoint.DivDown(p.SharePrice, p.InitSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return fixedpoint.MulDown(cDivMu, powed)
}
