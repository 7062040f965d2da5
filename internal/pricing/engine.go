// Package pricing is the fee-adjusted trade engine. A trade is split
// into a flat leg (the matured fraction, redeemed 1:1) and a curve leg
// (the live fraction, priced on the bonding curve at full term); each
// leg carries its own fee, and the legs are summed into a TradeResult.
package pricing

import (
	"YieldPricer/internal/curve"
	"YieldPricer/internal/fixedpoint"
	"YieldPricer/internal/market"
)

// curveLeg is the priced curve portion of a trade.
type curveLeg struct {
	amount     fixedpoint.FixedPoint // curve-portion input or output
	baseline   fixedpoint.FixedPoint // spot-price amount, no slippage or fee
	withoutFee fixedpoint.FixedPoint
	fee        fixedpoint.FixedPoint
	withFee    fixedpoint.FixedPoint
}

// CalcOutGivenIn prices a swap where the trader fixes the amount they
// pay. The matured fraction of the input redeems 1:1 against a working
// copy of the reserves; the rest trades on the curve pinned to the full
// term. Fees reduce the output.
func CalcOutGivenIn(in market.Quantity, pool market.PoolState, t market.StretchedTime) (market.TradeResult, error) {
	flat, working, err := applyFlatLeg(in, pool, t, false)
	if err != nil {
		return market.TradeResult{}, err
	}
	curveAmt, err := fixedpoint.Sub(in.Amount, flat)
	if err != nil {
		return market.TradeResult{}, err
	}

	leg := curveLeg{}
	if !curveAmt.IsZero() {
		fullTau, err := t.FullTerm().StretchedTau()
		if err != nil {
			return market.TradeResult{}, err
		}
		spot, err := curve.SpotPrice(working, fullTau)
		if err != nil {
			return market.TradeResult{}, err
		}
		leg.amount = curveAmt
		leg.withoutFee, err = curve.OutGivenIn(market.Quantity{Amount: curveAmt, Unit: in.Unit}, working, fullTau)
		if err != nil {
			return market.TradeResult{}, err
		}
		switch in.Unit {
		case market.TokenBase:
			// Bonds out: baseline dy/p, fee (1/p - 1)*phi*dy.
			leg.baseline, err = fixedpoint.DivDown(curveAmt, spot)
			if err != nil {
				return market.TradeResult{}, err
			}
			leg.fee, err = inverseSpotFee(spot, pool.CurveFeePercent, curveAmt)
		case market.TokenBond:
			// Base out: baseline dy*p, fee (1 - p)*phi*dy.
			leg.baseline, err = fixedpoint.MulDown(curveAmt, spot)
			if err != nil {
				return market.TradeResult{}, err
			}
			leg.fee, err = discountSpotFee(spot, pool.CurveFeePercent, curveAmt)
		default:
			return market.TradeResult{}, fixedpoint.ErrInvalidInput
		}
		if err != nil {
			return market.TradeResult{}, err
		}
		leg.withFee, err = fixedpoint.Sub(leg.withoutFee, leg.fee)
		if err != nil {
			return market.TradeResult{}, err
		}
	}

	flatFee, err := fixedpoint.MulUp(flat, pool.RedemptionFeePercent)
	if err != nil {
		return market.TradeResult{}, err
	}
	flatWithFee, err := fixedpoint.Sub(flat, flatFee)
	if err != nil {
		return market.TradeResult{}, err
	}

	breakdown, err := sumBreakdown(flat, flatFee, flatWithFee, leg)
	if err != nil {
		return market.TradeResult{}, err
	}
	userOut, err := fixedpoint.Add(flatWithFee, leg.withFee)
	if err != nil {
		return market.TradeResult{}, err
	}

	var user, mkt market.TradeDelta
	switch in.Unit {
	case market.TokenBase:
		user = market.TradeDelta{DBase: fixedpoint.Neg(in.Amount), DBonds: userOut}
		mkt = market.TradeDelta{DBase: in.Amount, DBonds: fixedpoint.Neg(leg.withFee)}
	case market.TokenBond:
		user = market.TradeDelta{DBase: userOut, DBonds: fixedpoint.Neg(in.Amount)}
		mkt = market.TradeDelta{DBase: fixedpoint.Neg(userOut), DBonds: leg.amount}
	}
	return market.TradeResult{UserResult: user, MarketResult: mkt, Breakdown: breakdown}, nil
}

// CalcInGivenOut prices a swap where the trader fixes the amount they
// receive. Fees increase the required input.
func CalcInGivenOut(out market.Quantity, pool market.PoolState, t market.StretchedTime) (market.TradeResult, error) {
	flat, working, err := applyFlatLeg(out, pool, t, true)
	if err != nil {
		return market.TradeResult{}, err
	}
	curveAmt, err := fixedpoint.Sub(out.Amount, flat)
	if err != nil {
		return market.TradeResult{}, err
	}

	leg := curveLeg{}
	if !curveAmt.IsZero() {
		fullTau, err := t.FullTerm().StretchedTau()
		if err != nil {
			return market.TradeResult{}, err
		}
		spot, err := curve.SpotPrice(working, fullTau)
		if err != nil {
			return market.TradeResult{}, err
		}
		leg.amount = curveAmt
		leg.withoutFee, err = curve.InGivenOut(market.Quantity{Amount: curveAmt, Unit: out.Unit}, working, fullTau)
		if err != nil {
			return market.TradeResult{}, err
		}
		switch out.Unit {
		case market.TokenBase:
			// Bonds in: baseline dy/p, fee (1/p - 1)*phi*dy.
			leg.baseline, err = fixedpoint.DivUp(curveAmt, spot)
			if err != nil {
				return market.TradeResult{}, err
			}
			leg.fee, err = inverseSpotFee(spot, pool.CurveFeePercent, curveAmt)
		case market.TokenBond:
			// Base in: baseline dy*p, fee (1 - p)*phi*dy.
			leg.baseline, err = fixedpoint.MulUp(curveAmt, spot)
			if err != nil {
				return market.TradeResult{}, err
			}
			leg.fee, err = discountSpotFee(spot, pool.CurveFeePercent, curveAmt)
		default:
			return market.TradeResult{}, fixedpoint.ErrInvalidInput
		}
		if err != nil {
			return market.TradeResult{}, err
		}
		leg.withFee, err = fixedpoint.Add(leg.withoutFee, leg.fee)
		if err != nil {
			return market.TradeResult{}, err
		}
	}

	flatFee, err := fixedpoint.MulUp(flat, pool.RedemptionFeePercent)
	if err != nil {
		return market.TradeResult{}, err
	}
	flatWithFee, err := fixedpoint.Add(flat, flatFee)
	if err != nil {
		return market.TradeResult{}, err
	}

	breakdown, err := sumBreakdown(flat, flatFee, flatWithFee, leg)
	if err != nil {
		return market.TradeResult{}, err
	}
	userIn, err := fixedpoint.Add(flatWithFee, leg.withFee)
	if err != nil {
		return market.TradeResult{}, err
	}

	var user, mkt market.TradeDelta
	switch out.Unit {
	case market.TokenBase:
		user = market.TradeDelta{DBase: out.Amount, DBonds: fixedpoint.Neg(userIn)}
		mkt = market.TradeDelta{DBase: fixedpoint.Neg(out.Amount), DBonds: leg.withFee}
	case market.TokenBond:
		user = market.TradeDelta{DBase: fixedpoint.Neg(userIn), DBonds: out.Amount}
		mkt = market.TradeDelta{DBase: userIn, DBonds: fixedpoint.Neg(leg.amount)}
	}
	return market.TradeResult{UserResult: user, MarketResult: mkt, Breakdown: breakdown}, nil
}

// applyFlatLeg computes the matured fraction of the trade amount and
// simulates its 1:1 redemption against a working copy of the reserves:
// the leg the trader receives leaves the pool, the one they pay enters
// it. The caller's pool state is never touched.
func applyFlatLeg(q market.Quantity, pool market.PoolState, t market.StretchedTime, outbound bool) (fixedpoint.FixedPoint, market.PoolState, error) {
	norm, err := t.NormalizedTime()
	if err != nil {
		return fixedpoint.FixedPoint{}, market.PoolState{}, err
	}
	matured, err := fixedpoint.Sub(fixedpoint.One, norm)
	if err != nil {
		return fixedpoint.FixedPoint{}, market.PoolState{}, err
	}
	flat, err := fixedpoint.MulDown(q.Amount, matured)
	if err != nil {
		return fixedpoint.FixedPoint{}, market.PoolState{}, err
	}
	dShares, err := fixedpoint.DivDown(flat, pool.SharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, market.PoolState{}, err
	}

	// Four cases collapse to two: base flowing into the pool adds
	// shares and removes bonds, base flowing out does the reverse.
	baseIn := (q.Unit == market.TokenBase) != outbound
	working := pool.Copy()
	if baseIn {
		working.ShareReserves, err = fixedpoint.Add(working.ShareReserves, dShares)
		if err != nil {
			return fixedpoint.FixedPoint{}, market.PoolState{}, err
		}
		working.BondReserves, err = fixedpoint.Sub(working.BondReserves, flat)
	} else {
		working.ShareReserves, err = fixedpoint.Sub(working.ShareReserves, dShares)
		if err != nil {
			return fixedpoint.FixedPoint{}, market.PoolState{}, err
		}
		working.BondReserves, err = fixedpoint.Add(working.BondReserves, flat)
	}
	if err != nil {
		return fixedpoint.FixedPoint{}, market.PoolState{}, err
	}
	return flat, working, nil
}

// inverseSpotFee is (1/p - 1) * phi * amount, the curve fee charged in
// bonds when the base side of the trade is the specified one.
func inverseSpotFee(spot, phi, amount fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	inv, err := fixedpoint.DivDown(fixedpoint.One, spot)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	margin, err := fixedpoint.Sub(inv, fixedpoint.One)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	fee, err := fixedpoint.MulUp(margin, phi)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return fixedpoint.MulUp(fee, amount)
}

// discountSpotFee is (1 - p) * phi * amount, the curve fee charged in
// base when the bond side of the trade is the specified one. A spot
// price above one surfaces as the kernel's underflow: there is no
// meaningful discount to charge a fee on.
func discountSpotFee(spot, phi, amount fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	margin, err := fixedpoint.Sub(fixedpoint.One, spot)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	fee, err := fixedpoint.MulUp(margin, phi)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return fixedpoint.MulUp(fee, amount)
}

// sumBreakdown folds the flat leg and the curve leg into the trade
// breakdown. WithFee - WithoutFee == Fee holds exactly by construction
// of each leg.
func sumBreakdown(flat, flatFee, flatWithFee fixedpoint.FixedPoint, leg curveLeg) (market.TradeBreakdown, error) {
	baseline, err := fixedpoint.Add(flat, leg.baseline)
	if err != nil {
		return market.TradeBreakdown{}, err
	}
	withoutFee, err := fixedpoint.Add(flat, leg.withoutFee)
	if err != nil {
		return market.TradeBreakdown{}, err
	}
	fee, err := fixedpoint.Add(flatFee, leg.fee)
	if err != nil {
		return market.TradeBreakdown{}, err
	}
	withFee, err := fixedpoint.Add(flatWithFee, leg.withFee)
	if err != nil {
		return market.TradeBreakdown{}, err
	}
	return market.TradeBreakdown{
		WithoutFeeOrSlippage: baseline,
		WithoutFee:           withoutFee,
		Fee:                  fee,
		WithFee:              withFee,
	}, nil
}
