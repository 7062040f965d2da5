package market

import "YieldPricer/internal/fixedpoint"

// Wallet tracks a trader's signed base and bond holdings. Deltas from
// priced trades apply directly; negative balances are legitimate here
// (short exposure), so arithmetic is signed.
type Wallet struct {
	Base  fixedpoint.FixedPoint
	Bonds fixedpoint.FixedPoint
}

// Apply folds a trade delta into the wallet.
func (w Wallet) Apply(d TradeDelta) (Wallet, error) {
	base, err := fixedpoint.SignedAdd(w.Base, d.DBase)
	if err != nil {
		return Wallet{}, err
	}
	bonds, err := fixedpoint.SignedAdd(w.Bonds, d.DBonds)
	if err != nil {
		return Wallet{}, err
	}
	return Wallet{Base: base, Bonds: bonds}, nil
}

// ApplyDelta folds the market side of a trade into the pool snapshot.
// The base delta moves share reserves at the current share price; the
// bond delta moves bond reserves directly. Returns the updated snapshot
// without touching the receiver.
func (p PoolState) ApplyDelta(d TradeDelta) (PoolState, error) {
	out := p.Copy()

	dShares, err := signedDivDown(d.DBase, p.SharePrice)
	if err != nil {
		return PoolState{}, err
	}
	out.ShareReserves, err = fixedpoint.SignedAdd(out.ShareReserves, dShares)
	if err != nil {
		return PoolState{}, err
	}
	out.BondReserves, err = fixedpoint.SignedAdd(out.BondReserves, d.DBonds)
	if err != nil {
		return PoolState{}, err
	}
	if out.ShareReserves.IsNegative() || out.BondReserves.IsNegative() {
		return PoolState{}, fixedpoint.ErrUnderflow
	}
	return out, nil
}

// signedDivDown divides a signed value by a positive divisor, rounding
// the magnitude down.
func signedDivDown(a, b fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	if a.IsNegative() {
		q, err := fixedpoint.DivDown(fixedpoint.Abs(a), b)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		return fixedpoint.Neg(q), nil
	}
	return fixedpoint.DivDown(a, b)
}
