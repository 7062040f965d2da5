// Package market defines the pool data model the pricing engine operates
// on: token kinds, reserve snapshots, time-stretch parameters and the
// delta/breakdown types a priced trade produces.
package market

import (
	"fmt"

	"YieldPricer/internal/fixedpoint"
)

// TokenType identifies which side of the pool a quantity denominates.
type TokenType int

const (
	// TokenBase is the underlying asset (shares are base held at the
	// vault share price).
	TokenBase TokenType = iota
	// TokenBond is the fixed-rate bond token that matures 1:1 to base.
	TokenBond
)

func (t TokenType) String() string {
	switch t {
	case TokenBase:
		return "base"
	case TokenBond:
		return "bond"
	default:
		return fmt.Sprintf("token(%d)", int(t))
	}
}

// Quantity is an amount tagged with the token it is denominated in.
type Quantity struct {
	Amount fixedpoint.FixedPoint
	Unit   TokenType
}

// PoolState is a snapshot of the reserves and fee configuration of one
// pool. All amounts are 1e18 fixed point. ShareReserves counts vault
// shares, not base: the base value of the share side is
// ShareReserves * SharePrice.
//
// GovernanceFeePercent rides along for wire parity with upstream
// snapshots; fee accrual to governance happens in the market action
// layer, not during pricing.
type PoolState struct {
	ShareReserves        fixedpoint.FixedPoint
	BondReserves         fixedpoint.FixedPoint
	SharePrice           fixedpoint.FixedPoint
	InitSharePrice       fixedpoint.FixedPoint
	RedemptionFeePercent fixedpoint.FixedPoint
	CurveFeePercent      fixedpoint.FixedPoint
	GovernanceFeePercent fixedpoint.FixedPoint
}

// Copy returns an independent snapshot. The engine prices against a
// working copy so callers' state is never mutated.
func (p PoolState) Copy() PoolState {
	return p
}

// TradeBreakdown decomposes a priced trade. WithoutFeeOrSlippage is the
// spot-price baseline, WithoutFee the curve-solved amount before fees,
// and WithFee the final user amount. WithFee - WithoutFee == Fee holds
// exactly (sign depending on trade direction).
type TradeBreakdown struct {
	WithoutFeeOrSlippage fixedpoint.FixedPoint
	WithoutFee           fixedpoint.FixedPoint
	Fee                  fixedpoint.FixedPoint
	WithFee              fixedpoint.FixedPoint
}

// TradeDelta is a signed change to base and bond holdings. Values use
// the two's-complement interpretation of FixedPoint.
type TradeDelta struct {
	DBase  fixedpoint.FixedPoint
	DBonds fixedpoint.FixedPoint
}

// TradeResult is the full output of pricing one trade: the user-side
// and market-side deltas plus the fee breakdown.
type TradeResult struct {
	UserResult   TradeDelta
	MarketResult TradeDelta
	Breakdown    TradeBreakdown
}
