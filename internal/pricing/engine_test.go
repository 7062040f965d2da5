package pricing_test

import (
	"errors"
	"testing"

	"YieldPricer/internal/fixedpoint"
	"YieldPricer/internal/market"
	"YieldPricer/internal/pricing"
)

func fp(s string) fixedpoint.FixedPoint { return fixedpoint.MustParseDecimal(s) }

// Balanced 100k/100k pool with a 0.5% redemption fee and a 1% curve fee,
// calibrated for 5% APR over a one-year term.
func testPool() market.PoolState {
	return market.PoolState{
		ShareReserves:        fp("100000"),
		BondReserves:         fp("100000"),
		SharePrice:           fixedpoint.One,
		InitSharePrice:       fixedpoint.One,
		RedemptionFeePercent: fp("0.005"),
		CurveFeePercent:      fp("0.01"),
	}
}

func testTime(days string) market.StretchedTime {
	return market.NewStretchedTime(fp(days), fp("22.18687701685191825"), fp("365"))
}

// ============================================================================
// Test: out given in, full term (pure curve leg)
// ============================================================================

func TestCalcOutGivenIn_FullTermBaseIn(t *testing.T) {
	res, err := pricing.CalcOutGivenIn(
		market.Quantity{Amount: fp("1000"), Unit: market.TokenBase},
		testPool(), testTime("365"),
	)
	if err != nil {
		t.Fatalf("CalcOutGivenIn: %v", err)
	}

	wantBreakdown(t, res.Breakdown, market.TradeBreakdown{
		WithoutFeeOrSlippage: fp("1050.762730411582293828"),
		WithoutFee:           fp("1050.443762341025064012"),
		Fee:                  fp("0.507627304115823"),
		WithFee:              fp("1049.936135036909241012"),
	})
	wantDelta(t, "user", res.UserResult, fixedpoint.Neg(fp("1000")), fp("1049.936135036909241012"))
	wantDelta(t, "market", res.MarketResult, fp("1000"), fixedpoint.Neg(fp("1049.936135036909241012")))
}

func TestCalcOutGivenIn_FullTermBondIn(t *testing.T) {
	res, err := pricing.CalcOutGivenIn(
		market.Quantity{Amount: fp("1000"), Unit: market.TokenBond},
		testPool(), testTime("365"),
	)
	if err != nil {
		t.Fatalf("CalcOutGivenIn: %v", err)
	}

	wantBreakdown(t, res.Breakdown, market.TradeBreakdown{
		WithoutFeeOrSlippage: fp("951.689635592900594"),
		WithoutFee:           fp("951.413556932908336314"),
		Fee:                  fp("0.483103644070995"),
		WithFee:              fp("950.930453288837341314"),
	})
	wantDelta(t, "user", res.UserResult, fp("950.930453288837341314"), fixedpoint.Neg(fp("1000")))
	wantDelta(t, "market", res.MarketResult, fixedpoint.Neg(fp("950.930453288837341314")), fp("1000"))
}

// ============================================================================
// Test: in given out, full term
// ============================================================================

func TestCalcInGivenOut_FullTermBondOut(t *testing.T) {
	res, err := pricing.CalcInGivenOut(
		market.Quantity{Amount: fp("1000"), Unit: market.TokenBond},
		testPool(), testTime("365"),
	)
	if err != nil {
		t.Fatalf("CalcInGivenOut: %v", err)
	}

	wantBreakdown(t, res.Breakdown, market.TradeBreakdown{
		WithoutFeeOrSlippage: fp("951.689635592900594"),
		WithoutFee:           fp("951.964763324288900589"),
		Fee:                  fp("0.483103644070995"),
		WithFee:              fp("952.447866968359895589"),
	})
	wantDelta(t, "user", res.UserResult, fixedpoint.Neg(fp("952.447866968359895589")), fp("1000"))
	wantDelta(t, "market", res.MarketResult, fp("952.447866968359895589"), fixedpoint.Neg(fp("1000")))
}

// ============================================================================
// Test: mid term, flat and curve legs combined
// ============================================================================

func TestCalcOutGivenIn_MidTermBaseIn(t *testing.T) {
	res, err := pricing.CalcOutGivenIn(
		market.Quantity{Amount: fp("1000"), Unit: market.TokenBase},
		testPool(), testTime("182.5"),
	)
	if err != nil {
		t.Fatalf("CalcOutGivenIn: %v", err)
	}

	wantBreakdown(t, res.Breakdown, market.TradeBreakdown{
		WithoutFeeOrSlippage: fp("1025.223785431848201486"),
		WithoutFee:           fp("1025.144236406479613256"),
		Fee:                  fp("2.7522378543184825"),
		WithFee:              fp("1022.391998552161130756"),
	})
	wantDelta(t, "user", res.UserResult, fixedpoint.Neg(fp("1000")), fp("1022.391998552161130756"))
	// Only the curve leg's bonds leave the reserves; the matured half
	// was redeemed against the working copy.
	wantDelta(t, "market", res.MarketResult, fp("1000"), fixedpoint.Neg(fp("524.891998552161130756")))
}

// ============================================================================
// Test: matured position (pure flat leg, solver never runs)
// ============================================================================

func TestCalcOutGivenIn_MaturedBaseIn(t *testing.T) {
	res, err := pricing.CalcOutGivenIn(
		market.Quantity{Amount: fp("1000"), Unit: market.TokenBase},
		testPool(), testTime("0"),
	)
	if err != nil {
		t.Fatalf("CalcOutGivenIn: %v", err)
	}

	wantBreakdown(t, res.Breakdown, market.TradeBreakdown{
		WithoutFeeOrSlippage: fp("1000"),
		WithoutFee:           fp("1000"),
		Fee:                  fp("5"),
		WithFee:              fp("995"),
	})
	wantDelta(t, "user", res.UserResult, fixedpoint.Neg(fp("1000")), fp("995"))
	wantDelta(t, "market", res.MarketResult, fp("1000"), fixedpoint.FixedPoint{})
}

func TestCalcInGivenOut_MaturedBondOut(t *testing.T) {
	res, err := pricing.CalcInGivenOut(
		market.Quantity{Amount: fp("1000"), Unit: market.TokenBond},
		testPool(), testTime("0"),
	)
	if err != nil {
		t.Fatalf("CalcInGivenOut: %v", err)
	}

	wantBreakdown(t, res.Breakdown, market.TradeBreakdown{
		WithoutFeeOrSlippage: fp("1000"),
		WithoutFee:           fp("1000"),
		Fee:                  fp("5"),
		WithFee:              fp("1005"),
	})
	wantDelta(t, "user", res.UserResult, fixedpoint.Neg(fp("1005")), fp("1000"))
	wantDelta(t, "market", res.MarketResult, fp("1005"), fixedpoint.FixedPoint{})
}

// ============================================================================
// Test: invariants that must hold on every priced trade
// ============================================================================

func TestEngine_FeeReconciliation(t *testing.T) {
	for _, days := range []string{"365", "182.5", "30", "0"} {
		res, err := pricing.CalcOutGivenIn(
			market.Quantity{Amount: fp("2500"), Unit: market.TokenBase},
			testPool(), testTime(days),
		)
		if err != nil {
			t.Fatalf("CalcOutGivenIn(%s days): %v", days, err)
		}
		// Output direction: without_fee - with_fee == fee, exactly.
		diff, err := fixedpoint.Sub(res.Breakdown.WithoutFee, res.Breakdown.WithFee)
		if err != nil {
			t.Fatalf("Sub: %v", err)
		}
		if !diff.Eq(res.Breakdown.Fee) {
			t.Errorf("%s days: without - with = %s, fee = %s", days, diff.Dec(), res.Breakdown.Fee.Dec())
		}

		res, err = pricing.CalcInGivenOut(
			market.Quantity{Amount: fp("2500"), Unit: market.TokenBond},
			testPool(), testTime(days),
		)
		if err != nil {
			t.Fatalf("CalcInGivenOut(%s days): %v", days, err)
		}
		// Input direction: with_fee - without_fee == fee, exactly.
		diff, err = fixedpoint.Sub(res.Breakdown.WithFee, res.Breakdown.WithoutFee)
		if err != nil {
			t.Fatalf("Sub: %v", err)
		}
		if !diff.Eq(res.Breakdown.Fee) {
			t.Errorf("%s days: with - without = %s, fee = %s", days, diff.Dec(), res.Breakdown.Fee.Dec())
		}
	}
}

func TestEngine_SpecifiedSideConservation(t *testing.T) {
	// The side of the trade the caller fixes moves user and market by
	// exactly opposite amounts.
	res, err := pricing.CalcOutGivenIn(
		market.Quantity{Amount: fp("1000"), Unit: market.TokenBase},
		testPool(), testTime("182.5"),
	)
	if err != nil {
		t.Fatalf("CalcOutGivenIn: %v", err)
	}
	if !res.UserResult.DBase.Eq(fixedpoint.Neg(res.MarketResult.DBase)) {
		t.Errorf("base legs not conservative: user %s, market %s",
			res.UserResult.DBase, res.MarketResult.DBase)
	}

	// At full term the whole order rides the curve, so the specified
	// bond side conserves outright.
	res, err = pricing.CalcInGivenOut(
		market.Quantity{Amount: fp("1000"), Unit: market.TokenBond},
		testPool(), testTime("365"),
	)
	if err != nil {
		t.Fatalf("CalcInGivenOut: %v", err)
	}
	if !res.UserResult.DBonds.Eq(fixedpoint.Neg(res.MarketResult.DBonds)) {
		t.Errorf("bond legs not conservative: user %s, market %s",
			res.UserResult.DBonds, res.MarketResult.DBonds)
	}

	// Mid-term, only the curve leg's bonds touch the reserves; the
	// matured portion redeems flat without entering them. User and
	// market bond moves therefore differ by exactly the flat share of
	// the order: 1000 * (1 - 0.5) = 500.
	res, err = pricing.CalcInGivenOut(
		market.Quantity{Amount: fp("1000"), Unit: market.TokenBond},
		testPool(), testTime("182.5"),
	)
	if err != nil {
		t.Fatalf("CalcInGivenOut: %v", err)
	}
	gap, err := fixedpoint.SignedAdd(res.UserResult.DBonds, res.MarketResult.DBonds)
	if err != nil {
		t.Fatalf("SignedAdd: %v", err)
	}
	if !gap.Eq(fp("500")) {
		t.Errorf("user+market bond delta = %s, want the 500 flat portion", gap.Dec())
	}
}

func TestEngine_CallerPoolStateUntouched(t *testing.T) {
	pool := testPool()
	before := pool
	if _, err := pricing.CalcOutGivenIn(
		market.Quantity{Amount: fp("1000"), Unit: market.TokenBond},
		pool, testTime("182.5"),
	); err != nil {
		t.Fatalf("CalcOutGivenIn: %v", err)
	}
	if pool != before {
		t.Error("engine mutated the caller's pool state")
	}
}

func TestEngine_MonotoneOutput(t *testing.T) {
	var prev fixedpoint.FixedPoint
	for _, amt := range []string{"100", "1000", "5000", "20000"} {
		res, err := pricing.CalcOutGivenIn(
			market.Quantity{Amount: fp(amt), Unit: market.TokenBase},
			testPool(), testTime("365"),
		)
		if err != nil {
			t.Fatalf("CalcOutGivenIn(%s): %v", amt, err)
		}
		if !res.Breakdown.WithFee.Gt(prev) {
			t.Errorf("with_fee %s for input %s not greater than previous %s",
				res.Breakdown.WithFee, amt, prev)
		}
		prev = res.Breakdown.WithFee
	}
}

// A pool whose share side outweighs its bonds prices above par. There is
// no meaningful discount to charge the curve fee on, so the engine must
// surface the kernel underflow rather than clamp.
func TestEngine_SpotPriceAbovePar(t *testing.T) {
	pool := testPool()
	pool.BondReserves = fp("1000")
	pool.InitSharePrice = fp("1.1")

	_, err := pricing.CalcOutGivenIn(
		market.Quantity{Amount: fp("1000"), Unit: market.TokenBond},
		pool, testTime("365"),
	)
	if !errors.Is(err, fixedpoint.ErrUnderflow) {
		t.Errorf("got %v, want ErrUnderflow", err)
	}
}

// ============================================================================
// helpers
// ============================================================================

func wantBreakdown(t *testing.T, got, want market.TradeBreakdown) {
	t.Helper()
	if !got.WithoutFeeOrSlippage.Eq(want.WithoutFeeOrSlippage) {
		t.Errorf("without_fee_or_slippage: got %s, want %s",
			got.WithoutFeeOrSlippage.Dec(), want.WithoutFeeOrSlippage.Dec())
	}
	if !got.WithoutFee.Eq(want.WithoutFee) {
		t.Errorf("without_fee: got %s, want %s", got.WithoutFee.Dec(), want.WithoutFee.Dec())
	}
	if !got.Fee.Eq(want.Fee) {
		t.Errorf("fee: got %s, want %s", got.Fee.Dec(), want.Fee.Dec())
	}
	if !got.WithFee.Eq(want.WithFee) {
		t.Errorf("with_fee: got %s, want %s", got.WithFee.Dec(), want.WithFee.Dec())
	}
}

func wantDelta(t *testing.T, side string, got market.TradeDelta, dBase, dBonds fixedpoint.FixedPoint) {
	t.Helper()
	if !got.DBase.Eq(dBase) {
		t.Errorf("%s d_base: got %s, want %s", side, got.DBase.Dec(), dBase.Dec())
	}
	if !got.DBonds.Eq(dBonds) {
		t.Errorf("%s d_bonds: got %s, want %s", side, got.DBonds.Dec(), dBonds.Dec())
	}
}
