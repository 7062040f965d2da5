package ingestion_test

import (
	"errors"
	"testing"
	"time"

	"YieldPricer/internal/curve"
	"YieldPricer/internal/fixedpoint"
	"YieldPricer/internal/ingestion"
	"YieldPricer/internal/market"
)

// ============================================================================
// Test: pool state parsing
// ============================================================================

const poolStatePayload = `{
	"pool_id": "steth-365d-001",
	"share_reserves": "100000000000000000000000",
	"bond_reserves": "100000000000000000000000",
	"share_price": "1000000000000000000",
	"init_share_price": "1000000000000000000",
	"redemption_fee_percent": "5000000000000000",
	"curve_fee_percent": "10000000000000000",
	"governance_fee_percent": "100000000000000000",
	"time_stretch": "22186877016851918250",
	"term_days": "365000000000000000000",
	"maturity_ts": 1787000000,
	"timestamp_us": 1756000000000000
}`

func TestParsePoolState_Valid(t *testing.T) {
	snap, err := ingestion.ParsePoolState([]byte(poolStatePayload))
	if err != nil {
		t.Fatalf("ParsePoolState: %v", err)
	}
	if snap.PoolID != "steth-365d-001" {
		t.Errorf("pool_id = %q, want %q", snap.PoolID, "steth-365d-001")
	}
	if !snap.State.ShareReserves.Eq(fixedpoint.Scaled(100_000)) {
		t.Errorf("share_reserves = %s, want 100000", snap.State.ShareReserves)
	}
	if !snap.State.RedemptionFeePercent.Eq(fixedpoint.MustParseDecimal("0.005")) {
		t.Errorf("redemption_fee = %s, want 0.005", snap.State.RedemptionFeePercent)
	}
	if !snap.TermDays.Eq(fixedpoint.Scaled(365)) {
		t.Errorf("term_days = %s, want 365", snap.TermDays)
	}
	if got := snap.Maturity.Unix(); got != 1787000000 {
		t.Errorf("maturity = %d, want 1787000000", got)
	}
	if got := snap.ObservedAt.UnixMicro(); got != 1756000000000000 {
		t.Errorf("observed_at = %d, want 1756000000000000", got)
	}
}

func TestParsePoolState_MissingPoolID(t *testing.T) {
	if _, err := ingestion.ParsePoolState([]byte(`{"share_reserves":"1"}`)); err == nil {
		t.Error("want error for missing pool_id")
	}
}

func TestParsePoolState_BadAmount(t *testing.T) {
	payload := `{"pool_id":"p1","share_reserves":"1.5e18","bond_reserves":"1","share_price":"1",
		"init_share_price":"1","redemption_fee_percent":"0","curve_fee_percent":"0",
		"governance_fee_percent":"0","time_stretch":"1","term_days":"1"}`
	_, err := ingestion.ParsePoolState([]byte(payload))
	if !errors.Is(err, fixedpoint.ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
}

func TestParsePoolState_Garbage(t *testing.T) {
	if _, err := ingestion.ParsePoolState([]byte("not json")); err == nil {
		t.Error("want error for garbage payload")
	}
}

// ============================================================================
// Test: quote request parsing
// ============================================================================

func TestParseQuoteRequest_Valid(t *testing.T) {
	payload := `{
		"request_id": "550e8400-e29b-41d4-a716-446655440000",
		"pool_id": "steth-365d-001",
		"direction": "out_given_in",
		"unit": "base",
		"amount": "1000000000000000000000",
		"as_of_ts": 1756000000
	}`
	req, err := ingestion.ParseQuoteRequest([]byte(payload))
	if err != nil {
		t.Fatalf("ParseQuoteRequest: %v", err)
	}
	if !req.OutGivenIn {
		t.Error("direction should be out_given_in")
	}
	if req.Quantity.Unit != market.TokenBase {
		t.Errorf("unit = %s, want base", req.Quantity.Unit)
	}
	if !req.Quantity.Amount.Eq(fixedpoint.Scaled(1000)) {
		t.Errorf("amount = %s, want 1000", req.Quantity.Amount)
	}
	if req.AsOf.Unix() != 1756000000 {
		t.Errorf("as_of = %d, want 1756000000", req.AsOf.Unix())
	}
}

func TestParseQuoteRequest_DefaultsToNow(t *testing.T) {
	payload := `{"request_id":"550e8400-e29b-41d4-a716-446655440000","pool_id":"p1",
		"direction":"in_given_out","unit":"bond","amount":"1"}`
	req, err := ingestion.ParseQuoteRequest([]byte(payload))
	if err != nil {
		t.Fatalf("ParseQuoteRequest: %v", err)
	}
	if req.OutGivenIn {
		t.Error("direction should be in_given_out")
	}
	if !req.AsOf.IsZero() {
		t.Errorf("as_of = %v, want zero", req.AsOf)
	}
}

func TestParseQuoteRequest_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"bad uuid", `{"request_id":"nope","pool_id":"p1","direction":"out_given_in","unit":"base","amount":"1"}`},
		{"bad direction", `{"request_id":"550e8400-e29b-41d4-a716-446655440000","pool_id":"p1","direction":"sideways","unit":"base","amount":"1"}`},
		{"bad unit", `{"request_id":"550e8400-e29b-41d4-a716-446655440000","pool_id":"p1","direction":"out_given_in","unit":"shares","amount":"1"}`},
		{"bad amount", `{"request_id":"550e8400-e29b-41d4-a716-446655440000","pool_id":"p1","direction":"out_given_in","unit":"base","amount":"12.3"}`},
		{"missing pool", `{"request_id":"550e8400-e29b-41d4-a716-446655440000","direction":"out_given_in","unit":"base","amount":"1"}`},
	}
	for _, c := range cases {
		if _, err := ingestion.ParseQuoteRequest([]byte(c.payload)); err == nil {
			t.Errorf("%s: want error", c.name)
		}
	}
}

// ============================================================================
// Test: error code mapping
// ============================================================================

func TestErrorCode_StableVocabulary(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fixedpoint.ErrOverflow, "overflow"},
		{fixedpoint.ErrUnderflow, "underflow"},
		{fixedpoint.ErrInvalidInput, "invalid_input"},
		{fixedpoint.ErrDomain, "domain"},
		{fixedpoint.ErrInvalidExponent, "invalid_exponent"},
		{curve.ErrNegativeOrZeroInput, "negative_or_zero_input"},
		{ingestion.ErrUnknownPool, "unknown_pool"},
		{errors.New("anything else"), "bad_request"},
	}
	for _, c := range cases {
		if got := ingestion.ErrorCode(c.err); got != c.want {
			t.Errorf("ErrorCode(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestErrorCode_Wrapped(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), fixedpoint.ErrUnderflow)
	if got := ingestion.ErrorCode(wrapped); got != "underflow" {
		t.Errorf("got %q, want %q", got, "underflow")
	}
}

// ============================================================================
// Test: registry
// ============================================================================

func TestRegistry_PutAndGet(t *testing.T) {
	r := ingestion.NewRegistry()
	snap, err := ingestion.ParsePoolState([]byte(poolStatePayload))
	if err != nil {
		t.Fatalf("ParsePoolState: %v", err)
	}
	if !r.Put(snap) {
		t.Fatal("Put rejected a fresh snapshot")
	}
	got, ok := r.Get("steth-365d-001")
	if !ok {
		t.Fatal("Get: pool missing")
	}
	if !got.State.BondReserves.Eq(snap.State.BondReserves) {
		t.Errorf("bond reserves = %s, want %s", got.State.BondReserves, snap.State.BondReserves)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestRegistry_StaleSnapshotRejected(t *testing.T) {
	r := ingestion.NewRegistry()
	fresh := ingestion.PoolSnapshot{PoolID: "p1", ObservedAt: time.UnixMicro(2000)}
	stale := ingestion.PoolSnapshot{PoolID: "p1", ObservedAt: time.UnixMicro(1000)}

	if !r.Put(fresh) {
		t.Fatal("fresh snapshot rejected")
	}
	if r.Put(stale) {
		t.Error("stale snapshot accepted over a newer one")
	}
	got, _ := r.Get("p1")
	if !got.ObservedAt.Equal(fresh.ObservedAt) {
		t.Errorf("registry kept %v, want %v", got.ObservedAt, fresh.ObservedAt)
	}
}

func TestRegistry_UnknownPool(t *testing.T) {
	r := ingestion.NewRegistry()
	if _, ok := r.Get("nope"); ok {
		t.Error("Get returned a snapshot for an unknown pool")
	}
}
