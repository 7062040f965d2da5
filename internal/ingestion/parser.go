package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"YieldPricer/internal/curve"
	"YieldPricer/internal/fixedpoint"
	"YieldPricer/internal/market"
)

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS.
// Field names use snake_case to match upstream producers. All amounts
// are raw 1e18-scaled decimal integers carried as strings; floats never
// cross this boundary.

type poolStateJSON struct {
	PoolID               string `json:"pool_id"`
	ShareReserves        string `json:"share_reserves"`
	BondReserves         string `json:"bond_reserves"`
	SharePrice           string `json:"share_price"`
	InitSharePrice       string `json:"init_share_price"`
	RedemptionFeePercent string `json:"redemption_fee_percent"`
	CurveFeePercent      string `json:"curve_fee_percent"`
	GovernanceFeePercent string `json:"governance_fee_percent"`
	TimeStretch          string `json:"time_stretch"`
	TermDays             string `json:"term_days"`
	MaturityTs           int64  `json:"maturity_ts"`
	TimestampUs          int64  `json:"timestamp_us"`
}

// PoolSnapshot is a parsed pool-state update: the reserve state the
// pricing engine consumes plus the term parameters the quote service
// derives remaining time from.
type PoolSnapshot struct {
	PoolID      string
	State       market.PoolState
	TimeStretch fixedpoint.FixedPoint
	TermDays    fixedpoint.FixedPoint
	Maturity    time.Time
	ObservedAt  time.Time
}

// ParsePoolState converts a pool-state payload into a PoolSnapshot.
func ParsePoolState(data []byte) (PoolSnapshot, error) {
	var j poolStateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return PoolSnapshot{}, fmt.Errorf("parse PoolState: %w", err)
	}
	if j.PoolID == "" {
		return PoolSnapshot{}, fmt.Errorf("parse PoolState: missing pool_id")
	}

	snap := PoolSnapshot{
		PoolID:     j.PoolID,
		Maturity:   time.Unix(j.MaturityTs, 0).UTC(),
		ObservedAt: time.UnixMicro(j.TimestampUs).UTC(),
	}
	fields := []struct {
		name string
		src  string
		dst  *fixedpoint.FixedPoint
	}{
		{"share_reserves", j.ShareReserves, &snap.State.ShareReserves},
		{"bond_reserves", j.BondReserves, &snap.State.BondReserves},
		{"share_price", j.SharePrice, &snap.State.SharePrice},
		{"init_share_price", j.InitSharePrice, &snap.State.InitSharePrice},
		{"redemption_fee_percent", j.RedemptionFeePercent, &snap.State.RedemptionFeePercent},
		{"curve_fee_percent", j.CurveFeePercent, &snap.State.CurveFeePercent},
		{"governance_fee_percent", j.GovernanceFeePercent, &snap.State.GovernanceFeePercent},
		{"time_stretch", j.TimeStretch, &snap.TimeStretch},
		{"term_days", j.TermDays, &snap.TermDays},
	}
	for _, f := range fields {
		v, err := fixedpoint.ParseDec(f.src)
		if err != nil {
			return PoolSnapshot{}, fmt.Errorf("parse PoolState %s %q: %w", f.name, f.src, err)
		}
		*f.dst = v
	}
	return snap, nil
}

// Quote request/response wire formats. Requests arrive on the
// request/reply subject; the same response shape is published on the
// computed-quotes stream.

type quoteRequestJSON struct {
	RequestID string `json:"request_id"`
	PoolID    string `json:"pool_id"`
	Direction string `json:"direction"` // "out_given_in" or "in_given_out"
	Unit      string `json:"unit"`      // "base" or "bond"
	Amount    string `json:"amount"`
	AsOfTs    int64  `json:"as_of_ts,omitempty"`
}

// QuoteRequest is a parsed pricing request.
type QuoteRequest struct {
	RequestID  uuid.UUID
	PoolID     string
	OutGivenIn bool
	Quantity   market.Quantity
	AsOf       time.Time // zero means "now"
}

// ParseQuoteRequest converts a quote-request payload.
func ParseQuoteRequest(data []byte) (QuoteRequest, error) {
	var j quoteRequestJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return QuoteRequest{}, fmt.Errorf("parse QuoteRequest: %w", err)
	}
	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return QuoteRequest{}, fmt.Errorf("parse request_id: %w", err)
	}
	if j.PoolID == "" {
		return QuoteRequest{}, fmt.Errorf("parse QuoteRequest: missing pool_id")
	}

	req := QuoteRequest{RequestID: requestID, PoolID: j.PoolID}
	switch j.Direction {
	case "out_given_in":
		req.OutGivenIn = true
	case "in_given_out":
		req.OutGivenIn = false
	default:
		return QuoteRequest{}, fmt.Errorf("parse direction: unknown %q", j.Direction)
	}
	switch j.Unit {
	case "base":
		req.Quantity.Unit = market.TokenBase
	case "bond":
		req.Quantity.Unit = market.TokenBond
	default:
		return QuoteRequest{}, fmt.Errorf("parse unit: unknown %q", j.Unit)
	}
	req.Quantity.Amount, err = fixedpoint.ParseDec(j.Amount)
	if err != nil {
		return QuoteRequest{}, fmt.Errorf("parse amount %q: %w", j.Amount, err)
	}
	if j.AsOfTs != 0 {
		req.AsOf = time.Unix(j.AsOfTs, 0).UTC()
	}
	return req, nil
}

type tradeDeltaJSON struct {
	DBase  string `json:"d_base"`
	DBonds string `json:"d_bonds"`
}

type breakdownJSON struct {
	WithoutFeeOrSlippage string `json:"without_fee_or_slippage"`
	WithoutFee           string `json:"without_fee"`
	Fee                  string `json:"fee"`
	WithFee              string `json:"with_fee"`
}

type quoteResponseJSON struct {
	RequestID     string          `json:"request_id"`
	PoolID        string          `json:"pool_id"`
	OK            bool            `json:"ok"`
	Error         string          `json:"error,omitempty"`
	Breakdown     *breakdownJSON  `json:"breakdown,omitempty"`
	UserDelta     *tradeDeltaJSON `json:"user_delta,omitempty"`
	MarketDelta   *tradeDeltaJSON `json:"market_delta,omitempty"`
	DaysRemaining string          `json:"days_remaining,omitempty"`
	TimestampUs   int64           `json:"timestamp_us"`
}

// EncodeQuoteResponse renders a successful pricing result.
func EncodeQuoteResponse(req QuoteRequest, res market.TradeResult, daysRemaining fixedpoint.FixedPoint, now time.Time) ([]byte, error) {
	return json.Marshal(quoteResponseJSON{
		RequestID: req.RequestID.String(),
		PoolID:    req.PoolID,
		OK:        true,
		Breakdown: &breakdownJSON{
			WithoutFeeOrSlippage: res.Breakdown.WithoutFeeOrSlippage.Dec(),
			WithoutFee:           res.Breakdown.WithoutFee.Dec(),
			Fee:                  res.Breakdown.Fee.Dec(),
			WithFee:              res.Breakdown.WithFee.Dec(),
		},
		UserDelta: &tradeDeltaJSON{
			DBase:  res.UserResult.DBase.Dec(),
			DBonds: res.UserResult.DBonds.Dec(),
		},
		MarketDelta: &tradeDeltaJSON{
			DBase:  res.MarketResult.DBase.Dec(),
			DBonds: res.MarketResult.DBonds.Dec(),
		},
		DaysRemaining: daysRemaining.Dec(),
		TimestampUs:   now.UnixMicro(),
	})
}

// EncodeQuoteError renders a failed pricing result with a stable error
// code; consumers never parse message text.
func EncodeQuoteError(requestID, poolID string, err error, now time.Time) ([]byte, error) {
	return json.Marshal(quoteResponseJSON{
		RequestID:   requestID,
		PoolID:      poolID,
		OK:          false,
		Error:       ErrorCode(err),
		TimestampUs: now.UnixMicro(),
	})
}

// ErrUnknownPool is returned when a quote names a pool the registry has
// no snapshot for.
var ErrUnknownPool = errors.New("ingestion: unknown pool")

// ErrorCode maps an error to its stable wire code. Kernel and solver
// errors keep their distinct vocabulary across the boundary.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, fixedpoint.ErrOverflow):
		return "overflow"
	case errors.Is(err, fixedpoint.ErrUnderflow):
		return "underflow"
	case errors.Is(err, fixedpoint.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, fixedpoint.ErrDomain):
		return "domain"
	case errors.Is(err, fixedpoint.ErrInvalidExponent):
		return "invalid_exponent"
	case errors.Is(err, curve.ErrNegativeOrZeroInput):
		return "negative_or_zero_input"
	case errors.Is(err, ErrUnknownPool):
		return "unknown_pool"
	default:
		return "bad_request"
	}
}
