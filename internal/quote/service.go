// Package quote wires the pool registry and the pricing engine into the
// NATS request/reply surface: it derives the remaining term from the
// pool's maturity checkpoint, prices the trade, and encodes the result.
package quote

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"YieldPricer/internal/fixedpoint"
	"YieldPricer/internal/ingestion"
	"YieldPricer/internal/market"
	"YieldPricer/internal/observability"
	"YieldPricer/internal/pricing"
)

// RequestSubject is the request/reply subject quotes are served on.
const RequestSubject = "quotes.v1.request"

var secondsPerDay = fixedpoint.Scaled(86_400)

// Service prices quote requests against the latest pool snapshots.
type Service struct {
	registry *ingestion.Registry
	metrics  *observability.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a quote service reading from the given registry.
func NewService(registry *ingestion.Registry, metrics *observability.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		registry: registry,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleRequest prices one encoded quote request and returns the encoded
// response plus the pool it was priced against. Every failure mode still
// produces a response payload carrying a stable error code.
func (s *Service) HandleRequest(data []byte) ([]byte, string) {
	now := s.now()

	req, err := ingestion.ParseQuoteRequest(data)
	if err != nil {
		s.metrics.QuoteErrors.WithLabelValues(ingestion.ErrorCode(err)).Inc()
		s.logger.Warn().Err(err).Msg("malformed quote request")
		resp, _ := ingestion.EncodeQuoteError("", "", err, now)
		return resp, ""
	}

	start := time.Now()
	res, daysRemaining, err := s.price(req, now)
	direction := "in_given_out"
	if req.OutGivenIn {
		direction = "out_given_in"
	}
	s.metrics.QuoteDuration.WithLabelValues(direction).Observe(time.Since(start).Seconds())

	if err != nil {
		code := ingestion.ErrorCode(err)
		s.metrics.QuoteErrors.WithLabelValues(code).Inc()
		s.logger.Warn().
			Err(err).
			Str("pool", req.PoolID).
			Str("direction", direction).
			Str("code", code).
			Msg("quote rejected")
		resp, _ := ingestion.EncodeQuoteError(req.RequestID.String(), req.PoolID, err, now)
		return resp, req.PoolID
	}

	s.metrics.QuotesComputed.WithLabelValues(direction, req.Quantity.Unit.String()).Inc()
	resp, encErr := ingestion.EncodeQuoteResponse(req, res, daysRemaining, now)
	if encErr != nil {
		// Marshalling plain structs of strings cannot fail; treat it as
		// a malformed request if it somehow does.
		s.logger.Error().Err(encErr).Str("pool", req.PoolID).Msg("encode quote response")
		resp, _ = ingestion.EncodeQuoteError(req.RequestID.String(), req.PoolID, encErr, now)
	}
	return resp, req.PoolID
}

func (s *Service) price(req ingestion.QuoteRequest, now time.Time) (market.TradeResult, fixedpoint.FixedPoint, error) {
	snap, ok := s.registry.Get(req.PoolID)
	if !ok {
		return market.TradeResult{}, fixedpoint.FixedPoint{}, ingestion.ErrUnknownPool
	}

	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = now
	}
	days, err := daysRemaining(snap, asOf)
	if err != nil {
		return market.TradeResult{}, fixedpoint.FixedPoint{}, err
	}
	t := market.NewStretchedTime(days, snap.TimeStretch, snap.TermDays)

	var res market.TradeResult
	if req.OutGivenIn {
		res, err = pricing.CalcOutGivenIn(req.Quantity, snap.State, t)
	} else {
		res, err = pricing.CalcInGivenOut(req.Quantity, snap.State, t)
	}
	if err != nil {
		return market.TradeResult{}, fixedpoint.FixedPoint{}, err
	}
	return res, days, nil
}

// daysRemaining converts the snapshot's maturity checkpoint into a
// fixed-point day count at the given clock. Matured positions clamp to
// zero; the count never exceeds the full term.
func daysRemaining(snap ingestion.PoolSnapshot, asOf time.Time) (fixedpoint.FixedPoint, error) {
	secs := snap.Maturity.Unix() - asOf.Unix()
	if secs <= 0 {
		return fixedpoint.FixedPoint{}, nil
	}
	days, err := fixedpoint.DivDown(fixedpoint.Scaled(uint64(secs)), secondsPerDay)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	if days.Gt(snap.TermDays) {
		return snap.TermDays, nil
	}
	return days, nil
}

// Serve subscribes the service on the request/reply subject. Computed
// quotes are also handed to the publish channel when there is room; a
// full channel drops the copy, never the reply.
func (s *Service) Serve(nc *nats.Conn, publishChan chan<- ingestion.PublishableQuote) (*nats.Subscription, error) {
	sub, err := nc.Subscribe(RequestSubject, func(msg *nats.Msg) {
		resp, poolID := s.HandleRequest(msg.Data)
		if err := msg.Respond(resp); err != nil {
			s.logger.Warn().Err(err).Msg("quote reply failed")
		}
		if poolID == "" || publishChan == nil {
			return
		}
		select {
		case publishChan <- ingestion.PublishableQuote{PoolID: poolID, Payload: resp}:
		default:
			s.metrics.PublishErrors.Inc()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", RequestSubject, err)
	}
	return sub, nil
}

// RunSnapshotLoop drains the raw snapshot channel: parse, store, ack.
// Malformed payloads are acked too (redelivery cannot fix them) and
// counted; failed registry writes mean a newer snapshot already won.
func (s *Service) RunSnapshotLoop(ctx context.Context, snapChan <-chan ingestion.RawSnapshot) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-snapChan:
			if !ok {
				return nil
			}
			snap, err := ingestion.ParsePoolState(raw.Data)
			if err != nil {
				s.metrics.SnapshotParseErrors.Inc()
				s.logger.Warn().Err(err).Str("subject", raw.Subject).Msg("bad pool snapshot")
				raw.AckFunc()
				continue
			}
			if s.registry.Put(snap) {
				s.metrics.SnapshotsApplied.WithLabelValues(snap.PoolID).Inc()
				s.metrics.PoolsTracked.Set(float64(s.registry.Len()))
				s.metrics.SnapshotAge.WithLabelValues(snap.PoolID).
					Set(time.Since(snap.ObservedAt).Seconds())
				s.logger.Debug().
					Str("pool", snap.PoolID).
					Str("share_reserves", snap.State.ShareReserves.Dec()).
					Str("bond_reserves", snap.State.BondReserves.Dec()).
					Msg("pool snapshot applied")
			}
			raw.AckFunc()
		}
	}
}
