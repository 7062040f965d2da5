package ingestion

import (
	"context"
	"fmt"
	"log"

	"github.com/nats-io/nats.go/jetstream"
)

// QuotePublisher publishes computed quotes to NATS for downstream
// consumers. Subjects follow the pattern: quotes.v1.computed.{pool_id}
type QuotePublisher struct {
	js        jetstream.JetStream
	inputChan <-chan PublishableQuote
}

// PublishableQuote is an already-encoded quote response ready for the
// outbound stream.
type PublishableQuote struct {
	PoolID  string
	Payload []byte
}

func NewQuotePublisher(js jetstream.JetStream, inputChan <-chan PublishableQuote) *QuotePublisher {
	return &QuotePublisher{
		js:        js,
		inputChan: inputChan,
	}
}

// Run starts the outbound publisher loop. Publish failures are
// non-fatal: the requester already received its reply, the stream is a
// convenience for observers.
func (qp *QuotePublisher) Run(ctx context.Context, onPublished, onError func()) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case q, ok := <-qp.inputChan:
			if !ok {
				return nil
			}

			if err := qp.publish(ctx, q); err != nil {
				if onError != nil {
					onError()
				}
				log.Printf("WARN: quote publish failed pool=%s: %v", q.PoolID, err)
				continue
			}
			if onPublished != nil {
				onPublished()
			}
		}
	}
}

func (qp *QuotePublisher) publish(ctx context.Context, q PublishableQuote) error {
	subject := fmt.Sprintf("quotes.v1.computed.%s", q.PoolID)
	_, err := qp.js.Publish(ctx, subject, q.Payload)
	return err
}
