package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/niksmo/darkstore/internal/core/domain"
	"github.com/niksmo/darkstore/internal/core/port"
	"github.com/niksmo/darkstore/pkg/schema"
	"github.com/twmb/franz-go/pkg/kgo"
)

var (
	_ port.CartListener    = (*CartEventsProducer)(nil)
	_ port.FailureReporter = (*CartEventsProducer)(nil)
)

const flushTimeout = 5 * time.Second

// A CartEventsProducer publishes cart changes and persistence failures
// to the events topic.
//
// Records are produced asynchronously and keyed by the cart key, so all
// events of one cart land on the same partition in order. The cart store
// calls it under its lock, so producing never waits for buffer space:
// when the client buffer is full the event is dropped and logged.
// Delivery errors are logged and never reach the cart.
type CartEventsProducer struct {
	cl      ProducerClient
	encoder Encoder
	cartKey string
	now     func() time.Time
}

func NewCartEventsProducer(
	cartKey string, opts ...ProducerOpt,
) (CartEventsProducer, error) {
	const op = "NewCartEventsProducer"

	if len(opts) != 2 {
		return CartEventsProducer{}, fmt.Errorf("%s: %w", op, ErrTooFewOpts)
	}

	var options producerOpts
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return CartEventsProducer{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	return CartEventsProducer{
		cl:      options.cl,
		encoder: options.encoder,
		cartKey: cartKey,
		now:     time.Now,
	}, nil
}

// Close flushes buffered records and closes the underlying client.
func (p CartEventsProducer) Close() {
	const op = "CartEventsProducer.Close"
	log := slog.With("op", op)

	log.Info("closing producer...")
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := p.cl.Flush(ctx); err != nil {
		log.Error("failed to flush records", "err", err)
	}
	p.cl.Close()
	log.Info("producer is closed")
}

func (p CartEventsProducer) CartChanged(ctx context.Context, s domain.Snapshot) {
	const op = "CartEventsProducer.CartChanged"

	ev := p.newEvent(schema.EventCartChanged)
	ev.ItemCount = s.ItemCount
	ev.Total = s.Total.StringFixed(2)
	ev.Items = make([]schema.CartEventItemV1, len(s.Items))
	for i, li := range s.Items {
		ev.Items[i] = schema.CartEventItemV1{
			ID:       li.ID,
			Price:    li.Price.StringFixed(2),
			Quantity: li.Quantity,
		}
	}
	p.produce(ctx, op, ev)
}

func (p CartEventsProducer) ReportFailure(
	ctx context.Context, f domain.PersistenceFailure,
) {
	const op = "CartEventsProducer.ReportFailure"

	ev := p.newEvent(schema.EventPersistenceFailed)
	if !f.At.IsZero() {
		ev.OccurredAt = f.At
	}
	ev.Total = "0.00"
	ev.Items = []schema.CartEventItemV1{}
	ev.FailureOp = string(f.Op)
	ev.FailureKey = f.Key
	if f.Err != nil {
		ev.FailureError = f.Err.Error()
	}
	p.produce(ctx, op, ev)
}

func (p CartEventsProducer) newEvent(kind string) schema.CartEventV1 {
	return schema.CartEventV1{
		EventID:    uuid.NewString(),
		Kind:       kind,
		OccurredAt: p.now().UTC(),
	}
}

func (p CartEventsProducer) produce(
	ctx context.Context, op string, ev schema.CartEventV1,
) {
	log := slog.With("op", op, "kind", ev.Kind, "eventID", ev.EventID)

	v, err := p.encoder.Encode(ev)
	if err != nil {
		log.Error("failed to encode event", "err", err)
		return
	}

	r := &kgo.Record{Key: []byte(p.cartKey), Value: v}
	p.cl.TryProduce(context.WithoutCancel(ctx), r, func(_ *kgo.Record, err error) {
		switch {
		case errors.Is(err, kgo.ErrMaxBuffered):
			log.Warn("producer buffer is full, event dropped")
		case err != nil:
			log.Error("failed to produce event", "err", err)
		}
	})
}
