package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/niksmo/darkstore/internal/core/domain"
	"github.com/niksmo/darkstore/internal/core/port"
	"github.com/niksmo/darkstore/pkg/schema"
	"github.com/shopspring/decimal"
	"github.com/twmb/franz-go/pkg/kgo"
)

const slowDownTimeout = time.Second

// A ProductsConsumer feeds the catalog from the products topic.
//
// Each poll is decoded, saved in one batch, then committed. Records that
// fail to decode are logged and skipped.
type ProductsConsumer struct {
	cl            ConsumerClient
	decoder       Decoder
	saver         port.ProductsSaver
	slowDownTimer *time.Timer
}

func NewProductsConsumer(opts ...ConsumerOpt) (ProductsConsumer, error) {
	const op = "NewProductsConsumer"

	if len(opts) != 3 {
		return ProductsConsumer{}, fmt.Errorf("%s: %w", op, ErrTooFewOpts)
	}

	var options consumerOpts
	if err := options.apply(opts...); err != nil {
		return ProductsConsumer{}, fmt.Errorf("%s: %w", op, err)
	}
	if options.cl == nil || options.decoder == nil || options.saver == nil {
		return ProductsConsumer{}, fmt.Errorf("%s: %w", op, ErrTooFewOpts)
	}

	t := time.NewTimer(0)
	t.Stop()

	return ProductsConsumer{
		cl:            options.cl,
		decoder:       options.decoder,
		saver:         options.saver,
		slowDownTimer: t,
	}, nil
}

func (c ProductsConsumer) Close() {
	const op = "ProductsConsumer.Close"
	log := slog.With("op", op)

	log.Info("closing consumer...")
	c.slowDownTimer.Stop()
	c.cl.Close()
	log.Info("consumer is closed")
}

// Run polls until ctx is done.
func (c ProductsConsumer) Run(ctx context.Context) {
	const op = "ProductsConsumer.Run"
	log := slog.With("op", op)

	log.Info("running")
	for {
		select {
		case <-ctx.Done():
			return
		default:
			err := c.consume(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					continue
				}
				log.Error("failed to consume", "err", err)
				c.slowDown(ctx)
			}
		}
	}
}

func (c ProductsConsumer) consume(ctx context.Context) error {
	const op = "ProductsConsumer.consume"

	fetches, err := c.pollFetches(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if fetches.Empty() {
		return nil
	}

	ps := c.toProducts(fetches)
	if len(ps) != 0 {
		if err := c.saver.SaveProducts(ctx, ps); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := c.cl.CommitUncommittedOffsets(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c ProductsConsumer) pollFetches(ctx context.Context) (kgo.Fetches, error) {
	const op = "ProductsConsumer.pollFetches"

	fetches := c.cl.PollFetches(ctx)
	if err := fetches.Err0(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := c.handleErrs(fetches); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return fetches, nil
}

func (c ProductsConsumer) handleErrs(fetches kgo.Fetches) error {
	var errsData []string
	fetches.EachError(func(t string, p int32, err error) {
		errsData = append(errsData,
			fmt.Sprintf("topic %q partition %d: %q", t, p, err))
	})

	if len(errsData) != 0 {
		return errors.New(strings.Join(errsData, "; "))
	}
	return nil
}

// toProducts keeps the last record per product id within a poll.
func (c ProductsConsumer) toProducts(fetches kgo.Fetches) []domain.Product {
	const op = "ProductsConsumer.toProducts"
	log := slog.With("op", op)

	var ps []domain.Product
	index := make(map[string]int)
	fetches.EachRecord(func(r *kgo.Record) {
		var s schema.ProductV1
		if err := c.decoder.Decode(r.Value, &s); err != nil {
			log.Error("failed to decode record",
				"topic", r.Topic, "offset", r.Offset, "err", err)
			return
		}
		p := toDomainProduct(s)
		if i, ok := index[p.ID]; ok {
			ps[i] = p
			return
		}
		index[p.ID] = len(ps)
		ps = append(ps, p)
	})
	return ps
}

func (c ProductsConsumer) slowDown(ctx context.Context) {
	c.slowDownTimer.Reset(slowDownTimeout)
	select {
	case <-ctx.Done():
		c.slowDownTimer.Stop()
	case <-c.slowDownTimer.C:
	}
}

func toDomainProduct(s schema.ProductV1) (p domain.Product) {
	p.ID = s.ID
	p.Name = s.Name
	p.Brand = s.Brand
	p.Category = s.Category
	p.Price = decimal.NewFromFloat(s.Price)
	if s.OriginalPrice != nil {
		p.OriginalPrice = decimal.NewNullDecimal(decimal.NewFromFloat(*s.OriginalPrice))
	}
	p.Stock = s.Stock
	p.ImageURL = s.ImageURL
	return p
}
