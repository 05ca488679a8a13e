package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/niksmo/darkstore/internal/core/port"
	"github.com/twmb/franz-go/pkg/kgo"
)

var (
	ErrTooFewOpts = errors.New("too few options")
)

// ProducerClient never blocks on TryProduce: a full buffer fails the
// record with [kgo.ErrMaxBuffered].
type ProducerClient interface {
	TryProduce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
	Close()
}

type ConsumerClient interface {
	PollFetches(context.Context) kgo.Fetches
	CommitUncommittedOffsets(context.Context) error
	Close()
}

type Encoder interface {
	Encode(v any) ([]byte, error)
}

type Decoder interface {
	Decode(b []byte, v any) error
}

////////////////////////////////////////////////////////
///////////////        PRODUCER OPTS      //////////////
////////////////////////////////////////////////////////

type ProducerOpt func(*producerOpts) error

type producerOpts struct {
	cl      ProducerClient
	encoder Encoder
}

// ProducerClientOpt connects a producing client to the seed brokers.
// The client is pinged before it is accepted. extra is appended to the
// client options, e.g. [kgo.DialTLSConfig].
func ProducerClientOpt(
	ctx context.Context, seedBrokers []string, topic string, extra ...kgo.Opt,
) ProducerOpt {
	return func(opts *producerOpts) error {
		kgoOpts := append([]kgo.Opt{
			kgo.SeedBrokers(seedBrokers...),
			kgo.DefaultProduceTopicAlways(),
			kgo.DefaultProduceTopic(topic),
			kgo.RequiredAcks(kgo.AllISRAcks()),
			kgo.ProducerLinger(50 * time.Millisecond),
		}, extra...)
		cl, err := kgo.NewClient(kgoOpts...)
		if err != nil {
			return err
		}

		if err := cl.Ping(ctx); err != nil {
			cl.Close()
			return err
		}
		opts.cl = cl
		return nil
	}
}

// ProducerWithClientOpt uses an already built client.
func ProducerWithClientOpt(cl ProducerClient) ProducerOpt {
	return func(opts *producerOpts) error {
		if cl == nil {
			return errors.New("producer client is nil")
		}
		opts.cl = cl
		return nil
	}
}

func ProducerEncoderOpt(encoder Encoder) ProducerOpt {
	return func(opts *producerOpts) error {
		if encoder == nil {
			return errors.New("encoder is nil")
		}
		opts.encoder = encoder
		return nil
	}
}

////////////////////////////////////////////////////////
///////////////        CONSUMER OPTS      //////////////
////////////////////////////////////////////////////////

type ConsumerOpt func(*consumerOpts) error

type consumerOpts struct {
	cl      ConsumerClient
	decoder Decoder
	saver   port.ProductsSaver
}

func ConsumerClientOpt(
	seedBrokers []string, topic, group string, extra ...kgo.Opt,
) ConsumerOpt {
	return func(co *consumerOpts) error {
		kgoOpts := append([]kgo.Opt{
			kgo.SeedBrokers(seedBrokers...),
			kgo.ConsumeTopics(topic),
			kgo.ConsumerGroup(group),
			kgo.DisableAutoCommit(),
		}, extra...)
		cl, err := kgo.NewClient(kgoOpts...)
		if err != nil {
			return err
		}
		co.cl = cl
		return nil
	}
}

func ConsumerWithClientOpt(cl ConsumerClient) ConsumerOpt {
	return func(co *consumerOpts) error {
		if cl == nil {
			return errors.New("consumer client is nil")
		}
		co.cl = cl
		return nil
	}
}

func ConsumerDecoderOpt(decoder Decoder) ConsumerOpt {
	return func(co *consumerOpts) error {
		if decoder == nil {
			return errors.New("decoder is nil")
		}
		co.decoder = decoder
		return nil
	}
}

func ConsumerProductsSaverOpt(s port.ProductsSaver) ConsumerOpt {
	return func(co *consumerOpts) error {
		if s == nil {
			return errors.New("products saver is nil")
		}
		co.saver = s
		return nil
	}
}

func (co *consumerOpts) apply(opts ...ConsumerOpt) error {
	for _, opt := range opts {
		if err := opt(co); err != nil {
			return err
		}
	}
	return nil
}
