package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/hamba/avro/v2"
	"github.com/twmb/franz-go/pkg/sr"
)

var (
	ErrTooFewOpts = errors.New("too few options")
)

// A Serde frames Avro payloads with the registry wire header.
type Serde interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// A SchemaIdentifier resolves the registry id of a schema text under
// a subject, registering it when needed.
type SchemaIdentifier interface {
	DetermineID(ctx context.Context, subject string, avroSchemaText string) (int, error)
}

type Opt func(*serdeOpts) error

type serdeOpts struct {
	subject string
	si      SchemaIdentifier
}

func SubjectOpt(subject string) Opt {
	return func(so *serdeOpts) error {
		if subject == "" {
			return errors.New("subject is empty string")
		}
		so.subject = subject
		return nil
	}
}

func SchemaIdentifierOpt(sc SchemaIdentifier) Opt {
	return func(so *serdeOpts) error {
		if sc == nil {
			return errors.New("schema identifier is nil")
		}
		so.si = sc
		return nil
	}
}

// NewSerdeCartEventV1 registers [CartEventSchemaTextV1] under the
// subject and returns a serde for [CartEventV1].
func NewSerdeCartEventV1(ctx context.Context, opts ...Opt) (Serde, error) {
	return newAvroSerde[CartEventV1](ctx, "NewSerdeCartEventV1", CartEventSchemaTextV1, opts)
}

// NewSerdeProductV1 registers [ProductSchemaTextV1] under the subject and
// returns a serde for [ProductV1].
func NewSerdeProductV1(ctx context.Context, opts ...Opt) (Serde, error) {
	return newAvroSerde[ProductV1](ctx, "NewSerdeProductV1", ProductSchemaTextV1, opts)
}

func newAvroSerde[T any](
	ctx context.Context, op string, schemaText string, opts []Opt,
) (Serde, error) {
	if len(opts) != 2 {
		return nil, fmt.Errorf("%s: %w", op, ErrTooFewOpts)
	}

	var so serdeOpts
	for _, o := range opts {
		if err := o(&so); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	avroSchema, err := avro.Parse(schemaText)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	id, err := so.si.DetermineID(ctx, so.subject, schemaText)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var example T
	s := new(sr.Serde)
	s.Register(id, example,
		sr.EncodeFn(func(v any) ([]byte, error) {
			return avro.Marshal(avroSchema, v)
		}),
		sr.DecodeFn(func(data []byte, v any) error {
			return avro.Unmarshal(avroSchema, data, v)
		}),
	)
	return s, nil
}
