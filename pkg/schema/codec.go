package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hamba/avro/v2/ocf"
)

var ErrUnknownCodec = errors.New("unknown codec")

// A Codec turns a sequence of records into a self-describing payload
// and back. Decode fails on anything that is not a valid payload for
// the record type.
type Codec[T any] interface {
	Name() string
	Encode([]T) ([]byte, error)
	Decode([]byte) ([]T, error)
}

const (
	CodecJSON = "json"
	CodecAvro = "avro"
)

// NewCartCodec returns the cart record codec registered under name.
func NewCartCodec(name string) (Codec[CartItemV1], error) {
	switch name {
	case CodecJSON, "":
		return JSONCodec[CartItemV1]{}, nil
	case CodecAvro:
		return NewAvroCodec[CartItemV1](CartItemSchemaTextV1), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

// NewProductCodec returns the catalog record codec registered under name.
func NewProductCodec(name string) (Codec[ProductV1], error) {
	switch name {
	case CodecJSON, "":
		return JSONCodec[ProductV1]{}, nil
	case CodecAvro:
		return NewAvroCodec[ProductV1](ProductSchemaTextV1), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

// A JSONCodec encodes records as a JSON array. Unknown fields are
// rejected so a structural change fails to decode.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Name() string { return CodecJSON }

func (JSONCodec[T]) Encode(vs []T) ([]byte, error) {
	const op = "JSONCodec.Encode"
	if vs == nil {
		vs = []T{}
	}
	b, err := json.Marshal(vs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

func (JSONCodec[T]) Decode(data []byte) ([]T, error) {
	const op = "JSONCodec.Decode"

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var vs []T
	if err := dec.Decode(&vs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%s: trailing data after array", op)
	}
	return vs, nil
}

// An AvroCodec writes records into an Avro object container file.
// The writer schema travels with the payload.
type AvroCodec[T any] struct {
	schemaText string
}

func NewAvroCodec[T any](schemaText string) AvroCodec[T] {
	return AvroCodec[T]{schemaText}
}

func (AvroCodec[T]) Name() string { return CodecAvro }

func (c AvroCodec[T]) Encode(vs []T) ([]byte, error) {
	const op = "AvroCodec.Encode"

	var buf bytes.Buffer
	enc, err := ocf.NewEncoder(c.schemaText, &buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, v := range vs {
		if err := enc.Encode(v); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return buf.Bytes(), nil
}

func (c AvroCodec[T]) Decode(data []byte) ([]T, error) {
	const op = "AvroCodec.Decode"

	dec, err := ocf.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var vs []T
	for dec.HasNext() {
		var v T
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		vs = append(vs, v)
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return vs, nil
}
