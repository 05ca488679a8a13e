package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/niksmo/darkstore/internal/core/domain"
	"github.com/niksmo/darkstore/internal/core/port"
	"github.com/niksmo/darkstore/pkg/schema"
)

const DefaultProductsKey = "darkstore-products"

var _ port.ProductsStorage = (*ProductsRepository)(nil)

// A ProductsRepository keeps the catalog as one record under its own
// key, independent of the cart record.
type ProductsRepository struct {
	mu    *sync.Mutex
	kv    KV
	codec schema.Codec[schema.ProductV1]
	key   string
}

func NewProductsRepository(
	kv KV, codec schema.Codec[schema.ProductV1], key string,
) ProductsRepository {
	if key == "" {
		key = DefaultProductsKey
	}
	return ProductsRepository{
		mu:    new(sync.Mutex),
		kv:    kv,
		codec: codec,
		key:   key,
	}
}

// StoreProducts upserts products by id. New products are appended,
// existing ones are replaced in place.
func (r ProductsRepository) StoreProducts(
	ctx context.Context, vs []domain.Product,
) error {
	const op = "ProductsRepository.StoreProducts"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.load(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, v := range vs {
		s := productToSchemaV1(v)
		i := slices.IndexFunc(stored, func(p schema.ProductV1) bool {
			return p.ID == s.ID
		})
		if i < 0 {
			stored = append(stored, s)
			continue
		}
		stored[i] = s
	}

	data, err := r.codec.Encode(stored)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := r.kv.Set(ctx, r.key, data); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r ProductsRepository) ReadProduct(
	ctx context.Context, productID string,
) (domain.Product, error) {
	const op = "ProductsRepository.ReadProduct"

	if err := ctx.Err(); err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.load(ctx)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	i := slices.IndexFunc(stored, func(p schema.ProductV1) bool {
		return p.ID == productID
	})
	if i < 0 {
		return domain.Product{}, fmt.Errorf("%s: %q: %w", op, productID, domain.ErrProductNotFound)
	}
	return schemaV1ToProduct(stored[i]), nil
}

func (r ProductsRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	const op = "ProductsRepository.ListProducts"

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ps := make([]domain.Product, len(stored))
	for i, s := range stored {
		ps[i] = schemaV1ToProduct(s)
	}
	return ps, nil
}

// load treats a missing or unreadable record as an empty catalog.
func (r ProductsRepository) load(ctx context.Context) ([]schema.ProductV1, error) {
	const op = "ProductsRepository.load"

	data, err := r.kv.Get(ctx, r.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	vs, err := r.codec.Decode(data)
	if err != nil {
		slog.Warn("unreadable catalog record, using empty catalog",
			"op", op, "key", r.key, "err", err)
		return nil, nil
	}
	return vs, nil
}
