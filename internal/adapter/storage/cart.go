package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/niksmo/darkstore/internal/core/domain"
	"github.com/niksmo/darkstore/internal/core/port"
	"github.com/niksmo/darkstore/pkg/schema"
	"github.com/shopspring/decimal"
)

const DefaultCartKey = "darkstore-cart"

var _ port.CartStorage = (*CartRepository)(nil)

// A CartRepository persists the cart as one record under a fixed key.
type CartRepository struct {
	kv    KV
	codec schema.Codec[schema.CartItemV1]
	key   string
}

func NewCartRepository(
	kv KV, codec schema.Codec[schema.CartItemV1], key string,
) CartRepository {
	if key == "" {
		key = DefaultCartKey
	}
	return CartRepository{kv: kv, codec: codec, key: key}
}

func (r CartRepository) Key() string {
	return r.key
}

// LoadCart returns the stored line items.
//
// A missing key yields an empty cart. An undecodable record is logged,
// deleted and also yields an empty cart. Other storage errors are
// returned.
func (r CartRepository) LoadCart(ctx context.Context) ([]domain.LineItem, error) {
	const op = "CartRepository.LoadCart"
	log := slog.With("op", op, "key", r.key)

	data, err := r.kv.Get(ctx, r.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items, err := r.decode(data)
	if err != nil {
		log.Warn("discarding unreadable cart record", "err", err)
		if err := r.kv.Delete(ctx, r.key); err != nil {
			log.Error("failed to delete unreadable cart record", "err", err)
		}
		return nil, nil
	}
	return items, nil
}

func (r CartRepository) SaveCart(ctx context.Context, items []domain.LineItem) error {
	const op = "CartRepository.SaveCart"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	data, err := r.codec.Encode(r.toSchema(items))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := r.kv.Set(ctx, r.key, data); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r CartRepository) decode(data []byte) ([]domain.LineItem, error) {
	vs, err := r.codec.Decode(data)
	if err != nil {
		return nil, err
	}

	items := make([]domain.LineItem, 0, len(vs))
	seen := make(map[string]struct{}, len(vs))
	for _, v := range vs {
		if err := validateCartItem(v); err != nil {
			return nil, err
		}
		if _, dup := seen[v.ID]; dup {
			return nil, fmt.Errorf("duplicate line for %q", v.ID)
		}
		seen[v.ID] = struct{}{}
		items = append(items, schemaV1ToLineItem(v))
	}
	return items, nil
}

func (r CartRepository) toSchema(items []domain.LineItem) []schema.CartItemV1 {
	vs := make([]schema.CartItemV1, len(items))
	for i, li := range items {
		vs[i] = lineItemToSchemaV1(li)
	}
	return vs
}

func validateCartItem(v schema.CartItemV1) error {
	switch {
	case v.ID == "":
		return errors.New("line without id")
	case v.Quantity < 0 || v.Stock < 0 || v.Price < 0:
		return fmt.Errorf("line %q: negative value", v.ID)
	}
	return nil
}

func lineItemToSchemaV1(li domain.LineItem) schema.CartItemV1 {
	p := productToSchemaV1(li.Product)
	return schema.CartItemV1{
		ID:            p.ID,
		Name:          p.Name,
		Brand:         p.Brand,
		Category:      p.Category,
		Price:         p.Price,
		OriginalPrice: p.OriginalPrice,
		Stock:         p.Stock,
		ImageURL:      p.ImageURL,
		Quantity:      li.Quantity,
	}
}

func schemaV1ToLineItem(v schema.CartItemV1) domain.LineItem {
	return domain.LineItem{
		Product: schemaV1ToProduct(schema.ProductV1{
			ID:            v.ID,
			Name:          v.Name,
			Brand:         v.Brand,
			Category:      v.Category,
			Price:         v.Price,
			OriginalPrice: v.OriginalPrice,
			Stock:         v.Stock,
			ImageURL:      v.ImageURL,
		}),
		Quantity: v.Quantity,
	}
}

func productToSchemaV1(p domain.Product) (s schema.ProductV1) {
	s.ID = p.ID
	s.Name = p.Name
	s.Brand = p.Brand
	s.Category = p.Category
	s.Price = p.Price.InexactFloat64()
	if p.OriginalPrice.Valid {
		orig := p.OriginalPrice.Decimal.InexactFloat64()
		s.OriginalPrice = &orig
	}
	s.Stock = p.Stock
	s.ImageURL = p.ImageURL
	return s
}

func schemaV1ToProduct(s schema.ProductV1) (p domain.Product) {
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
