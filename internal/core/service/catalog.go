package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/niksmo/darkstore/internal/core/domain"
	"github.com/niksmo/darkstore/internal/core/port"
)

var ErrInvalidProduct = errors.New("invalid product")

var _ port.CatalogService = (*Catalog)(nil)

// A Catalog is the product collaborator of the cart. It supplies the
// product snapshot and stock limit for every add.
type Catalog struct {
	productsStorage port.ProductsStorage
}

func NewCatalog(productsStorage port.ProductsStorage) Catalog {
	return Catalog{productsStorage}
}

func (c Catalog) SaveProducts(ctx context.Context, ps []domain.Product) error {
	const op = "Catalog.SaveProducts"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, p := range ps {
		if err := validateProduct(p); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := c.productsStorage.StoreProducts(ctx, ps); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c Catalog) ReadProduct(ctx context.Context, productID string) (domain.Product, error) {
	const op = "Catalog.ReadProduct"

	if err := ctx.Err(); err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	p, err := c.productsStorage.ReadProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (c Catalog) ListProducts(ctx context.Context) ([]domain.Product, error) {
	const op = "Catalog.ListProducts"

	ps, err := c.productsStorage.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ps, nil
}

func validateProduct(p domain.Product) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidProduct)
	case !domain.ValidPrice(p.Price):
		return fmt.Errorf("%w: %q: price %s is negative, finer than cents or too large",
			ErrInvalidProduct, p.ID, p.Price)
	case p.OriginalPrice.Valid && !domain.ValidPrice(p.OriginalPrice.Decimal):
		return fmt.Errorf("%w: %q: original price %s is negative, finer than cents or too large",
			ErrInvalidProduct, p.ID, p.OriginalPrice.Decimal)
	case p.Stock < 0:
		return fmt.Errorf("%w: %q: negative stock", ErrInvalidProduct, p.ID)
	}
	return nil
}
