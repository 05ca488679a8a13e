package port

import (
	"context"

	"github.com/niksmo/darkstore/internal/core/domain"
)

type CartLoader interface {
	LoadCart(context.Context) ([]domain.LineItem, error)
}

type CartSaver interface {
	SaveCart(context.Context, []domain.LineItem) error
}

// CartStorage is the durable copy of the cart.
//
// LoadCart returns an empty collection, not an error, for a missing
// or undecodable record.
type CartStorage interface {
	CartLoader
	CartSaver
}

// A CartListener is notified after every persisted cart mutation.
type CartListener interface {
	CartChanged(context.Context, domain.Snapshot)
}

type CartListenerFunc func(context.Context, domain.Snapshot)

func (f CartListenerFunc) CartChanged(ctx context.Context, s domain.Snapshot) {
	f(ctx, s)
}

// A FailureReporter receives persistence errors that were recovered
// locally.
type FailureReporter interface {
	ReportFailure(context.Context, domain.PersistenceFailure)
}

type ProductReader interface {
	ReadProduct(ctx context.Context, productID string) (domain.Product, error)
}

type ProductsStorage interface {
	ProductReader
	StoreProducts(context.Context, []domain.Product) error
	ListProducts(context.Context) ([]domain.Product, error)
}

type ProductsSaver interface {
	SaveProducts(context.Context, []domain.Product) error
}

type CatalogService interface {
	ProductsSaver
	ProductReader
	ListProducts(context.Context) ([]domain.Product, error)
}

// CartService drives the cart from an inbound adapter.
type CartService interface {
	AddToCart(ctx context.Context, p domain.Product, quantity int) domain.Snapshot
	RemoveFromCart(ctx context.Context, productID string) domain.Snapshot
	UpdateQuantity(ctx context.Context, productID string, quantity int) domain.Snapshot
	ClearCart(ctx context.Context) domain.Snapshot
	Checkout(ctx context.Context) (domain.Summary, error)
	Snapshot() domain.Snapshot
	Summary() domain.Summary
}
