package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/niksmo/darkstore/internal/core/domain"
	"github.com/niksmo/darkstore/internal/core/port"
	"github.com/shopspring/decimal"
)

var (
	ErrTooFewOpts = errors.New("too few options")
	ErrEmptyCart  = errors.New("nothing to check out")
)

var _ port.CartService = (*CartStore)(nil)

type StoreOpt func(*storeOpts) error

type storeOpts struct {
	storage  port.CartStorage
	reporter port.FailureReporter
	key      string
	now      func() time.Time
}

func StorageOpt(s port.CartStorage) StoreOpt {
	return func(o *storeOpts) error {
		if s == nil {
			return errors.New("cart storage is nil")
		}
		o.storage = s
		return nil
	}
}

func ReporterOpt(r port.FailureReporter) StoreOpt {
	return func(o *storeOpts) error {
		if r == nil {
			return errors.New("failure reporter is nil")
		}
		o.reporter = r
		return nil
	}
}

// KeyOpt sets the storage key attached to reported failures.
func KeyOpt(key string) StoreOpt {
	return func(o *storeOpts) error {
		o.key = key
		return nil
	}
}

func ClockOpt(now func() time.Time) StoreOpt {
	return func(o *storeOpts) error {
		if now == nil {
			return errors.New("clock is nil")
		}
		o.now = now
		return nil
	}
}

type nopReporter struct{}

func (nopReporter) ReportFailure(context.Context, domain.PersistenceFailure) {}

type subscription struct {
	id int
	l  port.CartListener
}

// A CartStore owns the authoritative cart and keeps the durable copy
// consistent with every mutation.
//
// Mutations never fail: out-of-range quantities are clamped, unknown ids
// are no-ops and storage errors are only reported. Listeners are notified
// after persistence, under the store lock, so they must not call back
// into the store.
type CartStore struct {
	mu        sync.Mutex
	cart      domain.Cart
	storage   port.CartStorage
	reporter  port.FailureReporter
	key       string
	now       func() time.Time
	listeners []subscription
	nextSubID int
}

// NewCartStore restores the cart from storage, blocking until the load
// completes. A load error is reported and the store starts empty.
func NewCartStore(ctx context.Context, opts ...StoreOpt) (*CartStore, error) {
	const op = "NewCartStore"

	options := storeOpts{
		reporter: nopReporter{},
		now:      time.Now,
	}
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if options.storage == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrTooFewOpts)
	}

	s := &CartStore{
		storage:  options.storage,
		reporter: options.reporter,
		key:      options.key,
		now:      options.now,
	}
	s.restore(ctx)
	return s, nil
}

func (s *CartStore) restore(ctx context.Context) {
	const op = "CartStore.restore"
	log := slog.With("op", op)

	items, err := s.storage.LoadCart(ctx)
	if err != nil {
		log.Error("failed to load cart, starting empty", "err", err)
		s.report(ctx, domain.OpLoad, err)
		return
	}
	s.cart = domain.NewCart(items)
	log.Info("cart restored", "lines", s.cart.Len())
}

// AddToCart merges quantity units of p into the cart.
func (s *CartStore) AddToCart(
	ctx context.Context, p domain.Product, quantity int,
) domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cart = s.cart.Add(p, quantity)
	return s.commit(ctx)
}

// RemoveFromCart drops the line for productID. An unknown id still
// rewrites the durable copy.
func (s *CartStore) RemoveFromCart(
	ctx context.Context, productID string,
) domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cart = s.cart.Remove(productID)
	return s.commit(ctx)
}

// UpdateQuantity sets the quantity of an existing line; a quantity that
// clamps to 0 removes the line. Unknown ids leave the cart and the
// durable copy untouched.
func (s *CartStore) UpdateQuantity(
	ctx context.Context, productID string, quantity int,
) domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.cart.UpdateQuantity(productID, quantity)
	if !ok {
		return domain.SnapshotOf(s.cart)
	}
	s.cart = cart
	return s.commit(ctx)
}

func (s *CartStore) ClearCart(ctx context.Context) domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cart = domain.Cart{}
	return s.commit(ctx)
}

// Checkout simulates an order and returns the cart summary. Nothing is
// charged and the cart is left as is; callers clear it with ClearCart.
func (s *CartStore) Checkout(context.Context) (domain.Summary, error) {
	const op = "CartStore.Checkout"

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cart.Purchasable() {
		return domain.Summary{}, fmt.Errorf("%s: %w", op, ErrEmptyCart)
	}

	summary := domain.SummaryOf(s.cart)
	slog.Info("checkout simulated", "op", op,
		"units", summary.ItemCount, "total", summary.Total.StringFixed(2))
	return summary, nil
}

func (s *CartStore) CartTotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Total()
}

func (s *CartStore) CartItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.ItemCount()
}

func (s *CartStore) Items() []domain.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Items()
}

func (s *CartStore) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SnapshotOf(s.cart)
}

func (s *CartStore) Summary() domain.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SummaryOf(s.cart)
}

// Subscribe registers l and returns a func that removes it.
func (s *CartStore) Subscribe(l port.CartListener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.listeners = append(s.listeners, subscription{id, l})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.listeners = slices.DeleteFunc(s.listeners, func(sub subscription) bool {
				return sub.id == id
			})
		})
	}
}

// commit persists the cart and publishes the new snapshot.
// Callers hold s.mu.
func (s *CartStore) commit(ctx context.Context) domain.Snapshot {
	const op = "CartStore.commit"

	if err := s.storage.SaveCart(ctx, s.cart.Items()); err != nil {
		slog.Error("failed to persist cart", "op", op, "err", err)
		s.report(ctx, domain.OpSave, err)
	}

	snap := domain.SnapshotOf(s.cart)
	for _, sub := range s.listeners {
		sub.l.CartChanged(ctx, snap)
	}
	return snap
}

func (s *CartStore) report(ctx context.Context, op domain.PersistenceOp, err error) {
	s.reporter.ReportFailure(ctx, domain.PersistenceFailure{
		Op:  op,
		Key: s.key,
		Err: err,
		At:  s.now(),
	})
}
