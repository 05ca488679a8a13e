package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/niksmo/darkstore/internal/core/domain"
	"github.com/niksmo/darkstore/internal/core/port"
	"github.com/niksmo/darkstore/pkg/retry"
)

var _ port.CartStorage = (*AsyncCartSaver)(nil)

type AsyncOpt func(*asyncOpts) error

type asyncOpts struct {
	storage  port.CartStorage
	reporter port.FailureReporter
	key      string
	retryCfg retry.RetryConfig
	timeout  time.Duration
}

func AsyncStorageOpt(s port.CartStorage) AsyncOpt {
	return func(o *asyncOpts) error {
		if s == nil {
			return errors.New("cart storage is nil")
		}
		o.storage = s
		return nil
	}
}

func AsyncReporterOpt(r port.FailureReporter, key string) AsyncOpt {
	return func(o *asyncOpts) error {
		if r == nil {
			return errors.New("failure reporter is nil")
		}
		o.reporter = r
		o.key = key
		return nil
	}
}

func AsyncRetryOpt(c retry.RetryConfig) AsyncOpt {
	return func(o *asyncOpts) error {
		o.retryCfg = c
		return nil
	}
}

// AsyncTimeoutOpt bounds a single background write, retries included.
func AsyncTimeoutOpt(d time.Duration) AsyncOpt {
	return func(o *asyncOpts) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		o.timeout = d
		return nil
	}
}

// An AsyncCartSaver makes SaveCart fire-and-forget.
//
// Pending writes coalesce: only the latest state is written. Failed
// writes are retried, then reported. LoadCart is passed through
// synchronously.
type AsyncCartSaver struct {
	storage  port.CartStorage
	reporter port.FailureReporter
	key      string
	retryCfg retry.RetryConfig
	timeout  time.Duration

	mu      sync.Mutex
	pending []domain.LineItem
	dirty   bool
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func NewAsyncCartSaver(opts ...AsyncOpt) (*AsyncCartSaver, error) {
	const op = "NewAsyncCartSaver"

	options := asyncOpts{
		retryCfg: retry.RetryConfig{
			MaxAttempts: 3,
			Backoff:     retry.ExponentialBackoff(50 * time.Millisecond),
		},
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if options.storage == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrTooFewOpts)
	}

	s := &AsyncCartSaver{
		storage:  options.storage,
		reporter: options.reporter,
		key:      options.key,
		retryCfg: options.retryCfg,
		timeout:  options.timeout,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (s *AsyncCartSaver) LoadCart(ctx context.Context) ([]domain.LineItem, error) {
	return s.storage.LoadCart(ctx)
}

// SaveCart schedules items for writing and returns at once.
func (s *AsyncCartSaver) SaveCart(_ context.Context, items []domain.LineItem) error {
	const op = "AsyncCartSaver.SaveCart"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	s.pending = items
	s.dirty = true

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close flushes the pending write and stops the worker.
func (s *AsyncCartSaver) Close() {
	const op = "AsyncCartSaver.Close"
	log := slog.With("op", op)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.wake)
	s.mu.Unlock()

	log.Info("flushing pending cart writes...")
	<-s.done
	log.Info("cart writer is closed")
}

func (s *AsyncCartSaver) run() {
	defer close(s.done)
	for range s.wake {
		s.flush()
	}
	s.flush()
}

func (s *AsyncCartSaver) flush() {
	const op = "AsyncCartSaver.flush"

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	items := s.pending
	s.pending, s.dirty = nil, false
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := retry.Do(ctx, s.retryCfg, func() error {
		return s.storage.SaveCart(ctx, items)
	})
	if err == nil {
		return
	}

	slog.Error("failed to write cart", "op", op, "err", err)
	if s.reporter != nil {
		s.reporter.ReportFailure(context.WithoutCancel(ctx), domain.PersistenceFailure{
			Op:  domain.OpSave,
			Key: s.key,
			Err: err,
			At:  time.Now(),
		})
	}
}
