package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/niksmo/darkstore/internal/core/domain"
	"github.com/niksmo/darkstore/internal/core/service"
	"github.com/niksmo/darkstore/pkg/schema"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type fakeProducerClient struct {
	mu       sync.Mutex
	records  []*kgo.Record
	err      error
	full     bool
	dropped  int
	flushed  bool
	closed   bool
	promised []error
}

// TryProduce behaves like kgo.Client.TryProduce: with full set the buffer
// has no room and the record fails at once.
func (c *fakeProducerClient) TryProduce(
	_ context.Context, r *kgo.Record, promise func(*kgo.Record, error),
) {
	c.mu.Lock()
	if c.full {
		c.dropped++
		c.mu.Unlock()
		promise(r, kgo.ErrMaxBuffered)
		return
	}
	c.records = append(c.records, r)
	c.promised = append(c.promised, c.err)
	c.mu.Unlock()
	promise(r, c.err)
}

func (c *fakeProducerClient) Flush(context.Context) error {
	c.flushed = true
	return nil
}

func (c *fakeProducerClient) Close() { c.closed = true }

type nopCartStorage struct{}

func (nopCartStorage) LoadCart(context.Context) ([]domain.LineItem, error) { return nil, nil }
func (nopCartStorage) SaveCart(context.Context, []domain.LineItem) error { return nil }

// jsonSerde stands in for the registry serde.
type jsonSerde struct{}

func (jsonSerde) Encode(v any) ([]byte, error) { return json.Marshal(v) }
func (jsonSerde) Decode(b []byte, v any) error { return json.Unmarshal(b, v) }

type failingEncoder struct{}

func (failingEncoder) Encode(any) ([]byte, error) { return nil, errors.New("no schema") }

func newTestProducer(t *testing.T, enc Encoder) (CartEventsProducer, *fakeProducerClient) {
	t.Helper()
	cl := &fakeProducerClient{}
	p, err := NewCartEventsProducer("darkstore-cart",
		ProducerWithClientOpt(cl), ProducerEncoderOpt(enc))
	require.NoError(t, err)
	p.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return p, cl
}

func decodeEvent(t *testing.T, r *kgo.Record) schema.CartEventV1 {
	t.Helper()
	var ev schema.CartEventV1
	require.NoError(t, json.Unmarshal(r.Value, &ev))
	return ev
}

func TestNewCartEventsProducer(t *testing.T) {
	_, err := NewCartEventsProducer("k", ProducerEncoderOpt(jsonSerde{}))
	assert.ErrorIs(t, err, ErrTooFewOpts)

	_, err = NewCartEventsProducer("k", ProducerWithClientOpt(nil), ProducerEncoderOpt(jsonSerde{}))
	assert.Error(t, err)
}

func TestCartEventsProducer(t *testing.T) {
	t.Run("CartChanged", func(t *testing.T) {
		p, cl := newTestProducer(t, jsonSerde{})

		p.CartChanged(t.Context(), domain.Snapshot{
			Items: []domain.LineItem{{
				Product:  domain.Product{ID: "p1", Price: decimal.RequireFromString("9.5")},
				Quantity: 3,
			}},
			Total:     decimal.RequireFromString("28.5"),
			ItemCount: 3,
		})

		require.Len(t, cl.records, 1)
		r := cl.records[0]
		assert.Equal(t, []byte("darkstore-cart"), r.Key)

		ev := decodeEvent(t, r)
		assert.NotEmpty(t, ev.EventID)
		assert.Equal(t, schema.EventCartChanged, ev.Kind)
		assert.Equal(t, "28.50", ev.Total)
		assert.Equal(t, 3, ev.ItemCount)
		assert.Equal(t, []schema.CartEventItemV1{{ID: "p1", Price: "9.50", Quantity: 3}}, ev.Items)
		assert.True(t, ev.OccurredAt.Equal(p.now()))
	})

	t.Run("ReportFailure", func(t *testing.T) {
		p, cl := newTestProducer(t, jsonSerde{})
		at := time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC)

		p.ReportFailure(t.Context(), domain.PersistenceFailure{
			Op:  domain.OpSave,
			Key: "darkstore-cart",
			Err: errors.New("quota exceeded"),
			At:  at,
		})

		require.Len(t, cl.records, 1)
		ev := decodeEvent(t, cl.records[0])
		assert.Equal(t, schema.EventPersistenceFailed, ev.Kind)
		assert.Equal(t, "save", ev.FailureOp)
		assert.Equal(t, "darkstore-cart", ev.FailureKey)
		assert.Equal(t, "quota exceeded", ev.FailureError)
		assert.True(t, ev.OccurredAt.Equal(at))
	})

	t.Run("UniqueEventIDs", func(t *testing.T) {
		p, cl := newTestProducer(t, jsonSerde{})
		p.CartChanged(t.Context(), domain.Snapshot{})
		p.CartChanged(t.Context(), domain.Snapshot{})

		require.Len(t, cl.records, 2)
		assert.NotEqual(t,
			decodeEvent(t, cl.records[0]).EventID,
			decodeEvent(t, cl.records[1]).EventID)
	})

	t.Run("EncodeErrorDropsEvent", func(t *testing.T) {
		p, cl := newTestProducer(t, failingEncoder{})
		p.CartChanged(t.Context(), domain.Snapshot{})
		assert.Empty(t, cl.records)
	})

	t.Run("DeliveryErrorIsSwallowed", func(t *testing.T) {
		p, cl := newTestProducer(t, jsonSerde{})
		cl.err = errors.New("broker unavailable")
		assert.NotPanics(t, func() {
			p.CartChanged(t.Context(), domain.Snapshot{})
		})
		assert.Len(t, cl.records, 1)
	})

	t.Run("FullBufferDoesNotBlockCart", func(t *testing.T) {
		p, cl := newTestProducer(t, jsonSerde{})
		cl.full = true

		store, err := service.NewCartStore(t.Context(),
			service.StorageOpt(nopCartStorage{}),
			service.ReporterOpt(p),
		)
		require.NoError(t, err)
		store.Subscribe(p)

		done := make(chan domain.Snapshot)
		go func() {
			product := domain.Product{ID: "p1", Price: decimal.RequireFromString("10"), Stock: 3}
			for range 3 {
				store.AddToCart(context.Background(), product, 1)
			}
			done <- store.Snapshot()
		}()

		select {
		case snap := <-done:
			assert.Equal(t, 3, snap.ItemCount)
		case <-time.After(time.Second):
			t.Fatal("cart mutation blocked on the producer")
		}
		assert.Empty(t, cl.records)
		assert.Equal(t, 3, cl.dropped)
	})

	t.Run("CloseFlushes", func(t *testing.T) {
		p, cl := newTestProducer(t, jsonSerde{})
		p.Close()
		assert.True(t, cl.flushed)
		assert.True(t, cl.closed)
	})
}

type MockConsumerClient struct {
	mock.Mock
}

func (m *MockConsumerClient) PollFetches(ctx context.Context) kgo.Fetches {
	args := m.Called(ctx)
	return args.Get(0).(kgo.Fetches)
}

func (m *MockConsumerClient) CommitUncommittedOffsets(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockConsumerClient) Close() {
	m.Called()
}

type MockProductsSaver struct {
	mock.Mock
}

func (m *MockProductsSaver) SaveProducts(ctx context.Context, ps []domain.Product) error {
	args := m.Called(ctx, ps)
	return args.Error(0)
}

func fetchesOf(values ...[]byte) kgo.Fetches {
	rs := make([]*kgo.Record, len(values))
	for i, v := range values {
		rs[i] = &kgo.Record{Topic: "products", Value: v, Offset: int64(i)}
	}
	return kgo.Fetches{{Topics: []kgo.FetchTopic{{
		Topic:      "products",
		Partitions: []kgo.FetchPartition{{Partition: 0, Records: rs}},
	}}}}
}

func productRecord(t *testing.T, id string, stock int) []byte {
	t.Helper()
	b, err := json.Marshal(schema.ProductV1{ID: id, Name: id, Price: 10.5, Stock: stock})
	require.NoError(t, err)
	return b
}

func newTestConsumer(
	t *testing.T,
) (ProductsConsumer, *MockConsumerClient, *MockProductsSaver) {
	t.Helper()
	cl := new(MockConsumerClient)
	saver := new(MockProductsSaver)
	c, err := NewProductsConsumer(
		ConsumerWithClientOpt(cl),
		ConsumerDecoderOpt(jsonSerde{}),
		ConsumerProductsSaverOpt(saver),
	)
	require.NoError(t, err)
	return c, cl, saver
}

func TestNewProductsConsumer(t *testing.T) {
	_, err := NewProductsConsumer(ConsumerDecoderOpt(jsonSerde{}))
	assert.ErrorIs(t, err, ErrTooFewOpts)
}

func TestProductsConsumer(t *testing.T) {
	t.Run("SavesThenCommits", func(t *testing.T) {
		c, cl, saver := newTestConsumer(t)
		fetches := fetchesOf(
			productRecord(t, "p1", 1),
			[]byte("not a product"),
			productRecord(t, "p2", 2),
			productRecord(t, "p1", 5),
		)
		cl.On("PollFetches", mock.Anything).Return(fetches).Once()
		saver.On("SaveProducts", mock.Anything, mock.MatchedBy(func(ps []domain.Product) bool {
			return len(ps) == 2 &&
				ps[0].ID == "p1" && ps[0].Stock == 5 &&
				ps[1].ID == "p2" &&
				ps[0].Price.Equal(decimal.RequireFromString("10.5"))
		})).Return(nil).Once()
		cl.On("CommitUncommittedOffsets", mock.Anything).Return(nil).Once()

		require.NoError(t, c.consume(t.Context()))
		cl.AssertExpectations(t)
		saver.AssertExpectations(t)
	})

	t.Run("SaveErrorSkipsCommit", func(t *testing.T) {
		c, cl, saver := newTestConsumer(t)
		cl.On("PollFetches", mock.Anything).Return(fetchesOf(productRecord(t, "p1", 1))).Once()
		saver.On("SaveProducts", mock.Anything, mock.Anything).Return(errors.New("invalid")).Once()

		err := c.consume(t.Context())
		assert.ErrorContains(t, err, "invalid")
		cl.AssertNotCalled(t, "CommitUncommittedOffsets", mock.Anything)
	})

	t.Run("EmptyPoll", func(t *testing.T) {
		c, cl, saver := newTestConsumer(t)
		cl.On("PollFetches", mock.Anything).Return(kgo.Fetches{}).Once()

		require.NoError(t, c.consume(t.Context()))
		saver.AssertNotCalled(t, "SaveProducts", mock.Anything, mock.Anything)
	})

	t.Run("PartitionError", func(t *testing.T) {
		c, cl, _ := newTestConsumer(t)
		fetches := kgo.Fetches{{Topics: []kgo.FetchTopic{{
			Topic: "products",
			Partitions: []kgo.FetchPartition{
				{Partition: 0, Err: errors.New("leader not available")},
				{Partition: 1, Err: errors.New("offset out of range")},
			},
		}}}}
		cl.On("PollFetches", mock.Anything).Return(fetches).Once()

		err := c.consume(t.Context())
		assert.ErrorContains(t, err, "partition 1")
	})

	t.Run("RunStopsOnCancel", func(t *testing.T) {
		c, cl, _ := newTestConsumer(t)
		ctx, cancel := context.WithCancel(t.Context())
		cl.On("PollFetches", mock.Anything).Run(func(mock.Arguments) {
			cancel()
		}).Return(kgo.Fetches{}).Once()

		done := make(chan struct{})
		go func() {
			c.Run(ctx)
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("consumer did not stop")
		}
	})
}
