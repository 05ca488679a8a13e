package app

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/niksmo/darkstore/config"
	"github.com/niksmo/darkstore/internal/adapter"
	"github.com/niksmo/darkstore/internal/adapter/httphandler"
	"github.com/niksmo/darkstore/internal/adapter/kafka"
	"github.com/niksmo/darkstore/internal/adapter/storage"
	"github.com/niksmo/darkstore/internal/adapter/telemetry"
	"github.com/niksmo/darkstore/internal/core/port"
	"github.com/niksmo/darkstore/internal/core/service"
	"github.com/niksmo/darkstore/pkg/retry"
	"github.com/niksmo/darkstore/pkg/schema"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sr"
)

var connectRetry = retry.RetryConfig{
	MaxAttempts: 5,
	Backoff:     retry.ExponentialBackoff(200 * time.Millisecond),
}

type serdes struct {
	cartEvent schema.Serde
	product   schema.Serde
}

type events struct {
	producer kafka.CartEventsProducer
	consumer kafka.ProductsConsumer
	enabled  bool
}

type storages struct {
	sqlDB       *storage.SQLDB
	redisClient *redis.Client
	async       *storage.AsyncCartSaver
	cart        port.CartStorage
	products    port.ProductsStorage
}

type App struct {
	ctx        context.Context
	cfg        config.Config
	wg         sync.WaitGroup
	serdes     serdes
	events     events
	storages   storages
	reporter   port.FailureReporter
	cartStore  *service.CartStore
	catalog    service.Catalog
	httpServer httphandler.HTTPServer
}

func New(ctx context.Context, cfg config.Config) *App {
	app := &App{ctx: ctx, cfg: cfg}

	app.initLogger()
	app.initEvents()
	app.initReporter()
	app.initStorages()
	app.initCoreService()
	app.initInboundAdapters()

	return app
}

func (app *App) initLogger() {
	opts := &slog.HandlerOptions{Level: app.cfg.LogLevel}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, opts))
	slog.SetDefault(logger)
}

func (app *App) initEvents() {
	const op = "App.initEvents"

	if !app.cfg.EventsEnabled() {
		slog.Info("no seed brokers, cart events are disabled", "op", op)
		return
	}

	ctx := app.ctx
	brokerCfg := app.cfg.Broker

	srClient, err := sr.NewClient(sr.URLs(brokerCfg.SchemaRegistryURLs...))
	if err != nil {
		app.fallDown(op, err)
	}
	schemaCreater := schema.NewSchemaCreater(srClient)

	cartEventSerde, err := schema.NewSerdeCartEventV1(
		ctx,
		schema.SubjectOpt(brokerCfg.Topics.CartEvents+"-value"),
		schema.SchemaIdentifierOpt(schemaCreater),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	productSerde, err := schema.NewSerdeProductV1(
		ctx,
		schema.SubjectOpt(brokerCfg.Topics.Products+"-value"),
		schema.SchemaIdentifierOpt(schemaCreater),
	)
	if err != nil {
		app.fallDown(op, err)
	}
	app.serdes = serdes{cartEvent: cartEventSerde, product: productSerde}

	var kgoOpts []kgo.Opt
	if brokerCfg.TLS.Enabled() {
		kgoOpts = append(kgoOpts, kgo.DialTLSConfig(app.loadTLS(op, brokerCfg.TLS)))
	}

	producer, err := kafka.NewCartEventsProducer(
		app.cfg.Storage.CartKey,
		kafka.ProducerClientOpt(
			ctx, brokerCfg.SeedBrokers, brokerCfg.Topics.CartEvents, kgoOpts...,
		),
		kafka.ProducerEncoderOpt(app.serdes.cartEvent),
	)
	if err != nil {
		app.fallDown(op, err)
	}
	app.events.producer = producer
	app.events.enabled = true
}

func (app *App) initReporter() {
	reporters := []port.FailureReporter{telemetry.NewLogReporter(nil)}
	if app.events.enabled {
		reporters = append(reporters, app.events.producer)
	}
	app.reporter = telemetry.NewMultiReporter(reporters...)
}

func (app *App) initStorages() {
	const op = "App.initStorages"
	storageCfg := app.cfg.Storage

	kv := app.openKV(op)

	cartCodec, err := schema.NewCartCodec(storageCfg.Codec)
	if err != nil {
		app.fallDown(op, err)
	}
	productCodec, err := schema.NewProductCodec(storageCfg.Codec)
	if err != nil {
		app.fallDown(op, err)
	}

	app.storages.products = storage.NewProductsRepository(
		kv, productCodec, storageCfg.ProductsKey,
	)

	var cartStorage port.CartStorage = storage.NewCartRepository(
		kv, cartCodec, storageCfg.CartKey,
	)
	if storageCfg.Async {
		async, err := storage.NewAsyncCartSaver(
			storage.AsyncStorageOpt(cartStorage),
			storage.AsyncReporterOpt(app.reporter, storageCfg.CartKey),
			storage.AsyncTimeoutOpt(storageCfg.WriteTimeout),
		)
		if err != nil {
			app.fallDown(op, err)
		}
		app.storages.async = async
		cartStorage = async
	}
	app.storages.cart = cartStorage
}

func (app *App) openKV(op string) storage.KV {
	storageCfg := app.cfg.Storage

	switch storageCfg.Driver {
	case config.DriverSQL:
		db, err := retry.DoWithResult(app.ctx, connectRetry, func() (storage.SQLDB, error) {
			return storage.NewSQLDB(app.ctx, storageCfg.SQLDB)
		})
		if err != nil {
			app.fallDown(op, err)
		}
		app.storages.sqlDB = &db
		return storage.NewSQLKV(db)

	case config.DriverRedis:
		redisCfg := storageCfg.Redis
		opts := &redis.Options{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		}
		if redisCfg.TLS.Enabled() {
			opts.TLSConfig = app.loadTLS(op, redisCfg.TLS)
		}
		client := redis.NewClient(opts)
		err := retry.Do(app.ctx, connectRetry, func() error {
			return client.Ping(app.ctx).Err()
		})
		if err != nil {
			app.fallDown(op, err)
		}
		app.storages.redisClient = client
		return storage.NewRedisKV(client, redisCfg.Prefix)

	default:
		kv, err := storage.NewFileKV(afero.NewOsFs(), storageCfg.Dir)
		if err != nil {
			app.fallDown(op, err)
		}
		return kv
	}
}

func (app *App) initCoreService() {
	const op = "App.initCoreService"

	app.catalog = service.NewCatalog(app.storages.products)

	cartStore, err := service.NewCartStore(
		app.ctx,
		service.StorageOpt(app.storages.cart),
		service.ReporterOpt(app.reporter),
		service.KeyOpt(app.cfg.Storage.CartKey),
	)
	if err != nil {
		app.fallDown(op, err)
	}
	if app.events.enabled {
		cartStore.Subscribe(app.events.producer)
	}
	app.cartStore = cartStore

	if !app.events.enabled {
		return
	}

	brokerCfg := app.cfg.Broker
	var kgoOpts []kgo.Opt
	if brokerCfg.TLS.Enabled() {
		kgoOpts = append(kgoOpts, kgo.DialTLSConfig(app.loadTLS(op, brokerCfg.TLS)))
	}
	consumer, err := kafka.NewProductsConsumer(
		kafka.ConsumerClientOpt(
			brokerCfg.SeedBrokers,
			brokerCfg.Topics.Products,
			brokerCfg.Consumers.ProductsGroup,
			kgoOpts...,
		),
		kafka.ConsumerDecoderOpt(app.serdes.product),
		kafka.ConsumerProductsSaverOpt(app.catalog),
	)
	if err != nil {
		app.fallDown(op, err)
	}
	app.events.consumer = consumer
}

func (app *App) initInboundAdapters() {
	handler := httphandler.NewMux(app.cartStore, app.catalog)
	app.httpServer = httphandler.NewHTTPServer(app.cfg.HTTPServerAddr, handler)
}

func (app *App) Run(stopFn context.CancelFunc) {
	go app.httpServer.Run(stopFn)

	if app.events.enabled {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.events.consumer.Run(app.ctx)
		}()
	}

	slog.Info("application is running")
}

// Close stops inbound traffic first, then flushes pending cart writes
// before the outbound clients go away.
func (app *App) Close(ctx context.Context) {
	slog.Info("application is closing...")

	app.httpServer.Close(ctx)

	if app.storages.async != nil {
		app.storages.async.Close()
	}

	if app.events.enabled {
		app.wg.Wait()
		app.events.consumer.Close()
		app.events.producer.Close()
	}

	if app.storages.sqlDB != nil {
		app.storages.sqlDB.Close()
	}
	if app.storages.redisClient != nil {
		if err := app.storages.redisClient.Close(); err != nil {
			slog.Error("failed to close redis client", "err", err)
		}
	}

	slog.Info("application is closed")
}

func (app *App) loadTLS(op string, t config.TLS) *tls.Config {
	tlsCfg, err := adapter.LoadClientTLS(t.CAFile, t.CertFile, t.KeyFile)
	if err != nil {
		app.fallDown(op, err)
	}
	return tlsCfg
}

func (app *App) fallDown(op string, err error) {
	panic(fmt.Errorf("%s: %w", op, err))
}
