package di

import (
	"context"
	"fmt"
	"time"

	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/handler/api"
	mid "TradePulse/internal/middleware"
	internalrepo "TradePulse/internal/repository"
	opsmetrics "TradePulse/internal/service/metrics"
	"TradePulse/internal/service/outbox"
	"TradePulse/internal/usecase"
	"TradePulse/pkg/cache"
	pkgch "TradePulse/pkg/clickhouse"
	"TradePulse/pkg/config"
	pkghttp "TradePulse/pkg/http"
	pkgkafka "TradePulse/pkg/kafka"
	applogger "TradePulse/pkg/logger"
	"TradePulse/pkg/metrics"
	pgclient "TradePulse/pkg/postgres"
	"TradePulse/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const initTimeout = 10 * time.Second

// ProvideRegistry creates the Prometheus registry every component reports to.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pkgkafka.SetProducerMetricsRegisterer(reg)
	pkgkafka.SetConsumerMetricsRegisterer(reg)
	opsmetrics.Register(reg)
	return reg
}

// ProvideMetrics creates the engine metrics recorder.
func ProvideMetrics(cfg *config.Config, reg *prometheus.Registry) domrepo.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Noop{}
	}
	return metrics.NewWithRegistry(reg)
}

// ProvideKafkaProducer creates the producer shared by the alerts topic and
// the log collector.
func ProvideKafkaProducer(cfg *config.Config, _ *prometheus.Registry) (*pkgkafka.Producer, func(), error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.Producer.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger creates the root logger. The collector is attached here,
// before any child logger copies it.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	log, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if !cfg.Log.Collector.Enabled {
		return log, func() {}, nil
	}
	log.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   cfg.Log.Collector.Interval,
		CountThreshold: cfg.Log.Collector.CountThreshold,
		Topic:          cfg.Log.Collector.Topic,
		Publisher:      producer,
		PublishTimeout: cfg.Kafka.Producer.WriteTimeout,
	})
	return log, log.RemoveCollector, nil
}

// ProvideCache creates the snapshot store: Redis, or process memory when
// Redis is disabled.
func ProvideCache(cfg *config.Config, log *applogger.Logger) (cache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		log.Warn("redis disabled, snapshots kept in memory")
		var opts []cache.MemoryOption
		if cfg.Engine.MaxSymbols > 0 {
			opts = append(opts, cache.WithMemoryMaxSize(cfg.Engine.MaxSymbols))
		}
		mc := cache.NewMemoryCache(opts...)
		return mc, func() { _ = mc.Close() }, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, 30*time.Second),
		cache.WithRedisDialTimeout(cfg.Redis.DialTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvidePostgresClient creates the pgx pool backing the alert store.
func ProvidePostgresClient(cfg *config.Config) (*pgclient.Client, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	opts := []pgclient.ClientOption{
		pgclient.WithHost(cfg.Postgres.Host, cfg.Postgres.Port),
		pgclient.WithDatabase(cfg.Postgres.Database),
		pgclient.WithCredentials(cfg.Postgres.User, cfg.Postgres.Password),
		pgclient.WithSSLMode(cfg.Postgres.SSLMode),
		pgclient.WithPool(cfg.Postgres.MaxConns, cfg.Postgres.MinConns, time.Hour),
	}
	if cfg.Postgres.DSN != "" {
		opts = append(opts, pgclient.WithDSN(cfg.Postgres.DSN))
	}
	client, err := pgclient.NewClient(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	return client, client.Close, nil
}

// ProvideAlertStore creates the alerts table and returns the store.
func ProvideAlertStore(pg *pgclient.Client) (*internalrepo.PostgresAlertStore, error) {
	store := internalrepo.NewPostgresAlertStore(pg.Pool())
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("alerts schema: %w", err)
	}
	return store, nil
}

// ProvideClickHouseClient connects to ClickHouse when the raw archive is
// enabled and returns nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.Archive.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideTradeArchiver creates the raw trade archiver, or nil when the
// archive is disabled.
func ProvideTradeArchiver(cfg *config.Config, ch *pkgch.Client, m domrepo.Metrics, log *applogger.Logger) (*usecase.TradeArchiver, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseTradeArchive(ch.DB(), cfg.ClickHouse.Database, cfg.Archive.Table, cfg.Archive.TTLDays)
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return usecase.NewTradeArchiver(usecase.ArchiverConfig{
		BufferSize:   cfg.Archive.BufferSize,
		BatchSize:    cfg.Archive.BatchSize,
		BatchTimeout: cfg.Archive.BatchTimeout,
		WriteTimeout: cfg.Archive.WriteTimeout,
	}, store, m, log), nil
}

// ProvideAlertPublisher returns the alerts topic publisher, or nil when no
// alerts topic is configured.
func ProvideAlertPublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.AlertPublisher {
	if cfg.Kafka.Topics.Alerts == "" {
		return nil
	}
	return internalrepo.NewKafkaAlertPublisher(producer, cfg.Kafka.Topics.Alerts)
}

func ProvideOutbox(cfg *config.Config, m domrepo.Metrics, log *applogger.Logger) *outbox.Outbox {
	return outbox.New(outbox.Config{
		BufferSize:   cfg.Sink.BufferSize,
		MaxAttempts:  cfg.Sink.MaxAttempts,
		BackoffMin:   cfg.Sink.BackoffMin,
		BackoffMax:   cfg.Sink.BackoffMax,
		WriteTimeout: cfg.Sink.WriteTimeout,
		DropPolicy:   outbox.DropPolicy(cfg.Sink.DropPolicy),
	}, m, log)
}

func ProvideOutputDispatcher(
	cfg *config.Config,
	ob *outbox.Outbox,
	store cache.Service,
	alerts *internalrepo.PostgresAlertStore,
	pub domrepo.AlertPublisher,
	m domrepo.Metrics,
	log *applogger.Logger,
) *usecase.OutputDispatcher {
	return usecase.NewOutputDispatcher(
		ob,
		internalrepo.NewRedisMetricsSink(store, cfg.Sink.MetricsTTL),
		alerts,
		pub,
		cfg.Sink.PublishTimeout,
		m,
		log,
	)
}

func ProvideIngressRouter(cfg *config.Config, d *usecase.OutputDispatcher, m domrepo.Metrics, log *applogger.Logger) *usecase.IngressRouter {
	state := usecase.DefaultStateConfig()
	state.AllowedLateness = cfg.Engine.AllowedLateness
	state.Retention = cfg.Engine.Retention
	state.VolatilitySpan = cfg.Engine.VolatilityWindow
	state.Spike.Threshold = cfg.Engine.SpikeThreshold
	state.Spike.Bucket = cfg.Engine.SpikeBucket
	state.Spike.Baseline = cfg.Engine.SpikeBaseline

	return usecase.NewIngressRouter(usecase.RouterConfig{
		State:          state,
		MailboxSize:    cfg.Engine.MailboxSize,
		Backpressure:   usecase.Backpressure(cfg.Engine.Backpressure),
		MaxSymbols:     cfg.Engine.MaxSymbols,
		AllowedSymbols: cfg.Engine.Symbols,
	}, d, m, log)
}

// ProvideTradesHandler builds the ingress chain for the trades topic:
// decode, guard (and archive tap), router.
func ProvideTradesHandler(
	cfg *config.Config,
	router *usecase.IngressRouter,
	archiver *usecase.TradeArchiver,
	m domrepo.Metrics,
	log *applogger.Logger,
) *usecase.KafkaTradesHandler {
	opts := []mid.GuardOption{mid.WithMaxRPS(cfg.Engine.MaxRPS)}
	if archiver != nil {
		opts = append(opts, mid.WithTap(archiver.Enqueue))
	}
	guard := mid.NewTradeGuard(router, m, log, opts...)
	return usecase.NewKafkaTradesHandler(cfg.Kafka.Topics.Trades, guard, m)
}

func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger, _ *prometheus.Registry) (*pkgkafka.Consumer, error) {
	cc := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cc.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(cc.AutoOffsetReset),
		pkgkafka.WithConsumerWorkers(cc.Workers),
		pkgkafka.WithConsumerBufferSize(cc.BufferSize),
		pkgkafka.WithConsumerRetry(cc.RetryMax, cc.BackoffMin, cc.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Topics.DLQ),
		pkgkafka.WithConsumerFetch(cc.MinBytes, cc.MaxBytes),
		pkgkafka.WithConsumerLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.NewTraceHook(),
		pkgkafka.NewLoggingHook(log),
	))
	return consumer, nil
}

func ProvideEmissionScheduler(cfg *config.Config, router *usecase.IngressRouter, log *applogger.Logger) *usecase.EmissionScheduler {
	return usecase.NewEmissionScheduler(cfg.Engine.EmitInterval, router, log)
}

// ProvideOpsHandler builds the ops API with one health check per backing
// store.
func ProvideOpsHandler(
	log *applogger.Logger,
	router *usecase.IngressRouter,
	store cache.Service,
	alerts *internalrepo.PostgresAlertStore,
	ch *pkgch.Client,
) *api.OpsEchoHandler {
	checks := []api.HealthCheck{
		{Name: "redis", Check: store.Ping},
		{Name: "postgres", Check: alerts.Health},
	}
	if ch != nil {
		checks = append(checks, api.HealthCheck{Name: "clickhouse", Check: ch.Health})
	}
	return api.NewOpsEchoHandler(log, router, checks...)
}

func ProvideHTTPServer(cfg *config.Config, h *api.OpsEchoHandler, reg *prometheus.Registry, log *applogger.Logger) *pkghttp.Server {
	path := ""
	if cfg.Metrics.Enabled {
		path = cfg.Metrics.Path
	}
	return pkghttp.NewServer(h,
		pkghttp.WithPort(cfg.Server.Port),
		pkghttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		pkghttp.WithMetrics(path, reg, reg),
		pkghttp.WithLogger(log),
	)
}

// ProvideApp assembles the lifecycle. Shutdown order: consumer, archive,
// workers (final snapshots), outbox flush. Clients close afterwards through
// the injector cleanup.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	consumer *pkgkafka.Consumer,
	trades *usecase.KafkaTradesHandler,
	scheduler *usecase.EmissionScheduler,
	httpServer *pkghttp.Server,
	archiver *usecase.TradeArchiver,
	router *usecase.IngressRouter,
	ob *outbox.Outbox,
) *server.App {
	c := server.Components{
		Source:   consumer,
		Handlers: []pkgkafka.MessageHandler{trades},
		Services: []server.Runner{scheduler, httpServer},
		Drain: []server.Step{
			{Name: "router", Fn: router.Stop},
			{Name: "outbox", Fn: func(ctx context.Context) error {
				fctx, cancel := context.WithTimeout(ctx, cfg.Sink.FlushTimeout)
				defer cancel()
				return ob.Close(fctx)
			}},
		},
	}
	if archiver != nil {
		c.Tails = append(c.Tails, archiver)
	}
	return server.New(c, log, cfg.Server.ShutdownTimeout)
}
