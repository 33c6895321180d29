package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"compliance/internal/audit"
	"compliance/internal/compliance"
	"compliance/internal/config"
	"compliance/internal/constants"
	"compliance/internal/identity"
	"compliance/internal/ingest"
	"compliance/internal/jobs"
	"compliance/internal/logger"
	"compliance/internal/notify"
	"compliance/internal/reports"
	"compliance/internal/storage"
	"compliance/pkg/bootstrap"
	"compliance/pkg/cel"
	"compliance/pkg/circuitbreaker"
	"compliance/pkg/health"
	"compliance/pkg/logging"
	"compliance/pkg/metrics"
	"compliance/pkg/migrations"
	"compliance/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector
	db          *sql.DB
	redis       *redis.Client
	dispatcher  *ingest.Dispatcher
	worker      *jobs.Worker
	server      *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return err
	}

	if err := a.InitBroker(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	tp, err := tracing.Init(ctx, a.Config.Tracing, tracing.Service{
		Name:          constants.AppName,
		Version:       constants.Version,
		ConsumerGroup: a.Config.Broker.Kafka.GroupID,
		Topic:         a.Config.Broker.Kafka.Topics.InventoryEvents,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.OnShutdown("tracer provider", tp.Shutdown)

	metrics.RegisterIngestMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterDatabaseMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initPipeline(); err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	a.initHTTPServer()
	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	a.db = db
	a.OnShutdown("postgres", func(context.Context) error { return db.Close() })
	a.Health.Register(health.NewPostgreSQLChecker(db))

	if a.Config.Database.RunMigrations {
		version, err := migrations.UpPostgres(ctx, db)
		if err != nil {
			return err
		}
		a.Logger.Infow("Database migrations applied", "version", version)
	}

	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	a.redis = rdb
	a.OnShutdown("redis", func(context.Context) error { return rdb.Close() })
	a.Health.Register(health.NewRedisChecker(rdb))
	return nil
}

func (a *App) initPipeline() error {
	cfg := a.Config
	store := storage.New(a.db)

	env, err := cel.NewEvaluator()
	if err != nil {
		return err
	}
	expr := cfg.Compliance.Rule
	if expr == "" {
		expr = constants.DefaultComplianceRule
	}
	rule, err := env.CompileRule(expr)
	if err != nil {
		return fmt.Errorf("invalid compliance rule %q: %w", expr, err)
	}

	fetcher, err := reports.NewRouter(cfg.Reports, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create report store: %w", err)
	}

	topics := cfg.Broker.Kafka.Topics
	notifyBreaker := circuitbreaker.FromSettings("notifications", circuitbreaker.Settings(cfg.CircuitBreaker))
	notifier := notify.NewDispatcher(a.Producer, notify.Topics{
		Notifications:      topics.Notifications,
		RemediationUpdates: topics.RemediationUpdates,
	}, notifyBreaker, a.Logger)

	var queue jobs.Queue = jobs.NewRedisQueue(a.redis, cfg.Jobs.Queue)
	if cfg.CircuitBreaker.Enabled {
		cbQueue := jobs.NewCircuitBreakerQueue(queue, cfg.CircuitBreaker)
		queue = cbQueue
		a.Health.Register(health.NewBreakerChecker("redis-jobs", cbQueue.IsOpen))
		a.Health.Register(health.NewBreakerChecker("notifications", notifyBreaker.IsOpen))
		a.Logger.Infow("Circuit breakers enabled for job queue and notifications")
	}

	auditor := audit.New(a.Logger)
	upload := ingest.NewUploadHandler(ingest.UploadDeps{
		Identity:  identity.NewHeaderValidator("insights"),
		Reports:   fetcher,
		Parser:    ingest.NewReportParser(store),
		Evaluator: compliance.NewEvaluator(store, rule, a.Logger),
		Notifier:  notifier,
		Results:   ingest.NewResultProducer(a.Producer, topics.UploadValidation, a.Logger).WithSource(cfg.Broker.Kafka.Source),
		Systems:   store,
		Audit:     auditor,
	}, cfg.Reports.FailFast, a.Logger)

	a.dispatcher = ingest.NewDispatcher(upload, ingest.NewDeletionHandler(queue, auditor, a.Logger), a.Logger)

	if cfg.Jobs.Worker {
		a.worker = jobs.NewWorker(queue, store, jobs.WorkerConfig{
			PollTimeout: cfg.Jobs.PollTimeout,
			MaxAttempts: cfg.Jobs.MaxAttempts,
		}, a.Logger)
	}
	return nil
}

func (a *App) initHTTPServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", health.Handler(a.Health))
	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:           mux,
		ReadTimeout:       a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout:      a.Config.Server.WriteTimeoutSeconds,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	runCtx := logging.WithServiceName(ctx, constants.AppName)

	if a.server != nil {
		g.Go(func() error {
			a.Logger.InfowCtx(runCtx, "HTTP server starting", "port", a.Config.Server.Port)
			if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	if a.worker != nil {
		g.Go(func() error {
			return a.worker.Run(gCtx)
		})
	}

	topic := a.Config.Broker.Kafka.Topics.InventoryEvents
	g.Go(func() error {
		a.Logger.InfowCtx(runCtx, "Consuming inventory events", "topic", topic)
		return a.Consumer.Consume(gCtx, topic, a.dispatcher.HandleBatch)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.Base.Shutdown(logging.WithServiceName(ctx, constants.AppName))
}
