package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agentsites/internal/config"
	"agentsites/internal/deploy/vercel"
	"agentsites/internal/logging"
	"agentsites/internal/publisher"
	"agentsites/internal/service"
	"agentsites/internal/source/apex27"
	"agentsites/internal/storage/postgres"
)

// app holds the shared process wiring. Components are built on demand so
// each command only connects to what it uses.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sqlx.DB

	closers []io.Closer
	queue   *service.BuildQueue
}

func newApp(ctx context.Context, path string) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, logCloser := logging.New(cfg.Log)

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.DSN())
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	logger.Info("connected to database", "host", cfg.Database.Host, "dbname", cfg.Database.DBName)

	return &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		closers: []io.Closer{db, logCloser},
	}, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
}

func (a *app) buildQueue() *service.BuildQueue {
	if a.queue == nil {
		a.queue = service.NewBuildQueue(
			postgres.NewBuildQueueStore(a.db),
			postgres.NewTenantStore(a.db),
			postgres.NewTransactionManager(a.db),
			a.logger,
			a.cfg.Queue,
		)
	}
	return a.queue
}

func (a *app) builder() *service.Builder {
	data := service.NewSiteDataGenerator(
		postgres.NewTenantStore(a.db),
		postgres.NewContentStore(a.db),
		a.logger,
	)

	deployer := vercel.New(vercel.Config{
		APIURL:        a.cfg.Vercel.APIURL,
		Token:         a.cfg.Vercel.Token,
		TeamID:        a.cfg.Vercel.TeamID,
		ProjectID:     a.cfg.Vercel.ProjectID,
		RepoID:        a.cfg.Vercel.RepoID,
		DeployHookURL: a.cfg.Vercel.DeployHookURL,
		BaseDomain:    a.cfg.Vercel.BaseDomain,
		Timeout:       a.cfg.Vercel.Timeout,
		PollInterval:  a.cfg.Builder.PollInterval,
		PollAttempts:  a.cfg.Builder.PollAttempts,
	}, a.logger)

	return service.NewBuilder(a.buildQueue(), data, deployer, a.publisher(), a.logger, a.cfg.Builder)
}

// publisher returns nil when RabbitMQ is not configured or unreachable;
// build events are best effort.
func (a *app) publisher() service.Publisher {
	if a.cfg.RabbitMQ.URL == "" {
		return nil
	}

	rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        a.cfg.RabbitMQ.URL,
		Exchange:   a.cfg.RabbitMQ.Exchange,
		RoutingKey: a.cfg.RabbitMQ.RoutingKey,
		QueueName:  a.cfg.RabbitMQ.QueueName,
	}, a.logger)
	if err != nil {
		a.logger.Warn("build events disabled, rabbitmq unavailable", "error", err)
		return nil
	}
	a.closers = append(a.closers, rabbitMQ)
	return rabbitMQ
}

func (a *app) listingSource() *apex27.Client {
	return apex27.New(apex27.Config{
		BaseURL:        a.cfg.Apex27.BaseURL,
		APIKey:         a.cfg.Apex27.APIKey,
		PageSize:       a.cfg.Apex27.PageSize,
		Timeout:        a.cfg.Apex27.Timeout,
		MaxAttempts:    a.cfg.Apex27.Retry.MaxAttempts,
		InitialBackoff: a.cfg.Apex27.Retry.InitialBackoff,
		MaxBackoff:     a.cfg.Apex27.Retry.MaxBackoff,
	}, a.logger)
}

func (a *app) propertySync() *service.PropertySync {
	return service.NewPropertySync(
		a.listingSource(),
		postgres.NewTenantStore(a.db),
		postgres.NewPropertyStore(a.db),
		postgres.NewSyncStateStore(a.db),
		a.buildQueue(),
		a.logger,
		a.cfg.Sync,
	)
}

// serveMetrics exposes /metrics for the worker commands until ctx ends.
func (a *app) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
}
