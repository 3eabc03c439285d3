// Package app initializes and holds the long-lived application services,
// acting as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/muniwatch/muniwatch/internal/api"
	"github.com/muniwatch/muniwatch/internal/clock/system"
	"github.com/muniwatch/muniwatch/internal/config"
	"github.com/muniwatch/muniwatch/internal/crawllog"
	"github.com/muniwatch/muniwatch/internal/id/uuid"
	"github.com/muniwatch/muniwatch/internal/ingest"
	"github.com/muniwatch/muniwatch/internal/monitor"
	pubsubpublisher "github.com/muniwatch/muniwatch/internal/publisher/pubsub"
	"github.com/muniwatch/muniwatch/internal/repository"
	"github.com/muniwatch/muniwatch/internal/scheduler"
	"github.com/muniwatch/muniwatch/internal/search/collysearch"
	"github.com/muniwatch/muniwatch/internal/search/staticsearch"
	"github.com/muniwatch/muniwatch/internal/storage/jsonfile"
	memorystorage "github.com/muniwatch/muniwatch/internal/storage/memory"
	"github.com/muniwatch/muniwatch/internal/storage/postgres"
)

// App holds the wired services for one process.
type App struct {
	Config       config.Config
	Logger       *zap.Logger
	Store        monitor.Store
	Repository   *repository.Repository
	CrawlLog     *crawllog.Log
	Searcher     monitor.Searcher
	Orchestrator *ingest.Orchestrator
	Scheduler    *scheduler.Scheduler
	Server       *api.Server

	pgStore   *postgres.Store
	publisher *pubsubpublisher.Publisher
}

// New builds every service from the configuration, failing fast when a
// backend cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	clock := system.New()
	idGen := uuid.NewUUIDGenerator()

	switch cfg.Storage.Backend {
	case "jsonfile":
		store, err := jsonfile.New(cfg.Storage.DataDir, logger.Named("storage"))
		if err != nil {
			return nil, fmt.Errorf("init jsonfile store: %w", err)
		}
		logger.Info("using jsonfile storage", zap.String("data_dir", cfg.Storage.DataDir))
		a.Store = store
	case "memory":
		logger.Info("using in-memory storage, data will not survive a restart")
		a.Store = memorystorage.New()
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.Storage.Postgres.DSN,
			MaxConns: cfg.Storage.Postgres.MaxConns,
			MinConns: cfg.Storage.Postgres.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		logger.Info("using postgres storage")
		a.pgStore = store
		a.Store = store
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	switch cfg.Crawl.Searcher {
	case "web":
		searcher, err := collysearch.New(collysearch.Config{
			Endpoint:     cfg.Crawl.Endpoint,
			UserAgent:    cfg.Crawl.UserAgent,
			Timeout:      cfg.Crawl.Timeout(),
			MaxBodyBytes: cfg.Crawl.MaxBodyBytes,
		}, idGen, clock, logger.Named("search"))
		if err != nil {
			return nil, fmt.Errorf("init web searcher: %w", err)
		}
		a.Searcher = searcher
	case "static":
		logger.Info("using static searcher, crawls return fixture results")
		a.Searcher = staticsearch.New(nil, idGen, clock)
	default:
		return nil, fmt.Errorf("unknown searcher %q", cfg.Crawl.Searcher)
	}

	var publisher monitor.Publisher
	if cfg.PubSub.Enabled {
		p, err := pubsubpublisher.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
		if err != nil {
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		logger.Info("publishing completion events", zap.String("topic", cfg.PubSub.TopicName))
		a.publisher = p
		publisher = p
	}

	a.Repository = repository.New(a.Store, clock, logger.Named("repository"))
	a.CrawlLog = crawllog.New(a.Store, clock, logger.Named("crawllog"))
	a.Orchestrator = ingest.New(a.Store, a.Searcher, a.CrawlLog, publisher, ingest.Config{
		DefaultQueries:     cfg.Crawl.DefaultQueries,
		MaxResultsPerQuery: cfg.Crawl.MaxResultsPerQuery,
		Topic:              cfg.PubSub.TopicName,
	}, logger.Named("ingest"))

	if cfg.Schedule.Enabled {
		sched, err := scheduler.New(cfg.Schedule.Spec, a.Orchestrator, logger.Named("scheduler"))
		if err != nil {
			return nil, err
		}
		a.Scheduler = sched
	}

	a.Server = api.NewServer(a.Repository, a.Orchestrator, a.CrawlLog, clock, cfg, logger.Named("api"))
	return a, nil
}

// Close releases backend resources.
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.Logger.Warn("close publisher failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
}
