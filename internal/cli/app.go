package cli

import (
	"context"
	"fmt"

	"findash/internal/amqp"
	"findash/internal/backend"
	"findash/internal/config"
	"findash/internal/loader"
	applog "findash/internal/log"
	"findash/internal/narrative"
	"findash/internal/pipeline"
	"findash/internal/services"
	"findash/internal/storage"
)

// App is the wired report stack shared by the server and the CLI.
type App struct {
	Config     *config.Config
	Logger     *applog.Logger
	Policy     pipeline.Policy
	Loader     *loader.Loader
	Narratives *narrative.Service
	Service    *services.ReportService

	// Store and Bus are nil when disabled.
	Store *storage.SQLiteRepository
	Bus   *amqp.Client

	cleanup []backend.CleanupFunc
}

// NewApp builds the pipeline, sources, loader and narrative service from
// cfg. store may be nil. An unreachable broker is logged and leaves Bus nil.
func NewApp(ctx context.Context, cfg *config.Config, logger *applog.Logger, store *storage.SQLiteRepository) (*App, error) {
	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}
	engine, err := pipeline.New(policy)
	if err != nil {
		return nil, err
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentLoader).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", bcfg.Type, err)
	}

	app := &App{Config: cfg, Logger: logger, Policy: policy, Store: store}
	if res.Cleanup != nil {
		app.cleanup = append(app.cleanup, res.Cleanup)
	}

	app.Loader = loader.New(res.Sources.Transactions, res.Sources.Mapping, engine,
		loader.WithTTL(cfg.SnapshotTTL),
		loader.WithLoadTimeout(cfg.LoadTimeout))

	provider, err := narrative.NewProvider(ctx, cfg.NarrativeProvider, cfg.NarrativeAPIKey, cfg.NarrativeModel)
	if err != nil {
		return nil, err
	}
	opts := []narrative.Option{
		narrative.WithTTL(cfg.NarrativeTTL),
		narrative.WithTimeout(cfg.NarrativeTimeout),
	}
	if store != nil {
		opts = append(opts, narrative.WithStore(store))
	}
	app.Narratives = narrative.NewService(provider, opts...)
	logger.Info("Narrative service configured",
		applog.FieldProvider, cfg.NarrativeProvider,
		"enabled", app.Narratives.Enabled(),
		"persistent", store != nil)

	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.WithComponent(applog.ComponentAMQP).Warn("Failed to initialize AMQP client, continuing without refresh bus", applog.FieldError, err)
		} else {
			app.Bus = client
			publisher = client
			app.cleanup = append(app.cleanup, client.Close)
			logger.WithComponent(applog.ComponentAMQP).Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	app.Service = services.NewReportService(app.Loader, app.Narratives, publisher)
	return app, nil
}

// Close releases the bus connection and the store.
func (a *App) Close() error {
	var firstErr error
	for _, fn := range a.cleanup {
		if err := fn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
