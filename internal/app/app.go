// Package app wires stores, pipelines and background services from config.
package app

import (
	"context"
	"fmt"
	"time"

	"pm-intelligence/internal/audit"
	"pm-intelligence/internal/common/config"
	"pm-intelligence/internal/common/database"
	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/common/observability"
	"pm-intelligence/internal/conversation"
	"pm-intelligence/internal/enrichment"
	"pm-intelligence/internal/ingest"
	"pm-intelligence/internal/intelligence/inference"
	"pm-intelligence/internal/intelligence/sources"
	"pm-intelligence/internal/query/executor"
	"pm-intelligence/internal/search"
)

type Options struct {
	// ConnectAttempts bounds the dial retries of every backing store.
	ConnectAttempts int
	RetryDelay      time.Duration
}

// App holds the wired components. Optional stores are nil when disabled
// or unreachable.
type App struct {
	Config *config.Config
	Logger logger.Logger
	Obs    *observability.Observability

	Graph    *database.Neo4jStore
	Postgres *database.PostgresClient
	Redis    *database.RedisClient
	Elastic  *database.ElasticsearchClient

	Index        *search.EntityIndex
	Audit        *audit.Store
	Intelligence *sources.Intelligence
	Engine       *inference.Engine
	Orchestrator *conversation.Orchestrator
	Ingester     *ingest.Ingester

	closers []func(context.Context) error
}

// Build connects to the graph (required) and every enabled optional store,
// then assembles the pipelines on top of them.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger, opts Options) (*App, error) {
	if opts.ConnectAttempts <= 0 {
		opts.ConnectAttempts = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}

	a := &App{
		Config: cfg,
		Logger: log,
		Obs:    observability.New(cfg.Observability.ServiceName, cfg.Observability.TraceSampler, log),
	}
	a.closers = append(a.closers, func(context.Context) error { a.Obs.Shutdown(); return nil })

	if err := a.connectGraph(ctx, opts); err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.connectOptional(ctx, opts)

	if err := a.assemble(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *App) connectGraph(ctx context.Context, opts Options) error {
	store, err := database.NewNeo4j(ctx, a.Config.Graph)
	if err != nil {
		return err
	}
	err = retryWithBackoff(ctx, func() error { return store.Ping(ctx) }, opts, a.Logger, "Neo4j connection")
	if err != nil {
		_ = store.Close(ctx)
		return err
	}
	a.Graph = store
	a.closers = append(a.closers, store.Close)
	a.Logger.Info("Neo4j connected successfully", nil)
	return nil
}

func (a *App) connectOptional(ctx context.Context, opts Options) {
	db := a.Config.Database

	if db.Postgres.Enabled {
		pg, err := database.NewPostgres(db.Postgres)
		if err == nil {
			err = retryWithBackoff(ctx, func() error { return pg.Ping(ctx) }, opts, a.Logger, "PostgreSQL connection")
		}
		if err != nil {
			a.Logger.Warn("postgres unavailable, audit trail disabled", map[string]interface{}{"error": err.Error()})
			if pg != nil {
				_ = pg.Close()
			}
		} else {
			a.Postgres = pg
			a.closers = append(a.closers, func(context.Context) error { return pg.Close() })
		}
	}

	if db.Redis.Enabled {
		rc, err := database.NewRedis(db.Redis)
		if err == nil {
			err = retryWithBackoff(ctx, func() error { return rc.Ping(ctx) }, opts, a.Logger, "Redis connection")
		}
		if err != nil {
			a.Logger.Warn("redis unavailable, result cache disabled", map[string]interface{}{"error": err.Error()})
			if rc != nil {
				_ = rc.Close()
			}
		} else {
			a.Redis = rc
			a.closers = append(a.closers, func(context.Context) error { return rc.Close() })
		}
	}

	if db.Elasticsearch.Enabled {
		es, err := database.NewElasticsearch(db.Elasticsearch)
		if err == nil {
			err = retryWithBackoff(ctx, func() error { return es.Ping(ctx) }, opts, a.Logger, "Elasticsearch connection")
		}
		if err != nil {
			a.Logger.Warn("elasticsearch unavailable, entity search disabled", map[string]interface{}{"error": err.Error()})
		} else {
			a.Elastic = es
		}
	}
}

func (a *App) assemble(ctx context.Context) error {
	cfg := a.Config

	reg, err := sources.LoadRegistry(cfg.Sources.RegistryFile)
	if err != nil {
		return err
	}
	intelOpts := []sources.Option{
		sources.WithValidationCache(cfg.Sources.ValidationCacheSize, time.Duration(cfg.Sources.ValidationCacheTTL)*time.Minute),
	}
	if a.Postgres != nil {
		a.Audit = audit.New(a.Postgres.DB, a.Logger)
		if err := a.Audit.EnsureSchema(ctx); err != nil {
			a.Logger.Warn("audit schema unavailable", map[string]interface{}{"error": err.Error()})
			a.Audit = nil
		} else {
			intelOpts = append(intelOpts, sources.WithPerformanceStore(a.Audit))
		}
	}
	a.Intelligence = sources.New(reg, a.Logger, intelOpts...)
	if err := a.Intelligence.LoadPerformance(ctx); err != nil {
		a.Logger.Warn("source performance not restored", map[string]interface{}{"error": err.Error()})
	}

	engineOpts := []inference.Option{
		inference.WithThresholds(cfg.Inference.Thresholds),
		inference.WithDefaults(inference.Options{
			BatchSize:      cfg.Inference.BatchSize,
			CandidateLimit: cfg.Inference.CandidateLimit,
		}),
	}
	if a.Audit != nil {
		engineOpts = append(engineOpts, inference.WithRecorder(a.Audit))
	}
	a.Engine = inference.NewEngine(a.Graph, a.Intelligence, a.Logger, engineOpts...)

	if a.Elastic != nil {
		a.Index = search.NewEntityIndex(a.Elastic.Client, a.Elastic.Index, a.Logger)
		if err := a.Index.EnsureIndex(ctx); err != nil {
			a.Logger.Warn("entity index unavailable", map[string]interface{}{"error": err.Error()})
			a.Index = nil
		}
	}

	ingestOpts := []ingest.Option{}
	if a.Index != nil {
		ingestOpts = append(ingestOpts, ingest.WithIndex(a.Index))
	}
	a.Ingester = ingest.New(a.Graph, a.Intelligence, a.Logger, ingestOpts...)

	a.Orchestrator = a.buildOrchestrator()
	return nil
}

func (a *App) buildOrchestrator() *conversation.Orchestrator {
	cfg := a.Config

	execOpts := []executor.Option{
		executor.WithConcurrency(cfg.Query.MaxConcurrency),
		executor.WithTimeout(config.GetDuration(cfg.Query.PlanTimeout, 15*time.Second)),
	}
	if a.Redis != nil && cfg.Query.CacheTTL() > 0 {
		execOpts = append(execOpts, executor.WithCache(executor.NewRedisCache(a.Redis.Client, cfg.Query.CacheTTL(), a.Logger)))
	}
	exec := executor.New(a.Graph, a.Logger, execOpts...)

	convOpts := []conversation.Option{conversation.WithObservability(a.Obs)}
	if a.Index != nil {
		convOpts = append(convOpts, conversation.WithSuggester(a.Index))
	}
	if cfg.APIs.GenAI.BaseURL != "" {
		convOpts = append(convOpts, conversation.WithEnricher(enrichment.New(enrichment.Config{
			BaseURL:    cfg.APIs.GenAI.BaseURL,
			APIKey:     cfg.APIs.GenAI.APIKey,
			Timeout:    config.GetDuration(cfg.APIs.GenAI.Timeout, 5*time.Second),
			MaxRetries: cfg.APIs.GenAI.MaxRetries,
		}, a.Logger)))
	}

	return conversation.New(exec, conversation.Config{
		WindowSize:        cfg.Conversation.WindowSize,
		MaxFollowUps:      cfg.Conversation.MaxFollowUps,
		ResultLimit:       cfg.Query.ResultLimit,
		SessionTTL:        cfg.Conversation.SessionTTLDuration(),
		SweepInterval:     cfg.Conversation.SweepIntervalDuration(),
		EnrichmentTimeout: config.GetDuration(cfg.Conversation.EnrichmentTimeout, conversation.DefaultEnrichmentTimeout),
		SuggestionTimeout: config.GetDuration(cfg.Conversation.SuggestionTimeout, conversation.DefaultSuggestionTimeout),
	}, a.Logger, convOpts...)
}

// Ready pings every connected store and reports "ok" or the error per name.
func (a *App) Ready(ctx context.Context) (map[string]string, bool) {
	checks := map[string]func(context.Context) error{
		"neo4j": a.Graph.Ping,
	}
	if a.Postgres != nil {
		checks["postgres"] = a.Postgres.Ping
	}
	if a.Redis != nil {
		checks["redis"] = a.Redis.Ping
	}
	if a.Elastic != nil {
		checks["elasticsearch"] = a.Elastic.Ping
	}

	status := make(map[string]string, len(checks))
	ready := true
	for name, check := range checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			ready = false
			continue
		}
		status[name] = "ok"
	}
	return status, ready
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.Logger.Warn("error during shutdown", map[string]interface{}{"error": err.Error()})
		}
	}
	a.closers = nil
}

func retryWithBackoff(ctx context.Context, operation func() error, opts Options, log logger.Logger, name string) error {
	var err error
	delay := opts.RetryDelay
	for attempt := 1; attempt <= opts.ConnectAttempts; attempt++ {
		if err = operation(); err == nil {
			return nil
		}
		if attempt == opts.ConnectAttempts {
			break
		}
		log.Warn(name+" failed, retrying", map[string]interface{}{
			"error":       err.Error(),
			"attempt":     attempt,
			"maxAttempts": opts.ConnectAttempts,
			"nextRetryIn": delay.String(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s cancelled: %w", name, ctx.Err())
		}
		delay *= 2
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, opts.ConnectAttempts, err)
}
