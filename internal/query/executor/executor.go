// Package executor runs every named query of a plan against the graph store.
// Failures are isolated per query; a plan timeout returns partial results.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "pm-intelligence/internal/common/errors"
	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/common/metrics"
	"pm-intelligence/internal/models"
)

const DefaultConcurrency = 4

var (
	// ErrStoreNotConfigured fails the whole plan.
	ErrStoreNotConfigured = errors.New("graph store not configured")
	ErrQueryTimeout       = errors.New("query timed out")
)

type Executor struct {
	store       models.GraphStore
	cache       ResultCache
	concurrency int
	timeout     time.Duration
	logger      logger.Logger
}

type Option func(*Executor)

func WithCache(c ResultCache) Option {
	return func(e *Executor) { e.cache = c }
}

func WithConcurrency(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithTimeout bounds a whole plan. Zero leaves only the caller's deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

func New(store models.GraphStore, log logger.Logger, opts ...Option) *Executor {
	e := &Executor{
		store:       store,
		concurrency: DefaultConcurrency,
		logger:      logger.ForComponent(log, "executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type namedResult struct {
	name   string
	result models.QueryResult
}

// Execute fans the plan out over a bounded pool. Results are keyed by query
// name. When ctx or the plan timeout expires, queries still running are
// abandoned and reported with a timeout error.
func (e *Executor) Execute(ctx context.Context, plan *models.QueryPlan) (models.ExecutionResults, error) {
	if e.store == nil {
		return nil, apperrors.NewStoreNotConfiguredError("executor").WithCause(ErrStoreNotConfigured)
	}
	results := make(models.ExecutionResults)
	if plan.Empty() {
		return results, nil
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	out := make(chan namedResult, len(plan.Queries))
	go func() {
		var g errgroup.Group
		g.SetLimit(e.concurrency)
		for name, q := range plan.Queries {
			name, q := name, q
			g.Go(func() error {
				out <- namedResult{name: name, result: e.runOne(ctx, name, q)}
				return nil
			})
		}
		_ = g.Wait()
		close(out)
	}()

	for {
		select {
		case r, ok := <-out:
			if !ok {
				return results, nil
			}
			results[r.name] = r.result
		case <-ctx.Done():
			e.drain(out, results)
			e.markUnfinished(plan, results)
			return results, nil
		}
	}
}

// drain collects results that were already delivered when the deadline hit.
func (e *Executor) drain(out <-chan namedResult, results models.ExecutionResults) {
	for {
		select {
		case r, ok := <-out:
			if !ok {
				return
			}
			results[r.name] = r.result
		default:
			return
		}
	}
}

func (e *Executor) markUnfinished(plan *models.QueryPlan, results models.ExecutionResults) {
	var abandoned []string
	for _, name := range plan.Names() {
		if _, done := results[name]; done {
			continue
		}
		results[name] = models.QueryResult{Error: ErrQueryTimeout.Error()}
		metrics.QueryExecutions.WithLabelValues(name, "timeout").Inc()
		abandoned = append(abandoned, name)
	}
	if len(abandoned) > 0 {
		e.logger.Warn("plan deadline reached, abandoning queries", map[string]interface{}{
			"intent":    plan.Intent.String(),
			"abandoned": abandoned,
		})
	}
}

func (e *Executor) runOne(ctx context.Context, name string, q models.Query) (res models.QueryResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("query panicked", map[string]interface{}{
				"query": name,
				"panic": fmt.Sprint(r),
			})
			metrics.QueryExecutions.WithLabelValues(name, "error").Inc()
			res = models.QueryResult{Error: fmt.Sprintf("query panicked: %v", r)}
		}
	}()

	if ctx.Err() != nil {
		return models.QueryResult{Error: ErrQueryTimeout.Error()}
	}

	key := CacheKey(q)
	if e.cache != nil {
		if rows, ok := e.cache.Get(ctx, key); ok {
			metrics.QueryExecutions.WithLabelValues(name, "cached").Inc()
			return models.QueryResult{Rows: rows, RecordCount: len(rows), Cached: true}
		}
	}

	start := time.Now()
	outcome, err := e.store.ExecuteQuery(ctx, q.Cypher, q.Params)
	elapsed := time.Since(start)

	if err != nil {
		msg := err.Error()
		status := "error"
		if ctx.Err() != nil {
			msg = ErrQueryTimeout.Error()
			status = "timeout"
		}
		metrics.QueryExecutions.WithLabelValues(name, status).Inc()
		e.logger.Warn("query failed", map[string]interface{}{
			"query": name,
			"error": err,
		})
		return models.QueryResult{Error: msg}
	}

	rows := []models.Row{}
	if outcome != nil && outcome.Rows != nil {
		rows = outcome.Rows
	}
	metrics.QueryExecutions.WithLabelValues(name, "ok").Inc()
	metrics.QueryDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	if e.cache != nil {
		e.cache.Set(ctx, key, rows)
	}

	return models.QueryResult{
		Rows:            rows,
		ExecutionTimeMs: elapsed.Milliseconds(),
		RecordCount:     len(rows),
	}
}
