// Package inference proposes relationships the graph does not state
// directly. Each pattern reads candidate pairs from the store, scores them,
// and persists edges whose weighted confidence clears the pattern threshold.
package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperrors "pm-intelligence/internal/common/errors"
	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/common/metrics"
	"pm-intelligence/internal/intelligence/sources"
	"pm-intelligence/internal/models"
)

const (
	DefaultBatchSize      = 8
	DefaultCandidateLimit = 500
)

var (
	ErrUnknownPattern     = errors.New("unknown inference pattern")
	ErrStoreNotConfigured = errors.New("graph store not configured")
)

type Options struct {
	// Patterns restricts a full run to the named patterns. Empty runs all.
	Patterns       []string `json:"patterns,omitempty"`
	BatchSize      int      `json:"batchSize,omitempty"`
	CandidateLimit int      `json:"candidateLimit,omitempty"`
	DryRun         bool     `json:"dryRun,omitempty"`
}

type PatternResult struct {
	Pattern          string `json:"pattern"`
	RelationshipType string `json:"relationshipType,omitempty"`
	Candidates       int    `json:"candidates"`
	Created          int    `json:"created"`
	Updated          int    `json:"updated"`
	Unchanged        int    `json:"unchanged"`
	BelowThreshold   int    `json:"belowThreshold"`
	Proposed         int    `json:"proposed"`
	Failed           int    `json:"failed"`
	Error            string `json:"error,omitempty"`
	ProcessingTimeMs int64  `json:"processingTimeMs"`
	Stub             bool   `json:"stub,omitempty"`
}

// Successful counts edges written, or that would be written in a dry run.
func (p PatternResult) Successful() int {
	return p.Created + p.Updated + p.Proposed
}

type Summary struct {
	RunID                      string          `json:"runId"`
	StartedAt                  time.Time       `json:"startedAt"`
	DryRun                     bool            `json:"dryRun"`
	TotalInferences            int             `json:"totalInferences"`
	SuccessfulInferences       int             `json:"successfulInferences"`
	FailedInferences           int             `json:"failedInferences"`
	RelationshipTypesBreakdown map[string]int  `json:"relationshipTypesBreakdown"`
	ProcessingTimeMs           int64           `json:"processingTimeMs"`
	PatternResults             []PatternResult `json:"patternResults"`
}

// RunRecorder receives every completed full run.
type RunRecorder interface {
	RecordRun(ctx context.Context, s *Summary) error
}

type Engine struct {
	store    models.GraphStore
	repo     *RelationshipRepository
	intel    *sources.Intelligence
	patterns []Pattern
	recorder RunRecorder
	defaults Options
	now      func() time.Time
	logger   logger.Logger
}

type Option func(*Engine)

// WithThresholds overrides pattern minimum confidences by pattern name.
func WithThresholds(thresholds map[string]float64) Option {
	return func(e *Engine) {
		for i := range e.patterns {
			if v, ok := thresholds[e.patterns[i].Name]; ok {
				e.patterns[i].MinConfidence = v
			}
		}
	}
}

func WithRecorder(r RunRecorder) Option {
	return func(e *Engine) { e.recorder = r }
}

func WithDefaults(o Options) Option {
	return func(e *Engine) { e.defaults = o }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store models.WritableGraphStore, intel *sources.Intelligence, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		intel:    intel,
		patterns: DefaultPatterns(),
		defaults: Options{BatchSize: DefaultBatchSize, CandidateLimit: DefaultCandidateLimit},
		now:      time.Now,
		logger:   logger.ForComponent(log, "inference-engine"),
	}
	if store != nil {
		e.store = store
		e.repo = NewRelationshipRepository(store, log)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PatternNames lists the battery in run order.
func (e *Engine) PatternNames() []string {
	names := make([]string, len(e.patterns))
	for i, p := range e.patterns {
		names[i] = p.Name
	}
	return names
}

func (e *Engine) pattern(name string) (Pattern, bool) {
	for _, p := range e.patterns {
		if p.Name == name {
			return p, true
		}
	}
	return Pattern{}, false
}

func (e *Engine) withDefaults(o Options) Options {
	if o.BatchSize <= 0 {
		o.BatchSize = e.defaults.BatchSize
	}
	if o.CandidateLimit <= 0 {
		o.CandidateLimit = e.defaults.CandidateLimit
	}
	if len(o.Patterns) == 0 {
		o.Patterns = e.defaults.Patterns
	}
	return o
}

func unknownPattern(name string) error {
	return apperrors.NewUnknownPatternError(name).WithCause(fmt.Errorf("%w: %s", ErrUnknownPattern, name))
}

func (e *Engine) ready() error {
	if e.store == nil {
		return apperrors.NewStoreNotConfiguredError("inference").WithCause(ErrStoreNotConfigured)
	}
	return nil
}

// InferAll runs every selected pattern in order. A failing pattern is
// counted and logged; it never stops the run.
func (e *Engine) InferAll(ctx context.Context, opts Options) (*Summary, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	opts = e.withDefaults(opts)

	selected := e.patterns
	if len(opts.Patterns) > 0 {
		selected = make([]Pattern, 0, len(opts.Patterns))
		for _, name := range opts.Patterns {
			p, ok := e.pattern(name)
			if !ok {
				return nil, unknownPattern(name)
			}
			selected = append(selected, p)
		}
	}

	start := e.now()
	summary := &Summary{
		RunID:                      uuid.New().String(),
		StartedAt:                  start.UTC(),
		DryRun:                     opts.DryRun,
		RelationshipTypesBreakdown: map[string]int{},
		PatternResults:             make([]PatternResult, 0, len(selected)),
	}
	e.logger.Info("inference run started", map[string]interface{}{
		"runId":    summary.RunID,
		"patterns": len(selected),
		"dryRun":   opts.DryRun,
	})

	for _, p := range selected {
		if ctx.Err() != nil {
			break
		}
		res := e.run(ctx, p, opts)
		summary.PatternResults = append(summary.PatternResults, res)
		summary.TotalInferences += res.Candidates
		summary.SuccessfulInferences += res.Successful()
		summary.FailedInferences += res.Failed
		if n := res.Successful(); n > 0 {
			summary.RelationshipTypesBreakdown[res.RelationshipType] += n
		}
	}
	summary.ProcessingTimeMs = e.now().Sub(start).Milliseconds()

	e.logger.Info("inference run completed", map[string]interface{}{
		"runId":      summary.RunID,
		"total":      summary.TotalInferences,
		"successful": summary.SuccessfulInferences,
		"failed":     summary.FailedInferences,
		"durationMs": summary.ProcessingTimeMs,
	})

	if e.recorder != nil {
		if err := e.recorder.RecordRun(ctx, summary); err != nil {
			e.logger.Warn("failed to record inference run", map[string]interface{}{
				"runId": summary.RunID,
				"error": err,
			})
		}
	}
	return summary, ctx.Err()
}

// InferByPattern runs one named pattern.
func (e *Engine) InferByPattern(ctx context.Context, name string, opts Options) (*PatternResult, error) {
	p, ok := e.pattern(name)
	if !ok {
		return nil, unknownPattern(name)
	}
	if err := e.ready(); err != nil {
		return nil, err
	}
	res := e.run(ctx, p, e.withDefaults(opts))
	if res.Error != "" {
		return &res, apperrors.NewInferencePatternError(name, errors.New(res.Error))
	}
	return &res, nil
}

// tally is shared by the candidate workers of one pattern.
type tally struct {
	mu  sync.Mutex
	res *PatternResult
}

func (t *tally) add(pattern string, outcome string) {
	t.mu.Lock()
	switch outcome {
	case string(OutcomeCreated):
		t.res.Created++
	case string(OutcomeUpdated):
		t.res.Updated++
	case string(OutcomeUnchanged):
		t.res.Unchanged++
	case "below_threshold":
		t.res.BelowThreshold++
	case "proposed":
		t.res.Proposed++
	default:
		t.res.Failed++
	}
	t.mu.Unlock()
	metrics.InferredRelationships.WithLabelValues(pattern, outcome).Inc()
}

func (e *Engine) run(ctx context.Context, p Pattern, opts Options) (res PatternResult) {
	start := e.now()
	res = PatternResult{Pattern: p.Name, RelationshipType: string(p.RelType), Stub: p.Stub}
	if p.Stub {
		return res
	}
	defer func() { res.ProcessingTimeMs = e.now().Sub(start).Milliseconds() }()

	out, err := e.store.ExecuteQuery(ctx, p.Query, map[string]interface{}{"limit": opts.CandidateLimit})
	if err != nil {
		res.Failed = 1
		res.Error = err.Error()
		metrics.InferredRelationships.WithLabelValues(p.Name, "failed").Inc()
		e.logger.Error("inference pattern failed", map[string]interface{}{
			"pattern": p.Name,
			"error":   err,
		})
		return res
	}

	var candidates []Candidate
	if out != nil {
		for _, row := range out.Rows {
			if c, ok := candidateFromRow(row); ok {
				candidates = append(candidates, c)
			}
		}
	}
	res.Candidates = len(candidates)

	t := &tally{res: &res}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.BatchSize)
	for _, c := range candidates {
		c := c
		g.Go(func() error {
			t.add(p.Name, e.evaluate(gctx, p, c, opts.DryRun))
			return nil
		})
	}
	_ = g.Wait()

	e.logger.Info("inference pattern completed", map[string]interface{}{
		"pattern":        p.Name,
		"candidates":     res.Candidates,
		"created":        res.Created,
		"updated":        res.Updated,
		"unchanged":      res.Unchanged,
		"belowThreshold": res.BelowThreshold,
		"failed":         res.Failed,
	})
	return res
}

// evaluate scores one candidate and persists it; it returns the outcome label.
func (e *Engine) evaluate(ctx context.Context, p Pattern, c Candidate, dryRun bool) string {
	score := p.Score(c)
	if score < p.MinConfidence {
		return "below_threshold"
	}

	evidence := []models.SourceEvidence{{
		SourceType: sources.AIInference,
		Authority:  score,
		Evidence: map[string]interface{}{
			"pattern":     p.Name,
			"description": p.Describe(c),
			"count":       c.Count,
			"shared":      c.Shared,
		},
		Timestamp: e.now().UTC(),
	}}
	rel, err := e.intel.CreateWeightedRelationship(c.FromID, c.ToID, p.RelType, evidence)
	if err != nil {
		e.logger.Warn("failed to weigh candidate", map[string]interface{}{
			"pattern": p.Name,
			"from":    c.FromID,
			"to":      c.ToID,
			"error":   err,
		})
		return "failed"
	}
	if rel.Confidence < p.MinConfidence {
		return "below_threshold"
	}
	if dryRun {
		return "proposed"
	}

	outcome, err := e.repo.Upsert(ctx, rel)
	if err != nil {
		e.logger.Warn("failed to persist inferred relationship", map[string]interface{}{
			"pattern": p.Name,
			"key":     rel.Key(),
			"error":   err,
		})
		return "failed"
	}
	return string(outcome)
}
