// Package conversation runs one user turn end to end: understand, plan,
// execute, synthesize, update the session, respond. Every failure becomes a
// degraded response; callers never see an error.
package conversation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/common/metrics"
	"pm-intelligence/internal/common/observability"
	"pm-intelligence/internal/models"
	"pm-intelligence/internal/query/convctx"
	"pm-intelligence/internal/query/executor"
	"pm-intelligence/internal/query/extractor"
	"pm-intelligence/internal/query/planner"
	"pm-intelligence/internal/query/synthesizer"
)

const (
	intentWeight     = 0.4
	extractionWeight = 0.3
	relevanceWeight  = 0.3
	dataBonus        = 0.2
	errorPenalty     = 0.3
	minConfidence    = 0.1
	maxConfidence    = 1.0

	DefaultEnrichmentTimeout = 2 * time.Second
	DefaultSuggestionTimeout = time.Second
	suggestionLimit          = 3
)

// Enricher adds an optional insight about the entities of an answer.
type Enricher interface {
	Enrich(ctx context.Context, description string) (string, error)
}

// Suggester proposes entity names close to text.
type Suggester interface {
	Suggest(ctx context.Context, text string, limit int) ([]string, error)
}

type Config struct {
	WindowSize        int
	MaxFollowUps      int
	ResultLimit       int
	SessionTTL        time.Duration
	SweepInterval     time.Duration
	EnrichmentTimeout time.Duration
	SuggestionTimeout time.Duration
}

type Request struct {
	Text           string `json:"text"`
	ConversationID string `json:"conversationId,omitempty"`
	User           string `json:"user,omitempty"`
}

// Metadata describes how a response was produced.
type Metadata struct {
	Intent               models.Intent                    `json:"intent"`
	IntentConfidence     float64                          `json:"intentConfidence"`
	Alternatives         []models.IntentAlternative       `json:"alternatives,omitempty"`
	ExtractionConfidence float64                          `json:"extractionConfidence"`
	ContextRelevance     float64                          `json:"contextRelevance"`
	ExtractedEntities    models.ExtractedEntities         `json:"extractedEntities"`
	Queries              map[string]synthesizer.QueryStat `json:"queries,omitempty"`
	TotalRecords         int                              `json:"totalRecords"`
	QueryTimeMs          int64                            `json:"queryTimeMs"`
	CacheHits            int                              `json:"cacheHits"`
	Errors               map[string]string                `json:"errors,omitempty"`
	ProcessingTimeMs     int64                            `json:"processingTimeMs"`
	Turn                 int                              `json:"turn"`
	Enriched             bool                             `json:"enriched"`
	Degraded             bool                             `json:"degraded"`
}

type Response struct {
	ConversationID string                            `json:"conversationId"`
	Answer         string                            `json:"answer"`
	Intent         models.Intent                     `json:"intent"`
	Confidence     float64                           `json:"confidence"`
	Entities       []synthesizer.EntitySummary       `json:"entities"`
	Relationships  []synthesizer.RelationshipSummary `json:"relationships"`
	Data           *synthesizer.ProcessedResults     `json:"data,omitempty"`
	FollowUps      []string                          `json:"followUps"`
	Suggestions    []string                          `json:"suggestions,omitempty"`
	Insight        string                            `json:"insight,omitempty"`
	Metadata       Metadata                          `json:"metadata"`
	Timestamp      time.Time                         `json:"timestamp"`
}

type Orchestrator struct {
	extractor *extractor.Extractor
	contexts  *convctx.Manager
	planner   *planner.Planner
	executor  *executor.Executor
	synth     *synthesizer.Synthesizer
	sessions  *SessionStore
	enricher  Enricher
	suggester Suggester
	obs       *observability.Observability
	config    Config
	now       func() time.Time
	logger    logger.Logger
}

type Option func(*Orchestrator)

func WithEnricher(e Enricher) Option {
	return func(o *Orchestrator) { o.enricher = e }
}

func WithSuggester(s Suggester) Option {
	return func(o *Orchestrator) { o.suggester = s }
}

func WithObservability(obs *observability.Observability) Option {
	return func(o *Orchestrator) { o.obs = obs }
}

func WithSessionStore(s *SessionStore) Option {
	return func(o *Orchestrator) { o.sessions = s }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(exec *executor.Executor, cfg Config, log logger.Logger, opts ...Option) *Orchestrator {
	if cfg.MaxFollowUps <= 0 {
		cfg.MaxFollowUps = DefaultMaxFollowUps
	}
	if cfg.EnrichmentTimeout <= 0 {
		cfg.EnrichmentTimeout = DefaultEnrichmentTimeout
	}
	if cfg.SuggestionTimeout <= 0 {
		cfg.SuggestionTimeout = DefaultSuggestionTimeout
	}
	o := &Orchestrator{
		executor: exec,
		config:   cfg,
		now:      time.Now,
		logger:   logger.ForComponent(log, "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.extractor = extractor.New(log)
	o.contexts = convctx.NewManager(cfg.WindowSize, log, convctx.WithClock(o.now))
	o.planner = planner.New(cfg.ResultLimit, log, planner.WithClock(o.now))
	o.synth = synthesizer.New(log)
	if o.sessions == nil {
		o.sessions = NewSessionStore(cfg.SessionTTL, cfg.SweepInterval, log)
	}
	return o
}

// turn carries the state of one ProcessQuery call between stages.
type turn struct {
	id         string
	req        Request
	start      time.Time
	session    *Session
	ctx        *convctx.Context
	entities   models.ExtractedEntities
	intent     models.IntentResult
	base       float64
	processed  *synthesizer.ProcessedResults
	didYouMean []string
	insight    string
}

// ProcessQuery answers one turn. Turns of the same conversation are
// serialized; the returned response is never nil.
func (o *Orchestrator) ProcessQuery(ctx context.Context, req Request) (resp *Response) {
	start := o.now()
	id := req.ConversationID
	if id == "" {
		id = uuid.New().String()
	}

	unlock := o.sessions.Lock(id)
	defer unlock()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("turn panicked", map[string]interface{}{
				"conversationId": id,
				"panic":          fmt.Sprint(r),
			})
			resp = o.degraded(id, start, fmt.Errorf("panic: %v", r))
		}
	}()

	ctx, span := o.obs.StartSpan(ctx, "conversation.process_query",
		attribute.String("conversation.id", id),
	)
	defer span.End()

	t := &turn{id: id, req: req, start: start}
	if err := o.run(ctx, t); err != nil {
		span.RecordError(err)
		return o.degraded(id, start, err)
	}
	return o.respond(t)
}

func (o *Orchestrator) run(ctx context.Context, t *turn) error {
	o.understand(ctx, t)
	if t.intent.Intent == models.IntentGeneral {
		t.processed = &synthesizer.ProcessedResults{Intent: models.IntentGeneral}
		return nil
	}

	plan, err := o.plan(ctx, t)
	if err != nil {
		return err
	}
	results, err := o.execute(ctx, plan)
	if err != nil {
		return err
	}
	o.synthesize(ctx, t, results)
	o.suggest(ctx, t)
	o.enrich(ctx, t)
	return nil
}

func (o *Orchestrator) stage(ctx context.Context, name string) (context.Context, func()) {
	stageCtx, span := o.obs.StartSpan(ctx, "conversation."+name)
	started := o.now()
	return stageCtx, func() {
		span.End()
		o.obs.RecordStage(stageCtx, name, o.now().Sub(started))
	}
}

func (o *Orchestrator) understand(ctx context.Context, t *turn) {
	_, done := o.stage(ctx, "understand")
	defer done()

	sess, ok := o.sessions.Get(t.id)
	if !ok {
		sess = &Session{ID: t.id, User: t.req.User, CreatedAt: t.start}
	}
	t.session = sess

	t.ctx = o.contexts.Update(t.req.Text, sess.Context)
	t.entities = o.extractor.Extract(t.req.Text)
	t.intent = o.extractor.Classify(t.req.Text, t.ctx.RecentIntents)
	o.contexts.Observe(t.ctx, t.intent.Intent, &t.entities)

	metrics.IntentClassifications.WithLabelValues(t.intent.Intent.String()).Inc()

	t.base = t.intent.Confidence*intentWeight +
		t.entities.Confidence*extractionWeight +
		t.ctx.Relevance*relevanceWeight

	o.logger.Debug("turn understood", map[string]interface{}{
		"conversationId": t.id,
		"intent":         t.intent.Intent.String(),
		"intentConf":     t.intent.Confidence,
		"entities":       t.entities.Count(),
		"relevance":      t.ctx.Relevance,
	})
}

func (o *Orchestrator) plan(ctx context.Context, t *turn) (*models.QueryPlan, error) {
	_, done := o.stage(ctx, "plan")
	defer done()
	return o.planner.Build(t.intent.Intent, &t.entities)
}

func (o *Orchestrator) execute(ctx context.Context, plan *models.QueryPlan) (models.ExecutionResults, error) {
	if o.executor == nil {
		return nil, executor.ErrStoreNotConfigured
	}
	stageCtx, done := o.stage(ctx, "execute")
	defer done()
	return o.executor.Execute(stageCtx, plan)
}

func (o *Orchestrator) synthesize(ctx context.Context, t *turn, results models.ExecutionResults) {
	_, done := o.stage(ctx, "synthesize")
	defer done()
	t.processed = o.synth.Process(results, t.intent.Intent)
}

// suggest looks up close entity names when a lookup found nothing.
func (o *Orchestrator) suggest(ctx context.Context, t *turn) {
	if o.suggester == nil || t.intent.Intent != models.IntentEntityInfo || t.processed.HasData() {
		return
	}
	names := t.entities.Named()
	if len(names) == 0 {
		return
	}
	defer o.recoverOptional(t, "suggest")

	suggestCtx, cancel := context.WithTimeout(ctx, o.config.SuggestionTimeout)
	defer cancel()

	suggestions, err := o.suggester.Suggest(suggestCtx, names[0], suggestionLimit)
	if err != nil {
		o.logger.Warn("entity suggestions unavailable", map[string]interface{}{
			"conversationId": t.id,
			"error":          err,
		})
		return
	}
	for _, s := range suggestions {
		if s != names[0] {
			t.didYouMean = append(t.didYouMean, s)
		}
	}
}

// enrich is bounded by the enrichment timeout and never fails the turn.
func (o *Orchestrator) enrich(ctx context.Context, t *turn) {
	if o.enricher == nil || len(t.processed.Entities) == 0 {
		return
	}
	stageCtx, done := o.stage(ctx, "enrich")
	defer done()
	defer o.recoverOptional(t, "enrich")

	enrichCtx, cancel := context.WithTimeout(stageCtx, o.config.EnrichmentTimeout)
	defer cancel()

	insight, err := o.enricher.Enrich(enrichCtx, describeForEnrichment(t.processed))
	if err != nil {
		o.logger.Warn("enrichment failed, continuing without insight", map[string]interface{}{
			"conversationId": t.id,
			"error":          err,
		})
		return
	}
	t.insight = insight
}

// recoverOptional keeps a panicking optional stage from discarding the
// answer built so far.
func (o *Orchestrator) recoverOptional(t *turn, stage string) {
	if r := recover(); r != nil {
		o.logger.Warn("optional stage panicked, continuing without it", map[string]interface{}{
			"conversationId": t.id,
			"stage":          stage,
			"panic":          fmt.Sprint(r),
		})
	}
}

func (o *Orchestrator) respond(t *turn) *Response {
	res := t.processed
	confidence := t.base
	if res.Summary.TotalRecords > 0 {
		confidence += dataBonus
	}
	if res.Summary.FailedQueries > 0 {
		confidence -= errorPenalty
	}
	confidence = roundTo(clamp(confidence, minConfidence, maxConfidence), 2)

	t.session.Context = t.ctx
	t.session.LastActive = o.now()
	if t.session.User == "" {
		t.session.User = t.req.User
	}
	t.session.Sectors = addUnique(t.session.Sectors, t.entities.Texts(models.CategorySector)...)
	t.session.Geographies = addUnique(t.session.Geographies, t.entities.Texts(models.CategoryGeography)...)
	t.session.recordConfidence(confidence, o.contexts.Window())
	o.sessions.Put(t.session)

	metrics.ResponseConfidence.Observe(confidence)

	resp := &Response{
		ConversationID: t.id,
		Answer:         composeAnswer(t.intent.Intent, &t.entities, res, t.didYouMean),
		Intent:         t.intent.Intent,
		Confidence:     confidence,
		Entities:       res.Entities,
		Relationships:  res.Relationships,
		FollowUps:      suggestFollowUps(t.intent.Intent, &t.entities, res, t.ctx.CurrentFocus(), t.didYouMean, o.config.MaxFollowUps),
		Suggestions:    t.didYouMean,
		Insight:        t.insight,
		Timestamp:      o.now().UTC(),
		Metadata: Metadata{
			Intent:               t.intent.Intent,
			IntentConfidence:     t.intent.Confidence,
			Alternatives:         t.intent.Alternatives,
			ExtractionConfidence: t.entities.Confidence,
			ContextRelevance:     t.ctx.Relevance,
			ExtractedEntities:    t.entities,
			Queries:              res.Summary.Queries,
			TotalRecords:         res.Summary.TotalRecords,
			QueryTimeMs:          res.Summary.TotalExecutionMs,
			CacheHits:            res.Summary.CacheHits,
			Errors:               res.Summary.Errors,
			ProcessingTimeMs:     o.now().Sub(t.start).Milliseconds(),
			Turn:                 t.ctx.TurnCount,
			Enriched:             t.insight != "",
		},
	}
	if t.intent.Intent != models.IntentGeneral {
		resp.Data = res
	}
	if resp.Entities == nil {
		resp.Entities = []synthesizer.EntitySummary{}
	}
	if resp.Relationships == nil {
		resp.Relationships = []synthesizer.RelationshipSummary{}
	}
	return resp
}

func (o *Orchestrator) degraded(id string, start time.Time, cause error) *Response {
	metrics.DegradedResponses.Inc()
	o.logger.Error("returning degraded response", map[string]interface{}{
		"conversationId": id,
		"error":          cause,
	})
	limit := o.config.MaxFollowUps
	if limit > len(genericFollowUps) {
		limit = len(genericFollowUps)
	}
	return &Response{
		ConversationID: id,
		Answer:         apologyAnswer,
		Intent:         models.IntentGeneral,
		Confidence:     0,
		Entities:       []synthesizer.EntitySummary{},
		Relationships:  []synthesizer.RelationshipSummary{},
		FollowUps:      append([]string(nil), genericFollowUps[:limit]...),
		Timestamp:      o.now().UTC(),
		Metadata: Metadata{
			Intent:           models.IntentGeneral,
			Errors:           map[string]string{"processing": cause.Error()},
			ProcessingTimeMs: o.now().Sub(start).Milliseconds(),
			Degraded:         true,
		},
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
