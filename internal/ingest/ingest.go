// Package ingest loads CSV exports into the graph. Entities are upserted by
// id; relationships are weighted by their sources and merged so confidence
// never drops.
package ingest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "pm-intelligence/internal/common/errors"
	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/common/metrics"
	"pm-intelligence/internal/intelligence/inference"
	"pm-intelligence/internal/intelligence/sources"
	"pm-intelligence/internal/models"
)

const DefaultConcurrency = 8

// EntityIndexer receives every upserted entity, e.g. the search index.
type EntityIndexer interface {
	IndexEntity(ctx context.Context, e models.Entity) error
}

// Report summarizes one file.
type Report struct {
	File       string     `json:"file"`
	Kind       string     `json:"kind"`
	Rows       int        `json:"rows"`
	Created    int        `json:"created"`
	Updated    int        `json:"updated"`
	Unchanged  int        `json:"unchanged"`
	Failed     int        `json:"failed"`
	Indexed    int        `json:"indexed"`
	Rejected   []RowError `json:"rejected,omitempty"`
	DurationMs int64      `json:"durationMs"`
}

type Ingester struct {
	store       models.WritableGraphStore
	intel       *sources.Intelligence
	repo        *inference.RelationshipRepository
	index       EntityIndexer
	concurrency int
	now         func() time.Time
	logger      logger.Logger
}

type Option func(*Ingester)

func WithIndex(idx EntityIndexer) Option {
	return func(i *Ingester) { i.index = idx }
}

func WithConcurrency(n int) Option {
	return func(i *Ingester) {
		if n > 0 {
			i.concurrency = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(i *Ingester) { i.now = now }
}

func New(store models.WritableGraphStore, intel *sources.Intelligence, log logger.Logger, opts ...Option) *Ingester {
	if intel == nil {
		intel = sources.New(nil, log)
	}
	i := &Ingester{
		store:       store,
		intel:       intel,
		concurrency: DefaultConcurrency,
		now:         time.Now,
		logger:      logger.ForComponent(log, "ingest"),
	}
	for _, opt := range opts {
		opt(i)
	}
	if store != nil {
		i.repo = inference.NewRelationshipRepository(store, log)
	}
	return i
}

// The type label is interpolated after ParseEntityType validated it.
func entityUpsertQuery(t models.EntityType) string {
	return fmt.Sprintf(`
MERGE (e:Entity {id: $id})
ON CREATE SET e.createdAt = $now
SET e += $attributes,
    e.name = $name,
    e.type = $type,
    e.updatedAt = $now,
    e:%s
RETURN e.id AS id, e.createdAt = $now AS created`, t)
}

func relationshipPropertiesQuery(t models.RelationshipType) string {
	return fmt.Sprintf(`
MATCH (a:Entity {id: $from})-[r:%s]->(b:Entity {id: $to})
SET r += $properties
RETURN r.id AS id`, t)
}

// IngestEntities upserts every valid row of an entity file. Row failures are
// counted, not fatal.
func (i *Ingester) IngestEntities(ctx context.Context, name string, r io.Reader) (*Report, error) {
	if i.store == nil {
		return nil, apperrors.NewStoreNotConfiguredError("ingest")
	}
	start := time.Now()

	entities, rejected, err := ParseEntities(r)
	if err != nil {
		return nil, apperrors.NewIngestFailedError(name, err)
	}
	report := &Report{File: name, Kind: "entity", Rows: len(entities) + len(rejected), Rejected: rejected}
	for range rejected {
		metrics.IngestedRecords.WithLabelValues("entity", "rejected").Inc()
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)
	for _, e := range entities {
		g.Go(func() error {
			outcome, indexed := i.upsertEntity(gctx, e)
			mu.Lock()
			report.count(outcome)
			if indexed {
				report.Indexed++
			}
			mu.Unlock()
			metrics.IngestedRecords.WithLabelValues("entity", string(outcome)).Inc()
			return nil
		})
	}
	_ = g.Wait()
	report.DurationMs = time.Since(start).Milliseconds()

	i.logger.Info("entity file ingested", map[string]interface{}{
		"file":     name,
		"rows":     report.Rows,
		"created":  report.Created,
		"updated":  report.Updated,
		"failed":   report.Failed,
		"rejected": len(report.Rejected),
		"indexed":  report.Indexed,
	})
	return report, ctx.Err()
}

const outcomeFailed inference.UpsertOutcome = "failed"

func (i *Ingester) upsertEntity(ctx context.Context, e models.Entity) (inference.UpsertOutcome, bool) {
	params := map[string]interface{}{
		"id":         e.ID,
		"name":       e.Name,
		"type":       string(e.Type),
		"attributes": e.Attributes.Native(),
		"now":        i.now().UTC().Format(time.RFC3339),
	}
	out, err := i.store.ExecuteWrite(ctx, entityUpsertQuery(e.Type), params)
	if err != nil {
		i.logger.Warn("entity upsert failed", map[string]interface{}{
			"id":    e.ID,
			"error": err.Error(),
		})
		return outcomeFailed, false
	}

	outcome := inference.OutcomeUpdated
	if out != nil && len(out.Rows) > 0 {
		if created, ok := out.Rows[0]["created"].(bool); ok && created {
			outcome = inference.OutcomeCreated
		}
	}

	if i.index == nil {
		return outcome, false
	}
	if err := i.index.IndexEntity(ctx, e); err != nil {
		// best effort: the entity is already in the graph
		i.logger.Warn("entity indexing failed", map[string]interface{}{
			"id":    e.ID,
			"error": err.Error(),
		})
		return outcome, false
	}
	return outcome, true
}

// IngestRelationships groups evidence rows by (from, to, type), weights each
// group through source intelligence and merges it into the graph.
func (i *Ingester) IngestRelationships(ctx context.Context, name string, r io.Reader) (*Report, error) {
	if i.store == nil {
		return nil, apperrors.NewStoreNotConfiguredError("ingest")
	}
	start := time.Now()

	records, rejected, err := ParseRelationships(r)
	if err != nil {
		return nil, apperrors.NewIngestFailedError(name, err)
	}
	report := &Report{File: name, Kind: "relationship", Rows: len(records) + len(rejected), Rejected: rejected}
	for range rejected {
		metrics.IngestedRecords.WithLabelValues("relationship", "rejected").Inc()
	}

	groups := groupRecords(records)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)
	for _, grp := range groups {
		g.Go(func() error {
			outcome := i.upsertRelationship(gctx, grp)
			mu.Lock()
			report.count(outcome)
			mu.Unlock()
			metrics.IngestedRecords.WithLabelValues("relationship", string(outcome)).Inc()
			return nil
		})
	}
	_ = g.Wait()
	report.DurationMs = time.Since(start).Milliseconds()

	i.logger.Info("relationship file ingested", map[string]interface{}{
		"file":      name,
		"rows":      report.Rows,
		"edges":     len(groups),
		"created":   report.Created,
		"updated":   report.Updated,
		"unchanged": report.Unchanged,
		"failed":    report.Failed,
		"rejected":  len(report.Rejected),
	})
	return report, ctx.Err()
}

func (i *Ingester) upsertRelationship(ctx context.Context, grp []RelationshipRecord) inference.UpsertOutcome {
	first := grp[0]
	evidence := make([]models.SourceEvidence, len(grp))
	props := map[string]interface{}{}
	for idx, rec := range grp {
		evidence[idx] = rec.Evidence
		// later rows win for plain edge properties
		for k, v := range rec.Properties {
			props[k] = v
		}
	}

	rel, err := i.intel.CreateWeightedRelationship(first.From, first.To, first.Type, evidence)
	if err != nil {
		i.logger.Warn("relationship weighting failed", map[string]interface{}{
			"key":   first.Key(),
			"error": err.Error(),
		})
		return outcomeFailed
	}

	outcome, err := i.repo.Upsert(ctx, rel)
	if err != nil {
		i.logger.Warn("relationship upsert failed", map[string]interface{}{
			"key":   first.Key(),
			"error": err.Error(),
		})
		return outcomeFailed
	}

	if len(props) > 0 {
		params := map[string]interface{}{"from": rel.From, "to": rel.To, "properties": props}
		if _, err := i.store.ExecuteWrite(ctx, relationshipPropertiesQuery(rel.Type), params); err != nil {
			i.logger.Warn("relationship properties not written", map[string]interface{}{
				"key":   rel.Key(),
				"error": err.Error(),
			})
		}
	}
	return outcome
}

// groupRecords keeps first-seen order of triples.
func groupRecords(records []RelationshipRecord) [][]RelationshipRecord {
	index := map[string]int{}
	var groups [][]RelationshipRecord
	for _, rec := range records {
		k := rec.Key()
		at, ok := index[k]
		if !ok {
			index[k] = len(groups)
			groups = append(groups, []RelationshipRecord{rec})
			continue
		}
		groups[at] = append(groups[at], rec)
	}
	return groups
}

func (r *Report) count(o inference.UpsertOutcome) {
	switch o {
	case inference.OutcomeCreated:
		r.Created++
	case inference.OutcomeUpdated:
		r.Updated++
	case inference.OutcomeUnchanged:
		r.Unchanged++
	default:
		r.Failed++
	}
}

// Succeeded counts records that reached the graph.
func (r *Report) Succeeded() int {
	return r.Created + r.Updated + r.Unchanged
}
