package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pm-intelligence/internal/common/keylock"
	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/models"
)

var ErrInvalidRelationshipType = errors.New("invalid relationship type")

// UpsertOutcome reports what an upsert did to the stored edge.
type UpsertOutcome string

const (
	OutcomeCreated   UpsertOutcome = "created"
	OutcomeUpdated   UpsertOutcome = "updated"
	OutcomeUnchanged UpsertOutcome = "unchanged"
)

// RelationshipRepository persists weighted edges with at most one edge per
// (from, to, type). Confidence only ever rises.
type RelationshipRepository struct {
	store  models.WritableGraphStore
	locks  *keylock.KeyLock
	logger logger.Logger
}

func NewRelationshipRepository(store models.WritableGraphStore, log logger.Logger) *RelationshipRepository {
	return &RelationshipRepository{
		store:  store,
		locks:  keylock.New(),
		logger: logger.ForComponent(log, "relationship-repository"),
	}
}

// StoredRelationship is the persisted state relevant to merging.
type StoredRelationship struct {
	ID         string
	Confidence float64
}

// The relationship type is a label and cannot be a parameter; callers
// validate it first.
func findQuery(t models.RelationshipType) string {
	return fmt.Sprintf(`
MATCH (a:Entity {id: $from})-[r:%s]->(b:Entity {id: $to})
RETURN r.id AS id, coalesce(r.confidence, 0.0) AS confidence
LIMIT 1`, t)
}

// upsertQuery re-checks the stored confidence inside the write so that a
// concurrent writer holding a stronger edge is never lowered.
func upsertQuery(t models.RelationshipType) string {
	return fmt.Sprintf(`
MATCH (a:Entity {id: $from}), (b:Entity {id: $to})
MERGE (a)-[r:%s]->(b)
ON CREATE SET r.id = $id, r.createdAt = $createdAt
WITH r, (r.confidence IS NULL OR r.confidence < $confidence) AS applied
FOREACH (_ IN CASE WHEN applied THEN [1] ELSE [] END |
  SET r.confidence = $confidence,
      r.sources = $sources,
      r.sourceCount = $sourceCount,
      r.averageAuthority = $averageAuthority,
      r.hasOfficialSource = $hasOfficialSource,
      r.requiresVerification = $requiresVerification,
      r.updatedAt = $updatedAt
)
RETURN r.id AS id, applied`, t)
}

func (r *RelationshipRepository) Find(ctx context.Context, from, to string, t models.RelationshipType) (*StoredRelationship, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRelationshipType, t)
	}
	out, err := r.store.ExecuteQuery(ctx, findQuery(t), map[string]interface{}{"from": from, "to": to})
	if err != nil {
		return nil, fmt.Errorf("find relationship %s: %w", models.RelationshipKey(from, to, t), err)
	}
	if out == nil || len(out.Rows) == 0 {
		return nil, nil
	}
	row := out.Rows[0]
	conf, _ := row.Float("confidence")
	return &StoredRelationship{ID: row.String("id"), Confidence: conf}, nil
}

// Upsert writes rel unless an edge of the same triple already holds an equal
// or higher confidence. Concurrent upserts of one triple are serialized.
func (r *RelationshipRepository) Upsert(ctx context.Context, rel *models.Relationship) (UpsertOutcome, error) {
	if !rel.Type.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRelationshipType, rel.Type)
	}
	unlock := r.locks.Lock(rel.Key())
	defer unlock()

	existing, err := r.Find(ctx, rel.From, rel.To, rel.Type)
	if err != nil {
		return "", err
	}
	if existing != nil && rel.Confidence <= existing.Confidence {
		r.logger.Debug("existing relationship has equal or higher confidence", map[string]interface{}{
			"key":       rel.Key(),
			"existing":  existing.Confidence,
			"candidate": rel.Confidence,
		})
		return OutcomeUnchanged, nil
	}

	sources, err := json.Marshal(rel.Sources)
	if err != nil {
		return "", fmt.Errorf("encode sources: %w", err)
	}
	params := map[string]interface{}{
		"from":                 rel.From,
		"to":                   rel.To,
		"id":                   rel.ID,
		"confidence":           rel.Confidence,
		"sources":              string(sources),
		"sourceCount":          rel.Metadata.SourceCount,
		"averageAuthority":     rel.Metadata.AverageAuthority,
		"hasOfficialSource":    rel.Metadata.HasOfficialSource,
		"requiresVerification": rel.Metadata.RequiresVerification,
		"createdAt":            rel.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":            rel.UpdatedAt.UTC().Format(time.RFC3339),
	}
	out, err := r.store.ExecuteWrite(ctx, upsertQuery(rel.Type), params)
	if err != nil {
		return "", fmt.Errorf("upsert relationship %s: %w", rel.Key(), err)
	}
	if out != nil && len(out.Rows) > 0 {
		if applied, ok := out.Rows[0]["applied"].(bool); ok && !applied {
			r.logger.Debug("relationship raised by another writer", map[string]interface{}{
				"key":       rel.Key(),
				"candidate": rel.Confidence,
			})
			return OutcomeUnchanged, nil
		}
	}

	if existing != nil {
		rel.ID = existing.ID
		return OutcomeUpdated, nil
	}
	return OutcomeCreated, nil
}
