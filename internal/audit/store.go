// Package audit keeps a Postgres trail of inference runs and source
// validation outcomes.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/intelligence/inference"
	"pm-intelligence/internal/intelligence/sources"
)

const DefaultTimeout = 5 * time.Second

var ErrNoDatabase = errors.New("audit database not configured")

// Store implements inference.RunRecorder and sources.PerformanceStore.
type Store struct {
	db      *sql.DB
	timeout time.Duration
	logger  logger.Logger
}

var (
	_ inference.RunRecorder    = (*Store)(nil)
	_ sources.PerformanceStore = (*Store)(nil)
)

func New(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:      db,
		timeout: DefaultTimeout,
		logger:  logger.ForComponent(log, "audit-store"),
	}
}

func (s *Store) WithTimeout(d time.Duration) *Store {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// EnsureSchema creates the audit tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return ErrNoDatabase
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply audit schema: %w", err)
		}
	}
	s.logger.Info("audit schema ready", nil)
	return nil
}

func (s *Store) RecordRun(ctx context.Context, sum *inference.Summary) error {
	if s.db == nil {
		return ErrNoDatabase
	}
	breakdown, err := json.Marshal(sum.RelationshipTypesBreakdown)
	if err != nil {
		return fmt.Errorf("encode breakdown: %w", err)
	}
	patterns, err := json.Marshal(sum.PatternResults)
	if err != nil {
		return fmt.Errorf("encode pattern results: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, insertRun,
		sum.RunID,
		sum.StartedAt,
		sum.DryRun,
		sum.TotalInferences,
		sum.SuccessfulInferences,
		sum.FailedInferences,
		string(breakdown),
		string(patterns),
		sum.ProcessingTimeMs,
	)
	if err != nil {
		return fmt.Errorf("insert inference run %s: %w", sum.RunID, err)
	}

	s.logger.Debug("inference run recorded", map[string]interface{}{
		"runId": sum.RunID,
	})
	return nil
}

// Run is a stored inference run without per-pattern detail.
type Run struct {
	RunID                      string         `json:"runId"`
	StartedAt                  time.Time      `json:"startedAt"`
	DryRun                     bool           `json:"dryRun"`
	TotalInferences            int            `json:"totalInferences"`
	SuccessfulInferences       int            `json:"successfulInferences"`
	FailedInferences           int            `json:"failedInferences"`
	RelationshipTypesBreakdown map[string]int `json:"relationshipTypesBreakdown"`
	ProcessingTimeMs           int64          `json:"processingTimeMs"`
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	if limit <= 0 {
		limit = 10
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, selectRecentRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("query inference runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var breakdown []byte
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.DryRun, &r.TotalInferences,
			&r.SuccessfulInferences, &r.FailedInferences, &breakdown, &r.ProcessingTimeMs); err != nil {
			return nil, fmt.Errorf("scan inference run: %w", err)
		}
		r.RelationshipTypesBreakdown = map[string]int{}
		if len(breakdown) > 0 {
			if err := json.Unmarshal(breakdown, &r.RelationshipTypesBreakdown); err != nil {
				return nil, fmt.Errorf("decode breakdown of %s: %w", r.RunID, err)
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) RecordOutcome(ctx context.Context, o sources.Outcome) error {
	if s.db == nil {
		return ErrNoDatabase
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, insertOutcome, o.SourceType, o.Success, o.Score, o.RecordedAt); err != nil {
		return fmt.Errorf("insert source outcome: %w", err)
	}
	return nil
}

// RecentOutcomes returns up to perType scores per source type, oldest first.
func (s *Store) RecentOutcomes(ctx context.Context, perType int) (map[string][]float64, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, selectRecentOutcomes, perType)
	if err != nil {
		return nil, fmt.Errorf("query source outcomes: %w", err)
	}
	defer rows.Close()

	out := map[string][]float64{}
	for rows.Next() {
		var sourceType string
		var score float64
		if err := rows.Scan(&sourceType, &score); err != nil {
			return nil, fmt.Errorf("scan source outcome: %w", err)
		}
		out[sourceType] = append(out[sourceType], score)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
