package audit

var schema = []string{
	`CREATE TABLE IF NOT EXISTS inference_runs (
    run_id         TEXT PRIMARY KEY,
    started_at     TIMESTAMPTZ NOT NULL,
    dry_run        BOOLEAN NOT NULL DEFAULT FALSE,
    total          INTEGER NOT NULL,
    successful     INTEGER NOT NULL,
    failed         INTEGER NOT NULL,
    breakdown      JSONB NOT NULL DEFAULT '{}',
    pattern_results JSONB NOT NULL DEFAULT '[]',
    processing_ms  BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS inference_runs_started_at_idx ON inference_runs (started_at DESC)`,
	`CREATE TABLE IF NOT EXISTS source_outcomes (
    id          BIGSERIAL PRIMARY KEY,
    source_type TEXT NOT NULL,
    success     BOOLEAN NOT NULL,
    score       DOUBLE PRECISION NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS source_outcomes_type_recorded_idx ON source_outcomes (source_type, recorded_at DESC)`,
}

const (
	insertRun = `INSERT INTO inference_runs (run_id, started_at, dry_run, total, successful, failed, breakdown, pattern_results, processing_ms) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) ON CONFLICT (run_id) DO NOTHING`

	selectRecentRuns = `SELECT run_id, started_at, dry_run, total, successful, failed, breakdown, processing_ms FROM inference_runs ORDER BY started_at DESC LIMIT $1`

	insertOutcome = `INSERT INTO source_outcomes (source_type, success, score, recorded_at) VALUES ($1, $2, $3, $4)`

	// oldest first within each type so windows replay in order
	selectRecentOutcomes = `SELECT source_type, score FROM (SELECT source_type, score, recorded_at, ROW_NUMBER() OVER (PARTITION BY source_type ORDER BY recorded_at DESC, id DESC) AS rn FROM source_outcomes) recent WHERE rn <= $1 ORDER BY source_type, recorded_at ASC, rn DESC`
)
