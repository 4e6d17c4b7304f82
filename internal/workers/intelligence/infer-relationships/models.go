package inferrelationships

import "pm-intelligence/internal/intelligence/inference"

// Input selects either one pattern or a full run over Patterns (all when
// empty).
type Input struct {
	Pattern        string   `json:"pattern"`
	Patterns       []string `json:"patterns"`
	BatchSize      int      `json:"batchSize"`
	CandidateLimit int      `json:"candidateLimit"`
	DryRun         bool     `json:"dryRun"`
}

func (i *Input) options() inference.Options {
	return inference.Options{
		Patterns:       i.Patterns,
		BatchSize:      i.BatchSize,
		CandidateLimit: i.CandidateLimit,
		DryRun:         i.DryRun,
	}
}

type Output struct {
	RunID                      string                    `json:"runId,omitempty"`
	DryRun                     bool                      `json:"dryRun"`
	TotalInferences            int                       `json:"totalInferences"`
	SuccessfulInferences       int                       `json:"successfulInferences"`
	FailedInferences           int                       `json:"failedInferences"`
	RelationshipTypesBreakdown map[string]int            `json:"relationshipTypesBreakdown"`
	ProcessingTimeMs           int64                     `json:"processingTimeMs"`
	PatternResults             []inference.PatternResult `json:"patternResults"`
}
