package crossvalidateclaim

import "pm-intelligence/internal/intelligence/sources"

type Input struct {
	Claim   sources.Claim         `json:"claim"`
	Sources []sources.ClaimSource `json:"sources"`
	Verdict *Verdict              `json:"verdict,omitempty"`
}

// Verdict is the reviewed truth of the claim. When present every source is
// scored on whether its position matched it.
type Verdict struct {
	Correct  bool     `json:"correct"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}

type Output struct {
	sources.ValidationResult
	PerformanceUpdated []string `json:"performanceUpdated,omitempty"`
	PerformanceSkipped []string `json:"performanceSkipped,omitempty"`
}
