package synthesizer

import "pm-intelligence/internal/models"

type EntitySummary struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Type       string                 `json:"type,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

type RelationshipSummary struct {
	FromID     string  `json:"fromId,omitempty"`
	FromName   string  `json:"fromName"`
	Type       string  `json:"type"`
	ToID       string  `json:"toId,omitempty"`
	ToName     string  `json:"toName"`
	ToType     string  `json:"toType,omitempty"`
	Confidence float64 `json:"confidence"`
}

// PerformanceMetric is ranked by TotalValue, descending.
type PerformanceMetric struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Type       string   `json:"type,omitempty"`
	IRR        *float64 `json:"irr,omitempty"`
	MOIC       *float64 `json:"moic,omitempty"`
	TotalValue float64  `json:"totalValue"`
}

type SectorStat struct {
	Sector     string   `json:"sector"`
	Count      int      `json:"count"`
	TotalValue float64  `json:"totalValue"`
	AvgIRR     *float64 `json:"avgIrr,omitempty"`
}

type TrendPoint struct {
	Year       int     `json:"year"`
	Sector     string  `json:"sector,omitempty"`
	Deals      int     `json:"deals"`
	TotalValue float64 `json:"totalValue"`
}

type Path struct {
	Nodes    []string `json:"nodes"`
	RelTypes []string `json:"relTypes"`
	Hops     int      `json:"hops"`
}

type QueryStat struct {
	RecordCount     int    `json:"recordCount"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
	Cached          bool   `json:"cached,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Summary describes execution without interpreting rows.
type Summary struct {
	TotalQueries      int                  `json:"totalQueries"`
	SuccessfulQueries int                  `json:"successfulQueries"`
	FailedQueries     int                  `json:"failedQueries"`
	TotalRecords      int                  `json:"totalRecords"`
	TotalExecutionMs  int64                `json:"totalExecutionMs"`
	CacheHits         int                  `json:"cacheHits"`
	Queries           map[string]QueryStat `json:"queries"`
	Errors            map[string]string    `json:"errors,omitempty"`
}

// ProcessedResults is the normalized output for one turn. Details holds raw
// rows and is only filled by the generic processor.
type ProcessedResults struct {
	Intent        models.Intent           `json:"intent"`
	Entities      []EntitySummary         `json:"entities"`
	Relationships []RelationshipSummary   `json:"relationships"`
	Metrics       []PerformanceMetric     `json:"metrics,omitempty"`
	Sectors       []SectorStat            `json:"sectors,omitempty"`
	Trends        []TrendPoint            `json:"trends,omitempty"`
	Paths         []Path                  `json:"paths,omitempty"`
	Summary       Summary                 `json:"summary"`
	Details       map[string][]models.Row `json:"details,omitempty"`
	Generic       bool                    `json:"generic"`
}

// HasData reports whether any query returned rows.
func (p *ProcessedResults) HasData() bool {
	return p != nil && (p.structured() || p.Summary.TotalRecords > 0)
}

func (p *ProcessedResults) structured() bool {
	return len(p.Entities) > 0 || len(p.Relationships) > 0 || len(p.Metrics) > 0 ||
		len(p.Sectors) > 0 || len(p.Trends) > 0 || len(p.Paths) > 0
}
