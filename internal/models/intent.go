package models

// Intent is the classified purpose of a query. The set is closed; planner and
// synthesizer switch over it exhaustively.
type Intent string

const (
	IntentEntityInfo          Intent = "query.entity.info"
	IntentRelationshipExplore Intent = "query.relationship.explore"
	IntentPortfolioAnalyze    Intent = "query.portfolio.analyze"
	IntentPerformance         Intent = "query.performance.analyze"
	IntentTrends              Intent = "query.trends.analyze"
	IntentComparison          Intent = "query.comparison"
	IntentDiscovery           Intent = "query.discovery"
	IntentNetwork             Intent = "query.network.analyze"
	IntentGeneral             Intent = "query.general"
)

// PlannableIntents lists the intents with query builders, in definition order.
var PlannableIntents = []Intent{
	IntentEntityInfo,
	IntentRelationshipExplore,
	IntentPortfolioAnalyze,
	IntentPerformance,
	IntentTrends,
	IntentComparison,
	IntentDiscovery,
	IntentNetwork,
}

func (i Intent) String() string { return string(i) }

// Label is a short human label used in answers and metrics.
func (i Intent) Label() string {
	switch i {
	case IntentEntityInfo:
		return "entity information"
	case IntentRelationshipExplore:
		return "relationship exploration"
	case IntentPortfolioAnalyze:
		return "portfolio analysis"
	case IntentPerformance:
		return "performance analysis"
	case IntentTrends:
		return "trend analysis"
	case IntentComparison:
		return "comparison"
	case IntentDiscovery:
		return "discovery"
	case IntentNetwork:
		return "network analysis"
	default:
		return "general question"
	}
}

// IntentAlternative is a runner-up classification.
type IntentAlternative struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Score      int     `json:"score"`
}

// IntentResult is the outcome of classification.
type IntentResult struct {
	Intent       Intent              `json:"intent"`
	Confidence   float64             `json:"confidence"`
	Score        int                 `json:"score"`
	Alternatives []IntentAlternative `json:"alternatives,omitempty"`
	Fallback     bool                `json:"fallback"`
}
