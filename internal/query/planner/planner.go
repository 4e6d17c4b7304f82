// Package planner maps a classified intent and its extracted entities to a
// set of named, parameterized graph queries.
package planner

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/models"
)

const DefaultResultLimit = 25

// ErrNoPlanner means the intent table has an intent without a builder.
var ErrNoPlanner = errors.New("no planner for intent")

// Query names.
const (
	QEntityDetails       = "entity_details"
	QEntityRelationships = "entity_relationships"
	QDirectRelationships = "direct_relationships"
	QShortestPath        = "shortest_path"
	QEntityConnections   = "entity_connections"
	QPortfolioHoldings   = "portfolio_holdings"
	QSectorBreakdown     = "sector_breakdown"
	QEntityPerformance   = "entity_performance"
	QSectorPerformance   = "sector_performance"
	QTopPerformers       = "top_performers"
	QInvestmentTrends    = "investment_trends"
	QSectorTrends        = "sector_trends"
	QEntityComparison    = "entity_comparison"
	QSectorComparison    = "sector_comparison"
	QEntityDiscovery     = "entity_discovery"
	QSimilarEntities     = "similar_entities"
	QEntityNetwork       = "entity_network"
	QCentralEntities     = "central_entities"
)

var geographyAliases = map[string]string{
	"us":  "united states",
	"usa": "united states",
	"uk":  "united kingdom",
}

type Planner struct {
	limit  int
	now    func() time.Time
	logger logger.Logger
}

type Option func(*Planner)

func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

func New(resultLimit int, log logger.Logger, opts ...Option) *Planner {
	if resultLimit <= 0 {
		resultLimit = DefaultResultLimit
	}
	p := &Planner{
		limit:  resultLimit,
		now:    time.Now,
		logger: logger.ForComponent(log, "planner"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Build returns the query plan for intent. Empty entity categories drop the
// queries that need them; the plan may be empty. Intents without a builder
// return ErrNoPlanner.
func (p *Planner) Build(intent models.Intent, entities *models.ExtractedEntities) (*models.QueryPlan, error) {
	if entities == nil {
		entities = &models.ExtractedEntities{}
	}
	plan := &models.QueryPlan{Intent: intent, Queries: make(map[string]models.Query)}

	switch intent {
	case models.IntentEntityInfo:
		p.entityInfo(plan, entities)
	case models.IntentRelationshipExplore:
		p.relationshipExplore(plan, entities)
	case models.IntentPortfolioAnalyze:
		p.portfolioAnalyze(plan, entities)
	case models.IntentPerformance:
		p.performance(plan, entities)
	case models.IntentTrends:
		p.trends(plan, entities)
	case models.IntentComparison:
		p.comparison(plan, entities)
	case models.IntentDiscovery:
		p.discovery(plan, entities)
	case models.IntentNetwork:
		p.network(plan, entities)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoPlanner, intent)
	}

	p.logger.Debug("query plan built", map[string]interface{}{
		"intent":  intent.String(),
		"queries": plan.Names(),
	})
	return plan, nil
}

func (p *Planner) entityInfo(plan *models.QueryPlan, ents *models.ExtractedEntities) {
	names := ents.Named()
	if len(names) == 0 {
		return
	}
	p.add(plan, QEntityDetails, cypherEntityDetails, map[string]interface{}{"names": names})
	p.add(plan, QEntityRelationships, cypherEntityRelationships, map[string]interface{}{"names": names})
}

func (p *Planner) relationshipExplore(plan *models.QueryPlan, ents *models.ExtractedEntities) {
	names := ents.Named()
	if len(names) == 0 {
		return
	}
	p.add(plan, QDirectRelationships, cypherDirectRelationships, map[string]interface{}{"names": names})
	p.add(plan, QEntityConnections, cypherEntityConnections, map[string]interface{}{"names": names})
	if len(names) >= 2 {
		p.add(plan, QShortestPath, cypherShortestPath, map[string]interface{}{
			"from": names[0],
			"to":   names[1],
		})
	}
}

func (p *Planner) portfolioAnalyze(plan *models.QueryPlan, ents *models.ExtractedEntities) {
	names := ents.Named()
	sectors := lowered(ents.Texts(models.CategorySector))
	if len(names) > 0 {
		p.add(plan, QPortfolioHoldings, cypherPortfolioHoldings, map[string]interface{}{"names": names})
	}
	if len(names) > 0 || len(sectors) > 0 {
		p.add(plan, QSectorBreakdown, cypherSectorBreakdown, map[string]interface{}{
			"names":   names,
			"sectors": sectors,
		})
	}
}

func (p *Planner) performance(plan *models.QueryPlan, ents *models.ExtractedEntities) {
	names := ents.Named()
	sectors := lowered(ents.Texts(models.CategorySector))
	if len(names) > 0 {
		p.add(plan, QEntityPerformance, cypherEntityPerformance, map[string]interface{}{"names": names})
	}
	if len(sectors) > 0 {
		p.add(plan, QSectorPerformance, cypherSectorPerformance, map[string]interface{}{"sectors": sectors})
	}
	p.add(plan, QTopPerformers, cypherTopPerformers, map[string]interface{}{"sectors": sectors})
}

func (p *Planner) trends(plan *models.QueryPlan, ents *models.ExtractedEntities) {
	from, to := p.yearRange(ents.Texts(models.CategoryTimeframe))
	sectors := lowered(ents.Texts(models.CategorySector))
	p.add(plan, QInvestmentTrends, cypherInvestmentTrends, map[string]interface{}{
		"names":    ents.Named(),
		"fromYear": from,
		"toYear":   to,
	})
	if len(sectors) > 0 {
		p.add(plan, QSectorTrends, cypherSectorTrends, map[string]interface{}{
			"sectors":  sectors,
			"fromYear": from,
			"toYear":   to,
		})
	}
}

func (p *Planner) comparison(plan *models.QueryPlan, ents *models.ExtractedEntities) {
	names := ents.Named()
	sectors := lowered(ents.Texts(models.CategorySector))
	if len(names) > 0 {
		p.add(plan, QEntityComparison, cypherEntityComparison, map[string]interface{}{"names": names})
	}
	if len(sectors) > 0 {
		p.add(plan, QSectorComparison, cypherSectorComparison, map[string]interface{}{"sectors": sectors})
	}
}

func (p *Planner) discovery(plan *models.QueryPlan, ents *models.ExtractedEntities) {
	minAmount := 0.0
	if amounts := ents.Texts(models.CategoryAmount); len(amounts) > 0 {
		minAmount = ParseAmount(amounts[0])
	}
	p.add(plan, QEntityDiscovery, cypherEntityDiscovery, map[string]interface{}{
		"sectors":     lowered(ents.Texts(models.CategorySector)),
		"geographies": geographies(ents.Texts(models.CategoryGeography)),
		"minAmount":   minAmount,
	})
	if names := ents.Named(); len(names) > 0 {
		p.add(plan, QSimilarEntities, cypherSimilarEntities, map[string]interface{}{"names": names})
	}
}

func (p *Planner) network(plan *models.QueryPlan, ents *models.ExtractedEntities) {
	if names := ents.Named(); len(names) > 0 {
		p.add(plan, QEntityNetwork, cypherEntityNetwork, map[string]interface{}{"names": names})
	}
	p.add(plan, QCentralEntities, cypherCentralEntities, map[string]interface{}{
		"sectors": lowered(ents.Texts(models.CategorySector)),
	})
}

// add binds $limit on every query that references it.
func (p *Planner) add(plan *models.QueryPlan, name, cypher string, params map[string]interface{}) {
	if strings.Contains(cypher, "$limit") {
		params["limit"] = p.limit
	}
	plan.Queries[name] = models.Query{Cypher: strings.TrimSpace(cypher), Params: params}
}

var (
	yearPattern     = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	relativePattern = regexp.MustCompile(`(?i)(?:last|past|previous)\s+(\d+)?\s*(year|quarter|month|decade)`)
)

// yearRange derives an inclusive [from, to] year filter from timeframe
// spans. Zero means unbounded.
func (p *Planner) yearRange(timeframes []string) (int, int) {
	from, to := 0, 0
	current := p.now().Year()
	widen := func(y int) {
		if from == 0 || y < from {
			from = y
		}
		if y > to {
			to = y
		}
	}

	for _, tf := range timeframes {
		lower := strings.ToLower(tf)
		for _, y := range yearPattern.FindAllString(tf, -1) {
			n, _ := strconv.Atoi(y)
			widen(n)
		}
		if strings.HasPrefix(lower, "since") || strings.HasPrefix(lower, "from") {
			to = 0
			continue
		}
		if m := relativePattern.FindStringSubmatch(tf); m != nil {
			n := 1
			if m[1] != "" {
				n, _ = strconv.Atoi(m[1])
			}
			years := 0
			switch strings.ToLower(m[2]) {
			case "decade":
				years = 10 * n
			case "year":
				years = n
			default:
				years = 1
			}
			widen(current - years)
			widen(current)
			continue
		}
		if lower == "ytd" || lower == "this year" || strings.HasPrefix(lower, "year") {
			widen(current)
		}
	}
	return from, to
}

func lowered(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		l := strings.ToLower(strings.TrimSpace(v))
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// geographies lowercases names and adds the expanded form of common
// abbreviations.
func geographies(values []string) []string {
	out := lowered(values)
	for _, v := range out {
		if full, ok := geographyAliases[v]; ok {
			out = append(out, full)
		}
	}
	return lowered(out)
}
