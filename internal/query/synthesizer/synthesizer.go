// Package synthesizer turns raw execution results into the normalized shape
// the conversation layer renders: entities, relationships, metrics.
package synthesizer

import (
	"sort"

	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/models"
	"pm-intelligence/internal/query/planner"
)

type Synthesizer struct {
	logger logger.Logger
}

func New(log logger.Logger) *Synthesizer {
	return &Synthesizer{logger: logger.ForComponent(log, "synthesizer")}
}

// Process dispatches on intent. Intents without a processor, and results that
// a processor cannot interpret, get the generic summary and raw details.
func (s *Synthesizer) Process(results models.ExecutionResults, intent models.Intent) *ProcessedResults {
	out := &ProcessedResults{
		Intent:        intent,
		Entities:      []EntitySummary{},
		Relationships: []RelationshipSummary{},
		Summary:       summarize(results),
	}

	b := newBuilder(out)
	switch intent {
	case models.IntentEntityInfo:
		b.entityInfo(results)
	case models.IntentRelationshipExplore:
		b.relationshipExplore(results)
	case models.IntentPortfolioAnalyze:
		b.portfolio(results)
	case models.IntentPerformance:
		b.performance(results)
	case models.IntentTrends:
		b.trends(results)
	case models.IntentComparison:
		b.comparison(results)
	case models.IntentDiscovery:
		b.discovery(results)
	case models.IntentNetwork:
		b.network(results)
	default:
		generic(out, results)
		return out
	}

	if !out.structured() && out.Summary.TotalRecords > 0 {
		s.logger.Debug("rows not recognized by processor, falling back to generic", map[string]interface{}{
			"intent":  intent.String(),
			"records": out.Summary.TotalRecords,
		})
		generic(out, results)
	}
	return out
}

func summarize(results models.ExecutionResults) Summary {
	sum := Summary{
		TotalQueries: len(results),
		Queries:      make(map[string]QueryStat, len(results)),
	}
	for name, r := range results {
		sum.Queries[name] = QueryStat{
			RecordCount:     r.RecordCount,
			ExecutionTimeMs: r.ExecutionTimeMs,
			Cached:          r.Cached,
			Error:           r.Error,
		}
		sum.TotalRecords += r.RecordCount
		sum.TotalExecutionMs += r.ExecutionTimeMs
		if r.Cached {
			sum.CacheHits++
		}
		if r.Failed() {
			sum.FailedQueries++
			if sum.Errors == nil {
				sum.Errors = make(map[string]string)
			}
			sum.Errors[name] = r.Error
		} else {
			sum.SuccessfulQueries++
		}
	}
	return sum
}

func generic(out *ProcessedResults, results models.ExecutionResults) {
	out.Generic = true
	out.Details = make(map[string][]models.Row, len(results))
	for _, name := range results.Names() {
		r := results[name]
		if r.Failed() {
			continue
		}
		out.Details[name] = r.Rows
	}
}

// builder accumulates processor output with id-keyed dedup.
type builder struct {
	out      *ProcessedResults
	entities map[string]bool
	metrics  map[string]bool
}

func newBuilder(out *ProcessedResults) *builder {
	return &builder{out: out, entities: map[string]bool{}, metrics: map[string]bool{}}
}

func rows(results models.ExecutionResults, name string) []models.Row {
	r, ok := results[name]
	if !ok || r.Failed() {
		return nil
	}
	return r.Rows
}

func entityKey(id, name string) string {
	if id != "" {
		return id
	}
	return "name:" + name
}

func (b *builder) addEntity(row models.Row, extra ...string) {
	id, name := row.String("id"), row.String("name")
	if id == "" && name == "" {
		return
	}
	key := entityKey(id, name)
	if b.entities[key] {
		return
	}
	b.entities[key] = true

	attrs := map[string]interface{}{}
	for k, v := range row.Map("properties") {
		if k == "id" || k == "name" || k == "type" {
			continue
		}
		attrs[k] = v
	}
	for _, k := range extra {
		if v, ok := row[k]; ok && v != nil {
			attrs[k] = v
		}
	}
	if len(attrs) == 0 {
		attrs = nil
	}
	b.out.Entities = append(b.out.Entities, EntitySummary{
		ID:         id,
		Name:       name,
		Type:       row.String("type"),
		Attributes: attrs,
	})
}

func (b *builder) addRelationship(row models.Row) {
	rel := RelationshipSummary{
		FromID:     row.String("fromId"),
		FromName:   row.String("fromName"),
		Type:       row.String("type"),
		ToID:       row.String("toId"),
		ToName:     row.String("toName"),
		ToType:     row.String("toType"),
		Confidence: 1,
	}
	if c, ok := row.Float("confidence"); ok {
		rel.Confidence = c
	}
	if rel.Type == "" || (rel.FromName == "" && rel.FromID == "") {
		return
	}
	b.out.Relationships = append(b.out.Relationships, rel)
}

func (b *builder) addMetric(row models.Row) {
	id, name := row.String("id"), row.String("name")
	key := entityKey(id, name)
	if (id == "" && name == "") || b.metrics[key] {
		return
	}
	b.metrics[key] = true
	m := PerformanceMetric{ID: id, Name: name, Type: row.String("type")}
	if v, ok := row.Float("irr"); ok {
		m.IRR = &v
	}
	if v, ok := row.Float("moic"); ok {
		m.MOIC = &v
	}
	m.TotalValue, _ = row.Float("totalValue")
	b.out.Metrics = append(b.out.Metrics, m)
}

func (b *builder) addSector(row models.Row, countKey string) {
	st := SectorStat{Sector: row.String("sector"), Count: row.Int(countKey)}
	st.TotalValue, _ = row.Float("totalValue")
	if v, ok := row.Float("avgIrr"); ok {
		st.AvgIRR = &v
	}
	if st.Sector == "" {
		st.Sector = "unknown"
	}
	b.out.Sectors = append(b.out.Sectors, st)
}

func (b *builder) addTrend(row models.Row) {
	t := TrendPoint{Year: row.Int("year"), Sector: row.String("sector"), Deals: row.Int("deals")}
	t.TotalValue, _ = row.Float("totalValue")
	if t.Year == 0 {
		return
	}
	b.out.Trends = append(b.out.Trends, t)
}

func (b *builder) entityInfo(results models.ExecutionResults) {
	for _, r := range rows(results, planner.QEntityDetails) {
		b.addEntity(r)
	}
	for _, r := range rows(results, planner.QEntityRelationships) {
		b.addRelationship(r)
	}
}

func (b *builder) relationshipExplore(results models.ExecutionResults) {
	for _, r := range rows(results, planner.QDirectRelationships) {
		b.addRelationship(r)
	}
	for _, r := range rows(results, planner.QShortestPath) {
		nodes := r.Strings("path")
		if len(nodes) == 0 {
			continue
		}
		b.out.Paths = append(b.out.Paths, Path{
			Nodes:    nodes,
			RelTypes: r.Strings("relTypes"),
			Hops:     r.Int("hops"),
		})
	}
	for _, r := range rows(results, planner.QEntityConnections) {
		b.addEntity(r, "connections")
	}
}

func (b *builder) portfolio(results models.ExecutionResults) {
	for _, r := range rows(results, planner.QPortfolioHoldings) {
		b.addEntity(r, "sector", "country", "amount")
		if investor := r.String("investor"); investor != "" {
			rel := RelationshipSummary{
				FromName:   investor,
				Type:       string(models.RelInvestsIn),
				ToID:       r.String("id"),
				ToName:     r.String("name"),
				ToType:     r.String("type"),
				Confidence: 1,
			}
			b.out.Relationships = append(b.out.Relationships, rel)
		}
	}
	for _, r := range rows(results, planner.QSectorBreakdown) {
		b.addSector(r, "holdings")
	}
}

func (b *builder) performance(results models.ExecutionResults) {
	for _, r := range rows(results, planner.QEntityPerformance) {
		b.addMetric(r)
	}
	for _, r := range rows(results, planner.QTopPerformers) {
		b.addMetric(r)
	}
	sort.SliceStable(b.out.Metrics, func(i, j int) bool {
		return b.out.Metrics[i].TotalValue > b.out.Metrics[j].TotalValue
	})
	for _, r := range rows(results, planner.QSectorPerformance) {
		b.addSector(r, "entities")
	}
}

func (b *builder) trends(results models.ExecutionResults) {
	for _, r := range rows(results, planner.QInvestmentTrends) {
		b.addTrend(r)
	}
	for _, r := range rows(results, planner.QSectorTrends) {
		b.addTrend(r)
	}
}

// comparison keeps the order the entities were asked about.
func (b *builder) comparison(results models.ExecutionResults) {
	for _, r := range rows(results, planner.QEntityComparison) {
		b.addEntity(r, "sector", "country", "valuation", "connections")
		b.addMetric(r)
	}
	for _, r := range rows(results, planner.QSectorComparison) {
		b.addSector(r, "entities")
	}
}

func (b *builder) discovery(results models.ExecutionResults) {
	for _, r := range rows(results, planner.QEntityDiscovery) {
		b.addEntity(r, "sector", "country", "totalValue")
	}
	for _, r := range rows(results, planner.QSimilarEntities) {
		b.addEntity(r, "sector", "country")
	}
}

func (b *builder) network(results models.ExecutionResults) {
	for _, r := range rows(results, planner.QEntityNetwork) {
		b.addRelationship(r)
	}
	for _, r := range rows(results, planner.QCentralEntities) {
		b.addEntity(r, "degree")
	}
}
