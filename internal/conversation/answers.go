package conversation

import (
	"fmt"
	"strings"

	"pm-intelligence/internal/models"
	"pm-intelligence/internal/query/synthesizer"
)

const (
	apologyAnswer       = "I'm sorry, I ran into a problem answering that. Please try again or rephrase your question."
	clarificationAnswer = "I'm not sure what you'd like to know. You can ask about a firm, its portfolio, performance, investment trends, comparisons, or how entities are connected."
	listLimit           = 5
)

// composeAnswer renders the textual answer for one turn.
func composeAnswer(intent models.Intent, ents *models.ExtractedEntities, res *synthesizer.ProcessedResults, didYouMean []string) string {
	if intent == models.IntentGeneral {
		return clarificationAnswer
	}
	if !res.HasData() {
		return noDataAnswer(intent, ents, didYouMean)
	}
	if res.Generic {
		return fmt.Sprintf("I found %d records related to your question.", res.Summary.TotalRecords)
	}

	var answer string
	switch intent {
	case models.IntentEntityInfo:
		answer = entityInfoAnswer(res)
	case models.IntentRelationshipExplore:
		answer = relationshipAnswer(ents, res)
	case models.IntentPortfolioAnalyze:
		answer = portfolioAnswer(ents, res)
	case models.IntentPerformance:
		answer = performanceAnswer(res)
	case models.IntentTrends:
		answer = trendsAnswer(res)
	case models.IntentComparison:
		answer = comparisonAnswer(res)
	case models.IntentDiscovery:
		answer = discoveryAnswer(res)
	case models.IntentNetwork:
		answer = networkAnswer(res)
	}
	if answer == "" {
		answer = fmt.Sprintf("I found %d records related to your question.", res.Summary.TotalRecords)
	}
	if res.Summary.FailedQueries > 0 {
		answer += " Some data sources did not respond, so this answer may be incomplete."
	}
	return answer
}

func noDataAnswer(intent models.Intent, ents *models.ExtractedEntities, didYouMean []string) string {
	var b strings.Builder
	if names := ents.Named(); len(names) > 0 {
		fmt.Fprintf(&b, "I couldn't find any %s for %s.", intent.Label(), joinList(names))
	} else {
		fmt.Fprintf(&b, "I couldn't find data for that %s. Try naming a firm, sector or region.", intent.Label())
	}
	if len(didYouMean) > 0 {
		fmt.Fprintf(&b, " Did you mean %s?", joinOr(didYouMean))
	}
	return b.String()
}

func entityInfoAnswer(res *synthesizer.ProcessedResults) string {
	if len(res.Entities) == 0 {
		return relationshipList(res.Relationships)
	}
	e := res.Entities[0]
	var b strings.Builder
	b.WriteString(e.Name)
	if e.Type != "" {
		fmt.Fprintf(&b, " is %s %s", article(e.Type), strings.ToLower(e.Type))
	} else {
		b.WriteString(" is an entity")
	}
	if s := attrText(e.Attributes, models.AttrSector); s != "" {
		fmt.Fprintf(&b, " in the %s sector", s)
	}
	if c := attrText(e.Attributes, models.AttrCity); c != "" {
		fmt.Fprintf(&b, " based in %s", c)
		if country := attrText(e.Attributes, models.AttrCountry); country != "" {
			fmt.Fprintf(&b, ", %s", country)
		}
	} else if country := attrText(e.Attributes, models.AttrCountry); country != "" {
		fmt.Fprintf(&b, " based in %s", country)
	}
	if y := attrText(e.Attributes, models.AttrFoundedYear); y != "" {
		fmt.Fprintf(&b, ", founded in %s", y)
	}
	b.WriteString(".")

	if n := len(res.Relationships); n > 0 {
		fmt.Fprintf(&b, " It has %d known %s, including %s.", n, plural(n, "relationship", "relationships"), relationshipList(res.Relationships))
	}
	if extra := len(res.Entities) - 1; extra > 0 {
		fmt.Fprintf(&b, " %d other matching %s found.", extra, plural(extra, "entity was", "entities were"))
	}
	return b.String()
}

func relationshipAnswer(ents *models.ExtractedEntities, res *synthesizer.ProcessedResults) string {
	var parts []string
	if n := len(res.Relationships); n > 0 {
		subject := "the entities you mentioned"
		if names := ents.Named(); len(names) > 0 {
			subject = joinList(names)
		}
		parts = append(parts, fmt.Sprintf("I found %d %s for %s: %s.", n, plural(n, "relationship", "relationships"), subject, relationshipList(res.Relationships)))
	}
	if len(res.Paths) > 0 {
		p := res.Paths[0]
		parts = append(parts, fmt.Sprintf("The shortest connection is %s (%d %s).", strings.Join(p.Nodes, " → "), p.Hops, plural(p.Hops, "hop", "hops")))
	}
	if len(res.Entities) > 0 {
		parts = append(parts, fmt.Sprintf("Most connected: %s.", entityNames(res.Entities, "connections")))
	}
	return strings.Join(parts, " ")
}

func portfolioAnswer(ents *models.ExtractedEntities, res *synthesizer.ProcessedResults) string {
	var parts []string
	if n := len(res.Entities); n > 0 {
		holder := "The portfolio"
		if names := ents.Named(); len(names) > 0 {
			holder = joinList(names) + "'s portfolio"
		}
		parts = append(parts, fmt.Sprintf("%s includes %d %s: %s.", holder, n, plural(n, "company", "companies"), entityNames(res.Entities, "")))
	}
	if len(res.Sectors) > 0 {
		parts = append(parts, "Sector breakdown: "+sectorList(res.Sectors)+".")
	}
	return strings.Join(parts, " ")
}

func performanceAnswer(res *synthesizer.ProcessedResults) string {
	var parts []string
	if len(res.Metrics) > 0 {
		items := make([]string, 0, listLimit)
		for i, m := range res.Metrics {
			if i == listLimit {
				break
			}
			items = append(items, fmt.Sprintf("%d. %s%s", i+1, m.Name, metricDetail(m)))
		}
		parts = append(parts, "Top performers by total value: "+strings.Join(items, "; ")+".")
	}
	if len(res.Sectors) > 0 {
		parts = append(parts, "By sector: "+sectorList(res.Sectors)+".")
	}
	return strings.Join(parts, " ")
}

func trendsAnswer(res *synthesizer.ProcessedResults) string {
	// overall yearly points take precedence over per-sector ones
	var points []synthesizer.TrendPoint
	for _, t := range res.Trends {
		if t.Sector == "" {
			points = append(points, t)
		}
	}
	if len(points) == 0 {
		points = res.Trends
	}
	if len(points) == 0 {
		return ""
	}

	first, last := points[0].Year, points[0].Year
	deals, total := 0, 0.0
	peak := points[0]
	for _, t := range points {
		if t.Year < first {
			first = t.Year
		}
		if t.Year > last {
			last = t.Year
		}
		deals += t.Deals
		total += t.TotalValue
		if t.Deals > peak.Deals {
			peak = t
		}
	}
	answer := fmt.Sprintf("Between %d and %d there were %d %s totalling %s.", first, last, deals, plural(deals, "deal", "deals"), money(total))
	if peak.Deals > 0 {
		answer += fmt.Sprintf(" Activity peaked in %d with %d %s.", peak.Year, peak.Deals, plural(peak.Deals, "deal", "deals"))
	}
	return answer
}

func comparisonAnswer(res *synthesizer.ProcessedResults) string {
	var parts []string
	if len(res.Entities) > 0 {
		items := make([]string, 0, len(res.Entities))
		for _, e := range res.Entities {
			var detail []string
			if s := attrText(e.Attributes, models.AttrSector); s != "" {
				detail = append(detail, s)
			}
			if v := attrNumber(e.Attributes, models.AttrValuation); v > 0 {
				detail = append(detail, "valuation "+money(v))
			}
			if c := attrText(e.Attributes, "connections"); c != "" {
				detail = append(detail, c+" connections")
			}
			if len(detail) > 0 {
				items = append(items, fmt.Sprintf("%s (%s)", e.Name, strings.Join(detail, ", ")))
			} else {
				items = append(items, e.Name)
			}
		}
		parts = append(parts, "Comparing "+strings.Join(items, " vs ")+".")
	}
	if len(res.Sectors) > 0 {
		parts = append(parts, "Sectors: "+sectorList(res.Sectors)+".")
	}
	return strings.Join(parts, " ")
}

func discoveryAnswer(res *synthesizer.ProcessedResults) string {
	n := len(res.Entities)
	if n == 0 {
		return ""
	}
	return fmt.Sprintf("I found %d matching %s: %s.", n, plural(n, "entity", "entities"), entityNames(res.Entities, ""))
}

func networkAnswer(res *synthesizer.ProcessedResults) string {
	var parts []string
	if len(res.Entities) > 0 {
		parts = append(parts, "The most connected entities are "+entityNames(res.Entities, "degree")+".")
	}
	if n := len(res.Relationships); n > 0 {
		parts = append(parts, fmt.Sprintf("The network includes %d %s, such as %s.", n, plural(n, "link", "links"), relationshipList(res.Relationships)))
	}
	return strings.Join(parts, " ")
}

// describeForEnrichment is the factual input handed to the enricher.
func describeForEnrichment(res *synthesizer.ProcessedResults) string {
	var lines []string
	for i, e := range res.Entities {
		if i == 3 {
			break
		}
		line := e.Name
		if e.Type != "" {
			line += " (" + e.Type + ")"
		}
		if s := attrText(e.Attributes, models.AttrSector); s != "" {
			line += ", sector " + s
		}
		if c := attrText(e.Attributes, models.AttrCountry); c != "" {
			line += ", country " + c
		}
		lines = append(lines, line)
	}
	for i, r := range res.Relationships {
		if i == listLimit {
			break
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", r.FromName, r.Type, r.ToName))
	}
	return strings.Join(lines, "\n")
}

func relationshipList(rels []synthesizer.RelationshipSummary) string {
	items := make([]string, 0, listLimit)
	for i, r := range rels {
		if i == listLimit {
			break
		}
		items = append(items, fmt.Sprintf("%s %s %s", r.FromName, humanRel(r.Type), r.ToName))
	}
	return strings.Join(items, "; ")
}

// entityNames lists up to listLimit names, with the count attribute when set.
func entityNames(entities []synthesizer.EntitySummary, countAttr string) string {
	items := make([]string, 0, listLimit)
	for i, e := range entities {
		if i == listLimit {
			break
		}
		if countAttr != "" {
			if c := attrText(e.Attributes, countAttr); c != "" {
				items = append(items, fmt.Sprintf("%s (%s)", e.Name, c))
				continue
			}
		}
		items = append(items, e.Name)
	}
	s := strings.Join(items, ", ")
	if extra := len(entities) - listLimit; extra > 0 {
		s += fmt.Sprintf(" and %d more", extra)
	}
	return s
}

func sectorList(sectors []synthesizer.SectorStat) string {
	items := make([]string, 0, listLimit)
	for i, s := range sectors {
		if i == listLimit {
			break
		}
		item := fmt.Sprintf("%s (%d)", s.Sector, s.Count)
		if s.AvgIRR != nil {
			item = fmt.Sprintf("%s (%d, avg IRR %.1f%%)", s.Sector, s.Count, *s.AvgIRR*100)
		}
		items = append(items, item)
	}
	return strings.Join(items, ", ")
}

func metricDetail(m synthesizer.PerformanceMetric) string {
	var detail []string
	if m.TotalValue > 0 {
		detail = append(detail, money(m.TotalValue))
	}
	if m.IRR != nil {
		detail = append(detail, fmt.Sprintf("IRR %.1f%%", *m.IRR*100))
	}
	if m.MOIC != nil {
		detail = append(detail, fmt.Sprintf("MOIC %.1fx", *m.MOIC))
	}
	if len(detail) == 0 {
		return ""
	}
	return " (" + strings.Join(detail, ", ") + ")"
}

func money(v float64) string {
	switch {
	case v >= 1e12:
		return fmt.Sprintf("$%.1fT", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("$%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("$%.1fK", v/1e3)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}

func humanRel(t string) string {
	return strings.ToLower(strings.ReplaceAll(t, "_", " "))
}

func attrText(attrs map[string]interface{}, key string) string {
	v, ok := attrs[key]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}

func attrNumber(attrs map[string]interface{}, key string) float64 {
	f, _ := models.Row(attrs).Float(key)
	return f
}

func article(word string) string {
	if word == "" {
		return "a"
	}
	switch strings.ToLower(word[:1]) {
	case "a", "e", "i", "o", "u":
		return "an"
	}
	return "a"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}

func joinOr(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " or " + items[len(items)-1]
	}
}
