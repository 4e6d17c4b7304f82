package inference

import (
	"fmt"
	"math"
	"strings"

	"pm-intelligence/internal/models"
)

const (
	PatternCoInvestment         = "co_investment"
	PatternGeographicClustering = "geographic_clustering"
	PatternSectorAlignment      = "sector_alignment"
	PatternFollowOnInvestment   = "follow_on_investment"
	PatternSharedPersonnel      = "shared_personnel"
	PatternCorporateStructure   = "corporate_structure"
	PatternDealCollaboration    = "deal_collaboration"
	PatternEntitySimilarity     = "entity_similarity"
	PatternTemporal             = "temporal_patterns"
	PatternNetworkAnalysis      = "network_analysis"
)

// Candidate is one proposed edge read from a pattern query. Every pattern
// query returns fromId, fromName, toId, toName, count and shared.
type Candidate struct {
	FromID   string
	FromName string
	ToID     string
	ToName   string
	Count    int
	Shared   []string
	Row      models.Row
}

func candidateFromRow(row models.Row) (Candidate, bool) {
	c := Candidate{
		FromID:   row.String("fromId"),
		FromName: row.String("fromName"),
		ToID:     row.String("toId"),
		ToName:   row.String("toName"),
		Count:    row.Int("count"),
		Shared:   row.Strings("shared"),
		Row:      row,
	}
	if c.FromID == "" || c.ToID == "" || c.FromID == c.ToID {
		return Candidate{}, false
	}
	return c, true
}

// Pattern pairs a candidate query with a scoring rule. Stub patterns are
// extension points with no query; they always report zero inferences.
type Pattern struct {
	Name          string
	RelType       models.RelationshipType
	Query         string
	MinConfidence float64
	Score         func(Candidate) float64
	Describe      func(Candidate) string
	Stub          bool
}

func capped(limit, base, step float64, n int) float64 {
	return math.Min(limit, base+float64(n)*step)
}

func fixed(v float64) func(Candidate) float64 {
	return func(Candidate) float64 { return v }
}

func sharedList(c Candidate) string {
	if len(c.Shared) == 0 {
		return ""
	}
	shown := c.Shared
	if len(shown) > 5 {
		shown = shown[:5]
	}
	return ": " + strings.Join(shown, ", ")
}

// DefaultPatterns is the full battery in run order.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:          PatternCoInvestment,
			RelType:       models.RelCoInvested,
			Query:         cypherCoInvestment,
			MinConfidence: 0.7,
			Score: func(c Candidate) float64 {
				return capped(0.95, 0.5, 0.1, c.Count)
			},
			Describe: func(c Candidate) string {
				return fmt.Sprintf("%s and %s share %d portfolio companies%s", c.FromName, c.ToName, c.Count, sharedList(c))
			},
		},
		{
			Name:          PatternGeographicClustering,
			RelType:       models.RelGeographicCluster,
			Query:         cypherGeographicClustering,
			MinConfidence: 0.6,
			Score:         fixed(0.6),
			Describe: func(c Candidate) string {
				return fmt.Sprintf("%s and %s are located in %s", c.FromName, c.ToName, strings.Join(c.Shared, ", "))
			},
		},
		{
			Name:          PatternSectorAlignment,
			RelType:       models.RelSectorAligned,
			Query:         cypherSectorAlignment,
			MinConfidence: 0.65,
			Score:         fixed(0.65),
			Describe: func(c Candidate) string {
				return fmt.Sprintf("%s and %s invest in the same sectors%s", c.FromName, c.ToName, sharedList(c))
			},
		},
		{
			Name:          PatternFollowOnInvestment,
			RelType:       models.RelFollowOnInvestor,
			Query:         cypherFollowOnInvestment,
			MinConfidence: 0.65,
			Score: func(c Candidate) float64 {
				return capped(0.9, 0.6, 0.05, c.Count)
			},
			Describe: func(c Candidate) string {
				return fmt.Sprintf("%s followed %s into %d companies%s", c.FromName, c.ToName, c.Count, sharedList(c))
			},
		},
		{
			Name:          PatternSharedPersonnel,
			RelType:       models.RelSharesPersonnel,
			Query:         cypherSharedPersonnel,
			MinConfidence: 0.75,
			Score: func(c Candidate) float64 {
				return capped(0.95, 0.7, 0.05, c.Count)
			},
			Describe: func(c Candidate) string {
				return fmt.Sprintf("%d people have worked at both %s and %s%s", c.Count, c.FromName, c.ToName, sharedList(c))
			},
		},
		{
			Name:          PatternCorporateStructure,
			RelType:       models.RelAffiliatedWith,
			Query:         cypherCorporateStructure,
			MinConfidence: 0.8,
			Score:         fixed(0.8),
			Describe: func(c Candidate) string {
				return fmt.Sprintf("%q contains the name %q", c.FromName, c.ToName)
			},
		},
		{
			Name:          PatternDealCollaboration,
			RelType:       models.RelDealCollaborator,
			Query:         cypherDealCollaboration,
			MinConfidence: 0.6,
			Score: func(c Candidate) float64 {
				return capped(0.9, 0.5, 0.08, c.Count)
			},
			Describe: func(c Candidate) string {
				return fmt.Sprintf("%s and %s participated in %d deals together%s", c.FromName, c.ToName, c.Count, sharedList(c))
			},
		},
		{
			Name:          PatternEntitySimilarity,
			RelType:       models.RelSimilarTo,
			Query:         cypherEntitySimilarity,
			MinConfidence: 0.5,
			Score:         similarity,
			Describe: func(c Candidate) string {
				return fmt.Sprintf("%s resembles %s by %s", c.FromName, c.ToName, strings.Join(similarityReasons(c), ", "))
			},
		},
		{Name: PatternTemporal, Stub: true},
		{Name: PatternNetworkAnalysis, Stub: true},
	}
}

// similarity averages three indicators: same country, same sector, and one
// name containing the other.
func similarity(c Candidate) float64 {
	return float64(len(similarityReasons(c))) / 3
}

func similarityReasons(c Candidate) []string {
	var reasons []string
	if same(c.Row.String("fromCountry"), c.Row.String("toCountry")) {
		reasons = append(reasons, "country")
	}
	if same(c.Row.String("fromSector"), c.Row.String("toSector")) {
		reasons = append(reasons, "sector")
	}
	a, b := strings.ToLower(c.FromName), strings.ToLower(c.ToName)
	if a != "" && b != "" && (strings.Contains(a, b) || strings.Contains(b, a)) {
		reasons = append(reasons, "name")
	}
	return reasons
}

func same(a, b string) bool {
	return a != "" && strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
