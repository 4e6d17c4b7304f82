package conversation

import (
	"fmt"
	"strings"

	"pm-intelligence/internal/models"
	"pm-intelligence/internal/query/synthesizer"
)

const DefaultMaxFollowUps = 4

var genericFollowUps = []string{
	"Tell me about Blackstone",
	"Show the top performing funds in technology",
	"Compare KKR and Carlyle",
	"What are the investment trends in healthcare?",
}

// suggestFollowUps proposes next questions for the turn, most specific
// first, capped at limit.
func suggestFollowUps(intent models.Intent, ents *models.ExtractedEntities, res *synthesizer.ProcessedResults, focus string, didYouMean []string, limit int) []string {
	if limit <= 0 {
		limit = DefaultMaxFollowUps
	}

	subject := focus
	if names := ents.Named(); len(names) > 0 {
		subject = names[0]
	}
	if subject == "" && res != nil && len(res.Entities) > 0 {
		subject = res.Entities[0].Name
	}
	sector := ""
	if sectors := ents.Texts(models.CategorySector); len(sectors) > 0 {
		sector = sectors[0]
	} else if res != nil && len(res.Sectors) > 0 {
		sector = res.Sectors[0].Sector
	}

	var out []string
	for _, name := range didYouMean {
		out = append(out, "Tell me about "+name)
	}

	switch intent {
	case models.IntentEntityInfo:
		if subject != "" {
			out = append(out,
				fmt.Sprintf("What is %s's portfolio?", subject),
				fmt.Sprintf("Who has %s co-invested with?", subject),
				fmt.Sprintf("How has %s performed?", subject),
			)
		}
	case models.IntentRelationshipExplore:
		if subject != "" {
			out = append(out,
				fmt.Sprintf("Show the network around %s", subject),
				fmt.Sprintf("Find companies similar to %s", subject),
			)
		}
		if res != nil && len(res.Relationships) > 0 {
			out = append(out, "Tell me about "+res.Relationships[0].ToName)
		}
	case models.IntentPortfolioAnalyze:
		if subject != "" {
			out = append(out, fmt.Sprintf("How has %s's portfolio performed?", subject))
		}
		if sector != "" {
			out = append(out, fmt.Sprintf("What are the investment trends in %s?", sector))
		}
		if res != nil && len(res.Entities) > 0 {
			out = append(out, "Tell me about "+res.Entities[0].Name)
		}
	case models.IntentPerformance:
		if res != nil && len(res.Metrics) > 1 {
			out = append(out, fmt.Sprintf("Compare %s and %s", res.Metrics[0].Name, res.Metrics[1].Name))
		}
		if sector != "" {
			out = append(out, fmt.Sprintf("What are the investment trends in %s?", sector))
		}
		if subject != "" {
			out = append(out, fmt.Sprintf("What is %s's portfolio?", subject))
		}
	case models.IntentTrends:
		if sector != "" {
			out = append(out,
				fmt.Sprintf("Who are the top performers in %s?", sector),
				fmt.Sprintf("Find companies in %s", sector),
			)
		}
		out = append(out, "Which sectors are growing fastest?")
	case models.IntentComparison:
		names := ents.Named()
		for i, name := range names {
			if i == 2 {
				break
			}
			out = append(out, "Tell me about "+name)
		}
		if len(names) >= 2 {
			out = append(out, fmt.Sprintf("How are %s and %s connected?", names[0], names[1]))
		}
	case models.IntentDiscovery:
		if res != nil && len(res.Entities) > 0 {
			out = append(out,
				"Tell me about "+res.Entities[0].Name,
				fmt.Sprintf("Find companies similar to %s", res.Entities[0].Name),
			)
		}
		if sector != "" {
			out = append(out, fmt.Sprintf("What are the investment trends in %s?", sector))
		}
	case models.IntentNetwork:
		if res != nil && len(res.Entities) > 0 {
			out = append(out, fmt.Sprintf("What relationships does %s have?", res.Entities[0].Name))
		}
		if subject != "" {
			out = append(out, fmt.Sprintf("Who has %s co-invested with?", subject))
		}
	}

	out = append(out, genericFollowUps...)
	return dedupe(out, limit)
}

func dedupe(items []string, limit int) []string {
	out := make([]string, 0, limit)
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		key := strings.ToLower(it)
		if it == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
		if len(out) == limit {
			break
		}
	}
	return out
}
