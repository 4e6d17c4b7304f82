package extractor

import (
	"regexp"

	"pm-intelligence/internal/models"
)

// SpanConfidence is assigned to every extracted span.
const SpanConfidence = 0.8

// Patterns with a capture group contribute group 1; others the full match.
type categoryPatterns struct {
	category models.Category
	patterns []*regexp.Regexp
}

type intentDef struct {
	intent   models.Intent
	patterns []*regexp.Regexp
	keywords []string
}

const (
	roleWords = `ceo|cfo|coo|cto|founder|co-founder|cofounder|partner|managing partner|managing director|chairman|chairwoman|president`
	yearExpr  = `(?:19|20)\d{2}`
)

func defaultCategoryPatterns() []categoryPatterns {
	return []categoryPatterns{
		{
			category: models.CategoryCompany,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(Blackstone|KKR|Carlyle Group|Carlyle|Apollo Global|Apollo|TPG|Bain Capital|Warburg Pincus|Sequoia Capital|Sequoia|Andreessen Horowitz|a16z|Accel|Tiger Global|SoftBank|General Atlantic|Silver Lake|Thoma Bravo|Vista Equity Partners|Vista Equity|Advent International|EQT|CVC Capital|Hellman & Friedman|Insight Partners|Lightspeed|Brookfield|Ares|Permira|Index Ventures|Greylock|Kleiner Perkins)\b`),
				regexp.MustCompile(`\b([A-Z][A-Za-z0-9&'-]*(?:\s+[A-Z][A-Za-z0-9&'-]*)*\s+(?:Capital|Partners|Ventures|Holdings|Group|Fund|Equity|Investments|Management|Advisors|Inc|LLC|Ltd|Corp|Corporation|LP))\b`),
			},
		},
		{
			category: models.CategoryPerson,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr)\.?\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`),
				regexp.MustCompile(`(?i:\b(?:` + roleWords + `))\s+([A-Z][a-z]+\s+[A-Z][a-z]+)\b`),
				regexp.MustCompile(`\b([A-Z][a-z]+\s+[A-Z][a-z]+),\s+(?:the\s+)?(?i:` + roleWords + `)\b`),
			},
		},
		{
			category: models.CategoryAmount,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d+)?(?:\s?(?i:million|billion|trillion|thousand|mm|bn|[mbtk])\b)?`),
				regexp.MustCompile(`(?i)(?:^|[^$\d.,])(\d[\d,]*(?:\.\d+)?\s?(?:million|billion|trillion)\b)`),
				regexp.MustCompile(`(?i)\b((?:usd|eur|gbp)\s?\d[\d,]*(?:\.\d+)?(?:\s?(?:million|billion|mm|bn|[mbk])\b)?)`),
			},
		},
		{
			category: models.CategoryTimeframe,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b(` + yearExpr + `)\b`),
				regexp.MustCompile(`(?i)\b((?:last|past|previous|next)\s+(?:\d+\s+)?(?:years?|quarters?|months?|decades?))\b`),
				regexp.MustCompile(`(?i)\b(Q[1-4]\s?` + yearExpr + `)\b`),
				regexp.MustCompile(`(?i)\b((?:since|from|between)\s+` + yearExpr + `(?:\s+(?:and|to)\s+` + yearExpr + `)?)\b`),
				regexp.MustCompile(`(?i)\b(ytd|year[- ]to[- ]date|this year|last year)\b`),
			},
		},
		{
			category: models.CategorySector,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(fintech|healthcare|health tech|biotech|technology|tech|software|saas|real estate|infrastructure|renewable energy|clean energy|energy|consumer|retail|industrials|manufacturing|logistics|media|telecom|edtech|education|insurance|financial services|artificial intelligence|ai|cybersecurity|e-commerce)\b`),
				regexp.MustCompile(`(?i)\b([a-z]+)\s+(?:sector|industry|vertical)\b`),
			},
		},
		{
			category: models.CategoryGeography,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b(US|USA|UK|EU|APAC|EMEA|LATAM|MENA)\b`),
				regexp.MustCompile(`(?i)\b(united states|united kingdom|north america|latin america|asia pacific|asia|europe|africa|middle east|china|india|japan|germany|france|canada|brazil|singapore|australia|israel|california|new york|london|texas|boston|silicon valley)\b`),
			},
		},
		{
			category: models.CategoryMetric,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(irr|moic|tvpi|dpi|rvpi|aum|assets under management|ebitda|revenue|valuation|returns?|multiple|yield|net income|growth rate|dry powder)\b`),
			},
		},
	}
}

// Definition order is the tie-break order.
func defaultIntentTable() []intentDef {
	return []intentDef{
		{
			intent: models.IntentEntityInfo,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\btell me about\b`),
				regexp.MustCompile(`(?i)\b(?:what|who) (?:is|are)\b`),
				regexp.MustCompile(`(?i)\babout\b`),
				regexp.MustCompile(`(?i)\b(?:details|profile|overview|information|info) (?:on|of|for|about)\b`),
			},
			keywords: []string{"about", "details", "profile", "overview", "information", "who is", "what is"},
		},
		{
			intent: models.IntentRelationshipExplore,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(?:relationships?|connections?|linked|ties)\b`),
				regexp.MustCompile(`(?i)\bhow (?:is|are) .+ (?:connected|related|linked)\b`),
				regexp.MustCompile(`(?i)\bbetween\b.+\band\b`),
			},
			keywords: []string{"relationship", "connected", "connection", "related", "link", "co-invest", "between"},
		},
		{
			intent: models.IntentPortfolioAnalyze,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\bportfolios?\b`),
				regexp.MustCompile(`(?i)\b(?:holdings|investments (?:of|by|in)|invested in|portfolio companies)\b`),
			},
			keywords: []string{"portfolio", "holdings", "invested", "investments", "assets"},
		},
		{
			intent: models.IntentPerformance,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(?:performance|perform|performing|returns?)\b`),
				regexp.MustCompile(`(?i)\b(?:irr|moic|tvpi|dpi)\b`),
				regexp.MustCompile(`(?i)\b(?:top|best|worst) (?:performing|performers?)\b`),
			},
			keywords: []string{"performance", "returns", "irr", "moic", "top", "best", "yield"},
		},
		{
			intent: models.IntentTrends,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(?:trends?|trending)\b`),
				regexp.MustCompile(`(?i)\b(?:over time|over the (?:last|past)|year over year|growth)\b`),
				regexp.MustCompile(`(?i)\b(?:since|between) ` + yearExpr + `\b`),
			},
			keywords: []string{"trend", "growth", "over time", "increase", "decrease", "change", "history"},
		},
		{
			intent: models.IntentComparison,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(?:compare|comparison|versus|vs)\b`),
				regexp.MustCompile(`(?i)\bdifferences? between\b`),
				regexp.MustCompile(`(?i)\b(?:better|bigger|larger|smaller) than\b`),
			},
			keywords: []string{"compare", "versus", "vs", "difference", "than", "against"},
		},
		{
			intent: models.IntentDiscovery,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(?:find|search|discover|identify|list|show me)\b`),
				regexp.MustCompile(`(?i)\b(?:companies|funds|investors|firms|startups) (?:in|that|with|focused)\b`),
				regexp.MustCompile(`(?i)\b(?:looking for|recommend)\b`),
			},
			keywords: []string{"find", "search", "discover", "list", "show", "looking for", "similar"},
		},
		{
			intent: models.IntentNetwork,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(?:network|ecosystem|central|influential|hubs?)\b`),
				regexp.MustCompile(`(?i)\b(?:most connected|key players|degrees? of separation)\b`),
			},
			keywords: []string{"network", "ecosystem", "central", "influential", "connected", "cluster"},
		},
	}
}

// Words dropped from the front of company spans and rejected as whole spans.
var leadingStopwords = map[string]bool{
	"tell": true, "show": true, "compare": true, "what": true, "who": true,
	"which": true, "how": true, "find": true, "list": true, "give": true,
	"the": true, "about": true, "between": true, "and": true, "is": true,
	"are": true, "did": true, "does": true, "has": true, "have": true,
	"can": true, "where": true, "when": true, "me": true,
	"this": true, "that": true, "each": true, "every": true, "a": true,
	"an": true, "our": true, "their": true,
}
