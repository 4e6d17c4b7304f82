// Package extractor turns free text into typed entity spans and a ranked
// intent classification using fixed regex and keyword tables.
package extractor

import (
	"sort"
	"strings"

	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/models"
)

const (
	regexPoints      = 3
	keywordPoints    = 1
	continuityPoints = 1
	maxAlternatives  = 2

	// FallbackConfidence is reported for query.general when nothing scores.
	FallbackConfidence = 0.3
)

type Extractor struct {
	categories    []categoryPatterns
	intents       []intentDef
	totalPatterns int
	logger        logger.Logger
}

func New(log logger.Logger) *Extractor {
	cats := defaultCategoryPatterns()
	total := 0
	for _, c := range cats {
		total += len(c.patterns)
	}
	return &Extractor{
		categories:    cats,
		intents:       defaultIntentTable(),
		totalPatterns: total,
		logger:        logger.ForComponent(log, "extractor"),
	}
}

// PatternCount is the denominator of the extraction confidence.
func (e *Extractor) PatternCount() int {
	return e.totalPatterns
}

// Extract applies every category's patterns in order. Spans with identical
// text within a category are kept once, at their first offset.
func (e *Extractor) Extract(text string) models.ExtractedEntities {
	var out models.ExtractedEntities
	for _, c := range e.categories {
		out.Set(c.category, []models.Span{})
	}
	if strings.TrimSpace(text) == "" {
		return out
	}

	matched := 0
	for _, c := range e.categories {
		seen := make(map[string]bool)
		spans := []models.Span{}
		for _, re := range c.patterns {
			for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
				start, end := loc[0], loc[1]
				if len(loc) >= 4 && loc[2] >= 0 {
					start, end = loc[2], loc[3]
				}
				spanText, offset, ok := normalizeSpan(c.category, text[start:end], start)
				if !ok || seen[spanText] {
					continue
				}
				seen[spanText] = true
				spans = append(spans, models.Span{
					Text:       spanText,
					Offset:     offset,
					Confidence: SpanConfidence,
				})
			}
		}
		if len(spans) > 0 {
			matched++
		}
		out.Set(c.category, spans)
	}

	if e.totalPatterns > 0 {
		out.Confidence = float64(matched) / float64(e.totalPatterns)
	}

	e.logger.Debug("entities extracted", map[string]interface{}{
		"categories": matched,
		"spans":      out.Count(),
		"confidence": out.Confidence,
	})
	return out
}

// Classify scores every intent: each matching regex is worth 3 points and
// each contained keyword 1 point. Intents listed in recent that already
// scored get a continuity point.
func (e *Extractor) Classify(text string, recent []models.Intent) models.IntentResult {
	lower := strings.ToLower(text)
	recentSet := make(map[models.Intent]bool, len(recent))
	for _, r := range recent {
		recentSet[r] = true
	}

	type scored struct {
		intent models.Intent
		score  int
	}
	var scores []scored

	if strings.TrimSpace(text) != "" {
		for _, def := range e.intents {
			score := 0
			for _, re := range def.patterns {
				if re.MatchString(text) {
					score += regexPoints
				}
			}
			for _, kw := range def.keywords {
				if strings.Contains(lower, kw) {
					score += keywordPoints
				}
			}
			if score > 0 && recentSet[def.intent] {
				score += continuityPoints
			}
			if score > 0 {
				scores = append(scores, scored{intent: def.intent, score: score})
			}
		}
	}

	if len(scores) == 0 {
		return models.IntentResult{
			Intent:     models.IntentGeneral,
			Confidence: FallbackConfidence,
			Fallback:   true,
		}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	result := models.IntentResult{
		Intent:     scores[0].intent,
		Score:      scores[0].score,
		Confidence: scoreConfidence(scores[0].score),
	}
	for _, s := range scores[1:] {
		if len(result.Alternatives) == maxAlternatives {
			break
		}
		result.Alternatives = append(result.Alternatives, models.IntentAlternative{
			Intent:     s.intent,
			Score:      s.score,
			Confidence: scoreConfidence(s.score),
		})
	}
	return result
}

func scoreConfidence(score int) float64 {
	c := float64(score) / 10
	if c > 1 {
		return 1
	}
	return c
}

// normalizeSpan trims whitespace, strips leading stopwords from company
// names and rejects spans that are nothing but a stopword.
func normalizeSpan(cat models.Category, raw string, offset int) (string, int, bool) {
	trimmed := strings.TrimLeft(raw, " \t\n")
	offset += len(raw) - len(trimmed)
	trimmed = strings.TrimRight(trimmed, " \t\n")

	if cat == models.CategoryCompany {
		stripped := false
		for {
			idx := strings.IndexAny(trimmed, " \t")
			if idx < 0 || !leadingStopwords[strings.ToLower(trimmed[:idx])] {
				break
			}
			rest := strings.TrimLeft(trimmed[idx:], " \t")
			offset += len(trimmed) - len(rest)
			trimmed = rest
			stripped = true
		}
		// "The Fund" leaves only the suffix.
		if stripped && !strings.ContainsAny(trimmed, " \t") {
			return "", 0, false
		}
	}

	if trimmed == "" || leadingStopwords[strings.ToLower(trimmed)] {
		return "", 0, false
	}
	return trimmed, offset, true
}
