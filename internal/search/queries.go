package search

import "strings"

const indexMapping = `{
  "settings": {
    "analysis": {
      "normalizer": {
        "lowercase": {"type": "custom", "filter": ["lowercase"]}
      }
    }
  },
  "mappings": {
    "properties": {
      "id":      {"type": "keyword"},
      "name":    {"type": "text", "fields": {"raw": {"type": "keyword", "normalizer": "lowercase"}}},
      "type":    {"type": "keyword", "normalizer": "lowercase"},
      "aliases": {"type": "text"},
      "sector":  {"type": "keyword", "normalizer": "lowercase"},
      "country": {"type": "keyword", "normalizer": "lowercase"},
      "city":    {"type": "keyword", "normalizer": "lowercase"}
    }
  }
}`

func buildSearchBody(q Query) map[string]interface{} {
	must := []interface{}{}
	filter := []interface{}{}

	if text := strings.TrimSpace(q.Text); text != "" {
		match := map[string]interface{}{
			"query":  text,
			"fields": []string{"name^3", "aliases^2"},
			"type":   "best_fields",
		}
		if q.Fuzzy {
			match["fuzziness"] = "AUTO"
			match["prefix_length"] = 1
		}
		must = append(must, map[string]interface{}{"multi_match": match})
	}

	terms := []struct{ field, value string }{
		{"type", q.Type},
		{"sector", q.Sector},
		{"country", q.Country},
	}
	for _, t := range terms {
		if t.value != "" {
			filter = append(filter, map[string]interface{}{
				"term": map[string]interface{}{t.field: strings.ToLower(t.value)},
			})
		}
	}

	if len(must) == 0 {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   must,
				"filter": filter,
			},
		},
	}
}
