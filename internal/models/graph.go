package models

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Row is one result record as plain key/value pairs.
type Row map[string]interface{}

// QuerySummary carries driver-reported counters for a query.
type QuerySummary struct {
	ResultAvailableAfter time.Duration `json:"resultAvailableAfter"`
	NodesCreated         int           `json:"nodesCreated"`
	RelationshipsCreated int           `json:"relationshipsCreated"`
	PropertiesSet        int           `json:"propertiesSet"`
}

// QueryOutcome is what a graph store returns for one query.
type QueryOutcome struct {
	Rows    []Row        `json:"rows"`
	Summary QuerySummary `json:"summary"`
}

// GraphStore executes parameterized queries. Writes must be idempotent keyed
// by entity id or (from, to, type).
type GraphStore interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (*QueryOutcome, error)
}

// WritableGraphStore routes write queries to a leader.
type WritableGraphStore interface {
	GraphStore
	ExecuteWrite(ctx context.Context, query string, params map[string]interface{}) (*QueryOutcome, error)
}

func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func (r Row) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func (r Row) Int(key string) int {
	f, ok := r.Float(key)
	if !ok {
		return 0
	}
	return int(f)
}

func (r Row) Strings(key string) []string {
	switch v := r[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, it := range v {
			if it == nil {
				continue
			}
			out = append(out, fmt.Sprint(it))
		}
		return out
	default:
		return nil
	}
}

// Map returns a nested map value, such as node properties.
func (r Row) Map(key string) map[string]interface{} {
	if m, ok := r[key].(map[string]interface{}); ok {
		return m
	}
	return nil
}
