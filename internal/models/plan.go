package models

import "sort"

// Query is one parameterized graph query.
type Query struct {
	Cypher string                 `json:"cypher"`
	Params map[string]interface{} `json:"params"`
}

// QueryPlan maps query names to queries for a single turn.
type QueryPlan struct {
	Intent  Intent           `json:"intent"`
	Queries map[string]Query `json:"queries"`
}

// Names returns query names in sorted order.
func (p *QueryPlan) Names() []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.Queries))
	for n := range p.Queries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (p *QueryPlan) Empty() bool {
	return p == nil || len(p.Queries) == 0
}

// QueryResult is the outcome of one named query. A failed query has Error
// set and zero timing and row count.
type QueryResult struct {
	Rows            []Row  `json:"rows"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
	RecordCount     int    `json:"recordCount"`
	Error           string `json:"error,omitempty"`
	Cached          bool   `json:"cached,omitempty"`
}

func (r QueryResult) Failed() bool {
	return r.Error != ""
}

// ExecutionResults is keyed by query name.
type ExecutionResults map[string]QueryResult

func (e ExecutionResults) TotalRows() int {
	n := 0
	for _, r := range e {
		n += r.RecordCount
	}
	return n
}

// Errors returns query name to error message for failed queries.
func (e ExecutionResults) Errors() map[string]string {
	out := make(map[string]string)
	for name, r := range e {
		if r.Failed() {
			out[name] = r.Error
		}
	}
	return out
}

func (e ExecutionResults) HasErrors() bool {
	for _, r := range e {
		if r.Failed() {
			return true
		}
	}
	return false
}

// Names returns query names in sorted order.
func (e ExecutionResults) Names() []string {
	names := make([]string, 0, len(e))
	for n := range e {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
