// Package graphtest provides an in-process graph store whose answers are
// scripted by query-text substring.
package graphtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"pm-intelligence/internal/models"
)

// Response is what a matching query returns. Delay honors context
// cancellation.
type Response struct {
	Rows  []models.Row
	Err   error
	Delay time.Duration
	Panic string
}

type Call struct {
	Query  string
	Params map[string]interface{}
	Write  bool
}

type rule struct {
	substr string
	resp   Response
}

type Store struct {
	mu    sync.Mutex
	rules []rule
	calls []Call
}

func New() *Store {
	return &Store{}
}

// On registers resp for queries containing substr. Rules match in
// registration order; unmatched queries return no rows.
func (s *Store) On(substr string, resp Response) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, rule{substr: substr, resp: resp})
	return s
}

func (s *Store) OnRows(substr string, rows ...models.Row) *Store {
	return s.On(substr, Response{Rows: rows})
}

func (s *Store) OnError(substr string, err error) *Store {
	return s.On(substr, Response{Err: err})
}

func (s *Store) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (*models.QueryOutcome, error) {
	return s.execute(ctx, query, params, false)
}

func (s *Store) ExecuteWrite(ctx context.Context, query string, params map[string]interface{}) (*models.QueryOutcome, error) {
	return s.execute(ctx, query, params, true)
}

func (s *Store) execute(ctx context.Context, query string, params map[string]interface{}, write bool) (*models.QueryOutcome, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Query: query, Params: params, Write: write})
	resp := Response{}
	for _, r := range s.rules {
		if strings.Contains(query, r.substr) {
			resp = r.resp
			break
		}
	}
	s.mu.Unlock()

	if resp.Delay > 0 {
		timer := time.NewTimer(resp.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if resp.Panic != "" {
		panic(resp.Panic)
	}
	if resp.Err != nil {
		return nil, resp.Err
	}

	rows := make([]models.Row, len(resp.Rows))
	for i, r := range resp.Rows {
		cp := make(models.Row, len(r))
		for k, v := range r {
			cp[k] = v
		}
		rows[i] = cp
	}
	return &models.QueryOutcome{Rows: rows}, nil
}

func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount counts calls whose query contains substr.
func (s *Store) CallCount(substr string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if strings.Contains(c.Query, substr) {
			n++
		}
	}
	return n
}

func (s *Store) Writes() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if c.Write {
			out = append(out, c)
		}
	}
	return out
}
