// Package search keeps an Elasticsearch index of graph entities for fuzzy
// name lookup.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/models"
)

const (
	DefaultIndex = "pm-entities"
	maxPageSize  = 100
)

var (
	ErrSearchQueryFailed = errors.New("SEARCH_QUERY_FAILED")
	ErrIndexFailed       = errors.New("INDEX_FAILED")
	ErrSearchTimeout     = errors.New("SEARCH_TIMEOUT")
)

// Document is the indexed form of an entity.
type Document struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Aliases []string `json:"aliases,omitempty"`
	Sector  string   `json:"sector,omitempty"`
	Country string   `json:"country,omitempty"`
	City    string   `json:"city,omitempty"`
}

func DocumentFromEntity(e models.Entity) Document {
	doc := Document{
		ID:      e.ID,
		Name:    e.Name,
		Type:    string(e.Type),
		Sector:  e.Attributes.Text(models.AttrSector),
		Country: e.Attributes.Text(models.AttrCountry),
		City:    e.Attributes.Text(models.AttrCity),
	}
	if v, ok := e.Attributes[models.AttrAliases]; ok {
		if v.Kind == models.KindList {
			for _, it := range v.List {
				doc.Aliases = append(doc.Aliases, it.String())
			}
		} else if s := v.String(); s != "" {
			doc.Aliases = []string{s}
		}
	}
	return doc
}

type EntityIndex struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewEntityIndex(client *elasticsearch.Client, index string, log logger.Logger) *EntityIndex {
	if index == "" {
		index = DefaultIndex
	}
	return &EntityIndex{
		client: client,
		index:  index,
		logger: logger.ForComponent(log, "entity-index"),
	}
}

func (x *EntityIndex) Name() string {
	return x.index
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (x *EntityIndex) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{x.index}}.Do(ctx, x.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = esapi.IndicesCreateRequest{
		Index: x.index,
		Body:  strings.NewReader(indexMapping),
	}.Do(ctx, x.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}
	defer res.Body.Close()
	// a concurrent creator wins the race with 400 resource_already_exists
	if res.IsError() && res.StatusCode != http.StatusBadRequest {
		return fmt.Errorf("%w: create index: %s", ErrIndexFailed, res.String())
	}

	x.logger.Info("entity index ready", map[string]interface{}{
		"index": x.index,
	})
	return nil
}

// IndexEntity upserts the document keyed by entity id.
func (x *EntityIndex) IndexEntity(ctx context.Context, e models.Entity) error {
	if e.ID == "" {
		return fmt.Errorf("%w: entity id is required", ErrIndexFailed)
	}
	body, err := json.Marshal(DocumentFromEntity(e))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}

	res, err := esapi.IndexRequest{
		Index:      x.index,
		DocumentID: e.ID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, x.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: %s", ErrIndexFailed, res.String())
	}
	return nil
}

// Query filters are exact, case-insensitive keyword matches.
type Query struct {
	Text    string
	Type    string
	Sector  string
	Country string
	Fuzzy   bool
	Size    int
}

type Hit struct {
	Document
	Score float64 `json:"score"`
}

type Result struct {
	Hits      []Hit `json:"hits"`
	TotalHits int64 `json:"totalHits"`
	Took      int64 `json:"took"`
}

type searchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Score  float64  `json:"_score"`
			Source Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (x *EntityIndex) Search(ctx context.Context, q Query) (*Result, error) {
	if q.Size <= 0 {
		q.Size = 20
	}
	if q.Size > maxPageSize {
		q.Size = maxPageSize
	}
	body, err := json.Marshal(buildSearchBody(q))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}

	start := time.Now()
	res, err := esapi.SearchRequest{
		Index: []string{x.index},
		Body:  bytes.NewReader(body),
		Size:  &q.Size,
	}.Do(ctx, x.client)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrSearchTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchQueryFailed, res.String())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSearchQueryFailed, err)
	}

	out := &Result{TotalHits: r.Hits.Total.Value, Took: time.Since(start).Milliseconds()}
	for _, h := range r.Hits.Hits {
		out.Hits = append(out.Hits, Hit{Document: h.Source, Score: h.Score})
	}
	x.logger.Debug("entity search completed", map[string]interface{}{
		"text":  q.Text,
		"hits":  len(out.Hits),
		"total": out.TotalHits,
	})
	return out, nil
}

// Suggest returns distinct entity names close to text, best match first.
func (x *EntityIndex) Suggest(ctx context.Context, text string, limit int) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 3
	}
	res, err := x.Search(ctx, Query{Text: text, Fuzzy: true, Size: limit * 2})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, limit)
	seen := map[string]bool{}
	for _, h := range res.Hits {
		key := strings.ToLower(h.Name)
		if h.Name == "" || seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, h.Name)
		if len(names) == limit {
			break
		}
	}
	return names, nil
}
