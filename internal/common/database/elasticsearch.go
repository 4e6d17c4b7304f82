package database

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"pm-intelligence/internal/common/config"
)

const defaultEntityIndex = "pm-entities"

// ElasticsearchClient carries the client and the name of the entity index.
type ElasticsearchClient struct {
	Client *elasticsearch.Client
	Index  string
}

func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("elasticsearch enabled without addresses")
	}
	index := strings.TrimSpace(cfg.EntityIndex)
	if index == "" {
		index = defaultEntityIndex
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     cfg.Addresses,
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests},
		MaxRetries:    3,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client for %v: %w", cfg.Addresses, err)
	}
	return &ElasticsearchClient{Client: es, Index: index}, nil
}

// Ping reports the cluster unhealthy only when it is red. Yellow is normal
// for single-node deployments without replicas.
func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	res, err := c.Client.Cluster.Health(
		c.Client.Cluster.Health.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch unreachable: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch health: %s", res.Status())
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		return fmt.Errorf("elasticsearch health: %w", err)
	}
	if health.Status == "red" {
		return fmt.Errorf("elasticsearch cluster status red")
	}
	return nil
}
