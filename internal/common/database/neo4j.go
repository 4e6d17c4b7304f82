// internal/common/database/neo4j.go
package database

import (
	"context"
	"fmt"
	"time"

	"pm-intelligence/internal/common/config"
	"pm-intelligence/internal/models"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// Neo4jStore is the property graph behind models.GraphStore. Reads go to
// followers, writes to the leader.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	timeout  time.Duration
}

func NewNeo4j(ctx context.Context, cfg config.GraphConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			if cfg.MaxPoolSize > 0 {
				c.MaxConnectionPoolSize = cfg.MaxPoolSize
			}
			c.SocketConnectTimeout = config.GetDuration(cfg.ConnectTimeout, 5*time.Second)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	return &Neo4jStore{
		driver:   driver,
		database: cfg.Database,
		timeout:  config.GetDuration(cfg.QueryTimeout, 30*time.Second),
	}, nil
}

func (s *Neo4jStore) Ping(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("neo4j connectivity check failed: %w", err)
	}
	return nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Neo4jStore) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (*models.QueryOutcome, error) {
	return s.run(ctx, neo4j.AccessModeRead, query, params)
}

// ExecuteWrite runs MERGE-based upserts, which are idempotent per key.
func (s *Neo4jStore) ExecuteWrite(ctx context.Context, query string, params map[string]interface{}) (*models.QueryOutcome, error) {
	return s.run(ctx, neo4j.AccessModeWrite, query, params)
}

func (s *Neo4jStore) run(ctx context.Context, mode neo4j.AccessMode, query string, params map[string]interface{}) (*models.QueryOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("neo4j query failed: %w", err)
	}

	outcome := &models.QueryOutcome{Rows: []models.Row{}}
	for result.Next(ctx) {
		outcome.Rows = append(outcome.Rows, RecordToRow(result.Record().AsMap()))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("neo4j result failed: %w", err)
	}

	summary, err := result.Consume(ctx)
	if err != nil {
		return nil, fmt.Errorf("neo4j consume failed: %w", err)
	}
	counters := summary.Counters()
	outcome.Summary = models.QuerySummary{
		ResultAvailableAfter: summary.ResultAvailableAfter(),
		NodesCreated:         counters.NodesCreated(),
		RelationshipsCreated: counters.RelationshipsCreated(),
		PropertiesSet:        counters.PropertiesSet(),
	}
	return outcome, nil
}

// RecordToRow converts driver values into plain maps and slices.
func RecordToRow(record map[string]interface{}) models.Row {
	row := make(models.Row, len(record))
	for k, v := range record {
		row[k] = plainValue(v)
	}
	return row
}

func plainValue(v interface{}) interface{} {
	switch x := v.(type) {
	case dbtype.Node:
		return nodeMap(x)
	case dbtype.Relationship:
		return relationshipMap(x)
	case dbtype.Path:
		nodes := make([]interface{}, len(x.Nodes))
		for i, n := range x.Nodes {
			nodes[i] = nodeMap(n)
		}
		rels := make([]interface{}, len(x.Relationships))
		for i, r := range x.Relationships {
			rels[i] = relationshipMap(r)
		}
		return map[string]interface{}{"nodes": nodes, "relationships": rels}
	case dbtype.Date:
		return x.Time().Format("2006-01-02")
	case dbtype.LocalDateTime:
		return x.Time()
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, it := range x {
			out[i] = plainValue(it)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, it := range x {
			out[k] = plainValue(it)
		}
		return out
	default:
		return v
	}
}

func nodeMap(n dbtype.Node) map[string]interface{} {
	props := make(map[string]interface{}, len(n.Props)+1)
	for k, v := range n.Props {
		props[k] = plainValue(v)
	}
	props["labels"] = append([]string{}, n.Labels...)
	return props
}

func relationshipMap(r dbtype.Relationship) map[string]interface{} {
	props := make(map[string]interface{}, len(r.Props)+1)
	for k, v := range r.Props {
		props[k] = plainValue(v)
	}
	props["type"] = r.Type
	return props
}
