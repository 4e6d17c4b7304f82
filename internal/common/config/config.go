package config

import (
	"fmt"
	"time"
)

type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Graph         GraphConfig             `mapstructure:"graph"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Conversation  ConversationConfig      `mapstructure:"conversation"`
	Query         QueryConfig             `mapstructure:"query"`
	Inference     InferenceConfig         `mapstructure:"inference"`
	Sources       SourcesConfig           `mapstructure:"sources"`
	APIs          APIsConfig              `mapstructure:"apis"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	HTTPAddress string `mapstructure:"http_address"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	Plaintext      bool   `mapstructure:"plaintext"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// GraphConfig points at the Neo4j property graph.
type GraphConfig struct {
	URI            string `mapstructure:"uri"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	Database       string `mapstructure:"database"`
	MaxPoolSize    int    `mapstructure:"max_pool_size"`
	QueryTimeout   int    `mapstructure:"query_timeout"`   // milliseconds
	ConnectTimeout int    `mapstructure:"connect_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Addresses   []string `mapstructure:"addresses"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	EntityIndex string   `mapstructure:"entity_index"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

type ConversationConfig struct {
	WindowSize        int `mapstructure:"window_size"`
	SessionTTL        int `mapstructure:"session_ttl"`        // minutes
	SweepInterval     int `mapstructure:"sweep_interval"`     // minutes
	MaxFollowUps      int `mapstructure:"max_follow_ups"`
	EnrichmentTimeout int `mapstructure:"enrichment_timeout"` // milliseconds
	SuggestionTimeout int `mapstructure:"suggestion_timeout"` // milliseconds
}

type QueryConfig struct {
	PlanTimeout    int `mapstructure:"plan_timeout"` // milliseconds
	MaxConcurrency int `mapstructure:"max_concurrency"`
	ResultCacheTTL int `mapstructure:"result_cache_ttl"` // seconds, 0 disables
	ResultLimit    int `mapstructure:"result_limit"`
}

type InferenceConfig struct {
	BatchSize      int                `mapstructure:"batch_size"`
	CandidateLimit int                `mapstructure:"candidate_limit"`
	Schedule       string             `mapstructure:"schedule"` // cron expression, empty disables
	Thresholds     map[string]float64 `mapstructure:"thresholds"`
}

type SourcesConfig struct {
	ValidationCacheSize int    `mapstructure:"validation_cache_size"`
	ValidationCacheTTL  int    `mapstructure:"validation_cache_ttl"` // minutes
	RegistryFile        string `mapstructure:"registry_file"`
}

type APIsConfig struct {
	GenAI struct {
		BaseURL    string `mapstructure:"base_url"`
		APIKey     string `mapstructure:"api_key"`
		Timeout    int    `mapstructure:"timeout"` // milliseconds
		MaxRetries int    `mapstructure:"max_retries"`
	} `mapstructure:"genai"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ObservabilityConfig struct {
	ServiceName  string  `mapstructure:"service_name"`
	TraceSampler float64 `mapstructure:"trace_sampler"`
}

// GetDuration converts a millisecond setting to a duration, falling back when unset.
func GetDuration(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func (c *Config) GetWorkerConfig(taskType string) WorkerConfig {
	if w, ok := c.Workers[taskType]; ok {
		return w
	}
	return WorkerConfig{Enabled: false, MaxJobsActive: 5, Timeout: 30000, MaxRetries: 3}
}

func (c *Config) IsWorkerEnabled(taskType string) bool {
	return c.GetWorkerConfig(taskType).Enabled
}

func (c ConversationConfig) SessionTTLDuration() time.Duration {
	return time.Duration(c.SessionTTL) * time.Minute
}

func (c ConversationConfig) SweepIntervalDuration() time.Duration {
	return time.Duration(c.SweepInterval) * time.Minute
}

func (q QueryConfig) CacheTTL() time.Duration {
	return time.Duration(q.ResultCacheTTL) * time.Second
}
