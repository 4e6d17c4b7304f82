package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml over it,
// expands ${VAR} placeholders and lets environment variables override any key.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finalize(v)
}

// LoadFromFile reads a single explicit config file.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finalize(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finalize(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env", "../../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets that are conventionally passed as bare env vars.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Graph.Password, "NEO4J_PASSWORD")
	setIfEmpty(&cfg.Graph.Username, "NEO4J_USER")
	setIfEmpty(&cfg.Graph.URI, "NEO4J_URI")
	setIfEmpty(&cfg.APIs.GenAI.APIKey, "GENAI_API_KEY")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
}

func setIfEmpty(target *string, envKey string) {
	if *target != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*target = val
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "pm-intelligence"
	}
	if cfg.App.HTTPAddress == "" {
		cfg.App.HTTPAddress = ":8080"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Graph.URI == "" {
		cfg.Graph.URI = "neo4j://localhost:7687"
	}
	if cfg.Graph.Database == "" {
		cfg.Graph.Database = "neo4j"
	}
	if cfg.Graph.MaxPoolSize == 0 {
		cfg.Graph.MaxPoolSize = 50
	}
	if cfg.Graph.QueryTimeout == 0 {
		cfg.Graph.QueryTimeout = 10000
	}
	if cfg.Graph.ConnectTimeout == 0 {
		cfg.Graph.ConnectTimeout = 5000
	}

	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.EntityIndex == "" {
		cfg.Database.Elasticsearch.EntityIndex = "pm-entities"
	}

	if cfg.Conversation.WindowSize == 0 {
		cfg.Conversation.WindowSize = 10
	}
	if cfg.Conversation.SessionTTL == 0 {
		cfg.Conversation.SessionTTL = 60
	}
	if cfg.Conversation.SweepInterval == 0 {
		cfg.Conversation.SweepInterval = 5
	}
	if cfg.Conversation.MaxFollowUps == 0 {
		cfg.Conversation.MaxFollowUps = 4
	}
	if cfg.Conversation.EnrichmentTimeout == 0 {
		cfg.Conversation.EnrichmentTimeout = 3000
	}
	if cfg.Conversation.SuggestionTimeout == 0 {
		cfg.Conversation.SuggestionTimeout = 1000
	}

	if cfg.Query.PlanTimeout == 0 {
		cfg.Query.PlanTimeout = 15000
	}
	if cfg.Query.MaxConcurrency == 0 {
		cfg.Query.MaxConcurrency = 4
	}
	if cfg.Query.ResultLimit == 0 {
		cfg.Query.ResultLimit = 25
	}

	if cfg.Inference.BatchSize == 0 {
		cfg.Inference.BatchSize = 8
	}
	if cfg.Inference.CandidateLimit == 0 {
		cfg.Inference.CandidateLimit = 500
	}

	if cfg.Sources.ValidationCacheSize == 0 {
		cfg.Sources.ValidationCacheSize = 1024
	}
	if cfg.Sources.ValidationCacheTTL == 0 {
		cfg.Sources.ValidationCacheTTL = 30
	}

	if cfg.APIs.GenAI.Timeout == 0 {
		cfg.APIs.GenAI.Timeout = 5000
	}
	if cfg.APIs.GenAI.MaxRetries == 0 {
		cfg.APIs.GenAI.MaxRetries = 1
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}
	if cfg.Observability.TraceSampler == 0 {
		cfg.Observability.TraceSampler = 0.1
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Graph.URI == "" {
		return fmt.Errorf("graph.uri is required")
	}
	if cfg.Conversation.WindowSize < 1 {
		return fmt.Errorf("conversation.window_size must be positive, got %d", cfg.Conversation.WindowSize)
	}
	if cfg.Conversation.MaxFollowUps > 4 {
		return fmt.Errorf("conversation.max_follow_ups must be at most 4, got %d", cfg.Conversation.MaxFollowUps)
	}
	if cfg.Query.MaxConcurrency < 1 {
		return fmt.Errorf("query.max_concurrency must be positive, got %d", cfg.Query.MaxConcurrency)
	}
	if cfg.Inference.BatchSize < 1 {
		return fmt.Errorf("inference.batch_size must be positive, got %d", cfg.Inference.BatchSize)
	}
	for name, th := range cfg.Inference.Thresholds {
		if th < 0 || th > 1 {
			return fmt.Errorf("inference.thresholds.%s must be within [0,1], got %v", name, th)
		}
	}
	if cfg.Database.Postgres.Enabled && cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required when postgres is enabled")
	}
	if cfg.Database.Redis.Enabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when redis is enabled")
	}
	if cfg.Database.Elasticsearch.Enabled && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required when elasticsearch is enabled")
	}
	return nil
}
