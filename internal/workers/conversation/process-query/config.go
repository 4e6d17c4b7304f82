package processquery

import (
	"time"

	"pm-intelligence/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	// IncludeData adds the processed result sets to the job variables.
	IncludeData bool
}

func LoadConfig(cfg *config.Config) *Config {
	wc := cfg.GetWorkerConfig(TaskType)
	return &Config{
		Timeout: config.GetDuration(wc.Timeout, 30*time.Second),
	}
}
