package inferrelationships

import (
	"time"

	"pm-intelligence/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Timeout: config.GetDuration(cfg.GetWorkerConfig(TaskType).Timeout, 30*time.Minute),
	}
}
