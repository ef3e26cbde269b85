// internal/workers/accounts/preview-user-deletion/config.go
package previewuserdeletion

import (
	"time"

	"eduprima/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(appCfg *config.Config) *Config {
	return &Config{
		Timeout: config.GetDuration(config.GetWorkerConfig(appCfg, TaskType).Timeout),
	}
}
