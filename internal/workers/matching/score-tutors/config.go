// internal/workers/matching/score-tutors/config.go
package scoretutors

import (
	"time"

	"eduprima/internal/common/config"
	"eduprima/internal/matching"
)

type Config struct {
	Timeout    time.Duration
	MaxResults int
	Source     string
	Engine     matching.Config
}

func LoadConfig(appCfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(appCfg, TaskType)
	return &Config{
		Timeout:    config.GetDuration(wcfg.Timeout),
		MaxResults: appCfg.Matching.MaxResults,
		Source:     appCfg.Matching.CandidateSource,
		Engine: matching.Config{
			DefaultRadiusKm: appCfg.Matching.DefaultRadiusKm,
			ExperienceStep:  appCfg.Matching.ExperienceStep,
		},
	}
}
