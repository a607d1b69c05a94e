package internal

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/telegrab/telegrab/internal/api"
	"github.com/telegrab/telegrab/internal/database"
	"github.com/telegrab/telegrab/internal/fetcher"
)

type (
	// TelegrabConfig is the user supplied configuration, sourced from
	// a YAML file with env-var overrides.
	TelegrabConfig struct {
		Engine     EngineConfig            `yaml:"engine"`
		Database   database.DatabaseConfig `yaml:"database" env-required:"true"`
		HTTPClient fetcher.Config          `yaml:"http_client"`
		Rest       api.RestConfig          `yaml:"api"`
		PicDirPath string                  `yaml:"pic_dir" env:"PIC_DIR" validate:"required"`
		CbzDirPath string                  `yaml:"cbz_dir" env:"CBZ_DIR" validate:"required"`
	}

	// EngineConfig tunes the task engine: how many workers pull from
	// the queue and how aggressively completed history is trimmed.
	EngineConfig struct {
		WorkerCount             int `yaml:"worker_count" env:"ENGINE_WORKER_COUNT" env-default:"4" validate:"gte=1"`
		MaxCompletedTasks       int `yaml:"max_completed_tasks" env:"ENGINE_MAX_COMPLETED_TASKS" env-default:"100" validate:"gte=0"`
		AutoCleanupIntervalSecs int `yaml:"auto_cleanup_interval_secs" env:"ENGINE_AUTO_CLEANUP_INTERVAL_SECS" env-default:"300" validate:"gte=1"`
	}
)

// LoadFromFile populates the config from a YAML file (plus any env
// overrides) and validates it.
func (config *TelegrabConfig) LoadFromFile(configPath string) error {
	if err := cleanenv.ReadConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	return nil
}
