package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"chore-planner/internal/service"
)

const (
	defaultDatabaseURL = "chore_planner.db"
	// Mondays at 06:00, seconds field first.
	defaultAutoAssignSchedule = "0 0 6 * * MON"
	defaultPhotoDir           = "photos"
)

// Config keeps runtime settings for the planner.
type Config struct {
	TelegramToken      string
	BotDisabled        bool
	DatabaseURL        string
	AutoAssignSchedule string
	PriorityWeights    service.PriorityWeights
	PhotoDir           string
	LogLevel           string
	LogFormat          string
}

// fileConfig is the optional YAML overlay named by CONFIG_FILE. Environment
// variables win over it.
type fileConfig struct {
	DatabaseURL        string                   `yaml:"database_url"`
	AutoAssignSchedule *string                  `yaml:"auto_assign_schedule"`
	PriorityWeights    *service.PriorityWeights `yaml:"priority_weights"`
	PhotoDir           string                   `yaml:"photo_dir"`
}

// Load reads configuration from a .env file, an optional YAML file and
// environment variables, in increasing order of precedence.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		DatabaseURL:        defaultDatabaseURL,
		AutoAssignSchedule: defaultAutoAssignSchedule,
		PriorityWeights:    service.DefaultPriorityWeights(),
		PhotoDir:           defaultPhotoDir,
		LogLevel:           "info",
	}

	if path := env("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return cfg, err
		}
	}

	cfg.TelegramToken = env("TELEGRAM_TOKEN")
	cfg.BotDisabled = parseBool(env("BOT_DISABLED"))
	if v := env("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v, ok := os.LookupEnv("AUTO_ASSIGN_SCHEDULE"); ok {
		cfg.AutoAssignSchedule = strings.TrimSpace(v)
	}
	if v := env("PRIORITY_WEIGHTS"); v != "" {
		weights, err := ParsePriorityWeights(v)
		if err != nil {
			return cfg, err
		}
		cfg.PriorityWeights = weights
	}
	if v := env("PHOTO_DIR"); v != "" {
		cfg.PhotoDir = v
	}
	if v := env("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	cfg.LogFormat = strings.ToLower(env("LOG_FORMAT"))

	if err := cfg.PriorityWeights.Validate(); err != nil {
		return cfg, err
	}
	if cfg.TelegramToken == "" && !cfg.BotDisabled {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.UnmarshalStrict(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if fc.DatabaseURL != "" {
		c.DatabaseURL = fc.DatabaseURL
	}
	if fc.AutoAssignSchedule != nil {
		c.AutoAssignSchedule = strings.TrimSpace(*fc.AutoAssignSchedule)
	}
	if fc.PriorityWeights != nil {
		c.PriorityWeights = *fc.PriorityWeights
	}
	if fc.PhotoDir != "" {
		c.PhotoDir = fc.PhotoDir
	}
	return nil
}

// ParsePriorityWeights reads "low,medium,high", e.g. "1,2,3".
func ParsePriorityWeights(raw string) (service.PriorityWeights, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return service.PriorityWeights{}, fmt.Errorf("PRIORITY_WEIGHTS %q: expected low,medium,high", raw)
	}
	values := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return service.PriorityWeights{}, fmt.Errorf("PRIORITY_WEIGHTS %q: %w", raw, err)
		}
		values[i] = n
	}
	weights := service.PriorityWeights{Low: values[0], Medium: values[1], High: values[2]}
	if err := weights.Validate(); err != nil {
		return service.PriorityWeights{}, err
	}
	return weights, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func parseBool(raw string) bool {
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}
