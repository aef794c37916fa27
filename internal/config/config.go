package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	defaultFile          = ".env"
	defaultFormat        = "table"
	defaultLogLevel      = "info"
	defaultWatchInterval = time.Second
	defaultWatchDebounce = 200 * time.Millisecond
)

// Environment variables read by Load.
const (
	EnvFiles    = "ENVSMITH_FILES"
	EnvFormat   = "ENVSMITH_FORMAT"
	EnvLogLevel = "ENVSMITH_LOG_LEVEL"
	EnvStrict   = "ENVSMITH_STRICT"
	EnvOverride = "ENVSMITH_OVERRIDE"
)

// Config aggregates the command settings resolved from multiple sources.
type Config struct {
	Files    []string    `yaml:"files" validate:"min=1,dive,required"`
	Format   string      `yaml:"format" validate:"oneof=table json env"`
	Override bool        `yaml:"override"`
	Expand   bool        `yaml:"expand"`
	Strict   bool        `yaml:"strict"`
	Cache    bool        `yaml:"cache"`
	LogLevel string      `yaml:"log_level" validate:"oneof=debug info warn error"`
	Watch    WatchConfig `yaml:"watch"`
}

// WatchConfig holds the settings of the watch command.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
	Polling  bool          `yaml:"polling"`
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

// yamlConfig represents the YAML settings file. Pointers distinguish absent
// keys from zero values.
type yamlConfig struct {
	Files    []string  `yaml:"files"`
	Format   string    `yaml:"format"`
	Override *bool     `yaml:"override"`
	Expand   *bool     `yaml:"expand"`
	Strict   *bool     `yaml:"strict"`
	Cache    *bool     `yaml:"cache"`
	LogLevel string    `yaml:"log_level"`
	Watch    yamlWatch `yaml:"watch"`
}

type yamlWatch struct {
	Interval string `yaml:"interval"`
	Polling  *bool  `yaml:"polling"`
	Debounce string `yaml:"debounce"`
}

// CLIOverrides holds command-line flag overrides. Nil pointers and empty
// slices leave the lower-precedence value in place.
type CLIOverrides struct {
	ConfigFile    string
	Files         []string
	Format        *string
	Override      *bool
	Expand        *bool
	Strict        *bool
	LogLevel      *string
	WatchInterval *time.Duration
	WatchPolling  *bool
}

var validate = validator.New()

// Load resolves settings with precedence:
// CLI flags > environment variables > YAML settings file > defaults.
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
	}

	applyEnvConfig(&cfg)

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func defaultConfig() Config {
	return Config{
		Files:    []string{defaultFile},
		Format:   defaultFormat,
		Expand:   true,
		Strict:   true,
		Cache:    true,
		LogLevel: defaultLogLevel,
		Watch: WatchConfig{
			Interval: defaultWatchInterval,
			Debounce: defaultWatchDebounce,
		},
	}
}

func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if len(yamlCfg.Files) > 0 {
		cfg.Files = yamlCfg.Files
	}
	if yamlCfg.Format != "" {
		cfg.Format = yamlCfg.Format
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}

	setBool(&cfg.Override, yamlCfg.Override)
	setBool(&cfg.Expand, yamlCfg.Expand)
	setBool(&cfg.Strict, yamlCfg.Strict)
	setBool(&cfg.Cache, yamlCfg.Cache)
	setBool(&cfg.Watch.Polling, yamlCfg.Watch.Polling)

	if yamlCfg.Watch.Interval != "" {
		d, err := time.ParseDuration(yamlCfg.Watch.Interval)
		if err != nil {
			return fmt.Errorf("watch.interval: %w", err)
		}
		cfg.Watch.Interval = d
	}
	if yamlCfg.Watch.Debounce != "" {
		d, err := time.ParseDuration(yamlCfg.Watch.Debounce)
		if err != nil {
			return fmt.Errorf("watch.debounce: %w", err)
		}
		cfg.Watch.Debounce = d
	}
	return nil
}

func applyEnvConfig(cfg *Config) {
	if raw := strings.TrimSpace(os.Getenv(EnvFiles)); raw != "" {
		if files := splitList(raw); len(files) > 0 {
			cfg.Files = files
		}
	}

	if format := strings.TrimSpace(os.Getenv(EnvFormat)); format != "" {
		cfg.Format = strings.ToLower(format)
	}

	if level := strings.TrimSpace(os.Getenv(EnvLogLevel)); level != "" {
		cfg.LogLevel = strings.ToLower(level)
	}

	if raw := strings.TrimSpace(os.Getenv(EnvStrict)); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.Strict = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv(EnvOverride)); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.Override = value
		}
	}
}

func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if len(overrides.Files) > 0 {
		cfg.Files = overrides.Files
	}
	if overrides.Format != nil && *overrides.Format != "" {
		cfg.Format = *overrides.Format
	}
	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}
	if overrides.WatchInterval != nil {
		cfg.Watch.Interval = *overrides.WatchInterval
	}

	setBool(&cfg.Override, overrides.Override)
	setBool(&cfg.Expand, overrides.Expand)
	setBool(&cfg.Strict, overrides.Strict)
	setBool(&cfg.Watch.Polling, overrides.WatchPolling)
}

func validateConfig(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

// splitList parses a comma-separated list, dropping empty items.
func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}
