// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
)

// Duration wraps time.Duration so config files can spell durations as
// strings like "168h" or "90s".
type Duration time.Duration

// UnmarshalJSON accepts either a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("duration must be a string or a number: %w", err)
	}
	*d = Duration(n)
	return nil
}

// MarshalJSON writes the duration in string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the planner configuration that can be loaded from a
// JSON file. Missing values use defaults; CLI flags override after merging.
type Config struct {
	// Study plan shape
	DailyTimeBudgetMinutes int `json:"daily_time_budget_minutes,omitempty" validate:"gt=0"`
	TotalDays              int `json:"total_days,omitempty" validate:"gt=0"`
	ReviewIntervalDays     int `json:"review_interval_days,omitempty" validate:"gt=0"`

	// Pipeline behavior
	MaxRetryAttempts  int      `json:"max_retry_attempts,omitempty" validate:"gte=0"`
	CacheTTL          Duration `json:"cache_ttl,omitempty"`
	MaxCostBudget     float64  `json:"max_cost_budget,omitempty" validate:"gte=0"`
	MinSuccessRatio   float64  `json:"min_success_ratio,omitempty" validate:"gte=0,lte=1"`
	WorkerConcurrency int      `json:"worker_concurrency,omitempty" validate:"gt=0"`
	StageTimeout      Duration `json:"stage_timeout,omitempty"`

	// Learner preferences
	UserLevel string `json:"user_level,omitempty" validate:"omitempty,oneof=beginner intermediate advanced expert"`
	Language  string `json:"language,omitempty"`

	// External services
	APIKey      string `json:"api_key,omitempty"`      // Gemini API key
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL

	Verbose bool `json:"verbose,omitempty"` // Print detailed debug information
}

// DefaultConfig returns the baseline configuration. Two hours of study per
// day over a week mirrors the defaults the CLI advertises.
func DefaultConfig() Config {
	return Config{
		DailyTimeBudgetMinutes: 120,
		TotalDays:              7,
		ReviewIntervalDays:     3,
		MaxRetryAttempts:       2,
		CacheTTL:               Duration(7 * 24 * time.Hour),
		MaxCostBudget:          0, // unlimited
		MinSuccessRatio:        0.5,
		WorkerConcurrency:      4,
		StageTimeout:           Duration(2 * time.Minute),
		UserLevel:              "intermediate",
		Language:               "English",
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// MergeWithDefaults returns a new Config with zero-valued fields filled
// from defaults. This is used to apply config file values on top of the
// baseline before CLI flags override.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.DailyTimeBudgetMinutes == 0 {
		result.DailyTimeBudgetMinutes = defaults.DailyTimeBudgetMinutes
	}
	if result.TotalDays == 0 {
		result.TotalDays = defaults.TotalDays
	}
	if result.ReviewIntervalDays == 0 {
		result.ReviewIntervalDays = defaults.ReviewIntervalDays
	}
	if result.MaxRetryAttempts == 0 {
		result.MaxRetryAttempts = defaults.MaxRetryAttempts
	}
	if result.CacheTTL == 0 {
		result.CacheTTL = defaults.CacheTTL
	}
	if result.MaxCostBudget == 0 {
		result.MaxCostBudget = defaults.MaxCostBudget
	}
	if result.MinSuccessRatio == 0 {
		result.MinSuccessRatio = defaults.MinSuccessRatio
	}
	if result.WorkerConcurrency == 0 {
		result.WorkerConcurrency = defaults.WorkerConcurrency
	}
	if result.StageTimeout == 0 {
		result.StageTimeout = defaults.StageTimeout
	}
	if result.UserLevel == "" {
		result.UserLevel = defaults.UserLevel
	}
	if result.Language == "" {
		result.Language = defaults.Language
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// fieldNames maps Config struct fields to their JSON names for error
// reporting.
var fieldNames = map[string]string{
	"DailyTimeBudgetMinutes": "daily_time_budget_minutes",
	"TotalDays":              "total_days",
	"ReviewIntervalDays":     "review_interval_days",
	"MaxRetryAttempts":       "max_retry_attempts",
	"CacheTTL":               "cache_ttl",
	"MaxCostBudget":          "max_cost_budget",
	"MinSuccessRatio":        "min_success_ratio",
	"WorkerConcurrency":      "worker_concurrency",
	"StageTimeout":           "stage_timeout",
	"UserLevel":              "user_level",
	"Language":               "language",
}

// Validate checks that the configuration has valid values. Every
// violation is reported as an InvalidConfigurationError so callers can
// refuse to start the pipeline.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			name := fieldNames[fe.Field()]
			if name == "" {
				name = fe.Field()
			}
			return &InvalidConfigurationError{
				Field:   name,
				Message: fmt.Sprintf("failed %q constraint (value %v)", fe.Tag(), fe.Value()),
			}
		}
		return &InvalidConfigurationError{Field: "config", Message: err.Error()}
	}

	// Durations carry their own checks; validator tags do not reach
	// through the named type.
	if c.CacheTTL < 0 {
		return &InvalidConfigurationError{Field: "cache_ttl", Message: "must not be negative"}
	}
	if c.StageTimeout <= 0 {
		return &InvalidConfigurationError{Field: "stage_timeout", Message: "must be positive"}
	}

	return nil
}
