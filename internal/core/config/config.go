// Package config handles configuration loading and validation for agora.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hay-kot/criterio"
	"gopkg.in/yaml.v3"

	"github.com/agorabot/agora/internal/core/activity"
	"github.com/agorabot/agora/internal/core/report"
)

// Config holds the application configuration.
type Config struct {
	Listen  string         `yaml:"listen"`
	Stats   StatsConfig    `yaml:"stats"`
	Reports []ReportConfig `yaml:"reports"`
	DataDir string         `yaml:"-"` // set by caller, not from config file
}

// StatsConfig holds the activity tracking knobs.
type StatsConfig struct {
	// RefreshIntervalMinutes is how often reports are regenerated.
	RefreshIntervalMinutes int `yaml:"refresh_interval_minutes"`
	// RetentionDays is both the recency window used for scoring and the
	// event log retention horizon. One knob so the score always reads
	// exactly the data retention keeps around.
	RetentionDays int `yaml:"retention_days"`
	// CleanupIntervalHours is how often the retention sweep runs.
	CleanupIntervalHours int `yaml:"cleanup_interval_hours"`
	// MaxEntries caps how many channels a report displays.
	MaxEntries int `yaml:"max_entries"`
}

// ReportConfig defines one periodic activity report.
type ReportConfig struct {
	Kind        string `yaml:"kind"`
	Title       string `yaml:"title"`
	Category    string `yaml:"category"`
	Mode        string `yaml:"mode"`
	Destination int64  `yaml:"destination"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Listen: "127.0.0.1:8321",
		Stats: StatsConfig{
			RefreshIntervalMinutes: 30,
			RetentionDays:          activity.DefaultWindowDays,
			CleanupIntervalHours:   6,
			MaxEntries:             report.DefaultMaxEntries,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	// Apply defaults for zero values
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Listen == "" {
		c.Listen = defaults.Listen
	}
	if c.Stats.RefreshIntervalMinutes == 0 {
		c.Stats.RefreshIntervalMinutes = defaults.Stats.RefreshIntervalMinutes
	}
	if c.Stats.RetentionDays == 0 {
		c.Stats.RetentionDays = defaults.Stats.RetentionDays
	}
	if c.Stats.CleanupIntervalHours == 0 {
		c.Stats.CleanupIntervalHours = defaults.Stats.CleanupIntervalHours
	}
	if c.Stats.MaxEntries == 0 {
		c.Stats.MaxEntries = defaults.Stats.MaxEntries
	}
	for i := range c.Reports {
		if c.Reports[i].Mode == "" {
			c.Reports[i].Mode = string(report.ModeScore)
		}
		if c.Reports[i].Title == "" {
			c.Reports[i].Title = c.Reports[i].Kind
		}
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if c.DataDir == "" {
		errs = errs.Append("data_dir", fmt.Errorf("cannot be empty"))
	}
	if c.Stats.RefreshIntervalMinutes < 1 {
		errs = errs.Append("stats.refresh_interval_minutes", fmt.Errorf("must be at least 1"))
	}
	if c.Stats.RetentionDays < 1 {
		errs = errs.Append("stats.retention_days", fmt.Errorf("must be at least 1"))
	}
	if c.Stats.CleanupIntervalHours < 1 {
		errs = errs.Append("stats.cleanup_interval_hours", fmt.Errorf("must be at least 1"))
	}
	if c.Stats.MaxEntries < 1 {
		errs = errs.Append("stats.max_entries", fmt.Errorf("must be at least 1"))
	}

	seen := make(map[string]bool, len(c.Reports))
	for i, rep := range c.Reports {
		field := fmt.Sprintf("reports[%d]", i)

		switch {
		case rep.Kind == "":
			errs = errs.Append(field+".kind", fmt.Errorf("cannot be empty"))
		case seen[rep.Kind]:
			errs = errs.Append(field+".kind", fmt.Errorf("duplicate kind %q", rep.Kind))
		}
		seen[rep.Kind] = true

		if rep.Category == "" {
			errs = errs.Append(field+".category", fmt.Errorf("cannot be empty"))
		}
		if !report.Mode(rep.Mode).Valid() {
			errs = errs.Append(field+".mode", fmt.Errorf("invalid mode %q (use %q or %q)", rep.Mode, report.ModeScore, report.ModeNewest))
		}
		if rep.Destination == 0 {
			errs = errs.Append(field+".destination", fmt.Errorf("cannot be zero"))
		}
	}

	return errs.ToError()
}

// ValidationWarning is a non-fatal configuration concern surfaced by
// the config validate command.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// Warnings returns non-fatal concerns worth showing the operator.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if len(c.Reports) == 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "Reports",
			Message:  "no reports configured, the daemon will only ingest events",
		})
	}

	if c.Stats.RefreshIntervalMinutes > c.Stats.RetentionDays*24*60 {
		warnings = append(warnings, ValidationWarning{
			Category: "Stats",
			Message:  "refresh interval exceeds the retention window, reports may publish empty recents",
		})
	}

	return warnings
}

// RefreshInterval returns how often the report cycle runs.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Stats.RefreshIntervalMinutes) * time.Minute
}

// CleanupInterval returns how often the retention cycle runs.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.Stats.CleanupIntervalHours) * time.Hour
}

// ActivityDir returns the path of the activity counter store.
func (c *Config) ActivityDir() string {
	return filepath.Join(c.DataDir, "activity")
}

// DatabaseFile returns the path to the sqlite database.
func (c *Config) DatabaseFile() string {
	return filepath.Join(c.DataDir, "agora.db")
}

// ReportsDir returns the directory the file publisher writes into.
func (c *Config) ReportsDir() string {
	return filepath.Join(c.DataDir, "reports")
}
