package commands

import (
	"os"
	"path/filepath"

	"github.com/agorabot/agora/internal/core/config"
	"github.com/agorabot/agora/internal/core/report"
	"github.com/agorabot/agora/internal/core/schedule"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DataDir    string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "agora", "config.yaml")
}

// DefaultDataDir returns the default data directory using XDG_DATA_HOME.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "agora")
}

// reportSpecs translates the configured reports into scheduler specs.
func reportSpecs(cfg *config.Config) []schedule.ReportSpec {
	specs := make([]schedule.ReportSpec, len(cfg.Reports))
	for i, rep := range cfg.Reports {
		specs[i] = schedule.ReportSpec{
			Kind:          rep.Kind,
			Title:         rep.Title,
			Category:      rep.Category,
			Mode:          report.Mode(rep.Mode),
			DestinationID: rep.Destination,
		}
	}
	return specs
}
