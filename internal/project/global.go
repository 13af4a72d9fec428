package project

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/tpc-app/tpc/internal/snapshot"
)

// GlobalConfig holds user-level tpc settings from ~/.tpc/config.yaml.
type GlobalConfig struct {
	// SnapshotLimit is the default retention limit for projects that do
	// not set their own.
	SnapshotLimit int `yaml:"snapshot_limit"`
	// IgnorePatterns are appended to every project's custom patterns.
	IgnorePatterns []string `yaml:"ignore_patterns"`
	// LogRetentionDays controls debug log cleanup (0 = no cleanup).
	LogRetentionDays int `yaml:"log_retention_days"`
}

// DefaultGlobalConfig returns the default global configuration.
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		SnapshotLimit:    snapshot.DefaultLimit,
		LogRetentionDays: 7,
	}
}

// LoadGlobal reads ~/.tpc/config.yaml and applies environment overrides.
func LoadGlobal() (*GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	if data, err := os.ReadFile(filepath.Join(GlobalConfigDir(), "config.yaml")); err == nil {
		_ = yaml.Unmarshal(data, cfg) // Ignore unmarshal errors, use defaults
	}
	if cfg.SnapshotLimit <= 0 {
		cfg.SnapshotLimit = snapshot.DefaultLimit
	}

	if limitStr := os.Getenv("TPC_SNAPSHOT_LIMIT"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			cfg.SnapshotLimit = limit
		}
	}

	return cfg, nil
}

// GlobalConfigDir returns the path to ~/.tpc.
func GlobalConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", snapshot.ControlDir)
	}
	return filepath.Join(homeDir, snapshot.ControlDir)
}

// LogDir returns the debug log directory under the global config dir.
func LogDir() string {
	return filepath.Join(GlobalConfigDir(), "logs")
}
