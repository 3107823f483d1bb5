package app

import (
	"errors"
	"fmt"
)

// Config holds everything an App instance needs to start.
type Config struct {
	// WorkspacePath points at the workspace.hcl file.
	WorkspacePath string

	LogFormat string // "text" or "json"
	LogLevel  string // "debug", "info", "warn", "error"
}

// NewConfig validates a Config. Zero log settings default to text/info.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.WorkspacePath == "" {
		return nil, errors.New("WorkspacePath is a required configuration field and cannot be empty")
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid log format '%s': must be 'text' or 'json'", cfg.LogFormat)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if _, ok := logLevels[cfg.LogLevel]; !ok {
		return nil, fmt.Errorf("invalid log level '%s': must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	return &cfg, nil
}
