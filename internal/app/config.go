package app

import "errors"

// Config holds everything an App instance needs to run.
type Config struct {
	PipelinePath string // hcl pipeline definition

	LogFormat string
	LogLevel  string
	Watch     bool
	DryRun    bool
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
