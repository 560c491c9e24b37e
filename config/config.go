package config

import (
	"fmt"

	"github.com/skillsenselab/dialtone/asr"
	"github.com/skillsenselab/dialtone/server"
	"github.com/skillsenselab/dialtone/transcribe"
	"github.com/skillsenselab/dialtone/upload"
)

// Config is the full service configuration.
type Config struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server     server.Config     `yaml:"server" mapstructure:"server"`
	Upload     upload.Config     `yaml:"upload" mapstructure:"upload"`
	Whisper    asr.ModelConfig   `yaml:"whisper" mapstructure:"whisper"`
	Transcribe transcribe.Config `yaml:"transcribe" mapstructure:"transcribe"`
}

// Load reads configuration for the named service from its config.yml, .env
// file, and environment, then applies defaults.
func Load(serviceName string, opts ...LoaderOption) (*Config, error) {
	cfg := &Config{}
	if err := LoadConfig(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = serviceName
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields in every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Upload.ApplyDefaults()
	c.Whisper.ApplyDefaults()
	c.Transcribe.ApplyDefaults()
}

// Validate checks every section for consistency.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("config.server: %w", err)
	}
	if err := c.Upload.Validate(); err != nil {
		return fmt.Errorf("config.upload: %w", err)
	}
	if err := c.Whisper.Validate(); err != nil {
		return fmt.Errorf("config.whisper: %w", err)
	}
	if err := c.Transcribe.Validate(); err != nil {
		return fmt.Errorf("config.transcribe: %w", err)
	}
	return nil
}
