package transcribe

import "fmt"

// Config controls pipeline concurrency and deadlines. Immutable after
// startup.
type Config struct {
	// MaxConcurrent bounds how many inference operations run at once.
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent" mapstructure:"max_concurrent"`
	// TimeoutSeconds is the per-job inference deadline.
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 2
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 300
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", c.MaxConcurrent)
	}
	if c.TimeoutSeconds < 1 {
		return fmt.Errorf("timeout_seconds must be at least 1, got %d", c.TimeoutSeconds)
	}
	return nil
}
