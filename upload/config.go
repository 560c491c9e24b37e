package upload

import (
	"fmt"

	"github.com/skillsenselab/dialtone/util"
)

// Config controls upload intake and storage.
type Config struct {
	// Dir is the root directory for stored uploads.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
	// MaxSize is the maximum accepted file size, e.g. "100MB".
	MaxSize string `json:"max_size" yaml:"max_size" mapstructure:"max_size"`
	// AllowedTypes are the accepted MIME type prefixes. An empty list
	// accepts the built-in audio defaults.
	AllowedTypes []string `json:"allowed_types" yaml:"allowed_types" mapstructure:"allowed_types"`
	// MaxAgeHours is how long a stored upload may linger before the stale
	// sweeper removes it. Zero disables sweeping.
	MaxAgeHours int `json:"max_age_hours" yaml:"max_age_hours" mapstructure:"max_age_hours"`
}

// defaultAllowedTypes covers the containers phone voice recorders produce.
var defaultAllowedTypes = []string{
	"audio/",
	"video/mp4",  // iOS voice memos are often served as video/mp4
	"video/webm", // browser MediaRecorder
	"application/octet-stream",
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Dir == "" {
		c.Dir = "data/uploads"
	}
	if c.MaxSize == "" {
		c.MaxSize = "100MB"
	}
	if len(c.AllowedTypes) == 0 {
		c.AllowedTypes = defaultAllowedTypes
	}
	if c.MaxAgeHours == 0 {
		c.MaxAgeHours = 24
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("upload dir is required")
	}
	if c.MaxSizeBytes() <= 0 {
		return fmt.Errorf("invalid max_size %q", c.MaxSize)
	}
	return nil
}

// MaxSizeBytes parses MaxSize. Falls back to 100 MB on unparsable input.
func (c *Config) MaxSizeBytes() int64 {
	return util.ParseSize(c.MaxSize, 100*1024*1024)
}
