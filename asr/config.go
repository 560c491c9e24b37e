package asr

import "fmt"

// ModelConfig describes the model to load. Immutable after startup.
type ModelConfig struct {
	// Size is the model identifier, e.g. "base", "small", "medium".
	Size string `json:"size" yaml:"size" mapstructure:"size"`
	// ModelPath is the filesystem path to the model weights.
	ModelPath string `json:"model_path" yaml:"model_path" mapstructure:"model_path"`
	// Device selects the compute device, e.g. "cpu" or "gpu".
	Device string `json:"device" yaml:"device" mapstructure:"device"`
	// ComputeType selects the inference precision, e.g. "int8", "float16".
	ComputeType string `json:"compute_type" yaml:"compute_type" mapstructure:"compute_type"`
	// Preload loads the model at startup rather than on first use.
	Preload bool `json:"preload" yaml:"preload" mapstructure:"preload"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *ModelConfig) ApplyDefaults() {
	if c.Size == "" {
		c.Size = "base"
	}
	if c.Device == "" {
		c.Device = "cpu"
	}
	if c.ComputeType == "" {
		c.ComputeType = "int8"
	}
}

// Validate checks the configuration for consistency.
func (c *ModelConfig) Validate() error {
	if c.Size == "" {
		return fmt.Errorf("model size is required")
	}
	if c.ModelPath == "" {
		return fmt.Errorf("model path is required")
	}
	return nil
}
