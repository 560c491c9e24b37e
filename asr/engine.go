package asr

import (
	"context"
	"errors"
)

// ErrOutOfMemory is returned (or wrapped) by engines when a load or inference
// fails due to memory exhaustion. The manager maps it to a distinct
// resource-exhausted failure so callers can back off instead of retrying
// immediately.
var ErrOutOfMemory = errors.New("asr: out of memory")

// Segment is one decoded span of audio.
type Segment struct {
	// Start and End are offsets into the audio in seconds.
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	// Text is the decoded text for this span.
	Text string `json:"text"`
	// AvgLogProb is the mean token log-probability, when the backend
	// reports one. Nil when unavailable.
	AvgLogProb *float64 `json:"avg_logprob,omitempty"`
}

// Result is the raw output of one inference run.
type Result struct {
	// Text is the full decoded transcript, untrimmed.
	Text string `json:"text"`
	// Language is the detected (or forced) language code.
	Language string `json:"language"`
	// Duration is the audio duration in seconds, if the backend reports it.
	Duration float64 `json:"duration"`
	// Segments are the per-span results, in order.
	Segments []Segment `json:"segments"`
}

// Model is a loaded inference resource.
type Model interface {
	// Transcribe runs inference on the audio file at path. A non-empty
	// language forces decoding in that language; empty means auto-detect.
	// Implementations should honor ctx cancellation between decode steps
	// where the backend allows it.
	Transcribe(ctx context.Context, path, language string) (*Result, error)

	// Close releases the model's resources.
	Close() error
}

// Engine constructs Models. Exactly one Model is expected per process;
// Manager enforces that.
type Engine interface {
	// Load initializes the model described by cfg. This is the expensive
	// call the manager serializes.
	Load(ctx context.Context, cfg ModelConfig) (Model, error)
}

// EngineFunc adapts a load function to the Engine interface.
type EngineFunc func(ctx context.Context, cfg ModelConfig) (Model, error)

// Load calls f.
func (f EngineFunc) Load(ctx context.Context, cfg ModelConfig) (Model, error) {
	return f(ctx, cfg)
}
