package audio

import (
	"context"

	"github.com/skillsenselab/dialtone/process"
)

// Canonical target format for speech inference input.
const (
	TargetSampleRate = 16000
	TargetChannels   = 1
	TargetFormat     = "wav"
)

// Info holds probed metadata for an audio asset. Fields are derived once at
// probe time and treated as read-only afterwards.
type Info struct {
	// Duration is the audio duration in seconds.
	Duration float64 `json:"duration"`
	// Size is the file size in bytes.
	Size int64 `json:"size"`
	// Format is the container format name reported by the probe.
	Format string `json:"format"`
	// Codec is the audio codec name.
	Codec string `json:"codec"`
	// SampleRate is the sample rate in Hz.
	SampleRate int `json:"sample_rate"`
	// Channels is the channel count.
	Channels int `json:"channels"`
	// BitRate is the stream bit rate in bits per second, if reported.
	BitRate int64 `json:"bit_rate,omitempty"`
}

// Decision states whether an asset requires conversion and the fixed target
// parameters a conversion would apply.
type Decision struct {
	// ConversionRequired is true unless the asset is already in the canonical
	// container at the exact target sample rate and channel count.
	ConversionRequired bool
	// TargetSampleRate is the sample rate a conversion produces.
	TargetSampleRate int
	// TargetChannels is the channel count a conversion produces.
	TargetChannels int
	// TargetFormat is the container format a conversion produces.
	TargetFormat string
	// Info holds the probed metadata, or nil when probing failed.
	Info *Info
}

// Runner executes an external tool. It exists so tests can substitute
// canned tool output for real ffmpeg/ffprobe invocations.
type Runner interface {
	Run(ctx context.Context, cmd process.Command) (*process.Result, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, cmd process.Command) (*process.Result, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, cmd process.Command) (*process.Result, error) {
	return f(ctx, cmd)
}

// DefaultRunner returns a Runner backed by process.Run.
func DefaultRunner() Runner {
	return RunnerFunc(process.Run)
}
