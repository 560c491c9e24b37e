package audio

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/skillsenselab/dialtone/logger"
	"github.com/skillsenselab/dialtone/process"
)

// Converter probes audio assets and transcodes them into the canonical
// format. Zero values for the tool paths fall back to PATH lookup.
type Converter struct {
	runner  Runner
	ffprobe string
	ffmpeg  string
	log     *logger.Logger
}

// Option customizes a Converter.
type Option func(*Converter)

// WithRunner substitutes the subprocess runner. Used by tests.
func WithRunner(r Runner) Option {
	return func(c *Converter) { c.runner = r }
}

// WithTools overrides the ffprobe and ffmpeg binary paths.
func WithTools(ffprobe, ffmpeg string) Option {
	return func(c *Converter) {
		if ffprobe != "" {
			c.ffprobe = ffprobe
		}
		if ffmpeg != "" {
			c.ffmpeg = ffmpeg
		}
	}
}

// NewConverter builds a Converter with the given options.
func NewConverter(log *logger.Logger, opts ...Option) *Converter {
	c := &Converter{
		runner:  DefaultRunner(),
		ffprobe: "ffprobe",
		ffmpeg:  "ffmpeg",
		log:     log,
	}
	if c.log == nil {
		c.log = logger.NewDefault("audio")
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// errNoAudioStream is returned when the probed file has no audio stream.
var errNoAudioStream = errors.New("audio: no audio stream found")

// ffprobe emits numeric fields as JSON strings, so everything below is a
// string and parsed manually.
type probeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

// Probe inspects the file at path with ffprobe. It returns an error only
// when the tool fails or no audio stream is present; callers decide what a
// probe failure means (Decide treats it fail-safe).
func (c *Converter) Probe(ctx context.Context, path string) (*Info, error) {
	res, err := c.runner.Run(ctx, process.Command{
		Binary: c.ffprobe,
		Args: []string{
			"-v", "error",
			"-print_format", "json",
			"-show_format",
			"-show_streams",
			path,
		},
	})
	if err != nil {
		return nil, err
	}

	var out probeOutput
	if err := json.Unmarshal(res.Stdout, &out); err != nil {
		return nil, err
	}

	info := &Info{
		Format:   firstFormatName(out.Format.FormatName),
		Duration: parseFloat(out.Format.Duration),
		Size:     parseInt(out.Format.Size),
		BitRate:  parseInt(out.Format.BitRate),
	}
	if info.Size == 0 {
		if st, err := os.Stat(path); err == nil {
			info.Size = st.Size()
		}
	}

	found := false
	for _, s := range out.Streams {
		if s.CodecType != "audio" {
			continue
		}
		info.Codec = s.CodecName
		info.SampleRate = int(parseInt(s.SampleRate))
		info.Channels = s.Channels
		found = true
		break
	}
	if !found {
		return nil, errNoAudioStream
	}
	return info, nil
}

// Decide determines whether the asset needs conversion. A nil Info (probe
// failed) is fail-safe: conversion is assumed necessary.
func (c *Converter) Decide(info *Info) Decision {
	d := Decision{
		ConversionRequired: true,
		TargetSampleRate:   TargetSampleRate,
		TargetChannels:     TargetChannels,
		TargetFormat:       TargetFormat,
		Info:               info,
	}
	if info == nil {
		return d
	}
	if info.Format == TargetFormat &&
		info.SampleRate == TargetSampleRate &&
		info.Channels == TargetChannels {
		d.ConversionRequired = false
	}
	return d
}

// firstFormatName trims ffprobe's comma-separated demuxer aliases
// (e.g. "mov,mp4,m4a,3gp,3g2,mj2") down to the primary name.
func firstFormatName(name string) string {
	if i := strings.IndexByte(name, ','); i >= 0 {
		return name[:i]
	}
	return name
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseInt(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
