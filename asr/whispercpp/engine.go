// Package whispercpp implements asr.Engine on top of the whisper.cpp Go
// bindings. The underlying ggml state is not safe for concurrent Process
// calls, so inference is serialized with an internal mutex; concurrency
// limits above this package control how many jobs wait here.
package whispercpp

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/skillsenselab/dialtone/asr"
)

// Engine loads whisper.cpp models from ggml weights files.
type Engine struct{}

// New returns a whisper.cpp backed engine.
func New() *Engine { return &Engine{} }

// Load initializes the model from cfg.ModelPath. This reads the full weights
// file into memory and is the expensive call asr.Manager serializes.
func (e *Engine) Load(_ context.Context, cfg asr.ModelConfig) (asr.Model, error) {
	model, err := whisper.New(cfg.ModelPath)
	if err != nil {
		return nil, mapErr(fmt.Errorf("load model %s: %w", cfg.ModelPath, err))
	}
	return &loadedModel{model: model}, nil
}

type loadedModel struct {
	model whisper.Model

	// mu serializes Process calls; concurrent inference on the same ggml
	// state segfaults.
	mu sync.Mutex
}

// Transcribe decodes the canonical 16 kHz mono WAV at path and runs
// inference. Cancellation is cooperative: the context is checked before each
// encoder pass, so a run already inside the final pass still completes.
func (m *loadedModel) Transcribe(ctx context.Context, path, language string) (*asr.Result, error) {
	samples, err := DecodeWAVFile(path)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wctx, err := m.model.NewContext()
	if err != nil {
		return nil, mapErr(fmt.Errorf("new context: %w", err))
	}
	wctx.SetTranslate(false)
	lang := language
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("set language %q: %w", lang, err)
	}

	encoderBegin := func() bool {
		return ctx.Err() == nil
	}
	if err := wctx.Process(samples, encoderBegin, nil, nil); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, mapErr(fmt.Errorf("process: %w", err))
	}

	result := &asr.Result{
		Language: wctx.DetectedLanguage(),
		Duration: float64(len(samples)) / float64(whisper.SampleRate),
	}

	var text strings.Builder
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, mapErr(fmt.Errorf("next segment: %w", err))
		}
		text.WriteString(seg.Text)
		out := asr.Segment{
			Start: seg.Start.Seconds(),
			End:   seg.End.Seconds(),
			Text:  seg.Text,
		}
		if lp, ok := avgLogProb(seg.Tokens); ok {
			out.AvgLogProb = &lp
		}
		result.Segments = append(result.Segments, out)
	}
	result.Text = text.String()
	return result, nil
}

// Close releases the model weights.
func (m *loadedModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model.Close()
}

// avgLogProb is the mean natural log of the token probabilities. The second
// return is false when there are no usable tokens.
func avgLogProb(tokens []whisper.Token) (float64, bool) {
	var sum float64
	var n int
	for _, tok := range tokens {
		if tok.P <= 0 {
			continue
		}
		sum += math.Log(float64(tok.P))
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// mapErr rewraps memory exhaustion failures so the manager can surface them
// as a distinct resource error.
func mapErr(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "out of memory") ||
		strings.Contains(msg, "failed to allocate") ||
		strings.Contains(msg, "cannot allocate") {
		return fmt.Errorf("%s: %w", err.Error(), asr.ErrOutOfMemory)
	}
	return err
}
