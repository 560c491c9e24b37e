package transcribe

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/skillsenselab/dialtone/asr"
	"github.com/skillsenselab/dialtone/audio"
	apperrors "github.com/skillsenselab/dialtone/errors"
	"github.com/skillsenselab/dialtone/logger"
)

// AssetResolver locates the stored audio file for an upload id. The upload
// package provides the production implementation.
type AssetResolver interface {
	// Resolve returns the asset path for uploadID, or an UploadNotFound /
	// AudioFileNotFound error.
	Resolve(uploadID string) (string, error)
}

// AudioConverter probes and normalizes audio assets. Satisfied by
// *audio.Converter.
type AudioConverter interface {
	Probe(ctx context.Context, path string) (*audio.Info, error)
	Decide(info *audio.Info) audio.Decision
	Convert(ctx context.Context, path string) (string, error)
}

// ModelManager gates access to the speech model. Satisfied by *asr.Manager.
type ModelManager interface {
	EnsureLoaded(ctx context.Context) error
	Transcribe(ctx context.Context, path, language string) (*asr.Result, error)
	Info() asr.Info
}

// Pipeline runs transcription jobs with a fixed concurrency bound and
// per-job deadline. Safe for concurrent use.
type Pipeline struct {
	cfg       Config
	resolver  AssetResolver
	converter AudioConverter
	model     ModelManager
	log       *logger.Logger

	// slots is a counting semaphore with capacity cfg.MaxConcurrent.
	// Acquisition blocks cooperatively; waiters are unbounded, with bursts
	// expected to be throttled upstream of this package.
	slots chan struct{}

	mu   sync.Mutex
	jobs map[string]*job
}

// NewPipeline builds a Pipeline. cfg must already be validated.
func NewPipeline(cfg Config, resolver AssetResolver, converter AudioConverter, model ModelManager, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewDefault("transcribe")
	}
	return &Pipeline{
		cfg:       cfg,
		resolver:  resolver,
		converter: converter,
		model:     model,
		log:       log.WithComponent("transcribe.pipeline"),
		slots:     make(chan struct{}, cfg.MaxConcurrent),
		jobs:      make(map[string]*job),
	}
}

// TranscribeUpload runs the full pipeline for the given upload and returns
// the outcome or a typed failure. The upload id doubles as the job id for
// status and cancellation. Converted intermediate files are removed and the
// job leaves the registry on every exit path.
func (p *Pipeline) TranscribeUpload(ctx context.Context, uploadID, language string) (*Outcome, error) {
	start := time.Now()
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	j := &job{
		id:        uploadID,
		language:  language,
		startedAt: start,
		status:    StatusQueued,
		cancel:    cancel,
	}

	p.mu.Lock()
	if _, exists := p.jobs[uploadID]; exists {
		p.mu.Unlock()
		return nil, apperrors.InvalidInput("upload_id", "a transcription for this upload is already in flight")
	}
	p.jobs[uploadID] = j
	p.mu.Unlock()

	log := p.log.WithFields(map[string]interface{}{
		logger.FieldUploadID: uploadID,
	})
	log.Info("transcription queued", map[string]interface{}{
		"language": language,
	})

	outcome, err := p.run(jobCtx, j, log)

	p.mu.Lock()
	switch {
	case outcome != nil:
		j.status = StatusCompleted
	case j.status == StatusQueued || j.status == StatusRunning:
		// run() sets timed-out/cancelled itself; anything else is a failure.
		j.status = StatusFailed
	}
	delete(p.jobs, uploadID)
	p.mu.Unlock()

	if err != nil {
		log.Error("transcription failed", map[string]interface{}{
			logger.FieldStatus: string(j.status),
			logger.FieldError:  err.Error(),
		})
		return nil, err
	}
	log.Info("transcription completed", map[string]interface{}{
		"duration":        outcome.Duration,
		"confidence":      outcome.Confidence,
		"processing_time": outcome.ProcessingTime,
	})
	return outcome, nil
}

// run executes one job. The caller owns registry bookkeeping; run owns the
// converted-file lifecycle and the concurrency slot.
func (p *Pipeline) run(ctx context.Context, j *job, log *logger.Logger) (*Outcome, error) {
	path, err := p.resolver.Resolve(j.id)
	if err != nil {
		return nil, err
	}

	// Probe failures are fail-safe: conversion is assumed necessary.
	info, probeErr := p.converter.Probe(ctx, path)
	if probeErr != nil {
		log.Warn("audio probe failed, assuming conversion needed", map[string]interface{}{
			logger.FieldError: probeErr.Error(),
		})
	}

	audioPath := path
	var convertedPath string
	if p.converter.Decide(info).ConversionRequired {
		convertedPath, err = p.converter.Convert(ctx, path)
		if err != nil {
			return nil, err
		}
		audioPath = convertedPath
	}
	defer p.removeConverted(convertedPath, log)

	// Concurrency slot. Waiting is cooperative and unbounded.
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, p.interrupted(j)
	}
	defer func() { <-p.slots }()

	p.mu.Lock()
	j.status = StatusRunning
	p.mu.Unlock()

	if err := p.model.EnsureLoaded(ctx); err != nil {
		if ctx.Err() != nil && !apperrors.IsAppError(err) {
			return nil, p.interrupted(j)
		}
		return nil, err
	}

	result, err := p.infer(ctx, j, audioPath)
	if err != nil {
		return nil, err
	}

	duration := result.Duration
	if info != nil && info.Duration > 0 {
		duration = info.Duration
	}
	lang := result.Language
	if lang == "" {
		lang = j.language
	}
	return &Outcome{
		Text:           strings.TrimSpace(result.Text),
		Language:       lang,
		Confidence:     Confidence(result.Segments, result.Text),
		Duration:       duration,
		ProcessingTime: round2(time.Since(j.startedAt).Seconds()),
	}, nil
}

// infer races the model call against the configured deadline. On expiry the
// underlying task is cancelled cooperatively and a timeout failure is
// returned; a cancel() request surfaces as Cancelled instead.
func (p *Pipeline) infer(ctx context.Context, j *job, path string) (*asr.Result, error) {
	timeout := time.Duration(p.cfg.TimeoutSeconds) * time.Second
	inferCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type inferResult struct {
		res *asr.Result
		err error
	}
	done := make(chan inferResult, 1)
	go func() {
		res, err := p.model.Transcribe(inferCtx, path, j.language)
		done <- inferResult{res, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if inferCtx.Err() != nil && !apperrors.IsAppError(r.err) {
				return nil, p.deadlineOrCancel(ctx, j)
			}
			if apperrors.IsAppError(r.err) {
				return nil, r.err
			}
			return nil, apperrors.TranscriptionError(r.err)
		}
		return r.res, nil
	case <-inferCtx.Done():
		// cancel() above signals the inference goroutine; it is best-effort
		// and the goroutine drains into the buffered channel when it ends.
		return nil, p.deadlineOrCancel(ctx, j)
	}
}

// deadlineOrCancel distinguishes a deadline expiry from an explicit or
// caller-driven cancellation.
func (p *Pipeline) deadlineOrCancel(ctx context.Context, j *job) error {
	if ctx.Err() == nil {
		// The outer context is intact, so the per-job deadline fired.
		p.mu.Lock()
		j.status = StatusTimedOut
		p.mu.Unlock()
		return apperrors.TranscriptionTimeout(p.cfg.TimeoutSeconds)
	}
	return p.interrupted(j)
}

// interrupted marks the job cancelled and returns the matching failure.
func (p *Pipeline) interrupted(j *job) error {
	p.mu.Lock()
	j.status = StatusCancelled
	p.mu.Unlock()
	return apperrors.Cancelled(j.id)
}

// removeConverted deletes the intermediate converted file, if one was made.
// Failures are logged but never replace the job's primary outcome.
func (p *Pipeline) removeConverted(path string, log *logger.Logger) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("failed to remove converted file", map[string]interface{}{
			"path":            path,
			logger.FieldError: err.Error(),
		})
	}
}

// GetStatus reports the state of an in-flight job. Jobs are only tracked
// while in flight, so finished or unknown ids yield NotFound.
func (p *Pipeline) GetStatus(jobID string) (*StatusInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	j, ok := p.jobs[jobID]
	if !ok {
		return nil, apperrors.NotFound("transcription", jobID)
	}
	return &StatusInfo{
		JobID:  j.id,
		Status: j.status,
		IsDone: j.status.IsTerminal(),
	}, nil
}

// Cancel requests cooperative cancellation of an in-flight job and reports
// whether the request was accepted. Cancellation is best-effort: a job past
// its last suspension point may still complete.
func (p *Pipeline) Cancel(jobID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	j, ok := p.jobs[jobID]
	if !ok || j.status.IsTerminal() {
		return false
	}
	j.cancelled = true
	j.cancel()
	p.log.Info("cancellation requested", map[string]interface{}{
		logger.FieldUploadID: jobID,
	})
	return true
}

// ServiceStatus returns pipeline capacity and model state for health
// reporting.
func (p *Pipeline) ServiceStatus() ServiceStatus {
	p.mu.Lock()
	active := make([]string, 0, len(p.jobs))
	for id := range p.jobs {
		active = append(active, id)
	}
	p.mu.Unlock()
	return ServiceStatus{
		MaxConcurrent:  p.cfg.MaxConcurrent,
		TimeoutSeconds: p.cfg.TimeoutSeconds,
		ActiveCount:    len(active),
		ActiveJobs:     active,
		Model:          p.model.Info(),
	}
}
