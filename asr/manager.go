package asr

import (
	"context"
	"errors"
	"sync"

	apperrors "github.com/skillsenselab/dialtone/errors"
	"github.com/skillsenselab/dialtone/logger"
)

// State is the model lifecycle state.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateFailed   State = "failed"
)

// Info is a read-only snapshot of the manager for health reporting.
type Info struct {
	State       State  `json:"state"`
	Loaded      bool   `json:"loaded"`
	LastError   string `json:"last_error,omitempty"`
	Size        string `json:"size"`
	Device      string `json:"device"`
	ComputeType string `json:"compute_type"`
}

// Manager owns the single inference model for the process. Loads are
// serialized: under concurrent demand exactly one caller performs the load
// and the rest wait on a condition variable until it settles. A failed load
// moves the manager to StateFailed, from which a later EnsureLoaded call may
// retry.
type Manager struct {
	engine Engine
	cfg    ModelConfig
	log    *logger.Logger

	mu        sync.Mutex
	cond      *sync.Cond
	state     State
	model     Model
	lastError string
}

// NewManager builds a Manager around engine. The model is not loaded until
// EnsureLoaded is called.
func NewManager(engine Engine, cfg ModelConfig, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault("asr")
	}
	m := &Manager{
		engine: engine,
		cfg:    cfg,
		log:    log.WithComponent("asr.manager"),
		state:  StateUnloaded,
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// EnsureLoaded makes sure the model is ready, loading it if necessary.
// Idempotent: returns immediately when already ready. When a load is in
// progress the caller waits for it to settle instead of loading again. After
// a failed load, the next call that finds StateFailed retries the load;
// callers that merely waited out someone else's failed load get that load's
// error without retrying themselves.
func (m *Manager) EnsureLoaded(ctx context.Context) error {
	m.mu.Lock()

	waited := false
	for m.state == StateLoading {
		if err := ctx.Err(); err != nil {
			m.mu.Unlock()
			return err
		}
		waited = true
		m.waitLocked(ctx)
	}

	switch m.state {
	case StateReady:
		m.mu.Unlock()
		return nil
	case StateFailed:
		if waited {
			err := errors.New(m.lastError)
			m.mu.Unlock()
			return apperrors.ModelLoadError(err)
		}
	}

	// This caller performs the load.
	m.state = StateLoading
	m.lastError = ""
	m.mu.Unlock()

	m.log.Info("loading speech model", map[string]interface{}{
		"size":         m.cfg.Size,
		"device":       m.cfg.Device,
		"compute_type": m.cfg.ComputeType,
	})

	model, err := m.engine.Load(ctx, m.cfg)

	m.mu.Lock()
	defer func() {
		m.cond.Broadcast()
		m.mu.Unlock()
	}()

	if err != nil {
		m.state = StateFailed
		m.lastError = err.Error()
		m.log.Error("speech model load failed", map[string]interface{}{
			"error": err.Error(),
		})
		if errors.Is(err, ErrOutOfMemory) {
			return apperrors.ResourceExhausted("memory", err)
		}
		return apperrors.ModelLoadError(err)
	}

	m.model = model
	m.state = StateReady
	m.log.Info("speech model ready", map[string]interface{}{
		"size": m.cfg.Size,
	})
	return nil
}

// waitLocked blocks on the condition variable until the load settles or ctx
// expires. The mutex must be held; it is held again on return.
func (m *Manager) waitLocked(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.cond.Broadcast()
			m.mu.Unlock()
		case <-done:
		}
	}()
	m.cond.Wait()
	close(done)
}

// Transcribe runs inference on the audio file at path. The model must be
// ready; callers are expected to have gone through EnsureLoaded first.
func (m *Manager) Transcribe(ctx context.Context, path, language string) (*Result, error) {
	m.mu.Lock()
	if m.state != StateReady {
		loading := m.state == StateLoading
		lastErr := m.lastError
		m.mu.Unlock()
		return nil, apperrors.ModelNotLoaded(loading, lastErr)
	}
	model := m.model
	m.mu.Unlock()

	// Inference runs outside the lock: the model is read-only once loaded
	// and concurrency is bounded upstream.
	res, err := model.Transcribe(ctx, path, language)
	if err != nil {
		if errors.Is(err, ErrOutOfMemory) {
			return nil, apperrors.ResourceExhausted("memory", err)
		}
		return nil, err
	}
	return res, nil
}

// Info returns a snapshot of the manager state for health reporting.
func (m *Manager) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Info{
		State:       m.state,
		Loaded:      m.state == StateReady,
		LastError:   m.lastError,
		Size:        m.cfg.Size,
		Device:      m.cfg.Device,
		ComputeType: m.cfg.ComputeType,
	}
}

// Close releases the model if loaded. The manager returns to StateUnloaded
// and may be loaded again afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.model == nil {
		return nil
	}
	err := m.model.Close()
	m.model = nil
	m.state = StateUnloaded
	return err
}
