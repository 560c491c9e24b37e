package asr

import (
	"context"

	"github.com/skillsenselab/dialtone/component"
)

const componentName = "whisper-model"

// Ensure *ModelComponent satisfies component.Component at compile time.
var _ component.Component = (*ModelComponent)(nil)

// ModelComponent wraps Manager to implement component.Component. When the
// model is configured for preloading, Start performs the load; otherwise the
// first transcription request triggers it.
type ModelComponent struct {
	manager *Manager
	preload bool
}

// NewComponent returns a component.Component backed by the given Manager.
func NewComponent(m *Manager, preload bool) *ModelComponent {
	return &ModelComponent{manager: m, preload: preload}
}

// Name returns the component name used for registration.
func (mc *ModelComponent) Name() string { return componentName }

// Start loads the model if preloading is enabled.
func (mc *ModelComponent) Start(ctx context.Context) error {
	if !mc.preload {
		return nil
	}
	return mc.manager.EnsureLoaded(ctx)
}

// Stop releases the model.
func (mc *ModelComponent) Stop(ctx context.Context) error {
	return mc.manager.Close()
}

// Health reports the model state. An unloaded lazy model is degraded, not
// unhealthy: the service still accepts requests and loads on demand.
func (mc *ModelComponent) Health(ctx context.Context) component.Health {
	info := mc.manager.Info()
	h := component.Health{
		Name: componentName,
		Details: map[string]interface{}{
			"state":        string(info.State),
			"size":         info.Size,
			"device":       info.Device,
			"compute_type": info.ComputeType,
		},
	}
	switch info.State {
	case StateReady:
		h.Status = component.StatusHealthy
	case StateFailed:
		h.Status = component.StatusUnhealthy
		h.Message = info.LastError
	default:
		h.Status = component.StatusDegraded
		h.Message = "model not loaded"
	}
	return h
}
