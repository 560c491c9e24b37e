package upload

import (
	"context"
	"time"

	"github.com/skillsenselab/dialtone/component"
)

const sweeperName = "upload-sweeper"

// Ensure *SweeperComponent satisfies component.Component at compile time.
var _ component.Component = (*SweeperComponent)(nil)

// SweeperComponent runs the stale upload sweeper as a managed background
// task.
type SweeperComponent struct {
	service  *Service
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeperComponent returns a component that sweeps stale uploads on the
// given interval. A zero interval defaults to one hour.
func NewSweeperComponent(s *Service, interval time.Duration) *SweeperComponent {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SweeperComponent{service: s, interval: interval}
}

// Name returns the component name used for registration.
func (sc *SweeperComponent) Name() string { return sweeperName }

// Start launches the sweep loop in the background.
func (sc *SweeperComponent) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.Background())
	sc.cancel = cancel
	sc.done = make(chan struct{})
	go func() {
		defer close(sc.done)
		sc.service.Sweep(loopCtx, sc.interval)
	}()
	return nil
}

// Stop cancels the sweep loop and waits for it to exit.
func (sc *SweeperComponent) Stop(ctx context.Context) error {
	if sc.cancel == nil {
		return nil
	}
	sc.cancel()
	select {
	case <-sc.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health reports whether the sweep loop is running.
func (sc *SweeperComponent) Health(ctx context.Context) component.Health {
	h := component.Health{Name: sweeperName, Status: component.StatusHealthy}
	if sc.cancel == nil {
		h.Status = component.StatusDegraded
		h.Message = "sweeper not started"
	}
	return h
}
