package upload

import (
	"context"
	"time"
)

// Sweep runs CleanupStale on the given interval until ctx is cancelled.
// Intended to be started as a goroutine at boot.
func (s *Service) Sweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.cfg.MaxAgeHours <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.CleanupStale(); err != nil {
				s.log.Warn("stale upload sweep failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
}
