package core

import (
	"context"
	"log/slog"
	"time"
)

// RunJanitor evicts finished and unreadable files older than retention every
// interval until ctx is cancelled. It runs once immediately.
func (s *Service) RunJanitor(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 || retention <= 0 {
		return
	}
	slog.Info("queue janitor started", "interval", interval, "retention", retention)

	s.sweep(retention)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("queue janitor stopped")
			return
		case <-ticker.C:
			s.sweep(retention)
		}
	}
}

func (s *Service) sweep(retention time.Duration) {
	if n := s.queue.Evict(time.Now().Add(-retention)); n > 0 {
		slog.Info("evicted finished files", "count", n, "remaining", s.queue.Len())
	}
}
