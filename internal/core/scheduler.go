package core

// scheduler.go runs background maintenance for the Service.
//
// The preview janitor drops previews that were never confirmed once their
// TTL passes, so abandoned uploads do not hold memory. It is long-running
// and context-aware; it stops when the context is cancelled.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultJanitorInterval is how often expired previews are purged.
const DefaultJanitorInterval = time.Minute

// StartPreviewJanitor purges expired previews every interval until ctx is
// cancelled. Call it in its own goroutine.
func (s *Service) StartPreviewJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	slog.Info("preview janitor started", "interval", interval.String(), "preview_ttl", s.cfg.PreviewTTL.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("preview janitor stopped")
			return
		case <-ticker.C:
			s.runJanitor()
		}
	}
}

// runJanitor performs one purge cycle.
func (s *Service) runJanitor() {
	start := time.Now()
	purged := s.PurgeExpiredPreviews()
	if purged == 0 {
		return
	}
	slog.Info("purged expired previews",
		"previews_purged", purged,
		"previews_pending", s.PendingPreviews(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
