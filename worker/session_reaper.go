package worker

import (
	"context"
	"log"
	"time"

	"leadnest/pipeline"
)

// SessionReaper drops finished upload sessions after a grace period so
// the registry does not grow without bound.
type SessionReaper struct {
	Registry *pipeline.Registry
	TTL      time.Duration
	Logger   *log.Logger
}

func NewSessionReaper(registry *pipeline.Registry, ttl time.Duration, logger *log.Logger) *SessionReaper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SessionReaper{
		Registry: registry,
		TTL:      ttl,
		Logger:   logger,
	}
}

func (sr *SessionReaper) Start(ctx context.Context) {
	sr.Logger.Println("Session reaper started")

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sr.Logger.Println("Session reaper shutting down...")
			return
		case <-ticker.C:
			if removed := sr.Registry.Sweep(sr.TTL); removed > 0 {
				sr.Logger.Printf("Swept %d expired upload sessions, %d live", removed, sr.Registry.Len())
			}
		}
	}
}
