package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pastesync/sync-server-go/internal/repository"
)

// CleanupJob periodically reclaims dead sessions: past expiry, or abandoned
// by every device for longer than the abandonment threshold. It also marks
// devices inactive once their heartbeats go stale. Every sweep is
// idempotent; running it twice over the same data is a no-op the second
// time.
type CleanupJob struct {
	sessionRepo        repository.SessionRepository
	deviceRepo         repository.DeviceRepository
	interval           time.Duration
	abandonedThreshold time.Duration
	staleness          time.Duration
	done               chan struct{}
}

func NewCleanupJob(
	sessionRepo repository.SessionRepository,
	deviceRepo repository.DeviceRepository,
	interval time.Duration,
	abandonedThreshold time.Duration,
	staleness time.Duration,
) *CleanupJob {
	return &CleanupJob{
		sessionRepo:        sessionRepo,
		deviceRepo:         deviceRepo,
		interval:           interval,
		abandonedThreshold: abandonedThreshold,
		staleness:          staleness,
		done:               make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.Sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Sweep runs one full cleanup pass. Exported so an operator endpoint can
// trigger it out of cycle.
func (j *CleanupJob) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.runCleanup(ctx, "expired sessions", j.sessionRepo.DeleteExpired)
	j.runCleanup(ctx, "abandoned sessions", func(ctx context.Context) (int64, error) {
		return j.sessionRepo.DeleteAbandoned(ctx, j.abandonedThreshold)
	})
	j.runCleanup(ctx, "stale devices", func(ctx context.Context) (int64, error) {
		return j.deviceRepo.DeactivateStale(ctx, j.staleness)
	})
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
