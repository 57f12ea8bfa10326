package jobs

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Sweeper is the only path that removes job records. On a fixed interval it
// prunes terminal jobs older than the retention window together with their
// durable result artifacts.
type Sweeper struct {
	store     Store
	retention time.Duration
	scheduler gocron.Scheduler
}

func NewSweeper(store Store, retention, interval time.Duration) (*Sweeper, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %s", retention)
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}
	s := &Sweeper{store: store, retention: retention, scheduler: scheduler}
	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.Sweep),
	)
	if err != nil {
		return nil, fmt.Errorf("registering sweep job: %w", err)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.scheduler.Start()
}

func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}

// Sweep runs one pruning pass and returns how many jobs were removed.
func (s *Sweeper) Sweep() int {
	cutoff := time.Now().UTC().Add(-s.retention)
	removed := 0
	for _, job := range s.store.List(Filter{Limit: -1}) {
		if !job.State.Terminal() || job.FinishedAt == nil || job.FinishedAt.After(cutoff) {
			continue
		}
		if job.ResultPath != "" {
			if err := os.RemoveAll(job.ResultPath); err != nil {
				slog.Warn("pruning result artifacts failed", "job_id", job.ID, "path", job.ResultPath, "error", err)
				continue
			}
		}
		if err := s.store.Delete(job.ID); err != nil {
			slog.Warn("pruning job record failed", "job_id", job.ID, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("retention sweep pruned jobs", "removed", removed, "cutoff", cutoff)
	}
	return removed
}
