package jobs

import (
	"context"
	"log/slog"
	"time"

	"jobsift/internal/config"
	"jobsift/internal/metrics"
	"jobsift/internal/store"
)

// RetentionStats captures the number of rows deleted by one TTL sweep.
type RetentionStats struct {
	RejectedDeleted int64 `json:"rejectedDeleted"`
	RunsDeleted     int64 `json:"runsDeleted"`
}

// CleanupExpiredData deletes old rejected jobs and old run summaries
// based on retention settings so that the database does not grow
// without bound. Accepted jobs are kept indefinitely.
func CleanupExpiredData(ctx context.Context, cfg *config.Config, st *store.Store) RetentionStats {
	now := time.Now().UTC()
	var stats RetentionStats

	if days := cfg.Retention.RejectedDays; days > 0 {
		cutoff := now.AddDate(0, 0, -days)
		if n, err := st.DeleteExpiredRejected(ctx, cutoff); err == nil && n > 0 {
			stats.RejectedDeleted = n
			metrics.RecordRetention("rejected_jobs", n)
		}
	}

	if days := cfg.Retention.RunsDays; days > 0 {
		cutoff := now.AddDate(0, 0, -days)
		if n, err := st.DeleteExpiredRuns(ctx, cutoff); err == nil && n > 0 {
			stats.RunsDeleted = n
			metrics.RecordRetention("crawl_runs", n)
		}
	}

	return stats
}

// Sweeper runs TTL cleanup on a fixed interval. Callers typically run
// Start in its own goroutine and cancel the context to stop it.
type Sweeper struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
}

func NewSweeper(cfg *config.Config, st *store.Store, logger *slog.Logger) *Sweeper {
	return &Sweeper{cfg: cfg, store: st, logger: logger}
}

func (s *Sweeper) Start(ctx context.Context) {
	if !s.cfg.Retention.Enabled {
		return
	}

	ticker := time.NewTicker(s.cfg.Retention.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		stats := CleanupExpiredData(ctx, s.cfg, s.store)
		if stats.RejectedDeleted > 0 || stats.RunsDeleted > 0 {
			s.logger.Info("retention sweep",
				"rejected_deleted", stats.RejectedDeleted,
				"runs_deleted", stats.RunsDeleted,
			)
		}
	}
}
