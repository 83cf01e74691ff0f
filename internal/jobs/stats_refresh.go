package jobs

import (
	"context"
	"time"

	"procurement/internal/models"
)

// StatsRefreshJobName is the scheduler name of the statistics refresh
const StatsRefreshJobName = "stats_refresh"

// StatsRefresher recomputes collection statistics
type StatsRefresher interface {
	Refresh(ctx context.Context) (*models.CollectionStats, error)
}

// StatsRefreshJob keeps the cached collection statistics warm
type StatsRefreshJob struct {
	stats    StatsRefresher
	interval time.Duration
}

func NewStatsRefreshJob(stats StatsRefresher, interval time.Duration) *StatsRefreshJob {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &StatsRefreshJob{stats: stats, interval: interval}
}

func (j *StatsRefreshJob) Run(ctx context.Context) error {
	_, err := j.stats.Refresh(ctx)
	return err
}

func (j *StatsRefreshJob) Interval() time.Duration {
	return j.interval
}
