package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/models"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (c *countingRefresher) Refresh(context.Context) (*models.CollectionStats, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return &models.CollectionStats{TotalDocuments: 3}, nil
}

func TestStatsRefreshJobDefaults(t *testing.T) {
	job := NewStatsRefreshJob(&countingRefresher{}, 0)
	assert.Equal(t, 15*time.Minute, job.Interval())
}

func TestRunNowRunsRegisteredJob(t *testing.T) {
	scheduler, err := NewJobScheduler()
	require.NoError(t, err)
	defer scheduler.Stop()

	refresher := &countingRefresher{}
	require.NoError(t, scheduler.Register(StatsRefreshJobName, NewStatsRefreshJob(refresher, time.Hour)))

	require.NoError(t, scheduler.RunNow(context.Background(), StatsRefreshJobName))
	assert.EqualValues(t, 1, refresher.calls.Load())

	assert.Error(t, scheduler.RunNow(context.Background(), "missing"))
}

func TestRunNowReportsJobError(t *testing.T) {
	scheduler, err := NewJobScheduler()
	require.NoError(t, err)
	defer scheduler.Stop()

	refresher := &countingRefresher{err: errors.New("mongo down")}
	require.NoError(t, scheduler.Register(StatsRefreshJobName, NewStatsRefreshJob(refresher, time.Hour)))

	assert.EqualError(t, scheduler.RunNow(context.Background(), StatsRefreshJobName), "mongo down")
}

func TestScheduledJobRuns(t *testing.T) {
	scheduler, err := NewJobScheduler()
	require.NoError(t, err)

	refresher := &countingRefresher{}
	require.NoError(t, scheduler.Register(StatsRefreshJobName, NewStatsRefreshJob(refresher, 50*time.Millisecond)))
	scheduler.Start()

	assert.Eventually(t, func() bool { return refresher.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, scheduler.Stop())

	status := scheduler.GetStatus()
	require.Contains(t, status, StatsRefreshJobName)
	assert.Equal(t, "50ms", status[StatsRefreshJobName].Interval)
}
