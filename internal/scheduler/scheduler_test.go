package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCollector struct {
	windows [][2]time.Time
	days    []int
	err     error
}

func (f *fakeCollector) Collect(_ context.Context, start, end time.Time) error {
	f.windows = append(f.windows, [2]time.Time{start, end})
	return f.err
}

func (f *fakeCollector) Bootstrap(_ context.Context, days int) error {
	f.days = append(f.days, days)
	return f.err
}

func TestCollectDataUsesLookback(t *testing.T) {
	logger, _ := test.NewNullLogger()
	fc := &fakeCollector{}
	s := NewScheduler(context.Background(), fc, Config{Lookback: 30 * time.Minute}, logger)
	now := time.Date(2016, 6, 15, 19, 7, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.collectData()

	require.Len(t, fc.windows, 1)
	assert.Equal(t, now.Add(-30*time.Minute), fc.windows[0][0])
	assert.Equal(t, now, fc.windows[0][1])
}

func TestCollectDataLogsFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()
	fc := &fakeCollector{err: errors.New("boom")}
	s := NewScheduler(context.Background(), fc, Config{}, logger)

	s.collectData()

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "Failed to collect data", hook.LastEntry().Message)
}

func TestBootstrap(t *testing.T) {
	logger, _ := test.NewNullLogger()
	fc := &fakeCollector{}
	s := NewScheduler(context.Background(), fc, Config{}, logger)

	require.NoError(t, s.Bootstrap(0))
	assert.Empty(t, fc.days)

	require.NoError(t, s.Bootstrap(7))
	assert.Equal(t, []int{7}, fc.days)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewScheduler(context.Background(), &fakeCollector{}, Config{Schedule: "every five minutes"}, logger)
	assert.Error(t, s.Start())
}

func TestStartAndStop(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewScheduler(context.Background(), &fakeCollector{}, Config{}, logger)
	require.NoError(t, s.Start())
	s.Stop()
}
