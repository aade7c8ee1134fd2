package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := New(zap.NewNop())
	t.Cleanup(s.Stop)
	return s
}

func TestAddTicker_FiresAndReplaces(t *testing.T) {
	s := newTestScheduler(t)

	var first, second int32
	s.AddTicker("purge_read_notifications", 10*time.Millisecond, func() { atomic.AddInt32(&first, 1) })
	require.Eventually(t, func() bool { return atomic.LoadInt32(&first) >= 2 }, time.Second, 5*time.Millisecond)

	s.AddTicker("purge_read_notifications", 10*time.Millisecond, func() { atomic.AddInt32(&second, 1) })
	require.Eventually(t, func() bool { return atomic.LoadInt32(&second) >= 2 }, time.Second, 5*time.Millisecond)

	snap := atomic.LoadInt32(&first)
	time.Sleep(40 * time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&first), snap+1, "replaced ticker kept firing")
	assert.Equal(t, []string{"purge_read_notifications"}, s.ListTickers())
}

func TestAddDelay_RunsOnceAndCanBeReplaced(t *testing.T) {
	s := newTestScheduler(t)

	var stale, fresh int32
	s.AddDelay("warm_on_start", 30*time.Millisecond, func() { atomic.AddInt32(&stale, 1) })
	s.AddDelay("warm_on_start", 10*time.Millisecond, func() { atomic.AddInt32(&fresh, 1) })

	require.Eventually(t, func() bool { return atomic.LoadInt32(&fresh) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&stale))
	assert.Equal(t, int32(1), atomic.LoadInt32(&fresh))
}

func TestRemove(t *testing.T) {
	s := newTestScheduler(t)

	var ran int32
	s.AddDelay("warm_on_start", 20*time.Millisecond, func() { atomic.AddInt32(&ran, 1) })
	s.AddTicker("purge_read_notifications", time.Hour, func() {})
	s.AddWeekly("warm_top_posts", time.Monday, 0, 0, func() {})

	s.Remove("warm_on_start")
	s.Remove("purge_read_notifications")
	s.Remove("does_not_exist")
	assert.Equal(t, []string{"warm_top_posts"}, s.ListTickers())

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&ran))
}

func TestStop(t *testing.T) {
	s := New(zap.NewNop())
	var ticks int32
	s.AddTicker("purge_read_notifications", 10*time.Millisecond, func() { atomic.AddInt32(&ticks, 1) })
	require.Eventually(t, func() bool { return atomic.LoadInt32(&ticks) > 0 }, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	time.Sleep(20 * time.Millisecond)
	snap := atomic.LoadInt32(&ticks)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, snap, atomic.LoadInt32(&ticks))
}

func TestPanickingTaskKeepsTicking(t *testing.T) {
	s := newTestScheduler(t)
	var calls int32
	s.AddTicker("warm_top_beans", 10*time.Millisecond, func() {
		atomic.AddInt32(&calls, 1)
		panic("cache down")
	})
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 3 }, time.Second, 5*time.Millisecond)
}

func TestNextWeekly(t *testing.T) {
	// 2026-10-14 is a Wednesday.
	wed := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		name         string
		day          time.Weekday
		hour, minute int
		want         time.Time
	}{
		{"next monday midnight", time.Monday, 0, 0, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)},
		{"later today", time.Wednesday, 18, 30, time.Date(2026, 10, 14, 18, 30, 0, 0, time.UTC)},
		{"exactly now rolls a week", time.Wednesday, 10, 0, time.Date(2026, 10, 21, 10, 0, 0, 0, time.UTC)},
		{"earlier today rolls a week", time.Wednesday, 9, 0, time.Date(2026, 10, 21, 9, 0, 0, 0, time.UTC)},
		{"tomorrow", time.Thursday, 3, 15, time.Date(2026, 10, 15, 3, 15, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NextWeekly(wed, tc.day, tc.hour, tc.minute))
		})
	}
}

func TestParseWeekday(t *testing.T) {
	for in, want := range map[string]time.Weekday{
		"monday": time.Monday, " Sun ": time.Sunday, "SAT": time.Saturday, "wednes": time.Wednesday,
	} {
		d, err := ParseWeekday(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, d, in)
	}
	for _, bad := range []string{"", "mo", "someday"} {
		_, err := ParseWeekday(bad)
		assert.Error(t, err, bad)
	}
}

func TestAddWeekly_NextRun(t *testing.T) {
	s := newTestScheduler(t)
	s.AddWeekly("warm_top_posts", time.Monday, 4, 0, func() {})

	next, ok := s.NextRun("warm_top_posts")
	require.True(t, ok)
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 4, next.Hour())
	assert.True(t, next.After(time.Now()))

	_, ok = s.NextRun("purge_read_notifications")
	assert.False(t, ok)
}
