package scheduler_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/ArkLabsHQ/oracle-node/internal/core/ports"
	scheduler "github.com/ArkLabsHQ/oracle-node/internal/infrastructure/scheduler/gocron"
	"github.com/stretchr/testify/require"
)

var schedulerTypes = map[string]func() ports.SchedulerService{
	"gocron": scheduler.NewScheduler,
}

func TestSchedulerService(t *testing.T) {
	for schedulerType, factory := range schedulerTypes {
		t.Run(schedulerType, func(t *testing.T) {
			testScheduler(t, factory)
		})
	}
}

func testScheduler(t *testing.T, newScheduler func() ports.SchedulerService) {
	t.Run("schedule every", func(t *testing.T) {
		svc := newScheduler()

		var runs atomic.Int32
		err := svc.ScheduleEvery(50*time.Millisecond, func() {
			runs.Add(1)
		})
		require.NoError(t, err)

		svc.Start()
		svc.Start()

		require.Eventually(t, func() bool {
			return runs.Load() >= 3
		}, 2*time.Second, 10*time.Millisecond)

		svc.Stop()
		stoppedAt := runs.Load()
		time.Sleep(200 * time.Millisecond)
		require.LessOrEqual(t, runs.Load(), stoppedAt+1)
	})

	t.Run("no overlapping runs", func(t *testing.T) {
		svc := newScheduler()

		var running, overlaps, runs atomic.Int32
		err := svc.ScheduleEvery(20*time.Millisecond, func() {
			if running.Add(1) > 1 {
				overlaps.Add(1)
			}
			time.Sleep(100 * time.Millisecond)
			running.Add(-1)
			runs.Add(1)
		})
		require.NoError(t, err)

		svc.Start()
		defer svc.Stop()

		require.Eventually(t, func() bool {
			return runs.Load() >= 2
		}, 3*time.Second, 10*time.Millisecond)
		require.Zero(t, overlaps.Load())
	})

	t.Run("invalid job", func(t *testing.T) {
		svc := newScheduler()
		require.Error(t, svc.ScheduleEvery(0, func() {}))
		require.Error(t, svc.ScheduleEvery(time.Second, nil))
	})
}
