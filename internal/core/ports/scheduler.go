package ports

import "time"

type SchedulerService interface {
	Start()
	Stop()
	// ScheduleEvery runs fn at every interval, never overlapping a previous
	// run that is still in progress.
	ScheduleEvery(interval time.Duration, fn func()) error
}
