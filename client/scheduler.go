package client

import "time"

// CancelFunc cancels a scheduled task. Safe to call after the task has
// fired; firing after cancellation is not.
type CancelFunc func()

// Scheduler runs a task once after a delay. It exists so reconnect and
// heartbeat timers are structurally cancellable, and so tests can drive
// time by hand instead of sleeping.
type Scheduler interface {
	Schedule(delay time.Duration, task func()) CancelFunc
}

type timerScheduler struct{}

// NewScheduler returns the wall-clock scheduler used outside of tests
func NewScheduler() Scheduler {
	return timerScheduler{}
}

func (timerScheduler) Schedule(delay time.Duration, task func()) CancelFunc {
	timer := time.AfterFunc(delay, task)
	return func() { timer.Stop() }
}
