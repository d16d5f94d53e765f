package flyover

import "time"

// Task is a pending scheduled callback.
type Task interface {
	// Cancel stops the task. It reports whether the callback was prevented
	// from running.
	Cancel() bool
}

// Scheduler runs fn once after d.
type Scheduler interface {
	After(d time.Duration, fn func()) Task
}

// TimerScheduler schedules with time.AfterFunc.
type TimerScheduler struct{}

// After implements Scheduler.
func (TimerScheduler) After(d time.Duration, fn func()) Task {
	return timerTask{time.AfterFunc(d, fn)}
}

type timerTask struct{ t *time.Timer }

func (t timerTask) Cancel() bool { return t.t.Stop() }
