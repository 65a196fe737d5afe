package service

import "time"

// settleWait parks a detector pass until a change has held for a window.
// The wait ends early when abort reports the change is moot.
type settleWait struct {
	signal   string
	deadline time.Time
	abort    func() bool
}

func newSettleWait(signal string, now time.Time, window time.Duration, abort func() bool) *settleWait {
	return &settleWait{
		signal:   signal,
		deadline: now.Add(window),
		abort:    abort,
	}
}

// over reports whether the pass may resume
func (w *settleWait) over(now time.Time) bool {
	return !now.Before(w.deadline) || w.abort()
}
