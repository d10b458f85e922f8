// Package schedule aligns the start of a run with a wall-clock instant,
// typically the moment a venue releases its reservations.
package schedule

import (
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	// ErrPastTarget is returned when the requested instant is not at
	// least one second in the future. Guards against firing instantly.
	ErrPastTarget = errors.New("target time is in the past")

	// ErrInvalidTimeFormat is returned for start strings that match
	// none of the accepted layouts.
	ErrInvalidTimeFormat = errors.New("invalid time format")
)

const minLead = time.Second

var startLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
}

var clockOnlyLayouts = []string{
	"15:04:05",
	"15:04",
}

// ParseStart parses a start instant in loc. Accepted forms:
// a full date+time ("2006-01-02 15:04" with optional seconds), the
// combined "2006-01-02T15:04:05", or a bare clock time ("15:04" with
// optional seconds) meaning the next occurrence of that time: today if
// still ahead of now, otherwise tomorrow.
func ParseStart(s string, now time.Time, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidTimeFormat
	}

	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	for _, layout := range clockOnlyLayouts {
		clock, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		local := now.In(loc)
		t := time.Date(local.Year(), local.Month(), local.Day(),
			clock.Hour(), clock.Minute(), clock.Second(), 0, loc)
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil
	}

	return time.Time{}, ErrInvalidTimeFormat
}

// Timer is a single-shot scheduled action. Cancel before it fires stops
// it; after it fires, Cancel is a no-op.
type Timer struct {
	timer *time.Timer

	mu    sync.Mutex
	fired bool
}

// At arranges exactly one invocation of fn at target. It fails with
// ErrPastTarget unless target is at least one second after now.
func At(target time.Time, fn func()) (*Timer, error) {
	delay := time.Until(target)
	if delay < minLead {
		return nil, ErrPastTarget
	}

	t := &Timer{}
	t.timer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		t.fired = true
		t.mu.Unlock()
		fn()
	})
	return t, nil
}

// Cancel stops the timer if it has not fired yet.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired {
		return
	}
	t.timer.Stop()
}
