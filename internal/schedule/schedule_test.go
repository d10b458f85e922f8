package schedule

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseStartFullDateTime(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)

	got, err := ParseStart("2026-03-02 09:00", now, loc)
	if err != nil {
		t.Fatalf("ParseStart: %v", err)
	}
	want := time.Date(2026, 3, 2, 9, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	got, err = ParseStart("2026-03-02 09:00:30", now, loc)
	if err != nil {
		t.Fatalf("ParseStart with seconds: %v", err)
	}
	if got.Second() != 30 {
		t.Errorf("seconds not parsed: %v", got)
	}

	if _, err := ParseStart("2026-03-02T09:00:30", now, loc); err != nil {
		t.Errorf("combined instant form rejected: %v", err)
	}
}

func TestParseStartBareTime(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)

	// still ahead today
	got, err := ParseStart("15:30", now, loc)
	if err != nil {
		t.Fatalf("ParseStart: %v", err)
	}
	if want := time.Date(2026, 3, 1, 15, 30, 0, 0, loc); !got.Equal(want) {
		t.Errorf("future-today: got %v, want %v", got, want)
	}

	// already past today, rolls to tomorrow
	got, err = ParseStart("09:00", now, loc)
	if err != nil {
		t.Fatalf("ParseStart: %v", err)
	}
	if want := time.Date(2026, 3, 2, 9, 0, 0, 0, loc); !got.Equal(want) {
		t.Errorf("past-today: got %v, want %v", got, want)
	}
}

func TestParseStartRejectsGarbage(t *testing.T) {
	now := time.Now()
	for _, in := range []string{"", "soon", "tomorrow 9am", "2026/03/02 09:00", "99:99"} {
		if _, err := ParseStart(in, now, time.UTC); !errors.Is(err, ErrInvalidTimeFormat) {
			t.Errorf("ParseStart(%q): got %v, want ErrInvalidTimeFormat", in, err)
		}
	}
}

func TestAtRejectsNearPastTarget(t *testing.T) {
	_, err := At(time.Now().Add(500*time.Millisecond), func() {})
	if !errors.Is(err, ErrPastTarget) {
		t.Fatalf("got %v, want ErrPastTarget", err)
	}
	_, err = At(time.Now().Add(-time.Minute), func() {})
	if !errors.Is(err, ErrPastTarget) {
		t.Fatalf("past target: got %v, want ErrPastTarget", err)
	}
}

func TestAtFiresOnlyAfterDelay(t *testing.T) {
	delay := 2 * time.Second
	begin := time.Now()
	fired := make(chan time.Time, 1)

	tmr, err := At(begin.Add(delay), func() { fired <- time.Now() })
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	defer tmr.Cancel()

	select {
	case at := <-fired:
		t.Fatalf("fired early, after %v", at.Sub(begin))
	case <-time.After(time.Second):
	}

	select {
	case at := <-fired:
		if elapsed := at.Sub(begin); elapsed < delay-50*time.Millisecond {
			t.Errorf("fired after %v, want >= %v", elapsed, delay)
		}
	case <-time.After(4 * time.Second):
		t.Fatal("never fired")
	}
}

func TestCancelBeforeFire(t *testing.T) {
	var fired atomic.Bool
	tmr, err := At(time.Now().Add(1200*time.Millisecond), func() { fired.Store(true) })
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	tmr.Cancel()

	time.Sleep(1500 * time.Millisecond)
	if fired.Load() {
		t.Fatal("action fired after Cancel")
	}
	// cancelling again is a no-op
	tmr.Cancel()
}
