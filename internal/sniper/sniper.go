// Package sniper drives the poll-and-commit loop: it repeatedly asks
// the provider for slots, ranks them against the target's preferences,
// and commits the best candidate. The first successful commit ends the
// run.
package sniper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/resy-sniper/internal/reservation"
	"github.com/google/uuid"
)

// State is the orchestrator's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateAttempting
	StateSuccess
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateAttempting:
		return "attempting"
	case StateSuccess:
		return "success"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Status is the terminal outcome of a run.
type Status string

const (
	StatusBooked    Status = "booked"
	StatusExhausted Status = "exhausted"
	StatusStopped   Status = "stopped"
)

// Outcome is produced exactly once per run.
type Outcome struct {
	Status         Status
	ConfirmationID string
	Target         reservation.Target
	Slot           reservation.Slot
	Attempts       int
}

type EventType string

const (
	EventCycleStart    EventType = "cycle_start"
	EventProviderError EventType = "provider_error"
	EventNoMatch       EventType = "no_match"
	EventSlotFound     EventType = "slot_found"
	EventDryRun        EventType = "dry_run"
	EventCommitFailed  EventType = "commit_failed"
	EventBooked        EventType = "booked"
	EventExhausted     EventType = "attempts_exhausted"
	EventStopped       EventType = "stopped"
)

// Event is one observable step of a run, delivered on Events().
type Event struct {
	Type           EventType
	Attempt        int
	Target         reservation.Target
	Slot           *reservation.Slot
	ConfirmationID string
	Err            error
}

// Wallet is the slice of the session manager the sniper needs: the
// settlement identifier sent with commits, refreshed from details
// responses.
type Wallet interface {
	PaymentID() string
	SetPaymentID(id string)
}

type Config struct {
	Targets  []reservation.Target
	Interval time.Duration
	// MaxAttempts bounds the number of poll cycles; 0 means unbounded.
	MaxAttempts int
	DryRun      bool
}

type Sniper struct {
	provider reservation.Provider
	wallet   Wallet
	cfg      Config
	logger   *slog.Logger
	runID    string

	events chan Event

	// single-flight guard: a tick that lands while a cycle is still in
	// flight is skipped, not queued
	cycleMu sync.Mutex

	mu       sync.Mutex
	state    State
	attempts int
	cancel   context.CancelFunc
}

func New(provider reservation.Provider, wallet Wallet, cfg Config, logger *slog.Logger) (*Sniper, error) {
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("at least one target required")
	}
	for _, t := range cfg.Targets {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	runID := uuid.New().String()
	return &Sniper{
		provider: provider,
		wallet:   wallet,
		cfg:      cfg,
		logger:   logger.With("component", "sniper", "run_id", runID),
		runID:    runID,
		events:   make(chan Event, 64),
		state:    StateIdle,
	}, nil
}

// Events is the run's event stream. It is closed when Run returns;
// events are dropped rather than blocking a slow consumer.
func (s *Sniper) Events() <-chan Event { return s.events }

func (s *Sniper) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Sniper) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Stop requests the run to end. It prevents further cycles from
// starting; a cycle already in flight finishes its current work.
func (s *Sniper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run executes the loop: one cycle immediately, then one per interval
// tick until a booking succeeds, attempts are exhausted, or the run is
// stopped. Cancellation is cooperative and checked between cycles only.
func (s *Sniper) Run(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return Outcome{}, fmt.Errorf("run already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StatePolling
	s.mu.Unlock()

	defer cancel()
	defer close(s.events)

	s.logger.Info("snipe started",
		"targets", len(s.cfg.Targets),
		"interval", s.cfg.Interval,
		"max_attempts", s.cfg.MaxAttempts,
		"dry_run", s.cfg.DryRun)

	// kick immediately, then recur on a fixed period for all intervals
	if out, done := s.cycle(ctx); done {
		return out, nil
	}
	if out, done := s.exhausted(); done {
		return out, nil
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.setState(StateStopped)
			s.emit(Event{Type: EventStopped, Attempt: s.Attempts()})
			s.logger.Info("snipe stopped", "attempts", s.Attempts())
			return Outcome{Status: StatusStopped, Attempts: s.Attempts()}, nil
		case <-ticker.C:
			if out, done := s.cycle(ctx); done {
				return out, nil
			}
			if out, done := s.exhausted(); done {
				return out, nil
			}
		}
	}
}

// cycle performs one poll over all targets in caller order. It reports
// done=true only on a successful booking.
func (s *Sniper) cycle(ctx context.Context) (Outcome, bool) {
	if !s.cycleMu.TryLock() {
		s.logger.Warn("previous cycle still in flight, skipping tick")
		return Outcome{}, false
	}
	defer s.cycleMu.Unlock()

	if ctx.Err() != nil {
		return Outcome{}, false
	}

	attempt := s.nextAttempt()
	s.emit(Event{Type: EventCycleStart, Attempt: attempt})
	s.logger.Debug("cycle start", "attempt", attempt)

	for _, t := range s.cfg.Targets {
		slots, err := s.provider.FindSlots(ctx, t)
		if err != nil {
			s.logger.Warn("find failed", "venue", t.VenueID, "error", err)
			s.emit(Event{Type: EventProviderError, Attempt: attempt, Target: t, Err: err})
			continue
		}

		matched := reservation.Match(slots, t.PreferredTimes, t.Types)
		if len(matched) == 0 {
			s.logger.Debug("no matching slots", "venue", t.VenueID, "offered", len(slots))
			s.emit(Event{Type: EventNoMatch, Attempt: attempt, Target: t})
			continue
		}

		pick := matched[0]
		s.setState(StateAttempting)
		s.emit(Event{Type: EventSlotFound, Attempt: attempt, Target: t, Slot: &pick})
		s.logger.Info("slot found", "venue", t.VenueID, "time", pick.DisplayTime, "type", pick.Type)

		if s.cfg.DryRun {
			s.emit(Event{Type: EventDryRun, Attempt: attempt, Target: t, Slot: &pick})
			s.setState(StatePolling)
			continue
		}

		confirmation, err := s.commit(ctx, pick, t)
		if err != nil {
			s.logger.Warn("commit failed", "venue", t.VenueID, "time", pick.DisplayTime, "error", err)
			s.emit(Event{Type: EventCommitFailed, Attempt: attempt, Target: t, Slot: &pick, Err: err})
			s.setState(StatePolling)
			continue
		}

		s.setState(StateSuccess)
		s.emit(Event{Type: EventBooked, Attempt: attempt, Target: t, Slot: &pick, ConfirmationID: confirmation})
		s.logger.Info("booked", "venue", t.VenueID, "time", pick.DisplayTime, "confirmation", confirmation)
		return Outcome{
			Status:         StatusBooked,
			ConfirmationID: confirmation,
			Target:         t,
			Slot:           pick,
			Attempts:       attempt,
		}, true
	}

	return Outcome{}, false
}

// commit resolves the short-lived book token and submits it. The details
// response also refreshes the settlement identifier.
func (s *Sniper) commit(ctx context.Context, slot reservation.Slot, t reservation.Target) (string, error) {
	d, err := s.provider.CommitDetails(ctx, slot, t)
	if err != nil {
		return "", err
	}
	s.wallet.SetPaymentID(d.PaymentID)
	paymentID := d.PaymentID
	if paymentID == "" {
		paymentID = s.wallet.PaymentID()
	}
	return s.provider.Commit(ctx, d.BookToken, paymentID)
}

func (s *Sniper) exhausted() (Outcome, bool) {
	attempts := s.Attempts()
	if s.cfg.MaxAttempts <= 0 || attempts < s.cfg.MaxAttempts {
		return Outcome{}, false
	}
	s.setState(StateStopped)
	s.emit(Event{Type: EventExhausted, Attempt: attempts})
	s.logger.Info("attempts exhausted", "attempts", attempts)
	return Outcome{Status: StatusExhausted, Attempts: attempts}, true
}

func (s *Sniper) nextAttempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	return s.attempts
}

func (s *Sniper) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Success and Stopped are terminal
	if s.state == StateSuccess || s.state == StateStopped {
		return
	}
	s.state = st
}

func (s *Sniper) emit(e Event) {
	select {
	case s.events <- e:
	default:
	}
}
