// Package session owns the provider credential: obtaining it, caching
// it in memory, and persisting it across restarts.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/resy-sniper/internal/reservation"
)

// TTL is the local credential lifetime applied after a login. The
// provider's own token lifetime is not inspected.
const TTL = 24 * time.Hour

// ErrAuthFailed wraps a rejected login. Callers must not proceed to any
// operation that needs a credential.
var ErrAuthFailed = errors.New("authentication failed")

// Authenticator is the slice of the provider the manager needs.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (reservation.Auth, error)
}

// Manager caches one Session and re-authenticates only when no valid
// cached session exists at Ensure time. A provider rejection mid-run
// (expired token server-side) is not detected here; it surfaces as a
// failed provider call in the caller.
type Manager struct {
	auth     Authenticator
	email    string
	password string
	store    *Store
	logger   *slog.Logger

	now func() time.Time

	mu  sync.Mutex
	cur Session
}

func NewManager(auth Authenticator, email, password string, store *Store, logger *slog.Logger) *Manager {
	return &Manager{
		auth:     auth,
		email:    email,
		password: password,
		store:    store,
		logger:   logger.With("component", "session"),
		now:      time.Now,
	}
}

// Ensure returns a valid session, authenticating only when neither the
// in-memory session nor the persisted record is usable. On a cache hit
// no network interaction happens.
func (m *Manager) Ensure(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.cur.Valid(now) {
		return m.cur, nil
	}

	if m.store != nil {
		if s, ok := m.store.Load(); ok && s.Valid(now) {
			m.logger.Debug("restored session from store", "expiry", s.Expiry)
			m.cur = s
			return m.cur, nil
		}
	}

	a, err := m.auth.Authenticate(ctx, m.email, m.password)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	s := Session{Token: a.Token, PaymentID: a.PaymentID, Expiry: now.Add(TTL)}
	if m.store != nil {
		if err := m.store.Save(s); err != nil {
			m.logger.Warn("could not persist session", "error", err)
		}
	}
	m.logger.Info("authenticated", "expiry", s.Expiry)
	m.cur = s
	return m.cur, nil
}

// PaymentID returns the settlement identifier currently associated with
// the session.
func (m *Manager) PaymentID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur.PaymentID
}

// SetPaymentID refreshes the in-memory settlement identifier, typically
// from a details response. The persisted record is only rewritten on
// authentication.
func (m *Manager) SetPaymentID(id string) {
	if id == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur.PaymentID = id
}
