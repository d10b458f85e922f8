package reservation

import "context"

// Auth is the credential material returned by a successful login.
type Auth struct {
	Token     string
	PaymentID string
}

// CommitDetails is the short-lived material needed to finalize a booking.
// The book token is distinct from the slot's own token and expires
// quickly; PaymentID, when set, supersedes the session's cached value.
type CommitDetails struct {
	BookToken string
	PaymentID string
}

// Provider is the availability provider capability the sniper runs
// against. Implementations own all transport details.
type Provider interface {
	Name() string
	Authenticate(ctx context.Context, email, password string) (Auth, error)
	// FindSlots returns the currently bookable slots for the target.
	// An empty result with a nil error means nothing is available.
	FindSlots(ctx context.Context, t Target) ([]Slot, error)
	CommitDetails(ctx context.Context, slot Slot, t Target) (CommitDetails, error)
	// Commit finalizes the booking and returns a confirmation identifier.
	Commit(ctx context.Context, bookToken, paymentID string) (string, error)
}
