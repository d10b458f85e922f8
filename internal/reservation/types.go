package reservation

import "fmt"

// Target is one venue/date/party-size combination the sniper tries to
// book, plus its matching preferences. Immutable once a run starts.
type Target struct {
	VenueID   string
	Day       string // YYYY-MM-DD
	PartySize int

	// Preferred times in the venue's local day, e.g. "19:00" or "7:00 PM".
	// Empty means any time is acceptable.
	PreferredTimes []string

	// Reservation types to accept, e.g. "Dining Room", "Bar".
	// Empty means any type is acceptable.
	Types []string
}

func (t Target) Validate() error {
	if t.VenueID == "" {
		return fmt.Errorf("venue_id required")
	}
	if t.Day == "" {
		return fmt.Errorf("day required (YYYY-MM-DD)")
	}
	if t.PartySize < 1 {
		return fmt.Errorf("party_size must be >= 1")
	}
	return nil
}

// Slot is one bookable offering returned by the provider for a Target.
// It is only valid within the poll cycle that fetched it; the token may
// expire server-side between cycles.
type Slot struct {
	DisplayTime string // as shown by the provider, e.g. "19:00:00"
	Type        string
	Token       string
	Quantity    int
	Deposit     float64 // 0 when no deposit is required
}
