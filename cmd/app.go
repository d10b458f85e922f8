package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/resy-sniper/internal/config"
	"github.com/example/resy-sniper/internal/logging"
	"github.com/example/resy-sniper/internal/reservation"
	"github.com/example/resy-sniper/internal/resy"
	"github.com/example/resy-sniper/internal/session"
	"github.com/spf13/cobra"
)

// app wires the shared pieces every live command needs.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	client   *resy.Client
	sessions *session.Manager
	loc      *time.Location
}

func newApp() (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	client := resy.New(cfg.APIKey)
	store := session.NewStore(cfg.SessionPath, cfg.SessionHashKey, cfg.SessionBlockKey)
	return &app{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		sessions: session.NewManager(client, cfg.Email, cfg.Password, store, logger),
		loc:      loc,
	}, nil
}

// ensureSession obtains a valid credential and installs it on the
// client. Nothing requiring a credential may run if this fails.
func (a *app) ensureSession(ctx context.Context) error {
	sess, err := a.sessions.Ensure(ctx)
	if err != nil {
		return err
	}
	a.client.SetAuthToken(sess.Token)
	return nil
}

// targetFlags is the shared target/preference flag set of the check,
// book and snipe commands.
type targetFlags struct {
	venueIDs  string
	date      string
	partySize int
	times     string
	types     string
}

func (f *targetFlags) targets() ([]reservation.Target, error) {
	venues := splitCSV(f.venueIDs)
	if len(venues) == 0 {
		return nil, fmt.Errorf("--venue-id required")
	}
	if _, err := time.Parse("2006-01-02", f.date); err != nil {
		return nil, fmt.Errorf("invalid --date (want YYYY-MM-DD)")
	}

	var targets []reservation.Target
	for _, v := range venues {
		t := reservation.Target{
			VenueID:        v,
			Day:            f.date,
			PartySize:      f.partySize,
			PreferredTimes: splitCSV(f.times),
			Types:          splitCSV(f.types),
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func addTargetFlags(c *cobra.Command, f *targetFlags) {
	c.Flags().StringVar(&f.venueIDs, "venue-id", "", "venue id(s), comma-separated; order sets booking priority")
	c.Flags().StringVar(&f.date, "date", "", "reservation date YYYY-MM-DD")
	c.Flags().IntVar(&f.partySize, "party-size", 2, "party size")
	c.Flags().StringVar(&f.times, "times", "", "preferred times, comma-separated (HH:MM or HH:MM:SS)")
	c.Flags().StringVar(&f.types, "types", "", "acceptable reservation types, comma-separated")
	_ = c.MarkFlagRequired("venue-id")
	_ = c.MarkFlagRequired("date")
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
