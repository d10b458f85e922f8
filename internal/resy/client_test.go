package resy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/resy-sniper/internal/reservation"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New("test-api-key")
	c.SetBaseURL(srv.URL)
	return c
}

func TestAuthenticate(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/3/auth/password" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if r.PostForm.Get("email") != "user@example.com" || r.PostForm.Get("password") != "hunter2" {
			t.Errorf("credentials not forwarded: %v", r.PostForm)
		}
		if got := r.Header.Get("authorization"); !strings.Contains(got, `api_key="test-api-key"`) {
			t.Errorf("api key header = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"token": "tok-1", "payment_method_id": 77})
	}))

	auth, err := c.Authenticate(context.Background(), "user@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if auth.Token != "tok-1" || auth.PaymentID != "77" {
		t.Fatalf("auth = %+v", auth)
	}
}

func TestAuthenticateRejected(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "invalid credentials"})
	}))

	_, err := c.Authenticate(context.Background(), "user@example.com", "wrong")
	if err == nil {
		t.Fatal("Authenticate succeeded, want error")
	}
	if !strings.Contains(err.Error(), "invalid credentials") {
		t.Errorf("provider message not surfaced: %v", err)
	}
}

func findFixture() string {
	return `{"results":{"venues":[{"slots":[
		{"date":{"start":"2026-09-12 19:00:00"},"config":{"type":"Dining Room","token":"cfg-1"},"quantity":2,"payment":{"deposit_fee":25}},
		{"date":{"start":"2026-09-12 21:30:00"},"config":{"type":"Bar","token":"cfg-2"},"quantity":1}
	]}]}}`
}

func TestFindSlots(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/4/find" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("venue_id") != "123" || q.Get("day") != "2026-09-12" || q.Get("party_size") != "4" {
			t.Errorf("query not forwarded: %v", q)
		}
		if got := r.Header.Get("x-resy-auth-token"); got != "tok-1" {
			t.Errorf("auth token header = %q, want tok-1", got)
		}
		w.Write([]byte(findFixture()))
	}))
	c.SetAuthToken("tok-1")

	slots, err := c.FindSlots(context.Background(), reservation.Target{VenueID: "123", Day: "2026-09-12", PartySize: 4})
	if err != nil {
		t.Fatalf("FindSlots: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2", len(slots))
	}
	first := slots[0]
	if first.DisplayTime != "19:00:00" || first.Type != "Dining Room" || first.Token != "cfg-1" {
		t.Errorf("slot not mapped: %+v", first)
	}
	if first.Quantity != 2 || first.Deposit != 25 {
		t.Errorf("quantity/deposit not mapped: %+v", first)
	}
}

func TestFindSlotsNothingAvailable(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":{"venues":[]}}`))
	}))

	slots, err := c.FindSlots(context.Background(), reservation.Target{VenueID: "123", Day: "2026-09-12", PartySize: 2})
	if err != nil {
		t.Fatalf("empty availability must not be an error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("got %d slots, want none", len(slots))
	}
}

func TestCommitDetails(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/3/details" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["config_id"] != "cfg-1" || req["day"] != "2026-09-12" {
			t.Errorf("details request = %v", req)
		}
		w.Write([]byte(`{"book_token":{"value":"bt-9"},"user":{"payment_methods":[{"id":55}]}}`))
	}))

	d, err := c.CommitDetails(context.Background(),
		reservation.Slot{Token: "cfg-1"},
		reservation.Target{VenueID: "123", Day: "2026-09-12", PartySize: 2})
	if err != nil {
		t.Fatalf("CommitDetails: %v", err)
	}
	if d.BookToken != "bt-9" || d.PaymentID != "55" {
		t.Fatalf("details = %+v", d)
	}
}

func TestCommitDetailsSlotGone(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"book_token":{"value":""}}`))
	}))

	_, err := c.CommitDetails(context.Background(), reservation.Slot{Token: "cfg-1"}, reservation.Target{Day: "2026-09-12"})
	if err == nil {
		t.Fatal("missing book token must be an error")
	}
}

func TestCommit(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/3/book" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if r.PostForm.Get("book_token") != "bt-9" {
			t.Errorf("book_token = %q", r.PostForm.Get("book_token"))
		}
		var pm struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal([]byte(r.PostForm.Get("struct_payment_method")), &pm); err != nil || pm.ID != 55 {
			t.Errorf("struct_payment_method = %q", r.PostForm.Get("struct_payment_method"))
		}
		w.Write([]byte(`{"resy_token":"confirm-1"}`))
	}))

	conf, err := c.Commit(context.Background(), "bt-9", "55")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if conf != "confirm-1" {
		t.Fatalf("confirmation = %q", conf)
	}
}

func TestCommitRejected(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
		json.NewEncoder(w).Encode(map[string]string{"message": "slot no longer available"})
	}))

	_, err := c.Commit(context.Background(), "bt-9", "55")
	if err == nil || !strings.Contains(err.Error(), "slot no longer available") {
		t.Fatalf("got %v, want surfaced provider message", err)
	}
}

func TestStartClock(t *testing.T) {
	if got := startClock("2026-09-12 19:00:00"); got != "19:00:00" {
		t.Errorf("startClock = %q", got)
	}
	// malformed start strings pass through untouched
	if got := startClock("19:00:00"); got != "19:00:00" {
		t.Errorf("startClock passthrough = %q", got)
	}
}
