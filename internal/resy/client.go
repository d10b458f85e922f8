// Package resy implements the availability provider against the Resy
// API. It needs an API key plus an auth token obtained through
// Authenticate (or restored from a cached session).
package resy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/resy-sniper/internal/reservation"
)

const defaultBaseURL = "https://api.resy.com"

type Client struct {
	hc        *http.Client
	baseURL   string
	apiKey    string
	authToken string
}

func New(apiKey string) *Client {
	return &Client{
		hc:      &http.Client{Timeout: 10 * time.Second},
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
	}
}

// SetBaseURL overrides the API endpoint, for tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = strings.TrimRight(u, "/") }

// SetAuthToken installs the session token sent on authenticated calls.
func (c *Client) SetAuthToken(token string) { c.authToken = token }

func (c *Client) Name() string { return "resy" }

type authResponse struct {
	Token           string `json:"token"`
	PaymentMethodID int64  `json:"payment_method_id"`
}

func (c *Client) Authenticate(ctx context.Context, email, password string) (reservation.Auth, error) {
	form := url.Values{}
	form.Set("email", email)
	form.Set("password", password)
	status, body, err := c.do(ctx, http.MethodPost, "/3/auth/password", "application/x-www-form-urlencoded", nil, []byte(form.Encode()))
	if err != nil {
		return reservation.Auth{}, err
	}
	if status >= 400 {
		return reservation.Auth{}, apiError("login failed", status, body)
	}
	var res authResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return reservation.Auth{}, fmt.Errorf("login: malformed response: %w", err)
	}
	if res.Token == "" {
		return reservation.Auth{}, fmt.Errorf("login: no token in response")
	}
	auth := reservation.Auth{Token: res.Token}
	if res.PaymentMethodID != 0 {
		auth.PaymentID = strconv.FormatInt(res.PaymentMethodID, 10)
	}
	c.authToken = res.Token
	return auth, nil
}

type wireSlot struct {
	Date struct {
		Start string `json:"start"`
	} `json:"date"`
	Config struct {
		Type  string `json:"type"`
		Token string `json:"token"`
	} `json:"config"`
	Quantity int `json:"quantity"`
	Payment  struct {
		DepositFee float64 `json:"deposit_fee"`
	} `json:"payment"`
}

type findResponse struct {
	Results struct {
		Venues []struct {
			Slots []wireSlot `json:"slots"`
		} `json:"venues"`
	} `json:"results"`
}

func (c *Client) FindSlots(ctx context.Context, t reservation.Target) ([]reservation.Slot, error) {
	params := map[string]string{
		"party_size": strconv.Itoa(t.PartySize),
		"venue_id":   t.VenueID,
		"day":        t.Day,
		// deprecated but still required by the endpoint
		"lat":  "0",
		"long": "0",
	}
	status, body, err := c.do(ctx, http.MethodGet, "/4/find", "", params, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apiError("find failed", status, body)
	}
	var res findResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("find: malformed response: %w", err)
	}
	// no venues or no slots is a valid "nothing available" answer
	if len(res.Results.Venues) == 0 {
		return nil, nil
	}
	var out []reservation.Slot
	for _, ws := range res.Results.Venues[0].Slots {
		out = append(out, reservation.Slot{
			DisplayTime: startClock(ws.Date.Start),
			Type:        ws.Config.Type,
			Token:       ws.Config.Token,
			Quantity:    ws.Quantity,
			Deposit:     ws.Payment.DepositFee,
		})
	}
	return out, nil
}

type detailsRequest struct {
	ConfigID  string `json:"config_id"`
	Day       string `json:"day"`
	PartySize int64  `json:"party_size"`
}

type detailsResponse struct {
	BookToken struct {
		Value string `json:"value"`
	} `json:"book_token"`
	User struct {
		PaymentMethods []struct {
			ID int64 `json:"id"`
		} `json:"payment_methods"`
	} `json:"user"`
}

func (c *Client) CommitDetails(ctx context.Context, slot reservation.Slot, t reservation.Target) (reservation.CommitDetails, error) {
	jb, err := json.Marshal(detailsRequest{ConfigID: slot.Token, Day: t.Day, PartySize: int64(t.PartySize)})
	if err != nil {
		return reservation.CommitDetails{}, err
	}
	status, body, err := c.do(ctx, http.MethodPost, "/3/details", "application/json", nil, jb)
	if err != nil {
		return reservation.CommitDetails{}, err
	}
	if status >= 400 {
		return reservation.CommitDetails{}, apiError("details failed", status, body)
	}
	var res detailsResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return reservation.CommitDetails{}, fmt.Errorf("details: malformed response: %w", err)
	}
	if res.BookToken.Value == "" {
		return reservation.CommitDetails{}, fmt.Errorf("details: slot is no longer available")
	}
	d := reservation.CommitDetails{BookToken: res.BookToken.Value}
	if len(res.User.PaymentMethods) > 0 {
		d.PaymentID = strconv.FormatInt(res.User.PaymentMethods[0].ID, 10)
	}
	return d, nil
}

type bookResponse struct {
	ResyToken string `json:"resy_token"`
}

func (c *Client) Commit(ctx context.Context, bookToken, paymentID string) (string, error) {
	form := fmt.Sprintf("book_token=%s", url.QueryEscape(bookToken))
	if paymentID != "" {
		id, err := strconv.ParseInt(paymentID, 10, 64)
		if err != nil {
			return "", fmt.Errorf("book: bad payment id %q", paymentID)
		}
		pb, _ := json.Marshal(struct {
			ID int64 `json:"id"`
		}{ID: id})
		form += "&struct_payment_method=" + url.QueryEscape(string(pb))
	}
	status, body, err := c.do(ctx, http.MethodPost, "/3/book", "application/x-www-form-urlencoded", nil, []byte(form))
	if err != nil {
		return "", err
	}
	if status >= 400 {
		return "", apiError("book failed", status, body)
	}
	var res bookResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("book: malformed response: %w", err)
	}
	if res.ResyToken == "" {
		return "", fmt.Errorf("book: no confirmation in response")
	}
	return res.ResyToken, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, query map[string]string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Add("user-agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36")
	req.Header.Add("origin", "https://resy.com")
	req.Header.Add("referrer", "https://resy.com")
	req.Header.Add("x-origin", "https://resy.com")
	req.Header.Add("cache-control", "no-cache")
	if contentType != "" {
		req.Header.Add("content-type", contentType)
	}
	req.Header.Add("authorization", fmt.Sprintf(`ResyAPI api_key="%s"`, c.apiKey))
	if c.authToken != "" {
		req.Header.Add("x-resy-auth-token", c.authToken)
		req.Header.Add("x-resy-universal-auth", c.authToken)
	}

	if query != nil {
		q := req.URL.Query()
		for k, v := range query {
			q.Add(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(res.Body); err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, buf.Bytes(), nil
}

// apiError surfaces the provider's message field when present.
func apiError(op string, status int, body []byte) error {
	var r struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &r)
	if r.Message != "" {
		return fmt.Errorf("%s: %s (status=%d)", op, r.Message, status)
	}
	return fmt.Errorf("%s (status=%d)", op, status)
}

// startClock extracts the clock portion of a "YYYY-MM-DD HH:MM:SS" start.
func startClock(start string) string {
	pieces := strings.Split(start, " ")
	if len(pieces) < 2 {
		return start
	}
	return pieces[1]
}
