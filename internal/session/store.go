package session

import (
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/securecookie"
)

// storeName is the securecookie name the record is sealed under.
const storeName = "resysnipe_session"

// Session is the cached provider credential: auth token, payment method
// used to settle deposits, and the local expiry instant. Replaced
// wholesale when it expires, never patched.
type Session struct {
	Token     string    `json:"token"`
	PaymentID string    `json:"payment_id"`
	Expiry    time.Time `json:"expiry"`
}

func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && now.Before(s.Expiry)
}

// Store persists one Session to a sealed file so it survives process
// restarts. The path is keyed by working context (default lives under
// the current directory); no file locking is done, so two instances
// sharing a path race on read/write.
type Store struct {
	path string
	sc   *securecookie.SecureCookie
}

func NewStore(path string, hashKey, blockKey []byte) *Store {
	sc := securecookie.New(hashKey, blockKey)
	// expiry lives in the record itself
	sc.MaxAge(0)
	return &Store{path: path, sc: sc}
}

// Load reads the sealed record. Any failure (missing file, tampered
// payload, foreign keys) reads as "no cached session".
func (s *Store) Load() (Session, bool) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return Session{}, false
	}
	var sess Session
	if err := s.sc.Decode(storeName, string(b), &sess); err != nil {
		return Session{}, false
	}
	return sess, true
}

// Save overwrites the record wholesale.
func (s *Store) Save(sess Session) error {
	sealed, err := s.sc.Encode(storeName, sess)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, []byte(sealed), 0o600)
}
