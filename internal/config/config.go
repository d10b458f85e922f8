package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/scrypt"
)

type Config struct {
	// Resy API access
	APIKey   string
	Email    string
	Password string

	// session record
	SessionPath     string
	SessionHashKey  []byte
	SessionBlockKey []byte

	Timezone  string
	LogLevel  string
	LogFormat string
}

// FromEnv builds the configuration from environment variables.
// The session record is sealed with a hash/block key pair; set
// SESSION_HASH_KEY and SESSION_BLOCK_KEY (base64, see the keys command)
// or a SESSION_SECRET passphrase the keys are derived from. A key value
// that names a readable file is treated as a path to the base64 value,
// for secret mounts.
func FromEnv() (Config, error) {
	cfg := Config{
		APIKey:      os.Getenv("RESY_API_KEY"),
		Email:       os.Getenv("RESY_EMAIL"),
		Password:    os.Getenv("RESY_PASSWORD"),
		SessionPath: getenv("SESSION_PATH", ".resysnipe/session"),
		Timezone:    getenv("TIMEZONE", "America/New_York"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		LogFormat:   getenv("LOG_FORMAT", "text"),
	}

	if cfg.APIKey == "" {
		return Config{}, fmt.Errorf("RESY_API_KEY is required")
	}
	if cfg.Email == "" || cfg.Password == "" {
		return Config{}, fmt.Errorf("RESY_EMAIL and RESY_PASSWORD are required")
	}

	hashKey := os.Getenv("SESSION_HASH_KEY")
	blockKey := os.Getenv("SESSION_BLOCK_KEY")
	secret := os.Getenv("SESSION_SECRET")

	switch {
	case hashKey != "" && blockKey != "":
		var err error
		cfg.SessionHashKey, err = decodeB64(hashKey)
		if err != nil {
			return Config{}, fmt.Errorf("SESSION_HASH_KEY: %w", err)
		}
		cfg.SessionBlockKey, err = decodeB64(blockKey)
		if err != nil {
			return Config{}, fmt.Errorf("SESSION_BLOCK_KEY: %w", err)
		}
	case secret != "":
		var err error
		cfg.SessionHashKey, cfg.SessionBlockKey, err = DeriveKeys(secret)
		if err != nil {
			return Config{}, fmt.Errorf("SESSION_SECRET: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("set SESSION_HASH_KEY and SESSION_BLOCK_KEY (32 bytes base64, see the keys command) or SESSION_SECRET")
	}

	return cfg, nil
}

// DeriveKeys expands a passphrase into the 32-byte hash and block keys
// used to seal the session record.
func DeriveKeys(secret string) (hashKey, blockKey []byte, err error) {
	hashKey, err = scrypt.Key([]byte(secret), []byte("resysnipe/hash"), 1<<15, 8, 1, 32)
	if err != nil {
		return nil, nil, err
	}
	blockKey, err = scrypt.Key([]byte(secret), []byte("resysnipe/block"), 1<<15, 8, 1, 32)
	if err != nil {
		return nil, nil, err
	}
	return hashKey, blockKey, nil
}

func decodeB64(s string) ([]byte, error) {
	// allow pointing to a file path for secret mounts
	if b, err := os.ReadFile(s); err == nil {
		s = string(b)
	}
	s = strings.TrimSpace(s)
	return base64.StdEncoding.DecodeString(s)
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
