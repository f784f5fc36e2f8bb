// Package config loads the relay pool client's configuration from a .env
// file or the process environment, in that order, the way the teacher's own
// entry/exit commands load theirs.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ClientConfig is the environment-driven configuration for a relay pool
// client: the relay set to connect to, the identity key to sign with, a
// SOCKS5 proxy applied to every relay, and an ack timeout. AckTimeoutSec is
// parsed but not applied by cmd/relaypoolctl, whose relays use their default
// ack timeout.
type ClientConfig struct {
	NostrRelays     []string `env:"NOSTR_RELAYS" envSeparator:";"`
	NostrPrivateKey string   `env:"NOSTR_PRIVATE_KEY"`
	SocksProxy      string   `env:"SOCKS_PROXY"`
	AckTimeoutSec   int      `env:"ACK_TIMEOUT_SEC" envDefault:"10"`
}

// LoadConfig loads and marshals configuration of type T from a .env file in
// the user's home directory or the working directory if present, falling
// back to the os environment variables otherwise.
func LoadConfig[T any]() (*T, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		slog.Error("error loading home directory", "error", err)
	}
	if homeDir != "" {
		if _, err := os.Stat(homeDir + "/.env"); err == nil {
			return loadFromEnv[T](homeDir + "/.env")
		}
	}
	if _, err := os.Stat(".env"); err == nil {
		return loadFromEnv[T]("")
	}
	return loadFromEnv[T]("")
}

// loadFromEnv loads the configuration from the specified .env file path. If
// path is empty it looks for .env in the working directory; either way a
// missing file is not an error, since the os environment can still satisfy
// every field.
func loadFromEnv[T any](path string) (*T, error) {
	if path != "" {
		_ = godotenv.Load(path)
	} else {
		_ = godotenv.Load()
	}

	cfg, err := env.ParseAs[T]()
	if err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return &cfg, nil
}
