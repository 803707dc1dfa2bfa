package cli

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

// ErrNoKey is returned when a command needs a signing key and none exists
var ErrNoKey = errors.New("no signing key found; run 'ccgame keys generate'")

// Config holds CLI configuration
type Config struct {
	ServerURL string
	KeyFile   string
	Output    string
	Verbose   bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL: getEnvOrDefault("CCGAME_SERVER", "http://localhost:8080"),
		KeyFile:   getEnvOrDefault("CCGAME_KEY_FILE", defaultKeyFile()),
		Output:    "text",
		Verbose:   false,
	}
}

// LoadKey reads the Ed25519 signing key from the key file
func (c *Config) LoadKey() (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(c.KeyFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoKey
		}
		return nil, err
	}

	raw, err := ssh.ParseRawPrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse key file %s: %w", c.KeyFile, err)
	}
	switch k := raw.(type) {
	case ed25519.PrivateKey:
		return k, nil
	case *ed25519.PrivateKey:
		return *k, nil
	default:
		return nil, fmt.Errorf("key file %s does not hold an ed25519 key", c.KeyFile)
	}
}

// GenerateKey creates a new Ed25519 key and writes it to the key file in
// OpenSSH format. An existing file is only replaced when overwrite is set.
func (c *Config) GenerateKey(overwrite bool) (ed25519.PrivateKey, error) {
	if !overwrite {
		if _, err := os.Stat(c.KeyFile); err == nil {
			return nil, fmt.Errorf("key file %s already exists (use --force to replace it)", c.KeyFile)
		}
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	block, err := ssh.MarshalPrivateKey(priv, "ccgame")
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(c.KeyFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(c.KeyFile, pem.EncodeToMemory(block), 0600); err != nil {
		return nil, err
	}
	return priv, nil
}

func defaultKeyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ccgame/id_ed25519"
	}
	return filepath.Join(home, ".ccgame", "id_ed25519")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
