// Package env loads beekeeper's credentials from the process
// environment and an optional .env file.
package env

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	KeySite       = "CKAN_SITE"
	KeyAPIKey     = "CKAN_API_KEY"
	KeyWebhook    = "SLACK_WEBHOOK_URL"
	KeyProduction = "BEEKEEPER_PRODUCTION"
)

// Loader reads variables from a .env file with the process
// environment taking precedence.
type Loader struct {
	mu   sync.RWMutex
	vars map[string]string
}

// NewLoader creates an empty Loader.
func NewLoader() *Loader {
	return &Loader{vars: make(map[string]string)}
}

// Load merges the variables of a .env file. Later files override
// earlier ones.
func (l *Loader) Load(path string) error {
	vars, err := godotenv.Read(path)
	if err != nil {
		return errors.Wrapf(err, "read env file %s", path)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range vars {
		l.vars[k] = v
	}
	return nil
}

// LoadIfExists is Load that ignores a missing file.
func (l *Loader) LoadIfExists(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return l.Load(path)
}

// Get retrieves a variable. The process environment wins.
func (l *Loader) Get(key string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.vars[key]
}

// GetRequired retrieves a variable or returns an error naming it.
func (l *Loader) GetRequired(key string) (string, error) {
	v := l.Get(key)
	if v == "" {
		return "", errors.WithHintf(
			errors.Newf("required environment variable %s is not set", key),
			"export %s or add it to the .env file", key,
		)
	}
	return v, nil
}

// GetWithDefault retrieves a variable with a fallback.
func (l *Loader) GetWithDefault(key, defaultValue string) string {
	if v := l.Get(key); v != "" {
		return v
	}
	return defaultValue
}

// GetBool parses a variable as a boolean. Unset or unparsable
// values are false.
func (l *Loader) GetBool(key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(l.Get(key)))
	return err == nil && b
}

// All returns the variables read from files.
func (l *Loader) All() map[string]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make(map[string]string, len(l.vars))
	for k, v := range l.vars {
		result[k] = v
	}
	return result
}

// Credentials are the secrets and switches a run needs.
type Credentials struct {
	Site       string
	APIKey     string
	WebhookURL string
	Production bool
}

// Credentials resolves the catalog site and keys. The site is
// required; the API key and webhook may be empty.
func (l *Loader) Credentials() (Credentials, error) {
	site, err := l.GetRequired(KeySite)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{
		Site:       strings.TrimRight(site, "/"),
		APIKey:     l.Get(KeyAPIKey),
		WebhookURL: l.Get(KeyWebhook),
		Production: l.GetBool(KeyProduction),
	}, nil
}

// Secrets lists the values that must never appear in logs.
func (c Credentials) Secrets() []string {
	return []string{c.APIKey, c.WebhookURL}
}
