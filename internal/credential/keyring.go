package credential

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "jira-import"

// tokenEnv overrides the keyring lookup when set.
const tokenEnv = "JIRA_IMPORT_TOKEN"

// ErrNotFound is returned when no token is stored for a JIRA instance.
var ErrNotFound = errors.New("credential not found")

// Jira is the credential used to talk to one JIRA instance.
type Jira struct {
	BaseURL  string
	Username string
	Token    string
}

// Store reads and writes secrets. The keyring-backed implementation is
// returned by Open.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

type keyringStore struct {
	ring keyring.Keyring
}

// Open returns a Store backed by the system keyring, falling back to an
// encrypted file under ~/.config/jira-import/credentials.
func Open() (Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/jira-import/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("jira-import-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &keyringStore{ring: ring}, nil
}

// NewMemory returns a Store that keeps secrets in memory only.
func NewMemory() Store {
	return &keyringStore{ring: keyring.NewArrayKeyring(nil)}
}

// Get retrieves a credential value by key from the system keyring.
func (s *keyringStore) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func (s *keyringStore) Set(key string, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "JIRA token (" + key + ")",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a credential by key from the system keyring.
func (s *keyringStore) Delete(key string) error {
	if err := s.ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// JiraKey returns the keyring key under which the token for baseURL is
// kept.
func JiraKey(baseURL string) string {
	return "jira-" + strings.TrimRight(baseURL, "/")
}

// LoadJira assembles the credential for baseURL. The JIRA_IMPORT_TOKEN
// environment variable takes precedence over the stored token.
func LoadJira(s Store, baseURL, username string) (Jira, error) {
	cred := Jira{BaseURL: strings.TrimRight(baseURL, "/"), Username: username}

	if token := os.Getenv(tokenEnv); token != "" {
		cred.Token = token
		return cred, nil
	}
	if s == nil {
		return cred, fmt.Errorf("no token for %s: %w", cred.BaseURL, ErrNotFound)
	}

	token, err := s.Get(JiraKey(baseURL))
	if err != nil {
		return cred, err
	}
	if token == "" {
		return cred, fmt.Errorf("empty token for %s: %w", cred.BaseURL, ErrNotFound)
	}
	cred.Token = token
	return cred, nil
}

// SaveJira stores token as the credential for baseURL.
func SaveJira(s Store, baseURL, token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("token must not be empty")
	}
	return s.Set(JiraKey(baseURL), token)
}
