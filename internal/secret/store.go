package secret

import (
	"errors"

	"github.com/zalando/go-keyring"

	"github.com/skybox-dev/skybox/internal/logging"
)

const (
	// Service is the keyring service name under which all credentials live.
	Service = "skybox"

	// TokenAccount is the account holding the cloud control plane token.
	TokenAccount = "cloud-api-token"
)

// ErrNotFound is returned when no credential exists for a service/account
// pair in any backend.
var ErrNotFound = errors.New("credential not found")

// Store reads and writes named credentials.
type Store interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
	Delete(service, account string) error
}

// Open returns the default credential store: the OS keyring, degrading
// to a credentials file at path when the keyring is unreachable.
func Open(path string) Store {
	return NewKeyringStore(NewFileStore(path))
}

// KeyringStore persists credentials in the OS keyring. Every operation
// degrades to the fallback store on keyring failure, so a locked or
// absent keyring never blocks auth.
type KeyringStore struct {
	fallback Store
}

// NewKeyringStore creates a keyring store with an optional fallback.
func NewKeyringStore(fallback Store) *KeyringStore {
	return &KeyringStore{fallback: fallback}
}

// Get reads a credential from the keyring, then from the fallback. The
// fallback is consulted on keyring misses too: a credential written
// while the keyring was unavailable lives only in the file.
func (s *KeyringStore) Get(service, account string) (string, error) {
	value, err := keyring.Get(service, account)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		logging.Debug("keyring unavailable, reading credentials file", "error", err)
	}
	if s.fallback != nil {
		return s.fallback.Get(service, account)
	}
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return "", err
}

// Set writes a credential to the keyring, or to the fallback when the
// keyring rejects the write.
func (s *KeyringStore) Set(service, account, value string) error {
	err := keyring.Set(service, account, value)
	if err == nil {
		return nil
	}
	if s.fallback == nil {
		return err
	}
	logging.Debug("keyring unavailable, writing credentials file", "error", err)
	return s.fallback.Set(service, account, value)
}

// Delete removes a credential from every backend that holds it.
func (s *KeyringStore) Delete(service, account string) error {
	kerr := keyring.Delete(service, account)
	deleted := kerr == nil

	if s.fallback != nil {
		ferr := s.fallback.Delete(service, account)
		if ferr == nil {
			deleted = true
		} else if !errors.Is(ferr, ErrNotFound) {
			return ferr
		}
	}

	if deleted {
		return nil
	}
	return ErrNotFound
}

// Ensure KeyringStore implements Store
var _ Store = (*KeyringStore)(nil)
