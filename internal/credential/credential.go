// Package credential manages account registration and authentication.
// Passwords are never stored or transmitted in recoverable form; each account
// keeps a unique random salt, an iteration count and a PBKDF2-SHA256 verifier,
// and authentication recomputes the derivation and compares in constant time.
package credential

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"secure-ehr-gateway/internal/models"
	"secure-ehr-gateway/internal/storage"
)

const (
	saltLen     = 16
	verifierLen = 32
)

// ErrInvalidCredentials is returned for both an unknown username and a wrong
// password, so a caller cannot enumerate accounts.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrDuplicateUser is returned when registering a username that already exists.
var ErrDuplicateUser = errors.New("account already exists")

// Manager owns account credentials.
type Manager struct {
	store      storage.AccountStore
	iterations int
}

// NewManager creates a credential manager using the given PBKDF2 work
// parameter for newly created verifiers.
func NewManager(store storage.AccountStore, iterations int) *Manager {
	return &Manager{store: store, iterations: iterations}
}

// Register creates an account with a fresh salt and verifier.
func (m *Manager) Register(ctx context.Context, username, password string, role models.Role) (*models.Account, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	_, err := m.store.FindAccount(ctx, username)
	if err == nil {
		return nil, ErrDuplicateUser
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	account := &models.Account{
		Username:   username,
		Salt:       salt,
		Verifier:   derive(password, salt, m.iterations),
		Iterations: m.iterations,
		Role:       role,
	}
	if err := m.store.CreateAccount(ctx, account); err != nil {
		// The pre-check races against concurrent registrations; the unique
		// index is the authority.
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}
	return account, nil
}

// Authenticate verifies a username/password pair. Failure is uniform: an
// unknown username still pays for a full derivation so the two cases cannot
// be told apart by timing either.
func (m *Manager) Authenticate(ctx context.Context, username, password string) (*models.Account, error) {
	account, err := m.store.FindAccount(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		derive(password, make([]byte, saltLen), m.iterations)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	candidate := derive(password, account.Salt, account.Iterations)
	if subtle.ConstantTimeCompare(candidate, account.Verifier) != 1 {
		return nil, ErrInvalidCredentials
	}
	return account, nil
}

// RotatePassword replaces the verifier and salt after checking the old
// password. The new verifier always uses the manager's current work parameter,
// so rotation also upgrades accounts created under a weaker one.
func (m *Manager) RotatePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	account, err := m.Authenticate(ctx, username, oldPassword)
	if err != nil {
		return err
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	account.Salt = salt
	account.Verifier = derive(newPassword, salt, m.iterations)
	account.Iterations = m.iterations

	return m.store.SaveAccount(ctx, account)
}

func derive(password string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, verifierLen, sha256.New)
}
