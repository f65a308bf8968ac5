package credential

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secure-ehr-gateway/internal/models"
	"secure-ehr-gateway/internal/storage"
)

// testIterations keeps the deliberately slow derivation fast enough for tests.
const testIterations = 1000

func newManager() (*Manager, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	return NewManager(store, testIterations), store
}

func TestRegisterThenAuthenticate(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	account, err := m.Register(ctx, "alice", "Secretpass1", models.RoleH)
	require.NoError(t, err)
	assert.Equal(t, models.RoleH, account.Role)

	got, err := m.Authenticate(ctx, "alice", "Secretpass1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}

func TestAuthenticateFailureIsUniform(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	_, err := m.Register(ctx, "alice", "Secretpass1", models.RoleH)
	require.NoError(t, err)

	// Wrong password and unknown username must be indistinguishable.
	_, wrongPw := m.Authenticate(ctx, "alice", "not-the-password")
	_, noUser := m.Authenticate(ctx, "nobody", "whatever")
	assert.ErrorIs(t, wrongPw, ErrInvalidCredentials)
	assert.ErrorIs(t, noUser, ErrInvalidCredentials)
	assert.Equal(t, wrongPw.Error(), noUser.Error())
}

func TestRegisterDuplicate(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	_, err := m.Register(ctx, "alice", "Secretpass1", models.RoleH)
	require.NoError(t, err)
	_, err = m.Register(ctx, "alice", "Otherpass2", models.RoleR)
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

// racingStore never finds an account, so Register's insert is the only
// duplicate guard, as happens when two registrations race past the pre-check.
type racingStore struct {
	*storage.MemoryStore
}

func (s *racingStore) FindAccount(ctx context.Context, username string) (*models.Account, error) {
	return nil, storage.ErrNotFound
}

func TestRegisterDuplicateCaughtByUniqueIndex(t *testing.T) {
	store := &racingStore{MemoryStore: storage.NewMemoryStore()}
	m := NewManager(store, testIterations)
	ctx := context.Background()

	_, err := m.Register(ctx, "alice", "Secretpass1", models.RoleH)
	require.NoError(t, err)
	_, err = m.Register(ctx, "alice", "Otherpass2", models.RoleH)
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	m, _ := newManager()
	_, err := m.Register(context.Background(), "alice", "Secretpass1", models.Role("X"))
	assert.Error(t, err)
}

func TestStoredAccountRevealsNoPassword(t *testing.T) {
	m, store := newManager()
	ctx := context.Background()

	_, err := m.Register(ctx, "alice", "Secretpass1", models.RoleH)
	require.NoError(t, err)

	account, err := store.FindAccount(ctx, "alice")
	require.NoError(t, err)
	assert.NotContains(t, string(account.Verifier), "Secretpass1")
	assert.NotContains(t, string(account.Salt), "Secretpass1")
	assert.Equal(t, testIterations, account.Iterations)

	// Same password, different account: the random salt must yield a
	// different verifier, so verifiers do not even leak password equality.
	_, err = m.Register(ctx, "carol", "Secretpass1", models.RoleR)
	require.NoError(t, err)
	other, err := store.FindAccount(ctx, "carol")
	require.NoError(t, err)
	assert.NotEqual(t, account.Salt, other.Salt)
	assert.NotEqual(t, account.Verifier, other.Verifier)
}

func TestRotatePassword(t *testing.T) {
	m, store := newManager()
	ctx := context.Background()

	_, err := m.Register(ctx, "alice", "Secretpass1", models.RoleH)
	require.NoError(t, err)
	before, err := store.FindAccount(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, m.RotatePassword(ctx, "alice", "Secretpass1", "Newsecret2"))

	_, err = m.Authenticate(ctx, "alice", "Secretpass1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = m.Authenticate(ctx, "alice", "Newsecret2")
	assert.NoError(t, err)

	after, err := store.FindAccount(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, before.Salt, after.Salt, "rotation must re-salt")

	// Rotation with the wrong old password must fail uniformly.
	err = m.RotatePassword(ctx, "alice", "Secretpass1", "Another3")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
