package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/loginguard/testutils"
)

func setupStore(t *testing.T) *Store {
	db := testutils.SetupTestDB(t, &AdminUser{})
	return NewStore(db, nil)
}

func TestStore_Verify_Success(t *testing.T) {
	store := setupStore(t)

	created, err := store.Create("ops@example.com", "correct horse battery")
	require.NoError(t, err)

	user, err := store.Verify("ops@example.com", "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
}

func TestStore_Verify_NormalizesEmail(t *testing.T) {
	store := setupStore(t)

	_, err := store.Create("Ops@Example.com", "correct horse battery")
	require.NoError(t, err)

	user, err := store.Verify("  OPS@EXAMPLE.COM ", "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", user.Email)
}

func TestStore_Verify_UniformFailure(t *testing.T) {
	store := setupStore(t)

	created, err := store.Create("ops@example.com", "correct horse battery")
	require.NoError(t, err)

	// Wrong password, unknown email, and disabled account are
	// indistinguishable to the caller.
	_, err = store.Verify("ops@example.com", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = store.Verify("nobody@example.com", "correct horse battery")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, store.db.Model(created).Update("disabled", true).Error)
	_, err = store.Verify("ops@example.com", "correct horse battery")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestStore_Verify_NeverReturnsHash(t *testing.T) {
	store := setupStore(t)

	_, err := store.Create("ops@example.com", "correct horse battery")
	require.NoError(t, err)

	user, err := store.Verify("ops@example.com", "correct horse battery")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery", user.PasswordHash, "hash must not be the plaintext")
}
