package identity

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtycrm/pkg/persistence"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := persistence.InitializeDatabase(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})
	return NewService(persistence.NewStore(db), "test-signing-secret", 30*time.Minute)
}

func TestSignUpAndSignIn(t *testing.T) {
	svc := newTestService(t)

	user, err := svc.SignUp("Agent@Example.com", "hunter2hunter2", "Test Agent")
	require.NoError(t, err)
	assert.Equal(t, "agent@example.com", user.Email)
	assert.NotEqual(t, "hunter2hunter2", user.PasswordHash)

	token, signedIn, err := svc.SignIn("agent@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, signedIn.ID)
}

func TestSignUpValidation(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.SignUp("not-an-email", "hunter2hunter2", "")
	assert.Error(t, err)

	_, err = svc.SignUp("agent@example.com", "short", "")
	assert.Error(t, err)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.SignUp("agent@example.com", "hunter2hunter2", "")
	require.NoError(t, err)

	_, err = svc.SignUp("agent@example.com", "hunter2hunter2", "")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignInWrongPassword(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.SignUp("agent@example.com", "hunter2hunter2", "")
	require.NoError(t, err)

	_, _, err = svc.SignIn("agent@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.SignIn("nobody@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newTestService(t)

	user, err := svc.SignUp("agent@example.com", "hunter2hunter2", "")
	require.NoError(t, err)

	token, err := svc.GenerateToken(user)
	require.NoError(t, err)

	validated, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, validated.ID)
	assert.Equal(t, user.Email, validated.Email)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc := newTestService(t)
	user, err := svc.SignUp("agent@example.com", "hunter2hunter2", "")
	require.NoError(t, err)

	imposter := NewService(svc.store, "different-secret", 30*time.Minute)
	token, err := imposter.GenerateToken(user)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredToken(t *testing.T) {
	svc := newTestService(t)
	user, err := svc.SignUp("agent@example.com", "hunter2hunter2", "")
	require.NoError(t, err)

	expiring := NewService(svc.store, "test-signing-secret", -time.Minute)
	token, err := expiring.GenerateToken(user)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
