package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kumudkode/lms-apiserver/types"
)

const testSecret = "unit-test-secret-with-enough-entropy"

func newTestCredentials(t *testing.T, ttl time.Duration) *CredentialService {
	t.Helper()
	svc, err := NewCredentialService(testSecret, 4, ttl)
	require.NoError(t, err)
	return svc
}

func TestNewCredentialService_RejectsWeakSecrets(t *testing.T) {
	for _, secret := range []string{"", "secret", "secretKey", "changeme"} {
		_, err := NewCredentialService(secret, 4, time.Hour)
		require.ErrorIs(t, err, ErrWeakSecret, "secret %q", secret)
	}
}

func TestHashPassword_VerifyRoundtrip(t *testing.T) {
	svc := newTestCredentials(t, time.Hour)

	hash, err := svc.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.NotEqual(t, "correct horse battery staple", hash)

	require.True(t, svc.VerifyPassword(hash, "correct horse battery staple"))
	require.False(t, svc.VerifyPassword(hash, "correct horse battery stapl"))
	require.False(t, svc.VerifyPassword(hash, ""))
}

func TestHashPassword_DistinctSalts(t *testing.T) {
	svc := newTestCredentials(t, time.Hour)

	first, err := svc.HashPassword("same password")
	require.NoError(t, err)
	second, err := svc.HashPassword("same password")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
}

func TestIssueToken_ParseRoundtrip(t *testing.T) {
	svc := newTestCredentials(t, time.Hour)

	user := types.User{
		ID:        42,
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Role:      types.RoleStudent,
	}

	token, err := svc.IssueToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, "42", claims.Subject)
	require.Equal(t, "ada@example.com", claims.Email)
	require.Equal(t, "Ada", claims.FirstName)
	require.Equal(t, types.RoleStudent, claims.Role)
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestParseToken_RejectsExpired(t *testing.T) {
	// Constructed directly: the constructor replaces non-positive TTLs
	// with the default, and an already-expired token is the point here.
	svc := &CredentialService{secret: []byte(testSecret), bcryptCost: minBcryptCost, tokenTTL: -time.Minute}

	token, err := svc.IssueToken(types.User{ID: 1, Email: "a@b.c", Role: types.RoleStudent})
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	require.Error(t, err)
}

func TestNewCredentialService_Defaults(t *testing.T) {
	svc, err := NewCredentialService(testSecret, 0, 0)
	require.NoError(t, err)
	require.Equal(t, defaultTokenTTL, svc.TokenTTL())
	require.Equal(t, minBcryptCost, svc.bcryptCost)
}

func TestParseToken_RejectsForeignSignature(t *testing.T) {
	svc := newTestCredentials(t, time.Hour)
	other, err := NewCredentialService("a-different-secret-entirely-here", 4, time.Hour)
	require.NoError(t, err)

	token, err := other.IssueToken(types.User{ID: 1, Email: "a@b.c", Role: types.RoleStudent})
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	require.Error(t, err)
}

func TestParseToken_RejectsGarbage(t *testing.T) {
	svc := newTestCredentials(t, time.Hour)

	for _, token := range []string{"", "not-a-jwt", "aaaa.bbbb.cccc"} {
		_, err := svc.ParseToken(token)
		require.Error(t, err, "token %q", token)
	}
}
