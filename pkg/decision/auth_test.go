package decision

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotnet/mqtt-auth/pkg/credentials"
	"github.com/iotnet/mqtt-auth/pkg/observability"
	"github.com/iotnet/mqtt-auth/pkg/password"
	"github.com/iotnet/mqtt-auth/pkg/token"
)

func newTestCredentials(t *testing.T) *credentials.Service {
	t.Helper()

	store, err := credentials.NewBadgerStoreInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return credentials.NewService(store, nil, password.NewArgon2Hasher(), logger, nil)
}

func newTestAuthService(t *testing.T) (*AuthService, *credentials.Service) {
	t.Helper()

	creds := newTestCredentials(t)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	issuer := token.NewIssuer("signing-secret", 0)
	return NewAuthService(creds, issuer, logger, nil), creds
}

func TestParseAuthMethod(t *testing.T) {
	method, ok := ParseAuthMethod("credentials")
	assert.True(t, ok)
	assert.Equal(t, MethodCredentials, method)

	method, ok = ParseAuthMethod("JWT")
	assert.True(t, ok)
	assert.Equal(t, MethodJwt, method)

	_, ok = ParseAuthMethod("")
	assert.False(t, ok)
	_, ok = ParseAuthMethod("kerberos")
	assert.False(t, ok)
}

func TestAuthenticateWithCredentials(t *testing.T) {
	svc, creds := newTestAuthService(t)
	ctx := context.Background()

	require.NoError(t, creds.CreateCredential(ctx, "alice", "pw", false))

	result, err := svc.Authenticate(ctx, AuthRequest{
		Username: "alice",
		Password: "pw",
		Method:   MethodCredentials,
	})
	require.NoError(t, err)
	assert.True(t, result.Granted)
	assert.Empty(t, result.Token)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc, creds := newTestAuthService(t)
	ctx := context.Background()

	require.NoError(t, creds.CreateCredential(ctx, "alice", "pw", false))

	_, err := svc.Authenticate(ctx, AuthRequest{
		Username: "alice",
		Password: "nope",
		Method:   MethodCredentials,
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateUnknownUser(t *testing.T) {
	svc, _ := newTestAuthService(t)

	_, err := svc.Authenticate(context.Background(), AuthRequest{
		Username: "ghost",
		Password: "pw",
		Method:   MethodCredentials,
	})
	assert.ErrorIs(t, err, credentials.ErrNotFound)
}

func TestAuthenticateWithJwt(t *testing.T) {
	svc, creds := newTestAuthService(t)
	ctx := context.Background()

	require.NoError(t, creds.CreateCredential(ctx, "alice", "pw", false))

	result, err := svc.Authenticate(ctx, AuthRequest{
		Username: "alice",
		Method:   MethodJwt,
	})
	require.NoError(t, err)
	assert.True(t, result.Granted)
	require.NotEmpty(t, result.Token)

	// The issued token carries the username and round-trips verification.
	claims, err := token.NewIssuer("signing-secret", 0).Verify(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, token.Subject, claims.Subject)
}

func TestAuthenticateJwtUnknownUser(t *testing.T) {
	svc, _ := newTestAuthService(t)

	// Token issuance still requires an existing user.
	_, err := svc.Authenticate(context.Background(), AuthRequest{
		Username: "ghost",
		Method:   MethodJwt,
	})
	assert.ErrorIs(t, err, credentials.ErrNotFound)
}

func TestAuthenticateValidation(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	// Empty username and empty method are both reported.
	_, err := svc.Authenticate(ctx, AuthRequest{})
	bad, ok := credentials.AsBadRequest(err)
	require.True(t, ok)
	require.Len(t, bad.Errors, 2)
	assert.Equal(t, "username", bad.Errors[0].Field)
	assert.Equal(t, "method", bad.Errors[1].Field)

	// Credentials method with no password.
	_, err = svc.Authenticate(ctx, AuthRequest{
		Username: "alice",
		Method:   MethodCredentials,
	})
	bad, ok = credentials.AsBadRequest(err)
	require.True(t, ok)
	require.Len(t, bad.Errors, 1)
	assert.Equal(t, "password", bad.Errors[0].Field)

	// The jwt method needs no password.
	_, err = svc.Authenticate(ctx, AuthRequest{
		Username: "ghost",
		Method:   MethodJwt,
	})
	assert.ErrorIs(t, err, credentials.ErrNotFound)
}
