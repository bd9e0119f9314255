package credentials

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotnet/mqtt-auth/pkg/observability"
	"github.com/iotnet/mqtt-auth/pkg/password"
)

// fakeStore is an in-memory Store with injectable failures and call counters.
type fakeStore struct {
	creds   map[string]*Credential
	getErr  error
	getCnt  int
	listErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{creds: map[string]*Credential{}}
}

func (s *fakeStore) GetByUsername(ctx context.Context, username string) (*Credential, error) {
	s.getCnt++
	if s.getErr != nil {
		return nil, s.getErr
	}
	cred, ok := s.creds[username]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *cred
	return &copied, nil
}

func (s *fakeStore) Create(ctx context.Context, username, secret string, isSuperuser bool) error {
	if _, ok := s.creds[username]; ok {
		return ErrConflict
	}
	s.creds[username] = &Credential{Username: username, Secret: secret, IsSuperuser: isSuperuser}
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, username string) error {
	if _, ok := s.creds[username]; !ok {
		return ErrNotFound
	}
	delete(s.creds, username)
	return nil
}

func (s *fakeStore) List(ctx context.Context) ([]*Credential, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*Credential
	for _, c := range s.creds {
		copied := *c
		out = append(out, &copied)
	}
	return out, nil
}

func (s *fakeStore) HealthCheck(ctx context.Context) error { return nil }
func (s *fakeStore) Close() error                          { return nil }

// failingCache errors on every operation, standing in for an unreachable redis.
type failingCache struct{}

func (failingCache) Get(ctx context.Context, username string) (*Credential, error) {
	return nil, errors.New("cache unavailable")
}
func (failingCache) Set(ctx context.Context, cred *Credential) error {
	return errors.New("cache unavailable")
}
func (failingCache) Invalidate(ctx context.Context, username string) error {
	return errors.New("cache unavailable")
}

// plainHasher stores secrets verbatim so tests can assert on them directly.
type plainHasher struct{}

func (plainHasher) Hash(plaintext string) (string, error) { return "hashed:" + plaintext, nil }
func (plainHasher) Verify(plaintext, secret string) bool  { return "hashed:"+plaintext == secret }

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func newTestService(t *testing.T, store Store, cache Cache) *Service {
	t.Helper()
	return NewService(store, cache, plainHasher{}, testLogger(), nil)
}

func TestServiceLookupCacheMissThenPopulate(t *testing.T) {
	store := newFakeStore()
	store.creds["alice"] = &Credential{Username: "alice", Secret: "hashed:pw"}
	cache, err := NewMemoryCache(16, time.Minute)
	require.NoError(t, err)

	svc := newTestService(t, store, cache)
	ctx := context.Background()

	cred, err := svc.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", cred.Username)
	assert.Equal(t, 1, store.getCnt)

	// Second lookup is served from the cache.
	cred, err = svc.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", cred.Username)
	assert.Equal(t, 1, store.getCnt)
}

func TestServiceLookupNotFoundIsNotCached(t *testing.T) {
	store := newFakeStore()
	cache, err := NewMemoryCache(16, time.Minute)
	require.NoError(t, err)

	svc := newTestService(t, store, cache)
	ctx := context.Background()

	_, err = svc.Lookup(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	// A user created after a miss must be visible immediately; a negative cache
	// entry would hide it.
	store.creds["alice"] = &Credential{Username: "alice", Secret: "hashed:pw"}
	cred, err := svc.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", cred.Username)
}

func TestServiceLookupCacheFailureFallsBackToStore(t *testing.T) {
	store := newFakeStore()
	store.creds["alice"] = &Credential{Username: "alice", Secret: "hashed:pw"}

	svc := newTestService(t, store, failingCache{})

	cred, err := svc.Lookup(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", cred.Username)
}

func TestServiceLookupStoreError(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")

	svc := newTestService(t, store, nil)

	_, err := svc.Lookup(context.Background(), "alice")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestServiceCreateCredential(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, nil)

	require.NoError(t, svc.CreateCredential(context.Background(), "alice", "pw", false))
	assert.Equal(t, "hashed:pw", store.creds["alice"].Secret)
}

func TestServiceCreateCredentialValidation(t *testing.T) {
	svc := newTestService(t, newFakeStore(), nil)

	err := svc.CreateCredential(context.Background(), "", "", false)
	bad, ok := AsBadRequest(err)
	require.True(t, ok)

	// Both violations are reported together, not just the first.
	require.Len(t, bad.Errors, 2)
	assert.Equal(t, "username", bad.Errors[0].Field)
	assert.Equal(t, "password", bad.Errors[1].Field)
}

func TestServiceCreateCredentialConflict(t *testing.T) {
	store := newFakeStore()
	store.creds["alice"] = &Credential{Username: "alice", Secret: "hashed:pw"}

	svc := newTestService(t, store, nil)

	err := svc.CreateCredential(context.Background(), "alice", "other", false)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestServiceCreateInvalidatesStaleCacheEntry(t *testing.T) {
	store := newFakeStore()
	cache, err := NewMemoryCache(16, time.Minute)
	require.NoError(t, err)

	// Poison the cache with an entry for a user the store no longer has.
	require.NoError(t, cache.Set(context.Background(), &Credential{Username: "alice", Secret: "stale"}))
	// Creation sees the poisoned entry as an existing user.
	svc := newTestService(t, store, cache)
	err = svc.CreateCredential(context.Background(), "alice", "pw", false)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestServiceDeleteCredential(t *testing.T) {
	store := newFakeStore()
	store.creds["alice"] = &Credential{Username: "alice", Secret: "hashed:pw"}
	cache, err := NewMemoryCache(16, time.Minute)
	require.NoError(t, err)

	svc := newTestService(t, store, cache)
	ctx := context.Background()

	// Warm the cache, then delete: the entry must not survive.
	_, err = svc.Lookup(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCredential(ctx, "alice"))

	_, err = svc.Lookup(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceDeleteCredentialNotFound(t *testing.T) {
	svc := newTestService(t, newFakeStore(), nil)

	err := svc.DeleteCredential(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceDeleteSurvivesInvalidationFailure(t *testing.T) {
	store := newFakeStore()
	store.creds["alice"] = &Credential{Username: "alice", Secret: "hashed:pw"}

	svc := newTestService(t, store, failingCache{})

	// Invalidation failure is swallowed; the mutation itself succeeded.
	require.NoError(t, svc.DeleteCredential(context.Background(), "alice"))
	assert.NotContains(t, store.creds, "alice")
}

func TestServiceListCredentials(t *testing.T) {
	store := newFakeStore()
	store.creds["alice"] = &Credential{Username: "alice", Secret: "h1"}
	store.creds["bob"] = &Credential{Username: "bob", Secret: "h2", IsSuperuser: true}

	svc := newTestService(t, store, nil)

	creds, err := svc.ListCredentials(context.Background())
	require.NoError(t, err)
	assert.Len(t, creds, 2)
}

func TestServiceCountsStoreOperations(t *testing.T) {
	store := newFakeStore()
	metrics := observability.NewMetrics(nil)
	svc := NewService(store, nil, plainHasher{}, testLogger(), metrics)
	ctx := context.Background()

	require.NoError(t, svc.CreateCredential(ctx, "alice", "pw", false))
	_, err := svc.Lookup(ctx, "alice")
	require.NoError(t, err)
	_, err = svc.Lookup(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.ListCredentials(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteCredential(ctx, "alice"))

	ops := metrics.StoreOperationsTotal
	assert.Equal(t, float64(1), testutil.ToFloat64(ops.WithLabelValues("create", "ok")))
	// The explicit lookup plus deletion's own existence check.
	assert.Equal(t, float64(2), testutil.ToFloat64(ops.WithLabelValues("get", "ok")))
	// Creation's pre-check miss plus the ghost lookup.
	assert.Equal(t, float64(2), testutil.ToFloat64(ops.WithLabelValues("get", "not_found")))
	assert.Equal(t, float64(1), testutil.ToFloat64(ops.WithLabelValues("list", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(ops.WithLabelValues("delete", "ok")))
}

func TestServiceGetCredentialsRoundTrip(t *testing.T) {
	hasher, err := password.NewAESGCMHasher("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	require.NoError(t, err)

	store := newFakeStore()
	svc := NewService(store, nil, hasher, testLogger(), nil)
	ctx := context.Background()

	require.NoError(t, svc.CreateCredential(ctx, "alice", "device-password", false))

	plain, err := svc.GetCredentials(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", plain.Username)
	assert.Equal(t, "device-password", plain.Password)
}

func TestServiceGetCredentialsRequiresDecrypter(t *testing.T) {
	store := newFakeStore()
	store.creds["alice"] = &Credential{Username: "alice", Secret: "hashed:pw"}

	// plainHasher is not a Decrypter, so retrieval must refuse.
	svc := newTestService(t, store, nil)

	_, err := svc.GetCredentials(context.Background(), "alice")
	assert.Error(t, err)
}
