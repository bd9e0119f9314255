package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iotnet/mqtt-auth/pkg/observability"
	"github.com/iotnet/mqtt-auth/pkg/password"
)

// PlainCredentials is the decrypted username/password pair returned to
// provisioning flows when the reversible secret mode is active.
type PlainCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Service orchestrates credential mutations and lookups across the authoritative
// store and the advisory cache.
type Service struct {
	store   Store
	cache   Cache
	hasher  password.Hasher
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewService wires a credential service. metrics may be nil.
func NewService(store Store, cache Cache, hasher password.Hasher, logger *observability.Logger, metrics *observability.Metrics) *Service {
	if cache == nil {
		cache = NoopCache{}
	}
	return &Service{
		store:   store,
		cache:   cache,
		hasher:  hasher,
		logger:  logger,
		metrics: metrics,
	}
}

// Lookup resolves a credential cache-first with store fallback. Cache failures of
// any kind degrade to a miss; a store miss is returned as ErrNotFound and is
// never negative-cached, so a freshly created user is visible immediately.
func (s *Service) Lookup(ctx context.Context, username string) (*Credential, error) {
	cached, err := s.cache.Get(ctx, username)
	if err != nil {
		s.logger.WithError(err).WithField("username", username).Warn("cache read failed, falling back to store")
		s.countCacheError("get")
	}
	if cached != nil {
		s.logger.WithField("username", username).Debug("cache hit")
		if s.metrics != nil {
			s.metrics.CacheHitsTotal.Inc()
		}
		return cached, nil
	}
	if s.metrics != nil {
		s.metrics.CacheMissesTotal.Inc()
	}

	cred, err := s.store.GetByUsername(ctx, username)
	s.countStoreOp("get", err)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("store lookup failed: %w", err)
	}

	if err := s.cache.Set(ctx, cred); err != nil {
		// Population is best-effort; the next lookup just pays the store trip again.
		s.logger.WithError(err).WithField("username", username).Warn("cache populate failed")
		s.countCacheError("set")
	}

	return cred, nil
}

// CreateCredential validates, hashes, and persists a new credential. The
// existence pre-check is advisory; the store's unique constraint is what rules
// under concurrent creates.
func (s *Service) CreateCredential(ctx context.Context, username, plaintext string, isSuperuser bool) error {
	var violations []ValidationError
	if strings.TrimSpace(username) == "" {
		violations = append(violations, ValidationError{Field: "username", Message: "username cannot be empty"})
	}
	if strings.TrimSpace(plaintext) == "" {
		violations = append(violations, ValidationError{Field: "password", Message: "password cannot be empty"})
	}
	if len(violations) > 0 {
		return &BadRequestError{Errors: violations}
	}

	_, err := s.Lookup(ctx, username)
	if err == nil {
		return ErrConflict
	}
	if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("existence check failed: %w", err)
	}

	secret, err := s.hasher.Hash(plaintext)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.store.Create(ctx, username, secret, isSuperuser)
	s.countStoreOp("create", err)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return ErrConflict
		}
		return fmt.Errorf("failed to persist credential: %w", err)
	}

	// Defensive: a stale cache entry for this name must not outlive the mutation.
	if err := s.cache.Invalidate(ctx, username); err != nil {
		s.logger.WithError(err).WithField("username", username).Warn("cache invalidate failed after create")
		s.countCacheError("invalidate")
	}

	s.logger.WithField("username", username).Info("mqtt user created")
	return nil
}

// DeleteCredential removes a credential and invalidates its cache entry. The
// delete is hard: afterwards the username simply does not exist.
func (s *Service) DeleteCredential(ctx context.Context, username string) error {
	if strings.TrimSpace(username) == "" {
		return &BadRequestError{Errors: []ValidationError{
			{Field: "username", Message: "username cannot be empty"},
		}}
	}

	if _, err := s.Lookup(ctx, username); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("existence check failed: %w", err)
	}

	err := s.store.Delete(ctx, username)
	s.countStoreOp("delete", err)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	// Invalidation failure must not fail the mutation; staleness is bounded by TTL.
	if err := s.cache.Invalidate(ctx, username); err != nil {
		s.logger.WithError(err).WithField("username", username).Warn("cache invalidate failed after delete")
		s.countCacheError("invalidate")
	}

	s.logger.WithField("username", username).Info("mqtt user deleted")
	return nil
}

// ListCredentials enumerates every live credential straight from the store. The
// cache is bypassed: its TTL-partial content would make the listing incomplete.
func (s *Service) ListCredentials(ctx context.Context) ([]*Credential, error) {
	creds, err := s.store.List(ctx)
	s.countStoreOp("list", err)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	return creds, nil
}

// GetCredentials returns the decrypted password for provisioning flows. Only
// valid when the active hasher is reversible; a decryption failure is an internal
// fault, not a missing user.
func (s *Service) GetCredentials(ctx context.Context, username string) (*PlainCredentials, error) {
	dec, ok := s.hasher.(password.Decrypter)
	if !ok {
		return nil, fmt.Errorf("credential retrieval requires the reversible secret mode")
	}

	cred, err := s.Lookup(ctx, username)
	if err != nil {
		return nil, err
	}

	plaintext, err := dec.Decrypt(cred.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credential: %w", err)
	}

	return &PlainCredentials{Username: cred.Username, Password: plaintext}, nil
}

// Hasher exposes the active secret strategy to the decision layer.
func (s *Service) Hasher() password.Hasher {
	return s.hasher
}

func (s *Service) countCacheError(operation string) {
	if s.metrics != nil {
		s.metrics.CacheErrorsTotal.WithLabelValues(operation).Inc()
	}
}

// countStoreOp records the outcome of one authoritative-store operation. The
// domain sentinels count under their own status so scrapes separate "user does
// not exist" from backend faults.
func (s *Service) countStoreOp(operation string, err error) {
	if s.metrics == nil {
		return
	}

	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case errors.Is(err, ErrConflict):
		status = "conflict"
	default:
		status = "error"
	}
	s.metrics.StoreOperationsTotal.WithLabelValues(operation, status).Inc()
}
