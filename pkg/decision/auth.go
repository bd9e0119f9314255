// Package decision implements the allow/deny engines consulted by the broker's
// auth hook: client authentication and topic authorization.
package decision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iotnet/mqtt-auth/pkg/credentials"
	"github.com/iotnet/mqtt-auth/pkg/observability"
	"github.com/iotnet/mqtt-auth/pkg/token"
)

// AuthMethod selects how a connecting client proves its identity.
type AuthMethod string

const (
	// MethodCredentials verifies the presented password against the stored secret.
	MethodCredentials AuthMethod = "credentials"
	// MethodJwt issues a short-lived bearer token for the username.
	MethodJwt AuthMethod = "jwt"
)

// ParseAuthMethod maps a wire string to an AuthMethod, empty string meaning
// "missing".
func ParseAuthMethod(s string) (AuthMethod, bool) {
	switch AuthMethod(strings.ToLower(s)) {
	case MethodCredentials:
		return MethodCredentials, true
	case MethodJwt:
		return MethodJwt, true
	default:
		return "", false
	}
}

// AuthRequest is one authentication attempt.
type AuthRequest struct {
	Username string
	Password string
	Method   AuthMethod
}

// AuthResult is a granted decision; Token is empty for the credentials method.
type AuthResult struct {
	Granted bool
	Token   string
}

var (
	// ErrInvalidCredentials means the username exists but the password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenIssuance means signing the bearer token failed; an internal fault,
	// not a user input problem.
	ErrTokenIssuance = errors.New("token issuance failed")
)

// AuthService decides whether a connecting client may authenticate. Stateless
// between calls apart from cache population through the lookup path.
type AuthService struct {
	creds   *credentials.Service
	issuer  *token.Issuer
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewAuthService wires an authentication decision service. metrics may be nil.
func NewAuthService(creds *credentials.Service, issuer *token.Issuer, logger *observability.Logger, metrics *observability.Metrics) *AuthService {
	return &AuthService{creds: creds, issuer: issuer, logger: logger, metrics: metrics}
}

// Authenticate runs the decision state machine: validate input, look up the
// credential, then verify the password or issue a token depending on the method.
func (s *AuthService) Authenticate(ctx context.Context, req AuthRequest) (*AuthResult, error) {
	if err := validateAuthRequest(req); err != nil {
		s.count(string(req.Method), "bad_request")
		return nil, err
	}

	cred, err := s.creds.Lookup(ctx, req.Username)
	if errors.Is(err, credentials.ErrNotFound) {
		s.logger.WithField("username", req.Username).Debug("auth denied: user not found")
		s.count(string(req.Method), "not_found")
		return nil, credentials.ErrNotFound
	} else if err != nil {
		s.count(string(req.Method), "error")
		return nil, err
	}

	switch req.Method {
	case MethodCredentials:
		if !s.creds.Hasher().Verify(req.Password, cred.Secret) {
			s.logger.WithField("username", req.Username).Debug("auth denied: invalid credentials")
			s.count(string(req.Method), "denied")
			return nil, ErrInvalidCredentials
		}
		s.count(string(req.Method), "granted")
		return &AuthResult{Granted: true}, nil

	case MethodJwt:
		signed, err := s.issuer.Issue(req.Username)
		if err != nil {
			s.logger.WithError(err).WithField("username", req.Username).Error("token issuance failed")
			s.count(string(req.Method), "error")
			return nil, fmt.Errorf("%w: %v", ErrTokenIssuance, err)
		}
		s.logger.WithField("username", req.Username).Debug("bearer token issued")
		s.count(string(req.Method), "granted")
		return &AuthResult{Granted: true, Token: signed}, nil

	default:
		// Unreachable after validation; kept so the switch is exhaustive.
		return nil, &credentials.BadRequestError{Errors: []credentials.ValidationError{
			{Field: "method", Message: "unknown auth method"},
		}}
	}
}

func validateAuthRequest(req AuthRequest) error {
	var violations []credentials.ValidationError

	if strings.TrimSpace(req.Username) == "" {
		violations = append(violations, credentials.ValidationError{
			Field:   "username",
			Message: "username cannot be empty",
		})
	}

	if req.Method == "" {
		violations = append(violations, credentials.ValidationError{
			Field:   "method",
			Message: "method cannot be empty",
		})
		return &credentials.BadRequestError{Errors: violations}
	}

	if req.Method == MethodCredentials && strings.TrimSpace(req.Password) == "" {
		violations = append(violations, credentials.ValidationError{
			Field:   "password",
			Message: "password is required for credentials login",
		})
	}

	if len(violations) > 0 {
		return &credentials.BadRequestError{Errors: violations}
	}
	return nil
}

func (s *AuthService) count(method, outcome string) {
	if s.metrics != nil {
		s.metrics.AuthDecisionsTotal.WithLabelValues(method, outcome).Inc()
	}
}
