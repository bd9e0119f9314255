// Package token issues and verifies the short-lived bearer tokens handed to
// broker clients authenticating with the jwt method.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Subject identifies the issuer domain in every token.
const Subject = "IoTNet"

// Lifetime is how long an issued token stays valid.
const Lifetime = 1 * time.Hour

// ErrTokenInvalid covers bad signatures, expired tokens, and malformed claims.
var ErrTokenInvalid = errors.New("invalid token")

// Claims binds a broker username to the standard time-bounded claim set.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// Issuer signs and verifies HS256 tokens with a process-wide secret. Leeway is
// the clock-skew tolerance applied during verification; zero means none.
type Issuer struct {
	secret []byte
	leeway time.Duration
}

// NewIssuer creates an issuer with the given signing secret and skew tolerance.
func NewIssuer(secret string, leeway time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), leeway: leeway}
}

// Issue signs a token for username, valid from now until now+Lifetime.
func (i *Issuer) Issue(username string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(Lifetime)),
		},
		Username: username,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify parses and validates a token, returning its claims. Tokens with a bad
// signature, a foreign signing method, or an expiry further in the past than the
// configured leeway are rejected.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(i.leeway),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Username == "" {
		return nil, fmt.Errorf("%w: missing username", ErrTokenInvalid)
	}

	return claims, nil
}
