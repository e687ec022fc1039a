// Package auth verifies bearer tokens presented by clients and turns them
// into an Identity. Tokens are HS256 JWTs whose "sub" claim is the user id
// and whose "role" claim is one of user, organizer or admin.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"event-ticketing/shared"
)

// ErrAuthentication is returned for every verification failure. Callers
// never learn why a token was rejected.
var ErrAuthentication = errors.New("authentication failed")

// Identity is the verified principal behind a token.
type Identity struct {
	UserID string
	Role   shared.Role
}

// Authenticator verifies a raw bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Identity, error)
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWT verifies and issues HS256 tokens signed with a shared secret.
type JWT struct {
	secret []byte
	now    func() time.Time
}

// NewJWT returns a JWT authenticator for secret.
func NewJWT(secret string) *JWT {
	return &JWT{secret: []byte(secret), now: time.Now}
}

// Authenticate parses token and returns its identity. Any failure
// (malformed, bad signature, expired, unknown role) yields ErrAuthentication.
func (j *JWT) Authenticate(_ context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(j.secret) == 0 {
		return Identity{}, ErrAuthentication
	}

	var c claims
	tok, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return j.secret, nil
	}, jwt.WithTimeFunc(j.now), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return Identity{}, ErrAuthentication
	}

	role := shared.Role(c.Role)
	if c.Subject == "" || !role.Valid() {
		return Identity{}, ErrAuthentication
	}
	return Identity{UserID: c.Subject, Role: role}, nil
}

// Issue signs a token for id valid for ttl. Used by tests and local tooling;
// production tokens come from the auth service.
func (j *JWT) Issue(id Identity, ttl time.Duration) (string, error) {
	now := j.now()
	c := claims{
		Role: string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(j.secret)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	return tok, tok != ""
}
