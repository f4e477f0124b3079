package access

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jwalitptl/renova-api/internal/model"
)

// ErrInvalidToken covers bad signatures, foreign algorithms, expiry and
// malformed payloads.
var ErrInvalidToken = stderrors.New("invalid credential token")

// Credential is the identity carried by the session cookie
type Credential struct {
	ID   int64      `json:"id"`
	Role model.Role `json:"role"`
}

type claims struct {
	ID   int64      `json:"id"`
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies credentials with a shared HS256 secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer returns an issuer. A zero ttl issues tokens without expiry.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

func (i *TokenIssuer) Issue(cred Credential) (string, error) {
	now := i.now()
	c := claims{
		ID:   cred.ID,
		Role: cred.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if i.ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(i.ttl))
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign credential: %w", err)
	}
	return token, nil
}

// Parse verifies token and returns the credential it carries. The role is
// returned as written; mapping it to a table is the resolver's job.
func (i *TokenIssuer) Parse(token string) (Credential, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.ID <= 0 || c.Role == "" {
		return Credential{}, fmt.Errorf("%w: missing id or role", ErrInvalidToken)
	}
	return Credential{ID: c.ID, Role: c.Role}, nil
}
