package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned for missing, malformed, expired or foreign tokens.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is what the identity gateway vouches for. The core trusts it as-is.
type Identity struct {
	UserID string
	Email  string
}

type identityClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// IdentityVerifier checks HS256 session tokens issued by the identity gateway.
type IdentityVerifier struct {
	Secret []byte
	Issuer string
}

func NewIdentityVerifier(secret, issuer string) *IdentityVerifier {
	return &IdentityVerifier{Secret: []byte(secret), Issuer: issuer}
}

// ValidateToken verifies raw and returns the principal carried in its subject.
func (v *IdentityVerifier) ValidateToken(raw string) (*Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}
	if len(v.Secret) == 0 {
		return nil, fmt.Errorf("%w: verifier is not configured", ErrUnauthenticated)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}

	var claims identityClaims
	if _, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.Secret, nil
	}, opts...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return &Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// IssueToken signs a token for id. Used by tooling and tests; production tokens come from
// the identity gateway.
func (v *IdentityVerifier) IssueToken(id Identity, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = id.UserID
	if claims.Issuer == "" {
		claims.Issuer = v.Issuer
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, identityClaims{Email: id.Email, RegisteredClaims: claims})
	return tok.SignedString(v.Secret)
}
