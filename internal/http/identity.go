package http

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/campus-booking/internal/application"
)

// Roles carried in the identity token.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

var errInvalidIdentity = errors.New("identity token is invalid")

// IdentityClaims is the token payload issued by the upstream identity provider.
type IdentityClaims struct {
	jwt.RegisteredClaims
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// IdentityVerifier validates HS256 bearer tokens and turns their claims into
// an application.Principal.
type IdentityVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewIdentityVerifier returns a verifier for tokens signed with secret. When
// issuer is non-empty the iss claim must match it.
func NewIdentityVerifier(secret, issuer string, now func() time.Time) *IdentityVerifier {
	if now == nil {
		now = time.Now
	}
	return &IdentityVerifier{secret: []byte(secret), issuer: issuer, now: now}
}

// ValidateIdentity implements IdentityValidator.
func (v *IdentityVerifier) ValidateIdentity(ctx context.Context, token string) (application.Principal, error) {
	if v == nil || len(v.secret) == 0 {
		return application.Principal{}, fmt.Errorf("%w: verifier is not configured", errInvalidIdentity)
	}
	if strings.TrimSpace(token) == "" {
		return application.Principal{}, fmt.Errorf("%w: missing token", errInvalidIdentity)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &IdentityClaims{}
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return application.Principal{}, fmt.Errorf("%w: %w", errInvalidIdentity, err)
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return application.Principal{}, fmt.Errorf("%w: missing subject", errInvalidIdentity)
	}

	return application.Principal{
		UserID:      claims.Subject,
		DisplayName: claims.Name,
		Email:       claims.Email,
		IsAdmin:     strings.EqualFold(claims.Role, RoleAdmin),
	}, nil
}

// Sign issues a token for principal valid for ttl. The identity provider
// normally does this; the service uses it for tooling and tests.
func (v *IdentityVerifier) Sign(principal application.Principal, ttl time.Duration) (string, error) {
	if v == nil || len(v.secret) == 0 {
		return "", fmt.Errorf("%w: verifier is not configured", errInvalidIdentity)
	}
	now := v.now()
	role := RoleUser
	if principal.IsAdmin {
		role = RoleAdmin
	}
	claims := IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name:  principal.DisplayName,
		Email: principal.Email,
		Role:  role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
