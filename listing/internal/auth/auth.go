package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tourbook/listing/pkg/model"

	"github.com/golang-jwt/jwt/v5"
)

// ErrForbidden is returned when a principal may not perform an action.
var ErrForbidden = errors.New("forbidden")

// ErrUnauthenticated is returned for missing or invalid tokens.
var ErrUnauthenticated = errors.New("unauthenticated")

// SecretProvider defines a provider of token signing secrets.
type SecretProvider func() []byte

// Tokens issues and verifies principal tokens.
type Tokens struct {
	secretProvider SecretProvider
	issuer         string
	now            func() time.Time
}

// NewTokens creates a new token issuer/verifier.
func NewTokens(secretProvider SecretProvider, issuer string) *Tokens {
	return &Tokens{secretProvider: secretProvider, issuer: issuer, now: time.Now}
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issue signs a token for p valid for ttl.
func (t *Tokens) Issue(p model.Principal, ttl time.Duration) (string, error) {
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(p.UserID),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(t.secretProvider())
}

// Parse verifies a token and returns its principal.
func (t *Tokens) Parse(tokenString string) (model.Principal, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secretProvider(), nil
	}, jwt.WithIssuer(t.issuer), jwt.WithTimeFunc(t.now))
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !token.Valid || c.Subject == "" {
		return model.Principal{}, ErrUnauthenticated
	}
	return model.Principal{UserID: model.UserID(c.Subject), Role: model.Role(c.Role)}, nil
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored in ctx, if any.
func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(model.Principal)
	return p, ok
}

func privileged(r model.Role) bool {
	return r == model.RoleStaff || r == model.RoleAdmin
}

// Policy returns the capability check for p.
//
// Staff and admins may do anything. Approval and manual recomputation
// are reserved to them, so an owner cannot approve reviews of their
// own listing. Everyone else may only write reviews they authored.
func Policy(p model.Principal) model.CapabilityCheck {
	return func(_ context.Context, action model.Action, review *model.Review) error {
		if privileged(p.Role) {
			return nil
		}
		switch action {
		case model.ActionApprove, model.ActionRecompute:
			return fmt.Errorf("%w: %s requires a staff role", ErrForbidden, action)
		case model.ActionCreate, model.ActionUpdate, model.ActionDelete:
			if p.UserID == "" || review == nil || review.ReviewerID != p.UserID {
				return fmt.Errorf("%w: %s of a review written by someone else", ErrForbidden, action)
			}
			return nil
		}
		return fmt.Errorf("%w: unknown action %q", ErrForbidden, action)
	}
}

// System is the capability check of the moderation workflow and of
// maintenance jobs.
func System(context.Context, model.Action, *model.Review) error {
	return nil
}
