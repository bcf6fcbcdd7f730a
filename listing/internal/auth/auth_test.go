package auth

import (
	"context"
	"testing"
	"time"

	"tourbook/listing/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSecret() []byte { return []byte("test-secret") }

func TestTokens(t *testing.T) {
	tokens := NewTokens(testSecret, "tourbook")
	want := model.Principal{UserID: "u1", Role: model.RoleTourist}
	s, err := tokens.Issue(want, time.Hour)
	require.NoError(t, err)

	got, err := tokens.Parse(s)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	other := NewTokens(func() []byte { return []byte("other") }, "tourbook")
	_, err = other.Parse(s)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	wrongIssuer := NewTokens(testSecret, "someone-else")
	_, err = wrongIssuer.Parse(s)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestTokensExpire(t *testing.T) {
	tokens := NewTokens(testSecret, "tourbook")
	start := time.Now()
	tokens.now = func() time.Time { return start }
	s, err := tokens.Issue(model.Principal{UserID: "u1", Role: model.RoleStaff}, time.Minute)
	require.NoError(t, err)

	tokens.now = func() time.Time { return start.Add(time.Hour) }
	_, err = tokens.Parse(s)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestPolicy(t *testing.T) {
	own := &model.Review{ID: "r1", ReviewerID: "u1", Subject: model.BusinessRef("b1"), Rating: 4}
	foreign := &model.Review{ID: "r2", ReviewerID: "u2", Subject: model.BusinessRef("b1"), Rating: 4}
	tourist := model.Principal{UserID: "u1", Role: model.RoleTourist}
	owner := model.Principal{UserID: "u1", Role: model.RoleBusinessOwner}
	staff := model.Principal{UserID: "s1", Role: model.RoleStaff}

	tests := []struct {
		name      string
		principal model.Principal
		action    model.Action
		review    *model.Review
		allowed   bool
	}{
		{"tourist creates own", tourist, model.ActionCreate, own, true},
		{"tourist updates own", tourist, model.ActionUpdate, own, true},
		{"tourist deletes own", tourist, model.ActionDelete, own, true},
		{"tourist updates foreign", tourist, model.ActionUpdate, foreign, false},
		{"tourist creates for someone else", tourist, model.ActionCreate, foreign, false},
		{"tourist approves", tourist, model.ActionApprove, own, false},
		{"owner approves", owner, model.ActionApprove, foreign, false},
		{"tourist recomputes", tourist, model.ActionRecompute, nil, false},
		{"staff approves", staff, model.ActionApprove, foreign, true},
		{"staff deletes foreign", staff, model.ActionDelete, foreign, true},
		{"staff recomputes", staff, model.ActionRecompute, nil, true},
		{"anonymous creates", model.Principal{}, model.ActionCreate, &model.Review{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Policy(tt.principal)(context.Background(), tt.action, tt.review)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrForbidden)
			}
		})
	}
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)
	p := model.Principal{UserID: "u1", Role: model.RoleAdmin}
	got, ok := PrincipalFromContext(WithPrincipal(context.Background(), p))
	assert.True(t, ok)
	assert.Equal(t, p, got)
}
