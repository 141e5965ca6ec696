package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/internal/repository/remote"
	"github.com/starland/ledger/pkg/clients/supabase"
)

type fakeUsers struct {
	user *supabase.AuthUser
	err  error
}

func (f fakeUsers) GetUser(context.Context, string) (*supabase.AuthUser, error) {
	return f.user, f.err
}

type fakeTables struct {
	rows  []models.Row
	err   error
	token string
	query remote.Query
}

func (f *fakeTables) Select(ctx context.Context, _ string, q remote.Query) ([]models.Row, error) {
	f.token = remote.AccessToken(ctx)
	f.query = q
	return f.rows, f.err
}

func (f *fakeTables) Insert(context.Context, string, models.Row) (models.Row, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeTables) Update(context.Context, string, string, models.Row) (models.Row, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeTables) Delete(context.Context, string, string) error {
	return errors.New("not implemented")
}

func TestResolveRolePriority(t *testing.T) {
	joined := []models.Row{{"roles": map[string]any{"role_name": "management"}}}

	cases := map[string]struct {
		user   supabase.AuthUser
		tables *fakeTables
		want   models.Role
	}{
		"user metadata wins": {
			user:   supabase.AuthUser{ID: "u1", Email: "admin@starland.co", UserMetadata: map[string]any{"role": "entry"}},
			tables: &fakeTables{rows: joined},
			want:   models.RoleEntry,
		},
		"app metadata next": {
			user:   supabase.AuthUser{ID: "u1", Email: "x@starland.co", AppMetadata: map[string]any{"role": "admin"}},
			tables: &fakeTables{rows: joined},
			want:   models.RoleAdmin,
		},
		"unknown metadata falls through to lookup": {
			user:   supabase.AuthUser{ID: "u1", Email: "x@starland.co", UserMetadata: map[string]any{"role": "owner"}},
			tables: &fakeTables{rows: joined},
			want:   models.RoleManagement,
		},
		"lookup failure falls back to email": {
			user:   supabase.AuthUser{ID: "u1", Email: "site.manager@starland.co"},
			tables: &fakeTables{err: errors.New("offline")},
			want:   models.RoleManagement,
		},
		"admin email": {
			user:   supabase.AuthUser{ID: "u1", Email: "Admin@starland.co"},
			tables: &fakeTables{},
			want:   models.RoleAdmin,
		},
		"default entry": {
			user:   supabase.AuthUser{ID: "u1", Email: "clerk@starland.co"},
			tables: &fakeTables{rows: []models.Row{{"roles": nil}}},
			want:   models.RoleEntry,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			user := tc.user
			r := NewResolver(fakeUsers{user: &user}, tc.tables, nil, nil)

			session, err := r.Resolve(context.Background(), "tok")
			require.NoError(t, err)
			assert.True(t, session.Authenticated)
			assert.Equal(t, tc.want, session.Role)
			assert.Equal(t, tc.want, session.User.Role)
		})
	}
}

func TestResolveLookupUsesCallerToken(t *testing.T) {
	tables := &fakeTables{rows: []models.Row{{"roles": map[string]any{"role_name": "entry"}}}}
	r := NewResolver(fakeUsers{user: &supabase.AuthUser{ID: "u9", Email: "boss.admin@starland.co"}}, tables, nil, nil)

	session, err := r.Resolve(context.Background(), "user-token")
	require.NoError(t, err)
	assert.Equal(t, models.RoleEntry, session.Role)
	assert.Equal(t, "user-token", tables.token)
	assert.Equal(t, "roles:role_id(role_name)", tables.query.Columns)
	assert.Equal(t, []remote.Filter{{Column: "id", Op: remote.OpEq, Value: "u9"}}, tables.query.Filters)
}

func TestResolveFailureIsUnauthenticated(t *testing.T) {
	r := NewResolver(fakeUsers{err: errors.New("jwt expired")}, nil, nil, nil)

	session, err := r.Resolve(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.False(t, session.Authenticated)

	_, err = r.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestDisplayNameFallbacks(t *testing.T) {
	assert.Equal(t, "Jane", DisplayName(supabase.AuthUser{UserMetadata: map[string]any{"full_name": "Jane", "name": "J"}}))
	assert.Equal(t, "J", DisplayName(supabase.AuthUser{UserMetadata: map[string]any{"name": "J"}}))
	assert.Equal(t, "Ops", DisplayName(supabase.AuthUser{AppMetadata: map[string]any{"full_name": "Ops"}}))
	assert.Equal(t, "a@b.c", DisplayName(supabase.AuthUser{Email: "a@b.c"}))
	assert.Equal(t, UnknownName, DisplayName(supabase.AuthUser{}))
}

func TestSessionDefaultsEmail(t *testing.T) {
	r := NewResolver(fakeUsers{user: &supabase.AuthUser{ID: "u1"}}, nil, nil, nil)
	session, err := r.Resolve(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, UnknownEmail, session.User.Email)
	assert.Equal(t, UnknownName, session.User.Name)
	assert.Equal(t, models.RoleEntry, session.Role)
}

func TestResolveWithLocalVerification(t *testing.T) {
	verifier := NewTokenVerifier("test-secret")
	user := supabase.AuthUser{ID: "u5", Email: "mgr@starland.co", UserMetadata: map[string]any{"role": "management", "full_name": "Grace"}}

	token, err := verifier.Sign(user, time.Hour)
	require.NoError(t, err)

	r := NewResolver(fakeUsers{err: errors.New("must not be called")}, nil, verifier, nil)
	session, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManagement, session.Role)
	assert.Equal(t, "Grace", session.User.Name)
	assert.Equal(t, "u5", session.User.ID)

	expired, err := verifier.Sign(user, -time.Minute)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), expired)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	forged, err := NewTokenVerifier("other-secret").Sign(user, time.Hour)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), forged)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestNewTokenVerifierWithoutSecret(t *testing.T) {
	assert.Nil(t, NewTokenVerifier(""))
}
