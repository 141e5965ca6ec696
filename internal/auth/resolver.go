package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/internal/repository/remote"
	"github.com/starland/ledger/pkg/clients/supabase"
)

// ErrUnauthenticated is returned when no valid session backs a request.
var ErrUnauthenticated = errors.New("not authenticated")

// Fallbacks used when the user record carries no email or name.
const (
	UnknownEmail = "unknown@system.com"
	UnknownName  = "Unknown User"
)

// UserLookup fetches the user behind an access token.
type UserLookup interface {
	GetUser(ctx context.Context, accessToken string) (*supabase.AuthUser, error)
}

// Resolver turns access tokens into sessions carrying a role.
type Resolver struct {
	users    UserLookup
	tables   remote.Tables
	verifier *TokenVerifier
	logger   *zap.Logger
}

// NewResolver wires a resolver. verifier may be nil, in which case every token is checked remotely.
func NewResolver(users UserLookup, tables remote.Tables, verifier *TokenVerifier, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{users: users, tables: tables, verifier: verifier, logger: logger}
}

// Resolve validates accessToken and returns the caller's session.
func (r *Resolver) Resolve(ctx context.Context, accessToken string) (models.Session, error) {
	if accessToken == "" {
		return models.Session{}, ErrUnauthenticated
	}

	var (
		user *supabase.AuthUser
		err  error
	)
	if r.verifier != nil {
		user, err = r.verifier.Verify(accessToken)
	} else {
		user, err = r.users.GetUser(ctx, accessToken)
	}
	if err != nil {
		r.logger.Warn("session lookup failed", zap.Error(err))
		return models.Session{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	return r.SessionFor(ctx, accessToken, *user), nil
}

// SessionFor builds the session for a user already known to be signed in.
func (r *Resolver) SessionFor(ctx context.Context, accessToken string, user supabase.AuthUser) models.Session {
	email := user.Email
	if email == "" {
		email = UnknownEmail
	}
	role := r.resolveRole(ctx, accessToken, user)
	return models.Session{
		Authenticated: true,
		User: models.User{
			ID:     user.ID,
			Email:  email,
			Name:   DisplayName(user),
			Role:   role,
			Status: models.UserActive,
		},
		Role:        role,
		AccessToken: accessToken,
	}
}

// resolveRole applies metadata, then the users table, then the email heuristic.
func (r *Resolver) resolveRole(ctx context.Context, accessToken string, user supabase.AuthUser) models.Role {
	if role, ok := MetadataRole(user); ok {
		return role
	}
	if role, ok := r.lookupRole(ctx, accessToken, user.ID); ok {
		return role
	}
	return EmailRole(user.Email)
}

func (r *Resolver) lookupRole(ctx context.Context, accessToken, userID string) (models.Role, bool) {
	if r.tables == nil || userID == "" {
		return "", false
	}

	q := remote.Query{Columns: "roles:role_id(role_name)", Limit: 1}.Where("id", remote.OpEq, userID)
	rows, err := r.tables.Select(remote.WithAccessToken(ctx, accessToken), remote.TableUsers, q)
	if err != nil {
		r.logger.Debug("role lookup unavailable", zap.String("user_id", userID), zap.Error(err))
		return "", false
	}
	if len(rows) == 0 {
		return "", false
	}

	joined, _ := rows[0]["roles"].(map[string]any)
	name, _ := joined["role_name"].(string)
	role, err := models.ParseRole(name)
	if err != nil {
		return "", false
	}
	return role, true
}

// MetadataRole reads a known role from user metadata, then app metadata.
func MetadataRole(user supabase.AuthUser) (models.Role, bool) {
	for _, meta := range []map[string]any{user.UserMetadata, user.AppMetadata} {
		value, _ := meta["role"].(string)
		if value == "" {
			continue
		}
		if role, err := models.ParseRole(value); err == nil {
			return role, true
		}
	}
	return "", false
}

// EmailRole guesses a role from the email address.
func EmailRole(email string) models.Role {
	email = strings.ToLower(email)
	switch {
	case strings.Contains(email, "admin"):
		return models.RoleAdmin
	case strings.Contains(email, "manager"), strings.Contains(email, "management"):
		return models.RoleManagement
	default:
		return models.RoleEntry
	}
}

// DisplayName picks the best available name for user.
func DisplayName(user supabase.AuthUser) string {
	candidates := []any{
		user.UserMetadata["full_name"],
		user.UserMetadata["name"],
		user.AppMetadata["full_name"],
	}
	for _, c := range candidates {
		if s, ok := c.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	if user.Email != "" {
		return user.Email
	}
	return UnknownName
}
