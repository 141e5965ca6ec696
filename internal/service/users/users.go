package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/internal/repository/remote"
	"github.com/starland/ledger/pkg/clients/supabase"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

const profileColumns = "id,email,full_name,status,last_login,roles:role_id(role_name)"

// ErrNotFound is returned when the user id is unknown.
var ErrNotFound = errors.New("user not found")

// Store mirrors accounts locally.
type Store interface {
	SaveUsers(ctx context.Context, users ...models.User) error
	ListUsers(ctx context.Context) ([]models.User, error)
	TouchLogin(ctx context.Context, user models.User, at time.Time) error
}

// Registration is a new account request.
type Registration struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Name            string `json:"name"`
	Role            string `json:"role"`
}

// Validate checks the request before it reaches the auth API.
func (r Registration) Validate() (models.Role, error) {
	switch {
	case strings.TrimSpace(r.Email) == "":
		return "", &models.ValidationError{Field: "email", Message: "email is required"}
	case strings.TrimSpace(r.Name) == "":
		return "", &models.ValidationError{Field: "name", Message: "name is required"}
	case len(r.Password) < MinPasswordLength:
		return "", &models.ValidationError{Field: "password", Message: fmt.Sprintf("password must be at least %d characters", MinPasswordLength)}
	case r.Password != r.ConfirmPassword:
		return "", &models.ValidationError{Field: "confirm_password", Message: "passwords do not match"}
	}
	role, err := models.ParseRole(r.Role)
	if err != nil {
		return "", &models.ValidationError{Field: "role", Message: "role must be one of admin, management, entry"}
	}
	return role, nil
}

// Change updates the role and/or status of an account.
type Change struct {
	Role   string `json:"role"`
	Status string `json:"status"`
}

// Service administers ledger accounts. Its tables authenticate with the service key; caller tokens are dropped.
type Service struct {
	auth   supabase.AuthClient
	tables remote.Tables
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires the user administration service.
func NewService(auth supabase.AuthClient, tables remote.Tables, store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{auth: auth, tables: tables, store: store, logger: logger, now: time.Now}
}

// List returns the known accounts, from the profile table when reachable.
func (s *Service) List(ctx context.Context) ([]models.User, error) {
	ctx = remote.WithoutAccessToken(ctx)
	rows, err := s.tables.Select(ctx, remote.TableUsers, remote.Query{Columns: profileColumns}.OrderBy("email", false))
	if err != nil {
		s.logger.Warn("user table unavailable, using local mirror", zap.Error(err))
		return s.store.ListUsers(ctx)
	}

	out := make([]models.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, userFromRow(row))
	}
	if err := s.store.SaveUsers(ctx, out...); err != nil {
		s.logger.Warn("user mirror refresh failed", zap.Error(err))
	}
	return out, nil
}

// Create registers an account and its profile row.
func (s *Service) Create(ctx context.Context, reg Registration) (models.User, error) {
	role, err := reg.Validate()
	if err != nil {
		return models.User{}, err
	}

	ctx = remote.WithoutAccessToken(ctx)

	// The role lives only on the profile row so that Update can change it.
	email := strings.TrimSpace(reg.Email)
	res, err := s.auth.SignUp(ctx, email, reg.Password, map[string]any{"full_name": reg.Name})
	if err != nil {
		return models.User{}, err
	}

	user := models.User{ID: res.User.ID, Email: email, Name: reg.Name, Role: role, Status: models.UserActive}

	profile := models.Row{"id": user.ID, "email": user.Email, "full_name": user.Name, "status": user.Status}
	if roleID, err := s.roleID(ctx, role); err == nil {
		profile["role_id"] = roleID
	} else {
		s.logger.Warn("role id lookup failed", zap.String("role", string(role)), zap.Error(err))
	}
	if _, err := s.tables.Insert(ctx, remote.TableUsers, profile); err != nil {
		s.logger.Error("profile insert failed", zap.String("email", email), zap.Error(err))
	}

	if err := s.store.SaveUsers(ctx, user); err != nil {
		s.logger.Warn("user mirror write failed", zap.Error(err))
	}
	return user, nil
}

// Update changes the role and/or status of user id.
func (s *Service) Update(ctx context.Context, id string, change Change) (models.User, error) {
	ctx = remote.WithoutAccessToken(ctx)
	patch := models.Row{}
	if change.Role != "" {
		role, err := models.ParseRole(change.Role)
		if err != nil {
			return models.User{}, &models.ValidationError{Field: "role", Message: "role must be one of admin, management, entry"}
		}
		roleID, err := s.roleID(ctx, role)
		if err != nil {
			return models.User{}, err
		}
		patch["role_id"] = roleID
	}
	if change.Status != "" {
		status := strings.ToLower(strings.TrimSpace(change.Status))
		if status != models.UserActive && status != models.UserInactive {
			return models.User{}, &models.ValidationError{Field: "status", Message: "status must be active or inactive"}
		}
		patch["status"] = status
	}
	if len(patch) == 0 {
		return models.User{}, &models.ValidationError{Field: "role", Message: "role or status is required"}
	}

	if _, err := s.tables.Update(ctx, remote.TableUsers, id, patch); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("update user %s: %w", id, err)
	}

	rows, err := s.tables.Select(ctx, remote.TableUsers, remote.Query{Columns: profileColumns, Limit: 1}.Where("id", remote.OpEq, id))
	if err != nil || len(rows) == 0 {
		return models.User{}, fmt.Errorf("reload user %s: %w", id, errors.Join(err, ErrNotFound))
	}
	user := userFromRow(rows[0])
	if err := s.store.SaveUsers(ctx, user); err != nil {
		s.logger.Warn("user mirror write failed", zap.Error(err))
	}
	return user, nil
}

// RecordLogin stamps the last login of user in the mirror.
func (s *Service) RecordLogin(ctx context.Context, user models.User) {
	if err := s.store.TouchLogin(ctx, user, s.now()); err != nil {
		s.logger.Warn("last login update failed", zap.String("email", user.Email), zap.Error(err))
	}
}

func (s *Service) roleID(ctx context.Context, role models.Role) (any, error) {
	rows, err := s.tables.Select(ctx, remote.TableRoles, remote.Query{Columns: "id", Limit: 1}.Where("role_name", remote.OpEq, string(role)))
	if err != nil {
		return nil, fmt.Errorf("look up role %s: %w", role, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("role %s is not defined", role)
	}
	return rows[0]["id"], nil
}

func userFromRow(row models.Row) models.User {
	str := func(key string) string {
		v, _ := row[key].(string)
		return v
	}

	u := models.User{
		ID:     fmt.Sprint(row["id"]),
		Email:  str("email"),
		Name:   str("full_name"),
		Status: str("status"),
		Role:   models.RoleEntry,
	}
	if u.Status == "" {
		u.Status = models.UserActive
	}
	if joined, ok := row["roles"].(map[string]any); ok {
		name, _ := joined["role_name"].(string)
		if role, err := models.ParseRole(name); err == nil {
			u.Role = role
		}
	}
	if ts := str("last_login"); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			u.LastLogin = &t
		}
	}
	return u
}
