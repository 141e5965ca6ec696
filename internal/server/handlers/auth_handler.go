package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/starland/ledger/internal/auth"
	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/internal/server/middleware"
	"github.com/starland/ledger/internal/service/users"
	"github.com/starland/ledger/pkg/clients/supabase"
)

// Sessions resolves and builds sessions.
type Sessions interface {
	Resolve(ctx context.Context, accessToken string) (models.Session, error)
	SessionFor(ctx context.Context, accessToken string, user supabase.AuthUser) models.Session
}

// Accounts creates accounts and tracks logins.
type Accounts interface {
	Create(ctx context.Context, reg users.Registration) (models.User, error)
	RecordLogin(ctx context.Context, user models.User)
}

// AuthHandler serves sign in, sign out, session and registration.
type AuthHandler struct {
	client            supabase.AuthClient
	sessions          Sessions
	accounts          Accounts
	policy            auth.Policy
	allowRegistration bool
	logger            *zap.Logger
}

// NewAuthHandler constructs the authentication handler.
func NewAuthHandler(client supabase.AuthClient, sessions Sessions, accounts Accounts, policy auth.Policy, allowRegistration bool, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		client:            client,
		sessions:          sessions,
		accounts:          accounts,
		policy:            policy,
		allowRegistration: allowRegistration,
		logger:            logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a session cookie and answers the landing page.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	middleware.SetAuditUser(c, req.Email)

	if req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please enter both email and password"})
		return
	}

	grant, err := h.client.SignInWithPassword(c.Request.Context(), req.Email, req.Password)
	switch {
	case supabase.IsCode(err, supabase.CodeInvalidCredentials, supabase.CodeInvalidGrant):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	case supabase.IsCode(err, supabase.CodeEmailNotConfirmed):
		c.JSON(http.StatusForbidden, gin.H{"error": "Please confirm your email address before signing in"})
		return
	case err != nil:
		fail(c, h.logger, err)
		return
	}

	session := h.sessions.SessionFor(c.Request.Context(), grant.AccessToken, grant.User)
	h.accounts.RecordLogin(c.Request.Context(), session.User)
	h.setCookie(c, grant.AccessToken, grant.ExpiresIn)

	h.logger.Info("user signed in", zap.String("email", session.User.Email), zap.String("role", string(session.Role)))
	c.JSON(http.StatusOK, gin.H{
		"session":      session,
		"access_token": grant.AccessToken,
		"expires_in":   grant.ExpiresIn,
		"redirect":     h.policy.LandingFor(session.Role),
	})
}

// Logout revokes the session and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	if token := middleware.AccessToken(c.Request); token != "" {
		if session, err := h.sessions.Resolve(c.Request.Context(), token); err == nil {
			middleware.SetAuditUser(c, session.User.Email)
		}
		if err := h.client.SignOut(c.Request.Context(), token); err != nil {
			h.logger.Warn("remote sign out failed", zap.Error(err))
		}
	}
	h.setCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"redirect": h.policy.Login})
}

// Session reports the caller's session. Anonymous callers get authenticated=false.
func (h *AuthHandler) Session(c *gin.Context) {
	session, err := h.sessions.Resolve(c.Request.Context(), middleware.AccessToken(c.Request))
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false, "redirect": h.policy.Login})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          session.User,
		"role":          session.Role,
		"landing":       h.policy.LandingFor(session.Role),
	})
}

// Signup registers an entry account when public registration is enabled. Any requested role is ignored.
func (h *AuthHandler) Signup(c *gin.Context) {
	if !h.allowRegistration {
		c.JSON(http.StatusForbidden, gin.H{"error": "registration is disabled"})
		return
	}
	var reg users.Registration
	if err := c.ShouldBindJSON(&reg); err != nil {
		badBody(c, err)
		return
	}
	middleware.SetAuditUser(c, strings.TrimSpace(reg.Email))
	// Self-registered accounts always start as data entry; only an administrator picks other roles.
	reg.Role = string(models.RoleEntry)
	createAccount(c, h.accounts, reg, h.logger)
}

func createAccount(c *gin.Context, accounts Accounts, reg users.Registration, logger *zap.Logger) {
	user, err := accounts.Create(c.Request.Context(), reg)
	switch {
	case supabase.IsCode(err, supabase.CodeUserAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "An account with this email already exists", "field": "email"})
	case supabase.IsCode(err, supabase.CodeWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password is too weak", "field": "password"})
	case err != nil:
		fail(c, logger, err)
	default:
		c.JSON(http.StatusCreated, gin.H{"data": user})
	}
}

func (h *AuthHandler) setCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token, maxAge, "/", "", c.Request.TLS != nil, true)
}
