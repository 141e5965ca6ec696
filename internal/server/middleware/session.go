package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/starland/ledger/internal/auth"
	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/internal/repository/remote"
)

// SessionCookie carries the access token for page requests.
const SessionCookie = "sb-access-token"

const (
	sessionKey   = "ledger.session"
	auditUserKey = "ledger.audit_user"
)

// SessionResolver turns an access token into a session.
type SessionResolver interface {
	Resolve(ctx context.Context, accessToken string) (models.Session, error)
}

// AccessToken reads the bearer token, falling back to the session cookie.
func AccessToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireSession rejects API calls without a valid session.
func RequireSession(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := AccessToken(c.Request)
		session, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		SetSession(c, session)
		c.Next()
	}
}

// SetSession attaches session to the request, including the token used for table calls.
func SetSession(c *gin.Context, session models.Session) {
	c.Set(sessionKey, session)
	c.Request = c.Request.WithContext(remote.WithAccessToken(c.Request.Context(), session.AccessToken))
}

// SessionFrom returns the session attached by RequireSession.
func SessionFrom(c *gin.Context) models.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(models.Session); ok {
			return s
		}
	}
	return models.Session{}
}

// RequirePermission rejects callers whose role lacks action on resource.
func RequirePermission(policy auth.Policy, action auth.Action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := SessionFrom(c)
		if !policy.Can(session.Role, action, resource) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "insufficient permissions to " + string(action) + " " + resource,
			})
			return
		}
		c.Next()
	}
}

// RequirePrivileged rejects callers outside the policy's privileged roles.
func RequirePrivileged(policy auth.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !policy.IsPrivileged(SessionFrom(c).Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "management access required"})
			return
		}
		c.Next()
	}
}

// PageGuard applies the route rules to page requests, redirecting on deny. Unprotected pages pass through.
func PageGuard(resolver SessionResolver, policy auth.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !policy.Protects(c.Request.URL.Path) {
			c.Next()
			return
		}

		var role models.Role
		if token := AccessToken(c.Request); token != "" {
			if session, err := resolver.Resolve(c.Request.Context(), token); err == nil {
				role = session.Role
			}
		}

		decision := policy.Guard(c.Request.URL.Path, role)
		if decision.Allowed {
			c.Next()
			return
		}

		target := decision.Redirect
		if role != "" {
			target += "?denied=1"
		} else {
			target += "?next=" + url.QueryEscape(c.Request.URL.Path)
		}
		c.Redirect(http.StatusFound, target)
		c.Abort()
	}
}
