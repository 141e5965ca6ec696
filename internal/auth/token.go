package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/starland/ledger/pkg/clients/supabase"
)

// Claims is the payload of an access token issued by the hosted auth service.
type Claims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier checks access tokens locally with the project's shared secret.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier returns nil when secret is empty, leaving verification to the auth API.
func NewTokenVerifier(secret string) *TokenVerifier {
	if secret == "" {
		return nil
	}
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify validates signature and expiry and returns the user the token names.
func (v *TokenVerifier) Verify(tokenString string) (*supabase.AuthUser, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	return &supabase.AuthUser{
		ID:           claims.Subject,
		Email:        claims.Email,
		UserMetadata: claims.UserMetadata,
		AppMetadata:  claims.AppMetadata,
	}, nil
}

// Sign issues a token for user that expires after ttl. Used by tooling and tests.
func (v *TokenVerifier) Sign(user supabase.AuthUser, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email:        user.Email,
		UserMetadata: user.UserMetadata,
		AppMetadata:  user.AppMetadata,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
