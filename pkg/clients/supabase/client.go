package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/starland/ledger/internal/config"
)

// Error codes returned by the auth API that callers branch on.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidGrant       = "invalid_grant"
	CodeEmailNotConfirmed  = "email_not_confirmed"
	CodeUserAlreadyExists  = "user_already_exists"
	CodeWeakPassword       = "weak_password"
)

// NewHTTPClient returns a resty client preconfigured for the project URL and API key.
func NewHTTPClient(baseURL, apiKey string) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("apikey", apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)
}

// AuthClient exposes the hosted auth operations used by the ledger.
type AuthClient interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*SignUpResult, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*AuthUser, error)
}

// Client is a resty-backed implementation of AuthClient.
type Client struct {
	httpClient *resty.Client
}

// NewClient builds an auth client for the configured project.
func NewClient(cfg config.SupabaseConfig) *Client {
	return &Client{httpClient: NewHTTPClient(cfg.URL, cfg.AnonKey)}
}

// AuthUser is the user object returned by the auth API.
type AuthUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  map[string]any `json:"app_metadata"`
	LastSignInAt *time.Time     `json:"last_sign_in_at,omitempty"`
}

// Session is a successful password grant.
type Session struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int      `json:"expires_in"`
	User         AuthUser `json:"user"`
}

// SignUpResult carries the new user and, when confirmation is disabled, a session.
type SignUpResult struct {
	User    AuthUser
	Session *Session
}

type signUpResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	User         *AuthUser `json:"user"`
	AuthUser
}

// APIError is a structured error answered by the auth or table API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase api error: status=%d, code=%s, message=%s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase api error: status=%d, message=%s", e.Status, e.Message)
}

// IsCode reports whether err is an APIError with one of the given codes.
func IsCode(err error, codes ...string) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, c := range codes {
		if apiErr.Code == c {
			return true
		}
	}
	return false
}

// ErrorBody covers the error shapes of the auth API (old and new) and the table API.
type ErrorBody struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	ErrorName        string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

// CheckResponse converts an HTTP error response into an *APIError.
func CheckResponse(resp *resty.Response, body *ErrorBody) error {
	if resp.StatusCode() < http.StatusBadRequest {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode()}
	if body != nil {
		apiErr.Code = body.ErrorCode
		if apiErr.Code == "" {
			if s, ok := body.Code.(string); ok {
				apiErr.Code = s
			}
		}
		if apiErr.Code == "" {
			apiErr.Code = body.ErrorName
		}
		for _, m := range []string{body.Msg, body.ErrorDescription, body.Message} {
			if m != "" {
				apiErr.Message = m
				break
			}
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode())
	}
	return apiErr
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	session := new(Session)
	apiErr := new(ErrorBody)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(session).
		SetError(apiErr).
		Post("/auth/v1/token")
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if err := CheckResponse(resp, apiErr); err != nil {
		return nil, err
	}
	return session, nil
}

// SignUp registers a user; metadata is stored as user_metadata.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*SignUpResult, error) {
	result := new(signUpResponse)
	apiErr := new(ErrorBody)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]any{"email": email, "password": password, "data": metadata}).
		SetResult(result).
		SetError(apiErr).
		Post("/auth/v1/signup")
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	if err := CheckResponse(resp, apiErr); err != nil {
		return nil, err
	}

	out := &SignUpResult{User: result.AuthUser}
	if result.User != nil {
		out.User = *result.User
	}
	if result.AccessToken != "" {
		out.Session = &Session{
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
			TokenType:    result.TokenType,
			ExpiresIn:    result.ExpiresIn,
			User:         out.User,
		}
	}
	return out, nil
}

// SignOut revokes the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	apiErr := new(ErrorBody)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetError(apiErr).
		Post("/auth/v1/logout")
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return CheckResponse(resp, apiErr)
}

// GetUser returns the user that owns accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*AuthUser, error) {
	user := new(AuthUser)
	apiErr := new(ErrorBody)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(user).
		SetError(apiErr).
		Get("/auth/v1/user")
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if err := CheckResponse(resp, apiErr); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, errors.New("get user: empty user in response")
	}
	return user, nil
}
