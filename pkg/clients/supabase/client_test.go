package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starland/ledger/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.SupabaseConfig{URL: srv.URL, AnonKey: "anon"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestSignInWithPassword(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "mgr@starland.co", body["email"])

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "tok",
			"expires_in":   3600,
			"user":         map[string]any{"id": "u1", "email": "mgr@starland.co", "user_metadata": map[string]any{"role": "management"}},
		})
	})

	session, err := client.SignInWithPassword(context.Background(), "mgr@starland.co", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok", session.AccessToken)
	assert.Equal(t, "u1", session.User.ID)
	assert.Equal(t, "management", session.User.UserMetadata["role"])
}

func TestSignInErrorCodes(t *testing.T) {
	cases := map[string]struct {
		body map[string]any
		code string
		msg  string
	}{
		"current shape": {
			body: map[string]any{"code": 400, "error_code": "invalid_credentials", "msg": "Invalid login credentials"},
			code: CodeInvalidCredentials,
			msg:  "Invalid login credentials",
		},
		"legacy shape": {
			body: map[string]any{"error": "invalid_grant", "error_description": "Invalid login credentials"},
			code: CodeInvalidGrant,
			msg:  "Invalid login credentials",
		},
		"email not confirmed": {
			body: map[string]any{"error_code": "email_not_confirmed", "msg": "Email not confirmed"},
			code: CodeEmailNotConfirmed,
			msg:  "Email not confirmed",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusBadRequest, tc.body)
			})

			_, err := client.SignInWithPassword(context.Background(), "a@b.c", "x")
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusBadRequest, apiErr.Status)
			assert.Equal(t, tc.code, apiErr.Code)
			assert.Equal(t, tc.msg, apiErr.Message)
			assert.True(t, IsCode(err, tc.code))
		})
	}
}

func TestSignUpWithoutSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"role": "entry", "full_name": "Clerk"}, body["data"])
		writeJSON(w, http.StatusOK, map[string]any{"id": "u2", "email": "clerk@starland.co"})
	})

	res, err := client.SignUp(context.Background(), "clerk@starland.co", "secret1", map[string]any{"role": "entry", "full_name": "Clerk"})
	require.NoError(t, err)
	assert.Equal(t, "u2", res.User.ID)
	assert.Nil(t, res.Session)
}

func TestSignUpWithSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "tok",
			"user":         map[string]any{"id": "u3", "email": "x@starland.co"},
		})
	})

	res, err := client.SignUp(context.Background(), "x@starland.co", "secret1", nil)
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	assert.Equal(t, "u3", res.User.ID)
	assert.Equal(t, "tok", res.Session.AccessToken)
}

func TestGetUserSendsBearer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{"id": "u1", "email": "a@b.c"})
	})

	user, err := client.GetUser(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", user.Email)
}

func TestGetUserUnauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": "invalid JWT"})
	})

	_, err := client.GetUser(context.Background(), "expired")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "invalid JWT", apiErr.Message)
}
