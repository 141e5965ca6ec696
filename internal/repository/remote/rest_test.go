package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/pkg/clients/supabase"
)

func newTables(t *testing.T, handler http.HandlerFunc) *RESTTables {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRESTTables(supabase.NewHTTPClient(srv.URL, "anon"), "anon", nil)
}

func reply(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestQueryParams(t *testing.T) {
	q := Query{Limit: 10}.
		Where("date", OpGte, "2026-03-01").
		Where("date", OpLte, "2026-03-31").
		OrderBy("date", true).
		OrderBy("created_at", false)

	v := q.Params()
	assert.Equal(t, "*", v.Get("select"))
	assert.Equal(t, []string{"gte.2026-03-01", "lte.2026-03-31"}, v["date"])
	assert.Equal(t, "date.desc,created_at.asc", v.Get("order"))
	assert.Equal(t, "10", v.Get("limit"))
}

func TestQueryBuildersDoNotAlias(t *testing.T) {
	base := Query{}.Where("a", OpEq, "1")
	left := base.Where("b", OpEq, "2")
	right := base.Where("c", OpEq, "3")
	assert.Len(t, base.Filters, 1)
	assert.Equal(t, "b", left.Filters[1].Column)
	assert.Equal(t, "c", right.Filters[1].Column)
}

func TestSelectUsesCallerToken(t *testing.T) {
	tables := newTables(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/sales_transactions", r.URL.Path)
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		assert.Equal(t, "eq.u1", r.URL.Query().Get("created_by"))
		reply(w, http.StatusOK, []models.Row{{"id": 1, "customer_name": "Amani"}})
	})

	ctx := WithAccessToken(context.Background(), "user-token")
	rows, err := tables.Select(ctx, TableSales, Query{}.Where("created_by", OpEq, "u1"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Amani", rows[0]["customer_name"])
}

func TestSelectFallsBackToKey(t *testing.T) {
	tables := newTables(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer anon", r.Header.Get("Authorization"))
		reply(w, http.StatusOK, []models.Row{})
	})

	rows, err := tables.Select(context.Background(), TableSales, Query{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestInsertReturnsRepresentation(t *testing.T) {
	tables := newTables(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))

		var body []models.Row
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		body[0]["id"] = "abc"
		reply(w, http.StatusCreated, body)
	})

	row, err := tables.Insert(context.Background(), TableExpenses, models.Row{"amount": 20.5})
	require.NoError(t, err)
	assert.Equal(t, "abc", row["id"])
	assert.Equal(t, 20.5, row["amount"])
}

func TestInsertSurfacesAPIError(t *testing.T) {
	tables := newTables(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusForbidden, map[string]any{"code": "42501", "message": "permission denied"})
	})

	_, err := tables.Insert(context.Background(), TableExpenses, models.Row{})
	var apiErr *supabase.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "42501", apiErr.Code)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.True(t, Rejected(err))
}

func TestRejected(t *testing.T) {
	assert.True(t, Rejected(&supabase.APIError{Status: http.StatusBadRequest, Code: "23502"}))
	assert.True(t, Rejected(&supabase.APIError{Status: http.StatusUnauthorized}))
	assert.False(t, Rejected(&supabase.APIError{Status: http.StatusTooManyRequests}))
	assert.False(t, Rejected(&supabase.APIError{Status: http.StatusBadGateway}))
	assert.False(t, Rejected(errors.New("dial tcp: connection refused")))
	assert.False(t, Rejected(nil))
}

func TestWithoutAccessTokenUsesKey(t *testing.T) {
	tables := newTables(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer anon", r.Header.Get("Authorization"))
		reply(w, http.StatusOK, []models.Row{})
	})

	ctx := WithoutAccessToken(WithAccessToken(context.Background(), "user-token"))
	_, err := tables.Select(ctx, TableSales, Query{})
	require.NoError(t, err)
}

func TestUpdateAndDeleteReportMissingRows(t *testing.T) {
	tables := newTables(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.missing", r.URL.Query().Get("id"))
		reply(w, http.StatusOK, []models.Row{})
	})

	_, err := tables.Update(context.Background(), TableSales, "missing", models.Row{"notes": "x"})
	assert.True(t, errors.Is(err, ErrNotFound))

	err = tables.Delete(context.Background(), TableSales, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}
