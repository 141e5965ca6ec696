package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/internal/repository/remote"
)

func TestBuildSelect(t *testing.T) {
	q := remote.Query{Limit: 5}.
		Where("date", remote.OpGte, "2026-03-01").
		Where("customer_name", remote.OpLike, "*Amani*").
		OrderBy("date", true)

	sql, args, err := buildSelect(remote.TableSales, q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "sales_transactions" WHERE "date" >= $1 AND "customer_name" LIKE $2 ORDER BY "date" DESC LIMIT 5`, sql)
	assert.Equal(t, []any{"2026-03-01", "%Amani%"}, args)
}

func TestBuildSelectColumns(t *testing.T) {
	sql, _, err := buildSelect("users", remote.Query{Columns: "id, email"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", "email" FROM "users"`, sql)

	_, _, err = buildSelect("users", remote.Query{Columns: "roles:role_id(role_name)"})
	assert.True(t, errors.Is(err, ErrUnsupportedSelect))
}

func TestBuildSelectRejectsInjection(t *testing.T) {
	_, _, err := buildSelect("sales; drop table users", remote.Query{})
	assert.Error(t, err)

	_, _, err = buildSelect("sales", remote.Query{}.Where("date\"--", remote.OpEq, "x"))
	assert.Error(t, err)
}

func TestBuildInsertAndUpdate(t *testing.T) {
	sql, args, err := buildInsert("expense_transactions", models.Row{"amount": 10.0, "category": "Fuel"})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "expense_transactions" ("amount", "category") VALUES ($1, $2) RETURNING *`, sql)
	assert.Equal(t, []any{10.0, "Fuel"}, args)

	sql, args, err = buildUpdate("expense_transactions", "7", models.Row{"id": "7", "notes": "late"})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "expense_transactions" SET "notes" = $1 WHERE id = $2 RETURNING *`, sql)
	assert.Equal(t, []any{"late", "7"}, args)

	_, _, err = buildUpdate("expense_transactions", "7", models.Row{"id": "7"})
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "2026-03-14", normalize(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-03-14T08:00:00Z", normalize(time.Date(2026, 3, 14, 11, 0, 0, 0, time.FixedZone("EAT", 3*3600))))

	id := uuid.MustParse("8f14e45f-ceea-467f-a0e6-1f0b5c1a7d2e")
	assert.Equal(t, id.String(), normalize([16]byte(id)))
	assert.Equal(t, int64(3), normalize(int64(3)))
}

func TestClassify(t *testing.T) {
	denied := classify(&pgconn.PgError{Code: "42501", Message: "new row violates row-level security policy"})
	assert.True(t, remote.Rejected(denied))
	assert.True(t, errors.Is(denied, remote.ErrRejected))

	unique := classify(&pgconn.PgError{Code: "23505"})
	assert.True(t, remote.Rejected(unique))

	shutdown := classify(&pgconn.PgError{Code: "57P01"})
	assert.False(t, remote.Rejected(shutdown))

	assert.False(t, remote.Rejected(classify(errors.New("dial tcp: connection refused"))))
}
