package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/internal/repository/remote"
)

// ErrUnsupportedSelect is returned for column lists that embed related resources.
var ErrUnsupportedSelect = errors.New("embedded resource selects are not supported by the postgres driver")

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var sqlOperators = map[remote.Operator]string{
	remote.OpEq:   "=",
	remote.OpNeq:  "<>",
	remote.OpGt:   ">",
	remote.OpGte:  ">=",
	remote.OpLt:   "<",
	remote.OpLte:  "<=",
	remote.OpLike: "LIKE",
}

// Tables implements remote.Tables directly against the database.
type Tables struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPool opens and pings a connection pool.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return pool, nil
}

// NewTables wraps pool.
func NewTables(pool *pgxpool.Pool, logger *zap.Logger) *Tables {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tables{pool: pool, logger: logger}
}

// Select runs q against table.
func (t *Tables) Select(ctx context.Context, table string, q remote.Query) ([]models.Row, error) {
	query, args, err := buildSelect(table, q)
	if err != nil {
		return nil, err
	}

	rows, err := t.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	out, err := collect(rows)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	t.logger.Debug("rows selected", zap.String("table", table), zap.Int("count", len(out)))
	return out, nil
}

// Insert stores row and returns it as persisted.
func (t *Tables) Insert(ctx context.Context, table string, row models.Row) (models.Row, error) {
	query, args, err := buildInsert(table, row)
	if err != nil {
		return nil, err
	}
	rows, err := t.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", table, classify(err))
	}
	out, err := collect(rows)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", table, classify(err))
	}
	if len(out) == 0 {
		return row, nil
	}
	return out[0], nil
}

// Update applies patch to the row with the given id.
func (t *Tables) Update(ctx context.Context, table, id string, patch models.Row) (models.Row, error) {
	query, args, err := buildUpdate(table, id, patch)
	if err != nil {
		return nil, err
	}
	rows, err := t.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", table, id, classify(err))
	}
	out, err := collect(rows)
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", table, id, classify(err))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("update %s/%s: %w", table, id, remote.ErrNotFound)
	}
	return out[0], nil
}

// Delete removes the row with the given id.
func (t *Tables) Delete(ctx context.Context, table, id string) error {
	if !identPattern.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	tag, err := t.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", pgx.Identifier{table}.Sanitize()), id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, id, classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %s/%s: %w", table, id, remote.ErrNotFound)
	}
	return nil
}

// classify marks errors the server raised against the statement itself:
// data exceptions, integrity violations and access or syntax errors.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || len(pgErr.Code) < 2 {
		return err
	}
	switch pgErr.Code[:2] {
	case "22", "23", "42":
		return fmt.Errorf("%w: %w", remote.ErrRejected, err)
	}
	return err
}

func ident(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

func buildSelect(table string, q remote.Query) (string, []any, error) {
	tbl, err := ident(table)
	if err != nil {
		return "", nil, err
	}

	cols := "*"
	if q.Columns != "" && q.Columns != "*" {
		if strings.ContainsAny(q.Columns, "():") {
			return "", nil, ErrUnsupportedSelect
		}
		var parts []string
		for _, c := range strings.Split(q.Columns, ",") {
			col, err := ident(strings.TrimSpace(c))
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, col)
		}
		cols = strings.Join(parts, ", ")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", cols, tbl)

	var args []any
	for i, f := range q.Filters {
		col, err := ident(f.Column)
		if err != nil {
			return "", nil, err
		}
		op, ok := sqlOperators[f.Op]
		if !ok {
			return "", nil, fmt.Errorf("unsupported operator %q", f.Op)
		}
		value := f.Value
		if f.Op == remote.OpLike {
			value = strings.ReplaceAll(value, "*", "%")
		}
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		args = append(args, value)
		fmt.Fprintf(&sb, "%s %s $%d", col, op, len(args))
	}

	for i, o := range q.Orders {
		col, err := ident(o.Column)
		if err != nil {
			return "", nil, err
		}
		if i == 0 {
			sb.WriteString(" ORDER BY ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(col)
		if o.Desc {
			sb.WriteString(" DESC")
		}
	}

	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}
	return sb.String(), args, nil
}

func sortedColumns(row models.Row) []string {
	cols := make([]string, 0, len(row))
	for k := range row {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func buildInsert(table string, row models.Row) (string, []any, error) {
	tbl, err := ident(table)
	if err != nil {
		return "", nil, err
	}
	if len(row) == 0 {
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING *", tbl), nil, nil
	}

	cols := sortedColumns(row)
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		if names[i], err = ident(c); err != nil {
			return "", nil, err
		}
		marks[i] = fmt.Sprintf("$%d", i+1)
		args[i] = row[c]
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		tbl, strings.Join(names, ", "), strings.Join(marks, ", ")), args, nil
}

func buildUpdate(table, id string, patch models.Row) (string, []any, error) {
	tbl, err := ident(table)
	if err != nil {
		return "", nil, err
	}
	cols := sortedColumns(patch)
	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+1)
	for _, c := range cols {
		if c == "id" {
			continue
		}
		name, err := ident(c)
		if err != nil {
			return "", nil, err
		}
		args = append(args, patch[c])
		sets = append(sets, fmt.Sprintf("%s = $%d", name, len(args)))
	}
	if len(sets) == 0 {
		return "", nil, errors.New("update without columns")
	}
	args = append(args, id)
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d RETURNING *",
		tbl, strings.Join(sets, ", "), len(args)), args, nil
}

func collect(rows pgx.Rows) ([]models.Row, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []models.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(models.Row, len(fields))
		for i, f := range fields {
			row[f.Name] = normalize(values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// normalize converts driver values into the shapes the REST API would return.
func normalize(v any) any {
	switch val := v.(type) {
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(models.DateLayout)
		}
		return val.UTC().Format(time.RFC3339Nano)
	case pgtype.Numeric:
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(val).String()
	default:
		return v
	}
}
