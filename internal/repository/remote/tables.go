package remote

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/pkg/clients/supabase"
)

// Remote table names.
const (
	TableSales             = "sales_transactions"
	TableExpenses          = "expense_transactions"
	TableDiesel            = "diesel_transactions"
	TableRepairs           = "repair_transactions"
	TableDamages           = "damage_transactions"
	TableProduction        = "production_records"
	TableMaterialUsage     = "materials_usage"
	TableMaterialPurchases = "materials_inventory_bought"
	TableUsers             = "users"
	TableRoles             = "roles"
)

var (
	// ErrNotFound is returned when an update or delete matches no row.
	ErrNotFound = errors.New("row not found")
	// ErrRejected marks a statement the database received and refused.
	ErrRejected = errors.New("rejected by the database")
)

// Rejected reports whether err is a refusal of the request itself, such as a
// row-level policy denial or a constraint violation. Retrying it cannot succeed.
func Rejected(err error) bool {
	if errors.Is(err, ErrRejected) {
		return true
	}
	var apiErr *supabase.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return apiErr.Status >= http.StatusBadRequest && apiErr.Status < http.StatusInternalServerError
}

// Tables is the row-level access the ledger needs from the hosted database.
type Tables interface {
	Select(ctx context.Context, table string, q Query) ([]models.Row, error)
	Insert(ctx context.Context, table string, row models.Row) (models.Row, error)
	Update(ctx context.Context, table, id string, patch models.Row) (models.Row, error)
	Delete(ctx context.Context, table, id string) error
}

// Operator is a comparison understood by the table API.
type Operator string

// Supported operators.
const (
	OpEq   Operator = "eq"
	OpNeq  Operator = "neq"
	OpGt   Operator = "gt"
	OpGte  Operator = "gte"
	OpLt   Operator = "lt"
	OpLte  Operator = "lte"
	OpLike Operator = "like"
)

// Filter is a single column predicate.
type Filter struct {
	Column string
	Op     Operator
	Value  string
}

// Order sorts by a column.
type Order struct {
	Column string
	Desc   bool
}

// Query describes a select. The zero value selects every column of every row.
type Query struct {
	Columns string
	Filters []Filter
	Orders  []Order
	Limit   int
}

// Where returns a copy of q with an extra predicate.
func (q Query) Where(column string, op Operator, value string) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Column: column, Op: op, Value: value})
	return q
}

// OrderBy returns a copy of q with an extra sort key.
func (q Query) OrderBy(column string, desc bool) Query {
	q.Orders = append(append([]Order(nil), q.Orders...), Order{Column: column, Desc: desc})
	return q
}

// Params encodes q as table API query parameters.
func (q Query) Params() url.Values {
	v := url.Values{}
	cols := q.Columns
	if cols == "" {
		cols = "*"
	}
	v.Set("select", cols)
	for _, f := range q.Filters {
		v.Add(f.Column, string(f.Op)+"."+f.Value)
	}
	if len(q.Orders) > 0 {
		parts := make([]string, 0, len(q.Orders))
		for _, o := range q.Orders {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts = append(parts, o.Column+"."+dir)
		}
		v.Set("order", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

type tokenKey struct{}

// WithAccessToken attaches the caller's access token so row-level policies apply to their requests.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// WithoutAccessToken drops the caller's token so requests authenticate with the table client's own key.
func WithoutAccessToken(ctx context.Context) context.Context {
	return WithAccessToken(ctx, "")
}

// AccessToken returns the token attached by WithAccessToken.
func AccessToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}
