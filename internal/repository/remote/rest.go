package remote

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/pkg/clients/supabase"
)

// RESTTables implements Tables over the hosted REST table API.
type RESTTables struct {
	httpClient *resty.Client
	key        string
	logger     *zap.Logger
}

// NewRESTTables wraps a client built by supabase.NewHTTPClient. key authorises requests without a user token.
func NewRESTTables(httpClient *resty.Client, key string, logger *zap.Logger) *RESTTables {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RESTTables{httpClient: httpClient, key: key, logger: logger}
}

func (t *RESTTables) request(ctx context.Context) *resty.Request {
	token := AccessToken(ctx)
	if token == "" {
		token = t.key
	}
	return t.httpClient.R().SetContext(ctx).SetAuthToken(token)
}

// Select runs q against table.
func (t *RESTTables) Select(ctx context.Context, table string, q Query) ([]models.Row, error) {
	var rows []models.Row
	apiErr := new(supabase.ErrorBody)

	resp, err := t.request(ctx).
		SetQueryParamsFromValues(q.Params()).
		SetResult(&rows).
		SetError(apiErr).
		Get("/rest/v1/" + table)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	if err := supabase.CheckResponse(resp, apiErr); err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}

	t.logger.Debug("rows selected", zap.String("table", table), zap.Int("count", len(rows)))
	return rows, nil
}

// Insert stores row and returns it as persisted.
func (t *RESTTables) Insert(ctx context.Context, table string, row models.Row) (models.Row, error) {
	var rows []models.Row
	apiErr := new(supabase.ErrorBody)

	resp, err := t.request(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody([]models.Row{row}).
		SetResult(&rows).
		SetError(apiErr).
		Post("/rest/v1/" + table)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}
	if err := supabase.CheckResponse(resp, apiErr); err != nil {
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}
	if len(rows) == 0 {
		return row, nil
	}
	return rows[0], nil
}

// Update applies patch to the row with the given id.
func (t *RESTTables) Update(ctx context.Context, table, id string, patch models.Row) (models.Row, error) {
	var rows []models.Row
	apiErr := new(supabase.ErrorBody)

	resp, err := t.request(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("id", "eq."+id).
		SetBody(patch).
		SetResult(&rows).
		SetError(apiErr).
		Patch("/rest/v1/" + table)
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", table, id, err)
	}
	if err := supabase.CheckResponse(resp, apiErr); err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", table, id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("update %s/%s: %w", table, id, ErrNotFound)
	}
	return rows[0], nil
}

// Delete removes the row with the given id.
func (t *RESTTables) Delete(ctx context.Context, table, id string) error {
	var rows []models.Row
	apiErr := new(supabase.ErrorBody)

	resp, err := t.request(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("id", "eq."+id).
		SetResult(&rows).
		SetError(apiErr).
		Delete("/rest/v1/" + table)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, id, err)
	}
	if err := supabase.CheckResponse(resp, apiErr); err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, id, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("delete %s/%s: %w", table, id, ErrNotFound)
	}
	return nil
}
