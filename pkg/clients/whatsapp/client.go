package whatsapp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/starland/ledger/internal/config"
)

// MaxBodyLength is the longest text body the Cloud API accepts.
const MaxBodyLength = 4096

// Sender delivers text messages.
type Sender interface {
	SendText(ctx context.Context, to, body string) ([]string, error)
}

// APIClient is a resty-backed Sender for the WhatsApp Cloud API.
type APIClient struct {
	httpClient    *resty.Client
	phoneNumberID string
}

// NewClient builds a WhatsApp API client using the provided configuration values.
func NewClient(cfg config.WhatsAppConfig) *APIClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	restyClient := resty.New().
		SetBaseURL(fmt.Sprintf("%s/%s", base, cfg.APIVersion)).
		SetAuthToken(cfg.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)

	return &APIClient{httpClient: restyClient, phoneNumberID: cfg.PhoneNumberID}
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// APIError is an error answered by the Cloud API.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api error: status=%d, code=%d, message=%s", e.Status, e.Code, e.Message)
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText sends body to the recipient, split into several messages when it is too long.
// It returns the message ids in order.
func (c *APIClient) SendText(ctx context.Context, to, body string) ([]string, error) {
	var ids []string
	for _, part := range Split(body, MaxBodyLength) {
		id, err := c.send(ctx, to, part)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *APIClient) send(ctx context.Context, to, body string) (string, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]any{"body": body, "preview_url": false},
	}

	result := new(sendResponse)
	apiErr := new(errorBody)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(result).
		SetError(apiErr).
		Post(fmt.Sprintf("%s/messages", c.phoneNumberID))
	if err != nil {
		return "", fmt.Errorf("send whatsapp message: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return "", &APIError{Status: resp.StatusCode(), Code: apiErr.Error.Code, Message: apiErr.Error.Message}
	}
	if len(result.Messages) == 0 {
		return "", nil
	}
	return result.Messages[0].ID, nil
}

// Split breaks text into chunks of at most limit runes, preferring line breaks.
func Split(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
