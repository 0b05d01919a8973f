// Package gateway talks to the external wallet payment provider.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Source statuses reported by the provider.
const (
	SourceStatusPending = "pending"
	SourceStatusPaid    = "paid"
	SourceStatusFailed  = "failed"
)

// Source is a payment source created with the provider. The customer is sent
// to RedirectURL to authorize the transfer; Reference comes back in the
// provider's callback.
type Source struct {
	Reference   string `json:"reference"`
	RedirectURL string `json:"redirect_url"`
	Status      string `json:"status"`
}

// Client is an HTTP client for the wallet provider API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a gateway client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type createSourceRequest struct {
	OrderNumber string `json:"order_number"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
}

// CreateSource registers a payment source for an order and returns the
// provider's reference and checkout redirect.
func (c *Client) CreateSource(ctx context.Context, orderNumber string, amount decimal.Decimal) (*Source, error) {
	body, err := json.Marshal(createSourceRequest{
		OrderNumber: orderNumber,
		Amount:      amount.StringFixed(2),
		Currency:    "PHP",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sources", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create source: unexpected status %d", resp.StatusCode)
	}

	var src Source
	if err := json.NewDecoder(resp.Body).Decode(&src); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if src.Reference == "" {
		return nil, fmt.Errorf("create source: empty reference in response")
	}
	return &src, nil
}
