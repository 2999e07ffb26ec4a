// Package exchange provides an HTTP client for the swap-router/custody
// service the core moves funds through. The core only ever observes account
// balances and transfer outcomes; routing internals stay behind the API.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/autodca/autodca-backend/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Client implements domain.AssetTransferService and domain.Quoter against a
// swap-router HTTP API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new exchange client instance
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type balanceResponse struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Balance string `json:"balance"`
}

type quoteRequest struct {
	SourceAsset string `json:"source_asset"`
	DestAsset   string `json:"dest_asset"`
	Amount      string `json:"amount"`
}

type quoteResponse struct {
	AmountOut string `json:"amount_out"`
}

// MoveFunds transfers amount of asset between accounts. The router API
// guarantees all-or-nothing semantics: a non-2xx response means no funds
// moved.
func (c *Client) MoveFunds(ctx context.Context, from, to, asset string, amount decimal.Decimal) error {
	req := transferRequest{
		From:   from,
		To:     to,
		Asset:  asset,
		Amount: amount.String(),
	}

	var resp json.RawMessage
	if err := c.post(ctx, "/v1/transfers", req, &resp); err != nil {
		return fmt.Errorf("failed to move funds: %w", err)
	}

	return nil
}

// Balance reads the current balance of an account for an asset
func (c *Client) Balance(ctx context.Context, account, asset string) (decimal.Decimal, error) {
	path := fmt.Sprintf("/v1/accounts/%s/balance?asset=%s", account, asset)

	var resp balanceResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("failed to read balance: %w", err)
	}

	balance, err := decimal.NewFromString(resp.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse balance: %w", err)
	}

	return balance, nil
}

// Quote estimates swap output for the given input amount
func (c *Client) Quote(ctx context.Context, sourceAsset, destAsset string, amount decimal.Decimal) (decimal.Decimal, error) {
	req := quoteRequest{
		SourceAsset: sourceAsset,
		DestAsset:   destAsset,
		Amount:      amount.String(),
	}

	var resp quoteResponse
	if err := c.post(ctx, "/v1/quotes", req, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("failed to get quote: %w", err)
	}

	out, err := decimal.NewFromString(resp.AmountOut)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse quote: %w", err)
	}

	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("router returned status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

var _ domain.AssetTransferService = (*Client)(nil)
var _ domain.Quoter = (*Client)(nil)
