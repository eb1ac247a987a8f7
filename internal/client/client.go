// Package client is a typed HTTP client for the stock ledger API, used by
// other shop tools (till front ends, nightly register close jobs).
package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"resty.dev/v3"

	"stock_ledger/internal/apperrors"
	"stock_ledger/internal/coordinator"
	"stock_ledger/internal/inventory"
	"stock_ledger/internal/sales"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status    int    `json:"-"`
	Message   string `json:"error"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Barcode   string `json:"barcode"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stock ledger API %d: %s", e.Status, e.Message)
}

// Is lets callers test API errors against the domain sentinels.
func (e *APIError) Is(target error) bool {
	switch e.Status {
	case http.StatusNotFound:
		return target == apperrors.ErrNotFound
	case http.StatusBadRequest:
		return target == apperrors.ErrInvalidInput
	case http.StatusConflict:
		if e.Barcode != "" {
			return target == apperrors.ErrInsufficientStock
		}
		return target == apperrors.ErrDuplicateBarcode
	}
	return false
}

// SalesPage is the answer to a transaction query.
type SalesPage struct {
	Results   []sales.Transaction `json:"results"`
	Metadata  sales.Summary       `json:"metadata"`
	TotalCash decimal.Decimal     `json:"totalCash"`
}

type Client struct {
	http *resty.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second).
			SetHeader("Accept", "application/json"),
	}
}

func (c *Client) Close() error {
	return c.http.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/ping", nil, nil, nil)
}

func (c *Client) RegisterProduct(ctx context.Context, p inventory.Product) (inventory.Product, error) {
	var out inventory.Product
	err := c.do(ctx, http.MethodPost, "/products", nil, p, &out)
	return out, err
}

func (c *Client) Product(ctx context.Context, barcode string) (inventory.Product, error) {
	var out inventory.Product
	err := c.do(ctx, http.MethodGet, "/products/{barcode}", map[string]string{"barcode": barcode}, nil, &out)
	return out, err
}

func (c *Client) Sell(ctx context.Context, barcode string, qty int) (coordinator.SaleResult, error) {
	var out coordinator.SaleResult
	err := c.do(ctx, http.MethodPost, "/sales", nil, coordinator.SaleLine{Barcode: barcode, Quantity: qty}, &out)
	return out, err
}

func (c *Client) SellMulti(ctx context.Context, lines []coordinator.SaleLine) (coordinator.MultiSaleResult, error) {
	var out coordinator.MultiSaleResult
	body := map[string]any{"lines": lines}
	err := c.do(ctx, http.MethodPost, "/sales/multi", nil, body, &out)
	return out, err
}

func (c *Client) CancelSale(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/sales/{id}", map[string]string{"id": id}, nil, nil)
}

func (c *Client) CancelMultiSale(ctx context.Context, groupID string) error {
	return c.do(ctx, http.MethodDelete, "/sales/groups/{groupId}", map[string]string{"groupId": groupID}, nil, nil)
}

// Sales lists transactions for period whose product name contains name.
func (c *Client) Sales(ctx context.Context, period sales.Period, name string) (SalesPage, error) {
	var out SalesPage
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("period", string(period)).
		SetQueryParam("q", name).
		SetResult(&out).
		SetError(&APIError{}).
		Get("/sales")
	if err != nil {
		return SalesPage{}, fmt.Errorf("GET /sales: %w", err)
	}
	return out, apiError(res)
}

// CloseRegister removes the period's transactions from the journal.
func (c *Client) CloseRegister(ctx context.Context, period sales.Period) (coordinator.CloseResult, error) {
	var out struct {
		Result coordinator.CloseResult `json:"result"`
	}
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("period", string(period)).
		SetResult(&out).
		SetError(&APIError{}).
		Post("/register/close")
	if err != nil {
		return coordinator.CloseResult{}, fmt.Errorf("POST /register/close: %w", err)
	}
	return out.Result, apiError(res)
}

func (c *Client) Dashboard(ctx context.Context) (coordinator.Dashboard, error) {
	var out coordinator.Dashboard
	err := c.do(ctx, http.MethodGet, "/dashboard", nil, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, params map[string]string, body, result any) error {
	req := c.http.R().
		SetContext(ctx).
		SetPathParams(params).
		SetError(&APIError{})
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	res, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return apiError(res)
}

func apiError(res *resty.Response) error {
	if !res.IsError() {
		return nil
	}
	apiErr, ok := res.Error().(*APIError)
	if !ok || apiErr == nil {
		apiErr = &APIError{Message: res.String()}
	}
	apiErr.Status = res.StatusCode()
	return apiErr
}
