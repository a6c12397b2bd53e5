package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// CreatePaymentRequest is the outbound registration payload.
type CreatePaymentRequest struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	PaymentCode string `json:"payment_code"`
	CallbackURL string `json:"callback_url"`
}

// CreatePaymentResult carries the bank's correlation id and the URL the
// taxpayer is redirected to for payment.
type CreatePaymentResult struct {
	BankPaymentID string `json:"id"`
	PayURL        string `json:"pay_url"`
}

// RemoteError is returned when the bank answers with a non-2xx status.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bank api returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the bank's payment-registration API. The single call is
// synchronous, bearer-authenticated, and bounded by the configured timeout.
// It performs no retries; the caller owns the failure.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.timeout()},
	}
}

// CallbackURL returns the address the bank is asked to notify.
func (c *Client) CallbackURL() string {
	return c.cfg.CallbackURL
}

// CreatePayment registers a payment with the bank and returns its id and pay URL.
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	if req.CallbackURL == "" {
		req.CallbackURL = c.cfg.CallbackURL
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bank payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build bank payment request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("bank api call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("failed to read bank api response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result CreatePaymentResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode bank api response: %w", err)
	}
	if result.BankPaymentID == "" {
		return nil, fmt.Errorf("bank api response missing payment id")
	}

	return &result, nil
}
