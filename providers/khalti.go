package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/AmanCH3/hamro-grocery-backend/config"
	"github.com/AmanCH3/hamro-grocery-backend/models"
)

// KhaltiProvider implements PaymentProvider using the Khalti ePayment API.
type KhaltiProvider struct {
	cfg        config.KhaltiConfig
	httpClient *http.Client
}

// NewKhaltiProvider creates a KhaltiProvider. Every call is bounded by
// cfg.Timeout.
func NewKhaltiProvider(cfg config.KhaltiConfig) *KhaltiProvider {
	return &KhaltiProvider{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// ---- Khalti API request/response structs ----

type khaltiCustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type khaltiInitiateRequest struct {
	ReturnURL         string             `json:"return_url"`
	WebsiteURL        string             `json:"website_url"`
	Amount            int64              `json:"amount"`
	PurchaseOrderID   string             `json:"purchase_order_id"`
	PurchaseOrderName string             `json:"purchase_order_name"`
	CustomerInfo      khaltiCustomerInfo `json:"customer_info"`
}

type khaltiInitiateResponse struct {
	Pidx       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
}

type khaltiLookupRequest struct {
	Pidx string `json:"pidx"`
}

type khaltiLookupResponse struct {
	Pidx          string `json:"pidx"`
	TotalAmount   *int64 `json:"total_amount"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
}

func (k *KhaltiProvider) Name() string { return models.PaymentMethodKhalti }

// Initiate opens an ePayment session and returns its pidx and payment URL.
func (k *KhaltiProvider) Initiate(ctx context.Context, req InitiateRequest) (*Session, error) {
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("khalti initiate: amount must be positive, got %d", req.AmountMinor)
	}
	body := khaltiInitiateRequest{
		ReturnURL:         k.cfg.ReturnURL,
		WebsiteURL:        k.cfg.WebsiteURL,
		Amount:            req.AmountMinor,
		PurchaseOrderID:   req.OrderID,
		PurchaseOrderName: req.OrderName,
		CustomerInfo: khaltiCustomerInfo{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
	}

	var resp khaltiInitiateResponse
	if err := k.doRequest(ctx, "/epayment/initiate/", body, &resp); err != nil {
		return nil, fmt.Errorf("khalti initiate: %w", err)
	}
	if resp.Pidx == "" || resp.PaymentURL == "" {
		return nil, fmt.Errorf("khalti initiate: %w", gatewayError("response missing pidx or payment_url"))
	}
	return &Session{TransactionRef: resp.Pidx, PaymentURL: resp.PaymentURL}, nil
}

// Lookup asks Khalti for the authoritative state of a transaction.
func (k *KhaltiProvider) Lookup(ctx context.Context, pidx string) (*LookupResult, error) {
	var resp khaltiLookupResponse
	if err := k.doRequest(ctx, "/epayment/lookup/", khaltiLookupRequest{Pidx: pidx}, &resp); err != nil {
		return nil, fmt.Errorf("khalti lookup: %w", err)
	}
	if resp.Status == "" || resp.TotalAmount == nil {
		return nil, fmt.Errorf("khalti lookup: %w", gatewayError("response missing status or total_amount"))
	}
	return &LookupResult{
		TransactionRef: pidx,
		Status:         khaltiStatus(resp.Status),
		GatewayStatus:  resp.Status,
		PaidMinor:      *resp.TotalAmount,
	}, nil
}

// khaltiStatus folds Khalti's lookup states into Completed, Pending and
// Failed. Unknown states are treated as pending so they are retried rather
// than released.
func khaltiStatus(s string) Status {
	switch s {
	case "Completed":
		return StatusCompleted
	case "Pending", "Initiated":
		return StatusPending
	case "Expired", "User canceled", "Refunded", "Partially Refunded":
		return StatusFailed
	default:
		return StatusPending
	}
}

func (k *KhaltiProvider) doRequest(ctx context.Context, path string, body interface{}, out interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.cfg.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+k.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return gatewayError("http do: %v", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return gatewayError("read response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gatewayError("khalti API error (status %d): %s", resp.StatusCode, string(respBytes))
	}

	if err := json.Unmarshal(respBytes, out); err != nil {
		return gatewayError("decode response: %v", err)
	}
	return nil
}
