package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

const mercadoPagoBaseURL = "https://api.mercadopago.com"

var mpJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// MercadoPagoProvider adapts the Mercado Pago REST API to the provider
// port. Requests are rate limited client-side and retried on transient
// failures.
type MercadoPagoProvider struct {
	accessToken string
	baseURL     string
	client      *retryablehttp.Client
	limiter     *rate.Limiter
	logger      *logger.Logger
}

func NewMercadoPagoProvider(accessToken string, log *logger.Logger) *MercadoPagoProvider {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = nil

	return &MercadoPagoProvider{
		accessToken: accessToken,
		baseURL:     mercadoPagoBaseURL,
		client:      client,
		limiter:     rate.NewLimiter(rate.Limit(10), 20),
		logger:      log,
	}
}

// WithBaseURL overrides the API host, e.g. for sandbox environments
func (m *MercadoPagoProvider) WithBaseURL(url string) *MercadoPagoProvider {
	if url != "" {
		m.baseURL = url
	}
	return m
}

func (m *MercadoPagoProvider) Kind() types.ProviderKind {
	return types.ProviderMercadoPago
}

type mpCustomer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type mpCard struct {
	ID              string `json:"id"`
	LastFourDigits  string `json:"last_four_digits"`
	ExpirationMonth int    `json:"expiration_month"`
	ExpirationYear  int    `json:"expiration_year"`
	PaymentMethod   struct {
		Name string `json:"name"`
	} `json:"payment_method"`
}

type mpPayment struct {
	ID           int64  `json:"id"`
	Status       string `json:"status"`
	StatusDetail string `json:"status_detail"`
}

type mpRefund struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

func (m *MercadoPagoProvider) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	body := map[string]any{
		"email":      email,
		"first_name": name,
	}
	var out mpCustomer
	if err := m.do(ctx, http.MethodPost, "/v1/customers", "", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (m *MercadoPagoProvider) GetCustomer(ctx context.Context, providerCustomerID string) (string, error) {
	path := fmt.Sprintf("/v1/customers/%s", providerCustomerID)
	var out mpCustomer
	if err := m.do(ctx, http.MethodGet, path, "", nil, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (m *MercadoPagoProvider) DeleteCustomer(ctx context.Context, providerCustomerID string) error {
	path := fmt.Sprintf("/v1/customers/%s", providerCustomerID)
	return m.do(ctx, http.MethodDelete, path, "", nil, nil)
}

func (m *MercadoPagoProvider) AttachPaymentMethod(ctx context.Context, req AttachRequest) (*AttachResult, error) {
	path := fmt.Sprintf("/v1/customers/%s/cards", req.ProviderCustomerID)
	body := map[string]any{"token": req.MethodToken}

	var out mpCard
	if err := m.do(ctx, http.MethodPost, path, "", body, &out); err != nil {
		return nil, err
	}
	return &AttachResult{
		ProviderMethodID: out.ID,
		Type:             types.PaymentMethodTypeCard,
		CardLast4:        out.LastFourDigits,
		CardBrand:        out.PaymentMethod.Name,
		CardExpMonth:     out.ExpirationMonth,
		CardExpYear:      out.ExpirationYear,
	}, nil
}

func (m *MercadoPagoProvider) DetachPaymentMethod(ctx context.Context, providerMethodID string) error {
	path := fmt.Sprintf("/v1/cards/%s", providerMethodID)
	return m.do(ctx, http.MethodDelete, path, "", nil, nil)
}

func (m *MercadoPagoProvider) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	body := map[string]any{
		"transaction_amount": float64(req.Amount) / 100,
		"currency_id":        string(req.Currency),
		"description":        req.Description,
		"payer": map[string]any{
			"id": req.ProviderCustomerID,
		},
		"token":        req.ProviderMethodID,
		"metadata":     req.Metadata,
		"installments": 1,
	}

	var out mpPayment
	if err := m.do(ctx, http.MethodPost, "/v1/payments", req.IdempotencyKey, body, &out); err != nil {
		return nil, err
	}

	result := &ChargeResult{
		ProviderPaymentID: fmt.Sprintf("%d", out.ID),
		Status:            mapMercadoPagoStatus(out.Status),
	}
	if result.Status == types.PaymentStatusFailed {
		result.FailureCode = out.StatusDetail
		result.FailureMessage = out.StatusDetail
	}
	return result, nil
}

func (m *MercadoPagoProvider) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	path := fmt.Sprintf("/v1/payments/%s/refunds", req.ProviderPaymentID)
	body := map[string]any{
		"amount": float64(req.Amount) / 100,
	}

	var out mpRefund
	if err := m.do(ctx, http.MethodPost, path, req.IdempotencyKey, body, &out); err != nil {
		return nil, err
	}

	status := types.RefundStatusPending
	if out.Status == "approved" {
		status = types.RefundStatusSucceeded
	} else if out.Status == "rejected" {
		status = types.RefundStatusFailed
	}
	return &RefundResult{
		ProviderRefundID: fmt.Sprintf("%d", out.ID),
		Status:           status,
	}, nil
}

func (m *MercadoPagoProvider) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	body := map[string]any{
		"amount":      float64(req.Amount) / 100,
		"currency_id": string(req.Currency),
		"receiver_id": req.ProviderAccountID,
		"description": req.Description,
	}

	var out struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	if err := m.do(ctx, http.MethodPost, "/v1/advanced_payments/transfers", req.IdempotencyKey, body, &out); err != nil {
		return nil, err
	}

	status := types.PayoutStatusScheduled
	if out.Status == "approved" {
		status = types.PayoutStatusPaid
	}
	return &TransferResult{
		ProviderTransferID: fmt.Sprintf("%d", out.ID),
		Status:             status,
	}, nil
}

func mapMercadoPagoStatus(status string) types.PaymentStatus {
	switch status {
	case "approved":
		return types.PaymentStatusSucceeded
	case "pending", "in_process":
		return types.PaymentStatusProcessing
	case "authorized":
		return types.PaymentStatusRequiresCapture
	case "cancelled":
		return types.PaymentStatusCanceled
	case "refunded":
		return types.PaymentStatusRefunded
	default:
		return types.PaymentStatusFailed
	}
}

func (m *MercadoPagoProvider) do(ctx context.Context, method, path, idempotencyKey string, body, out any) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return ierr.WithError(err).
			WithMessage("rate limiter wait aborted").
			Mark(ierr.ErrProviderUnavailable)
	}

	var reader io.Reader
	if body != nil {
		raw, err := mpJSON.Marshal(body)
		if err != nil {
			return ierr.WithError(err).
				WithMessage("failed to encode request body").
				Mark(ierr.ErrSystem)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, m.baseURL+path, reader)
	if err != nil {
		return ierr.WithError(err).
			WithMessage("failed to build request").
			Mark(ierr.ErrSystem)
	}
	req.Header.Set("Authorization", "Bearer "+m.accessToken)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Errorw("mercadopago request failed", "method", method, "path", path, "error", err)
		return ierr.WithError(err).
			WithMessage("mercadopago request failed").
			WithHint("Mercado Pago request failed").
			Mark(ierr.ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ierr.WithError(err).
			WithMessage("failed to read response body").
			Mark(ierr.ErrProviderUnavailable)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ierr.NewError("mercadopago resource not found").
			WithHint("The resource does not exist at Mercado Pago").
			WithReportableDetails(map[string]any{"path": path}).
			Mark(ierr.ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		m.logger.Errorw("mercadopago returned error status",
			"method", method, "path", path, "status", resp.StatusCode)
		return ierr.NewError("mercadopago returned error status").
			WithHint("Mercado Pago rejected the request").
			WithReportableDetails(map[string]any{
				"status": resp.StatusCode,
				"path":   path,
			}).
			Mark(ierr.ErrProviderUnavailable)
	}

	if out != nil && len(raw) > 0 {
		if err := mpJSON.Unmarshal(raw, out); err != nil {
			return ierr.WithError(err).
				WithMessage("failed to decode response body").
				Mark(ierr.ErrProviderUnavailable)
		}
	}
	return nil
}
