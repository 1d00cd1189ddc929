package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lakshya1282/genAi-project-sub000/internal/payment/domain"
	"github.com/lakshya1282/genAi-project-sub000/internal/platform/logger"
)

var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Client is the external payment gateway contract: create a gateway-side
// order, fetch an authoritative payment record, issue refunds.
type Client interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*domain.GatewayOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (*domain.GatewayPayment, error)
	Refund(ctx context.Context, paymentID string, amount int64) (*domain.GatewayRefund, error)
}

type httpGatewayClient struct {
	BaseURL    string
	keyID      string
	keySecret  string
	HTTPClient *http.Client
}

func NewHTTPClient(baseURL, keyID, keySecret string) Client {
	return &httpGatewayClient{
		BaseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *httpGatewayClient) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body *bytes.Buffer
	if payload != nil {
		jsonPayload, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal gateway request: %w", err)
		}
		body = bytes.NewBuffer(jsonPayload)
	} else {
		body = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		logger.Error("GatewayClient: request failed "+path, err, nil)
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: gateway returned status %d", ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var errResp struct {
			Error struct {
				Description string `json:"description"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("gateway rejected %s %s: status %d %s", method, path, resp.StatusCode, errResp.Error.Description)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode gateway response: %w", err)
		}
	}
	return nil
}

func (c *httpGatewayClient) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*domain.GatewayOrder, error) {
	payload := map[string]interface{}{"amount": amount, "currency": currency, "receipt": receipt}
	var order domain.GatewayOrder
	if err := c.do(ctx, http.MethodPost, "/v1/orders", payload, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *httpGatewayClient) FetchPayment(ctx context.Context, paymentID string) (*domain.GatewayPayment, error) {
	var payment domain.GatewayPayment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (c *httpGatewayClient) Refund(ctx context.Context, paymentID string, amount int64) (*domain.GatewayRefund, error) {
	payload := map[string]interface{}{"amount": amount}
	var refund domain.GatewayRefund
	if err := c.do(ctx, http.MethodPost, "/v1/payments/"+paymentID+"/refund", payload, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}
