package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lakshya1282/genAi-project-sub000/internal/platform/logger"
)

// Event names consumed by the notification dispatcher.
const (
	EventOrderPlaced      = "order.placed"
	EventOrderCancelled   = "order.cancelled"
	EventOrderStatus      = "order.status_changed"
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
	EventPaymentReminder  = "payment.retry_reminder"
	EventPaymentAbandoned = "payment.abandoned"
	EventRefundProcessed  = "refund.processed"
	EventStockLow         = "stock.low"
	EventStockOut         = "stock.out"
	EventStockRestored    = "stock.restored"
)

// Notifier is the dispatcher contract: fire-and-forget. Callers must never
// block on it or surface its errors to the request path.
type Notifier interface {
	Notify(ctx context.Context, event, refID string, payload map[string]interface{}) error
}

type httpNotifier struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewHTTPNotifier(baseURL string) Notifier {
	return &httpNotifier{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type notifyRequest struct {
	Event   string                 `json:"event"`
	RefID   string                 `json:"ref_id"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

func (n *httpNotifier) Notify(ctx context.Context, event, refID string, payload map[string]interface{}) error {
	body, err := json.Marshal(notifyRequest{Event: event, RefID: refID, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal notify request: %w", err)
	}

	reqURL := n.BaseURL + "/api/v1/notifications"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create notify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call notification dispatcher: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("notification dispatcher returned status %d for event %s", resp.StatusCode, event)
	}
	return nil
}

// Dispatch sends the event on a fresh goroutine with its own timeout so the
// caller's transaction or request is never held up by the dispatcher.
func Dispatch(n Notifier, event, refID string, payload map[string]interface{}) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.Notify(ctx, event, refID, payload); err != nil {
			logger.Error(fmt.Sprintf("Notify %s for %s failed", event, refID), err, nil)
		}
	}()
}

// NopNotifier backs tests and local runs without a dispatcher.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, event, refID string, payload map[string]interface{}) error {
	return nil
}
