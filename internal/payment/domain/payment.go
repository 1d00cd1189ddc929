package domain

import "time"

// Gateway-side payment statuses we accept as money-in-hand.
const (
	GatewayStatusCaptured   = "captured"
	GatewayStatusAuthorized = "authorized"
)

const CurrencyINR = "INR"

// GatewayOrder is the handle the gateway returns for a checkout session.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"` // paise
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// GatewayPayment is the authoritative payment record fetched from the
// gateway. The client-submitted callback payload is never trusted alone.
type GatewayPayment struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"` // gateway order id
	Status  string `json:"status"`
	Amount  int64  `json:"amount"`
	Method  string `json:"method"`
}

type GatewayRefund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

// --- Requests / results ---

type VerifyPaymentRequest struct {
	OrderID          string `json:"order_id" binding:"required"`
	GatewayOrderID   string `json:"gateway_order_id" binding:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" binding:"required"`
	Signature        string `json:"signature" binding:"required"`
}

type RefundRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	Amount        int64  `json:"amount" binding:"gte=0"` // 0 means full refund
	Reason        string `json:"reason"`
}

type BulkRefundRequest struct {
	Refunds []RefundRequest `json:"refunds" binding:"required,dive"`
}

type RefundResult struct {
	TransactionID string `json:"transaction_id"`
	Success       bool   `json:"success"`
	RefundID      string `json:"refund_id,omitempty"`
	Code          string `json:"code,omitempty"`
	Error         string `json:"error,omitempty"`
}

// --- Webhook envelope ---

type WebhookPayment struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type WebhookRefund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

type WebhookPayload struct {
	Payment *WebhookPayment `json:"payment,omitempty"`
	Refund  *WebhookRefund  `json:"refund,omitempty"`
}

type WebhookEvent struct {
	Event   string         `json:"event"`
	Payload WebhookPayload `json:"payload"`
}

// ReminderDue is one failed-payment order whose reminder window opened.
type ReminderDue struct {
	OrderID     string
	UserID      string
	OrderNumber string
	Deadline    time.Time
}
