package domain

import (
	"encoding/json"
	"time"
)

// Status is the coarse payment/fulfillment gate. OrderStatus below is the
// seller-facing pipeline stage; the two move independently (COD orders are
// COMPLETED at creation while fulfillment is still "placed").
type Status string

const (
	StatusAwaitingPayment Status = "AWAITING_PAYMENT"
	StatusCompleted       Status = "COMPLETED"
	StatusCancelled       Status = "CANCELLED"
)

type FulfillmentStatus string

const (
	FulfillmentPlaced     FulfillmentStatus = "placed"
	FulfillmentConfirmed  FulfillmentStatus = "confirmed"
	FulfillmentProcessing FulfillmentStatus = "processing"
	FulfillmentShipped    FulfillmentStatus = "shipped"
	FulfillmentDelivered  FulfillmentStatus = "delivered"
	FulfillmentCancelled  FulfillmentStatus = "cancelled"
)

var fulfillmentRank = map[FulfillmentStatus]int{
	FulfillmentPlaced:     0,
	FulfillmentConfirmed:  1,
	FulfillmentProcessing: 2,
	FulfillmentShipped:    3,
	FulfillmentDelivered:  4,
}

// CanTransitionTo enforces the pipeline rule: strictly forward through
// placed->confirmed->processing->shipped->delivered (skipping forward is
// allowed), or to cancelled from any pre-shipment stage.
func (s FulfillmentStatus) CanTransitionTo(next FulfillmentStatus) bool {
	cur, curOK := fulfillmentRank[s]
	if !curOK {
		return false // already cancelled, terminal
	}
	if next == FulfillmentCancelled {
		return cur < fulfillmentRank[FulfillmentShipped]
	}
	nextRank, nextOK := fulfillmentRank[next]
	if !nextOK {
		return false
	}
	return nextRank > cur
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentAbandoned PaymentStatus = "abandoned"
)

const (
	PaymentMethodCOD    = "cod"
	PaymentMethodOnline = "online"
)

// PaymentDetails is embedded in Order; the payment orchestrator owns it.
type PaymentDetails struct {
	Method         string        `json:"method"`
	GatewayOrderID string        `json:"gateway_order_id,omitempty"`
	TransactionID  string        `json:"transaction_id,omitempty"`
	Status         PaymentStatus `json:"status"`
	FailureReason  string        `json:"failure_reason,omitempty"`
	RetryAvailable bool          `json:"retry_available"`
	RetryDeadline  *time.Time    `json:"retry_deadline,omitempty"`
	LastRetryAt    *time.Time    `json:"last_retry_at,omitempty"`
	ReminderLevel  int           `json:"-"` // 0 none, 1 sent 18h mark, 2 sent 23h mark
	RefundStatus   string        `json:"refund_status,omitempty"`
	RefundID       string        `json:"refund_id,omitempty"`
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type Order struct {
	ID              string            `json:"id"`
	OrderNumber     string            `json:"order_number"`
	UserID          string            `json:"user_id"`
	Status          Status            `json:"status"`
	OrderStatus     FulfillmentStatus `json:"order_status"`
	Items           []OrderItem       `json:"items,omitempty"`
	Subtotal        int64             `json:"subtotal"` // all money in paise
	ShippingCost    int64             `json:"shipping_cost"`
	Tax             int64             `json:"tax"`
	Total           int64             `json:"total"`
	ShippingAddress Address           `json:"shipping_address"`
	Payment         PaymentDetails    `json:"payment_details"`
	StatusHistory   []StatusEntry     `json:"status_history,omitempty"`

	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	ShippedAt         *time.Time `json:"shipped_at,omitempty"`
	ActualDelivery    *time.Time `json:"actual_delivery,omitempty"`
	TrackingNumber    string     `json:"tracking_number,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderItem is a frozen snapshot taken at debit time. Unit price and name are
// never recomputed from the live product.
type OrderItem struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"-"`
	ProductID   string    `json:"product_id"`
	SellerID    string    `json:"seller_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	UnitPrice   int64     `json:"unit_price"`
	LineTotal   int64     `json:"line_total"`
	Reviewed    bool      `json:"reviewed"`
	CreatedAt   time.Time `json:"created_at"`
}

// StatusEntry rows are append-only; history is never rewritten or pruned.
type StatusEntry struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"-"`
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Review struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	ProductID string    `json:"product_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// --- Requests ---

// OrderItemRequest normalizes the historical payload shapes: older clients
// send "product", newer ones "product_id". The core only ever sees the
// normalized struct.
type OrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (r *OrderItemRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Product   string `json:"product"`
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.ProductID = raw.ProductID
	if r.ProductID == "" {
		r.ProductID = raw.Product
	}
	r.Quantity = raw.Quantity
	return nil
}

type PlaceOrderRequest struct {
	UserID          string             `json:"user_id" binding:"required"`
	Items           []OrderItemRequest `json:"items" binding:"required"`
	ShippingAddress Address            `json:"shipping_address" binding:"required"`
	PaymentMethod   string             `json:"payment_method" binding:"required,oneof=cod online"`
}

// CheckoutFromCartRequest carries the same semantics as PlaceOrderRequest;
// the item list comes from the submitted cart instead of an ad-hoc list.
type CheckoutFromCartRequest struct {
	UserID          string             `json:"user_id" binding:"required"`
	CartItems       []OrderItemRequest `json:"cart_items" binding:"required"`
	ShippingAddress Address            `json:"shipping_address" binding:"required"`
	PaymentMethod   string             `json:"payment_method" binding:"required,oneof=cod online"`
}

type UpdateStatusRequest struct {
	Status         FulfillmentStatus `json:"status" binding:"required"`
	Note           string            `json:"note"`
	TrackingNumber string            `json:"tracking_number"`
}

type BulkStatusUpdate struct {
	OrderID        string            `json:"order_id" binding:"required"`
	Status         FulfillmentStatus `json:"status" binding:"required"`
	Note           string            `json:"note"`
	TrackingNumber string            `json:"tracking_number"`
}

type BulkStatusUpdateRequest struct {
	Updates []BulkStatusUpdate `json:"updates" binding:"required,dive"`
}

type AddReviewRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Rating    int    `json:"rating" binding:"required,gte=1,lte=5"`
	Comment   string `json:"comment"`
}

// BulkResult reports one item of a bulk operation; a failure never aborts
// the other items.
type BulkResult struct {
	OrderID string `json:"order_id"`
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}
