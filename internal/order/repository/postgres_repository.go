package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lakshya1282/genAi-project-sub000/internal/order/domain"
	"github.com/lakshya1282/genAi-project-sub000/internal/platform/logger"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// DBTX can be *sql.DB or *sql.Tx (same shape as the inventory repository's,
// so one transaction can span both repositories).
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
	Commit() error
	Rollback() error
}

type OrderRepository interface {
	BeginTx(ctx context.Context) (DBTX, error)

	// NextOrderNumber draws from a Postgres sequence so concurrent checkouts
	// can never mint the same number.
	NextOrderNumber(ctx context.Context, dbops DBTX) (string, error)

	InsertOrderWithItems(ctx context.Context, dbops DBTX, order *domain.Order) error
	AppendStatusHistory(ctx context.Context, dbops DBTX, orderID, status, note string) error

	GetOrderByID(ctx context.Context, orderID string) (*domain.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]domain.OrderItem, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListOrdersBySeller(ctx context.Context, sellerID string) ([]domain.Order, error)

	// MarkCancelled is the compare-and-swap for explicit cancellation: it only
	// wins when the order is not already CANCELLED and not yet shipped.
	MarkCancelled(ctx context.Context, dbops DBTX, orderID string) (bool, error)

	// MarkCompleted flips the coarse gate AWAITING_PAYMENT -> COMPLETED.
	MarkCompleted(ctx context.Context, orderID string) (bool, error)

	SetFulfillmentStatus(ctx context.Context, dbops DBTX, orderID string, status domain.FulfillmentStatus, trackingNumber string, shippedAt, deliveredAt *time.Time) error

	InsertReview(ctx context.Context, dbops DBTX, review *domain.Review) error
	MarkItemReviewed(ctx context.Context, dbops DBTX, orderID, productID string) error
}

type postgresOrderRepository struct {
	db *sql.DB
}

func NewPostgresOrderRepository(db *sql.DB) OrderRepository {
	return &postgresOrderRepository{db: db}
}

func (r *postgresOrderRepository) BeginTx(ctx context.Context) (DBTX, error) {
	return r.db.BeginTx(ctx, nil)
}

func (r *postgresOrderRepository) NextOrderNumber(ctx context.Context, dbops DBTX) (string, error) {
	var seq int64
	if err := dbops.QueryRowContext(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		logger.Error("NextOrderNumber: nextval failed", err, nil)
		return "", err
	}
	return fmt.Sprintf("ORD-%s-%06d", time.Now().UTC().Format("20060102"), seq), nil
}

func (r *postgresOrderRepository) InsertOrderWithItems(ctx context.Context, dbops DBTX, order *domain.Order) error {
	addressJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping address: %w", err)
	}

	order.ID = uuid.NewString()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt

	orderQuery := `INSERT INTO orders
        (id, order_number, user_id, status, order_status, subtotal, shipping_cost, tax, total,
         shipping_address, payment_method, payment_status, estimated_delivery, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err = dbops.ExecContext(ctx, orderQuery,
		order.ID, order.OrderNumber, order.UserID, order.Status, order.OrderStatus,
		order.Subtotal, order.ShippingCost, order.Tax, order.Total,
		addressJSON, order.Payment.Method, order.Payment.Status,
		order.EstimatedDelivery, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		logger.Error("InsertOrderWithItems: failed to insert order", err, nil)
		return err
	}

	itemStmt, err := dbops.PrepareContext(ctx, `INSERT INTO order_items
        (id, order_id, product_id, seller_id, product_name, quantity, unit_price, line_total, reviewed, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9)`)
	if err != nil {
		logger.Error("InsertOrderWithItems: failed to prepare item statement", err, nil)
		return err
	}
	defer itemStmt.Close()

	for i := range order.Items {
		order.Items[i].ID = uuid.NewString()
		order.Items[i].OrderID = order.ID
		order.Items[i].CreatedAt = order.CreatedAt
		it := order.Items[i]
		if _, err := itemStmt.ExecContext(ctx, it.ID, it.OrderID, it.ProductID, it.SellerID,
			it.ProductName, it.Quantity, it.UnitPrice, it.LineTotal, it.CreatedAt); err != nil {
			logger.Error("InsertOrderWithItems: failed to insert order item", err, map[string]interface{}{"item_product_id": it.ProductID})
			return err
		}
	}
	return nil
}

func (r *postgresOrderRepository) AppendStatusHistory(ctx context.Context, dbops DBTX, orderID, status, note string) error {
	query := `INSERT INTO order_status_history (id, order_id, status, note, created_at)
              VALUES ($1, $2, $3, $4, $5)`
	_, err := dbops.ExecContext(ctx, query, uuid.NewString(), orderID, status, note, time.Now())
	if err != nil {
		logger.Error("AppendStatusHistory: exec failed", err, map[string]interface{}{"order_id": orderID, "status": status})
	}
	return err
}

const orderColumns = `id, order_number, user_id, status, order_status, subtotal, shipping_cost, tax, total,
    shipping_address, payment_method, payment_status, gateway_order_id, transaction_id,
    payment_failure_reason, retry_available, retry_deadline, last_retry_at, reminder_level,
    refund_status, refund_id, estimated_delivery, shipped_at, actual_delivery, tracking_number,
    created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var addressJSON []byte
	var gatewayOrderID, transactionID, failureReason, refundStatus, refundID, trackingNumber sql.NullString
	var retryDeadline, lastRetryAt, estimatedDelivery, shippedAt, actualDelivery sql.NullTime

	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.OrderStatus,
		&o.Subtotal, &o.ShippingCost, &o.Tax, &o.Total,
		&addressJSON, &o.Payment.Method, &o.Payment.Status, &gatewayOrderID, &transactionID,
		&failureReason, &o.Payment.RetryAvailable, &retryDeadline, &lastRetryAt, &o.Payment.ReminderLevel,
		&refundStatus, &refundID, &estimatedDelivery, &shippedAt, &actualDelivery, &trackingNumber,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if len(addressJSON) > 0 {
		if err := json.Unmarshal(addressJSON, &o.ShippingAddress); err != nil {
			return nil, fmt.Errorf("failed to unmarshal shipping address: %w", err)
		}
	}
	o.Payment.GatewayOrderID = gatewayOrderID.String
	o.Payment.TransactionID = transactionID.String
	o.Payment.FailureReason = failureReason.String
	o.Payment.RefundStatus = refundStatus.String
	o.Payment.RefundID = refundID.String
	o.TrackingNumber = trackingNumber.String
	if retryDeadline.Valid {
		o.Payment.RetryDeadline = &retryDeadline.Time
	}
	if lastRetryAt.Valid {
		o.Payment.LastRetryAt = &lastRetryAt.Time
	}
	if estimatedDelivery.Valid {
		o.EstimatedDelivery = &estimatedDelivery.Time
	}
	if shippedAt.Valid {
		o.ShippedAt = &shippedAt.Time
	}
	if actualDelivery.Valid {
		o.ActualDelivery = &actualDelivery.Time
	}
	return &o, nil
}

func (r *postgresOrderRepository) GetOrderByID(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if !errors.Is(err, ErrOrderNotFound) {
			logger.Error("GetOrderByID: query failed", err, nil)
		}
		return nil, err
	}

	if o.Items, err = r.GetOrderItemsByOrderID(ctx, orderID); err != nil {
		return nil, err
	}
	if o.StatusHistory, err = r.getStatusHistory(ctx, orderID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresOrderRepository) GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	query := `SELECT id, order_id, product_id, seller_id, product_name, quantity, unit_price, line_total, reviewed, created_at
              FROM order_items WHERE order_id = $1`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		logger.Error("GetOrderItemsByOrderID: query failed", err, nil)
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var i domain.OrderItem
		if err := rows.Scan(&i.ID, &i.OrderID, &i.ProductID, &i.SellerID, &i.ProductName,
			&i.Quantity, &i.UnitPrice, &i.LineTotal, &i.Reviewed, &i.CreatedAt); err != nil {
			logger.Error("GetOrderItemsByOrderID: scan failed", err, nil)
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func (r *postgresOrderRepository) getStatusHistory(ctx context.Context, orderID string) ([]domain.StatusEntry, error) {
	query := `SELECT id, order_id, status, note, created_at
              FROM order_status_history WHERE order_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		logger.Error("getStatusHistory: query failed", err, nil)
		return nil, err
	}
	defer rows.Close()

	var history []domain.StatusEntry
	for rows.Next() {
		var e domain.StatusEntry
		var note sql.NullString
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Status, &note, &e.CreatedAt); err != nil {
			logger.Error("getStatusHistory: scan failed", err, nil)
			return nil, err
		}
		e.Note = note.String
		history = append(history, e)
	}
	return history, rows.Err()
}

func (r *postgresOrderRepository) listOrders(ctx context.Context, query string, arg interface{}) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		logger.Error("listOrders: query failed", err, nil)
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			logger.Error("listOrders: scan failed", err, nil)
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (r *postgresOrderRepository) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	return r.listOrders(ctx, query, userID)
}

func (r *postgresOrderRepository) ListOrdersBySeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	query := `SELECT ` + qualifiedOrderColumns("o") + `
              FROM orders o
              WHERE EXISTS (SELECT 1 FROM order_items i WHERE i.order_id = o.id AND i.seller_id = $1)
              ORDER BY o.created_at DESC`
	return r.listOrders(ctx, query, sellerID)
}

func qualifiedOrderColumns(alias string) string {
	return alias + `.id, ` + alias + `.order_number, ` + alias + `.user_id, ` + alias + `.status, ` + alias + `.order_status, ` +
		alias + `.subtotal, ` + alias + `.shipping_cost, ` + alias + `.tax, ` + alias + `.total, ` +
		alias + `.shipping_address, ` + alias + `.payment_method, ` + alias + `.payment_status, ` + alias + `.gateway_order_id, ` +
		alias + `.transaction_id, ` + alias + `.payment_failure_reason, ` + alias + `.retry_available, ` + alias + `.retry_deadline, ` +
		alias + `.last_retry_at, ` + alias + `.reminder_level, ` + alias + `.refund_status, ` + alias + `.refund_id, ` +
		alias + `.estimated_delivery, ` + alias + `.shipped_at, ` + alias + `.actual_delivery, ` + alias + `.tracking_number, ` +
		alias + `.created_at, ` + alias + `.updated_at`
}

func (r *postgresOrderRepository) MarkCancelled(ctx context.Context, dbops DBTX, orderID string) (bool, error) {
	// retry_available must drop with the cancellation, or the payment sweep
	// keeps sending retry reminders for an order that no longer exists.
	query := `UPDATE orders
              SET status = $1, order_status = $2, retry_available = FALSE, updated_at = NOW()
              WHERE id = $3 AND status <> $1 AND order_status NOT IN ($4, $5)`
	res, err := dbops.ExecContext(ctx, query,
		domain.StatusCancelled, domain.FulfillmentCancelled, orderID,
		domain.FulfillmentShipped, domain.FulfillmentDelivered)
	if err != nil {
		logger.Error("MarkCancelled: exec failed", err, map[string]interface{}{"order_id": orderID})
		return false, err
	}
	rowsAffected, _ := res.RowsAffected()
	return rowsAffected > 0, nil
}

func (r *postgresOrderRepository) MarkCompleted(ctx context.Context, orderID string) (bool, error) {
	query := `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, domain.StatusCompleted, orderID, domain.StatusAwaitingPayment)
	if err != nil {
		logger.Error("MarkCompleted: exec failed", err, map[string]interface{}{"order_id": orderID})
		return false, err
	}
	rowsAffected, _ := res.RowsAffected()
	return rowsAffected > 0, nil
}

func (r *postgresOrderRepository) SetFulfillmentStatus(ctx context.Context, dbops DBTX, orderID string, status domain.FulfillmentStatus, trackingNumber string, shippedAt, deliveredAt *time.Time) error {
	query := `UPDATE orders
              SET order_status = $1,
                  tracking_number = COALESCE(NULLIF($2, ''), tracking_number),
                  shipped_at = COALESCE($3, shipped_at),
                  actual_delivery = COALESCE($4, actual_delivery),
                  updated_at = NOW()
              WHERE id = $5`
	res, err := dbops.ExecContext(ctx, query, status, trackingNumber, shippedAt, deliveredAt, orderID)
	if err != nil {
		logger.Error("SetFulfillmentStatus: exec failed", err, map[string]interface{}{"order_id": orderID, "status": status})
		return err
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *postgresOrderRepository) InsertReview(ctx context.Context, dbops DBTX, review *domain.Review) error {
	review.ID = uuid.NewString()
	review.CreatedAt = time.Now()
	query := `INSERT INTO order_reviews (id, order_id, product_id, rating, comment, created_at)
              VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := dbops.ExecContext(ctx, query, review.ID, review.OrderID, review.ProductID, review.Rating, review.Comment, review.CreatedAt)
	if err != nil {
		logger.Error("InsertReview: exec failed", err, map[string]interface{}{"order_id": review.OrderID})
	}
	return err
}

func (r *postgresOrderRepository) MarkItemReviewed(ctx context.Context, dbops DBTX, orderID, productID string) error {
	query := `UPDATE order_items SET reviewed = TRUE WHERE order_id = $1 AND product_id = $2 AND reviewed = FALSE`
	res, err := dbops.ExecContext(ctx, query, orderID, productID)
	if err != nil {
		logger.Error("MarkItemReviewed: exec failed", err, nil)
		return err
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		return ErrDuplicateEntry
	}
	return nil
}
