package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	orderDomain "github.com/lakshya1282/genAi-project-sub000/internal/order/domain"
	paymentDomain "github.com/lakshya1282/genAi-project-sub000/internal/payment/domain"
	"github.com/lakshya1282/genAi-project-sub000/internal/platform/logger"
)

var ErrPaymentOrderNotFound = errors.New("no order found for the given gateway reference")

// DBTX mirrors the order/inventory repositories' transaction interface so
// the abandonment path can share one transaction with the stock credit.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
	Commit() error
	Rollback() error
}

// PaymentRepository owns the payment columns of orders plus the webhook
// idempotency ledger. Everything else on orders belongs to the order repo.
type PaymentRepository interface {
	SetGatewayOrder(ctx context.Context, orderID, gatewayOrderID string) error

	// MarkPaymentCompleted applies the capture exactly once: the CAS refuses
	// orders already completed or already cancelled. Redelivered webhooks and
	// the late abandonment sweep both land on the losing side.
	MarkPaymentCompleted(ctx context.Context, orderID, transactionID string) (bool, error)

	MarkPaymentFailed(ctx context.Context, orderID, reason string, deadline time.Time) error
	RecordRetryAttempt(ctx context.Context, orderID, gatewayOrderID string) error

	// MarkAbandoned is the sweep's CAS; it loses to a completed payment and
	// to an explicit cancellation that got there first.
	MarkAbandoned(ctx context.Context, dbops DBTX, orderID string) (bool, error)

	MarkRefunded(ctx context.Context, orderID, refundID string, full bool) error

	// AdvanceReminder moves reminder_level forward at most once per level.
	AdvanceReminder(ctx context.Context, orderID string, level int) (bool, error)

	FindRemindersDue(ctx context.Context, level int, cutoff time.Time) ([]paymentDomain.ReminderDue, error)
	FindAbandonmentDue(ctx context.Context) ([]string, error)
	FindStalePendingOrders(ctx context.Context, olderThan time.Duration) ([]string, error)

	GetOrderIDByGatewayOrder(ctx context.Context, gatewayOrderID string) (string, error)
	GetOrderIDByTransaction(ctx context.Context, transactionID string) (string, error)

	// SeenWebhookEvent reports whether this event id was already processed;
	// dedup is keyed by gateway ids, not receipt time.
	SeenWebhookEvent(ctx context.Context, eventID string) (bool, error)

	// InsertWebhookEvent records a processed event. It runs only after the
	// event's effects landed, so a failed attempt leaves no row and the
	// gateway's redelivery gets another try.
	InsertWebhookEvent(ctx context.Context, eventID, eventType string) (bool, error)
}

type postgresPaymentRepository struct {
	db *sql.DB
}

func NewPostgresPaymentRepository(db *sql.DB) PaymentRepository {
	return &postgresPaymentRepository{db: db}
}

func (r *postgresPaymentRepository) SetGatewayOrder(ctx context.Context, orderID, gatewayOrderID string) error {
	query := `UPDATE orders SET gateway_order_id = $1, payment_status = $2, updated_at = NOW() WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, gatewayOrderID, orderDomain.PaymentPending, orderID)
	if err != nil {
		logger.Error("SetGatewayOrder: exec failed", err, map[string]interface{}{"order_id": orderID})
		return err
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		return ErrPaymentOrderNotFound
	}
	return nil
}

func (r *postgresPaymentRepository) MarkPaymentCompleted(ctx context.Context, orderID, transactionID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("MarkPaymentCompleted: begin tx failed", err, nil)
		return false, err
	}
	defer tx.Rollback()

	query := `UPDATE orders
              SET payment_status = $1, transaction_id = $2, status = $3,
                  retry_available = FALSE, payment_failure_reason = NULL, updated_at = NOW()
              WHERE id = $4 AND payment_status <> $1 AND status <> $5`
	res, err := tx.ExecContext(ctx, query,
		orderDomain.PaymentCompleted, transactionID, orderDomain.StatusCompleted,
		orderID, orderDomain.StatusCancelled)
	if err != nil {
		logger.Error("MarkPaymentCompleted: exec failed", err, map[string]interface{}{"order_id": orderID})
		return false, err
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		return false, nil
	}

	if err := r.appendHistory(ctx, tx, orderID, "payment_completed", "payment captured, txn "+transactionID); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (r *postgresPaymentRepository) MarkPaymentFailed(ctx context.Context, orderID, reason string, deadline time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("MarkPaymentFailed: begin tx failed", err, nil)
		return err
	}
	defer tx.Rollback()

	// Completed payments must stay completed even if a stale failure
	// callback arrives afterwards.
	query := `UPDATE orders
              SET payment_status = $1, payment_failure_reason = $2,
                  retry_available = TRUE, retry_deadline = $3, reminder_level = 0, updated_at = NOW()
              WHERE id = $4 AND payment_status <> $5 AND status <> $6`
	res, err := tx.ExecContext(ctx, query,
		orderDomain.PaymentFailed, reason, deadline, orderID,
		orderDomain.PaymentCompleted, orderDomain.StatusCancelled)
	if err != nil {
		logger.Error("MarkPaymentFailed: exec failed", err, map[string]interface{}{"order_id": orderID})
		return err
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		return nil // terminal state already; nothing to record
	}

	if err := r.appendHistory(ctx, tx, orderID, "payment_failed", reason); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *postgresPaymentRepository) RecordRetryAttempt(ctx context.Context, orderID, gatewayOrderID string) error {
	query := `UPDATE orders
              SET gateway_order_id = $1, payment_status = $2, last_retry_at = NOW(), updated_at = NOW()
              WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, gatewayOrderID, orderDomain.PaymentPending, orderID)
	if err != nil {
		logger.Error("RecordRetryAttempt: exec failed", err, map[string]interface{}{"order_id": orderID})
		return err
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		return ErrPaymentOrderNotFound
	}
	return nil
}

func (r *postgresPaymentRepository) MarkAbandoned(ctx context.Context, dbops DBTX, orderID string) (bool, error) {
	query := `UPDATE orders
              SET status = $1, order_status = $2, payment_status = $3,
                  retry_available = FALSE, updated_at = NOW()
              WHERE id = $4 AND payment_status NOT IN ($5, $3) AND status = $6`
	res, err := dbops.ExecContext(ctx, query,
		orderDomain.StatusCancelled, orderDomain.FulfillmentCancelled, orderDomain.PaymentAbandoned,
		orderID, orderDomain.PaymentCompleted, orderDomain.StatusAwaitingPayment)
	if err != nil {
		logger.Error("MarkAbandoned: exec failed", err, map[string]interface{}{"order_id": orderID})
		return false, err
	}
	rowsAffected, _ := res.RowsAffected()
	return rowsAffected > 0, nil
}

func (r *postgresPaymentRepository) MarkRefunded(ctx context.Context, orderID, refundID string, full bool) error {
	query := `UPDATE orders SET refund_status = 'processed', refund_id = $1, updated_at = NOW() WHERE id = $2`
	args := []interface{}{refundID, orderID}
	if full {
		query = `UPDATE orders SET refund_status = 'processed', refund_id = $1, payment_status = $2, updated_at = NOW() WHERE id = $3`
		args = []interface{}{refundID, orderDomain.PaymentRefunded, orderID}
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		logger.Error("MarkRefunded: exec failed", err, map[string]interface{}{"order_id": orderID})
		return err
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		return ErrPaymentOrderNotFound
	}
	return nil
}

func (r *postgresPaymentRepository) AdvanceReminder(ctx context.Context, orderID string, level int) (bool, error) {
	query := `UPDATE orders SET reminder_level = $1, updated_at = NOW()
              WHERE id = $2 AND reminder_level < $1 AND payment_status = $3`
	res, err := r.db.ExecContext(ctx, query, level, orderID, orderDomain.PaymentFailed)
	if err != nil {
		logger.Error("AdvanceReminder: exec failed", err, map[string]interface{}{"order_id": orderID})
		return false, err
	}
	rowsAffected, _ := res.RowsAffected()
	return rowsAffected > 0, nil
}

func (r *postgresPaymentRepository) FindRemindersDue(ctx context.Context, level int, cutoff time.Time) ([]paymentDomain.ReminderDue, error) {
	// Scoped to AWAITING_PAYMENT: cancelled and completed orders must never
	// get retry reminders even if their payment columns look due.
	query := `SELECT id, user_id, order_number, retry_deadline
              FROM orders
              WHERE status = $1 AND payment_status = $2 AND retry_available = TRUE
                AND reminder_level < $3
                AND retry_deadline <= $4 AND retry_deadline > NOW()`
	rows, err := r.db.QueryContext(ctx, query, orderDomain.StatusAwaitingPayment, orderDomain.PaymentFailed, level, cutoff)
	if err != nil {
		logger.Error("FindRemindersDue: query failed", err, nil)
		return nil, err
	}
	defer rows.Close()

	var due []paymentDomain.ReminderDue
	for rows.Next() {
		var d paymentDomain.ReminderDue
		if err := rows.Scan(&d.OrderID, &d.UserID, &d.OrderNumber, &d.Deadline); err != nil {
			logger.Error("FindRemindersDue: scan failed", err, nil)
			return nil, err
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

func (r *postgresPaymentRepository) FindAbandonmentDue(ctx context.Context) ([]string, error) {
	query := `SELECT id FROM orders
              WHERE status = $1
                AND payment_status IN ($2, $3)
                AND retry_deadline IS NOT NULL AND retry_deadline <= NOW()
              ORDER BY retry_deadline ASC`
	return r.collectOrderIDs(ctx, query,
		orderDomain.StatusAwaitingPayment, orderDomain.PaymentPending, orderDomain.PaymentFailed)
}

func (r *postgresPaymentRepository) FindStalePendingOrders(ctx context.Context, olderThan time.Duration) ([]string, error) {
	// Orders whose buyer never reached the gateway at all: online payment,
	// still pending, no failure ever recorded, past the pending timeout.
	query := `SELECT id FROM orders
              WHERE status = $1 AND payment_status = $2
                AND payment_method = $3 AND retry_deadline IS NULL
                AND created_at < $4
              ORDER BY created_at ASC`
	threshold := time.Now().Add(-olderThan)
	return r.collectOrderIDs(ctx, query,
		orderDomain.StatusAwaitingPayment, orderDomain.PaymentPending, orderDomain.PaymentMethodOnline, threshold)
}

func (r *postgresPaymentRepository) collectOrderIDs(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Error("collectOrderIDs: query failed", err, nil)
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			logger.Error("collectOrderIDs: scan failed", err, nil)
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postgresPaymentRepository) getOrderIDBy(ctx context.Context, column, value string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE `+column+` = $1`, value).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrPaymentOrderNotFound
		}
		logger.Error("getOrderIDBy "+column+": query failed", err, nil)
		return "", err
	}
	return id, nil
}

func (r *postgresPaymentRepository) GetOrderIDByGatewayOrder(ctx context.Context, gatewayOrderID string) (string, error) {
	return r.getOrderIDBy(ctx, "gateway_order_id", gatewayOrderID)
}

func (r *postgresPaymentRepository) GetOrderIDByTransaction(ctx context.Context, transactionID string) (string, error) {
	return r.getOrderIDBy(ctx, "transaction_id", transactionID)
}

func (r *postgresPaymentRepository) SeenWebhookEvent(ctx context.Context, eventID string) (bool, error) {
	var seen bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM webhook_events WHERE event_id = $1)`, eventID).Scan(&seen)
	if err != nil {
		logger.Error("SeenWebhookEvent: query failed", err, map[string]interface{}{"event_id": eventID})
		return false, err
	}
	return seen, nil
}

func (r *postgresPaymentRepository) InsertWebhookEvent(ctx context.Context, eventID, eventType string) (bool, error) {
	query := `INSERT INTO webhook_events (event_id, event_type, processed_at)
              VALUES ($1, $2, NOW())
              ON CONFLICT (event_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, eventID, eventType)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return false, nil
		}
		logger.Error("InsertWebhookEvent: exec failed", err, map[string]interface{}{"event_id": eventID})
		return false, err
	}
	rowsAffected, _ := res.RowsAffected()
	return rowsAffected > 0, nil
}

func (r *postgresPaymentRepository) appendHistory(ctx context.Context, tx *sql.Tx, orderID, status, note string) error {
	query := `INSERT INTO order_status_history (id, order_id, status, note, created_at)
              VALUES ($1, $2, $3, $4, NOW())`
	if _, err := tx.ExecContext(ctx, query, uuid.NewString(), orderID, status, note); err != nil {
		logger.Error("appendHistory: exec failed", err, map[string]interface{}{"order_id": orderID})
		return err
	}
	return nil
}
