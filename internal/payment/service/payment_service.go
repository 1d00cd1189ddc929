package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	invDomain "github.com/lakshya1282/genAi-project-sub000/internal/inventory/domain"
	invService "github.com/lakshya1282/genAi-project-sub000/internal/inventory/service"
	"github.com/lakshya1282/genAi-project-sub000/internal/notification"
	orderDomain "github.com/lakshya1282/genAi-project-sub000/internal/order/domain"
	orderRepo "github.com/lakshya1282/genAi-project-sub000/internal/order/repository"
	"github.com/lakshya1282/genAi-project-sub000/internal/payment/domain"
	"github.com/lakshya1282/genAi-project-sub000/internal/payment/gateway"
	"github.com/lakshya1282/genAi-project-sub000/internal/payment/repository"
	"github.com/lakshya1282/genAi-project-sub000/internal/platform/config"
	"github.com/lakshya1282/genAi-project-sub000/internal/platform/logger"
)

var (
	ErrSignatureMismatch = errors.New("payment signature verification failed")
	ErrPaymentRejected   = errors.New("gateway did not confirm the payment")
	ErrOrderNotPayable   = errors.New("order is not awaiting an online payment")
	ErrRetryWindowClosed = errors.New("payment retry window has closed")
	ErrNotRefundable     = errors.New("order payment is not refundable")
	ErrPaymentInitFailed = errors.New("could not start payment with the gateway")
	ErrAbandonmentFailed = errors.New("payment abandonment failed")
)

// Reminder offsets before the retry deadline. With a 24h window these land
// at the 18h and 23h marks after the failure.
const (
	firstReminderBefore = 6 * time.Hour
	finalReminderBefore = 1 * time.Hour
)

// Gateway webhook event names.
const (
	webhookPaymentCaptured = "payment.captured"
	webhookPaymentFailed   = "payment.failed"
	webhookRefundProcessed = "refund.processed"
)

type PaymentService interface {
	// InitiatePayment creates the gateway-side order for checkout. The
	// gateway call retries on transient unavailability before giving up.
	InitiatePayment(ctx context.Context, orderID string) (*domain.GatewayOrder, error)

	// VerifyAndCapture settles the client-submitted capture callback. The
	// signature gate runs before anything is trusted; the payment record is
	// then re-fetched from the gateway rather than taken from the client.
	VerifyAndCapture(ctx context.Context, req domain.VerifyPaymentRequest) error

	// HandlePaymentFailure records a failed attempt and opens the retry
	// window. Safe to call for already-settled orders; it will not regress
	// a completed payment.
	HandlePaymentFailure(ctx context.Context, orderID, reason string) error

	// RetryPayment issues a fresh gateway order for a failed payment while
	// the retry window is still open.
	RetryPayment(ctx context.Context, orderID string) (*domain.GatewayOrder, error)

	RefundPayment(ctx context.Context, req domain.RefundRequest) (*domain.RefundResult, error)
	BulkRefund(ctx context.Context, req domain.BulkRefundRequest) []domain.RefundResult

	// ProcessWebhookEvent applies a verified gateway webhook. Redeliveries
	// are absorbed by the event ledger and return nil.
	ProcessWebhookEvent(ctx context.Context, event domain.WebhookEvent) error

	// AbandonIfUnresolved cancels an order whose payment never settled and
	// returns its stock, in one transaction. A payment completed in the
	// meantime makes this a no-op.
	AbandonIfUnresolved(ctx context.Context, orderID string) error

	// RunDeadlineSweep is one pass of the background sweep: send due retry
	// reminders, abandon orders past their deadline, abandon orders that
	// never reached the gateway at all.
	RunDeadlineSweep(ctx context.Context)

	StartSweep(spec string) error
	StopSweep()
}

type paymentServiceImpl struct {
	payments  repository.PaymentRepository
	orders    orderRepo.OrderRepository
	inventory invService.InventoryService
	gateway   gateway.Client
	notifier  notification.Notifier
	cfg       config.PaymentConfig
	cron      *cron.Cron
}

func NewPaymentService(
	payments repository.PaymentRepository,
	orders orderRepo.OrderRepository,
	inventory invService.InventoryService,
	gw gateway.Client,
	notifier notification.Notifier,
	cfg config.PaymentConfig,
) PaymentService {
	return &paymentServiceImpl{
		payments:  payments,
		orders:    orders,
		inventory: inventory,
		gateway:   gw,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// createGatewayOrderWithRetry retries only on ErrGatewayUnavailable; a
// rejection (bad amount, bad credentials) fails immediately.
func (s *paymentServiceImpl) createGatewayOrderWithRetry(ctx context.Context, amount int64, receipt string) (*domain.GatewayOrder, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.CreateMaxAttempts; attempt++ {
		gwOrder, err := s.gateway.CreateOrder(ctx, amount, domain.CurrencyINR, receipt)
		if err == nil {
			return gwOrder, nil
		}
		lastErr = err
		if !errors.Is(err, gateway.ErrGatewayUnavailable) {
			return nil, err
		}
		logger.Warn(fmt.Sprintf("Svc.createGatewayOrder: attempt %d/%d failed for %s", attempt, s.cfg.CreateMaxAttempts, receipt), map[string]interface{}{"error": err.Error()})
		if attempt < s.cfg.CreateMaxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * s.cfg.CreateRetryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrPaymentInitFailed, lastErr)
}

func retryWindowOpen(order *orderDomain.Order) bool {
	return order.Payment.RetryAvailable &&
		order.Payment.RetryDeadline != nil &&
		time.Now().Before(*order.Payment.RetryDeadline)
}

func (s *paymentServiceImpl) InitiatePayment(ctx context.Context, orderID string) (*domain.GatewayOrder, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != orderDomain.StatusAwaitingPayment || order.Payment.Method != orderDomain.PaymentMethodOnline {
		return nil, ErrOrderNotPayable
	}
	// A failed payment goes through the same window gate as RetryPayment;
	// re-initiating must not sidestep the deadline.
	if order.Payment.Status == orderDomain.PaymentFailed && !retryWindowOpen(order) {
		return nil, ErrRetryWindowClosed
	}

	gwOrder, err := s.createGatewayOrderWithRetry(ctx, order.Total, order.OrderNumber)
	if err != nil {
		return nil, err
	}
	if err := s.payments.SetGatewayOrder(ctx, orderID, gwOrder.ID); err != nil {
		return nil, err
	}
	return gwOrder, nil
}

func (s *paymentServiceImpl) VerifyAndCapture(ctx context.Context, req domain.VerifyPaymentRequest) error {
	if !VerifyCaptureSignature(req.GatewayOrderID, req.GatewayPaymentID, req.Signature, s.cfg.Gateway.KeySecret) {
		// A bad signature is not a payment failure; nothing about the order
		// changes and the retry window does not open.
		logger.Warn("Svc.VerifyAndCapture: signature mismatch", map[string]interface{}{"order_id": req.OrderID})
		return ErrSignatureMismatch
	}

	payment, err := s.gateway.FetchPayment(ctx, req.GatewayPaymentID)
	if err != nil {
		if failErr := s.HandlePaymentFailure(ctx, req.OrderID, "gateway verification unavailable"); failErr != nil {
			logger.Error("Svc.VerifyAndCapture: failure handling failed", failErr, map[string]interface{}{"order_id": req.OrderID})
		}
		return fmt.Errorf("%w: %v", ErrPaymentRejected, err)
	}
	if payment.Status != domain.GatewayStatusCaptured && payment.Status != domain.GatewayStatusAuthorized {
		if failErr := s.HandlePaymentFailure(ctx, req.OrderID, "gateway reported status "+payment.Status); failErr != nil {
			logger.Error("Svc.VerifyAndCapture: failure handling failed", failErr, map[string]interface{}{"order_id": req.OrderID})
		}
		return fmt.Errorf("%w: gateway status %s", ErrPaymentRejected, payment.Status)
	}

	return s.settleCapture(ctx, req.OrderID, req.GatewayPaymentID)
}

// settleCapture is shared by the callback path and the webhook path.
func (s *paymentServiceImpl) settleCapture(ctx context.Context, orderID, transactionID string) error {
	applied, err := s.payments.MarkPaymentCompleted(ctx, orderID, transactionID)
	if err != nil {
		return err
	}
	if !applied {
		order, rerr := s.orders.GetOrderByID(ctx, orderID)
		if rerr == nil && order.Payment.Status == orderDomain.PaymentCompleted {
			return nil // redelivery of a capture we already applied
		}
		// Money was captured for an order we can no longer complete. This
		// needs a manual refund, so it goes out at CRITICAL.
		logger.Critical(fmt.Sprintf("captured payment %s cannot settle: order %s is in a terminal state", transactionID, orderID), nil, nil)
		return ErrOrderNotPayable
	}

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err == nil {
		notification.Dispatch(s.notifier, notification.EventPaymentCompleted, orderID, map[string]interface{}{
			"user_id": order.UserID, "order_number": order.OrderNumber, "transaction_id": transactionID,
		})
	}
	return nil
}

func (s *paymentServiceImpl) HandlePaymentFailure(ctx context.Context, orderID, reason string) error {
	deadline := time.Now().Add(s.cfg.RetryWindow)
	if err := s.payments.MarkPaymentFailed(ctx, orderID, reason, deadline); err != nil {
		return err
	}
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err == nil && order.Payment.Status == orderDomain.PaymentFailed {
		notification.Dispatch(s.notifier, notification.EventPaymentFailed, orderID, map[string]interface{}{
			"user_id":        order.UserID,
			"order_number":   order.OrderNumber,
			"reason":         reason,
			"retry_deadline": deadline,
		})
	}
	return nil
}

func (s *paymentServiceImpl) RetryPayment(ctx context.Context, orderID string) (*domain.GatewayOrder, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != orderDomain.StatusAwaitingPayment || order.Payment.Status != orderDomain.PaymentFailed {
		return nil, ErrOrderNotPayable
	}
	if !retryWindowOpen(order) {
		return nil, ErrRetryWindowClosed
	}

	gwOrder, err := s.createGatewayOrderWithRetry(ctx, order.Total, order.OrderNumber)
	if err != nil {
		return nil, err
	}
	if err := s.payments.RecordRetryAttempt(ctx, orderID, gwOrder.ID); err != nil {
		return nil, err
	}
	return gwOrder, nil
}

func (s *paymentServiceImpl) RefundPayment(ctx context.Context, req domain.RefundRequest) (*domain.RefundResult, error) {
	result := &domain.RefundResult{TransactionID: req.TransactionID}

	orderID, err := s.payments.GetOrderIDByTransaction(ctx, req.TransactionID)
	if err != nil {
		return result, err
	}
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return result, err
	}
	if order.Payment.Status != orderDomain.PaymentCompleted {
		return result, ErrNotRefundable
	}

	amount := req.Amount
	full := amount == 0 || amount >= order.Total
	if full {
		amount = order.Total
	}

	refund, err := s.gateway.Refund(ctx, req.TransactionID, amount)
	if err != nil {
		return result, err
	}
	if err := s.payments.MarkRefunded(ctx, orderID, refund.ID, full); err != nil {
		// The gateway already moved the money; the local record must not be
		// silently out of sync.
		logger.Critical(fmt.Sprintf("refund %s processed at gateway but not recorded for order %s", refund.ID, orderID), err, nil)
		return result, err
	}

	result.Success = true
	result.RefundID = refund.ID
	notification.Dispatch(s.notifier, notification.EventRefundProcessed, orderID, map[string]interface{}{
		"user_id": order.UserID, "order_number": order.OrderNumber, "refund_id": refund.ID, "amount": amount, "reason": req.Reason,
	})
	return result, nil
}

func (s *paymentServiceImpl) BulkRefund(ctx context.Context, req domain.BulkRefundRequest) []domain.RefundResult {
	results := make([]domain.RefundResult, len(req.Refunds))
	for i, r := range req.Refunds {
		res, err := s.RefundPayment(ctx, r)
		if err != nil {
			res.Success = false
			res.Code = CodeForError(err)
			res.Error = err.Error()
		}
		results[i] = *res
	}
	return results
}

func (s *paymentServiceImpl) ProcessWebhookEvent(ctx context.Context, event domain.WebhookEvent) error {
	var refID string
	switch {
	case event.Payload.Payment != nil:
		refID = event.Payload.Payment.ID
	case event.Payload.Refund != nil:
		refID = event.Payload.Refund.ID
	default:
		return fmt.Errorf("webhook event %s carries no payment or refund payload", event.Event)
	}

	// Dedup key is the gateway's ids, so redeliveries collapse regardless of
	// when they arrive.
	eventID := event.Event + ":" + refID
	seen, err := s.payments.SeenWebhookEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if seen {
		logger.Info(fmt.Sprintf("Svc.ProcessWebhookEvent: duplicate %s for %s ignored", event.Event, refID))
		return nil
	}

	if err := s.applyWebhookEvent(ctx, event); err != nil {
		// No ledger row yet: the gateway's redelivery retries the whole
		// event. The handlers behind applyWebhookEvent are CAS-idempotent,
		// so a partial first attempt cannot double-apply.
		return err
	}

	if _, err := s.payments.InsertWebhookEvent(ctx, eventID, event.Event); err != nil {
		// The effects are already durable; a redelivery will be absorbed by
		// the CAS guards even without the ledger row.
		logger.Error("Svc.ProcessWebhookEvent: event recorded late", err, map[string]interface{}{"event_id": eventID})
	}
	return nil
}

func (s *paymentServiceImpl) applyWebhookEvent(ctx context.Context, event domain.WebhookEvent) error {
	switch event.Event {
	case webhookPaymentCaptured:
		orderID, err := s.payments.GetOrderIDByGatewayOrder(ctx, event.Payload.Payment.OrderID)
		if err != nil {
			return err
		}
		return s.settleCapture(ctx, orderID, event.Payload.Payment.ID)
	case webhookPaymentFailed:
		orderID, err := s.payments.GetOrderIDByGatewayOrder(ctx, event.Payload.Payment.OrderID)
		if err != nil {
			return err
		}
		return s.HandlePaymentFailure(ctx, orderID, "gateway webhook reported failure")
	case webhookRefundProcessed:
		orderID, err := s.payments.GetOrderIDByTransaction(ctx, event.Payload.Refund.PaymentID)
		if err != nil {
			return err
		}
		order, err := s.orders.GetOrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		// A refund covering the whole order flips payment_status to refunded,
		// same rule as the direct refund path.
		full := event.Payload.Refund.Amount >= order.Total
		return s.payments.MarkRefunded(ctx, orderID, event.Payload.Refund.ID, full)
	default:
		logger.Info("Svc.ProcessWebhookEvent: ignoring unhandled event " + event.Event)
		return nil
	}
}

func (s *paymentServiceImpl) AbandonIfUnresolved(ctx context.Context, orderID string) error {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Payment.Status == orderDomain.PaymentCompleted || order.Status != orderDomain.StatusAwaitingPayment {
		return nil
	}

	tx, err := s.orders.BeginTx(ctx)
	if err != nil {
		logger.Error("Svc.AbandonIfUnresolved: begin tx failed", err, nil)
		return fmt.Errorf("%w: %v", ErrAbandonmentFailed, err)
	}
	defer tx.Rollback()

	// The CAS loses to a payment that completed between the read above and
	// now, and to a buyer cancellation that already returned the stock.
	won, err := s.payments.MarkAbandoned(ctx, tx, orderID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAbandonmentFailed, err)
	}
	if !won {
		return nil
	}

	stock := make([]invDomain.StockItem, len(order.Items))
	for i, it := range order.Items {
		stock[i] = invDomain.StockItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	if err := s.inventory.CreditBatch(ctx, tx, stock); err != nil {
		return fmt.Errorf("%w: %v", ErrAbandonmentFailed, err)
	}
	if err := s.orders.AppendStatusHistory(ctx, tx, orderID, string(orderDomain.FulfillmentCancelled), "payment window expired, order abandoned"); err != nil {
		return fmt.Errorf("%w: %v", ErrAbandonmentFailed, err)
	}
	if err := tx.Commit(); err != nil {
		logger.Error("Svc.AbandonIfUnresolved: commit failed", err, nil)
		return fmt.Errorf("%w: %v", ErrAbandonmentFailed, err)
	}

	notification.Dispatch(s.notifier, notification.EventPaymentAbandoned, orderID, map[string]interface{}{
		"user_id": order.UserID, "order_number": order.OrderNumber,
	})
	for _, it := range order.Items {
		notification.Dispatch(s.notifier, notification.EventStockRestored, it.ProductID, map[string]interface{}{
			"seller_id": it.SellerID, "quantity": it.Quantity,
		})
	}
	return nil
}

func (s *paymentServiceImpl) sendReminders(ctx context.Context, level int, before time.Duration) {
	due, err := s.payments.FindRemindersDue(ctx, level, time.Now().Add(before))
	if err != nil {
		logger.Error("Svc.sendReminders: query failed", err, map[string]interface{}{"level": level})
		return
	}
	for _, d := range due {
		// AdvanceReminder re-checks state at fire time; an order paid or
		// cancelled since the query simply loses the CAS.
		advanced, err := s.payments.AdvanceReminder(ctx, d.OrderID, level)
		if err != nil {
			logger.Error("Svc.sendReminders: advance failed", err, map[string]interface{}{"order_id": d.OrderID})
			continue
		}
		if !advanced {
			continue
		}
		notification.Dispatch(s.notifier, notification.EventPaymentReminder, d.OrderID, map[string]interface{}{
			"user_id":        d.UserID,
			"order_number":   d.OrderNumber,
			"retry_deadline": d.Deadline,
			"final":          level > 1,
		})
	}
}

func (s *paymentServiceImpl) RunDeadlineSweep(ctx context.Context) {
	s.sendReminders(ctx, 1, firstReminderBefore)
	s.sendReminders(ctx, 2, finalReminderBefore)

	expired, err := s.payments.FindAbandonmentDue(ctx)
	if err != nil {
		logger.Error("Svc.RunDeadlineSweep: abandonment query failed", err, nil)
	}
	for _, orderID := range expired {
		if err := s.AbandonIfUnresolved(ctx, orderID); err != nil {
			logger.Error("Svc.RunDeadlineSweep: abandonment failed", err, map[string]interface{}{"order_id": orderID})
		}
	}

	stale, err := s.payments.FindStalePendingOrders(ctx, s.cfg.PendingTimeout)
	if err != nil {
		logger.Error("Svc.RunDeadlineSweep: stale pending query failed", err, nil)
	}
	for _, orderID := range stale {
		if err := s.AbandonIfUnresolved(ctx, orderID); err != nil {
			logger.Error("Svc.RunDeadlineSweep: stale abandonment failed", err, map[string]interface{}{"order_id": orderID})
		}
	}
}

// StartSweep schedules RunDeadlineSweep on the given cron spec (with a
// seconds field). Deadlines live in the database, so a restart picks up
// where the previous process left off.
func (s *paymentServiceImpl) StartSweep(spec string) error {
	s.cron = cron.New(cron.WithSeconds())
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		s.RunDeadlineSweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule payment sweep: %w", err)
	}
	s.cron.Start()
	logger.Info("payment deadline sweep scheduled: " + spec)
	return nil
}

func (s *paymentServiceImpl) StopSweep() {
	if s.cron != nil {
		s.cron.Stop()
	}
}
