package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	invMocks "github.com/lakshya1282/genAi-project-sub000/internal/inventory/repository/mocks"
	"github.com/lakshya1282/genAi-project-sub000/internal/notification"
	orderDomain "github.com/lakshya1282/genAi-project-sub000/internal/order/domain"
	orderRepoMocks "github.com/lakshya1282/genAi-project-sub000/internal/order/repository/mocks"
	svcMocks "github.com/lakshya1282/genAi-project-sub000/internal/order/service/mocks"
	"github.com/lakshya1282/genAi-project-sub000/internal/payment/domain"
	"github.com/lakshya1282/genAi-project-sub000/internal/payment/gateway"
	gwMocks "github.com/lakshya1282/genAi-project-sub000/internal/payment/gateway/mocks"
	payMocks "github.com/lakshya1282/genAi-project-sub000/internal/payment/repository/mocks"
	"github.com/lakshya1282/genAi-project-sub000/internal/platform/config"
)

const testKeySecret = "test-key-secret"

func testPaymentConfig() config.PaymentConfig {
	return config.PaymentConfig{
		Gateway:            config.GatewayConfig{KeySecret: testKeySecret, WebhookSecret: "test-webhook-secret"},
		CreateMaxAttempts:  3,
		CreateRetryBackoff: time.Millisecond,
		RetryWindow:        24 * time.Hour,
		PendingTimeout:     24 * time.Hour,
	}
}

type paymentFixture struct {
	payments  *payMocks.MockPaymentRepository
	orders    *orderRepoMocks.MockOrderRepository
	inventory *svcMocks.MockInventoryService
	gateway   *gwMocks.MockGatewayClient
	svc       PaymentService
}

func newPaymentFixture() *paymentFixture {
	f := &paymentFixture{
		payments:  new(payMocks.MockPaymentRepository),
		orders:    new(orderRepoMocks.MockOrderRepository),
		inventory: new(svcMocks.MockInventoryService),
		gateway:   new(gwMocks.MockGatewayClient),
	}
	f.svc = NewPaymentService(f.payments, f.orders, f.inventory, f.gateway, notification.NopNotifier{}, testPaymentConfig())
	return f
}

func awaitingOnlineOrder(paymentStatus orderDomain.PaymentStatus) *orderDomain.Order {
	return &orderDomain.Order{
		ID:          "o1",
		OrderNumber: "ORD-20260828-000001",
		UserID:      "u1",
		Status:      orderDomain.StatusAwaitingPayment,
		OrderStatus: orderDomain.FulfillmentPlaced,
		Items: []orderDomain.OrderItem{
			{ProductID: "p1", SellerID: "s1", Quantity: 2, UnitPrice: 50000, LineTotal: 100000},
		},
		Total:   128000,
		Payment: orderDomain.PaymentDetails{Method: orderDomain.PaymentMethodOnline, Status: paymentStatus},
	}
}

func TestVerifyCaptureSignature(t *testing.T) {
	sig := hmacHex(testKeySecret, []byte("gw_o1|gw_p1"))

	assert.True(t, VerifyCaptureSignature("gw_o1", "gw_p1", sig, testKeySecret))
	assert.False(t, VerifyCaptureSignature("gw_o1", "gw_p2", sig, testKeySecret), "signature is bound to the payment id")
	assert.False(t, VerifyCaptureSignature("gw_o1", "gw_p1", sig, "other-secret"))
	assert.False(t, VerifyCaptureSignature("gw_o1", "gw_p1", "", testKeySecret))
}

func TestVerifyWebhookSignature(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)
	sig := hmacHex("test-webhook-secret", body)

	assert.True(t, VerifyWebhookSignature(body, sig, "test-webhook-secret"))
	assert.False(t, VerifyWebhookSignature([]byte(`{"event":"payment.captured" }`), sig, "test-webhook-secret"), "any byte change breaks the signature")
}

func TestPaymentService_InitiatePayment(t *testing.T) {
	ctx := context.TODO()

	t.Run("Retries transient gateway failures then succeeds", func(t *testing.T) {
		f := newPaymentFixture()
		f.orders.On("GetOrderByID", ctx, "o1").Return(awaitingOnlineOrder(orderDomain.PaymentPending), nil).Once()
		f.gateway.On("CreateOrder", ctx, int64(128000), domain.CurrencyINR, "ORD-20260828-000001").
			Return(nil, gateway.ErrGatewayUnavailable).Twice()
		f.gateway.On("CreateOrder", ctx, int64(128000), domain.CurrencyINR, "ORD-20260828-000001").
			Return(&domain.GatewayOrder{ID: "gw_o1", Amount: 128000}, nil).Once()
		f.payments.On("SetGatewayOrder", ctx, "o1", "gw_o1").Return(nil).Once()

		gwOrder, err := f.svc.InitiatePayment(ctx, "o1")
		assert.NoError(t, err)
		assert.Equal(t, "gw_o1", gwOrder.ID)
		f.gateway.AssertNumberOfCalls(t, "CreateOrder", 3)
		f.payments.AssertExpectations(t)
	})

	t.Run("Gives up after max attempts", func(t *testing.T) {
		f := newPaymentFixture()
		f.orders.On("GetOrderByID", ctx, "o1").Return(awaitingOnlineOrder(orderDomain.PaymentPending), nil).Once()
		f.gateway.On("CreateOrder", ctx, int64(128000), domain.CurrencyINR, "ORD-20260828-000001").
			Return(nil, gateway.ErrGatewayUnavailable).Times(3)

		gwOrder, err := f.svc.InitiatePayment(ctx, "o1")
		assert.Nil(t, gwOrder)
		assert.ErrorIs(t, err, ErrPaymentInitFailed)
		f.gateway.AssertNumberOfCalls(t, "CreateOrder", 3)
		f.payments.AssertNotCalled(t, "SetGatewayOrder", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Failed payment past the retry window cannot be re-initiated", func(t *testing.T) {
		f := newPaymentFixture()
		deadline := time.Now().Add(-time.Minute)
		order := awaitingOnlineOrder(orderDomain.PaymentFailed)
		order.Payment.RetryAvailable = true
		order.Payment.RetryDeadline = &deadline
		f.orders.On("GetOrderByID", ctx, "o1").Return(order, nil).Once()

		// Initiate must apply the same window as the retry path or the
		// deadline is meaningless.
		_, err := f.svc.InitiatePayment(ctx, "o1")
		assert.ErrorIs(t, err, ErrRetryWindowClosed)
		f.gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Failed payment inside the retry window can re-initiate", func(t *testing.T) {
		f := newPaymentFixture()
		deadline := time.Now().Add(2 * time.Hour)
		order := awaitingOnlineOrder(orderDomain.PaymentFailed)
		order.Payment.RetryAvailable = true
		order.Payment.RetryDeadline = &deadline
		f.orders.On("GetOrderByID", ctx, "o1").Return(order, nil).Once()
		f.gateway.On("CreateOrder", ctx, int64(128000), domain.CurrencyINR, "ORD-20260828-000001").
			Return(&domain.GatewayOrder{ID: "gw_o3", Amount: 128000}, nil).Once()
		f.payments.On("SetGatewayOrder", ctx, "o1", "gw_o3").Return(nil).Once()

		gwOrder, err := f.svc.InitiatePayment(ctx, "o1")
		assert.NoError(t, err)
		assert.Equal(t, "gw_o3", gwOrder.ID)
	})

	t.Run("COD order is not payable online", func(t *testing.T) {
		f := newPaymentFixture()
		order := awaitingOnlineOrder(orderDomain.PaymentPending)
		order.Status = orderDomain.StatusCompleted
		order.Payment.Method = orderDomain.PaymentMethodCOD
		f.orders.On("GetOrderByID", ctx, "o1").Return(order, nil).Once()

		_, err := f.svc.InitiatePayment(ctx, "o1")
		assert.ErrorIs(t, err, ErrOrderNotPayable)
		f.gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPaymentService_VerifyAndCapture(t *testing.T) {
	ctx := context.TODO()
	goodSig := hmacHex(testKeySecret, []byte("gw_o1|gw_p1"))
	req := domain.VerifyPaymentRequest{OrderID: "o1", GatewayOrderID: "gw_o1", GatewayPaymentID: "gw_p1", Signature: goodSig}

	t.Run("Captured payment settles the order", func(t *testing.T) {
		f := newPaymentFixture()
		f.gateway.On("FetchPayment", ctx, "gw_p1").
			Return(&domain.GatewayPayment{ID: "gw_p1", Status: domain.GatewayStatusCaptured, Amount: 128000}, nil).Once()
		f.payments.On("MarkPaymentCompleted", ctx, "o1", "gw_p1").Return(true, nil).Once()
		f.orders.On("GetOrderByID", ctx, "o1").Return(awaitingOnlineOrder(orderDomain.PaymentCompleted), nil).Once()

		assert.NoError(t, f.svc.VerifyAndCapture(ctx, req))
		f.payments.AssertExpectations(t)
	})

	t.Run("Tampered signature is rejected before any gateway call", func(t *testing.T) {
		f := newPaymentFixture()
		bad := req
		bad.Signature = hmacHex(testKeySecret, []byte("gw_o1|gw_other"))

		err := f.svc.VerifyAndCapture(ctx, bad)
		assert.ErrorIs(t, err, ErrSignatureMismatch)
		f.gateway.AssertNotCalled(t, "FetchPayment", mock.Anything, mock.Anything)
		f.payments.AssertNotCalled(t, "MarkPaymentCompleted", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Gateway reporting a failed payment opens the retry window", func(t *testing.T) {
		f := newPaymentFixture()
		f.gateway.On("FetchPayment", ctx, "gw_p1").
			Return(&domain.GatewayPayment{ID: "gw_p1", Status: "failed"}, nil).Once()
		f.payments.On("MarkPaymentFailed", ctx, "o1", mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil).Once()
		f.orders.On("GetOrderByID", ctx, "o1").Return(awaitingOnlineOrder(orderDomain.PaymentFailed), nil).Once()

		err := f.svc.VerifyAndCapture(ctx, req)
		assert.ErrorIs(t, err, ErrPaymentRejected)
		f.payments.AssertExpectations(t)
	})

	t.Run("Redelivered capture is idempotent", func(t *testing.T) {
		f := newPaymentFixture()
		f.gateway.On("FetchPayment", ctx, "gw_p1").
			Return(&domain.GatewayPayment{ID: "gw_p1", Status: domain.GatewayStatusCaptured}, nil).Once()
		f.payments.On("MarkPaymentCompleted", ctx, "o1", "gw_p1").Return(false, nil).Once()
		f.orders.On("GetOrderByID", ctx, "o1").Return(awaitingOnlineOrder(orderDomain.PaymentCompleted), nil).Once()

		assert.NoError(t, f.svc.VerifyAndCapture(ctx, req))
	})
}

func TestPaymentService_RetryPayment(t *testing.T) {
	ctx := context.TODO()

	t.Run("Open window issues a fresh gateway order", func(t *testing.T) {
		f := newPaymentFixture()
		deadline := time.Now().Add(2 * time.Hour)
		order := awaitingOnlineOrder(orderDomain.PaymentFailed)
		order.Payment.RetryAvailable = true
		order.Payment.RetryDeadline = &deadline
		f.orders.On("GetOrderByID", ctx, "o1").Return(order, nil).Once()
		f.gateway.On("CreateOrder", ctx, int64(128000), domain.CurrencyINR, "ORD-20260828-000001").
			Return(&domain.GatewayOrder{ID: "gw_o2"}, nil).Once()
		f.payments.On("RecordRetryAttempt", ctx, "o1", "gw_o2").Return(nil).Once()

		gwOrder, err := f.svc.RetryPayment(ctx, "o1")
		assert.NoError(t, err)
		assert.Equal(t, "gw_o2", gwOrder.ID)
		f.payments.AssertExpectations(t)
	})

	t.Run("Closed window is rejected", func(t *testing.T) {
		f := newPaymentFixture()
		deadline := time.Now().Add(-time.Minute)
		order := awaitingOnlineOrder(orderDomain.PaymentFailed)
		order.Payment.RetryAvailable = true
		order.Payment.RetryDeadline = &deadline
		f.orders.On("GetOrderByID", ctx, "o1").Return(order, nil).Once()

		_, err := f.svc.RetryPayment(ctx, "o1")
		assert.ErrorIs(t, err, ErrRetryWindowClosed)
		f.gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Pending payment has nothing to retry", func(t *testing.T) {
		f := newPaymentFixture()
		f.orders.On("GetOrderByID", ctx, "o1").Return(awaitingOnlineOrder(orderDomain.PaymentPending), nil).Once()

		_, err := f.svc.RetryPayment(ctx, "o1")
		assert.ErrorIs(t, err, ErrOrderNotPayable)
	})
}

func TestPaymentService_AbandonIfUnresolved(t *testing.T) {
	ctx := context.TODO()

	t.Run("Cancels the order and restores stock in one transaction", func(t *testing.T) {
		f := newPaymentFixture()
		mockTx := new(invMocks.MockDBTX)
		mockTx.On("Commit").Return(nil).Once()
		mockTx.On("Rollback").Return(nil)

		f.orders.On("GetOrderByID", ctx, "o1").Return(awaitingOnlineOrder(orderDomain.PaymentFailed), nil).Once()
		f.orders.On("BeginTx", ctx).Return(mockTx, nil).Once()
		f.payments.On("MarkAbandoned", ctx, mockTx, "o1").Return(true, nil).Once()
		f.inventory.On("CreditBatch", ctx, mockTx, mock.Anything).Return(nil).Once()
		f.orders.On("AppendStatusHistory", ctx, mockTx, "o1", "cancelled", mock.AnythingOfType("string")).Return(nil).Once()

		assert.NoError(t, f.svc.AbandonIfUnresolved(ctx, "o1"))
		mockTx.AssertExpectations(t)
		f.inventory.AssertExpectations(t)
	})

	t.Run("No-op once the payment completed", func(t *testing.T) {
		f := newPaymentFixture()
		order := awaitingOnlineOrder(orderDomain.PaymentCompleted)
		f.orders.On("GetOrderByID", ctx, "o1").Return(order, nil).Once()

		assert.NoError(t, f.svc.AbandonIfUnresolved(ctx, "o1"))
		f.orders.AssertNotCalled(t, "BeginTx", mock.Anything)
	})

	t.Run("Losing the status race credits nothing", func(t *testing.T) {
		f := newPaymentFixture()
		mockTx := new(invMocks.MockDBTX)
		mockTx.On("Rollback").Return(nil)

		f.orders.On("GetOrderByID", ctx, "o1").Return(awaitingOnlineOrder(orderDomain.PaymentFailed), nil).Once()
		f.orders.On("BeginTx", ctx).Return(mockTx, nil).Once()
		f.payments.On("MarkAbandoned", ctx, mockTx, "o1").Return(false, nil).Once()

		assert.NoError(t, f.svc.AbandonIfUnresolved(ctx, "o1"))
		f.inventory.AssertNotCalled(t, "CreditBatch", mock.Anything, mock.Anything, mock.Anything)
		mockTx.AssertNotCalled(t, "Commit")
	})
}

func TestPaymentService_ProcessWebhookEvent(t *testing.T) {
	ctx := context.TODO()

	capturedEvent := domain.WebhookEvent{
		Event: "payment.captured",
		Payload: domain.WebhookPayload{
			Payment: &domain.WebhookPayment{ID: "gw_p1", OrderID: "gw_o1", Status: "captured"},
		},
	}

	t.Run("Fresh capture event settles the order, then lands in the ledger", func(t *testing.T) {
		f := newPaymentFixture()
		f.payments.On("SeenWebhookEvent", ctx, "payment.captured:gw_p1").Return(false, nil).Once()
		f.payments.On("GetOrderIDByGatewayOrder", ctx, "gw_o1").Return("o1", nil).Once()
		f.payments.On("MarkPaymentCompleted", ctx, "o1", "gw_p1").Return(true, nil).Once()
		f.orders.On("GetOrderByID", ctx, "o1").Return(awaitingOnlineOrder(orderDomain.PaymentCompleted), nil).Once()
		f.payments.On("InsertWebhookEvent", ctx, "payment.captured:gw_p1", "payment.captured").Return(true, nil).Once()

		assert.NoError(t, f.svc.ProcessWebhookEvent(ctx, capturedEvent))
		f.payments.AssertExpectations(t)
	})

	t.Run("Redelivered event is absorbed by the ledger", func(t *testing.T) {
		f := newPaymentFixture()
		f.payments.On("SeenWebhookEvent", ctx, "payment.captured:gw_p1").Return(true, nil).Once()

		assert.NoError(t, f.svc.ProcessWebhookEvent(ctx, capturedEvent))
		f.payments.AssertNotCalled(t, "MarkPaymentCompleted", mock.Anything, mock.Anything, mock.Anything)
		f.payments.AssertNotCalled(t, "InsertWebhookEvent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Failed attempt leaves no ledger row so redelivery can settle", func(t *testing.T) {
		f := newPaymentFixture()
		// First delivery dies on the order lookup; the ledger must stay
		// empty or the redelivery would be swallowed as a duplicate and the
		// captured payment lost.
		f.payments.On("SeenWebhookEvent", ctx, "payment.captured:gw_p1").Return(false, nil).Twice()
		f.payments.On("GetOrderIDByGatewayOrder", ctx, "gw_o1").Return("", assert.AnError).Once()

		assert.Error(t, f.svc.ProcessWebhookEvent(ctx, capturedEvent))
		f.payments.AssertNotCalled(t, "InsertWebhookEvent", mock.Anything, mock.Anything, mock.Anything)

		// The gateway redelivers and this time the capture lands.
		f.payments.On("GetOrderIDByGatewayOrder", ctx, "gw_o1").Return("o1", nil).Once()
		f.payments.On("MarkPaymentCompleted", ctx, "o1", "gw_p1").Return(true, nil).Once()
		f.orders.On("GetOrderByID", ctx, "o1").Return(awaitingOnlineOrder(orderDomain.PaymentCompleted), nil).Once()
		f.payments.On("InsertWebhookEvent", ctx, "payment.captured:gw_p1", "payment.captured").Return(true, nil).Once()

		assert.NoError(t, f.svc.ProcessWebhookEvent(ctx, capturedEvent))
		f.payments.AssertExpectations(t)
	})

	t.Run("Refund webhook covering the full total flips the payment status", func(t *testing.T) {
		f := newPaymentFixture()
		order := awaitingOnlineOrder(orderDomain.PaymentCompleted) // Total 128000
		f.payments.On("SeenWebhookEvent", ctx, "refund.processed:rfnd_1").Return(false, nil).Once()
		f.payments.On("GetOrderIDByTransaction", ctx, "gw_p1").Return("o1", nil).Once()
		f.orders.On("GetOrderByID", ctx, "o1").Return(order, nil).Once()
		f.payments.On("MarkRefunded", ctx, "o1", "rfnd_1", true).Return(nil).Once()
		f.payments.On("InsertWebhookEvent", ctx, "refund.processed:rfnd_1", "refund.processed").Return(true, nil).Once()

		event := domain.WebhookEvent{
			Event: "refund.processed",
			Payload: domain.WebhookPayload{
				Refund: &domain.WebhookRefund{ID: "rfnd_1", PaymentID: "gw_p1", Amount: 128000},
			},
		}
		assert.NoError(t, f.svc.ProcessWebhookEvent(ctx, event))
		f.payments.AssertExpectations(t)
	})

	t.Run("Partial refund webhook keeps the payment completed", func(t *testing.T) {
		f := newPaymentFixture()
		f.payments.On("SeenWebhookEvent", ctx, "refund.processed:rfnd_2").Return(false, nil).Once()
		f.payments.On("GetOrderIDByTransaction", ctx, "gw_p1").Return("o1", nil).Once()
		f.orders.On("GetOrderByID", ctx, "o1").Return(awaitingOnlineOrder(orderDomain.PaymentCompleted), nil).Once()
		f.payments.On("MarkRefunded", ctx, "o1", "rfnd_2", false).Return(nil).Once()
		f.payments.On("InsertWebhookEvent", ctx, "refund.processed:rfnd_2", "refund.processed").Return(true, nil).Once()

		event := domain.WebhookEvent{
			Event: "refund.processed",
			Payload: domain.WebhookPayload{
				Refund: &domain.WebhookRefund{ID: "rfnd_2", PaymentID: "gw_p1", Amount: 5000},
			},
		}
		assert.NoError(t, f.svc.ProcessWebhookEvent(ctx, event))
		f.payments.AssertExpectations(t)
	})

	t.Run("Unknown event types are ignored", func(t *testing.T) {
		f := newPaymentFixture()
		f.payments.On("SeenWebhookEvent", ctx, "payment.authorized:gw_p1").Return(false, nil).Once()
		f.payments.On("InsertWebhookEvent", ctx, "payment.authorized:gw_p1", "payment.authorized").Return(true, nil).Once()

		event := capturedEvent
		event.Event = "payment.authorized"
		assert.NoError(t, f.svc.ProcessWebhookEvent(ctx, event))
	})
}

func TestPaymentService_BulkRefund(t *testing.T) {
	ctx := context.TODO()
	f := newPaymentFixture()

	// First refund fails on lookup, second goes through in full.
	f.payments.On("GetOrderIDByTransaction", ctx, "txn_missing").Return("", assert.AnError).Once()
	f.payments.On("GetOrderIDByTransaction", ctx, "txn_ok").Return("o1", nil).Once()
	f.orders.On("GetOrderByID", ctx, "o1").Return(awaitingOnlineOrder(orderDomain.PaymentCompleted), nil).Once()
	f.gateway.On("Refund", ctx, "txn_ok", int64(128000)).
		Return(&domain.GatewayRefund{ID: "rfnd_1", PaymentID: "txn_ok", Amount: 128000}, nil).Once()
	f.payments.On("MarkRefunded", ctx, "o1", "rfnd_1", true).Return(nil).Once()

	results := f.svc.BulkRefund(ctx, domain.BulkRefundRequest{Refunds: []domain.RefundRequest{
		{TransactionID: "txn_missing"},
		{TransactionID: "txn_ok"}, // amount 0 means full refund
	}})

	assert.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.NotEmpty(t, results[0].Code)
	assert.True(t, results[1].Success)
	assert.Equal(t, "rfnd_1", results[1].RefundID)
	f.payments.AssertExpectations(t)
}

func TestPaymentService_RunDeadlineSweep(t *testing.T) {
	ctx := context.TODO()
	f := newPaymentFixture()
	deadline := time.Now().Add(5 * time.Hour)

	f.payments.On("FindRemindersDue", ctx, 1, mock.AnythingOfType("time.Time")).
		Return([]domain.ReminderDue{{OrderID: "o1", UserID: "u1", OrderNumber: "ORD-1", Deadline: deadline}}, nil).Once()
	f.payments.On("AdvanceReminder", ctx, "o1", 1).Return(true, nil).Once()
	f.payments.On("FindRemindersDue", ctx, 2, mock.AnythingOfType("time.Time")).Return(nil, nil).Once()
	f.payments.On("FindAbandonmentDue", ctx).Return([]string{"o2"}, nil).Once()
	f.payments.On("FindStalePendingOrders", ctx, 24*time.Hour).Return(nil, nil).Once()

	// o2 completed between the query and the sweep visit; nothing happens.
	f.orders.On("GetOrderByID", ctx, "o2").Return(awaitingOnlineOrder(orderDomain.PaymentCompleted), nil).Once()

	f.svc.RunDeadlineSweep(ctx)
	f.payments.AssertExpectations(t)
	f.orders.AssertNotCalled(t, "BeginTx", mock.Anything)
}
