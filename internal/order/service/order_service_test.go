package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	invDomain "github.com/lakshya1282/genAi-project-sub000/internal/inventory/domain"
	invRepo "github.com/lakshya1282/genAi-project-sub000/internal/inventory/repository"
	invMocks "github.com/lakshya1282/genAi-project-sub000/internal/inventory/repository/mocks"
	"github.com/lakshya1282/genAi-project-sub000/internal/notification"
	"github.com/lakshya1282/genAi-project-sub000/internal/order/domain"
	repoMocks "github.com/lakshya1282/genAi-project-sub000/internal/order/repository/mocks"
	svcMocks "github.com/lakshya1282/genAi-project-sub000/internal/order/service/mocks"
)

var testPricing = Pricing{FreeShipAbove: 200000, ShippingFlat: 10000}

type orderFixture struct {
	repo      *repoMocks.MockOrderRepository
	inventory *svcMocks.MockInventoryService
	tx        *invMocks.MockDBTX
	svc       OrderService
}

func newOrderFixture() *orderFixture {
	f := &orderFixture{
		repo:      new(repoMocks.MockOrderRepository),
		inventory: new(svcMocks.MockInventoryService),
		tx:        new(invMocks.MockDBTX),
	}
	f.tx.On("Rollback").Return(nil)
	f.svc = NewOrderService(f.repo, f.inventory, notification.NopNotifier{}, testPricing)
	return f
}

func placedOrder(status domain.Status, orderStatus domain.FulfillmentStatus) *domain.Order {
	return &domain.Order{
		ID:          "o1",
		OrderNumber: "ORD-20260828-000042",
		UserID:      "u1",
		Status:      status,
		OrderStatus: orderStatus,
		Items: []domain.OrderItem{
			{ProductID: "p1", SellerID: "s1", ProductName: "widget", Quantity: 2, UnitPrice: 50000, LineTotal: 100000},
			{ProductID: "p2", SellerID: "s2", ProductName: "gadget", Quantity: 1, UnitPrice: 30000, LineTotal: 30000},
		},
		Subtotal: 130000,
		Total:    163400,
	}
}

func TestOrderService_PlaceOrder(t *testing.T) {
	ctx := context.TODO()

	req := domain.PlaceOrderRequest{
		UserID: "u1",
		Items: []domain.OrderItemRequest{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 1},
		},
		ShippingAddress: domain.Address{Line1: "1 Main St", City: "Pune", State: "MH", PostalCode: "411001", Country: "IN"},
		PaymentMethod:   domain.PaymentMethodCOD,
	}

	debited := []invDomain.DebitedProduct{
		{ProductID: "p1", SellerID: "s1", Name: "widget", UnitPrice: 50000, QuantityAvailable: 8},
		{ProductID: "p2", SellerID: "s2", Name: "gadget", UnitPrice: 30000, QuantityAvailable: 3},
	}

	t.Run("COD order is priced from post-debit snapshots and completes at creation", func(t *testing.T) {
		f := newOrderFixture()
		f.tx.On("Commit").Return(nil).Once()
		f.repo.On("BeginTx", ctx).Return(f.tx, nil).Once()
		f.inventory.On("DebitBatch", ctx, f.tx, mock.Anything).Return(debited, nil).Once()
		f.repo.On("NextOrderNumber", ctx, f.tx).Return("ORD-20260828-000042", nil).Once()
		f.repo.On("InsertOrderWithItems", ctx, f.tx, mock.AnythingOfType("*domain.Order")).Return(nil).Once()
		f.repo.On("AppendStatusHistory", ctx, f.tx, "mock-order-id", "placed", "order placed").Return(nil).Once()
		f.inventory.On("NotifyStockLevels", debited).Return().Once()

		order, err := f.svc.PlaceOrder(ctx, req)
		assert.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, order.Status)
		assert.Equal(t, domain.FulfillmentPlaced, order.OrderStatus)
		assert.Equal(t, int64(130000), order.Subtotal)
		assert.Equal(t, int64(10000), order.ShippingCost, "below the free shipping line")
		assert.Equal(t, int64(23400), order.Tax)
		assert.Equal(t, int64(163400), order.Total)
		assert.Equal(t, int64(50000), order.Items[0].UnitPrice, "unit price frozen from the debit snapshot")
		assert.NotNil(t, order.EstimatedDelivery)
		f.repo.AssertExpectations(t)
	})

	t.Run("Online order awaits payment", func(t *testing.T) {
		f := newOrderFixture()
		f.tx.On("Commit").Return(nil).Once()
		f.repo.On("BeginTx", ctx).Return(f.tx, nil).Once()
		f.inventory.On("DebitBatch", ctx, f.tx, mock.Anything).Return(debited, nil).Once()
		f.repo.On("NextOrderNumber", ctx, f.tx).Return("ORD-20260828-000043", nil).Once()
		f.repo.On("InsertOrderWithItems", ctx, f.tx, mock.AnythingOfType("*domain.Order")).Return(nil).Once()
		f.repo.On("AppendStatusHistory", ctx, f.tx, "mock-order-id", "placed", "order placed").Return(nil).Once()
		f.inventory.On("NotifyStockLevels", debited).Return().Once()

		onlineReq := req
		onlineReq.PaymentMethod = domain.PaymentMethodOnline
		order, err := f.svc.PlaceOrder(ctx, onlineReq)
		assert.NoError(t, err)
		assert.Equal(t, domain.StatusAwaitingPayment, order.Status)
		assert.Equal(t, domain.PaymentPending, order.Payment.Status)
	})

	t.Run("Large subtotal ships free", func(t *testing.T) {
		f := newOrderFixture()
		bigDebit := []invDomain.DebitedProduct{
			{ProductID: "p1", SellerID: "s1", Name: "widget", UnitPrice: 150000, QuantityAvailable: 8},
			{ProductID: "p2", SellerID: "s2", Name: "gadget", UnitPrice: 30000, QuantityAvailable: 3},
		}
		f.tx.On("Commit").Return(nil).Once()
		f.repo.On("BeginTx", ctx).Return(f.tx, nil).Once()
		f.inventory.On("DebitBatch", ctx, f.tx, mock.Anything).Return(bigDebit, nil).Once()
		f.repo.On("NextOrderNumber", ctx, f.tx).Return("ORD-20260828-000044", nil).Once()
		f.repo.On("InsertOrderWithItems", ctx, f.tx, mock.AnythingOfType("*domain.Order")).Return(nil).Once()
		f.repo.On("AppendStatusHistory", ctx, f.tx, "mock-order-id", "placed", "order placed").Return(nil).Once()
		f.inventory.On("NotifyStockLevels", bigDebit).Return().Once()

		order, err := f.svc.PlaceOrder(ctx, req)
		assert.NoError(t, err)
		assert.Equal(t, int64(330000), order.Subtotal)
		assert.Zero(t, order.ShippingCost)
	})

	t.Run("Debit failure rolls everything back and names the product", func(t *testing.T) {
		f := newOrderFixture()
		f.repo.On("BeginTx", ctx).Return(f.tx, nil).Once()
		f.inventory.On("DebitBatch", ctx, f.tx, mock.Anything).
			Return(nil, fmt.Errorf("%w: product_id p2", invRepo.ErrInsufficientStock)).Once()

		order, err := f.svc.PlaceOrder(ctx, req)
		assert.Nil(t, order)
		assert.ErrorIs(t, err, invRepo.ErrInsufficientStock)
		assert.Contains(t, err.Error(), "p2")
		f.repo.AssertNotCalled(t, "InsertOrderWithItems", mock.Anything, mock.Anything, mock.Anything)
		f.tx.AssertNotCalled(t, "Commit")
		f.tx.AssertCalled(t, "Rollback")
	})

	t.Run("Duplicate product lines merge before debiting", func(t *testing.T) {
		f := newOrderFixture()
		f.tx.On("Commit").Return(nil).Once()
		f.repo.On("BeginTx", ctx).Return(f.tx, nil).Once()
		f.inventory.On("DebitBatch", ctx, f.tx, []invDomain.StockItem{{ProductID: "p1", Quantity: 3}}).
			Return(debited[:1], nil).Once()
		f.repo.On("NextOrderNumber", ctx, f.tx).Return("ORD-20260828-000045", nil).Once()
		f.repo.On("InsertOrderWithItems", ctx, f.tx, mock.AnythingOfType("*domain.Order")).Return(nil).Once()
		f.repo.On("AppendStatusHistory", ctx, f.tx, "mock-order-id", "placed", "order placed").Return(nil).Once()
		f.inventory.On("NotifyStockLevels", debited[:1]).Return().Once()

		mergedReq := req
		mergedReq.Items = []domain.OrderItemRequest{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p1", Quantity: 1},
		}
		order, err := f.svc.PlaceOrder(ctx, mergedReq)
		assert.NoError(t, err)
		assert.Len(t, order.Items, 1)
		assert.Equal(t, 3, order.Items[0].Quantity)
	})

	t.Run("Empty and malformed item lists are rejected up front", func(t *testing.T) {
		f := newOrderFixture()

		_, err := f.svc.PlaceOrder(ctx, domain.PlaceOrderRequest{UserID: "u1"})
		assert.ErrorIs(t, err, ErrEmptyOrder)

		zeroQty := req
		zeroQty.Items = []domain.OrderItemRequest{{ProductID: "p1", Quantity: 0}}
		_, err = f.svc.PlaceOrder(ctx, zeroQty)
		assert.ErrorIs(t, err, ErrEmptyOrder)
		f.repo.AssertNotCalled(t, "BeginTx", mock.Anything)
	})
}

func TestOrderService_CancelOrder(t *testing.T) {
	ctx := context.TODO()

	t.Run("Winner flips status and restores stock atomically", func(t *testing.T) {
		f := newOrderFixture()
		f.tx.On("Commit").Return(nil).Once()
		f.repo.On("GetOrderByID", ctx, "o1").Return(placedOrder(domain.StatusCompleted, domain.FulfillmentProcessing), nil).Once()
		f.repo.On("BeginTx", ctx).Return(f.tx, nil).Once()
		f.repo.On("MarkCancelled", ctx, f.tx, "o1").Return(true, nil).Once()
		f.inventory.On("CreditBatch", ctx, f.tx, []invDomain.StockItem{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 1},
		}).Return(nil).Once()
		f.repo.On("AppendStatusHistory", ctx, f.tx, "o1", "cancelled", "changed my mind").Return(nil).Once()

		order, err := f.svc.CancelOrder(ctx, "o1", "changed my mind")
		assert.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, order.Status)
		assert.Equal(t, domain.FulfillmentCancelled, order.OrderStatus)
		f.inventory.AssertExpectations(t)
	})

	t.Run("Already cancelled order is rejected before any write", func(t *testing.T) {
		f := newOrderFixture()
		f.repo.On("GetOrderByID", ctx, "o1").Return(placedOrder(domain.StatusCancelled, domain.FulfillmentCancelled), nil).Once()

		_, err := f.svc.CancelOrder(ctx, "o1", "")
		assert.ErrorIs(t, err, ErrAlreadyCancelled)
		f.repo.AssertNotCalled(t, "BeginTx", mock.Anything)
	})

	t.Run("Shipped order can no longer be cancelled", func(t *testing.T) {
		f := newOrderFixture()
		f.repo.On("GetOrderByID", ctx, "o1").Return(placedOrder(domain.StatusCompleted, domain.FulfillmentShipped), nil).Once()

		_, err := f.svc.CancelOrder(ctx, "o1", "")
		assert.ErrorIs(t, err, ErrCancelForbidden)
	})

	t.Run("Losing the CAS never credits stock twice", func(t *testing.T) {
		f := newOrderFixture()
		f.repo.On("GetOrderByID", ctx, "o1").Return(placedOrder(domain.StatusCompleted, domain.FulfillmentPlaced), nil).Once()
		f.repo.On("BeginTx", ctx).Return(f.tx, nil).Once()
		f.repo.On("MarkCancelled", ctx, f.tx, "o1").Return(false, nil).Once()
		// The loser re-reads to classify the terminal state it lost to.
		f.repo.On("GetOrderByID", ctx, "o1").Return(placedOrder(domain.StatusCancelled, domain.FulfillmentCancelled), nil).Once()

		_, err := f.svc.CancelOrder(ctx, "o1", "")
		assert.ErrorIs(t, err, ErrAlreadyCancelled)
		f.inventory.AssertNotCalled(t, "CreditBatch", mock.Anything, mock.Anything, mock.Anything)
		f.tx.AssertNotCalled(t, "Commit")
	})
}

func TestOrderService_CompleteOrder(t *testing.T) {
	ctx := context.TODO()

	t.Run("Awaiting order completes", func(t *testing.T) {
		f := newOrderFixture()
		f.repo.On("MarkCompleted", ctx, "o1").Return(true, nil).Once()
		assert.NoError(t, f.svc.CompleteOrder(ctx, "o1"))
	})

	t.Run("Anything else is rejected", func(t *testing.T) {
		f := newOrderFixture()
		f.repo.On("MarkCompleted", ctx, "o1").Return(false, nil).Once()
		assert.ErrorIs(t, f.svc.CompleteOrder(ctx, "o1"), ErrNotAwaitingPayment)
	})
}

func TestOrderService_UpdateOrderStatus(t *testing.T) {
	ctx := context.TODO()

	t.Run("Forward transition stamps shipping metadata", func(t *testing.T) {
		f := newOrderFixture()
		f.tx.On("Commit").Return(nil).Once()
		f.repo.On("GetOrderByID", ctx, "o1").Return(placedOrder(domain.StatusCompleted, domain.FulfillmentProcessing), nil).Once()
		f.repo.On("BeginTx", ctx).Return(f.tx, nil).Once()
		f.repo.On("SetFulfillmentStatus", ctx, f.tx, "o1", domain.FulfillmentShipped, "TRK-99", mock.AnythingOfType("*time.Time"), (*time.Time)(nil)).Return(nil).Once()
		f.repo.On("AppendStatusHistory", ctx, f.tx, "o1", "shipped", "on the truck").Return(nil).Once()

		order, err := f.svc.UpdateOrderStatus(ctx, "o1", domain.UpdateStatusRequest{
			Status: domain.FulfillmentShipped, Note: "on the truck", TrackingNumber: "TRK-99",
		})
		assert.NoError(t, err)
		assert.Equal(t, domain.FulfillmentShipped, order.OrderStatus)
		assert.Equal(t, "TRK-99", order.TrackingNumber)
		assert.NotNil(t, order.ShippedAt)
	})

	t.Run("Backward transition is rejected", func(t *testing.T) {
		f := newOrderFixture()
		f.repo.On("GetOrderByID", ctx, "o1").Return(placedOrder(domain.StatusCompleted, domain.FulfillmentDelivered), nil).Once()

		_, err := f.svc.UpdateOrderStatus(ctx, "o1", domain.UpdateStatusRequest{Status: domain.FulfillmentConfirmed})
		assert.ErrorIs(t, err, ErrInvalidTransition)
		f.repo.AssertNotCalled(t, "SetFulfillmentStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Setting cancelled goes through the cancellation path", func(t *testing.T) {
		f := newOrderFixture()
		f.tx.On("Commit").Return(nil).Once()
		f.repo.On("GetOrderByID", ctx, "o1").Return(placedOrder(domain.StatusCompleted, domain.FulfillmentConfirmed), nil).Once()
		f.repo.On("BeginTx", ctx).Return(f.tx, nil).Once()
		f.repo.On("MarkCancelled", ctx, f.tx, "o1").Return(true, nil).Once()
		f.inventory.On("CreditBatch", ctx, f.tx, mock.Anything).Return(nil).Once()
		f.repo.On("AppendStatusHistory", ctx, f.tx, "o1", "cancelled", "out of stock at warehouse").Return(nil).Once()

		order, err := f.svc.UpdateOrderStatus(ctx, "o1", domain.UpdateStatusRequest{
			Status: domain.FulfillmentCancelled, Note: "out of stock at warehouse",
		})
		assert.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, order.Status)
		f.inventory.AssertExpectations(t)
	})
}

func TestOrderService_BulkUpdateOrderStatus(t *testing.T) {
	ctx := context.TODO()
	f := newOrderFixture()

	// o1 moves forward; o2 tries to move backward and fails alone.
	f.tx.On("Commit").Return(nil).Once()
	f.repo.On("GetOrderByID", ctx, "o1").Return(placedOrder(domain.StatusCompleted, domain.FulfillmentPlaced), nil).Once()
	f.repo.On("BeginTx", ctx).Return(f.tx, nil).Once()
	f.repo.On("SetFulfillmentStatus", ctx, f.tx, "o1", domain.FulfillmentConfirmed, "", (*time.Time)(nil), (*time.Time)(nil)).Return(nil).Once()
	f.repo.On("AppendStatusHistory", ctx, f.tx, "o1", "confirmed", "").Return(nil).Once()
	f.repo.On("GetOrderByID", ctx, "o2").Return(placedOrder(domain.StatusCompleted, domain.FulfillmentDelivered), nil).Once()

	results := f.svc.BulkUpdateOrderStatus(ctx, []domain.BulkStatusUpdate{
		{OrderID: "o1", Status: domain.FulfillmentConfirmed},
		{OrderID: "o2", Status: domain.FulfillmentProcessing},
	})

	assert.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Equal(t, "INVALID_STATUS", results[1].Code)
}

func TestOrderService_AddReview(t *testing.T) {
	ctx := context.TODO()
	req := domain.AddReviewRequest{ProductID: "p1", Rating: 5, Comment: "great"}

	t.Run("Delivered order accepts one review per item", func(t *testing.T) {
		f := newOrderFixture()
		f.tx.On("Commit").Return(nil).Once()
		f.repo.On("GetOrderByID", ctx, "o1").Return(placedOrder(domain.StatusCompleted, domain.FulfillmentDelivered), nil).Once()
		f.repo.On("BeginTx", ctx).Return(f.tx, nil).Once()
		f.repo.On("MarkItemReviewed", ctx, f.tx, "o1", "p1").Return(nil).Once()
		f.repo.On("InsertReview", ctx, f.tx, mock.AnythingOfType("*domain.Review")).Return(nil).Once()

		review, err := f.svc.AddReview(ctx, "o1", req)
		assert.NoError(t, err)
		assert.Equal(t, "mock-review-id", review.ID)
		assert.Equal(t, 5, review.Rating)
	})

	t.Run("Undelivered order rejects reviews", func(t *testing.T) {
		f := newOrderFixture()
		f.repo.On("GetOrderByID", ctx, "o1").Return(placedOrder(domain.StatusCompleted, domain.FulfillmentShipped), nil).Once()

		_, err := f.svc.AddReview(ctx, "o1", req)
		assert.ErrorIs(t, err, ErrReviewNotAllowed)
	})

	t.Run("Product outside the order is rejected", func(t *testing.T) {
		f := newOrderFixture()
		f.repo.On("GetOrderByID", ctx, "o1").Return(placedOrder(domain.StatusCompleted, domain.FulfillmentDelivered), nil).Once()

		_, err := f.svc.AddReview(ctx, "o1", domain.AddReviewRequest{ProductID: "p9", Rating: 4})
		assert.ErrorIs(t, err, ErrProductNotInOrder)
	})

	t.Run("Second review of the same item loses the conditional update", func(t *testing.T) {
		f := newOrderFixture()
		order := placedOrder(domain.StatusCompleted, domain.FulfillmentDelivered)
		order.Items[0].Reviewed = true
		f.repo.On("GetOrderByID", ctx, "o1").Return(order, nil).Once()

		_, err := f.svc.AddReview(ctx, "o1", req)
		assert.ErrorIs(t, err, ErrAlreadyReviewed)
		f.repo.AssertNotCalled(t, "InsertReview", mock.Anything, mock.Anything, mock.Anything)
	})
}
