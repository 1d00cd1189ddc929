package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	invDomain "github.com/lakshya1282/genAi-project-sub000/internal/inventory/domain"
	invService "github.com/lakshya1282/genAi-project-sub000/internal/inventory/service"
	"github.com/lakshya1282/genAi-project-sub000/internal/notification"
	"github.com/lakshya1282/genAi-project-sub000/internal/order/domain"
	"github.com/lakshya1282/genAi-project-sub000/internal/order/repository"
	"github.com/lakshya1282/genAi-project-sub000/internal/platform/logger"
)

var (
	ErrEmptyOrder          = errors.New("order must contain at least one item with quantity >= 1")
	ErrOrderCreationFailed = errors.New("order creation failed")
	ErrAlreadyCancelled    = errors.New("order is already cancelled")
	ErrCancelForbidden     = errors.New("order has shipped and can no longer be cancelled")
	ErrCancellationFailed  = errors.New("order cancellation failed")
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrNotAwaitingPayment  = errors.New("order is not awaiting payment")
	ErrReviewNotAllowed    = errors.New("reviews are only allowed on delivered orders")
	ErrProductNotInOrder   = errors.New("product is not part of this order")
	ErrAlreadyReviewed     = errors.New("product already reviewed in this order")
)

const (
	taxRatePercent       = 18
	deliveryEstimateDays = 7
)

type Pricing struct {
	FreeShipAbove int64 // paise
	ShippingFlat  int64 // paise
}

type OrderService interface {
	PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.Order, error)
	CheckoutFromCart(ctx context.Context, req domain.CheckoutFromCartRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListOrdersBySeller(ctx context.Context, sellerID string) ([]domain.Order, error)
	CancelOrder(ctx context.Context, orderID, note string) (*domain.Order, error)
	CompleteOrder(ctx context.Context, orderID string) error
	UpdateOrderStatus(ctx context.Context, orderID string, req domain.UpdateStatusRequest) (*domain.Order, error)
	BulkUpdateOrderStatus(ctx context.Context, updates []domain.BulkStatusUpdate) []domain.BulkResult
	AddReview(ctx context.Context, orderID string, req domain.AddReviewRequest) (*domain.Review, error)
}

type orderServiceImpl struct {
	orderRepo repository.OrderRepository
	inventory invService.InventoryService
	notifier  notification.Notifier
	pricing   Pricing
}

func NewOrderService(or repository.OrderRepository, inv invService.InventoryService, n notification.Notifier, pricing Pricing) OrderService {
	return &orderServiceImpl{orderRepo: or, inventory: inv, notifier: n, pricing: pricing}
}

// normalizeItems validates and merges the request lines: duplicate product
// lines collapse into one, quantities must be >= 1.
func normalizeItems(reqItems []domain.OrderItemRequest) ([]invDomain.StockItem, error) {
	if len(reqItems) == 0 {
		return nil, ErrEmptyOrder
	}
	index := map[string]int{}
	items := make([]invDomain.StockItem, 0, len(reqItems))
	for _, it := range reqItems {
		if it.ProductID == "" || it.Quantity < 1 {
			return nil, ErrEmptyOrder
		}
		if i, seen := index[it.ProductID]; seen {
			items[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(items)
		items = append(items, invDomain.StockItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return items, nil
}

func (s *orderServiceImpl) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.Order, error) {
	stockItems, err := normalizeItems(req.Items)
	if err != nil {
		return nil, err
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		logger.Error("Svc.PlaceOrder: begin tx failed", err, nil)
		return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}
	defer tx.Rollback()

	// Debit every item inside this transaction. A failure on item 3 of 3
	// rolls back items 1 and 2 along with the not-yet-inserted order row.
	debited, err := s.inventory.DebitBatch(ctx, tx, stockItems)
	if err != nil {
		return nil, err
	}

	// Pricing comes from the post-debit snapshots, never from the client.
	var subtotal int64
	orderItems := make([]domain.OrderItem, len(stockItems))
	for i, d := range debited {
		lineTotal := d.UnitPrice * int64(stockItems[i].Quantity)
		subtotal += lineTotal
		orderItems[i] = domain.OrderItem{
			ProductID:   d.ProductID,
			SellerID:    d.SellerID,
			ProductName: d.Name,
			Quantity:    stockItems[i].Quantity,
			UnitPrice:   d.UnitPrice,
			LineTotal:   lineTotal,
		}
	}

	var shippingCost int64
	if subtotal <= s.pricing.FreeShipAbove {
		shippingCost = s.pricing.ShippingFlat
	}
	tax := (subtotal*taxRatePercent + 50) / 100
	total := subtotal + shippingCost + tax

	orderNumber, err := s.orderRepo.NextOrderNumber(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}

	status := domain.StatusAwaitingPayment
	if req.PaymentMethod == domain.PaymentMethodCOD {
		// COD has no payment gate; the coarse status completes at creation
		// while fulfillment tracking starts at "placed".
		status = domain.StatusCompleted
	}
	estimated := time.Now().AddDate(0, 0, deliveryEstimateDays)

	newOrder := &domain.Order{
		OrderNumber:       orderNumber,
		UserID:            req.UserID,
		Status:            status,
		OrderStatus:       domain.FulfillmentPlaced,
		Items:             orderItems,
		Subtotal:          subtotal,
		ShippingCost:      shippingCost,
		Tax:               tax,
		Total:             total,
		ShippingAddress:   req.ShippingAddress,
		Payment:           domain.PaymentDetails{Method: req.PaymentMethod, Status: domain.PaymentPending},
		EstimatedDelivery: &estimated,
	}

	if err := s.orderRepo.InsertOrderWithItems(ctx, tx, newOrder); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}
	if err := s.orderRepo.AppendStatusHistory(ctx, tx, newOrder.ID, string(domain.FulfillmentPlaced), "order placed"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("Svc.PlaceOrder: commit failed", err, nil)
		return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}

	s.inventory.NotifyStockLevels(debited)
	s.notifySellersOfNewOrder(newOrder)
	return newOrder, nil
}

func (s *orderServiceImpl) CheckoutFromCart(ctx context.Context, req domain.CheckoutFromCartRequest) (*domain.Order, error) {
	// Same semantics as PlaceOrder; the item list is just cart-sourced.
	return s.PlaceOrder(ctx, domain.PlaceOrderRequest{
		UserID:          req.UserID,
		Items:           req.CartItems,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
}

func (s *orderServiceImpl) notifySellersOfNewOrder(order *domain.Order) {
	bySeller := map[string][]string{}
	for _, it := range order.Items {
		bySeller[it.SellerID] = append(bySeller[it.SellerID], it.ProductID)
	}
	for sellerID, productIDs := range bySeller {
		notification.Dispatch(s.notifier, notification.EventOrderPlaced, order.ID, map[string]interface{}{
			"seller_id":    sellerID,
			"order_number": order.OrderNumber,
			"product_ids":  productIDs,
		})
	}
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orderRepo.GetOrderByID(ctx, orderID)
}

func (s *orderServiceImpl) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.orderRepo.ListOrdersByUser(ctx, userID)
}

func (s *orderServiceImpl) ListOrdersBySeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	return s.orderRepo.ListOrdersBySeller(ctx, sellerID)
}

func stockItemsOf(items []domain.OrderItem) []invDomain.StockItem {
	stock := make([]invDomain.StockItem, len(items))
	for i, it := range items {
		stock[i] = invDomain.StockItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return stock
}

func (s *orderServiceImpl) CancelOrder(ctx context.Context, orderID, note string) (*domain.Order, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == domain.StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	if !order.OrderStatus.CanTransitionTo(domain.FulfillmentCancelled) {
		return nil, ErrCancelForbidden
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		logger.Error("Svc.CancelOrder: begin tx failed", err, nil)
		return nil, fmt.Errorf("%w: %v", ErrCancellationFailed, err)
	}
	defer tx.Rollback()

	// The CAS decides the race against a concurrent cancel or the
	// abandonment sweep; only the winner credits stock.
	won, err := s.orderRepo.MarkCancelled(ctx, tx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancellationFailed, err)
	}
	if !won {
		// Someone else got there first; observe the terminal state and no-op.
		current, rerr := s.orderRepo.GetOrderByID(ctx, orderID)
		if rerr == nil && current.Status == domain.StatusCancelled {
			return nil, ErrAlreadyCancelled
		}
		return nil, ErrCancelForbidden
	}

	if err := s.inventory.CreditBatch(ctx, tx, stockItemsOf(order.Items)); err != nil {
		// CreditBatch already logged this as CRITICAL; rolling back also
		// reverts the status flip so the order is not stuck cancelled
		// without its stock returned.
		return nil, fmt.Errorf("%w: %v", ErrCancellationFailed, err)
	}
	if note == "" {
		note = "order cancelled"
	}
	if err := s.orderRepo.AppendStatusHistory(ctx, tx, orderID, string(domain.FulfillmentCancelled), note); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancellationFailed, err)
	}
	if err := tx.Commit(); err != nil {
		logger.Error("Svc.CancelOrder: commit failed", err, nil)
		return nil, fmt.Errorf("%w: %v", ErrCancellationFailed, err)
	}

	order.Status = domain.StatusCancelled
	order.OrderStatus = domain.FulfillmentCancelled

	notification.Dispatch(s.notifier, notification.EventOrderCancelled, orderID, map[string]interface{}{
		"user_id": order.UserID, "order_number": order.OrderNumber,
	})
	for _, it := range order.Items {
		notification.Dispatch(s.notifier, notification.EventStockRestored, it.ProductID, map[string]interface{}{
			"seller_id": it.SellerID, "quantity": it.Quantity,
		})
	}
	return order, nil
}

func (s *orderServiceImpl) CompleteOrder(ctx context.Context, orderID string) error {
	won, err := s.orderRepo.MarkCompleted(ctx, orderID)
	if err != nil {
		return err
	}
	if !won {
		return ErrNotAwaitingPayment
	}
	return nil
}

func (s *orderServiceImpl) UpdateOrderStatus(ctx context.Context, orderID string, req domain.UpdateStatusRequest) (*domain.Order, error) {
	if req.Status == domain.FulfillmentCancelled {
		// Cancellation owns the stock credit; never set the status directly.
		return s.CancelOrder(ctx, orderID, req.Note)
	}

	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.OrderStatus.CanTransitionTo(req.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.OrderStatus, req.Status)
	}

	var shippedAt, deliveredAt *time.Time
	now := time.Now()
	switch req.Status {
	case domain.FulfillmentShipped:
		shippedAt = &now
	case domain.FulfillmentDelivered:
		deliveredAt = &now
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		logger.Error("Svc.UpdateOrderStatus: begin tx failed", err, nil)
		return nil, err
	}
	defer tx.Rollback()

	if err := s.orderRepo.SetFulfillmentStatus(ctx, tx, orderID, req.Status, req.TrackingNumber, shippedAt, deliveredAt); err != nil {
		return nil, err
	}
	if err := s.orderRepo.AppendStatusHistory(ctx, tx, orderID, string(req.Status), req.Note); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		logger.Error("Svc.UpdateOrderStatus: commit failed", err, nil)
		return nil, err
	}

	order.OrderStatus = req.Status
	if req.TrackingNumber != "" {
		order.TrackingNumber = req.TrackingNumber
	}
	order.ShippedAt = firstNonNil(shippedAt, order.ShippedAt)
	order.ActualDelivery = firstNonNil(deliveredAt, order.ActualDelivery)

	notification.Dispatch(s.notifier, notification.EventOrderStatus, orderID, map[string]interface{}{
		"user_id": order.UserID, "order_number": order.OrderNumber, "status": string(req.Status), "note": req.Note,
	})
	return order, nil
}

func firstNonNil(a, b *time.Time) *time.Time {
	if a != nil {
		return a
	}
	return b
}

func (s *orderServiceImpl) BulkUpdateOrderStatus(ctx context.Context, updates []domain.BulkStatusUpdate) []domain.BulkResult {
	results := make([]domain.BulkResult, len(updates))
	for i, u := range updates {
		res := domain.BulkResult{OrderID: u.OrderID, Success: true}
		_, err := s.UpdateOrderStatus(ctx, u.OrderID, domain.UpdateStatusRequest{
			Status: u.Status, Note: u.Note, TrackingNumber: u.TrackingNumber,
		})
		if err != nil {
			res.Success = false
			res.Code = CodeForError(err)
			res.Error = err.Error()
		}
		results[i] = res
	}
	return results
}

func (s *orderServiceImpl) AddReview(ctx context.Context, orderID string, req domain.AddReviewRequest) (*domain.Review, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.OrderStatus != domain.FulfillmentDelivered {
		return nil, ErrReviewNotAllowed
	}
	var item *domain.OrderItem
	for i := range order.Items {
		if order.Items[i].ProductID == req.ProductID {
			item = &order.Items[i]
			break
		}
	}
	if item == nil {
		return nil, ErrProductNotInOrder
	}
	if item.Reviewed {
		return nil, ErrAlreadyReviewed
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		logger.Error("Svc.AddReview: begin tx failed", err, nil)
		return nil, err
	}
	defer tx.Rollback()

	// MarkItemReviewed is the once-only guard; a concurrent duplicate loses
	// on the conditional update.
	if err := s.orderRepo.MarkItemReviewed(ctx, tx, orderID, req.ProductID); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, ErrAlreadyReviewed
		}
		return nil, err
	}
	review := &domain.Review{OrderID: orderID, ProductID: req.ProductID, Rating: req.Rating, Comment: req.Comment}
	if err := s.orderRepo.InsertReview(ctx, tx, review); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		logger.Error("Svc.AddReview: commit failed", err, nil)
		return nil, err
	}
	return review, nil
}
