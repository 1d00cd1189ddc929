package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/lakshya1282/genAi-project-sub000/internal/order/domain"
	"github.com/lakshya1282/genAi-project-sub000/internal/order/repository"
)

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) BeginTx(ctx context.Context) (repository.DBTX, error) {
	args := m.Called(ctx)
	if tx := args.Get(0); tx != nil {
		return tx.(repository.DBTX), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) NextOrderNumber(ctx context.Context, dbops repository.DBTX) (string, error) {
	args := m.Called(ctx, dbops)
	return args.String(0), args.Error(1)
}

func (m *MockOrderRepository) InsertOrderWithItems(ctx context.Context, dbops repository.DBTX, order *domain.Order) error {
	args := m.Called(ctx, dbops, order)
	if order != nil && args.Error(0) == nil {
		order.ID = "mock-order-id"
	}
	return args.Error(0)
}

func (m *MockOrderRepository) AppendStatusHistory(ctx context.Context, dbops repository.DBTX, orderID, status, note string) error {
	args := m.Called(ctx, dbops, orderID, status, note)
	return args.Error(0)
}

func (m *MockOrderRepository) GetOrderByID(ctx context.Context, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	if o := args.Get(0); o != nil {
		return o.(*domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	args := m.Called(ctx, orderID)
	if oi := args.Get(0); oi != nil {
		return oi.([]domain.OrderItem), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	args := m.Called(ctx, userID)
	if o := args.Get(0); o != nil {
		return o.([]domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) ListOrdersBySeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	args := m.Called(ctx, sellerID)
	if o := args.Get(0); o != nil {
		return o.([]domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) MarkCancelled(ctx context.Context, dbops repository.DBTX, orderID string) (bool, error) {
	args := m.Called(ctx, dbops, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) MarkCompleted(ctx context.Context, orderID string) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) SetFulfillmentStatus(ctx context.Context, dbops repository.DBTX, orderID string, status domain.FulfillmentStatus, trackingNumber string, shippedAt, deliveredAt *time.Time) error {
	args := m.Called(ctx, dbops, orderID, status, trackingNumber, shippedAt, deliveredAt)
	return args.Error(0)
}

func (m *MockOrderRepository) InsertReview(ctx context.Context, dbops repository.DBTX, review *domain.Review) error {
	args := m.Called(ctx, dbops, review)
	if review != nil && args.Error(0) == nil {
		review.ID = "mock-review-id"
	}
	return args.Error(0)
}

func (m *MockOrderRepository) MarkItemReviewed(ctx context.Context, dbops repository.DBTX, orderID, productID string) error {
	args := m.Called(ctx, dbops, orderID, productID)
	return args.Error(0)
}
