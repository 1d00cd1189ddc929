package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/lakshya1282/genAi-project-sub000/internal/payment/domain"
	"github.com/lakshya1282/genAi-project-sub000/internal/payment/repository"
)

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) SetGatewayOrder(ctx context.Context, orderID, gatewayOrderID string) error {
	args := m.Called(ctx, orderID, gatewayOrderID)
	return args.Error(0)
}

func (m *MockPaymentRepository) MarkPaymentCompleted(ctx context.Context, orderID, transactionID string) (bool, error) {
	args := m.Called(ctx, orderID, transactionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) MarkPaymentFailed(ctx context.Context, orderID, reason string, deadline time.Time) error {
	args := m.Called(ctx, orderID, reason, deadline)
	return args.Error(0)
}

func (m *MockPaymentRepository) RecordRetryAttempt(ctx context.Context, orderID, gatewayOrderID string) error {
	args := m.Called(ctx, orderID, gatewayOrderID)
	return args.Error(0)
}

func (m *MockPaymentRepository) MarkAbandoned(ctx context.Context, dbops repository.DBTX, orderID string) (bool, error) {
	args := m.Called(ctx, dbops, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) MarkRefunded(ctx context.Context, orderID, refundID string, full bool) error {
	args := m.Called(ctx, orderID, refundID, full)
	return args.Error(0)
}

func (m *MockPaymentRepository) AdvanceReminder(ctx context.Context, orderID string, level int) (bool, error) {
	args := m.Called(ctx, orderID, level)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) FindRemindersDue(ctx context.Context, level int, cutoff time.Time) ([]domain.ReminderDue, error) {
	args := m.Called(ctx, level, cutoff)
	if due := args.Get(0); due != nil {
		return due.([]domain.ReminderDue), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPaymentRepository) FindAbandonmentDue(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if ids := args.Get(0); ids != nil {
		return ids.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPaymentRepository) FindStalePendingOrders(ctx context.Context, olderThan time.Duration) ([]string, error) {
	args := m.Called(ctx, olderThan)
	if ids := args.Get(0); ids != nil {
		return ids.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPaymentRepository) GetOrderIDByGatewayOrder(ctx context.Context, gatewayOrderID string) (string, error) {
	args := m.Called(ctx, gatewayOrderID)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentRepository) GetOrderIDByTransaction(ctx context.Context, transactionID string) (string, error) {
	args := m.Called(ctx, transactionID)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentRepository) SeenWebhookEvent(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) InsertWebhookEvent(ctx context.Context, eventID, eventType string) (bool, error) {
	args := m.Called(ctx, eventID, eventType)
	return args.Bool(0), args.Error(1)
}
