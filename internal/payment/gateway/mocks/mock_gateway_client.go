package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/lakshya1282/genAi-project-sub000/internal/payment/domain"
)

type MockGatewayClient struct {
	mock.Mock
}

func (m *MockGatewayClient) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*domain.GatewayOrder, error) {
	args := m.Called(ctx, amount, currency, receipt)
	if o := args.Get(0); o != nil {
		return o.(*domain.GatewayOrder), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGatewayClient) FetchPayment(ctx context.Context, paymentID string) (*domain.GatewayPayment, error) {
	args := m.Called(ctx, paymentID)
	if p := args.Get(0); p != nil {
		return p.(*domain.GatewayPayment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGatewayClient) Refund(ctx context.Context, paymentID string, amount int64) (*domain.GatewayRefund, error) {
	args := m.Called(ctx, paymentID, amount)
	if r := args.Get(0); r != nil {
		return r.(*domain.GatewayRefund), args.Error(1)
	}
	return nil, args.Error(1)
}
