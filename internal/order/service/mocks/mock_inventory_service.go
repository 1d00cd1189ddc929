package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	invDomain "github.com/lakshya1282/genAi-project-sub000/internal/inventory/domain"
	invRepo "github.com/lakshya1282/genAi-project-sub000/internal/inventory/repository"
)

// MockInventoryService stands in for the inventory controller when testing
// the order and payment services.
type MockInventoryService struct {
	mock.Mock
}

func (m *MockInventoryService) CheckAvailability(ctx context.Context, items []invDomain.StockItem) ([]invDomain.AvailabilityResult, error) {
	args := m.Called(ctx, items)
	if res := args.Get(0); res != nil {
		return res.([]invDomain.AvailabilityResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInventoryService) DebitBatch(ctx context.Context, dbops invRepo.DBTX, items []invDomain.StockItem) ([]invDomain.DebitedProduct, error) {
	args := m.Called(ctx, dbops, items)
	if res := args.Get(0); res != nil {
		return res.([]invDomain.DebitedProduct), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInventoryService) CreditBatch(ctx context.Context, dbops invRepo.DBTX, items []invDomain.StockItem) error {
	args := m.Called(ctx, dbops, items)
	return args.Error(0)
}

func (m *MockInventoryService) UpdateStockManual(ctx context.Context, productID string, quantity int) (*invDomain.Product, error) {
	args := m.Called(ctx, productID, quantity)
	if p := args.Get(0); p != nil {
		return p.(*invDomain.Product), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInventoryService) GetStockInfo(ctx context.Context, productID string) (*invDomain.Product, error) {
	args := m.Called(ctx, productID)
	if p := args.Get(0); p != nil {
		return p.(*invDomain.Product), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInventoryService) NotifyStockLevels(debited []invDomain.DebitedProduct) {
	m.Called(debited)
}
