package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/lakshya1282/genAi-project-sub000/internal/inventory/domain"
	"github.com/lakshya1282/genAi-project-sub000/internal/inventory/repository"
)

type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	args := m.Called(ctx, productID)
	if p := args.Get(0); p != nil {
		return p.(*domain.Product), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProductRepository) GetProducts(ctx context.Context, productIDs []string) (map[string]*domain.Product, error) {
	args := m.Called(ctx, productIDs)
	if p := args.Get(0); p != nil {
		return p.(map[string]*domain.Product), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProductRepository) DebitStock(ctx context.Context, dbops repository.DBTX, productID string, quantity int) (*domain.DebitedProduct, error) {
	args := m.Called(ctx, dbops, productID, quantity)
	if d := args.Get(0); d != nil {
		return d.(*domain.DebitedProduct), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProductRepository) CreditStock(ctx context.Context, dbops repository.DBTX, productID string, quantity int) error {
	args := m.Called(ctx, dbops, productID, quantity)
	return args.Error(0)
}

func (m *MockProductRepository) SetStockAbsolute(ctx context.Context, productID string, quantity int) (*domain.Product, error) {
	args := m.Called(ctx, productID, quantity)
	if p := args.Get(0); p != nil {
		return p.(*domain.Product), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProductRepository) BeginTx(ctx context.Context) (repository.DBTX, error) {
	args := m.Called(ctx)
	if tx := args.Get(0); tx != nil {
		return tx.(repository.DBTX), args.Error(1)
	}
	return nil, args.Error(1)
}
