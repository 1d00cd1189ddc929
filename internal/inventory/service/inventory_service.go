package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/lakshya1282/genAi-project-sub000/internal/inventory/domain"
	"github.com/lakshya1282/genAi-project-sub000/internal/inventory/repository"
	"github.com/lakshya1282/genAi-project-sub000/internal/notification"
	"github.com/lakshya1282/genAi-project-sub000/internal/platform/logger"
)

// Below this remaining quantity a low-stock event is sent to the seller.
const lowStockThreshold = 5

var ErrStockOperationFailed = errors.New("stock operation failed")

// InventoryService is the sole authority over quantity_available /
// quantity_sold / is_out_of_stock. Order code never touches products directly.
type InventoryService interface {
	// CheckAvailability is a pure read for pre-checkout UX. It is not a
	// guarantee; only DebitBatch's conditional update decides a sale.
	CheckAvailability(ctx context.Context, items []domain.StockItem) ([]domain.AvailabilityResult, error)

	// DebitBatch debits every item inside the caller's transaction, all or
	// nothing. The returned snapshots carry the authoritative unit prices.
	DebitBatch(ctx context.Context, dbops repository.DBTX, items []domain.StockItem) ([]domain.DebitedProduct, error)

	// CreditBatch reverses a prior debit inside the caller's transaction.
	// Callers gate it behind a status CAS so it runs at most once per order.
	CreditBatch(ctx context.Context, dbops repository.DBTX, items []domain.StockItem) error

	UpdateStockManual(ctx context.Context, productID string, quantity int) (*domain.Product, error)
	GetStockInfo(ctx context.Context, productID string) (*domain.Product, error)

	// NotifyStockLevels emits low-stock/out-of-stock events for a committed
	// debit. Called after commit so a rolled-back debit never notifies.
	NotifyStockLevels(debited []domain.DebitedProduct)
}

type inventoryServiceImpl struct {
	repo     repository.ProductRepository
	notifier notification.Notifier
}

func NewInventoryService(repo repository.ProductRepository, notifier notification.Notifier) InventoryService {
	return &inventoryServiceImpl{repo: repo, notifier: notifier}
}

func (s *inventoryServiceImpl) CheckAvailability(ctx context.Context, items []domain.StockItem) ([]domain.AvailabilityResult, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	products, err := s.repo.GetProducts(ctx, ids)
	if err != nil {
		logger.Error("Svc.CheckAvailability: repo error", err, nil)
		return nil, fmt.Errorf("%w: %v", ErrStockOperationFailed, err)
	}

	results := make([]domain.AvailabilityResult, len(items))
	for i, item := range items {
		res := domain.AvailabilityResult{ProductID: item.ProductID, Quantity: item.Quantity}
		p, found := products[item.ProductID]
		switch {
		case !found:
			res.Reason = domain.ReasonNotFound
		case !p.IsActive:
			res.Reason = domain.ReasonInactive
		case p.QuantityAvailable == 0:
			res.Reason = domain.ReasonOutOfStock
		case p.QuantityAvailable < item.Quantity:
			res.Reason = domain.ReasonInsufficient
		default:
			res.Available = true
		}
		results[i] = res
	}
	return results, nil
}

func (s *inventoryServiceImpl) DebitBatch(ctx context.Context, dbops repository.DBTX, items []domain.StockItem) ([]domain.DebitedProduct, error) {
	debited := make([]domain.DebitedProduct, 0, len(items))
	for _, item := range items {
		d, err := s.repo.DebitStock(ctx, dbops, item.ProductID, item.Quantity)
		if err != nil {
			// The caller rolls the whole transaction back, which also undoes
			// the debits that already succeeded in this loop.
			return nil, fmt.Errorf("%w: product_id %s", err, item.ProductID)
		}
		debited = append(debited, *d)
	}
	return debited, nil
}

func (s *inventoryServiceImpl) CreditBatch(ctx context.Context, dbops repository.DBTX, items []domain.StockItem) error {
	for _, item := range items {
		if err := s.repo.CreditStock(ctx, dbops, item.ProductID, item.Quantity); err != nil {
			// The stock being credited was debited by us, so a failure here is
			// an integrity problem, not a user error.
			logger.Critical(fmt.Sprintf("CreditBatch: failed to restore stock for product %s qty %d", item.ProductID, item.Quantity), err, nil)
			return fmt.Errorf("%w: product_id %s", err, item.ProductID)
		}
	}
	return nil
}

func (s *inventoryServiceImpl) UpdateStockManual(ctx context.Context, productID string, quantity int) (*domain.Product, error) {
	p, err := s.repo.SetStockAbsolute(ctx, productID, quantity)
	if err != nil {
		if !errors.Is(err, repository.ErrProductNotFound) {
			logger.Error("Svc.UpdateStockManual: repo error", err, nil)
		}
		return nil, err
	}
	if p.IsOutOfStock {
		notification.Dispatch(s.notifier, notification.EventStockOut, p.ID, map[string]interface{}{
			"seller_id": p.SellerID, "product_name": p.Name,
		})
	}
	return p, nil
}

func (s *inventoryServiceImpl) GetStockInfo(ctx context.Context, productID string) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, productID)
}

func (s *inventoryServiceImpl) NotifyStockLevels(debited []domain.DebitedProduct) {
	for _, d := range debited {
		payload := map[string]interface{}{
			"seller_id":    d.SellerID,
			"product_name": d.Name,
			"remaining":    d.QuantityAvailable,
		}
		switch {
		case d.QuantityAvailable == 0:
			notification.Dispatch(s.notifier, notification.EventStockOut, d.ProductID, payload)
		case d.QuantityAvailable <= lowStockThreshold:
			notification.Dispatch(s.notifier, notification.EventStockLow, d.ProductID, payload)
		}
	}
}
