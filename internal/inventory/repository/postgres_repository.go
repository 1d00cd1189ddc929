package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/lakshya1282/genAi-project-sub000/internal/inventory/domain"
	"github.com/lakshya1282/genAi-project-sub000/internal/platform/logger"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrProductInactive   = errors.New("product is not active")
	ErrOutOfStock        = errors.New("product is out of stock")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// DBTX can be *sql.DB or *sql.Tx; stock mutations on the order path always
// run inside the order transaction passed down from the order service.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
	Commit() error
	Rollback() error
}

type ProductRepository interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	GetProducts(ctx context.Context, productIDs []string) (map[string]*domain.Product, error)

	// DebitStock performs the conditional atomic decrement. It never reads
	// first: the guard lives in the UPDATE's WHERE clause, so two concurrent
	// debits for the last unit cannot both succeed.
	DebitStock(ctx context.Context, dbops DBTX, productID string, quantity int) (*domain.DebitedProduct, error)

	// CreditStock is the inverse, used on cancellation/abandonment. quantity_sold
	// is clamped at zero.
	CreditStock(ctx context.Context, dbops DBTX, productID string, quantity int) error

	// SetStockAbsolute is the seller's manual override. Last-writer-wins by
	// design choice of the manual path; it is not part of any order transaction.
	SetStockAbsolute(ctx context.Context, productID string, quantity int) (*domain.Product, error)

	BeginTx(ctx context.Context) (DBTX, error)
}

type postgresProductRepository struct {
	db *sql.DB
}

func NewPostgresProductRepository(db *sql.DB) ProductRepository {
	return &postgresProductRepository{db: db}
}

func (r *postgresProductRepository) BeginTx(ctx context.Context) (DBTX, error) {
	return r.db.BeginTx(ctx, nil)
}

const productColumns = `id, seller_id, name, price, quantity_available, quantity_sold, is_active, is_out_of_stock, created_at, updated_at`

func scanProduct(row *sql.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.SellerID, &p.Name, &p.Price, &p.QuantityAvailable, &p.QuantitySold,
		&p.IsActive, &p.IsOutOfStock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *postgresProductRepository) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, productID))
	if err != nil && !errors.Is(err, ErrProductNotFound) {
		logger.Error("GetProduct: query failed", err, nil)
	}
	return p, err
}

func (r *postgresProductRepository) GetProducts(ctx context.Context, productIDs []string) (map[string]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(productIDs))
	if err != nil {
		logger.Error("GetProducts: query failed", err, nil)
		return nil, err
	}
	defer rows.Close()

	products := make(map[string]*domain.Product, len(productIDs))
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SellerID, &p.Name, &p.Price, &p.QuantityAvailable, &p.QuantitySold,
			&p.IsActive, &p.IsOutOfStock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			logger.Error("GetProducts: scan failed", err, nil)
			return nil, err
		}
		products[p.ID] = &p
	}
	return products, rows.Err()
}

func (r *postgresProductRepository) DebitStock(ctx context.Context, dbops DBTX, productID string, quantity int) (*domain.DebitedProduct, error) {
	query := `UPDATE products
              SET quantity_available = quantity_available - $1,
                  quantity_sold = quantity_sold + $1,
                  is_out_of_stock = (quantity_available - $1) = 0,
                  updated_at = NOW()
              WHERE id = $2 AND is_active = TRUE AND quantity_available >= $1
              RETURNING id, seller_id, name, price, quantity_available`

	var d domain.DebitedProduct
	err := dbops.QueryRowContext(ctx, query, quantity, productID).Scan(
		&d.ProductID, &d.SellerID, &d.Name, &d.UnitPrice, &d.QuantityAvailable,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Guard failed: figure out which precondition was violated so the
			// caller can return a specific reason.
			return nil, r.classifyDebitFailure(ctx, dbops, productID, quantity)
		}
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23514" { // check_violation
			return nil, ErrInsufficientStock
		}
		logger.Error("DebitStock: exec failed", err, nil)
		return nil, err
	}
	return &d, nil
}

func (r *postgresProductRepository) classifyDebitFailure(ctx context.Context, dbops DBTX, productID string, quantity int) error {
	query := `SELECT is_active, quantity_available FROM products WHERE id = $1`
	var isActive bool
	var available int
	err := dbops.QueryRowContext(ctx, query, productID).Scan(&isActive, &available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProductNotFound
		}
		logger.Error("classifyDebitFailure: query failed", err, nil)
		return err
	}
	switch {
	case !isActive:
		return ErrProductInactive
	case available == 0:
		return ErrOutOfStock
	default:
		return ErrInsufficientStock
	}
}

func (r *postgresProductRepository) CreditStock(ctx context.Context, dbops DBTX, productID string, quantity int) error {
	query := `UPDATE products
              SET quantity_available = quantity_available + $1,
                  quantity_sold = GREATEST(quantity_sold - $1, 0),
                  is_out_of_stock = FALSE,
                  updated_at = NOW()
              WHERE id = $2`
	res, err := dbops.ExecContext(ctx, query, quantity, productID)
	if err != nil {
		logger.Error("CreditStock: exec failed", err, nil)
		return err
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *postgresProductRepository) SetStockAbsolute(ctx context.Context, productID string, quantity int) (*domain.Product, error) {
	if quantity < 0 {
		quantity = 0
	}
	query := `UPDATE products
              SET quantity_available = $1,
                  is_out_of_stock = ($1 = 0),
                  updated_at = $2
              WHERE id = $3
              RETURNING ` + productColumns
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, quantity, time.Now(), productID))
	if err != nil && !errors.Is(err, ErrProductNotFound) {
		logger.Error("SetStockAbsolute: exec failed", err, nil)
	}
	return p, err
}
