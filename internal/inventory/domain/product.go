package domain

import (
	"time"
)

// Product carries only the fields the fulfillment core owns. Catalog CRUD
// (description, images, categories) lives in the storefront service.
type Product struct {
	ID                string    `json:"id"`
	SellerID          string    `json:"seller_id"`
	Name              string    `json:"name"`
	Price             int64     `json:"price"` // paise
	QuantityAvailable int       `json:"quantity_available"`
	QuantitySold      int       `json:"quantity_sold"`
	IsActive          bool      `json:"is_active"`
	IsOutOfStock      bool      `json:"is_out_of_stock"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// StockItem is the normalized {product, quantity} pair every stock operation
// works on. Handlers normalize whatever the client sent into this before it
// reaches the service layer.
type StockItem struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gte=1"`
}

// DebitedProduct is the post-debit snapshot read in the same statement as the
// debit itself. Order pricing uses these values, never client-submitted ones.
type DebitedProduct struct {
	ProductID         string
	SellerID          string
	Name              string
	UnitPrice         int64
	QuantityAvailable int // remaining after the debit
}

// Machine-readable availability reasons, stable for the frontend.
const (
	ReasonNotFound     = "PRODUCT_NOT_FOUND"
	ReasonInactive     = "PRODUCT_INACTIVE"
	ReasonOutOfStock   = "OUT_OF_STOCK"
	ReasonInsufficient = "INSUFFICIENT_STOCK"
)

type AvailabilityResult struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

type CheckAvailabilityRequest struct {
	Items []StockItem `json:"items" binding:"required,dive"`
}

type UpdateStockRequest struct {
	Quantity int `json:"quantity" binding:"gte=0"`
}
