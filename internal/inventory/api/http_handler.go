package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lakshya1282/genAi-project-sub000/internal/inventory/domain"
	"github.com/lakshya1282/genAi-project-sub000/internal/inventory/repository"
	"github.com/lakshya1282/genAi-project-sub000/internal/inventory/service"
	"github.com/lakshya1282/genAi-project-sub000/internal/platform/logger"
)

type InventoryHandler struct {
	inventoryService service.InventoryService
}

func NewInventoryHandler(is service.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventoryService: is}
}

func (h *InventoryHandler) RegisterRoutes(router *gin.RouterGroup, sellerAuth gin.HandlerFunc) {
	stockRoutes := router.Group("/stocks")
	{
		stockRoutes.POST("/check", h.CheckAvailability)
		stockRoutes.GET("/products/:product_id", h.GetStockInfo)
	}
	// Manual restock is a seller action.
	router.PUT("/products/:product_id/stock", sellerAuth, h.UpdateStock)
}

func (h *InventoryHandler) CheckAvailability(c *gin.Context) {
	var req domain.CheckAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "code": "INVALID_REQUEST", "error": "Invalid request: " + err.Error()})
		return
	}
	results, err := h.inventoryService.CheckAvailability(c.Request.Context(), req.Items)
	if err != nil {
		logger.Error("Hdl.CheckAvailability: service error", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "code": "INTERNAL", "error": "Failed to check availability"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "results": results})
}

func (h *InventoryHandler) GetStockInfo(c *gin.Context) {
	productID := c.Param("product_id")
	p, err := h.inventoryService.GetStockInfo(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "code": domain.ReasonNotFound, "error": err.Error()})
			return
		}
		logger.Error("Hdl.GetStockInfo: service error", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "code": "INTERNAL", "error": "Failed to get stock info"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "product": p})
}

func (h *InventoryHandler) UpdateStock(c *gin.Context) {
	productID := c.Param("product_id")
	var req domain.UpdateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "code": "INVALID_REQUEST", "error": "Invalid request: " + err.Error()})
		return
	}
	p, err := h.inventoryService.UpdateStockManual(c.Request.Context(), productID, req.Quantity)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "code": domain.ReasonNotFound, "error": err.Error()})
			return
		}
		logger.Error("Hdl.UpdateStock: service error", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "code": "INTERNAL", "error": "Failed to update stock"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "product": p})
}
