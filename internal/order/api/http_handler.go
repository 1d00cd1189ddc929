package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	invRepo "github.com/lakshya1282/genAi-project-sub000/internal/inventory/repository"
	"github.com/lakshya1282/genAi-project-sub000/internal/order/domain"
	"github.com/lakshya1282/genAi-project-sub000/internal/order/repository"
	"github.com/lakshya1282/genAi-project-sub000/internal/order/service"
	"github.com/lakshya1282/genAi-project-sub000/internal/platform/logger"
)

type OrderHandler struct {
	orderService service.OrderService
}

func NewOrderHandler(os service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: os}
}

func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup, auth, sellerAuth gin.HandlerFunc) {
	orderRoutes := router.Group("/orders")
	{
		orderRoutes.POST("", auth, h.PlaceOrder)
		orderRoutes.GET("/:id", auth, h.GetOrder)
		orderRoutes.POST("/:id/cancel", auth, h.CancelOrder)
		orderRoutes.POST("/:id/complete", auth, h.CompleteOrder)
		orderRoutes.POST("/:id/reviews", auth, h.AddReview)
		orderRoutes.PUT("/:id/status", sellerAuth, h.UpdateOrderStatus)
		orderRoutes.POST("/bulk-status", sellerAuth, h.BulkUpdateOrderStatus)
	}
	router.POST("/checkout", auth, h.CheckoutFromCart)
	router.GET("/users/:user_id/orders", auth, h.ListOrdersByUser)
	router.GET("/sellers/:seller_id/orders", sellerAuth, h.ListOrdersBySeller)
}

// respondError keeps the machine-readable code separate from the free-text
// message so the frontend can branch on it.
func respondError(c *gin.Context, status int, code string, err error) {
	c.JSON(status, gin.H{"success": false, "code": code, "error": err.Error()})
}

func (h *OrderHandler) handleOrderError(c *gin.Context, err error) {
	code := service.CodeForError(err)
	switch {
	case errors.Is(err, invRepo.ErrInsufficientStock),
		errors.Is(err, invRepo.ErrOutOfStock):
		// Capacity errors are a conflict, never a server fault.
		respondError(c, http.StatusConflict, code, err)
	case errors.Is(err, invRepo.ErrProductNotFound), errors.Is(err, repository.ErrOrderNotFound):
		respondError(c, http.StatusNotFound, code, err)
	case errors.Is(err, invRepo.ErrProductInactive),
		errors.Is(err, service.ErrAlreadyCancelled),
		errors.Is(err, service.ErrCancelForbidden),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrNotAwaitingPayment),
		errors.Is(err, service.ErrReviewNotAllowed),
		errors.Is(err, service.ErrAlreadyReviewed),
		errors.Is(err, service.ErrProductNotInOrder):
		respondError(c, http.StatusConflict, code, err)
	case errors.Is(err, service.ErrEmptyOrder):
		respondError(c, http.StatusBadRequest, code, err)
	default:
		logger.Error("OrderHandler: unhandled service error", err, nil)
		respondError(c, http.StatusInternalServerError, code, err)
	}
}

func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req domain.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	order, err := h.orderService.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		h.handleOrderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "order": order})
}

func (h *OrderHandler) CheckoutFromCart(c *gin.Context) {
	var req domain.CheckoutFromCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	order, err := h.orderService.CheckoutFromCart(c.Request.Context(), req)
	if err != nil {
		h.handleOrderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "order": order})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

func (h *OrderHandler) ListOrdersByUser(c *gin.Context) {
	orders, err := h.orderService.ListOrdersByUser(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		h.handleOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders})
}

func (h *OrderHandler) ListOrdersBySeller(c *gin.Context) {
	orders, err := h.orderService.ListOrdersBySeller(c.Request.Context(), c.Param("seller_id"))
	if err != nil {
		h.handleOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders})
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	var body struct {
		Note string `json:"note"`
	}
	_ = c.ShouldBindJSON(&body) // note is optional
	order, err := h.orderService.CancelOrder(c.Request.Context(), c.Param("id"), body.Note)
	if err != nil {
		h.handleOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

func (h *OrderHandler) CompleteOrder(c *gin.Context) {
	if err := h.orderService.CompleteOrder(c.Request.Context(), c.Param("id")); err != nil {
		h.handleOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	var req domain.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	order, err := h.orderService.UpdateOrderStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.handleOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

func (h *OrderHandler) BulkUpdateOrderStatus(c *gin.Context) {
	var req domain.BulkStatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	results := h.orderService.BulkUpdateOrderStatus(c.Request.Context(), req.Updates)
	c.JSON(http.StatusOK, gin.H{"success": true, "results": results})
}

func (h *OrderHandler) AddReview(c *gin.Context) {
	var req domain.AddReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	review, err := h.orderService.AddReview(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.handleOrderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "review": review})
}
