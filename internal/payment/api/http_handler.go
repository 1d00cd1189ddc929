package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	orderRepo "github.com/lakshya1282/genAi-project-sub000/internal/order/repository"
	"github.com/lakshya1282/genAi-project-sub000/internal/payment/domain"
	"github.com/lakshya1282/genAi-project-sub000/internal/payment/gateway"
	"github.com/lakshya1282/genAi-project-sub000/internal/payment/repository"
	"github.com/lakshya1282/genAi-project-sub000/internal/payment/service"
	"github.com/lakshya1282/genAi-project-sub000/internal/platform/logger"
)

const webhookSignatureHeader = "X-Gateway-Signature"

type PaymentHandler struct {
	paymentService service.PaymentService
	webhookSecret  string
}

func NewPaymentHandler(ps service.PaymentService, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{paymentService: ps, webhookSecret: webhookSecret}
}

func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup, auth, adminAuth gin.HandlerFunc) {
	paymentRoutes := router.Group("/payments")
	{
		paymentRoutes.POST("/:order_id/initiate", auth, h.InitiatePayment)
		// verify carries its own gateway capture signature, so no bearer token.
		paymentRoutes.POST("/verify", h.VerifyPayment)
		paymentRoutes.POST("/:order_id/retry", auth, h.RetryPayment)
		paymentRoutes.POST("/refund", adminAuth, h.Refund)
		paymentRoutes.POST("/bulk-refund", adminAuth, h.BulkRefund)
	}
	// The gateway authenticates with the webhook signature header.
	router.POST("/webhooks/payment", h.PaymentWebhook)
}

func respondError(c *gin.Context, status int, code string, err error) {
	c.JSON(status, gin.H{"success": false, "code": code, "error": err.Error()})
}

func (h *PaymentHandler) handlePaymentError(c *gin.Context, err error) {
	code := service.CodeForError(err)
	switch {
	case errors.Is(err, service.ErrSignatureMismatch):
		respondError(c, http.StatusUnauthorized, code, err)
	case errors.Is(err, repository.ErrPaymentOrderNotFound), errors.Is(err, orderRepo.ErrOrderNotFound):
		respondError(c, http.StatusNotFound, code, err)
	case errors.Is(err, service.ErrOrderNotPayable),
		errors.Is(err, service.ErrRetryWindowClosed),
		errors.Is(err, service.ErrNotRefundable),
		errors.Is(err, service.ErrPaymentRejected):
		respondError(c, http.StatusConflict, code, err)
	case errors.Is(err, service.ErrPaymentInitFailed), errors.Is(err, gateway.ErrGatewayUnavailable):
		respondError(c, http.StatusBadGateway, code, err)
	default:
		logger.Error("PaymentHandler: unhandled service error", err, nil)
		respondError(c, http.StatusInternalServerError, code, err)
	}
}

func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	gwOrder, err := h.paymentService.InitiatePayment(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		h.handlePaymentError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "gateway_order": gwOrder})
}

func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	var req domain.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	if err := h.paymentService.VerifyAndCapture(c.Request.Context(), req); err != nil {
		h.handlePaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *PaymentHandler) RetryPayment(c *gin.Context) {
	gwOrder, err := h.paymentService.RetryPayment(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		h.handlePaymentError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "gateway_order": gwOrder})
}

func (h *PaymentHandler) Refund(c *gin.Context) {
	var req domain.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	result, err := h.paymentService.RefundPayment(c.Request.Context(), req)
	if err != nil {
		h.handlePaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "refund": result})
}

func (h *PaymentHandler) BulkRefund(c *gin.Context) {
	var req domain.BulkRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	results := h.paymentService.BulkRefund(c.Request.Context(), req)
	c.JSON(http.StatusOK, gin.H{"success": true, "results": results})
}

// PaymentWebhook verifies the gateway signature over the raw body before
// parsing anything. Duplicates settle as 200 so the gateway stops resending.
func (h *PaymentHandler) PaymentWebhook(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	signature := c.GetHeader(webhookSignatureHeader)
	if !service.VerifyWebhookSignature(rawBody, signature, h.webhookSecret) {
		logger.Warn("PaymentWebhook: signature mismatch", map[string]interface{}{"remote": c.ClientIP()})
		respondError(c, http.StatusUnauthorized, "SIGNATURE_MISMATCH", service.ErrSignatureMismatch)
		return
	}

	var event domain.WebhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	if err := h.paymentService.ProcessWebhookEvent(c.Request.Context(), event); err != nil {
		h.handlePaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
