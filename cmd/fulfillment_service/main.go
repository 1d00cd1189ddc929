package main

import (
	"github.com/gin-gonic/gin"

	invAPI "github.com/lakshya1282/genAi-project-sub000/internal/inventory/api"
	invRepo "github.com/lakshya1282/genAi-project-sub000/internal/inventory/repository"
	invService "github.com/lakshya1282/genAi-project-sub000/internal/inventory/service"
	"github.com/lakshya1282/genAi-project-sub000/internal/notification"
	orderAPI "github.com/lakshya1282/genAi-project-sub000/internal/order/api"
	orderRepo "github.com/lakshya1282/genAi-project-sub000/internal/order/repository"
	orderService "github.com/lakshya1282/genAi-project-sub000/internal/order/service"
	payAPI "github.com/lakshya1282/genAi-project-sub000/internal/payment/api"
	"github.com/lakshya1282/genAi-project-sub000/internal/payment/gateway"
	payRepo "github.com/lakshya1282/genAi-project-sub000/internal/payment/repository"
	payService "github.com/lakshya1282/genAi-project-sub000/internal/payment/service"
	"github.com/lakshya1282/genAi-project-sub000/internal/platform/config"
	"github.com/lakshya1282/genAi-project-sub000/internal/platform/database"
	"github.com/lakshya1282/genAi-project-sub000/internal/platform/logger"
	"github.com/lakshya1282/genAi-project-sub000/internal/platform/middleware"
)

func main() {
	cfg := config.LoadFulfillmentConfig()

	db, err := database.Connect(cfg.DB.DSN)
	if err != nil {
		logger.Error("Failed to connect to database", err, nil)
		return
	}
	defer db.Close()

	notifier := notification.NewHTTPNotifier(cfg.NotifierURL)
	gatewayClient := gateway.NewHTTPClient(cfg.Payment.Gateway.BaseURL, cfg.Payment.Gateway.KeyID, cfg.Payment.Gateway.KeySecret)

	productRepo := invRepo.NewPostgresProductRepository(db)
	ordersRepo := orderRepo.NewPostgresOrderRepository(db)
	paymentsRepo := payRepo.NewPostgresPaymentRepository(db)

	inventorySvc := invService.NewInventoryService(productRepo, notifier)
	orderSvc := orderService.NewOrderService(ordersRepo, inventorySvc, notifier, orderService.Pricing{
		FreeShipAbove: cfg.FreeShipAbove,
		ShippingFlat:  cfg.ShippingFlat,
	})
	paymentSvc := payService.NewPaymentService(paymentsRepo, ordersRepo, inventorySvc, gatewayClient, notifier, cfg.Payment)

	if err := paymentSvc.StartSweep(cfg.Payment.SweepSpec); err != nil {
		logger.Error("Failed to start payment sweep", err, nil)
		return
	}
	defer paymentSvc.StopSweep()

	router := gin.Default()

	auth := middleware.RequireAuth(cfg.JWTSecret)
	sellerAuth := middleware.RequireAuthRole(cfg.JWTSecret, "seller")
	adminAuth := middleware.RequireAuthRole(cfg.JWTSecret, "admin")

	v1 := router.Group("/api/v1")
	invAPI.NewInventoryHandler(inventorySvc).RegisterRoutes(v1, sellerAuth)
	orderAPI.NewOrderHandler(orderSvc).RegisterRoutes(v1, auth, sellerAuth)
	payAPI.NewPaymentHandler(paymentSvc, cfg.Payment.Gateway.WebhookSecret).RegisterRoutes(v1, auth, adminAuth)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})

	logger.Info("Fulfillment service starting on " + cfg.Server.Port)
	if err := router.Run(cfg.Server.Port); err != nil {
		logger.Error("Failed to run server", err, nil)
	}
}
