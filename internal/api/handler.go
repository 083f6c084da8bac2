package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/service"
	"inventory-service/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// ReadinessCheck reports whether a backing dependency is usable
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Services are the use cases served over HTTP
type Services struct {
	Auth           *service.AuthService
	Catalog        *service.CatalogService
	Inventory      *service.InventoryService
	PurchaseOrders *service.PurchaseOrderService
	Reports        *service.ReportService
}

// Options tune the router
type Options struct {
	CORSOrigins []string
	UploadsDir  string
	Readiness   []ReadinessCheck
	Tracing     bool
}

// Handler contains HTTP handlers
type Handler struct {
	auth      *service.AuthService
	catalog   *service.CatalogService
	inventory *service.InventoryService
	orders    *service.PurchaseOrderService
	reports   *service.ReportService
	opts      Options
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, opts Options) *Handler {
	if opts.UploadsDir == "" {
		opts.UploadsDir = "./data/uploads"
	}
	return &Handler{
		auth:      svc.Auth,
		catalog:   svc.Catalog,
		inventory: svc.Inventory,
		orders:    svc.PurchaseOrders,
		reports:   svc.Reports,
		opts:      opts,
		logger:    util.GetLogger(),
	}
}

var registerValidators sync.Once

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	registerValidators.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
				return models.OrderStatus(fl.Field().String()).IsValid()
			})
		}
	})

	router.Use(gin.Recovery())
	router.Use(corsMiddleware(h.opts.CORSOrigins))
	if h.opts.Tracing {
		router.Use(otelgin.Middleware(util.ServiceName))
	}
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.Static("/uploads", h.opts.UploadsDir)

	api := router.Group("/api")
	{
		api.POST("/register", h.register)
		api.POST("/login", h.login)
		api.POST("/forgot-password", h.forgotPassword)
		api.POST("/reset-password", h.resetPassword)
	}

	authed := api.Group("")
	authed.Use(h.authRequired())

	manager := authed.Group("")
	manager.Use(requireRole(models.RoleManager))
	{
		manager.GET("/suppliers", h.listSuppliers)

		manager.GET("/products", h.listProducts)
		manager.POST("/products", h.createProduct)
		manager.GET("/products/:id", h.getProduct)
		manager.PUT("/products/:id", h.updateProduct)
		manager.DELETE("/products/:id", h.deleteProduct)
		manager.POST("/products/:id/batches", h.addBatch)
		manager.PUT("/products/:id/batches/:batch_id", h.updateBatch)
		manager.DELETE("/products/:id/batches/:batch_id", h.deleteBatch)
		manager.GET("/products/:id/stock", h.getStock)
		manager.GET("/products/:id/ledger-check", h.ledgerCheck)

		manager.GET("/sales", h.listSales)
		manager.POST("/sales", h.createSale)
		manager.GET("/inventory", h.listInventory)

		manager.GET("/product-mappings", h.listMappings)
		manager.POST("/product-mappings", h.upsertMapping)
		manager.DELETE("/product-mappings/:id", h.deleteMapping)

		manager.POST("/purchase-orders", h.createPurchaseOrder)
		manager.DELETE("/purchase-orders/:id", h.deletePurchaseOrder)
		manager.POST("/purchase-orders/:id/payment-receipt", h.uploadPaymentReceipt)

		manager.GET("/reports/inventory.xlsx", h.inventoryReport)
	}

	supplier := authed.Group("")
	supplier.Use(requireRole(models.RoleSupplier))
	{
		supplier.GET("/supplier-products", h.listOwnSupplierProducts)
		supplier.POST("/supplier-products", h.createSupplierProduct)
		supplier.PUT("/supplier-products/:id", h.updateSupplierProduct)
		supplier.DELETE("/supplier-products/:id", h.deleteSupplierProduct)

		supplier.GET("/supplier-bank-accounts", h.listOwnBankAccounts)
		supplier.POST("/supplier-bank-accounts", h.upsertBankAccount)
		supplier.DELETE("/supplier-bank-accounts/:id", h.deleteBankAccount)
	}

	authed.GET("/supplier-products/by-supplier/:supplier_id", h.listSupplierProductsBySupplier)
	authed.GET("/supplier-bank-accounts/by-supplier/:supplier_id", h.listBankAccountsBySupplier)
	authed.GET("/purchase-orders", h.listPurchaseOrders)
	authed.GET("/purchase-orders/:id", h.getPurchaseOrder)
	authed.PATCH("/purchase-orders/:id/status", h.setPurchaseOrderStatus)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", "Idempotency-Key")
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when every dependency answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failing := gin.H{}
	for _, rc := range h.opts.Readiness {
		if err := rc.Check(ctx); err != nil {
			failing[rc.Name] = err.Error()
		}
	}
	if len(failing) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"failing": failing,
			"time":    time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()
	}
}

// pathID parses a positive int64 path parameter, writing a 400 when it does not parse
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + name,
		})
		return 0, false
	}
	return id, true
}

// bindJSON binds the body, writing a 400 when it is malformed
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

// idempotencyKeyHeader reads the Idempotency-Key header, writing a 400 when it is too long
func idempotencyKeyHeader(c *gin.Context) (string, bool) {
	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(key) > service.MaxIdempotencyKeyLength {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid Idempotency-Key",
			"details": fmt.Sprintf("must be at most %d characters", service.MaxIdempotencyKeyLength),
		})
		return "", false
	}
	return key, true
}
