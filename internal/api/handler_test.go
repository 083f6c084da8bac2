package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/service"
	"inventory-service/internal/store/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router  *gin.Engine
	repo    *memory.Store
	manager string
	uploads string
}

func newTestServer(t *testing.T, readiness ...ReadinessCheck) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := memory.New()
	auth := service.NewAuthService(repo, nil, "test-secret", time.Hour, time.Minute)
	inventory := service.NewInventoryService(repo, nil, nil, nil, service.InventoryOptions{})
	svc := Services{
		Auth:           auth,
		Catalog:        service.NewCatalogService(repo, nil),
		Inventory:      inventory,
		PurchaseOrders: service.NewPurchaseOrderService(repo, inventory, nil, nil, 0),
		Reports:        service.NewReportService(repo),
	}
	uploads := t.TempDir()

	router := gin.New()
	NewHandler(svc, Options{UploadsDir: uploads, Readiness: readiness}).SetupRoutes(router)

	require.NoError(t, auth.SeedManager(context.Background(), "boss@example.com", "manager-pass", "Boss"))
	ts := &testServer{router: router, repo: repo, uploads: uploads}
	ts.manager = ts.login(t, "boss@example.com", "manager-pass")
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return ts.doWithKey(t, method, path, token, "", body)
}

// doWithKey sends the request with an Idempotency-Key header when key is set
func (ts *testServer) doWithKey(t *testing.T, method, path, token, key string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/login", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tok service.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	return tok.AccessToken
}

// registerSupplier returns the new supplier's id and token
func (ts *testServer) registerSupplier(t *testing.T, email string) (int64, string) {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/register", "", gin.H{
		"email": email, "password": "supplier-pass", "full_name": "Acme Foods",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var user struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	return user.ID, ts.login(t, email, "supplier-pass")
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (ts *testServer) createProduct(t *testing.T, code string) int64 {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/products", ts.manager, gin.H{
		"name": "Milk", "category": "Dairy", "code": code,
		"cost": "1.10", "retail_price": "2.00", "stock_threshold": 3,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p struct {
		ID int64 `json:"id"`
	}
	decode(t, w, &p)
	return p.ID
}

func TestHealthAndReadiness(t *testing.T) {
	ts := newTestServer(t, ReadinessCheck{Name: "redis", Check: func(context.Context) error {
		return errors.New("connection refused")
	}})

	w := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	ok := newTestServer(t)
	w = ok.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthAndRoles(t *testing.T) {
	ts := newTestServer(t)
	_, supplierToken := ts.registerSupplier(t, "acme@example.com")

	w := ts.do(t, http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodGet, "/api/products", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodGet, "/api/products", supplierToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodGet, "/api/supplier-products", ts.manager, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodPost, "/api/login", "", gin.H{"email": "acme@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPost, "/api/register", "", gin.H{
		"email": "acme@example.com", "password": "supplier-pass", "full_name": "Dup",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPost, "/api/forgot-password", "", gin.H{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSaleFlow(t *testing.T) {
	ts := newTestServer(t)
	productID := ts.createProduct(t, "MLK-1")

	for _, b := range []gin.H{
		{"quantity": 10, "expiry_date": "2025-02-01"},
		{"quantity": 5, "expiry_date": "2025-01-01"},
	} {
		w := ts.do(t, http.MethodPost, fmt.Sprintf("/api/products/%d/batches", productID), ts.manager, b)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := ts.do(t, http.MethodPost, "/api/sales", ts.manager, gin.H{"product_id": productID, "quantity": 7})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sale service.SaleResult
	decode(t, w, &sale)
	require.Len(t, sale.Deductions, 2)
	assert.Equal(t, 5, sale.Deductions[0].Quantity)
	assert.Equal(t, 2, sale.Deductions[1].Quantity)
	assert.Equal(t, 8, sale.RemainingStock)

	w = ts.do(t, http.MethodPost, "/api/sales", ts.manager, gin.H{"product_id": productID, "quantity": 9})
	assert.Equal(t, http.StatusConflict, w.Code)
	var shortage struct {
		Available int `json:"available"`
	}
	decode(t, w, &shortage)
	assert.Equal(t, 8, shortage.Available)

	w = ts.do(t, http.MethodPost, "/api/sales", ts.manager, gin.H{"product_id": productID, "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/products/%d/stock", productID), ts.manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var level service.StockLevel
	decode(t, w, &level)
	assert.Equal(t, 8, level.Remaining)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/products/%d/ledger-check", productID), ts.manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report service.LedgerReport
	decode(t, w, &report)
	assert.True(t, report.Consistent)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/inventory?product_id=%d", productID), ts.manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []map[string]interface{}
	decode(t, w, &entries)
	assert.Len(t, entries, 4)

	w = ts.do(t, http.MethodGet, "/api/products/999", ts.manager, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodGet, "/api/products/abc", ts.manager, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIdempotencyKeyLength(t *testing.T) {
	ts := newTestServer(t)
	productID := ts.createProduct(t, "MLK-1")
	w := ts.do(t, http.MethodPost, fmt.Sprintf("/api/products/%d/batches", productID), ts.manager,
		gin.H{"quantity": 10, "expiry_date": "2025-02-01"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	long := strings.Repeat("k", service.MaxIdempotencyKeyLength+1)
	sale := gin.H{"product_id": productID, "quantity": 2}

	w = ts.doWithKey(t, http.MethodPost, "/api/sales", ts.manager, long, sale)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Idempotency-Key")

	w = ts.doWithKey(t, http.MethodPost, "/api/sales", ts.manager, strings.Repeat("k", service.MaxIdempotencyKeyLength), sale)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res service.SaleResult
	decode(t, w, &res)
	assert.Equal(t, 8, res.RemainingStock)

	supplierID, _ := ts.registerSupplier(t, "acme@example.com")
	order := gin.H{
		"supplier_id": supplierID,
		"items":       []gin.H{{"supplier_product_id": 1, "quantity": 1}},
	}
	w = ts.doWithKey(t, http.MethodPost, "/api/purchase-orders", ts.manager, long, order)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	order["idempotency_key"] = long
	w = ts.do(t, http.MethodPost, "/api/purchase-orders", ts.manager, order)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/purchase-orders", ts.manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var orders []map[string]interface{}
	decode(t, w, &orders)
	assert.Empty(t, orders)
}

func TestPurchaseOrderFlow(t *testing.T) {
	ts := newTestServer(t)
	supplierID, supplierToken := ts.registerSupplier(t, "acme@example.com")
	_, rivalToken := ts.registerSupplier(t, "rival@example.com")
	productID := ts.createProduct(t, "MLK-1")

	w := ts.do(t, http.MethodPost, "/api/supplier-products", supplierToken, gin.H{
		"name": "Milk crate", "category": "Dairy", "code": "SP-1", "cost": "2.50", "quantity_available": 15,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sp struct {
		ID int64 `json:"id"`
	}
	decode(t, w, &sp)

	w = ts.do(t, http.MethodPost, "/api/product-mappings", ts.manager, gin.H{
		"supplier_product_id": sp.ID, "product_id": productID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/purchase-orders", ts.manager, gin.H{
		"supplier_id": supplierID,
		"items":       []gin.H{{"supplier_product_id": sp.ID, "quantity": 8}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var po service.PurchaseOrderDetail
	decode(t, w, &po)
	assert.Equal(t, "20", po.TotalCost.String())
	orderPath := fmt.Sprintf("/api/purchase-orders/%d", po.ID)

	w = ts.do(t, http.MethodGet, orderPath, rivalToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = ts.do(t, http.MethodGet, "/api/purchase-orders", rivalToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = ts.do(t, http.MethodPatch, orderPath+"/status", supplierToken, gin.H{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPatch, orderPath+"/status", supplierToken, gin.H{"status": "processing"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPatch, orderPath+"/status", supplierToken, gin.H{"status": "paid"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = ts.do(t, http.MethodPatch, orderPath+"/status", supplierToken, gin.H{"status": "delivered"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPatch, orderPath+"/status", supplierToken, gin.H{
		"status": "delivered", "expiry_date": "2025-06-01", "message": "On the dock",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var delivered service.TransitionResult
	decode(t, w, &delivered)
	require.Len(t, delivered.Batches, 1)
	assert.Equal(t, 8, delivered.Batches[0].Quantity)

	w = ts.do(t, http.MethodPatch, orderPath+"/status", supplierToken, gin.H{"status": "paid"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = ts.do(t, http.MethodPatch, orderPath+"/status", ts.manager, gin.H{"status": "paid"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = ts.do(t, http.MethodGet, orderPath, supplierToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stillDelivered service.PurchaseOrderDetail
	decode(t, w, &stillDelivered)
	assert.Equal(t, models.OrderStatusDelivered, stillDelivered.Status)
	assert.Nil(t, stillDelivered.PaymentReceiptURL)

	w = ts.do(t, http.MethodDelete, orderPath, ts.manager, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "receipt.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, orderPath+"/payment-receipt", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+ts.manager)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var paid struct {
		Order service.PurchaseOrderDetail `json:"order"`
	}
	decode(t, rec, &paid)
	require.NotNil(t, paid.Order.PaymentReceiptURL)
	assert.True(t, strings.HasPrefix(*paid.Order.PaymentReceiptURL, "/uploads/"))
	_, err = os.Stat(filepath.Join(ts.uploads, strings.TrimPrefix(*paid.Order.PaymentReceiptURL, "/uploads/")))
	assert.NoError(t, err)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/products/%d", productID), ts.manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var product service.ProductWithBatches
	decode(t, w, &product)
	assert.Equal(t, 8, product.RemainingStock)
}

func TestProcessingBeyondSupplierStock(t *testing.T) {
	ts := newTestServer(t)
	supplierID, supplierToken := ts.registerSupplier(t, "acme@example.com")

	w := ts.do(t, http.MethodPost, "/api/supplier-products", supplierToken, gin.H{
		"name": "Milk crate", "category": "Dairy", "code": "SP-1", "cost": "2.50", "quantity_available": 15,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sp struct {
		ID int64 `json:"id"`
	}
	decode(t, w, &sp)

	w = ts.do(t, http.MethodPost, "/api/purchase-orders", ts.manager, gin.H{
		"supplier_id": supplierID,
		"items":       []gin.H{{"supplier_product_id": sp.ID, "quantity": 20}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var po service.PurchaseOrderDetail
	decode(t, w, &po)

	w = ts.do(t, http.MethodPatch, fmt.Sprintf("/api/purchase-orders/%d/status", po.ID), ts.manager, gin.H{"status": "processing"})
	require.Equal(t, http.StatusConflict, w.Code)
	var shortage struct {
		ItemID    int64 `json:"item_id"`
		Available int   `json:"available"`
	}
	decode(t, w, &shortage)
	assert.Equal(t, po.Items[0].ID, shortage.ItemID)
	assert.Equal(t, 15, shortage.Available)
}

func TestBankAccounts(t *testing.T) {
	ts := newTestServer(t)
	supplierID, supplierToken := ts.registerSupplier(t, "acme@example.com")
	_, rivalToken := ts.registerSupplier(t, "rival@example.com")

	w := ts.do(t, http.MethodPost, "/api/supplier-bank-accounts", supplierToken, gin.H{
		"bank_name": "BCA", "account_number": "123", "account_holder": "Acme",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	path := fmt.Sprintf("/api/supplier-bank-accounts/by-supplier/%d", supplierID)
	w = ts.do(t, http.MethodGet, path, ts.manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var accounts []map[string]interface{}
	decode(t, w, &accounts)
	assert.Len(t, accounts, 1)

	w = ts.do(t, http.MethodGet, path, rivalToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestInventoryReport(t *testing.T) {
	ts := newTestServer(t)
	ts.createProduct(t, "MLK-1")

	w := ts.do(t, http.MethodGet, "/api/reports/inventory.xlsx", ts.manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "inventory.xlsx")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}
