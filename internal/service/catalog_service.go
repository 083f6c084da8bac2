package service

import (
	"context"
	"fmt"
	"strings"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService manages products, supplier listings, mappings and supplier bank details
type CatalogService struct {
	repo   store.Repository
	cache  StockCache
	logger *zap.Logger
}

func NewCatalogService(repo store.Repository, cache StockCache) *CatalogService {
	if cache == nil {
		cache = noopCache{}
	}
	return &CatalogService{repo: repo, cache: cache, logger: util.GetLogger()}
}

// ProductRequest creates or replaces a product
type ProductRequest struct {
	Name           string          `json:"name" binding:"required,max=255"`
	Category       string          `json:"category" binding:"required,max=255"`
	Code           string          `json:"code" binding:"required,max=50"`
	Cost           decimal.Decimal `json:"cost"`
	RetailPrice    decimal.Decimal `json:"retail_price"`
	StockThreshold int             `json:"stock_threshold" binding:"min=0"`
}

func (r *ProductRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Code) == "" {
		return invalidInput("name and code are required")
	}
	if r.Cost.IsNegative() || r.RetailPrice.IsNegative() {
		return invalidInput("prices cannot be negative")
	}
	if r.StockThreshold < 0 {
		return invalidInput("stock threshold cannot be negative")
	}
	return nil
}

// ProductWithBatches is a product together with its batches and remaining stock
type ProductWithBatches struct {
	models.Product
	Batches        []models.Batch `json:"batches"`
	RemainingStock int            `json:"remaining_stock"`
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]ProductWithBatches, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]ProductWithBatches, 0, len(products))
	for _, p := range products {
		batches, err := s.repo.ListBatchesByProduct(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, withBatches(p, batches))
	}
	return out, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*ProductWithBatches, error) {
	p, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("product %d: %w", id, err)
	}
	batches, err := s.repo.ListBatchesByProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	out := withBatches(*p, batches)
	return &out, nil
}

func withBatches(p models.Product, batches []models.Batch) ProductWithBatches {
	total := 0
	for _, b := range batches {
		total += b.Quantity
	}
	return ProductWithBatches{Product: p, Batches: batches, RemainingStock: total}
}

func (s *CatalogService) CreateProduct(ctx context.Context, req *ProductRequest) (*models.Product, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	p := &models.Product{
		Name:           strings.TrimSpace(req.Name),
		Category:       strings.TrimSpace(req.Category),
		Code:           strings.TrimSpace(req.Code),
		Cost:           req.Cost,
		RetailPrice:    req.RetailPrice,
		StockThreshold: req.StockThreshold,
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created", zap.Int64("product_id", p.ID), zap.String("code", p.Code))
	return p, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, req *ProductRequest) (*models.Product, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	p := &models.Product{
		ID:             id,
		Name:           strings.TrimSpace(req.Name),
		Category:       strings.TrimSpace(req.Category),
		Code:           strings.TrimSpace(req.Code),
		Cost:           req.Cost,
		RetailPrice:    req.RetailPrice,
		StockThreshold: req.StockThreshold,
	}
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("product %d: %w", id, err)
	}
	return p, nil
}

// DeleteProduct removes the product with its batches, ledger rows and sales
func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("product %d: %w", id, err)
	}
	if err := s.cache.DeleteStock(ctx, id); err != nil {
		s.logger.Warn("Failed to drop stock cache entry", zap.Int64("product_id", id), zap.Error(err))
	}
	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	return nil
}

// ListSuppliers returns every supplier account
func (s *CatalogService) ListSuppliers(ctx context.Context) ([]models.User, error) {
	return s.repo.ListUsersByRole(ctx, models.RoleSupplier)
}

// SupplierProductRequest creates or replaces a supplier listing
type SupplierProductRequest struct {
	Name              string          `json:"name" binding:"required,max=255"`
	Category          string          `json:"category" binding:"required,max=255"`
	Code              string          `json:"code" binding:"required,max=50"`
	Cost              decimal.Decimal `json:"cost"`
	QuantityAvailable int             `json:"quantity_available" binding:"min=0"`
}

func (s *CatalogService) ListSupplierProducts(ctx context.Context, supplierID int64) ([]models.SupplierProduct, error) {
	return s.repo.ListSupplierProducts(ctx, supplierID)
}

func (s *CatalogService) CreateSupplierProduct(ctx context.Context, supplierID int64, req *SupplierProductRequest) (*models.SupplierProduct, error) {
	if req.Cost.IsNegative() || req.QuantityAvailable < 0 {
		return nil, invalidInput("cost and quantity cannot be negative")
	}
	sp := &models.SupplierProduct{
		SupplierID:        supplierID,
		Name:              strings.TrimSpace(req.Name),
		Category:          strings.TrimSpace(req.Category),
		Code:              strings.TrimSpace(req.Code),
		Cost:              req.Cost,
		QuantityAvailable: req.QuantityAvailable,
	}
	if err := s.repo.CreateSupplierProduct(ctx, sp); err != nil {
		return nil, fmt.Errorf("failed to create supplier product: %w", err)
	}
	return sp, nil
}

// UpdateSupplierProduct edits a listing owned by supplierID
func (s *CatalogService) UpdateSupplierProduct(ctx context.Context, supplierID, id int64, req *SupplierProductRequest) (*models.SupplierProduct, error) {
	if req.Cost.IsNegative() || req.QuantityAvailable < 0 {
		return nil, invalidInput("cost and quantity cannot be negative")
	}
	sp, err := s.ownedSupplierProduct(ctx, supplierID, id)
	if err != nil {
		return nil, err
	}
	sp.Name = strings.TrimSpace(req.Name)
	sp.Category = strings.TrimSpace(req.Category)
	sp.Cost = req.Cost
	sp.QuantityAvailable = req.QuantityAvailable
	if err := s.repo.UpdateSupplierProduct(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *CatalogService) DeleteSupplierProduct(ctx context.Context, supplierID, id int64) error {
	if _, err := s.ownedSupplierProduct(ctx, supplierID, id); err != nil {
		return err
	}
	return s.repo.DeleteSupplierProduct(ctx, id)
}

func (s *CatalogService) ownedSupplierProduct(ctx context.Context, supplierID, id int64) (*models.SupplierProduct, error) {
	sp, err := s.repo.GetSupplierProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("supplier product %d: %w", id, err)
	}
	if sp.SupplierID != supplierID {
		return nil, fmt.Errorf("%w: supplier product %d belongs to another supplier", ErrForbidden, id)
	}
	return sp, nil
}

// MappingRequest links a supplier product to a managed product
type MappingRequest struct {
	SupplierProductID int64 `json:"supplier_product_id" binding:"required"`
	ProductID         int64 `json:"product_id" binding:"required"`
}

func (s *CatalogService) ListMappings(ctx context.Context) ([]models.ProductMapping, error) {
	return s.repo.ListMappings(ctx)
}

// UpsertMapping creates the mapping or repoints the existing one for the supplier product
func (s *CatalogService) UpsertMapping(ctx context.Context, req *MappingRequest) (*models.ProductMapping, error) {
	sp, err := s.repo.GetSupplierProduct(ctx, req.SupplierProductID)
	if err != nil {
		return nil, fmt.Errorf("supplier product %d: %w", req.SupplierProductID, err)
	}
	if _, err := s.repo.GetProductByID(ctx, req.ProductID); err != nil {
		return nil, fmt.Errorf("product %d: %w", req.ProductID, err)
	}

	m := &models.ProductMapping{
		SupplierID:        sp.SupplierID,
		SupplierProductID: sp.ID,
		ProductID:         req.ProductID,
	}
	if err := s.repo.UpsertMapping(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save mapping: %w", err)
	}

	s.logger.Info("Product mapping saved",
		zap.Int64("supplier_product_id", m.SupplierProductID),
		zap.Int64("product_id", m.ProductID))
	return m, nil
}

func (s *CatalogService) DeleteMapping(ctx context.Context, id int64) error {
	if err := s.repo.DeleteMapping(ctx, id); err != nil {
		return fmt.Errorf("mapping %d: %w", id, err)
	}
	return nil
}

// BankAccountRequest sets a supplier's payout account
type BankAccountRequest struct {
	BankName      string `json:"bank_name" binding:"required,max=100"`
	AccountNumber string `json:"account_number" binding:"required,max=50"`
	AccountHolder string `json:"account_holder" binding:"required,max=100"`
}

func (s *CatalogService) ListBankAccounts(ctx context.Context, supplierID int64) ([]models.SupplierBankAccount, error) {
	return s.repo.ListBankAccountsBySupplier(ctx, supplierID)
}

func (s *CatalogService) UpsertBankAccount(ctx context.Context, supplierID int64, req *BankAccountRequest) (*models.SupplierBankAccount, error) {
	acc := &models.SupplierBankAccount{
		SupplierID:    supplierID,
		BankName:      strings.TrimSpace(req.BankName),
		AccountNumber: strings.TrimSpace(req.AccountNumber),
		AccountHolder: strings.TrimSpace(req.AccountHolder),
	}
	if err := s.repo.UpsertBankAccount(ctx, acc); err != nil {
		return nil, fmt.Errorf("failed to save bank account: %w", err)
	}
	return acc, nil
}

// DeleteBankAccount removes an account owned by supplierID
func (s *CatalogService) DeleteBankAccount(ctx context.Context, supplierID, id int64) error {
	accounts, err := s.repo.ListBankAccountsBySupplier(ctx, supplierID)
	if err != nil {
		return err
	}
	for _, acc := range accounts {
		if acc.ID == id {
			return s.repo.DeleteBankAccount(ctx, id)
		}
	}
	return fmt.Errorf("bank account %d: %w", id, store.ErrNotFound)
}
