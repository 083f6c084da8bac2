package service

import (
	"context"
	"fmt"
	"io"

	"inventory-service/internal/models"
	"inventory-service/internal/store"

	"github.com/xuri/excelize/v2"
)

const (
	stockSheet  = "Stock"
	ledgerSheet = "Ledger"
)

// ReportService renders spreadsheet exports
type ReportService struct {
	repo store.Repository
}

func NewReportService(repo store.Repository) *ReportService {
	return &ReportService{repo: repo}
}

// WriteInventoryXLSX writes a workbook with a per-batch stock sheet and the full ledger
func (s *ReportService) WriteInventoryXLSX(ctx context.Context, w io.Writer) error {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return err
	}
	entries, err := s.repo.ListInventoryEntries(ctx, 0)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", stockSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(ledgerSheet); err != nil {
		return err
	}

	stockHeader := []interface{}{"Product Code", "Product", "Category", "Batch", "Remaining", "Received", "Expiry Date", "Received Date"}
	if err := f.SetSheetRow(stockSheet, "A1", &stockHeader); err != nil {
		return err
	}

	row := 2
	for _, p := range products {
		batches, err := s.repo.ListBatchesByProduct(ctx, p.ID)
		if err != nil {
			return err
		}
		for _, b := range batches {
			values := []interface{}{
				p.Code, p.Name, p.Category, b.ID, b.Quantity, b.ReceivedQuantity,
				b.ExpiryDate.Format(dateLayout), b.ReceivedDate.Format(dateLayout),
			}
			if err := f.SetSheetRow(stockSheet, fmt.Sprintf("A%d", row), &values); err != nil {
				return err
			}
			row++
		}
	}

	ledgerHeader := []interface{}{"Entry", "Product", "Change", "Type", "Batch", "Created At"}
	if err := f.SetSheetRow(ledgerSheet, "A1", &ledgerHeader); err != nil {
		return err
	}
	for i, e := range entries {
		values := []interface{}{e.ID, e.ProductName, e.ChangeAmount, e.TransactionType, batchRef(e), e.CreatedAt.Format("2006-01-02 15:04:05")}
		if err := f.SetSheetRow(ledgerSheet, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func batchRef(e models.InventoryEntry) interface{} {
	if e.BatchID == nil {
		return ""
	}
	return *e.BatchID
}
