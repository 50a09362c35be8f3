package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipts-api/internal/entity"
	"github.com/joseph-ayodele/receipts-api/internal/repository"
)

const sheetName = "Receipts"

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headers = []string{
	"Date",
	"Vendor",
	"Category",
	"Amount",
	"Currency",
	"Tax Amount",
	"GSTIN",
	"Status",
	"Filename",
	"Created At",
}

// Service produces XLSX bytes for receipt exports.
type Service struct {
	receiptsRepo repository.ReceiptRepository
	logger       *slog.Logger
}

func NewService(repo repository.ReceiptRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{receiptsRepo: repo, logger: logger}
}

// ExportReceiptsXLSX returns a workbook with every receipt matching filter,
// newest first.
func (s *Service) ExportReceiptsXLSX(ctx context.Context, filter repository.ReceiptFilter) ([]byte, error) {
	start := time.Now()

	recs, err := s.receiptsRepo.ListAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("failed to close workbook", "error", err)
		}
	}()

	// Replace the default sheet so the workbook has exactly one.
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for i, r := range recs {
		if err := writeRow(f, i+2, r); err != nil {
			return nil, fmt.Errorf("write receipt %s: %w", r.ID, err)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 12) // date
	_ = f.SetColWidth(sheetName, "B", "C", 28) // vendor, category
	_ = f.SetColWidth(sheetName, "D", "F", 12) // amounts
	_ = f.SetColWidth(sheetName, "G", "H", 18) // gstin, status
	_ = f.SetColWidth(sheetName, "I", "I", 36) // filename
	_ = f.SetColWidth(sheetName, "J", "J", 22) // created

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(recs),
		"q", filter.Q,
		"gstin", filter.GSTIN,
		"status", filter.Status,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, row int, r *entity.Receipt) error {
	values := []any{
		r.Date.String(),
		r.Vendor,
		deref(r.Category),
		r.Amount,
		deref(r.Currency),
		derefFloat(r.TaxAmount),
		deref(r.GSTIN),
		r.Status,
		deref(r.Filename),
		"",
	}
	if r.CreatedAt != nil {
		values[9] = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	cell, _ := excelize.CoordinatesToCellName(1, row)
	return f.SetSheetRow(sheetName, cell, &values)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func derefFloat(p *float64) any {
	if p == nil {
		return ""
	}
	return *p
}
