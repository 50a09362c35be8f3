package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/receipts-api/internal/export"
	"github.com/joseph-ayodele/receipts-api/internal/receipts"
)

type ExportHandler struct {
	svc    *export.Service
	logger *slog.Logger
}

func NewExportHandler(svc *export.Service, logger *slog.Logger) *ExportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportHandler{svc: svc, logger: logger}
}

// HandleExport streams an XLSX workbook of every receipt matching the list
// filters. Pagination parameters are ignored.
func (h *ExportHandler) HandleExport(c echo.Context) error {
	params := receipts.ListParams{
		Q:      c.QueryParam("q"),
		GSTIN:  c.QueryParam("gstin"),
		Status: c.QueryParam("status"),
	}

	xlsx, err := h.svc.ExportReceiptsXLSX(c.Request().Context(), params.Filter())
	if err != nil {
		h.logger.Error("export.xlsx.failed", "err", err)
		return err
	}

	filename := fmt.Sprintf("receipts-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, export.ContentType, xlsx)
}
