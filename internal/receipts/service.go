package receipts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-api/constants"
	"github.com/joseph-ayodele/receipts-api/internal/common"
	"github.com/joseph-ayodele/receipts-api/internal/entity"
	"github.com/joseph-ayodele/receipts-api/internal/repository"
)

const resourceName = "Receipt"

// Service handles receipt business logic.
type Service struct {
	receiptRepo repository.ReceiptRepository
	newID       func() string
	logger      *slog.Logger
}

// NewService creates a new receipt service.
func NewService(receiptRepo repository.ReceiptRepository, logger *slog.Logger) *Service {
	return &Service{
		receiptRepo: receiptRepo,
		newID:       uuid.NewString,
		logger:      logger,
	}
}

// ListParams represents receipt listing parameters.
type ListParams struct {
	Q      string
	GSTIN  string
	Status string
	Page   int
	Size   int
}

// Filter returns the store predicate for the params.
func (p ListParams) Filter() repository.ReceiptFilter {
	return repository.ReceiptFilter{
		Q:      strings.TrimSpace(p.Q),
		GSTIN:  p.GSTIN,
		Status: p.Status,
	}
}

// Page is one page of a filtered listing.
type Page struct {
	Items []*entity.Receipt
	Total int
	Page  int
	Size  int
}

// NormalizePage clamps page to >= 1 and size to [1, MaxPageSize]; a zero size
// selects the default.
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = constants.DefaultPage
	}
	switch {
	case size == 0:
		size = constants.DefaultPageSize
	case size < 1:
		size = 1
	case size > constants.MaxPageSize:
		size = constants.MaxPageSize
	}
	return page, size
}

// BatchCreate assigns fresh ids, defaults status and persists every input as
// one atomic unit. The result preserves input order.
func (s *Service) BatchCreate(ctx context.Context, inputs []entity.ReceiptCreate) ([]*entity.Receipt, error) {
	v := common.NewValidator()
	for i, in := range inputs {
		v.Field(fmt.Sprintf("[%d].vendor", i), in.Vendor, common.Required)
		if in.Date.IsZero() {
			v.Add(fmt.Sprintf("[%d].date", i), nil, "is required")
		}
	}
	if err := common.ValidateAndReturnError(v); err != nil {
		s.logger.Warn("batch create rejected", "count", len(inputs), "error", err)
		return nil, err
	}

	recs := make([]*entity.Receipt, 0, len(inputs))
	for _, in := range inputs {
		status := in.Status
		if status == "" {
			status = string(constants.ReceiptStatusProcessed)
		}
		recs = append(recs, &entity.Receipt{
			ID:       s.newID(),
			Vendor:   in.Vendor,
			Date:     in.Date,
			Amount:   in.Amount,
			GSTIN:    in.GSTIN,
			Status:   status,
			Filename: in.Filename,
			MimeType: in.MimeType,
		})
	}

	s.logger.Info("creating receipts", "count", len(recs))
	created, err := s.receiptRepo.CreateMany(ctx, recs)
	if err != nil {
		s.logger.Error("failed to create receipts", "count", len(recs), "error", err)
		return nil, common.WrapError(err, "create receipts")
	}
	s.logger.Info("receipts created successfully", "count", len(created))
	return created, nil
}

// List returns a page of receipts, newest first, with the total match count.
func (s *Service) List(ctx context.Context, params ListParams) (*Page, error) {
	page, size := NormalizePage(params.Page, params.Size)
	filter := params.Filter()

	s.logger.Debug("listing receipts", "q", filter.Q, "gstin", filter.GSTIN, "status", filter.Status, "page", page, "size", size)
	items, total, err := s.receiptRepo.List(ctx, filter, (page-1)*size, size)
	if err != nil {
		s.logger.Error("failed to list receipts", "error", err)
		return nil, common.WrapError(err, "list receipts")
	}
	return &Page{Items: items, Total: total, Page: page, Size: size}, nil
}

// Get returns a receipt by id.
func (s *Service) Get(ctx context.Context, id string) (*entity.Receipt, error) {
	rec, err := s.receiptRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, id, "get receipt")
	}
	return rec, nil
}

// Update applies the allowlisted fields of raw to the receipt. Unknown keys
// are ignored.
func (s *Service) Update(ctx context.Context, id string, raw map[string]json.RawMessage) (*entity.Receipt, error) {
	patch, ignored, err := MergePatch(raw)
	if len(ignored) > 0 {
		s.logger.Debug("ignoring non-updatable fields", "receipt_id", id, "fields", ignored)
	}
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		s.logger.Debug("patch touches no mutable field", "receipt_id", id)
	}

	rec, err := s.receiptRepo.Update(ctx, id, patch)
	if err != nil {
		return nil, s.translate(err, id, "update receipt")
	}
	s.logger.Info("receipt updated", "receipt_id", id)
	return rec, nil
}

// Delete removes a receipt permanently.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.receiptRepo.Delete(ctx, id); err != nil {
		return s.translate(err, id, "delete receipt")
	}
	s.logger.Info("receipt deleted", "receipt_id", id)
	return nil
}

func (s *Service) translate(err error, id, op string) error {
	if errors.Is(err, common.ErrNotFound) {
		return common.NotFoundError(resourceName, id)
	}
	s.logger.Error("receipt operation failed", "op", op, "receipt_id", id, "error", err)
	return common.WrapError(err, op)
}
