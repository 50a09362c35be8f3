package server

import (
	"time"

	"github.com/joseph-ayodele/receipts-api/internal/entity"
	"github.com/joseph-ayodele/receipts-api/internal/receipts"
)

// ReceiptResponse is the projected form of a receipt. Optional fields are
// always present and null when unset.
type ReceiptResponse struct {
	ID        string         `json:"id"`
	Vendor    string         `json:"vendor"`
	Date      entity.Date    `json:"date"`
	Amount    float64        `json:"amount"`
	Currency  *string        `json:"currency"`
	Category  *string        `json:"category"`
	GSTIN     *string        `json:"gstin"`
	TaxAmount *float64       `json:"tax_amount"`
	Status    string         `json:"status"`
	Filename  *string        `json:"filename"`
	MimeType  *string        `json:"mime_type"`
	Extracted map[string]any `json:"extracted"`
	CreatedAt *string        `json:"created_at"`
	UpdatedAt *string        `json:"updated_at"`
}

// ListResponse is one page of receipts.
type ListResponse struct {
	Items []ReceiptResponse `json:"items"`
	Total int               `json:"total"`
	Page  int               `json:"page"`
	Size  int               `json:"size"`
}

func toReceiptResponse(r *entity.Receipt) ReceiptResponse {
	extracted := r.Extracted
	if extracted == nil {
		extracted = map[string]any{}
	}
	return ReceiptResponse{
		ID:        r.ID,
		Vendor:    r.Vendor,
		Date:      r.Date,
		Amount:    r.Amount,
		Currency:  r.Currency,
		Category:  r.Category,
		GSTIN:     r.GSTIN,
		TaxAmount: r.TaxAmount,
		Status:    r.Status,
		Filename:  r.Filename,
		MimeType:  r.MimeType,
		Extracted: extracted,
		CreatedAt: isoTime(r.CreatedAt),
		UpdatedAt: isoTime(r.UpdatedAt),
	}
}

func toReceiptResponses(recs []*entity.Receipt) []ReceiptResponse {
	out := make([]ReceiptResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, toReceiptResponse(r))
	}
	return out
}

func toListResponse(p *receipts.Page) ListResponse {
	return ListResponse{
		Items: toReceiptResponses(p.Items),
		Total: p.Total,
		Page:  p.Page,
		Size:  p.Size,
	}
}

func isoTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}
