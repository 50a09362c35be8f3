package repository

import (
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/receipts-api/internal/common"
	"github.com/joseph-ayodele/receipts-api/internal/entity"
)

// timestampLayouts covers what pgx and modernc sqlite hand back for
// timestamp columns when the driver returns text.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
}

type nullTimestamp struct {
	t *time.Time
}

func (n *nullTimestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		n.t = nil
		return nil
	case time.Time:
		u := v.UTC()
		n.t = &u
		return nil
	case string:
		return n.parse(v)
	case []byte:
		return n.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (n *nullTimestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			n.t = &u
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

func scanReceipt(rows *entsql.Rows) (*entity.Receipt, error) {
	var (
		rec                                                    entity.Receipt
		currency, category, gstin, filename, mimeType, rawJSON stdsql.NullString
		taxAmount                                              stdsql.NullFloat64
		createdAt, updatedAt                                   nullTimestamp
	)
	err := rows.Scan(
		&rec.ID,
		&rec.Vendor,
		&rec.Date,
		&rec.Amount,
		&currency,
		&category,
		&gstin,
		&taxAmount,
		&rec.Status,
		&filename,
		&mimeType,
		&rawJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan receipt: %w", err)
	}

	rec.Currency = stringPtr(currency)
	rec.Category = stringPtr(category)
	rec.GSTIN = stringPtr(gstin)
	rec.Filename = stringPtr(filename)
	rec.MimeType = stringPtr(mimeType)
	if taxAmount.Valid {
		v := taxAmount.Float64
		rec.TaxAmount = &v
	}
	if rawJSON.Valid && rawJSON.String != "" {
		if err := json.Unmarshal([]byte(rawJSON.String), &rec.Extracted); err != nil {
			return nil, fmt.Errorf("decode extracted for receipt %s: %w", rec.ID, err)
		}
	}
	rec.CreatedAt = createdAt.t
	rec.UpdatedAt = updatedAt.t
	return &rec, nil
}

func stringPtr(ns stdsql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
