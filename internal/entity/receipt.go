package entity

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the calendar-date wire and storage format.
const DateLayout = "2006-01-02"

// Receipt represents a receipt for data transfer between layers.
type Receipt struct {
	ID        string
	Vendor    string
	Date      Date
	Amount    float64
	Currency  *string
	Category  *string
	GSTIN     *string
	TaxAmount *float64
	Status    string
	Filename  *string
	MimeType  *string
	Extracted map[string]any
	CreatedAt *time.Time
	UpdatedAt *time.Time
}

// ReceiptCreate is one element of a batch-create payload. A caller-supplied
// id is accepted on the wire but never used.
type ReceiptCreate struct {
	ID       string  `json:"id,omitempty"`
	Vendor   string  `json:"vendor"`
	Date     Date    `json:"date"`
	Amount   float64 `json:"amount"`
	GSTIN    *string `json:"gstin,omitempty"`
	Status   string  `json:"status,omitempty"`
	Filename *string `json:"filename,omitempty"`
	MimeType *string `json:"mime_type,omitempty"`
}

// Date is a calendar date without a time-of-day component. The zero value
// renders as null.
type Date struct {
	time.Time
}

// NewDate strips t to midnight UTC.
func NewDate(t time.Time) Date {
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return Date{}, err
	}
	return NewDate(t), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a YYYY-MM-DD string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("date %q is not a valid YYYY-MM-DD date", s)
	}
	*d = parsed
	return nil
}

// Value stores the date as YYYY-MM-DD text so both Postgres DATE columns and
// SQLite text columns accept it.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = NewDate(v)
		return nil
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanText(s string) error {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
