package entity

// MutableFields lists the receipt fields a partial update may change, in the
// order they are applied.
var MutableFields = []string{
	"vendor",
	"date",
	"amount",
	"currency",
	"category",
	"gstin",
	"tax_amount",
	"status",
}

// Nullable is a patch value for a column that may be cleared. Set reports
// whether the key was present; a nil Value with Set clears the column.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

// ReceiptPatch is the typed form of a partial update. Nil pointers on the
// required fields mean "leave unchanged".
type ReceiptPatch struct {
	Vendor    *string
	Date      *Date
	Amount    *float64
	Status    *string
	Currency  Nullable[string]
	Category  Nullable[string]
	GSTIN     Nullable[string]
	TaxAmount Nullable[float64]
}

// IsEmpty reports whether the patch touches no field.
func (p ReceiptPatch) IsEmpty() bool {
	return p.Vendor == nil && p.Date == nil && p.Amount == nil && p.Status == nil &&
		!p.Currency.Set && !p.Category.Set && !p.GSTIN.Set && !p.TaxAmount.Set
}
