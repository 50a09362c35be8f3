package constants

// ReceiptStatus is the free-text lifecycle marker stored on a receipt.
type ReceiptStatus string

// Stable values (store these exact strings in DB).
const (
	ReceiptStatusProcessed ReceiptStatus = "processed" // default for batch-created receipts
	ReceiptStatusVerified  ReceiptStatus = "verified"  // user confirmed the extracted fields
)
