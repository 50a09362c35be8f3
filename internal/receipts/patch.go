package receipts

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/joseph-ayodele/receipts-api/internal/common"
	"github.com/joseph-ayodele/receipts-api/internal/entity"
)

var jsonNull = []byte("null")

// MergePatch builds a typed patch from the allowlisted keys of raw. Keys
// outside entity.MutableFields are returned in ignored and otherwise have no
// effect. A value of the wrong type for an allowlisted key is a validation
// error.
func MergePatch(raw map[string]json.RawMessage) (patch entity.ReceiptPatch, ignored []string, err error) {
	allowed := make(map[string]struct{}, len(entity.MutableFields))
	for _, f := range entity.MutableFields {
		allowed[f] = struct{}{}
	}
	for k := range raw {
		if _, ok := allowed[k]; !ok {
			ignored = append(ignored, k)
		}
	}
	sort.Strings(ignored)

	v := common.NewValidator()
	for _, field := range entity.MutableFields {
		value, ok := raw[field]
		if !ok {
			continue
		}
		switch field {
		case "vendor":
			patch.Vendor = decodeRequired[string](v, field, value)
		case "date":
			patch.Date = decodeRequired[entity.Date](v, field, value)
		case "amount":
			patch.Amount = decodeRequired[float64](v, field, value)
		case "status":
			patch.Status = decodeRequired[string](v, field, value)
		case "currency":
			patch.Currency = decodeNullable[string](v, field, value)
		case "category":
			patch.Category = decodeNullable[string](v, field, value)
		case "gstin":
			patch.GSTIN = decodeNullable[string](v, field, value)
		case "tax_amount":
			patch.TaxAmount = decodeNullable[float64](v, field, value)
		}
	}
	if err := common.ValidateAndReturnError(v); err != nil {
		return entity.ReceiptPatch{}, ignored, err
	}
	return patch, ignored, nil
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), jsonNull)
}

func decodeRequired[T any](v *common.Validator, field string, value json.RawMessage) *T {
	if isNull(value) {
		v.Add(field, nil, "must not be null")
		return nil
	}
	out := new(T)
	if err := json.Unmarshal(value, out); err != nil {
		v.Add(field, string(value), "has an invalid type or format")
		return nil
	}
	return out
}

func decodeNullable[T any](v *common.Validator, field string, value json.RawMessage) entity.Nullable[T] {
	if isNull(value) {
		return entity.Nullable[T]{Set: true}
	}
	out := new(T)
	if err := json.Unmarshal(value, out); err != nil {
		v.Add(field, string(value), "has an invalid type or format")
		return entity.Nullable[T]{}
	}
	return entity.Nullable[T]{Set: true, Value: out}
}
