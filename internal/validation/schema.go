package validation

// BuildBatchCreateSchema returns the JSON-Schema (draft 2020-12 subset) for a
// batch-create payload: an array of receipt objects. Unknown properties are
// allowed and ignored downstream.
func BuildBatchCreateSchema() map[string]any {
	props := map[string]any{
		"id":        map[string]any{"type": []string{"string", "null"}},
		"vendor":    map[string]any{"type": "string", "minLength": 1},
		"date":      map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		"amount":    map[string]any{"type": "number"},
		"gstin":     nullableString(),
		"status":    nullableString(),
		"filename":  nullableString(),
		"mime_type": nullableString(),
	}

	return map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "array",
		"items": map[string]any{
			"type":       "object",
			"properties": props,
			"required":   []string{"vendor", "date", "amount"},
		},
	}
}

func nullableString() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}
