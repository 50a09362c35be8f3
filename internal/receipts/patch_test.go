package receipts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipts-api/internal/common"
)

func TestMergePatch(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantErr     bool
		wantIgnored []string
		check       func(t *testing.T, body string)
	}{
		{name: "empty object", body: `{}`},
		{name: "unknown keys ignored", body: `{"id":"x","filename":"f","extracted":{}}`, wantIgnored: []string{"extracted", "filename", "id"}},
		{name: "null clears optional", body: `{"currency":null,"tax_amount":null}`},
		{name: "null vendor rejected", body: `{"vendor":null}`, wantErr: true},
		{name: "amount as string rejected", body: `{"amount":"12"}`, wantErr: true},
		{name: "bad date rejected", body: `{"date":"2024-13-45"}`, wantErr: true},
		{name: "category as number rejected", body: `{"category":5}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ignored, err := MergePatch(rawPatch(t, tt.body))
			if tt.wantErr {
				requireCode(t, err, common.CodeValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIgnored, ignored)
		})
	}
}

func TestMergePatchTypedValues(t *testing.T) {
	patch, ignored, err := MergePatch(rawPatch(t, `{
		"vendor": "Acme",
		"date": "2024-05-06",
		"amount": 42.1,
		"status": "verified",
		"currency": "INR",
		"category": null,
		"tax_amount": 3.5
	}`))
	require.NoError(t, err)
	assert.Empty(t, ignored)

	assert.Equal(t, "Acme", *patch.Vendor)
	assert.Equal(t, "2024-05-06", patch.Date.String())
	assert.Equal(t, 42.1, *patch.Amount)
	assert.Equal(t, "verified", *patch.Status)

	assert.True(t, patch.Currency.Set)
	assert.Equal(t, "INR", *patch.Currency.Value)
	assert.True(t, patch.Category.Set)
	assert.Nil(t, patch.Category.Value)
	assert.False(t, patch.GSTIN.Set)
	assert.Equal(t, 3.5, *patch.TaxAmount.Value)
	assert.False(t, patch.IsEmpty())
}
