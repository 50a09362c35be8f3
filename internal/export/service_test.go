package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipts-api/internal/entity"
	"github.com/joseph-ayodele/receipts-api/internal/repository"
)

type stubRepo struct {
	repository.ReceiptRepository
	recs   []*entity.Receipt
	err    error
	filter repository.ReceiptFilter
}

func (s *stubRepo) ListAll(_ context.Context, filter repository.ReceiptFilter) ([]*entity.Receipt, error) {
	s.filter = filter
	return s.recs, s.err
}

func TestExportReceiptsXLSX(t *testing.T) {
	category := "Meals"
	tax := 1.25
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := &stubRepo{recs: []*entity.Receipt{{
		ID:        "r-1",
		Vendor:    "Acme",
		Date:      entity.NewDate(created),
		Amount:    12.5,
		Category:  &category,
		TaxAmount: &tax,
		Status:    "processed",
		CreatedAt: &created,
	}}}
	svc := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	data, err := svc.ExportReceiptsXLSX(context.Background(), repository.ReceiptFilter{Q: "acme"})
	require.NoError(t, err)
	assert.Equal(t, "acme", repo.filter.Q)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Receipts"}, f.GetSheetList())
	rows, err := f.GetRows("Receipts")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, headers, rows[0])
	assert.Equal(t, "2024-03-01", rows[1][0])
	assert.Equal(t, "Acme", rows[1][1])
	assert.Equal(t, "Meals", rows[1][2])
	assert.Equal(t, "12.5", rows[1][3])
	assert.Equal(t, "2024-03-01T10:00:00Z", rows[1][9])
}

func TestExportPropagatesStoreErrors(t *testing.T) {
	storeErr := errors.New("boom")
	svc := NewService(&stubRepo{err: storeErr}, nil)
	_, err := svc.ExportReceiptsXLSX(context.Background(), repository.ReceiptFilter{})
	assert.ErrorIs(t, err, storeErr)
}
