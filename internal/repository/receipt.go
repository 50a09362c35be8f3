package repository

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/receipts-api/internal/common"
	"github.com/joseph-ayodele/receipts-api/internal/entity"
)

var receiptColumns = []string{
	"id",
	"vendor",
	"date",
	"amount",
	"currency",
	"category",
	"gstin",
	"tax_amount",
	"status",
	"filename",
	"mime_type",
	"extracted",
	"created_at",
	"updated_at",
}

// Clock supplies the timestamps written by the repository.
type Clock func() time.Time

// ReceiptFilter narrows list queries. Empty fields are ignored.
type ReceiptFilter struct {
	// Q matches vendor or category, case-insensitively, as a substring.
	Q      string
	GSTIN  string
	Status string
}

type ReceiptRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Receipt, error)
	CreateMany(ctx context.Context, recs []*entity.Receipt) ([]*entity.Receipt, error)
	Update(ctx context.Context, id string, patch entity.ReceiptPatch) (*entity.Receipt, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, filter ReceiptFilter) (int, error)
	ListPage(ctx context.Context, filter ReceiptFilter, offset, limit int) ([]*entity.Receipt, error)
	// List returns one page plus the total number of matches.
	List(ctx context.Context, filter ReceiptFilter, offset, limit int) ([]*entity.Receipt, int, error)
	ListAll(ctx context.Context, filter ReceiptFilter) ([]*entity.Receipt, error)
}

type Option func(*receiptRepository)

// WithClock overrides time.Now.
func WithClock(clock Clock) Option {
	return func(r *receiptRepository) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithConsistentList runs the count and page reads of List in one
// transaction.
func WithConsistentList(enabled bool) Option {
	return func(r *receiptRepository) {
		r.consistentList = enabled
	}
}

type receiptRepository struct {
	store          *Store
	clock          Clock
	consistentList bool
	logger         *slog.Logger
}

func NewReceiptRepository(store *Store, logger *slog.Logger, opts ...Option) ReceiptRepository {
	r := &receiptRepository{
		store:  store,
		clock:  time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *receiptRepository) now() time.Time {
	return r.clock().UTC()
}

func (r *receiptRepository) GetByID(ctx context.Context, id string) (*entity.Receipt, error) {
	rec, err := r.getByID(ctx, r.store.drv, id)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *receiptRepository) CreateMany(ctx context.Context, recs []*entity.Receipt) ([]*entity.Receipt, error) {
	out := make([]*entity.Receipt, 0, len(recs))
	if len(recs) == 0 {
		return out, nil
	}

	err := r.store.withTx(ctx, func(tx dialect.Tx) error {
		for _, rec := range recs {
			now := r.now()
			extracted, err := encodeExtracted(rec.Extracted)
			if err != nil {
				return fmt.Errorf("encode extracted for receipt %s: %w", rec.ID, err)
			}
			query, args := r.store.builder().
				Insert(receiptsTable).
				Columns(receiptColumns...).
				Values(
					rec.ID,
					rec.Vendor,
					dateArg(rec.Date),
					rec.Amount,
					nullable(rec.Currency),
					nullable(rec.Category),
					nullable(rec.GSTIN),
					nullable(rec.TaxAmount),
					rec.Status,
					nullable(rec.Filename),
					nullable(rec.MimeType),
					extracted,
					now,
					now,
				).
				Query()
			if err := tx.Exec(ctx, query, args, nil); err != nil {
				return fmt.Errorf("insert receipt %s: %w", rec.ID, err)
			}
		}
		// Read back inside the transaction so callers see stored values.
		for _, rec := range recs {
			stored, err := r.getByID(ctx, tx, rec.ID)
			if err != nil {
				return err
			}
			out = append(out, stored)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to create receipts", "count", len(recs), "error", err)
		return nil, err
	}
	return out, nil
}

func (r *receiptRepository) Update(ctx context.Context, id string, patch entity.ReceiptPatch) (*entity.Receipt, error) {
	var updated *entity.Receipt
	err := r.store.withTx(ctx, func(tx dialect.Tx) error {
		if _, err := r.getByID(ctx, tx, id); err != nil {
			return err
		}

		upd := r.store.builder().Update(receiptsTable).Set("updated_at", r.now())
		if patch.Vendor != nil {
			upd.Set("vendor", *patch.Vendor)
		}
		if patch.Date != nil {
			upd.Set("date", dateArg(*patch.Date))
		}
		if patch.Amount != nil {
			upd.Set("amount", *patch.Amount)
		}
		if patch.Status != nil {
			upd.Set("status", *patch.Status)
		}
		setNullable(upd, "currency", patch.Currency)
		setNullable(upd, "category", patch.Category)
		setNullable(upd, "gstin", patch.GSTIN)
		setNullable(upd, "tax_amount", patch.TaxAmount)

		query, args := upd.Where(entsql.EQ("id", id)).Query()
		if err := tx.Exec(ctx, query, args, nil); err != nil {
			return fmt.Errorf("update receipt %s: %w", id, err)
		}

		rec, err := r.getByID(ctx, tx, id)
		if err != nil {
			return err
		}
		updated = rec
		return nil
	})
	if err != nil {
		if !isNotFound(err) {
			r.logger.Error("failed to update receipt", "receipt_id", id, "error", err)
		}
		return nil, err
	}
	return updated, nil
}

func (r *receiptRepository) Delete(ctx context.Context, id string) error {
	return r.store.withTx(ctx, func(tx dialect.Tx) error {
		query, args := r.store.builder().
			Delete(receiptsTable).
			Where(entsql.EQ("id", id)).
			Query()
		var res stdsql.Result
		if err := tx.Exec(ctx, query, args, &res); err != nil {
			r.logger.Error("failed to delete receipt", "receipt_id", id, "error", err)
			return fmt.Errorf("delete receipt %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete receipt %s: %w", id, err)
		}
		if n == 0 {
			return notFound(id)
		}
		return nil
	})
}

func (r *receiptRepository) Count(ctx context.Context, filter ReceiptFilter) (int, error) {
	return r.count(ctx, r.store.drv, filter)
}

func (r *receiptRepository) ListPage(ctx context.Context, filter ReceiptFilter, offset, limit int) ([]*entity.Receipt, error) {
	return r.selectPage(ctx, r.store.drv, filter, offset, limit)
}

func (r *receiptRepository) List(ctx context.Context, filter ReceiptFilter, offset, limit int) ([]*entity.Receipt, int, error) {
	if !r.consistentList {
		// Count and page are separate reads; under concurrent writes total and
		// items may come from slightly different moments.
		total, err := r.Count(ctx, filter)
		if err != nil {
			return nil, 0, err
		}
		items, err := r.ListPage(ctx, filter, offset, limit)
		if err != nil {
			return nil, 0, err
		}
		return items, total, nil
	}

	var (
		items []*entity.Receipt
		total int
	)
	err := r.store.withTx(ctx, func(tx dialect.Tx) error {
		var err error
		if total, err = r.count(ctx, tx, filter); err != nil {
			return err
		}
		items, err = r.selectPage(ctx, tx, filter, offset, limit)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *receiptRepository) ListAll(ctx context.Context, filter ReceiptFilter) ([]*entity.Receipt, error) {
	return r.selectPage(ctx, r.store.drv, filter, 0, 0)
}

func (r *receiptRepository) getByID(ctx context.Context, q dialect.ExecQuerier, id string) (*entity.Receipt, error) {
	b := r.store.builder()
	query, args := b.Select(receiptColumns...).
		From(b.Table(receiptsTable)).
		Where(entsql.EQ("id", id)).
		Query()

	recs, err := r.query(ctx, q, query, args)
	if err != nil {
		r.logger.Error("failed to get receipt", "receipt_id", id, "error", err)
		return nil, err
	}
	if len(recs) == 0 {
		return nil, notFound(id)
	}
	return recs[0], nil
}

func (r *receiptRepository) count(ctx context.Context, q dialect.ExecQuerier, filter ReceiptFilter) (int, error) {
	b := r.store.builder()
	sel := b.Select(entsql.Count("*")).From(b.Table(receiptsTable))
	if p := filterPredicate(filter); p != nil {
		sel.Where(p)
	}
	query, args := sel.Query()

	rows := &entsql.Rows{}
	if err := q.Query(ctx, query, args, rows); err != nil {
		r.logger.Error("failed to count receipts", "error", err)
		return 0, fmt.Errorf("count receipts: %w", err)
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("scan receipt count: %w", err)
		}
	}
	return n, rows.Err()
}

// selectPage returns matching receipts newest first. A non-positive limit
// returns every match.
func (r *receiptRepository) selectPage(ctx context.Context, q dialect.ExecQuerier, filter ReceiptFilter, offset, limit int) ([]*entity.Receipt, error) {
	b := r.store.builder()
	sel := b.Select(receiptColumns...).
		From(b.Table(receiptsTable)).
		OrderBy(entsql.Desc("created_at"))
	if p := filterPredicate(filter); p != nil {
		sel.Where(p)
	}
	if limit > 0 {
		sel.Limit(limit).Offset(offset)
	}
	query, args := sel.Query()

	recs, err := r.query(ctx, q, query, args)
	if err != nil {
		r.logger.Error("failed to list receipts", "offset", offset, "limit", limit, "error", err)
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return recs, nil
}

func (r *receiptRepository) query(ctx context.Context, q dialect.ExecQuerier, query string, args []any) ([]*entity.Receipt, error) {
	rows := &entsql.Rows{}
	if err := q.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := make([]*entity.Receipt, 0)
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// filterPredicate ANDs the non-empty filters; nil means "match all".
func filterPredicate(f ReceiptFilter) *entsql.Predicate {
	var preds []*entsql.Predicate
	if f.GSTIN != "" {
		preds = append(preds, entsql.EQ("gstin", f.GSTIN))
	}
	if f.Status != "" {
		preds = append(preds, entsql.EQ("status", f.Status))
	}
	if f.Q != "" {
		preds = append(preds, entsql.Or(
			entsql.ContainsFold("vendor", f.Q),
			entsql.ContainsFold("category", f.Q),
		))
	}
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	default:
		return entsql.And(preds...)
	}
}

func notFound(id string) error {
	return fmt.Errorf("receipt %s: %w", id, common.ErrNotFound)
}

func setNullable[T any](upd *entsql.UpdateBuilder, column string, v entity.Nullable[T]) {
	if !v.Set {
		return
	}
	if v.Value == nil {
		upd.SetNull(column)
		return
	}
	upd.Set(column, *v.Value)
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func dateArg(d entity.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func encodeExtracted(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
