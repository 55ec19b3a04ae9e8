package duerecord

import (
	"context"
	"time"

	"stockflow-backend/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound     = errors.New("due record not found")
	ErrDuplicateKey = errors.New("another due record already has the same identity")
)

// mutableColumns are rewritten when an upsert hits an existing key. id,
// dedupe_key and created_at are the only columns left alone.
var mutableColumns = []string{
	"delivery_type", "myob_number", "customer", "model", "part_number", "part_name",
	"revision_level", "revision_number", "event", "customer_po", "due_date", "quantity",
	"is_delivered", "delivered_at",
	"supplier", "country_of_origin", "sample_request_sheet", "invoice_number",
	"supplier_invoice_number", "withdrawal_number", "remark",
	"updated_at",
}

func upsertClause() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedupe_key"}},
		DoUpdates: clause.AssignmentColumns(mutableColumns),
	}
}

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Upsert inserts the record or, when its dedupe key already exists, overwrites
// every mutable column in the same statement. The existing created_at is kept
// and updated_at is set to now. The record must already be prepared.
func (s *Store) Upsert(ctx context.Context, r *models.DueRecord) error {
	s.stamp(r)
	err := s.db.WithContext(ctx).Clauses(upsertClause()).Create(r).Error
	return errors.Wrap(err, "upsert due record")
}

// UpsertBatch writes the records as one multi-row statement. Records sharing a
// key inside the batch collapse to the last one, since a single INSERT cannot
// touch the same conflict target twice. It returns the number of rows written.
func (s *Store) UpsertBatch(ctx context.Context, records []models.DueRecord) (int, error) {
	batch := collapseByKey(records)
	if len(batch) == 0 {
		return 0, nil
	}
	for i := range batch {
		s.stamp(&batch[i])
	}
	if err := s.db.WithContext(ctx).Clauses(upsertClause()).Create(&batch).Error; err != nil {
		return 0, errors.Wrap(err, "upsert due record batch")
	}
	return len(batch), nil
}

func (s *Store) stamp(r *models.DueRecord) {
	now := s.now()
	r.ID = 0
	r.UpdatedAt = now
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
}

func collapseByKey(records []models.DueRecord) []models.DueRecord {
	last := make(map[string]int, len(records))
	for i, r := range records {
		last[r.DedupeKey] = i
	}
	out := make([]models.DueRecord, 0, len(last))
	for i, r := range records {
		if last[r.DedupeKey] == i {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) Get(ctx context.Context, id uint) (*models.DueRecord, error) {
	var r models.DueRecord
	err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get due record")
	}
	return &r, nil
}

func (s *Store) GetByKey(ctx context.Context, key string) (*models.DueRecord, error) {
	var r models.DueRecord
	err := s.db.WithContext(ctx).First(&r, "dedupe_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get due record by key")
	}
	return &r, nil
}

type Filter struct {
	DeliveryType string
	Customer     string
	Delivered    *bool
	DueFrom      string
	DueTo        string
	Search       string
	Limit        int
	Offset       int
}

func (s *Store) List(ctx context.Context, f Filter) ([]models.DueRecord, error) {
	q := s.db.WithContext(ctx).Model(&models.DueRecord{})

	if f.DeliveryType != "" {
		q = q.Where("delivery_type = ?", f.DeliveryType)
	}
	if f.Customer != "" {
		q = q.Where("LOWER(customer) = LOWER(?)", f.Customer)
	}
	if f.Delivered != nil {
		q = q.Where("is_delivered = ?", *f.Delivered)
	}
	// due_date is text; the range only behaves for YYYY-MM-DD values
	if f.DueFrom != "" {
		q = q.Where("due_date >= ?", f.DueFrom)
	}
	if f.DueTo != "" {
		q = q.Where("due_date <= ?", f.DueTo)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("LOWER(part_number) LIKE LOWER(?) OR LOWER(part_name) LIKE LOWER(?) OR LOWER(customer_po) LIKE LOWER(?)", like, like, like)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var out []models.DueRecord
	if err := q.Order("due_date asc, id asc").Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "list due records")
	}
	return out, nil
}

// Save writes an edited record back by id. The key is recomputed by the caller;
// a clash with another row returns ErrDuplicateKey.
func (s *Store) Save(ctx context.Context, r *models.DueRecord) error {
	r.UpdatedAt = s.now()
	err := s.db.WithContext(ctx).Save(r).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	return errors.Wrap(err, "save due record")
}

func (s *Store) SetDelivered(ctx context.Context, id uint, delivered bool, at *time.Time) (*models.DueRecord, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.IsDelivered = delivered
	r.DeliveredAt = nil
	if delivered {
		t := s.now()
		if at != nil {
			t = *at
		}
		r.DeliveredAt = &t
	}
	if err := s.Save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.DueRecord{}, "id = ?", id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete due record")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type SummaryRow struct {
	DeliveryType string `json:"deliveryType"`
	Total        int64  `json:"total"`
	Delivered    int64  `json:"delivered"`
	Pending      int64  `json:"pending"`
	Overdue      int64  `json:"overdue"`
}

// Summary counts records per delivery type. Overdue means not delivered with a
// due date before today.
func (s *Store) Summary(ctx context.Context) ([]SummaryRow, error) {
	today := s.now().Format("2006-01-02")

	var rows []SummaryRow
	err := s.db.WithContext(ctx).Model(&models.DueRecord{}).
		Select(`delivery_type,
			COUNT(*) AS total,
			SUM(CASE WHEN is_delivered = ? THEN 1 ELSE 0 END) AS delivered,
			SUM(CASE WHEN is_delivered = ? AND due_date < ? THEN 1 ELSE 0 END) AS overdue`,
			true, false, today).
		Group("delivery_type").
		Order("delivery_type asc").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "summarize due records")
	}
	for i := range rows {
		rows[i].Pending = rows[i].Total - rows[i].Delivered
	}
	return rows, nil
}
