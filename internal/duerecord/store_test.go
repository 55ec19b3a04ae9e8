package duerecord

import (
	"context"
	"strings"
	"testing"
	"time"

	"stockflow-backend/internal/database"
	"stockflow-backend/internal/models"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type StoreSuite struct {
	suite.Suite

	db    *gorm.DB
	store *Store
	clock time.Time
	ctx   context.Context
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	db, err := database.OpenMemory("store_" + s.T().Name())
	s.Require().NoError(err)
	s.Require().NoError(db.Exec("DELETE FROM due_records").Error)

	s.db = db
	s.clock = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	s.store = NewStore(db)
	s.store.now = func() time.Time { return s.clock }
	s.ctx = context.Background()
}

func (s *StoreSuite) prepared(mutate func(r *models.DueRecord)) models.DueRecord {
	r := validRecord()
	if mutate != nil {
		mutate(&r)
	}
	s.Require().NoError(Prepare(&r))
	return r
}

func (s *StoreSuite) count() int64 {
	var n int64
	s.Require().NoError(s.db.Model(&models.DueRecord{}).Count(&n).Error)
	return n
}

func (s *StoreSuite) TestUpsert_SecondWriteOverwritesAndKeepsCreatedAt() {
	first := s.prepared(func(r *models.DueRecord) { r.Remark = "first" })
	s.Require().NoError(s.store.Upsert(s.ctx, &first))
	created := s.clock

	s.clock = s.clock.Add(2 * time.Hour)
	delivered := s.clock.Add(-time.Hour)
	second := s.prepared(func(r *models.DueRecord) {
		r.Customer = "  ACME MOTORS "
		r.Remark = "second"
		r.IsDelivered = true
		r.DeliveredAt = &delivered
	})
	s.Require().Equal(first.DedupeKey, second.DedupeKey)
	s.Require().NoError(s.store.Upsert(s.ctx, &second))

	s.Require().Equal(int64(1), s.count())

	got, err := s.store.GetByKey(s.ctx, first.DedupeKey)
	s.Require().NoError(err)
	s.Require().Equal("second", got.Remark)
	s.Require().Equal("ACME MOTORS", got.Customer)
	s.Require().True(got.IsDelivered)
	s.Require().NotNil(got.DeliveredAt)
	s.Require().WithinDuration(created, got.CreatedAt, time.Second)
	s.Require().WithinDuration(s.clock, got.UpdatedAt, time.Second)
}

func (s *StoreSuite) TestUpsert_DifferentQuantityIsANewRow() {
	a := s.prepared(nil)
	b := s.prepared(func(r *models.DueRecord) { r.Quantity = 999 })

	s.Require().NoError(s.store.Upsert(s.ctx, &a))
	s.Require().NoError(s.store.Upsert(s.ctx, &b))
	s.Require().Equal(int64(2), s.count())
}

func (s *StoreSuite) TestUpsert_ExplicitCreatedAtOnInsert() {
	r := s.prepared(nil)
	r.CreatedAt = time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	s.Require().NoError(s.store.Upsert(s.ctx, &r))

	got, err := s.store.GetByKey(s.ctx, r.DedupeKey)
	s.Require().NoError(err)
	s.Require().WithinDuration(r.CreatedAt, got.CreatedAt, time.Second)
}

func (s *StoreSuite) TestUpsertBatch_CollapsesDuplicateKeys() {
	a := s.prepared(func(r *models.DueRecord) { r.Remark = "old" })
	b := s.prepared(func(r *models.DueRecord) { r.PartNumber = "PN-002" })
	a2 := s.prepared(func(r *models.DueRecord) { r.Remark = "new" })

	n, err := s.store.UpsertBatch(s.ctx, []models.DueRecord{a, b, a2})
	s.Require().NoError(err)
	s.Require().Equal(2, n)
	s.Require().Equal(int64(2), s.count())

	got, err := s.store.GetByKey(s.ctx, a.DedupeKey)
	s.Require().NoError(err)
	s.Require().Equal("new", got.Remark)

	n, err = s.store.UpsertBatch(s.ctx, nil)
	s.Require().NoError(err)
	s.Require().Zero(n)
}

func (s *StoreSuite) TestGet_NotFound() {
	_, err := s.store.Get(s.ctx, 4242)
	s.Require().ErrorIs(err, ErrNotFound)

	_, err = s.store.GetByKey(s.ctx, "nope")
	s.Require().ErrorIs(err, ErrNotFound)

	s.Require().ErrorIs(s.store.Delete(s.ctx, 4242), ErrNotFound)
}

func (s *StoreSuite) TestSave_IdentityClashIsDuplicateKey() {
	a := s.prepared(nil)
	b := s.prepared(func(r *models.DueRecord) { r.CustomerPo = "PO-OTHER" })
	s.Require().NoError(s.store.Upsert(s.ctx, &a))
	s.Require().NoError(s.store.Upsert(s.ctx, &b))

	edited, err := s.store.GetByKey(s.ctx, b.DedupeKey)
	s.Require().NoError(err)
	edited.CustomerPo = a.CustomerPo
	s.Require().NoError(Prepare(edited))

	s.Require().ErrorIs(s.store.Save(s.ctx, edited), ErrDuplicateKey)
}

func (s *StoreSuite) TestSetDelivered() {
	r := s.prepared(nil)
	s.Require().NoError(s.store.Upsert(s.ctx, &r))

	got, err := s.store.SetDelivered(s.ctx, r.ID, true, nil)
	s.Require().NoError(err)
	s.Require().True(got.IsDelivered)
	s.Require().NotNil(got.DeliveredAt)
	s.Require().WithinDuration(s.clock, *got.DeliveredAt, time.Second)

	got, err = s.store.SetDelivered(s.ctx, r.ID, false, nil)
	s.Require().NoError(err)
	s.Require().False(got.IsDelivered)
	s.Require().Nil(got.DeliveredAt)
}

func (s *StoreSuite) TestListFilters() {
	a := s.prepared(func(r *models.DueRecord) { r.DueDate = "2024-05-01" })
	b := s.prepared(func(r *models.DueRecord) {
		r.DeliveryType = "domestic"
		r.PartName = "Rear Cover"
		r.DueDate = "2024-07-01"
		r.IsDelivered = true
	})
	c := s.prepared(func(r *models.DueRecord) {
		r.Customer = "Other Co"
		r.DueDate = "2024-06-15"
	})
	for _, r := range []*models.DueRecord{&a, &b, &c} {
		s.Require().NoError(s.store.Upsert(s.ctx, r))
	}

	all, err := s.store.List(s.ctx, Filter{})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Require().Equal("2024-05-01", all[0].DueDate)
	s.Require().Equal("2024-07-01", all[2].DueDate)

	intl, err := s.store.List(s.ctx, Filter{DeliveryType: "international"})
	s.Require().NoError(err)
	s.Require().Len(intl, 2)

	notDelivered := false
	pending, err := s.store.List(s.ctx, Filter{Delivered: &notDelivered})
	s.Require().NoError(err)
	s.Require().Len(pending, 2)

	byCustomer, err := s.store.List(s.ctx, Filter{Customer: "other co"})
	s.Require().NoError(err)
	s.Require().Len(byCustomer, 1)

	ranged, err := s.store.List(s.ctx, Filter{DueFrom: "2024-06-01", DueTo: "2024-06-30"})
	s.Require().NoError(err)
	s.Require().Len(ranged, 1)

	search, err := s.store.List(s.ctx, Filter{Search: "rear"})
	s.Require().NoError(err)
	s.Require().Len(search, 1)
	s.Require().Equal("domestic", search[0].DeliveryType)
}

func (s *StoreSuite) TestSummary() {
	overdue := s.prepared(func(r *models.DueRecord) { r.DueDate = "2024-01-10" })
	done := s.prepared(func(r *models.DueRecord) {
		r.DueDate = "2024-01-11"
		r.IsDelivered = true
	})
	future := s.prepared(func(r *models.DueRecord) {
		r.DeliveryType = "domestic"
		r.DueDate = "2024-12-31"
	})
	for _, r := range []*models.DueRecord{&overdue, &done, &future} {
		s.Require().NoError(s.store.Upsert(s.ctx, r))
	}

	rows, err := s.store.Summary(s.ctx)
	s.Require().NoError(err)
	s.Require().Equal([]SummaryRow{
		{DeliveryType: "domestic", Total: 1, Delivered: 0, Pending: 1, Overdue: 0},
		{DeliveryType: "international", Total: 2, Delivered: 1, Pending: 1, Overdue: 1},
	}, rows)
}

func (s *StoreSuite) TestUpsert_KeyLongerThanAnySingleColumn() {
	stmt := &gorm.Statement{DB: s.db}
	s.Require().NoError(stmt.Parse(&models.DueRecord{}))
	key := stmt.Schema.LookUpField("DedupeKey")
	s.Require().NotNil(key)
	s.Require().EqualValues("text", key.DataType)
	s.Require().Zero(key.Size)

	full := func(r *models.DueRecord) {
		r.MyobNumber = strings.Repeat("m", 100)
		r.Customer = strings.Repeat("c", 200)
		r.Model = strings.Repeat("o", 200)
		r.PartNumber = strings.Repeat("p", 100)
		r.PartName = strings.Repeat("n", 255)
		r.RevisionLevel = strings.Repeat("l", 50)
		r.RevisionNumber = strings.Repeat("r", 50)
		r.Event = strings.Repeat("e", 100)
		r.CustomerPo = strings.Repeat("o", 100)
	}
	first := s.prepared(full)
	s.Require().Greater(len(first.DedupeKey), 1024)
	s.Require().NoError(s.store.Upsert(s.ctx, &first))

	second := s.prepared(full)
	s.Require().NoError(s.store.Upsert(s.ctx, &second))
	s.Require().EqualValues(1, s.count())

	got, err := s.store.GetByKey(s.ctx, first.DedupeKey)
	s.Require().NoError(err)
	s.Require().Equal(first.PartName, got.PartName)
}
