package duerecord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"stockflow-backend/internal/config"
	"stockflow-backend/internal/models"
)

// RowError describes one record that could not be written. Sheet and Row are
// set for spreadsheet imports, Index (0-based position in the request) for JSON
// batches.
type RowError struct {
	Sheet   string `json:"sheet,omitempty"`
	Row     int    `json:"row,omitempty"`
	Index   *int   `json:"index,omitempty"`
	Message string `json:"message"`
}

// errorLog keeps a bounded sample of row errors and the full count.
type errorLog struct {
	max   int
	count int
	items []RowError
}

func (l *errorLog) add(e RowError) {
	l.count++
	if len(l.items) < l.max {
		l.items = append(l.items, e)
	}
}

type SyncResult struct {
	Upserted    int        `json:"upserted"`
	Skipped     int        `json:"skipped"`
	ErrorsCount int        `json:"errorsCount"`
	Errors      []RowError `json:"errors"`
}

type ImportResult struct {
	TotalRows   int        `json:"totalRows"`
	ParsedRows  int        `json:"parsedRows"`
	Upserted    int        `json:"upserted"`
	Skipped     int        `json:"skipped"`
	ErrorsCount int        `json:"errorsCount"`
	Errors      []RowError `json:"errors"`
	Sheets      []string   `json:"sheets"` // sheets that were imported
}

type BulkResult struct {
	Received    int        `json:"received"`
	Accepted    int        `json:"accepted"`
	Skipped     int        `json:"skipped"`
	Upserted    int        `json:"upserted"`
	ErrorsCount int        `json:"errorsCount"`
	Errors      []RowError `json:"errors"`
}

type Service struct {
	store  *Store
	parser *Parser
	cfg    config.ImportConfig
}

func NewService(store *Store, cfg config.ImportConfig) *Service {
	def := config.DefaultImportConfig()
	if cfg.MaxRowErrors <= 0 {
		cfg.MaxRowErrors = def.MaxRowErrors
	}
	if cfg.BulkChunkSize <= 0 {
		cfg.BulkChunkSize = def.BulkChunkSize
	}
	return &Service{
		store: store,
		parser: NewParser(ParserOptions{
			HeaderScanRows: cfg.HeaderScanRows,
			HeaderMinScore: cfg.HeaderMinScore,
		}),
		cfg: cfg,
	}
}

func (s *Service) Store() *Store { return s.store }

// Create upserts a single record and returns the stored row along with the row
// it replaced, if any. An explicit createdAt is honored for new rows only, the
// upsert never touches created_at of an existing row.
func (s *Service) Create(ctx context.Context, in RecordInput) (stored, previous *models.DueRecord, err error) {
	rec := in.Record()
	if t, ok := ParseTimestamp(string(in.CreatedAt)); ok {
		rec.CreatedAt = t
	}
	if err := Prepare(&rec); err != nil {
		return nil, nil, err
	}

	previous, err = s.store.GetByKey(ctx, rec.DedupeKey)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, nil, err
	}

	if err := s.store.Upsert(ctx, &rec); err != nil {
		return nil, previous, err
	}
	stored, err = s.store.GetByKey(ctx, rec.DedupeKey)
	if err != nil {
		return nil, previous, err
	}
	return stored, previous, nil
}

// Sync upserts records one by one. Invalid records are skipped, write failures
// are collected and never stop the batch.
func (s *Service) Sync(ctx context.Context, inputs []RecordInput) SyncResult {
	errs := errorLog{max: s.cfg.MaxRowErrors, items: []RowError{}}
	var res SyncResult

	for i, in := range inputs {
		rec := in.Record()
		if err := Prepare(&rec); err != nil {
			res.Skipped++
			continue
		}
		if err := s.store.Upsert(ctx, &rec); err != nil {
			idx := i
			errs.add(RowError{Index: &idx, Message: err.Error()})
			continue
		}
		res.Upserted++
	}

	res.ErrorsCount = errs.count
	res.Errors = errs.items
	return res
}

// Bulk validates everything first and then writes the accepted records in
// chunks of BulkChunkSize. Each chunk is its own statement: a failed chunk is
// reported and earlier chunks stay committed.
func (s *Service) Bulk(ctx context.Context, inputs []RecordInput) BulkResult {
	errs := errorLog{max: s.cfg.MaxRowErrors, items: []RowError{}}
	res := BulkResult{Received: len(inputs)}

	accepted := make([]models.DueRecord, 0, len(inputs))
	positions := make([]int, 0, len(inputs))
	for i, in := range inputs {
		rec := in.Record()
		if err := Prepare(&rec); err != nil {
			res.Skipped++
			continue
		}
		accepted = append(accepted, rec)
		positions = append(positions, i)
	}
	res.Accepted = len(accepted)

	size := s.cfg.BulkChunkSize
	for start := 0; start < len(accepted); start += size {
		end := min(start+size, len(accepted))
		n, err := s.store.UpsertBatch(ctx, accepted[start:end])
		if err != nil {
			first := positions[start]
			errs.add(RowError{
				Index:   &first,
				Message: fmt.Sprintf("records %d-%d: %v", positions[start], positions[end-1], err),
			})
			continue
		}
		res.Upserted += n
	}

	res.ErrorsCount = errs.count
	res.Errors = errs.items
	return res
}

// ImportWorkbook reads an uploaded workbook and upserts every recognizable
// row. Only an unreadable workbook is an error; everything else is counted.
func (s *Service) ImportWorkbook(ctx context.Context, r io.Reader) (*ImportResult, error) {
	sheets, err := ReadWorkbook(r)
	if err != nil {
		return nil, err
	}
	return s.ImportSheets(ctx, sheets), nil
}

func (s *Service) ImportSheets(ctx context.Context, sheets []Sheet) *ImportResult {
	errs := errorLog{max: s.cfg.MaxRowErrors, items: []RowError{}}
	res := &ImportResult{Sheets: []string{}}
	started := time.Now()

	for _, sh := range sheets {
		scan, ok := s.parser.Scan(sh)
		if !ok {
			log.Printf("import: sheet %q skipped (no delivery type or header row)", sh.Name)
			continue
		}
		res.Sheets = append(res.Sheets, sh.Name)
		res.TotalRows += scan.TotalRows
		res.ParsedRows += len(scan.Candidates)

		for _, cand := range scan.Candidates {
			rec := cand.Record
			if err := Prepare(&rec); err != nil {
				res.Skipped++
				continue
			}
			if err := s.store.Upsert(ctx, &rec); err != nil {
				errs.add(RowError{Sheet: sh.Name, Row: cand.Row, Message: err.Error()})
				continue
			}
			res.Upserted++
		}
	}

	res.ErrorsCount = errs.count
	res.Errors = errs.items
	log.Printf("import: %d sheets, %d rows, %d upserted, %d skipped, %d errors in %s",
		len(res.Sheets), res.TotalRows, res.Upserted, res.Skipped, res.ErrorsCount, time.Since(started).Round(time.Millisecond))
	return res
}
