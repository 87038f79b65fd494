package inmemdb

import (
	"context"
	"sort"

	"github.com/rollcall/rollcall/core/record"
)

type recordRepository struct {
	db *recordTable
}

var _ record.Repository = (*recordRepository)(nil) // interface compliance check

func NewRecordRepository(db *DB) record.Repository {
	return &recordRepository{db: db.record}
}

// find returns the record with the same lecture, student and date as rec. Callers hold the lock.
func (repo *recordRepository) find(rec record.Record) (*record.Record, bool) {
	for _, r := range repo.db.table {
		if r.LectureID == rec.LectureID && r.StudentID == rec.StudentID && r.Date.Equal(rec.Date) {
			return r, true
		}
	}
	return nil, false
}

func (repo *recordRepository) CreateRecord(_ context.Context, rec record.Record) (record.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, exists := repo.find(rec); exists {
		return record.Record{}, record.ErrAlreadyMarked
	}
	repo.db.table[rec.ID] = &rec
	return rec, nil
}

func (repo *recordRepository) UpsertRecords(_ context.Context, recs ...record.Record) ([]record.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	saved := make([]record.Record, 0, len(recs))
	for _, rec := range recs {
		rec := rec
		if existing, ok := repo.find(rec); ok {
			delete(repo.db.table, existing.ID)
			rec.ID = existing.ID
		}
		repo.db.table[rec.ID] = &rec
		saved = append(saved, rec)
	}
	return saved, nil
}

func (repo *recordRepository) FilterRecords(_ context.Context, filter record.QueryFilter) ([]record.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := make([]record.Record, 0)
	for _, rec := range repo.db.table {
		if filter.Match(*rec) {
			recs = append(recs, *rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.MarkedAt.Equal(b.MarkedAt) {
			return a.MarkedAt.Before(b.MarkedAt)
		}
		return a.ID < b.ID
	})
	return recs, nil
}
