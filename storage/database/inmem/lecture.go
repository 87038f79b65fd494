package inmemdb

import (
	"context"
	"sort"

	"github.com/rollcall/rollcall/core/lecture"
)

type lectureRepository struct {
	db      *lectureTable
	records *recordTable
}

var _ lecture.Repository = (*lectureRepository)(nil) // interface compliance check

func NewLectureRepository(db *DB) lecture.Repository {
	return &lectureRepository{db: db.lecture, records: db.record}
}

func (repo *lectureRepository) CreateLecture(_ context.Context, lec lecture.Lecture) (lecture.Lecture, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[lec.ID] = &lec
	return lec, nil
}

func (repo *lectureRepository) GetLectureByID(_ context.Context, id string) (lecture.Lecture, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if lec, ok := repo.db.table[id]; ok {
		return *lec, nil
	}
	return lecture.Lecture{}, lecture.ErrNotFound
}

func (repo *lectureRepository) FilterLectures(_ context.Context, filter lecture.QueryFilter) ([]lecture.Lecture, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	lectures := make([]lecture.Lecture, 0, len(repo.db.table))
	for _, lec := range repo.db.table {
		if filter.Match(*lec) {
			lectures = append(lectures, *lec)
		}
	}
	sort.Slice(lectures, func(i, j int) bool {
		a, b := lectures[i], lectures[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.StartTime != b.StartTime {
			return a.StartTime.Before(b.StartTime)
		}
		return a.ID < b.ID
	})
	return lectures, nil
}

func (repo *lectureRepository) DeleteLecturesByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.records.Lock()
	defer repo.records.Unlock()

	deleted := make(map[string]bool, len(ids))
	for _, id := range ids {
		delete(repo.db.table, id)
		deleted[id] = true
	}
	for id, rec := range repo.records.table {
		if deleted[rec.LectureID] {
			delete(repo.records.table, id)
		}
	}
	return nil
}
