package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/rollcall/rollcall/core"
	"github.com/rollcall/rollcall/core/record"
)

const recordColumns = `id, lecture_id, student_id, date, method, present, nonce,
	latitude, longitude, distance_meters, marked_by, marked_at`

type recordRow struct {
	ID             string       `db:"id"`
	LectureID      string       `db:"lecture_id"`
	StudentID      string       `db:"student_id"`
	Date           time.Time    `db:"date"`
	Method         string       `db:"method"`
	Present        bool         `db:"present"`
	Nonce          null.String  `db:"nonce"`
	Latitude       null.Float64 `db:"latitude"`
	Longitude      null.Float64 `db:"longitude"`
	DistanceMeters null.Float64 `db:"distance_meters"`
	MarkedBy       string       `db:"marked_by"`
	MarkedAt       time.Time    `db:"marked_at"`
}

func toRecordRow(rec record.Record) recordRow {
	return recordRow{
		ID:             rec.ID,
		LectureID:      rec.LectureID,
		StudentID:      rec.StudentID,
		Date:           rec.Date,
		Method:         rec.Method,
		Present:        rec.Present,
		Nonce:          rec.Nonce,
		Latitude:       rec.Latitude,
		Longitude:      rec.Longitude,
		DistanceMeters: rec.DistanceMeters,
		MarkedBy:       rec.MarkedBy,
		MarkedAt:       rec.MarkedAt.UTC(),
	}
}

func (row recordRow) record() record.Record {
	return record.Record{
		ID:             row.ID,
		LectureID:      row.LectureID,
		StudentID:      row.StudentID,
		Date:           record.DateOf(row.Date),
		Method:         row.Method,
		Present:        row.Present,
		Nonce:          row.Nonce,
		Latitude:       row.Latitude,
		Longitude:      row.Longitude,
		DistanceMeters: row.DistanceMeters,
		MarkedBy:       row.MarkedBy,
		MarkedAt:       row.MarkedAt.UTC(),
	}
}

type recordRepository struct {
	exec core.DBExecutor
}

var _ record.Repository = (*recordRepository)(nil) // interface compliance check

// latest day first
var recordOrdering = []core.DBOrdering{
	{Field: "date"},
	{Field: "marked_at", Ascending: true},
	{Field: "id", Ascending: true},
}

func NewRecordRepository(exec core.DBExecutor) record.Repository {
	return &recordRepository{exec: exec}
}

func (repo *recordRepository) CreateRecord(ctx context.Context, rec record.Record) (record.Record, error) {
	q := `INSERT INTO record (` + recordColumns + `)
		VALUES (:id, :lecture_id, :student_id, :date, :method, :present, :nonce,
			:latitude, :longitude, :distance_meters, :marked_by, :marked_at)`
	row := toRecordRow(rec)
	if _, err := repo.exec.NamedExecContext(ctx, q, row); err != nil {
		if isUniqueViolation(err) {
			return record.Record{}, record.ErrAlreadyMarked
		}
		return record.Record{}, errors.Wrap(err, "inserting record")
	}
	return row.record(), nil
}

func (repo *recordRepository) UpsertRecords(ctx context.Context, recs ...record.Record) ([]record.Record, error) {
	q := `INSERT INTO record (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (lecture_id, student_id, date) DO UPDATE SET
			method = EXCLUDED.method, present = EXCLUDED.present, nonce = EXCLUDED.nonce,
			latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
			distance_meters = EXCLUDED.distance_meters,
			marked_by = EXCLUDED.marked_by, marked_at = EXCLUDED.marked_at
		RETURNING id`

	saved := make([]record.Record, 0, len(recs))
	err := withTx(ctx, repo.exec, func(exec core.DBExecutor) error {
		for _, rec := range recs {
			row := toRecordRow(rec)
			err := exec.QueryRowxContext(ctx, q,
				row.ID, row.LectureID, row.StudentID, row.Date, row.Method, row.Present, row.Nonce,
				row.Latitude, row.Longitude, row.DistanceMeters, row.MarkedBy, row.MarkedAt,
			).Scan(&row.ID)
			if err != nil {
				return errors.Wrap(err, "upserting record")
			}
			saved = append(saved, row.record())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (repo *recordRepository) FilterRecords(ctx context.Context, filter record.QueryFilter) ([]record.Record, error) {
	var w where
	if filter.LectureID != "" {
		w.add("lecture_id::text = ?", filter.LectureID)
	}
	if filter.StudentID != "" {
		w.add("student_id::text = ?", filter.StudentID)
	}
	if !filter.Date.IsZero() {
		w.add("date = ?", filter.Date.Format("2006-01-02"))
	}

	var rows []recordRow
	q := `SELECT ` + recordColumns + ` FROM record` + w.String() + orderBy(recordOrdering...)
	if err := repo.exec.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting records")
	}

	recs := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, row.record())
	}
	return recs, nil
}
