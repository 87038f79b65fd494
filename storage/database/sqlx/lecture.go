package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/rollcall/rollcall/core"
	"github.com/rollcall/rollcall/core/attendance"
	"github.com/rollcall/rollcall/core/lecture"
)

const (
	lectureColumns = `id, owner_id, subject, class_name, start_time, end_time, day, created_at, updated_at`
	weekdayOrder   = `array_position(ARRAY['Monday','Tuesday','Wednesday','Thursday','Friday','Saturday','Sunday']::varchar[], day)`
)

type lectureRow struct {
	ID        string               `db:"id"`
	OwnerID   string               `db:"owner_id"`
	Subject   string               `db:"subject"`
	ClassName string               `db:"class_name"`
	StartTime attendance.TimeOfDay `db:"start_time"`
	EndTime   attendance.TimeOfDay `db:"end_time"`
	Day       attendance.Weekday   `db:"day"`
	CreatedAt time.Time            `db:"created_at"`
	UpdatedAt time.Time            `db:"updated_at"`
}

func toLectureRow(lec lecture.Lecture) lectureRow {
	return lectureRow{
		ID:        lec.ID,
		OwnerID:   lec.OwnerID,
		Subject:   lec.Subject,
		ClassName: lec.ClassName,
		StartTime: lec.StartTime,
		EndTime:   lec.EndTime,
		Day:       lec.Day,
		CreatedAt: lec.CreatedAt.UTC(),
		UpdatedAt: lec.UpdatedAt.UTC(),
	}
}

func (row lectureRow) lecture() lecture.Lecture {
	return lecture.Lecture{
		ID:        row.ID,
		OwnerID:   row.OwnerID,
		Subject:   row.Subject,
		ClassName: row.ClassName,
		StartTime: row.StartTime,
		EndTime:   row.EndTime,
		Day:       row.Day,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

type lectureRepository struct {
	exec core.DBExecutor
}

var _ lecture.Repository = (*lectureRepository)(nil) // interface compliance check

var lectureOrdering = []core.DBOrdering{
	{Field: weekdayOrder, Ascending: true},
	{Field: "start_time", Ascending: true},
	{Field: "id", Ascending: true},
}

func NewLectureRepository(exec core.DBExecutor) lecture.Repository {
	return &lectureRepository{exec: exec}
}

func (repo *lectureRepository) CreateLecture(ctx context.Context, lec lecture.Lecture) (lecture.Lecture, error) {
	q := `INSERT INTO lecture (` + lectureColumns + `)
		VALUES (:id, :owner_id, :subject, :class_name, :start_time, :end_time, :day, :created_at, :updated_at)`
	row := toLectureRow(lec)
	if _, err := repo.exec.NamedExecContext(ctx, q, row); err != nil {
		return lecture.Lecture{}, errors.Wrap(err, "inserting lecture")
	}
	return row.lecture(), nil
}

func (repo *lectureRepository) GetLectureByID(ctx context.Context, id string) (lecture.Lecture, error) {
	var row lectureRow
	q := `SELECT ` + lectureColumns + ` FROM lecture WHERE id::text = $1`
	if err := repo.exec.GetContext(ctx, &row, q, id); err != nil {
		return lecture.Lecture{}, trapNoRowsErr(err, lecture.ErrNotFound, "selecting lecture")
	}
	return row.lecture(), nil
}

func (repo *lectureRepository) FilterLectures(ctx context.Context, filter lecture.QueryFilter) ([]lecture.Lecture, error) {
	var w where
	if filter.OwnerID != "" {
		w.add("owner_id::text = ?", filter.OwnerID)
	}
	if filter.Day != 0 {
		w.add("day = ?", filter.Day)
	}

	var rows []lectureRow
	q := `SELECT ` + lectureColumns + ` FROM lecture` + w.String() + orderBy(lectureOrdering...)
	if err := repo.exec.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting lectures")
	}

	lectures := make([]lecture.Lecture, 0, len(rows))
	for _, row := range rows {
		lectures = append(lectures, row.lecture())
	}
	return lectures, nil
}

// DeleteLecturesByID relies on ON DELETE CASCADE for the attendance records.
func (repo *lectureRepository) DeleteLecturesByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := repo.exec.ExecContext(ctx, `DELETE FROM lecture WHERE id::text = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting lectures")
}
