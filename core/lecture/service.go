package lecture

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rollcall/rollcall/core"
	"github.com/rollcall/rollcall/core/attendance"
)

var (
	// errors
	ErrNotFound = errors.New("lecture not found")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateLecture(ctx context.Context, lec Lecture) (Lecture, error)
		GetLectureByID(ctx context.Context, id string) (Lecture, error)
		// FilterLectures returns the matching lectures ordered by day then start time.
		FilterLectures(ctx context.Context, filter QueryFilter) ([]Lecture, error)
		// DeleteLecturesByID also deletes the attendance records of the lectures.
		DeleteLecturesByID(ctx context.Context, ids ...string) error
	}

	Service interface {
		Create(ctx context.Context, ownerID string, nl NewLecture) (Lecture, error)
		GetByID(ctx context.Context, id string) (Lecture, error)
		// Timetable returns the lectures of ownerID on day (today if zero) with their current status.
		Timetable(ctx context.Context, ownerID string, day attendance.Weekday) ([]ScheduledLecture, error)
		Schedule(lec Lecture) ScheduledLecture
		Delete(ctx context.Context, id string) error
		IssueToken(lec Lecture) (attendance.Issued, error)
		RenderQR(lec Lecture, opts attendance.ImageOptions) (attendance.Issued, []byte, error)
	}

	service struct {
		repo     Repository
		pipeline *attendance.Pipeline
		conf     *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, pipeline *attendance.Pipeline, conf *core.Config) Service {
	return &service{
		repo:     repo,
		pipeline: pipeline,
		conf:     conf,
	}
}

func (svc *service) now() time.Time {
	if svc.conf.Timezone == nil {
		return NowFunc()
	}
	return NowFunc().In(svc.conf.Timezone)
}

func (svc *service) Create(ctx context.Context, ownerID string, nl NewLecture) (Lecture, error) {
	nl.Clean()
	w, day, err := nl.Schedule()
	if err != nil {
		return Lecture{}, err
	}

	now := NowFunc().UTC()
	lec := Lecture{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Subject:   nl.Subject,
		ClassName: nl.ClassName,
		StartTime: w.Start,
		EndTime:   w.End,
		Day:       day,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateLecture(ctx, lec)
}

func (svc *service) GetByID(ctx context.Context, id string) (Lecture, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Lecture{}, ErrNotFound
	}
	return svc.repo.GetLectureByID(ctx, id)
}

func (svc *service) Timetable(ctx context.Context, ownerID string, day attendance.Weekday) ([]ScheduledLecture, error) {
	if day == 0 {
		day = attendance.WeekdayOf(svc.now())
	}
	lectures, err := svc.repo.FilterLectures(ctx, QueryFilter{OwnerID: ownerID, Day: day})
	if err != nil {
		return nil, err
	}

	scheduled := make([]ScheduledLecture, 0, len(lectures))
	for _, lec := range lectures {
		scheduled = append(scheduled, svc.Schedule(lec))
	}
	return scheduled, nil
}

func (svc *service) Schedule(lec Lecture) ScheduledLecture {
	return ScheduledLecture{
		Lecture: lec,
		Time:    lec.TimeSlot(),
		Status:  attendance.ResolveAt(svc.now(), lec.Day, lec.Window(), svc.pipeline.Policy),
	}
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteLecturesByID(ctx, id)
}

func (svc *service) IssueToken(lec Lecture) (attendance.Issued, error) {
	return svc.pipeline.Codec.Encode(lec.Descriptor())
}

func (svc *service) RenderQR(lec Lecture, opts attendance.ImageOptions) (attendance.Issued, []byte, error) {
	issued, err := svc.IssueToken(lec)
	if err != nil {
		return attendance.Issued{}, nil, err
	}
	img, err := attendance.RenderPNG(issued.Payload, opts)
	if err != nil {
		return attendance.Issued{}, nil, err
	}
	return issued, img, nil
}
