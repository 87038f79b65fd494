package record

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/rollcall/rollcall/core"
	"github.com/rollcall/rollcall/core/attendance"
	"github.com/rollcall/rollcall/core/lecture"
	"github.com/rollcall/rollcall/core/user"
)

var (
	// errors
	ErrNotFound      = errors.New("attendance record not found")
	ErrAlreadyMarked = errors.New("attendance already marked")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CreateRecord returns ErrAlreadyMarked when a record exists for the same lecture, student and date.
		CreateRecord(ctx context.Context, rec Record) (Record, error)
		// UpsertRecords creates or replaces the records, keyed by lecture, student and date.
		UpsertRecords(ctx context.Context, recs ...Record) ([]Record, error)
		// FilterRecords returns the matching records, latest date first.
		FilterRecords(ctx context.Context, filter QueryFilter) ([]Record, error)
	}

	Service interface {
		// Today returns the current calendar day in the school timezone.
		Today() time.Time
		Scan(ctx context.Context, student user.User, req ScanRequest) (ScanResult, error)
		MarkManual(ctx context.Context, lec lecture.Lecture, teacher user.User, ma ManualAttendance) ([]Record, Summary, error)
		ForLecture(ctx context.Context, lectureID string, date time.Time) ([]Record, Summary, error)
		ForStudent(ctx context.Context, studentID string) (StudentReport, error)
		SendReport(ctx context.Context, lec lecture.Lecture, teacher user.User, date time.Time) (Summary, error)
	}

	service struct {
		repo       Repository
		lectureSvc lecture.Service
		userSvc    user.Service
		mailSvc    core.EmailService
		pipeline   *attendance.Pipeline
		conf       *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	lectureSvc lecture.Service,
	userSvc user.Service,
	mailSvc core.EmailService,
	pipeline *attendance.Pipeline,
	conf *core.Config,
) Service {
	return &service{
		repo:       repo,
		lectureSvc: lectureSvc,
		userSvc:    userSvc,
		mailSvc:    mailSvc,
		pipeline:   pipeline,
		conf:       conf,
	}
}

func (svc *service) now() time.Time {
	if svc.conf.Timezone == nil {
		return NowFunc()
	}
	return NowFunc().In(svc.conf.Timezone)
}

func (svc *service) Today() time.Time {
	return DateOf(svc.now())
}

func (svc *service) Scan(ctx context.Context, student user.User, req ScanRequest) (ScanResult, error) {
	now := svc.now()
	d := svc.pipeline.Evaluate(req.Payload, req.location(), student.ID, now)
	res := ScanResult{Decision: d.Verdict, Reason: d.Reason, DistanceMeters: d.DistanceMeters}
	if d.Err == attendance.ErrTokenReplayed {
		return svc.replayed(ctx, res, d.Token.SessionID, student.ID, now)
	}
	if !d.Admitted() {
		return res, nil
	}

	lec, err := svc.lectureSvc.GetByID(ctx, d.Token.SessionID)
	if err != nil {
		if errors.Cause(err) == lecture.ErrNotFound {
			res.Decision = attendance.DeniedInvalidToken
			res.Reason = "unknown lecture"
			return res, nil
		}
		return res, errors.Wrap(err, "finding lecture")
	}

	coord, _ := req.location().Coordinate()
	rec := Record{
		ID:             uuid.New().String(),
		LectureID:      lec.ID,
		StudentID:      student.ID,
		Date:           DateOf(now),
		Method:         MethodQR,
		Present:        true,
		Nonce:          null.StringFrom(d.Token.Nonce),
		Latitude:       null.Float64From(coord.Lat),
		Longitude:      null.Float64From(coord.Lon),
		DistanceMeters: null.Float64FromPtr(d.DistanceMeters),
		MarkedBy:       student.ID,
		MarkedAt:       now.UTC(),
	}

	created, err := svc.repo.CreateRecord(ctx, rec)
	if err == ErrAlreadyMarked {
		created, err = svc.replaceAbsence(ctx, rec)
	}
	if err == ErrAlreadyMarked {
		res.Decision = DecisionAlreadyMarked
		res.Reason = "attendance already marked for today"
		return res, err
	} else if err != nil {
		return res, errors.Wrap(err, "creating record")
	}
	svc.pipeline.Commit(d, student.ID, now)
	res.Record = &created
	return res, nil
}

// replayed reports a reused nonce as already marked when the student's presence is on record.
func (svc *service) replayed(ctx context.Context, res ScanResult, lectureID, studentID string, now time.Time) (ScanResult, error) {
	existing, err := svc.repo.FilterRecords(ctx, QueryFilter{LectureID: lectureID, StudentID: studentID, Date: DateOf(now)})
	if err != nil {
		return res, errors.Wrap(err, "finding record")
	}
	if len(existing) == 0 || !existing[0].Present {
		return res, nil
	}
	res.Decision = DecisionAlreadyMarked
	res.Reason = "attendance already marked for today"
	return res, ErrAlreadyMarked
}

// replaceAbsence turns a manual absence into the scanned presence.
func (svc *service) replaceAbsence(ctx context.Context, rec Record) (Record, error) {
	existing, err := svc.repo.FilterRecords(ctx, QueryFilter{LectureID: rec.LectureID, StudentID: rec.StudentID, Date: rec.Date})
	if err != nil {
		return Record{}, errors.Wrap(err, "finding record")
	}
	if len(existing) == 0 || existing[0].Present {
		return Record{}, ErrAlreadyMarked
	}
	rec.ID = existing[0].ID
	saved, err := svc.repo.UpsertRecords(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	return saved[0], nil
}

func (svc *service) roster(ctx context.Context) (map[string]user.User, error) {
	active := true
	students, err := svc.userSvc.Filter(ctx, user.QueryFilter{Roles: []string{user.RoleStudent}, IsActive: &active})
	if err != nil {
		return nil, errors.Wrap(err, "filtering students")
	}
	roster := make(map[string]user.User, len(students))
	for _, s := range students {
		roster[s.ID] = s
	}
	return roster, nil
}

func (svc *service) MarkManual(ctx context.Context, lec lecture.Lecture, teacher user.User, ma ManualAttendance) ([]Record, Summary, error) {
	date := svc.Today()
	if ma.Date != "" {
		var err error
		if date, err = ParseDate(ma.Date); err != nil {
			return nil, Summary{}, core.NewValidationError(err, core.FieldError{Field: "date", Error: "date must be formatted as YYYY-MM-DD"})
		}
	}

	roster, err := svc.roster(ctx)
	if err != nil {
		return nil, Summary{}, err
	}

	marks := make(map[string]bool, len(roster))
	if ma.MarkAll != nil {
		for id := range roster {
			marks[id] = *ma.MarkAll
		}
	}
	for _, m := range ma.Marks {
		if _, ok := roster[m.StudentID]; !ok {
			return nil, Summary{}, core.NewValidationError(
				errors.Errorf("unknown student %q", m.StudentID),
				core.FieldError{Field: "marks", Error: fmt.Sprintf("unknown student %q", m.StudentID)},
			)
		}
		marks[m.StudentID] = m.Present
	}

	now := NowFunc().UTC()
	recs := make([]Record, 0, len(marks))
	for studentID, present := range marks {
		recs = append(recs, Record{
			ID:        uuid.New().String(),
			LectureID: lec.ID,
			StudentID: studentID,
			Date:      date,
			Method:    MethodManual,
			Present:   present,
			MarkedBy:  teacher.ID,
			MarkedAt:  now,
		})
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].StudentID < recs[j].StudentID })

	if len(recs) > 0 {
		if _, err = svc.repo.UpsertRecords(ctx, recs...); err != nil {
			return nil, Summary{}, errors.Wrap(err, "saving records")
		}
	}
	return svc.ForLecture(ctx, lec.ID, date)
}

func (svc *service) ForLecture(ctx context.Context, lectureID string, date time.Time) ([]Record, Summary, error) {
	if date.IsZero() {
		date = svc.Today()
	}
	recs, err := svc.repo.FilterRecords(ctx, QueryFilter{LectureID: lectureID, Date: date})
	if err != nil {
		return nil, Summary{}, errors.Wrap(err, "filtering records")
	}
	if recs == nil {
		recs = []Record{}
	}
	return recs, Summarize(recs), nil
}

func (svc *service) ForStudent(ctx context.Context, studentID string) (StudentReport, error) {
	recs, err := svc.repo.FilterRecords(ctx, QueryFilter{StudentID: studentID})
	if err != nil {
		return StudentReport{}, errors.Wrap(err, "filtering records")
	}
	if recs == nil {
		recs = []Record{}
	}
	s := Summarize(recs)
	return StudentReport{Records: recs, Present: s.Present, Total: s.Total, AttendanceRate: s.Percentage}, nil
}

type reportData struct {
	TeacherName string
	Subject     string
	ClassName   string
	Day         string
	Time        string
	Date        string
	Summary     Summary
	Present     []string
	Absent      []string
}

func (svc *service) SendReport(ctx context.Context, lec lecture.Lecture, teacher user.User, date time.Time) (Summary, error) {
	recs, summary, err := svc.ForLecture(ctx, lec.ID, date)
	if err != nil {
		return Summary{}, err
	}
	if date.IsZero() {
		date = svc.Today()
	}

	names := make(map[string]string, len(recs))
	for _, rec := range recs {
		if _, ok := names[rec.StudentID]; ok {
			continue
		}
		name := rec.StudentID
		if usr, err := svc.userSvc.GetByID(ctx, rec.StudentID); err == nil {
			name = usr.Name
		} else if errors.Cause(err) != user.ErrNotFound {
			return Summary{}, errors.Wrap(err, "finding student")
		}
		names[rec.StudentID] = name
	}

	data := reportData{
		TeacherName: teacher.Name,
		Subject:     lec.Subject,
		ClassName:   lec.ClassName,
		Day:         lec.Day.String(),
		Time:        lec.TimeSlot(),
		Date:        date.Format(dateLayout),
		Summary:     summary,
		Present:     []string{},
		Absent:      []string{},
	}
	for _, rec := range recs {
		if rec.Present {
			data.Present = append(data.Present, names[rec.StudentID])
		} else {
			data.Absent = append(data.Absent, names[rec.StudentID])
		}
	}
	sort.Strings(data.Present)
	sort.Strings(data.Absent)

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: teacher.Name, Address: teacher.Email}},
		Subject:      fmt.Sprintf("Attendance %s %s - %s", lec.Subject, lec.ClassName, data.Date),
		TemplateName: "attendance_report",
		TemplateData: data,
	})
	return summary, nil
}
