package record

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/rollcall/rollcall/core"
	"github.com/rollcall/rollcall/core/attendance"
)

// Marking methods
const (
	MethodQR     = "qr"
	MethodManual = "manual"
)

// DecisionAlreadyMarked is returned for an admitted scan when the student is already present that day.
const DecisionAlreadyMarked attendance.Verdict = "already_marked"

const dateLayout = "2006-01-02"

// Record is the attendance of one student to one lecture on one day.
type Record struct {
	ID             string       `json:"id"`
	LectureID      string       `json:"lecture_id"`
	StudentID      string       `json:"student_id"`
	Date           time.Time    `json:"date"` // midnight UTC of the calendar day
	Method         string       `json:"method"`
	Present        bool         `json:"present"`
	Nonce          null.String  `json:"nonce"`
	Latitude       null.Float64 `json:"latitude"`
	Longitude      null.Float64 `json:"longitude"`
	DistanceMeters null.Float64 `json:"distance_meters"`
	MarkedBy       string       `json:"marked_by"`
	MarkedAt       time.Time    `json:"marked_at"` // UTC
}

// DateOf returns the calendar day of t, in t's location, as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

type QueryFilter struct {
	LectureID string
	StudentID string
	Date      time.Time // any day if zero
}

func (qf QueryFilter) Match(rec Record) bool {
	if qf.LectureID != "" && rec.LectureID != qf.LectureID {
		return false
	}
	if qf.StudentID != "" && rec.StudentID != qf.StudentID {
		return false
	}
	if !qf.Date.IsZero() && !rec.Date.Equal(qf.Date) {
		return false
	}
	return true
}

// maxLocationErrorLen caps the client supplied reason echoed back in a decision.
const maxLocationErrorLen = 200

// ScanRequest is sent by a student client after decoding a QR code.
// Location is null when the device could not provide one, LocationError then tells why.
// It is not validated: every body, even an empty one, is answered with a decision.
type ScanRequest struct {
	Payload       string                    `json:"payload"`
	Location      *attendance.GeoCoordinate `json:"location"`
	LocationError string                    `json:"location_error"`
}

func (sr ScanRequest) location() attendance.Location {
	if sr.Location == nil {
		reason := core.CleanString(sr.LocationError)
		if r := []rune(reason); len(r) > maxLocationErrorLen {
			reason = string(r[:maxLocationErrorLen])
		}
		if reason == "" {
			reason = "location access is required to mark attendance"
		}
		return attendance.LocationUnavailable(reason)
	}
	return attendance.LocationAt(*sr.Location)
}

// ScanResult always carries the decision. Record is set when the student was marked present.
type ScanResult struct {
	Decision       attendance.Verdict `json:"decision"`
	Reason         string             `json:"reason,omitempty"`
	DistanceMeters *float64           `json:"distance_meters,omitempty"`
	Record         *Record            `json:"record,omitempty"`
}

type Mark struct {
	StudentID string `json:"student_id" validate:"required"`
	Present   bool   `json:"present"`
}

// ManualAttendance is the roll call of a teacher for one day.
// MarkAll sets every active student first, Marks are applied on top.
type ManualAttendance struct {
	Date    string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	MarkAll *bool  `json:"mark_all"`
	Marks   []Mark `json:"marks" validate:"dive"`
}

func (ma *ManualAttendance) Validate(validate *validator.Validate) error {
	ma.Date = core.CleanString(ma.Date)
	if err := validate.Struct(ma); err != nil {
		return err
	}
	if ma.MarkAll == nil && len(ma.Marks) == 0 {
		return core.NewValidationError(
			errors.New("nothing to mark"),
			core.FieldError{Field: "marks", Error: "this field is required"},
		)
	}
	return nil
}

// Summary counts the students present out of the marked ones.
type Summary struct {
	Present    int `json:"present"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

func Summarize(records []Record) Summary {
	s := Summary{Total: len(records)}
	for _, rec := range records {
		if rec.Present {
			s.Present++
		}
	}
	s.Percentage = Percentage(s.Present, s.Total)
	return s
}

// Percentage returns round(part/total*100), 0 when total is 0.
func Percentage(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) * 100 / float64(total)))
}

// StudentReport is the attendance history of a student.
type StudentReport struct {
	Records        []Record `json:"records"`
	Present        int      `json:"present"`
	Total          int      `json:"total"`
	AttendanceRate int      `json:"attendance_rate"`
}
