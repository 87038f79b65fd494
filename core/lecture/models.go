package lecture

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/rollcall/rollcall/core"
	"github.com/rollcall/rollcall/core/attendance"
)

// Lecture is a weekly class meeting owned by a teacher.
type Lecture struct {
	ID        string               `json:"id"`
	OwnerID   string               `json:"owner_id"`
	Subject   string               `json:"subject"`
	ClassName string               `json:"class_name"`
	StartTime attendance.TimeOfDay `json:"start_time"`
	EndTime   attendance.TimeOfDay `json:"end_time"`
	Day       attendance.Weekday   `json:"day"`
	CreatedAt time.Time            `json:"created_at"` // UTC
	UpdatedAt time.Time            `json:"updated_at"` // UTC
}

func (l Lecture) Window() attendance.Window {
	return attendance.Window{Start: l.StartTime, End: l.EndTime}
}

// TimeSlot returns the "09:00 - 10:30" form of the lecture window.
func (l Lecture) TimeSlot() string {
	return l.Window().String()
}

// Descriptor returns what gets encoded in the lecture QR codes.
func (l Lecture) Descriptor() attendance.SessionDescriptor {
	return attendance.SessionDescriptor{
		SessionID: l.ID,
		Subject:   l.Subject,
		ClassName: l.ClassName,
		StartTime: l.StartTime,
		EndTime:   l.EndTime,
		DayOfWeek: l.Day,
	}
}

// ScheduledLecture is a Lecture with its status at the time of the request.
type ScheduledLecture struct {
	Lecture
	Time   string            `json:"time"`
	Status attendance.Status `json:"status"`
}

// NewLecture contains information needed to create a new Lecture.
// The window is given either as a "09:00 - 10:30" slot or as start and end times.
type NewLecture struct {
	Subject   string `json:"subject" validate:"notblank,max=100"`
	ClassName string `json:"class_name" validate:"notblank,max=100"`
	Time      string `json:"time" validate:"omitempty,timeslot"`
	StartTime string `json:"start_time" validate:"omitempty,timeofday"`
	EndTime   string `json:"end_time" validate:"omitempty,timeofday"`
	Day       string `json:"day" validate:"omitempty,weekday"` // Monday if empty
}

func (nl *NewLecture) Clean() {
	nl.Subject = core.CleanString(nl.Subject)
	nl.ClassName = core.CleanString(nl.ClassName)
	nl.Time = core.CleanString(nl.Time)
	nl.StartTime = core.CleanString(nl.StartTime)
	nl.EndTime = core.CleanString(nl.EndTime)
	nl.Day = core.CleanString(nl.Day)
}

func (nl *NewLecture) Validate(validate *validator.Validate) error {
	nl.Clean()
	if err := validate.Struct(nl); err != nil {
		return err
	}
	_, _, err := nl.Schedule()
	return err
}

// Schedule parses the window and day of nl.
func (nl NewLecture) Schedule() (attendance.Window, attendance.Weekday, error) {
	var w attendance.Window
	var err error

	switch {
	case nl.Time != "":
		if w, err = attendance.ParseTimeSlot(nl.Time); err != nil {
			return w, 0, core.NewValidationError(err, core.FieldError{Field: "time", Error: timeSlotText})
		}
	case nl.StartTime == "" && nl.EndTime == "":
		return w, 0, core.NewValidationError(
			errors.New("missing time"),
			core.FieldError{Field: "time", Error: "this field is required"},
		)
	default:
		if w.Start, err = attendance.ParseTimeOfDay(nl.StartTime); err != nil {
			return w, 0, core.NewValidationError(err, core.FieldError{Field: "start_time", Error: timeOfDayText})
		}
		if w.End, err = attendance.ParseTimeOfDay(nl.EndTime); err != nil {
			return w, 0, core.NewValidationError(err, core.FieldError{Field: "end_time", Error: timeOfDayText})
		}
		if err = w.Validate(); err != nil {
			return w, 0, core.NewValidationError(err, core.FieldError{Field: "end_time", Error: "end time must be after start time"})
		}
	}

	day := attendance.Monday
	if nl.Day != "" {
		if day, err = attendance.ParseWeekday(nl.Day); err != nil {
			return w, 0, core.NewValidationError(err, core.FieldError{Field: "day", Error: weekdayText})
		}
	}
	return w, day, nil
}

type QueryFilter struct {
	OwnerID string
	Day     attendance.Weekday // any day if zero
}

func (qf QueryFilter) Match(l Lecture) bool {
	if qf.OwnerID != "" && l.OwnerID != qf.OwnerID {
		return false
	}
	if qf.Day != 0 && l.Day != qf.Day {
		return false
	}
	return true
}
