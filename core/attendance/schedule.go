package attendance

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	errInvalidTimeOfDay = errors.New("invalid time of day")
	errInvalidWeekday   = errors.New("invalid weekday")
	errInvalidTimeSlot  = errors.New("invalid time slot")
)

// TimeOfDay is a wall clock time with minute precision. Its text form is "HH:MM".
type TimeOfDay struct {
	Hour   int
	Minute int
}

func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	t := TimeOfDay{Hour: hour, Minute: minute}
	if !t.Valid() {
		return TimeOfDay{}, errInvalidTimeOfDay
	}
	return t, nil
}

// TimeOfDayOf returns the wall clock time of t, in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// ParseTimeOfDay parses "HH:MM" (the hour may have a single digit).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[0]) < 1 || len(parts[0]) > 2 || len(parts[1]) != 2 {
		return TimeOfDay{}, errInvalidTimeOfDay
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, errInvalidTimeOfDay
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, errInvalidTimeOfDay
	}
	return NewTimeOfDay(h, m)
}

// ParseTimeSlot parses a "09:00 - 10:30" slot into its window.
func ParseTimeSlot(s string) (Window, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return Window{}, errInvalidTimeSlot
	}
	start, err := ParseTimeOfDay(parts[0])
	if err != nil {
		return Window{}, errInvalidTimeSlot
	}
	end, err := ParseTimeOfDay(parts[1])
	if err != nil {
		return Window{}, errInvalidTimeSlot
	}
	w := Window{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

// Minutes returns the number of minutes since midnight.
func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

func (t TimeOfDay) Before(o TimeOfDay) bool { return t.Minutes() < o.Minutes() }
func (t TimeOfDay) After(o TimeOfDay) bool  { return t.Minutes() > o.Minutes() }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, errInvalidTimeOfDay
	}
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return t.UnmarshalText([]byte(v))
	case []byte:
		return t.UnmarshalText(v)
	}
	return errors.Errorf("cannot scan %T into TimeOfDay", src)
}

// Window is the time span of a lecture within its day.
type Window struct {
	Start TimeOfDay `json:"start_time"`
	End   TimeOfDay `json:"end_time"`
}

func (w Window) Validate() error {
	if !w.Start.Valid() || !w.End.Valid() {
		return errInvalidTimeOfDay
	}
	if !w.Start.Before(w.End) {
		return errors.New("start time must be before end time")
	}
	return nil
}

// String returns the window in the "09:00 - 10:30" slot form.
func (w Window) String() string {
	return w.Start.String() + " - " + w.End.String()
}

// Weekday numbers the days from Monday (1) to Sunday (7), weeks start on Monday.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// WeekdayOf returns the weekday of t, in t's location.
func WeekdayOf(t time.Time) Weekday {
	wd := t.Weekday()
	if wd == time.Sunday {
		return Sunday
	}
	return Weekday(wd)
}

// ParseWeekday parses an english day name, case-insensitively.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.TrimSpace(s)
	for i := Monday; i <= Sunday; i++ {
		if strings.EqualFold(s, weekdayNames[i]) {
			return i, nil
		}
	}
	return 0, errInvalidWeekday
}

func (d Weekday) Valid() bool { return d >= Monday && d <= Sunday }

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

func (d Weekday) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, errInvalidWeekday
	}
	return []byte(d.String()), nil
}

func (d *Weekday) UnmarshalText(text []byte) error {
	parsed, err := ParseWeekday(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Weekday) Value() (driver.Value, error) {
	if !d.Valid() {
		return nil, errInvalidWeekday
	}
	return d.String(), nil
}

func (d *Weekday) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return d.UnmarshalText([]byte(v))
	case []byte:
		return d.UnmarshalText(v)
	}
	return errors.Errorf("cannot scan %T into Weekday", src)
}
