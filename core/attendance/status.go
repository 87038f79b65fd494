package attendance

import "time"

type Status string

const (
	Upcoming Status = "upcoming"
	Active   Status = "active"
	Ended    Status = "ended"
)

// StatusPolicy selects how long a lecture stays active.
// By default it ends at its end time. With ExtendActiveToEndOfDay it stays active until midnight.
type StatusPolicy struct {
	ExtendActiveToEndOfDay bool
}

// Resolve derives the status of w at now, on the lecture's own day.
func Resolve(now TimeOfDay, w Window, p StatusPolicy) Status {
	switch {
	case now.Before(w.Start):
		return Upcoming
	case p.ExtendActiveToEndOfDay, !now.After(w.End):
		return Active
	default:
		return Ended
	}
}

// ResolveAt derives the status of a lecture held every week on day, at the instant t.
// t is read in its own location.
func ResolveAt(t time.Time, day Weekday, w Window, p StatusPolicy) Status {
	today := WeekdayOf(t)
	switch {
	case today < day:
		return Upcoming
	case today > day:
		return Ended
	}
	return Resolve(TimeOfDayOf(t), w, p)
}
