package testutil

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/rollcall/rollcall/core"
	"github.com/rollcall/rollcall/core/attendance"
	"github.com/rollcall/rollcall/core/lecture"
	"github.com/rollcall/rollcall/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email string,
	roles []string,
	isActive bool,
	studentNumber ...string,
) user.User {
	tstamp := time.Now().UTC()
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if len(studentNumber) > 0 {
		usr.StudentNumber = null.StringFrom(studentNumber[0])
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateLecture creates a lecture of owner in the "09:00 - 10:30" slot form.
func CreateLecture(
	t *testing.T,
	repo lecture.Repository,
	owner user.User,
	subject, className, slot string,
	day attendance.Weekday,
) lecture.Lecture {
	w, err := attendance.ParseTimeSlot(slot)
	if err != nil {
		t.Fatalf("CreateLecture() failed: %v", err)
	}
	tstamp := time.Now().UTC()
	lec, err := repo.CreateLecture(context.Background(), lecture.Lecture{
		ID:        uuid.New().String(),
		OwnerID:   owner.ID,
		Subject:   subject,
		ClassName: className,
		StartTime: w.Start,
		EndTime:   w.End,
		Day:       day,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateLecture() failed: %v", err)
	}
	return lec
}

func NewPipeline(t *testing.T, conf *core.Config) *attendance.Pipeline {
	p, err := attendance.NewPipeline(conf.Attendance)
	if err != nil {
		t.Fatalf("NewPipeline() failed: %v", err)
	}
	return p
}

// MockNow replaces clock with a function returning now until the test ends.
func MockNow(t *testing.T, clock *func() time.Time, now time.Time) {
	orig := *clock
	*clock = func() time.Time { return now }
	t.Cleanup(func() { *clock = orig })
}

// Campus returns the geofence reference point of conf.
func Campus(conf *core.Config) attendance.GeoCoordinate {
	return attendance.GeoCoordinate{Lat: conf.Attendance.GeofenceLat, Lon: conf.Attendance.GeofenceLon}
}

// NorthOf returns the point meters north of c.
func NorthOf(c attendance.GeoCoordinate, meters float64) attendance.GeoCoordinate {
	return attendance.GeoCoordinate{Lat: c.Lat + meters/attendance.EarthRadiusMeters*180/math.Pi, Lon: c.Lon}
}
