package lecture_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollcall/rollcall/core"
	"github.com/rollcall/rollcall/core/attendance"
	"github.com/rollcall/rollcall/core/lecture"
	"github.com/rollcall/rollcall/core/testutil"
	"github.com/rollcall/rollcall/core/user"
	inmemdb "github.com/rollcall/rollcall/storage/database/inmem"
)

// Monday 12 October 2026
var monday = time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC)

func setup(t *testing.T) (lecture.Service, lecture.Repository, user.User) {
	conf := core.NewTestConfig()
	db := inmemdb.Open()
	repo := inmemdb.NewLectureRepository(db)
	teacher := testutil.CreateUser(t, inmemdb.NewUserRepository(db), "Grace", "grace@example.com", []string{user.RoleTeacher}, true)
	return lecture.NewService(repo, testutil.NewPipeline(t, conf), conf), repo, teacher
}

func TestService_Create(t *testing.T) {
	svc, _, teacher := setup(t)
	ctx := context.Background()

	lec, err := svc.Create(ctx, teacher.ID, lecture.NewLecture{Subject: " Mathematics ", ClassName: "CS-A", Time: "09:00 - 10:30", Day: "wednesday"})
	require.NoError(t, err)
	assert.Equal(t, "Mathematics", lec.Subject)
	assert.Equal(t, teacher.ID, lec.OwnerID)
	assert.Equal(t, attendance.Wednesday, lec.Day)
	assert.Equal(t, "09:00 - 10:30", lec.TimeSlot())

	lec, err = svc.Create(ctx, teacher.ID, lecture.NewLecture{Subject: "Physics", ClassName: "CS-B", StartTime: "8:00", EndTime: "09:15"})
	require.NoError(t, err)
	assert.Equal(t, attendance.Monday, lec.Day, "defaults to Monday")
	assert.Equal(t, attendance.TimeOfDay{Hour: 8}, lec.StartTime)

	got, err := svc.GetByID(ctx, lec.ID)
	require.NoError(t, err)
	assert.Equal(t, lec, got)

	_, err = svc.Create(ctx, teacher.ID, lecture.NewLecture{Subject: "Physics", ClassName: "CS-B", StartTime: "10:00", EndTime: "09:00"})
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "end_time", vErr.Fields[0].Field)
}

func TestService_GetByID_notFound(t *testing.T) {
	svc, _, _ := setup(t)

	for _, id := range []string{"not-a-uuid", uuid.New().String()} {
		_, err := svc.GetByID(context.Background(), id)
		assert.Equal(t, lecture.ErrNotFound, err, id)
	}
}

func TestService_Timetable(t *testing.T) {
	svc, repo, teacher := setup(t)
	other := user.User{ID: uuid.New().String()}

	testutil.CreateLecture(t, repo, teacher, "Physics", "CS-A", "11:00 - 12:00", attendance.Monday)
	testutil.CreateLecture(t, repo, teacher, "Mathematics", "CS-A", "09:00 - 10:30", attendance.Monday)
	testutil.CreateLecture(t, repo, teacher, "Chemistry", "CS-A", "09:00 - 10:30", attendance.Tuesday)
	testutil.CreateLecture(t, repo, other, "Biology", "CS-A", "09:00 - 10:30", attendance.Monday)

	testutil.MockNow(t, &lecture.NowFunc, monday.Add(11*time.Hour+30*time.Minute))

	tests := []struct {
		name         string
		day          attendance.Weekday
		wantSubjects []string
		wantStatuses []attendance.Status
	}{
		{
			name:         "today",
			wantSubjects: []string{"Mathematics", "Physics"},
			wantStatuses: []attendance.Status{attendance.Ended, attendance.Active},
		},
		{
			name:         "tomorrow",
			day:          attendance.Tuesday,
			wantSubjects: []string{"Chemistry"},
			wantStatuses: []attendance.Status{attendance.Upcoming},
		},
		{
			name: "free day",
			day:  attendance.Sunday,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lectures, err := svc.Timetable(context.Background(), teacher.ID, tt.day)
			require.NoError(t, err)
			require.Len(t, lectures, len(tt.wantSubjects))
			for i, lec := range lectures {
				assert.Equal(t, tt.wantSubjects[i], lec.Subject)
				assert.Equal(t, tt.wantStatuses[i], lec.Status)
				assert.Equal(t, lec.TimeSlot(), lec.Time)
			}
		})
	}
}

func TestService_IssueToken(t *testing.T) {
	svc, repo, teacher := setup(t)
	lec := testutil.CreateLecture(t, repo, teacher, "Mathematics", "CS-A", "09:00 - 10:30", attendance.Monday)

	issued, err := svc.IssueToken(lec)
	require.NoError(t, err)
	assert.Equal(t, lec.ID, issued.Token.SessionID)
	assert.Equal(t, "Monday", issued.Token.DayOfWeek.String())

	tok, err := attendance.NewCodec("").Decode(issued.Payload)
	require.NoError(t, err)
	assert.Equal(t, issued.Token, tok)

	issued2, png, err := svc.RenderQR(lec, attendance.DefaultImageOptions())
	require.NoError(t, err)
	assert.NotEqual(t, issued.Token.Nonce, issued2.Token.Nonce)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}

func TestService_Delete(t *testing.T) {
	svc, repo, teacher := setup(t)
	lec := testutil.CreateLecture(t, repo, teacher, "Mathematics", "CS-A", "09:00 - 10:30", attendance.Monday)

	require.NoError(t, svc.Delete(context.Background(), lec.ID))
	_, err := svc.GetByID(context.Background(), lec.ID)
	assert.Equal(t, lecture.ErrNotFound, err)
}
