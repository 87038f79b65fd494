package tests

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollcall/rollcall/core/attendance"
	"github.com/rollcall/rollcall/core/record"
	"github.com/rollcall/rollcall/core/testutil"
	"github.com/rollcall/rollcall/core/user"
)

func Test_attendanceApi_scan(t *testing.T) {
	f := setup(t)

	teacher := testutil.CreateUser(t, f.userRepo, "Grace Hopper", "grace@example.com", []string{user.RoleTeacher}, true)
	alice := testutil.CreateUser(t, f.userRepo, "Alice", "alice@example.com", []string{user.RoleStudent}, true, "S-001")
	bob := testutil.CreateUser(t, f.userRepo, "Bob", "bob@example.com", []string{user.RoleStudent}, true, "S-002")
	lec := testutil.CreateLecture(t, f.lectureRep, teacher, "Mathematics", "CS-A", "09:00 - 10:30", attendance.Monday)
	aliceToken := f.getToken(t, alice)

	scanBody := func(meters float64) []byte {
		loc := testutil.NorthOf(f.campus, meters)
		return marchallObj(t, record.ScanRequest{Payload: f.payload(t, lec), Location: &loc})
	}
	scan := func(t *testing.T, token string, body []byte) (int, record.ScanResult) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/scan", token, body)
		f.serve(req, rec)
		var res record.ScanResult
		unmarchallObj(t, rec, &res)
		return rec.Code, res
	}

	runHTTPTests(t, f, []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/v1/attendance/scan",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Student required", method: http.MethodPost, path: "/v1/attendance/scan", token: f.getToken(t, teacher),
			body: scanBody(0), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	})

	t.Run("body too large", func(t *testing.T) {
		body := marchallObj(t, record.ScanRequest{Payload: strings.Repeat("x", 70000)})
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/scan", aliceToken, body)
		f.serve(req, rec)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("empty body", func(t *testing.T) {
		code, res := scan(t, aliceToken, []byte(`{}`))
		assert.Equal(t, http.StatusUnprocessableEntity, code)
		assert.Equal(t, attendance.DeniedLocationUnavailable, res.Decision)
		assert.Equal(t, "location access is required to mark attendance", res.Reason)
	})

	t.Run("empty payload", func(t *testing.T) {
		loc := f.campus
		code, res := scan(t, aliceToken, marchallObj(t, record.ScanRequest{Location: &loc}))
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, attendance.DeniedInvalidToken, res.Decision)
		assert.Equal(t, "invalid QR code", res.Reason)
	})

	t.Run("long location error", func(t *testing.T) {
		code, res := scan(t, aliceToken, marchallObj(t, record.ScanRequest{Payload: f.payload(t, lec), LocationError: strings.Repeat("a", 1000)}))
		assert.Equal(t, http.StatusUnprocessableEntity, code)
		assert.Equal(t, attendance.DeniedLocationUnavailable, res.Decision)
		assert.Len(t, res.Reason, 200)
	})

	t.Run("admitted", func(t *testing.T) {
		code, res := scan(t, aliceToken, scanBody(50))
		assert.Equal(t, http.StatusCreated, code)
		assert.Equal(t, attendance.Admitted, res.Decision)
		require.NotNil(t, res.Record)
		assert.Equal(t, lec.ID, res.Record.LectureID)
		assert.Equal(t, alice.ID, res.Record.StudentID)
		require.NotNil(t, res.DistanceMeters)
		assert.InDelta(t, 50, *res.DistanceMeters, 0.5)
	})

	t.Run("already marked", func(t *testing.T) {
		code, res := scan(t, aliceToken, scanBody(10))
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, record.DecisionAlreadyMarked, res.Decision)
		assert.Equal(t, "attendance already marked for today", res.Reason)
		assert.Nil(t, res.Record)
	})

	bobToken := f.getToken(t, bob)

	t.Run("outside the fence", func(t *testing.T) {
		code, res := scan(t, bobToken, scanBody(1000))
		assert.Equal(t, http.StatusForbidden, code)
		assert.Equal(t, attendance.DeniedOutsideGeofence, res.Decision)
		assert.Equal(t, "you must be on campus to mark attendance", res.Reason)
		require.NotNil(t, res.DistanceMeters)
		assert.InDelta(t, 1000, *res.DistanceMeters, 1)
	})

	t.Run("location unavailable", func(t *testing.T) {
		body := marchallObj(t, record.ScanRequest{Payload: f.payload(t, lec), LocationError: "permission denied by user"})
		code, res := scan(t, bobToken, body)
		assert.Equal(t, http.StatusUnprocessableEntity, code)
		assert.Equal(t, attendance.DeniedLocationUnavailable, res.Decision)
		assert.Equal(t, "permission denied by user", res.Reason)
	})

	t.Run("invalid token", func(t *testing.T) {
		loc := f.campus
		code, res := scan(t, bobToken, marchallObj(t, record.ScanRequest{Payload: `{"sessionId": 1}`, Location: &loc}))
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, attendance.DeniedInvalidToken, res.Decision)
		assert.Equal(t, "invalid QR code", res.Reason)
	})
}

func Test_attendanceApi_mine(t *testing.T) {
	f := setup(t)

	teacher := testutil.CreateUser(t, f.userRepo, "Grace Hopper", "grace@example.com", []string{user.RoleTeacher}, true)
	alice := testutil.CreateUser(t, f.userRepo, "Alice", "alice@example.com", []string{user.RoleStudent}, true, "S-001")
	lec := testutil.CreateLecture(t, f.lectureRep, teacher, "Mathematics", "CS-A", "09:00 - 10:30", attendance.Monday)
	token := f.getToken(t, alice)

	req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/me", token)
	f.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var empty record.StudentReport
	unmarchallObj(t, rec, &empty)
	assert.Equal(t, 0, empty.Total)
	assert.Equal(t, 0, empty.AttendanceRate)

	loc := f.campus
	req, rec = newAuthRequest(http.MethodPost, "/v1/attendance/scan", token,
		marchallObj(t, record.ScanRequest{Payload: f.payload(t, lec), Location: &loc}))
	f.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req, rec = newAuthRequest(http.MethodGet, "/v1/attendance/me", token)
	f.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report record.StudentReport
	unmarchallObj(t, rec, &report)
	assert.Equal(t, 1, report.Present)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 100, report.AttendanceRate)
	require.Len(t, report.Records, 1)
	assert.Equal(t, lec.ID, report.Records[0].LectureID)
}
