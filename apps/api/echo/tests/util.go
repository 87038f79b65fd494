package tests

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/rollcall/rollcall/apps/api/echo"
	"github.com/rollcall/rollcall/core"
	"github.com/rollcall/rollcall/core/attendance"
	"github.com/rollcall/rollcall/core/lecture"
	"github.com/rollcall/rollcall/core/record"
	"github.com/rollcall/rollcall/core/testutil"
	"github.com/rollcall/rollcall/core/user"
	emailsvc "github.com/rollcall/rollcall/services/email"
	logsvc "github.com/rollcall/rollcall/services/logger"
	inmemdb "github.com/rollcall/rollcall/storage/database/inmem"
)

// Monday 12 October 2026, during the 09:00 - 10:30 lecture
var now = time.Date(2026, time.October, 12, 9, 15, 0, 0, time.UTC)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type fixture struct {
	app        Server
	conf       *core.Config
	mailSvc    *emailsvc.ConsoleServiceMock
	userRepo   user.Repository
	lectureRep lecture.Repository
	lectureSvc lecture.Service
	campus     attendance.GeoCoordinate
}

func setup(t *testing.T) *fixture {
	testutil.MockNow(t, &record.NowFunc, now)
	testutil.MockNow(t, &attendance.NowFunc, now)
	testutil.MockNow(t, &lecture.NowFunc, now)

	conf := core.NewTestConfig()
	conf.WorkDir = core.Getwd()
	logger := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
	core.ParseEmailTemplates(conf, logger)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	lecture.InitValidators(validate, translator)

	// set up DB & repos
	db := inmemdb.Open()
	f := &fixture{
		conf:       conf,
		userRepo:   inmemdb.NewUserRepository(db),
		lectureRep: inmemdb.NewLectureRepository(db),
		campus:     testutil.Campus(conf),
	}

	// set up services
	pipeline := testutil.NewPipeline(t, conf)
	f.mailSvc = emailsvc.NewConsoleServiceMock(conf, logger)
	userSvc := user.NewService(f.userRepo)
	f.lectureSvc = lecture.NewService(f.lectureRep, pipeline, conf)
	recordSvc := record.NewService(inmemdb.NewRecordRepository(db), f.lectureSvc, userSvc, f.mailSvc, pipeline, conf)

	// set up server
	f.app = NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		DB:         db,
		UserSvc:    userSvc,
		LectureSvc: f.lectureSvc,
		RecordSvc:  recordSvc,
		Validate:   validate,
		Translator: translator,
	})
	t.Cleanup(func() { _ = f.app.Close() })
	return f
}

func (f *fixture) serve(req *http.Request, rec *httptest.ResponseRecorder) {
	f.app.ServeHTTP(rec, req)
}

func (f *fixture) payload(t *testing.T, lec lecture.Lecture) string {
	issued, err := f.lectureSvc.IssueToken(lec)
	if err != nil {
		t.Fatalf("IssueToken() failed: %v", err)
	}
	return issued.Payload
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (f *fixture) getToken(t *testing.T, usr user.User) string {
	token, err := GenerateToken(GetUserClaims(usr, f.conf), f.conf.SecretKey)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarchallObj(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarchallObj(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, f *fixture, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			f.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}
