package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/rollcall/rollcall/core"
	"github.com/rollcall/rollcall/core/attendance"
	"github.com/rollcall/rollcall/core/lecture"
	"github.com/rollcall/rollcall/core/record"
	"github.com/rollcall/rollcall/core/user"
)

type lectureApi struct {
	conf      *core.Config
	auth      *authenticator
	svc       lecture.Service
	recordSvc record.Service
	validate  *validator.Validate
}

func registerLectureAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps ServerDeps) {
	api := lectureApi{
		conf:      deps.Conf,
		auth:      auth,
		svc:       deps.LectureSvc,
		recordSvc: deps.RecordSvc,
		validate:  deps.Validate,
	}

	lg := g.Group("/lectures", jwt, auth.requireRole(user.RoleTeacher))
	lg.POST("", api.create)
	lg.GET("", api.timetable)

	// detail endpoints
	dg := lg.Group("/:id", lectureOwnerMiddleware(auth, api.svc))
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy)
	dg.POST("/qr", api.issueToken)
	dg.GET("/qr.png", api.qrImage)
	dg.POST("/attendance", api.markAttendance)
	dg.GET("/attendance", api.attendance)
	dg.POST("/report", api.sendReport)
}

type (
	// LectureAttendance is the roll of a lecture on a given day.
	LectureAttendance struct {
		record.Summary
		Date    string          `json:"date"`
		Records []record.Record `json:"records"`
	}

	ReportResponse struct {
		record.Summary
		Date string `json:"date"`
		Sent bool   `json:"sent"`
	}
)

// Handlers

func (api *lectureApi) create(ctx echo.Context) error {
	var data lecture.NewLecture
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLecture")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	lec, err := api.svc.Create(ctx.Request().Context(), ctxUsr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating lecture")
	}
	return ctx.JSON(http.StatusCreated, api.svc.Schedule(lec))
}

func (api *lectureApi) timetable(ctx echo.Context) error {
	day, err := bindWeekday(ctx, "day")
	if err != nil {
		return err
	}
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	lectures, err := api.svc.Timetable(ctx.Request().Context(), ctxUsr.ID, day)
	if err != nil {
		return errors.Wrap(err, "querying timetable")
	}
	return ctx.JSON(http.StatusOK, lectures)
}

func (api *lectureApi) retrieve(ctx echo.Context) error {
	lec, err := contextLecture(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.svc.Schedule(lec))
}

func (api *lectureApi) destroy(ctx echo.Context) error {
	lec, err := contextLecture(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), lec.ID); err != nil {
		return errors.Wrap(err, "deleting lecture")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *lectureApi) issueToken(ctx echo.Context) error {
	lec, err := contextLecture(ctx)
	if err != nil {
		return err
	}
	issued, err := api.svc.IssueToken(lec)
	if err != nil {
		return errors.Wrap(err, "issuing token")
	}
	return ctx.JSON(http.StatusCreated, issued)
}

func (api *lectureApi) qrImage(ctx echo.Context) error {
	lec, err := contextLecture(ctx)
	if err != nil {
		return err
	}

	opts := attendance.DefaultImageOptions()
	if opts.Width, err = bindInt(ctx, "width", api.conf.Attendance.QRWidth, 64, 2048); err != nil {
		return err
	}
	if opts.Margin, err = bindInt(ctx, "margin", api.conf.Attendance.QRMargin, 0, 16); err != nil {
		return err
	}

	_, png, err := api.svc.RenderQR(lec, opts)
	if err != nil {
		var widthErr *attendance.WidthError
		if errors.As(err, &widthErr) {
			return invalidParam(err, "width", fmt.Sprintf("must be at least %d for this QR code", widthErr.Min))
		}
		return errors.Wrap(err, "rendering QR code")
	}
	ctx.Response().Header().Set(
		echo.HeaderContentDisposition,
		`attachment; filename="`+attendance.ImageFilename(lec.Subject, lec.ClassName)+`"`,
	)
	return ctx.Blob(http.StatusOK, "image/png", png)
}

func (api *lectureApi) markAttendance(ctx echo.Context) error {
	lec, err := contextLecture(ctx)
	if err != nil {
		return err
	}

	var data record.ManualAttendance
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ManualAttendance")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	recs, summary, err := api.recordSvc.MarkManual(ctx.Request().Context(), lec, ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}

	date := data.Date
	if date == "" {
		date = api.recordSvc.Today().Format("2006-01-02")
	}
	return ctx.JSON(http.StatusOK, LectureAttendance{Summary: summary, Date: date, Records: recs})
}

func (api *lectureApi) attendance(ctx echo.Context) error {
	lec, err := contextLecture(ctx)
	if err != nil {
		return err
	}
	date, err := bindDate(ctx, "date")
	if err != nil {
		return err
	}
	if date.IsZero() {
		date = api.recordSvc.Today()
	}

	recs, summary, err := api.recordSvc.ForLecture(ctx.Request().Context(), lec.ID, date)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	return ctx.JSON(http.StatusOK, LectureAttendance{Summary: summary, Date: date.Format("2006-01-02"), Records: recs})
}

func (api *lectureApi) sendReport(ctx echo.Context) error {
	lec, err := contextLecture(ctx)
	if err != nil {
		return err
	}
	date, err := bindDate(ctx, "date")
	if err != nil {
		return err
	}
	if date.IsZero() {
		date = api.recordSvc.Today()
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	summary, err := api.recordSvc.SendReport(ctx.Request().Context(), lec, ctxUsr, date)
	if err != nil {
		return errors.Wrap(err, "sending report")
	}
	return ctx.JSON(http.StatusAccepted, ReportResponse{Summary: summary, Date: date.Format("2006-01-02"), Sent: true})
}
