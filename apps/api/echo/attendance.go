package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/rollcall/rollcall/core/attendance"
	"github.com/rollcall/rollcall/core/record"
	"github.com/rollcall/rollcall/core/user"
)

// decisionStatus maps each scan decision to the status code it is answered with.
var decisionStatus = map[attendance.Verdict]int{
	attendance.Admitted:                  http.StatusCreated,
	attendance.DeniedLocationUnavailable: http.StatusUnprocessableEntity,
	attendance.DeniedInvalidToken:        http.StatusBadRequest,
	attendance.DeniedOutsideGeofence:     http.StatusForbidden,
	record.DecisionAlreadyMarked:         http.StatusConflict,
}

// maxScanBody bounds a scan request. Its fields are not validated, the decision covers them.
const maxScanBody = "64K"

type attendanceApi struct {
	auth *authenticator
	svc  record.Service
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps ServerDeps) {
	api := attendanceApi{
		auth: auth,
		svc:  deps.RecordSvc,
	}

	ag := g.Group("/attendance", jwt, auth.requireRole(user.RoleStudent))
	ag.POST("/scan", api.scan, middleware.BodyLimit(maxScanBody))
	ag.GET("/me", api.mine)
}

// Handlers

func (api *attendanceApi) scan(ctx echo.Context) error {
	var data record.ScanRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScanRequest")
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.svc.Scan(ctx.Request().Context(), ctxUsr, data)
	if err != nil && errors.Cause(err) != record.ErrAlreadyMarked {
		return errors.Wrap(err, "scanning")
	}

	code, ok := decisionStatus[res.Decision]
	if !ok {
		return errors.Errorf("unknown scan decision %q", res.Decision)
	}
	return ctx.JSON(code, res)
}

func (api *attendanceApi) mine(ctx echo.Context) error {
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	report, err := api.svc.ForStudent(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	return ctx.JSON(http.StatusOK, report)
}
