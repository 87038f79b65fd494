package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/rollcall/rollcall/core"
	"github.com/rollcall/rollcall/core/attendance"
	"github.com/rollcall/rollcall/core/record"
	"github.com/rollcall/rollcall/core/user"
)

func invalidParam(err error, param, msg string) error {
	return core.NewValidationError(err, core.FieldError{Field: param, Error: msg})
}

// bindDate reads a YYYY-MM-DD query param. The zero time is returned when it is absent.
func bindDate(ctx echo.Context, param string) (time.Time, error) {
	val := core.CleanString(ctx.QueryParam(param))
	if val == "" {
		return time.Time{}, nil
	}
	date, err := record.ParseDate(val)
	if err != nil {
		return time.Time{}, invalidParam(err, param, "date must be formatted as YYYY-MM-DD")
	}
	return date, nil
}

// bindWeekday reads a day name query param. Zero is returned when it is absent.
func bindWeekday(ctx echo.Context, param string) (attendance.Weekday, error) {
	val := core.CleanString(ctx.QueryParam(param))
	if val == "" {
		return 0, nil
	}
	day, err := attendance.ParseWeekday(val)
	if err != nil {
		return 0, invalidParam(err, param, "must be a day of the week")
	}
	return day, nil
}

// bindInt reads an int query param within [min, max], def is returned when it is absent.
func bindInt(ctx echo.Context, param string, def, min, max int) (int, error) {
	val := core.CleanString(ctx.QueryParam(param))
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, invalidParam(err, param, "must be an integer")
	}
	if n < min || n > max {
		return 0, invalidParam(
			errors.Errorf("%s out of range", param),
			param, "must be between "+strconv.Itoa(min)+" and "+strconv.Itoa(max),
		)
	}
	return n, nil
}

// bindUserFilter reads ?search=&role=&role=&is_active=
func bindUserFilter(ctx echo.Context) (user.QueryFilter, error) {
	q := ctx.QueryParams()
	filter := user.QueryFilter{Search: q.Get("search")}
	for _, role := range q["role"] {
		if role = strings.TrimSpace(role); role != "" {
			filter.Roles = append(filter.Roles, role)
		}
	}
	if val := core.CleanString(q.Get("is_active")); val != "" {
		active, err := strconv.ParseBool(val)
		if err != nil {
			return filter, invalidParam(err, "is_active", "must be a boolean")
		}
		filter.IsActive = &active
	}
	return filter, nil
}
