package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/rollcall/rollcall/core"
	"github.com/rollcall/rollcall/core/lecture"
	"github.com/rollcall/rollcall/core/record"
	"github.com/rollcall/rollcall/core/user"
)

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound       = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(
	logger core.Logger,
	translator ut.Translator,
	jwtConf middleware.JWTConfig,
	signalShutdown func(),
) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if fields, ok := core.FieldErrors(cause, translator); ok {
			code = http.StatusBadRequest
			message = fields
			if len(fields) == 0 {
				message = cause.Error()
			}
		} else {
			switch origErr := cause.(type) {
			case *echo.HTTPError:
				if origErr == middleware.ErrJWTMissing {
					code = http.StatusUnauthorized
					message = origErr.Message
					break
				}
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
				code = origErr.Code
				message = origErr.Message
			default:
				switch cause {
				case lecture.ErrNotFound, record.ErrNotFound, user.ErrNotFound:
					code = http.StatusNotFound
					message = cause.Error()
				case record.ErrAlreadyMarked:
					code = http.StatusConflict
					message = cause.Error()
				default: // any other error is a server error
					code = http.StatusInternalServerError
					msg := http.StatusText(http.StatusInternalServerError)
					message = msg

					var usr user.User
					if claims, cErr := getContextClaims(ctx, jwtConf); cErr == nil {
						usr.ID = claims.Subject
						usr.Name = claims.Name
						usr.Email = claims.Email
					}
					logger.Error(msg, errors.Wrap(err, msg), usr)

					// shutting down...
					if core.IsShutdown(err) {
						signalShutdown()
					}
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
