package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/rollcall/rollcall/core/lecture"
	"github.com/rollcall/rollcall/core/user"
)

var errObjNotFoundInCtx = errors.New("object not found in echo.Context")

// lectureOwnerMiddleware loads the :id lecture in the context when it belongs to the user (or the user is admin).
func lectureOwnerMiddleware(auth *authenticator, svc lecture.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := auth.contextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			lec, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == lecture.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding lecture by ID")
			}
			// someone else's lecture does not exist for you
			if lec.OwnerID != ctxUsr.ID && !ctxUsr.IsAdmin() {
				return errHttpNotFound
			}
			ctx.Set(contextObjectKey, lec)
			return next(ctx)
		}
	}
}

func contextLecture(ctx echo.Context) (lecture.Lecture, error) {
	lec, ok := ctx.Get(contextObjectKey).(lecture.Lecture)
	if !ok {
		return lecture.Lecture{}, errors.Wrap(errObjNotFoundInCtx, "retrieving lecture from context")
	}
	return lec, nil
}

// ctxUserOrAdminMiddleware loads the :id user in the context when it is the context user or the latter is admin.
func ctxUserOrAdminMiddleware(auth *authenticator, svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := auth.contextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			if ctx.Param("id") == ctxUsr.ID || ctxUsr.IsAdmin() {
				if usr, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err == nil {
					ctx.Set(contextObjectKey, usr)
					return next(ctx)
				} else if errors.Cause(err) != user.ErrNotFound {
					return errors.Wrap(err, "finding user by ID")
				}
			}
			return errHttpNotFound
		}
	}
}
