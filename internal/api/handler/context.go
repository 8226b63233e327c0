package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/userhub/user-service/internal/api/middleware"
	"github.com/userhub/user-service/internal/core/domain"
)

// ctxCaller extracts the caller injected by the Auth middleware. A token
// without a subject cannot own anything, so the request is refused before
// any service call.
func ctxCaller(c echo.Context) (domain.CallerContext, error) {
	caller, _ := c.Get(middleware.CallerKey).(domain.CallerContext)
	if !caller.HasIdentity() {
		return domain.CallerContext{}, domain.ForbiddenFailure("token missing subject")
	}
	return caller, nil
}

// render writes the success branch of r as JSON and hands the failure branch
// to the HTTP error handler.
func render[T any](c echo.Context, status int, r domain.Result[T], view func(T) any) error {
	return domain.Match(r,
		func(v T) error { return c.JSON(status, view(v)) },
		func(f *domain.Failure) error { return f },
	)
}
