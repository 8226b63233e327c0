package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/userhub/user-service/internal/core/domain"
	"github.com/userhub/user-service/internal/core/ports"
)

const defaultPageSize = 20

// UserHandler handles HTTP requests for user records. Every route acts on
// behalf of the authenticated caller; ownership is decided by the service.
type UserHandler struct {
	service ports.UserService
}

func NewUserHandler(service ports.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// Create handles POST /v1/users.
//
// @Summary      Register the caller's profile
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createUserRequest  true  "Profile"
// @Success      201   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /v1/users [post]
func (h *UserHandler) Create(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	var req createUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res := h.service.Create(c.Request().Context(), ports.CreateUserInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Caller:      caller,
	})
	return render(c, http.StatusCreated, res, toUserResponse)
}

// Me handles GET /v1/users/me.
//
// @Summary      Get the caller's own profile
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  userResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/users/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}
	return render(c, http.StatusOK, h.service.Me(c.Request().Context(), caller), toUserResponse)
}

// Get handles GET /v1/users/:id.
//
// @Summary      Get a user by id
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  userResponse
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/users/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	res := h.service.GetByID(c.Request().Context(), ports.GetUserByIDInput{
		UserID: c.Param("id"),
		Caller: &caller,
	})
	return render(c, http.StatusOK, res, toUserResponse)
}

// GetByEmail handles GET /v1/users/by-email/:email.
//
// @Summary      Get a user by email
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        email  path      string  true  "Email address"
// @Success      200    {object}  userResponse
// @Failure      400    {object}  errorResponse
// @Failure      404    {object}  errorResponse
// @Router       /v1/users/by-email/{email} [get]
func (h *UserHandler) GetByEmail(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	res := h.service.GetByEmail(c.Request().Context(), ports.GetUserByEmailInput{
		Email:  c.Param("email"),
		Caller: &caller,
	})
	return render(c, http.StatusOK, res, toUserResponse)
}

// Rename handles PATCH /v1/users/:id.
//
// @Summary      Change a user's display name
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "User id"
// @Param        body  body      renameUserRequest  true  "New display name"
// @Success      200   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /v1/users/{id} [patch]
func (h *UserHandler) Rename(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	var req renameUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res := h.service.Rename(c.Request().Context(), ports.RenameUserInput{
		UserID:      c.Param("id"),
		DisplayName: req.DisplayName,
		Caller:      &caller,
	})
	return render(c, http.StatusOK, res, toUserResponse)
}

// Delete handles DELETE /v1/users/:id.
//
// @Summary      Soft-delete a user
// @Tags         users
// @Security     BearerAuth
// @Param        id   path  string  true  "User id"
// @Success      204
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/users/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	res := h.service.Delete(c.Request().Context(), ports.DeleteUserInput{
		UserID: c.Param("id"),
		Caller: &caller,
	})
	if f := res.Failure(); f != nil {
		return f
	}
	return c.NoContent(http.StatusNoContent)
}

// List handles GET /v1/users.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        search   query     string  false  "Substring of id, email or name"
// @Param        sort_by  query     string  false  "email, name or createdAt"
// @Param        order    query     string  false  "asc or desc"
// @Param        page     query     int     false  "Page, starting at 1"
// @Param        limit    query     int     false  "Page size, at most 100"
// @Param        deleted  query     bool    false  "List soft-deleted users instead"
// @Success      200      {object}  listUsersResponse
// @Failure      400      {object}  errorResponse
// @Failure      403      {object}  errorResponse
// @Router       /v1/users [get]
func (h *UserHandler) List(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	var q listUsersQuery
	if err := bindAndValidate(c, &q); err != nil {
		return err
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = defaultPageSize
	}

	var deleted *bool
	if raw := c.QueryParam("deleted"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return domain.ValidationFailure("deleted must be a boolean")
		}
		deleted = &v
	}

	res := h.service.List(c.Request().Context(), ports.ListUsersInput{
		Search:     q.Search,
		SortBy:     q.SortBy,
		Descending: q.Order == "desc",
		Page:       q.Page,
		Limit:      q.Limit,
		Deleted:    deleted,
		Caller:     &caller,
	})
	return render(c, http.StatusOK, res, toListResponse)
}

// bindAndValidate binds the request and runs the registered validator,
// reporting both kinds of error as validation failures.
func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return domain.ValidationFailure("invalid payload")
	}
	if err := c.Validate(dst); err != nil {
		return domain.ValidationFailure(err.Error())
	}
	return nil
}
