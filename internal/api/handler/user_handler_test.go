package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/userhub/user-service/internal/api/middleware"
	"github.com/userhub/user-service/internal/core/domain"
	"github.com/userhub/user-service/internal/core/ports"
)

// stubUserService records the last input of each operation.
type stubUserService struct {
	result   domain.Result[*domain.User]
	list     domain.Result[*ports.ListUsersResult]
	lastGet  ports.GetUserByIDInput
	lastList ports.ListUsersInput
	lastDel  ports.DeleteUserInput
	calls    int
}

func (s *stubUserService) GetByID(_ context.Context, in ports.GetUserByIDInput) domain.Result[*domain.User] {
	s.calls++
	s.lastGet = in
	return s.result
}

func (s *stubUserService) GetByEmail(context.Context, ports.GetUserByEmailInput) domain.Result[*domain.User] {
	s.calls++
	return s.result
}

func (s *stubUserService) Rename(context.Context, ports.RenameUserInput) domain.Result[*domain.User] {
	s.calls++
	return s.result
}

func (s *stubUserService) Delete(_ context.Context, in ports.DeleteUserInput) domain.Result[*domain.User] {
	s.calls++
	s.lastDel = in
	return s.result
}

func (s *stubUserService) Create(context.Context, ports.CreateUserInput) domain.Result[*domain.User] {
	s.calls++
	return s.result
}

func (s *stubUserService) Me(context.Context, domain.CallerContext) domain.Result[*domain.User] {
	s.calls++
	return s.result
}

func (s *stubUserService) List(_ context.Context, in ports.ListUsersInput) domain.Result[*ports.ListUsersResult] {
	s.calls++
	s.lastList = in
	return s.list
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func withCaller(c echo.Context, ext string, role domain.Role) {
	c.Set(middleware.CallerKey, domain.CallerContext{ExternalAuthID: ext, Role: role})
}

func sampleUser() *domain.User {
	return &domain.User{
		ID:             "0b7e2a52-6f43-4d0c-9f40-1b8a2f6c9e01",
		Email:          "alice@example.com",
		DisplayName:    "Alice",
		ExternalAuthID: "ext-alice",
		Role:           domain.RoleUser,
		CreatedAt:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestUserHandler_Get(t *testing.T) {
	e := newEcho()
	svc := &stubUserService{result: domain.OK(sampleUser())}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("0b7e2a52-6f43-4d0c-9f40-1b8a2f6c9e01")
	withCaller(c, "ext-alice", domain.RoleUser)

	if err := h.Get(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.lastGet.Caller == nil || svc.lastGet.Caller.ExternalAuthID != "ext-alice" {
		t.Fatalf("caller not forwarded: %+v", svc.lastGet)
	}
	if !strings.Contains(rec.Body.String(), `"self":"/v1/users/0b7e2a52-6f43-4d0c-9f40-1b8a2f6c9e01"`) {
		t.Fatalf("missing self link: %s", rec.Body.String())
	}
}

func TestUserHandler_FailureIsReturned(t *testing.T) {
	e := newEcho()
	svc := &stubUserService{result: domain.Fail[*domain.User](domain.NotFoundFailure())}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	withCaller(c, "ext-bob", domain.RoleUser)

	err := h.Get(c)
	f, ok := domain.AsFailure(err)
	if !ok || f.Kind != domain.KindNotFound {
		t.Fatalf("expected not found failure, got %v", err)
	}
}

func TestUserHandler_MissingSubject(t *testing.T) {
	e := newEcho()
	svc := &stubUserService{}
	h := NewUserHandler(svc)

	handlers := map[string]echo.HandlerFunc{
		"create": h.Create, "me": h.Me, "get": h.Get, "by-email": h.GetByEmail,
		"rename": h.Rename, "delete": h.Delete, "list": h.List,
	}
	for name, fn := range handlers {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		withCaller(c, "", domain.RoleAdmin)

		f, ok := domain.AsFailure(fn(c))
		if !ok || f.Kind != domain.KindForbidden {
			t.Fatalf("%s: expected forbidden failure, got %v", name, f)
		}
	}
	if svc.calls != 0 {
		t.Fatalf("service must not be called, got %d calls", svc.calls)
	}
}

func TestUserHandler_CreateValidation(t *testing.T) {
	e := newEcho()
	svc := &stubUserService{}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","display_name":""}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	withCaller(c, "ext-alice", domain.RoleUser)

	f, ok := domain.AsFailure(h.Create(c))
	if !ok || f.Kind != domain.KindValidation {
		t.Fatalf("expected validation failure, got %v", f)
	}
	if !strings.Contains(f.Message, "email must be a valid email") || !strings.Contains(f.Message, "display_name is required") {
		t.Fatalf("unexpected message: %q", f.Message)
	}
	if svc.calls != 0 {
		t.Fatalf("service must not be called")
	}
}

func TestUserHandler_Delete(t *testing.T) {
	e := newEcho()
	svc := &stubUserService{result: domain.OK(sampleUser())}
	h := NewUserHandler(svc)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("0b7e2a52-6f43-4d0c-9f40-1b8a2f6c9e01")
	withCaller(c, "ext-alice", domain.RoleUser)

	if err := h.Delete(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if svc.lastDel.UserID != "0b7e2a52-6f43-4d0c-9f40-1b8a2f6c9e01" {
		t.Fatalf("unexpected input: %+v", svc.lastDel)
	}
}

func TestUserHandler_ListQuery(t *testing.T) {
	e := newEcho()
	svc := &stubUserService{list: domain.OK(&ports.ListUsersResult{
		Items: []*domain.User{sampleUser()}, Total: 1, Page: 1, Limit: 20, TotalPages: 1,
	})}
	h := NewUserHandler(svc)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?search=ali&sort_by=name&order=desc&deleted=true", nil), rec)
	withCaller(c, "ext-root", domain.RoleAdmin)

	if err := h.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	in := svc.lastList
	if in.Page != 1 || in.Limit != defaultPageSize || in.SortBy != "name" || !in.Descending || in.Search != "ali" {
		t.Fatalf("unexpected input: %+v", in)
	}
	if in.Deleted == nil || !*in.Deleted {
		t.Fatalf("deleted flag not forwarded")
	}
	if !strings.Contains(rec.Body.String(), `"total_pages":1`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/?deleted=maybe", nil), httptest.NewRecorder())
	withCaller(c, "ext-root", domain.RoleAdmin)
	if f, ok := domain.AsFailure(h.List(c)); !ok || f.Kind != domain.KindValidation {
		t.Fatalf("expected validation failure for deleted=maybe")
	}
}
