package ports

import (
	"context"

	"github.com/userhub/user-service/internal/core/domain"
)

// A nil Caller means the call comes from a trusted path with no ownership
// restriction.

type GetUserByIDInput struct {
	UserID string
	Caller *domain.CallerContext
}

type GetUserByEmailInput struct {
	Email  string
	Caller *domain.CallerContext
}

type RenameUserInput struct {
	UserID      string
	DisplayName string
	Caller      *domain.CallerContext
}

type DeleteUserInput struct {
	UserID string
	Caller *domain.CallerContext
}

type CreateUserInput struct {
	Email       string
	DisplayName string
	Caller      domain.CallerContext
}

type ListUsersInput struct {
	Search     string
	SortBy     string
	Descending bool
	Page       int
	Limit      int
	Deleted    *bool
	Caller     *domain.CallerContext
}

// ListUsersResult is returned by List.
type ListUsersResult struct {
	Items      []*domain.User
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// UserService defines the use-case operations on user records.
type UserService interface {
	GetByID(ctx context.Context, in GetUserByIDInput) domain.Result[*domain.User]
	GetByEmail(ctx context.Context, in GetUserByEmailInput) domain.Result[*domain.User]
	Rename(ctx context.Context, in RenameUserInput) domain.Result[*domain.User]
	Delete(ctx context.Context, in DeleteUserInput) domain.Result[*domain.User]
	Create(ctx context.Context, in CreateUserInput) domain.Result[*domain.User]
	Me(ctx context.Context, caller domain.CallerContext) domain.Result[*domain.User]
	List(ctx context.Context, in ListUsersInput) domain.Result[*ListUsersResult]
}

// AuthService is the local identity provider: registration and login.
type AuthService interface {
	Register(ctx context.Context, email, password, displayName string) (*domain.Credential, error)
	Login(ctx context.Context, email, password string) (string, *domain.Credential, error)
}
