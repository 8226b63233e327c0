package ports

import (
	"context"

	"github.com/userhub/user-service/internal/core/domain"
)

// Sort fields accepted by List.
const (
	SortByEmail     = "email"
	SortByName      = "name"
	SortByCreatedAt = "createdAt"
)

// ListUsersFilter carries the query parameters for a paged user listing.
type ListUsersFilter struct {
	Search     string // optional: partial match on id, email or display name
	SortBy     string // one of SortBy*; empty = createdAt
	Descending bool
	Page       int   // 1-based
	Limit      int   // rows per page
	Deleted    *bool // nil = non-deleted only; otherwise match is_deleted exactly
}

// UserRepository is the persistence port for user records. Every read
// excludes soft-deleted records unless the filter asks for them.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByExternalAuthID(ctx context.Context, externalAuthID string) (*domain.User, error)
	// List returns a page of users matching filter and the total count.
	List(ctx context.Context, filter ListUsersFilter) ([]*domain.User, int64, error)
	// Create returns domain.ErrUserExists on a uniqueness violation.
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	// SoftDelete sets is_deleted and deleted_at; it never removes the row.
	SoftDelete(ctx context.Context, user *domain.User) error
	Ping(ctx context.Context) error
}
