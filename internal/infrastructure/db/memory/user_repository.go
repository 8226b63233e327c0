// Package memory holds process-local store adapters used for development
// and single-instance deployments.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/userhub/user-service/internal/core/domain"
	"github.com/userhub/user-service/internal/core/ports"
)

// UserRepository implements ports.UserRepository over a map guarded by a
// RWMutex. Records are cloned on the way in and out.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*domain.User)}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, func(u *domain.User) bool { return u.ID == id })
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, func(u *domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *UserRepository) GetByExternalAuthID(ctx context.Context, externalAuthID string) (*domain.User, error) {
	return r.findOne(ctx, func(u *domain.User) bool { return u.ExternalAuthID == externalAuthID })
}

func (r *UserRepository) findOne(ctx context.Context, match func(*domain.User) bool) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if !u.IsDeleted && match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// List applies the same filter, sort and paging rules as the database adapters.
func (r *UserRepository) List(ctx context.Context, f ports.ListUsersFilter) ([]*domain.User, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(f.Search)
	matched := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		if f.Deleted == nil && u.IsDeleted {
			continue
		}
		if f.Deleted != nil && u.IsDeleted != *f.Deleted {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(u.ID), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) &&
			!strings.Contains(strings.ToLower(u.DisplayName), search) {
			continue
		}
		matched = append(matched, cloneUser(u))
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if f.Descending {
			a, b = b, a
		}
		switch f.SortBy {
		case ports.SortByEmail:
			return a.Email < b.Email
		case ports.SortByName:
			return a.DisplayName < b.DisplayName
		default:
			if a.CreatedAt.Equal(b.CreatedAt) {
				return a.ID < b.ID
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})

	total := int64(len(matched))
	skip := (f.Page - 1) * f.Limit
	if skip < 0 {
		skip = 0
	}
	if skip >= len(matched) {
		return []*domain.User{}, total, nil
	}
	end := skip + f.Limit
	if f.Limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[skip:end], total, nil
}

// Create enforces uniqueness of email and external auth id among
// non-deleted records.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.ID]; exists {
		return domain.ErrUserExists
	}
	for _, u := range r.users {
		if u.IsDeleted {
			continue
		}
		if strings.EqualFold(u.Email, user.Email) || u.ExternalAuthID == user.ExternalAuthID {
			return domain.ErrUserExists
		}
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.users[user.ID]
	if !ok || current.IsDeleted {
		return domain.ErrUserNotFound
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *UserRepository) SoftDelete(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.users[user.ID]
	if !ok || current.IsDeleted {
		return domain.ErrUserNotFound
	}
	current.IsDeleted = true
	current.DeletedAt = cloneTime(user.DeletedAt)
	current.UpdatedAt = cloneTime(user.UpdatedAt)
	return nil
}

func (r *UserRepository) Ping(context.Context) error { return nil }

func cloneUser(u *domain.User) *domain.User {
	clone := *u
	clone.UpdatedAt = cloneTime(u.UpdatedAt)
	clone.DeletedAt = cloneTime(u.DeletedAt)
	return &clone
}
