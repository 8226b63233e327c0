package ports

import (
	"context"

	"github.com/userhub/user-service/internal/core/domain"
)

// IdentityProviderAdmin manages identities in the external identity provider.
type IdentityProviderAdmin interface {
	// EnsureAdminUser converges to "this identity exists and has admin
	// privileges" and returns its external auth id. Safe to call repeatedly.
	EnsureAdminUser(ctx context.Context, email, password, displayName string) (string, error)
}

// CredentialRepository persists accounts of the local identity provider.
type CredentialRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.Credential, error)
	Create(ctx context.Context, cred *domain.Credential) (*domain.Credential, error)
	UpdateRole(ctx context.Context, id string, role domain.Role) error
}

// Locker guards a critical section across processes.
type Locker interface {
	// Acquire returns domain.ErrLockNotAcquired when the lock is held elsewhere.
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}
