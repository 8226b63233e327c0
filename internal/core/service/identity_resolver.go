package service

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/userhub/user-service/internal/core/domain"
	"github.com/userhub/user-service/internal/core/ports"
)

const maxExternalAuthIDLen = 255

// IdentityResolver maps an external auth subject to the caller's own
// non-deleted user record. It has no side effects.
type IdentityResolver struct {
	repo ports.UserRepository
}

func NewIdentityResolver(repo ports.UserRepository) *IdentityResolver {
	return &IdentityResolver{repo: repo}
}

// Resolve returns NotFound when no current record carries externalAuthID.
// Callers treat that the same as "caller has no profile yet".
func (r *IdentityResolver) Resolve(ctx context.Context, externalAuthID string) domain.Result[*domain.User] {
	if !validExternalAuthID(externalAuthID) {
		return domain.Fail[*domain.User](domain.ValidationFailure("invalid external auth id"))
	}

	user, err := r.repo.GetByExternalAuthID(ctx, externalAuthID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.Fail[*domain.User](domain.NotFoundFailure())
		}
		return domain.Fail[*domain.User](domain.InfrastructureFailure(err))
	}
	// Adapters already filter deleted rows; guard against one that doesn't.
	if user.IsDeleted {
		return domain.Fail[*domain.User](domain.NotFoundFailure())
	}
	return domain.OK(user)
}

func validExternalAuthID(id string) bool {
	if id == "" || len(id) > maxExternalAuthIDLen || strings.TrimSpace(id) != id {
		return false
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
