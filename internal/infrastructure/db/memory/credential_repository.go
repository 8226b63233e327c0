package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/userhub/user-service/internal/core/domain"
)

// CredentialRepository stores local identity-provider accounts keyed by
// lower-cased email.
type CredentialRepository struct {
	mu    sync.RWMutex
	creds map[string]*domain.Credential
}

func NewCredentialRepository() *CredentialRepository {
	return &CredentialRepository{creds: make(map[string]*domain.Credential)}
}

func (r *CredentialRepository) FindByEmail(_ context.Context, email string) (*domain.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.creds[strings.ToLower(email)]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *c
	return &clone, nil
}

func (r *CredentialRepository) Create(_ context.Context, cred *domain.Credential) (*domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(cred.Email)
	if _, exists := r.creds[key]; exists {
		return nil, domain.ErrUserExists
	}
	stored := *cred
	r.creds[key] = &stored
	out := stored
	return &out, nil
}

func (r *CredentialRepository) UpdateRole(_ context.Context, id string, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.creds {
		if c.ID == id {
			c.Role = role
			c.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return domain.ErrUserNotFound
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
