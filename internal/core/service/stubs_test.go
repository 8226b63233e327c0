package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/userhub/user-service/internal/core/domain"
	"github.com/userhub/user-service/internal/core/ports"
)

var discardLogger = zerolog.Nop()

const (
	idU1 = "11111111-1111-4111-8111-111111111111"
	idU2 = "22222222-2222-4222-8222-222222222222"
	idU3 = "33333333-3333-4333-8333-333333333333"
	idU9 = "99999999-9999-4999-8999-999999999999"
)

// ---------------------------------------------------------------------------
// In-memory stub user repository
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	mu          sync.Mutex
	users       map[string]*domain.User
	createCalls int
	updateCalls int
	extLookups  int
	readErr     error // if set, every read returns this error
	writeErr    error // if set, Create/Update/SoftDelete return this error
}

func newStubUserRepo(users ...*domain.User) *stubUserRepo {
	r := &stubUserRepo{users: make(map[string]*domain.User)}
	for _, u := range users {
		clone := *u
		r.users[u.ID] = &clone
	}
	return r
}

func (r *stubUserRepo) find(match func(*domain.User) bool) (*domain.User, error) {
	if r.readErr != nil {
		return nil, r.readErr
	}
	for _, u := range r.users {
		if !u.IsDeleted && match(u) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r *stubUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *stubUserRepo) GetByExternalAuthID(_ context.Context, ext string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extLookups++
	return r.find(func(u *domain.User) bool { return u.ExternalAuthID == ext })
}

func (r *stubUserRepo) List(_ context.Context, f ports.ListUsersFilter) ([]*domain.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return nil, 0, r.readErr
	}
	var matched []*domain.User
	for _, u := range r.users {
		if f.Deleted == nil && u.IsDeleted {
			continue
		}
		if f.Deleted != nil && u.IsDeleted != *f.Deleted {
			continue
		}
		if f.Search != "" && !strings.Contains(u.Email+u.DisplayName+u.ID, f.Search) {
			continue
		}
		clone := *u
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Email < matched[j].Email })

	total := int64(len(matched))
	skip := (f.Page - 1) * f.Limit
	if skip > len(matched) {
		return []*domain.User{}, total, nil
	}
	end := skip + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[skip:end], total, nil
}

func (r *stubUserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if r.writeErr != nil {
		return r.writeErr
	}
	for _, existing := range r.users {
		if !existing.IsDeleted && (existing.Email == u.Email || existing.ExternalAuthID == u.ExternalAuthID) {
			return domain.ErrUserExists
		}
	}
	clone := *u
	r.users[u.ID] = &clone
	return nil
}

func (r *stubUserRepo) Update(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	if r.writeErr != nil {
		return r.writeErr
	}
	if _, ok := r.users[u.ID]; !ok {
		return domain.ErrUserNotFound
	}
	clone := *u
	r.users[u.ID] = &clone
	return nil
}

func (r *stubUserRepo) SoftDelete(ctx context.Context, u *domain.User) error {
	return r.Update(ctx, u)
}

func (r *stubUserRepo) Ping(context.Context) error { return nil }

func (r *stubUserRepo) stored(id string) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

func (r *stubUserRepo) countByEmail(email string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, u := range r.users {
		if u.Email == email {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Identity provider, locker and credential stubs
// ---------------------------------------------------------------------------

type stubIdP struct {
	calls      int
	externalID string
	err        error
}

func (p *stubIdP) EnsureAdminUser(_ context.Context, _, _, _ string) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return p.externalID, nil
}

type stubLocker struct {
	held     bool
	acquired int
	released int
}

func (l *stubLocker) Acquire(_ context.Context, _ string) (func(context.Context) error, error) {
	if l.held {
		return nil, domain.ErrLockNotAcquired
	}
	l.held = true
	l.acquired++
	return func(context.Context) error {
		l.held = false
		l.released++
		return nil
	}, nil
}

type stubCredentialRepo struct {
	creds map[string]*domain.Credential
}

func newStubCredentialRepo() *stubCredentialRepo {
	return &stubCredentialRepo{creds: make(map[string]*domain.Credential)}
}

func (r *stubCredentialRepo) FindByEmail(_ context.Context, email string) (*domain.Credential, error) {
	c, ok := r.creds[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *c
	return &clone, nil
}

func (r *stubCredentialRepo) Create(_ context.Context, c *domain.Credential) (*domain.Credential, error) {
	if _, exists := r.creds[c.Email]; exists {
		return nil, domain.ErrUserExists
	}
	clone := *c
	r.creds[c.Email] = &clone
	out := clone
	return &out, nil
}

func (r *stubCredentialRepo) UpdateRole(_ context.Context, id string, role domain.Role) error {
	for _, c := range r.creds {
		if c.ID == id {
			c.Role = role
			return nil
		}
	}
	return domain.ErrUserNotFound
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func fixtureUser(id, ext, email string, role domain.Role) *domain.User {
	return &domain.User{
		ID:             id,
		Email:          email,
		DisplayName:    "User " + id[:4],
		ExternalAuthID: ext,
		Role:           role,
	}
}

func caller(ext string, role domain.Role) *domain.CallerContext {
	return &domain.CallerContext{ExternalAuthID: ext, Role: role}
}
