package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/userhub/user-service/internal/core/domain"
)

func TestIdentityResolver_Resolve_Found(t *testing.T) {
	repo := newStubUserRepo(fixtureUser(idU1, "ext-1", "u1@example.com", domain.RoleUser))
	r := NewIdentityResolver(repo)

	res := r.Resolve(context.Background(), "ext-1")
	if !res.IsOK() {
		t.Fatalf("expected success, got %v", res.Failure())
	}
	if res.Value().ID != idU1 {
		t.Fatalf("unexpected user: %+v", res.Value())
	}
}

func TestIdentityResolver_Resolve_NotFound(t *testing.T) {
	r := NewIdentityResolver(newStubUserRepo())

	res := r.Resolve(context.Background(), "ext-unknown")
	if res.IsOK() || res.Failure().Kind != domain.KindNotFound {
		t.Fatalf("expected not_found, got %+v", res.Failure())
	}
}

func TestIdentityResolver_Resolve_ExcludesDeleted(t *testing.T) {
	u := fixtureUser(idU1, "ext-1", "u1@example.com", domain.RoleUser)
	now := time.Now()
	u.IsDeleted = true
	u.DeletedAt = &now
	r := NewIdentityResolver(newStubUserRepo(u))

	res := r.Resolve(context.Background(), "ext-1")
	if res.IsOK() || res.Failure().Kind != domain.KindNotFound {
		t.Fatalf("deleted record must not resolve, got %+v", res)
	}
}

func TestIdentityResolver_Resolve_Validation(t *testing.T) {
	repo := newStubUserRepo()
	r := NewIdentityResolver(repo)

	for _, ext := range []string{"", " ext-1", "ext 1", "ext\n1"} {
		res := r.Resolve(context.Background(), ext)
		if res.IsOK() || res.Failure().Kind != domain.KindValidation {
			t.Errorf("%q: expected validation failure, got %+v", ext, res.Failure())
		}
	}
	if repo.extLookups != 0 {
		t.Fatalf("validation must happen before store access, got %d lookups", repo.extLookups)
	}
}

func TestIdentityResolver_Resolve_StoreError(t *testing.T) {
	repo := newStubUserRepo()
	repo.readErr = errors.New("connection reset")
	r := NewIdentityResolver(repo)

	res := r.Resolve(context.Background(), "ext-1")
	if res.IsOK() || res.Failure().Kind != domain.KindInfrastructure {
		t.Fatalf("expected infrastructure failure, got %+v", res.Failure())
	}
	if !errors.Is(res.Failure(), repo.readErr) {
		t.Fatalf("failure must wrap the store error")
	}
}
