package service

import (
	"context"

	"github.com/userhub/user-service/internal/core/domain"
)

// Decision is the outcome of an ownership check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Reasons reported to the decision hook.
const (
	ReasonAdmin      = "admin"
	ReasonOwner      = "owner"
	ReasonNotOwner   = "not_owner"
	ReasonUnresolved = "unresolved"
	ReasonAdminOnly  = "admin_only"
)

// PolicyOption configures an OwnershipPolicy.
type PolicyOption func(*OwnershipPolicy)

// WithAdminOnlyLookups turns off the ownership path: only admins are allowed.
func WithAdminOnlyLookups() PolicyOption {
	return func(p *OwnershipPolicy) { p.adminOnly = true }
}

// WithDecisionHook registers a callback invoked for every decision.
func WithDecisionHook(fn func(d Decision, reason string)) PolicyOption {
	return func(p *OwnershipPolicy) { p.hook = fn }
}

// OwnershipPolicy decides whether a caller may act on a target user. It only
// reads the store and keeps no per-request state.
type OwnershipPolicy struct {
	resolver  *IdentityResolver
	adminOnly bool
	hook      func(Decision, string)
}

func NewOwnershipPolicy(resolver *IdentityResolver, opts ...PolicyOption) *OwnershipPolicy {
	p := &OwnershipPolicy{resolver: resolver}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Authorize applies the admin override first, then the ownership check.
// The decision never depends on whether targetUserID exists, only on whether
// the caller's own identity resolves to it. A non-nil error is an
// infrastructure failure while resolving the caller.
func (p *OwnershipPolicy) Authorize(ctx context.Context, callerExternalAuthID string, callerStoredRole domain.Role, targetUserID string) (Decision, error) {
	return p.authorize(callerStoredRole, targetUserID, func() domain.Result[*domain.User] {
		return p.resolver.Resolve(ctx, callerExternalAuthID)
	})
}

// AuthorizeCaller resolves the caller's stored record once and uses its role
// in place of the token claim.
func (p *OwnershipPolicy) AuthorizeCaller(ctx context.Context, caller domain.CallerContext, targetUserID string) (Decision, error) {
	res := p.resolver.Resolve(ctx, caller.ExternalAuthID)
	if !res.IsOK() {
		return p.unresolved(res.Failure())
	}
	return p.authorize(res.Value().Role, targetUserID, func() domain.Result[*domain.User] { return res })
}

// authorize is the single decision path. self is only called when the role
// alone does not decide.
func (p *OwnershipPolicy) authorize(storedRole domain.Role, targetUserID string, self func() domain.Result[*domain.User]) (Decision, error) {
	if storedRole == domain.RoleAdmin {
		return p.decide(Allow, ReasonAdmin), nil
	}
	if p.adminOnly {
		return p.decide(Deny, ReasonAdminOnly), nil
	}

	res := self()
	if !res.IsOK() {
		return p.unresolved(res.Failure())
	}
	return p.ownership(res.Value(), targetUserID), nil
}

func (p *OwnershipPolicy) ownership(self *domain.User, targetUserID string) Decision {
	if self.ID == targetUserID {
		return p.decide(Allow, ReasonOwner)
	}
	return p.decide(Deny, ReasonNotOwner)
}

func (p *OwnershipPolicy) unresolved(f *domain.Failure) (Decision, error) {
	if f.Kind == domain.KindInfrastructure {
		return Deny, f
	}
	return p.decide(Deny, ReasonUnresolved), nil
}

func (p *OwnershipPolicy) decide(d Decision, reason string) Decision {
	if p.hook != nil {
		p.hook(d, reason)
	}
	return d
}
