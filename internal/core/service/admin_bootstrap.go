package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/userhub/user-service/internal/core/domain"
	"github.com/userhub/user-service/internal/core/ports"
)

// BootstrapState is the terminal state reached by a bootstrap run.
type BootstrapState string

const (
	BootstrapDisabled     BootstrapState = "disabled"
	BootstrapExisting     BootstrapState = "existing"
	BootstrapProvisioning BootstrapState = "provisioning"
)

const bootstrapLockKey = "bootstrap:admin"

var ErrBootstrapRunning = errors.New("admin bootstrap already running")

// BootstrapOption configures an AdminBootstrapper.
type BootstrapOption func(*AdminBootstrapper)

// WithLocker serialises runs across processes sharing the same store.
func WithLocker(l ports.Locker) BootstrapOption {
	return func(b *AdminBootstrapper) { b.locker = l }
}

// AdminBootstrapper ensures the configured admin exists in both the identity
// provider and the user store. It is idempotent: a second run with the same
// seed lands in BootstrapExisting and creates nothing.
type AdminBootstrapper struct {
	repo    ports.UserRepository
	idp     ports.IdentityProviderAdmin
	seed    domain.AdminSeed
	locker  ports.Locker
	log     zerolog.Logger
	now     func() time.Time
	running atomic.Bool
}

func NewAdminBootstrapper(
	repo ports.UserRepository,
	idp ports.IdentityProviderAdmin,
	seed domain.AdminSeed,
	log zerolog.Logger,
	opts ...BootstrapOption,
) *AdminBootstrapper {
	seed.Email = normalizeEmail(seed.Email)
	seed.DisplayName = strings.TrimSpace(seed.DisplayName)
	b := &AdminBootstrapper{
		repo: repo,
		idp:  idp,
		seed: seed,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run executes the bootstrap. A disabled or incomplete seed is a skip, not an
// error. Any provider or store failure is returned so startup can halt.
func (b *AdminBootstrapper) Run(ctx context.Context) (BootstrapState, error) {
	if !b.seed.Complete() {
		b.log.Info().
			Bool("enabled", b.seed.Enabled).
			Bool("email_set", b.seed.Email != "").
			Bool("password_set", b.seed.Password != "").
			Bool("display_name_set", b.seed.DisplayName != "").
			Msg("admin seeding disabled or incomplete, skipping")
		return BootstrapDisabled, nil
	}

	if !b.running.CompareAndSwap(false, true) {
		return "", ErrBootstrapRunning
	}
	defer b.running.Store(false)

	if b.locker != nil {
		release, err := b.locker.Acquire(ctx, bootstrapLockKey)
		if err != nil {
			return "", fmt.Errorf("admin bootstrap: acquire lock: %w", err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				b.log.Warn().Err(err).Msg("failed to release bootstrap lock")
			}
		}()
	}

	existing, err := b.repo.GetByEmail(ctx, b.seed.Email)
	switch {
	case err == nil:
		return b.ensureExisting(ctx, existing)
	case errors.Is(err, domain.ErrUserNotFound):
		return b.provision(ctx)
	default:
		return "", fmt.Errorf("admin bootstrap: lookup %s: %w", b.seed.Email, err)
	}
}

func (b *AdminBootstrapper) ensureExisting(ctx context.Context, existing *domain.User) (BootstrapState, error) {
	externalID, err := b.idp.EnsureAdminUser(ctx, b.seed.Email, b.seed.Password, b.seed.DisplayName)
	if err != nil {
		return BootstrapExisting, fmt.Errorf("admin bootstrap: ensure provider admin: %w", err)
	}

	evt := b.log.Info()
	if existing.ExternalAuthID != externalID || !existing.IsAdmin() {
		evt = b.log.Warn()
	}
	evt.Str("user_id", existing.ID).
		Str("role", string(existing.Role)).
		Bool("external_id_match", existing.ExternalAuthID == externalID).
		Msg("admin user already exists")
	return BootstrapExisting, nil
}

func (b *AdminBootstrapper) provision(ctx context.Context) (BootstrapState, error) {
	externalID, err := b.idp.EnsureAdminUser(ctx, b.seed.Email, b.seed.Password, b.seed.DisplayName)
	if err != nil {
		return BootstrapProvisioning, fmt.Errorf("admin bootstrap: ensure provider admin: %w", err)
	}

	user := &domain.User{
		ID:             uuid.NewString(),
		Email:          b.seed.Email,
		DisplayName:    b.seed.DisplayName,
		ExternalAuthID: externalID,
		Role:           domain.RoleAdmin,
		CreatedAt:      b.now(),
	}
	if err := b.repo.Create(ctx, user); err != nil {
		return BootstrapProvisioning, fmt.Errorf("admin bootstrap: create user: %w", err)
	}

	b.log.Info().Str("user_id", user.ID).Str("external_auth_id", externalID).Msg("admin user provisioned")
	return BootstrapProvisioning, nil
}
