package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/userhub/user-service/internal/core/domain"
	"github.com/userhub/user-service/internal/core/ports"
)

const (
	maxDisplayNameLen = 100
	maxPageSize       = 100
)

var validate = validator.New()

type userService struct {
	repo     ports.UserRepository
	resolver *IdentityResolver
	policy   *OwnershipPolicy
	log      zerolog.Logger
	now      func() time.Time
}

// NewUserService returns the use-case layer for user records.
func NewUserService(
	repo ports.UserRepository,
	resolver *IdentityResolver,
	policy *OwnershipPolicy,
	log zerolog.Logger,
) ports.UserService {
	return &userService{
		repo:     repo,
		resolver: resolver,
		policy:   policy,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *userService) GetByID(ctx context.Context, in ports.GetUserByIDInput) domain.Result[*domain.User] {
	if err := validateUserID(in.UserID); err != nil {
		return domain.Fail[*domain.User](err)
	}
	return s.loadAuthorized(ctx, "get_by_id", in.Caller, func() (*domain.User, error) {
		return s.repo.GetByID(ctx, in.UserID)
	})
}

func (s *userService) GetByEmail(ctx context.Context, in ports.GetUserByEmailInput) domain.Result[*domain.User] {
	email := normalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return domain.Fail[*domain.User](err)
	}
	return s.loadAuthorized(ctx, "get_by_email", in.Caller, func() (*domain.User, error) {
		return s.repo.GetByEmail(ctx, email)
	})
}

// Rename overwrites the display name. Renaming to the current name still
// writes and stamps UpdatedAt.
func (s *userService) Rename(ctx context.Context, in ports.RenameUserInput) domain.Result[*domain.User] {
	name := strings.TrimSpace(in.DisplayName)
	if err := validateDisplayName(name); err != nil {
		return domain.Fail[*domain.User](err)
	}
	if err := validateUserID(in.UserID); err != nil {
		return domain.Fail[*domain.User](err)
	}

	res := s.loadAuthorized(ctx, "rename", in.Caller, func() (*domain.User, error) {
		return s.repo.GetByID(ctx, in.UserID)
	})
	if !res.IsOK() {
		return res
	}

	user := res.Value()
	if err := ctx.Err(); err != nil {
		return s.infra("rename", err)
	}
	user.Rename(name, s.now())
	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.Fail[*domain.User](domain.NotFoundFailure())
		}
		return s.infra("rename", err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("user renamed")
	return domain.OK(user)
}

// Delete soft-deletes the target record.
func (s *userService) Delete(ctx context.Context, in ports.DeleteUserInput) domain.Result[*domain.User] {
	if err := validateUserID(in.UserID); err != nil {
		return domain.Fail[*domain.User](err)
	}

	res := s.loadAuthorized(ctx, "delete", in.Caller, func() (*domain.User, error) {
		return s.repo.GetByID(ctx, in.UserID)
	})
	if !res.IsOK() {
		return res
	}

	user := res.Value()
	if err := ctx.Err(); err != nil {
		return s.infra("delete", err)
	}
	user.MarkDeleted(s.now())
	if err := s.repo.SoftDelete(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.Fail[*domain.User](domain.NotFoundFailure())
		}
		return s.infra("delete", err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("user soft-deleted")
	return domain.OK(user)
}

// Create registers the caller's own profile with role User.
func (s *userService) Create(ctx context.Context, in ports.CreateUserInput) domain.Result[*domain.User] {
	if !in.Caller.HasIdentity() {
		return domain.Fail[*domain.User](domain.ForbiddenFailure("caller identity missing"))
	}
	if !validExternalAuthID(in.Caller.ExternalAuthID) {
		return domain.Fail[*domain.User](domain.ValidationFailure("invalid external auth id"))
	}
	email := normalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return domain.Fail[*domain.User](err)
	}
	name := strings.TrimSpace(in.DisplayName)
	if err := validateDisplayName(name); err != nil {
		return domain.Fail[*domain.User](err)
	}

	if _, err := s.repo.GetByExternalAuthID(ctx, in.Caller.ExternalAuthID); err == nil {
		return domain.Fail[*domain.User](domain.ConflictFailure("a profile already exists for this identity"))
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return s.infra("create", err)
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return domain.Fail[*domain.User](domain.ConflictFailure("email already in use"))
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return s.infra("create", err)
	}

	if err := ctx.Err(); err != nil {
		return s.infra("create", err)
	}
	user := &domain.User{
		ID:             uuid.NewString(),
		Email:          email,
		DisplayName:    name,
		ExternalAuthID: in.Caller.ExternalAuthID,
		Role:           domain.RoleUser,
		CreatedAt:      s.now(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return domain.Fail[*domain.User](domain.ConflictFailure("user already exists"))
		}
		return s.infra("create", err)
	}

	s.log.Info().Str("user_id", user.ID).Str("external_auth_id", user.ExternalAuthID).Msg("user created")
	return domain.OK(user)
}

// Me returns the caller's own profile.
func (s *userService) Me(ctx context.Context, caller domain.CallerContext) domain.Result[*domain.User] {
	if !caller.HasIdentity() {
		return domain.Fail[*domain.User](domain.ForbiddenFailure("caller identity missing"))
	}
	res := s.resolver.Resolve(ctx, caller.ExternalAuthID)
	if f := res.Failure(); f != nil && f.Kind == domain.KindInfrastructure {
		s.logFailure("me", f)
	}
	return res
}

// List returns a page of users. It is an admin-only operation: a non-nil
// caller must hold the Admin role in the store.
func (s *userService) List(ctx context.Context, in ports.ListUsersInput) domain.Result[*ports.ListUsersResult] {
	if in.Page < 1 {
		return domain.Fail[*ports.ListUsersResult](domain.ValidationFailure("page must be at least 1"))
	}
	if in.Limit < 1 {
		return domain.Fail[*ports.ListUsersResult](domain.ValidationFailure("page size must be at least 1"))
	}
	switch in.SortBy {
	case "", ports.SortByEmail, ports.SortByName, ports.SortByCreatedAt:
	default:
		return domain.Fail[*ports.ListUsersResult](domain.ValidationFailure("sort must be one of: email, name, createdAt"))
	}
	limit := in.Limit
	if limit > maxPageSize {
		limit = maxPageSize
	}
	// The store skips (page-1)*limit rows; that product must fit in an int.
	if in.Page-1 > math.MaxInt/limit {
		return domain.Fail[*ports.ListUsersResult](domain.ValidationFailure("page is out of range"))
	}

	if in.Caller != nil {
		res := s.resolver.Resolve(ctx, in.Caller.ExternalAuthID)
		if f := res.Failure(); f != nil && f.Kind == domain.KindInfrastructure {
			s.logFailure("list", f)
			return domain.Fail[*ports.ListUsersResult](f)
		}
		if !res.IsOK() || !res.Value().IsAdmin() {
			return domain.Fail[*ports.ListUsersResult](domain.ForbiddenFailure("admin role required"))
		}
	}

	items, total, err := s.repo.List(ctx, ports.ListUsersFilter{
		Search:     strings.TrimSpace(in.Search),
		SortBy:     in.SortBy,
		Descending: in.Descending,
		Page:       in.Page,
		Limit:      limit,
		Deleted:    in.Deleted,
	})
	if err != nil {
		f := domain.InfrastructureFailure(err)
		s.logFailure("list", f)
		return domain.Fail[*ports.ListUsersResult](f)
	}

	return domain.OK(&ports.ListUsersResult{
		Items:      items,
		Total:      total,
		Page:       in.Page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	})
}

// loadAuthorized loads the target and, when a caller is present, applies the
// ownership policy. A denied caller gets the same NotFound as a missing
// target.
func (s *userService) loadAuthorized(ctx context.Context, op string, caller *domain.CallerContext, load func() (*domain.User, error)) domain.Result[*domain.User] {
	user, err := load()
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.Fail[*domain.User](domain.NotFoundFailure())
		}
		return s.infra(op, err)
	}
	if user.IsDeleted {
		return domain.Fail[*domain.User](domain.NotFoundFailure())
	}
	if caller == nil {
		return domain.OK(user)
	}

	decision, err := s.policy.AuthorizeCaller(ctx, *caller, user.ID)
	if err != nil {
		return s.infra(op, err)
	}
	if decision != Allow {
		s.log.Debug().Str("operation", op).Str("external_auth_id", caller.ExternalAuthID).Msg("access masked as not found")
		return domain.Fail[*domain.User](domain.NotFoundFailure())
	}
	return domain.OK(user)
}

func (s *userService) infra(op string, err error) domain.Result[*domain.User] {
	f, ok := domain.AsFailure(err)
	if !ok || f.Kind != domain.KindInfrastructure {
		f = domain.InfrastructureFailure(err)
	}
	s.logFailure(op, f)
	return domain.Fail[*domain.User](f)
}

func (s *userService) logFailure(op string, f *domain.Failure) {
	s.log.Error().Err(f.Err).Str("operation", op).Str("kind", string(f.Kind)).Msg("use case failed")
}

func validateUserID(id string) *domain.Failure {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ValidationFailure("invalid user id")
	}
	return nil
}

func validateEmail(email string) *domain.Failure {
	if err := validate.Var(email, "required,email,max=254"); err != nil {
		return domain.ValidationFailure("invalid email")
	}
	return nil
}

func validateDisplayName(name string) *domain.Failure {
	if name == "" {
		return domain.ValidationFailure("display name is required")
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLen {
		return domain.ValidationFailure("display name is too long")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
