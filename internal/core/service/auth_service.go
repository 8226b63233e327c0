package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/userhub/user-service/internal/core/domain"
	"github.com/userhub/user-service/internal/core/ports"
)

const minPasswordLen = 8

// AuthService is the in-process identity provider: it owns credentials,
// issues bearer tokens and implements ports.IdentityProviderAdmin.
type AuthService struct {
	repo      ports.CredentialRepository
	jwtSecret string
	issuer    string
	tokenTTL  time.Duration
	log       zerolog.Logger
}

func NewAuthService(repo ports.CredentialRepository, jwtSecret, issuer string, tokenTTL time.Duration, log zerolog.Logger) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{repo: repo, jwtSecret: jwtSecret, issuer: issuer, tokenTTL: tokenTTL, log: log}
}

func (s *AuthService) Register(ctx context.Context, email, password, displayName string) (*domain.Credential, error) {
	email = normalizeEmail(email)
	if validateEmail(email) != nil || len(password) < minPasswordLen {
		return nil, domain.ErrInvalidCredentials
	}
	return s.create(ctx, email, password, strings.TrimSpace(displayName), domain.RoleUser)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.Credential, error) {
	if email == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	cred, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.generateToken(cred)
	if err != nil {
		return "", nil, err
	}

	return token, cred, nil
}

// EnsureAdminUser creates the admin account or promotes an existing one. The
// password of an existing account is left untouched.
func (s *AuthService) EnsureAdminUser(ctx context.Context, email, password, displayName string) (string, error) {
	email = normalizeEmail(email)

	cred, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		cred, err = s.create(ctx, email, password, displayName, domain.RoleAdmin)
		if errors.Is(err, domain.ErrUserExists) {
			// Lost a race with a concurrent creator; converge on its record.
			cred, err = s.repo.FindByEmail(ctx, email)
		}
	}
	if err != nil {
		return "", fmt.Errorf("ensure admin identity: %w", err)
	}

	if cred.Role != domain.RoleAdmin {
		if err := s.repo.UpdateRole(ctx, cred.ID, domain.RoleAdmin); err != nil {
			return "", fmt.Errorf("ensure admin identity: promote: %w", err)
		}
		s.log.Info().Str("external_auth_id", cred.ID).Msg("identity promoted to admin")
	}
	return cred.ID, nil
}

func (s *AuthService) create(ctx context.Context, email, password, displayName string, role domain.Role) (*domain.Credential, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cred := &domain.Credential{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return s.repo.Create(ctx, cred)
}

func (s *AuthService) generateToken(cred *domain.Credential) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   cred.ID,
		"email": cred.Email,
		"role":  string(cred.Role),
		"iat":   now.Unix(),
		"exp":   now.Add(s.tokenTTL).Unix(),
	}
	if s.issuer != "" {
		claims["iss"] = s.issuer
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}
