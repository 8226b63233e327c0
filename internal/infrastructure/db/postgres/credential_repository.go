package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/userhub/user-service/internal/core/domain"
)

// CredentialRepository stores local identity-provider accounts.
type CredentialRepository struct {
	pool Pool
}

func NewCredentialRepository(pool Pool) *CredentialRepository {
	return &CredentialRepository{pool: pool}
}

func (r *CredentialRepository) Create(ctx context.Context, cred *domain.Credential) (*domain.Credential, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO auth_credentials (id, email, display_name, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, cred.ID, cred.Email, cred.DisplayName, cred.PasswordHash, string(cred.Role), cred.CreatedAt, cred.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("failed to create credential: %w", err)
	}

	out := *cred
	return &out, nil
}

func (r *CredentialRepository) FindByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	var (
		c    domain.Credential
		role string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, email, display_name, password_hash, role, created_at, updated_at
		FROM auth_credentials
		WHERE email = $1
	`, email).Scan(&c.ID, &c.Email, &c.DisplayName, &c.PasswordHash, &role, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	c.Role = domain.Role(role)
	return &c, nil
}

func (r *CredentialRepository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE auth_credentials SET role = $1, updated_at = NOW() WHERE id = $2`, string(role), id)
	if err != nil {
		return fmt.Errorf("failed to update credential role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
