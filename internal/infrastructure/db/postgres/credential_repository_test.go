package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/userhub/user-service/internal/core/domain"
)

func TestCredentialRepository_FindByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewCredentialRepository(mock)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "email", "display_name", "password_hash", "role", "created_at", "updated_at"}).
		AddRow(testUserID, "root@example.com", "Root", "$2a$10$hash", "admin", now, now)
	mock.ExpectQuery(`SELECT .+ FROM auth_credentials`).
		WithArgs("root@example.com").
		WillReturnRows(rows)

	cred, err := repo.FindByEmail(context.Background(), "root@example.com")

	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, cred.Role)
	assert.Equal(t, "$2a$10$hash", cred.PasswordHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepository_FindByEmail_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewCredentialRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM auth_credentials`).
		WithArgs("nobody@example.com").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.FindByEmail(context.Background(), "nobody@example.com")

	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepository_UpdateRole(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewCredentialRepository(mock)

	mock.ExpectExec(`UPDATE auth_credentials SET role`).
		WithArgs("admin", testUserID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdateRole(context.Background(), testUserID, domain.RoleAdmin))
	assert.NoError(t, mock.ExpectationsWereMet())
}
