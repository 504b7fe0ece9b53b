package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/pkg/database"
)

const userColumns = `id, email, username, password_hash, first_name, last_name, phone, role, is_active, last_login, created_at, updated_at`

// UserRepository provides database access for user accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByLogin returns the user whose email or username matches login.
func (r *UserRepository) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) OR username = $1 LIMIT 1`
	var user models.User
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &user, query, login); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by login: %w", translate(err))
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", translate(err))
	}
	return &user, nil
}

// ExistsByEmailOrUsername reports whether either identifier is already taken.
func (r *UserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1) OR username = $2)`
	var exists bool
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &exists, query, email, username); err != nil {
		return false, fmt.Errorf("check user identity: %w", translate(err))
	}
	return exists, nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`
	if _, err := database.Executor(ctx, r.db).ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", translate(err))
	}
	return nil
}

// Create inserts a new user. Email or username collisions surface as ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, email, username, password_hash, first_name, last_name, phone, role, is_active, created_at, updated_at)
        VALUES (:id, :email, :username, :password_hash, :first_name, :last_name, :phone, :role, :is_active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Executor(ctx, r.db), query, user); err != nil {
		return fmt.Errorf("create user: %w", translate(err))
	}
	return nil
}
