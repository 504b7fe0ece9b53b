package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-mgmt-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var userRowColumns = []string{"id", "email", "username", "password_hash", "first_name", "last_name", "phone", "role", "is_active", "last_login", "created_at", "updated_at"}

func TestUserRepositoryFindByLogin(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userRowColumns).
		AddRow("u1", "asha@school.test", "asha", "hash", "Asha", "Rao", nil, string(models.RoleTeacher), true, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(email) = LOWER($1) OR username = $1 LIMIT 1")).
		WithArgs("asha").
		WillReturnRows(rows)

	user, err := repo.FindByLogin(context.Background(), "asha")
	require.NoError(t, err)
	assert.Equal(t, "asha@school.test", user.Email)
	assert.Equal(t, models.RoleTeacher, user.Role)
	assert.Equal(t, "Asha Rao", user.FullName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("FROM users WHERE id = \\$1").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	err := repo.Create(context.Background(), &models.User{Email: "dup@school.test", Username: "dup", Role: models.RoleStudent})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryExists(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM users")).
		WithArgs("a@school.test", "a").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByEmailOrUsername(context.Background(), "a@school.test", "a")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
