package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-mgmt-api/internal/models"
)

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "user_id", "admission_number", "roll_number", "first_name", "last_name", "email", "class_name", "section_name", "status"}).
		AddRow("s1", "u1", "ADM-001", "7", "Asha", "Rao", "asha@school.test", "Grade 5", "A", "active")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND s.class_id = $1 AND s.status = $2 AND (u.first_name ILIKE $3 OR u.last_name ILIKE $3 OR s.admission_number ILIKE $3 OR u.email ILIKE $3) ORDER BY s.admission_number ASC LIMIT 20 OFFSET 40")).
		WithArgs("c1", "active", "%as\\_h%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students s")).
		WithArgs("c1", "active", "%as\\_h%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(41))

	students, total, err := repo.List(context.Background(), models.StudentFilter{ClassID: "c1", Status: "active", Search: " as_h ", Skip: 40, Limit: 20})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "ADM-001", students[0].AdmissionNumber)
	assert.Equal(t, "Grade 5", *students[0].ClassName)
	assert.Equal(t, 41, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateDuplicateAdmission(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "students_admission_number_key"})

	err := repo.Create(context.Background(), &models.Student{
		UserID:          "u1",
		AdmissionNumber: "ADM-001",
		DateOfBirth:     time.Date(2012, 4, 1, 0, 0, 0, 0, time.UTC),
		Gender:          models.GenderFemale,
		AdmissionDate:   time.Now(),
		Status:          models.StudentStatusActive,
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpdateOnlySuppliedFields(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	city := "Pune"
	status := "inactive"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET city = $1, status = $2, updated_at = $3 WHERE id = $4")).
		WithArgs(city, status, sqlmock.AnyArg(), "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "s1", models.StudentPatch{City: &city, Status: &status})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM students WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryMalformedIDResolvesToNoRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("FROM students s").
		WithArgs("abc").
		WillReturnError(&pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`})
	_, err := repo.FindDetail(context.Background(), "abc")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM students WHERE id = $1")).
		WithArgs("abc").
		WillReturnError(&pq.Error{Code: "22P02"})
	assert.ErrorIs(t, repo.Delete(context.Background(), "abc"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindIDByUserID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM students WHERE user_id = $1")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s1"))

	id, err := repo.FindIDByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "s1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}
