package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/pkg/database"
)

const studentColumns = `s.id, s.user_id, s.admission_number, s.roll_number, s.date_of_birth, s.gender, s.blood_group, s.nationality,
        s.religion, s.category, s.address_line1, s.address_line2, s.city, s.state, s.pincode, s.country,
        s.medical_conditions, s.allergies, s.medications, s.emergency_contacts, s.class_id, s.section_id,
        s.admission_date, s.previous_school, s.status, s.created_at, s.updated_at`

// StudentRepository manages persistence for student profiles.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns the student list projection matching the filter and the total match count.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentListItem, int, error) {
	base := `FROM students s
        JOIN users u ON u.id = s.user_id
        LEFT JOIN classes c ON c.id = s.class_id
        LEFT JOIN sections sec ON sec.id = s.section_id`
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("s.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("s.section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(u.first_name ILIKE $%d OR u.last_name ILIKE $%d OR s.admission_number ILIKE $%d OR u.email ILIKE $%d)", n, n, n, n))
		args = append(args, "%"+escapeLike(filter.Search)+"%")
	}

	where := strings.Join(conditions, " AND ")
	query := fmt.Sprintf(`SELECT s.id, s.user_id, s.admission_number, s.roll_number, u.first_name, u.last_name, u.email,
        c.name AS class_name, sec.name AS section_name, s.status
        %s WHERE %s ORDER BY s.admission_number ASC LIMIT %d OFFSET %d`, base, where, filter.Limit, filter.Skip)

	exec := database.Executor(ctx, r.db)
	var students []models.StudentListItem
	if err := sqlx.SelectContext(ctx, exec, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", translate(err))
	}

	var total int
	if err := sqlx.GetContext(ctx, exec, &total, fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, where), args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", translate(err))
	}
	return students, total, nil
}

// FindDetail fetches a student with account and placement information.
func (r *StudentRepository) FindDetail(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := `SELECT ` + studentColumns + `,
        u.email, u.username, u.first_name, u.last_name, u.phone,
        c.name AS class_name, sec.name AS section_name
        FROM students s
        JOIN users u ON u.id = s.user_id
        LEFT JOIN classes c ON c.id = s.class_id
        LEFT JOIN sections sec ON sec.id = s.section_id
        WHERE s.id = $1`
	var detail models.StudentDetail
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &detail, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student detail: %w", translate(err))
	}
	return &detail, nil
}

// FindByID fetches the bare student profile.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students s WHERE s.id = $1`
	var student models.Student
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &student, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", translate(err))
	}
	return &student, nil
}

// FindIDByUserID resolves the student profile id of a user account.
func (r *StudentRepository) FindIDByUserID(ctx context.Context, userID string) (string, error) {
	const query = `SELECT id FROM students WHERE user_id = $1`
	var id string
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &id, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("find student by user: %w", translate(err))
	}
	return id, nil
}

// ExistsByAdmissionNumber checks whether an admission number is taken.
func (r *StudentRepository) ExistsByAdmissionNumber(ctx context.Context, admissionNumber string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM students WHERE admission_number = $1)`
	var exists bool
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &exists, query, admissionNumber); err != nil {
		return false, fmt.Errorf("check admission number: %w", translate(err))
	}
	return exists, nil
}

// Create inserts a new student profile.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, user_id, admission_number, roll_number, date_of_birth, gender, blood_group, nationality,
        religion, category, address_line1, address_line2, city, state, pincode, country, medical_conditions, allergies,
        medications, emergency_contacts, class_id, section_id, admission_date, previous_school, status, created_at, updated_at)
        VALUES (:id, :user_id, :admission_number, :roll_number, :date_of_birth, :gender, :blood_group, :nationality,
        :religion, :category, :address_line1, :address_line2, :city, :state, :pincode, :country, :medical_conditions, :allergies,
        :medications, :emergency_contacts, :class_id, :section_id, :admission_date, :previous_school, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Executor(ctx, r.db), query, student); err != nil {
		return fmt.Errorf("create student: %w", translate(err))
	}
	return nil
}

// Update writes only the supplied fields. It returns sql.ErrNoRows when the id does not resolve.
func (r *StudentRepository) Update(ctx context.Context, id string, patch models.StudentPatch) error {
	set := newSetBuilder()
	setIf(set, "roll_number", patch.RollNumber)
	setIf(set, "blood_group", patch.BloodGroup)
	setIf(set, "religion", patch.Religion)
	setIf(set, "category", patch.Category)
	setIf(set, "address_line1", patch.AddressLine1)
	setIf(set, "address_line2", patch.AddressLine2)
	setIf(set, "city", patch.City)
	setIf(set, "state", patch.State)
	setIf(set, "pincode", patch.Pincode)
	setIf(set, "medical_conditions", patch.MedicalConditions)
	setIf(set, "allergies", patch.Allergies)
	setIf(set, "medications", patch.Medications)
	setIf(set, "emergency_contacts", patch.EmergencyContacts)
	setIf(set, "class_id", patch.ClassID)
	setIf(set, "section_id", patch.SectionID)
	setIf(set, "status", patch.Status)
	set.add("updated_at", time.Now().UTC())

	query, args := set.build("students", id)
	res, err := database.Executor(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update student: %w", translate(err))
	}
	return requireAffected(res)
}

// Delete removes a student; attendance, grades, parent links and report cards cascade.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	res, err := database.Executor(ctx, r.db).ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", translate(err))
	}
	return requireAffected(res)
}
