package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/internal/repository"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

const (
	msgAdmissionTaken = "Admission number already exists"
	msgAccountTaken   = "Email or username already exists"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentListItem, int, error)
	FindDetail(ctx context.Context, id string) (*models.StudentDetail, error)
	ExistsByAdmissionNumber(ctx context.Context, admissionNumber string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, id string, patch models.StudentPatch) error
	Delete(ctx context.Context, id string) error
}

type studentUserRepository interface {
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	Create(ctx context.Context, user *models.User) error
}

type attendanceTotals interface {
	TotalsForStudent(ctx context.Context, studentID string) (models.AttendanceTotals, error)
}

type reportCardRepository interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.ReportCard, error)
}

type sectionLookup interface {
	FindSection(ctx context.Context, id string) (*models.Section, error)
}

// StudentService handles student use-cases.
type StudentService struct {
	repo        studentRepository
	users       studentUserRepository
	attendance  attendanceTotals
	reportCards reportCardRepository
	sections    sectionLookup
	links       models.StudentLinker
	tx          transactor
	paging      Paging
	validator   *validator.Validate
	logger      *zap.Logger
	hashCost    int
}

// StudentServiceDeps groups the collaborators of StudentService.
type StudentServiceDeps struct {
	Students    studentRepository
	Users       studentUserRepository
	Attendance  attendanceTotals
	ReportCards reportCardRepository
	Sections    sectionLookup
	Links       models.StudentLinker
	Tx          transactor
}

// NewStudentService constructs the student service.
func NewStudentService(deps StudentServiceDeps, paging Paging, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:        deps.Students,
		users:       deps.Users,
		attendance:  deps.Attendance,
		reportCards: deps.ReportCards,
		sections:    deps.Sections,
		links:       deps.Links,
		tx:          deps.Tx,
		paging:      paging,
		validator:   withDomainValidations(validate),
		logger:      logger,
		hashCost:    bcrypt.DefaultCost,
	}
}

// CreateStudentRequest creates a student account and profile together.
type CreateStudentRequest struct {
	Email             string          `json:"email" validate:"required,email"`
	Username          string          `json:"username" validate:"required,min=3,max=100"`
	Password          string          `json:"password" validate:"required,min=8"`
	FirstName         string          `json:"first_name" validate:"required,max=100"`
	LastName          string          `json:"last_name" validate:"required,max=100"`
	Phone             *string         `json:"phone" validate:"omitempty,max=20"`
	AdmissionNumber   string          `json:"admission_number" validate:"required,max=50"`
	RollNumber        *string         `json:"roll_number" validate:"omitempty,max=20"`
	DateOfBirth       string          `json:"date_of_birth" validate:"required"`
	Gender            string          `json:"gender" validate:"required,gender"`
	BloodGroup        *string         `json:"blood_group" validate:"omitempty,max=5"`
	Nationality       string          `json:"nationality"`
	Religion          *string         `json:"religion"`
	Category          *string         `json:"category"`
	AddressLine1      *string         `json:"address_line1"`
	AddressLine2      *string         `json:"address_line2"`
	City              *string         `json:"city"`
	State             *string         `json:"state"`
	Pincode           *string         `json:"pincode" validate:"omitempty,max=10"`
	Country           string          `json:"country"`
	MedicalConditions *string         `json:"medical_conditions"`
	Allergies         *string         `json:"allergies"`
	Medications       *string         `json:"medications"`
	EmergencyContacts json.RawMessage `json:"emergency_contacts" swaggertype:"object"`
	ClassID           *string         `json:"class_id"`
	SectionID         *string         `json:"section_id"`
	AdmissionDate     string          `json:"admission_date" validate:"required"`
	PreviousSchool    *string         `json:"previous_school"`
	Status            string          `json:"status" validate:"omitempty,student_status"`
}

// UpdateStudentRequest carries the fields of a partial update.
type UpdateStudentRequest struct {
	RollNumber        *string         `json:"roll_number" validate:"omitempty,max=20"`
	BloodGroup        *string         `json:"blood_group" validate:"omitempty,max=5"`
	Religion          *string         `json:"religion"`
	Category          *string         `json:"category"`
	AddressLine1      *string         `json:"address_line1"`
	AddressLine2      *string         `json:"address_line2"`
	City              *string         `json:"city"`
	State             *string         `json:"state"`
	Pincode           *string         `json:"pincode" validate:"omitempty,max=10"`
	MedicalConditions *string         `json:"medical_conditions"`
	Allergies         *string         `json:"allergies"`
	Medications       *string         `json:"medications"`
	EmergencyContacts json.RawMessage `json:"emergency_contacts" swaggertype:"object"`
	ClassID           *string         `json:"class_id"`
	SectionID         *string         `json:"section_id"`
	Status            *string         `json:"status" validate:"omitempty,student_status"`
}

// StudentListRequest holds listing query values.
type StudentListRequest struct {
	Skip      *int
	Limit     *int
	ClassID   string
	SectionID string
	Status    string
	Search    string
}

// Create registers a student user and profile in one transaction.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid student payload")
	}
	dob, err := parseDate("date_of_birth", req.DateOfBirth)
	if err != nil {
		return nil, err
	}
	admitted, err := parseDate("admission_date", req.AdmissionDate)
	if err != nil {
		return nil, err
	}
	contacts, err := jsonColumn(req.EmergencyContacts)
	if err != nil {
		return nil, err
	}
	if err := s.checkPlacement(ctx, req.ClassID, req.SectionID); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user := &models.User{
		Email:        email,
		Username:     req.Username,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Role:         models.RoleStudent,
		Active:       true,
	}
	student := &models.Student{
		AdmissionNumber:   req.AdmissionNumber,
		RollNumber:        req.RollNumber,
		DateOfBirth:       dob,
		Gender:            req.Gender,
		BloodGroup:        req.BloodGroup,
		Nationality:       defaultString(req.Nationality, "Indian"),
		Religion:          req.Religion,
		Category:          req.Category,
		AddressLine1:      req.AddressLine1,
		AddressLine2:      req.AddressLine2,
		City:              req.City,
		State:             req.State,
		Pincode:           req.Pincode,
		Country:           defaultString(req.Country, "India"),
		MedicalConditions: req.MedicalConditions,
		Allergies:         req.Allergies,
		Medications:       req.Medications,
		EmergencyContacts: contacts,
		ClassID:           req.ClassID,
		SectionID:         req.SectionID,
		AdmissionDate:     admitted,
		PreviousSchool:    req.PreviousSchool,
		Status:            defaultString(req.Status, models.StudentStatusActive),
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		taken, err := s.repo.ExistsByAdmissionNumber(ctx, req.AdmissionNumber)
		if err != nil {
			return appErrors.Internal(err, "failed to check admission number")
		}
		if taken {
			return appErrors.Clone(appErrors.ErrDuplicate, msgAdmissionTaken)
		}
		taken, err = s.users.ExistsByEmailOrUsername(ctx, email, req.Username)
		if err != nil {
			return appErrors.Internal(err, "failed to check account")
		}
		if taken {
			return appErrors.Clone(appErrors.ErrDuplicate, msgAccountTaken)
		}

		if err := s.users.Create(ctx, user); err != nil {
			return duplicateOr(err, msgAccountTaken, "failed to create user")
		}
		student.UserID = user.ID
		if err := s.repo.Create(ctx, student); err != nil {
			return duplicateOr(err, msgAdmissionTaken, "failed to create student")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("student created",
		zap.String("student_id", student.ID),
		zap.String("user_id", user.ID),
		zap.String("admission_number", student.AdmissionNumber),
	)
	return &models.StudentDetail{
		Student:   *student,
		Email:     user.Email,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
	}, nil
}

// List returns the student list projection with pagination.
func (s *StudentService) List(ctx context.Context, req StudentListRequest) ([]models.StudentListItem, *models.Pagination, error) {
	skip, limit, err := s.paging.Resolve(req.Skip, req.Limit)
	if err != nil {
		return nil, nil, err
	}
	status := req.Status
	if status == "" {
		status = models.StudentStatusActive
	}
	if _, ok := studentStatuses[status]; !ok {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid status")
	}

	students, total, err := s.repo.List(ctx, models.StudentFilter{
		ClassID:   req.ClassID,
		SectionID: req.SectionID,
		Status:    status,
		Search:    strings.TrimSpace(req.Search),
		Skip:      skip,
		Limit:     limit,
	})
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list students")
	}
	if students == nil {
		students = []models.StudentListItem{}
	}
	return students, &models.Pagination{Skip: skip, Limit: limit, TotalCount: total}, nil
}

// Get returns a student's detail with attendance totals.
func (s *StudentService) Get(ctx context.Context, actor *models.Actor, id string) (*models.StudentDetail, error) {
	if err := authorizeStudentView(ctx, actor, id, s.links); err != nil {
		return nil, err
	}
	detail, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, msgStudentNotFound)
		}
		return nil, appErrors.Internal(err, "failed to load student")
	}

	totals, err := s.attendance.TotalsForStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load attendance totals")
	}
	pct := percentage(totals.PresentDays, totals.TotalDays)
	detail.TotalAttendanceDays = &totals.TotalDays
	detail.PresentDays = &totals.PresentDays
	detail.AttendancePercentage = &pct
	return detail, nil
}

// Update applies a partial update and returns the refreshed detail.
func (s *StudentService) Update(ctx context.Context, actor *models.Actor, id string, req UpdateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid student payload")
	}
	patch := models.StudentPatch{
		RollNumber:        req.RollNumber,
		BloodGroup:        req.BloodGroup,
		Religion:          req.Religion,
		Category:          req.Category,
		AddressLine1:      req.AddressLine1,
		AddressLine2:      req.AddressLine2,
		City:              req.City,
		State:             req.State,
		Pincode:           req.Pincode,
		MedicalConditions: req.MedicalConditions,
		Allergies:         req.Allergies,
		Medications:       req.Medications,
		ClassID:           req.ClassID,
		SectionID:         req.SectionID,
		Status:            req.Status,
	}
	if len(req.EmergencyContacts) > 0 {
		if !json.Valid(req.EmergencyContacts) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "emergency_contacts must be valid JSON")
		}
		contacts := types.JSONText(req.EmergencyContacts)
		patch.EmergencyContacts = &contacts
	}

	if req.ClassID != nil || req.SectionID != nil {
		current, err := s.repo.FindDetail(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, msgStudentNotFound)
			}
			return nil, appErrors.Internal(err, "failed to load student")
		}
		classID, sectionID := current.ClassID, current.SectionID
		if req.ClassID != nil {
			classID = req.ClassID
		}
		if req.SectionID != nil {
			sectionID = req.SectionID
		}
		if err := s.checkPlacement(ctx, classID, sectionID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, id, patch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, msgStudentNotFound)
		}
		return nil, referenceOr(err, "failed to update student")
	}
	s.logger.Info("student updated", zap.String("student_id", id))
	return s.Get(ctx, actor, id)
}

// Delete removes a student; dependent records cascade. The user account is kept.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, msgStudentNotFound)
		}
		return appErrors.Internal(err, "failed to delete student")
	}
	s.logger.Info("student deleted", zap.String("student_id", id))
	return nil
}

// ReportCards lists the stored report cards of a student.
func (s *StudentService) ReportCards(ctx context.Context, actor *models.Actor, id string) ([]models.ReportCard, error) {
	if err := authorizeStudentView(ctx, actor, id, s.links); err != nil {
		return nil, err
	}
	cards, err := s.reportCards.ListByStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list report cards")
	}
	if cards == nil {
		cards = []models.ReportCard{}
	}
	return cards, nil
}

// checkPlacement requires a section to belong to the class it is paired with.
func (s *StudentService) checkPlacement(ctx context.Context, classID, sectionID *string) error {
	if sectionID == nil || *sectionID == "" {
		return nil
	}
	section, err := s.sections.FindSection(ctx, *sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return appErrors.Internal(err, "failed to load section")
	}
	if classID != nil && *classID != "" && section.ClassID != *classID {
		return appErrors.Clone(appErrors.ErrValidation, "section does not belong to class")
	}
	return nil
}

func jsonColumn(raw json.RawMessage) (types.NullJSONText, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return types.NullJSONText{}, nil
	}
	if !json.Valid(raw) {
		return types.NullJSONText{}, appErrors.Clone(appErrors.ErrValidation, "emergency_contacts must be valid JSON")
	}
	return types.NullJSONText{JSONText: types.JSONText(raw), Valid: true}, nil
}

// duplicateOr maps a repository duplicate to a 400 with msg, anything else to a 500.
func duplicateOr(err error, msg, internal string) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return appErrors.Wrap(err, appErrors.ErrDuplicate.Code, appErrors.ErrDuplicate.Status, msg)
	}
	return referenceOr(err, internal)
}

// referenceOr maps a write naming an unknown row to a 404, anything else to a 500.
func referenceOr(err error, internal string) error {
	if errors.Is(err, repository.ErrReferenceMissing) {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "referenced record not found")
	}
	return appErrors.Internal(err, internal)
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
