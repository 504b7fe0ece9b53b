package service

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/pkg/config"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

const dateLayout = "2006-01-02"

var studentStatuses = map[string]struct{}{
	"active":      {},
	"inactive":    {},
	"graduated":   {},
	"transferred": {},
	"suspended":   {},
}

// withDomainValidations registers the enum tags used by request structs.
func withDomainValidations(validate *validator.Validate) *validator.Validate {
	if validate == nil {
		validate = validator.New()
	}
	_ = validate.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation("assessment_type", func(fl validator.FieldLevel) bool {
		return models.AssessmentType(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation("student_status", func(fl validator.FieldLevel) bool {
		_, ok := studentStatuses[fl.Field().String()]
		return ok
	})
	_ = validate.RegisterValidation("gender", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case models.GenderMale, models.GenderFemale, models.GenderOther:
			return true
		}
		return false
	})
	return validate
}

func parseDate(field, value string) (time.Time, error) {
	date, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid %s, expected YYYY-MM-DD", field))
	}
	return date, nil
}

func parseOptionalDate(field string, value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	date, err := parseDate(field, *value)
	if err != nil {
		return nil, err
	}
	return &date, nil
}

// Paging resolves skip/limit query values against configured bounds.
type Paging struct {
	DefaultLimit int
	MaxLimit     int
}

// NewPaging builds paging bounds from configuration.
func NewPaging(cfg config.PaginationConfig) Paging {
	return Paging{DefaultLimit: cfg.DefaultLimit, MaxLimit: cfg.MaxLimit}
}

// Resolve applies the default limit and rejects out-of-range values.
func (p Paging) Resolve(skip, limit *int) (int, int, error) {
	maxLimit := p.MaxLimit
	if maxLimit <= 0 {
		maxLimit = 100
	}
	defaultLimit := p.DefaultLimit
	if defaultLimit <= 0 || defaultLimit > maxLimit {
		defaultLimit = 20
	}

	s, l := 0, defaultLimit
	if skip != nil {
		if *skip < 0 {
			return 0, 0, appErrors.Clone(appErrors.ErrValidation, "skip must be greater than or equal to 0")
		}
		s = *skip
	}
	if limit != nil {
		if *limit < 1 || *limit > maxLimit {
			return 0, 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("limit must be between 1 and %d", maxLimit))
		}
		l = *limit
	}
	return s, l, nil
}
