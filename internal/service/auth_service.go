package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

const msgBadCredentials = "Incorrect email/username or password"

type authUserRepository interface {
	FindByLogin(ctx context.Context, login string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
}

type teacherProfiles interface {
	FindByUserID(ctx context.Context, userID string) (*models.Teacher, error)
}

type studentProfiles interface {
	FindIDByUserID(ctx context.Context, userID string) (string, error)
}

type parentProfiles interface {
	FindByUserID(ctx context.Context, userID string) (*models.Parent, error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// AuthService provides authentication use cases.
type AuthService struct {
	repo      authUserRepository
	teachers  teacherProfiles
	students  studentProfiles
	parents   parentProfiles
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, teachers teacherProfiles, students studentProfiles, parents parentProfiles, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{
		repo:      repo,
		teachers:  teachers,
		students:  students,
		parents:   parents,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Login authenticates by email or username and issues an access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid login payload")
	}

	login := strings.TrimSpace(req.Login)
	if strings.Contains(login, "@") {
		login = strings.ToLower(login)
	}
	user, err := s.repo.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, msgBadCredentials)
		}
		return nil, appErrors.Internal(err, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, msgBadCredentials)
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "Inactive user")
	}

	issuedAt := s.now()
	accessToken, err := s.generateAccessToken(user, issuedAt)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create access token")
	}
	if err := s.repo.UpdateLastLogin(ctx, user.ID, issuedAt); err != nil {
		s.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	actor, err := s.actorFor(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))

	return &models.LoginResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:    issuedAt,
		User:        userInfo(user, actor),
	}, nil
}

// Me returns the profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, actor *models.Actor) (*models.UserInfo, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	user, err := s.repo.FindByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	info := userInfo(user, actor)
	return &info, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "Could not validate credentials")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Could not validate credentials")
	}
	return claims, nil
}

// ResolveActor turns validated claims into an Actor. The user must still
// exist and be active; profile ids are looked up for the user's role.
func (s *AuthService) ResolveActor(ctx context.Context, claims *models.JWTClaims) (*models.Actor, error) {
	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Could not validate credentials")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "Inactive user")
	}
	return s.actorFor(ctx, user)
}

func (s *AuthService) actorFor(ctx context.Context, user *models.User) (*models.Actor, error) {
	actor := &models.Actor{UserID: user.ID, Email: user.Email, Role: user.Role}
	switch user.Role {
	case models.RoleTeacher:
		teacher, err := s.teachers.FindByUserID(ctx, user.ID)
		switch {
		case err == nil:
			actor.TeacherID = teacher.ID
		case !errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Internal(err, "failed to load teacher profile")
		}
	case models.RoleStudent:
		id, err := s.students.FindIDByUserID(ctx, user.ID)
		switch {
		case err == nil:
			actor.StudentID = id
		case !errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Internal(err, "failed to load student profile")
		}
	case models.RoleParent:
		parent, err := s.parents.FindByUserID(ctx, user.ID)
		switch {
		case err == nil:
			actor.ParentID = parent.ID
		case !errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Internal(err, "failed to load parent profile")
		}
	}
	return actor, nil
}

func (s *AuthService) generateAccessToken(user *models.User, issuedAt time.Time) (string, error) {
	claims := &models.JWTClaims{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.AccessTokenSecret))
}

func userInfo(user *models.User, actor *models.Actor) models.UserInfo {
	info := models.UserInfo{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		FullName: user.FullName(),
		Role:     user.Role,
	}
	if actor != nil {
		info.TeacherID = actor.TeacherID
		info.StudentID = actor.StudentID
		info.ParentID = actor.ParentID
	}
	return info
}
