package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/markaz-go-api/internal/models"
	appErrors "github.com/noah-isme/markaz-go-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentRecord, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentRecord, error)
	ExistsByAdNo(ctx context.Context, adNo string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.StudentRecord) error
	Update(ctx context.Context, student *models.StudentRecord) error
	Delete(ctx context.Context, id string) error
	ListClasses(ctx context.Context) ([]string, error)
}

// CreateStudentRequest captures fields for registering a student.
type CreateStudentRequest struct {
	AdNo      string `json:"adNo" validate:"required"`
	FullName  string `json:"name" validate:"required"`
	ClassName string `json:"className" validate:"required"`
	Semester  string `json:"semester"`
}

// UpdateStudentRequest modifies student fields.
type UpdateStudentRequest struct {
	AdNo      string `json:"adNo" validate:"required"`
	FullName  string `json:"name" validate:"required"`
	ClassName string `json:"className" validate:"required"`
	Semester  string `json:"semester"`
}

// StudentService handles the student roster. Derived performance fields are
// not its concern; it stores only identity and class placement.
type StudentService struct {
	repo      studentRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService creates a new student service.
func NewStudentService(repo studentRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns paginated students.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentRecord, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// Get returns a student by identifier.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentRecord, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Classes returns the distinct class names in the roster.
func (s *StudentService) Classes(ctx context.Context) ([]string, error) {
	classes, err := s.repo.ListClasses(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// Create registers a new student ensuring admission number uniqueness.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.StudentRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	req.AdNo = strings.TrimSpace(req.AdNo)

	exists, err := s.repo.ExistsByAdNo(ctx, req.AdNo, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check admission number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "admission number already registered")
	}

	student := &models.StudentRecord{
		AdNo:      req.AdNo,
		FullName:  strings.TrimSpace(req.FullName),
		ClassName: strings.TrimSpace(req.ClassName),
		Semester:  strings.TrimSpace(req.Semester),
	}

	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.invalidate(ctx)
	return student, nil
}

// Update modifies an existing student.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.StudentRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	req.AdNo = strings.TrimSpace(req.AdNo)

	exists, err := s.repo.ExistsByAdNo(ctx, req.AdNo, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check admission number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "admission number already registered")
	}

	student.AdNo = req.AdNo
	student.FullName = strings.TrimSpace(req.FullName)
	student.ClassName = strings.TrimSpace(req.ClassName)
	student.Semester = strings.TrimSpace(req.Semester)

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	s.invalidate(ctx)
	return student, nil
}

// Delete removes a student and their marks.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.invalidate(ctx)
	return nil
}

func (s *StudentService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateDerived(ctx)
	}
}
