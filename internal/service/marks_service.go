package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/markaz-go-api/internal/models"
	appErrors "github.com/noah-isme/markaz-go-api/pkg/errors"
)

type markRepository interface {
	Upsert(ctx context.Context, mark *models.Mark) error
	UpsertMany(ctx context.Context, marks []models.Mark) error
	FetchByStudents(ctx context.Context, studentIDs []string) (map[string][]models.Mark, error)
	Delete(ctx context.Context, studentID, subjectID string) error
}

type marksSubjectReader interface {
	FindByID(ctx context.Context, id string) (*models.SubjectConfig, error)
}

type marksStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentRecord, error)
}

type classReloader interface {
	LoadClass(ctx context.Context, className string) ([]models.StudentRecord, error)
}

// EnterMarkRequest records one student's score in one subject.
type EnterMarkRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	SubjectID string `json:"subjectId" validate:"required"`
	TA        int    `json:"ta" validate:"gte=0"`
	CE        int    `json:"ce" validate:"gte=0"`
}

// BulkEnterRequest records marks for many students at once.
type BulkEnterRequest struct {
	Entries []EnterMarkRequest `json:"entries" validate:"required,min=1,dive"`
	// PartialOnError saves the valid entries and reports the rest instead of
	// rejecting the whole batch.
	PartialOnError bool `json:"partialOnError"`
}

// BulkEntryError describes why one batch entry was rejected.
type BulkEntryError struct {
	Index     int    `json:"index"`
	StudentID string `json:"studentId"`
	SubjectID string `json:"subjectId"`
	Message   string `json:"message"`
}

// BulkEnterResult summarizes a batch write.
type BulkEnterResult struct {
	Saved  int              `json:"saved"`
	Failed []BulkEntryError `json:"failed,omitempty"`
}

// MarksService validates and persists mark entries. Every write re-evaluates
// pass status from the subject's component ceilings; derived student fields
// are never written, only recomputed on read.
type MarksService struct {
	marks       markRepository
	subjects    marksSubjectReader
	students    marksStudentReader
	performance classReloader
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewMarksService creates a marks service.
func NewMarksService(marks markRepository, subjects marksSubjectReader, students marksStudentReader, performance classReloader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *MarksService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarksService{marks: marks, subjects: subjects, students: students, performance: performance, cache: cache, validator: validate, logger: logger}
}

// Enter records a single mark and returns the student's refreshed record with
// recomputed totals, level and class rank.
func (s *MarksService) Enter(ctx context.Context, req EnterMarkRequest) (*models.StudentRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mark payload")
	}

	mark, student, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.marks.Upsert(ctx, mark); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save mark")
	}
	if s.cache != nil {
		s.cache.InvalidateDerived(ctx)
	}

	classmates, err := s.performance.LoadClass(ctx, student.ClassName)
	if err != nil {
		return nil, err
	}
	for i := range classmates {
		if classmates[i].ID == student.ID {
			return &classmates[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrInternal, "student missing from refreshed roster")
}

// BulkEnter records a batch of marks. The default mode is atomic: any invalid
// entry rejects the whole batch. With PartialOnError the valid entries are
// saved and the failures reported per entry.
func (s *MarksService) BulkEnter(ctx context.Context, req BulkEnterRequest) (*BulkEnterResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk payload")
	}

	valid := make([]models.Mark, 0, len(req.Entries))
	var failures []BulkEntryError
	for i, entry := range req.Entries {
		mark, _, err := s.prepare(ctx, entry)
		if err != nil {
			failures = append(failures, BulkEntryError{
				Index:     i,
				StudentID: entry.StudentID,
				SubjectID: entry.SubjectID,
				Message:   errorMessage(err),
			})
			continue
		}
		valid = append(valid, *mark)
	}

	if len(failures) > 0 && !req.PartialOnError {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "bulk entry rejected", failures)
	}

	if len(valid) > 0 {
		if err := s.marks.UpsertMany(ctx, valid); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save marks")
		}
		if s.cache != nil {
			s.cache.InvalidateDerived(ctx)
		}
	}
	return &BulkEnterResult{Saved: len(valid), Failed: failures}, nil
}

// Remove deletes a mark entry.
func (s *MarksService) Remove(ctx context.Context, studentID, subjectID string) error {
	if err := s.marks.Delete(ctx, studentID, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "mark not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete mark")
	}
	if s.cache != nil {
		s.cache.InvalidateDerived(ctx)
	}
	return nil
}

// prepare validates one entry against its subject and student and returns the
// evaluated mark ready to persist.
func (s *MarksService) prepare(ctx context.Context, req EnterMarkRequest) (*models.Mark, *models.StudentRecord, error) {
	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	// Electives gate on enrollment alone; class targeting only binds general
	// subjects.
	if subject.SubjectType == models.SubjectTypeElective {
		if !containsString(subject.EnrolledStudents, student.ID) {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "student is not enrolled in this elective")
		}
	} else if !containsString(subject.TargetClasses, student.ClassName) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "subject is not assigned to the student's class")
	}

	entry, err := EvaluateMark(req.TA, req.CE, *subject)
	if err != nil {
		return nil, nil, err
	}
	return &models.Mark{
		StudentID: student.ID,
		SubjectID: subject.ID,
		MarkEntry: entry,
	}, student, nil
}

func errorMessage(err error) string {
	if appErr, ok := err.(*appErrors.Error); ok {
		return appErr.Message
	}
	return fmt.Sprintf("%v", err)
}
