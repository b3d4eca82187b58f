package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/markaz-go-api/internal/models"
	appErrors "github.com/noah-isme/markaz-go-api/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.SubjectConfig, int, error)
	ListAll(ctx context.Context) ([]models.SubjectConfig, error)
	FindByID(ctx context.Context, id string) (*models.SubjectConfig, error)
	Create(ctx context.Context, subject *models.SubjectConfig) error
	Update(ctx context.Context, subject *models.SubjectConfig) error
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) (int, error)
}

type subjectStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentRecord, error)
}

// CreateSubjectRequest captures fields for creating a subject configuration.
type CreateSubjectRequest struct {
	Name          string   `json:"name" validate:"required"`
	ArabicName    *string  `json:"arabicName"`
	MaxTA         int      `json:"maxTa" validate:"gte=0,lte=100"`
	MaxCE         int      `json:"maxCe" validate:"gte=0,lte=100"`
	PassingTotal  int      `json:"passingTotal" validate:"gte=0"`
	FacultyName   *string  `json:"facultyName"`
	SubjectType   string   `json:"subjectType" validate:"required,oneof=general elective"`
	TargetClasses []string `json:"targetClasses"`
	// Confirm acknowledges a partial assignment: conflicting classes are
	// dropped and only the allowed subset is persisted.
	Confirm bool `json:"confirm"`
}

// UpdateSubjectRequest modifies a subject configuration. Version carries the
// value the client last read; a mismatch on write is rejected as stale.
type UpdateSubjectRequest struct {
	Name          string   `json:"name" validate:"required"`
	ArabicName    *string  `json:"arabicName"`
	MaxTA         int      `json:"maxTa" validate:"gte=0,lte=100"`
	MaxCE         int      `json:"maxCe" validate:"gte=0,lte=100"`
	PassingTotal  int      `json:"passingTotal" validate:"gte=0"`
	FacultyName   *string  `json:"facultyName"`
	SubjectType   string   `json:"subjectType" validate:"required,oneof=general elective"`
	TargetClasses []string `json:"targetClasses"`
	Confirm       bool     `json:"confirm"`
	Version       int      `json:"version" validate:"gte=1"`
}

// ResolvePreviewRequest asks which of the proposed classes a subject name can
// claim without persisting anything.
type ResolvePreviewRequest struct {
	Name          string   `json:"name" validate:"required"`
	TargetClasses []string `json:"targetClasses"`
	EditingID     string   `json:"editingId"`
}

// SubjectMutationResult pairs the persisted subject with the resolution that
// produced its class assignment.
type SubjectMutationResult struct {
	Subject    *models.SubjectConfig       `json:"subject"`
	Resolution models.AssignmentResolution `json:"resolution"`
}

// SubjectService handles subject configuration workflows: CRUD with class
// assignment conflict resolution, elective enrollment, and the derived
// assignment views.
type SubjectService struct {
	repo      subjectRepository
	students  subjectStudentReader
	cache     *CacheService
	viewTTL   time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService creates a new subject service.
func NewSubjectService(repo subjectRepository, students subjectStudentReader, cache *CacheService, viewTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, students: students, cache: cache, viewTTL: viewTTL, validator: validate, logger: logger}
}

// List returns paginated subject configurations.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.SubjectConfig, *models.Pagination, error) {
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
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
	return subjects, pagination, nil
}

// Get returns a subject by identifier.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.SubjectConfig, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// Resolve previews the class assignment outcome for a proposed subject.
func (s *SubjectService) Resolve(ctx context.Context, req ResolvePreviewRequest) (*models.AssignmentResolution, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resolve payload")
	}
	existing, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	resolution := ResolveAssignment(existing, req.Name, req.TargetClasses, req.EditingID)
	return &resolution, nil
}

// Create adds a subject after resolving its class assignment against every
// existing subject of the same normalized name.
func (s *SubjectService) Create(ctx context.Context, req CreateSubjectRequest) (*SubjectMutationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	maxTA, maxCE := normalizeMarkCeilings(req.MaxTA, req.MaxCE)

	existing, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}

	resolution := ResolveAssignment(existing, req.Name, req.TargetClasses, "")
	if err := guardResolution(resolution, len(req.TargetClasses), req.Confirm); err != nil {
		return nil, err
	}

	subject := &models.SubjectConfig{
		Name:             NormalizeSubjectName(req.Name),
		ArabicName:       trimOptional(req.ArabicName),
		MaxTA:            maxTA,
		MaxCE:            maxCE,
		PassingTotal:     req.PassingTotal,
		FacultyName:      trimOptional(req.FacultyName),
		SubjectType:      models.SubjectType(req.SubjectType),
		TargetClasses:    resolution.AllowedClasses,
		EnrolledStudents: []string{},
	}

	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	s.invalidateViews(ctx)
	return &SubjectMutationResult{Subject: subject, Resolution: resolution}, nil
}

// Update modifies an existing subject. The resolution excludes the subject
// being edited so its own current classes never count as conflicts.
func (s *SubjectService) Update(ctx context.Context, id string, req UpdateSubjectRequest) (*SubjectMutationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	maxTA, maxCE := normalizeMarkCeilings(req.MaxTA, req.MaxCE)

	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	existing, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}

	resolution := ResolveAssignment(existing, req.Name, req.TargetClasses, id)
	if err := guardResolution(resolution, len(req.TargetClasses), req.Confirm); err != nil {
		return nil, err
	}

	subject.Name = NormalizeSubjectName(req.Name)
	subject.ArabicName = trimOptional(req.ArabicName)
	subject.MaxTA = maxTA
	subject.MaxCE = maxCE
	subject.PassingTotal = req.PassingTotal
	subject.FacultyName = trimOptional(req.FacultyName)
	subject.SubjectType = models.SubjectType(req.SubjectType)
	subject.TargetClasses = resolution.AllowedClasses
	subject.Version = req.Version

	if err := s.repo.Update(ctx, subject); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrStaleWrite, "subject was modified by another request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	s.invalidateViews(ctx)
	return &SubjectMutationResult{Subject: subject, Resolution: resolution}, nil
}

// Delete removes a subject and its marks.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	s.invalidateViews(ctx)
	return nil
}

// BulkDelete removes several subjects at once and reports how many existed.
func (s *SubjectService) BulkDelete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "no subject ids provided")
	}
	deleted, err := s.repo.DeleteMany(ctx, ids)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subjects")
	}
	s.invalidateViews(ctx)
	return deleted, nil
}

// Enroll adds a student to an elective's enrollment set. Enrollment is
// tracked independently of the elective's target classes, so a student from
// any class may be enrolled. Enrolling an already enrolled student is a
// no-op.
func (s *SubjectService) Enroll(ctx context.Context, subjectID, studentID string) (*models.SubjectConfig, error) {
	subject, _, err := s.loadEnrollmentPair(ctx, subjectID, studentID)
	if err != nil {
		return nil, err
	}
	if containsString(subject.EnrolledStudents, studentID) {
		return subject, nil
	}
	subject.EnrolledStudents = append(subject.EnrolledStudents, studentID)
	if err := s.repo.Update(ctx, subject); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrStaleWrite, "subject was modified by another request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
	}
	s.invalidateViews(ctx)
	return subject, nil
}

// Unenroll removes a student from an elective's enrollment set.
func (s *SubjectService) Unenroll(ctx context.Context, subjectID, studentID string) (*models.SubjectConfig, error) {
	subject, _, err := s.loadEnrollmentPair(ctx, subjectID, studentID)
	if err != nil {
		return nil, err
	}
	if !containsString(subject.EnrolledStudents, studentID) {
		return subject, nil
	}
	kept := subject.EnrolledStudents[:0]
	for _, id := range subject.EnrolledStudents {
		if id != studentID {
			kept = append(kept, id)
		}
	}
	subject.EnrolledStudents = kept
	if err := s.repo.Update(ctx, subject); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrStaleWrite, "subject was modified by another request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unenroll student")
	}
	s.invalidateViews(ctx)
	return subject, nil
}

// FlattenedView returns the class-centric assignment rows, cached.
func (s *SubjectService) FlattenedView(ctx context.Context) ([]models.FlattenedAssignment, error) {
	var cached []models.FlattenedAssignment
	if hit, _ := s.cache.Get(ctx, CacheKeyAssignmentsFlat, &cached); hit {
		return cached, nil
	}

	subjects, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	rows := FlattenAssignments(subjects)
	_ = s.cache.Set(ctx, CacheKeyAssignmentsFlat, rows, s.viewTTL)
	return rows, nil
}

// FacultyView returns assignment rows grouped by faculty, cached.
func (s *SubjectService) FacultyView(ctx context.Context) ([]models.FacultyGroup, error) {
	var cached []models.FacultyGroup
	if hit, _ := s.cache.Get(ctx, CacheKeyAssignmentsByFaculty, &cached); hit {
		return cached, nil
	}

	subjects, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	groups := GroupByFaculty(subjects)
	_ = s.cache.Set(ctx, CacheKeyAssignmentsByFaculty, groups, s.viewTTL)
	return groups, nil
}

func (s *SubjectService) loadEnrollmentPair(ctx context.Context, subjectID, studentID string) (*models.SubjectConfig, *models.StudentRecord, error) {
	subject, err := s.repo.FindByID(ctx, subjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if subject.SubjectType != models.SubjectTypeElective {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "enrollment applies to elective subjects only")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return subject, student, nil
}

func (s *SubjectService) invalidateViews(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateDerived(ctx)
	}
}

// guardResolution turns a conflicting resolution into the appropriate error.
// Full rejection when nothing survives, confirmation demand when only part of
// the request survives and the caller did not acknowledge it.
func guardResolution(resolution models.AssignmentResolution, requested int, confirmed bool) error {
	if !resolution.HasConflicts() {
		return nil
	}
	if len(resolution.AllowedClasses) == 0 && requested > 0 {
		return appErrors.WithDetails(appErrors.ErrAssignmentConflict, "all requested classes already have this subject", resolution)
	}
	if !confirmed {
		return appErrors.WithDetails(appErrors.ErrConfirmRequired, "some requested classes already have this subject", resolution)
	}
	return nil
}

// normalizeMarkCeilings applies the single-component rule: a subject assessed
// entirely by term assessment carries no continuous evaluation component.
func normalizeMarkCeilings(maxTA, maxCE int) (int, int) {
	if maxTA == 100 {
		return 100, 0
	}
	return maxTA, maxCE
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
