package service

import (
	"context"
	"database/sql"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/markaz-go-api/internal/models"
	"github.com/noah-isme/markaz-go-api/pkg/config"
	appErrors "github.com/noah-isme/markaz-go-api/pkg/errors"
)

type performanceStudentReader interface {
	ListByClass(ctx context.Context, className string) ([]models.StudentRecord, error)
	ListAll(ctx context.Context) ([]models.StudentRecord, error)
	FindByID(ctx context.Context, id string) (*models.StudentRecord, error)
}

type performanceMarkReader interface {
	FetchByStudents(ctx context.Context, studentIDs []string) (map[string][]models.Mark, error)
}

type performanceSubjectReader interface {
	ListAll(ctx context.Context) ([]models.SubjectConfig, error)
}

// LevelClassifier maps a student's cohort average onto the externally
// configured performance level labels. The failed label overrides the banded
// levels whenever at least one subject was marked failed.
type LevelClassifier struct {
	bands       []config.PerformanceBand
	failedLabel string
}

// NewLevelClassifier builds a classifier, falling back to the institution's
// default bands when the configuration is empty.
func NewLevelClassifier(cfg config.PerformanceConfig) LevelClassifier {
	bands := cfg.Bands
	if len(bands) == 0 {
		bands = []config.PerformanceBand{
			{Label: "Excellent", MinAverage: 90},
			{Label: "Good", MinAverage: 75},
			{Label: "Average", MinAverage: 50},
			{Label: "Needs Improvement", MinAverage: 0},
		}
	}
	sorted := make([]config.PerformanceBand, len(bands))
	copy(sorted, bands)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MinAverage > sorted[j].MinAverage })

	failed := cfg.FailedLabel
	if failed == "" {
		failed = "Failed"
	}
	return LevelClassifier{bands: sorted, failedLabel: failed}
}

// Classify returns the level label for the given average. anyFailed reports
// whether the student failed at least one subject.
func (c LevelClassifier) Classify(average float64, anyFailed bool) string {
	if anyFailed {
		return c.failedLabel
	}
	for _, band := range c.bands {
		if average >= band.MinAverage {
			return band.Label
		}
	}
	return c.bands[len(c.bands)-1].Label
}

// Levels returns every known label in display order, failed label last.
func (c LevelClassifier) Levels() []string {
	labels := make([]string, 0, len(c.bands)+1)
	for _, band := range c.bands {
		labels = append(labels, band.Label)
	}
	return append(labels, c.failedLabel)
}

// PerformanceService computes derived student results and aggregates them
// into class and cohort statistics. Derived fields are recomputed from marks
// on every load; nothing here trusts previously stored totals or ranks.
type PerformanceService struct {
	students   performanceStudentReader
	marks      performanceMarkReader
	subjects   performanceSubjectReader
	classifier LevelClassifier
	metrics    *MetricsService
	logger     *zap.Logger
	rounding   func(float64) float64
}

// NewPerformanceService constructs a PerformanceService.
func NewPerformanceService(students performanceStudentReader, marks performanceMarkReader, subjects performanceSubjectReader, classifier LevelClassifier, metrics *MetricsService, logger *zap.Logger) *PerformanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PerformanceService{
		students:   students,
		marks:      marks,
		subjects:   subjects,
		classifier: classifier,
		metrics:    metrics,
		logger:     logger,
		rounding:   func(v float64) float64 { return math.RoundToEven(v*100) / 100 },
	}
}

// LoadClass returns a class roster with marks, derived totals and ranks.
func (s *PerformanceService) LoadClass(ctx context.Context, className string) ([]models.StudentRecord, error) {
	start := time.Now()
	students, err := s.students.ListByClass(ctx, className)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("students_by_class", time.Since(start))
	}
	evaluated, err := s.evaluate(ctx, students)
	if err != nil {
		return nil, err
	}
	return AssignRanks(evaluated), nil
}

// LoadCohort returns every student evaluated, with ranks assigned per class.
func (s *PerformanceService) LoadCohort(ctx context.Context) ([]models.StudentRecord, error) {
	students, err := s.students.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	evaluated, err := s.evaluate(ctx, students)
	if err != nil {
		return nil, err
	}

	byClass := make(map[string][]models.StudentRecord)
	var classes []string
	for _, student := range evaluated {
		if _, ok := byClass[student.ClassName]; !ok {
			classes = append(classes, student.ClassName)
		}
		byClass[student.ClassName] = append(byClass[student.ClassName], student)
	}

	cohort := make([]models.StudentRecord, 0, len(evaluated))
	for _, class := range classes {
		cohort = append(cohort, AssignRanks(byClass[class])...)
	}
	return cohort, nil
}

// ClassStats aggregates one class for dashboards and reports.
func (s *PerformanceService) ClassStats(ctx context.Context, className string) (*models.ClassStat, error) {
	students, err := s.LoadClass(ctx, className)
	if err != nil {
		return nil, err
	}
	stat := s.classStatsFrom(className, students)
	return &stat, nil
}

// Distribution returns the cohort histogram of students by performance level.
// Labels are opaque: configured levels come first in band order, unknown
// labels follow sorted, and empty buckets are omitted.
func (s *PerformanceService) Distribution(ctx context.Context) ([]models.GradeDistributionEntry, error) {
	cohort, err := s.LoadCohort(ctx)
	if err != nil {
		return nil, err
	}
	return s.distributionFrom(cohort), nil
}

// TopPerformers returns the cohort's best students by grand total. Ties are
// broken by admission number ascending.
func (s *PerformanceService) TopPerformers(ctx context.Context, limit int) ([]models.StudentRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	cohort, err := s.LoadCohort(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(cohort, func(i, j int) bool {
		if cohort[i].GrandTotal != cohort[j].GrandTotal {
			return cohort[i].GrandTotal > cohort[j].GrandTotal
		}
		return cohort[i].AdNo < cohort[j].AdNo
	})
	if len(cohort) > limit {
		cohort = cohort[:limit]
	}
	return cohort, nil
}

// Scorecard builds the per-student report with class rank and per-subject rows.
func (s *PerformanceService) Scorecard(ctx context.Context, studentID string) (*models.Scorecard, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	classmates, err := s.LoadClass(ctx, student.ClassName)
	if err != nil {
		return nil, err
	}
	var evaluated *models.StudentRecord
	for i := range classmates {
		if classmates[i].ID == studentID {
			evaluated = &classmates[i]
			break
		}
	}
	if evaluated == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found in class roster")
	}

	subjects, err := s.subjects.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	subjectByID := make(map[string]models.SubjectConfig, len(subjects))
	for _, subject := range subjects {
		subjectByID[subject.ID] = subject
	}

	rows := make([]models.ScorecardRow, 0, len(evaluated.Marks))
	for subjectID, entry := range evaluated.Marks {
		subject, ok := subjectByID[subjectID]
		if !ok {
			continue
		}
		rows = append(rows, models.ScorecardRow{
			SubjectID:   subjectID,
			SubjectName: subject.Name,
			ArabicName:  subject.ArabicName,
			MaxTA:       subject.MaxTA,
			MaxCE:       subject.MaxCE,
			TA:          entry.TA,
			CE:          entry.CE,
			Total:       entry.Total,
			Status:      entry.Status,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SubjectName < rows[j].SubjectName })

	return &models.Scorecard{Student: *evaluated, Subjects: rows}, nil
}

// evaluate fills the derived fields of each student from their marks.
func (s *PerformanceService) evaluate(ctx context.Context, students []models.StudentRecord) ([]models.StudentRecord, error) {
	if len(students) == 0 {
		return students, nil
	}

	ids := make([]string, 0, len(students))
	for _, student := range students {
		ids = append(ids, student.ID)
	}

	marksByStudent, err := s.marks.FetchByStudents(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch marks")
	}
	subjects, err := s.subjects.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	maxTotals := make(map[string]int, len(subjects))
	for _, subject := range subjects {
		maxTotals[subject.ID] = subject.MaxTA + subject.MaxCE
	}

	evaluated := make([]models.StudentRecord, len(students))
	copy(evaluated, students)
	for i := range evaluated {
		student := &evaluated[i]
		student.Marks = make(map[string]models.MarkEntry)
		student.GrandTotal = 0
		possible := 0
		anyFailed := false
		for _, mark := range marksByStudent[student.ID] {
			max, known := maxTotals[mark.SubjectID]
			if !known {
				// Subject deleted after marks entry; skip the orphan.
				continue
			}
			student.Marks[mark.SubjectID] = mark.MarkEntry
			student.GrandTotal += mark.Total
			possible += max
			if mark.Status == models.MarkStatusFailed {
				anyFailed = true
			}
		}
		if possible > 0 {
			student.Average = s.rounding(float64(student.GrandTotal) / float64(possible) * 100)
		} else {
			student.Average = 0
		}
		student.PerformanceLevel = s.classifier.Classify(student.Average, anyFailed)
	}
	return evaluated, nil
}

func (s *PerformanceService) classStatsFrom(className string, students []models.StudentRecord) models.ClassStat {
	stat := models.ClassStat{ClassName: className, StudentCount: len(students)}
	if len(students) == 0 {
		return stat
	}

	var sum float64
	passed := 0
	high := students[0].GrandTotal
	low := students[0].GrandTotal
	for i := range students {
		sum += students[i].Average
		if students[i].PerformanceLevel != s.classifier.failedLabel {
			passed++
		}
		if students[i].GrandTotal > high {
			high = students[i].GrandTotal
		}
		if students[i].GrandTotal < low {
			low = students[i].GrandTotal
		}
		if students[i].Rank == 1 && stat.TopStudent == nil {
			top := students[i]
			stat.TopStudent = &top
		}
	}
	stat.Average = int(math.Round(sum / float64(len(students))))
	stat.PassRate = s.rounding(float64(passed) / float64(len(students)) * 100)
	stat.HighScore = high
	stat.LowScore = low
	return stat
}

func (s *PerformanceService) distributionFrom(students []models.StudentRecord) []models.GradeDistributionEntry {
	counts := make(map[string]int)
	for _, student := range students {
		counts[student.PerformanceLevel]++
	}

	known := s.classifier.Levels()
	seen := make(map[string]struct{}, len(known))
	entries := make([]models.GradeDistributionEntry, 0, len(counts))
	for _, label := range known {
		seen[label] = struct{}{}
		if count, ok := counts[label]; ok && count > 0 {
			entries = append(entries, models.GradeDistributionEntry{Level: label, Count: count})
		}
	}

	var extras []string
	for label := range counts {
		if _, ok := seen[label]; !ok {
			extras = append(extras, label)
		}
	}
	sort.Strings(extras)
	for _, label := range extras {
		entries = append(entries, models.GradeDistributionEntry{Level: label, Count: counts[label]})
	}
	return entries
}
