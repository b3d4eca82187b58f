package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/markaz-go-api/internal/models"
	"github.com/noah-isme/markaz-go-api/pkg/export"
	"github.com/noah-isme/markaz-go-api/pkg/storage"
)

type exportPerformanceReader interface {
	LoadClass(ctx context.Context, className string) ([]models.StudentRecord, error)
}

type exportSubjectReader interface {
	ListAll(ctx context.Context) ([]models.SubjectConfig, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheet string) ([]byte, error)
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	performance exportPerformanceReader
	subjects    exportSubjectReader
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	xlsx        xlsxRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(performance exportPerformanceReader, subjects exportSubjectReader, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		performance: performance,
		subjects:    subjects,
		storage:     store,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		xlsx:        export.NewXLSXExporter(),
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate builds the dataset for the job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	case models.ReportFormatXLSX:
		payload, err = s.xlsx.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/reports/download/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	classPart := sanitizeFilename(job.ClassName)
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), classPart, timestamp, job.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeClassMarks:
		return s.buildClassMarksDataset(ctx, job.ClassName)
	case models.ReportTypeScorecards:
		return s.buildScorecardsDataset(ctx, job.ClassName)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

// buildClassMarksDataset produces one row per student with a total column per
// subject taught in the class, followed by the derived summary columns.
func (s *ExportService) buildClassMarksDataset(ctx context.Context, className string) (export.Dataset, string, error) {
	students, err := s.performance.LoadClass(ctx, className)
	if err != nil {
		return export.Dataset{}, "", err
	}
	subjects, err := s.classSubjects(ctx, className)
	if err != nil {
		return export.Dataset{}, "", err
	}

	headers := []string{"Ad No", "Name"}
	for _, subject := range subjects {
		headers = append(headers, subject.Name)
	}
	headers = append(headers, "Grand Total", "Average (%)", "Level", "Rank")

	rows := make([]map[string]string, 0, len(students))
	for _, student := range students {
		row := map[string]string{
			"Ad No":       student.AdNo,
			"Name":        student.FullName,
			"Grand Total": fmt.Sprintf("%d", student.GrandTotal),
			"Average (%)": fmt.Sprintf("%.2f", student.Average),
			"Level":       student.PerformanceLevel,
			"Rank":        fmt.Sprintf("%d", student.Rank),
		}
		for _, subject := range subjects {
			if entry, ok := student.Marks[subject.ID]; ok {
				row[subject.Name] = fmt.Sprintf("%d", entry.Total)
			} else {
				row[subject.Name] = ""
			}
		}
		rows = append(rows, row)
	}

	dataset := export.Dataset{Headers: headers, Rows: rows}
	title := fmt.Sprintf("Class Marks %s", className)
	return dataset, title, nil
}

// buildScorecardsDataset produces one row per student and subject with
// component breakdown and pass status.
func (s *ExportService) buildScorecardsDataset(ctx context.Context, className string) (export.Dataset, string, error) {
	students, err := s.performance.LoadClass(ctx, className)
	if err != nil {
		return export.Dataset{}, "", err
	}
	subjects, err := s.classSubjects(ctx, className)
	if err != nil {
		return export.Dataset{}, "", err
	}

	headers := []string{"Ad No", "Name", "Subject", "TA", "CE", "Total", "Status", "Rank"}
	rows := make([]map[string]string, 0, len(students)*len(subjects))
	for _, student := range students {
		for _, subject := range subjects {
			entry, ok := student.Marks[subject.ID]
			if !ok {
				continue
			}
			rows = append(rows, map[string]string{
				"Ad No":   student.AdNo,
				"Name":    student.FullName,
				"Subject": subject.Name,
				"TA":      fmt.Sprintf("%d", entry.TA),
				"CE":      fmt.Sprintf("%d", entry.CE),
				"Total":   fmt.Sprintf("%d", entry.Total),
				"Status":  string(entry.Status),
				"Rank":    fmt.Sprintf("%d", student.Rank),
			})
		}
	}

	dataset := export.Dataset{Headers: headers, Rows: rows}
	title := fmt.Sprintf("Scorecards %s", className)
	return dataset, title, nil
}

// classSubjects returns the subjects assigned to the class, sorted by name.
func (s *ExportService) classSubjects(ctx context.Context, className string) ([]models.SubjectConfig, error) {
	all, err := s.subjects.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var assigned []models.SubjectConfig
	for _, subject := range all {
		if containsString(subject.TargetClasses, className) {
			assigned = append(assigned, subject)
		}
	}
	sort.Slice(assigned, func(i, j int) bool { return assigned[i].Name < assigned[j].Name })
	return assigned, nil
}
