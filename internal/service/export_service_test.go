package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/markaz-go-api/internal/models"
	"github.com/noah-isme/markaz-go-api/pkg/storage"
)

type fakeExportPerformance struct {
	students map[string][]models.StudentRecord
}

func (f *fakeExportPerformance) LoadClass(_ context.Context, className string) ([]models.StudentRecord, error) {
	return f.students[className], nil
}

type fakeExportSubjects struct {
	subjects []models.SubjectConfig
}

func (f *fakeExportSubjects) ListAll(context.Context) ([]models.SubjectConfig, error) {
	return f.subjects, nil
}

type memoryFileStorage struct {
	saved map[string][]byte
	dir   string
}

func newMemoryFileStorage(t *testing.T) *memoryFileStorage {
	t.Helper()
	return &memoryFileStorage{saved: map[string][]byte{}, dir: t.TempDir()}
}

func (m *memoryFileStorage) Save(filename string, data []byte) (string, error) {
	m.saved[filename] = data
	return filename, nil
}

func (m *memoryFileStorage) Open(filename string) (*os.File, error) {
	data, ok := m.saved[filename]
	if !ok {
		return nil, os.ErrNotExist
	}
	path := m.dir + "/" + filename
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (m *memoryFileStorage) Delete(filename string) error {
	delete(m.saved, filename)
	return nil
}

func (m *memoryFileStorage) CleanupOlderThan(time.Duration) ([]string, error) {
	return nil, nil
}

func newExportFixture(t *testing.T) (*ExportService, *memoryFileStorage) {
	t.Helper()
	faculty := "Ust. Ali"
	subjects := []models.SubjectConfig{
		{ID: "sub2", Name: "Nahw", MaxTA: 50, MaxCE: 30, SubjectType: models.SubjectTypeGeneral, TargetClasses: []string{"S1"}},
		{ID: "sub1", Name: "Fiqh", MaxTA: 50, MaxCE: 30, FacultyName: &faculty, SubjectType: models.SubjectTypeGeneral, TargetClasses: []string{"S1"}},
		{ID: "sub3", Name: "Hifz", MaxTA: 50, MaxCE: 30, SubjectType: models.SubjectTypeGeneral, TargetClasses: []string{"S2"}},
	}
	students := map[string][]models.StudentRecord{
		"S1": {
			{
				ID: "stu1", AdNo: "101", FullName: "Ahmed", ClassName: "S1",
				Marks: map[string]models.MarkEntry{
					"sub1": {TA: 40, CE: 25, Total: 65, Status: models.MarkStatusPassed},
					"sub2": {TA: 30, CE: 20, Total: 50, Status: models.MarkStatusPassed},
				},
				GrandTotal: 115, Average: 71.88, Rank: 1, PerformanceLevel: "Good",
			},
			{
				ID: "stu2", AdNo: "102", FullName: "Bilal", ClassName: "S1",
				Marks: map[string]models.MarkEntry{
					"sub1": {TA: 15, CE: 10, Total: 25, Status: models.MarkStatusFailed},
				},
				GrandTotal: 25, Average: 15.63, Rank: 2, PerformanceLevel: "Failed",
			},
		},
	}
	store := newMemoryFileStorage(t)
	signer := storage.NewSignedURLSigner("export-test-secret", time.Hour)
	svc := NewExportService(
		&fakeExportPerformance{students: students},
		&fakeExportSubjects{subjects: subjects},
		store, signer,
		ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour},
		nil,
	)
	return svc, store
}

func TestExportGenerateClassMarksCSV(t *testing.T) {
	svc, store := newExportFixture(t)
	job := &models.ReportJob{
		ID:        "job1",
		Type:      models.ReportTypeClassMarks,
		Format:    models.ReportFormatCSV,
		ClassName: "S1",
	}

	result, err := svc.Generate(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, models.ReportFormatCSV, result.Format)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/reports/download/"))
	assert.False(t, result.ExpiresAt.IsZero())

	require.Len(t, store.saved, 1)
	var content string
	for name, data := range store.saved {
		assert.True(t, strings.HasPrefix(name, "class_marks_S1_"))
		assert.True(t, strings.HasSuffix(name, ".csv"))
		content = string(data)
	}
	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 3)
	// Subject columns are sorted by name, only S1 subjects appear.
	assert.Equal(t, "Ad No,Name,Fiqh,Nahw,Grand Total,Average (%),Level,Rank", lines[0])
	assert.Equal(t, "101,Ahmed,65,50,115,71.88,Good,1", lines[1])
	assert.Equal(t, "102,Bilal,25,,25,15.63,Failed,2", lines[2])
}

func TestExportGenerateTokenRoundTrips(t *testing.T) {
	svc, _ := newExportFixture(t)
	job := &models.ReportJob{
		ID:        "job1",
		Type:      models.ReportTypeClassMarks,
		Format:    models.ReportFormatCSV,
		ClassName: "S1",
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job1", jobID)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportGenerateScorecardsSkipsMissingMarks(t *testing.T) {
	svc, store := newExportFixture(t)
	job := &models.ReportJob{
		ID:        "job2",
		Type:      models.ReportTypeScorecards,
		Format:    models.ReportFormatCSV,
		ClassName: "S1",
	}

	_, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	var content string
	for _, data := range store.saved {
		content = string(data)
	}
	lines := strings.Split(strings.TrimSpace(content), "\n")
	// Header plus two subject rows for stu1 and one for stu2.
	require.Len(t, lines, 4)
	assert.Equal(t, "Ad No,Name,Subject,TA,CE,Total,Status,Rank", lines[0])
	assert.Contains(t, content, "102,Bilal,Fiqh,15,10,25,Failed,2")
	assert.NotContains(t, content, "Bilal,Nahw")
}

func TestExportGenerateRejectsUnknownFormat(t *testing.T) {
	svc, _ := newExportFixture(t)
	job := &models.ReportJob{
		ID:        "job3",
		Type:      models.ReportTypeClassMarks,
		Format:    models.ReportFormat("doc"),
		ClassName: "S1",
	}

	_, err := svc.Generate(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestExportFilenameSanitized(t *testing.T) {
	svc, store := newExportFixture(t)
	job := &models.ReportJob{
		ID:        "job4",
		Type:      models.ReportTypeClassMarks,
		Format:    models.ReportFormatCSV,
		ClassName: "S1/../etc",
	}

	_, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	for name := range store.saved {
		assert.NotContains(t, name, "..")
		assert.NotContains(t, name, "/")
	}
}

func TestExportXLSXRenderedForClassMarks(t *testing.T) {
	svc, store := newExportFixture(t)
	job := &models.ReportJob{
		ID:        "job5",
		Type:      models.ReportTypeClassMarks,
		Format:    models.ReportFormatXLSX,
		ClassName: "S1",
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, models.ReportFormatXLSX, result.Format)

	for name, data := range store.saved {
		assert.True(t, strings.HasSuffix(name, ".xlsx"), fmt.Sprintf("unexpected filename %s", name))
		// xlsx files are zip archives.
		require.GreaterOrEqual(t, len(data), 4)
		assert.Equal(t, []byte{'P', 'K'}, data[:2])
	}
}
