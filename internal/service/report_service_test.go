package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/markaz-go-api/internal/models"
	"github.com/noah-isme/markaz-go-api/internal/repository"
	appErrors "github.com/noah-isme/markaz-go-api/pkg/errors"
	"github.com/noah-isme/markaz-go-api/pkg/jobs"
)

type mockReportStore struct {
	jobs    map[string]*models.ReportJob
	updates []repository.UpdateReportJobParams
}

func (m *mockReportStore) Create(ctx context.Context, job *models.ReportJob) error {
	if m.jobs == nil {
		m.jobs = make(map[string]*models.ReportJob)
	}
	if job.ID == "" {
		job.ID = "job1"
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *mockReportStore) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	if job, ok := m.jobs[id]; ok {
		copied := *job
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportStore) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	m.updates = append(m.updates, params)
	job, ok := m.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.FilePath != nil {
		job.FilePath = params.FilePath
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *mockReportStore) ListByRequester(ctx context.Context, requestedBy string, limit int) ([]models.ReportJob, error) {
	var result []models.ReportJob
	for _, job := range m.jobs {
		if job.RequestedBy == requestedBy {
			result = append(result, *job)
		}
	}
	return result, nil
}

func (m *mockReportStore) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	var result []models.ReportJob
	for _, job := range m.jobs {
		if job.Status == models.ReportJobQueued {
			result = append(result, *job)
		}
	}
	return result, nil
}

func (m *mockReportStore) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	var result []models.ReportJob
	for _, job := range m.jobs {
		if job.Status == models.ReportJobDone && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			result = append(result, *job)
		}
	}
	return result, nil
}

type mockDispatcher struct {
	enqueued []jobs.Job
	err      error
}

func (m *mockDispatcher) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

type mockExportGenerator struct {
	result *ExportResult
	err    error
}

func (m *mockExportGenerator) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func TestReportServiceCreateJob(t *testing.T) {
	store := &mockReportStore{}
	dispatcher := &mockDispatcher{}
	svc := NewReportService(store, dispatcher, nil, nil, zap.NewNop(), ReportServiceConfig{})

	resp, err := svc.CreateJob(context.Background(), CreateReportRequest{
		Type:      models.ReportTypeClassMarks,
		Format:    models.ReportFormatCSV,
		ClassName: "S1",
	}, "user1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportJobQueued, resp.Status)
	require.Len(t, dispatcher.enqueued, 1)
	assert.Equal(t, resp.ID, dispatcher.enqueued[0].ID)
}

func TestReportServiceCreateJobValidation(t *testing.T) {
	svc := NewReportService(&mockReportStore{}, &mockDispatcher{}, nil, nil, zap.NewNop(), ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), CreateReportRequest{Type: models.ReportTypeClassMarks, Format: models.ReportFormatCSV}, "user1")
	require.Error(t, err)

	_, err = svc.CreateJob(context.Background(), CreateReportRequest{Type: "bogus", Format: models.ReportFormatCSV, ClassName: "S1"}, "user1")
	require.Error(t, err)

	_, err = svc.CreateJob(context.Background(), CreateReportRequest{Type: models.ReportTypeClassMarks, Format: "doc", ClassName: "S1"}, "user1")
	require.Error(t, err)
}

func TestReportServiceCreateJobEnqueueFailureMarksFailed(t *testing.T) {
	store := &mockReportStore{}
	dispatcher := &mockDispatcher{err: errors.New("queue stopped")}
	svc := NewReportService(store, dispatcher, nil, nil, zap.NewNop(), ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), CreateReportRequest{
		Type:      models.ReportTypeScorecards,
		Format:    models.ReportFormatPDF,
		ClassName: "S1",
	}, "user1")
	require.Error(t, err)
	require.Len(t, store.jobs, 1)
	for _, job := range store.jobs {
		assert.Equal(t, models.ReportJobFailed, job.Status)
	}
}

func TestReportServiceGetStatusOwnership(t *testing.T) {
	store := &mockReportStore{jobs: map[string]*models.ReportJob{
		"job1": {ID: "job1", Status: models.ReportJobDone, RequestedBy: "owner"},
	}}
	svc := NewReportService(store, &mockDispatcher{}, nil, nil, zap.NewNop(), ReportServiceConfig{})

	resp, err := svc.GetStatus(context.Background(), "job1", "owner", models.RoleFaculty)
	require.NoError(t, err)
	assert.Equal(t, models.ReportJobDone, resp.Status)

	_, err = svc.GetStatus(context.Background(), "job1", "someone-else", models.RoleFaculty)
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	// Admins can inspect any job.
	_, err = svc.GetStatus(context.Background(), "job1", "someone-else", models.RoleAdmin)
	require.NoError(t, err)
}

func TestReportWorkerSuccess(t *testing.T) {
	store := &mockReportStore{jobs: map[string]*models.ReportJob{
		"job1": {ID: "job1", Type: models.ReportTypeClassMarks, Format: models.ReportFormatCSV, ClassName: "S1", Status: models.ReportJobQueued},
	}}
	exporter := &mockExportGenerator{result: &ExportResult{RelativePath: "class_marks_S1.csv", URL: "/api/v1/reports/download/tok"}}
	worker := NewReportWorker(store, exporter, nil, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job1", Attempt: 1})
	require.NoError(t, err)
	job := store.jobs["job1"]
	assert.Equal(t, models.ReportJobDone, job.Status)
	require.NotNil(t, job.ResultURL)
	assert.Equal(t, "/api/v1/reports/download/tok", *job.ResultURL)
	assert.NotNil(t, job.FinishedAt)
}

func TestReportWorkerRetriesThenFails(t *testing.T) {
	store := &mockReportStore{jobs: map[string]*models.ReportJob{
		"job1": {ID: "job1", Type: models.ReportTypeClassMarks, Format: models.ReportFormatCSV, ClassName: "S1", Status: models.ReportJobQueued},
	}}
	exporter := &mockExportGenerator{err: errors.New("storage full")}
	worker := NewReportWorker(store, exporter, nil, 3, zap.NewNop())

	// Below the retry ceiling the job goes back to queued.
	err := worker.Handle(context.Background(), jobs.Job{ID: "job1", Attempt: 1})
	require.Error(t, err)
	assert.Equal(t, models.ReportJobQueued, store.jobs["job1"].Status)

	// At the ceiling it is terminally failed.
	err = worker.Handle(context.Background(), jobs.Job{ID: "job1", Attempt: 3})
	require.Error(t, err)
	assert.Equal(t, models.ReportJobFailed, store.jobs["job1"].Status)
	require.NotNil(t, store.jobs["job1"].ErrorMessage)
	assert.Equal(t, "storage full", *store.jobs["job1"].ErrorMessage)
}
