package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/markaz-go-api/internal/models"
	appErrors "github.com/noah-isme/markaz-go-api/pkg/errors"
)

type mockStudentRepo struct {
	students map[string]*models.StudentRecord
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentRecord, int, error) {
	var result []models.StudentRecord
	for _, s := range m.students {
		result = append(result, *s)
	}
	return result, len(result), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.StudentRecord, error) {
	if s, ok := m.students[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByAdNo(ctx context.Context, adNo string, excludeID string) (bool, error) {
	for _, s := range m.students {
		if s.AdNo == adNo && s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.StudentRecord) error {
	if m.students == nil {
		m.students = make(map[string]*models.StudentRecord)
	}
	if student.ID == "" {
		student.ID = "generated"
	}
	m.students[student.ID] = student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.StudentRecord) error {
	m.students[student.ID] = student
	return nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string) error {
	delete(m.students, id)
	return nil
}

func (m *mockStudentRepo) ListClasses(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var classes []string
	for _, s := range m.students {
		if _, ok := seen[s.ClassName]; !ok {
			seen[s.ClassName] = struct{}{}
			classes = append(classes, s.ClassName)
		}
	}
	return classes, nil
}

func newStudentSvc(repo *mockStudentRepo) *StudentService {
	return NewStudentService(repo, nil, validator.New(), zap.NewNop())
}

func TestStudentServiceCreate(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := newStudentSvc(repo)

	student, err := svc.Create(context.Background(), CreateStudentRequest{AdNo: " 101 ", FullName: " Ahmed ", ClassName: "S1"})
	require.NoError(t, err)
	assert.Equal(t, "101", student.AdNo)
	assert.Equal(t, "Ahmed", student.FullName)
	assert.Len(t, repo.students, 1)
}

func TestStudentServiceCreateDuplicateAdNo(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]*models.StudentRecord{
		"stu1": {ID: "stu1", AdNo: "101", ClassName: "S1"},
	}}
	svc := newStudentSvc(repo)

	_, err := svc.Create(context.Background(), CreateStudentRequest{AdNo: "101", FullName: "Bilal", ClassName: "S1"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestStudentServiceUpdateKeepsOwnAdNo(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]*models.StudentRecord{
		"stu1": {ID: "stu1", AdNo: "101", FullName: "Ahmed", ClassName: "S1"},
	}}
	svc := newStudentSvc(repo)

	// Re-saving the student's own admission number is not a conflict.
	student, err := svc.Update(context.Background(), "stu1", UpdateStudentRequest{AdNo: "101", FullName: "Ahmed K", ClassName: "S2"})
	require.NoError(t, err)
	assert.Equal(t, "Ahmed K", student.FullName)
	assert.Equal(t, "S2", student.ClassName)
}

func TestStudentServiceUpdateRejectsTakenAdNo(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]*models.StudentRecord{
		"stu1": {ID: "stu1", AdNo: "101", ClassName: "S1"},
		"stu2": {ID: "stu2", AdNo: "102", ClassName: "S1"},
	}}
	svc := newStudentSvc(repo)

	_, err := svc.Update(context.Background(), "stu2", UpdateStudentRequest{AdNo: "101", FullName: "Bilal", ClassName: "S1"})
	require.Error(t, err)
}

func TestStudentServiceDeleteNotFound(t *testing.T) {
	svc := newStudentSvc(&mockStudentRepo{})

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestStudentServiceValidation(t *testing.T) {
	svc := newStudentSvc(&mockStudentRepo{})

	_, err := svc.Create(context.Background(), CreateStudentRequest{FullName: "Ahmed", ClassName: "S1"})
	require.Error(t, err)
}
