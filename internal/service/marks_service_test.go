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

type mockMarkStore struct {
	saved     map[string]models.Mark
	deleteErr error
}

func (m *mockMarkStore) key(studentID, subjectID string) string {
	return studentID + "|" + subjectID
}

func (m *mockMarkStore) Upsert(ctx context.Context, mark *models.Mark) error {
	if m.saved == nil {
		m.saved = make(map[string]models.Mark)
	}
	m.saved[m.key(mark.StudentID, mark.SubjectID)] = *mark
	return nil
}

func (m *mockMarkStore) UpsertMany(ctx context.Context, marks []models.Mark) error {
	for i := range marks {
		_ = m.Upsert(ctx, &marks[i])
	}
	return nil
}

func (m *mockMarkStore) FetchByStudents(ctx context.Context, studentIDs []string) (map[string][]models.Mark, error) {
	result := make(map[string][]models.Mark)
	for _, mark := range m.saved {
		result[mark.StudentID] = append(result[mark.StudentID], mark)
	}
	return result, nil
}

func (m *mockMarkStore) Delete(ctx context.Context, studentID, subjectID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.saved, m.key(studentID, subjectID))
	return nil
}

type mockMarksSubjects struct {
	subjects map[string]*models.SubjectConfig
}

func (m *mockMarksSubjects) FindByID(ctx context.Context, id string) (*models.SubjectConfig, error) {
	if s, ok := m.subjects[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockMarksStudents struct {
	students map[string]*models.StudentRecord
}

func (m *mockMarksStudents) FindByID(ctx context.Context, id string) (*models.StudentRecord, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockClassReloader struct {
	roster []models.StudentRecord
}

func (m *mockClassReloader) LoadClass(ctx context.Context, className string) ([]models.StudentRecord, error) {
	return m.roster, nil
}

func newMarksFixture() (*MarksService, *mockMarkStore) {
	store := &mockMarkStore{}
	subjects := &mockMarksSubjects{subjects: map[string]*models.SubjectConfig{
		"sub1": {ID: "sub1", Name: "Fiqh", MaxTA: 50, MaxCE: 30, SubjectType: models.SubjectTypeGeneral, TargetClasses: []string{"S1"}},
		"el1":  {ID: "el1", Name: "Calligraphy", MaxTA: 50, MaxCE: 30, SubjectType: models.SubjectTypeElective, TargetClasses: []string{"S1"}, EnrolledStudents: []string{"stu1"}},
	}}
	students := &mockMarksStudents{students: map[string]*models.StudentRecord{
		"stu1": {ID: "stu1", AdNo: "101", ClassName: "S1"},
		"stu2": {ID: "stu2", AdNo: "102", ClassName: "S1"},
	}}
	reloader := &mockClassReloader{roster: []models.StudentRecord{
		{ID: "stu1", AdNo: "101", ClassName: "S1", GrandTotal: 35, Rank: 1},
		{ID: "stu2", AdNo: "102", ClassName: "S1", Rank: 2},
	}}
	svc := NewMarksService(store, subjects, students, reloader, nil, validator.New(), zap.NewNop())
	return svc, store
}

func TestMarksServiceEnter(t *testing.T) {
	svc, store := newMarksFixture()

	record, err := svc.Enter(context.Background(), EnterMarkRequest{StudentID: "stu1", SubjectID: "sub1", TA: 20, CE: 15})
	require.NoError(t, err)
	assert.Equal(t, "stu1", record.ID)
	assert.Equal(t, 1, record.Rank)

	saved, ok := store.saved["stu1|sub1"]
	require.True(t, ok)
	assert.Equal(t, 35, saved.Total)
	assert.Equal(t, models.MarkStatusPassed, saved.Status)
}

func TestMarksServiceEnterRejectsUnassignedClass(t *testing.T) {
	svc, store := newMarksFixture()

	_, err := svc.Enter(context.Background(), EnterMarkRequest{StudentID: "stu1", SubjectID: "missing", TA: 10, CE: 10})
	require.Error(t, err)

	// Subject exists but does not target the student's class.
	svcSubjects := &mockMarksSubjects{subjects: map[string]*models.SubjectConfig{
		"sub1": {ID: "sub1", Name: "Fiqh", MaxTA: 50, MaxCE: 30, SubjectType: models.SubjectTypeGeneral, TargetClasses: []string{"S9"}},
	}}
	students := &mockMarksStudents{students: map[string]*models.StudentRecord{
		"stu1": {ID: "stu1", ClassName: "S1"},
	}}
	svc = NewMarksService(store, svcSubjects, students, &mockClassReloader{}, nil, validator.New(), zap.NewNop())
	_, err = svc.Enter(context.Background(), EnterMarkRequest{StudentID: "stu1", SubjectID: "sub1", TA: 10, CE: 10})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestMarksServiceEnterRequiresElectiveEnrollment(t *testing.T) {
	svc, _ := newMarksFixture()

	// stu1 is enrolled in the elective, stu2 is not.
	_, err := svc.Enter(context.Background(), EnterMarkRequest{StudentID: "stu1", SubjectID: "el1", TA: 20, CE: 15})
	require.NoError(t, err)

	_, err = svc.Enter(context.Background(), EnterMarkRequest{StudentID: "stu2", SubjectID: "el1", TA: 20, CE: 15})
	require.Error(t, err)
}

func TestMarksServiceEnterElectiveIgnoresClassTargeting(t *testing.T) {
	store := &mockMarkStore{}
	subjects := &mockMarksSubjects{subjects: map[string]*models.SubjectConfig{
		"el1": {ID: "el1", Name: "Calligraphy", MaxTA: 50, MaxCE: 30, SubjectType: models.SubjectTypeElective, TargetClasses: []string{"S1"}, EnrolledStudents: []string{"stu3"}},
	}}
	students := &mockMarksStudents{students: map[string]*models.StudentRecord{
		"stu3": {ID: "stu3", AdNo: "103", ClassName: "S2"},
	}}
	reloader := &mockClassReloader{roster: []models.StudentRecord{
		{ID: "stu3", AdNo: "103", ClassName: "S2", GrandTotal: 35, Rank: 1},
	}}
	svc := NewMarksService(store, subjects, students, reloader, nil, validator.New(), zap.NewNop())

	// stu3 sits in S2 while the elective targets S1; enrollment alone admits
	// the entry.
	_, err := svc.Enter(context.Background(), EnterMarkRequest{StudentID: "stu3", SubjectID: "el1", TA: 20, CE: 15})
	require.NoError(t, err)

	saved, ok := store.saved["stu3|el1"]
	require.True(t, ok)
	assert.Equal(t, 35, saved.Total)
}

func TestMarksServiceEnterOutOfRange(t *testing.T) {
	svc, store := newMarksFixture()

	_, err := svc.Enter(context.Background(), EnterMarkRequest{StudentID: "stu1", SubjectID: "sub1", TA: 51, CE: 0})
	require.Error(t, err)
	assert.Empty(t, store.saved)
}

func TestMarksServiceBulkEnterAtomic(t *testing.T) {
	svc, store := newMarksFixture()

	_, err := svc.BulkEnter(context.Background(), BulkEnterRequest{Entries: []EnterMarkRequest{
		{StudentID: "stu1", SubjectID: "sub1", TA: 20, CE: 15},
		{StudentID: "stu2", SubjectID: "sub1", TA: 51, CE: 0},
	}})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	// Atomic mode saves nothing when any entry is invalid.
	assert.Empty(t, store.saved)
}

func TestMarksServiceBulkEnterPartial(t *testing.T) {
	svc, store := newMarksFixture()

	result, err := svc.BulkEnter(context.Background(), BulkEnterRequest{
		PartialOnError: true,
		Entries: []EnterMarkRequest{
			{StudentID: "stu1", SubjectID: "sub1", TA: 20, CE: 15},
			{StudentID: "stu2", SubjectID: "sub1", TA: 51, CE: 0},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Saved)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, 1, result.Failed[0].Index)
	assert.Equal(t, "stu2", result.Failed[0].StudentID)
	assert.Len(t, store.saved, 1)
}

func TestMarksServiceRemove(t *testing.T) {
	svc, store := newMarksFixture()
	_, err := svc.Enter(context.Background(), EnterMarkRequest{StudentID: "stu1", SubjectID: "sub1", TA: 20, CE: 15})
	require.NoError(t, err)

	require.NoError(t, svc.Remove(context.Background(), "stu1", "sub1"))
	assert.Empty(t, store.saved)
}

func TestMarksServiceRemoveNotFound(t *testing.T) {
	store := &mockMarkStore{deleteErr: sql.ErrNoRows}
	svc := NewMarksService(store, &mockMarksSubjects{}, &mockMarksStudents{}, &mockClassReloader{}, nil, validator.New(), zap.NewNop())

	err := svc.Remove(context.Background(), "stu1", "sub1")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
