package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/markaz-go-api/internal/models"
)

func strPtr(v string) *string {
	return &v
}

func TestFlattenAssignmentsExplodesGeneral(t *testing.T) {
	subjects := []models.SubjectConfig{
		{ID: "a", Name: "Fiqh", SubjectType: models.SubjectTypeGeneral, TargetClasses: []string{"S2", "S1"}},
	}

	rows := FlattenAssignments(subjects)
	require.Len(t, rows, 2)
	assert.Equal(t, "S1", rows[0].SpecificClass)
	assert.Equal(t, "S2", rows[1].SpecificClass)
	assert.Equal(t, []string{"a"}, rows[0].RelatedIDs)
}

func TestFlattenAssignmentsNoClassPlaceholder(t *testing.T) {
	subjects := []models.SubjectConfig{
		{ID: "a", Name: "Fiqh", SubjectType: models.SubjectTypeGeneral},
	}

	rows := FlattenAssignments(subjects)
	require.Len(t, rows, 1)
	assert.Equal(t, NoClassPlaceholder, rows[0].SpecificClass)
	assert.Empty(t, rows[0].Classes)
}

func TestFlattenAssignmentsMergesElectives(t *testing.T) {
	subjects := []models.SubjectConfig{
		{ID: "a", Name: "Calligraphy", SubjectType: models.SubjectTypeElective, FacultyName: strPtr("Ust. Ali"), TargetClasses: []string{"S1"}, EnrolledStudents: []string{"stu1"}},
		{ID: "b", Name: "calligraphy", SubjectType: models.SubjectTypeElective, FacultyName: strPtr("Ust. Ali"), TargetClasses: []string{"S2"}, EnrolledStudents: []string{"stu2", "stu1"}},
	}

	rows := FlattenAssignments(subjects)
	require.Len(t, rows, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, rows[0].RelatedIDs)
	assert.Equal(t, []string{"S1", "S2"}, rows[0].Classes)
	assert.Equal(t, "S1, S2", rows[0].SpecificClass)
	assert.Equal(t, []string{"stu1", "stu2"}, rows[0].EnrolledStudents)
}

func TestFlattenAssignmentsElectiveMergeKeyIncludesFaculty(t *testing.T) {
	subjects := []models.SubjectConfig{
		{ID: "a", Name: "Calligraphy", SubjectType: models.SubjectTypeElective, FacultyName: strPtr("Ust. Ali"), TargetClasses: []string{"S1"}},
		{ID: "b", Name: "Calligraphy", SubjectType: models.SubjectTypeElective, FacultyName: strPtr("Ust. Umar"), TargetClasses: []string{"S2"}},
	}

	rows := FlattenAssignments(subjects)
	assert.Len(t, rows, 2)
}

func TestFlattenAssignmentsOrderedByNameThenClass(t *testing.T) {
	subjects := []models.SubjectConfig{
		{ID: "b", Name: "Nahw", SubjectType: models.SubjectTypeGeneral, TargetClasses: []string{"S1"}},
		{ID: "a", Name: "Fiqh", SubjectType: models.SubjectTypeGeneral, TargetClasses: []string{"S2", "S1"}},
	}

	rows := FlattenAssignments(subjects)
	require.Len(t, rows, 3)
	assert.Equal(t, "Fiqh", rows[0].Name)
	assert.Equal(t, "S1", rows[0].SpecificClass)
	assert.Equal(t, "Fiqh", rows[1].Name)
	assert.Equal(t, "S2", rows[1].SpecificClass)
	assert.Equal(t, "Nahw", rows[2].Name)
}

func TestGroupByFaculty(t *testing.T) {
	subjects := []models.SubjectConfig{
		{ID: "a", Name: "Fiqh", SubjectType: models.SubjectTypeGeneral, FacultyName: strPtr("Ust. Ali"), TargetClasses: []string{"S1"}},
		{ID: "b", Name: "Nahw", SubjectType: models.SubjectTypeGeneral, TargetClasses: []string{"S1"}},
	}

	groups := GroupByFaculty(subjects)
	require.Len(t, groups, 2)
	assert.Equal(t, models.FacultyUnassigned, groups[0].FacultyName)
	assert.Equal(t, "Nahw", groups[0].Assignments[0].Name)
	assert.Equal(t, "Ust. Ali", groups[1].FacultyName)
	assert.Equal(t, "Fiqh", groups[1].Assignments[0].Name)
}

func TestGroupByFacultyAgreesWithFlatView(t *testing.T) {
	subjects := []models.SubjectConfig{
		{ID: "a", Name: "Calligraphy", SubjectType: models.SubjectTypeElective, FacultyName: strPtr("Ust. Ali"), TargetClasses: []string{"S1"}},
		{ID: "b", Name: "Calligraphy", SubjectType: models.SubjectTypeElective, FacultyName: strPtr("Ust. Ali"), TargetClasses: []string{"S2"}},
	}

	flat := FlattenAssignments(subjects)
	groups := GroupByFaculty(subjects)
	require.Len(t, flat, 1)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Assignments, 1)
	assert.Equal(t, flat[0].Classes, groups[0].Assignments[0].Classes)
	assert.ElementsMatch(t, flat[0].RelatedIDs, groups[0].Assignments[0].RelatedIDs)
}

func TestGroupByFacultyCaseInsensitiveBuckets(t *testing.T) {
	subjects := []models.SubjectConfig{
		{ID: "a", Name: "Tajwid", SubjectType: models.SubjectTypeElective, FacultyName: strPtr("Ahmed"), TargetClasses: []string{"S1"}},
		{ID: "b", Name: "Tajwid", SubjectType: models.SubjectTypeElective, FacultyName: strPtr("ahmed"), TargetClasses: []string{"S2"}},
	}

	flat := FlattenAssignments(subjects)
	groups := GroupByFaculty(subjects)

	require.Len(t, flat, 1)
	assert.Equal(t, []string{"S1", "S2"}, flat[0].Classes)

	require.Len(t, groups, 1)
	assert.Equal(t, "Ahmed", groups[0].FacultyName)
	require.Len(t, groups[0].Assignments, 1)
	assert.Equal(t, flat[0].Classes, groups[0].Assignments[0].Classes)
	assert.ElementsMatch(t, flat[0].RelatedIDs, groups[0].Assignments[0].RelatedIDs)
}
