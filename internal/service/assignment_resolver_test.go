package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/markaz-go-api/internal/models"
)

func TestNormalizeSubjectName(t *testing.T) {
	assert.Equal(t, "Fiqh", NormalizeSubjectName("  fiqh "))
	assert.Equal(t, "Fiqh", NormalizeSubjectName("FIQH"))
	assert.Equal(t, "Usul al fiqh", NormalizeSubjectName("Usul   AL   Fiqh"))
	assert.Equal(t, "", NormalizeSubjectName("   "))
}

func TestResolveAssignmentSplitsConflicts(t *testing.T) {
	existing := []models.SubjectConfig{
		{ID: "a", Name: "Fiqh", TargetClasses: []string{"S1"}},
		{ID: "b", Name: "fiqh", TargetClasses: []string{"S2"}},
	}

	res := ResolveAssignment(existing, "FIQH", []string{"S1", "S2", "S3"}, "")
	assert.Equal(t, []string{"S1", "S2"}, res.ConflictingClasses)
	assert.Equal(t, []string{"S3"}, res.AllowedClasses)
	assert.True(t, res.HasConflicts())
}

func TestResolveAssignmentNoConflicts(t *testing.T) {
	existing := []models.SubjectConfig{
		{ID: "a", Name: "Fiqh", TargetClasses: []string{"S1"}},
	}

	res := ResolveAssignment(existing, "Nahw", []string{"S1", "S2"}, "")
	assert.Empty(t, res.ConflictingClasses)
	assert.Equal(t, []string{"S1", "S2"}, res.AllowedClasses)
	assert.False(t, res.HasConflicts())
}

func TestResolveAssignmentExcludesEditedRecord(t *testing.T) {
	existing := []models.SubjectConfig{
		{ID: "a", Name: "Fiqh", TargetClasses: []string{"S1", "S2"}},
		{ID: "b", Name: "Fiqh", TargetClasses: []string{"S3"}},
	}

	// Re-saving record "a" with its own classes must not conflict with itself.
	res := ResolveAssignment(existing, "Fiqh", []string{"S1", "S2"}, "a")
	assert.Empty(t, res.ConflictingClasses)
	assert.Equal(t, []string{"S1", "S2"}, res.AllowedClasses)

	// But it still conflicts with record "b".
	res = ResolveAssignment(existing, "Fiqh", []string{"S1", "S3"}, "a")
	assert.Equal(t, []string{"S3"}, res.ConflictingClasses)
	assert.Equal(t, []string{"S1"}, res.AllowedClasses)
}

func TestResolveAssignmentDedupesAndSorts(t *testing.T) {
	res := ResolveAssignment(nil, "Fiqh", []string{"S2", "S1", "S2", ""}, "")
	assert.Equal(t, []string{"S1", "S2"}, res.AllowedClasses)
	assert.Empty(t, res.ConflictingClasses)
}

func TestResolveAssignmentAppliesToElectives(t *testing.T) {
	existing := []models.SubjectConfig{
		{ID: "a", Name: "Calligraphy", SubjectType: models.SubjectTypeElective, TargetClasses: []string{"S1"}},
	}

	res := ResolveAssignment(existing, "Calligraphy", []string{"S1"}, "")
	assert.Equal(t, []string{"S1"}, res.ConflictingClasses)
	assert.Empty(t, res.AllowedClasses)
}
