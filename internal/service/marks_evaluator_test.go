package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/markaz-go-api/internal/models"
	appErrors "github.com/noah-isme/markaz-go-api/pkg/errors"
)

func TestComponentMinimums(t *testing.T) {
	cases := []struct {
		maxTA, maxCE int
		minTA, minCE int
	}{
		{50, 30, 20, 15},
		{75, 25, 30, 13},
		{100, 0, 40, 0},
		{0, 0, 0, 0},
		{33, 17, 14, 9},
	}
	for _, tc := range cases {
		minTA, minCE := ComponentMinimums(tc.maxTA, tc.maxCE)
		assert.Equal(t, tc.minTA, minTA, "minTA for max %d", tc.maxTA)
		assert.Equal(t, tc.minCE, minCE, "minCE for max %d", tc.maxCE)
	}
}

func TestEvaluateMarkBothComponentsRequired(t *testing.T) {
	subject := models.SubjectConfig{Name: "Fiqh", MaxTA: 50, MaxCE: 30}

	// High total but CE below its 50% floor still fails.
	entry, err := EvaluateMark(20, 14, subject)
	require.NoError(t, err)
	assert.Equal(t, 34, entry.Total)
	assert.Equal(t, models.MarkStatusFailed, entry.Status)

	entry, err = EvaluateMark(20, 15, subject)
	require.NoError(t, err)
	assert.Equal(t, models.MarkStatusPassed, entry.Status)

	// TA below its 40% floor fails regardless of CE.
	entry, err = EvaluateMark(19, 30, subject)
	require.NoError(t, err)
	assert.Equal(t, models.MarkStatusFailed, entry.Status)
}

func TestEvaluateMarkExactMinimumsPass(t *testing.T) {
	subject := models.SubjectConfig{Name: "Nahw", MaxTA: 50, MaxCE: 30}
	entry, err := EvaluateMark(20, 15, subject)
	require.NoError(t, err)
	assert.Equal(t, models.MarkStatusPassed, entry.Status)
	assert.Equal(t, 35, entry.Total)
}

func TestEvaluateMarkSingleComponentSubject(t *testing.T) {
	subject := models.SubjectConfig{Name: "Hifz", MaxTA: 100, MaxCE: 0}

	entry, err := EvaluateMark(40, 0, subject)
	require.NoError(t, err)
	assert.Equal(t, models.MarkStatusPassed, entry.Status)

	entry, err = EvaluateMark(39, 0, subject)
	require.NoError(t, err)
	assert.Equal(t, models.MarkStatusFailed, entry.Status)
}

func TestEvaluateMarkOutOfRange(t *testing.T) {
	subject := models.SubjectConfig{Name: "Fiqh", MaxTA: 50, MaxCE: 30}

	_, err := EvaluateMark(51, 10, subject)
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	_, err = EvaluateMark(10, 31, subject)
	require.Error(t, err)

	_, err = EvaluateMark(-1, 0, subject)
	require.Error(t, err)
}
