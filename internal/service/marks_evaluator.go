package service

import (
	"fmt"
	"math"

	"github.com/noah-isme/markaz-go-api/internal/models"
	appErrors "github.com/noah-isme/markaz-go-api/pkg/errors"
)

// ComponentMinimums returns the per-component thresholds a student must clear
// for the subject: 40% of the TA maximum and 50% of the CE maximum, both
// rounded up. A zero CE maximum models a single-component subject, so its
// minimum is zero and CE is vacuously passed.
func ComponentMinimums(maxTA, maxCE int) (minTA, minCE int) {
	minTA = int(math.Ceil(float64(maxTA) * 0.4))
	minCE = int(math.Ceil(float64(maxCE) * 0.5))
	return minTA, minCE
}

// EvaluateMark derives the stored entry for a TA/CE pair against the owning
// subject's maxima. Both components must individually clear their minimum; a
// high total never compensates for failing one component. The subject's
// passing_total field is informational only and plays no part here.
//
// Out-of-range values are rejected with an error naming the offending
// component, never clamped.
func EvaluateMark(ta, ce int, subject models.SubjectConfig) (models.MarkEntry, error) {
	if ta < 0 || ta > subject.MaxTA {
		return models.MarkEntry{}, appErrors.WithDetails(appErrors.ErrValidation,
			fmt.Sprintf("TA mark %d out of range for %s (0-%d)", ta, subject.Name, subject.MaxTA),
			map[string]interface{}{"component": "ta", "value": ta, "max": subject.MaxTA})
	}
	if ce < 0 || ce > subject.MaxCE {
		return models.MarkEntry{}, appErrors.WithDetails(appErrors.ErrValidation,
			fmt.Sprintf("CE mark %d out of range for %s (0-%d)", ce, subject.Name, subject.MaxCE),
			map[string]interface{}{"component": "ce", "value": ce, "max": subject.MaxCE})
	}

	minTA, minCE := ComponentMinimums(subject.MaxTA, subject.MaxCE)
	status := models.MarkStatusFailed
	if ta >= minTA && ce >= minCE {
		status = models.MarkStatusPassed
	}

	return models.MarkEntry{TA: ta, CE: ce, Total: ta + ce, Status: status}, nil
}
