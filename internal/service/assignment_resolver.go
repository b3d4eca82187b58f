package service

import (
	"sort"
	"strings"
	"unicode"

	"github.com/noah-isme/markaz-go-api/internal/models"
)

// NormalizeSubjectName trims, collapses internal whitespace and applies
// sentence case, so "  fiqh " and "FIQH" resolve to the same catalog name.
func NormalizeSubjectName(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	joined := strings.ToLower(strings.Join(fields, " "))
	runes := []rune(joined)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// ResolveAssignment decides which of a proposed subject's target classes may
// be written given the existing catalog. A class conflicts when any other
// record with the same normalized name already targets it; editingID exempts
// the record being updated from the comparison. The rule applies to general
// and elective subjects alike: electives track enrollment independently but
// still claim their classes.
//
// The caller must abort entirely when no class is allowed, and must obtain
// explicit confirmation before persisting a reduced set.
func ResolveAssignment(existing []models.SubjectConfig, proposedName string, targetClasses []string, editingID string) models.AssignmentResolution {
	name := NormalizeSubjectName(proposedName)
	requested := dedupeSorted(targetClasses)

	conflicting := make(map[string]struct{})
	for _, subject := range existing {
		if subject.ID == editingID {
			continue
		}
		if NormalizeSubjectName(subject.Name) != name {
			continue
		}
		taken := make(map[string]struct{}, len(subject.TargetClasses))
		for _, class := range subject.TargetClasses {
			taken[class] = struct{}{}
		}
		for _, class := range requested {
			if _, ok := taken[class]; ok {
				conflicting[class] = struct{}{}
			}
		}
	}

	resolution := models.AssignmentResolution{
		AllowedClasses:     make([]string, 0, len(requested)),
		ConflictingClasses: make([]string, 0, len(conflicting)),
	}
	for _, class := range requested {
		if _, ok := conflicting[class]; ok {
			resolution.ConflictingClasses = append(resolution.ConflictingClasses, class)
		} else {
			resolution.AllowedClasses = append(resolution.AllowedClasses, class)
		}
	}
	return resolution
}

func dedupeSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	sort.Strings(result)
	return result
}
