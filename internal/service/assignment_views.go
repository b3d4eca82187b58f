package service

import (
	"sort"
	"strings"

	"github.com/noah-isme/markaz-go-api/internal/models"
)

// NoClassPlaceholder marks assignment rows whose subject targets no class.
const NoClassPlaceholder = "-"

// FlattenAssignments produces the per-class-assignment view of the catalog.
// General subjects emit one row per target class. Elective records sharing a
// (name, faculty) key are merged into a single row carrying the sorted union
// of their classes, the union of their enrolled students and every
// underlying record id. Rows are ordered by subject name, then class.
func FlattenAssignments(subjects []models.SubjectConfig) []models.FlattenedAssignment {
	rows := make([]models.FlattenedAssignment, 0, len(subjects))

	var electives []models.SubjectConfig
	for _, subject := range subjects {
		if subject.SubjectType == models.SubjectTypeElective {
			electives = append(electives, subject)
			continue
		}
		rows = append(rows, explodeGeneral(subject)...)
	}
	rows = append(rows, mergeElectives(electives)...)

	sortAssignmentRows(rows)
	return rows
}

// GroupByFaculty buckets the same view under each instructor, with subjects
// lacking a faculty collected under "Unassigned". Bucketing is
// case-insensitive so it matches the elective merge key; the first spelling
// seen is kept as the display name. The elective merge result is identical to
// FlattenAssignments for any (name, faculty) pair.
func GroupByFaculty(subjects []models.SubjectConfig) []models.FacultyGroup {
	buckets := make(map[string][]models.SubjectConfig)
	display := make(map[string]string)
	for _, subject := range subjects {
		faculty := subject.Faculty()
		key := strings.ToLower(faculty)
		if _, ok := display[key]; !ok {
			display[key] = faculty
		}
		buckets[key] = append(buckets[key], subject)
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return display[keys[i]] < display[keys[j]] })

	groups := make([]models.FacultyGroup, 0, len(keys))
	for _, key := range keys {
		groups = append(groups, models.FacultyGroup{
			FacultyName: display[key],
			Assignments: FlattenAssignments(buckets[key]),
		})
	}
	return groups
}

func explodeGeneral(subject models.SubjectConfig) []models.FlattenedAssignment {
	classes := dedupeSorted(subject.TargetClasses)
	if len(classes) == 0 {
		return []models.FlattenedAssignment{newAssignmentRow(subject, nil)}
	}
	rows := make([]models.FlattenedAssignment, 0, len(classes))
	for _, class := range classes {
		rows = append(rows, newAssignmentRow(subject, []string{class}))
	}
	return rows
}

func mergeElectives(electives []models.SubjectConfig) []models.FlattenedAssignment {
	type mergeState struct {
		primary  models.SubjectConfig
		ids      []string
		classes  []string
		students []string
	}

	merged := make(map[string]*mergeState)
	var order []string
	for _, subject := range electives {
		key := NormalizeSubjectName(subject.Name) + "\x00" + strings.ToLower(subject.Faculty())
		state, ok := merged[key]
		if !ok {
			state = &mergeState{primary: subject}
			merged[key] = state
			order = append(order, key)
		}
		state.ids = append(state.ids, subject.ID)
		state.classes = append(state.classes, subject.TargetClasses...)
		state.students = append(state.students, subject.EnrolledStudents...)
	}

	rows := make([]models.FlattenedAssignment, 0, len(order))
	for _, key := range order {
		state := merged[key]
		row := newAssignmentRow(state.primary, dedupeSorted(state.classes))
		row.RelatedIDs = state.ids
		row.EnrolledStudents = dedupeSorted(state.students)
		rows = append(rows, row)
	}
	return rows
}

func newAssignmentRow(subject models.SubjectConfig, classes []string) models.FlattenedAssignment {
	specific := NoClassPlaceholder
	if len(classes) == 1 {
		specific = classes[0]
	} else if len(classes) > 1 {
		specific = strings.Join(classes, ", ")
	}
	return models.FlattenedAssignment{
		ID:               subject.ID,
		RelatedIDs:       []string{subject.ID},
		Name:             subject.Name,
		ArabicName:       subject.ArabicName,
		FacultyName:      subject.Faculty(),
		SubjectType:      subject.SubjectType,
		MaxTA:            subject.MaxTA,
		MaxCE:            subject.MaxCE,
		PassingTotal:     subject.PassingTotal,
		Classes:          classes,
		SpecificClass:    specific,
		EnrolledStudents: dedupeSorted(subject.EnrolledStudents),
	}
}

func sortAssignmentRows(rows []models.FlattenedAssignment) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].SpecificClass < rows[j].SpecificClass
	})
}
