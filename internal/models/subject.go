package models

import (
	"time"

	"github.com/lib/pq"
)

// SubjectType distinguishes how enrollment is derived for a subject.
type SubjectType string

const (
	// SubjectTypeGeneral applies to every student in the subject's target classes.
	SubjectTypeGeneral SubjectType = "general"
	// SubjectTypeElective applies only to explicitly enrolled students.
	SubjectTypeElective SubjectType = "elective"
)

// SubjectConfig is one persisted subject record as created by an operator.
// A single record may span several classes; electives are intentionally
// allowed to exist as multiple per-class records sharing name and faculty,
// which the view layer re-merges for display.
type SubjectConfig struct {
	ID               string         `db:"id" json:"id"`
	Name             string         `db:"name" json:"name"`
	ArabicName       *string        `db:"arabic_name" json:"arabic_name,omitempty"`
	MaxTA            int            `db:"max_ta" json:"max_ta"`
	MaxCE            int            `db:"max_ce" json:"max_ce"`
	PassingTotal     int            `db:"passing_total" json:"passing_total"`
	FacultyName      *string        `db:"faculty_name" json:"faculty_name,omitempty"`
	SubjectType      SubjectType    `db:"subject_type" json:"subject_type"`
	TargetClasses    pq.StringArray `db:"target_classes" json:"target_classes"`
	EnrolledStudents pq.StringArray `db:"enrolled_students" json:"enrolled_students"`
	Version          int            `db:"version" json:"version"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// Faculty returns the display bucket for the subject's instructor.
func (s SubjectConfig) Faculty() string {
	if s.FacultyName == nil || *s.FacultyName == "" {
		return FacultyUnassigned
	}
	return *s.FacultyName
}

// FacultyUnassigned is the grouping bucket for subjects without an instructor.
const FacultyUnassigned = "Unassigned"

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	Type      SubjectType
	Faculty   string
	Class     string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// AssignmentResolution describes the outcome of resolving a proposed
// subject-to-class assignment against the existing catalog.
type AssignmentResolution struct {
	AllowedClasses     []string `json:"allowed_classes"`
	ConflictingClasses []string `json:"conflicting_classes"`
}

// HasConflicts reports whether any requested class collided with an existing record.
func (r AssignmentResolution) HasConflicts() bool {
	return len(r.ConflictingClasses) > 0
}

// FlattenedAssignment is one display row of the per-class assignment view.
// General subjects emit one row per target class; elective records sharing a
// (name, faculty) key collapse into one row whose Classes is the union of all
// underlying records. RelatedIDs lists every merged record so a bulk delete
// of the row removes them all.
type FlattenedAssignment struct {
	ID               string      `json:"id"`
	RelatedIDs       []string    `json:"related_ids"`
	Name             string      `json:"name"`
	ArabicName       *string     `json:"arabic_name,omitempty"`
	FacultyName      string      `json:"faculty_name"`
	SubjectType      SubjectType `json:"subject_type"`
	MaxTA            int         `json:"max_ta"`
	MaxCE            int         `json:"max_ce"`
	PassingTotal     int         `json:"passing_total"`
	Classes          []string    `json:"classes"`
	SpecificClass    string      `json:"specific_class"`
	EnrolledStudents []string    `json:"enrolled_students,omitempty"`
}

// FacultyGroup buckets assignment rows under one instructor.
type FacultyGroup struct {
	FacultyName string                `json:"faculty_name"`
	Assignments []FlattenedAssignment `json:"assignments"`
}
