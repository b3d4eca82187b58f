package models

import "time"

// MarkStatus is the per-subject pass/fail outcome.
type MarkStatus string

const (
	MarkStatusPassed MarkStatus = "Passed"
	MarkStatusFailed MarkStatus = "Failed"
)

// MarkEntry is the evaluated result of a TA/CE pair for one subject. It is
// always fully derived from (ta, ce) plus the owning subject's maxima and is
// never edited independently.
type MarkEntry struct {
	TA     int        `db:"ta" json:"ta"`
	CE     int        `db:"ce" json:"ce"`
	Total  int        `db:"total" json:"total"`
	Status MarkStatus `db:"status" json:"status"`
}

// Mark is a persisted mark row binding an entry to a student and subject.
type Mark struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	MarkEntry
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentRecord represents one enrolled student. GrandTotal, Average, Rank
// and PerformanceLevel are derived and recomputed on every full class load;
// they are never trusted as already-correct cached values.
type StudentRecord struct {
	ID        string    `db:"id" json:"id"`
	AdNo      string    `db:"ad_no" json:"ad_no"`
	FullName  string    `db:"full_name" json:"name"`
	ClassName string    `db:"class_name" json:"class_name"`
	Semester  string    `db:"semester" json:"semester"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Marks            map[string]MarkEntry `json:"marks,omitempty"`
	GrandTotal       int                  `json:"grand_total"`
	Average          float64              `json:"average"`
	Rank             int                  `json:"rank"`
	PerformanceLevel string               `json:"performance_level,omitempty"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	ClassName string
	Semester  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Scorecard is the per-student report view shown to students and guardians.
type Scorecard struct {
	Student  StudentRecord  `json:"student"`
	Subjects []ScorecardRow `json:"subjects"`
}

// ScorecardRow pairs a subject with the student's evaluated entry.
type ScorecardRow struct {
	SubjectID   string     `json:"subject_id"`
	SubjectName string     `json:"subject_name"`
	ArabicName  *string    `json:"arabic_name,omitempty"`
	MaxTA       int        `json:"max_ta"`
	MaxCE       int        `json:"max_ce"`
	TA          int        `json:"ta"`
	CE          int        `json:"ce"`
	Total       int        `json:"total"`
	Status      MarkStatus `json:"status"`
}
