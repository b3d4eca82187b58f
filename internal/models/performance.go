package models

// ClassStat aggregates one class for dashboards and reports.
type ClassStat struct {
	ClassName    string         `json:"class_name"`
	StudentCount int            `json:"student_count"`
	Average      int            `json:"average"`
	TopStudent   *StudentRecord `json:"top_student,omitempty"`
	PassRate     float64        `json:"pass_rate"`
	HighScore    int            `json:"high_score"`
	LowScore     int            `json:"low_score"`
}

// GradeDistributionEntry is one histogram bucket of students by performance
// level. Labels are externally configured and treated as opaque here.
type GradeDistributionEntry struct {
	Level string `json:"level"`
	Count int    `json:"count"`
}

// DashboardOverview composes the cohort-wide reporting payload.
type DashboardOverview struct {
	Classes       []ClassStat              `json:"classes"`
	Distribution  []GradeDistributionEntry `json:"distribution"`
	TopPerformers []StudentRecord          `json:"top_performers"`
}
