package domain

import "time"

// ReportStats summarises a reporting window.
type ReportStats struct {
	TotalHours    float64
	TotalCommits  int
	TotalCheckIns int
	ActiveMembers int
}

// WeeklyReport records one pipeline run per (project, week). The storage
// layer enforces uniqueness on (project_id, week start date); the record is
// never updated after creation.
type WeeklyReport struct {
	ID            string
	TenantID      string
	ProjectID     string
	WeekStartDate time.Time
	WeekEndDate   time.Time
	Stats         ReportStats
	DocumentURL   string
	GeneratedAt   time.Time
	SentToClient  bool
	SentAt        *time.Time
	CreatedAt     time.Time
}
