package domain

import "time"

// CheckIn is a once-per-day-per-user-per-project standup entry. The
// uniqueness key truncates time-of-day: CheckInDate is always midnight UTC.
type CheckIn struct {
	ID           string
	TenantID     string
	ProjectID    string
	UserID       string
	UserName     string
	UserAvatar   string
	WorkedOn     string
	PlanningToDo string
	Blockers     string
	HoursWorked  *float64
	SubmittedAt  time.Time
	CheckInDate  time.Time
}
