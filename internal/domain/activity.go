package domain

import "time"

// Activity types recognised by the reporting pipeline.
const (
	ActivityTypeCommit   = "commit"
	ActivityTypeCalendar = "calendar"
	ActivityTypeCheckIn  = "check_in"
	ActivityTypeManual   = "manual"
)

// Activity sources.
const (
	SourceGitHub         = "github"
	SourceGoogleCalendar = "google_calendar"
	SourceManual         = "manual"
)

// Metadata keys populated by specific producers.
const (
	MetaCommitHash = "commitHash"
	MetaCheckInID  = "checkInId"
	MetaHours      = "hours"
)

// ActivityRecord is an immutable fact about work done on a project. Records
// are appended by webhook ingestion, manual entry, or the check-in fan-out
// and are never mutated afterwards.
type ActivityRecord struct {
	ID           string
	TenantID     string
	ProjectID    string
	UserID       string
	UserName     string
	UserAvatar   string
	Type         string
	Source       string
	Title        string
	Description  string
	Metadata     map[string]any
	ActivityDate time.Time
	CreatedAt    time.Time
}

// CommitHash returns the commit hash metadata value, if present.
func (a ActivityRecord) CommitHash() string {
	if v, ok := a.Metadata[MetaCommitHash].(string); ok {
		return v
	}
	return ""
}

// Hours returns the self-reported hours carried in metadata. Missing or
// non-numeric values count as zero.
func (a ActivityRecord) Hours() float64 {
	switch v := a.Metadata[MetaHours].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
