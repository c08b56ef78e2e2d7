// Package domain defines the business logic for the reporting service.
package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrProjectNotFound is returned when a project reference resolves to nothing.
	ErrProjectNotFound = errors.New("project not found")
	// ErrDuplicateReport indicates a weekly report already exists for the project/week.
	ErrDuplicateReport = errors.New("weekly report already exists for project and week")
	// ErrDuplicateCheckIn indicates the user already checked in for the day.
	ErrDuplicateCheckIn = errors.New("check-in already submitted for today")
	// ErrIdempotentReplay indicates an existing activity was found for the commit hash.
	ErrIdempotentReplay = errors.New("activity already exists for commit hash")
)

// ProjectRepository resolves projects by internal or public identifier.
type ProjectRepository interface {
	// Resolve tries the internal ID first and falls back to the public ID.
	// Returns (nil, nil) when neither matches.
	Resolve(ctx context.Context, tenantID, ref string) (*Project, error)
}

// ActivityRepository captures the append-only activity store.
type ActivityRepository interface {
	Create(ctx context.Context, record ActivityRecord) error
	FindByCommitHash(ctx context.Context, tenantID, userID, commitHash string) (*ActivityRecord, error)
	// ListByProjectWindow returns records with activity_date inside
	// [start, end] inclusive, ordered by activity_date ascending.
	ListByProjectWindow(ctx context.Context, tenantID, projectID string, start, end time.Time) ([]ActivityRecord, error)
}

// CheckInRepository persists check-ins together with their derived activity.
type CheckInRepository interface {
	// CreateWithActivity inserts the check-in and its fan-out activity
	// record in one transaction.
	CreateWithActivity(ctx context.Context, checkIn CheckIn, activity ActivityRecord) error
}

// ReportRepository persists weekly report records.
type ReportRepository interface {
	CreateReport(ctx context.Context, report WeeklyReport) error
	ListRecent(ctx context.Context, tenantID, projectID string, limit int) ([]WeeklyReport, error)
}

// Service orchestrates activity and check-in workflows.
type Service struct {
	projects   ProjectRepository
	activities ActivityRepository
	checkIns   CheckInRepository
}

// NewService constructs a Service.
func NewService(projects ProjectRepository, activities ActivityRepository, checkIns CheckInRepository) *Service {
	return &Service{projects: projects, activities: activities, checkIns: checkIns}
}

// SubmitCheckInInput captures a daily standup submission.
type SubmitCheckInInput struct {
	TenantID     string
	ProjectRef   string
	UserID       string
	UserName     string
	UserAvatar   string
	WorkedOn     string
	PlanningToDo string
	Blockers     string
	HoursWorked  *float64
}

// SubmitCheckIn stores a check-in and fans out the derived activity record.
// The derived record carries the check-in hours in metadata, which is where
// the report aggregator reads total hours from.
func (s *Service) SubmitCheckIn(ctx context.Context, input SubmitCheckInInput) (*CheckIn, error) {
	if strings.TrimSpace(input.WorkedOn) == "" || strings.TrimSpace(input.PlanningToDo) == "" {
		return nil, errors.New("workedOn and planningToDo are required")
	}

	project, err := s.projects.Resolve(ctx, input.TenantID, input.ProjectRef)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	now := time.Now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	checkIn := CheckIn{
		ID:           uuid.NewString(),
		TenantID:     input.TenantID,
		ProjectID:    project.ID,
		UserID:       input.UserID,
		UserName:     input.UserName,
		UserAvatar:   input.UserAvatar,
		WorkedOn:     input.WorkedOn,
		PlanningToDo: input.PlanningToDo,
		Blockers:     input.Blockers,
		HoursWorked:  input.HoursWorked,
		SubmittedAt:  now,
		CheckInDate:  day,
	}

	metadata := map[string]any{MetaCheckInID: checkIn.ID}
	if input.HoursWorked != nil {
		metadata[MetaHours] = *input.HoursWorked
	}

	activity := ActivityRecord{
		ID:           uuid.NewString(),
		TenantID:     input.TenantID,
		ProjectID:    project.ID,
		UserID:       input.UserID,
		UserName:     input.UserName,
		UserAvatar:   input.UserAvatar,
		Type:         ActivityTypeCheckIn,
		Source:       SourceManual,
		Title:        "Daily Check-in",
		Description:  input.WorkedOn,
		Metadata:     metadata,
		ActivityDate: now,
		CreatedAt:    now,
	}

	if err := s.checkIns.CreateWithActivity(ctx, checkIn, activity); err != nil {
		return nil, err
	}
	return &checkIn, nil
}

// RecordActivityInput captures an activity submitted by webhook ingestion or
// manual entry.
type RecordActivityInput struct {
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
}

// RecordActivity appends an activity record. Commit-type records with a
// commit hash are deduplicated: a webhook replay returns the existing record
// instead of inserting a second one.
func (s *Service) RecordActivity(ctx context.Context, input RecordActivityInput) (*ActivityRecord, bool, error) {
	if hash, ok := input.Metadata[MetaCommitHash].(string); ok && hash != "" {
		existing, err := s.activities.FindByCommitHash(ctx, input.TenantID, input.UserID, hash)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	now := time.Now().UTC()
	record := ActivityRecord{
		ID:           uuid.NewString(),
		TenantID:     input.TenantID,
		ProjectID:    input.ProjectID,
		UserID:       input.UserID,
		UserName:     input.UserName,
		UserAvatar:   input.UserAvatar,
		Type:         input.Type,
		Source:       input.Source,
		Title:        input.Title,
		Description:  input.Description,
		Metadata:     input.Metadata,
		ActivityDate: input.ActivityDate.UTC(),
		CreatedAt:    now,
	}
	if record.Metadata == nil {
		record.Metadata = map[string]any{}
	}
	if record.ActivityDate.IsZero() {
		record.ActivityDate = now
	}

	if err := s.activities.Create(ctx, record); err != nil {
		return nil, false, err
	}
	return &record, false, nil
}
