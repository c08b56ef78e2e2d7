package domain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeProjects struct {
	project *Project
}

func (f *fakeProjects) Resolve(context.Context, string, string) (*Project, error) {
	return f.project, nil
}

type fakeActivities struct {
	created  []ActivityRecord
	existing *ActivityRecord
}

func (f *fakeActivities) Create(_ context.Context, record ActivityRecord) error {
	f.created = append(f.created, record)
	return nil
}

func (f *fakeActivities) FindByCommitHash(context.Context, string, string, string) (*ActivityRecord, error) {
	return f.existing, nil
}

func (f *fakeActivities) ListByProjectWindow(context.Context, string, string, time.Time, time.Time) ([]ActivityRecord, error) {
	return nil, nil
}

type fakeCheckIns struct {
	checkIn  *CheckIn
	activity *ActivityRecord
	err      error
}

func (f *fakeCheckIns) CreateWithActivity(_ context.Context, checkIn CheckIn, activity ActivityRecord) error {
	if f.err != nil {
		return f.err
	}
	f.checkIn = &checkIn
	f.activity = &activity
	return nil
}

func TestSubmitCheckInFansOutActivity(t *testing.T) {
	hours := 6.5
	projects := &fakeProjects{project: &Project{ID: "proj-1", TenantID: "tenant-1", Name: "Acme"}}
	checkIns := &fakeCheckIns{}
	service := NewService(projects, &fakeActivities{}, checkIns)

	checkIn, err := service.SubmitCheckIn(context.Background(), SubmitCheckInInput{
		TenantID:     "tenant-1",
		ProjectRef:   "proj-1",
		UserID:       "user-1",
		UserName:     "Dana",
		WorkedOn:     "Shipped OAuth flow",
		PlanningToDo: "Write docs",
		HoursWorked:  &hours,
	})
	require.NoError(t, err)
	require.NotEmpty(t, checkIn.ID)

	require.NotNil(t, checkIns.activity)
	activity := checkIns.activity
	require.Equal(t, ActivityTypeCheckIn, activity.Type)
	require.Equal(t, SourceManual, activity.Source)
	require.Equal(t, "Daily Check-in", activity.Title)
	require.Equal(t, "Shipped OAuth flow", activity.Description)
	require.Equal(t, checkIn.ID, activity.Metadata[MetaCheckInID])
	require.Equal(t, hours, activity.Metadata[MetaHours])
	require.InDelta(t, hours, activity.Hours(), 1e-9)

	// The uniqueness key is the calendar day, not the submission instant.
	require.Equal(t, 0, checkIn.CheckInDate.Hour())
	require.Equal(t, time.UTC, checkIn.CheckInDate.Location())
}

func TestSubmitCheckInWithoutHoursOmitsMetadata(t *testing.T) {
	projects := &fakeProjects{project: &Project{ID: "proj-1", TenantID: "tenant-1"}}
	checkIns := &fakeCheckIns{}
	service := NewService(projects, &fakeActivities{}, checkIns)

	_, err := service.SubmitCheckIn(context.Background(), SubmitCheckInInput{
		TenantID:     "tenant-1",
		ProjectRef:   "proj-1",
		UserID:       "user-1",
		WorkedOn:     "Refactoring",
		PlanningToDo: "Tests",
	})
	require.NoError(t, err)

	_, hasHours := checkIns.activity.Metadata[MetaHours]
	require.False(t, hasHours)
	require.Zero(t, checkIns.activity.Hours())
}

func TestSubmitCheckInValidation(t *testing.T) {
	service := NewService(&fakeProjects{}, &fakeActivities{}, &fakeCheckIns{})

	_, err := service.SubmitCheckIn(context.Background(), SubmitCheckInInput{
		TenantID:   "tenant-1",
		ProjectRef: "proj-1",
		WorkedOn:   "  ",
	})
	require.Error(t, err)
}

func TestSubmitCheckInProjectNotFound(t *testing.T) {
	service := NewService(&fakeProjects{}, &fakeActivities{}, &fakeCheckIns{})

	_, err := service.SubmitCheckIn(context.Background(), SubmitCheckInInput{
		TenantID:     "tenant-1",
		ProjectRef:   "missing",
		WorkedOn:     "Work",
		PlanningToDo: "More work",
	})
	require.ErrorIs(t, err, ErrProjectNotFound)
}

func TestRecordActivityDeduplicatesCommits(t *testing.T) {
	existing := &ActivityRecord{ID: "act-1", Metadata: map[string]any{MetaCommitHash: "abc123"}}
	activities := &fakeActivities{existing: existing}
	service := NewService(&fakeProjects{}, activities, &fakeCheckIns{})

	record, replay, err := service.RecordActivity(context.Background(), RecordActivityInput{
		TenantID:  "tenant-1",
		ProjectID: "proj-1",
		UserID:    "user-1",
		Type:      ActivityTypeCommit,
		Source:    SourceGitHub,
		Title:     "abc123: fix build",
		Metadata:  map[string]any{MetaCommitHash: "abc123"},
	})
	require.NoError(t, err)
	require.True(t, replay)
	require.Equal(t, "act-1", record.ID)
	require.Empty(t, activities.created)
}

func TestRecordActivityStoresNewCommit(t *testing.T) {
	activities := &fakeActivities{}
	service := NewService(&fakeProjects{}, activities, &fakeCheckIns{})

	record, replay, err := service.RecordActivity(context.Background(), RecordActivityInput{
		TenantID:  "tenant-1",
		ProjectID: "proj-1",
		UserID:    "user-1",
		Type:      ActivityTypeCommit,
		Source:    SourceGitHub,
		Title:     "def456: add endpoint",
		Metadata:  map[string]any{MetaCommitHash: "def456"},
	})
	require.NoError(t, err)
	require.False(t, replay)
	require.NotEmpty(t, record.ID)
	require.Len(t, activities.created, 1)
	require.False(t, activities.created[0].ActivityDate.IsZero())
}
