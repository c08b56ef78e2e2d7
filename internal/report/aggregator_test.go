package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/reporting/internal/domain"
)

type stubProjects struct {
	project *domain.Project
	err     error

	lastTenant string
	lastRef    string
}

func (s *stubProjects) Resolve(_ context.Context, tenantID, ref string) (*domain.Project, error) {
	s.lastTenant = tenantID
	s.lastRef = ref
	return s.project, s.err
}

type stubActivities struct {
	records []domain.ActivityRecord
	err     error

	lastStart time.Time
	lastEnd   time.Time
}

func (s *stubActivities) Create(context.Context, domain.ActivityRecord) error { return nil }

func (s *stubActivities) FindByCommitHash(context.Context, string, string, string) (*domain.ActivityRecord, error) {
	return nil, nil
}

func (s *stubActivities) ListByProjectWindow(_ context.Context, _, _ string, start, end time.Time) ([]domain.ActivityRecord, error) {
	s.lastStart = start
	s.lastEnd = end
	return s.records, s.err
}

func acmeProject() *domain.Project {
	return &domain.Project{
		ID:          "proj-1",
		TenantID:    "tenant-1",
		Name:        "Acme Website",
		ClientName:  "Acme Corp",
		ClientEmail: "client@acme.test",
		Slug:        "acme-website",
	}
}

func TestAggregateGroupsByDateAndSumsHours(t *testing.T) {
	end := time.Date(2026, time.March, 9, 12, 0, 0, 0, time.UTC)

	records := []domain.ActivityRecord{
		{Type: domain.ActivityTypeCommit, Title: "Fix login bug", UserName: "Dana", ActivityDate: end.Add(-72 * time.Hour)},
		{Type: domain.ActivityTypeCommit, Title: "Add OAuth flow", UserName: "Dana", ActivityDate: end.Add(-71 * time.Hour)},
		{Type: domain.ActivityTypeCheckIn, Title: "Daily Check-in", UserName: "Lee", ActivityDate: end.Add(-48 * time.Hour),
			Metadata: map[string]any{domain.MetaHours: 4.0}},
		{Type: domain.ActivityTypeCommit, Title: "Tune queries", UserName: "Lee", ActivityDate: end.Add(-24 * time.Hour)},
		{Type: domain.ActivityTypeCheckIn, Title: "Daily Check-in", UserName: "Dana", ActivityDate: end.Add(-2 * time.Hour)},
	}

	projects := &stubProjects{project: acmeProject()}
	activities := &stubActivities{records: records}
	agg := NewAggregator(projects, activities)

	result, err := agg.Aggregate(context.Background(), "tenant-1", "proj-1", end)
	require.NoError(t, err)

	require.Equal(t, end.Add(-Window), activities.lastStart)
	require.Equal(t, end, activities.lastEnd)

	require.Equal(t, "Acme Website", result.Data.ProjectName)
	require.Equal(t, "Acme Corp", result.Data.ClientName)
	require.Equal(t, 5, result.Data.ActivityCount)
	require.InDelta(t, 4.0, result.Data.TotalHours, 1e-9)

	// Four distinct calendar dates, oldest first as the query returns them.
	require.Len(t, result.Data.Days, 4)
	require.Equal(t, "Mar 6, 2026", result.Data.Days[0].Date)
	require.Len(t, result.Data.Days[0].Items, 2)
	require.Equal(t, "Fix login bug", result.Data.Days[0].Items[0].Title)
	require.Equal(t, "Mar 9, 2026", result.Data.Days[3].Date)
}

func TestAggregateUnknownUserFallback(t *testing.T) {
	end := time.Date(2026, time.March, 9, 12, 0, 0, 0, time.UTC)
	projects := &stubProjects{project: acmeProject()}
	activities := &stubActivities{records: []domain.ActivityRecord{
		{Type: domain.ActivityTypeManual, Title: "Imported entry", ActivityDate: end.Add(-time.Hour)},
	}}

	result, err := NewAggregator(projects, activities).Aggregate(context.Background(), "tenant-1", "proj-1", end)
	require.NoError(t, err)
	require.Equal(t, "Unknown", result.Data.Days[0].Items[0].User)
}

func TestAggregateEmptyWindow(t *testing.T) {
	projects := &stubProjects{project: acmeProject()}
	activities := &stubActivities{}

	result, err := NewAggregator(projects, activities).Aggregate(context.Background(), "tenant-1", "proj-1", time.Now().UTC())
	require.NoError(t, err)
	require.Empty(t, result.Data.Days)
	require.Zero(t, result.Data.ActivityCount)
	require.Zero(t, result.Data.TotalHours)
}

func TestAggregateProjectNotFound(t *testing.T) {
	projects := &stubProjects{}
	activities := &stubActivities{}

	_, err := NewAggregator(projects, activities).Aggregate(context.Background(), "tenant-1", "missing", time.Now().UTC())
	require.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestAggregatePropagatesRepositoryError(t *testing.T) {
	boom := errors.New("connection reset")
	projects := &stubProjects{project: acmeProject()}
	activities := &stubActivities{err: boom}

	_, err := NewAggregator(projects, activities).Aggregate(context.Background(), "tenant-1", "proj-1", time.Now().UTC())
	require.ErrorIs(t, err, boom)
}
