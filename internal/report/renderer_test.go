package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleData() Data {
	start := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	return Data{
		ProjectName:   "Acme Website",
		ClientName:    "Acme Corp",
		StartDate:     start,
		EndDate:       start.Add(Window),
		TotalHours:    12.5,
		ActivityCount: 3,
		GeneratedAt:   start.Add(Window),
		Days: []DayGroup{
			{Date: "Mar 3, 2026", Items: []Item{
				{Type: "commit", Title: "Fix login bug", Description: "Session cookie was dropped on redirect", User: "Dana", Time: "9:14 AM"},
				{Type: "check_in", Title: "Daily Check-in", User: "Lee", Time: "5:30 PM"},
			}},
			{Date: "Mar 5, 2026", Items: []Item{
				{Type: "calendar", Title: "Sprint review", User: "Dana", Time: "2:00 PM"},
			}},
		},
	}
}

func TestRenderProducesValidPDF(t *testing.T) {
	out, err := NewRenderer("WorkLoop").Render(context.Background(), sampleData())
	require.NoError(t, err)
	require.NotEmpty(t, out)
	require.Equal(t, "%PDF", string(out[:4]))
}

func TestRenderEmptyWindowIsStillValid(t *testing.T) {
	data := sampleData()
	data.Days = nil
	data.ActivityCount = 0
	data.TotalHours = 0

	out, err := NewRenderer("WorkLoop").Render(context.Background(), data)
	require.NoError(t, err)
	require.Equal(t, "%PDF", string(out[:4]))
}

func TestRenderIsDeterministicWithPinnedTimestamp(t *testing.T) {
	renderer := NewRenderer("WorkLoop")
	data := sampleData()

	first, err := renderer.Render(context.Background(), data)
	require.NoError(t, err)
	second, err := renderer.Render(context.Background(), data)
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestRenderCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRenderer("WorkLoop").Render(ctx, sampleData())
	require.Error(t, err)

	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	require.Equal(t, "Acme Website", renderErr.ProjectName)
}
