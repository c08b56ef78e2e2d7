// Package report implements the weekly report pipeline: aggregation,
// rendering, persistence and delivery, scheduled through the queue package.
package report

import (
	"context"
	"fmt"
	"time"

	"example.com/reporting/internal/domain"
)

// Window is the fixed lookback period aggregated into one report. The window
// is rolling ("now minus seven days"), not calendar-aligned.
const Window = 7 * 24 * time.Hour

const (
	dateLabelFormat = "Jan 2, 2006"
	timeLabelFormat = "3:04 PM"
)

// Item is a single activity entry shaped for rendering.
type Item struct {
	Type        string
	Title       string
	Description string
	User        string
	Time        string
}

// DayGroup collects the items of one calendar date, in query order.
type DayGroup struct {
	Date  string
	Items []Item
}

// Data is the renderer-ready aggregate of one reporting window.
type Data struct {
	ProjectName   string
	ClientName    string
	StartDate     time.Time
	EndDate       time.Time
	TotalHours    float64
	ActivityCount int
	Days          []DayGroup
	GeneratedAt   time.Time
}

// Result carries the renderer input plus the raw records and project needed
// by the rest of the pipeline.
type Result struct {
	Project     domain.Project
	Data        Data
	Records     []domain.ActivityRecord
	WindowStart time.Time
	WindowEnd   time.Time
}

// Aggregator shapes a project's activity window into report data. It is a
// pure read: no side effects.
type Aggregator struct {
	projects   domain.ProjectRepository
	activities domain.ActivityRepository
	window     time.Duration
}

// NewAggregator constructs an Aggregator over the given repositories.
func NewAggregator(projects domain.ProjectRepository, activities domain.ActivityRepository) *Aggregator {
	return &Aggregator{projects: projects, activities: activities, window: Window}
}

// Aggregate resolves the project by internal or public identifier, fetches
// all activity inside [end-window, end] inclusive, groups it by calendar
// date and computes totals. Returns domain.ErrProjectNotFound when the
// reference resolves to nothing.
func (a *Aggregator) Aggregate(ctx context.Context, tenantID, projectRef string, end time.Time) (*Result, error) {
	project, err := a.projects.Resolve(ctx, tenantID, projectRef)
	if err != nil {
		return nil, fmt.Errorf("resolve project %q: %w", projectRef, err)
	}
	if project == nil {
		return nil, fmt.Errorf("project %q: %w", projectRef, domain.ErrProjectNotFound)
	}

	end = end.UTC()
	start := end.Add(-a.window)

	records, err := a.activities.ListByProjectWindow(ctx, tenantID, project.ID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list activity for project %s: %w", project.ID, err)
	}

	var totalHours float64
	groups := make(map[string]int)
	days := make([]DayGroup, 0)

	for _, record := range records {
		totalHours += record.Hours()

		user := record.UserName
		if user == "" {
			user = "Unknown"
		}

		item := Item{
			Type:        record.Type,
			Title:       record.Title,
			Description: record.Description,
			User:        user,
			Time:        record.ActivityDate.UTC().Format(timeLabelFormat),
		}

		label := record.ActivityDate.UTC().Format(dateLabelFormat)
		idx, ok := groups[label]
		if !ok {
			idx = len(days)
			groups[label] = idx
			days = append(days, DayGroup{Date: label})
		}
		days[idx].Items = append(days[idx].Items, item)
	}

	return &Result{
		Project: *project,
		Data: Data{
			ProjectName:   project.Name,
			ClientName:    project.ClientName,
			StartDate:     start,
			EndDate:       end,
			TotalHours:    totalHours,
			ActivityCount: len(records),
			Days:          days,
		},
		Records:     records,
		WindowStart: start,
		WindowEnd:   end,
	}, nil
}
