package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"example.com/reporting/internal/domain"
	"example.com/reporting/internal/observability"
)

// CreateReport persists a weekly report. The unique key on
// (project_id, week_key) rejects a second report for the same project and
// week; that violation maps to domain.ErrDuplicateReport so callers can treat
// the replay as terminal instead of retrying.
func (r *Repository) CreateReport(ctx context.Context, report domain.WeeklyReport) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", report.TenantID); err != nil {
		return err
	}

	const stmt = `INSERT INTO weekly_reports (report_id, tenant_id, project_id, week_start_date, week_end_date, week_key, document_url, total_hours, total_commits, total_check_ins, active_members, sent_to_client, sent_at, generated_at, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`

	weekKey := report.WeekStartDate.UTC().Format("2006-01-02")

	_, err = tx.Exec(ctx, stmt,
		report.ID,
		report.TenantID,
		report.ProjectID,
		report.WeekStartDate,
		report.WeekEndDate,
		weekKey,
		nullIfEmpty(report.DocumentURL),
		report.Stats.TotalHours,
		report.Stats.TotalCommits,
		report.Stats.TotalCheckIns,
		report.Stats.ActiveMembers,
		report.SentToClient,
		report.SentAt,
		report.GeneratedAt,
		report.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateReport
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	observability.RecordReportPersisted(report.CreatedAt)
	return nil
}

// ListRecent returns the tenant's newest reports, optionally filtered to a
// project, ordered by week start descending.
func (r *Repository) ListRecent(ctx context.Context, tenantID, projectID string, limit int) ([]domain.WeeklyReport, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT report_id, tenant_id, project_id, week_start_date, week_end_date, COALESCE(document_url,''), total_hours, total_commits, total_check_ins, active_members, sent_to_client, sent_at, generated_at, created_at
        FROM weekly_reports WHERE tenant_id=$1`
	args := []interface{}{tenantID}
	if projectID != "" {
		query += " AND project_id=$2"
		args = append(args, projectID)
	}
	query += fmt.Sprintf(" ORDER BY week_start_date DESC, created_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := make([]domain.WeeklyReport, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return reports, nil
}

func scanReport(row pgx.Row) (*domain.WeeklyReport, error) {
	var report domain.WeeklyReport
	if err := row.Scan(&report.ID, &report.TenantID, &report.ProjectID, &report.WeekStartDate, &report.WeekEndDate, &report.DocumentURL, &report.Stats.TotalHours, &report.Stats.TotalCommits, &report.Stats.TotalCheckIns, &report.Stats.ActiveMembers, &report.SentToClient, &report.SentAt, &report.GeneratedAt, &report.CreatedAt); err != nil {
		return nil, err
	}
	return &report, nil
}
