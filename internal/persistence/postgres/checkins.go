package postgres

import (
	"context"
	"encoding/json"

	"example.com/reporting/internal/domain"
)

// CreateWithActivity stores the check-in and its derived activity record in a
// single transaction: either both rows land or neither does. A second check-in
// for the same user, project and day maps to domain.ErrDuplicateCheckIn.
func (r *Repository) CreateWithActivity(ctx context.Context, checkIn domain.CheckIn, record domain.ActivityRecord) error {
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", checkIn.TenantID); err != nil {
		return err
	}

	const stmt = `INSERT INTO check_ins (check_in_id, tenant_id, project_id, user_id, user_name, user_avatar, worked_on, planning_to_do, blockers, hours_worked, submitted_at, check_in_date)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	_, err = tx.Exec(ctx, stmt,
		checkIn.ID,
		checkIn.TenantID,
		checkIn.ProjectID,
		checkIn.UserID,
		checkIn.UserName,
		nullIfEmpty(checkIn.UserAvatar),
		checkIn.WorkedOn,
		checkIn.PlanningToDo,
		nullIfEmpty(checkIn.Blockers),
		checkIn.HoursWorked,
		checkIn.SubmittedAt,
		checkIn.CheckInDate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateCheckIn
		}
		return err
	}

	if err := insertActivity(ctx, tx, record, metadata); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
