// Package postgres provides pgx-backed persistence for projects, activity
// records, check-ins and weekly reports. Every query runs inside a
// transaction that sets app.tenant_id so row-level security scopes reads and
// writes to the caller's tenant.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/reporting/internal/domain"
)

// Repository provides Postgres-backed persistence for the reporting domain.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Resolve looks a project up by internal ID first and falls back to the
// public ID; callers pass either form. Returns (nil, nil) when neither
// matches.
func (r *Repository) Resolve(ctx context.Context, tenantID, ref string) (*domain.Project, error) {
	if _, err := uuid.Parse(ref); err != nil {
		return nil, nil
	}

	for _, column := range []string{"project_id", "public_id"} {
		project, err := r.findProject(ctx, tenantID, ref, column)
		if err != nil {
			return nil, err
		}
		if project != nil {
			return project, nil
		}
	}
	return nil, nil
}

func (r *Repository) findProject(ctx context.Context, tenantID, ref, column string) (*domain.Project, error) {
	query := `SELECT project_id, tenant_id, public_id, name, COALESCE(description,''), client_name, COALESCE(client_email,''), slug, status, created_at, updated_at
        FROM projects WHERE tenant_id=$1 AND ` + column + `=$2 AND deleted_at IS NULL`

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

	row := tx.QueryRow(ctx, query, tenantID, ref)
	var p domain.Project
	if err := row.Scan(&p.ID, &p.TenantID, &p.PublicID, &p.Name, &p.Description, &p.ClientName, &p.ClientEmail, &p.Slug, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tx.Commit(ctx)
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create appends an activity record.
func (r *Repository) Create(ctx context.Context, record domain.ActivityRecord) error {
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", record.TenantID); err != nil {
		return err
	}

	if err := insertActivity(ctx, tx, record, metadata); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIdempotentReplay
		}
		return err
	}

	return tx.Commit(ctx)
}

func insertActivity(ctx context.Context, tx pgx.Tx, record domain.ActivityRecord, metadata []byte) error {
	const stmt = `INSERT INTO activities (activity_id, tenant_id, project_id, user_id, user_name, user_avatar, activity_type, source, title, description, metadata, activity_date, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

	_, err := tx.Exec(ctx, stmt,
		record.ID,
		record.TenantID,
		record.ProjectID,
		record.UserID,
		record.UserName,
		nullIfEmpty(record.UserAvatar),
		record.Type,
		record.Source,
		record.Title,
		nullIfEmpty(record.Description),
		metadata,
		record.ActivityDate,
		record.CreatedAt,
	)
	return err
}

// FindByCommitHash returns the activity recorded for a (commit hash, user)
// pair, used to deduplicate webhook replays.
func (r *Repository) FindByCommitHash(ctx context.Context, tenantID, userID, commitHash string) (*domain.ActivityRecord, error) {
	const query = activitySelect + ` WHERE tenant_id=$1 AND user_id=$2 AND metadata->>'commitHash'=$3`

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

	row := tx.QueryRow(ctx, query, tenantID, userID, commitHash)
	record, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tx.Commit(ctx)
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

// ListByProjectWindow returns the project's activity with activity_date in
// [start, end], both bounds inclusive, ordered by activity date ascending.
func (r *Repository) ListByProjectWindow(ctx context.Context, tenantID, projectID string, start, end time.Time) ([]domain.ActivityRecord, error) {
	const query = activitySelect + ` WHERE tenant_id=$1 AND project_id=$2 AND activity_date BETWEEN $3 AND $4
        ORDER BY activity_date ASC, created_at ASC`

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

	rows, err := tx.Query(ctx, query, tenantID, projectID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.ActivityRecord, 0)
	for rows.Next() {
		record, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

const activitySelect = `SELECT activity_id, tenant_id, project_id, user_id, user_name, COALESCE(user_avatar,''), activity_type, source, title, COALESCE(description,''), metadata, activity_date, created_at
        FROM activities`

func scanActivity(row pgx.Row) (*domain.ActivityRecord, error) {
	var record domain.ActivityRecord
	var metadata []byte
	if err := row.Scan(&record.ID, &record.TenantID, &record.ProjectID, &record.UserID, &record.UserName, &record.UserAvatar, &record.Type, &record.Source, &record.Title, &record.Description, &metadata, &record.ActivityDate, &record.CreatedAt); err != nil {
		return nil, err
	}
	record.Metadata = map[string]any{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
			return nil, err
		}
	}
	return &record, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
