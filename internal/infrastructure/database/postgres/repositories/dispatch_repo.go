package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/database/postgres"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/NoticeFlow/pkg/errors"
)

type postgresDispatchRepo struct {
	baseRepo
}

// NewDispatchRepo returns the PostgreSQL dispatch store.
func NewDispatchRepo(conn *postgres.Connection, log logging.Logger, opts ...Option) notice.DispatchRepository {
	return &postgresDispatchRepo{baseRepo: newBaseRepo(conn, log, opts...)}
}

func (r *postgresDispatchRepo) ListSendable(ctx context.Context, maxAttempts, limit int) ([]notice.DispatchJob, error) {
	defer r.observe("dispatches.list_sendable")()
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT d.id, d.notification_id, d.channel, d.status, d.attempts, d.last_error, d.sent_at, d.created_at,` +
		viewColumns + viewFrom + `
		JOIN dispatches d ON d.notification_id = n.id
		WHERE d.status = $1 OR (d.status = $2 AND d.attempts < $3)
		ORDER BY d.created_at, d.id
		LIMIT $4`
	rows, err := r.executor().QueryContext(ctx, query,
		string(notice.DispatchPending), string(notice.DispatchFailed), maxAttempts, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to list sendable dispatches")
	}
	defer rows.Close()

	var jobs []notice.DispatchJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to scan dispatch")
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to iterate dispatches")
	}
	return jobs, nil
}

func (r *postgresDispatchRepo) RecordOutcome(ctx context.Context, id string, status notice.DispatchStatus, lastError string, sentAt *time.Time) error {
	defer r.observe("dispatches.record_outcome")()
	res, err := r.executor().ExecContext(ctx, `
		UPDATE dispatches
		SET status = $1, attempts = attempts + 1, last_error = $2, sent_at = $3, updated_at = NOW()
		WHERE id = $4`,
		string(status), lastError, nullTime(sentAt), id)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to record dispatch outcome").
			WithDetail("id=" + id)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to read affected rows")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.ErrCodeDispatchNotFound, "dispatch not found").WithDetail("id=" + id)
	}
	return nil
}

func scanJob(rows *sql.Rows) (*notice.DispatchJob, error) {
	var (
		job     notice.DispatchJob
		channel string
		status  string
		sentAt  sql.NullTime
	)
	// The view columns follow the dispatch columns; scan them through a
	// prefixing scanner so scanView stays the single source of truth.
	view, err := scanView(prefixScanner{
		row: rows,
		prefix: []interface{}{
			&job.Dispatch.ID, &job.Dispatch.NotificationID, &channel, &status,
			&job.Dispatch.Attempts, &job.Dispatch.LastError, &sentAt, &job.Dispatch.CreatedAt,
		},
	})
	if err != nil {
		return nil, err
	}
	job.View = *view
	job.Dispatch.Channel = notice.Channel(channel)
	job.Dispatch.Status = notice.DispatchStatus(status)
	job.Dispatch.SentAt = timePtr(sentAt)
	return &job, nil
}

// prefixScanner scans extra leading columns ahead of the destinations
// passed to Scan.
type prefixScanner struct {
	row    scanner
	prefix []interface{}
}

func (p prefixScanner) Scan(dest ...interface{}) error {
	return p.row.Scan(append(append([]interface{}{}, p.prefix...), dest...)...)
}
