package repositories

import (
	"context"
	"encoding/json"

	"github.com/lib/pq"

	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/database/postgres"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/NoticeFlow/pkg/errors"
	"github.com/turtacn/NoticeFlow/pkg/types/common"
)

type postgresRunLogRepo struct {
	baseRepo
}

// NewRunLogRepo returns the PostgreSQL execution and query log store.
func NewRunLogRepo(conn *postgres.Connection, log logging.Logger, opts ...Option) notice.RunLogRepository {
	return &postgresRunLogRepo{baseRepo: newBaseRepo(conn, log, opts...)}
}

func (r *postgresRunLogRepo) StartExecution(ctx context.Context, l *notice.ExecutionLog) error {
	defer r.observe("run_logs.start_execution")()
	if l.ID == "" {
		l.ID = string(common.NewID())
	}
	if l.Status == "" {
		l.Status = notice.RunStarted
	}
	recipients := l.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	_, err := r.executor().ExecContext(ctx, `
		INSERT INTO execution_logs (id, recipients, started_at, requests, successes, failures, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		l.ID, pq.Array(recipients), l.StartedAt, l.Requests, l.Successes, l.Failures, string(l.Status), l.Error)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to start execution log")
	}
	return nil
}

func (r *postgresRunLogRepo) FinishExecution(ctx context.Context, l *notice.ExecutionLog) error {
	defer r.observe("run_logs.finish_execution")()
	res, err := r.executor().ExecContext(ctx, `
		UPDATE execution_logs
		SET finished_at = $1, requests = $2, successes = $3, failures = $4, status = $5, error = $6
		WHERE id = $7`,
		nullTime(l.FinishedAt), l.Requests, l.Successes, l.Failures, string(l.Status), l.Error, l.ID)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to finish execution log").
			WithDetail("id=" + l.ID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return pkgerrors.NotFound("execution log not found").WithDetail("id=" + l.ID)
	}
	return nil
}

func (r *postgresRunLogRepo) SaveQuery(ctx context.Context, q *notice.QueryLog) error {
	defer r.observe("run_logs.save_query")()
	if q.ID == "" {
		q.ID = string(common.NewID())
	}
	params, err := json.Marshal(q.Params)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeSerialization, "failed to encode query params")
	}
	if q.Params == nil {
		params = []byte("{}")
	}
	_, err = r.executor().ExecContext(ctx, `
		INSERT INTO query_logs (
			id, execution_id, recipient_id, source_label, params, http_status,
			request_id, result_count, latency_ms, status, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		q.ID, nullString(q.ExecutionID), q.RecipientID, q.SourceLabel, string(params), q.HTTPStatus,
		q.RequestID, q.ResultCount, q.Latency.Milliseconds(), string(q.Status), q.Error)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to save query log").
			WithDetail("recipient_id=" + q.RecipientID)
	}
	return nil
}
