// Package repositories implements the notice repository ports on PostgreSQL
// through database/sql and the pgx stdlib driver.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/turtacn/NoticeFlow/internal/infrastructure/database/postgres"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/prometheus"
)

// queryExecutor abstracts sql.DB and sql.Tx
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// scanner abstracts sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

type baseRepo struct {
	conn    *postgres.Connection
	log     logging.Logger
	metrics *prometheus.AppMetrics
}

// Option configures a repository.
type Option func(*baseRepo)

// WithMetrics records query latency per operation.
func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(b *baseRepo) {
		if m != nil {
			b.metrics = m
		}
	}
}

func newBaseRepo(conn *postgres.Connection, log logging.Logger, opts ...Option) baseRepo {
	if log == nil {
		log = logging.NewNopLogger()
	}
	b := baseRepo{conn: conn, log: log, metrics: prometheus.NewNopAppMetrics()}
	for _, o := range opts {
		o(&b)
	}
	return b
}

// observe starts timing op. Call the result when the operation is done.
func (r *baseRepo) observe(op string) func() {
	return prometheus.StartDBQuery(r.metrics, "postgres", op).ObserveDuration
}

func (r *baseRepo) executor() queryExecutor {
	return r.conn.DB()
}

// dateOnly truncates t to its civil date at UTC midnight, the shape DATE
// columns round-trip as.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func nullDate(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: dateOnly(*t), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func datePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	d := dateOnly(n.Time)
	return &d
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}
