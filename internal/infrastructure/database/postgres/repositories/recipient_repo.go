package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/database/postgres"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/NoticeFlow/pkg/errors"
)

const recipientColumns = `id, name, phone, active`

type postgresRecipientRepo struct {
	baseRepo
}

// NewRecipientRepo returns the PostgreSQL recipient directory.
func NewRecipientRepo(conn *postgres.Connection, log logging.Logger, opts ...Option) notice.RecipientRepository {
	return &postgresRecipientRepo{baseRepo: newBaseRepo(conn, log, opts...)}
}

func (r *postgresRecipientRepo) ListActive(ctx context.Context) ([]notice.Recipient, error) {
	defer r.observe("recipients.list_active")()
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE active = TRUE ORDER BY name, id`
	rows, err := r.executor().QueryContext(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to list recipients")
	}
	defer rows.Close()

	var out []notice.Recipient
	for rows.Next() {
		rc, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rc)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to iterate recipients")
	}
	return out, nil
}

func (r *postgresRecipientRepo) GetByPhone(ctx context.Context, phone string) (*notice.Recipient, error) {
	defer r.observe("recipients.get_by_phone")()
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE phone = $1 AND active = TRUE ORDER BY id LIMIT 1`
	rc, err := scanRecipient(r.executor().QueryRowContext(ctx, query, phone))
	if err != nil {
		return nil, withDetail(err, "phone="+phone)
	}
	return rc, nil
}

func (r *postgresRecipientRepo) GetByID(ctx context.Context, id string) (*notice.Recipient, error) {
	defer r.observe("recipients.get_by_id")()
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE id = $1`
	rc, err := scanRecipient(r.executor().QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, withDetail(err, "id="+id)
	}
	return rc, nil
}

func scanRecipient(row scanner) (*notice.Recipient, error) {
	var rc notice.Recipient
	if err := row.Scan(&rc.ID, &rc.Name, &rc.Phone, &rc.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.New(pkgerrors.ErrCodeRecipientNotFound, "recipient not found")
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to scan recipient")
	}
	return &rc, nil
}

// withDetail attaches detail to an AppError and passes other errors through.
func withDetail(err error, detail string) error {
	var ae *pkgerrors.AppError
	if errors.As(err, &ae) && ae.Detail == "" {
		return ae.WithDetail(detail)
	}
	return err
}
