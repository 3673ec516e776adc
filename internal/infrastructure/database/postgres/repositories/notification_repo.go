package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/database/postgres"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/NoticeFlow/pkg/errors"
	"github.com/turtacn/NoticeFlow/pkg/types/common"
)

// viewColumns selects a notification joined with its case and recipient, in
// the order scanView expects.
const viewColumns = `
	n.id, n.external_id, n.recipient_id, n.case_id, n.publication_date,
	n.deadline_days, n.rule_id, n.due_date, n.appearance_type, n.appearance_date, n.appearance_time,
	n.text, n.act_type, n.legal_basis, n.summary, n.practical_consequences, n.suggested_actions,
	n.system_status, n.small_claims_court, n.small_claims_appeal, n.small_claims_counter,
	n.hash, n.communication_number, n.link, n.document_type, n.status, n.created_at, n.updated_at,
	c.process_number, c.formatted_number, c.organ_name, c.jurisdiction, c.class_name,
	c.plaintiff, c.defendant, c.instance, c.category,
	r.name, r.phone`

const viewFrom = `
	FROM notifications n
	JOIN cases c ON c.id = n.case_id
	JOIN recipients r ON r.id = n.recipient_id`

type postgresNotificationRepo struct {
	baseRepo
	now func() time.Time
}

// NewNotificationRepo returns the PostgreSQL notification store. It also
// serves as the record deduplicator.
func NewNotificationRepo(conn *postgres.Connection, log logging.Logger, opts ...Option) notice.NotificationRepository {
	return &postgresNotificationRepo{baseRepo: newBaseRepo(conn, log, opts...), now: time.Now}
}

func (r *postgresNotificationRepo) Seen(ctx context.Context, externalID, recipientID string) (bool, error) {
	defer r.observe("notifications.seen")()
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM notifications WHERE external_id = $1 AND recipient_id = $2)`
	if err := r.executor().QueryRowContext(ctx, query, externalID, recipientID).Scan(&exists); err != nil {
		return false, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to check notification existence").
			WithDetail("external_id=" + externalID)
	}
	return exists, nil
}

func (r *postgresNotificationRepo) Persist(ctx context.Context, c *notice.Case, n *notice.Notification, d *notice.Dispatch) error {
	defer r.observe("notifications.persist")()
	if c == nil || n == nil || d == nil {
		return pkgerrors.InvalidParam("case, notification and dispatch are required")
	}

	actions := n.SuggestedActions
	if actions == nil {
		actions = []string{}
	}
	caseID := string(common.NewID())
	notificationID := string(common.NewID())
	dispatchID := string(common.NewID())
	var createdAt, updatedAt, dispatchCreatedAt time.Time

	err := r.conn.WithTransaction(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO cases (
				id, process_number, formatted_number, organ_name, jurisdiction, class_name,
				plaintiff, defendant, instance, category
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (process_number) DO UPDATE SET
				formatted_number = COALESCE(NULLIF(EXCLUDED.formatted_number, ''), cases.formatted_number),
				organ_name = COALESCE(NULLIF(EXCLUDED.organ_name, ''), cases.organ_name),
				jurisdiction = COALESCE(NULLIF(EXCLUDED.jurisdiction, ''), cases.jurisdiction),
				class_name = COALESCE(NULLIF(EXCLUDED.class_name, ''), cases.class_name),
				plaintiff = COALESCE(NULLIF(EXCLUDED.plaintiff, ''), cases.plaintiff),
				defendant = COALESCE(NULLIF(EXCLUDED.defendant, ''), cases.defendant),
				instance = COALESCE(NULLIF(EXCLUDED.instance, ''), cases.instance),
				category = COALESCE(NULLIF(EXCLUDED.category, ''), cases.category),
				updated_at = NOW()
			RETURNING id`,
			caseID, c.ProcessNumber, c.FormattedProcessNumber, c.OrganName, c.Jurisdiction, c.ClassName,
			c.Plaintiff, c.Defendant, string(c.Instance), string(c.Category),
		).Scan(&caseID)
		if err != nil {
			return pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to upsert case").
				WithDetail("process_number=" + c.ProcessNumber)
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO notifications (
				id, external_id, recipient_id, case_id, publication_date,
				deadline_days, rule_id, due_date, appearance_type, appearance_date, appearance_time,
				text, act_type, legal_basis, summary, practical_consequences, suggested_actions,
				system_status, small_claims_court, small_claims_appeal, small_claims_counter,
				hash, communication_number, link, document_type, status
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
				$18, $19, $20, $21, $22, $23, $24, $25, $26
			)
			ON CONFLICT (external_id, recipient_id) DO NOTHING
			RETURNING created_at, updated_at`,
			notificationID, n.ExternalID, n.RecipientID, caseID, dateOnly(n.PublicationDate),
			n.DeadlineDays, n.RuleID, nullDate(n.DueDate), nullString(string(n.AppearanceType)),
			nullDate(n.AppearanceDate), nullString(n.AppearanceTime),
			n.Text, n.ActType, n.LegalBasis, n.Summary, n.PracticalConsequences, pq.Array(actions),
			n.SystemStatus, n.SmallClaimsCourt, n.SmallClaimsAppeal, n.SmallClaimsCounter,
			n.Hash, n.CommunicationNumber, n.Link, n.DocumentType, string(notice.StatusPending),
		).Scan(&createdAt, &updatedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) || postgres.IsPgCode(err, postgres.UniqueViolation) {
				return pkgerrors.New(pkgerrors.ErrCodeDuplicateNotification, "notification already ingested").
					WithDetail("external_id=" + n.ExternalID + " recipient_id=" + n.RecipientID)
			}
			return pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to insert notification").
				WithDetail("external_id=" + n.ExternalID)
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO dispatches (id, notification_id, channel, status, attempts)
			VALUES ($1, $2, $3, $4, 0)
			RETURNING created_at`,
			dispatchID, notificationID, string(d.Channel), string(notice.DispatchPending),
		).Scan(&dispatchCreatedAt)
		if err != nil {
			return pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to insert dispatch").
				WithDetail("external_id=" + n.ExternalID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.ID = caseID
	n.ID, n.CaseID, n.Status, n.CreatedAt, n.UpdatedAt = notificationID, caseID, notice.StatusPending, createdAt, updatedAt
	d.ID, d.NotificationID, d.Status, d.Attempts, d.CreatedAt = dispatchID, notificationID, notice.DispatchPending, 0, dispatchCreatedAt
	return nil
}

func (r *postgresNotificationRepo) UpdateStatus(ctx context.Context, id string, from, to notice.Status) error {
	defer r.observe("notifications.update_status")()
	if !from.CanTransition(to) {
		return pkgerrors.Newf(pkgerrors.ErrCodeInvalidStatusChange, "cannot move notification from %s to %s", from, to).
			WithDetail("id=" + id)
	}
	res, err := r.executor().ExecContext(ctx,
		`UPDATE notifications SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		string(to), r.now().UTC(), id, string(from))
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to update notification status").
			WithDetail("id=" + id)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to read affected rows")
	}
	if affected == 0 {
		return pkgerrors.Newf(pkgerrors.ErrCodeInvalidStatusChange, "notification is not in status %s", from).
			WithDetail("id=" + id)
	}
	return nil
}

func (r *postgresNotificationRepo) GetByExternalID(ctx context.Context, recipientID, externalID string) (*notice.NotificationView, error) {
	defer r.observe("notifications.get_by_external_id")()
	query := `SELECT ` + viewColumns + viewFrom + ` WHERE n.recipient_id = $1 AND n.external_id = $2`
	v, err := scanView(r.executor().QueryRowContext(ctx, query, recipientID, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.New(pkgerrors.ErrCodeNotificationNotFound, "notification not found").
				WithDetail("external_id=" + externalID)
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to load notification")
	}
	return v, nil
}

func (r *postgresNotificationRepo) ListByPublicationDate(ctx context.Context, recipientID string, day time.Time) ([]notice.NotificationView, error) {
	defer r.observe("notifications.list_by_publication_date")()
	query := `SELECT ` + viewColumns + viewFrom + `
		WHERE n.recipient_id = $1 AND n.publication_date = $2
		ORDER BY n.created_at, n.external_id`
	return r.listViews(ctx, "list notifications by publication date", query, recipientID, dateOnly(day))
}

func (r *postgresNotificationRepo) ListDueBetween(ctx context.Context, recipientID string, from, to time.Time) ([]notice.NotificationView, error) {
	defer r.observe("notifications.list_due_between")()
	query := `SELECT ` + viewColumns + viewFrom + `
		WHERE n.recipient_id = $1 AND n.due_date BETWEEN $2 AND $3
		ORDER BY n.due_date, n.external_id`
	return r.listViews(ctx, "list notifications by due date", query, recipientID, dateOnly(from), dateOnly(to))
}

func (r *postgresNotificationRepo) ListAppearancesOn(ctx context.Context, recipientID string, day time.Time, kind notice.AppearanceType) ([]notice.NotificationView, error) {
	defer r.observe("notifications.list_appearances_on")()
	query := `SELECT ` + viewColumns + viewFrom + `
		WHERE n.recipient_id = $1 AND n.appearance_date = $2
		AND ($3 = '' OR n.appearance_type = $3)
		ORDER BY n.appearance_time NULLS LAST, n.external_id`
	return r.listViews(ctx, "list appearances", query, recipientID, dateOnly(day), string(kind))
}

func (r *postgresNotificationRepo) NextAppearance(ctx context.Context, recipientID string, from time.Time, kind notice.AppearanceType) (*notice.NotificationView, error) {
	defer r.observe("notifications.next_appearance")()
	query := `SELECT ` + viewColumns + viewFrom + `
		WHERE n.recipient_id = $1 AND n.appearance_date >= $2
		AND ($3 = '' OR n.appearance_type = $3)
		ORDER BY n.appearance_date, n.appearance_time NULLS LAST, n.external_id
		LIMIT 1`
	v, err := scanView(r.executor().QueryRowContext(ctx, query, recipientID, dateOnly(from), string(kind)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.New(pkgerrors.ErrCodeNotificationNotFound, "no upcoming appearance")
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to load next appearance")
	}
	return v, nil
}

func (r *postgresNotificationRepo) listViews(ctx context.Context, op, query string, args ...interface{}) ([]notice.NotificationView, error) {
	rows, err := r.executor().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to "+op)
	}
	defer rows.Close()

	var out []notice.NotificationView
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to scan notification")
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to "+op)
	}
	return out, nil
}

// scanView returns sql.ErrNoRows untouched so callers can map it.
func scanView(row scanner) (*notice.NotificationView, error) {
	var (
		v              notice.NotificationView
		dueDate        sql.NullTime
		appearanceType sql.NullString
		appearanceDate sql.NullTime
		appearanceTime sql.NullString
		status         string
		instance       string
		category       string
	)
	err := row.Scan(
		&v.ID, &v.ExternalID, &v.RecipientID, &v.CaseID, &v.PublicationDate,
		&v.DeadlineDays, &v.RuleID, &dueDate, &appearanceType, &appearanceDate, &appearanceTime,
		&v.Text, &v.ActType, &v.LegalBasis, &v.Summary, &v.PracticalConsequences, pq.Array(&v.SuggestedActions),
		&v.SystemStatus, &v.SmallClaimsCourt, &v.SmallClaimsAppeal, &v.SmallClaimsCounter,
		&v.Hash, &v.CommunicationNumber, &v.Link, &v.DocumentType, &status, &v.CreatedAt, &v.UpdatedAt,
		&v.Case.ProcessNumber, &v.Case.FormattedProcessNumber, &v.Case.OrganName, &v.Case.Jurisdiction, &v.Case.ClassName,
		&v.Case.Plaintiff, &v.Case.Defendant, &instance, &category,
		&v.RecipientName, &v.Phone,
	)
	if err != nil {
		return nil, err
	}
	v.PublicationDate = dateOnly(v.PublicationDate)
	v.DueDate = datePtr(dueDate)
	v.AppearanceType = notice.AppearanceType(appearanceType.String)
	v.AppearanceDate = datePtr(appearanceDate)
	v.AppearanceTime = appearanceTime.String
	v.Status = notice.Status(status)
	v.Case.ID = v.CaseID
	v.Case.Instance = notice.Instance(instance)
	v.Case.Category = notice.Category(category)
	return &v, nil
}
