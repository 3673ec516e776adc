package notice

import (
	"context"
	"time"
)

// RecipientRepository reads the attorney directory.
type RecipientRepository interface {
	ListActive(ctx context.Context) ([]Recipient, error)
	GetByPhone(ctx context.Context, phone string) (*Recipient, error)
	GetByID(ctx context.Context, id string) (*Recipient, error)
}

// RecordDeduplicator decides whether an (external id, recipient) pair was
// already ingested.
type RecordDeduplicator interface {
	Seen(ctx context.Context, externalID, recipientID string) (bool, error)
}

// NotificationRepository persists notifications together with their case and
// dispatch row.
type NotificationRepository interface {
	RecordDeduplicator

	// Persist upserts c, inserts n and creates d in one transaction. It fills
	// the generated ids back into the arguments. A notification that already
	// exists yields ErrCodeDuplicateNotification and nothing is written.
	Persist(ctx context.Context, c *Case, n *Notification, d *Dispatch) error
	UpdateStatus(ctx context.Context, id string, from, to Status) error
	GetByExternalID(ctx context.Context, recipientID, externalID string) (*NotificationView, error)
	ListByPublicationDate(ctx context.Context, recipientID string, day time.Time) ([]NotificationView, error)
	ListDueBetween(ctx context.Context, recipientID string, from, to time.Time) ([]NotificationView, error)
	// ListAppearancesOn and NextAppearance filter by kind unless it is
	// AppearanceNone.
	ListAppearancesOn(ctx context.Context, recipientID string, day time.Time, kind AppearanceType) ([]NotificationView, error)
	NextAppearance(ctx context.Context, recipientID string, from time.Time, kind AppearanceType) (*NotificationView, error)
}

// DispatchRepository selects and updates outbound dispatch rows.
type DispatchRepository interface {
	// ListSendable returns PENDING dispatches and FAILED ones with fewer than
	// maxAttempts attempts, oldest first.
	ListSendable(ctx context.Context, maxAttempts, limit int) ([]DispatchJob, error)
	RecordOutcome(ctx context.Context, id string, status DispatchStatus, lastError string, sentAt *time.Time) error
}

// RunLogRepository stores execution and query logs.
type RunLogRepository interface {
	StartExecution(ctx context.Context, log *ExecutionLog) error
	FinishExecution(ctx context.Context, log *ExecutionLog) error
	SaveQuery(ctx context.Context, q *QueryLog) error
}
