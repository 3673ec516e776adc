package notice

import (
	"time"

	pkgerrors "github.com/turtacn/NoticeFlow/pkg/errors"
)

// Recipient is an attorney whose notifications are ingested.
type Recipient struct {
	ID string
	// Name is the display name sent to the source as the query key.
	Name   string
	Phone  string
	Active bool
}

// Case is a judicial process, upserted by ProcessNumber.
type Case struct {
	ID                     string
	ProcessNumber          string
	FormattedProcessNumber string
	OrganName              string
	Jurisdiction           string
	ClassName              string
	Plaintiff              string
	Defendant              string
	Instance               Instance
	Category               Category
}

// Status is the lifecycle state of a Notification.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusProcessed Status = "PROCESSED"
	StatusNotified  Status = "NOTIFIED"
)

var nextStatus = map[Status]Status{
	StatusPending:   StatusProcessed,
	StatusProcessed: StatusNotified,
}

// CanTransition reports whether s may move to next. Only single forward steps
// are allowed and NOTIFIED is terminal.
func (s Status) CanTransition(next Status) bool {
	n, ok := nextStatus[s]
	return ok && n == next
}

// Notification is one ingested record bound to a recipient.
type Notification struct {
	ID              string
	ExternalID      string
	RecipientID     string
	CaseID          string
	PublicationDate time.Time

	DeadlineDays   int
	RuleID         string
	DueDate        *time.Time
	AppearanceType AppearanceType
	AppearanceDate *time.Time
	AppearanceTime string

	Text                  string
	ActType               string
	LegalBasis            string
	Summary               string
	PracticalConsequences string
	SuggestedActions      []string
	SystemStatus          string
	SmallClaimsCourt      bool
	SmallClaimsAppeal     bool
	SmallClaimsCounter    bool

	Hash                string
	CommunicationNumber int
	Link                string
	DocumentType        string
	Status              Status
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Transition moves n to next or returns ErrCodeInvalidStatusChange.
func (n *Notification) Transition(next Status) error {
	if !n.Status.CanTransition(next) {
		return pkgerrors.Newf(pkgerrors.ErrCodeInvalidStatusChange,
			"notification %s cannot move from %s to %s", n.ExternalID, n.Status, next)
	}
	n.Status = next
	return nil
}

// IsAppearance reports whether the notification is anchored on an appearance.
func (n *Notification) IsAppearance() bool {
	return n.AppearanceType.Valid() && n.AppearanceDate != nil
}

// NotificationView is a Notification joined with its Case, as read by the
// dispatch renderer and the inbound query handlers.
type NotificationView struct {
	Notification
	Case          Case
	RecipientName string
	Phone         string
}

// DispatchStatus is the delivery state of a Dispatch.
type DispatchStatus string

const (
	DispatchPending DispatchStatus = "PENDING"
	DispatchSent    DispatchStatus = "SENT"
	DispatchFailed  DispatchStatus = "FAILED"
)

// Channel identifies the outbound medium.
type Channel string

const ChannelWhatsApp Channel = "WHATSAPP"

// Dispatch tracks the single outbound message owed for a Notification.
type Dispatch struct {
	ID             string
	NotificationID string
	Channel        Channel
	Status         DispatchStatus
	Attempts       int
	LastError      string
	SentAt         *time.Time
	CreatedAt      time.Time
}

// DispatchJob is a Dispatch selected for sending together with what is needed
// to render and address it.
type DispatchJob struct {
	Dispatch Dispatch
	View     NotificationView
}

// RunStatus is the state of an ingestion run.
type RunStatus string

const (
	RunStarted RunStatus = "STARTED"
	RunSuccess RunStatus = "SUCCESS"
	RunPartial RunStatus = "PARTIAL"
	RunFailed  RunStatus = "FAILED"
)

// ExecutionLog records one ingestion run.
type ExecutionLog struct {
	ID         string
	Recipients []string
	StartedAt  time.Time
	FinishedAt *time.Time
	Requests   int
	Successes  int
	Failures   int
	Status     RunStatus
	Error      string
}

// Finish closes the log. A non-nil runErr marks the run FAILED, otherwise it is
// SUCCESS or PARTIAL depending on the failure counter.
func (l *ExecutionLog) Finish(at time.Time, runErr error) {
	l.FinishedAt = &at
	switch {
	case runErr != nil:
		l.Status = RunFailed
		l.Error = runErr.Error()
	case l.Failures > 0:
		l.Status = RunPartial
	default:
		l.Status = RunSuccess
	}
}

// QueryStatus is the outcome of one source fetch.
type QueryStatus string

const (
	QuerySuccess QueryStatus = "SUCCESS"
	QueryError   QueryStatus = "ERROR"
)

// QueryLog records one source fetch.
type QueryLog struct {
	ID          string
	ExecutionID string
	RecipientID string
	SourceLabel string
	Params      map[string]string
	HTTPStatus  int
	RequestID   string
	ResultCount int
	Latency     time.Duration
	Status      QueryStatus
	Error       string
	CreatedAt   time.Time
}
