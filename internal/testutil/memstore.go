package testutil

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	pkgerrors "github.com/turtacn/NoticeFlow/pkg/errors"
)

// MemoryStore is an in-memory implementation of the notice repositories with
// the same uniqueness and status rules as the postgres ones.
type MemoryStore struct {
	mu sync.Mutex

	Recipients    []notice.Recipient
	Cases         map[string]*notice.Case
	Notifications []*notice.Notification
	Dispatches    []*notice.Dispatch
	Executions    []*notice.ExecutionLog
	Queries       []*notice.QueryLog

	// PersistErr, when set, fails every Persist call.
	PersistErr error
	// QueryErr, when set, fails every read used by the inbound handlers.
	QueryErr error

	seq int
}

func NewMemoryStore(recipients ...notice.Recipient) *MemoryStore {
	return &MemoryStore{Recipients: recipients, Cases: map[string]*notice.Case{}}
}

func (s *MemoryStore) nextID(prefix string) string {
	s.seq++
	return prefix + "-" + strconv.Itoa(s.seq)
}

func (s *MemoryStore) ListActive(_ context.Context) ([]notice.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notice.Recipient
	for _, r := range s.Recipients {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetByPhone(_ context.Context, phone string) (*notice.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.Recipients {
		if r.Active && r.Phone == phone {
			rc := r
			return &rc, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.ErrCodeRecipientNotFound, "recipient not found")
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*notice.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.Recipients {
		if r.ID == id {
			rc := r
			return &rc, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.ErrCodeRecipientNotFound, "recipient not found")
}

func (s *MemoryStore) Seen(_ context.Context, externalID, recipientID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(recipientID, externalID) != nil, nil
}

func (s *MemoryStore) find(recipientID, externalID string) *notice.Notification {
	for _, n := range s.Notifications {
		if n.RecipientID == recipientID && n.ExternalID == externalID {
			return n
		}
	}
	return nil
}

func (s *MemoryStore) Persist(_ context.Context, c *notice.Case, n *notice.Notification, d *notice.Dispatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PersistErr != nil {
		return s.PersistErr
	}
	if s.find(n.RecipientID, n.ExternalID) != nil {
		return pkgerrors.New(pkgerrors.ErrCodeDuplicateNotification, "notification already ingested")
	}

	if existing, ok := s.Cases[c.ProcessNumber]; ok {
		c.ID = existing.ID
	} else {
		c.ID = s.nextID("case")
	}
	stored := *c
	s.Cases[c.ProcessNumber] = &stored

	n.ID, n.CaseID, n.Status = s.nextID("ntf"), c.ID, notice.StatusPending
	saved := *n
	s.Notifications = append(s.Notifications, &saved)

	d.ID, d.NotificationID, d.Status, d.Attempts = s.nextID("dsp"), n.ID, notice.DispatchPending, 0
	dsp := *d
	s.Dispatches = append(s.Dispatches, &dsp)
	return nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, from, to notice.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.Notifications {
		if n.ID != id {
			continue
		}
		if n.Status != from {
			return pkgerrors.Newf(pkgerrors.ErrCodeInvalidStatusChange, "notification is not in status %s", from)
		}
		return n.Transition(to)
	}
	return pkgerrors.New(pkgerrors.ErrCodeNotificationNotFound, "notification not found")
}

func (s *MemoryStore) view(n *notice.Notification) notice.NotificationView {
	v := notice.NotificationView{Notification: *n}
	for _, c := range s.Cases {
		if c.ID == n.CaseID {
			v.Case = *c
		}
	}
	for _, r := range s.Recipients {
		if r.ID == n.RecipientID {
			v.RecipientName, v.Phone = r.Name, r.Phone
		}
	}
	return v
}

func (s *MemoryStore) GetByExternalID(_ context.Context, recipientID, externalID string) (*notice.NotificationView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	n := s.find(recipientID, externalID)
	if n == nil {
		return nil, pkgerrors.New(pkgerrors.ErrCodeNotificationNotFound, "notification not found")
	}
	v := s.view(n)
	return &v, nil
}

func (s *MemoryStore) filter(recipientID string, keep func(*notice.Notification) bool) ([]notice.NotificationView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	var out []notice.NotificationView
	for _, n := range s.Notifications {
		if n.RecipientID == recipientID && keep(n) {
			out = append(out, s.view(n))
		}
	}
	return out, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (s *MemoryStore) ListByPublicationDate(_ context.Context, recipientID string, day time.Time) ([]notice.NotificationView, error) {
	return s.filter(recipientID, func(n *notice.Notification) bool { return sameDay(n.PublicationDate, day) })
}

func (s *MemoryStore) ListDueBetween(_ context.Context, recipientID string, from, to time.Time) ([]notice.NotificationView, error) {
	out, err := s.filter(recipientID, func(n *notice.Notification) bool {
		return n.DueDate != nil && !n.DueDate.Before(from) && !n.DueDate.After(to)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	return out, err
}

func kindMatches(n *notice.Notification, kind notice.AppearanceType) bool {
	return kind == notice.AppearanceNone || n.AppearanceType == kind
}

func (s *MemoryStore) ListAppearancesOn(_ context.Context, recipientID string, day time.Time, kind notice.AppearanceType) ([]notice.NotificationView, error) {
	return s.filter(recipientID, func(n *notice.Notification) bool {
		return n.AppearanceDate != nil && sameDay(*n.AppearanceDate, day) && kindMatches(n, kind)
	})
}

func (s *MemoryStore) NextAppearance(_ context.Context, recipientID string, from time.Time, kind notice.AppearanceType) (*notice.NotificationView, error) {
	out, err := s.filter(recipientID, func(n *notice.Notification) bool {
		return n.AppearanceDate != nil && !n.AppearanceDate.Before(from) && kindMatches(n, kind)
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, pkgerrors.New(pkgerrors.ErrCodeNotificationNotFound, "no upcoming appearance")
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].AppearanceDate.Equal(*out[j].AppearanceDate) {
			return out[i].AppearanceDate.Before(*out[j].AppearanceDate)
		}
		return out[i].AppearanceTime < out[j].AppearanceTime
	})
	return &out[0], nil
}

func (s *MemoryStore) ListSendable(_ context.Context, maxAttempts, limit int) ([]notice.DispatchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var jobs []notice.DispatchJob
	for _, d := range s.Dispatches {
		if d.Status != notice.DispatchPending && !(d.Status == notice.DispatchFailed && d.Attempts < maxAttempts) {
			continue
		}
		for _, n := range s.Notifications {
			if n.ID == d.NotificationID {
				jobs = append(jobs, notice.DispatchJob{Dispatch: *d, View: s.view(n)})
			}
		}
		if limit > 0 && len(jobs) == limit {
			break
		}
	}
	return jobs, nil
}

func (s *MemoryStore) RecordOutcome(_ context.Context, id string, status notice.DispatchStatus, lastError string, sentAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.Dispatches {
		if d.ID == id {
			d.Status, d.LastError, d.SentAt = status, lastError, sentAt
			d.Attempts++
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.ErrCodeDispatchNotFound, "dispatch not found")
}

func (s *MemoryStore) StartExecution(_ context.Context, l *notice.ExecutionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = s.nextID("exec")
	stored := *l
	s.Executions = append(s.Executions, &stored)
	return nil
}

func (s *MemoryStore) FinishExecution(_ context.Context, l *notice.ExecutionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.Executions {
		if e.ID == l.ID {
			stored := *l
			s.Executions[i] = &stored
			return nil
		}
	}
	return pkgerrors.NotFound("execution not found")
}

func (s *MemoryStore) SaveQuery(_ context.Context, q *notice.QueryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.ID = s.nextID("query")
	stored := *q
	s.Queries = append(s.Queries, &stored)
	return nil
}

// NotificationByExternalID returns a copy of the stored notification.
func (s *MemoryStore) NotificationByExternalID(externalID string) (notice.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.Notifications {
		if n.ExternalID == externalID {
			return *n, true
		}
	}
	return notice.Notification{}, false
}

// DispatchFor returns a copy of the dispatch of notificationID.
func (s *MemoryStore) DispatchFor(notificationID string) (notice.Dispatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.Dispatches {
		if d.NotificationID == notificationID {
			return *d, true
		}
	}
	return notice.Dispatch{}, false
}

var (
	_ notice.RecipientRepository    = (*MemoryStore)(nil)
	_ notice.NotificationRepository = (*MemoryStore)(nil)
	_ notice.DispatchRepository     = (*MemoryStore)(nil)
	_ notice.RunLogRepository       = (*MemoryStore)(nil)
)
