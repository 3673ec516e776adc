// Package dispatch sends the message owed for each ingested notification and
// records how delivery went.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/chatgateway"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/NoticeFlow/pkg/errors"
)

const (
	defaultMaxAttempts = 3
	defaultBatchSize   = 100
	replyChannel       = "REPLY"
)

// ErrPassInProgress is returned when another pass, in this process or in
// another worker, is already sending.
var ErrPassInProgress = errors.New(errors.ErrCodeDispatchInProgress, "dispatch pass already in progress")

// PassLock keeps two workers from running a pass at the same time.
type PassLock interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// Messenger transmits a text message. Delivery problems are reported in the
// result.
type Messenger interface {
	Send(ctx context.Context, to, text string) chatgateway.SendResult
}

// EventPublisher publishes domain events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key, eventType string, payload interface{}) error
}

// Config tunes a Pipeline.
type Config struct {
	// MaxAttempts bounds how often a FAILED dispatch is selected again.
	MaxAttempts  int
	BatchSize    int
	OutcomeTopic string
}

// DispatchReport summarises one RunPending pass.
type DispatchReport struct {
	Selected int `json:"selected"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
}

// Pipeline sends pending dispatches. A failed send is recorded on the
// dispatch row and picked up again by a later pass while attempts remain.
type Pipeline struct {
	dispatches    notice.DispatchRepository
	notifications notice.NotificationRepository
	renderer      *Renderer
	messenger     Messenger
	publisher     EventPublisher
	lock          PassLock
	metrics       *prometheus.AppMetrics
	cfg           Config
	now           func() time.Time
	logger        logging.Logger

	// running serialises passes within the process; lock spans processes.
	running sync.Mutex
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithPublisher publishes a dispatch.outcome event per attempt.
func WithPublisher(p EventPublisher) Option {
	return func(pl *Pipeline) { pl.publisher = p }
}

// WithLock serialises passes across workers.
func WithLock(l PassLock) Option {
	return func(pl *Pipeline) { pl.lock = l }
}

func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(pl *Pipeline) {
		if m != nil {
			pl.metrics = m
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(pl *Pipeline) { pl.now = now }
}

func NewPipeline(
	dispatches notice.DispatchRepository,
	notifications notice.NotificationRepository,
	renderer *Renderer,
	messenger Messenger,
	cfg Config,
	log logging.Logger,
	opts ...Option,
) *Pipeline {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if renderer == nil {
		renderer = NewRenderer(nil)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.OutcomeTopic == "" {
		cfg.OutcomeTopic = kafka.TopicDispatchOutcome
	}
	p := &Pipeline{
		dispatches:    dispatches,
		notifications: notifications,
		renderer:      renderer,
		messenger:     messenger,
		metrics:       prometheus.NewNopAppMetrics(),
		cfg:           cfg,
		now:           time.Now,
		logger:        log.Named("dispatch"),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Send is the send primitive shared with the inbound router.
func (p *Pipeline) Send(ctx context.Context, to, text string) chatgateway.SendResult {
	res := p.messenger.Send(ctx, to, text)
	prometheus.RecordDispatchAttempt(p.metrics, replyChannel, string(res.Status))
	return res
}

// RunPending sends every selectable dispatch once. Only repository failures
// are returned; send failures are recorded on the dispatch. A pass that
// overlaps another returns ErrPassInProgress without selecting anything.
func (p *Pipeline) RunPending(ctx context.Context) (*DispatchReport, error) {
	if !p.running.TryLock() {
		return nil, ErrPassInProgress
	}
	defer p.running.Unlock()

	if p.lock != nil {
		ok, err := p.lock.TryLock(ctx)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeUnknown, "failed to acquire dispatch lock")
		}
		if !ok {
			return nil, ErrPassInProgress
		}
		defer func() {
			if err := p.lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				p.logger.Warn("Failed to release dispatch lock", logging.Err(err))
			}
		}()
	}

	jobs, err := p.dispatches.ListSendable(ctx, p.cfg.MaxAttempts, p.cfg.BatchSize)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "failed to list pending dispatches")
	}

	report := &DispatchReport{Selected: len(jobs)}
	prometheus.RecordDispatchPass(p.metrics, len(jobs))
	if len(jobs) == 0 {
		p.logger.Debug("No pending dispatches")
		return report, nil
	}
	p.logger.Info("Dispatch pass started", logging.Int("selected", len(jobs)))

	for i := range jobs {
		if err := ctx.Err(); err != nil {
			return report, errors.Wrap(err, errors.ErrCodeTimeout, "dispatch pass cancelled")
		}
		sent, err := p.dispatchOne(ctx, &jobs[i])
		if err != nil {
			return report, err
		}
		if sent {
			report.Sent++
		} else {
			report.Failed++
		}
	}

	p.logger.Info("Dispatch pass finished",
		logging.Int("selected", report.Selected),
		logging.Int("sent", report.Sent),
		logging.Int("failed", report.Failed))
	return report, nil
}

func (p *Pipeline) dispatchOne(ctx context.Context, job *notice.DispatchJob) (bool, error) {
	d, v := job.Dispatch, job.View
	log := p.logger.With(
		logging.String("dispatch_id", d.ID),
		logging.String("notification_id", v.ID),
		logging.Int("attempt", d.Attempts+1))

	if v.Status == notice.StatusPending {
		if err := p.advance(ctx, v.ID, notice.StatusPending, notice.StatusProcessed, log); err != nil {
			return false, err
		}
		v.Status = notice.StatusProcessed
	}

	var res chatgateway.SendResult
	text, err := p.renderer.Render(v)
	switch {
	case err != nil:
		res = chatgateway.SendResult{Status: chatgateway.StatusFailed, Error: err.Error()}
	case v.Phone == "":
		res = chatgateway.SendResult{Status: chatgateway.StatusFailed, Error: "recipient has no phone number"}
	default:
		res = p.messenger.Send(ctx, v.Phone, text)
	}

	status := notice.DispatchFailed
	var sentAt *time.Time
	if res.Sent() {
		status = notice.DispatchSent
		at := p.now()
		sentAt = &at
	}
	if err := p.dispatches.RecordOutcome(ctx, d.ID, status, res.Error, sentAt); err != nil {
		return false, errors.Wrap(err, errors.CodeUnknown, "failed to record dispatch outcome")
	}
	prometheus.RecordDispatchAttempt(p.metrics, string(d.Channel), string(status))

	if res.Sent() && v.Status == notice.StatusProcessed {
		if err := p.advance(ctx, v.ID, notice.StatusProcessed, notice.StatusNotified, log); err != nil {
			return true, err
		}
	}

	if res.Sent() {
		log.Info("Notification dispatched")
	} else {
		log.Warn("Dispatch failed", logging.String("error", res.Error))
	}
	p.publish(ctx, d, v, status, res.Error, log)
	return res.Sent(), nil
}

// advance moves the notification one step. A row already moved by someone
// else is logged and tolerated.
func (p *Pipeline) advance(ctx context.Context, id string, from, to notice.Status, log logging.Logger) error {
	err := p.notifications.UpdateStatus(ctx, id, from, to)
	if err == nil {
		return nil
	}
	if errors.IsCode(err, errors.ErrCodeInvalidStatusChange) {
		log.Warn("Notification status changed concurrently", logging.String("to", string(to)), logging.Err(err))
		return nil
	}
	return errors.Wrap(err, errors.CodeUnknown, "failed to update notification status")
}

func (p *Pipeline) publish(ctx context.Context, d notice.Dispatch, v notice.NotificationView, status notice.DispatchStatus, sendErr string, log logging.Logger) {
	if p.publisher == nil {
		return
	}
	payload := kafka.DispatchOutcomePayload{
		DispatchID:     d.ID,
		NotificationID: v.ID,
		Channel:        string(d.Channel),
		Status:         string(status),
		Attempts:       d.Attempts + 1,
		Error:          sendErr,
		OccurredAt:     p.now(),
	}
	err := p.publisher.PublishEvent(ctx, p.cfg.OutcomeTopic, d.ID, kafka.EventDispatchOutcome, payload)
	prometheus.RecordEventPublished(p.metrics, p.cfg.OutcomeTopic, err == nil)
	if err != nil {
		log.Warn("Failed to publish dispatch outcome", logging.Err(err))
	}
}
