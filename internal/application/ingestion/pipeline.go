package ingestion

import (
	"context"
	"strconv"
	"time"

	"github.com/turtacn/NoticeFlow/internal/domain/calendar"
	"github.com/turtacn/NoticeFlow/internal/domain/deadline"
	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/NoticeFlow/pkg/errors"
)

const defaultFetchTimeout = 30 * time.Second

// ErrRunInProgress is returned when another worker holds the run lock.
var ErrRunInProgress = errors.New(errors.ErrCodeRunInProgress, "ingestion run already in progress")

// Record outcomes, also used as metric labels.
const (
	OutcomePersisted        = "persisted"
	OutcomeDuplicate        = "duplicate"
	OutcomeOutOfWindow      = "out_of_window"
	OutcomeExtractionFailed = "extraction_failed"
	OutcomeRuleFailed       = "rule_failed"
)

// Config tunes a Pipeline.
type Config struct {
	// BypassWindow keeps records published on days other than today.
	BypassWindow bool
	// Location decides which civil day is today. Defaults to UTC.
	Location     *time.Location
	FetchTimeout time.Duration
	Channel      notice.Channel
	SourceLabel  string
	// IngestedTopic receives a notice.ingested event per persisted record.
	IngestedTopic string
}

// Dependencies are the collaborators of a Pipeline. Lock, Publisher and
// Metrics are optional.
type Dependencies struct {
	Recipients    notice.RecipientRepository
	Notifications notice.NotificationRepository
	RunLogs       notice.RunLogRepository
	Source        Source
	Extractor     Extractor
	Engine        *deadline.Engine
	Lock          RunLock
	Publisher     EventPublisher
	Metrics       *prometheus.AppMetrics
	Now           func() time.Time
}

// RunReport summarises one Run.
type RunReport struct {
	ExecutionID        string           `json:"execution_id"`
	Status             notice.RunStatus `json:"status"`
	TargetDay          time.Time        `json:"target_day"`
	Recipients         int              `json:"recipients"`
	FetchFailures      int              `json:"fetch_failures"`
	Fetched            int              `json:"fetched"`
	Persisted          int              `json:"persisted"`
	Duplicates         int              `json:"duplicates"`
	OutOfWindow        int              `json:"out_of_window"`
	ExtractionFailures int              `json:"extraction_failures"`
	RuleFailures       int              `json:"rule_failures"`
	StartedAt          time.Time        `json:"started_at"`
	FinishedAt         time.Time        `json:"finished_at"`
}

func (r *RunReport) count(outcome string) {
	switch outcome {
	case OutcomePersisted:
		r.Persisted++
	case OutcomeDuplicate:
		r.Duplicates++
	case OutcomeOutOfWindow:
		r.OutOfWindow++
	case OutcomeExtractionFailed:
		r.ExtractionFailures++
	case OutcomeRuleFailed:
		r.RuleFailures++
	}
}

// Pipeline runs ingestion. Recipients and records are handled one at a time
// in the order the directory and the source return them.
type Pipeline struct {
	deps   Dependencies
	cfg    Config
	logger logging.Logger
}

func NewPipeline(deps Dependencies, cfg Config, log logging.Logger) (*Pipeline, error) {
	switch {
	case deps.Recipients == nil:
		return nil, errors.InvalidParam("recipient repository is required")
	case deps.Notifications == nil:
		return nil, errors.InvalidParam("notification repository is required")
	case deps.RunLogs == nil:
		return nil, errors.InvalidParam("run log repository is required")
	case deps.Source == nil:
		return nil, errors.InvalidParam("source is required")
	case deps.Extractor == nil:
		return nil, errors.InvalidParam("extractor is required")
	case deps.Engine == nil:
		return nil, errors.InvalidParam("deadline engine is required")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	if deps.Metrics == nil {
		deps.Metrics = prometheus.NewNopAppMetrics()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.Channel == "" {
		cfg.Channel = notice.ChannelWhatsApp
	}
	if cfg.IngestedTopic == "" {
		cfg.IngestedTopic = kafka.TopicNoticeIngested
	}
	return &Pipeline{deps: deps, cfg: cfg, logger: log.Named("ingestion")}, nil
}

// Today is the civil day, in the configured location, that the window
// filter keeps.
func (p *Pipeline) Today() time.Time {
	return calendar.Day(p.deps.Now().In(p.cfg.Location))
}

// Run ingests today's records for every active recipient. Fetch failures are
// counted and skipped; a persistence failure stops the run and is returned.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	if p.deps.Lock != nil {
		ok, err := p.deps.Lock.TryLock(ctx)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeUnknown, "failed to acquire ingestion lock")
		}
		if !ok {
			return nil, ErrRunInProgress
		}
		defer func() {
			if err := p.deps.Lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				p.logger.Warn("Failed to release ingestion lock", logging.Err(err))
			}
		}()
	}

	recipients, err := p.deps.Recipients.ListActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "failed to list recipients")
	}

	names := make([]string, 0, len(recipients))
	for _, r := range recipients {
		names = append(names, r.Name)
	}
	exec := &notice.ExecutionLog{
		Recipients: names,
		StartedAt:  p.deps.Now(),
		Status:     notice.RunStarted,
	}
	if err := p.deps.RunLogs.StartExecution(ctx, exec); err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "failed to open execution log")
	}

	report := &RunReport{
		ExecutionID: exec.ID,
		TargetDay:   p.Today(),
		Recipients:  len(recipients),
		StartedAt:   exec.StartedAt,
	}
	p.logger.Info("Ingestion run started",
		logging.String("execution_id", exec.ID),
		logging.Int("recipients", len(recipients)),
		logging.Date("target_day", report.TargetDay),
		logging.Bool("bypass_window", p.cfg.BypassWindow))

	var runErr error
	for _, r := range recipients {
		if err := ctx.Err(); err != nil {
			runErr = errors.Wrap(err, errors.ErrCodeTimeout, "ingestion run cancelled")
			break
		}
		if err := p.ingestRecipient(ctx, exec, r, report); err != nil {
			runErr = err
			break
		}
	}

	return p.finish(ctx, exec, report, runErr)
}

func (p *Pipeline) finish(ctx context.Context, exec *notice.ExecutionLog, report *RunReport, runErr error) (*RunReport, error) {
	finishedAt := p.deps.Now()
	exec.Finish(finishedAt, runErr)
	report.Status = exec.Status
	report.FinishedAt = finishedAt
	report.FetchFailures = exec.Failures

	if err := p.deps.RunLogs.FinishExecution(context.WithoutCancel(ctx), exec); err != nil {
		p.logger.Error("Failed to close execution log", logging.String("execution_id", exec.ID), logging.Err(err))
		if runErr == nil {
			runErr = errors.Wrap(err, errors.CodeUnknown, "failed to close execution log")
		}
	}

	prometheus.RecordIngestionRun(p.deps.Metrics, string(exec.Status), finishedAt.Sub(exec.StartedAt), finishedAt)

	fields := []logging.Field{
		logging.String("execution_id", exec.ID),
		logging.String("status", string(exec.Status)),
		logging.Int("requests", exec.Requests),
		logging.Int("failures", exec.Failures),
		logging.Int("persisted", report.Persisted),
		logging.Int("duplicates", report.Duplicates),
		logging.Duration("elapsed", finishedAt.Sub(exec.StartedAt)),
	}
	if runErr != nil {
		prometheus.RecordError(p.deps.Metrics, "ingestion", string(errors.GetCode(runErr)))
		p.logger.Error("Ingestion run failed", append(fields, logging.Err(runErr))...)
		return report, runErr
	}
	p.logger.Info("Ingestion run finished", fields...)
	return report, nil
}

// ingestRecipient fetches and ingests one recipient's records. Only errors
// that must stop the run are returned.
func (p *Pipeline) ingestRecipient(ctx context.Context, exec *notice.ExecutionLog, r notice.Recipient, report *RunReport) error {
	log := p.logger.With(logging.String("recipient_id", r.ID), logging.String("recipient", r.Name))
	day := p.Today()
	q := notice.FetchQuery{RecipientName: r.Name, From: day, To: day}

	exec.Requests++
	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	res, err := p.deps.Source.Fetch(fetchCtx, q)
	cancel()

	qlog := &notice.QueryLog{
		ExecutionID: exec.ID,
		RecipientID: r.ID,
		SourceLabel: p.cfg.SourceLabel,
		Status:      notice.QuerySuccess,
		CreatedAt:   p.deps.Now(),
	}
	if res != nil {
		qlog.Params = res.Params
		qlog.HTTPStatus = res.HTTPStatus
		qlog.RequestID = res.RequestID
		qlog.ResultCount = len(res.Records)
		qlog.Latency = res.Latency
	}
	switch {
	case err != nil:
		qlog.Status = notice.QueryError
		qlog.Error = err.Error()
	case !res.OK():
		qlog.Status = notice.QueryError
		qlog.Error = "source reported status " + strconv.Quote(res.Status)
	}
	if qerr := p.deps.RunLogs.SaveQuery(ctx, qlog); qerr != nil {
		log.Warn("Failed to save query log", logging.Err(qerr))
	}

	prometheus.RecordSourceFetch(p.deps.Metrics, qlog.Status == notice.QuerySuccess, qlog.ResultCount, qlog.Latency)
	if qlog.Status == notice.QueryError {
		exec.Failures++
		log.Warn("Source fetch failed, skipping recipient", logging.String("error", qlog.Error))
		return nil
	}
	exec.Successes++
	report.Fetched += len(res.Records)
	log.Info("Source fetch succeeded", logging.Int("records", len(res.Records)), logging.Duration("latency", res.Latency))

	for i := range res.Records {
		outcome, err := p.ingestRecord(ctx, r, &res.Records[i], day, log)
		if err != nil {
			return err
		}
		report.count(outcome)
		prometheus.RecordIngestedRecord(p.deps.Metrics, outcome)
	}
	return nil
}

// ingestRecord runs one record through dedup, window, extraction, rules and
// persistence.
func (p *Pipeline) ingestRecord(ctx context.Context, r notice.Recipient, rec *notice.RawRecord, day time.Time, log logging.Logger) (string, error) {
	log = log.With(logging.String("external_id", rec.ExternalID))

	seen, err := p.deps.Notifications.Seen(ctx, rec.ExternalID, r.ID)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeUnknown, "dedup check failed").WithDetail("external_id=" + rec.ExternalID)
	}
	if seen {
		log.Debug("Record already ingested")
		return OutcomeDuplicate, nil
	}

	if !p.cfg.BypassWindow && !calendar.Day(rec.PublicationDate).Equal(day) {
		log.Debug("Record outside ingestion window", logging.Date("publication_date", rec.PublicationDate))
		return OutcomeOutOfWindow, nil
	}

	result, failure, ok := p.deps.Extractor.Extract(ctx, rec.Text).Result()
	if !ok {
		log.Warn("Extraction failed, record skipped", logging.String("reason", failure.Reason))
		return OutcomeExtractionFailed, nil
	}

	det, err := p.deps.Engine.Determine(result, rec.CourtCode, rec.PublicationDate)
	if err != nil {
		log.Warn("Deadline rule failed, record skipped", logging.Err(err))
		return OutcomeRuleFailed, nil
	}

	c, n, d := BuildRecords(r, rec, result, det, p.cfg.Channel)
	if err := p.deps.Notifications.Persist(ctx, c, n, d); err != nil {
		if errors.IsCode(err, errors.ErrCodeDuplicateNotification) {
			log.Debug("Record persisted concurrently, skipped")
			return OutcomeDuplicate, nil
		}
		return "", errors.Wrap(err, errors.CodeUnknown, "failed to persist notification").
			WithDetail("external_id=" + rec.ExternalID)
	}

	prometheus.RecordDeadlineRule(p.deps.Metrics, det.RuleID, det.Jurisdiction)
	log.Info("Notification persisted",
		logging.String("notification_id", n.ID),
		logging.String("rule_id", det.RuleID),
		logging.Int("deadline_days", det.Days))
	p.publish(ctx, c, n, log)
	return OutcomePersisted, nil
}

func (p *Pipeline) publish(ctx context.Context, c *notice.Case, n *notice.Notification, log logging.Logger) {
	if p.deps.Publisher == nil {
		return
	}
	payload := kafka.NoticeIngestedPayload{
		NotificationID:  n.ID,
		ExternalID:      n.ExternalID,
		RecipientID:     n.RecipientID,
		ProcessNumber:   c.ProcessNumber,
		PublicationDate: n.PublicationDate,
		RuleID:          n.RuleID,
		DeadlineDays:    n.DeadlineDays,
		DueDate:         n.DueDate,
		AppearanceDate:  n.AppearanceDate,
	}
	err := p.deps.Publisher.PublishEvent(ctx, p.cfg.IngestedTopic, n.ID, kafka.EventNoticeIngested, payload)
	prometheus.RecordEventPublished(p.deps.Metrics, p.cfg.IngestedTopic, err == nil)
	if err != nil {
		log.Warn("Failed to publish ingested event", logging.Err(err))
	}
}
