package inbound

import (
	"context"
	"time"

	"github.com/turtacn/NoticeFlow/internal/domain/calendar"
	"github.com/turtacn/NoticeFlow/internal/domain/conversation"
	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/chatgateway"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/NoticeFlow/pkg/errors"
)

const (
	defaultConfidenceThreshold = 0.7
	defaultUpcomingWindowDays  = 3
)

// Action names what the router did with an event.
type Action string

const (
	ActionSelfIgnored      Action = "self_message_ignored"
	ActionEmptyIgnored     Action = "empty_message_ignored"
	ActionDuplicateIgnored Action = "duplicate_message_ignored"
	ActionMediaRejected    Action = "media_rejected"
	ActionInteractive      Action = "interactive_received"
	ActionUnsupported      Action = "unsupported_rejected"
	ActionNotRegistered    Action = "recipient_not_found"
	ActionRecordsListed    Action = "records_listed"
	ActionDeadlinesListed  Action = "deadlines_listed"
	ActionAppearances      Action = "appearances_listed"
	ActionRecordDetail     Action = "record_detail"
	ActionMissingRecordID  Action = "record_id_missing"
	ActionRecordNotFound   Action = "record_not_found"
	ActionQueryFailed      Action = "query_failed"
	ActionFallback         Action = "fallback"
)

// RouteResult reports how an event was handled.
type RouteResult struct {
	Action Action `json:"action"`
	Reply  string `json:"reply,omitempty"`
	// Sent is true when the reply was accepted by the gateway.
	Sent bool `json:"sent"`
}

// Ignored reports whether the event was dropped without a reply.
func (r RouteResult) Ignored() bool {
	switch r.Action {
	case ActionSelfIgnored, ActionEmptyIgnored, ActionDuplicateIgnored:
		return true
	}
	return false
}

// Replier sends a chat reply. The dispatch pipeline's Send satisfies it.
type Replier interface {
	Send(ctx context.Context, to, text string) chatgateway.SendResult
}

// SeenStore remembers event ids across restarts.
type SeenStore interface {
	MarkIfNew(ctx context.Context, id string) (bool, error)
}

// Config tunes a Router.
type Config struct {
	ConfidenceThreshold float64
	UpcomingWindowDays  int
	// Location decides which civil day "today" is.
	Location *time.Location
}

// Router turns inbound chat events into exactly one reply each, or none for
// events it ignores.
type Router struct {
	recipients    notice.RecipientRepository
	notifications notice.NotificationRepository
	classifier    conversation.Classifier
	replier       Replier
	processed     *ProcessedSet
	seen          SeenStore
	metrics       *prometheus.AppMetrics
	cfg           Config
	now           func() time.Time
	logger        logging.Logger
}

// Option customises a Router.
type Option func(*Router)

// WithSeenStore adds a durable duplicate check behind the in-process set.
func WithSeenStore(s SeenStore) Option {
	return func(r *Router) { r.seen = s }
}

func WithProcessedSet(s *ProcessedSet) Option {
	return func(r *Router) { r.processed = s }
}

func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(r *Router) {
		if m != nil {
			r.metrics = m
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

func NewRouter(
	recipients notice.RecipientRepository,
	notifications notice.NotificationRepository,
	classifier conversation.Classifier,
	replier Replier,
	cfg Config,
	log logging.Logger,
	opts ...Option,
) *Router {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = defaultConfidenceThreshold
	}
	if cfg.UpcomingWindowDays <= 0 {
		cfg.UpcomingWindowDays = defaultUpcomingWindowDays
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	r := &Router{
		recipients:    recipients,
		notifications: notifications,
		classifier:    classifier,
		replier:       replier,
		processed:     NewProcessedSet(DefaultProcessedCapacity),
		metrics:       prometheus.NewNopAppMetrics(),
		cfg:           cfg,
		now:           time.Now,
		logger:        log.Named("inbound"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Handle processes one event. Ignored events (own messages, empty bodies,
// repeated ids) get no reply; every other event gets exactly one.
func (r *Router) Handle(ctx context.Context, ev Event) RouteResult {
	res := r.route(ctx, ev)
	prometheus.RecordInboundEvent(r.metrics, string(res.Action))
	return res
}

func (r *Router) route(ctx context.Context, ev Event) RouteResult {
	log := r.logger.With(logging.String("event_id", ev.Key.ID), logging.String("message_type", ev.MessageType))

	if ev.Key.FromMe {
		log.Debug("Ignoring own message")
		return RouteResult{Action: ActionSelfIgnored}
	}
	msg, ok := ev.Parse()
	if !ok {
		log.Debug("Ignoring empty message")
		return RouteResult{Action: ActionEmptyIgnored}
	}
	if !r.markNew(ctx, msg.ID, log) {
		log.Info("Ignoring duplicate message")
		return RouteResult{Action: ActionDuplicateIgnored}
	}

	var action Action
	var reply string
	switch msg.Kind {
	case KindText:
		action, reply = r.answer(ctx, msg, log)
	case KindMedia:
		action, reply = ActionMediaRejected, replyMedia
	case KindInteractive:
		action, reply = ActionInteractive, replyInteractive
	default:
		action, reply = ActionUnsupported, replyUnknownType
	}

	res := r.replier.Send(ctx, msg.From, reply)
	prometheus.RecordInboundReply(r.metrics, res.Sent())
	if !res.Sent() {
		log.Warn("Failed to send reply", logging.String("action", string(action)), logging.String("error", res.Error))
	} else {
		log.Info("Inbound message answered", logging.String("action", string(action)))
	}
	return RouteResult{Action: action, Reply: reply, Sent: res.Sent()}
}

// markNew reports whether id has not been handled yet. Events without an id
// are always handled. A failing durable store is logged and treated as new.
func (r *Router) markNew(ctx context.Context, id string, log logging.Logger) bool {
	if id == "" {
		return true
	}
	if !r.processed.Add(id) {
		return false
	}
	prometheus.RecordSeenSetSize(r.metrics, "memory", r.processed.Len())
	if r.seen == nil {
		return true
	}
	fresh, err := r.seen.MarkIfNew(ctx, id)
	if err != nil {
		log.Warn("Durable seen-store unavailable", logging.Err(err))
		prometheus.RecordError(r.metrics, "inbound", errors.GetCode(err).String())
		return true
	}
	return fresh
}

func (r *Router) answer(ctx context.Context, msg Message, log logging.Logger) (Action, string) {
	intent, err := r.classifier.Classify(ctx, msg.Text)
	if err != nil {
		log.Warn("Intent classification failed", logging.Err(err))
		return ActionFallback, fallbackReply(intent, err)
	}
	log.Debug("Intent classified",
		logging.String("intent", string(intent.Kind)),
		logging.Float64("confidence", intent.Confidence))
	prometheus.RecordInboundIntent(r.metrics, string(intent.Kind))
	if intent.Kind == conversation.IntentUnknown || intent.Confidence < r.cfg.ConfidenceThreshold {
		return ActionFallback, fallbackReply(intent, nil)
	}
	defer prometheus.StartInboundHandler(r.metrics, string(intent.Kind)).ObserveDuration()

	recipient, err := r.recipients.GetByPhone(ctx, msg.From)
	if err != nil {
		if errors.IsNotFound(err) {
			log.Info("Message from unregistered phone")
			return ActionNotRegistered, replyNotRegistered
		}
		return r.queryFailed(err, log)
	}

	today := calendar.Day(r.now().In(r.cfg.Location))
	day := intent.Entities.ResolveDate(today)
	switch intent.Kind {
	case conversation.IntentByDate:
		views, err := r.notifications.ListByPublicationDate(ctx, recipient.ID, day)
		if err != nil {
			return r.queryFailed(err, log)
		}
		return ActionRecordsListed, formatRecords(recipient.Name, views, day, today)

	case conversation.IntentUpcomingDeadlines:
		until := day.AddDate(0, 0, r.cfg.UpcomingWindowDays)
		views, err := r.notifications.ListDueBetween(ctx, recipient.ID, day, until)
		if err != nil {
			return r.queryFailed(err, log)
		}
		return ActionDeadlinesListed, formatDeadlines(recipient.Name, views, until)

	case conversation.IntentNextAppearance:
		kind := intent.Entities.AppearanceType
		if intent.Entities.Next {
			v, err := r.notifications.NextAppearance(ctx, recipient.ID, today, kind)
			if err != nil && !errors.IsNotFound(err) {
				return r.queryFailed(err, log)
			}
			return ActionAppearances, formatNextAppearance(recipient.Name, v)
		}
		views, err := r.notifications.ListAppearancesOn(ctx, recipient.ID, day, kind)
		if err != nil {
			return r.queryFailed(err, log)
		}
		return ActionAppearances, formatAppearances(recipient.Name, views, day, today)

	case conversation.IntentRecordDetail:
		id := intent.Entities.RecordID
		if id == "" {
			return ActionMissingRecordID, replyMissingID
		}
		v, err := r.notifications.GetByExternalID(ctx, recipient.ID, id)
		if err != nil {
			if errors.IsNotFound(err) {
				return ActionRecordNotFound, replyRecordNotFound(id)
			}
			return r.queryFailed(err, log)
		}
		return ActionRecordDetail, formatDetail(recipient.Name, *v, intent.Entities.DetailKind)
	}
	return ActionFallback, fallbackReply(intent, nil)
}

func (r *Router) queryFailed(err error, log logging.Logger) (Action, string) {
	log.Error("Inbound query failed", logging.Err(err))
	prometheus.RecordError(r.metrics, "inbound", errors.GetCode(err).String())
	return ActionQueryFailed, replyQueryFailed
}
