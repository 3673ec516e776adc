package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds every NoticeFlow metric.
type AppMetrics struct {
	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec

	// Ingestion
	IngestionRunsTotal       CounterVec
	IngestionRunDuration     HistogramVec
	IngestionRecordsTotal    CounterVec
	IngestionLastRunRecorded GaugeVec

	// Source
	SourceFetchTotal    CounterVec
	SourceFetchDuration HistogramVec
	SourceRecordsTotal  CounterVec

	// Extraction
	ExtractionRequestsTotal   CounterVec
	ExtractionRequestDuration HistogramVec
	ExtractionTokensTotal     CounterVec

	// Deadlines
	DeadlineRulesAppliedTotal CounterVec

	// Dispatch
	DispatchAttemptsTotal CounterVec
	DispatchPending       GaugeVec

	// Inbound
	InboundEventsTotal      CounterVec
	InboundIntentsTotal     CounterVec
	InboundRepliesTotal     CounterVec
	InboundHandlerDuration  HistogramVec
	InboundSeenSetOccupancy GaugeVec

	// Infrastructure
	DBQueryDuration        HistogramVec
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec
	EventsPublishedTotal   CounterVec
	MessageProcessDuration HistogramVec

	ErrorsTotal CounterVec
}

var (
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultRunDurationBuckets  = []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800}
	DefaultLLMDurationBuckets  = []float64{.5, 1, 2, 5, 10, 30, 60, 120}
	DefaultDBDurationBuckets   = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
)

// NewAppMetrics registers all metrics on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")

	m.IngestionRunsTotal = collector.RegisterCounter("ingestion_runs_total", "Ingestion runs by final status", "status")
	m.IngestionRunDuration = collector.RegisterHistogram("ingestion_run_duration_seconds", "Ingestion run duration", DefaultRunDurationBuckets)
	m.IngestionRecordsTotal = collector.RegisterCounter("ingestion_records_total", "Source records by outcome", "outcome")
	m.IngestionLastRunRecorded = collector.RegisterGauge("ingestion_last_run_timestamp_seconds", "Unix time of the last finished ingestion run", "status")

	m.SourceFetchTotal = collector.RegisterCounter("source_fetch_total", "Source fetches by status", "status")
	m.SourceFetchDuration = collector.RegisterHistogram("source_fetch_duration_seconds", "Source fetch latency", DefaultHTTPDurationBuckets)
	m.SourceRecordsTotal = collector.RegisterCounter("source_records_total", "Records returned by the source")

	m.ExtractionRequestsTotal = collector.RegisterCounter("extraction_requests_total", "Extraction calls", "model", "operation", "status")
	m.ExtractionRequestDuration = collector.RegisterHistogram("extraction_request_duration_seconds", "Extraction call latency", DefaultLLMDurationBuckets, "model", "operation")
	m.ExtractionTokensTotal = collector.RegisterCounter("extraction_tokens_total", "Tokens consumed by extraction calls", "model", "direction")

	m.DeadlineRulesAppliedTotal = collector.RegisterCounter("deadline_rules_applied_total", "Deadline determinations by rule", "rule_id", "jurisdiction")

	m.DispatchAttemptsTotal = collector.RegisterCounter("dispatch_attempts_total", "Dispatch send attempts by outcome", "channel", "status")
	m.DispatchPending = collector.RegisterGauge("dispatch_pending", "Dispatches selected in the last pass")

	m.InboundEventsTotal = collector.RegisterCounter("inbound_events_total", "Inbound chat events by action", "action")
	m.InboundIntentsTotal = collector.RegisterCounter("inbound_intents_total", "Classified inbound intents", "intent")
	m.InboundRepliesTotal = collector.RegisterCounter("inbound_replies_total", "Inbound replies by send status", "status")
	m.InboundHandlerDuration = collector.RegisterHistogram("inbound_handler_duration_seconds", "Inbound query handler latency", DefaultHTTPDurationBuckets, "intent")
	m.InboundSeenSetOccupancy = collector.RegisterGauge("inbound_seen_set_size", "Entries held by the processed-inbound set", "tier")

	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "db", "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.EventsPublishedTotal = collector.RegisterCounter("events_published_total", "Broker events published", "topic", "status")
	m.MessageProcessDuration = collector.RegisterHistogram("mq_process_duration_seconds", "Consumed message processing duration", DefaultHTTPDurationBuckets, "topic")

	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_code")

	return m
}

// NewNopAppMetrics returns AppMetrics backed by the no-op collector.
func NewNopAppMetrics() *AppMetrics {
	return NewAppMetrics(NewNopCollector())
}

func statusLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func RecordHTTPRequest(m *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordIngestionRun records a finished run. status is the ExecutionLog status.
func RecordIngestionRun(m *AppMetrics, status string, duration time.Duration, finishedAt time.Time) {
	m.IngestionRunsTotal.WithLabelValues(status).Inc()
	m.IngestionRunDuration.WithLabelValues().Observe(duration.Seconds())
	m.IngestionLastRunRecorded.WithLabelValues(status).Set(float64(finishedAt.Unix()))
}

// RecordIngestedRecord counts one source record by outcome
// (persisted, duplicate, out_of_window, extraction_failed).
func RecordIngestedRecord(m *AppMetrics, outcome string) {
	m.IngestionRecordsTotal.WithLabelValues(outcome).Inc()
}

func RecordSourceFetch(m *AppMetrics, ok bool, records int, duration time.Duration) {
	m.SourceFetchTotal.WithLabelValues(statusLabel(ok)).Inc()
	m.SourceFetchDuration.WithLabelValues().Observe(duration.Seconds())
	if records > 0 {
		m.SourceRecordsTotal.WithLabelValues().Add(float64(records))
	}
}

func RecordExtractionCall(m *AppMetrics, model, operation string, ok bool, duration time.Duration, promptTokens, completionTokens int) {
	m.ExtractionRequestsTotal.WithLabelValues(model, operation, statusLabel(ok)).Inc()
	m.ExtractionRequestDuration.WithLabelValues(model, operation).Observe(duration.Seconds())
	m.ExtractionTokensTotal.WithLabelValues(model, "input").Add(float64(promptTokens))
	m.ExtractionTokensTotal.WithLabelValues(model, "output").Add(float64(completionTokens))
}

func RecordDeadlineRule(m *AppMetrics, ruleID, jurisdiction string) {
	m.DeadlineRulesAppliedTotal.WithLabelValues(ruleID, jurisdiction).Inc()
}

func RecordDispatchAttempt(m *AppMetrics, channel, status string) {
	m.DispatchAttemptsTotal.WithLabelValues(channel, status).Inc()
}

// RecordDispatchPass records how many dispatches the latest pass selected.
func RecordDispatchPass(m *AppMetrics, selected int) {
	m.DispatchPending.WithLabelValues().Set(float64(selected))
}

func RecordInboundEvent(m *AppMetrics, action string) {
	m.InboundEventsTotal.WithLabelValues(action).Inc()
}

func RecordInboundIntent(m *AppMetrics, intent string) {
	m.InboundIntentsTotal.WithLabelValues(intent).Inc()
}

func RecordInboundReply(m *AppMetrics, sent bool) {
	m.InboundRepliesTotal.WithLabelValues(statusLabel(sent)).Inc()
}

// RecordSeenSetSize reports the occupancy of a duplicate-detection tier.
func RecordSeenSetSize(m *AppMetrics, tier string, size int) {
	m.InboundSeenSetOccupancy.WithLabelValues(tier).Set(float64(size))
}

// StartInboundHandler times one intent handler.
func StartInboundHandler(m *AppMetrics, intent string) *Timer {
	return NewTimer(m.InboundHandlerDuration.WithLabelValues(intent))
}

func RecordCacheAccess(m *AppMetrics, cache string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordEventPublished(m *AppMetrics, topic string, ok bool) {
	m.EventsPublishedTotal.WithLabelValues(topic, statusLabel(ok)).Inc()
}

// StartDBQuery times one repository operation.
func StartDBQuery(m *AppMetrics, db, operation string) *Timer {
	return NewTimer(m.DBQueryDuration.WithLabelValues(db, operation))
}

// StartMessageProcess times the handling of one consumed message, retries
// included.
func StartMessageProcess(m *AppMetrics, topic string) *Timer {
	return NewTimer(m.MessageProcessDuration.WithLabelValues(topic))
}

func RecordError(m *AppMetrics, component, errorCode string) {
	m.ErrorsTotal.WithLabelValues(component, errorCode).Inc()
}
