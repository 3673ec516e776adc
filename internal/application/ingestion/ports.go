// Package ingestion pulls court notifications per recipient, decides their
// deadlines and persists them together with the dispatch owed for each.
package ingestion

import (
	"context"

	"github.com/turtacn/NoticeFlow/internal/domain/notice"
)

// Source fetches the records published for one recipient.
type Source interface {
	Fetch(ctx context.Context, q notice.FetchQuery) (*notice.FetchResult, error)
}

// Extractor reads a record's text. Failures come back inside the outcome.
type Extractor interface {
	Extract(ctx context.Context, text string) notice.ExtractionOutcome
}

// RunLock keeps two workers from ingesting at the same time.
type RunLock interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// EventPublisher publishes domain events. Failures are logged by callers.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key, eventType string, payload interface{}) error
}
