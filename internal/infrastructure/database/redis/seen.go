package redis

import (
	"context"
	"time"

	"github.com/turtacn/NoticeFlow/pkg/errors"
)

// SeenStore remembers inbound event ids across restarts. Entries expire after
// the configured TTL.
type SeenStore struct {
	client *Client
	ttl    time.Duration
}

// NewSeenStore returns a SeenStore keeping ids for ttl.
func NewSeenStore(client *Client, ttl time.Duration) *SeenStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SeenStore{client: client, ttl: ttl}
}

// MarkIfNew records id and reports true if it had not been seen before.
func (s *SeenStore) MarkIfNew(ctx context.Context, id string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.client.Key("inbound", "seen", id), 1, s.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "failed to record inbound event").
			WithDetail("event_id=" + id)
	}
	return ok, nil
}
