package redis

import (
	"context"
	"time"

	"github.com/turtacn/NoticeFlow/internal/domain/notice"
)

// CachedRecipients is a read-through cache in front of a recipient directory.
// Inbound webhooks look recipients up by phone on every message.
type CachedRecipients struct {
	next  notice.RecipientRepository
	cache Cache
	ttl   time.Duration
}

var _ notice.RecipientRepository = (*CachedRecipients)(nil)

// NewCachedRecipients wraps next.
func NewCachedRecipients(next notice.RecipientRepository, cache Cache, ttl time.Duration) *CachedRecipients {
	return &CachedRecipients{next: next, cache: cache, ttl: ttl}
}

func (c *CachedRecipients) ListActive(ctx context.Context) ([]notice.Recipient, error) {
	var out []notice.Recipient
	err := c.cache.GetOrSet(ctx, "recipients:active", &out, c.ttl, func(ctx context.Context) (interface{}, error) {
		return c.next.ListActive(ctx)
	})
	return out, err
}

func (c *CachedRecipients) GetByPhone(ctx context.Context, phone string) (*notice.Recipient, error) {
	var out notice.Recipient
	err := c.cache.GetOrSet(ctx, "recipients:phone:"+phone, &out, c.ttl, func(ctx context.Context) (interface{}, error) {
		return c.next.GetByPhone(ctx, phone)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *CachedRecipients) GetByID(ctx context.Context, id string) (*notice.Recipient, error) {
	var out notice.Recipient
	err := c.cache.GetOrSet(ctx, "recipients:id:"+id, &out, c.ttl, func(ctx context.Context) (interface{}, error) {
		return c.next.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Invalidate drops every cached lookup for the given phones and the active
// list.
func (c *CachedRecipients) Invalidate(ctx context.Context, phones ...string) error {
	keys := []string{"recipients:active"}
	for _, p := range phones {
		keys = append(keys, "recipients:phone:"+p)
	}
	return c.cache.Delete(ctx, keys...)
}
