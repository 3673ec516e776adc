package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/NoticeFlow/internal/config"
	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NoticeFlow/internal/testutil"
	pkgerrors "github.com/turtacn/NoticeFlow/pkg/errors"
)

type RedisTestSuite struct {
	suite.Suite
	mock   redismock.ClientMock
	client *Client
	cache  Cache
}

func (s *RedisTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	s.client = NewClientWithRDB(db, "nf:", logging.NewNopLogger())
	s.cache = NewRedisCache(s.client, logging.NewNopLogger(), time.Minute)
}

func (s *RedisTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *RedisTestSuite) TestKey() {
	s.Equal("nf:lock:ingestion", s.client.Key("lock", "ingestion"))
	s.Equal("nf:", s.client.Key())
}

func (s *RedisTestSuite) TestClosedClient() {
	s.client.closed = true
	s.ErrorIs(s.client.Ping(context.Background()), ErrClientClosed)
	s.ErrorIs(s.client.Get(context.Background(), "k").Err(), ErrClientClosed)
	s.ErrorIs(s.client.SetNX(context.Background(), "k", 1, 0).Err(), ErrClientClosed)
}

func (s *RedisTestSuite) TestCache_GetHit() {
	s.mock.ExpectGet("nf:cache:k").SetVal(`{"ID":"r1","Name":"Ana"}`)

	var got notice.Recipient
	s.Require().NoError(s.cache.Get(context.Background(), "k", &got))
	s.Equal("Ana", got.Name)
}

func (s *RedisTestSuite) TestCache_GetMiss() {
	s.mock.ExpectGet("nf:cache:k").RedisNil()

	var got notice.Recipient
	err := s.cache.Get(context.Background(), "k", &got)
	s.ErrorIs(err, ErrCacheMiss)
}

func (s *RedisTestSuite) TestCache_SetUsesDefaultTTL() {
	data, _ := json.Marshal(map[string]int{"a": 1})
	s.mock.ExpectSet("nf:cache:k", data, time.Minute).SetVal("OK")

	s.NoError(s.cache.Set(context.Background(), "k", map[string]int{"a": 1}, 0))
}

func (s *RedisTestSuite) TestCache_GetOrSetLoadsOnMiss() {
	rc := notice.Recipient{ID: "r1", Name: "Ana", Phone: "5531", Active: true}
	data, _ := json.Marshal(rc)
	s.mock.ExpectGet("nf:cache:recipients:phone:5531").RedisNil()
	s.mock.ExpectSet("nf:cache:recipients:phone:5531", data, 5*time.Minute).SetVal("OK")

	calls := 0
	repo := &stubRecipients{byPhone: func(string) (*notice.Recipient, error) {
		calls++
		return &rc, nil
	}}
	cached := NewCachedRecipients(repo, s.cache, 5*time.Minute)

	got, err := cached.GetByPhone(context.Background(), "5531")
	s.Require().NoError(err)
	s.Equal(rc, *got)
	s.Equal(1, calls)
}

func (s *RedisTestSuite) TestCache_GetOrSetSkipsLoaderOnHit() {
	s.mock.ExpectGet("nf:cache:recipients:phone:5531").SetVal(`{"ID":"r1","Name":"Ana"}`)

	repo := &stubRecipients{byPhone: func(string) (*notice.Recipient, error) {
		s.Fail("loader must not run on a hit")
		return nil, nil
	}}
	got, err := NewCachedRecipients(repo, s.cache, time.Minute).GetByPhone(context.Background(), "5531")
	s.Require().NoError(err)
	s.Equal("r1", got.ID)
}

func (s *RedisTestSuite) TestCache_GetOrSetPropagatesNotFound() {
	s.mock.ExpectGet("nf:cache:recipients:phone:000").RedisNil()

	repo := &stubRecipients{byPhone: func(string) (*notice.Recipient, error) {
		return nil, pkgerrors.New(pkgerrors.ErrCodeRecipientNotFound, "recipient not found")
	}}
	_, err := NewCachedRecipients(repo, s.cache, time.Minute).GetByPhone(context.Background(), "000")
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeRecipientNotFound))
}

func (s *RedisTestSuite) TestCache_GetOrSetFallsThroughOnCacheError() {
	s.mock.ExpectGet("nf:cache:recipients:active").SetErr(errors.New("redis down"))
	s.mock.ExpectSet("nf:cache:recipients:active", []byte(`[{"ID":"r1","Name":"Ana","Phone":"","Active":true}]`), time.Minute).
		SetErr(errors.New("redis down"))

	repo := &stubRecipients{active: []notice.Recipient{{ID: "r1", Name: "Ana", Active: true}}}
	got, err := NewCachedRecipients(repo, s.cache, time.Minute).ListActive(context.Background())
	s.Require().NoError(err)
	s.Len(got, 1)
}

func (s *RedisTestSuite) TestCache_GetOrSetCountsHitsAndMisses() {
	m := testutil.NewMetrics(s.T())
	cached := NewCachedRecipients(&stubRecipients{byPhone: func(string) (*notice.Recipient, error) {
		return &notice.Recipient{ID: "r1"}, nil
	}}, NewRedisCache(s.client, nil, time.Minute, WithCacheMetrics(m.AppMetrics, "recipients")), time.Minute)

	s.mock.ExpectGet("nf:cache:recipients:phone:5531").SetVal(`{"ID":"r1"}`)
	s.mock.ExpectGet("nf:cache:recipients:phone:5532").RedisNil()
	s.mock.ExpectSet("nf:cache:recipients:phone:5532", []byte(`{"ID":"r1","Name":"","Phone":"","Active":false}`), time.Minute).SetVal("OK")

	_, err := cached.GetByPhone(context.Background(), "5531")
	s.Require().NoError(err)
	_, err = cached.GetByPhone(context.Background(), "5532")
	s.Require().NoError(err)

	out := m.Scrape()
	s.Contains(out, `test_cache_hits_total{cache="recipients"} 1`)
	s.Contains(out, `test_cache_misses_total{cache="recipients"} 1`)
}

func (s *RedisTestSuite) TestCachedRecipients_Invalidate() {
	s.mock.ExpectDel("nf:cache:recipients:active", "nf:cache:recipients:phone:5531").SetVal(2)

	cached := NewCachedRecipients(&stubRecipients{}, s.cache, time.Minute)
	s.NoError(cached.Invalidate(context.Background(), "5531"))
}

func (s *RedisTestSuite) TestMutex_TryLockAndUnlock() {
	lock := NewMutex(s.client, "ingestion", nil, WithLockTTL(time.Minute)).(*redisMutex)

	s.mock.ExpectSetNX("nf:lock:ingestion", lock.value, time.Minute).SetVal(true)
	ok, err := lock.TryLock(context.Background())
	s.Require().NoError(err)
	s.True(ok)

	s.mock.ExpectEvalSha(mutexUnlockScript.Hash(), []string{"nf:lock:ingestion"}, lock.value).SetVal(int64(1))
	s.NoError(lock.Unlock(context.Background()))
}

func (s *RedisTestSuite) TestMutex_HeldElsewhere() {
	lock := NewMutex(s.client, "ingestion", nil).(*redisMutex)

	s.mock.ExpectSetNX("nf:lock:ingestion", lock.value, 30*time.Second).SetVal(false)
	ok, err := lock.TryLock(context.Background())
	s.NoError(err)
	s.False(ok)
}

func (s *RedisTestSuite) TestMutex_UnlockNotHeld() {
	lock := NewMutex(s.client, "ingestion", nil).(*redisMutex)

	s.mock.ExpectEvalSha(mutexUnlockScript.Hash(), []string{"nf:lock:ingestion"}, lock.value).SetVal(int64(0))
	err := lock.Unlock(context.Background())
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeConflict))
}

func (s *RedisTestSuite) TestMutex_Extend() {
	lock := NewMutex(s.client, "ingestion", nil).(*redisMutex)

	s.mock.ExpectEvalSha(mutexExtendScript.Hash(), []string{"nf:lock:ingestion"}, lock.value, int64(60000)).SetVal(int64(1))
	ok, err := lock.Extend(context.Background(), time.Minute)
	s.NoError(err)
	s.True(ok)
}

func (s *RedisTestSuite) TestSeenStore() {
	store := NewSeenStore(s.client, time.Hour)

	s.mock.ExpectSetNX("nf:inbound:seen:ABC", 1, time.Hour).SetVal(true)
	s.mock.ExpectSetNX("nf:inbound:seen:ABC", 1, time.Hour).SetVal(false)
	s.mock.ExpectSetNX("nf:inbound:seen:XYZ", 1, time.Hour).SetErr(errors.New("timeout"))

	ok, err := store.MarkIfNew(context.Background(), "ABC")
	s.NoError(err)
	s.True(ok)

	ok, err = store.MarkIfNew(context.Background(), "ABC")
	s.NoError(err)
	s.False(ok)

	_, err = store.MarkIfNew(context.Background(), "XYZ")
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func TestRedisTestSuite(t *testing.T) {
	suite.Run(t, new(RedisTestSuite))
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	_, err := NewClient(configForUnreachable(), logging.NewNopLogger())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func configForUnreachable() config.RedisConfig {
	return config.RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond}
}

type stubRecipients struct {
	active  []notice.Recipient
	byPhone func(string) (*notice.Recipient, error)
}

func (s *stubRecipients) ListActive(context.Context) ([]notice.Recipient, error) {
	return s.active, nil
}

func (s *stubRecipients) GetByPhone(_ context.Context, phone string) (*notice.Recipient, error) {
	return s.byPhone(phone)
}

func (s *stubRecipients) GetByID(context.Context, string) (*notice.Recipient, error) {
	return nil, pkgerrors.New(pkgerrors.ErrCodeRecipientNotFound, "recipient not found")
}
