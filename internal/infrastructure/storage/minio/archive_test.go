package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	"github.com/turtacn/NoticeFlow/internal/testutil"
	pkgerrors "github.com/turtacn/NoticeFlow/pkg/errors"
)

// memoryAPI is an in-memory bucket.
type memoryAPI struct {
	mu        sync.Mutex
	buckets   map[string]map[string][]byte
	expiry    map[string]int
	expiryErr error
	listErr   error
}

func newMemoryAPI() *memoryAPI {
	return &memoryAPI{buckets: map[string]map[string][]byte{}, expiry: map[string]int{}}
}

func (m *memoryAPI) BucketExists(_ context.Context, bucket string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.buckets[bucket]
	return ok, nil
}

func (m *memoryAPI) MakeBucket(_ context.Context, bucket, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucket] = map[string][]byte{}
	return nil
}

func (m *memoryAPI) SetExpiry(_ context.Context, bucket string, days int) error {
	if m.expiryErr != nil {
		return m.expiryErr
	}
	m.expiry[bucket] = days
	return nil
}

func (m *memoryAPI) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucket][key] = data
	return nil
}

func (m *memoryAPI) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.buckets[bucket][key]
	if !ok {
		return nil, errors.New("missing")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryAPI) ListObjects(_ context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for k, v := range m.buckets[bucket] {
		if strings.HasPrefix(k, prefix) {
			out = append(out, ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	// Unordered on purpose: Latest must sort.
	sort.Slice(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	return out, nil
}

type ArchiveTestSuite struct {
	suite.Suite
	api     *memoryAPI
	client  *Client
	archive *SourceArchive
	query   notice.FetchQuery
}

func (s *ArchiveTestSuite) SetupTest() {
	s.api = newMemoryAPI()
	s.client = NewClientWithAPI(s.api, "noticeflow-source", "us-east-1", testutil.NewMockLogger())
	s.Require().NoError(s.client.EnsureBucket(context.Background()))
	s.archive = NewSourceArchive(s.client, nil)
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	s.query = notice.FetchQuery{RecipientName: "João da Silva", From: day, To: day}
}

func (s *ArchiveTestSuite) TestEnsureBucket_CreatesWithExpiry() {
	exists, _ := s.api.BucketExists(context.Background(), "noticeflow-source")
	s.True(exists)
	s.Equal(retentionDays, s.api.expiry["noticeflow-source"])
}

func (s *ArchiveTestSuite) TestEnsureBucket_ExpiryFailureIsLogged() {
	api := newMemoryAPI()
	api.expiryErr = errors.New("not supported")
	log := testutil.NewMockLogger()
	c := NewClientWithAPI(api, "b", "", log)

	s.NoError(c.EnsureBucket(context.Background()))
	s.True(log.HasMessage("warn", "Failed to set bucket lifecycle"))
}

func (s *ArchiveTestSuite) TestSaveThenLatest() {
	t0 := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	s.archive.now = testutil.FixedClock(t0)
	s.Require().NoError(s.archive.Save(context.Background(), s.query, []byte(`{"n":1}`)))
	s.archive.now = testutil.FixedClock(t0.Add(time.Hour))
	s.Require().NoError(s.archive.Save(context.Background(), s.query, []byte(`{"n":2}`)))

	_, ok := s.api.buckets["noticeflow-source"]["responses/2025-06-02/joao-da-silva/20250602T080000.000000000.json"]
	s.True(ok)

	body, err := s.archive.Latest(context.Background(), s.query)
	s.Require().NoError(err)
	s.JSONEq(`{"n":2}`, string(body))
}

func (s *ArchiveTestSuite) TestLatest_Missing() {
	_, err := s.archive.Latest(context.Background(), s.query)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeNotFound))
}

func (s *ArchiveTestSuite) TestLatest_ListError() {
	s.api.listErr = errors.New("timeout")
	_, err := s.archive.Latest(context.Background(), s.query)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeStorageError))
}

func (s *ArchiveTestSuite) TestClosedClient() {
	s.Require().NoError(s.client.Close())
	s.ErrorIs(s.archive.Save(context.Background(), s.query, []byte("{}")), ErrClientClosed)
	s.ErrorIs(s.client.HealthCheck(context.Background()), ErrClientClosed)
}

func (s *ArchiveTestSuite) TestHealthCheck() {
	s.NoError(s.client.HealthCheck(context.Background()))

	c := NewClientWithAPI(newMemoryAPI(), "absent", "", nil)
	s.True(pkgerrors.IsCode(c.HealthCheck(context.Background()), pkgerrors.ErrCodeStorageError))
}

func TestArchiveTestSuite(t *testing.T) {
	suite.Run(t, new(ArchiveTestSuite))
}
