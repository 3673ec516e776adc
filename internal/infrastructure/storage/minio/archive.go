package minio

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"time"

	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NoticeFlow/pkg/errors"
	"github.com/turtacn/NoticeFlow/pkg/textfold"
)

var ErrNoArchivedResponse = errors.New(errors.ErrCodeNotFound, "no archived response")

// keyTimeLayout is fixed width so keys sort chronologically.
const keyTimeLayout = "20060102T150405.000000000"

// SourceArchive stores one object per source fetch under
// responses/<day>/<recipient-slug>/<timestamp>.json.
type SourceArchive struct {
	client *Client
	logger logging.Logger
	now    func() time.Time
}

// NewSourceArchive returns an archive writing into client's bucket.
func NewSourceArchive(client *Client, log logging.Logger) *SourceArchive {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &SourceArchive{client: client, logger: log, now: time.Now}
}

func queryPrefix(q notice.FetchQuery) string {
	return path.Join("responses", q.From.Format("2006-01-02"), textfold.Slug(q.RecipientName)) + "/"
}

// Save writes body as the newest response for q.
func (a *SourceArchive) Save(ctx context.Context, q notice.FetchQuery, body []byte) error {
	if a.client.isClosed() {
		return ErrClientClosed
	}
	key := queryPrefix(q) + a.now().UTC().Format(keyTimeLayout) + ".json"
	if err := a.client.api.PutObject(ctx, a.client.bucket, key, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to archive source response").WithDetail("key=" + key)
	}
	a.logger.Debug("Archived source response", logging.String("key", key), logging.Int("bytes", len(body)))
	return nil
}

// Latest returns the newest archived body for q, or ErrNoArchivedResponse.
func (a *SourceArchive) Latest(ctx context.Context, q notice.FetchQuery) ([]byte, error) {
	if a.client.isClosed() {
		return nil, ErrClientClosed
	}
	prefix := queryPrefix(q)
	objects, err := a.client.api.ListObjects(ctx, a.client.bucket, prefix)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to list archived responses").WithDetail("prefix=" + prefix)
	}
	if len(objects) == 0 {
		return nil, ErrNoArchivedResponse.WithDetail("prefix=" + prefix)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	key := objects[len(objects)-1].Key

	rc, err := a.client.api.GetObject(ctx, a.client.bucket, key)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNoArchivedResponse.WithDetail("key=" + key)
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to read archived response").WithDetail("key=" + key)
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to read archived response").WithDetail("key=" + key)
	}
	return body, nil
}
