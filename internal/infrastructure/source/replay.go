package source

import (
	"context"
	"time"

	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NoticeFlow/pkg/errors"
)

// ArchiveReader returns the newest archived body for a query.
type ArchiveReader interface {
	Latest(ctx context.Context, q notice.FetchQuery) ([]byte, error)
}

// ReplaySource answers queries from the archive instead of the live feed.
type ReplaySource struct {
	archive ArchiveReader
	logger  logging.Logger
}

func NewReplaySource(archive ArchiveReader, log logging.Logger) *ReplaySource {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ReplaySource{archive: archive, logger: log}
}

// Fetch decodes the archived body for q. A query with nothing archived is an
// empty successful response.
func (r *ReplaySource) Fetch(ctx context.Context, q notice.FetchQuery) (*notice.FetchResult, error) {
	start := time.Now()
	params := Params(q)

	body, err := r.archive.Latest(ctx, q)
	if err != nil {
		if errors.IsNotFound(err) {
			r.logger.Info("Nothing archived for query", logging.String("recipient", q.RecipientName))
			return &notice.FetchResult{Status: "success", Params: params, Latency: time.Since(start)}, nil
		}
		return &notice.FetchResult{Params: params, Latency: time.Since(start)}, errors.Wrap(err, errors.ErrCodeSourceUnavailable, "failed to replay archived response")
	}

	res, err := Decode(body)
	if err != nil {
		return &notice.FetchResult{Params: params, Latency: time.Since(start)}, err
	}
	res.Params = params
	res.Latency = time.Since(start)
	return res, nil
}
