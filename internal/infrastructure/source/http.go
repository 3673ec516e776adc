package source

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/NoticeFlow/internal/config"
	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NoticeFlow/pkg/errors"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 16 << 20
	dateLayout      = "2006-01-02"
)

// Archiver keeps raw response bodies.
type Archiver interface {
	Save(ctx context.Context, q notice.FetchQuery, body []byte) error
}

// HTTPSource queries the live feed.
type HTTPSource struct {
	baseURL  string
	timeout  time.Duration
	client   *http.Client
	archiver Archiver
	logger   logging.Logger
}

// Option configures an HTTPSource.
type Option func(*HTTPSource)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *HTTPSource) { s.client = c }
}

// WithArchiver saves every successful body through a.
func WithArchiver(a Archiver) Option {
	return func(s *HTTPSource) { s.archiver = a }
}

// NewHTTPSource builds a feed client from config.
func NewHTTPSource(cfg config.SourceConfig, log logging.Logger, opts ...Option) *HTTPSource {
	if log == nil {
		log = logging.NewNopLogger()
	}
	s := &HTTPSource{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		client:  &http.Client{},
		logger:  log,
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Params returns the query parameters sent for q.
func Params(q notice.FetchQuery) map[string]string {
	return map[string]string{
		"nomeAdvogado":               q.RecipientName,
		"dataDisponibilizacaoInicio": q.From.Format(dateLayout),
		"dataDisponibilizacaoFim":    q.To.Format(dateLayout),
	}
}

// Fetch performs one bounded request. On failure the returned result is
// still non-nil and carries the parameters, latency and HTTP status seen so
// far so the caller can log the query.
func (s *HTTPSource) Fetch(ctx context.Context, q notice.FetchQuery) (*notice.FetchResult, error) {
	params := Params(q)
	result := &notice.FetchResult{Params: params}

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+values.Encode(), nil)
	if err != nil {
		return result, errors.Wrap(err, errors.ErrCodeSourceUnavailable, "failed to build feed request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	result.Latency = time.Since(start)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return result, errors.Wrap(err, errors.ErrCodeSourceTimeout, "feed request timed out").
				WithDetail("timeout=" + s.timeout.String())
		}
		return result, errors.Wrap(err, errors.ErrCodeSourceUnavailable, "feed request failed")
	}
	defer resp.Body.Close()

	result.HTTPStatus = resp.StatusCode
	result.RequestID = resp.Header.Get("x-request-id")

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	result.Latency = time.Since(start)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return result, errors.Wrap(err, errors.ErrCodeSourceTimeout, "feed response timed out")
		}
		return result, errors.Wrap(err, errors.ErrCodeSourceUnavailable, "failed to read feed response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, errors.New(errors.ErrCodeSourceBadResponse, "unexpected feed status").
			WithDetail("status=" + strconv.Itoa(resp.StatusCode))
	}

	decoded, err := Decode(body)
	if err != nil {
		return result, err
	}
	decoded.Params = result.Params
	decoded.HTTPStatus = result.HTTPStatus
	decoded.RequestID = result.RequestID
	decoded.Latency = result.Latency

	if s.archiver != nil {
		if err := s.archiver.Save(ctx, q, body); err != nil {
			s.logger.Warn("Failed to archive feed response",
				logging.String("recipient", q.RecipientName),
				logging.Err(err))
		}
	}

	s.logger.Debug("Feed fetched",
		logging.String("recipient", q.RecipientName),
		logging.Int("status", resp.StatusCode),
		logging.Int("records", len(decoded.Records)),
		logging.Duration("latency", decoded.Latency))
	return decoded, nil
}
