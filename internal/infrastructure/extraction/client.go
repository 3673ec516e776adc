// Package extraction talks to an OpenAI-compatible chat completion endpoint
// to read notification text into structured fields and to classify inbound
// chat messages.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/NoticeFlow/internal/config"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/NoticeFlow/pkg/errors"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type completion struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// Client is a minimal chat completions client.
type Client struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	http        *http.Client
	metrics     *prometheus.AppMetrics
	logger      logging.Logger
}

// NewClient builds a client posting to {base_url}/chat/completions.
func NewClient(cfg config.ExtractionConfig, metrics *prometheus.AppMetrics, log logging.Logger) *Client {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = prometheus.NewNopAppMetrics()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{
		endpoint:    strings.TrimSuffix(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:      cfg.APIKey,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		http:        &http.Client{Timeout: timeout},
		metrics:     metrics,
		logger:      log,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

func (c *Client) complete(ctx context.Context, operation string, msgs []chatMessage) (completion, error) {
	start := time.Now()
	out, err := c.do(ctx, msgs)
	out.Latency = time.Since(start)
	prometheus.RecordExtractionCall(c.metrics, c.model, operation, err == nil, out.Latency, out.PromptTokens, out.CompletionTokens)
	return out, err
}

func (c *Client) do(ctx context.Context, msgs []chatMessage) (completion, error) {
	var out completion

	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return out, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode completion request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return out, errors.Wrap(err, errors.ErrCodeExtractionUnavailable, "failed to build completion request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return out, errors.Wrap(err, errors.ErrCodeExtractionUnavailable, "completion request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return out, errors.Wrap(err, errors.ErrCodeExtractionUnavailable, "failed to read completion response")
	}
	if resp.StatusCode != http.StatusOK {
		return out, errors.New(errors.ErrCodeExtractionUnavailable, "completion endpoint returned an error").
			WithDetail("status=" + strconv.Itoa(resp.StatusCode))
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return out, errors.Wrap(err, errors.ErrCodeExtractionMalformed, "malformed completion response")
	}
	out.PromptTokens = cr.Usage.PromptTokens
	out.CompletionTokens = cr.Usage.CompletionTokens
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return out, errors.New(errors.ErrCodeExtractionEmpty, "completion has no content")
	}
	out.Content = cr.Choices[0].Message.Content
	return out, nil
}

// StripFences removes markdown code fences around a JSON answer.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
