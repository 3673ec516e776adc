// Package chatgateway sends text messages through the WhatsApp gateway.
package chatgateway

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
	"github.com/turtacn/NoticeFlow/pkg/errors"
)

const (
	defaultTimeout = 15 * time.Second
	jidSuffix      = "@c.whatsapp.net"
)

// SendStatus is the delivery verdict of one Send.
type SendStatus string

const (
	StatusSent   SendStatus = "SENT"
	StatusFailed SendStatus = "FAILED"
)

// SendResult reports the outcome of a Send. Error is set when Status is
// FAILED.
type SendResult struct {
	Status SendStatus
	Error  string
}

// Sent reports whether the message left the process.
func (r SendResult) Sent() bool { return r.Status == StatusSent }

type sendRequest struct {
	MessageData struct {
		To   string `json:"to"`
		Text string `json:"text"`
	} `json:"messageData"`
}

// Messenger posts text messages to {base}/rest/sendMessage/{instance}/text.
type Messenger struct {
	url      string
	token    string
	disabled bool
	http     *http.Client
	logger   logging.Logger
}

// Option customises a Messenger.
type Option func(*Messenger)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Messenger) { m.http = c }
}

// NewMessenger validates cfg and returns a Messenger. In disabled mode the
// gateway settings are not required.
func NewMessenger(cfg config.MessagingConfig, log logging.Logger, opts ...Option) (*Messenger, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if !cfg.Disabled && (cfg.BaseURL == "" || cfg.InstanceKey == "" || cfg.Token == "") {
		return nil, errors.New(errors.ErrCodeMessagingNotConfigured, "chat gateway base_url, instance_key and token are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	m := &Messenger{
		url:      strings.TrimSuffix(cfg.BaseURL, "/") + "/rest/sendMessage/" + cfg.InstanceKey + "/text",
		token:    cfg.Token,
		disabled: cfg.Disabled,
		http:     &http.Client{Timeout: timeout},
		logger:   log.Named("chatgateway"),
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Send transmits text to the phone number to. Transport and gateway errors
// are reported in the result, never returned.
func (m *Messenger) Send(ctx context.Context, to, text string) SendResult {
	if m.disabled {
		m.logger.Info("Messaging disabled, message not sent",
			logging.String("to", to),
			logging.Int("length", len(text)),
			logging.String("text", text))
		return SendResult{Status: StatusSent}
	}

	if err := m.post(ctx, to, text); err != nil {
		m.logger.Warn("Failed to send message", logging.String("to", to), logging.Err(err))
		return SendResult{Status: StatusFailed, Error: err.Error()}
	}
	m.logger.Debug("Message sent", logging.String("to", to), logging.Int("length", len(text)))
	return SendResult{Status: StatusSent}
}

func (m *Messenger) post(ctx context.Context, to, text string) error {
	var body sendRequest
	body.MessageData.To = to + jidSuffix
	body.MessageData.Text = text
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeMessagingSendFailed, "failed to build send request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.token)

	resp, err := m.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeMessagingSendFailed, "send request failed")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.New(errors.ErrCodeMessagingSendFailed, "gateway rejected message").
			WithDetail("status=" + strconv.Itoa(resp.StatusCode))
	}
	return nil
}
