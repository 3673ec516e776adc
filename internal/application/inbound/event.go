// Package inbound answers the questions attorneys send over the chat channel.
package inbound

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/turtacn/NoticeFlow/pkg/errors"
)

// Event is the webhook payload posted by the chat gateway for every message
// on the instance, including the ones the instance sent itself.
type Event struct {
	InstanceKey      string          `json:"instance_key"`
	JID              string          `json:"jid"`
	MessageType      string          `json:"messageType"`
	Key              EventKey        `json:"key"`
	MessageTimestamp int64           `json:"messageTimestamp"`
	PushName         string          `json:"pushName"`
	Broadcast        bool            `json:"broadcast"`
	Message          json.RawMessage `json:"message"`
}

// EventKey identifies the message and its chat.
type EventKey struct {
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

// DecodeEvent parses a raw webhook body.
func DecodeEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, errors.Wrap(err, errors.ErrCodeInboundPayloadInvalid, "invalid inbound event")
	}
	return ev, nil
}

// MessageKind is the coarse shape of an inbound message.
type MessageKind string

const (
	KindText        MessageKind = "text"
	KindMedia       MessageKind = "media"
	KindInteractive MessageKind = "interactive"
	KindUnknown     MessageKind = "unknown"
)

var messageKinds = map[string]MessageKind{
	"conversation":               KindText,
	"extendedTextMessage":        KindText,
	"ephemeralMessage":           KindText,
	"audioMessage":               KindMedia,
	"videoMessage":               KindMedia,
	"imageMessage":               KindMedia,
	"documentMessage":            KindMedia,
	"stickerMessage":             KindMedia,
	"documentWithCaptionMessage": KindMedia,
	"templateButtonReplyMessage": KindInteractive,
	"listResponseMessage":        KindInteractive,
	"pollCreationMessageV3":      KindInteractive,
}

// Message is the part of an Event the router works with.
type Message struct {
	ID   string
	Kind MessageKind
	// From is the sender's phone number, the chat id without its domain.
	From string
	Name string
	Text string
}

type textBody struct {
	Text string `json:"text"`
}

type messageBody struct {
	Conversation        string    `json:"conversation"`
	ExtendedTextMessage *textBody `json:"extendedTextMessage"`
	EphemeralMessage    *struct {
		Message struct {
			Conversation        string    `json:"conversation"`
			ExtendedTextMessage *textBody `json:"extendedTextMessage"`
		} `json:"message"`
	} `json:"ephemeralMessage"`
}

// Parse classifies the event. It reports false for an event without a body,
// without a sender, or a text message without text.
func (e Event) Parse() (Message, bool) {
	body := bytes.TrimSpace(e.Message)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) || bytes.Equal(body, []byte("{}")) {
		return Message{}, false
	}
	from, _, _ := strings.Cut(e.Key.RemoteJID, "@")
	if from == "" {
		return Message{}, false
	}

	kind, ok := messageKinds[e.MessageType]
	if !ok {
		kind = KindUnknown
	}
	msg := Message{ID: e.Key.ID, Kind: kind, From: from, Name: e.PushName}
	if kind != KindText {
		return msg, true
	}

	var mb messageBody
	if err := json.Unmarshal(body, &mb); err != nil {
		return Message{}, false
	}
	switch e.MessageType {
	case "conversation":
		msg.Text = mb.Conversation
	case "extendedTextMessage":
		if mb.ExtendedTextMessage != nil {
			msg.Text = mb.ExtendedTextMessage.Text
		}
	case "ephemeralMessage":
		if eph := mb.EphemeralMessage; eph != nil {
			msg.Text = eph.Message.Conversation
			if eph.Message.ExtendedTextMessage != nil {
				msg.Text = eph.Message.ExtendedTextMessage.Text
			}
		}
	}
	msg.Text = strings.TrimSpace(msg.Text)
	if msg.Text == "" {
		return Message{}, false
	}
	return msg, true
}
