// Package chat implements the in-memory chat core: the bounded message log,
// the session registry with origin-quota admission, and the hub that
// coordinates lifecycle transitions and fan-out delivery.
package chat

import "time"

// Event kinds pushed to connected clients.
const (
	EventSystem         = "system"
	EventMessage        = "message"
	EventMessageDeleted = "messageDeleted"
	EventReadReceipt    = "readReceipt"
	EventUserList       = "userList"
)

// Event is a single frame delivered to every connected session. Fields are
// populated per kind; unused ones are omitted from the JSON encoding.
type Event struct {
	Type        string      `json:"type"`
	Text        string      `json:"text,omitempty"`
	ID          int64       `json:"id,omitempty"`
	User        string      `json:"user,omitempty"`
	UserID      string      `json:"userId,omitempty"`
	MessageType string      `json:"messageType,omitempty"`
	GifURL      string      `json:"gifUrl,omitempty"`
	Attachment  *Attachment `json:"attachment,omitempty"`
	ReplyTo     *ReplyRef   `json:"replyTo,omitempty"`
	Encrypted   bool        `json:"encrypted,omitempty"`
	Readers     int         `json:"readers,omitempty"`
	Users       []string    `json:"users,omitempty"`
	TS          time.Time   `json:"ts,omitzero"`
}

// Attachment is an inline file carried in a message body as a data URL.
type Attachment struct {
	Name string `json:"name"`
	Mime string `json:"type,omitempty"`
	Size int    `json:"size,omitempty"`
	Data string `json:"data"`
}

// ReplyRef points at an earlier message the new one replies to. It is client
// context only; the core does not verify the referenced id still exists.
type ReplyRef struct {
	ID   int64  `json:"id"`
	User string `json:"user,omitempty"`
	Text string `json:"text,omitempty"`
}

func systemEvent(text string) Event {
	return Event{Type: EventSystem, Text: text, TS: time.Now().UTC()}
}

func rosterEvent(users []string) Event {
	return Event{Type: EventUserList, Users: users}
}
