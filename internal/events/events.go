// Package events defines the messages exchanged with the board backend
// over the real-time channel: outgoing intents and decoded push events.
package events

import (
	"encoding/json"

	"github.com/sujalbistaa/blurtbox/internal/models"
)

// Push event names sent by the backend.
const (
	NameConfessionList   = "confessionList"
	NameNewConfession    = "newConfession"
	NameUpdateConfession = "updateConfession"
	NameDeleteConfession = "deleteConfession"
	NameNewComment       = "newComment"
	NameNewReply         = "newReply"
	NameErrorMessage     = "errorMessage"

	// Emitted locally by the connection, never on the wire.
	NameConnected    = "connected"
	NameDisconnected = "disconnected"
)

// Intent names emitted by the client.
const (
	IntentNewConfession  = "newConfession"
	IntentUpvote         = "upvote"
	IntentDownvote       = "downvote"
	IntentUndoUpvote     = "undoUpvote"
	IntentUndoDownvote   = "undoDownvote"
	IntentReport         = "report"
	IntentAddComment     = "addComment"
	IntentAddReply       = "addReply"
	IntentGetConfessions = "getConfessions"
)

// MessageTypeAck marks an envelope answering an earlier intent.
const MessageTypeAck = "ack"

// Envelope is the wire frame in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	Ack  string          `json:"ack,omitempty"`
}

// Ack is the backend's answer to an intent sent with an acknowledgement.
type Ack struct {
	Error string `json:"error,omitempty"`
}

// OK reports whether the backend accepted the intent.
func (a Ack) OK() bool { return a.Error == "" }

// Event is one decoded push event. The set of implementations is closed.
type Event interface {
	Name() string
	isEvent()
}

type ConfessionList struct {
	Items []models.Confession
}

type NewConfession struct {
	Item models.Confession
}

type UpdateConfession struct {
	Item models.Confession
}

type DeleteConfession struct {
	ID string `json:"id"`
}

type NewComment struct {
	ConfessionID string         `json:"id"`
	Comment      models.Comment `json:"comment"`
}

type NewReply struct {
	ConfessionID string       `json:"confessionId"`
	CommentIndex int          `json:"commentIndex"`
	Reply        models.Reply `json:"reply"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}

// Connected is raised after every successful (re)connection.
type Connected struct {
	Reconnect bool
}

// Disconnected is raised once reconnection attempts are exhausted.
type Disconnected struct {
	Err error
}

func (ConfessionList) Name() string   { return NameConfessionList }
func (NewConfession) Name() string    { return NameNewConfession }
func (UpdateConfession) Name() string { return NameUpdateConfession }
func (DeleteConfession) Name() string { return NameDeleteConfession }
func (NewComment) Name() string       { return NameNewComment }
func (NewReply) Name() string         { return NameNewReply }
func (ErrorMessage) Name() string     { return NameErrorMessage }
func (Connected) Name() string        { return NameConnected }
func (Disconnected) Name() string     { return NameDisconnected }

func (ConfessionList) isEvent()   {}
func (NewConfession) isEvent()    {}
func (UpdateConfession) isEvent() {}
func (DeleteConfession) isEvent() {}
func (NewComment) isEvent()       {}
func (NewReply) isEvent()         {}
func (ErrorMessage) isEvent()     {}
func (Connected) isEvent()        {}
func (Disconnected) isEvent()     {}

// Handler receives events in arrival order.
type Handler func(Event)

// Subscription is released with Close; closing twice is harmless.
type Subscription interface {
	Close()
}

// Intent payloads, field names as the backend expects them.
type (
	ConfessionPayload struct {
		Text     string `json:"text"`
		Category string `json:"category"`
	}
	IDPayload struct {
		ID string `json:"id"`
	}
	CommentPayload struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	ReplyPayload struct {
		ConfessionID string `json:"confessionId"`
		CommentIndex int    `json:"commentIndex"`
		Text         string `json:"text"`
	}
)
