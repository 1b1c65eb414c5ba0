package room

import (
	"encoding/json"

	"github.com/playmatatu/mergeball/internal/game"
)

// Conn is a subscriber to a room's outgoing messages.
type Conn interface {
	Send([]byte) error
	Close() error
}

// Outgoing message types besides the game event types.
const (
	MsgSnapshot = "snapshot"
	MsgError    = "error"
)

// Message is the {type, data} envelope sent to subscribers.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Encode marshals a message envelope.
func Encode(msgType string, data any) ([]byte, error) {
	return json.Marshal(Message{Type: msgType, Data: data})
}

// EncodeEvent wraps a game event in an envelope named after its type.
func EncodeEvent(e game.Event) ([]byte, error) {
	return Encode(string(e.EventType()), e)
}

// Subscribe attaches a connection. The current snapshot is sent at once.
type Subscribe struct {
	Conn Conn
}

// Unsubscribe detaches a connection without closing it.
type Unsubscribe struct {
	Conn Conn
}

// Aim moves the drop position.
type Aim struct {
	X float64
}

// Drop drops the active ball, at X when set.
type Drop struct {
	X *float64
}

// AssistedMerge requests a field-wide merge. Paid marks a request that
// consumed a credit, which is refunded if the merge fails.
type AssistedMerge struct {
	Paid bool
}

type Pause struct{}

type Resume struct{}

// End stops the session with the given reason.
type End struct {
	Reason game.Reason
}

// SnapshotRequest asks the room for its current snapshot.
type SnapshotRequest struct {
	Reply chan<- game.SessionSnapshot
}

// isInput reports whether cmd counts as player activity.
func isInput(cmd any) bool {
	switch cmd.(type) {
	case Aim, Drop, AssistedMerge, Pause, Resume:
		return true
	}
	return false
}
