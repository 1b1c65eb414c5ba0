package game

// EventType names an event variant on the wire.
type EventType string

const (
	// EventScoreChanged fires every time the session score increases.
	EventScoreChanged EventType = "score-changed"
	// EventWarningOn fires when any settled ball enters the warning band.
	EventWarningOn EventType = "warning-on"
	// EventWarningOff fires when the last settled ball leaves the warning band.
	EventWarningOff EventType = "warning-off"
	// EventGameOver fires once per session, terminal.
	EventGameOver EventType = "game-over"
	// EventMergeSuccess reports an assisted merge that found a pair.
	EventMergeSuccess EventType = "merge-success"
	// EventMergeFailed reports an assisted merge that could not run.
	EventMergeFailed EventType = "merge-failed"
	// EventMerged carries the effect cue of every executed merge.
	EventMerged EventType = "merged"
	// EventDropped fires when a dropped ball enters the field.
	EventDropped EventType = "dropped"
	// EventQueueChanged fires when the active/preview ranks change.
	EventQueueChanged EventType = "queue-changed"
	EventStarted      EventType = "started"
	EventPaused       EventType = "paused"
	EventResumed      EventType = "resumed"
)

// Reason explains why a session ended.
type Reason string

const (
	ReasonDangerLine Reason = "DANGER_LINE"
	ReasonTimeOut    Reason = "TIME_OUT"
	ReasonQuit       Reason = "QUIT"
	ReasonIdle       Reason = "IDLE"
)

// Event is the closed set of variants the session emits. Consumers switch on
// the concrete type.
type Event interface {
	EventType() EventType
	isEvent()
}

type ScoreChanged struct {
	Total int `json:"total_score"`
}

type WarningOn struct{}

type WarningOff struct{}

type GameOver struct {
	FinalScore int    `json:"final_score"`
	Reason     Reason `json:"reason"`
}

type MergeSuccess struct {
	Rank     int  `json:"rank"`
	Promoted bool `json:"promoted"`
}

type MergeFailed struct {
	Reason string `json:"reason"`
}

type Merged struct {
	A        EntityID `json:"a"`
	B        EntityID `json:"b"`
	Rank     int      `json:"rank"`
	Promoted bool     `json:"promoted"`
	ID       EntityID `json:"id,omitempty"` // promoted entity, zero at max rank
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Cue      string   `json:"cue"`
	Assisted bool     `json:"assisted"`
}

type Dropped struct {
	ID   EntityID `json:"id"`
	Rank int      `json:"rank"`
	X    float64  `json:"x"`
}

type QueueChanged struct {
	Active  int `json:"active"`
	Preview int `json:"preview"`
}

type Started struct{}

type Paused struct{}

type Resumed struct{}

func (ScoreChanged) EventType() EventType { return EventScoreChanged }
func (WarningOn) EventType() EventType { return EventWarningOn }
func (WarningOff) EventType() EventType { return EventWarningOff }
func (GameOver) EventType() EventType { return EventGameOver }
func (MergeSuccess) EventType() EventType { return EventMergeSuccess }
func (MergeFailed) EventType() EventType { return EventMergeFailed }
func (Merged) EventType() EventType { return EventMerged }
func (Dropped) EventType() EventType { return EventDropped }
func (QueueChanged) EventType() EventType { return EventQueueChanged }
func (Started) EventType() EventType { return EventStarted }
func (Paused) EventType() EventType { return EventPaused }
func (Resumed) EventType() EventType { return EventResumed }

func (ScoreChanged) isEvent() {}
func (WarningOn) isEvent() {}
func (WarningOff) isEvent() {}
func (GameOver) isEvent() {}
func (MergeSuccess) isEvent() {}
func (MergeFailed) isEvent() {}
func (Merged) isEvent() {}
func (Dropped) isEvent() {}
func (QueueChanged) isEvent() {}
func (Started) isEvent() {}
func (Paused) isEvent() {}
func (Resumed) isEvent() {}
