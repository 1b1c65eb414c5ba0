package game

import (
	"time"

	"github.com/playmatatu/mergeball/internal/physics"
)

// World is the rigid-body engine the session drives. *physics.World
// satisfies it; tests substitute scripted worlds.
type World interface {
	AddCircle(id physics.BodyID, pos physics.Vec2, radius float64) bool
	Remove(id physics.BodyID)
	Body(id physics.BodyID) (physics.BodyState, bool)
	ApplyImpulse(id physics.BodyID, impulse physics.Vec2)
	Step(dt time.Duration) []physics.Contact
}

// VisualProxy is the presentation-side twin of an entity.
type VisualProxy interface {
	SetTransform(x, y, angle float64)
	Destroy()
}

// EntityFactory creates visual proxies for new entities.
type EntityFactory interface {
	NewProxy(id EntityID, rank int) VisualProxy
}

// SoundCue plays a named cue. Implementations must not block.
type SoundCue interface {
	Play(cue string)
}

// ScoreSink receives the final score of a session. Called once from inside
// a step; implementations hand the work off and return immediately.
type ScoreSink interface {
	SubmitFinalScore(final FinalScore)
}

// EventSink receives every event the session emits, in order.
type EventSink interface {
	Emit(e Event)
}

// AimIndicator shows where the active ball will fall.
type AimIndicator interface {
	MoveAim(x float64, rank int)
}

// Rand is the randomness the session needs. *rand.Rand from math/rand/v2
// satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Deps groups the collaborators of a session. Nil members are replaced by
// no-op implementations.
type Deps struct {
	Factory EntityFactory
	Sound   SoundCue
	Scores  ScoreSink
	Events  EventSink
	Aim     AimIndicator
	Rand    Rand
}

// FinalScore is what the session reports when it ends.
type FinalScore struct {
	Score   int           `json:"final_score"`
	Reason  Reason        `json:"reason"`
	Elapsed time.Duration `json:"elapsed_ns"`
	Merges  int           `json:"merges"`
}

// EventFunc adapts a function to EventSink.
type EventFunc func(Event)

func (f EventFunc) Emit(e Event) { f(e) }

// ScoreFunc adapts a function to ScoreSink.
type ScoreFunc func(FinalScore)

func (f ScoreFunc) SubmitFinalScore(final FinalScore) { f(final) }

type noopProxy struct{}

func (noopProxy) SetTransform(x, y, angle float64) {}
func (noopProxy) Destroy() {}

type noopFactory struct{}

func (noopFactory) NewProxy(EntityID, int) VisualProxy { return noopProxy{} }

type noopSound struct{}

func (noopSound) Play(string) {}

type noopAim struct{}

func (noopAim) MoveAim(float64, int) {}

func (d Deps) withDefaults() Deps {
	if d.Factory == nil {
		d.Factory = noopFactory{}
	}
	if d.Sound == nil {
		d.Sound = noopSound{}
	}
	if d.Scores == nil {
		d.Scores = ScoreFunc(func(FinalScore) {})
	}
	if d.Events == nil {
		d.Events = EventFunc(func(Event) {})
	}
	if d.Aim == nil {
		d.Aim = noopAim{}
	}
	if d.Rand == nil {
		d.Rand = newDefaultRand()
	}
	return d
}
