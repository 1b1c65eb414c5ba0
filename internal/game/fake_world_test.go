package game

import (
	"time"

	"github.com/playmatatu/mergeball/internal/physics"
)

// scriptedWorld is a World with no dynamics: bodies stay where they are put
// and each Step returns whatever contacts were queued for it.
type scriptedWorld struct {
	bodies   map[physics.BodyID]*physics.BodyState
	next     []physics.Contact
	impulses map[physics.BodyID]physics.Vec2
	steps    int
}

func newScriptedWorld() *scriptedWorld {
	return &scriptedWorld{
		bodies:   make(map[physics.BodyID]*physics.BodyState),
		impulses: make(map[physics.BodyID]physics.Vec2),
	}
}

func (w *scriptedWorld) AddCircle(id physics.BodyID, pos physics.Vec2, radius float64) bool {
	if _, ok := w.bodies[id]; ok {
		return false
	}
	w.bodies[id] = &physics.BodyState{ID: id, Kind: physics.KindCircle, Position: pos, Radius: radius}
	return true
}

func (w *scriptedWorld) Remove(id physics.BodyID) {
	delete(w.bodies, id)
}

func (w *scriptedWorld) Body(id physics.BodyID) (physics.BodyState, bool) {
	b, ok := w.bodies[id]
	if !ok {
		return physics.BodyState{}, false
	}
	return *b, true
}

func (w *scriptedWorld) ApplyImpulse(id physics.BodyID, impulse physics.Vec2) {
	w.impulses[id] = impulse
}

func (w *scriptedWorld) Step(dt time.Duration) []physics.Contact {
	w.steps++
	out := w.next
	w.next = nil
	return out
}

func (w *scriptedWorld) move(id EntityID, x, y float64) {
	if b, ok := w.bodies[physics.BodyID(id)]; ok {
		b.Position = physics.NewVec2(x, y)
	}
}

// touch queues a ball-ball contact for the next step, with support points
// on the line between the centers.
func (w *scriptedWorld) touch(a, b EntityID) {
	ba, bb := w.bodies[physics.BodyID(a)], w.bodies[physics.BodyID(b)]
	c := physics.Contact{A: physics.BodyID(a), B: physics.BodyID(b), KindA: physics.KindCircle, KindB: physics.KindCircle}
	if ba != nil && bb != nil {
		n := bb.Position.Minus(ba.Position).Normalize()
		sa := ba.Position.Plus(n.Times(ba.Radius))
		sb := bb.Position.Minus(n.Times(bb.Radius))
		c.SupportA, c.SupportB = &sa, &sb
	}
	w.next = append(w.next, c)
}

// ground queues a ball-ground contact for the next step.
func (w *scriptedWorld) ground(a EntityID) {
	w.next = append(w.next, physics.Contact{
		A:     physics.BodyID(a),
		B:     1 << 62,
		KindA: physics.KindCircle,
		KindB: physics.KindGround,
	})
}

type recorder struct {
	events []Event
	sounds []string
	finals []FinalScore
}

func (r *recorder) Emit(e Event) { r.events = append(r.events, e) }
func (r *recorder) Play(cue string) { r.sounds = append(r.sounds, cue) }
func (r *recorder) SubmitFinalScore(f FinalScore) { r.finals = append(r.finals, f) }

func (r *recorder) count(t EventType) int {
	n := 0
	for _, e := range r.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

func (r *recorder) last(t EventType) Event {
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].EventType() == t {
			return r.events[i]
		}
	}
	return nil
}

type countingFactory struct {
	live map[EntityID]*countingProxy
}

type countingProxy struct {
	x, y, angle float64
	destroyed   bool
}

func (p *countingProxy) SetTransform(x, y, angle float64) { p.x, p.y, p.angle = x, y, angle }
func (p *countingProxy) Destroy() { p.destroyed = true }

func (f *countingFactory) NewProxy(id EntityID, rank int) VisualProxy {
	p := &countingProxy{}
	f.live[id] = p
	return p
}

func newTestSession(w World, tuning Tuning) (*Session, *recorder) {
	rec := &recorder{}
	s := NewSession(w, tuning, DefaultRankTable(), Deps{
		Sound:  rec,
		Scores: rec,
		Events: rec,
		Rand:   NewSeededRand(7),
	})
	return s, rec
}

const tick = time.Second / 60

func vec(x, y float64) physics.Vec2 { return physics.NewVec2(x, y) }

func bodyID(id EntityID) physics.BodyID { return physics.BodyID(id) }

// zeroRand always picks rank 0 and a purely sideways kick.
type zeroRand struct{}

func (zeroRand) Float64() float64 { return 0 }
func (zeroRand) IntN(int) int { return 0 }

func wallContact(a EntityID) physics.Contact {
	return physics.Contact{
		A:     physics.BodyID(a),
		B:     1<<62 + 1,
		KindA: physics.KindCircle,
		KindB: physics.KindWall,
	}
}
