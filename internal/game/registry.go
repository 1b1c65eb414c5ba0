package game

import (
	"sort"

	"github.com/playmatatu/mergeball/internal/physics"
)

// EntityID is stable for the lifetime of an entity and is also its body id
// in the world.
type EntityID uint64

// Entity is one ball on the field.
type Entity struct {
	ID       EntityID
	Rank     int
	Position physics.Vec2
	Velocity physics.Vec2
	Angle    float64
	Radius   float64
	Settled  bool // has touched another ball or the ground since creation
}

// Top returns the y of the highest point of the ball.
func (e *Entity) Top() float64 {
	return e.Position.Y - e.Radius
}

// Registry maps entity ids to their body and visual proxy. It is the single
// source of truth for which balls exist.
type Registry struct {
	world    World
	factory  EntityFactory
	table    RankTable
	entities map[EntityID]*Entity
	proxies  map[EntityID]VisualProxy
	ids      []EntityID // ascending
	nextID   EntityID
}

// NewRegistry creates an empty registry over world.
func NewRegistry(world World, factory EntityFactory, table RankTable) *Registry {
	if factory == nil {
		factory = noopFactory{}
	}
	return &Registry{
		world:    world,
		factory:  factory,
		table:    table,
		entities: make(map[EntityID]*Entity),
		proxies:  make(map[EntityID]VisualProxy),
		nextID:   1,
	}
}

// Create allocates a body and a visual proxy for a new ball and returns its
// id. Ids are never reused within a registry. Returns 0 for an invalid rank.
func (r *Registry) Create(rank int, x, y float64) EntityID {
	if !r.table.Valid(rank) {
		assertf(false, "create with invalid rank %d", rank)
		return 0
	}
	id := r.nextID
	r.nextID++

	radius := r.table.Radius(rank)
	pos := physics.NewVec2(x, y)
	if !r.world.AddCircle(physics.BodyID(id), pos, radius) {
		assertf(false, "world rejected body %d", id)
		return 0
	}
	proxy := r.factory.NewProxy(id, rank)
	proxy.SetTransform(x, y, 0)

	r.entities[id] = &Entity{
		ID:       id,
		Rank:     rank,
		Position: pos,
		Radius:   radius,
	}
	r.proxies[id] = proxy
	r.ids = append(r.ids, id)
	return id
}

// Destroy removes the body and the visual proxy. Unknown ids are a no-op.
func (r *Registry) Destroy(id EntityID) {
	if _, ok := r.entities[id]; !ok {
		return
	}
	r.world.Remove(physics.BodyID(id))
	if p := r.proxies[id]; p != nil {
		p.Destroy()
	}
	delete(r.entities, id)
	delete(r.proxies, id)
	i := sort.Search(len(r.ids), func(i int) bool { return r.ids[i] >= id })
	if i < len(r.ids) && r.ids[i] == id {
		r.ids = append(r.ids[:i], r.ids[i+1:]...)
	}
}

// Get returns the entity with id, if it exists.
func (r *Registry) Get(id EntityID) (*Entity, bool) {
	e, ok := r.entities[id]
	return e, ok
}

func (r *Registry) Len() int {
	return len(r.entities)
}

// Each calls fn for every entity in ascending id order. fn must not create
// or destroy entities.
func (r *Registry) Each(fn func(e *Entity)) {
	for _, id := range r.ids {
		fn(r.entities[id])
	}
}

// Clear destroys every entity.
func (r *Registry) Clear() {
	for len(r.ids) > 0 {
		r.Destroy(r.ids[len(r.ids)-1])
	}
}

// refresh copies the physical state of every entity out of the world.
func (r *Registry) refresh() {
	for _, id := range r.ids {
		e := r.entities[id]
		body, ok := r.world.Body(physics.BodyID(id))
		if !ok {
			assertf(false, "entity %d has no body", id)
			continue
		}
		e.Position = body.Position
		e.Velocity = body.Velocity
		e.Angle = body.Angle
	}
}

// SyncVisuals copies every entity's physical position and rotation onto its
// visual proxy. Called once per step, after physics integration.
func (r *Registry) SyncVisuals() {
	r.refresh()
	for _, id := range r.ids {
		e := r.entities[id]
		r.proxies[id].SetTransform(e.Position.X, e.Position.Y, e.Angle)
	}
	r.checkInvariant()
}

// MarkSettled flags balls that touched another ball or the ground. Side
// walls do not settle a ball.
func (r *Registry) MarkSettled(contacts []physics.Contact) {
	for _, c := range contacts {
		if c.KindA != physics.KindCircle {
			continue
		}
		a, okA := r.entities[EntityID(c.A)]
		switch c.KindB {
		case physics.KindGround:
			if okA {
				a.Settled = true
			}
		case physics.KindCircle:
			b, okB := r.entities[EntityID(c.B)]
			if okA && okB {
				a.Settled = true
				b.Settled = true
			}
		}
	}
}

// checkInvariant verifies the dual-representation invariant.
func (r *Registry) checkInvariant() {
	if !DebugAsserts {
		return
	}
	assertf(len(r.entities) == len(r.proxies) && len(r.entities) == len(r.ids),
		"registry sizes differ: entities=%d proxies=%d ids=%d", len(r.entities), len(r.proxies), len(r.ids))
	for _, id := range r.ids {
		_, ok := r.world.Body(physics.BodyID(id))
		assertf(ok, "entity %d missing from world", id)
	}
}
