package physics

import (
	"math"
	"time"
)

// Kind classifies a body for contact reporting.
type Kind uint8

const (
	KindCircle Kind = iota
	KindWall        // side walls; touching one does not settle a ball
	KindGround      // the floor
)

func (k Kind) String() string {
	switch k {
	case KindCircle:
		return "circle"
	case KindWall:
		return "wall"
	case KindGround:
		return "ground"
	}
	return "unknown"
}

// BodyID identifies a body. Circle ids are chosen by the caller; segment ids
// are allocated by the world from a reserved range.
type BodyID uint64

// BodyState is a read-only copy of a body's physical state.
type BodyState struct {
	ID       BodyID
	Kind     Kind
	Position Vec2
	Velocity Vec2
	Angle    float64
	Radius   float64
}

// Contact is one touching pair observed during a Step. Each unordered pair
// appears at most once per Step, in detection order. A is always a circle.
type Contact struct {
	A        BodyID
	B        BodyID
	KindA    Kind
	KindB    Kind
	SupportA *Vec2 // nil when the normal is undefined (coincident centers)
	SupportB *Vec2
	Normal   Vec2 // unit vector from A toward B
	Depth    float64
}

// WorldConfig holds the engine tuning for one world.
type WorldConfig struct {
	Width           float64
	Height          float64
	Gravity         Vec2
	Substeps        int
	Iterations      int
	BallRestitution float64
	WallRestitution float64
	Friction        float64
	Damping         float64
	CellSize        float64
}

// DefaultWorldConfig returns the standard tuning for a playfield of the given size.
func DefaultWorldConfig(width, height float64) WorldConfig {
	return WorldConfig{
		Width:           width,
		Height:          height,
		Gravity:         Vec2{X: 0, Y: Gravity},
		Substeps:        Substeps,
		Iterations:      SolverIterations,
		BallRestitution: BallRestitution,
		WallRestitution: WallRestitution,
		Friction:        ContactFriction,
		Damping:         LinearDamping,
		CellSize:        DefaultCellSize,
	}
}

type circle struct {
	id      BodyID
	pos     Vec2
	vel     Vec2
	angle   float64
	radius  float64
	invMass float64
}

type segment struct {
	id     BodyID
	kind   Kind
	p1, p2 Vec2
	dir    Vec2
	normal Vec2 // left normal of dir; points into the playfield
}

type pairKey struct {
	lo, hi BodyID
}

// World is a small rigid-body world of dynamic circles and static segments.
// It is not safe for concurrent use; the owning room goroutine drives it.
type World struct {
	cfg      WorldConfig
	circles  []*circle // insertion order
	byID     map[BodyID]*circle
	segments []*segment
	grid     *spatialGrid
	nextSeg  BodyID

	contacts []Contact
	seen     map[pairKey]struct{}
}

// NewWorld creates an empty world.
func NewWorld(cfg WorldConfig) *World {
	if cfg.Substeps < 1 {
		cfg.Substeps = 1
	}
	if cfg.Iterations < 1 {
		cfg.Iterations = 1
	}
	if cfg.CellSize <= 0 {
		cfg.CellSize = DefaultCellSize
	}
	return &World{
		cfg:  cfg,
		byID: make(map[BodyID]*circle),
		grid: newSpatialGrid(cfg.Width, cfg.Height, cfg.CellSize),
		seen: make(map[pairKey]struct{}),
	}
}

// CellSizeFor is the smallest broad-phase cell that still finds every pair
// of circles up to maxRadius within contact reach.
func CellSizeFor(maxRadius float64) float64 {
	return 2*maxRadius + ContactSlop
}

// NewPlayfield creates a world with two side walls and a ground at floorY,
// sized for circles up to DefaultMaxRadius.
func NewPlayfield(width, height, floorY float64) *World {
	return NewPlayfieldFor(width, height, floorY, DefaultMaxRadius)
}

// NewPlayfieldFor is NewPlayfield for circles up to maxRadius. The walls
// extend one playfield height above the top edge so balls launched upward by
// a merge stay inside.
func NewPlayfieldFor(width, height, floorY, maxRadius float64) *World {
	cfg := DefaultWorldConfig(width, height)
	if maxRadius > 0 {
		cfg.CellSize = CellSizeFor(maxRadius)
	}
	w := NewWorld(cfg)
	w.AddSegment(KindWall, NewVec2(0, floorY), NewVec2(0, -height))
	w.AddSegment(KindWall, NewVec2(width, -height), NewVec2(width, floorY))
	w.AddSegment(KindGround, NewVec2(width, floorY), NewVec2(0, floorY))
	return w
}

// AddCircle adds a dynamic circle. Returns false if the id is taken, reserved
// for segments, or the radius is not positive.
func (w *World) AddCircle(id BodyID, pos Vec2, radius float64) bool {
	if radius <= 0 || id >= segmentIDBase {
		return false
	}
	if _, exists := w.byID[id]; exists {
		return false
	}
	c := &circle{
		id:      id,
		pos:     pos,
		radius:  radius,
		invMass: 1 / (radius * radius),
	}
	w.circles = append(w.circles, c)
	w.byID[id] = c
	return true
}

// AddSegment adds a static segment and returns its id. Endpoints should be
// ordered so the left normal of p1->p2 faces the playfield interior.
func (w *World) AddSegment(kind Kind, p1, p2 Vec2) BodyID {
	id := segmentIDBase + w.nextSeg
	w.nextSeg++
	dir := p2.Minus(p1).Normalize()
	w.segments = append(w.segments, &segment{
		id:     id,
		kind:   kind,
		p1:     p1,
		p2:     p2,
		dir:    dir,
		normal: dir.LeftNormal(),
	})
	return id
}

// Remove deletes a body. Unknown ids are ignored.
func (w *World) Remove(id BodyID) {
	if _, ok := w.byID[id]; ok {
		delete(w.byID, id)
		for i, c := range w.circles {
			if c.id == id {
				w.circles = append(w.circles[:i], w.circles[i+1:]...)
				break
			}
		}
		return
	}
	for i, s := range w.segments {
		if s.id == id {
			w.segments = append(w.segments[:i], w.segments[i+1:]...)
			return
		}
	}
}

// Body returns the state of a body.
func (w *World) Body(id BodyID) (BodyState, bool) {
	if c, ok := w.byID[id]; ok {
		return BodyState{
			ID:       c.id,
			Kind:     KindCircle,
			Position: c.pos,
			Velocity: c.vel,
			Angle:    c.angle,
			Radius:   c.radius,
		}, true
	}
	for _, s := range w.segments {
		if s.id == id {
			return BodyState{ID: s.id, Kind: s.kind, Position: s.p1.Midpoint(s.p2)}, true
		}
	}
	return BodyState{}, false
}

// SetVelocity overwrites a circle's velocity.
func (w *World) SetVelocity(id BodyID, v Vec2) {
	if c, ok := w.byID[id]; ok {
		c.vel = v
	}
}

// ApplyImpulse adds a velocity change (impulse per unit mass) to a circle.
func (w *World) ApplyImpulse(id BodyID, impulse Vec2) {
	if c, ok := w.byID[id]; ok {
		c.vel = c.vel.Plus(impulse)
	}
}

// Len returns the number of circles.
func (w *World) Len() int {
	return len(w.circles)
}

// Clear removes every circle and keeps the static segments.
func (w *World) Clear() {
	w.circles = w.circles[:0]
	w.byID = make(map[BodyID]*circle)
}

// Step advances the world by dt and returns the contacts observed.
func (w *World) Step(dt time.Duration) []Contact {
	w.contacts = nil
	clear(w.seen)
	if dt <= 0 || len(w.circles) == 0 {
		return nil
	}

	h := dt.Seconds() / float64(w.cfg.Substeps)
	for s := 0; s < w.cfg.Substeps; s++ {
		w.integrate(h)
		for it := 0; it < w.cfg.Iterations; it++ {
			w.solveCircles()
			w.solveSegments()
		}
		w.roll(h)
	}
	return w.contacts
}

func (w *World) integrate(h float64) {
	damp := 1 - w.cfg.Damping*h
	if damp < 0 {
		damp = 0
	}
	for _, c := range w.circles {
		c.vel = c.vel.Plus(w.cfg.Gravity.Times(h)).Times(damp)
		if speed := c.vel.Magnitude(); speed > MaxSpeed {
			c.vel = c.vel.Times(MaxSpeed / speed)
		}
		c.pos = c.pos.Plus(c.vel.Times(h))
	}
}

func (w *World) solveCircles() {
	w.grid.clear()
	for i, c := range w.circles {
		w.grid.insert(c.pos, i)
	}
	for i, a := range w.circles {
		w.grid.queryAround(a.pos, func(j int) {
			if j <= i {
				return
			}
			w.resolveCircles(a, w.circles[j])
		})
	}
}

func (w *World) resolveCircles(a, b *circle) {
	d := b.pos.Minus(a.pos)
	rsum := a.radius + b.radius
	reach := rsum + ContactSlop
	distSq := d.MagnitudeSquared()
	if distSq > reach*reach {
		return
	}
	dist := math.Sqrt(distSq)

	var n Vec2
	var supA, supB *Vec2
	if dist > 0 {
		n = d.Times(1 / dist)
		sa := a.pos.Plus(n.Times(a.radius))
		sb := b.pos.Minus(n.Times(b.radius))
		supA, supB = &sa, &sb
	} else {
		// Coincident centers: separate vertically, no usable support points.
		n = Vec2{X: 0, Y: -1}
	}

	total := a.invMass + b.invMass
	depth := rsum - dist
	if depth > 0 {
		corr := n.Times(depth / total)
		a.pos = a.pos.Minus(corr.Times(a.invMass))
		b.pos = b.pos.Plus(corr.Times(b.invMass))
	}

	if checkObjectsConverging(a.pos, b.pos, a.vel, b.vel) {
		vn := b.vel.Minus(a.vel).Dot(n)
		j := -(1 + w.cfg.BallRestitution) * vn / total
		a.vel = a.vel.Minus(n.Times(j * a.invMass))
		b.vel = b.vel.Plus(n.Times(j * b.invMass))

		t := n.RightNormal()
		vt := b.vel.Minus(a.vel).Dot(t)
		jt := -vt * w.cfg.Friction / total
		a.vel = a.vel.Minus(t.Times(jt * a.invMass))
		b.vel = b.vel.Plus(t.Times(jt * b.invMass))
	}

	w.record(Contact{
		A:        a.id,
		B:        b.id,
		KindA:    KindCircle,
		KindB:    KindCircle,
		SupportA: supA,
		SupportB: supB,
		Normal:   n,
		Depth:    depth,
	})
}

func (w *World) solveSegments() {
	for _, c := range w.circles {
		for _, s := range w.segments {
			w.resolveSegment(c, s)
		}
	}
}

func (w *World) resolveSegment(c *circle, s *segment) {
	q := closestPointOnSegment(c.pos, s.p1, s.p2)
	d := c.pos.Minus(q)
	reach := c.radius + ContactSlop
	distSq := d.MagnitudeSquared()
	if distSq > reach*reach {
		return
	}
	dist := math.Sqrt(distSq)

	n := s.normal
	if dist > 0 {
		n = d.Times(1 / dist)
	}
	depth := c.radius - dist
	if depth > 0 {
		c.pos = c.pos.Plus(n.Times(depth))
	}

	if vn := c.vel.Dot(n); vn < 0 {
		c.vel = c.vel.Minus(n.Times((1 + w.cfg.WallRestitution) * vn))
		t := n.RightNormal()
		vt := c.vel.Dot(t)
		c.vel = c.vel.Minus(t.Times(vt * w.cfg.Friction))
	}

	sa := c.pos.Minus(n.Times(c.radius))
	sb := q
	w.record(Contact{
		A:        c.id,
		B:        s.id,
		KindA:    KindCircle,
		KindB:    s.kind,
		SupportA: &sa,
		SupportB: &sb,
		Normal:   n.Invert(),
		Depth:    depth,
	})
}

// roll turns each circle by the distance it travelled horizontally.
func (w *World) roll(h float64) {
	for _, c := range w.circles {
		c.angle = math.Mod(c.angle+c.vel.X/c.radius*h, 2*math.Pi)
	}
}

func (w *World) record(c Contact) {
	key := pairKey{lo: c.A, hi: c.B}
	if key.lo > key.hi {
		key.lo, key.hi = key.hi, key.lo
	}
	if _, dup := w.seen[key]; dup {
		return
	}
	w.seen[key] = struct{}{}
	w.contacts = append(w.contacts, c)
}
