package game

import (
	"math"

	"github.com/playmatatu/mergeball/internal/physics"
)

// Reasons carried by MergeFailed.
const (
	MergeFailNoPair     = "no_pair"
	MergeFailNotRunning = "not_running"
	MergeFailBusy       = "already_pending"
)

// Score is the session score. It only ever grows.
type Score struct {
	total  int
	merges int
}

func (s *Score) Total() int { return s.total }
func (s *Score) Merges() int { return s.merges }

func (s *Score) add(v int) {
	assertf(v >= 0, "negative score value %d", v)
	if v < 0 {
		return
	}
	s.total += v
	s.merges++
}

func (s *Score) reset() {
	s.total = 0
	s.merges = 0
}

// MergeResult summarises the merges executed in one step.
type MergeResult struct {
	Merges   []Merged
	Promoted []EntityID
}

// Count returns the number of merges executed.
func (m MergeResult) Count() int {
	return len(m.Merges)
}

// MergeResolver turns same-rank contacts into promotions.
type MergeResolver struct {
	registry *Registry
	world    World
	table    RankTable
	score    *Score
	deps     Deps
	impulse  float64
}

func newMergeResolver(reg *Registry, world World, table RankTable, score *Score, deps Deps, impulse float64) *MergeResolver {
	return &MergeResolver{
		registry: reg,
		world:    world,
		table:    table,
		score:    score,
		deps:     deps,
		impulse:  impulse,
	}
}

// Resolve walks contacts in the order the engine reported them and merges
// every equal-rank ball pair. No ball takes part in more than one merge per
// call; the losing pairs are left for the next step.
func (m *MergeResolver) Resolve(contacts []physics.Contact) MergeResult {
	var result MergeResult
	consumed := make(map[EntityID]struct{})

	for _, c := range contacts {
		if c.KindA != physics.KindCircle || c.KindB != physics.KindCircle {
			continue
		}
		idA, idB := EntityID(c.A), EntityID(c.B)
		if _, ok := consumed[idA]; ok {
			continue
		}
		if _, ok := consumed[idB]; ok {
			continue
		}
		a, okA := m.registry.Get(idA)
		b, okB := m.registry.Get(idB)
		if !okA || !okB {
			// Stale pair for a ball that is already gone.
			continue
		}
		if a.Rank != b.Rank {
			continue
		}

		consumed[idA] = struct{}{}
		consumed[idB] = struct{}{}
		at := mergePoint(a, b, c.SupportA, c.SupportB)
		merged := m.apply(a, b, at, false)
		result.Merges = append(result.Merges, merged)
		if merged.Promoted {
			result.Promoted = append(result.Promoted, merged.ID)
		}
	}
	return result
}

// AssistedMerge merges the two closest balls of the lowest rank that has at
// least two balls on the field, without requiring contact. It reports
// MergeSuccess or MergeFailed through the event sink.
func (m *MergeResolver) AssistedMerge() (Merged, bool) {
	byRank := make(map[int][]*Entity)
	m.registry.Each(func(e *Entity) {
		byRank[e.Rank] = append(byRank[e.Rank], e)
	})

	rank := -1
	for r := 0; r < m.table.Len(); r++ {
		if len(byRank[r]) >= 2 {
			rank = r
			break
		}
	}
	if rank < 0 {
		m.deps.Events.Emit(MergeFailed{Reason: MergeFailNoPair})
		return Merged{}, false
	}

	group := byRank[rank]
	var a, b *Entity
	best := math.Inf(1)
	for i := 0; i < len(group); i++ {
		for j := i + 1; j < len(group); j++ {
			d := group[i].Position.DistanceTo(group[j].Position)
			if d < best {
				best = d
				a, b = group[i], group[j]
			}
		}
	}

	merged := m.apply(a, b, a.Position.Midpoint(b.Position), true)
	m.deps.Events.Emit(MergeSuccess{Rank: merged.Rank, Promoted: merged.Promoted})
	return merged, true
}

// apply executes one merge of a and b at point at.
func (m *MergeResolver) apply(a, b *Entity, at physics.Vec2, assisted bool) Merged {
	rank := a.Rank
	info := m.table.At(rank)
	merged := Merged{
		A:        a.ID,
		B:        b.ID,
		Rank:     rank,
		X:        at.X,
		Y:        at.Y,
		Cue:      info.Cue,
		Assisted: assisted,
	}

	m.registry.Destroy(a.ID)
	m.registry.Destroy(b.ID)

	m.score.add(info.Value)
	m.deps.Events.Emit(ScoreChanged{Total: m.score.Total()})

	if rank < m.table.MaxRank() {
		id := m.registry.Create(rank+1, at.X, at.Y)
		if id != 0 {
			m.world.ApplyImpulse(physics.BodyID(id), m.kick())
			merged.Promoted = true
			merged.ID = id
		}
	}

	m.deps.Sound.Play(info.Cue)
	m.deps.Events.Emit(merged)
	return merged
}

// kick returns a random impulse with a non-positive vertical component, so a
// promoted ball is never pushed down toward the line.
func (m *MergeResolver) kick() physics.Vec2 {
	if m.impulse <= 0 {
		return physics.Vec2{}
	}
	x := (m.deps.Rand.Float64()*2 - 1) * m.impulse
	y := -m.deps.Rand.Float64() * m.impulse
	return physics.NewVec2(x, y)
}

// mergePoint returns the midpoint of the two support points, or the single
// support point when only one is known, or the midpoint of the centers.
func mergePoint(a, b *Entity, supportA, supportB *physics.Vec2) physics.Vec2 {
	switch {
	case supportA != nil && supportB != nil:
		return supportA.Midpoint(*supportB)
	case supportA != nil:
		return *supportA
	case supportB != nil:
		return *supportB
	default:
		return a.Position.Midpoint(b.Position)
	}
}
