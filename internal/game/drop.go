package game

import (
	"math"
	"time"
)

// DropQueue is a fixed-length lookahead of upcoming ranks.
type DropQueue struct {
	items   []int
	maxRank int
	rng     Rand
}

func newDropQueue(length, maxRank int, rng Rand) *DropQueue {
	if length < 2 {
		length = 2
	}
	q := &DropQueue{
		items:   make([]int, length),
		maxRank: maxRank,
		rng:     rng,
	}
	q.reseed()
	return q
}

func (q *DropQueue) fresh() int {
	return q.rng.IntN(q.maxRank + 1)
}

func (q *DropQueue) reseed() {
	for i := range q.items {
		q.items[i] = q.fresh()
	}
}

// pop removes the head and appends a fresh rank, keeping the length constant.
func (q *DropQueue) pop() int {
	head := q.items[0]
	copy(q.items, q.items[1:])
	q.items[len(q.items)-1] = q.fresh()
	return head
}

func (q *DropQueue) Active() int { return q.items[0] }
func (q *DropQueue) Preview() int { return q.items[1] }
func (q *DropQueue) Len() int { return len(q.items) }

// Items returns a copy of the queue, head first.
func (q *DropQueue) Items() []int {
	out := make([]int, len(q.items))
	copy(out, q.items)
	return out
}

// DropController owns the queue, the aim position and the drop cooldown.
// Accepted drops are only recorded here; the session applies them inside
// its next step.
type DropController struct {
	queue  *DropQueue
	table  RankTable
	tuning Tuning
	aim    AimIndicator

	aimX      float64
	canDrop   bool
	readyAt   time.Duration
	pending   bool
	pendingX  float64
	lastDrop  time.Duration
	dropCount int
}

func newDropController(tuning Tuning, table RankTable, aim AimIndicator, rng Rand) *DropController {
	maxRank := tuning.MaxDropRank
	if maxRank > table.MaxRank() {
		maxRank = table.MaxRank()
	}
	d := &DropController{
		queue:  newDropQueue(tuning.QueueLength, maxRank, rng),
		table:  table,
		tuning: tuning,
		aim:    aim,
	}
	d.reset()
	return d
}

func (d *DropController) reset() {
	d.queue.reseed()
	d.aimX = d.tuning.Width / 2
	d.canDrop = true
	d.readyAt = 0
	d.pending = false
	d.lastDrop = 0
	d.dropCount = 0
	d.aim.MoveAim(d.aimX, d.queue.Active())
}

// bounds returns the horizontal range the active ball can be dropped in.
func (d *DropController) bounds() (float64, float64) {
	r := d.table.Radius(d.queue.Active())
	minX := r + d.tuning.AimMargin
	maxX := d.tuning.Width - r - d.tuning.AimMargin
	if minX > maxX {
		mid := d.tuning.Width / 2
		return mid, mid
	}
	return minX, maxX
}

func (d *DropController) clampX(x float64) float64 {
	if math.IsNaN(x) {
		return d.aimX
	}
	minX, maxX := d.bounds()
	return math.Max(minX, math.Min(maxX, x))
}

// Aim moves the aim indicator. It never touches physics.
func (d *DropController) Aim(x float64) float64 {
	d.aimX = d.clampX(x)
	d.aim.MoveAim(d.aimX, d.queue.Active())
	return d.aimX
}

func (d *DropController) AimX() float64 { return d.aimX }
func (d *DropController) CanDrop() bool { return d.canDrop && !d.pending }

// request records a drop at the current aim if the cooldown allows it and
// starts the cooldown at now.
func (d *DropController) request(now time.Duration) bool {
	if !d.canDrop || d.pending {
		return false
	}
	d.pending = true
	d.pendingX = d.aimX
	d.canDrop = false
	d.readyAt = now + d.tuning.DropCooldown
	return true
}

// tick re-arms the controller once the cooldown has elapsed.
func (d *DropController) tick(now time.Duration) {
	if !d.canDrop && !d.pending && now >= d.readyAt {
		d.canDrop = true
	}
}

// apply creates the pending ball, if any. It returns the new entity and its
// rank.
func (d *DropController) apply(reg *Registry, now time.Duration) (EntityID, int, bool) {
	if !d.pending {
		return 0, 0, false
	}
	d.pending = false
	rank := d.queue.pop()
	x := d.pendingX
	// The aim was clamped for this rank before the pop.
	id := reg.Create(rank, x, d.tuning.DropY)
	if id == 0 {
		return 0, rank, false
	}
	assertf(d.dropCount == 0 || now-d.lastDrop >= d.tuning.DropCooldown,
		"drops %v apart, cooldown %v", now-d.lastDrop, d.tuning.DropCooldown)
	d.lastDrop = now
	d.dropCount++
	d.aimX = d.clampX(d.aimX)
	d.aim.MoveAim(d.aimX, d.queue.Active())
	return id, rank, true
}
