package game

import (
	"time"

	"github.com/playmatatu/mergeball/internal/physics"
)

// Sound cues the session plays besides the per-rank merge cues.
const (
	CueDrop     = "drop"
	CueWarning  = "warning"
	CueGameOver = "game_over"
)

// Session is one game: the registry, the resolvers and the clock that drives
// them. It is not safe for concurrent use; the owner serialises every call.
type Session struct {
	world  World
	tuning Tuning
	table  RankTable
	deps   Deps

	registry *Registry
	score    *Score
	merger   *MergeResolver
	drops    *DropController
	danger   *DangerMonitor

	status        Status
	paused        bool
	clock         time.Duration
	assistPending bool
	endReason     Reason
}

// NewSession builds an idle session over world. Call Start to play.
func NewSession(world World, tuning Tuning, table RankTable, deps Deps) *Session {
	deps = deps.withDefaults()
	reg := NewRegistry(world, deps.Factory, table)
	score := &Score{}
	return &Session{
		world:    world,
		tuning:   tuning,
		table:    table,
		deps:     deps,
		registry: reg,
		score:    score,
		merger:   newMergeResolver(reg, world, table, score, deps, tuning.MergeImpulse),
		drops:    newDropController(tuning, table, deps.Aim, deps.Rand),
		danger:   newDangerMonitor(tuning),
		status:   StatusIdle,
	}
}

// Start resets every piece of owned state and begins a new game. It may be
// called from any status.
func (s *Session) Start() {
	s.failPendingAssist()
	if s.danger.State().InWarningZone {
		s.deps.Events.Emit(WarningOff{})
	}

	s.registry.Clear()
	s.score.reset()
	s.danger.reset()
	s.drops.reset()
	s.clock = 0
	s.paused = false
	s.endReason = ""
	s.status = StatusRunning

	s.deps.Events.Emit(Started{})
	s.deps.Events.Emit(QueueChanged{Active: s.drops.queue.Active(), Preview: s.drops.queue.Preview()})
}

// Step advances the game by dt. It is a no-op unless the session is running
// and not paused.
func (s *Session) Step(dt time.Duration) {
	if s.status != StatusRunning || s.paused || dt <= 0 {
		return
	}
	s.clock += dt
	now := s.clock

	s.drops.tick(now)
	if id, rank, ok := s.drops.apply(s.registry, now); ok {
		e, _ := s.registry.Get(id)
		s.deps.Sound.Play(CueDrop)
		s.deps.Events.Emit(Dropped{ID: id, Rank: rank, X: e.Position.X})
		s.deps.Events.Emit(QueueChanged{Active: s.drops.queue.Active(), Preview: s.drops.queue.Preview()})
	}

	contacts := s.world.Step(dt)
	s.registry.refresh()
	s.registry.MarkSettled(contacts)

	result := s.merger.Resolve(contacts)
	merged := result.Count() > 0

	if s.assistPending {
		s.assistPending = false
		if _, ok := s.merger.AssistedMerge(); ok {
			merged = true
		}
	}

	verdict := s.danger.Evaluate(s.registry, merged, now)
	if verdict.WarningOn {
		s.deps.Sound.Play(CueWarning)
		s.deps.Events.Emit(WarningOn{})
	}
	if verdict.WarningOff {
		s.deps.Events.Emit(WarningOff{})
	}

	s.registry.SyncVisuals()

	if verdict.GameOver {
		s.end(ReasonDangerLine)
	}
}

// Aim moves the drop position, clamped to the playfield. Returns the
// effective x.
func (s *Session) Aim(x float64) float64 {
	return s.drops.Aim(x)
}

// Drop asks for the active ball to be dropped at the current aim. The ball
// enters the field on the next step. Returns false while cooling down, while
// paused or when the session is not running.
func (s *Session) Drop() bool {
	if s.status != StatusRunning || s.paused {
		return false
	}
	return s.drops.request(s.clock)
}

// DropAt aims at x and drops.
func (s *Session) DropAt(x float64) bool {
	if s.status != StatusRunning || s.paused {
		return false
	}
	s.drops.Aim(x)
	return s.Drop()
}

// RequestAssistedMerge schedules a field-wide merge for the next step. When
// the session cannot run it, MergeFailed is emitted at once.
func (s *Session) RequestAssistedMerge() bool {
	if s.status != StatusRunning || s.paused {
		s.deps.Events.Emit(MergeFailed{Reason: MergeFailNotRunning})
		return false
	}
	if s.assistPending {
		s.deps.Events.Emit(MergeFailed{Reason: MergeFailBusy})
		return false
	}
	s.assistPending = true
	return true
}

// Pause stops the session clock. Steps are ignored until Resume.
func (s *Session) Pause() bool {
	if s.status != StatusRunning || s.paused {
		return false
	}
	s.paused = true
	s.deps.Events.Emit(Paused{})
	return true
}

func (s *Session) Resume() bool {
	if s.status != StatusRunning || !s.paused {
		return false
	}
	s.paused = false
	s.deps.Events.Emit(Resumed{})
	return true
}

// ForceEnd ends a running session for reason. Returns false from any other
// status.
func (s *Session) ForceEnd(reason Reason) bool {
	if s.status != StatusRunning {
		return false
	}
	s.end(reason)
	return true
}

func (s *Session) end(reason Reason) {
	if s.status == StatusGameOver {
		return
	}
	s.failPendingAssist()
	s.status = StatusGameOver
	s.paused = false
	s.endReason = reason

	final := FinalScore{
		Score:   s.score.Total(),
		Reason:  reason,
		Elapsed: s.clock,
		Merges:  s.score.Merges(),
	}
	s.deps.Sound.Play(CueGameOver)
	s.deps.Events.Emit(GameOver{FinalScore: final.Score, Reason: reason})
	s.deps.Scores.SubmitFinalScore(final)
}

// failPendingAssist reports a queued assisted merge that will never run.
func (s *Session) failPendingAssist() {
	if !s.assistPending {
		return
	}
	s.assistPending = false
	s.deps.Events.Emit(MergeFailed{Reason: MergeFailNotRunning})
}

func (s *Session) Status() Status { return s.status }
func (s *Session) Paused() bool { return s.paused }
func (s *Session) Score() int { return s.score.Total() }
func (s *Session) Merges() int { return s.score.Merges() }
func (s *Session) Elapsed() time.Duration { return s.clock }
func (s *Session) EndReason() Reason { return s.endReason }
func (s *Session) Danger() DangerState { return s.danger.State() }
func (s *Session) CanDrop() bool { return s.status == StatusRunning && !s.paused && s.drops.CanDrop() }

// EntitySnapshot is the wire view of one ball.
type EntitySnapshot struct {
	ID      EntityID `json:"id"`
	Rank    int      `json:"rank"`
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
	Angle   float64  `json:"angle"`
	Radius  float64  `json:"radius"`
	Settled bool     `json:"settled"`
}

// SessionSnapshot is a serialisable view of the whole session.
type SessionSnapshot struct {
	Status    Status           `json:"status"`
	Paused    bool             `json:"paused"`
	Score     int              `json:"score"`
	Merges    int              `json:"merges"`
	ElapsedMs int64            `json:"elapsed_ms"`
	Reason    Reason           `json:"reason,omitempty"`
	Queue     []int            `json:"queue"`
	AimX      float64          `json:"aim_x"`
	CanDrop   bool             `json:"can_drop"`
	Danger    DangerState      `json:"danger"`
	Entities  []EntitySnapshot `json:"entities"`
}

// Snapshot captures the current state. Positions are rounded for the wire.
func (s *Session) Snapshot() SessionSnapshot {
	snap := SessionSnapshot{
		Status:    s.status,
		Paused:    s.paused,
		Score:     s.score.Total(),
		Merges:    s.score.Merges(),
		ElapsedMs: s.clock.Milliseconds(),
		Reason:    s.endReason,
		Queue:     s.drops.queue.Items(),
		AimX:      s.drops.AimX(),
		CanDrop:   s.CanDrop(),
		Danger:    s.danger.State(),
		Entities:  make([]EntitySnapshot, 0, s.registry.Len()),
	}
	s.registry.Each(func(e *Entity) {
		p := e.Position.Rounded()
		snap.Entities = append(snap.Entities, EntitySnapshot{
			ID:      e.ID,
			Rank:    e.Rank,
			X:       p.X,
			Y:       p.Y,
			Angle:   e.Angle,
			Radius:  e.Radius,
			Settled: e.Settled,
		})
	})
	return snap
}

// NewPlayfieldWorld builds the physics world matching t, with a broad phase
// sized for the largest ball in table.
func NewPlayfieldWorld(t Tuning, table RankTable) *physics.World {
	return physics.NewPlayfieldFor(t.Width, t.Height, t.FloorY, table.MaxRadius())
}
