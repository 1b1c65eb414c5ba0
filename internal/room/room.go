package room

import (
	"log"
	"sync"
	"time"

	"github.com/playmatatu/mergeball/internal/game"
)

// Options configure a room.
type Options struct {
	Tick           time.Duration // fixed step; defaults to 1/60s
	BroadcastEvery int           // ticks between snapshots
	TimeLimit      time.Duration // zero means unlimited
	Tuning         game.Tuning
	Table          game.RankTable
	Rand           game.Rand
	World          game.World // defaults to a playfield matching Tuning
}

// Room owns one game session and drives it from a single goroutine. Every
// input goes through Inbox and is applied between ticks.
type Room struct {
	Inbox chan any

	Token    string
	PlayerID int

	tick           time.Duration
	broadcastEvery int
	timeLimit      time.Duration
	session        *game.Session
	conns          map[Conn]struct{}
	pending        []game.Event
	final          *game.FinalScore
	ended          bool
	assistsPaid    int
	ticks          int

	quit     chan struct{}
	stopOnce sync.Once

	// OnEnd receives the final score once. Called on its own goroutine.
	OnEnd func(r *Room, final game.FinalScore)
	// OnRefund is called when a paid assisted merge fails. Called on its own
	// goroutine.
	OnRefund func(r *Room)
}

// New builds a room and starts its session. Call Run to drive it.
func New(token string, playerID int, opts Options) *Room {
	if opts.Tick <= 0 {
		opts.Tick = time.Second / 60
	}
	if opts.BroadcastEvery <= 0 {
		opts.BroadcastEvery = 1
	}
	if opts.Tuning.Width == 0 {
		opts.Tuning = game.DefaultTuning()
	}
	if opts.Table.Len() == 0 {
		opts.Table = game.DefaultRankTable()
	}
	world := opts.World
	if world == nil {
		world = game.NewPlayfieldWorld(opts.Tuning, opts.Table)
	}

	r := &Room{
		Inbox:          make(chan any, 256),
		Token:          token,
		PlayerID:       playerID,
		tick:           opts.Tick,
		broadcastEvery: opts.BroadcastEvery,
		timeLimit:      opts.TimeLimit,
		conns:          make(map[Conn]struct{}),
		quit:           make(chan struct{}),
	}
	r.session = game.NewSession(world, opts.Tuning, opts.Table, game.Deps{
		Events: game.EventFunc(func(e game.Event) { r.pending = append(r.pending, e) }),
		Scores: game.ScoreFunc(func(f game.FinalScore) { r.final = &f }),
		Rand:   opts.Rand,
	})
	r.session.Start()
	return r
}

func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.quit) })
}

func (r *Room) Run() {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	defer r.closeConns()

	for {
		select {
		case <-r.quit:
			return
		case cmd := <-r.Inbox:
			r.handleCommand(cmd)
			r.flush()
		case <-ticker.C:
			r.step()
		}
	}
}

// step advances the session by one fixed tick.
func (r *Room) step() {
	if r.session.Status() != game.StatusRunning || r.session.Paused() {
		return
	}
	r.session.Step(r.tick)
	r.ticks++
	if r.timeLimit > 0 && r.session.Elapsed() >= r.timeLimit {
		r.session.ForceEnd(game.ReasonTimeOut)
	}
	r.flush()
	if r.ticks%r.broadcastEvery == 0 && !r.ended {
		r.broadcastSnapshot()
	}
}

func (r *Room) handleCommand(cmd any) {
	switch c := cmd.(type) {
	case Subscribe:
		r.conns[c.Conn] = struct{}{}
		r.sendSnapshotTo(c.Conn)
	case Unsubscribe:
		delete(r.conns, c.Conn)
	case Aim:
		r.session.Aim(c.X)
	case Drop:
		if c.X != nil {
			r.session.DropAt(*c.X)
		} else {
			r.session.Drop()
		}
	case AssistedMerge:
		if c.Paid {
			r.assistsPaid++
		}
		r.session.RequestAssistedMerge()
	case Pause:
		r.session.Pause()
	case Resume:
		r.session.Resume()
	case End:
		r.session.ForceEnd(c.Reason)
	case SnapshotRequest:
		c.Reply <- r.session.Snapshot()
	default:
		log.Printf("[ROOM] %s: unknown command %T", r.Token, cmd)
	}
}

// flush delivers the events buffered during the last command or tick and
// reports the end of the session.
func (r *Room) flush() {
	events := r.pending
	r.pending = nil
	for _, e := range events {
		switch e.(type) {
		case game.MergeFailed:
			if r.assistsPaid > 0 {
				r.assistsPaid--
				if r.OnRefund != nil {
					go r.OnRefund(r)
				}
			}
		case game.MergeSuccess:
			if r.assistsPaid > 0 {
				r.assistsPaid--
			}
		}
		b, err := EncodeEvent(e)
		if err != nil {
			log.Printf("[ROOM] %s: encode %s: %v", r.Token, e.EventType(), err)
			continue
		}
		r.broadcast(b)
	}

	if r.final != nil && !r.ended {
		r.ended = true
		r.broadcastSnapshot()
		final := *r.final
		log.Printf("[ROOM] %s: session over score=%d reason=%s elapsed=%v merges=%d",
			r.Token, final.Score, final.Reason, final.Elapsed, final.Merges)
		if r.OnEnd != nil {
			go r.OnEnd(r, final)
		}
	}
}

func (r *Room) broadcastSnapshot() {
	b, err := Encode(MsgSnapshot, r.session.Snapshot())
	if err != nil {
		return
	}
	r.broadcast(b)
}

func (r *Room) broadcast(b []byte) {
	var failed []Conn
	for c := range r.conns {
		if err := c.Send(b); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		_ = c.Close()
		delete(r.conns, c)
	}
}

func (r *Room) sendSnapshotTo(c Conn) {
	b, err := Encode(MsgSnapshot, r.session.Snapshot())
	if err != nil {
		return
	}
	_ = c.Send(b)
}

func (r *Room) closeConns() {
	for c := range r.conns {
		_ = c.Close()
	}
	r.conns = make(map[Conn]struct{})
}
