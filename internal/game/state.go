package game

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Status represents the lifecycle state of a session.
type Status string

const (
	StatusIdle     Status = "IDLE"
	StatusRunning  Status = "RUNNING"
	StatusGameOver Status = "GAME_OVER"
)

// DebugAsserts turns internal invariant checks into panics. The server
// enables it outside production.
var DebugAsserts = false

func assertf(cond bool, format string, args ...any) {
	if DebugAsserts && !cond {
		panic(fmt.Sprintf("game: invariant violated: "+format, args...))
	}
}

func newDefaultRand() Rand {
	seed := uint64(time.Now().UnixNano())
	return rand.New(rand.NewPCG(seed, seed>>1|1))
}

// NewSeededRand returns a deterministic Rand, for replays and tests.
func NewSeededRand(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
