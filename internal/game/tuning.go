package game

import "time"

// Tuning holds the playfield geometry and the timing rules of a session.
// Coordinates are playfield pixels with y growing downward.
type Tuning struct {
	Width  float64
	Height float64
	FloorY float64

	GameOverLineY       float64 // a settled ball whose top is at or above this line violates
	WarningBandFraction float64 // warning band height as a fraction of Height
	DropY               float64
	AimMargin           float64

	DropCooldown  time.Duration
	GameOverDelay time.Duration

	MergeImpulse     float64 // max speed of the random kick given to a promoted ball
	MergeResetsTimer bool    // false: a merge leaves a running violation timer untouched

	QueueLength int
	MaxDropRank int // fresh queue items are drawn from 0..MaxDropRank
}

// DefaultTuning returns the standard 720x1280 playfield rules.
func DefaultTuning() Tuning {
	return Tuning{
		Width:               720,
		Height:              1280,
		FloorY:              1240,
		GameOverLineY:       240,
		WarningBandFraction: 0.05,
		DropY:               120,
		AimMargin:           4,
		DropCooldown:        1000 * time.Millisecond,
		GameOverDelay:       4000 * time.Millisecond,
		MergeImpulse:        60,
		MergeResetsTimer:    true,
		QueueLength:         2,
		MaxDropRank:         4,
	}
}

// WarningOffset is the height of the warning band above the game-over line.
func (t Tuning) WarningOffset() float64 {
	return t.Height * t.WarningBandFraction
}
