package game

import "time"

// DangerState tracks how close the stack is to the game-over line.
type DangerState struct {
	WarningStartedAt        *time.Duration `json:"warning_started_at,omitempty"`
	InWarningZone           bool           `json:"in_warning_zone"`
	HasHadMergeSinceWarning bool           `json:"has_had_merge_since_warning"`
}

// Verdict is the outcome of one danger evaluation.
type Verdict struct {
	WarningOn  bool // band entered this step
	WarningOff bool // band left this step
	GameOver   bool
	Violating  int // settled balls at or past the line
}

// DangerMonitor debounces game over: a violation must persist for the
// configured delay without an intervening merge.
type DangerMonitor struct {
	state       DangerState
	line        float64
	offset      float64
	delay       time.Duration
	mergeResets bool
}

func newDangerMonitor(t Tuning) *DangerMonitor {
	return &DangerMonitor{
		line:        t.GameOverLineY,
		offset:      t.WarningOffset(),
		delay:       t.GameOverDelay,
		mergeResets: t.MergeResetsTimer,
	}
}

// State returns a copy of the current danger state.
func (d *DangerMonitor) State() DangerState {
	s := d.state
	if s.WarningStartedAt != nil {
		at := *s.WarningStartedAt
		s.WarningStartedAt = &at
	}
	return s
}

func (d *DangerMonitor) reset() {
	d.state = DangerState{}
}

// Evaluate inspects every settled ball. merged reports whether any merge ran
// in this step; now is the pause-excluded session clock.
func (d *DangerMonitor) Evaluate(reg *Registry, merged bool, now time.Duration) Verdict {
	var v Verdict
	anyWarning := false
	reg.Each(func(e *Entity) {
		if !e.Settled {
			return
		}
		top := e.Top()
		if top <= d.line {
			v.Violating++
			anyWarning = true
		} else if top <= d.line+d.offset {
			anyWarning = true
		}
	})

	if anyWarning != d.state.InWarningZone {
		d.state.InWarningZone = anyWarning
		if anyWarning {
			v.WarningOn = true
			d.state.HasHadMergeSinceWarning = false
		} else {
			v.WarningOff = true
		}
	}
	if merged && d.state.InWarningZone {
		d.state.HasHadMergeSinceWarning = true
	}

	switch {
	case v.Violating == 0:
		d.state.WarningStartedAt = nil
	case merged && d.mergeResets:
		d.state.WarningStartedAt = nil
	case d.state.WarningStartedAt == nil:
		start := now
		d.state.WarningStartedAt = &start
	}

	if d.state.WarningStartedAt != nil && now-*d.state.WarningStartedAt >= d.delay {
		v.GameOver = true
	}
	return v
}
