package game

import "testing"

func TestStepIsNoopUnlessRunning(t *testing.T) {
	w := newScriptedWorld()
	s, _ := newTestSession(w, DefaultTuning())

	s.Step(tick)
	if w.steps != 0 || s.Elapsed() != 0 {
		t.Error("Idle session stepped the world")
	}

	s.Start()
	s.Step(tick)
	if w.steps != 1 {
		t.Errorf("World steps = %d, want 1", w.steps)
	}

	s.Pause()
	s.Step(tick)
	s.Step(tick)
	if w.steps != 1 || s.Elapsed() != tick {
		t.Errorf("Paused session advanced: steps=%d elapsed=%v", w.steps, s.Elapsed())
	}
	s.Resume()
	s.Step(tick)
	if s.Elapsed() != 2*tick {
		t.Errorf("Elapsed after resume = %v, want %v", s.Elapsed(), 2*tick)
	}
}

func TestPauseExcludedFromCooldown(t *testing.T) {
	s, _ := newTestSession(newScriptedWorld(), DefaultTuning())
	s.Start()

	s.Drop()
	s.Step(tick)
	s.Pause()
	for i := 0; i < 120; i++ {
		s.Step(tick)
	}
	s.Resume()
	if s.CanDrop() {
		t.Error("Cooldown elapsed while paused")
	}
}

func TestForceEndOnlyFromRunning(t *testing.T) {
	s, rec := newTestSession(newScriptedWorld(), DefaultTuning())
	if s.ForceEnd(ReasonQuit) {
		t.Error("ForceEnd accepted on an idle session")
	}

	s.Start()
	if !s.ForceEnd(ReasonTimeOut) {
		t.Fatal("ForceEnd rejected on a running session")
	}
	if s.ForceEnd(ReasonQuit) {
		t.Error("ForceEnd accepted twice")
	}
	if s.Status() != StatusGameOver {
		t.Errorf("Status = %s, want GAME_OVER", s.Status())
	}
	if rec.count(EventGameOver) != 1 {
		t.Errorf("GameOver events = %d, want 1", rec.count(EventGameOver))
	}
	if len(rec.finals) != 1 || rec.finals[0].Reason != ReasonTimeOut {
		t.Errorf("Final scores = %+v, want one TIME_OUT", rec.finals)
	}
}

func TestStartResetsOwnedState(t *testing.T) {
	w := newScriptedWorld()
	s, _ := newTestSession(w, DefaultTuning())
	s.Start()

	a := s.registry.Create(0, 100, 1200)
	b := s.registry.Create(0, 148, 1200)
	w.touch(a, b)
	s.Step(tick)
	settleAt(s, w, 360, 200)
	s.Step(tick)
	s.Drop()
	s.ForceEnd(ReasonQuit)

	s.Start()
	if s.Status() != StatusRunning {
		t.Errorf("Status = %s, want RUNNING", s.Status())
	}
	if s.Score() != 0 || s.Merges() != 0 {
		t.Errorf("Score = %d merges = %d after restart", s.Score(), s.Merges())
	}
	if s.registry.Len() != 0 || len(w.bodies) != 0 {
		t.Errorf("Restart left %d entities and %d bodies", s.registry.Len(), len(w.bodies))
	}
	if s.Elapsed() != 0 {
		t.Errorf("Elapsed = %v after restart", s.Elapsed())
	}
	if s.Danger().WarningStartedAt != nil || s.Danger().InWarningZone {
		t.Error("Danger state survived restart")
	}
	if !s.CanDrop() {
		t.Error("Cannot drop after restart")
	}
}

func TestEndFailsQueuedAssistedMerge(t *testing.T) {
	s, rec := newTestSession(newScriptedWorld(), DefaultTuning())
	s.Start()
	if !s.RequestAssistedMerge() {
		t.Fatal("Assisted merge not queued")
	}
	s.ForceEnd(ReasonQuit)

	if rec.count(EventMergeFailed) != 1 {
		t.Fatalf("MergeFailed events = %d, want 1", rec.count(EventMergeFailed))
	}
	if f := rec.last(EventMergeFailed).(MergeFailed); f.Reason != MergeFailNotRunning {
		t.Errorf("MergeFailed reason = %q, want %q", f.Reason, MergeFailNotRunning)
	}
	if rec.count(EventMergeSuccess) != 0 {
		t.Error("Ended session reported a merge success")
	}

	s.Start()
	s.Step(tick)
	if rec.count(EventMergeFailed) != 1 {
		t.Errorf("MergeFailed events after restart = %d, want 1", rec.count(EventMergeFailed))
	}
}

func TestRestartFailsQueuedAssistedMerge(t *testing.T) {
	s, rec := newTestSession(newScriptedWorld(), DefaultTuning())
	s.Start()
	s.RequestAssistedMerge()
	s.Start()
	s.Step(tick)

	if rec.count(EventMergeFailed) != 1 {
		t.Errorf("MergeFailed events = %d, want 1", rec.count(EventMergeFailed))
	}
}

func TestRestartClearsWarning(t *testing.T) {
	tuning := DefaultTuning()
	w := newScriptedWorld()
	s, rec := newTestSession(w, tuning)
	s.Start()

	settleAt(s, w, 360, tuning.GameOverLineY+tuning.WarningOffset()/2)
	s.Step(tick)
	if rec.count(EventWarningOn) != 1 {
		t.Fatalf("WarningOn events = %d, want 1", rec.count(EventWarningOn))
	}

	s.Start()
	s.Step(tick)
	if rec.count(EventWarningOff) != 1 {
		t.Errorf("WarningOff events = %d, want 1", rec.count(EventWarningOff))
	}
	if s.registry.Len() != 0 {
		t.Errorf("Entities after restart = %d, want 0", s.registry.Len())
	}

	// A fresh start without a warning emits nothing.
	s.Start()
	if rec.count(EventWarningOff) != 1 {
		t.Errorf("WarningOff replayed on a quiet restart: %d events", rec.count(EventWarningOff))
	}
}

func TestSnapshotReflectsSession(t *testing.T) {
	w := newScriptedWorld()
	s, _ := newTestSession(w, DefaultTuning())
	s.Start()
	s.DropAt(300)
	s.Step(tick)

	snap := s.Snapshot()
	if snap.Status != StatusRunning {
		t.Errorf("Snapshot status = %s", snap.Status)
	}
	if len(snap.Entities) != 1 {
		t.Fatalf("Snapshot has %d entities, want 1", len(snap.Entities))
	}
	if snap.Entities[0].X != 300 {
		t.Errorf("Snapshot entity x = %.0f, want 300", snap.Entities[0].X)
	}
	if len(snap.Queue) != DefaultTuning().QueueLength {
		t.Errorf("Snapshot queue length = %d", len(snap.Queue))
	}
	if snap.CanDrop {
		t.Error("Snapshot reports CanDrop during cooldown")
	}
}

func TestTwoDropsMergeIntoRankOne(t *testing.T) {
	tuning := DefaultTuning()
	rec := &recorder{}
	s := NewSession(NewPlayfieldWorld(tuning, DefaultRankTable()), tuning, DefaultRankTable(), Deps{
		Sound:  rec,
		Scores: rec,
		Events: rec,
		Rand:   zeroRand{},
	})
	s.Start()

	if s.Score() != 0 {
		t.Fatalf("Score = %d at start", s.Score())
	}
	if !s.DropAt(360) {
		t.Fatal("First drop rejected")
	}
	for !s.CanDrop() {
		s.Step(tick)
	}
	if !s.DropAt(360) {
		t.Fatal("Second drop rejected after cooldown")
	}
	for i := 0; i < 10*60 && rec.count(EventMerged) == 0; i++ {
		s.Step(tick)
	}

	if rec.count(EventMerged) != 1 {
		t.Fatalf("Merged events = %d, want 1", rec.count(EventMerged))
	}
	if s.registry.Len() != 1 {
		t.Errorf("Registry holds %d entities, want 1", s.registry.Len())
	}
	s.registry.Each(func(e *Entity) {
		if e.Rank != 1 {
			t.Errorf("Remaining entity rank = %d, want 1", e.Rank)
		}
	})
	want := DefaultRankTable().At(0).Value
	if s.Score() != want {
		t.Errorf("Score = %d, want %d", s.Score(), want)
	}
	if rec.count(EventScoreChanged) != 1 {
		t.Errorf("ScoreChanged events = %d, want 1", rec.count(EventScoreChanged))
	}
	if sc := rec.last(EventScoreChanged).(ScoreChanged); sc.Total != want {
		t.Errorf("ScoreChanged total = %d, want %d", sc.Total, want)
	}
	if s.Status() != StatusRunning {
		t.Errorf("Status = %s, want RUNNING", s.Status())
	}
}

func TestFreshDropAboveLineDoesNotEndGame(t *testing.T) {
	tuning := DefaultTuning()
	s, rec := newTestSession(NewPlayfieldWorld(tuning, DefaultRankTable()), tuning)
	s.Start()

	// The drop height is above the line, so the ball violates geometrically
	// until it falls.
	if tuning.DropY >= tuning.GameOverLineY {
		t.Fatalf("Drop height %.0f is not above the line", tuning.DropY)
	}
	s.DropAt(360)
	for i := 0; i < 3*60; i++ {
		s.Step(tick)
	}
	if rec.count(EventWarningOn) != 0 || rec.count(EventGameOver) != 0 {
		t.Error("Falling ball raised a warning or ended the game")
	}
}

func TestPhysicsSessionIsDeterministic(t *testing.T) {
	run := func() SessionSnapshot {
		tuning := DefaultTuning()
		s := NewSession(NewPlayfieldWorld(tuning, DefaultRankTable()), tuning, DefaultRankTable(), Deps{Rand: NewSeededRand(42)})
		s.Start()
		xs := []float64{200, 380, 520, 260, 440}
		for _, x := range xs {
			s.DropAt(x)
			for i := 0; i < 70; i++ {
				s.Step(tick)
			}
		}
		return s.Snapshot()
	}

	a, b := run(), run()
	if a.Score != b.Score || len(a.Entities) != len(b.Entities) {
		t.Fatalf("Runs diverged: score %d vs %d, entities %d vs %d", a.Score, b.Score, len(a.Entities), len(b.Entities))
	}
	for i := range a.Entities {
		if a.Entities[i] != b.Entities[i] {
			t.Errorf("Entity %d differs: %+v vs %+v", i, a.Entities[i], b.Entities[i])
		}
	}
	if a.ElapsedMs != (5 * 70 * tick).Milliseconds() {
		t.Errorf("Elapsed = %dms", a.ElapsedMs)
	}
}
