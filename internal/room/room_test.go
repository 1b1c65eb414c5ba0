package room

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/playmatatu/mergeball/internal/config"
	"github.com/playmatatu/mergeball/internal/game"
)

type fakeConn struct {
	mu     sync.Mutex
	sendCh chan []byte
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{sendCh: make(chan []byte, 1024)}
}

func (f *fakeConn) Send(b []byte) error {
	cp := make([]byte, len(b))
	copy(cp, b)
	select {
	case f.sendCh <- cp:
	default:
	}
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// types drains the connection and returns the message types seen.
func (f *fakeConn) types(t *testing.T) []string {
	t.Helper()
	var out []string
	for {
		select {
		case b := <-f.sendCh:
			var msg struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(b, &msg); err != nil {
				t.Fatalf("decode message: %v", err)
			}
			out = append(out, msg.Type)
		default:
			return out
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func testOptions() Options {
	return Options{
		Tick:           time.Second / 60,
		BroadcastEvery: 3,
		Rand:           game.NewSeededRand(1),
	}
}

func TestRoomForwardsEventsAndSnapshots(t *testing.T) {
	r := New("s_test", 1, testOptions())
	fc := newFakeConn()
	r.handleCommand(Subscribe{Conn: fc})
	r.flush()

	x := 200.0
	r.handleCommand(Drop{X: &x})
	r.flush()
	for i := 0; i < 6; i++ {
		r.step()
	}

	got := fc.types(t)
	if len(got) == 0 || got[0] != MsgSnapshot {
		t.Fatalf("First message = %v, want a snapshot", got)
	}
	for _, want := range []string{string(game.EventStarted), string(game.EventDropped), string(game.EventQueueChanged)} {
		if !contains(got, want) {
			t.Errorf("Messages %v missing %q", got, want)
		}
	}
	snapshots := 0
	for _, m := range got {
		if m == MsgSnapshot {
			snapshots++
		}
	}
	if snapshots != 3 {
		t.Errorf("Snapshots = %d, want 3 (subscribe + every 3rd of 6 ticks)", snapshots)
	}
}

func TestRoomTimeLimitEndsSession(t *testing.T) {
	opts := testOptions()
	opts.TimeLimit = 10 * opts.Tick
	r := New("s_time", 7, opts)
	ended := make(chan game.FinalScore, 1)
	r.OnEnd = func(_ *Room, f game.FinalScore) { ended <- f }

	for i := 0; i < 20; i++ {
		r.step()
	}

	select {
	case f := <-ended:
		if f.Reason != game.ReasonTimeOut {
			t.Errorf("Reason = %s, want %s", f.Reason, game.ReasonTimeOut)
		}
		if f.Elapsed != opts.TimeLimit {
			t.Errorf("Elapsed = %v, want %v", f.Elapsed, opts.TimeLimit)
		}
	case <-time.After(time.Second):
		t.Fatal("OnEnd not called after the time limit")
	}
	if r.session.Status() != game.StatusGameOver {
		t.Errorf("Status = %s, want GAME_OVER", r.session.Status())
	}
}

func TestRoomEndReportsOnce(t *testing.T) {
	r := New("s_end", 3, testOptions())
	ended := make(chan game.FinalScore, 4)
	r.OnEnd = func(_ *Room, f game.FinalScore) { ended <- f }

	r.handleCommand(End{Reason: game.ReasonQuit})
	r.flush()
	r.handleCommand(End{Reason: game.ReasonIdle})
	r.flush()
	r.step()

	select {
	case f := <-ended:
		if f.Reason != game.ReasonQuit {
			t.Errorf("Reason = %s, want %s", f.Reason, game.ReasonQuit)
		}
	case <-time.After(time.Second):
		t.Fatal("OnEnd not called")
	}
	select {
	case f := <-ended:
		t.Errorf("OnEnd called twice, second reason %s", f.Reason)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRoomRefundsFailedPaidAssist(t *testing.T) {
	r := New("s_assist", 5, testOptions())
	refunds := make(chan int, 4)
	r.OnRefund = func(rm *Room) { refunds <- rm.PlayerID }

	r.handleCommand(AssistedMerge{Paid: true})
	r.flush()
	r.step()

	select {
	case id := <-refunds:
		if id != 5 {
			t.Errorf("Refunded player %d, want 5", id)
		}
	case <-time.After(time.Second):
		t.Fatal("Failed paid assist was not refunded")
	}

	r.handleCommand(AssistedMerge{})
	r.flush()
	r.step()
	select {
	case <-refunds:
		t.Error("Unpaid assist was refunded")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRoomRefundsPaidAssistCutShortByEnd(t *testing.T) {
	r := New("s_assist_end", 8, testOptions())
	fc := newFakeConn()
	r.handleCommand(Subscribe{Conn: fc})
	refunds := make(chan int, 4)
	r.OnRefund = func(rm *Room) { refunds <- rm.PlayerID }

	r.handleCommand(AssistedMerge{Paid: true})
	r.flush()
	r.handleCommand(End{Reason: game.ReasonQuit})
	r.flush()

	select {
	case id := <-refunds:
		if id != 8 {
			t.Errorf("Refunded player %d, want 8", id)
		}
	case <-time.After(time.Second):
		t.Fatal("Paid assist cut short by End was not refunded")
	}
	select {
	case <-refunds:
		t.Error("Paid assist refunded twice")
	case <-time.After(50 * time.Millisecond):
	}
	if r.assistsPaid != 0 {
		t.Errorf("assistsPaid = %d, want 0", r.assistsPaid)
	}

	seen := fc.types(t)
	if !contains(seen, string(game.EventMergeFailed)) || !contains(seen, string(game.EventGameOver)) {
		t.Errorf("Messages = %v, want merge-failed and game-over", seen)
	}
}

func TestRoomRunAppliesInbox(t *testing.T) {
	r := New("s_run", 1, testOptions())
	go r.Run()
	defer r.Stop()

	fc := newFakeConn()
	r.Inbox <- Subscribe{Conn: fc}
	reply := make(chan game.SessionSnapshot, 1)
	r.Inbox <- Pause{}
	r.Inbox <- SnapshotRequest{Reply: reply}

	select {
	case snap := <-reply:
		if !snap.Paused {
			t.Error("Snapshot after Pause is not paused")
		}
		if snap.Status != game.StatusRunning {
			t.Errorf("Status = %s, want RUNNING", snap.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for snapshot")
	}
}

func TestManagerEndRemovesRoom(t *testing.T) {
	cfg := config.Load()
	cfg.IdleForfeitSecs = 0
	m := NewManager(nil, nil, cfg)
	m.newRand = func() game.Rand { return game.NewSeededRand(3) }

	ctx := context.Background()
	r, err := m.CreateSession(ctx, 9, "tester")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if m.ActiveCount() != 1 {
		t.Fatalf("ActiveCount = %d, want 1", m.ActiveCount())
	}

	snap, err := m.Snapshot(ctx, r.Token)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Status != game.StatusRunning {
		t.Errorf("Status = %s, want RUNNING", snap.Status)
	}

	if err := m.End(ctx, r.Token, game.ReasonQuit); err != nil {
		t.Fatalf("End: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for m.ActiveCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if m.ActiveCount() != 0 {
		t.Fatal("Room still registered after End")
	}
	if _, err := m.Snapshot(ctx, r.Token); err != ErrRoomNotFound {
		t.Errorf("Snapshot of ended room: err = %v, want ErrRoomNotFound", err)
	}
	if err := m.Dispatch(ctx, r.Token, Pause{}); err != ErrRoomNotFound {
		t.Errorf("Dispatch to ended room: err = %v, want ErrRoomNotFound", err)
	}
}

func TestManagerLeaderboardWithoutStores(t *testing.T) {
	m := NewManager(nil, nil, config.Load())
	entries, err := m.Leaderboard(context.Background(), 10)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Leaderboard = %v, want empty", entries)
	}
}

func TestInputCommandsCountAsActivity(t *testing.T) {
	cases := []struct {
		cmd  any
		want bool
	}{
		{Aim{X: 1}, true},
		{Drop{}, true},
		{AssistedMerge{}, true},
		{Pause{}, true},
		{Resume{}, true},
		{End{Reason: game.ReasonIdle}, false},
		{SnapshotRequest{}, false},
		{Subscribe{}, false},
	}
	for _, c := range cases {
		if got := isInput(c.cmd); got != c.want {
			t.Errorf("isInput(%T) = %v, want %v", c.cmd, got, c.want)
		}
	}
}
