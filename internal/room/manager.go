package room

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/mergeball/internal/accounts"
	"github.com/playmatatu/mergeball/internal/config"
	"github.com/playmatatu/mergeball/internal/game"
	"github.com/playmatatu/mergeball/internal/models"
	rkeys "github.com/playmatatu/mergeball/internal/redis"
	"github.com/redis/go-redis/v9"
)

var (
	ErrRoomNotFound = errors.New("session not found")
	ErrRoomBusy     = errors.New("session inbox full")
)

// SessionEvent is published on the session events channel.
type SessionEvent struct {
	Type         string `json:"type"`
	SessionToken string `json:"session_token"`
	PlayerID     int    `json:"player_id,omitempty"`
	FinalScore   int    `json:"final_score,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// Session event types
const (
	EventSessionEnded   = "session_ended"
	EventForfeitRequest = "forfeit_request"
)

// roomInfo is what the manager remembers about a live room.
type roomInfo struct {
	room      *Room
	sessionID int
	name      string
}

// Manager owns every live room on this instance and persists their results.
// db and rdb may be nil; persistence is then skipped.
type Manager struct {
	rooms  map[string]*roomInfo
	db     *sqlx.DB
	rdb    *redis.Client
	config *config.Config
	mu     sync.RWMutex

	// newRand seeds each session. Tests replace it.
	newRand func() game.Rand
}

// NewManager creates a manager.
func NewManager(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) *Manager {
	if cfg == nil {
		cfg = config.Load()
	}
	return &Manager{
		rooms:  make(map[string]*roomInfo),
		db:     db,
		rdb:    rdb,
		config: cfg,
	}
}

// generateToken generates a secure random token
func generateToken(length int) string {
	bytes := make([]byte, length)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// CreateSession starts a new room for a player and returns it.
func (m *Manager) CreateSession(ctx context.Context, playerID int, displayName string) (*Room, error) {
	token := "s_" + generateToken(12)

	sessionID := 0
	if m.db != nil {
		err := m.db.GetContext(ctx, &sessionID,
			`INSERT INTO game_sessions (session_token, player_id, status, created_at) VALUES ($1, $2, $3, NOW()) RETURNING id`,
			token, playerID, string(game.StatusRunning))
		if err != nil {
			return nil, fmt.Errorf("record session: %w", err)
		}
	}

	opts := Options{
		Tick:           m.config.TickInterval(),
		BroadcastEvery: m.config.BroadcastEvery(),
		TimeLimit:      m.config.SessionTimeLimit(),
		Tuning:         m.config.Tuning(),
		Table:          game.DefaultRankTable(),
	}
	if m.newRand != nil {
		opts.Rand = m.newRand()
	}
	r := New(token, playerID, opts)
	r.OnEnd = m.handleEnd
	r.OnRefund = m.handleRefund

	m.mu.Lock()
	m.rooms[token] = &roomInfo{room: r, sessionID: sessionID, name: displayName}
	m.mu.Unlock()

	go r.Run()
	m.touchIdle(ctx, token)
	log.Printf("[ROOM] Session created: token=%s player=%d session_id=%d", token, playerID, sessionID)
	return r, nil
}

// Get returns the live room for token.
func (m *Manager) Get(token string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.rooms[token]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return info.room, nil
}

// SessionID returns the database id of a live session, or 0.
func (m *Manager) SessionID(token string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if info, ok := m.rooms[token]; ok {
		return info.sessionID
	}
	return 0
}

// ActiveCount returns the number of live rooms.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Dispatch queues cmd on the room's inbox without blocking. Inputs refresh
// the idle deadline.
func (m *Manager) Dispatch(ctx context.Context, token string, cmd any) error {
	r, err := m.Get(token)
	if err != nil {
		return err
	}
	if isInput(cmd) {
		m.touchIdle(ctx, token)
	}
	select {
	case r.Inbox <- cmd:
		return nil
	default:
		return ErrRoomBusy
	}
}

// Snapshot returns the state of a session: live when the room is on this
// instance, otherwise the cached copy in Redis.
func (m *Manager) Snapshot(ctx context.Context, token string) (game.SessionSnapshot, error) {
	if r, err := m.Get(token); err == nil {
		reply := make(chan game.SessionSnapshot, 1)
		select {
		case r.Inbox <- SnapshotRequest{Reply: reply}:
		case <-ctx.Done():
			return game.SessionSnapshot{}, ctx.Err()
		}
		select {
		case snap := <-reply:
			return snap, nil
		case <-ctx.Done():
			return game.SessionSnapshot{}, ctx.Err()
		case <-time.After(2 * time.Second):
			return game.SessionSnapshot{}, ErrRoomBusy
		}
	}

	if m.rdb == nil {
		return game.SessionSnapshot{}, ErrRoomNotFound
	}
	raw, err := m.rdb.Get(ctx, rkeys.SnapshotKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return game.SessionSnapshot{}, ErrRoomNotFound
	}
	if err != nil {
		return game.SessionSnapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	var snap game.SessionSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return game.SessionSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// End asks a live room to stop with reason.
func (m *Manager) End(ctx context.Context, token string, reason game.Reason) error {
	return m.Dispatch(ctx, token, End{Reason: reason})
}

// Shutdown ends every live room with ReasonQuit and waits up to ctx for their
// results to be saved.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	tokens := make([]string, 0, len(m.rooms))
	for t := range m.rooms {
		tokens = append(tokens, t)
	}
	m.mu.RUnlock()

	for _, t := range tokens {
		_ = m.End(ctx, t, game.ReasonQuit)
	}
	for m.ActiveCount() > 0 {
		select {
		case <-ctx.Done():
			log.Printf("[ROOM] Shutdown: %d sessions still open", m.ActiveCount())
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// handleEnd persists the result of a finished room and removes it.
func (m *Manager) handleEnd(r *Room, final game.FinalScore) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m.mu.RLock()
	info, ok := m.rooms[r.Token]
	m.mu.RUnlock()
	if !ok {
		return
	}

	m.SaveFinalScore(ctx, r.Token, info.sessionID, r.PlayerID, info.name, final)
	m.cacheSnapshot(ctx, r)

	m.mu.Lock()
	delete(m.rooms, r.Token)
	m.mu.Unlock()
	r.Stop()
}

// SaveFinalScore records the final score in Postgres, the leaderboard and
// the session events channel.
func (m *Manager) SaveFinalScore(ctx context.Context, token string, sessionID, playerID int, name string, final game.FinalScore) {
	if m.db != nil && sessionID > 0 {
		_, err := m.db.ExecContext(ctx,
			`UPDATE game_sessions SET status=$1, final_score=$2, merges=$3, end_reason=$4, duration_ms=$5, completed_at=NOW() WHERE id=$6`,
			string(game.StatusGameOver), final.Score, final.Merges, string(final.Reason), final.Elapsed.Milliseconds(), sessionID)
		if err != nil {
			log.Printf("[DB] Failed to save final score for session %d: %v", sessionID, err)
		}
		_, err = m.db.ExecContext(ctx,
			`UPDATE players SET total_games_played = total_games_played + 1, total_merges = total_merges + $1,
			 best_score = GREATEST(best_score, $2), last_active = NOW() WHERE id = $3`,
			final.Merges, final.Score, playerID)
		if err != nil {
			log.Printf("[DB] Failed to update stats for player %d: %v", playerID, err)
		}
	}

	if m.rdb == nil {
		return
	}
	member := strconv.Itoa(playerID)
	if err := m.rdb.ZAddGT(ctx, rkeys.LeaderboardKey, redis.Z{Score: float64(final.Score), Member: member}).Err(); err != nil {
		log.Printf("[LEADERBOARD] Failed to record score for player %d: %v", playerID, err)
	}
	if name != "" {
		m.rdb.HSet(ctx, rkeys.LeaderboardNamesKey, member, name)
	}
	m.rdb.ZRem(ctx, rkeys.IdleForfeitKey, token)

	b, _ := json.Marshal(SessionEvent{
		Type:         EventSessionEnded,
		SessionToken: token,
		PlayerID:     playerID,
		FinalScore:   final.Score,
		Reason:       string(final.Reason),
	})
	if n, err := m.rdb.Publish(ctx, rkeys.SessionEventsChannel, b).Result(); err != nil {
		log.Printf("[ROOM] publish session_ended failed: token=%s err=%v", token, err)
	} else {
		log.Printf("[ROOM] published session_ended: token=%s score=%d subscribers=%d", token, final.Score, n)
	}
}

func (m *Manager) cacheSnapshot(ctx context.Context, r *Room) {
	if m.rdb == nil {
		return
	}
	reply := make(chan game.SessionSnapshot, 1)
	select {
	case r.Inbox <- SnapshotRequest{Reply: reply}:
	default:
		return
	}
	select {
	case snap := <-reply:
		b, err := json.Marshal(snap)
		if err != nil {
			return
		}
		if err := m.rdb.SetEx(ctx, rkeys.SnapshotKey(r.Token), b, m.config.SnapshotTTL()).Err(); err != nil {
			log.Printf("[ROOM] cache snapshot failed: token=%s err=%v", r.Token, err)
		}
	case <-ctx.Done():
	}
}

func (m *Manager) handleRefund(r *Room) {
	if m.db == nil {
		return
	}
	id := m.SessionID(r.Token)
	sid := sql.NullInt64{Int64: int64(id), Valid: id > 0}
	if _, err := accounts.RefundAssist(m.db, r.PlayerID, sid); err != nil {
		log.Printf("[ACCT] Refund failed: player=%d token=%s err=%v", r.PlayerID, r.Token, err)
	}
}

// touchIdle pushes the idle deadline of a session forward.
func (m *Manager) touchIdle(ctx context.Context, token string) {
	if m.rdb == nil || m.config.IdleForfeitSecs <= 0 {
		return
	}
	deadline := time.Now().Add(m.config.IdleForfeit()).Unix()
	if err := m.rdb.ZAdd(ctx, rkeys.IdleForfeitKey, redis.Z{Score: float64(deadline), Member: token}).Err(); err != nil {
		log.Printf("[IDLE] Failed to refresh deadline for %s: %v", token, err)
	}
}

// Leaderboard returns the top scores, from Redis when available and from
// Postgres otherwise.
func (m *Manager) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 || limit > m.config.LeaderboardSize {
		limit = m.config.LeaderboardSize
	}

	if m.rdb != nil {
		entries, err := m.leaderboardFromRedis(ctx, limit)
		if err == nil {
			return entries, nil
		}
		log.Printf("[LEADERBOARD] Redis read failed, falling back to DB: %v", err)
	}
	if m.db == nil {
		return []models.LeaderboardEntry{}, nil
	}

	var entries []models.LeaderboardEntry
	err := m.db.SelectContext(ctx, &entries,
		`SELECT id, display_name, best_score FROM players WHERE best_score > 0 ORDER BY best_score DESC, id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func (m *Manager) leaderboardFromRedis(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	zs, err := m.rdb.ZRevRangeWithScores(ctx, rkeys.LeaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	members := make([]string, len(zs))
	for i, z := range zs {
		members[i], _ = z.Member.(string)
	}
	var names []any
	if len(members) > 0 {
		names, err = m.rdb.HMGet(ctx, rkeys.LeaderboardNamesKey, members...).Result()
		if err != nil {
			return nil, err
		}
	}

	entries := make([]models.LeaderboardEntry, 0, len(zs))
	for i, z := range zs {
		id, _ := strconv.Atoi(members[i])
		name, _ := names[i].(string)
		entries = append(entries, models.LeaderboardEntry{
			Rank:        i + 1,
			PlayerID:    id,
			DisplayName: name,
			Score:       int(z.Score),
		})
	}
	return entries, nil
}
