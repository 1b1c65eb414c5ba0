package room

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/playmatatu/mergeball/internal/game"
	rkeys "github.com/playmatatu/mergeball/internal/redis"
	"github.com/redis/go-redis/v9"
)

// idleStore is the part of the Redis client the idle worker uses.
type idleStore interface {
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// StartIdleWorker ends sessions whose idle deadline in the idle_forfeit
// sorted set has passed. Sessions owned by another instance are handed over
// through a forfeit request on the session events channel.
func StartIdleWorker(ctx context.Context, rdb *redis.Client, m *Manager) {
	if rdb == nil || m == nil {
		log.Println("[IDLE] Redis or manager missing; idle worker not started")
		return
	}
	poll := time.Duration(m.config.IdleWorkerPollSecs) * time.Second
	if poll <= 0 {
		poll = 5 * time.Second
	}

	log.Println("[IDLE] Idle worker started")
	go func() {
		ticker := time.NewTicker(poll)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Println("[IDLE] Idle worker stopping")
				return
			case <-ticker.C:
				processIdle(ctx, rdb, m, time.Now())
			}
		}
	}()
}

// processIdle ends or hands over every session whose deadline is at or before
// now. A token is only handled by the instance whose ZRem removed it.
func processIdle(ctx context.Context, rdb idleStore, m *Manager, now time.Time) {
	members, err := rdb.ZRangeByScore(ctx, rkeys.IdleForfeitKey, &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%d", now.Unix())}).Result()
	if err != nil {
		log.Printf("[IDLE] Failed to fetch idle sessions: %v", err)
		return
	}
	for _, token := range members {
		// Another instance may have claimed it already.
		if removed, _ := rdb.ZRem(ctx, rkeys.IdleForfeitKey, token).Result(); removed == 0 {
			continue
		}
		if err := m.End(ctx, token, game.ReasonIdle); err == nil {
			log.Printf("[IDLE] Ending idle session %s", token)
			continue
		}
		b, _ := json.Marshal(SessionEvent{Type: EventForfeitRequest, SessionToken: token, Reason: string(game.ReasonIdle)})
		if err := rdb.Publish(ctx, rkeys.SessionEventsChannel, b).Err(); err != nil {
			log.Printf("[IDLE] publish forfeit request failed: token=%s err=%v", token, err)
		}
	}
}
