package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Keys and channels shared by the room manager, the idle worker and the
// websocket relay.
const (
	LeaderboardKey       = "leaderboard:best"
	LeaderboardNamesKey  = "leaderboard:names"
	IdleForfeitKey       = "idle_forfeit"
	SessionEventsChannel = "session_events"
)

// SnapshotKey is where the last snapshot of a session is cached.
func SnapshotKey(token string) string {
	return "session:" + token + ":snapshot"
}

// Connect establishes a connection to Redis
func Connect(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	// Verify connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
