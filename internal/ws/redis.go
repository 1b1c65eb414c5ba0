package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/playmatatu/mergeball/internal/game"
	rkeys "github.com/playmatatu/mergeball/internal/redis"
	"github.com/playmatatu/mergeball/internal/room"
	"github.com/redis/go-redis/v9"
)

// StartSessionEventSubscriber listens on the session events channel. Forfeit
// requests end the session when it lives on this instance; session_ended
// notices are relayed to the session's local clients.
func (h *Handler) StartSessionEventSubscriber(ctx context.Context, rdb *redis.Client) {
	if rdb == nil {
		log.Println("[WS] Redis client not set; session event subscriber not started")
		return
	}

	pubsub := rdb.Subscribe(ctx, rkeys.SessionEventsChannel)
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		log.Println("[WS] session_events subscriber started")
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				h.handleSessionEvent(ctx, msg.Payload)
			}
		}
	}()
}

func (h *Handler) handleSessionEvent(ctx context.Context, payload string) {
	var ev room.SessionEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		log.Printf("[WS] invalid event payload: %v", err)
		return
	}

	switch ev.Type {
	case room.EventForfeitRequest:
		reason := game.Reason(ev.Reason)
		if reason == "" {
			reason = game.ReasonIdle
		}
		if _, err := h.mgr.Get(ev.SessionToken); err != nil {
			return
		}
		if err := h.mgr.End(ctx, ev.SessionToken, reason); err != nil {
			log.Printf("[WS] forfeit failed: token=%s err=%v", ev.SessionToken, err)
			return
		}
		log.Printf("[WS] forfeit applied: token=%s reason=%s", ev.SessionToken, reason)

	case room.EventSessionEnded:
		if h.Hub.Count(ev.SessionToken) == 0 {
			return
		}
		h.Hub.BroadcastToSession(ev.SessionToken, MsgSessionEnded, ev)
	}
}
