package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/playmatatu/poolsim/internal/session"
	"github.com/redis/go-redis/v9"
)

// StartEventSubscriber forwards collision messages published on
// session.EventsChannel to the matching session rooms.
func (h *Hub) StartEventSubscriber(ctx context.Context, rdb *redis.Client) {
	if rdb == nil {
		log.Println("[WS] Redis client not set; event subscriber not started")
		return
	}

	pubsub := rdb.Subscribe(ctx, session.EventsChannel)
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		log.Printf("[WS] %s subscriber started", session.EventsChannel)
		for {
			select {
			case <-ctx.Done():
				log.Printf("[WS] %s subscriber stopping", session.EventsChannel)
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				h.dispatchEvent([]byte(msg.Payload))
			}
		}
	}()
}

// dispatchEvent decodes one published message and broadcasts it locally.
func (h *Hub) dispatchEvent(payload []byte) {
	var event session.CollisionMessage
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("[WS] invalid event payload: %v", err)
		return
	}
	if event.Session == "" {
		log.Printf("[WS] event without session: type=%s", event.Type)
		return
	}

	switch event.Type {
	case "collision":
		if h.RoomSize(event.Session) == 0 {
			return
		}
		h.BroadcastToSession(event.Session, event)
	default:
		log.Printf("[WS] unknown event type: %s", event.Type)
	}
}
