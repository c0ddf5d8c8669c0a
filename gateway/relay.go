package gateway

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const relayChannel = "chat:broadcast"

// relayFrame is the envelope published to Redis. Origin lets each instance
// skip its own publications; local delivery already happened synchronously.
type relayFrame struct {
	Origin string          `json:"origin"`
	Room   string          `json:"room,omitempty"`
	UserID string          `json:"userId,omitempty"`
	Frame  json.RawMessage `json:"frame"`
}

// Relay fans events out across instances through Redis pub/sub. Without it
// the hub still works, limited to sockets on this process.
type Relay struct {
	rdb    *redis.Client
	hub    *Hub
	origin string
}

func NewRelay(rdb *redis.Client, hub *Hub) *Relay {
	return &Relay{
		rdb:    rdb,
		hub:    hub,
		origin: uuid.NewString(),
	}
}

// Listen consumes peer publications until ctx is cancelled. Run it in its own
// goroutine.
func (r *Relay) Listen(ctx context.Context) {
	pubsub := r.rdb.Subscribe(ctx, relayChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var f relayFrame
			if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
				zap.S().Errorw("relay payload unmarshal failed", "error", err)
				continue
			}
			if f.Origin == r.origin {
				continue
			}
			if f.Room != "" {
				r.hub.deliverRoom(f.Room, f.Frame)
			}
			if f.UserID != "" {
				r.hub.deliverUser(f.UserID, f.Frame)
			}
		}
	}
}

func (r *Relay) publishRoom(room string, frame []byte) {
	r.publish(relayFrame{Origin: r.origin, Room: room, Frame: frame})
}

func (r *Relay) publishUser(userID string, frame []byte) {
	r.publish(relayFrame{Origin: r.origin, UserID: userID, Frame: frame})
}

func (r *Relay) publish(f relayFrame) {
	payload, err := json.Marshal(f)
	if err != nil {
		return
	}
	if err := r.rdb.Publish(context.Background(), relayChannel, payload).Err(); err != nil {
		zap.S().Errorw("relay publish failed", "error", err)
	}
}
