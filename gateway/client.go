package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/amberline/amberline-api/chat"
	"github.com/amberline/amberline-api/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 8192
	sendBuffer     = 256
)

// Client is one websocket session. A user can hold several concurrently
// (phone and laptop); the hub indexes them all.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	userID   string
	userName string
	staff    bool
	caseID   string
	rooms    []string

	store    *chat.MessageStore
	detector *chat.SpamDetector
}

// readPump decodes client frames and dispatches them until the connection
// drops.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.S().Debugw("websocket read failed", "userId", c.userID, "error", err)
			}
			return
		}

		var ev ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.sendEvent("error", map[string]interface{}{"message": "malformed event"})
			continue
		}
		c.dispatch(&ev)
	}
}

func (c *Client) dispatch(ev *ClientEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch ev.Action {
	case ActionPing:
		c.sendEvent("pong", nil)

	case ActionSendMessage:
		c.handleSend(ctx, ev)

	case ActionMarkRead:
		if _, err := c.store.MarkRead(ctx, c.caseID, c.userID); err != nil {
			zap.S().Errorw("mark read failed", "userId", c.userID, "caseId", c.caseID, "error", err)
			c.sendEvent("error", map[string]interface{}{"message": "could not mark messages read"})
			return
		}
		c.hub.ToRoom(c.caseID, "message:read", map[string]interface{}{
			"caseId": c.caseID,
			"userId": c.userID,
		})

	default:
		c.sendEvent("error", map[string]interface{}{"message": "unknown action"})
	}
}

func (c *Client) handleSend(ctx context.Context, ev *ClientEvent) {
	kind := ev.Type
	if kind == "" {
		kind = models.MessageKindText
	}
	msg, err := c.store.Admit(ctx, c.caseID, c.userID, ev.Content, kind, ev.Metadata)
	if err != nil {
		c.sendEvent("error", rejectionPayload(err))
		return
	}

	c.hub.ToRoom(c.caseID, "message:new", msg)

	if c.detector != nil {
		if err := c.detector.Observe(ctx, msg); err != nil {
			zap.S().Errorw("spam observe failed", "messageId", msg.ID.Hex(), "error", err)
		}
	}
}

// rejectionPayload shapes an admission failure so the sender can render it.
// Only the sender sees it; the room is never told about rejected messages.
func rejectionPayload(err error) map[string]interface{} {
	payload := map[string]interface{}{"message": err.Error()}
	var restriction *chat.RestrictionError
	var validation *chat.ValidationError
	switch {
	case errors.As(err, &restriction):
		payload["kind"] = restriction.Kind
		if restriction.Until != nil {
			payload["until"] = restriction.Until.UTC().Format(time.RFC3339)
		}
		payload["permanent"] = restriction.Permanent
	case errors.As(err, &validation):
		payload["kind"] = "validation"
		payload["field"] = validation.Field
	default:
		payload["kind"] = "internal"
		payload["message"] = "message could not be delivered"
	}
	return payload
}

// sendEvent delivers a frame to this socket only.
func (c *Client) sendEvent(event string, data interface{}) {
	c.enqueue(ServerEvent{Event: event, Data: data}.encode())
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
