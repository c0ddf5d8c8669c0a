package gateway

import "encoding/json"

// Client request actions accepted over the socket.
const (
	ActionSendMessage = "message:send"
	ActionMarkRead    = "message:mark_read"
	ActionPing        = "ping"
)

// ClientEvent is the envelope every inbound frame must decode to.
type ClientEvent struct {
	Action   string                 `json:"action"`
	Content  string                 `json:"content,omitempty"`
	Type     string                 `json:"type,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ServerEvent is the envelope for every outbound frame. Payload is marshalled
// once per broadcast, not once per recipient.
type ServerEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

func (e ServerEvent) encode() []byte {
	b, err := json.Marshal(e)
	if err != nil {
		// Payloads are built server-side from marshal-safe types.
		return []byte(`{"event":"error","data":{"message":"encoding failure"}}`)
	}
	return b
}
