package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/amberline/amberline-api/chat"
	"github.com/amberline/amberline-api/databases"
)

// Close code sent when a socket is rejected during the handshake. The reason
// text distinguishes the failure.
const closePolicyViolation = 4001

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades authenticated HTTP requests into chat sessions.
type Handler struct {
	Hub       *Hub
	UDB       databases.UserDatabase
	Store     *chat.MessageStore
	Detector  *chat.SpamDetector
	JWTSecret string
}

// ServeWS is the GET /ws endpoint. Authentication happens after the upgrade
// so the client receives a close code it can act on instead of a bare HTTP
// error: browsers hide handshake response bodies from scripts.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("websocket upgrade failed", "error", err)
		return
	}

	caseID := r.URL.Query().Get("caseId")
	token := r.URL.Query().Get("token")
	if caseID == "" || token == "" {
		reject(conn, "missing parameters")
		return
	}

	userID, err := h.verifyToken(token)
	if err != nil {
		reject(conn, "unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	user, err := h.UDB.FindOne(ctx, bson.M{"_id": userID})
	if err != nil {
		reject(conn, "user not found")
		return
	}

	rooms := []string{caseID}
	if user.IsStaff() {
		rooms = append(rooms, chat.StaffRoom)
	}

	client := &Client{
		hub:      h.Hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		userID:   user.ID,
		userName: user.Details.DisplayName(),
		staff:    user.IsStaff(),
		caseID:   caseID,
		rooms:    rooms,
		store:    h.Store,
		detector: h.Detector,
	}
	h.Hub.register(client)

	go client.writePump()
	go client.readPump()
}

func (h *Handler) verifyToken(raw string) (string, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(h.JWTSecret), nil
	})
	if err != nil {
		return "", err
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", jwt.ErrTokenInvalidSubject
	}
	return sub, nil
}

func reject(conn *websocket.Conn, reason string) {
	deadline := time.Now().Add(writeWait)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closePolicyViolation, reason), deadline)
	conn.Close()
}
