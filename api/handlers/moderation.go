package handlers

import (
	"encoding/json"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/amberline/amberline-api/api"
	"github.com/amberline/amberline-api/chat"
	"github.com/amberline/amberline-api/config"
	"github.com/amberline/amberline-api/databases"
)

// Moderation exported for testing purposes
type Moderation struct {
	Engine  *chat.ModerationEngine
	Store   *chat.MessageStore
	Cleanup *chat.SpamCleanup
	UDB     databases.UserDatabase
}

type moderationRequest struct {
	UserID          string   `json:"userId"`
	CaseID          string   `json:"caseId"`
	Template        string   `json:"template"`
	Reason          string   `json:"reason"`
	DurationSeconds int      `json:"durationSeconds"`
	Seconds         int      `json:"seconds"`
	MessageIDs      []string `json:"messageIds"`
	NotificationID  string   `json:"notificationId"`
}

func decodeModerationRequest(w http.ResponseWriter, r *http.Request) (*moderationRequest, bool) {
	var req moderationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return nil, false
	}
	return &req, true
}

func writeActionOK(w http.ResponseWriter, detail map[string]interface{}) {
	b, _ := json.Marshal(detail)
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// WarnHandler sends a warning notice to a user
func (m Moderation) WarnHandler(w http.ResponseWriter, r *http.Request) {
	staff := requireStaff(w, r, m.UDB)
	if staff == nil {
		return
	}
	req, ok := decodeModerationRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	err := m.Engine.Warn(ctx, staff.ID, req.UserID, req.CaseID, req.Template, req.Reason, req.NotificationID)
	if err != nil {
		chatErrorStatus("failed to warn user", w, err)
		return
	}
	writeActionOK(w, map[string]interface{}{"action": "warn", "userId": req.UserID})
}

// MuteHandler applies a timed mute to a user
func (m Moderation) MuteHandler(w http.ResponseWriter, r *http.Request) {
	staff := requireStaff(w, r, m.UDB)
	if staff == nil {
		return
	}
	req, ok := decodeModerationRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	err := m.Engine.Mute(ctx, staff.ID, req.UserID, req.DurationSeconds, req.Reason, req.NotificationID)
	if err != nil {
		chatErrorStatus("failed to mute user", w, err)
		return
	}
	writeActionOK(w, map[string]interface{}{
		"action":   "mute",
		"userId":   req.UserID,
		"duration": chat.HumanDuration(req.DurationSeconds),
	})
}

// BanHandler bans a user from chat, permanently when durationSeconds is 0
func (m Moderation) BanHandler(w http.ResponseWriter, r *http.Request) {
	staff := requireStaff(w, r, m.UDB)
	if staff == nil {
		return
	}
	req, ok := decodeModerationRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	err := m.Engine.Ban(ctx, staff.ID, req.UserID, req.DurationSeconds, req.Reason, req.NotificationID)
	if err != nil {
		chatErrorStatus("failed to ban user", w, err)
		return
	}
	writeActionOK(w, map[string]interface{}{"action": "ban", "userId": req.UserID})
}

// SlowmodeHandler enables or clears slowmode on a case
func (m Moderation) SlowmodeHandler(w http.ResponseWriter, r *http.Request) {
	staff := requireStaff(w, r, m.UDB)
	if staff == nil {
		return
	}
	req, ok := decodeModerationRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	err := m.Engine.Slowmode(ctx, staff.ID, req.CaseID, req.Seconds, req.Reason, req.NotificationID)
	if err != nil {
		chatErrorStatus("failed to set slowmode", w, err)
		return
	}
	writeActionOK(w, map[string]interface{}{"action": "slowmode", "caseId": req.CaseID, "seconds": req.Seconds})
}

// DeleteMessagesHandler soft-deletes a batch of messages in a case
func (m Moderation) DeleteMessagesHandler(w http.ResponseWriter, r *http.Request) {
	staff := requireStaff(w, r, m.UDB)
	if staff == nil {
		return
	}
	req, ok := decodeModerationRequest(w, r)
	if !ok {
		return
	}

	ids := make([]primitive.ObjectID, 0, len(req.MessageIDs))
	for _, raw := range req.MessageIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
			return
		}
		ids = append(ids, id)
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	deleted, err := m.Engine.DeleteMessages(ctx, m.Store, staff.ID, req.CaseID, ids, req.Reason, req.NotificationID)
	if err != nil {
		chatErrorStatus("failed to delete messages", w, err)
		return
	}
	writeActionOK(w, map[string]interface{}{"action": "delete_messages", "deleted": deleted})
}

type spamCleanupRequest struct {
	NotificationID string `json:"notificationId"`
	Mode           string `json:"mode"`
}

// SpamCleanupHandler runs the compound spam cleanup workflow
func (m Moderation) SpamCleanupHandler(w http.ResponseWriter, r *http.Request) {
	staff := requireStaff(w, r, m.UDB)
	if staff == nil {
		return
	}

	var req spamCleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	nID, err := primitive.ObjectIDFromHex(req.NotificationID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	summary, err := m.Cleanup.Run(ctx, nID, staff.ID, chat.CleanupMode(req.Mode))
	if err != nil {
		chatErrorStatus("failed to run spam cleanup", w, err)
		return
	}

	zap.S().Infow("spam cleanup complete", "actorId", staff.ID, "summary", summary)
	writeActionOK(w, map[string]interface{}{"summary": summary})
}
