package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/amberline/amberline-api/api"
	"github.com/amberline/amberline-api/chat"
	"github.com/amberline/amberline-api/config"
	"github.com/amberline/amberline-api/databases"
	"github.com/amberline/amberline-api/models"
)

// Chat exported for testing purposes
type Chat struct {
	Store   *chat.MessageStore
	Reports *chat.ReportService
	UDB     databases.UserDatabase
}

// MessagesByCaseIDHandler returns a page of chat history for a case
func (c Chat) MessagesByCaseIDHandler(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	zap.S().Debugf("case_id: %v", caseID)

	user, err := actor(r, c.UDB)
	if err != nil {
		config.ErrorStatus("failed to get acting user", http.StatusUnauthorized, w, err)
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v, err: %v", 50, err))
		limit = 0
	}

	var before *time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			config.ErrorStatus("failed to parse before timestamp", http.StatusBadRequest, w, err)
			return
		}
		before = &t
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := c.Store.List(ctx, caseID, before, limit, user.IsStaff())
	if err != nil {
		chatErrorStatus("failed to get messages", w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.ChatMessage{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// MarkMessagesReadHandler marks every active message in the case as read by
// the acting user
func (c Chat) MarkMessagesReadHandler(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	modified, err := c.Store.MarkRead(ctx, caseID, api.ActorID(r))
	if err != nil {
		chatErrorStatus("failed to mark messages read", w, err)
		return
	}

	b, _ := json.Marshal(map[string]int64{"updated": modified})
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UnreadCountHandler returns the acting user's unread message count for a case
func (c Chat) UnreadCountHandler(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	count, err := c.Store.UnreadCount(ctx, caseID, api.ActorID(r))
	if err != nil {
		chatErrorStatus("failed to count unread messages", w, err)
		return
	}

	b, _ := json.Marshal(map[string]int64{"unread": count})
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

type reportRequest struct {
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

// ReportMessageHandler files a report against a message on behalf of the
// acting user
func (c Chat) ReportMessageHandler(w http.ResponseWriter, r *http.Request) {
	messageID := mux.Vars(r)["message_id"]

	mID, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	report, err := c.Reports.Report(ctx, mID, api.ActorID(r), req.Reason, req.Description)
	if err != nil {
		chatErrorStatus("failed to report message", w, err)
		return
	}

	b, err := json.Marshal(report)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}
