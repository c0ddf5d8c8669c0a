package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/amberline/amberline-api/api"
	"github.com/amberline/amberline-api/chat"
	"github.com/amberline/amberline-api/config"
	"github.com/amberline/amberline-api/databases"
	"github.com/amberline/amberline-api/models"
)

// InboxHandler exported for testing purposes
type InboxHandler struct {
	Inbox *chat.Inbox
	UDB   databases.UserDatabase
}

// QueryHandler returns a page of the moderation inbox
func (i InboxHandler) QueryHandler(w http.ResponseWriter, r *http.Request) {
	if requireStaff(w, r, i.UDB) == nil {
		return
	}

	tab := r.URL.Query().Get("tab")
	search := r.URL.Query().Get("search")
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v, err: %v", 20, err))
		limit = 0
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := i.Inbox.Query(ctx, tab, search, page, limit)
	if err != nil {
		chatErrorStatus("failed to query notifications", w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.ModNotification{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// StatsHandler returns inbox badge counts
func (i InboxHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if requireStaff(w, r, i.UDB) == nil {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	stats, err := i.Inbox.Stats(ctx)
	if err != nil {
		chatErrorStatus("failed to get inbox stats", w, err)
		return
	}

	b, err := json.Marshal(stats)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// MarkReadHandler marks a single notification as read
func (i InboxHandler) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	if requireStaff(w, r, i.UDB) == nil {
		return
	}

	nID, err := primitive.ObjectIDFromHex(mux.Vars(r)["notification_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	if err := i.Inbox.MarkRead(ctx, nID); err != nil {
		chatErrorStatus("failed to mark notification read", w, err)
		return
	}

	b, _ := json.Marshal(map[string]string{"status": models.NotificationRead})
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

type resolveRequest struct {
	Note string `json:"note"`
}

// ResolveHandler resolves a single notification
func (i InboxHandler) ResolveHandler(w http.ResponseWriter, r *http.Request) {
	staff := requireStaff(w, r, i.UDB)
	if staff == nil {
		return
	}

	nID, err := primitive.ObjectIDFromHex(mux.Vars(r)["notification_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	if err := i.Inbox.MarkResolved(ctx, nID, staff.ID, req.Note); err != nil {
		chatErrorStatus("failed to resolve notification", w, err)
		return
	}

	b, _ := json.Marshal(map[string]string{"status": models.NotificationResolved})
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

type bulkRequest struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status"`
	Note   string   `json:"note"`
}

// BulkHandler applies a status change to a batch of notifications
func (i InboxHandler) BulkHandler(w http.ResponseWriter, r *http.Request) {
	staff := requireStaff(w, r, i.UDB)
	if staff == nil {
		return
	}

	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ids := make([]primitive.ObjectID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
			return
		}
		ids = append(ids, id)
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	modified, err := i.Inbox.BulkUpdate(ctx, ids, req.Status, staff.ID, req.Note)
	if err != nil {
		chatErrorStatus("failed to bulk update notifications", w, err)
		return
	}

	b, _ := json.Marshal(map[string]int64{"updated": modified})
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
