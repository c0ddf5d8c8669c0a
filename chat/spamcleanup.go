package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/amberline/amberline-api/databases"
	"github.com/amberline/amberline-api/models"
)

// CleanupMode selects which effects a spam cleanup applies
type CleanupMode string

// Cleanup modes. Every mode resolves the open spam notifications for the
// (case, user) pair; the rest is opt-in.
const (
	CleanupResolveOnly   CleanupMode = "resolve_only"
	CleanupDelete        CleanupMode = "resolve_delete"
	CleanupDeleteMute1h  CleanupMode = "resolve_delete_and_mute_1h"
	CleanupDeleteMute24h CleanupMode = "resolve_delete_and_mute_24h"
)

// SpamCleanup is the compound moderator action bound to a spam_detected
// notification: delete the offending messages, optionally mute the sender, and
// bulk-resolve every open spam alert for the same case and user. A single
// burst typically raises several redundant alerts and staff should only have
// to act once.
type SpamCleanup struct {
	Store  *MessageStore
	Engine *ModerationEngine
	Inbox  *Inbox
	NDB    databases.ModNotificationDatabase
	Hub    Broadcaster
}

// Run executes the workflow and returns a human-readable summary of the
// effects actually applied
func (w *SpamCleanup) Run(ctx context.Context, notificationID primitive.ObjectID, actorID string, mode CleanupMode) (string, error) {
	n, err := w.NDB.FindOne(ctx, bson.M{"_id": notificationID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", &NotFoundError{Resource: "notification", ID: notificationID.Hex()}
		}
		return "", err
	}
	if n.Type != models.NotificationSpamDetected {
		return "", &ValidationError{Field: "notificationId", Message: "not a spam notification"}
	}

	var deleteMessages bool
	var muteSeconds int
	switch mode {
	case CleanupResolveOnly:
	case CleanupDelete:
		deleteMessages = true
	case CleanupDeleteMute1h:
		deleteMessages = true
		muteSeconds = 3600
	case CleanupDeleteMute24h:
		deleteMessages = true
		muteSeconds = 86400
	default:
		return "", &ValidationError{Field: "mode", Message: "unknown cleanup mode"}
	}

	var parts []string

	if deleteMessages {
		ids, err := w.offendingMessages(ctx, n)
		if err != nil {
			return "", err
		}
		deleted, err := w.Engine.DeleteMessages(ctx, w.Store, actorID, n.CaseID, ids, "spam cleanup", "")
		if err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf("%d messages deleted", deleted))
	}

	if muteSeconds > 0 {
		if err := w.Engine.Mute(ctx, actorID, n.TargetUserID, muteSeconds, "spam cleanup", ""); err != nil {
			return "", err
		}
		parts = append(parts, "user muted "+HumanDuration(muteSeconds))
	}

	resolved, err := w.resolveOpenSpamAlerts(ctx, n, actorID, mode)
	if err != nil {
		return "", err
	}
	parts = append(parts, fmt.Sprintf("%d alerts resolved", resolved))

	summary := strings.Join(parts, " + ")
	w.Hub.ToRoom(StaffRoom, "mod:notification:bulk_resolved", map[string]interface{}{
		"caseId":  n.CaseID,
		"userId":  n.TargetUserID,
		"summary": summary,
	})
	return summary, nil
}

// offendingMessages uses the id list captured at detection time; when the list
// is empty it falls back to the target user's active messages inside the
// detection window
func (w *SpamCleanup) offendingMessages(ctx context.Context, n *models.ModNotification) ([]primitive.ObjectID, error) {
	var hexIDs []string
	window := defaultSpamWindow
	if n.Meta.Spam != nil {
		hexIDs = n.Meta.Spam.MessageIDs
		if n.Meta.Spam.WindowSeconds > 0 {
			window = n.Meta.Spam.WindowSeconds
		}
	}

	if len(hexIDs) > 0 {
		ids := make([]primitive.ObjectID, 0, len(hexIDs))
		for _, h := range hexIDs {
			id, err := primitive.ObjectIDFromHex(h)
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}
		return ids, nil
	}

	since := n.CreatedAt.Time().Add(-time.Duration(window) * time.Second)
	msgs, err := w.Store.MDB.Find(ctx, bson.M{
		"caseId":    n.CaseID,
		"senderId":  n.TargetUserID,
		"status":    models.MessageStatusActive,
		"createdAt": bson.M{"$gte": primitive.NewDateTimeFromTime(since)},
	})
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids, nil
}

// resolveOpenSpamAlerts bulk-resolves every open spam_detected notification
// for the (case, user) pair, not just the triggering one, and writes the
// bulk-tagged resolve audit entry
func (w *SpamCleanup) resolveOpenSpamAlerts(ctx context.Context, n *models.ModNotification, actorID string, mode CleanupMode) (int64, error) {
	open, err := w.NDB.Find(ctx, bson.M{
		"type":         models.NotificationSpamDetected,
		"caseId":       n.CaseID,
		"targetUserId": n.TargetUserID,
		"status":       bson.M{"$ne": models.NotificationResolved},
	})
	if err != nil {
		return 0, err
	}
	ids := make([]primitive.ObjectID, len(open))
	for i, o := range open {
		ids[i] = o.ID
	}
	note := "spam cleanup (" + string(mode) + ")"
	resolved, err := w.Inbox.BulkUpdate(ctx, ids, models.NotificationResolved, actorID, note)
	if err != nil {
		return 0, err
	}

	entry := models.ModerationLogEntry{
		ID:             primitive.NewObjectID(),
		Action:         models.LogActionResolve,
		ActorID:        actorID,
		TargetUserID:   n.TargetUserID,
		CaseID:         n.CaseID,
		NotificationID: n.ID.Hex(),
		Reason:         note,
		Detail:         map[string]interface{}{"bulk": true, "resolved": resolved},
		CreatedAt:      primitive.NewDateTimeFromTime(time.Now()),
	}
	if _, err := w.Engine.LDB.InsertOne(ctx, entry); err != nil {
		return resolved, err
	}
	return resolved, nil
}
