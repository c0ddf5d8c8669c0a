package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/amberline/amberline-api/databases"
	"github.com/amberline/amberline-api/models"
)

// Inbox tabs partition notifications by type and status
const (
	TabPending  = "pending"
	TabReported = "reported"
	TabSystem   = "system"
	TabResolved = "resolved"
)

const inboxPageSize = 20

// systemTypes are the machine-generated notification types grouped under the
// system tab and excluded from the pending queue
var systemTypes = []string{
	models.NotificationSystemEvent,
	models.NotificationChatStatusChanged,
	models.NotificationSpamDetected,
}

// InboxStats holds the on-demand inbox counters. Computed fresh on every call,
// never cached, to avoid staleness.
type InboxStats struct {
	Pending  int64 `json:"pending"`
	Reported int64 `json:"reported"`
	Critical int64 `json:"critical"`
}

// Inbox aggregates moderation-worthy signals into a triaged staff queue
type Inbox struct {
	NDB databases.ModNotificationDatabase
	MDB databases.MessageDatabase
	// RDB is optional; when set, resolving a message_reported notification
	// stamps its pending reports reviewed
	RDB databases.MessageReportDatabase
	Hub Broadcaster
}

// reportPriority escalates with the number of distinct reporters
func reportPriority(count int) string {
	switch {
	case count >= 3:
		return models.PriorityHigh
	case count >= 2:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

func truncatePreview(content string) string {
	const max = 120
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "…"
}

// NewMessageReported builds the inbox notification for a user report against a
// message. count is the number of distinct reporters so far.
func NewMessageReported(msg *models.ChatMessage, reason string, reporterIDs []string) models.ModNotification {
	priority := reportPriority(len(reporterIDs))
	return models.ModNotification{
		Type:         models.NotificationMessageReported,
		CaseID:       msg.CaseID,
		MessageID:    msg.ID.Hex(),
		TargetUserID: msg.SenderID,
		Priority:     priority,
		Status:       models.NotificationUnread,
		Title:        fmt.Sprintf("Message reported by %d user(s)", len(reporterIDs)),
		Preview:      truncatePreview(msg.Content),
		Meta: models.NotificationMeta{Report: &models.ReportMeta{
			Reason:          reason,
			Count:           len(reporterIDs),
			ReporterIDs:     reporterIDs,
			SuggestedAction: "review message",
		}},
	}
}

// NewSpamDetected builds the inbox notification for a detected message burst
func NewSpamDetected(caseID, userID string, messageIDs []string, windowSeconds int, rule string) models.ModNotification {
	return models.ModNotification{
		Type:         models.NotificationSpamDetected,
		CaseID:       caseID,
		TargetUserID: userID,
		Priority:     models.PriorityHigh,
		Status:       models.NotificationUnread,
		Title:        fmt.Sprintf("Possible spam burst: %d messages in %ds", len(messageIDs), windowSeconds),
		Preview:      fmt.Sprintf("User posted %d messages within %d seconds", len(messageIDs), windowSeconds),
		Meta: models.NotificationMeta{Spam: &models.SpamMeta{
			MessageIDs:    messageIDs,
			Count:         len(messageIDs),
			WindowSeconds: windowSeconds,
			Rule:          rule,
		}},
	}
}

// NewUrgentReport builds the inbox notification for a newly filed urgent case
func NewUrgentReport(caseID, title string) models.ModNotification {
	return models.ModNotification{
		Type:     models.NotificationUrgentReport,
		CaseID:   caseID,
		Priority: models.PriorityHigh,
		Status:   models.NotificationUnread,
		Title:    "Urgent report filed",
		Preview:  truncatePreview(title),
		Meta: models.NotificationMeta{Report: &models.ReportMeta{
			Reason:          "urgent",
			SuggestedAction: "review case",
		}},
	}
}

// NewChatStatusChanged builds the inbox notification for a case chat status transition
func NewChatStatusChanged(caseID, actorID, oldStatus, newStatus string, slowmodeSeconds int) models.ModNotification {
	return models.ModNotification{
		Type:     models.NotificationChatStatusChanged,
		CaseID:   caseID,
		ActorID:  actorID,
		Priority: models.PriorityLow,
		Status:   models.NotificationUnread,
		Title:    fmt.Sprintf("Chat status changed to %s", newStatus),
		Preview:  fmt.Sprintf("Case chat moved from %s to %s", oldStatus, newStatus),
		Meta: models.NotificationMeta{StatusChange: &models.StatusChangeMeta{
			OldStatus:       oldStatus,
			NewStatus:       newStatus,
			SlowmodeSeconds: slowmodeSeconds,
		}},
	}
}

// NewUserFlagged builds the inbox notification for a user crossing a strike threshold
func NewUserFlagged(userID, reason string, strikeCount int) models.ModNotification {
	return models.ModNotification{
		Type:         models.NotificationUserFlagged,
		TargetUserID: userID,
		Priority:     models.PriorityMedium,
		Status:       models.NotificationUnread,
		Title:        "User flagged for review",
		Preview:      fmt.Sprintf("%s (strike count %d)", reason, strikeCount),
		Meta: models.NotificationMeta{Flag: &models.FlagMeta{
			Reason:      reason,
			StrikeCount: strikeCount,
		}},
	}
}

// NewSystemEvent builds a low-priority informational notification
func NewSystemEvent(event string, detail map[string]interface{}) models.ModNotification {
	return models.ModNotification{
		Type:     models.NotificationSystemEvent,
		Priority: models.PriorityLow,
		Status:   models.NotificationUnread,
		Title:    "System event",
		Preview:  event,
		Meta: models.NotificationMeta{System: &models.SystemMeta{
			Event:  event,
			Detail: detail,
		}},
	}
}

// Create persists a notification and pushes it to all connected staff sessions
func (i *Inbox) Create(ctx context.Context, n models.ModNotification) error {
	if n.Type == "" {
		return &ValidationError{Field: "type", Message: "required"}
	}
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	if n.Status == "" {
		n.Status = models.NotificationUnread
	}
	n.PriorityWeight = models.PriorityWeight(n.Priority)
	n.CreatedAt = primitive.NewDateTimeFromTime(time.Now())

	if _, err := i.NDB.InsertOne(ctx, n); err != nil {
		return err
	}
	i.Hub.ToRoom(StaffRoom, "mod:notification:new", n)
	return nil
}

func tabFilter(tab string) (bson.M, error) {
	switch tab {
	case TabPending, "":
		return bson.M{
			"status": bson.M{"$ne": models.NotificationResolved},
			"type":   bson.M{"$nin": systemTypes},
		}, nil
	case TabReported:
		return bson.M{
			"status": bson.M{"$ne": models.NotificationResolved},
			"type":   models.NotificationMessageReported,
		}, nil
	case TabSystem:
		return bson.M{
			"status": bson.M{"$ne": models.NotificationResolved},
			"type":   bson.M{"$in": systemTypes},
		}, nil
	case TabResolved:
		return bson.M{"status": models.NotificationResolved}, nil
	default:
		return nil, &ValidationError{Field: "tab", Message: "unknown tab"}
	}
}

// Query returns one page of the inbox for the given tab, sorted by priority
// descending then recency. The free-text search matches title or preview.
func (i *Inbox) Query(ctx context.Context, tab, search string, page, limit int) ([]models.ModNotification, error) {
	filter, err := tabFilter(tab)
	if err != nil {
		return nil, err
	}
	if search != "" {
		// search is user input, never a pattern
		regex := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"title": regex},
			bson.M{"preview": regex},
		}
	}
	if limit <= 0 {
		limit = inboxPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if page < 0 {
		page = 0
	}
	limit64 := int64(limit)
	skip64 := int64(page * limit)

	notifications, err := i.NDB.Find(ctx, filter, &options.FindOptions{
		Sort:  bson.D{{Key: "priorityWeight", Value: -1}, {Key: "createdAt", Value: -1}},
		Limit: &limit64,
		Skip:  &skip64,
	})
	if err != nil {
		return nil, err
	}
	for idx := range notifications {
		i.hydrate(ctx, &notifications[idx])
	}
	return notifications, nil
}

// hydrate annotates notifications whose referenced message no longer resolves
// to a live message, instead of failing the query. The switch covers every
// notification type so a new type cannot be added without deciding its
// hydration behavior.
func (i *Inbox) hydrate(ctx context.Context, n *models.ModNotification) {
	switch n.Type {
	case models.NotificationMessageReported:
		i.annotateMessage(ctx, n)
	case models.NotificationSpamDetected:
		// the message id list may reference deleted messages by design; the
		// cleanup workflow has its own fallback query
	case models.NotificationUrgentReport,
		models.NotificationChatStatusChanged,
		models.NotificationUserFlagged,
		models.NotificationSystemEvent:
		// no message reference
	}
}

func (i *Inbox) annotateMessage(ctx context.Context, n *models.ModNotification) {
	if n.MessageID == "" {
		return
	}
	id, err := primitive.ObjectIDFromHex(n.MessageID)
	if err != nil {
		n.Unavailable = true
		n.Preview = "(original message unavailable)"
		return
	}
	msg, err := i.MDB.FindOne(ctx, bson.M{"_id": id})
	if err != nil || msg.Status != models.MessageStatusActive {
		n.Unavailable = true
		n.Preview = "(original message unavailable)"
	}
}

// MarkRead moves an unread notification to read. Resolved notifications are
// terminal and cannot move back.
func (i *Inbox) MarkRead(ctx context.Context, id primitive.ObjectID) error {
	res, err := i.NDB.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.NotificationUnread},
		bson.M{"$set": bson.M{"status": models.NotificationRead}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		existing, err := i.NDB.FindOne(ctx, bson.M{"_id": id})
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return &NotFoundError{Resource: "notification", ID: id.Hex()}
			}
			return err
		}
		if existing.Status == models.NotificationResolved {
			return &ValidationError{Field: "status", Message: "notification is already resolved"}
		}
		// already read, nothing to do
		return nil
	}
	i.Hub.ToRoom(StaffRoom, "mod:notification:updated", map[string]interface{}{
		"id":     id.Hex(),
		"status": models.NotificationRead,
	})
	return nil
}

// MarkResolved terminally resolves a notification, stamping actor, time and
// note. Resolving an already-resolved notification is a no-op.
func (i *Inbox) MarkResolved(ctx context.Context, id primitive.ObjectID, actorID, note string) error {
	now := time.Now()
	res, err := i.NDB.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$ne": models.NotificationResolved}},
		bson.M{"$set": bson.M{
			"status":         models.NotificationResolved,
			"resolvedAt":     now,
			"resolvedBy":     actorID,
			"resolutionNote": note,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := i.NDB.FindOne(ctx, bson.M{"_id": id}); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return &NotFoundError{Resource: "notification", ID: id.Hex()}
			}
			return err
		}
		return nil
	}
	i.reviewReports(ctx, id)
	i.Hub.ToRoom(StaffRoom, "mod:notification:updated", map[string]interface{}{
		"id":     id.Hex(),
		"status": models.NotificationResolved,
	})
	return nil
}

// reviewReports closes the report lifecycle behind a resolved message_reported
// notification: every report still pending against the message is stamped
// reviewed. Failures are logged, never surfaced; the resolution itself already
// committed.
func (i *Inbox) reviewReports(ctx context.Context, id primitive.ObjectID) {
	if i.RDB == nil {
		return
	}
	notification, err := i.NDB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		zap.S().Errorw("failed to load resolved notification", "id", id.Hex(), "error", err)
		return
	}
	if notification.Type != models.NotificationMessageReported || notification.MessageID == "" {
		return
	}
	_, err = i.RDB.UpdateMany(ctx,
		bson.M{"messageId": notification.MessageID, "status": models.ReportStatusPending},
		bson.M{"$set": bson.M{"status": models.ReportStatusReviewed}},
	)
	if err != nil {
		zap.S().Errorw("failed to mark reports reviewed", "messageId", notification.MessageID, "error", err)
	}
}

// BulkUpdate applies the same monotonic transition to a set of notifications
// in one write, returning the number actually changed
func (i *Inbox) BulkUpdate(ctx context.Context, ids []primitive.ObjectID, status, actorID, note string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var filter, update bson.M
	switch status {
	case models.NotificationRead:
		filter = bson.M{"_id": bson.M{"$in": ids}, "status": models.NotificationUnread}
		update = bson.M{"$set": bson.M{"status": models.NotificationRead}}
	case models.NotificationResolved:
		filter = bson.M{"_id": bson.M{"$in": ids}, "status": bson.M{"$ne": models.NotificationResolved}}
		update = bson.M{"$set": bson.M{
			"status":         models.NotificationResolved,
			"resolvedAt":     time.Now(),
			"resolvedBy":     actorID,
			"resolutionNote": note,
		}}
	default:
		return 0, &ValidationError{Field: "status", Message: "bulk updates accept read or resolved"}
	}
	res, err := i.NDB.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	if res.ModifiedCount > 0 {
		i.Hub.ToRoom(StaffRoom, "mod:notification:bulk_resolved", map[string]interface{}{
			"status": status,
			"count":  res.ModifiedCount,
		})
	}
	return res.ModifiedCount, nil
}

// Stats computes the inbox counters on demand
func (i *Inbox) Stats(ctx context.Context) (*InboxStats, error) {
	pending, err := i.NDB.CountDocuments(ctx, bson.M{
		"status": bson.M{"$ne": models.NotificationResolved},
		"type":   bson.M{"$nin": systemTypes},
	})
	if err != nil {
		return nil, err
	}
	reported, err := i.NDB.CountDocuments(ctx, bson.M{
		"status": bson.M{"$ne": models.NotificationResolved},
		"type":   models.NotificationMessageReported,
	})
	if err != nil {
		return nil, err
	}
	critical, err := i.NDB.CountDocuments(ctx, bson.M{
		"status":   bson.M{"$ne": models.NotificationResolved},
		"priority": models.PriorityHigh,
	})
	if err != nil {
		return nil, err
	}
	return &InboxStats{Pending: pending, Reported: reported, Critical: critical}, nil
}
