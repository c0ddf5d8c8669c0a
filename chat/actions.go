package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/amberline/amberline-api/databases"
	"github.com/amberline/amberline-api/models"
)

// Warn template keys. WarnCustom accepts free text in place of a template.
const (
	WarnSpam          = "spam"
	WarnInappropriate = "inappropriate_language"
	WarnOffTopic      = "off_topic"
	WarnHarassment    = "harassment"
	WarnMisinfo       = "misinformation"
	WarnCustom        = "custom"
)

var warnTemplates = map[string]string{
	WarnSpam:          "Please stop posting repetitive or promotional content in case discussions.",
	WarnInappropriate: "Please keep the language in case discussions respectful.",
	WarnOffTopic:      "Please keep messages related to the case being discussed.",
	WarnHarassment:    "Harassment of other participants is not tolerated.",
	WarnMisinfo:       "Please do not share unverified claims about an ongoing case.",
}

// ModerationEngine applies moderator-triggered actions to users and cases.
// Every action writes a durable moderation log entry, pushes a notice to the
// target's live connections, and, when triggered from a specific inbox
// notification, resolves that notification so action and alert never diverge.
type ModerationEngine struct {
	UDB   databases.UserDatabase
	CDB   databases.CaseDatabase
	LDB   databases.ModerationLogDatabase
	Inbox *Inbox
	Hub   Broadcaster
}

// Warn sends a warning to a user without altering restriction state. The
// template key selects a pre-written message; WarnCustom uses customReason.
func (e *ModerationEngine) Warn(ctx context.Context, actorID, userID, caseID, templateKey, customReason, notificationID string) error {
	if userID == "" {
		return &ValidationError{Field: "userId", Message: "required"}
	}
	message, err := warnMessage(templateKey, customReason)
	if err != nil {
		return err
	}
	if _, err := e.UDB.FindOne(ctx, bson.M{"_id": userID}); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &NotFoundError{Resource: "user", ID: userID}
		}
		return err
	}

	e.Hub.ToUser(userID, "mod:action", map[string]interface{}{
		"action":  models.LogActionWarn,
		"message": message,
	})

	if err := e.appendLog(ctx, models.ModerationLogEntry{
		Action:         models.LogActionWarn,
		ActorID:        actorID,
		TargetUserID:   userID,
		CaseID:         caseID,
		NotificationID: notificationID,
		Reason:         message,
		Detail:         map[string]interface{}{"template": templateKey},
	}); err != nil {
		return err
	}
	return e.resolveTrigger(ctx, notificationID, actorID, "user warned: "+message)
}

func warnMessage(templateKey, customReason string) (string, error) {
	if templateKey == WarnCustom {
		if customReason == "" {
			return "", &ValidationError{Field: "reason", Message: "required for custom warnings"}
		}
		return customReason, nil
	}
	message, ok := warnTemplates[templateKey]
	if !ok {
		return "", &ValidationError{Field: "template", Message: "unknown warning template"}
	}
	return message, nil
}

// Mute blocks a user from posting for the given duration, increments their
// strike count and records the action
func (e *ModerationEngine) Mute(ctx context.Context, actorID, userID string, durationSeconds int, reason, notificationID string) error {
	if userID == "" {
		return &ValidationError{Field: "userId", Message: "required"}
	}
	if durationSeconds <= 0 {
		return &ValidationError{Field: "duration", Message: "must be greater than zero"}
	}
	until := time.Now().Add(time.Duration(durationSeconds) * time.Second)

	res, err := e.UDB.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$set": bson.M{"user.chatMuteUntil": until, "user.chatMuteReason": reason},
			"$inc": bson.M{"user.strikeCount": 1},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &NotFoundError{Resource: "user", ID: userID}
	}

	e.Hub.ToUser(userID, "mod:action", map[string]interface{}{
		"action":   models.LogActionMute,
		"message":  fmt.Sprintf("You have been muted for %s. Reason: %s", HumanDuration(durationSeconds), reason),
		"until":    until,
		"duration": durationSeconds,
	})

	if err := e.appendLog(ctx, models.ModerationLogEntry{
		Action:          models.LogActionMute,
		ActorID:         actorID,
		TargetUserID:    userID,
		NotificationID:  notificationID,
		Reason:          reason,
		DurationSeconds: durationSeconds,
	}); err != nil {
		return err
	}
	return e.resolveTrigger(ctx, notificationID, actorID, fmt.Sprintf("user muted %s: %s", HumanDuration(durationSeconds), reason))
}

// Ban blocks a user entirely. durationSeconds of zero means permanent; a
// positive value sets a temporary window. Strike count always increments.
func (e *ModerationEngine) Ban(ctx context.Context, actorID, userID string, durationSeconds int, reason, notificationID string) error {
	if userID == "" {
		return &ValidationError{Field: "userId", Message: "required"}
	}
	if durationSeconds < 0 {
		return &ValidationError{Field: "duration", Message: "cannot be negative"}
	}

	var update bson.M
	var notice string
	if durationSeconds == 0 {
		update = bson.M{
			"$set":   bson.M{"user.banPermanent": true, "user.banReason": reason},
			"$unset": bson.M{"user.bannedUntil": ""},
			"$inc":   bson.M{"user.strikeCount": 1},
		}
		notice = "You have been permanently banned. Reason: " + reason
	} else {
		until := time.Now().Add(time.Duration(durationSeconds) * time.Second)
		update = bson.M{
			"$set": bson.M{"user.bannedUntil": until, "user.banPermanent": false, "user.banReason": reason},
			"$inc": bson.M{"user.strikeCount": 1},
		}
		notice = fmt.Sprintf("You have been banned for %s. Reason: %s", HumanDuration(durationSeconds), reason)
	}

	res, err := e.UDB.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &NotFoundError{Resource: "user", ID: userID}
	}

	e.Hub.ToUser(userID, "mod:action", map[string]interface{}{
		"action":    models.LogActionBan,
		"message":   notice,
		"permanent": durationSeconds == 0,
	})

	if err := e.appendLog(ctx, models.ModerationLogEntry{
		Action:          models.LogActionBan,
		ActorID:         actorID,
		TargetUserID:    userID,
		NotificationID:  notificationID,
		Reason:          reason,
		DurationSeconds: durationSeconds,
	}); err != nil {
		return err
	}
	note := "user banned"
	if durationSeconds > 0 {
		note = "user banned " + HumanDuration(durationSeconds)
	}
	return e.resolveTrigger(ctx, notificationID, actorID, note+": "+reason)
}

// Slowmode sets the case's chat status and per-sender posting interval in one
// write; seconds of zero reopens the case. The change is broadcast to the case
// room so connected clients can adjust immediately.
func (e *ModerationEngine) Slowmode(ctx context.Context, actorID, caseID string, seconds int, reason, notificationID string) error {
	if caseID == "" {
		return &ValidationError{Field: "caseId", Message: "required"}
	}
	if seconds < 0 {
		return &ValidationError{Field: "seconds", Message: "cannot be negative"}
	}

	// the prior status is recorded in the notification, so read it before
	// overwriting
	caseDoc, err := e.CDB.FindOne(ctx, bson.M{"_id": caseID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &NotFoundError{Resource: "case", ID: caseID}
		}
		return err
	}
	oldStatus := caseDoc.Details.ChatStatus
	if oldStatus == "" {
		oldStatus = models.ChatStatusOpen
	}

	// chatStatus and slowmodeSeconds are always written together so the pair
	// stays consistent
	newStatus := models.ChatStatusSlowmode
	if seconds == 0 {
		newStatus = models.ChatStatusOpen
	}
	res, err := e.CDB.UpdateOne(ctx,
		bson.M{"_id": caseID},
		bson.M{"$set": bson.M{"case.chatStatus": newStatus, "case.slowmodeSeconds": seconds}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &NotFoundError{Resource: "case", ID: caseID}
	}

	if seconds > 0 {
		e.Hub.ToRoom(caseID, "chat:slowmode:enabled", map[string]interface{}{
			"caseId":  caseID,
			"seconds": seconds,
			"reason":  reason,
		})
	} else {
		e.Hub.ToRoom(caseID, "chat:status", map[string]interface{}{
			"caseId": caseID,
			"status": models.ChatStatusOpen,
		})
	}

	if err := e.appendLog(ctx, models.ModerationLogEntry{
		Action:          models.LogActionSlowmode,
		ActorID:         actorID,
		CaseID:          caseID,
		NotificationID:  notificationID,
		Reason:          reason,
		DurationSeconds: seconds,
	}); err != nil {
		return err
	}

	if e.Inbox != nil {
		if err := e.Inbox.Create(ctx, NewChatStatusChanged(caseID, actorID, oldStatus, newStatus, seconds)); err != nil {
			// the status change itself succeeded; the staff alert is best effort
			zap.S().With(err).Error("failed to create chat status notification")
		}
	}
	return e.resolveTrigger(ctx, notificationID, actorID, fmt.Sprintf("chat status set to %s", newStatus))
}

// DeleteMessages soft-deletes the given messages through the store and writes
// one delete_messages log entry for the batch
func (e *ModerationEngine) DeleteMessages(ctx context.Context, store *MessageStore, actorID, caseID string, messageIDs []primitive.ObjectID, reason, notificationID string) (int64, error) {
	deleted, err := store.SoftDelete(ctx, messageIDs, caseID, actorID, reason)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		ids := make([]string, len(messageIDs))
		for i, id := range messageIDs {
			ids[i] = id.Hex()
		}
		e.Hub.ToRoom(caseID, "chat:messages:deleted", map[string]interface{}{
			"caseId":     caseID,
			"messageIds": ids,
		})
		if err := e.appendLog(ctx, models.ModerationLogEntry{
			Action:         models.LogActionDeleteMessages,
			ActorID:        actorID,
			CaseID:         caseID,
			NotificationID: notificationID,
			Reason:         reason,
			Detail:         map[string]interface{}{"messageIds": ids, "deleted": deleted},
		}); err != nil {
			return deleted, err
		}
	}
	if err := e.resolveTrigger(ctx, notificationID, actorID, fmt.Sprintf("%d messages deleted: %s", deleted, reason)); err != nil {
		return deleted, err
	}
	return deleted, nil
}

func (e *ModerationEngine) appendLog(ctx context.Context, entry models.ModerationLogEntry) error {
	entry.ID = primitive.NewObjectID()
	entry.CreatedAt = primitive.NewDateTimeFromTime(time.Now())
	_, err := e.LDB.InsertOne(ctx, entry)
	return err
}

// resolveTrigger closes the inbox notification an action was taken from, if any
func (e *ModerationEngine) resolveTrigger(ctx context.Context, notificationID, actorID, note string) error {
	if notificationID == "" || e.Inbox == nil {
		return nil
	}
	id, err := primitive.ObjectIDFromHex(notificationID)
	if err != nil {
		return &ValidationError{Field: "notificationId", Message: "invalid id"}
	}
	return e.Inbox.MarkResolved(ctx, id, actorID, note)
}

// HumanDuration renders a duration in seconds as a rough minutes/hours/days
// bucket for user-facing notices
func HumanDuration(seconds int) string {
	switch {
	case seconds < 3600:
		minutes := (seconds + 59) / 60
		if minutes <= 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	case seconds < 86400:
		hours := seconds / 3600
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	default:
		days := seconds / 86400
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
}
