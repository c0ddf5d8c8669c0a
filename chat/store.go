package chat

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/amberline/amberline-api/databases"
	"github.com/amberline/amberline-api/models"
)

// StaffRoom is the reserved room key used to broadcast moderation events to all
// connected staff regardless of case. Case ids are mongo hex strings, so the
// key cannot collide with a real room.
const StaffRoom = "staff"

// Broadcaster pushes events to live gateway connections. Implemented by
// gateway.Hub; kept as an interface here so the chat services are testable
// without sockets.
type Broadcaster interface {
	ToRoom(room string, action string, data interface{})
	ToUser(userID string, action string, data interface{})
}

// NopBroadcaster drops every event; used in tests and offline tooling
type NopBroadcaster struct{}

// ToRoom implements Broadcaster
func (NopBroadcaster) ToRoom(string, string, interface{}) {}

// ToUser implements Broadcaster
func (NopBroadcaster) ToUser(string, string, interface{}) {}

const (
	maxContentRunes = 2000
	defaultPageSize = 50
	maxPageSize     = 100
)

// MessageStore gates and persists chat messages for case threads
type MessageStore struct {
	MDB databases.MessageDatabase
	UDB databases.UserDatabase
	CDB databases.CaseDatabase
}

// Admit runs the admission checks for a sender and, when they pass, persists a
// new active message. Staff roles bypass every restriction check. For regular
// users the checks run in order: permanent ban, temporary ban, mute, closed
// chat, slowmode cooldown. Each failure is a RestrictionError carrying the
// reason and expiry for display to the user.
func (s *MessageStore) Admit(ctx context.Context, caseID, senderID, content, kind string, metadata map[string]interface{}) (*models.ChatMessage, error) {
	if caseID == "" {
		return nil, &ValidationError{Field: "caseId", Message: "required"}
	}
	if senderID == "" {
		return nil, &ValidationError{Field: "senderId", Message: "required"}
	}
	if content == "" {
		return nil, &ValidationError{Field: "content", Message: "required"}
	}
	if len([]rune(content)) > maxContentRunes {
		return nil, &ValidationError{Field: "content", Message: "too long"}
	}
	if kind == "" {
		kind = models.MessageKindText
	}
	if kind != models.MessageKindText && kind != models.MessageKindImage && kind != models.MessageKindSystem {
		return nil, &ValidationError{Field: "type", Message: "unknown message type"}
	}

	user, err := s.UDB.FindOne(ctx, bson.M{"_id": senderID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{Resource: "user", ID: senderID}
		}
		return nil, err
	}

	caseDoc, err := s.CDB.FindOne(ctx, bson.M{"_id": caseID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{Resource: "case", ID: caseID}
		}
		return nil, err
	}

	now := time.Now()
	if !user.IsStaff() {
		if err := s.checkRestrictions(ctx, user, caseDoc, now); err != nil {
			return nil, err
		}
	}

	msg := models.ChatMessage{
		ID:         primitive.NewObjectID(),
		CaseID:     caseID,
		SenderID:   senderID,
		SenderName: user.Details.DisplayName(),
		SenderRole: user.Details.Role,
		Content:    content,
		Kind:       kind,
		Metadata:   metadata,
		Status:     models.MessageStatusActive,
		ReadBy:     []string{senderID},
		CreatedAt:  primitive.NewDateTimeFromTime(now),
	}
	if msg.SenderRole == "" {
		msg.SenderRole = models.RoleUser
	}
	if _, err := s.MDB.InsertOne(ctx, msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *MessageStore) checkRestrictions(ctx context.Context, user *models.User, caseDoc *models.Case, now time.Time) error {
	// ban is checked before mute
	if user.Details.BanPermanent {
		return &RestrictionError{Kind: RestrictionBanned, Reason: user.Details.BanReason, Permanent: true}
	}
	if user.Details.BannedUntil != nil && user.Details.BannedUntil.After(now) {
		return &RestrictionError{Kind: RestrictionBanned, Reason: user.Details.BanReason, Until: user.Details.BannedUntil}
	}
	if user.Details.ChatMuteUntil != nil && user.Details.ChatMuteUntil.After(now) {
		return &RestrictionError{Kind: RestrictionMuted, Reason: user.Details.ChatMuteReason, Until: user.Details.ChatMuteUntil}
	}
	if caseDoc.Details.ChatStatus == models.ChatStatusClosed {
		return &RestrictionError{Kind: RestrictionClosed, Reason: "chat is closed for this case"}
	}
	if caseDoc.Details.ChatStatus == models.ChatStatusSlowmode && caseDoc.Details.SlowmodeSeconds > 0 {
		return s.checkSlowmode(ctx, user.ID, caseDoc, now)
	}
	return nil
}

// checkSlowmode rejects a send until slowmodeSeconds have elapsed since the
// sender's last accepted message in this case
func (s *MessageStore) checkSlowmode(ctx context.Context, senderID string, caseDoc *models.Case, now time.Time) error {
	limit := int64(1)
	last, err := s.MDB.Find(ctx,
		bson.M{"caseId": caseDoc.ID, "senderId": senderID, "status": models.MessageStatusActive},
		&options.FindOptions{Sort: bson.D{{Key: "createdAt", Value: -1}}, Limit: &limit},
	)
	if err != nil {
		return err
	}
	if len(last) == 0 {
		return nil
	}
	interval := time.Duration(caseDoc.Details.SlowmodeSeconds) * time.Second
	nextAllowed := last[0].CreatedAt.Time().Add(interval)
	if now.Before(nextAllowed) {
		return &RestrictionError{
			Kind:   RestrictionSlowmode,
			Reason: "slowmode is enabled for this case",
			Until:  &nextAllowed,
		}
	}
	return nil
}

// List returns messages for a case in chronological order, optionally before a
// given timestamp (cursor pagination), capped at the max page size. Non-staff
// viewers receive deleted and hidden messages with content and metadata cleared
// and the sanitized flag set; staff see full content for audit purposes.
func (s *MessageStore) List(ctx context.Context, caseID string, before *time.Time, limit int, viewerIsStaff bool) ([]models.ChatMessage, error) {
	if caseID == "" {
		return nil, &ValidationError{Field: "caseId", Message: "required"}
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	filter := bson.M{"caseId": caseID}
	if before != nil {
		filter["createdAt"] = bson.M{"$lt": primitive.NewDateTimeFromTime(*before)}
	}
	limit64 := int64(limit)
	msgs, err := s.MDB.Find(ctx, filter, &options.FindOptions{
		Sort:  bson.D{{Key: "createdAt", Value: -1}},
		Limit: &limit64,
	})
	if err != nil {
		return nil, err
	}

	// newest-first internally, chronological for the caller
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	if !viewerIsStaff {
		for i := range msgs {
			if msgs[i].Status != models.MessageStatusActive {
				msgs[i].Content = ""
				msgs[i].Metadata = nil
				msgs[i].Sanitized = true
			}
		}
	}
	return msgs, nil
}

// MarkRead idempotently adds readerID to the reader set of every active message
// in the case that does not already contain it, returning the number of
// messages touched
func (s *MessageStore) MarkRead(ctx context.Context, caseID, readerID string) (int64, error) {
	if caseID == "" || readerID == "" {
		return 0, &ValidationError{Message: "caseId and readerId are required"}
	}
	res, err := s.MDB.UpdateMany(ctx,
		bson.M{"caseId": caseID, "status": models.MessageStatusActive, "readBy": bson.M{"$ne": readerID}},
		bson.M{"$addToSet": bson.M{"readBy": readerID}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// UnreadCount counts the active messages in a case the reader has not seen yet
func (s *MessageStore) UnreadCount(ctx context.Context, caseID, readerID string) (int64, error) {
	return s.MDB.CountDocuments(ctx,
		bson.M{"caseId": caseID, "status": models.MessageStatusActive, "readBy": bson.M{"$ne": readerID}},
	)
}

// SoftDelete transitions the matching active messages to deleted, stamping the
// moderation record, and returns the count actually changed. Already-deleted
// ids are unaffected and not counted; the filter is scoped to the case for
// safety.
func (s *MessageStore) SoftDelete(ctx context.Context, messageIDs []primitive.ObjectID, caseID, actorID, reason string) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	if caseID == "" {
		return 0, &ValidationError{Field: "caseId", Message: "required"}
	}
	res, err := s.MDB.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": messageIDs}, "caseId": caseID, "status": models.MessageStatusActive},
		bson.M{"$set": bson.M{
			"status": models.MessageStatusDeleted,
			"moderation": models.MessageModeration{
				ActorID: actorID,
				Reason:  reason,
				At:      primitive.NewDateTimeFromTime(time.Now()),
			},
		}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
