package chat

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/amberline/amberline-api/databases"
	"github.com/amberline/amberline-api/models"
)

const (
	defaultSpamThreshold = 5
	defaultSpamWindow    = 30 // seconds
)

// SpamDetector watches admitted messages for bursts. When a non-staff sender
// posts Threshold or more messages inside WindowSeconds, a spam_detected
// notification is raised. Bursts can raise several redundant notifications;
// the cleanup workflow resolves them all in one sweep.
type SpamDetector struct {
	MDB           databases.MessageDatabase
	Inbox         *Inbox
	Threshold     int
	WindowSeconds int
}

// Observe inspects a freshly admitted message. Failures here must not affect
// the message itself, so the caller logs and drops the returned error.
func (d *SpamDetector) Observe(ctx context.Context, msg *models.ChatMessage) error {
	if models.IsStaffRole(msg.SenderRole) {
		return nil
	}
	threshold := d.Threshold
	if threshold <= 0 {
		threshold = defaultSpamThreshold
	}
	window := d.WindowSeconds
	if window <= 0 {
		window = defaultSpamWindow
	}

	since := msg.CreatedAt.Time().Add(-time.Duration(window) * time.Second)
	recent, err := d.MDB.Find(ctx, bson.M{
		"caseId":    msg.CaseID,
		"senderId":  msg.SenderID,
		"status":    models.MessageStatusActive,
		"createdAt": bson.M{"$gte": primitive.NewDateTimeFromTime(since)},
	})
	if err != nil {
		return err
	}
	if len(recent) < threshold {
		return nil
	}

	ids := make([]string, len(recent))
	for i, m := range recent {
		ids[i] = m.ID.Hex()
	}
	return d.Inbox.Create(ctx, NewSpamDetected(msg.CaseID, msg.SenderID, ids, window, "burst"))
}
