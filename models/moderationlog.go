package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Moderation log action kinds
const (
	LogActionWarn           = "warn"
	LogActionMute           = "mute"
	LogActionBan            = "ban"
	LogActionDeleteMessages = "delete_messages"
	LogActionSlowmode       = "slowmode"
	LogActionResolve        = "resolve"
)

// ModerationLogEntry is one immutable audit record. The collection is
// append-only: entries are never updated or deleted, one entry per discrete
// moderation decision.
type ModerationLogEntry struct {
	ID              primitive.ObjectID     `json:"_id" bson:"_id,omitempty"`
	Action          string                 `json:"action" bson:"action"`
	ActorID         string                 `json:"actorId" bson:"actorId"`
	TargetUserID    string                 `json:"targetUserId,omitempty" bson:"targetUserId,omitempty"`
	CaseID          string                 `json:"caseId,omitempty" bson:"caseId,omitempty"`
	NotificationID  string                 `json:"notificationId,omitempty" bson:"notificationId,omitempty"`
	Reason          string                 `json:"reason" bson:"reason"`
	DurationSeconds int                    `json:"durationSeconds" bson:"durationSeconds"`
	Detail          map[string]interface{} `json:"detail,omitempty" bson:"detail,omitempty"`
	CreatedAt       primitive.DateTime     `json:"createdAt" bson:"createdAt"`
}
