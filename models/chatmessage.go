package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message status values. A message only ever moves away from active; deleted and
// hidden are terminal.
const (
	MessageStatusActive  = "active"
	MessageStatusDeleted = "deleted"
	MessageStatusHidden  = "hidden"
)

// Message kinds
const (
	MessageKindText   = "text"
	MessageKindImage  = "image"
	MessageKindSystem = "system"
)

// Sender roles, captured on the message at write time so later role changes do
// not rewrite history
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// ChatMessage holds the structure for the messages collection in mongo. One
// document per utterance in a case thread. Documents are never physically
// removed; moderation flips the status and stamps the moderation sub-document.
type ChatMessage struct {
	ID         primitive.ObjectID     `json:"_id" bson:"_id,omitempty"`
	CaseID     string                 `json:"caseId" bson:"caseId"`
	SenderID   string                 `json:"senderId" bson:"senderId"`
	SenderName string                 `json:"senderName" bson:"senderName"`
	SenderRole string                 `json:"senderRole" bson:"senderRole"`
	Content    string                 `json:"content" bson:"content"`
	Kind       string                 `json:"type" bson:"type"`
	Metadata   map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Status     string                 `json:"status" bson:"status"`
	Moderation *MessageModeration     `json:"moderation,omitempty" bson:"moderation,omitempty"`
	ReadBy     []string               `json:"readBy" bson:"readBy"`
	Sanitized  bool                   `json:"sanitized,omitempty" bson:"-"`
	CreatedAt  primitive.DateTime     `json:"createdAt" bson:"createdAt"`
}

// MessageModeration records who acted on a non-active message and why
type MessageModeration struct {
	ActorID string             `json:"actorId" bson:"actorId"`
	Reason  string             `json:"reason" bson:"reason"`
	At      primitive.DateTime `json:"at" bson:"at"`
}

// IsStaffRole reports whether role bypasses chat restrictions
func IsStaffRole(role string) bool {
	return role == RoleModerator || role == RoleAdmin
}
