package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types surfaced in the moderation inbox
const (
	NotificationMessageReported   = "message_reported"
	NotificationSpamDetected      = "spam_detected"
	NotificationUrgentReport      = "urgent_report"
	NotificationChatStatusChanged = "chat_status_changed"
	NotificationUserFlagged       = "user_flagged"
	NotificationSystemEvent       = "system_event"
)

// Notification priorities. The numeric weight is stored alongside the label so
// mongo can sort priority-descending without an aggregation stage.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Notification status values. Transitions are monotonic:
// unread -> read -> resolved, and resolve may be reached directly from unread.
const (
	NotificationUnread   = "unread"
	NotificationRead     = "read"
	NotificationResolved = "resolved"
)

// PriorityWeight maps a priority label to its sort weight
func PriorityWeight(priority string) int {
	switch priority {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

// ModNotification holds the structure for the mod_notifications collection in
// mongo. Resolved notifications are kept forever; together with the moderation
// log they form the audit trail.
type ModNotification struct {
	ID             primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Type           string             `json:"type" bson:"type"`
	CaseID         string             `json:"caseId,omitempty" bson:"caseId,omitempty"`
	MessageID      string             `json:"messageId,omitempty" bson:"messageId,omitempty"`
	TargetUserID   string             `json:"targetUserId,omitempty" bson:"targetUserId,omitempty"`
	ActorID        string             `json:"actorId,omitempty" bson:"actorId,omitempty"`
	Priority       string             `json:"priority" bson:"priority"`
	PriorityWeight int                `json:"-" bson:"priorityWeight"`
	Status         string             `json:"status" bson:"status"`
	Title          string             `json:"title" bson:"title"`
	Preview        string             `json:"preview" bson:"preview"`
	Meta           NotificationMeta   `json:"meta" bson:"meta"`
	Unavailable    bool               `json:"unavailable,omitempty" bson:"-"`
	EscalatedAt    *time.Time         `json:"escalatedAt,omitempty" bson:"escalatedAt,omitempty"`
	ResolvedAt     *time.Time         `json:"resolvedAt,omitempty" bson:"resolvedAt,omitempty"`
	ResolvedBy     string             `json:"resolvedBy,omitempty" bson:"resolvedBy,omitempty"`
	ResolutionNote string             `json:"resolutionNote,omitempty" bson:"resolutionNote,omitempty"`
	CreatedAt      primitive.DateTime `json:"createdAt" bson:"createdAt"`
}

// NotificationMeta is a tagged union keyed by the notification type: exactly one
// variant is populated per document. Keeping the variants as distinct structs
// (instead of one loose map) forces hydration logic to handle every type.
type NotificationMeta struct {
	Report       *ReportMeta       `json:"report,omitempty" bson:"report,omitempty"`
	Spam         *SpamMeta         `json:"spam,omitempty" bson:"spam,omitempty"`
	StatusChange *StatusChangeMeta `json:"statusChange,omitempty" bson:"statusChange,omitempty"`
	Flag         *FlagMeta         `json:"flag,omitempty" bson:"flag,omitempty"`
	System       *SystemMeta       `json:"system,omitempty" bson:"system,omitempty"`
}

// ReportMeta carries the fields of message_reported and urgent_report notifications
type ReportMeta struct {
	Reason          string   `json:"reason" bson:"reason"`
	Count           int      `json:"count" bson:"count"`
	ReporterIDs     []string `json:"reporterIds" bson:"reporterIds"`
	SuggestedAction string   `json:"suggestedAction,omitempty" bson:"suggestedAction,omitempty"`
}

// SpamMeta carries the fields of spam_detected notifications
type SpamMeta struct {
	MessageIDs    []string `json:"messageIds" bson:"messageIds"`
	Count         int      `json:"count" bson:"count"`
	WindowSeconds int      `json:"windowSeconds" bson:"windowSeconds"`
	Rule          string   `json:"rule,omitempty" bson:"rule,omitempty"`
}

// StatusChangeMeta carries the fields of chat_status_changed notifications
type StatusChangeMeta struct {
	OldStatus       string `json:"oldStatus" bson:"oldStatus"`
	NewStatus       string `json:"newStatus" bson:"newStatus"`
	SlowmodeSeconds int    `json:"slowmodeSeconds,omitempty" bson:"slowmodeSeconds,omitempty"`
}

// FlagMeta carries the fields of user_flagged notifications
type FlagMeta struct {
	Reason      string `json:"reason" bson:"reason"`
	StrikeCount int    `json:"strikeCount" bson:"strikeCount"`
}

// SystemMeta carries the fields of system_event notifications
type SystemMeta struct {
	Event  string                 `json:"event" bson:"event"`
	Detail map[string]interface{} `json:"detail,omitempty" bson:"detail,omitempty"`
}
