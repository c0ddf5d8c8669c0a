package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Message report reasons
const (
	ReportReasonSpam          = "spam"
	ReportReasonOffensive     = "offensive"
	ReportReasonHarassment    = "harassment"
	ReportReasonMisinfo       = "misinformation"
	ReportReasonInappropriate = "inappropriate"
	ReportReasonOther         = "other"
)

// Message report status values
const (
	ReportStatusPending   = "pending"
	ReportStatusReviewed  = "reviewed"
	ReportStatusDismissed = "dismissed"
)

// MessageReport holds the structure for the message_reports collection in
// mongo: a user's complaint against a specific message. A user may report a
// given message only once; the pair (messageId, reporterId) is unique.
type MessageReport struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	MessageID   string             `json:"messageId" bson:"messageId"`
	CaseID      string             `json:"caseId" bson:"caseId"`
	ReporterID  string             `json:"reporterId" bson:"reporterId"`
	Reason      string             `json:"reason" bson:"reason"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	Status      string             `json:"status" bson:"status"`
	CreatedAt   primitive.DateTime `json:"createdAt" bson:"createdAt"`
}

// ValidReportReason reports whether reason is one of the accepted enum values
func ValidReportReason(reason string) bool {
	switch reason {
	case ReportReasonSpam, ReportReasonOffensive, ReportReasonHarassment,
		ReportReasonMisinfo, ReportReasonInappropriate, ReportReasonOther:
		return true
	}
	return false
}
