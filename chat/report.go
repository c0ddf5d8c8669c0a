package chat

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/amberline/amberline-api/databases"
	"github.com/amberline/amberline-api/models"
)

// ReportService files user complaints against messages and keeps the matching
// inbox notification's reporter count and priority current
type ReportService struct {
	RDB   databases.MessageReportDatabase
	MDB   databases.MessageDatabase
	NDB   databases.ModNotificationDatabase
	Inbox *Inbox
}

// Report files a complaint against a message. A user may report a given
// message only once; repeat reports are rejected without creating a duplicate
// row and without double-counting toward priority escalation. All open reports
// against one message share a single inbox notification whose priority
// escalates with the number of distinct reporters.
func (r *ReportService) Report(ctx context.Context, messageID primitive.ObjectID, reporterID, reason, description string) (*models.MessageReport, error) {
	if reporterID == "" {
		return nil, &ValidationError{Field: "reporterId", Message: "required"}
	}
	if !models.ValidReportReason(reason) {
		return nil, &ValidationError{Field: "reason", Message: "unknown report reason"}
	}

	msg, err := r.MDB.FindOne(ctx, bson.M{"_id": messageID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{Resource: "message", ID: messageID.Hex()}
		}
		return nil, err
	}

	existing, err := r.RDB.CountDocuments(ctx, bson.M{"messageId": messageID.Hex(), "reporterId": reporterID})
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, &ValidationError{Field: "messageId", Message: "you have already reported this message"}
	}

	report := models.MessageReport{
		ID:          primitive.NewObjectID(),
		MessageID:   messageID.Hex(),
		CaseID:      msg.CaseID,
		ReporterID:  reporterID,
		Reason:      reason,
		Description: description,
		Status:      models.ReportStatusPending,
		CreatedAt:   primitive.NewDateTimeFromTime(time.Now()),
	}
	if _, err := r.RDB.InsertOne(ctx, report); err != nil {
		return nil, err
	}

	if err := r.escalate(ctx, msg, reason); err != nil {
		return nil, err
	}
	return &report, nil
}

// escalate creates or updates the single open message_reported notification
// for the message
func (r *ReportService) escalate(ctx context.Context, msg *models.ChatMessage, reason string) error {
	reports, err := r.RDB.Find(ctx, bson.M{"messageId": msg.ID.Hex()})
	if err != nil {
		return err
	}
	reporterIDs := make([]string, 0, len(reports))
	for _, rep := range reports {
		reporterIDs = append(reporterIDs, rep.ReporterID)
	}
	priority := reportPriority(len(reporterIDs))

	open := bson.M{
		"type":      models.NotificationMessageReported,
		"messageId": msg.ID.Hex(),
		"status":    bson.M{"$ne": models.NotificationResolved},
	}
	if _, err := r.NDB.FindOne(ctx, open); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return r.Inbox.Create(ctx, NewMessageReported(msg, reason, reporterIDs))
		}
		return err
	}

	res, err := r.NDB.UpdateOne(ctx, open, bson.M{"$set": bson.M{
		"priority":                priority,
		"priorityWeight":          models.PriorityWeight(priority),
		"title":                   NewMessageReported(msg, reason, reporterIDs).Title,
		"meta.report.count":       len(reporterIDs),
		"meta.report.reporterIds": reporterIDs,
	}})
	if err != nil {
		return err
	}
	if res.ModifiedCount > 0 {
		r.Inbox.Hub.ToRoom(StaffRoom, "mod:notification:updated", map[string]interface{}{
			"messageId": msg.ID.Hex(),
			"count":     len(reporterIDs),
			"priority":  priority,
		})
	}
	return nil
}
