package chat_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/amberline/amberline-api/chat"
	"github.com/amberline/amberline-api/databases/mocks"
	"github.com/amberline/amberline-api/models"
)

func reportedMessage(id primitive.ObjectID) *models.ChatMessage {
	return &models.ChatMessage{
		ID:       id,
		CaseID:   "c1",
		SenderID: "u9",
		Content:  "buy followers now",
		Status:   models.MessageStatusActive,
	}
}

func TestReport_UnknownReason(t *testing.T) {
	svc := &chat.ReportService{RDB: &mocks.MessageReportDatabase{}, MDB: &mocks.MessageDatabase{}}

	_, err := svc.Report(context.Background(), primitive.NewObjectID(), "u1", "i-dislike-it", "")

	var validation *chat.ValidationError
	assert.ErrorAs(t, err, &validation)
	assert.Equal(t, "reason", validation.Field)
}

func TestReport_MessageNotFound(t *testing.T) {
	mdb := &mocks.MessageDatabase{}
	mdb.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)

	svc := &chat.ReportService{RDB: &mocks.MessageReportDatabase{}, MDB: mdb}
	_, err := svc.Report(context.Background(), primitive.NewObjectID(), "u1", models.ReportReasonSpam, "")

	var notFound *chat.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestReport_DuplicateByOneReporterRejected(t *testing.T) {
	mID := primitive.NewObjectID()
	mdb := &mocks.MessageDatabase{}
	mdb.On("FindOne", mock.Anything, mock.Anything).Return(reportedMessage(mID), nil)
	rdb := &mocks.MessageReportDatabase{}
	rdb.On("CountDocuments", mock.Anything, bson.M{"messageId": mID.Hex(), "reporterId": "u1"}).
		Return(int64(1), nil)

	svc := &chat.ReportService{RDB: rdb, MDB: mdb}
	_, err := svc.Report(context.Background(), mID, "u1", models.ReportReasonSpam, "")

	var validation *chat.ValidationError
	assert.ErrorAs(t, err, &validation)
	rdb.AssertNotCalled(t, "InsertOne", mock.Anything, mock.Anything)
}

func TestReport_FirstReportOpensNotification(t *testing.T) {
	mID := primitive.NewObjectID()
	mdb := &mocks.MessageDatabase{}
	mdb.On("FindOne", mock.Anything, mock.Anything).Return(reportedMessage(mID), nil)

	rdb := &mocks.MessageReportDatabase{}
	rdb.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(0), nil)
	rdb.On("InsertOne", mock.Anything, mock.AnythingOfType("models.MessageReport")).Return(nil, nil)
	rdb.On("Find", mock.Anything, bson.M{"messageId": mID.Hex()}).
		Return([]models.MessageReport{{ReporterID: "u1"}}, nil)

	ndb := &mocks.ModNotificationDatabase{}
	// no open notification yet
	ndb.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)
	ndb.On("InsertOne", mock.Anything, mock.MatchedBy(func(n models.ModNotification) bool {
		return n.Type == models.NotificationMessageReported &&
			n.Priority == models.PriorityLow &&
			n.Meta.Report != nil &&
			n.Meta.Report.Count == 1
	})).Return(nil, nil)
	hub := &recordingBroadcaster{}

	svc := &chat.ReportService{
		RDB:   rdb,
		MDB:   mdb,
		NDB:   ndb,
		Inbox: &chat.Inbox{NDB: ndb, MDB: mdb, Hub: hub},
	}
	report, err := svc.Report(context.Background(), mID, "u1", models.ReportReasonSpam, "clearly an ad")

	assert.NoError(t, err)
	assert.Equal(t, models.ReportStatusPending, report.Status)
	assert.Equal(t, "c1", report.CaseID)
	assert.Equal(t, []string{"mod:notification:new"}, hub.actions())
}

func TestReport_ThirdReporterEscalatesToHigh(t *testing.T) {
	mID := primitive.NewObjectID()
	mdb := &mocks.MessageDatabase{}
	mdb.On("FindOne", mock.Anything, mock.Anything).Return(reportedMessage(mID), nil)

	rdb := &mocks.MessageReportDatabase{}
	rdb.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(0), nil)
	rdb.On("InsertOne", mock.Anything, mock.AnythingOfType("models.MessageReport")).Return(nil, nil)
	rdb.On("Find", mock.Anything, mock.Anything).Return([]models.MessageReport{
		{ReporterID: "u1"}, {ReporterID: "u2"}, {ReporterID: "u3"},
	}, nil)

	ndb := &mocks.ModNotificationDatabase{}
	ndb.On("FindOne", mock.Anything, mock.Anything).
		Return(&models.ModNotification{ID: primitive.NewObjectID(), Type: models.NotificationMessageReported}, nil)
	ndb.On("UpdateOne", mock.Anything, mock.Anything, mock.MatchedBy(func(update bson.M) bool {
		set := update["$set"].(bson.M)
		return set["priority"] == models.PriorityHigh &&
			set["priorityWeight"] == 3 &&
			set["meta.report.count"] == 3
	})).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)
	hub := &recordingBroadcaster{}

	svc := &chat.ReportService{
		RDB:   rdb,
		MDB:   mdb,
		NDB:   ndb,
		Inbox: &chat.Inbox{NDB: ndb, MDB: mdb, Hub: hub},
	}
	_, err := svc.Report(context.Background(), mID, "u3", models.ReportReasonSpam, "")

	assert.NoError(t, err)
	// one shared notification updated, never a second insert
	ndb.AssertNotCalled(t, "InsertOne", mock.Anything, mock.Anything)
	assert.Equal(t, []string{"mod:notification:updated"}, hub.actions())
}
