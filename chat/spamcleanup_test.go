package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/amberline/amberline-api/chat"
	"github.com/amberline/amberline-api/databases/mocks"
	"github.com/amberline/amberline-api/models"
)

type cleanupFixture struct {
	mdb *mocks.MessageDatabase
	udb *mocks.UserDatabase
	ldb *mocks.ModerationLogDatabase
	ndb *mocks.ModNotificationDatabase
	hub *recordingBroadcaster
	w   *chat.SpamCleanup
}

func newCleanup() *cleanupFixture {
	f := &cleanupFixture{
		mdb: &mocks.MessageDatabase{},
		udb: &mocks.UserDatabase{},
		ldb: &mocks.ModerationLogDatabase{},
		ndb: &mocks.ModNotificationDatabase{},
		hub: &recordingBroadcaster{},
	}
	store := &chat.MessageStore{MDB: f.mdb, UDB: f.udb}
	inbox := &chat.Inbox{NDB: f.ndb, MDB: f.mdb, Hub: f.hub}
	engine := &chat.ModerationEngine{UDB: f.udb, LDB: f.ldb, Inbox: inbox, Hub: f.hub}
	f.w = &chat.SpamCleanup{Store: store, Engine: engine, Inbox: inbox, NDB: f.ndb, Hub: f.hub}
	return f
}

func spamNotification(id primitive.ObjectID, messageIDs []string) *models.ModNotification {
	return &models.ModNotification{
		ID:           id,
		Type:         models.NotificationSpamDetected,
		CaseID:       "c1",
		TargetUserID: "u1",
		Priority:     models.PriorityHigh,
		Status:       models.NotificationUnread,
		CreatedAt:    primitive.NewDateTimeFromTime(time.Now()),
		Meta: models.NotificationMeta{Spam: &models.SpamMeta{
			MessageIDs:    messageIDs,
			Count:         len(messageIDs),
			WindowSeconds: 30,
			Rule:          "burst",
		}},
	}
}

func TestSpamCleanup_UnknownMode(t *testing.T) {
	f := newCleanup()
	nID := primitive.NewObjectID()
	f.ndb.On("FindOne", mock.Anything, bson.M{"_id": nID}).
		Return(spamNotification(nID, nil), nil)

	_, err := f.w.Run(context.Background(), nID, "mod-1", chat.CleanupMode("nuke_from_orbit"))

	var vErr *chat.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, "mode", vErr.Field)
}

func TestSpamCleanup_NotificationNotFound(t *testing.T) {
	f := newCleanup()
	nID := primitive.NewObjectID()
	f.ndb.On("FindOne", mock.Anything, bson.M{"_id": nID}).
		Return(nil, mongo.ErrNoDocuments)

	_, err := f.w.Run(context.Background(), nID, "mod-1", chat.CleanupResolveOnly)

	var nfErr *chat.NotFoundError
	assert.ErrorAs(t, err, &nfErr)
}

func TestSpamCleanup_RejectsNonSpamNotification(t *testing.T) {
	f := newCleanup()
	nID := primitive.NewObjectID()
	n := spamNotification(nID, nil)
	n.Type = models.NotificationMessageReported
	f.ndb.On("FindOne", mock.Anything, bson.M{"_id": nID}).Return(n, nil)

	_, err := f.w.Run(context.Background(), nID, "mod-1", chat.CleanupResolveOnly)

	var vErr *chat.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, "notificationId", vErr.Field)
}

func TestSpamCleanup_ResolveOnly(t *testing.T) {
	f := newCleanup()
	nID := primitive.NewObjectID()
	f.ndb.On("FindOne", mock.Anything, bson.M{"_id": nID}).
		Return(spamNotification(nID, nil), nil)
	open := []models.ModNotification{
		*spamNotification(nID, nil),
		*spamNotification(primitive.NewObjectID(), nil),
		*spamNotification(primitive.NewObjectID(), nil),
	}
	f.ndb.On("Find", mock.Anything, mock.MatchedBy(func(filter bson.M) bool {
		return filter["type"] == models.NotificationSpamDetected &&
			filter["caseId"] == "c1" && filter["targetUserId"] == "u1"
	})).Return(open, nil)
	f.ndb.On("UpdateMany", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 3, ModifiedCount: 3}, nil)
	f.ldb.On("InsertOne", mock.Anything, mock.MatchedBy(func(e models.ModerationLogEntry) bool {
		return e.Action == models.LogActionResolve &&
			e.Reason == "spam cleanup (resolve_only)" &&
			e.Detail["bulk"] == true
	})).Return(nil, nil)

	summary, err := f.w.Run(context.Background(), nID, "mod-1", chat.CleanupResolveOnly)

	assert.NoError(t, err)
	assert.Equal(t, "3 alerts resolved", summary)
	f.mdb.AssertNotCalled(t, "UpdateMany", mock.Anything, mock.Anything, mock.Anything)
	f.udb.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
	assert.Contains(t, f.hub.actions(), "mod:notification:bulk_resolved")
}

func TestSpamCleanup_DeleteAndMuteOneHour(t *testing.T) {
	f := newCleanup()
	nID := primitive.NewObjectID()
	m1, m2 := primitive.NewObjectID(), primitive.NewObjectID()
	f.ndb.On("FindOne", mock.Anything, bson.M{"_id": nID}).
		Return(spamNotification(nID, []string{m1.Hex(), m2.Hex()}), nil)

	// soft delete of the captured message ids
	f.mdb.On("UpdateMany", mock.Anything, mock.MatchedBy(func(filter bson.M) bool {
		in, ok := filter["_id"].(bson.M)
		if !ok {
			return false
		}
		ids, ok := in["$in"].([]primitive.ObjectID)
		return ok && len(ids) == 2 && filter["caseId"] == "c1"
	}), mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 2, ModifiedCount: 2}, nil)

	// mute stamps the restriction and bumps the strike count
	f.udb.On("UpdateOne", mock.Anything, bson.M{"_id": "u1"}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	f.ndb.On("Find", mock.Anything, mock.Anything).
		Return([]models.ModNotification{*spamNotification(nID, nil)}, nil)
	f.ndb.On("UpdateMany", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)
	f.ldb.On("InsertOne", mock.Anything, mock.AnythingOfType("models.ModerationLogEntry")).
		Return(nil, nil)

	summary, err := f.w.Run(context.Background(), nID, "mod-1", chat.CleanupDeleteMute1h)

	assert.NoError(t, err)
	assert.Equal(t, "2 messages deleted + user muted 1 hour + 1 alerts resolved", summary)
	assert.Contains(t, f.hub.actions(), "chat:messages:deleted")
	assert.Contains(t, f.hub.actions(), "mod:action")
	assert.Contains(t, f.hub.actions(), "mod:notification:bulk_resolved")
}

func TestSpamCleanup_FallbackWindowQuery(t *testing.T) {
	f := newCleanup()
	nID := primitive.NewObjectID()
	n := spamNotification(nID, nil)
	n.Meta.Spam.MessageIDs = nil

	f.ndb.On("FindOne", mock.Anything, bson.M{"_id": nID}).Return(n, nil)

	// detection window query stands in for the missing id list
	burst := []models.ChatMessage{
		{ID: primitive.NewObjectID(), CaseID: "c1", SenderID: "u1"},
		{ID: primitive.NewObjectID(), CaseID: "c1", SenderID: "u1"},
		{ID: primitive.NewObjectID(), CaseID: "c1", SenderID: "u1"},
	}
	f.mdb.On("Find", mock.Anything, mock.MatchedBy(func(filter bson.M) bool {
		return filter["caseId"] == "c1" && filter["senderId"] == "u1"
	})).Return(burst, nil)
	f.mdb.On("UpdateMany", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 3, ModifiedCount: 3}, nil)

	f.ndb.On("Find", mock.Anything, mock.Anything).
		Return([]models.ModNotification{*spamNotification(nID, nil)}, nil)
	f.ndb.On("UpdateMany", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)
	f.ldb.On("InsertOne", mock.Anything, mock.AnythingOfType("models.ModerationLogEntry")).
		Return(nil, nil)

	summary, err := f.w.Run(context.Background(), nID, "mod-1", chat.CleanupDelete)

	assert.NoError(t, err)
	assert.Equal(t, "3 messages deleted + 1 alerts resolved", summary)
}
