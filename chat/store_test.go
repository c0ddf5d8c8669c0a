package chat_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/amberline/amberline-api/chat"
	"github.com/amberline/amberline-api/databases/mocks"
	"github.com/amberline/amberline-api/models"
)

func openCase(id string) *models.Case {
	return &models.Case{
		ID: id,
		Details: models.CaseDetails{
			Title:      "Missing person: J. Doe",
			ChatStatus: models.ChatStatusOpen,
		},
	}
}

func plainUser(id string) *models.User {
	return &models.User{
		ID: id,
		Details: models.UserDetails{
			Username: "jdoe",
			Role:     models.RoleUser,
		},
	}
}

func newStore(mdb *mocks.MessageDatabase, udb *mocks.UserDatabase, cdb *mocks.CaseDatabase) *chat.MessageStore {
	return &chat.MessageStore{MDB: mdb, UDB: udb, CDB: cdb}
}

func TestAdmit_Validation(t *testing.T) {
	s := newStore(&mocks.MessageDatabase{}, &mocks.UserDatabase{}, &mocks.CaseDatabase{})

	_, err := s.Admit(context.Background(), "", "u1", "hello", "", nil)
	var validation *chat.ValidationError
	assert.ErrorAs(t, err, &validation)
	assert.Equal(t, "caseId", validation.Field)

	_, err = s.Admit(context.Background(), "c1", "u1", "", "", nil)
	assert.ErrorAs(t, err, &validation)
	assert.Equal(t, "content", validation.Field)

	_, err = s.Admit(context.Background(), "c1", "u1", strings.Repeat("x", 2001), "", nil)
	assert.ErrorAs(t, err, &validation)
	assert.Equal(t, "too long", validation.Message)

	_, err = s.Admit(context.Background(), "c1", "u1", "hello", "video", nil)
	assert.ErrorAs(t, err, &validation)
	assert.Equal(t, "type", validation.Field)
}

func TestAdmit_UnknownSender(t *testing.T) {
	udb := &mocks.UserDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)

	s := newStore(&mocks.MessageDatabase{}, udb, &mocks.CaseDatabase{})
	_, err := s.Admit(context.Background(), "c1", "ghost", "hello", "", nil)

	var notFound *chat.NotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, "user", notFound.Resource)
}

func TestAdmit_MutedUserRejected(t *testing.T) {
	until := time.Now().Add(30 * time.Minute)
	user := plainUser("u1")
	user.Details.ChatMuteUntil = &until
	user.Details.ChatMuteReason = "spamming"

	udb := &mocks.UserDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).Return(user, nil)
	cdb := &mocks.CaseDatabase{}
	cdb.On("FindOne", mock.Anything, mock.Anything).Return(openCase("c1"), nil)

	s := newStore(&mocks.MessageDatabase{}, udb, cdb)
	_, err := s.Admit(context.Background(), "c1", "u1", "hello", "", nil)

	var restriction *chat.RestrictionError
	assert.ErrorAs(t, err, &restriction)
	assert.Equal(t, chat.RestrictionMuted, restriction.Kind)
	assert.Equal(t, "spamming", restriction.Reason)
	assert.NotNil(t, restriction.Until)
}

func TestAdmit_BanOutranksMute(t *testing.T) {
	until := time.Now().Add(time.Hour)
	user := plainUser("u1")
	user.Details.ChatMuteUntil = &until
	user.Details.BanPermanent = true
	user.Details.BanReason = "repeat offender"

	udb := &mocks.UserDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).Return(user, nil)
	cdb := &mocks.CaseDatabase{}
	cdb.On("FindOne", mock.Anything, mock.Anything).Return(openCase("c1"), nil)

	s := newStore(&mocks.MessageDatabase{}, udb, cdb)
	_, err := s.Admit(context.Background(), "c1", "u1", "hello", "", nil)

	var restriction *chat.RestrictionError
	assert.ErrorAs(t, err, &restriction)
	assert.Equal(t, chat.RestrictionBanned, restriction.Kind)
	assert.True(t, restriction.Permanent)
}

func TestAdmit_ClosedChatRejectsRegularUser(t *testing.T) {
	caseDoc := openCase("c1")
	caseDoc.Details.ChatStatus = models.ChatStatusClosed

	udb := &mocks.UserDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).Return(plainUser("u1"), nil)
	cdb := &mocks.CaseDatabase{}
	cdb.On("FindOne", mock.Anything, mock.Anything).Return(caseDoc, nil)

	s := newStore(&mocks.MessageDatabase{}, udb, cdb)
	_, err := s.Admit(context.Background(), "c1", "u1", "hello", "", nil)

	var restriction *chat.RestrictionError
	assert.ErrorAs(t, err, &restriction)
	assert.Equal(t, chat.RestrictionClosed, restriction.Kind)
}

func TestAdmit_StaffBypassesClosedChat(t *testing.T) {
	caseDoc := openCase("c1")
	caseDoc.Details.ChatStatus = models.ChatStatusClosed
	moderator := plainUser("m1")
	moderator.Details.Role = models.RoleModerator
	moderator.Details.Name = "Sgt. Kim"

	udb := &mocks.UserDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).Return(moderator, nil)
	cdb := &mocks.CaseDatabase{}
	cdb.On("FindOne", mock.Anything, mock.Anything).Return(caseDoc, nil)
	mdb := &mocks.MessageDatabase{}
	mdb.On("InsertOne", mock.Anything, mock.AnythingOfType("models.ChatMessage")).Return(nil, nil)

	s := newStore(mdb, udb, cdb)
	msg, err := s.Admit(context.Background(), "c1", "m1", "status update", "", nil)

	assert.NoError(t, err)
	assert.Equal(t, models.MessageStatusActive, msg.Status)
	assert.Equal(t, "Sgt. Kim", msg.SenderName)
	assert.Equal(t, models.RoleModerator, msg.SenderRole)
	assert.Equal(t, []string{"m1"}, msg.ReadBy)
	mdb.AssertCalled(t, "InsertOne", mock.Anything, mock.AnythingOfType("models.ChatMessage"))
}

func TestAdmit_SlowmodeCooldownRejects(t *testing.T) {
	caseDoc := openCase("c1")
	caseDoc.Details.ChatStatus = models.ChatStatusSlowmode
	caseDoc.Details.SlowmodeSeconds = 60

	last := models.ChatMessage{
		ID:        primitive.NewObjectID(),
		CreatedAt: primitive.NewDateTimeFromTime(time.Now().Add(-10 * time.Second)),
	}

	udb := &mocks.UserDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).Return(plainUser("u1"), nil)
	cdb := &mocks.CaseDatabase{}
	cdb.On("FindOne", mock.Anything, mock.Anything).Return(caseDoc, nil)
	mdb := &mocks.MessageDatabase{}
	mdb.On("Find", mock.Anything, mock.Anything, mock.Anything).Return([]models.ChatMessage{last}, nil)

	s := newStore(mdb, udb, cdb)
	_, err := s.Admit(context.Background(), "c1", "u1", "hello again", "", nil)

	var restriction *chat.RestrictionError
	assert.ErrorAs(t, err, &restriction)
	assert.Equal(t, chat.RestrictionSlowmode, restriction.Kind)
	assert.NotNil(t, restriction.Until)
	assert.True(t, restriction.Until.After(time.Now()))
}

func TestAdmit_SlowmodeElapsedAdmits(t *testing.T) {
	caseDoc := openCase("c1")
	caseDoc.Details.ChatStatus = models.ChatStatusSlowmode
	caseDoc.Details.SlowmodeSeconds = 60

	last := models.ChatMessage{
		ID:        primitive.NewObjectID(),
		CreatedAt: primitive.NewDateTimeFromTime(time.Now().Add(-2 * time.Minute)),
	}

	udb := &mocks.UserDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).Return(plainUser("u1"), nil)
	cdb := &mocks.CaseDatabase{}
	cdb.On("FindOne", mock.Anything, mock.Anything).Return(caseDoc, nil)
	mdb := &mocks.MessageDatabase{}
	mdb.On("Find", mock.Anything, mock.Anything, mock.Anything).Return([]models.ChatMessage{last}, nil)
	mdb.On("InsertOne", mock.Anything, mock.AnythingOfType("models.ChatMessage")).Return(nil, nil)

	s := newStore(mdb, udb, cdb)
	msg, err := s.Admit(context.Background(), "c1", "u1", "hello again", "", nil)

	assert.NoError(t, err)
	assert.NotNil(t, msg)
}

func TestList_SanitizesDeletedForRegularViewer(t *testing.T) {
	older := models.ChatMessage{
		ID:        primitive.NewObjectID(),
		Content:   "first",
		Status:    models.MessageStatusActive,
		CreatedAt: primitive.NewDateTimeFromTime(time.Now().Add(-2 * time.Minute)),
	}
	deleted := models.ChatMessage{
		ID:        primitive.NewObjectID(),
		Content:   "something awful",
		Metadata:  map[string]interface{}{"edited": true},
		Status:    models.MessageStatusDeleted,
		CreatedAt: primitive.NewDateTimeFromTime(time.Now().Add(-time.Minute)),
	}

	mdb := &mocks.MessageDatabase{}
	// store queries newest-first
	mdb.On("Find", mock.Anything, mock.Anything, mock.Anything).Return([]models.ChatMessage{deleted, older}, nil)

	s := newStore(mdb, &mocks.UserDatabase{}, &mocks.CaseDatabase{})
	msgs, err := s.List(context.Background(), "c1", nil, 50, false)

	assert.NoError(t, err)
	assert.Len(t, msgs, 2)
	// chronological order restored
	assert.Equal(t, "first", msgs[0].Content)
	assert.Empty(t, msgs[1].Content)
	assert.Nil(t, msgs[1].Metadata)
	assert.True(t, msgs[1].Sanitized)
}

func TestList_StaffSeeDeletedContent(t *testing.T) {
	deleted := models.ChatMessage{
		ID:      primitive.NewObjectID(),
		Content: "something awful",
		Status:  models.MessageStatusDeleted,
	}

	mdb := &mocks.MessageDatabase{}
	mdb.On("Find", mock.Anything, mock.Anything, mock.Anything).Return([]models.ChatMessage{deleted}, nil)

	s := newStore(mdb, &mocks.UserDatabase{}, &mocks.CaseDatabase{})
	msgs, err := s.List(context.Background(), "c1", nil, 50, true)

	assert.NoError(t, err)
	assert.Equal(t, "something awful", msgs[0].Content)
	assert.False(t, msgs[0].Sanitized)
}

func TestMarkRead_CountsTouchedMessages(t *testing.T) {
	mdb := &mocks.MessageDatabase{}
	mdb.On("UpdateMany", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 3, ModifiedCount: 3}, nil)

	s := newStore(mdb, &mocks.UserDatabase{}, &mocks.CaseDatabase{})
	n, err := s.MarkRead(context.Background(), "c1", "u1")

	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestSoftDelete_EmptyBatchIsNoop(t *testing.T) {
	mdb := &mocks.MessageDatabase{}
	s := newStore(mdb, &mocks.UserDatabase{}, &mocks.CaseDatabase{})

	n, err := s.SoftDelete(context.Background(), nil, "c1", "m1", "spam")

	assert.NoError(t, err)
	assert.Zero(t, n)
	mdb.AssertNotCalled(t, "UpdateMany", mock.Anything, mock.Anything, mock.Anything)
}

func TestSoftDelete_OnlyActiveMessagesCount(t *testing.T) {
	mdb := &mocks.MessageDatabase{}
	mdb.On("UpdateMany", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 2, ModifiedCount: 2}, nil)

	s := newStore(mdb, &mocks.UserDatabase{}, &mocks.CaseDatabase{})
	ids := []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()}
	n, err := s.SoftDelete(context.Background(), ids, "c1", "m1", "spam")

	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
