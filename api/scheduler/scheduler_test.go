package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/amberline/amberline-api/config"
	"github.com/amberline/amberline-api/databases/mocks"
)

func TestNewScheduler(t *testing.T) {
	s := NewScheduler(&config.Config{}, &mocks.UserDatabase{}, &mocks.ModNotificationDatabase{})
	assert.NotEmpty(t, s)
}

func TestSweepLapsedRestrictions(t *testing.T) {
	udb := &mocks.UserDatabase{}
	udb.On("UpdateMany", mock.Anything, mock.MatchedBy(func(filter bson.M) bool {
		_, ok := filter["user.chatMuteUntil"]
		return ok
	}), mock.MatchedBy(func(update bson.M) bool {
		unset, ok := update["$unset"].(bson.M)
		if !ok {
			return false
		}
		_, hasReason := unset["user.chatMuteReason"]
		return hasReason
	})).Return(&mongo.UpdateResult{MatchedCount: 2, ModifiedCount: 2}, nil).Once()
	udb.On("UpdateMany", mock.Anything, mock.MatchedBy(func(filter bson.M) bool {
		_, ok := filter["user.bannedUntil"]
		return ok
	}), mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil).Once()

	s := NewScheduler(&config.Config{}, udb, &mocks.ModNotificationDatabase{})
	s.sweepLapsedRestrictions()

	udb.AssertExpectations(t)
}

func TestSweepNeverTouchesPermanentBans(t *testing.T) {
	udb := &mocks.UserDatabase{}
	udb.On("UpdateMany", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{}, nil).Once()
	udb.On("UpdateMany", mock.Anything, mock.MatchedBy(func(filter bson.M) bool {
		perm, ok := filter["user.banPermanent"].(bson.M)
		return ok && perm["$ne"] == true
	}), mock.Anything).Return(&mongo.UpdateResult{}, nil).Once()

	s := NewScheduler(&config.Config{}, udb, &mocks.ModNotificationDatabase{})
	s.sweepLapsedRestrictions()

	udb.AssertExpectations(t)
}

func TestEscalateSkipsWithoutAlertEmail(t *testing.T) {
	ndb := &mocks.ModNotificationDatabase{}

	s := NewScheduler(&config.Config{}, &mocks.UserDatabase{}, ndb)
	s.escalateCriticalAlerts()

	ndb.AssertNotCalled(t, "Find", mock.Anything, mock.Anything)
}

func TestEscalateSkipsWhenNothingFresh(t *testing.T) {
	ndb := &mocks.ModNotificationDatabase{}
	ndb.On("Find", mock.Anything, mock.Anything).Return(nil, nil)

	s := NewScheduler(&config.Config{ModAlertEmail: "mods@amberline.org"}, &mocks.UserDatabase{}, ndb)
	s.escalateCriticalAlerts()

	ndb.AssertNotCalled(t, "UpdateMany", mock.Anything, mock.Anything, mock.Anything)
}
