package databases_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/amberline/amberline-api/config"
	"github.com/amberline/amberline-api/databases"
	"github.com/amberline/amberline-api/databases/mocks"
	"github.com/amberline/amberline-api/models"
)

func TestNewMessageDatabase(t *testing.T) {
	os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	os.Setenv("DB_NAME", "test")
	conf := config.New()

	dbClient, err := databases.NewClient(conf)
	assert.NoError(t, err)

	db := databases.NewDatabase(conf, dbClient)

	messageDB := databases.NewMessageDatabase(db)

	assert.NotEmpty(t, messageDB)
}

func TestMessageDatabase_FindOne(t *testing.T) {

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var srHelperErr databases.SingleResultHelper
	var srHelperCorrect databases.SingleResultHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	srHelperErr = &mocks.SingleResultHelper{}
	srHelperCorrect = &mocks.SingleResultHelper{}

	srHelperErr.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(errors.New("mocked-error"))

	srHelperCorrect.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.ChatMessage)
		(*arg).Content = "mocked-message"
	})

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": true}).
		Return(srHelperErr)

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": false}).
		Return(srHelperCorrect)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "messages").Return(collectionHelper)

	// Create new database with mocked Database interface
	messageDba := databases.NewMessageDatabase(dbHelper)

	// Call method with defined filter, that in our mocked function returns
	// mocked-error
	message, err := messageDba.FindOne(context.Background(), bson.M{"error": true})

	assert.Empty(t, message)
	assert.EqualError(t, err, "mocked-error")

	// Now call the same function with different different filter for correct
	// result
	message, err = messageDba.FindOne(context.Background(), bson.M{"error": false})

	assert.Equal(t, "mocked-message", message.Content)
	assert.NoError(t, err)
}

func TestMessageDatabase_Find(t *testing.T) {

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var crHelperCorrect databases.CursorHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	crHelperCorrect = &mocks.CursorHelper{}

	crHelperCorrect.(*mocks.CursorHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.ChatMessage)
		(*arg) = []models.ChatMessage{{Content: "mocked-message"}}
	})

	collectionHelper.(*mocks.CollectionHelper).
		On("Find", context.Background(), bson.M{"error": true}).
		Return(nil, errors.New("mocked-error"))

	collectionHelper.(*mocks.CollectionHelper).
		On("Find", context.Background(), bson.M{"error": false}).
		Return(crHelperCorrect, nil)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "messages").Return(collectionHelper)

	// Create new database with mocked Database interface
	messageDba := databases.NewMessageDatabase(dbHelper)

	// Call method with defined filter, that in our mocked function returns
	// mocked-error
	messages, err := messageDba.Find(context.Background(), bson.M{"error": true})

	assert.Empty(t, messages)
	assert.EqualError(t, err, "mocked-error")

	// Now call the same function with different different filter for correct
	// result
	messages, err = messageDba.Find(context.Background(), bson.M{"error": false})

	assert.Equal(t, []models.ChatMessage{{Content: "mocked-message"}}, messages)
	assert.NoError(t, err)
}

func TestMessageDatabase_UpdateMany(t *testing.T) {

	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper

	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}

	collectionHelper.(*mocks.CollectionHelper).
		On("UpdateMany", context.Background(), bson.M{"error": true}, mock.Anything).
		Return(nil, errors.New("mocked-error"))

	collectionHelper.(*mocks.CollectionHelper).
		On("UpdateMany", context.Background(), bson.M{"error": false}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 2, ModifiedCount: 2}, nil)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "messages").Return(collectionHelper)

	messageDba := databases.NewMessageDatabase(dbHelper)

	res, err := messageDba.UpdateMany(context.Background(), bson.M{"error": true}, bson.M{"$set": bson.M{"status": "deleted"}})

	assert.Nil(t, res)
	assert.EqualError(t, err, "mocked-error")

	res, err = messageDba.UpdateMany(context.Background(), bson.M{"error": false}, bson.M{"$set": bson.M{"status": "deleted"}})

	assert.NoError(t, err)
	assert.Equal(t, int64(2), res.ModifiedCount)
}

func TestMessageDatabase_CountDocuments(t *testing.T) {

	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper

	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}

	collectionHelper.(*mocks.CollectionHelper).
		On("CountDocuments", context.Background(), bson.M{"caseId": "case-1"}).
		Return(int64(5), nil)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "messages").Return(collectionHelper)

	messageDba := databases.NewMessageDatabase(dbHelper)

	count, err := messageDba.CountDocuments(context.Background(), bson.M{"caseId": "case-1"})

	assert.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestMessageDatabase_InsertOne(t *testing.T) {

	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper

	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}

	msg := models.ChatMessage{
		ID:        primitive.NewObjectID(),
		CaseID:    "case-1",
		SenderID:  "u1",
		Content:   "we found her jacket near the trailhead",
		Status:    models.MessageStatusActive,
		CreatedAt: primitive.NewDateTimeFromTime(time.Now()),
	}

	collectionHelper.(*mocks.CollectionHelper).
		On("InsertOne", context.Background(), msg).
		Return(nil, errors.New("mocked-error"))

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "messages").Return(collectionHelper)

	messageDba := databases.NewMessageDatabase(dbHelper)

	_, err := messageDba.InsertOne(context.Background(), msg)

	assert.EqualError(t, err, "mocked-error")
}
