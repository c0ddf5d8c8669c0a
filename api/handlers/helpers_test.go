package handlers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/amberline/amberline-api/api"
	"github.com/amberline/amberline-api/databases/mocks"
	"github.com/amberline/amberline-api/models"
)

func authedRequest(t *testing.T, method, target, body, actorID string) *http.Request {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer abc123")
	if actorID != "" {
		req = api.WithActor(req, actorID)
	}
	return req
}

func staffUserDB(id string) *mocks.UserDatabase {
	udb := &mocks.UserDatabase{}
	udb.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(&models.User{
		ID:      id,
		Details: models.UserDetails{Name: "Sgt. Kim", Role: models.RoleModerator},
	}, nil)
	return udb
}

func regularUserDB(id string) *mocks.UserDatabase {
	udb := &mocks.UserDatabase{}
	udb.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(&models.User{
		ID:      id,
		Details: models.UserDetails{Name: "Dana", Role: models.RoleUser},
	}, nil)
	return udb
}
