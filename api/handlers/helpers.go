package handlers

import (
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/amberline/amberline-api/api"
	"github.com/amberline/amberline-api/chat"
	"github.com/amberline/amberline-api/config"
	"github.com/amberline/amberline-api/databases"
	"github.com/amberline/amberline-api/models"
)

// actor loads the authenticated user stored by the auth middleware
func actor(r *http.Request, udb databases.UserDatabase) (*models.User, error) {
	id := api.ActorID(r)
	if id == "" {
		return nil, errors.New("missing authenticated user")
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	return udb.FindOne(ctx, bson.M{"_id": id})
}

// requireStaff rejects the request unless the actor holds a moderator or
// admin role. Returns nil after writing the response when rejected.
func requireStaff(w http.ResponseWriter, r *http.Request, udb databases.UserDatabase) *models.User {
	user, err := actor(r, udb)
	if err != nil {
		config.ErrorStatus("failed to get acting user", http.StatusUnauthorized, w, err)
		return nil
	}
	if !user.IsStaff() {
		config.ErrorStatus("staff role required", http.StatusForbidden, w, errors.New("forbidden"))
		return nil
	}
	return user
}

// chatErrorStatus maps chat service errors onto HTTP statuses
func chatErrorStatus(message string, w http.ResponseWriter, err error) {
	var validation *chat.ValidationError
	var notFound *chat.NotFoundError
	var restriction *chat.RestrictionError
	switch {
	case errors.As(err, &validation):
		config.ErrorStatus(message, http.StatusBadRequest, w, err)
	case errors.As(err, &notFound):
		config.ErrorStatus(message, http.StatusNotFound, w, err)
	case errors.As(err, &restriction):
		config.ErrorStatus(message, http.StatusForbidden, w, err)
	default:
		config.ErrorStatus(message, http.StatusInternalServerError, w, err)
	}
}
