package databases

// go generate: mockery --name ModNotificationDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/amberline/amberline-api/models"
)

const modNotificationName = "mod_notifications"

// ModNotificationDatabase contains the methods to use with the mod notification database
type ModNotificationDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.ModNotification, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.ModNotification, error)
	InsertOne(ctx context.Context, notification models.ModNotification, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

type modNotificationDatabase struct {
	db DatabaseHelper
}

// NewModNotificationDatabase initializes a new instance of mod notification database with the provided db connection
func NewModNotificationDatabase(db DatabaseHelper) ModNotificationDatabase {
	return &modNotificationDatabase{
		db: db,
	}
}

func (m *modNotificationDatabase) FindOne(ctx context.Context, filter interface{}) (*models.ModNotification, error) {
	notification := &models.ModNotification{}
	err := m.db.Collection(modNotificationName).FindOne(ctx, filter).Decode(&notification)
	if err != nil {
		return nil, err
	}
	return notification, nil
}

func (m *modNotificationDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.ModNotification, error) {
	var notifications []models.ModNotification
	cr, err := m.db.Collection(modNotificationName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&notifications)
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (m *modNotificationDatabase) InsertOne(ctx context.Context, notification models.ModNotification, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return m.db.Collection(modNotificationName).InsertOne(ctx, notification, opts...)
}

func (m *modNotificationDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return m.db.Collection(modNotificationName).UpdateOne(ctx, filter, update, opts...)
}

func (m *modNotificationDatabase) UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return m.db.Collection(modNotificationName).UpdateMany(ctx, filter, update, opts...)
}

func (m *modNotificationDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return m.db.Collection(modNotificationName).CountDocuments(ctx, filter, opts...)
}
