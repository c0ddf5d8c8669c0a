package databases

// go generate: mockery --name MessageReportDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/amberline/amberline-api/models"
)

const messageReportName = "message_reports"

// MessageReportDatabase contains the methods to use with the message report database
type MessageReportDatabase interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.MessageReport, error)
	InsertOne(ctx context.Context, report models.MessageReport, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

type messageReportDatabase struct {
	db DatabaseHelper
}

// NewMessageReportDatabase initializes a new instance of message report database with the provided db connection
func NewMessageReportDatabase(db DatabaseHelper) MessageReportDatabase {
	return &messageReportDatabase{
		db: db,
	}
}

func (m *messageReportDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.MessageReport, error) {
	var reports []models.MessageReport
	cr, err := m.db.Collection(messageReportName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&reports)
	if err != nil {
		return nil, err
	}
	return reports, nil
}

func (m *messageReportDatabase) InsertOne(ctx context.Context, report models.MessageReport, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return m.db.Collection(messageReportName).InsertOne(ctx, report, opts...)
}

func (m *messageReportDatabase) UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return m.db.Collection(messageReportName).UpdateMany(ctx, filter, update, opts...)
}

func (m *messageReportDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return m.db.Collection(messageReportName).CountDocuments(ctx, filter, opts...)
}
