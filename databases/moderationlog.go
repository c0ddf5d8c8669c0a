package databases

// go generate: mockery --name ModerationLogDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/amberline/amberline-api/models"
)

const moderationLogName = "moderation_log"

// ModerationLogDatabase contains the methods to use with the moderation log
// database. The collection is append-only, so no update or delete methods exist.
type ModerationLogDatabase interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.ModerationLogEntry, error)
	InsertOne(ctx context.Context, entry models.ModerationLogEntry, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

type moderationLogDatabase struct {
	db DatabaseHelper
}

// NewModerationLogDatabase initializes a new instance of moderation log database with the provided db connection
func NewModerationLogDatabase(db DatabaseHelper) ModerationLogDatabase {
	return &moderationLogDatabase{
		db: db,
	}
}

func (m *moderationLogDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.ModerationLogEntry, error) {
	var entries []models.ModerationLogEntry
	cr, err := m.db.Collection(moderationLogName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&entries)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (m *moderationLogDatabase) InsertOne(ctx context.Context, entry models.ModerationLogEntry, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return m.db.Collection(moderationLogName).InsertOne(ctx, entry, opts...)
}

func (m *moderationLogDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return m.db.Collection(moderationLogName).CountDocuments(ctx, filter, opts...)
}
