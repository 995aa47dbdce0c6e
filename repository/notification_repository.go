package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AmanCH3/hamro-grocery-backend/models"
)

const notificationsCollection = "notifications"

// NotificationRepository stores user-facing notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
}

type MongoNotificationRepository struct {
	collection *mongo.Collection
}

func NewMongoNotificationRepository(db *mongo.Database) *MongoNotificationRepository {
	return &MongoNotificationRepository{collection: db.Collection(notificationsCollection)}
}

// notificationIndexes lists newest-first per user.
func notificationIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("user_created"),
	}}
}

// EnsureIndexes creates the per-user listing index.
func (r *MongoNotificationRepository) EnsureIndexes(ctx context.Context) error {
	if _, err := r.collection.Indexes().CreateMany(ctx, notificationIndexes()); err != nil {
		return fmt.Errorf("create notification index: %w", err)
	}
	return nil
}

func (r *MongoNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	res, err := r.collection.InsertOne(ctx, n)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		n.ID = id
	}
	return nil
}

// NoopNotificationRepository discards notifications when no document store
// is configured.
type NoopNotificationRepository struct{}

func (NoopNotificationRepository) Create(context.Context, *models.Notification) error { return nil }
