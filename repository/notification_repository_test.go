package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AmanCH3/hamro-grocery-backend/models"
)

func TestNoopNotificationRepository_Create(t *testing.T) {
	var repo NotificationRepository = NoopNotificationRepository{}
	n := &models.Notification{UserID: "u-1", Message: "Payment successful!"}

	require.NoError(t, repo.Create(context.Background(), n))
	assert.True(t, n.ID.IsZero())
	assert.True(t, n.CreatedAt.IsZero())
}

func TestNotificationIndexes(t *testing.T) {
	indexes := notificationIndexes()
	require.Len(t, indexes, 1)

	keys, ok := indexes[0].Keys.(bson.D)
	require.True(t, ok)
	assert.Equal(t, bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}, keys)

	require.NotNil(t, indexes[0].Options)
	require.NotNil(t, indexes[0].Options.Name)
	assert.Equal(t, "user_created", *indexes[0].Options.Name)
	assert.Nil(t, indexes[0].Options.Unique)
}

// unreachableDB returns a database handle whose server never answers.
func unreachableDB(t *testing.T) *mongo.Database {
	t.Helper()
	client, err := mongo.Connect(context.Background(), options.Client().
		ApplyURI("mongodb://127.0.0.1:1").
		SetServerSelectionTimeout(50*time.Millisecond).
		SetConnectTimeout(50*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	return client.Database("hamro_test")
}

func TestMongoNotificationRepository_UsesNotificationsCollection(t *testing.T) {
	repo := NewMongoNotificationRepository(unreachableDB(t))

	assert.Equal(t, "notifications", repo.collection.Name())
	assert.Equal(t, "hamro_test", repo.collection.Database().Name())
}

func TestMongoNotificationRepository_CreateWrapsStoreErrors(t *testing.T) {
	repo := NewMongoNotificationRepository(unreachableDB(t))
	n := &models.Notification{UserID: "u-1", Message: "Payment successful!"}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := repo.Create(ctx, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert notification")
	assert.False(t, n.CreatedAt.IsZero(), "timestamp is stamped before the insert")
	assert.True(t, n.ID.IsZero())

	err = repo.EnsureIndexes(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create notification index")
}
