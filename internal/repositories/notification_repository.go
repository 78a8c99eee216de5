package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/anonto42/nano-midea/notifications/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NotificationRepository defines the persistence contract of the aggregation pipeline
type NotificationRepository interface {
	FindByMergeKey(ctx context.Context, key models.MergeKey) (*models.Notification, error)
	Create(ctx context.Context, notification *models.Notification) error
	CreateMany(ctx context.Context, notifications []*models.Notification) error
	CompareAndSwap(ctx context.Context, notification *models.Notification, expectedVersion int64) error
}

// MongoNotificationRepository implements NotificationRepository for MongoDB
type MongoNotificationRepository struct {
	collection *mongo.Collection
}

// NewMongoNotificationRepository creates a new MongoNotificationRepository
func NewMongoNotificationRepository(db *mongo.Database) *MongoNotificationRepository {
	return &MongoNotificationRepository{collection: db.Collection("notifications")}
}

// EnsureIndexes creates the unique merge-key index and the lookup index
func (r *MongoNotificationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "mergeKey", Value: 1}},
			Options: options.Index().
				SetName("uniq_merge_key").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"mergeKey": bson.M{"$exists": true}}),
		},
		{
			Keys:    bson.D{{Key: "receiverId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("receiver_recent"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create notification indexes: %w", err)
	}
	return nil
}

// FindByMergeKey returns the aggregated record for a merge key
func (r *MongoNotificationRepository) FindByMergeKey(ctx context.Context, key models.MergeKey) (*models.Notification, error) {
	var notification models.Notification
	err := r.collection.FindOne(ctx, bson.M{"mergeKey": key.String()}).Decode(&notification)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find notification: %w", err)
	}
	return &notification, nil
}

// Create inserts a new record. A duplicate merge key reports models.ErrConflict.
func (r *MongoNotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID.IsZero() {
		notification.ID = primitive.NewObjectID()
	}
	if _, err := r.collection.InsertOne(ctx, notification); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("merge key %q: %w", notification.MergeKey, models.ErrConflict)
		}
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// CreateMany inserts all records with a single bulk write
func (r *MongoNotificationRepository) CreateMany(ctx context.Context, notifications []*models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	docs := make([]interface{}, len(notifications))
	for i, n := range notifications {
		if n.ID.IsZero() {
			n.ID = primitive.NewObjectID()
		}
		docs[i] = n
	}
	if _, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to bulk create notifications: %w", err)
	}
	return nil
}

// CompareAndSwap writes the aggregation fields only if the stored version still
// equals expectedVersion. isRead and status are left untouched.
func (r *MongoNotificationRepository) CompareAndSwap(ctx context.Context, notification *models.Notification, expectedVersion int64) error {
	filter := bson.M{"_id": notification.ID, "version": expectedVersion}
	update := bson.M{
		"$set": bson.M{
			"senderId":       notification.SenderID,
			"message":        notification.Message,
			"actorAggregate": notification.ActorAggregate,
			"createdAt":      notification.CreatedAt,
			"version":        notification.Version,
		},
	}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("notification %s at version %d: %w", notification.ID.Hex(), expectedVersion, models.ErrConflict)
	}
	return nil
}
