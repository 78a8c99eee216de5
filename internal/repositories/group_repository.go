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

// GroupRepository reads community and group documents owned by the membership service
type GroupRepository interface {
	GetCommunity(ctx context.Context, id string) (*models.Community, error)
	GetGroup(ctx context.Context, id string) (*models.CommunityGroup, error)
}

// MongoGroupRepository implements GroupRepository for MongoDB
type MongoGroupRepository struct {
	communities *mongo.Collection
	groups      *mongo.Collection
}

func NewMongoGroupRepository(db *mongo.Database) *MongoGroupRepository {
	return &MongoGroupRepository{
		communities: db.Collection("communities"),
		groups:      db.Collection("community_groups"),
	}
}

func (r *MongoGroupRepository) GetCommunity(ctx context.Context, id string) (*models.Community, error) {
	var community models.Community
	if err := findByHexID(ctx, r.communities, id, &community); err != nil {
		return nil, fmt.Errorf("community %s: %w", id, err)
	}
	return &community, nil
}

func (r *MongoGroupRepository) GetGroup(ctx context.Context, id string) (*models.CommunityGroup, error) {
	var group models.CommunityGroup
	opts := options.FindOne().SetProjection(bson.M{"title": 1, "community_id": 1})
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid group ID format: %w", err)
	}
	if err := r.groups.FindOne(ctx, bson.M{"_id": objID}, opts).Decode(&group); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("group %s: %w", id, models.ErrNotFound)
		}
		return nil, err
	}
	return &group, nil
}

func findByHexID(ctx context.Context, c *mongo.Collection, id string, out interface{}) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid ID format: %w", err)
	}
	if err := c.FindOne(ctx, bson.M{"_id": objID}).Decode(out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.ErrNotFound
		}
		return err
	}
	return nil
}
