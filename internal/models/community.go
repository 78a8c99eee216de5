package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Community is read from MongoDB to render admin-post and invite text
type Community struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	MemberIDs []string           `json:"member_ids,omitempty" bson:"member_ids,omitempty"`
}

// CommunityGroup is a group inside a community
type CommunityGroup struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	CommunityID string             `json:"community_id" bson:"community_id"`
	Title       string             `json:"title" bson:"title"`
}
