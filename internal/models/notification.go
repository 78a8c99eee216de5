package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationType is the closed set of notification kinds stored in MongoDB
type NotificationType string

const (
	TypeFollow                    NotificationType = "FOLLOW"
	TypeUnfollow                  NotificationType = "UNFOLLOW"
	TypeReactedToPost             NotificationType = "REACTED_TO_POST"
	TypeReactedToCommunityPost    NotificationType = "REACTED_TO_COMMUNITY_POST"
	TypeComment                   NotificationType = "COMMENT"
	TypeCommunityComment          NotificationType = "COMMUNITY_COMMENT"
	TypeRepliedToComment          NotificationType = "REPLIED_TO_COMMENT"
	TypeRepliedToCommunityComment NotificationType = "REPLIED_TO_COMMUNITY_COMMENT"
	TypeGroupInvite               NotificationType = "GROUP_INVITE"
	TypeCommunityAdminPost        NotificationType = "COMMUNITY_ADMIN_POST"
	TypeGroupRequestAccepted      NotificationType = "GROUP_REQUEST_ACCEPTED"
	TypeGroupRequestRejected      NotificationType = "GROUP_REQUEST_REJECTED"
)

// MaxRecentActors bounds ActorAggregate.RecentActors
const MaxRecentActors = 5

// IsAggregated reports whether records of this type merge by key
func (t NotificationType) IsAggregated() bool {
	switch t {
	case TypeReactedToPost, TypeReactedToCommunityPost,
		TypeComment, TypeCommunityComment,
		TypeRepliedToComment, TypeRepliedToCommunityComment:
		return true
	}
	return false
}

// IsReaction reports whether a repeated actor undoes the interaction
func (t NotificationType) IsReaction() bool {
	return t == TypeReactedToPost || t == TypeReactedToCommunityPost
}

// TargetRefs scopes a record's identity for lookup and merge
type TargetRefs struct {
	UserPostID       string `json:"userPostId,omitempty" bson:"userPostId,omitempty"`
	CommunityID      string `json:"communityId,omitempty" bson:"communityId,omitempty"`
	CommunityPostID  string `json:"communityPostId,omitempty" bson:"communityPostId,omitempty"`
	CommunityGroupID string `json:"communityGroupId,omitempty" bson:"communityGroupId,omitempty"`
	ParentCommentID  string `json:"parentCommentId,omitempty" bson:"parentCommentId,omitempty"`
}

// Map returns the non-empty refs keyed by their wire names
func (r TargetRefs) Map() map[string]string {
	m := make(map[string]string, 5)
	if r.UserPostID != "" {
		m["userPostId"] = r.UserPostID
	}
	if r.CommunityID != "" {
		m["communityId"] = r.CommunityID
	}
	if r.CommunityPostID != "" {
		m["communityPostId"] = r.CommunityPostID
	}
	if r.CommunityGroupID != "" {
		m["communityGroupId"] = r.CommunityGroupID
	}
	if r.ParentCommentID != "" {
		m["parentCommentId"] = r.ParentCommentID
	}
	return m
}

// MergeKey identifies which events aggregate into the same record
type MergeKey struct {
	ReceiverID string
	Type       NotificationType
	Refs       TargetRefs
}

// String flattens the key into the value stored in the unique mergeKey index.
// Every ref slot is always present so that different ref combinations never collide.
func (k MergeKey) String() string {
	return strings.Join([]string{
		k.ReceiverID,
		string(k.Type),
		k.Refs.UserPostID,
		k.Refs.CommunityID,
		k.Refs.CommunityPostID,
		k.Refs.CommunityGroupID,
		k.Refs.ParentCommentID,
	}, "|")
}

// ActorEntry is one actor in an aggregated notification
type ActorEntry struct {
	ActorID      string `json:"actorId" bson:"actorId"`
	AuxiliaryRef string `json:"auxiliaryRef,omitempty" bson:"auxiliaryRef,omitempty"`
}

// ActorAggregate holds the bounded, most-recent-first actor list
type ActorAggregate struct {
	TotalCount   int          `json:"totalCount" bson:"totalCount"`
	RecentActors []ActorEntry `json:"recentActors" bson:"recentActors"`
}

// Notification represents a persisted notification record (MongoDB)
type Notification struct {
	ID             primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	SenderID       string             `json:"senderId" bson:"senderId"`
	ReceiverID     string             `json:"receiverId" bson:"receiverId"`
	Type           NotificationType   `json:"type" bson:"type"`
	TargetRefs     TargetRefs         `json:"targetRefs" bson:"targetRefs"`
	MergeKey       string             `json:"-" bson:"mergeKey,omitempty"`
	Message        string             `json:"message" bson:"message"`
	IsRead         bool               `json:"isRead" bson:"isRead"`
	Status         string             `json:"status,omitempty" bson:"status,omitempty"`
	ActorAggregate *ActorAggregate    `json:"actorAggregate,omitempty" bson:"actorAggregate,omitempty"`
	Version        int64              `json:"-" bson:"version"`
	CreatedAt      time.Time          `json:"createdAt" bson:"createdAt"`
}

// Key returns the merge key of the record
func (n *Notification) Key() MergeKey {
	return MergeKey{ReceiverID: n.ReceiverID, Type: n.Type, Refs: n.TargetRefs}
}

// Clone returns a deep copy, so callers can compute a new state without touching the original
func (n *Notification) Clone() *Notification {
	cp := *n
	if n.ActorAggregate != nil {
		agg := *n.ActorAggregate
		agg.RecentActors = append([]ActorEntry(nil), n.ActorAggregate.RecentActors...)
		cp.ActorAggregate = &agg
	}
	return &cp
}
