package aggregation

import (
	"fmt"

	"github.com/anonto42/nano-midea/notifications/internal/models"
)

var verbs = map[models.NotificationType]string{
	models.TypeReactedToPost:             "liked your post",
	models.TypeReactedToCommunityPost:    "liked your community post",
	models.TypeComment:                   "commented on your post",
	models.TypeCommunityComment:          "commented on your community post",
	models.TypeRepliedToComment:          "replied to your comment",
	models.TypeRepliedToCommunityComment: "replied to your community comment",
	models.TypeFollow:                    "started following you",
	models.TypeUnfollow:                  "unfollowed you",
	models.TypeGroupInvite:               "invited you to join a group",
	models.TypeCommunityAdminPost:        "posted in your community",
	models.TypeGroupRequestAccepted:      "accepted your request to join a group",
	models.TypeGroupRequestRejected:      "declined your request to join a group",
}

// Verb returns the phrase that follows the actor name
func Verb(t models.NotificationType) string {
	if v, ok := verbs[t]; ok {
		return v
	}
	return "interacted with you"
}

// Message renders the summary text for an aggregated record
func Message(t models.NotificationType, actorName string, totalCount int) string {
	switch {
	case totalCount <= 0:
		return ""
	case totalCount == 1:
		return fmt.Sprintf("%s %s", actorName, Verb(t))
	default:
		return fmt.Sprintf("%s and %d others %s", actorName, totalCount-1, Verb(t))
	}
}
