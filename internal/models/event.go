package models

// EventType is the tag carried by every interaction event on the wire
type EventType string

const (
	EventFollow                    EventType = "FOLLOW"
	EventUnfollow                  EventType = "UNFOLLOW"
	EventReactedToPost             EventType = "REACTED_TO_POST"
	EventReactedToCommunityPost    EventType = "REACTED_TO_COMMUNITY_POST"
	EventComment                   EventType = "COMMENT"
	EventCommunityComment          EventType = "COMMUNITY_COMMENT"
	EventRepliedToComment          EventType = "REPLIED_TO_COMMENT"
	EventRepliedToCommunityComment EventType = "REPLIED_TO_COMMUNITY_COMMENT"
	EventGroupInvite               EventType = "GROUP_INVITE"
	EventGroupInviteBulk           EventType = "GROUP_INVITE_BULK"
	EventCommunityAdminPost        EventType = "COMMUNITY_ADMIN_POST"
	EventGroupRequestAccepted      EventType = "GROUP_REQUEST_ACCEPTED"
	EventGroupRequestRejected      EventType = "GROUP_REQUEST_REJECTED"
)

// KnownEventTypes lists every tag the dispatch router handles
var KnownEventTypes = []EventType{
	EventFollow,
	EventUnfollow,
	EventReactedToPost,
	EventReactedToCommunityPost,
	EventComment,
	EventCommunityComment,
	EventRepliedToComment,
	EventRepliedToCommunityComment,
	EventGroupInvite,
	EventGroupInviteBulk,
	EventCommunityAdminPost,
	EventGroupRequestAccepted,
	EventGroupRequestRejected,
}

// NotificationType maps an event tag to the type of record it produces
func (t EventType) NotificationType() NotificationType {
	if t == EventGroupInviteBulk {
		return TypeGroupInvite
	}
	return NotificationType(t)
}

// Event is the record emitted by producers and carried by both transports
type Event struct {
	Type        EventType  `json:"type" validate:"required"`
	SenderID    string     `json:"senderId" validate:"required"`
	ReceiverID  string     `json:"receiverId,omitempty"`
	ReceiverIDs []string   `json:"receiverIds,omitempty" validate:"omitempty,dive,required"`
	TargetRefs  TargetRefs `json:"targetRefs"`
	// CommentID is the comment produced by the actor, kept as the actor's auxiliary ref
	CommentID string `json:"commentId,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Result is what a handler returns; a message is acknowledged only when OK
type Result struct {
	NotificationIDs []string
	Skipped         bool
}

// OK reports whether the result counts as a successful handling
func (r Result) OK() bool {
	return r.Skipped || len(r.NotificationIDs) > 0
}

// HasReceivers reports whether the event names somebody to notify. Admin posts may
// instead name a community whose members are resolved by the handler.
func (e Event) HasReceivers() bool {
	if e.ReceiverID != "" || len(e.ReceiverIDs) > 0 {
		return true
	}
	return e.Type == EventCommunityAdminPost && e.TargetRefs.CommunityID != ""
}
