package dispatch

import (
	"context"
	"testing"

	"github.com/anonto42/nano-midea/notifications/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockHandlers struct {
	mock.Mock
}

func (m *mockHandlers) call(name string, ctx context.Context, event models.Event) (models.Result, error) {
	args := m.MethodCalled(name, event)
	return args.Get(0).(models.Result), args.Error(1)
}

func (m *mockHandlers) Follow(ctx context.Context, e models.Event) (models.Result, error) {
	return m.call("Follow", ctx, e)
}
func (m *mockHandlers) Unfollow(ctx context.Context, e models.Event) (models.Result, error) {
	return m.call("Unfollow", ctx, e)
}
func (m *mockHandlers) React(ctx context.Context, e models.Event) (models.Result, error) {
	return m.call("React", ctx, e)
}
func (m *mockHandlers) Comment(ctx context.Context, e models.Event) (models.Result, error) {
	return m.call("Comment", ctx, e)
}
func (m *mockHandlers) Reply(ctx context.Context, e models.Event) (models.Result, error) {
	return m.call("Reply", ctx, e)
}
func (m *mockHandlers) GroupInvite(ctx context.Context, e models.Event) (models.Result, error) {
	return m.call("GroupInvite", ctx, e)
}
func (m *mockHandlers) GroupInviteBulk(ctx context.Context, e models.Event) (models.Result, error) {
	return m.call("GroupInviteBulk", ctx, e)
}
func (m *mockHandlers) CommunityAdminPost(ctx context.Context, e models.Event) (models.Result, error) {
	return m.call("CommunityAdminPost", ctx, e)
}
func (m *mockHandlers) GroupRequestDecision(ctx context.Context, e models.Event) (models.Result, error) {
	return m.call("GroupRequestDecision", ctx, e)
}

func TestRouter_DispatchesEveryKnownType(t *testing.T) {
	want := map[models.EventType]string{
		models.EventFollow:                    "Follow",
		models.EventUnfollow:                  "Unfollow",
		models.EventReactedToPost:             "React",
		models.EventReactedToCommunityPost:    "React",
		models.EventComment:                   "Comment",
		models.EventCommunityComment:          "Comment",
		models.EventRepliedToComment:          "Reply",
		models.EventRepliedToCommunityComment: "Reply",
		models.EventGroupInvite:               "GroupInvite",
		models.EventGroupInviteBulk:           "GroupInviteBulk",
		models.EventCommunityAdminPost:        "CommunityAdminPost",
		models.EventGroupRequestAccepted:      "GroupRequestDecision",
		models.EventGroupRequestRejected:      "GroupRequestDecision",
	}
	require.Len(t, want, len(models.KnownEventTypes))

	for _, typ := range models.KnownEventTypes {
		h := new(mockHandlers)
		ev := models.Event{Type: typ, SenderID: "s", ReceiverID: "r"}
		h.On(want[typ], ev).Return(models.Result{NotificationIDs: []string{"n"}}, nil)

		res, err := NewRouter(h, zerolog.Nop()).Handle(context.Background(), ev)
		require.NoError(t, err, typ)
		assert.True(t, res.OK(), typ)
		h.AssertExpectations(t)
	}
}

func TestRouter_UnknownTypeIsSkipped(t *testing.T) {
	tests := []struct {
		name  string
		event models.Event
	}{
		{"well formed", models.Event{Type: "POKE", SenderID: "s", ReceiverID: "r"}},
		{"no receiver", models.Event{Type: "LEGACY_POKE", SenderID: "a"}},
		{"no sender or receiver", models.Event{Type: "LEGACY_POKE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := new(mockHandlers)
			res, err := NewRouter(h, zerolog.Nop()).Handle(context.Background(), tt.event)

			require.NoError(t, err)
			assert.True(t, res.Skipped)
			assert.True(t, res.OK())
			h.AssertNotCalled(t, "Follow", mock.Anything)
		})
	}
}

func TestRouter_RejectsInvalidShape(t *testing.T) {
	tests := []struct {
		name  string
		event models.Event
	}{
		{"missing type", models.Event{SenderID: "s", ReceiverID: "r"}},
		{"missing sender", models.Event{Type: models.EventFollow, ReceiverID: "r"}},
		{"missing receiver", models.Event{Type: models.EventFollow, SenderID: "s"}},
		{"blank bulk receiver", models.Event{Type: models.EventGroupInviteBulk, SenderID: "s", ReceiverIDs: []string{"a", ""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := new(mockHandlers)
			_, err := NewRouter(h, zerolog.Nop()).Handle(context.Background(), tt.event)
			assert.ErrorIs(t, err, models.ErrInvalidEvent)
		})
	}
}

func TestRouter_BulkEventNeedsNoSingleReceiver(t *testing.T) {
	h := new(mockHandlers)
	ev := models.Event{Type: models.EventGroupInviteBulk, SenderID: "s", ReceiverIDs: []string{"a", "b"}}
	h.On("GroupInviteBulk", ev).Return(models.Result{NotificationIDs: []string{"1", "2"}}, nil)

	res, err := NewRouter(h, zerolog.Nop()).Handle(context.Background(), ev)
	require.NoError(t, err)
	assert.Len(t, res.NotificationIDs, 2)
}

func TestRouter_AdminPostMayTargetCommunity(t *testing.T) {
	h := new(mockHandlers)
	ev := models.Event{
		Type:       models.EventCommunityAdminPost,
		SenderID:   "admin",
		TargetRefs: models.TargetRefs{CommunityID: "c1", CommunityPostID: "cp1"},
	}
	h.On("CommunityAdminPost", ev).Return(models.Result{Skipped: true}, nil)

	_, err := NewRouter(h, zerolog.Nop()).Handle(context.Background(), ev)
	require.NoError(t, err)
	h.AssertExpectations(t)
}
