package dispatch

import (
	"context"
	"fmt"

	"github.com/anonto42/nano-midea/notifications/internal/models"
	"github.com/anonto42/nano-midea/notifications/validators"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Handlers is the set of per-event handlers the router dispatches to
type Handlers interface {
	Follow(ctx context.Context, event models.Event) (models.Result, error)
	Unfollow(ctx context.Context, event models.Event) (models.Result, error)
	React(ctx context.Context, event models.Event) (models.Result, error)
	Comment(ctx context.Context, event models.Event) (models.Result, error)
	Reply(ctx context.Context, event models.Event) (models.Result, error)
	GroupInvite(ctx context.Context, event models.Event) (models.Result, error)
	GroupInviteBulk(ctx context.Context, event models.Event) (models.Result, error)
	CommunityAdminPost(ctx context.Context, event models.Event) (models.Result, error)
	GroupRequestDecision(ctx context.Context, event models.Event) (models.Result, error)
}

// Router maps an event type tag to its handler. Both transports share one Router.
type Router struct {
	handlers Handlers
	validate *validator.Validate
	log      zerolog.Logger
}

func NewRouter(handlers Handlers, log zerolog.Logger) *Router {
	return &Router{
		handlers: handlers,
		validate: validators.New(),
		log:      log.With().Str("component", "dispatch").Logger(),
	}
}

// Handle validates the event shape and runs its handler. Unknown types are logged
// and reported as skipped before validation so the transport can drop them.
func (r *Router) Handle(ctx context.Context, event models.Event) (models.Result, error) {
	if event.Type != "" && !lo.Contains(models.KnownEventTypes, event.Type) {
		return r.skipUnknown(event), nil
	}
	if err := r.validate.Struct(event); err != nil {
		return models.Result{}, fmt.Errorf("%v: %w", err, models.ErrInvalidEvent)
	}

	switch event.Type {
	case models.EventFollow:
		return r.handlers.Follow(ctx, event)
	case models.EventUnfollow:
		return r.handlers.Unfollow(ctx, event)
	case models.EventReactedToPost, models.EventReactedToCommunityPost:
		return r.handlers.React(ctx, event)
	case models.EventComment, models.EventCommunityComment:
		return r.handlers.Comment(ctx, event)
	case models.EventRepliedToComment, models.EventRepliedToCommunityComment:
		return r.handlers.Reply(ctx, event)
	case models.EventGroupInvite:
		return r.handlers.GroupInvite(ctx, event)
	case models.EventGroupInviteBulk:
		return r.handlers.GroupInviteBulk(ctx, event)
	case models.EventCommunityAdminPost:
		return r.handlers.CommunityAdminPost(ctx, event)
	case models.EventGroupRequestAccepted, models.EventGroupRequestRejected:
		return r.handlers.GroupRequestDecision(ctx, event)
	default:
		return r.skipUnknown(event), nil
	}
}

func (r *Router) skipUnknown(event models.Event) models.Result {
	r.log.Warn().Str("type", string(event.Type)).Str("sender_id", event.SenderID).Msg("unknown event type, skipping")
	return models.Result{Skipped: true}
}
