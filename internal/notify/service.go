package notify

import (
	"context"
	"fmt"

	"github.com/anonto42/nano-midea/notifications/internal/aggregation"
	"github.com/anonto42/nano-midea/notifications/internal/delivery"
	"github.com/anonto42/nano-midea/notifications/internal/models"
	"github.com/anonto42/nano-midea/notifications/internal/repositories"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Aggregator persists notification records
type Aggregator interface {
	Merge(ctx context.Context, u aggregation.Update) (*aggregation.Outcome, error)
	Create(ctx context.Context, n *models.Notification) error
	CreateMany(ctx context.Context, ns []*models.Notification) error
}

// Deliverer fans a persisted notification out to its receivers
type Deliverer interface {
	Deliver(ctx context.Context, d delivery.Delivery)
	DeliverMany(ctx context.Context, ds []delivery.Delivery)
}

var titles = map[models.NotificationType]string{
	models.TypeFollow:                    "New follower",
	models.TypeUnfollow:                  "Follower update",
	models.TypeReactedToPost:             "New reaction",
	models.TypeReactedToCommunityPost:    "New reaction",
	models.TypeComment:                   "New comment",
	models.TypeCommunityComment:          "New comment",
	models.TypeRepliedToComment:          "New reply",
	models.TypeRepliedToCommunityComment: "New reply",
	models.TypeGroupInvite:               "Group invitation",
	models.TypeCommunityAdminPost:        "New community post",
	models.TypeGroupRequestAccepted:      "Group request accepted",
	models.TypeGroupRequestRejected:      "Group request declined",
}

// Service implements the per-event handlers: it resolves profiles, persists the
// record through the aggregation engine and triggers the fan-out.
type Service struct {
	engine Aggregator
	users  repositories.UserRepository
	groups repositories.GroupRepository
	fanout Deliverer
	log    zerolog.Logger
}

func NewService(engine Aggregator, users repositories.UserRepository, groups repositories.GroupRepository, fanout Deliverer, log zerolog.Logger) *Service {
	return &Service{
		engine: engine,
		users:  users,
		groups: groups,
		fanout: fanout,
		log:    log.With().Str("component", "notify").Logger(),
	}
}

func (s *Service) Follow(ctx context.Context, event models.Event) (models.Result, error) {
	return s.single(ctx, event, nil)
}

func (s *Service) Unfollow(ctx context.Context, event models.Event) (models.Result, error) {
	return s.single(ctx, event, nil)
}

// React toggles the sender in the post's reaction record
func (s *Service) React(ctx context.Context, event models.Event) (models.Result, error) {
	if err := requirePostRef(event); err != nil {
		return models.Result{}, err
	}
	return s.aggregate(ctx, event, models.ActorEntry{ActorID: event.SenderID})
}

// Comment moves the sender to the front of the post's comment record
func (s *Service) Comment(ctx context.Context, event models.Event) (models.Result, error) {
	if err := requirePostRef(event); err != nil {
		return models.Result{}, err
	}
	return s.aggregate(ctx, event, models.ActorEntry{ActorID: event.SenderID, AuxiliaryRef: event.CommentID})
}

// Reply aggregates replies per parent comment
func (s *Service) Reply(ctx context.Context, event models.Event) (models.Result, error) {
	if err := requirePostRef(event); err != nil {
		return models.Result{}, err
	}
	if event.TargetRefs.ParentCommentID == "" {
		return models.Result{}, fmt.Errorf("%s needs parentCommentId: %w", event.Type, models.ErrMissingTargetRef)
	}
	return s.aggregate(ctx, event, models.ActorEntry{ActorID: event.SenderID, AuxiliaryRef: event.CommentID})
}

func (s *Service) GroupInvite(ctx context.Context, event models.Event) (models.Result, error) {
	group, err := s.group(ctx, event)
	if err != nil {
		return models.Result{}, err
	}
	return s.single(ctx, event, func(name string) string {
		return fmt.Sprintf("%s invited you to join %s", name, group.Title)
	})
}

func (s *Service) GroupRequestDecision(ctx context.Context, event models.Event) (models.Result, error) {
	group, err := s.group(ctx, event)
	if err != nil {
		return models.Result{}, err
	}
	verb := "accepted"
	if event.Type == models.EventGroupRequestRejected {
		verb = "declined"
	}
	return s.single(ctx, event, func(name string) string {
		return fmt.Sprintf("%s %s your request to join %s", name, verb, group.Title)
	})
}

// GroupInviteBulk invites every receiver in ReceiverIDs with one bulk insert
func (s *Service) GroupInviteBulk(ctx context.Context, event models.Event) (models.Result, error) {
	group, err := s.group(ctx, event)
	if err != nil {
		return models.Result{}, err
	}
	receivers := event.ReceiverIDs
	if len(receivers) == 0 && event.ReceiverID != "" {
		receivers = []string{event.ReceiverID}
	}
	return s.bulk(ctx, event, receivers, func(name string) string {
		return fmt.Sprintf("%s invited you to join %s", name, group.Title)
	})
}

// CommunityAdminPost notifies the listed receivers, or every community member when
// the event lists none
func (s *Service) CommunityAdminPost(ctx context.Context, event models.Event) (models.Result, error) {
	if event.TargetRefs.CommunityID == "" || event.TargetRefs.CommunityPostID == "" {
		return models.Result{}, fmt.Errorf("%s needs communityId and communityPostId: %w", event.Type, models.ErrMissingTargetRef)
	}
	community, err := s.groups.GetCommunity(ctx, event.TargetRefs.CommunityID)
	if err != nil {
		return models.Result{}, err
	}

	receivers := event.ReceiverIDs
	if len(receivers) == 0 && event.ReceiverID != "" {
		receivers = []string{event.ReceiverID}
	}
	if len(receivers) == 0 {
		receivers = community.MemberIDs
	}
	return s.bulk(ctx, event, receivers, func(name string) string {
		return fmt.Sprintf("%s posted in %s", name, community.Name)
	})
}

func (s *Service) aggregate(ctx context.Context, event models.Event, entry models.ActorEntry) (models.Result, error) {
	if event.SenderID == event.ReceiverID {
		return models.Result{Skipped: true}, nil
	}
	if _, err := s.profiles(ctx, event.SenderID, event.ReceiverID); err != nil {
		return models.Result{}, err
	}

	typ := event.Type.NotificationType()
	out, err := s.engine.Merge(ctx, aggregation.Update{
		Key:      models.MergeKey{ReceiverID: event.ReceiverID, Type: typ, Refs: event.TargetRefs},
		SenderID: event.SenderID,
		Entry:    entry,
	})
	if err != nil {
		return models.Result{}, err
	}

	n := out.Notification
	s.fanout.Deliver(ctx, delivery.Delivery{
		ReceiverID:   n.ReceiverID,
		SenderID:     event.SenderID,
		Type:         typ,
		Refs:         n.TargetRefs,
		Title:        titles[typ],
		Body:         n.Message,
		RealtimeOnly: out.Removed,
	})
	s.log.Debug().
		Str("notification_id", n.ID.Hex()).
		Str("type", string(typ)).
		Bool("created", out.Created).
		Bool("removed", out.Removed).
		Int("total_count", n.ActorAggregate.TotalCount).
		Msg("notification merged")
	return models.Result{NotificationIDs: []string{n.ID.Hex()}}, nil
}

func (s *Service) single(ctx context.Context, event models.Event, text func(name string) string) (models.Result, error) {
	if event.SenderID == event.ReceiverID {
		return models.Result{Skipped: true}, nil
	}
	sender, err := s.profiles(ctx, event.SenderID, event.ReceiverID)
	if err != nil {
		return models.Result{}, err
	}

	n := s.newRecord(event, event.ReceiverID, sender, text)
	if err := s.engine.Create(ctx, n); err != nil {
		return models.Result{}, err
	}
	s.fanout.Deliver(ctx, s.deliveryFor(n))
	return models.Result{NotificationIDs: []string{n.ID.Hex()}}, nil
}

func (s *Service) bulk(ctx context.Context, event models.Event, receivers []string, text func(name string) string) (models.Result, error) {
	receivers = lo.Without(lo.Uniq(receivers), event.SenderID, "")
	if len(receivers) == 0 {
		s.log.Info().Str("type", string(event.Type)).Msg("no receivers left, skipping")
		return models.Result{Skipped: true}, nil
	}
	sender, err := s.users.GetUser(ctx, event.SenderID)
	if err != nil {
		return models.Result{}, err
	}

	records := lo.Map(receivers, func(id string, _ int) *models.Notification {
		return s.newRecord(event, id, sender, text)
	})
	if err := s.engine.CreateMany(ctx, records); err != nil {
		return models.Result{}, err
	}
	s.fanout.DeliverMany(ctx, lo.Map(records, func(n *models.Notification, _ int) delivery.Delivery {
		return s.deliveryFor(n)
	}))
	return models.Result{NotificationIDs: lo.Map(records, func(n *models.Notification, _ int) string {
		return n.ID.Hex()
	})}, nil
}

func (s *Service) newRecord(event models.Event, receiverID string, sender *models.User, text func(name string) string) *models.Notification {
	typ := event.Type.NotificationType()
	name := sender.NameForDisplay()
	if name == "" {
		name = unknownActorName
	}
	msg := event.Message
	if msg == "" {
		if text != nil {
			msg = text(name)
		} else {
			msg = aggregation.Message(typ, name, 1)
		}
	}
	return &models.Notification{
		SenderID:   event.SenderID,
		ReceiverID: receiverID,
		Type:       typ,
		TargetRefs: event.TargetRefs,
		Message:    msg,
	}
}

func (s *Service) deliveryFor(n *models.Notification) delivery.Delivery {
	return delivery.Delivery{
		ReceiverID: n.ReceiverID,
		SenderID:   n.SenderID,
		Type:       n.Type,
		Refs:       n.TargetRefs,
		Title:      titles[n.Type],
		Body:       n.Message,
	}
}

// profiles loads sender and receiver concurrently and returns the sender
func (s *Service) profiles(ctx context.Context, senderID, receiverID string) (*models.User, error) {
	var sender *models.User
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.users.GetUser(gctx, senderID)
		if err != nil {
			return fmt.Errorf("sender: %w", err)
		}
		sender = u
		return nil
	})
	g.Go(func() error {
		if _, err := s.users.GetUser(gctx, receiverID); err != nil {
			return fmt.Errorf("receiver: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sender, nil
}

func (s *Service) group(ctx context.Context, event models.Event) (*models.CommunityGroup, error) {
	if event.TargetRefs.CommunityGroupID == "" {
		return nil, fmt.Errorf("%s needs communityGroupId: %w", event.Type, models.ErrMissingTargetRef)
	}
	return s.groups.GetGroup(ctx, event.TargetRefs.CommunityGroupID)
}

func requirePostRef(event models.Event) error {
	switch event.Type {
	case models.EventReactedToPost, models.EventComment, models.EventRepliedToComment:
		if event.TargetRefs.UserPostID == "" {
			return fmt.Errorf("%s needs userPostId: %w", event.Type, models.ErrMissingTargetRef)
		}
	case models.EventReactedToCommunityPost, models.EventCommunityComment, models.EventRepliedToCommunityComment:
		if event.TargetRefs.CommunityPostID == "" {
			return fmt.Errorf("%s needs communityPostId: %w", event.Type, models.ErrMissingTargetRef)
		}
	}
	return nil
}
