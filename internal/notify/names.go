package notify

import (
	"context"
	"errors"

	"github.com/anonto42/nano-midea/notifications/internal/models"
	"github.com/anonto42/nano-midea/notifications/internal/repositories"
)

const unknownActorName = "Someone"

// Names resolves display names through the user directory. An actor whose profile
// is gone still renders, as "Someone", so old records keep updating.
type Names struct {
	users repositories.UserRepository
}

func NewNames(users repositories.UserRepository) *Names {
	return &Names{users: users}
}

func (n *Names) DisplayName(ctx context.Context, actorID string) (string, error) {
	user, err := n.users.GetUser(ctx, actorID)
	if errors.Is(err, models.ErrNotFound) {
		return unknownActorName, nil
	}
	if err != nil {
		return "", err
	}
	if name := user.NameForDisplay(); name != "" {
		return name, nil
	}
	return unknownActorName, nil
}
