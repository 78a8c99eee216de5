package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/anonto42/nano-midea/notifications/internal/models"
	"gorm.io/gorm"
)

// UserRepository resolves actor ids to profiles
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// PostgresUserRepository implements UserRepository for PostgreSQL
type PostgresUserRepository struct {
	db *gorm.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// GetUser accepts either the numeric primary key or the Firebase UID
func (r *PostgresUserRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	query := r.db.WithContext(ctx)

	var err error
	if numericID, parseErr := strconv.ParseUint(id, 10, 64); parseErr == nil {
		err = query.First(&user, numericID).Error
	} else {
		err = query.Where("firebase_uid = ?", id).First(&user).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return &user, nil
}
