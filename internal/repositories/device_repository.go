package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/anonto42/nano-midea/notifications/internal/models"
	"gorm.io/gorm"
)

// DeviceRepository is the push-token store
type DeviceRepository interface {
	GetToken(ctx context.Context, userID string) (string, error)
	DeleteToken(ctx context.Context, token string) error
}

type postgresDeviceRepository struct {
	db *gorm.DB
}

func NewPostgresDeviceRepository(db *gorm.DB) DeviceRepository {
	return &postgresDeviceRepository{db: db}
}

// GetToken returns the most recently registered token, or "" when the user has none
func (r *postgresDeviceRepository) GetToken(ctx context.Context, userID string) (string, error) {
	var device models.DeviceToken
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get device token: %w", err)
	}
	return device.Token, nil
}

func (r *postgresDeviceRepository) DeleteToken(ctx context.Context, token string) error {
	if err := r.db.WithContext(ctx).Where("token = ?", token).Delete(&models.DeviceToken{}).Error; err != nil {
		return fmt.Errorf("failed to delete device token: %w", err)
	}
	return nil
}
