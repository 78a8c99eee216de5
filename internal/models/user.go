package models

import "gorm.io/gorm"

// User is the profile row owned by the account service (PostgreSQL).
// Only the fields needed to render notification text are mapped.
type User struct {
	gorm.Model  `json:"-"`
	ID          uint   `json:"id" gorm:"primaryKey"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email" gorm:"uniqueIndex"`
	FirebaseUID string `json:"firebase_uid,omitempty" gorm:"uniqueIndex"`
}

// NameForDisplay falls back to Name when no display name was set
func (u *User) NameForDisplay() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Name
}

// DeviceToken is a registered FCM token for a user (PostgreSQL)
type DeviceToken struct {
	gorm.Model
	UserID   string `json:"user_id" gorm:"index;size:36"`
	Token    string `json:"token" gorm:"uniqueIndex;size:255"`
	Platform string `json:"platform" gorm:"size:10"`
}

func (DeviceToken) TableName() string {
	return "device_tokens"
}
