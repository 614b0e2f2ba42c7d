package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// Token persists issued refresh tokens so they can be rotated and revoked.
type Token struct {
	ID           uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	UserID       uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	JTI          uuid.UUID `json:"jti" gorm:"type:uuid;uniqueIndex"`
	RefreshToken string    `json:"refresh_token" gorm:"type:text"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}
