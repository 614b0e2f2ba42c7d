package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// Conversation kinds mirror the original ai_logs check constraint.
const (
	ConversationChat      = "chat"
	ConversationDiagnosis = "diagnosis"
)

// Conversation is one AI round-trip: the user's message and the reply.
type Conversation struct {
	ID        uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	PlantID   *uuid.UUID `json:"plant_id" gorm:"type:uuid"`
	InputText string     `json:"input_text" gorm:"not null"`
	Response  string     `json:"response"`
	Kind      string     `json:"kind" gorm:"not null;default:'chat'"`
	CreatedAt time.Time  `json:"created_at"`
}
