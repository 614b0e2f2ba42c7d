package models

import (
	"time"

	"github.com/gofrs/uuid"

	"github.com/spKnowTech/plantpal-app/internal/recurrence"
)

// Care task types match the original schema's check constraint.
const (
	TaskTypeWater       = "water"
	TaskTypeFertilize   = "fertilize"
	TaskTypePrune       = "prune"
	TaskTypeRotate      = "rotate"
	TaskTypeRepot       = "repot"
	TaskTypeCheckHealth = "check_health"
)

// CareTask is a scheduled care task for a plant. FrequencyDays is derived
// from Recurrence for every category except custom, where it is user-supplied.
type CareTask struct {
	ID            uuid.UUID           `json:"id" gorm:"primaryKey;type:uuid"`
	PlantID       uuid.UUID           `json:"plant_id" gorm:"type:uuid;not null;index"`
	TaskType      string              `json:"task_type" gorm:"not null"`
	Title         string              `json:"title" gorm:"not null"`
	Description   string              `json:"description"`
	Recurrence    recurrence.Category `json:"recurrence" gorm:"not null;default:'none'"`
	FrequencyDays int                 `json:"frequency_days"`
	DueDate       time.Time           `json:"due_date" gorm:"type:date;not null"`
	IsActive      bool                `json:"is_active" gorm:"not null;default:true"`
	IsCompleted   bool                `json:"is_completed" gorm:"not null;default:false"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// TaskCompletion is an append-only record of a task being completed.
type TaskCompletion struct {
	ID            uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	CareTaskID    uuid.UUID `json:"care_task_id" gorm:"type:uuid;not null;index"`
	UserID        uuid.UUID `json:"user_id" gorm:"type:uuid;not null"`
	CompletedDate time.Time `json:"completed_date" gorm:"type:date;not null"`
	CreatedAt     time.Time `json:"created_at"`
}

func IsValidTaskType(t string) bool {
	switch t {
	case TaskTypeWater, TaskTypeFertilize, TaskTypePrune, TaskTypeRotate, TaskTypeRepot, TaskTypeCheckHealth:
		return true
	}
	return false
}
