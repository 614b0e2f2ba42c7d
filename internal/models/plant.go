package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type Plant struct {
	ID                      uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	UserID                  uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	Name                    string     `json:"name" gorm:"not null"`
	Species                 string     `json:"species"`
	Nickname                string     `json:"nickname"`
	Location                string     `json:"location"`
	Sunlight                string     `json:"sunlight"`
	WateringIntervalDays    int        `json:"watering_interval_days"`
	FertilizingIntervalDays int        `json:"fertilizing_interval_days"`
	LastWatered             *time.Time `json:"last_watered" gorm:"type:date"`
	LastFertilized          *time.Time `json:"last_fertilized" gorm:"type:date"`
	Notes                   string     `json:"notes"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}
