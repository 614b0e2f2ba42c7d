package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// Diagnosis lifecycle for an uploaded photo.
const (
	DiagnosisPending    = "pending"
	DiagnosisProcessing = "processing"
	DiagnosisCompleted  = "completed"
	DiagnosisFailed     = "failed"
)

type PlantPhoto struct {
	ID               uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	PlantID          *uuid.UUID `json:"plant_id" gorm:"type:uuid;index"`
	UserID           uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	ImagePath        string     `json:"image_path" gorm:"not null;uniqueIndex"`
	OriginalFilename string     `json:"original_filename"`
	FileSize         int64      `json:"file_size"`
	MimeType         string     `json:"mime_type"`
	DiagnosisStatus  string     `json:"diagnosis_status" gorm:"not null;default:'pending'"`
	UploadContext    string     `json:"upload_context"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// PhotoDiagnosis stores the structured AI analysis of a plant photo.
// Issues and actions are categorized string lists, serialized as JSON.
type PhotoDiagnosis struct {
	ID                 uuid.UUID           `json:"id" gorm:"primaryKey;type:uuid"`
	PhotoID            uuid.UUID           `json:"photo_id" gorm:"type:uuid;not null;index"`
	UserID             uuid.UUID           `json:"user_id" gorm:"type:uuid;not null"`
	DiagnosisText      string              `json:"diagnosis_text" gorm:"not null"`
	ConfidenceScore    float64             `json:"confidence_score"`
	IdentifiedIssues   map[string][]string `json:"identified_issues" gorm:"serializer:json"`
	RecommendedActions map[string][]string `json:"recommended_actions" gorm:"serializer:json"`
	TreatmentOutcome   string              `json:"treatment_outcome,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}
