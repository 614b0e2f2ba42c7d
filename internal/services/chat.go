package services

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/spKnowTech/plantpal-app/internal/aibot"
	"github.com/spKnowTech/plantpal-app/internal/models"
)

const chatSystemPrompt = "You are PlantPal, a friendly and knowledgeable plant care assistant. " +
	"Give practical, specific advice about houseplant care. Keep answers concise."

const diagnosisSystemPrompt = "You are an expert plant pathologist. The user is describing a plant " +
	"problem in text. Ask clarifying questions if needed, suggest likely causes, and recommend they " +
	"upload a photo for a visual diagnosis when appropriate."

type ChatRequest struct {
	Message string     `json:"message" binding:"required,min=1,max=4000"`
	PlantID *uuid.UUID `json:"plant_id,omitempty"`
}

type ChatService interface {
	Chat(ctx context.Context, db *gorm.DB, userID uuid.UUID, req ChatRequest) (*models.Conversation, error)
	GetHistory(db *gorm.DB, userID uuid.UUID, limit int) ([]models.Conversation, error)
}

type ChatServiceImpl struct {
	completer aibot.Completer
}

func NewChatService(completer aibot.Completer) *ChatServiceImpl {
	return &ChatServiceImpl{completer: completer}
}

// Chat routes the message by intent, enriches the prompt with the plant's
// details when one is referenced, and logs the round-trip.
func (s *ChatServiceImpl) Chat(ctx context.Context, db *gorm.DB, userID uuid.UUID, req ChatRequest) (*models.Conversation, error) {
	kind := models.ConversationChat
	systemPrompt := chatSystemPrompt
	if aibot.ParseIntent(req.Message) == aibot.IntentDiagnosis {
		kind = models.ConversationDiagnosis
		systemPrompt = diagnosisSystemPrompt
	}

	userPrompt := req.Message
	if req.PlantID != nil {
		var plant models.Plant
		if err := db.Where("id = ? AND user_id = ?", *req.PlantID, userID).First(&plant).Error; err != nil {
			return nil, err
		}
		userPrompt = fmt.Sprintf("About my plant %q (species: %s, location: %s):\n%s",
			plant.Name, plant.Species, plant.Location, req.Message)
	}

	response, err := s.completer.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	conversation := models.Conversation{
		ID:        uuid.Must(uuid.NewV4()),
		UserID:    userID,
		PlantID:   req.PlantID,
		InputText: req.Message,
		Response:  response,
		Kind:      kind,
	}

	if err := db.Create(&conversation).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (s *ChatServiceImpl) GetHistory(db *gorm.DB, userID uuid.UUID, limit int) ([]models.Conversation, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var conversations []models.Conversation
	err := db.Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}
