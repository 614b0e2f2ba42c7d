package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/spKnowTech/plantpal-app/internal/middleware"
	"github.com/spKnowTech/plantpal-app/internal/services"
)

type ChatHandler struct {
	db          *gorm.DB
	chatService services.ChatService
}

func NewChatHandler(db *gorm.DB, chatService services.ChatService) *ChatHandler {
	return &ChatHandler{db: db, chatService: chatService}
}

func (h *ChatHandler) Chat(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req services.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conversation, err := h.chatService.Chat(c.Request.Context(), h.db, userID, req)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "plant not found"})
			return
		}
		// The upstream model is unavailable, the client may retry.
		c.JSON(http.StatusBadGateway, gin.H{"error": "assistant is unavailable", "retryable": true})
		return
	}

	c.JSON(http.StatusOK, conversation)
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil && v > 0 {
			limit = v
		}
	}

	history, err := h.chatService.GetHistory(h.db, userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}

	c.JSON(http.StatusOK, history)
}
