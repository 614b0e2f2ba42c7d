package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/spKnowTech/plantpal-app/internal/middleware"
	"github.com/spKnowTech/plantpal-app/internal/services"
)

type PlantHandler struct {
	db           *gorm.DB
	plantService services.PlantService
}

func NewPlantHandler(db *gorm.DB, plantService services.PlantService) *PlantHandler {
	return &PlantHandler{db: db, plantService: plantService}
}

func (h *PlantHandler) CreatePlant(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req services.PlantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plant, err := h.plantService.CreatePlant(h.db, userID, req)
	if err != nil {
		handlePlantError(c, err)
		return
	}

	c.JSON(http.StatusCreated, plant)
}

func (h *PlantHandler) GetPlants(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	plants, err := h.plantService.GetPlants(h.db, userID)
	if err != nil {
		handlePlantError(c, err)
		return
	}

	c.JSON(http.StatusOK, plants)
}

func (h *PlantHandler) GetPlantByID(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id := uuid.FromStringOrNil(c.Param("id"))
	plant, err := h.plantService.GetPlantByID(h.db, userID, id)
	if err != nil {
		handlePlantError(c, err)
		return
	}

	c.JSON(http.StatusOK, plant)
}

func (h *PlantHandler) UpdatePlant(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id := uuid.FromStringOrNil(c.Param("id"))

	var req services.PlantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plant, err := h.plantService.UpdatePlant(h.db, userID, id, req)
	if err != nil {
		handlePlantError(c, err)
		return
	}

	c.JSON(http.StatusOK, plant)
}

func (h *PlantHandler) DeletePlant(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id := uuid.FromStringOrNil(c.Param("id"))
	if err := h.plantService.DeletePlant(h.db, userID, id); err != nil {
		handlePlantError(c, err)
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

func handlePlantError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "plant not found"})
	} else {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process plant request"})
	}
}
