package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/spKnowTech/plantpal-app/internal/cache"
	"github.com/spKnowTech/plantpal-app/internal/middleware"
	"github.com/spKnowTech/plantpal-app/internal/models"
	"github.com/spKnowTech/plantpal-app/internal/services"
	"github.com/spKnowTech/plantpal-app/internal/uploads"
	"github.com/spKnowTech/plantpal-app/internal/worker"
)

const (
	diagnosisCacheTTL = 10 * time.Minute
	galleryCacheTTL   = 5 * time.Minute
)

type PhotoHandler struct {
	db           *gorm.DB
	photoService services.PhotoService
	store        *uploads.Store
	jobQueue     *worker.JobQueue
	cache        cache.Cache
}

func NewPhotoHandler(db *gorm.DB, photoService services.PhotoService, store *uploads.Store, jobQueue *worker.JobQueue, cacheInstance cache.Cache) *PhotoHandler {
	return &PhotoHandler{db: db, photoService: photoService, store: store, jobQueue: jobQueue, cache: cacheInstance}
}

func diagnosisCacheKey(photoID uuid.UUID) string {
	return fmt.Sprintf("photo:%s", photoID)
}

func galleryCacheKey(userID uuid.UUID, plantID *uuid.UUID) string {
	if plantID != nil {
		return fmt.Sprintf("gallery:%s:plant:%s", userID, plantID)
	}
	return fmt.Sprintf("gallery:%s", userID)
}

// invalidateGallery drops every cached gallery view for the user, including
// the per-plant variants.
func (h *PhotoHandler) invalidateGallery(userID uuid.UUID) {
	if h.cache == nil {
		return
	}
	if err := h.cache.DeletePattern(fmt.Sprintf("gallery:%s*", userID)); err != nil {
		log.Printf("⚠️ Failed to invalidate gallery cache: %v", err)
	}
}

// UploadPhoto accepts a multipart form with a "photo" file and optional
// "plant_id" and "context" fields. The photo starts in the pending state;
// analysis is a separate request.
func (h *PhotoHandler) UploadPhoto(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}

	var plantID *uuid.UUID
	if plantIDStr := c.PostForm("plant_id"); plantIDStr != "" {
		id, err := uuid.FromString(plantIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plant_id"})
			return
		}

		// The referenced plant must belong to the caller.
		var plant models.Plant
		if err := h.db.Where("id = ? AND user_id = ?", id, userID).First(&plant).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "plant not found"})
			return
		}
		plantID = &id
	}

	relPath, err := h.store.Save(userID, fileHeader)
	if err != nil {
		if errors.Is(err, uploads.ErrFileTooLarge) || errors.Is(err, uploads.ErrUnsupportedFormat) || errors.Is(err, uploads.ErrEmptyFile) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store photo"})
		return
	}

	photo, err := h.photoService.CreatePhoto(h.db, models.PlantPhoto{
		UserID:           userID,
		PlantID:          plantID,
		ImagePath:        relPath,
		OriginalFilename: fileHeader.Filename,
		FileSize:         fileHeader.Size,
		MimeType:         fileHeader.Header.Get("Content-Type"),
		UploadContext:    c.PostForm("context"),
	})
	if err != nil {
		// Keep the filesystem consistent with the database.
		if cleanupErr := h.store.Delete(relPath); cleanupErr != nil {
			log.Printf("⚠️ Failed to clean up orphaned upload %s: %v", relPath, cleanupErr)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save photo"})
		return
	}

	h.invalidateGallery(userID)

	c.JSON(http.StatusCreated, photo)
}

// GetGallery lists the caller's photos with any diagnoses attached.
// Optional query param plant_id narrows to one plant.
func (h *PhotoHandler) GetGallery(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var plantID *uuid.UUID
	if plantIDStr := c.Query("plant_id"); plantIDStr != "" {
		id, err := uuid.FromString(plantIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plant_id"})
			return
		}
		plantID = &id
	}

	key := galleryCacheKey(userID, plantID)
	if h.cache != nil {
		var cached []services.PhotoWithDiagnosis
		if err := h.cache.Get(key, &cached); err == nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	gallery, err := h.photoService.GetGallery(h.db, userID, plantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load gallery"})
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(key, gallery, galleryCacheTTL); err != nil {
			log.Printf("⚠️ Failed to cache gallery: %v", err)
		}
	}

	c.JSON(http.StatusOK, gallery)
}

// GetDiagnosis returns the completed diagnosis for a photo. A photo that
// has not finished analysis gets a distinct 404 carrying its current
// status so the client can offer to trigger analysis.
func (h *PhotoHandler) GetDiagnosis(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	photoID := uuid.FromStringOrNil(c.Param("id"))

	if h.cache != nil {
		var cached models.PhotoDiagnosis
		if err := h.cache.Get(diagnosisCacheKey(photoID), &cached); err == nil {
			// Ownership still needs a check; the key is photo-scoped.
			if _, err := h.photoService.GetPhotoByID(h.db, userID, photoID); err == nil {
				c.JSON(http.StatusOK, &cached)
				return
			}
		}
	}

	diagnosis, err := h.photoService.GetDiagnosis(h.db, userID, photoID)
	if err != nil {
		if errors.Is(err, services.ErrNotAnalyzed) {
			photo, photoErr := h.photoService.GetPhotoByID(h.db, userID, photoID)
			status := models.DiagnosisPending
			if photoErr == nil {
				status = photo.DiagnosisStatus
			}
			c.JSON(http.StatusNotFound, gin.H{
				"error":  "diagnosis not available",
				"status": status,
			})
			return
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load diagnosis"})
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(diagnosisCacheKey(photoID), diagnosis, diagnosisCacheTTL); err != nil {
			log.Printf("⚠️ Failed to cache diagnosis: %v", err)
		}
	}

	c.JSON(http.StatusOK, diagnosis)
}

// AnalyzePhoto marks the photo processing and enqueues the analysis job.
// The analysis itself runs in the worker; this always returns 202.
func (h *PhotoHandler) AnalyzePhoto(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	if h.jobQueue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis is unavailable", "retryable": true})
		return
	}

	photoID := uuid.FromStringOrNil(c.Param("id"))

	photo, err := h.photoService.MarkProcessing(h.db, userID, photoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start analysis"})
		return
	}

	err = h.jobQueue.Enqueue(worker.AnalysisQueue, worker.JobTypePhotoAnalysis, map[string]interface{}{
		"photo_id": photo.ID.String(),
		"user_id":  userID.String(),
	})
	if err != nil {
		if failErr := h.photoService.MarkFailed(h.db, photo.ID); failErr != nil {
			log.Printf("⚠️ Failed to mark photo %s failed after enqueue error: %v", photo.ID, failErr)
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to enqueue analysis", "retryable": true})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "analysis started",
		"photo":   photo,
	})
}

func (h *PhotoHandler) DeletePhoto(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	photoID := uuid.FromStringOrNil(c.Param("id"))

	photo, err := h.photoService.DeletePhoto(h.db, userID, photoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete photo"})
		return
	}

	if err := h.store.Delete(photo.ImagePath); err != nil {
		log.Printf("⚠️ Failed to remove file %s for deleted photo: %v", photo.ImagePath, err)
	}

	if h.cache != nil {
		if err := h.cache.Delete(diagnosisCacheKey(photoID)); err != nil {
			log.Printf("⚠️ Failed to invalidate diagnosis cache: %v", err)
		}
	}
	h.invalidateGallery(userID)

	c.JSON(http.StatusNoContent, nil)
}
