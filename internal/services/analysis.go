package services

import (
	"context"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/spKnowTech/plantpal-app/internal/aibot"
	"github.com/spKnowTech/plantpal-app/internal/cache"
	"github.com/spKnowTech/plantpal-app/internal/models"
	"github.com/spKnowTech/plantpal-app/internal/uploads"
	"github.com/spKnowTech/plantpal-app/internal/worker"
)

// AnalysisProcessor consumes photo_analysis jobs: it reads the stored
// image, runs the AI analyzer, persists the diagnosis and invalidates
// the photo's cache entries.
type AnalysisProcessor struct {
	db       *gorm.DB
	photos   PhotoService
	analyzer *aibot.Analyzer
	store    *uploads.Store
	cache    cache.Cache
}

func NewAnalysisProcessor(db *gorm.DB, photos PhotoService, analyzer *aibot.Analyzer, store *uploads.Store, cacheInstance cache.Cache) *AnalysisProcessor {
	return &AnalysisProcessor{db: db, photos: photos, analyzer: analyzer, store: store, cache: cacheInstance}
}

// Handle is the worker handler for photo analysis jobs. Returning an
// error sends the job to the retry queue; the photo is only marked
// failed once retries are pointless or exhausted.
func (p *AnalysisProcessor) Handle(ctx context.Context, job *worker.Job) error {
	photoIDStr, _ := job.Payload["photo_id"].(string)
	photoID, err := uuid.FromString(photoIDStr)
	if err != nil {
		return fmt.Errorf("invalid photo_id in job %s: %w", job.ID, err)
	}

	userIDStr, _ := job.Payload["user_id"].(string)
	userID, err := uuid.FromString(userIDStr)
	if err != nil {
		return fmt.Errorf("invalid user_id in job %s: %w", job.ID, err)
	}

	photo, err := p.photos.GetPhotoByID(p.db, userID, photoID)
	if err != nil {
		// Photo deleted while the job was queued; nothing to retry.
		return nil
	}

	imagePath, err := p.store.Open(photo.ImagePath)
	if err != nil {
		p.fail(photoID)
		return fmt.Errorf("image file missing for photo %s: %w", photoID, err)
	}

	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		p.fail(photoID)
		return fmt.Errorf("failed to read image for photo %s: %w", photoID, err)
	}

	mimeType := photo.MimeType
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(photo.ImagePath))
	}

	var plantContext *aibot.PlantContext
	if photo.PlantID != nil {
		var plant models.Plant
		if err := p.db.Where("id = ?", *photo.PlantID).First(&plant).Error; err == nil {
			plantContext = &aibot.PlantContext{
				Species:  plant.Species,
				Location: plant.Location,
			}
		}
	}

	result, err := p.analyzer.AnalyzeImage(ctx, imageData, mimeType, photo.UploadContext, plantContext)
	if err != nil {
		if job.Attempts+1 >= job.MaxTries {
			p.fail(photoID)
		}
		return fmt.Errorf("analysis failed for photo %s: %w", photoID, err)
	}

	diagnosis := models.PhotoDiagnosis{
		PhotoID:            photoID,
		UserID:             userID,
		DiagnosisText:      result.Text,
		ConfidenceScore:    result.Confidence,
		IdentifiedIssues:   result.Issues,
		RecommendedActions: result.Actions,
	}

	if err := p.photos.StoreDiagnosis(p.db, diagnosis); err != nil {
		return fmt.Errorf("failed to store diagnosis for photo %s: %w", photoID, err)
	}

	p.invalidate(userID, photoID)

	log.Printf("✅ Photo %s analyzed with confidence %.2f", photoID, result.Confidence)
	return nil
}

func (p *AnalysisProcessor) fail(photoID uuid.UUID) {
	if err := p.photos.MarkFailed(p.db, photoID); err != nil {
		log.Printf("⚠️ Failed to mark photo %s failed: %v", photoID, err)
	}
}

func (p *AnalysisProcessor) invalidate(userID, photoID uuid.UUID) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Delete(fmt.Sprintf("photo:%s", photoID)); err != nil {
		log.Printf("⚠️ Failed to invalidate photo cache: %v", err)
	}
	if err := p.cache.DeletePattern(fmt.Sprintf("gallery:%s*", userID)); err != nil {
		log.Printf("⚠️ Failed to invalidate gallery cache: %v", err)
	}
}
