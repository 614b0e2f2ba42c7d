package services

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/spKnowTech/plantpal-app/internal/aibot"
	"github.com/spKnowTech/plantpal-app/internal/cache"
	"github.com/spKnowTech/plantpal-app/internal/models"
	"github.com/spKnowTech/plantpal-app/internal/uploads"
	"github.com/spKnowTech/plantpal-app/internal/worker"
)

type analysisCompleter struct {
	visionResponse string
	visionErr      error
	jsonResponses  []string
}

func (a *analysisCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if len(a.jsonResponses) == 0 {
		return "{}", nil
	}
	response := a.jsonResponses[0]
	a.jsonResponses = a.jsonResponses[1:]
	return response, nil
}

func (a *analysisCompleter) CompleteVision(ctx context.Context, prompt string, imageData []byte, mimeType string) (string, error) {
	if a.visionErr != nil {
		return "", a.visionErr
	}
	return a.visionResponse, nil
}

func storeTestImage(t *testing.T, store *uploads.Store, db *gorm.DB, user *models.User) *models.PlantPhoto {
	t.Helper()

	content := make([]byte, 256)
	copy(content, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("photo", "leaf.png")
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("Failed to write form file: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		t.Fatalf("Failed to parse multipart form: %v", err)
	}
	header := req.MultipartForm.File["photo"][0]

	relPath, err := store.Save(user.ID, header)
	if err != nil {
		t.Fatalf("Failed to save test image: %v", err)
	}

	photo, err := NewPhotoService().CreatePhoto(db, models.PlantPhoto{
		UserID:    user.ID,
		ImagePath: relPath,
		MimeType:  "image/png",
	})
	if err != nil {
		t.Fatalf("Failed to create photo record: %v", err)
	}
	return photo
}

func newTestProcessor(t *testing.T, db *gorm.DB, store *uploads.Store, completer aibot.Completer) *AnalysisProcessor {
	t.Helper()
	return NewAnalysisProcessor(db, NewPhotoService(), aibot.NewAnalyzer(completer), store, nil)
}

func analysisJob(photo *models.PlantPhoto, attempts, maxTries int) *worker.Job {
	return &worker.Job{
		ID:   "job-1",
		Type: worker.JobTypePhotoAnalysis,
		Payload: map[string]interface{}{
			"photo_id": photo.ID.String(),
			"user_id":  photo.UserID.String(),
		},
		Attempts: attempts,
		MaxTries: maxTries,
	}
}

func TestAnalysisProcessor_Success(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)

	store, err := uploads.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	photo := storeTestImage(t, store, db, user)

	completer := &analysisCompleter{
		visionResponse: "Root rot from overwatering, with visible chlorosis and yellowing.",
		jsonResponses: []string{
			`{"diseases":["root rot"],"pests":[],"deficiencies":[],"environmental":[],"symptoms":["yellowing"]}`,
			`{"immediate":["repot"],"short_term":[],"long_term":[],"monitoring":[]}`,
		},
	}

	processor := newTestProcessor(t, db, store, completer)
	if err := processor.Handle(context.Background(), analysisJob(photo, 0, 3)); err != nil {
		t.Fatalf("Expected analysis to succeed, got: %v", err)
	}

	diagnosis, err := NewPhotoService().GetDiagnosis(db, user.ID, photo.ID)
	if err != nil {
		t.Fatalf("Expected stored diagnosis, got: %v", err)
	}
	if diagnosis.ConfidenceScore <= 0 {
		t.Errorf("Expected positive confidence, got %f", diagnosis.ConfidenceScore)
	}
	if len(diagnosis.IdentifiedIssues["diseases"]) != 1 {
		t.Errorf("Expected extracted issues, got %v", diagnosis.IdentifiedIssues)
	}
}

func TestAnalysisProcessor_InvalidatesCachedViews(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)

	store, err := uploads.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	photo := storeTestImage(t, store, db, user)

	appCache := cache.NewMultiLevelCache(nil)
	photoKey := "photo:" + photo.ID.String()
	galleryKey := "gallery:" + user.ID.String()
	if err := appCache.Set(photoKey, "stale", time.Minute); err != nil {
		t.Fatalf("Failed to seed cache: %v", err)
	}
	if err := appCache.Set(galleryKey, "stale", time.Minute); err != nil {
		t.Fatalf("Failed to seed cache: %v", err)
	}

	completer := &analysisCompleter{
		visionResponse: "Root rot from overwatering.",
		jsonResponses: []string{
			`{"diseases":["root rot"],"pests":[],"deficiencies":[],"environmental":[],"symptoms":[]}`,
			`{"immediate":["repot"],"short_term":[],"long_term":[],"monitoring":[]}`,
		},
	}

	processor := NewAnalysisProcessor(db, NewPhotoService(), aibot.NewAnalyzer(completer), store, appCache)
	if err := processor.Handle(context.Background(), analysisJob(photo, 0, 3)); err != nil {
		t.Fatalf("Expected analysis to succeed, got: %v", err)
	}

	if exists, _ := appCache.Exists(photoKey); exists {
		t.Error("Expected stale diagnosis entry to be evicted")
	}
	if exists, _ := appCache.Exists(galleryKey); exists {
		t.Error("Expected stale gallery entry to be evicted")
	}
}

func TestAnalysisProcessor_AIFailureRetries(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)

	store, err := uploads.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	photo := storeTestImage(t, store, db, user)

	completer := &analysisCompleter{visionErr: errors.New("model unavailable")}
	processor := newTestProcessor(t, db, store, completer)

	// First attempt: error returned so the worker retries, photo not failed yet.
	if err := processor.Handle(context.Background(), analysisJob(photo, 0, 3)); err == nil {
		t.Fatal("Expected error on AI failure")
	}
	reloaded, err := NewPhotoService().GetPhotoByID(db, user.ID, photo.ID)
	if err != nil {
		t.Fatalf("Failed to reload photo: %v", err)
	}
	if reloaded.DiagnosisStatus == models.DiagnosisFailed {
		t.Error("Expected photo not failed before final attempt")
	}

	// Final attempt: photo marked failed.
	if err := processor.Handle(context.Background(), analysisJob(photo, 2, 3)); err == nil {
		t.Fatal("Expected error on final attempt")
	}
	reloaded, err = NewPhotoService().GetPhotoByID(db, user.ID, photo.ID)
	if err != nil {
		t.Fatalf("Failed to reload photo: %v", err)
	}
	if reloaded.DiagnosisStatus != models.DiagnosisFailed {
		t.Errorf("Expected status failed after exhausted attempts, got %s", reloaded.DiagnosisStatus)
	}
}

func TestAnalysisProcessor_DeletedPhotoNoRetry(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)

	store, err := uploads.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	photo := storeTestImage(t, store, db, user)

	if _, err := NewPhotoService().DeletePhoto(db, user.ID, photo.ID); err != nil {
		t.Fatalf("Failed to delete photo: %v", err)
	}

	processor := newTestProcessor(t, db, store, &analysisCompleter{visionResponse: "ok"})
	if err := processor.Handle(context.Background(), analysisJob(photo, 0, 3)); err != nil {
		t.Errorf("Expected deleted photo to be skipped without error, got: %v", err)
	}
}

func TestAnalysisProcessor_MissingFileFails(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)

	store, err := uploads.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	photo := storeTestImage(t, store, db, user)

	if err := store.Delete(photo.ImagePath); err != nil {
		t.Fatalf("Failed to remove file: %v", err)
	}

	processor := newTestProcessor(t, db, store, &analysisCompleter{visionResponse: "ok"})
	if err := processor.Handle(context.Background(), analysisJob(photo, 0, 3)); err == nil {
		t.Fatal("Expected error for missing file")
	}

	reloaded, err := NewPhotoService().GetPhotoByID(db, user.ID, photo.ID)
	if err != nil {
		t.Fatalf("Failed to reload photo: %v", err)
	}
	if reloaded.DiagnosisStatus != models.DiagnosisFailed {
		t.Errorf("Expected status failed for missing file, got %s", reloaded.DiagnosisStatus)
	}
}
