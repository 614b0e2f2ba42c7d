package services

import (
	"testing"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/spKnowTech/plantpal-app/internal/models"
)

func createTestPhoto(t *testing.T, db *gorm.DB, userID uuid.UUID, plantID *uuid.UUID) *models.PlantPhoto {
	t.Helper()

	svc := NewPhotoService()
	photo, err := svc.CreatePhoto(db, models.PlantPhoto{
		UserID:           userID,
		PlantID:          plantID,
		ImagePath:        userID.String() + "/" + uuid.Must(uuid.NewV4()).String() + ".png",
		OriginalFilename: "leaf.png",
		FileSize:         1024,
		MimeType:         "image/png",
	})
	if err != nil {
		t.Fatalf("Failed to create test photo: %v", err)
	}
	return photo
}

func TestCreatePhoto_DefaultsToPending(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)

	photo := createTestPhoto(t, db, user.ID, nil)

	if photo.DiagnosisStatus != models.DiagnosisPending {
		t.Errorf("Expected status pending, got %s", photo.DiagnosisStatus)
	}
}

func TestGetDiagnosis_NotYetAnalyzed(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	photo := createTestPhoto(t, db, user.ID, nil)
	svc := NewPhotoService()

	if _, err := svc.GetDiagnosis(db, user.ID, photo.ID); err != ErrNotAnalyzed {
		t.Errorf("Expected ErrNotAnalyzed for pending photo, got: %v", err)
	}

	if _, err := svc.MarkProcessing(db, user.ID, photo.ID); err != nil {
		t.Fatalf("Failed to mark processing: %v", err)
	}

	if _, err := svc.GetDiagnosis(db, user.ID, photo.ID); err != ErrNotAnalyzed {
		t.Errorf("Expected ErrNotAnalyzed for processing photo, got: %v", err)
	}
}

func TestStoreDiagnosis_CompletesPhoto(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	photo := createTestPhoto(t, db, user.ID, nil)
	svc := NewPhotoService()

	diagnosis := models.PhotoDiagnosis{
		PhotoID:         photo.ID,
		UserID:          user.ID,
		DiagnosisText:   "Root rot from overwatering.",
		ConfidenceScore: 0.8,
		IdentifiedIssues: map[string][]string{
			"diseases": {"root rot"},
		},
		RecommendedActions: map[string][]string{
			"immediate": {"repot in dry soil"},
		},
	}

	if err := svc.StoreDiagnosis(db, diagnosis); err != nil {
		t.Fatalf("Failed to store diagnosis: %v", err)
	}

	stored, err := svc.GetDiagnosis(db, user.ID, photo.ID)
	if err != nil {
		t.Fatalf("Expected diagnosis to be readable, got: %v", err)
	}

	if stored.DiagnosisText != diagnosis.DiagnosisText {
		t.Errorf("Expected diagnosis text to round-trip, got %q", stored.DiagnosisText)
	}
	if len(stored.IdentifiedIssues["diseases"]) != 1 {
		t.Errorf("Expected serialized issues to round-trip, got %v", stored.IdentifiedIssues)
	}

	updated, err := svc.GetPhotoByID(db, user.ID, photo.ID)
	if err != nil {
		t.Fatalf("Failed to reload photo: %v", err)
	}
	if updated.DiagnosisStatus != models.DiagnosisCompleted {
		t.Errorf("Expected status completed, got %s", updated.DiagnosisStatus)
	}
}

func TestStoreDiagnosis_ReplacesPrevious(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	photo := createTestPhoto(t, db, user.ID, nil)
	svc := NewPhotoService()

	first := models.PhotoDiagnosis{PhotoID: photo.ID, UserID: user.ID, DiagnosisText: "first pass"}
	second := models.PhotoDiagnosis{PhotoID: photo.ID, UserID: user.ID, DiagnosisText: "second pass"}

	if err := svc.StoreDiagnosis(db, first); err != nil {
		t.Fatalf("Failed to store first diagnosis: %v", err)
	}
	if err := svc.StoreDiagnosis(db, second); err != nil {
		t.Fatalf("Failed to store second diagnosis: %v", err)
	}

	var count int64
	if err := db.Model(&models.PhotoDiagnosis{}).Where("photo_id = ?", photo.ID).Count(&count).Error; err != nil {
		t.Fatalf("Failed to count diagnoses: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected re-analysis to replace the diagnosis, got %d rows", count)
	}

	stored, err := svc.GetDiagnosis(db, user.ID, photo.ID)
	if err != nil {
		t.Fatalf("Failed to read diagnosis: %v", err)
	}
	if stored.DiagnosisText != "second pass" {
		t.Errorf("Expected latest diagnosis, got %q", stored.DiagnosisText)
	}
}

func TestMarkFailed(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	photo := createTestPhoto(t, db, user.ID, nil)
	svc := NewPhotoService()

	if err := svc.MarkFailed(db, photo.ID); err != nil {
		t.Fatalf("Failed to mark photo failed: %v", err)
	}

	updated, err := svc.GetPhotoByID(db, user.ID, photo.ID)
	if err != nil {
		t.Fatalf("Failed to reload photo: %v", err)
	}
	if updated.DiagnosisStatus != models.DiagnosisFailed {
		t.Errorf("Expected status failed, got %s", updated.DiagnosisStatus)
	}
}

func TestGetGallery_FiltersAndJoins(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	other := createTestUser(t, db)
	plant := createTestPlant(t, db, user.ID)
	svc := NewPhotoService()

	linked := createTestPhoto(t, db, user.ID, &plant.ID)
	createTestPhoto(t, db, user.ID, nil)
	createTestPhoto(t, db, other.ID, nil)

	if err := svc.StoreDiagnosis(db, models.PhotoDiagnosis{
		PhotoID: linked.ID, UserID: user.ID, DiagnosisText: "healthy",
	}); err != nil {
		t.Fatalf("Failed to store diagnosis: %v", err)
	}

	gallery, err := svc.GetGallery(db, user.ID, nil)
	if err != nil {
		t.Fatalf("Failed to load gallery: %v", err)
	}
	if len(gallery) != 2 {
		t.Errorf("Expected 2 photos for user, got %d", len(gallery))
	}

	filtered, err := svc.GetGallery(db, user.ID, &plant.ID)
	if err != nil {
		t.Fatalf("Failed to load filtered gallery: %v", err)
	}
	if len(filtered) != 1 {
		t.Fatalf("Expected 1 photo for plant, got %d", len(filtered))
	}
	if filtered[0].Diagnosis == nil || filtered[0].Diagnosis.DiagnosisText != "healthy" {
		t.Errorf("Expected diagnosis attached to gallery entry, got %v", filtered[0].Diagnosis)
	}
}

func TestDeletePhoto_RemovesDiagnosis(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	photo := createTestPhoto(t, db, user.ID, nil)
	svc := NewPhotoService()

	if err := svc.StoreDiagnosis(db, models.PhotoDiagnosis{
		PhotoID: photo.ID, UserID: user.ID, DiagnosisText: "spots",
	}); err != nil {
		t.Fatalf("Failed to store diagnosis: %v", err)
	}

	deleted, err := svc.DeletePhoto(db, user.ID, photo.ID)
	if err != nil {
		t.Fatalf("Failed to delete photo: %v", err)
	}
	if deleted.ImagePath != photo.ImagePath {
		t.Errorf("Expected deleted record returned, got %s", deleted.ImagePath)
	}

	if _, err := svc.GetPhotoByID(db, user.ID, photo.ID); err != gorm.ErrRecordNotFound {
		t.Errorf("Expected photo gone, got: %v", err)
	}

	var count int64
	if err := db.Model(&models.PhotoDiagnosis{}).Where("photo_id = ?", photo.ID).Count(&count).Error; err != nil {
		t.Fatalf("Failed to count diagnoses: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected diagnosis removed with photo, got %d rows", count)
	}
}

func TestDeletePhoto_ScopedToOwner(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db)
	intruder := createTestUser(t, db)
	photo := createTestPhoto(t, db, owner.ID, nil)
	svc := NewPhotoService()

	if _, err := svc.DeletePhoto(db, intruder.ID, photo.ID); err != gorm.ErrRecordNotFound {
		t.Errorf("Expected record not found for intruder, got: %v", err)
	}
}
