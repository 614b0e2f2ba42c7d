package services

import (
	"errors"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/spKnowTech/plantpal-app/internal/models"
)

// ErrNotAnalyzed marks the distinct empty state of a photo whose
// diagnosis has not completed. Callers report it with the photo's
// current status so clients can decide to trigger analysis.
var ErrNotAnalyzed = errors.New("diagnosis not available")

// PhotoWithDiagnosis is a gallery entry: the photo plus its diagnosis
// when one exists.
type PhotoWithDiagnosis struct {
	models.PlantPhoto
	Diagnosis *models.PhotoDiagnosis `json:"diagnosis,omitempty"`
}

type PhotoService interface {
	CreatePhoto(db *gorm.DB, photo models.PlantPhoto) (*models.PlantPhoto, error)
	GetPhotoByID(db *gorm.DB, userID, photoID uuid.UUID) (*models.PlantPhoto, error)
	GetGallery(db *gorm.DB, userID uuid.UUID, plantID *uuid.UUID) ([]PhotoWithDiagnosis, error)
	GetDiagnosis(db *gorm.DB, userID, photoID uuid.UUID) (*models.PhotoDiagnosis, error)
	MarkProcessing(db *gorm.DB, userID, photoID uuid.UUID) (*models.PlantPhoto, error)
	StoreDiagnosis(db *gorm.DB, diagnosis models.PhotoDiagnosis) error
	MarkFailed(db *gorm.DB, photoID uuid.UUID) error
	DeletePhoto(db *gorm.DB, userID, photoID uuid.UUID) (*models.PlantPhoto, error)
}

type PhotoServiceImpl struct{}

func NewPhotoService() *PhotoServiceImpl {
	return &PhotoServiceImpl{}
}

func (s *PhotoServiceImpl) CreatePhoto(db *gorm.DB, photo models.PlantPhoto) (*models.PlantPhoto, error) {
	if photo.ID == uuid.Nil {
		photo.ID = uuid.Must(uuid.NewV4())
	}
	if photo.DiagnosisStatus == "" {
		photo.DiagnosisStatus = models.DiagnosisPending
	}
	if err := db.Create(&photo).Error; err != nil {
		return nil, err
	}
	return &photo, nil
}

func (s *PhotoServiceImpl) GetPhotoByID(db *gorm.DB, userID, photoID uuid.UUID) (*models.PlantPhoto, error) {
	var photo models.PlantPhoto
	if err := db.Where("id = ? AND user_id = ?", photoID, userID).First(&photo).Error; err != nil {
		return nil, err
	}
	return &photo, nil
}

func (s *PhotoServiceImpl) GetGallery(db *gorm.DB, userID uuid.UUID, plantID *uuid.UUID) ([]PhotoWithDiagnosis, error) {
	query := db.Where("user_id = ?", userID)
	if plantID != nil {
		query = query.Where("plant_id = ?", *plantID)
	}

	var photos []models.PlantPhoto
	if err := query.Order("created_at desc").Find(&photos).Error; err != nil {
		return nil, err
	}

	if len(photos) == 0 {
		return []PhotoWithDiagnosis{}, nil
	}

	photoIDs := make([]uuid.UUID, len(photos))
	for i, photo := range photos {
		photoIDs[i] = photo.ID
	}

	var diagnoses []models.PhotoDiagnosis
	if err := db.Where("photo_id IN ?", photoIDs).Find(&diagnoses).Error; err != nil {
		return nil, err
	}

	byPhoto := make(map[uuid.UUID]*models.PhotoDiagnosis, len(diagnoses))
	for i := range diagnoses {
		byPhoto[diagnoses[i].PhotoID] = &diagnoses[i]
	}

	gallery := make([]PhotoWithDiagnosis, len(photos))
	for i, photo := range photos {
		gallery[i] = PhotoWithDiagnosis{PlantPhoto: photo, Diagnosis: byPhoto[photo.ID]}
	}
	return gallery, nil
}

func (s *PhotoServiceImpl) GetDiagnosis(db *gorm.DB, userID, photoID uuid.UUID) (*models.PhotoDiagnosis, error) {
	photo, err := s.GetPhotoByID(db, userID, photoID)
	if err != nil {
		return nil, err
	}

	if photo.DiagnosisStatus != models.DiagnosisCompleted {
		return nil, ErrNotAnalyzed
	}

	var diagnosis models.PhotoDiagnosis
	if err := db.Where("photo_id = ?", photoID).First(&diagnosis).Error; err != nil {
		return nil, err
	}
	return &diagnosis, nil
}

// MarkProcessing flips a photo to processing ahead of enqueueing its
// analysis job.
func (s *PhotoServiceImpl) MarkProcessing(db *gorm.DB, userID, photoID uuid.UUID) (*models.PlantPhoto, error) {
	photo, err := s.GetPhotoByID(db, userID, photoID)
	if err != nil {
		return nil, err
	}

	photo.DiagnosisStatus = models.DiagnosisProcessing
	photo.UpdatedAt = time.Now()
	if err := db.Save(photo).Error; err != nil {
		return nil, err
	}
	return photo, nil
}

// StoreDiagnosis writes the analysis result and completes the photo in
// one transaction. A re-analysis replaces the previous diagnosis.
func (s *PhotoServiceImpl) StoreDiagnosis(db *gorm.DB, diagnosis models.PhotoDiagnosis) error {
	if diagnosis.ID == uuid.Nil {
		diagnosis.ID = uuid.Must(uuid.NewV4())
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("photo_id = ?", diagnosis.PhotoID).Delete(&models.PhotoDiagnosis{}).Error; err != nil {
			return err
		}
		if err := tx.Create(&diagnosis).Error; err != nil {
			return err
		}
		return tx.Model(&models.PlantPhoto{}).
			Where("id = ?", diagnosis.PhotoID).
			Update("diagnosis_status", models.DiagnosisCompleted).Error
	})
}

func (s *PhotoServiceImpl) MarkFailed(db *gorm.DB, photoID uuid.UUID) error {
	return db.Model(&models.PlantPhoto{}).
		Where("id = ?", photoID).
		Update("diagnosis_status", models.DiagnosisFailed).Error
}

// DeletePhoto removes the photo row and its diagnosis, returning the
// deleted record so the caller can remove the stored file.
func (s *PhotoServiceImpl) DeletePhoto(db *gorm.DB, userID, photoID uuid.UUID) (*models.PlantPhoto, error) {
	photo, err := s.GetPhotoByID(db, userID, photoID)
	if err != nil {
		return nil, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("photo_id = ?", photoID).Delete(&models.PhotoDiagnosis{}).Error; err != nil {
			return err
		}
		return tx.Delete(photo).Error
	})
	if err != nil {
		return nil, err
	}
	return photo, nil
}
