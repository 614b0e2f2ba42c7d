package services

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/spKnowTech/plantpal-app/internal/models"
)

type PlantRequest struct {
	Name                    string     `json:"name" binding:"required,min=1,max=100"`
	Species                 string     `json:"species,omitempty" binding:"max=100"`
	Nickname                string     `json:"nickname,omitempty" binding:"max=100"`
	Location                string     `json:"location,omitempty" binding:"max=100"`
	Sunlight                string     `json:"sunlight,omitempty" binding:"max=100"`
	WateringIntervalDays    int        `json:"watering_interval_days,omitempty" binding:"omitempty,min=1,max=365"`
	FertilizingIntervalDays int        `json:"fertilizing_interval_days,omitempty" binding:"omitempty,min=1,max=365"`
	LastWatered             *time.Time `json:"last_watered,omitempty"`
	LastFertilized          *time.Time `json:"last_fertilized,omitempty"`
	Notes                   string     `json:"notes,omitempty" binding:"max=2000"`
}

type PlantService interface {
	CreatePlant(db *gorm.DB, userID uuid.UUID, req PlantRequest) (*models.Plant, error)
	GetPlantByID(db *gorm.DB, userID, plantID uuid.UUID) (*models.Plant, error)
	GetPlants(db *gorm.DB, userID uuid.UUID) ([]models.Plant, error)
	UpdatePlant(db *gorm.DB, userID, plantID uuid.UUID, req PlantRequest) (*models.Plant, error)
	DeletePlant(db *gorm.DB, userID, plantID uuid.UUID) error
}

type PlantServiceImpl struct{}

func NewPlantService() *PlantServiceImpl {
	return &PlantServiceImpl{}
}

func (s *PlantServiceImpl) CreatePlant(db *gorm.DB, userID uuid.UUID, req PlantRequest) (*models.Plant, error) {
	plant := models.Plant{
		ID:                      uuid.Must(uuid.NewV4()),
		UserID:                  userID,
		Name:                    req.Name,
		Species:                 req.Species,
		Nickname:                req.Nickname,
		Location:                req.Location,
		Sunlight:                req.Sunlight,
		WateringIntervalDays:    req.WateringIntervalDays,
		FertilizingIntervalDays: req.FertilizingIntervalDays,
		LastWatered:             req.LastWatered,
		LastFertilized:          req.LastFertilized,
		Notes:                   req.Notes,
	}

	if err := db.Create(&plant).Error; err != nil {
		return nil, err
	}
	return &plant, nil
}

func (s *PlantServiceImpl) GetPlantByID(db *gorm.DB, userID, plantID uuid.UUID) (*models.Plant, error) {
	var plant models.Plant
	if err := db.Where("id = ? AND user_id = ?", plantID, userID).First(&plant).Error; err != nil {
		return nil, err
	}
	return &plant, nil
}

func (s *PlantServiceImpl) GetPlants(db *gorm.DB, userID uuid.UUID) ([]models.Plant, error) {
	var plants []models.Plant
	if err := db.Where("user_id = ?", userID).Order("created_at desc").Find(&plants).Error; err != nil {
		return nil, err
	}
	return plants, nil
}

func (s *PlantServiceImpl) UpdatePlant(db *gorm.DB, userID, plantID uuid.UUID, req PlantRequest) (*models.Plant, error) {
	plant, err := s.GetPlantByID(db, userID, plantID)
	if err != nil {
		return nil, err
	}

	plant.Name = req.Name
	plant.Species = req.Species
	plant.Nickname = req.Nickname
	plant.Location = req.Location
	plant.Sunlight = req.Sunlight
	plant.WateringIntervalDays = req.WateringIntervalDays
	plant.FertilizingIntervalDays = req.FertilizingIntervalDays
	plant.LastWatered = req.LastWatered
	plant.LastFertilized = req.LastFertilized
	plant.Notes = req.Notes

	if err := db.Save(plant).Error; err != nil {
		return nil, err
	}
	return plant, nil
}

// DeletePlant removes the plant and its dependent care tasks, completions
// and photo links in one transaction. Deletion is permanent.
func (s *PlantServiceImpl) DeletePlant(db *gorm.DB, userID, plantID uuid.UUID) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var plant models.Plant
		if err := tx.Where("id = ? AND user_id = ?", plantID, userID).First(&plant).Error; err != nil {
			return err
		}

		var taskIDs []uuid.UUID
		if err := tx.Model(&models.CareTask{}).Where("plant_id = ?", plantID).Pluck("id", &taskIDs).Error; err != nil {
			return err
		}
		if len(taskIDs) > 0 {
			if err := tx.Where("care_task_id IN ?", taskIDs).Delete(&models.TaskCompletion{}).Error; err != nil {
				return err
			}
			if err := tx.Where("plant_id = ?", plantID).Delete(&models.CareTask{}).Error; err != nil {
				return err
			}
		}

		// Photos survive plant deletion, they just lose the link.
		if err := tx.Model(&models.PlantPhoto{}).Where("plant_id = ?", plantID).Update("plant_id", nil).Error; err != nil {
			return err
		}

		return tx.Delete(&plant).Error
	})
}
