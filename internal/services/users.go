package services

import (
	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/spKnowTech/plantpal-app/internal/models"
)

type ProfileUpdate struct {
	FullName *string `json:"full_name,omitempty" binding:"omitempty,min=1,max=100"`
	Location *string `json:"location,omitempty" binding:"omitempty,max=100"`
}

type UserService interface {
	GetUserByID(db *gorm.DB, id uuid.UUID) (*models.User, error)
	UpdateProfile(db *gorm.DB, id uuid.UUID, update ProfileUpdate) (*models.User, error)
	DeactivateUser(db *gorm.DB, id uuid.UUID) error
}

type UserServiceImpl struct{}

func NewUserService() *UserServiceImpl {
	return &UserServiceImpl{}
}

func (s *UserServiceImpl) GetUserByID(db *gorm.DB, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := db.Where("id = ? AND is_active = ?", id, true).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserServiceImpl) UpdateProfile(db *gorm.DB, id uuid.UUID, update ProfileUpdate) (*models.User, error) {
	updates := map[string]interface{}{}
	if update.FullName != nil {
		updates["full_name"] = *update.FullName
	}
	if update.Location != nil {
		updates["location"] = *update.Location
	}

	if len(updates) > 0 {
		result := db.Model(&models.User{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			return nil, gorm.ErrRecordNotFound
		}
	}

	return s.GetUserByID(db, id)
}

// DeactivateUser disables the account and revokes every refresh token.
func (s *UserServiceImpl) DeactivateUser(db *gorm.DB, id uuid.UUID) error {
	return db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.User{}).Where("id = ?", id).Update("is_active", false)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("user_id = ?", id).Delete(&models.Token{}).Error
	})
}
