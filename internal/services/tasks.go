package services

import (
	"errors"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/spKnowTech/plantpal-app/internal/models"
	"github.com/spKnowTech/plantpal-app/internal/recurrence"
)

var (
	ErrInvalidTaskType   = errors.New("invalid task type")
	ErrInvalidRecurrence = errors.New("invalid recurrence category")
)

type TaskRequest struct {
	PlantID       uuid.UUID `json:"plant_id" binding:"required"`
	TaskType      string    `json:"task_type" binding:"required"`
	Title         string    `json:"title" binding:"required,min=1,max=200"`
	Description   string    `json:"description,omitempty" binding:"max=2000"`
	Recurrence    string    `json:"recurrence" binding:"required"`
	FrequencyDays int       `json:"frequency_days,omitempty"`
	DueDate       time.Time `json:"due_date" binding:"required"`
}

// BucketedTasks partitions a user's active tasks for the dashboard.
// Every task lands in exactly one list.
type BucketedTasks struct {
	Delayed   []models.CareTask `json:"delayed"`
	Today     []models.CareTask `json:"today"`
	Upcoming  []models.CareTask `json:"upcoming"`
	Completed []models.CareTask `json:"completed"`
}

type TaskService interface {
	CreateTask(db *gorm.DB, userID uuid.UUID, req TaskRequest) (*models.CareTask, error)
	GetTaskByID(db *gorm.DB, userID, taskID uuid.UUID) (*models.CareTask, error)
	GetTasksForPlant(db *gorm.DB, userID, plantID uuid.UUID) ([]models.CareTask, error)
	GetBucketedTasks(db *gorm.DB, userID uuid.UUID, today time.Time) (*BucketedTasks, error)
	UpdateTask(db *gorm.DB, userID, taskID uuid.UUID, req TaskRequest) (*models.CareTask, error)
	CompleteTask(db *gorm.DB, userID, taskID uuid.UUID, completedDate time.Time) (*models.CareTask, error)
	UncompleteTask(db *gorm.DB, userID, taskID uuid.UUID) (*models.CareTask, error)
	DeleteTask(db *gorm.DB, userID, taskID uuid.UUID) error
}

type TaskServiceImpl struct{}

func NewTaskService() *TaskServiceImpl {
	return &TaskServiceImpl{}
}

// validateRequest normalizes the recurrence category and resolves the
// effective frequency. Custom without a positive frequency is rejected.
func validateRequest(req *TaskRequest) (recurrence.Category, int, error) {
	if !models.IsValidTaskType(req.TaskType) {
		return "", 0, ErrInvalidTaskType
	}

	category := recurrence.Category(req.Recurrence)
	if !category.Valid() {
		return "", 0, ErrInvalidRecurrence
	}

	freq, err := recurrence.ResolveFrequency(category, req.FrequencyDays)
	if err != nil {
		return "", 0, err
	}

	return category, freq, nil
}

// ownedTask loads a task only if it belongs to one of the user's plants.
func ownedTask(db *gorm.DB, userID, taskID uuid.UUID) (*models.CareTask, error) {
	var task models.CareTask
	err := db.Joins("JOIN plants ON plants.id = care_tasks.plant_id").
		Where("care_tasks.id = ? AND plants.user_id = ?", taskID, userID).
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskServiceImpl) CreateTask(db *gorm.DB, userID uuid.UUID, req TaskRequest) (*models.CareTask, error) {
	category, freq, err := validateRequest(&req)
	if err != nil {
		return nil, err
	}

	// The plant must belong to the caller.
	var plant models.Plant
	if err := db.Where("id = ? AND user_id = ?", req.PlantID, userID).First(&plant).Error; err != nil {
		return nil, err
	}

	task := models.CareTask{
		ID:            uuid.Must(uuid.NewV4()),
		PlantID:       req.PlantID,
		TaskType:      req.TaskType,
		Title:         req.Title,
		Description:   req.Description,
		Recurrence:    category,
		FrequencyDays: freq,
		DueDate:       req.DueDate,
		IsActive:      true,
	}

	if err := db.Create(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskServiceImpl) GetTaskByID(db *gorm.DB, userID, taskID uuid.UUID) (*models.CareTask, error) {
	return ownedTask(db, userID, taskID)
}

func (s *TaskServiceImpl) GetTasksForPlant(db *gorm.DB, userID, plantID uuid.UUID) ([]models.CareTask, error) {
	var plant models.Plant
	if err := db.Where("id = ? AND user_id = ?", plantID, userID).First(&plant).Error; err != nil {
		return nil, err
	}

	var tasks []models.CareTask
	err := db.Where("plant_id = ? AND is_active = ?", plantID, true).
		Order("due_date asc").Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetBucketedTasks classifies every active task of the user against the
// given civil date. Completed wins regardless of due date.
func (s *TaskServiceImpl) GetBucketedTasks(db *gorm.DB, userID uuid.UUID, today time.Time) (*BucketedTasks, error) {
	var tasks []models.CareTask
	err := db.Joins("JOIN plants ON plants.id = care_tasks.plant_id").
		Where("plants.user_id = ? AND care_tasks.is_active = ?", userID, true).
		Order("care_tasks.due_date asc").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}

	buckets := &BucketedTasks{
		Delayed:   []models.CareTask{},
		Today:     []models.CareTask{},
		Upcoming:  []models.CareTask{},
		Completed: []models.CareTask{},
	}

	for _, task := range tasks {
		switch recurrence.Classify(task.DueDate, today, task.IsCompleted) {
		case recurrence.BucketDelayed:
			buckets.Delayed = append(buckets.Delayed, task)
		case recurrence.BucketToday:
			buckets.Today = append(buckets.Today, task)
		case recurrence.BucketUpcoming:
			buckets.Upcoming = append(buckets.Upcoming, task)
		case recurrence.BucketCompleted:
			buckets.Completed = append(buckets.Completed, task)
		}
	}

	return buckets, nil
}

func (s *TaskServiceImpl) UpdateTask(db *gorm.DB, userID, taskID uuid.UUID, req TaskRequest) (*models.CareTask, error) {
	category, freq, err := validateRequest(&req)
	if err != nil {
		return nil, err
	}

	task, err := ownedTask(db, userID, taskID)
	if err != nil {
		return nil, err
	}

	task.TaskType = req.TaskType
	task.Title = req.Title
	task.Description = req.Description
	task.Recurrence = category
	task.FrequencyDays = freq
	task.DueDate = req.DueDate

	if err := db.Save(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}

// CompleteTask records a completion and schedules the next occurrence one
// frequency interval after the completion date, so an overdue task does not
// come back already overdue. Non-recurring tasks are marked completed and
// deactivated instead.
func (s *TaskServiceImpl) CompleteTask(db *gorm.DB, userID, taskID uuid.UUID, completedDate time.Time) (*models.CareTask, error) {
	task, err := ownedTask(db, userID, taskID)
	if err != nil {
		return nil, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		completion := models.TaskCompletion{
			ID:            uuid.Must(uuid.NewV4()),
			CareTaskID:    task.ID,
			UserID:        userID,
			CompletedDate: completedDate,
		}
		if err := tx.Create(&completion).Error; err != nil {
			return err
		}

		if next, ok := recurrence.NextDue(completedDate, task.FrequencyDays, task.Recurrence); ok {
			task.DueDate = next
			task.IsCompleted = false
		} else {
			task.IsCompleted = true
			task.IsActive = false
		}

		return tx.Save(task).Error
	})
	if err != nil {
		return nil, err
	}

	return task, nil
}

// UncompleteTask clears the completed flag without touching the due date or
// the completion history, and reactivates the task so it shows up in
// listings again.
func (s *TaskServiceImpl) UncompleteTask(db *gorm.DB, userID, taskID uuid.UUID) (*models.CareTask, error) {
	task, err := ownedTask(db, userID, taskID)
	if err != nil {
		return nil, err
	}

	task.IsCompleted = false
	task.IsActive = true
	if err := db.Save(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskServiceImpl) DeleteTask(db *gorm.DB, userID, taskID uuid.UUID) error {
	task, err := ownedTask(db, userID, taskID)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("care_task_id = ?", task.ID).Delete(&models.TaskCompletion{}).Error; err != nil {
			return err
		}
		return tx.Delete(task).Error
	})
}
