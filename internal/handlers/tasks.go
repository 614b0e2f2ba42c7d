package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/spKnowTech/plantpal-app/internal/middleware"
	"github.com/spKnowTech/plantpal-app/internal/recurrence"
	"github.com/spKnowTech/plantpal-app/internal/services"
)

type TaskHandler struct {
	db          *gorm.DB
	taskService services.TaskService
}

func NewTaskHandler(db *gorm.DB, taskService services.TaskService) *TaskHandler {
	return &TaskHandler{db: db, taskService: taskService}
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req services.TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.taskService.CreateTask(h.db, userID, req)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id := uuid.FromStringOrNil(c.Param("id"))
	task, err := h.taskService.GetTaskByID(h.db, userID, id)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// GetTasks returns the caller's active tasks partitioned into the
// delayed, today, upcoming and completed buckets for the given date
// (query param "date", default today).
func (h *TaskHandler) GetTasks(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	today := time.Now()
	if dateStr := c.Query("date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
			return
		}
		today = parsed
	}

	buckets, err := h.taskService.GetBucketedTasks(h.db, userID, today)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, buckets)
}

func (h *TaskHandler) GetTasksForPlant(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	plantID := uuid.FromStringOrNil(c.Param("id"))
	tasks, err := h.taskService.GetTasksForPlant(h.db, userID, plantID)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id := uuid.FromStringOrNil(c.Param("id"))

	var req services.TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.taskService.UpdateTask(h.db, userID, id, req)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// CompleteTask records a completion; the response carries the rolled-over
// task so the client can re-render the buckets.
func (h *TaskHandler) CompleteTask(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id := uuid.FromStringOrNil(c.Param("id"))

	// Body is optional, an empty one means "completed now". Sending
	// completed=false undoes a completion instead.
	var req struct {
		Completed     *bool  `json:"completed"`
		CompletedDate string `json:"completed_date"`
	}
	_ = c.ShouldBindJSON(&req)

	if req.Completed != nil && !*req.Completed {
		task, err := h.taskService.UncompleteTask(h.db, userID, id)
		if err != nil {
			handleTaskError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
		return
	}

	completedDate := time.Now()
	if req.CompletedDate != "" {
		parsed, err := time.Parse("2006-01-02", req.CompletedDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid completed_date, expected YYYY-MM-DD"})
			return
		}
		completedDate = parsed
	}

	task, err := h.taskService.CompleteTask(h.db, userID, id, completedDate)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id := uuid.FromStringOrNil(c.Param("id"))
	if err := h.taskService.DeleteTask(h.db, userID, id); err != nil {
		handleTaskError(c, err)
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

func handleTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
	case errors.Is(err, services.ErrInvalidTaskType),
		errors.Is(err, services.ErrInvalidRecurrence),
		errors.Is(err, recurrence.ErrFrequencyRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process task request"})
	}
}
