package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/spKnowTech/plantpal-app/internal/cache"
	"github.com/spKnowTech/plantpal-app/internal/config"
	"github.com/spKnowTech/plantpal-app/internal/middleware"
	"github.com/spKnowTech/plantpal-app/internal/models"
	"github.com/spKnowTech/plantpal-app/internal/services"
	"github.com/spKnowTech/plantpal-app/internal/uploads"
	"github.com/spKnowTech/plantpal-app/internal/worker"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Plant{},
		&models.CareTask{},
		&models.TaskCompletion{},
		&models.PlantPhoto{},
		&models.PhotoDiagnosis{},
		&models.Conversation{},
		&models.Token{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func createTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	user, err := services.NewRegisterService().RegisterUser(db, services.RegistrationRequest{
		FullName: "Test Gardener",
		Email:    uuid.Must(uuid.NewV4()).String() + "@example.com",
		Password: "secret-password",
	})
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func createTestPlant(t *testing.T, db *gorm.DB, userID uuid.UUID) *models.Plant {
	t.Helper()

	plant, err := services.NewPlantService().CreatePlant(db, userID, services.PlantRequest{
		Name: "Monstera",
	})
	if err != nil {
		t.Fatalf("Failed to create test plant: %v", err)
	}
	return plant
}

func bearerToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return "Bearer " + signed
}

func authedRequest(t *testing.T, method, path string, body interface{}, userID uuid.UUID) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t, userID))
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return body
}

func TestAuthHandler_RegisterAndLogin(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter()
	handler := NewAuthHandler(db, services.NewRegisterService(), services.NewAuthService(config.JWTConfig{Secret: "test-secret"}))
	router.POST("/auth/register", handler.Register)
	router.POST("/auth/login", handler.Login)

	registerBody, _ := json.Marshal(map[string]string{
		"full_name": "Ada Gardener",
		"email":     "ada@example.com",
		"password":  "super-secret",
	})
	req, _ := http.NewRequest("POST", "/auth/register", bytes.NewReader(registerBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 from register, got %d: %s", w.Code, w.Body.String())
	}

	// Duplicate registration conflicts.
	req, _ = http.NewRequest("POST", "/auth/register", bytes.NewReader(registerBody))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate email, got %d", w.Code)
	}

	loginBody, _ := json.Marshal(map[string]string{"email": "ada@example.com", "password": "super-secret"})
	req, _ = http.NewRequest("POST", "/auth/login", bytes.NewReader(loginBody))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from login, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["access_token"] == "" || body["refresh_token"] == "" {
		t.Error("Expected token pair in login response")
	}

	badBody, _ := json.Marshal(map[string]string{"email": "ada@example.com", "password": "wrong"})
	req, _ = http.NewRequest("POST", "/auth/login", bytes.NewReader(badBody))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong password, got %d", w.Code)
	}
}

func TestTaskHandler_CreateAndBuckets(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	plant := createTestPlant(t, db, user.ID)

	router := setupTestRouter()
	handler := NewTaskHandler(db, services.NewTaskService())
	authed := router.Group("/", middleware.AuthRequired("test-secret"))
	authed.POST("/tasks", handler.CreateTask)
	authed.GET("/tasks", handler.GetTasks)

	req := authedRequest(t, "POST", "/tasks", map[string]interface{}{
		"plant_id":   plant.ID.String(),
		"task_type":  "water",
		"title":      "Water the monstera",
		"recurrence": "weekly",
		"due_date":   "2026-09-10T00:00:00Z",
	}, user.ID)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 from create, got %d: %s", w.Code, w.Body.String())
	}
	created := decodeBody(t, w)
	if created["frequency_days"] != float64(7) {
		t.Errorf("Expected weekly frequency 7, got %v", created["frequency_days"])
	}

	req = authedRequest(t, "GET", "/tasks?date=2026-09-10", nil, user.ID)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from buckets, got %d: %s", w.Code, w.Body.String())
	}
	buckets := decodeBody(t, w)
	today, ok := buckets["today"].([]interface{})
	if !ok || len(today) != 1 {
		t.Errorf("Expected task due today in today bucket, got %v", buckets["today"])
	}
}

func TestTaskHandler_CustomWithoutFrequencyIs400(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	plant := createTestPlant(t, db, user.ID)

	router := setupTestRouter()
	handler := NewTaskHandler(db, services.NewTaskService())
	router.POST("/tasks", middleware.AuthRequired("test-secret"), handler.CreateTask)

	req := authedRequest(t, "POST", "/tasks", map[string]interface{}{
		"plant_id":   plant.ID.String(),
		"task_type":  "water",
		"title":      "Water",
		"recurrence": "custom",
		"due_date":   "2026-09-10T00:00:00Z",
	}, user.ID)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for custom without frequency, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTaskHandler_CompleteRollsDueDate(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	plant := createTestPlant(t, db, user.ID)

	task, err := services.NewTaskService().CreateTask(db, user.ID, services.TaskRequest{
		PlantID:    plant.ID,
		TaskType:   "water",
		Title:      "Water",
		Recurrence: "weekly",
		DueDate:    time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	router := setupTestRouter()
	handler := NewTaskHandler(db, services.NewTaskService())
	router.POST("/tasks/:id/complete", middleware.AuthRequired("test-secret"), handler.CompleteTask)

	req := authedRequest(t, "POST", "/tasks/"+task.ID.String()+"/complete", map[string]string{
		"completed_date": "2026-09-10",
	}, user.ID)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from complete, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	dueDate, _ := body["due_date"].(string)
	if len(dueDate) < 10 || dueDate[:10] != "2026-09-17" {
		t.Errorf("Expected due date rolled to 2026-09-17, got %v", body["due_date"])
	}
}

func TestTaskHandler_CompletedFalseUndoesCompletion(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	plant := createTestPlant(t, db, user.ID)

	task, err := services.NewTaskService().CreateTask(db, user.ID, services.TaskRequest{
		PlantID:    plant.ID,
		TaskType:   "repot",
		Title:      "Repot",
		Recurrence: "none",
		DueDate:    time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	if _, err := services.NewTaskService().CompleteTask(db, user.ID, task.ID, time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Failed to complete task: %v", err)
	}

	router := setupTestRouter()
	handler := NewTaskHandler(db, services.NewTaskService())
	router.POST("/tasks/:id/complete", middleware.AuthRequired("test-secret"), handler.CompleteTask)

	req := authedRequest(t, "POST", "/tasks/"+task.ID.String()+"/complete", map[string]interface{}{
		"completed": false,
	}, user.ID)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from uncomplete, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["is_completed"] != false {
		t.Errorf("Expected completed flag cleared, got %v", body["is_completed"])
	}

	var completions []models.TaskCompletion
	if err := db.Where("care_task_id = ?", task.ID).Find(&completions).Error; err != nil {
		t.Fatalf("Failed to load completions: %v", err)
	}
	if len(completions) != 1 {
		t.Errorf("Expected uncomplete to leave history untouched, got %d records", len(completions))
	}
}

func TestTaskHandler_NotFoundAcrossUsers(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db)
	intruder := createTestUser(t, db)
	plant := createTestPlant(t, db, owner.ID)

	task, err := services.NewTaskService().CreateTask(db, owner.ID, services.TaskRequest{
		PlantID:    plant.ID,
		TaskType:   "water",
		Title:      "Water",
		Recurrence: "daily",
		DueDate:    time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	router := setupTestRouter()
	handler := NewTaskHandler(db, services.NewTaskService())
	router.GET("/tasks/:id", middleware.AuthRequired("test-secret"), handler.GetTaskByID)

	req := authedRequest(t, "GET", "/tasks/"+task.ID.String(), nil, intruder.ID)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for foreign task, got %d", w.Code)
	}
}

func setupPhotoHandler(t *testing.T, db *gorm.DB) (*PhotoHandler, *uploads.Store, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store, err := uploads.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create upload store: %v", err)
	}

	return NewPhotoHandler(db, services.NewPhotoService(), store, worker.NewJobQueue(client), cache.NewMultiLevelCache(nil)), store, client
}

func TestPhotoHandler_GalleryServedFromCacheUntilInvalidated(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	handler, _, _ := setupPhotoHandler(t, db)

	photoSvc := services.NewPhotoService()
	first, err := photoSvc.CreatePhoto(db, models.PlantPhoto{
		UserID:    user.ID,
		ImagePath: user.ID.String() + "/first.png",
	})
	if err != nil {
		t.Fatalf("Failed to create photo: %v", err)
	}

	router := setupTestRouter()
	router.GET("/photos", middleware.AuthRequired("test-secret"), handler.GetGallery)
	router.DELETE("/photos/:id", middleware.AuthRequired("test-secret"), handler.DeletePhoto)

	getGallery := func() []map[string]interface{} {
		req := authedRequest(t, "GET", "/photos", nil, user.ID)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200 from gallery, got %d: %s", w.Code, w.Body.String())
		}
		var list []map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
			t.Fatalf("Failed to decode gallery %q: %v", w.Body.String(), err)
		}
		return list
	}

	if got := len(getGallery()); got != 1 {
		t.Fatalf("Expected 1 photo in gallery, got %d", got)
	}

	// A row inserted behind the handler's back stays invisible while the
	// cached view is live.
	second, err := photoSvc.CreatePhoto(db, models.PlantPhoto{
		UserID:    user.ID,
		ImagePath: user.ID.String() + "/second.png",
	})
	if err != nil {
		t.Fatalf("Failed to create photo: %v", err)
	}
	if got := len(getGallery()); got != 1 {
		t.Errorf("Expected cached gallery of 1 photo, got %d", got)
	}

	// Deleting through the handler evicts the cached view.
	req := authedRequest(t, "DELETE", "/photos/"+first.ID.String(), nil, user.ID)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204 from delete, got %d: %s", w.Code, w.Body.String())
	}

	refreshed := getGallery()
	if len(refreshed) != 1 {
		t.Fatalf("Expected refreshed gallery of 1 photo, got %d", len(refreshed))
	}
	if refreshed[0]["id"] != second.ID.String() {
		t.Errorf("Expected refreshed gallery to hold the remaining photo, got %v", refreshed[0]["id"])
	}
}

func TestPhotoHandler_DiagnosisNotYetAnalyzed(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	handler, _, _ := setupPhotoHandler(t, db)

	photo, err := services.NewPhotoService().CreatePhoto(db, models.PlantPhoto{
		UserID:    user.ID,
		ImagePath: user.ID.String() + "/leaf.png",
	})
	if err != nil {
		t.Fatalf("Failed to create photo: %v", err)
	}

	router := setupTestRouter()
	router.GET("/photos/:id/diagnosis", middleware.AuthRequired("test-secret"), handler.GetDiagnosis)

	req := authedRequest(t, "GET", "/photos/"+photo.ID.String()+"/diagnosis", nil, user.ID)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 for unanalyzed photo, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != models.DiagnosisPending {
		t.Errorf("Expected pending status in empty-state response, got %v", body["status"])
	}
	if body["error"] != "diagnosis not available" {
		t.Errorf("Expected distinct empty-state error, got %v", body["error"])
	}
}

func TestPhotoHandler_AnalyzeEnqueuesJob(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	handler, _, client := setupPhotoHandler(t, db)

	photo, err := services.NewPhotoService().CreatePhoto(db, models.PlantPhoto{
		UserID:    user.ID,
		ImagePath: user.ID.String() + "/leaf.png",
	})
	if err != nil {
		t.Fatalf("Failed to create photo: %v", err)
	}

	router := setupTestRouter()
	router.POST("/photos/:id/analyze", middleware.AuthRequired("test-secret"), handler.AnalyzePhoto)

	req := authedRequest(t, "POST", "/photos/"+photo.ID.String()+"/analyze", nil, user.ID)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202 from analyze, got %d: %s", w.Code, w.Body.String())
	}

	size, err := worker.NewJobQueue(client).GetQueueSize(worker.AnalysisQueue)
	if err != nil {
		t.Fatalf("Failed to read queue size: %v", err)
	}
	if size != 1 {
		t.Errorf("Expected 1 queued analysis job, got %d", size)
	}

	reloaded, err := services.NewPhotoService().GetPhotoByID(db, user.ID, photo.ID)
	if err != nil {
		t.Fatalf("Failed to reload photo: %v", err)
	}
	if reloaded.DiagnosisStatus != models.DiagnosisProcessing {
		t.Errorf("Expected status processing, got %s", reloaded.DiagnosisStatus)
	}
}

func TestPlantHandler_CRUD(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)

	router := setupTestRouter()
	handler := NewPlantHandler(db, services.NewPlantService())
	authed := router.Group("/", middleware.AuthRequired("test-secret"))
	authed.POST("/plants", handler.CreatePlant)
	authed.GET("/plants", handler.GetPlants)
	authed.DELETE("/plants/:id", handler.DeletePlant)

	req := authedRequest(t, "POST", "/plants", map[string]string{
		"name":    "Ficus",
		"species": "Ficus lyrata",
	}, user.ID)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 from create plant, got %d: %s", w.Code, w.Body.String())
	}
	created := decodeBody(t, w)
	plantID, _ := created["id"].(string)

	req = authedRequest(t, "GET", "/plants", nil, user.ID)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from list plants, got %d", w.Code)
	}

	req = authedRequest(t, "DELETE", "/plants/"+plantID, nil, user.ID)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204 from delete plant, got %d", w.Code)
	}

	// Deletion is permanent.
	req = authedRequest(t, "DELETE", "/plants/"+plantID, nil, user.ID)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for already-deleted plant, got %d", w.Code)
	}
}
