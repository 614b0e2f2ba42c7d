package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/spKnowTech/plantpal-app/internal/aibot"
	"github.com/spKnowTech/plantpal-app/internal/cache"
	"github.com/spKnowTech/plantpal-app/internal/config"
	"github.com/spKnowTech/plantpal-app/internal/database"
	"github.com/spKnowTech/plantpal-app/internal/handlers"
	"github.com/spKnowTech/plantpal-app/internal/middleware"
	"github.com/spKnowTech/plantpal-app/internal/models"
	"github.com/spKnowTech/plantpal-app/internal/monitoring"
	"github.com/spKnowTech/plantpal-app/internal/repositories"
	"github.com/spKnowTech/plantpal-app/internal/schedule"
	"github.com/spKnowTech/plantpal-app/internal/services"
	"github.com/spKnowTech/plantpal-app/internal/uploads"
	"github.com/spKnowTech/plantpal-app/internal/worker"
)

// Application holds every long-lived component so startup and shutdown
// stay in one place.
type Application struct {
	Config    *config.Config
	DB        *database.Pool
	Redis     *redis.Client
	Cache     cache.Cache
	Store     *uploads.Store
	JobQueue  *worker.JobQueue
	Worker    *worker.Worker
	Scheduler *schedule.Scheduler
	Router    *gin.Engine
	Server    *http.Server

	AuthHandler  *handlers.AuthHandler
	UserHandler  *handlers.UserHandler
	PlantHandler *handlers.PlantHandler
	TaskHandler  *handlers.TaskHandler
	PhotoHandler *handlers.PhotoHandler
	ChatHandler  *handlers.ChatHandler
	CacheHandler *handlers.CacheHandler
}

func main() {
	log.Println("🚀 Starting PlantPal backend...")

	app, err := initializeApplication()
	if err != nil {
		log.Fatalf("❌ Failed to initialize application: %v", err)
	}

	app.setupRoutes()
	app.startBackground()
	app.startServer()
}

func initializeApplication() (*Application, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log.Printf("✅ Configuration loaded (environment: %s)", cfg.Server.Environment)

	pool, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("✅ Database connection established")

	migrationCfg := &repositories.MigrationConfig{
		MigrationsPath: "file://migrations",
		DBName:         cfg.Database.Name,
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
	}
	if err := repositories.RunMigrations(pool.DB, migrationCfg); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Println("✅ Database migrations applied")

	redisClient := connectRedis(cfg)
	appCache := buildCache(cfg, redisClient)

	store, err := uploads.NewStore(cfg.Uploads.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare upload storage: %w", err)
	}
	log.Printf("✅ Upload storage ready at %s", cfg.Uploads.Dir)

	aiClient := aibot.NewClient(cfg.AI)
	analyzer := aibot.NewAnalyzer(aiClient)

	photoService := services.NewPhotoService()

	app := &Application{
		Config: cfg,
		DB:     pool,
		Redis:  redisClient,
		Cache:  appCache,
		Store:  store,
	}

	if redisClient != nil {
		app.JobQueue = worker.NewJobQueue(redisClient)
		app.Worker = worker.NewWorker(worker.WorkerConfig{
			RedisClient:  redisClient,
			Concurrency:  2,
			PollInterval: time.Second,
			Queues:       []string{worker.AnalysisQueue, worker.RetryQueue},
		})
		processor := services.NewAnalysisProcessor(pool.DB, photoService, analyzer, store, appCache)
		app.Worker.RegisterHandler(worker.JobTypePhotoAnalysis, processor.Handle)
	} else {
		log.Println("⚠️ Redis unavailable, photo analysis jobs disabled")
	}

	app.Scheduler = schedule.NewScheduler(time.UTC)

	app.AuthHandler = handlers.NewAuthHandler(pool.DB, services.NewRegisterService(), services.NewAuthService(cfg.JWT))
	app.UserHandler = handlers.NewUserHandler(pool.DB, services.NewUserService())
	app.PlantHandler = handlers.NewPlantHandler(pool.DB, services.NewPlantService())
	app.TaskHandler = handlers.NewTaskHandler(pool.DB, services.NewTaskService())
	app.PhotoHandler = handlers.NewPhotoHandler(pool.DB, photoService, store, app.JobQueue, appCache)
	app.ChatHandler = handlers.NewChatHandler(pool.DB, services.NewChatService(aiClient))
	app.CacheHandler = handlers.NewCacheHandler(appCache, app.JobQueue)

	registerHealthChecks(app)

	return app, nil
}

func connectRedis(cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️ Redis connection failed: %v", err)
		_ = client.Close()
		return nil
	}
	log.Println("✅ Redis connection established")
	return client
}

func buildCache(cfg *config.Config, redisClient *redis.Client) cache.Cache {
	if redisClient == nil {
		log.Println("⚠️ Falling back to in-process cache only")
		return cache.NewMultiLevelCache(nil)
	}
	redisCache := cache.NewRedisCacheFromClient(redisClient)
	if cfg.IsProduction() {
		return redisCache
	}
	return cache.NewMultiLevelCache(redisCache)
}

func registerHealthChecks(app *Application) {
	monitoring.RegisterHealthCheck("database", func(ctx context.Context) error {
		return app.DB.Health()
	})
	if app.Redis != nil {
		monitoring.RegisterHealthCheck("redis", func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		})
	}
	monitoring.RegisterHealthCheck("uploads", func(ctx context.Context) error {
		_, err := os.Stat(app.Config.Uploads.Dir)
		return err
	})
}

func (app *Application) setupRoutes() {
	if app.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(monitoring.MetricsMiddleware())
	router.Use(middleware.RecoveryWithLog())
	router.Use(middleware.SecureHeaders())
	router.Use(middleware.RateLimiter(
		rate.Limit(float64(app.Config.RateLimit.RequestsPerMin)/60.0),
		app.Config.RateLimit.BurstSize,
	))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", monitoring.HealthHandler())
	router.GET("/ready", monitoring.ReadinessHandler())
	router.GET("/live", monitoring.LivenessHandler())
	router.GET("/metrics", monitoring.MetricsHandler())

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/register", app.AuthHandler.Register)
		auth.POST("/login", app.AuthHandler.Login)
		auth.POST("/refresh", app.AuthHandler.Refresh)
		auth.POST("/logout", app.AuthHandler.Logout)
	}

	protected := v1.Group("")
	protected.Use(middleware.AuthRequired(app.Config.JWT.Secret))

	// AI-backed routes get a stricter per-user sliding window on top of
	// the global limiter.
	var aiLimit gin.HandlerFunc
	if app.Redis != nil {
		limiter := middleware.NewDistributedRateLimiter(app.Redis)
		aiLimit = limiter.CreateMiddleware("ai", &middleware.RateLimit{
			Rate:    app.Config.RateLimit.AIRequestsPerMin,
			Window:  time.Minute,
			KeyFunc: middleware.UserKeyFunc,
		})
	} else {
		aiLimit = func(c *gin.Context) { c.Next() }
	}

	users := protected.Group("/users")
	{
		users.GET("/profile", app.UserHandler.GetProfile)
		users.PUT("/profile", app.UserHandler.UpdateProfile)
		users.DELETE("/profile", app.UserHandler.DeactivateAccount)
	}

	plants := protected.Group("/plants")
	{
		plants.POST("", app.PlantHandler.CreatePlant)
		plants.GET("", app.PlantHandler.GetPlants)
		plants.GET("/:id", app.PlantHandler.GetPlantByID)
		plants.PUT("/:id", app.PlantHandler.UpdatePlant)
		plants.DELETE("/:id", app.PlantHandler.DeletePlant)
		plants.GET("/:id/tasks", app.TaskHandler.GetTasksForPlant)
	}

	tasks := protected.Group("/tasks")
	{
		tasks.POST("", app.TaskHandler.CreateTask)
		tasks.GET("", app.TaskHandler.GetTasks)
		tasks.GET("/:id", app.TaskHandler.GetTaskByID)
		tasks.PUT("/:id", app.TaskHandler.UpdateTask)
		tasks.POST("/:id/complete", app.TaskHandler.CompleteTask)
		tasks.DELETE("/:id", app.TaskHandler.DeleteTask)
	}

	photos := protected.Group("/photos")
	{
		photos.POST("", app.PhotoHandler.UploadPhoto)
		photos.GET("", app.PhotoHandler.GetGallery)
		photos.GET("/:id/diagnosis", app.PhotoHandler.GetDiagnosis)
		photos.POST("/:id/analyze", aiLimit, app.PhotoHandler.AnalyzePhoto)
		photos.DELETE("/:id", app.PhotoHandler.DeletePhoto)
	}

	chat := protected.Group("/chat")
	{
		chat.POST("", aiLimit, app.ChatHandler.Chat)
		chat.GET("/history", app.ChatHandler.GetHistory)
	}

	admin := protected.Group("/admin/cache")
	{
		admin.GET("/stats", app.CacheHandler.GetCacheStats)
		admin.GET("/health", app.CacheHandler.GetCacheHealth)
		admin.DELETE("/keys/:key", app.CacheHandler.EvictCacheKey)
	}

	app.Router = router
	app.Server = &http.Server{
		Addr:         app.Config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}
}

// startBackground launches the analysis worker and the maintenance jobs.
func (app *Application) startBackground() {
	if app.Worker != nil {
		app.Worker.Start(2)
		log.Println("✅ Photo analysis worker started")
	}

	if _, err := app.Scheduler.ScheduleDaily("03:00", app.purgeExpiredTokens); err != nil {
		log.Printf("⚠️ Failed to schedule token cleanup: %v", err)
	}
	if _, err := app.Scheduler.ScheduleDaily("06:00", app.scanOverdueTasks); err != nil {
		log.Printf("⚠️ Failed to schedule overdue scan: %v", err)
	}
	if app.JobQueue != nil {
		if _, err := app.Scheduler.ScheduleInterval(5*time.Minute, app.refreshStatsCache); err != nil {
			log.Printf("⚠️ Failed to schedule stats refresh: %v", err)
		}
	}
	app.Scheduler.Start()
	log.Println("✅ Scheduler started")
}

func (app *Application) purgeExpiredTokens() {
	result := app.DB.Where("expires_at < ?", time.Now()).Delete(&models.Token{})
	if result.Error != nil {
		log.Printf("⚠️ Token cleanup failed: %v", result.Error)
		return
	}
	if result.RowsAffected > 0 {
		log.Printf("🔄 Purged %d expired refresh tokens", result.RowsAffected)
	}
}

// scanOverdueTasks counts active tasks that slipped past their due date and
// caches the count for the admin stats endpoint.
func (app *Application) scanOverdueTasks() {
	var count int64
	err := app.DB.Model(&models.CareTask{}).
		Where("is_active = ? AND is_completed = ? AND due_date < ?", true, false, time.Now()).
		Count(&count).Error
	if err != nil {
		log.Printf("⚠️ Overdue task scan failed: %v", err)
		return
	}
	if count > 0 {
		log.Printf("🔄 Overdue task scan: %d tasks past due", count)
	}
	if err := app.Cache.Set("stats:overdue_tasks", count, 24*time.Hour); err != nil {
		log.Printf("⚠️ Failed to cache overdue count: %v", err)
	}
}

// refreshStatsCache snapshots queue depths into the cache so the admin
// stats endpoint serves a recent view without a Redis round trip per queue.
func (app *Application) refreshStatsCache() {
	depths := map[string]int64{}
	for _, queue := range []string{worker.AnalysisQueue, worker.RetryQueue, worker.DeadQueue} {
		size, err := app.JobQueue.GetQueueSize(queue)
		if err != nil {
			log.Printf("⚠️ Failed to read %s size: %v", queue, err)
			continue
		}
		depths[queue] = size
	}
	if err := app.Cache.Set("stats:queues", depths, 10*time.Minute); err != nil {
		log.Printf("⚠️ Failed to cache queue stats: %v", err)
	}
}

func (app *Application) startServer() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("🛑 Shutdown signal received, draining...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := app.Server.Shutdown(ctx); err != nil {
			log.Printf("⚠️ Server shutdown error: %v", err)
		}
		app.cleanup()
	}()

	log.Printf("🚀 Server listening on %s", app.Config.GetServerAddr())
	if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("❌ Server failed: %v", err)
	}
	log.Println("✅ Server stopped")
}

func (app *Application) cleanup() {
	log.Println("🔄 Cleaning up resources...")

	app.Scheduler.Stop()
	if app.Worker != nil {
		app.Worker.Stop()
	}
	if app.Cache != nil {
		if err := app.Cache.Close(); err != nil {
			log.Printf("⚠️ Cache close error: %v", err)
		}
	}
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			log.Printf("⚠️ Redis close error: %v", err)
		}
	}
	if err := app.DB.Close(); err != nil {
		log.Printf("⚠️ Database close error: %v", err)
	}

	log.Println("✅ Cleanup complete")
}
