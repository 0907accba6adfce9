package bootstrap

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"online-booking-backend/config"
	deliveryHttp "online-booking-backend/internal/delivery/http"
	"online-booking-backend/internal/delivery/http/handler"
	"online-booking-backend/internal/delivery/http/middleware"
	"online-booking-backend/internal/gateway/ai"
	"online-booking-backend/internal/gateway/stripe"
	"online-booking-backend/internal/infrastructure/cache"
	"online-booking-backend/internal/infrastructure/database"
	"online-booking-backend/internal/repository"
	"online-booking-backend/internal/scheduler"
	"online-booking-backend/internal/service"
	"online-booking-backend/internal/usecase"
	"online-booking-backend/pkg/clock"
	"online-booking-backend/pkg/idgen"
	"online-booking-backend/pkg/jwt"
	"online-booking-backend/pkg/validator"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App holds all dependencies for the application
type App struct {
	Config      *config.Config
	DB          *gorm.DB
	RedisClient *redis.Client
	Server      *http.Server
	Scheduler   *scheduler.Scheduler
}

// New creates a new App instance with all dependencies initialized
func New() (*App, error) {
	app := &App{}

	// Setup logger
	setupLogger()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg
	logrus.Info("Configuration loaded successfully")

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = db
	logrus.Info("Database connected successfully")

	// Run schema migrations
	if err := database.RunMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logrus.Info("Database migrations applied")

	// Initialize Redis
	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	app.RedisClient = redisClient
	logrus.Info("Redis connected successfully")

	// Initialize all layers
	server, sched := initializeServer(cfg, db, redisClient)
	app.Server = server
	app.Scheduler = sched

	return app, nil
}

// setupLogger configures the logrus logger
func setupLogger() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)
}

// initializeServer creates and configures the HTTP server and the scheduler
func initializeServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*http.Server, *scheduler.Scheduler) {
	// Initialize JWT service
	jwtService := jwt.NewJWTService(cfg.JWT)

	// Initialize validator
	customValidator := validator.NewValidator()

	// Initialize logger
	log := logrus.StandardLogger()

	// Initialize shared utilities
	systemClock := clock.NewSystem()
	idGenerator := idgen.New(rand.NewSource(time.Now().UnixNano()))

	// Initialize gateway clients
	paymentClient := stripe.NewClient(cfg.Stripe, log)
	aiClient := ai.NewClient(cfg.Chat, log)

	// Initialize repositories
	userRepo := repository.NewUserRepository()
	bookingRepo := repository.NewBookingRepository()
	chatSessionRepo := repository.NewChatSessionRepository()
	chatMessageRepo := repository.NewChatMessageRepository()
	auditLogRepo := repository.NewAuditLogRepository()

	// Initialize services
	auditService := service.NewAuditService(log, auditLogRepo)
	conflictDetector := service.NewConflictDetector(bookingRepo)
	reconciler := service.NewPaymentReconciler(db, log, bookingRepo, auditService, paymentClient, redisClient, systemClock, cfg.Stripe.CallTimeout)

	// Initialize usecases
	authUsecase := usecase.NewAuthUsecase(db, log, userRepo, auditService, jwtService, redisClient, idGenerator)
	bookingUsecase := usecase.NewBookingUsecase(db, log, bookingRepo, conflictDetector, reconciler, auditService, systemClock, cfg.Stripe.DefaultCurrency)
	chatUsecase := usecase.NewChatUsecase(db, log, chatSessionRepo, chatMessageRepo, auditService, aiClient, idGenerator)
	auditLogUsecase := usecase.NewAuditLogUsecase(db, log, auditLogRepo)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authUsecase, customValidator, jwtService)
	bookingHandler := handler.NewBookingHandler(bookingUsecase, customValidator)
	chatHandler := handler.NewChatHandler(chatUsecase, customValidator)
	auditLogHandler := handler.NewAuditLogHandler(auditLogUsecase)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtService, redisClient)
	corsMiddleware := middleware.NewCORSMiddleware()

	// Initialize router
	router := deliveryHttp.NewRouter(authHandler, bookingHandler, chatHandler, auditLogHandler, authMiddleware, corsMiddleware)
	httpRouter := router.Setup()

	// Initialize scheduler
	sched := scheduler.New(log, reconciler, cfg.Scheduler)

	// Create server
	serverAddr := fmt.Sprintf(":%s", cfg.App.Port)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: httpRouter,
	}
	return server, sched
}

// Run starts the HTTP server plus the scheduler and handles graceful shutdown
func (app *App) Run() {
	if err := app.Scheduler.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}

	// Start server in goroutine
	go func() {
		logrus.Infof("Server starting on port %s", app.Config.App.Port)
		logrus.Infof("Environment: %s", app.Config.App.Env)
		if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	app.waitForShutdown()
}

// waitForShutdown blocks until an interrupt signal is received
func (app *App) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	// Stop the scheduler first so no reconcile sweep starts mid-shutdown
	app.Scheduler.Stop()

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server gracefully
	if err := app.Server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	// Close connections
	app.Close()

	logrus.Info("Server shutdown complete")
}

// Close closes all connections (database, redis, etc.)
func (app *App) Close() {
	// Close database connection
	if app.DB != nil {
		sqlDB, err := app.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}

	// Close Redis connection
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}
