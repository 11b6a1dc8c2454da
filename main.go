package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/carelog/backend/config"
	"github.com/carelog/backend/extractor"
	"github.com/carelog/backend/handlers"
	"github.com/carelog/backend/middleware"
	"github.com/carelog/backend/store"
	"github.com/carelog/backend/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

type App struct {
	Fiber       *fiber.App
	Mongo       *mongo.Client
	Postgres    *pgxpool.Pool
	Redis       *redis.Client
	MinioClient *minio.Client
	Ctx         context.Context
	Config      *config.Config
	Logger      *zap.Logger
}

func NewApp() (*App, error) {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %v", err)
	}

	// Setup MongoDB connection with retry logic
	var mongoClient *mongo.Client
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		mongoClient, err = mongo.Connect(options.Client().ApplyURI(cfg.MongoDBURL))
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = mongoClient.Ping(pingCtx, nil)
			cancel()
			if err == nil {
				break
			}
			mongoClient.Disconnect(ctx)
		}
		logger.Warn("failed to connect to mongodb, retrying...",
			zap.Error(err),
			zap.Int("attempt", i+1))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb connection failed after %d attempts: %v", maxRetries, err)
	}

	// Setup PostgreSQL connection with retry logic
	var pgPool *pgxpool.Pool

	poolConfig, err := pgxpool.ParseConfig(cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pool config: %v", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	for i := 0; i < maxRetries; i++ {
		pgPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
		if err == nil {
			if err = pgPool.Ping(ctx); err == nil {
				break
			}
			pgPool.Close()
		}
		logger.Warn("failed to connect to postgres, retrying...",
			zap.Error(err),
			zap.Int("attempt", i+1))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		return nil, fmt.Errorf("postgres connection failed after %d attempts: %v", maxRetries, err)
	}

	// Setup Redis connection with retry logic
	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis URL parsing failed: %v", err)
	}

	redisClient := redis.NewClient(redisOpt)
	for i := 0; i < maxRetries; i++ {
		_, err = redisClient.Ping(ctx).Result()
		if err == nil {
			break
		}
		logger.Warn("failed to connect to redis, retrying...",
			zap.Error(err),
			zap.Int("attempt", i+1))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		return nil, fmt.Errorf("redis connection failed after %d attempts: %v", maxRetries, err)
	}

	// Setup MinIO connection
	minioClient, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.IsProduction(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %v", err)
	}

	// Fiber setup with improved error handling
	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			logger.Error("request error",
				zap.Error(err),
				zap.String("path", c.Path()),
				zap.Int("status", code))
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
		ReadTimeout: time.Second * 10,
		// Extraction calls can chew through several model fallbacks.
		WriteTimeout: time.Second * 120,
	})

	// Add recover middleware
	fiberApp.Use(middleware.RecoveryMiddleware(logger))

	// CORS configuration
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		ExposeHeaders:    "Set-Cookie",
		MaxAge:           300,
	}))

	// Request logging middleware
	fiberApp.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		logger.Info("request completed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
			zap.Duration("duration", duration),
			zap.Int("status", c.Response().StatusCode()),
		)
		return err
	})

	return &App{
		Fiber:       fiberApp,
		Mongo:       mongoClient,
		Postgres:    pgPool,
		Redis:       redisClient,
		MinioClient: minioClient,
		Ctx:         ctx,
		Config:      cfg,
		Logger:      logger,
	}, nil
}

func (a *App) setupRoutes() error {
	sessionHours, err := strconv.Atoi(a.Config.SessionDuration)
	if err != nil || sessionHours <= 0 {
		sessionHours = 24
	}
	tokens := utils.NewTokenManager(a.Redis, a.Config.JWTSecret, time.Duration(sessionHours)*time.Hour)

	authMiddleware := middleware.NewAuthMiddleware(a.Logger, tokens, "carelog_session")
	usageLimiter := middleware.NewUsageLimiter(a.Logger, a.Redis, a.Config.AIDailyLimit)

	historyStore := store.NewHistoryStore(a.Mongo, a.Config.MongoDBName, a.Logger)
	if err := historyStore.EnsureIndexes(a.Ctx); err != nil {
		a.Logger.Warn("failed to ensure history indexes", zap.Error(err))
	}

	extractorClient, err := extractor.NewClient(a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize extractor: %v", err)
	}

	authHandler := handlers.NewAuthHandler(a.Config, a.Logger, a.Mongo, tokens)
	patientsHandler := handlers.NewPatientsHandler(a.Config, a.Logger, a.Mongo, a.MinioClient)
	notesHandler := handlers.NewNotesHandler(a.Config, a.Logger, a.Mongo, historyStore, extractorClient)
	chatHandler := handlers.NewChatHandler(a.Config, a.Logger, a.Mongo, historyStore, extractorClient)
	appointmentsHandler := handlers.NewAppointmentsHandler(a.Config, a.Logger, a.Mongo)
	medicationsHandler := handlers.NewMedicationsHandler(a.Config, a.Logger, a.Mongo)
	drugRefHandler := handlers.NewDrugRefHandler(a.Config, a.Logger, a.Postgres)

	// Auth routes
	auth := a.Fiber.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/logout", authMiddleware.Handler(), authHandler.Logout)
	auth.Get("/me", authMiddleware.Handler(), authHandler.Me)

	// API routes behind auth
	api := a.Fiber.Group("/api", authMiddleware.Handler())

	patients := api.Group("/patients")
	patients.Post("/", patientsHandler.CreatePatient)
	patients.Get("/", patientsHandler.ListPatients)
	patients.Get("/:id", patientsHandler.GetPatient)
	patients.Put("/:id", patientsHandler.UpdatePatient)
	patients.Delete("/:id", patientsHandler.DeletePatient)
	patients.Post("/:id/photo", patientsHandler.UploadPhoto)

	// Consultation notes; creation and edits trigger extraction and count
	// against the daily AI quota
	patients.Post("/:id/notes", usageLimiter.Handler(), notesHandler.CreateNote)
	patients.Get("/:id/notes", notesHandler.ListNotes)
	api.Get("/notes/:id", notesHandler.GetNote)
	api.Put("/notes/:id", usageLimiter.Handler(), notesHandler.UpdateNote)
	api.Delete("/notes/:id", notesHandler.DeleteNote)

	// Chat
	patients.Post("/:id/chat", chatHandler.SendMessage)
	patients.Get("/:id/chat", chatHandler.ListMessages)
	patients.Post("/:id/chat/extract", usageLimiter.Handler(), chatHandler.ExtractFromChat)

	// Appointments
	api.Post("/appointments", appointmentsHandler.CreateAppointment)
	api.Get("/appointments", appointmentsHandler.ListAppointments)
	api.Get("/appointments/:id", appointmentsHandler.GetAppointment)
	api.Put("/appointments/:id", appointmentsHandler.UpdateAppointment)
	api.Delete("/appointments/:id", appointmentsHandler.DeleteAppointment)

	// Medication schedules
	patients.Post("/:id/medications", medicationsHandler.CreateMedication)
	patients.Get("/:id/medications", medicationsHandler.ListMedications)
	api.Put("/medications/:id", medicationsHandler.UpdateMedication)
	api.Delete("/medications/:id", medicationsHandler.DeleteMedication)

	// Drug reference catalog
	api.Get("/drugs/search", drugRefHandler.SearchDrugs)

	// Media
	a.Fiber.Get("/api/media/patient-photos/:filename", patientsHandler.GetPhoto)

	return nil
}

func (a *App) Start() error {
	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Setup routes
	if err := a.setupRoutes(); err != nil {
		return fmt.Errorf("failed to setup routes: %v", err)
	}

	// Start server in a goroutine
	go func() {
		if err := a.Fiber.Listen(":" + a.Config.ServerPort); err != nil {
			a.Logger.Fatal("failed to start server",
				zap.Error(err),
				zap.String("port", a.Config.ServerPort))
		}
	}()

	a.Logger.Info("server started",
		zap.String("port", a.Config.ServerPort))

	// Wait for interrupt signal
	<-sigChan
	a.Logger.Info("shutting down server...")

	// Cleanup
	if err := a.Fiber.Shutdown(); err != nil {
		a.Logger.Error("error during server shutdown",
			zap.Error(err))
	}
	if err := a.Mongo.Disconnect(a.Ctx); err != nil {
		a.Logger.Error("error closing mongodb connection",
			zap.Error(err))
	}
	a.Postgres.Close()
	if err := a.Redis.Close(); err != nil {
		a.Logger.Error("error closing redis connection",
			zap.Error(err))
	}
	if err := a.Logger.Sync(); err != nil {
		log.Printf("error syncing logger: %v", err)
	}

	return nil
}

func main() {
	app, err := NewApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.Start(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}
