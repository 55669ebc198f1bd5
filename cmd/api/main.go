package main

import (
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"agenda-eventos/internal/config"
	"agenda-eventos/internal/handler"
	"agenda-eventos/internal/logger"
	"agenda-eventos/internal/metrics"
	"agenda-eventos/internal/middleware"
	"agenda-eventos/internal/pkg/i18n"
	"agenda-eventos/internal/realtime"
	"agenda-eventos/internal/repository"
	"agenda-eventos/internal/service"
	"agenda-eventos/migrations"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.Environment)
	if envErr != nil {
		log.Info("no .env file found, using environment variables")
	}

	if cfg.JWTSecret == "" {
		log.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	metrics.Init()

	db, err := config.NewPostgresDB(cfg)
	if err != nil {
		log.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := config.Migrate(db, migrations.FS, log); err != nil {
		log.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	var broker realtime.Broker
	redisClient, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Warn("redis unavailable, change events stay in-process", slog.Any("error", err))
		broker = realtime.NewLocalBroker()
	} else {
		defer redisClient.Close()
		broker = realtime.NewRedisBroker(redisClient, log)
	}

	minioClient, err := config.NewMinIOClient(cfg, log)
	if err != nil {
		log.Warn("minio unavailable, deleted events will not be archived", slog.Any("error", err))
		minioClient = nil
	}

	catalog := i18n.NewCatalog(cfg.DefaultLocale)
	if err := catalog.Load(cfg.LocalePath); err != nil {
		log.Warn("failed to load notification texts", slog.String("path", cfg.LocalePath), slog.Any("error", err))
	}

	repos := repository.NewRepositories(db, broker)
	services := service.NewServices(repos, broker, minioClient, catalog, cfg, log)
	handlers := handler.NewHandlers(services)

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health" || c.Path() == "/metrics"
		},
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))
	app.Use(middleware.Metrics())

	handler.SetupRoutes(app, handlers, middleware.AuthRequired(cfg.JWTSecret, repos.User))

	log.Info("server starting", slog.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Error("failed to start server", slog.Any("error", err))
		os.Exit(1)
	}
}
