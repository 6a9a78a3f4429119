package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/content-publisher/configs"
	"github.com/maheshrc27/content-publisher/internal/api/handlers"
	"github.com/maheshrc27/content-publisher/internal/api/middleware"
	job "github.com/maheshrc27/content-publisher/internal/jobs"
	"github.com/maheshrc27/content-publisher/internal/logging"
	"github.com/maheshrc27/content-publisher/internal/models"
	"github.com/maheshrc27/content-publisher/internal/queue"
	"github.com/maheshrc27/content-publisher/internal/repository"
	"github.com/maheshrc27/content-publisher/internal/service"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type store struct {
	content      repository.ContentRepository
	integrations repository.IntegrationRepository
	close        func()
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn("Failed to load .env file: ", err)
	}

	cfg := config.LoadConfig()
	logging.Init(cfg.Env, cfg.LogLevel)

	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	media, err := service.NewMediaResolver(ctx, cfg.R2)
	if err != nil {
		log.Fatalf("Failed to set up media resolver: %v", err)
	}

	publishers := service.NewPublisherRegistry()
	publishers.Register(models.PlatformInstagram, service.NewInstagramPublisher(cfg.Publisher, media))

	credentialService := service.NewCredentialService(st.integrations, []byte(cfg.SecretKey))
	statusService := service.NewStatusService(st.content, nil)

	publishJob, err := job.NewPublishJob(st.content, credentialService, publishers, statusService, cfg.Publisher)
	if err != nil {
		log.Fatalf("Invalid publisher configuration: %v", err)
	}

	stopTrigger, err := startTrigger(cfg, publishJob)
	if err != nil {
		log.Fatalf("Failed to start trigger: %v", err)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Publisher.ItemTimeout + time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Errorf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       3600,
	}))

	health := handlers.NewHealthHandler(st.content)
	app.Get("/healthz", health.Health)

	authMiddleware := middleware.NewAuthMiddleware(cfg.SecretKey)
	trigger := handlers.NewTriggerHandler(publishJob)

	debug := app.Group("/debug")
	debug.Use(authMiddleware.TriggerAuth())
	debug.Get("/publish-scheduled", trigger.PublishScheduled)
	debug.Post("/publish-scheduled", trigger.PublishScheduled)

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.WithFields(log.Fields{
		"addr":      cfg.HTTPAddr,
		"store":     cfg.StoreDriver,
		"trigger":   cfg.Trigger.Mode,
		"schedule":  cfg.Trigger.Schedule,
		"platforms": publishers.Platforms(),
	}).Info("Publisher is running")

	gracefulShutdown(app, stopTrigger, st)
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		db := client.Database(cfg.MongoDatabase)
		st := &store{
			content:      repository.NewMongoContentRepository(db),
			integrations: repository.NewMongoIntegrationRepository(db),
			close: func() {
				if err := client.Disconnect(context.Background()); err != nil {
					log.Errorf("Failed to disconnect MongoDB: %v", err)
				}
			},
		}
		if err := st.content.Ping(ctx); err != nil {
			st.close()
			return nil, fmt.Errorf("MongoDB is unreachable: %w", err)
		}
		return st, nil

	case config.StoreDriverPostgres:
		db, err := sql.Open("postgres", cfg.PostgresURI)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			closeDB(db)
			return nil, fmt.Errorf("database is unreachable: %w", err)
		}
		return &store{
			content:      repository.NewContentRepository(db),
			integrations: repository.NewIntegrationRepository(db),
			close:        func() { closeDB(db) },
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// startTrigger starts the periodic trigger and returns a function that
// stops it, waiting for an in-flight run.
func startTrigger(cfg *config.Config, publishJob *job.PublishJob) (func(), error) {
	switch cfg.Trigger.Mode {
	case config.TriggerModeQueue:
		loc, err := time.LoadLocation(cfg.Trigger.Timezone)
		if err != nil {
			return nil, fmt.Errorf("failed to load timezone %q: %w", cfg.Trigger.Timezone, err)
		}

		redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
		scheduler := asynq.NewScheduler(redisConn, &asynq.SchedulerOpts{
			Location: loc,
			Logger:   log.StandardLogger(),
		})
		if _, err := queue.RegisterPeriodic(scheduler, cfg.Trigger.Schedule, cfg.Publisher.LeaseTTL); err != nil {
			return nil, err
		}

		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 1,
			Logger:      log.StandardLogger(),
		})
		if err := server.Start(queue.NewQueue(publishJob).ServeMux()); err != nil {
			return nil, fmt.Errorf("could not start Asynq server: %w", err)
		}
		if err := scheduler.Start(); err != nil {
			server.Shutdown()
			return nil, fmt.Errorf("could not start Asynq scheduler: %w", err)
		}

		log.Info("Asynq publish trigger started")
		return func() {
			scheduler.Shutdown()
			server.Shutdown()
		}, nil

	case config.TriggerModeCron:
		scheduler, err := job.NewScheduler(publishJob, cfg.Trigger.Schedule, cfg.Trigger.Timezone)
		if err != nil {
			return nil, err
		}
		scheduler.Start()
		return func() { <-scheduler.Stop().Done() }, nil

	default:
		return nil, fmt.Errorf("unknown trigger mode %q", cfg.Trigger.Mode)
	}
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, stopTrigger func(), st *store) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	stopTrigger()
	st.close()
	log.Info("Server shutdown complete.")
}
