package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"questionnaire_editor/client"
	"questionnaire_editor/config"
	"questionnaire_editor/db"
	"questionnaire_editor/drafts"
	"questionnaire_editor/editor"
	"questionnaire_editor/events"
	"questionnaire_editor/handlers"
	"questionnaire_editor/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
)

type draftBackend interface {
	editor.DraftStore
	handlers.Pinger
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found") // Non-fatal in production
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	store, closeStore, err := openDraftStore(cfg)
	if err != nil {
		log.Fatalf("Error opening draft store: %v", err)
	}
	defer closeStore()

	registryCfg := editor.RegistryConfig{
		API:    client.New(cfg.APIBaseURL, cfg.APITimeout),
		Drafts: store,
		TTL:    cfg.SessionTTL,
	}
	if cfg.EventsQueueURL != "" {
		publisher, err := events.NewSQSPublisher(ctx, cfg.EventsQueueURL)
		if err != nil {
			log.Fatalf("Error creating event publisher: %v", err)
		}
		registryCfg.Listener = publisher
	}

	registry := editor.NewRegistry(registryCfg)
	registry.StartJanitor(ctx, time.Minute)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Length",
		"Content-Type",
		"Authorization",
	}
	corsConfig.AllowMethods = []string{
		"GET",
		"POST",
		"PUT",
		"DELETE",
		"PATCH",
	}
	r.Use(cors.New(corsConfig))

	// Setup routes
	routes.SetupRoutes(r, registry, store, []byte(cfg.JWTSecret))

	// Run server
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	go func() {
		log.Printf("Questionnaire editor listening on :%s (drafts: %s)", cfg.ServerPort, cfg.DraftStore)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}
}

func openDraftStore(cfg *config.Config) (draftBackend, func(), error) {
	switch cfg.DraftStore {
	case "postgres":
		database, err := db.Initialize(db.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := db.InitSchema(database); err != nil {
			database.Close()
			return nil, nil, err
		}
		return drafts.NewPostgresStore(database), func() { database.Close() }, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			rdb.Close()
			return nil, nil, err
		}
		return drafts.NewRedisStore(rdb, cfg.SessionTTL), func() { rdb.Close() }, nil
	}

	return drafts.NewMemoryStore(), func() {}, nil
}
