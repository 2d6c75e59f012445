package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qarelease/internal/clients"
	"qarelease/internal/config"
	"qarelease/internal/handlers"
	"qarelease/internal/middleware"
	"qarelease/internal/notifier"
	"qarelease/internal/repository"
	"qarelease/internal/service"
	"qarelease/internal/worker"
	"qarelease/pkg/database"
	"qarelease/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

func main() {
	// Загрузка .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	log.Println("=== QA Release Service Starting ===")

	// Загрузка конфигурации
	cfg := config.Load()

	// Подключение к PostgreSQL
	db, err := database.Connect(database.Config{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		DBName:   cfg.DB.DBName,
		SSLMode:  cfg.DB.SSLMode,
	})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	// Подключение к Redis
	redisClient, err := redis.Connect(redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	// Автомиграция моделей
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Инициализация репозиториев
	releaseRepo := repository.NewReleaseRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	// Клиенты реестров проб и результатов
	sampleClient := clients.NewSampleClient(cfg.Registry.SampleURL, cfg.Registry.Timeout)
	resultClient := clients.NewResultClient(cfg.Registry.ResultURL, cfg.Registry.Timeout)

	// Складской нотификатор: Kafka либо лог-заглушка
	var warehouseNotifier notifier.WarehouseNotifier
	if cfg.Kafka.Enabled {
		warehouseNotifier = notifier.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		log.Printf("Warehouse notifier: kafka topic %s", cfg.Kafka.Topic)
	} else {
		warehouseNotifier = notifier.NewLogNotifier()
		log.Println("Warehouse notifier: log stub (KAFKA_ENABLED=false)")
	}
	defer warehouseNotifier.Close()

	// Инициализация сервисов
	numberGenerator := service.NewReleaseNumberGenerator(releaseRepo, sequenceRepo)
	releaseService := service.NewReleaseService(
		releaseRepo, cacheRepo, sampleClient, resultClient, warehouseNotifier, numberGenerator)

	// Воркер повторных уведомлений склада
	scheduler := worker.NewScheduler()
	if cfg.Workers.NotifyEnabled {
		scheduler.AddWorker(worker.NewNotifyWorker(releaseService, cfg.Workers.NotifyInterval))
		log.Printf("Notify Worker enabled (interval: %v)", cfg.Workers.NotifyInterval)
	}

	go scheduler.Start()
	defer scheduler.Stop()

	// Инициализация Gin
	if cfg.App.Debug {
		gin.SetMode(gin.DebugMode)
		log.Println("Running in DEBUG mode")
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	// CORS для дашбордов
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", cfg.App.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Rate limiting (только для продакшена)
	if !cfg.App.Debug {
		limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
		r.Use(middleware.RateLimitMiddleware(limiter))
		log.Printf("Rate limiting enabled: %d req/sec, burst: %d",
			cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	// Группа API v1
	api := r.Group("/api/v1")

	releaseHandler := handlers.NewReleaseHandler(releaseService)
	releaseHandler.RegisterRoutes(api)

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"services": gin.H{
				"database":        "connected",
				"redis":           "connected",
				"sample_registry": cfg.Registry.SampleURL,
				"result_registry": cfg.Registry.ResultURL,
			},
		})
	})

	// Системная статистика
	api.GET("/system/stats", func(c *gin.Context) {
		ctx := c.Request.Context()

		redisStats, _ := redis.GetStats(redisClient)
		releaseCount, _ := releaseRepo.Count(ctx)

		c.JSON(200, gin.H{
			"database": gin.H{
				"releases": releaseCount,
			},
			"redis": redisStats,
			"workers": gin.H{
				"notify_enabled": cfg.Workers.NotifyEnabled,
			},
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%s", cfg.App.Port)
		log.Printf("API available at http://localhost:%s/api/v1", cfg.App.Port)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start:", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited properly")
}
