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

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/loanflow/loan-engine/internal/config"
	"github.com/loanflow/loan-engine/internal/handler"
	"github.com/loanflow/loan-engine/internal/notifier"
	"github.com/loanflow/loan-engine/internal/payment"
	"github.com/loanflow/loan-engine/internal/repository"
	"github.com/loanflow/loan-engine/internal/service"
	"github.com/loanflow/loan-engine/pkg/logger"
	"github.com/loanflow/loan-engine/pkg/response"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zapLogger.Sync()

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		zapLogger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Redis
	redisClient := initRedis(cfg)
	defer redisClient.Close()

	// Initialize repositories
	appRepo := repository.NewApplicationRepository(db)
	productRepo := repository.NewProductRepository(db)

	// Initialize collaborators
	gateway, err := payment.NewMercadoPagoGateway(cfg.Payment.AccessToken, cfg.Payment.MockMode, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to initialize payment gateway", zap.Error(err))
	}
	notif := notifier.NewRedisNotifier(redisClient, cfg.Business.NotificationChannel, zapLogger)

	// Initialize service and handlers
	appService := service.NewApplicationService(appRepo, productRepo, gateway, notif, redisClient, cfg, zapLogger)
	appHandler := handler.NewApplicationHandler(appService)
	healthHandler := handler.NewHealthHandler(db, redisClient)

	// Setup routes
	router := setupRoutes(appHandler, healthHandler, zapLogger)

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func setupRoutes(appHandler *handler.ApplicationHandler, healthHandler *handler.HealthHandler, zapLogger *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.CORSMiddleware)
	router.Use(response.LoggingMiddleware(zapLogger))

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/applications", appHandler.Submit).Methods("POST")
	api.HandleFunc("/applications", appHandler.List).Methods("GET")
	api.HandleFunc("/applications/status", appHandler.BulkTransition).Methods("POST")
	api.HandleFunc("/applications/{id}", appHandler.Get).Methods("GET")
	api.HandleFunc("/applications/{id}", appHandler.Cancel).Methods("DELETE")
	api.HandleFunc("/applications/{id}/status", appHandler.Transition).Methods("PATCH")
	api.HandleFunc("/applications/{id}/fee/confirm", appHandler.ConfirmFee).Methods("POST")
	api.HandleFunc("/applications/{id}/schedule", appHandler.Schedule).Methods("GET")

	return router
}
