package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dinetab/dinetab-backend/internal/events"
	"github.com/dinetab/dinetab-backend/internal/identity"
	"github.com/dinetab/dinetab-backend/internal/metrics"
	"github.com/dinetab/dinetab-backend/internal/orders"
	"github.com/dinetab/dinetab-backend/internal/pricing"
	"github.com/dinetab/dinetab-backend/internal/receipts"
	"github.com/dinetab/dinetab-backend/internal/settlement"
	"github.com/dinetab/dinetab-backend/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	// Database configuration
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "tablesrv")
	dbPassword := getEnv("DB_PASSWORD", "tablesrv")
	dbName := getEnv("DB_NAME", "tablesrv")

	// Kafka configuration
	kafkaBrokers := getEnv("KAFKA_BROKERS", "localhost:9092")

	// Service configuration
	port := getEnv("ORDER_SERVICE_PORT", "8080")
	commissionRate := getEnvFloat("COMMISSION_RATE", settlement.DefaultCommissionRate, logger)

	db, err := storage.Open(dbHost, dbPort, dbUser, dbPassword, dbName, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := storage.CreateSchema(db); err != nil {
		logger.WithError(err).Fatal("Failed to create schema")
	}

	notifier, err := events.NewKafkaNotifier(kafkaBrokers, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Kafka producer")
	}
	defer notifier.Close()

	reg := metrics.NewRegistry()

	orderStore := storage.NewPostgresOrderStore(db, logger)
	tableStore := storage.NewPostgresTableStore(db)
	productStore := storage.NewPostgresProductStore(db)
	billStore := storage.NewPostgresBillStore(db)

	pricer := pricing.NewEngine(productStore, logger)
	orderService := orders.NewService(orderStore, tableStore, productStore, pricer, notifier, reg, logger)
	settlementEngine := settlement.NewEngine(
		settlement.Config{CommissionRate: commissionRate},
		orderStore, billStore, notifier, reg, logger)
	receiptService := receipts.NewService(orderStore, logger)

	handler := orders.NewHandler(orderService, settlementEngine, receiptService, logger)

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck(db)).Methods("GET")
	router.Handle("/metrics", reg.Handler()).Methods("GET")

	api := router.PathPrefix("/").Subrouter()
	api.Use(loggingMiddleware(logger))
	api.Use(identity.Middleware(logger))
	handler.Routes(api)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("port", port).Info("Starting order service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	logger.Info("Server gracefully stopped")
}

func healthCheck(db interface{ Ping() error }) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","service":"order-service"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"order-service"}`))
	}
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			logger.WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
				"remote": r.RemoteAddr,
			}).Info("Request received")

			next.ServeHTTP(w, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start).Milliseconds(),
			}).Info("Request completed")
		})
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64, logger *logrus.Logger) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"key":   key,
			"value": value,
		}).Warn("Invalid numeric value, using default")
		return defaultValue
	}
	return parsed
}
