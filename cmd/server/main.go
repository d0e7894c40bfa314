package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/rebatewise/backend/docs"
	"github.com/rebatewise/backend/internal/audit"
	"github.com/rebatewise/backend/internal/database"
	"github.com/rebatewise/backend/internal/handlers"
	"github.com/rebatewise/backend/internal/ledger"
	mW "github.com/rebatewise/backend/internal/middleware"
	"github.com/rebatewise/backend/internal/services"
)

// @title Rebatewise Ledger API
// @version 1.0
// @description Cashback and broker-referral portal ledger API
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("admin.key_hash", "ADMIN_KEY_HASH")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("portal.base_url", "PORTAL_BASE_URL")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	viper.SetDefault("portal.base_url", "https://rebatewise.example.com")
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Rebatewise Ledger API"
	docs.SwaggerInfo.Description = "Cashback and broker-referral portal ledger API"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	ledgerService := ledger.NewService(db)
	auditLogger := audit.NewLogger(db)
	balanceCache := services.NewBalanceCache(redisClient)

	cashbackService := services.NewCashbackService(ledgerService, balanceCache)
	withdrawalService := services.NewWithdrawalService(ledgerService, balanceCache, auditLogger)
	orderService := services.NewOrderService(ledgerService, balanceCache, auditLogger)
	balanceService := services.NewBalanceService(ledgerService, balanceCache)
	settlementService := services.NewSettlementService(ledgerService)
	referralService := services.NewReferralService(redisClient)
	referralHandler := handlers.NewReferralHandler(referralService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Admin-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			// User-facing ledger operations
			r.Get("/balance", balanceService.GetBalance)
			r.Get("/transactions", balanceService.ListTransactions)
			r.Get("/transactions/{referenceId}", balanceService.GetTransactionsByReference)
			r.Post("/withdrawals", withdrawalService.CreateWithdrawal)
			r.Post("/orders", orderService.CreateOrder)
			r.Get("/referrals/qr", referralHandler.GenerateQR)

			// Privileged operations (back office, affiliate callback worker)
			r.Group(func(r chi.Router) {
				r.Use(mW.AdminKeyMiddleware)

				r.Post("/cashback", cashbackService.AddCashback)
				r.Post("/deposits", cashbackService.AddDeposit)
				r.Post("/referrals/commission", cashbackService.AddReferralCommission)
				r.Post("/referrals/commission/reverse", cashbackService.ReverseReferralCommission)
				r.Put("/withdrawals/{referenceId}/status", withdrawalService.ChangeStatus)
				r.Put("/orders/{referenceId}/status", orderService.ChangeStatus)
				r.Post("/settlements/export", settlementService.ExportWithdrawal)
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
