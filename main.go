package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wambuik/chamaflow/config"
	mysqldb "github.com/wambuik/chamaflow/infra/mysql"
	redisdb "github.com/wambuik/chamaflow/infra/redis"
	"github.com/wambuik/chamaflow/internal/domain"
	"github.com/wambuik/chamaflow/internal/model"
	"github.com/wambuik/chamaflow/internal/scheduler"
	"github.com/wambuik/chamaflow/pkg/cloudinary"
	"github.com/wambuik/chamaflow/pkg/password"
	ratelimiter "github.com/wambuik/chamaflow/pkg/rate-limiter"
	"github.com/wambuik/chamaflow/pkg/telemetry"
	"github.com/wambuik/chamaflow/presenter"
	"github.com/wambuik/chamaflow/router"

	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	slog.Info("Starting application setup...")

	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		slog.Error("No .env file found, using system environment variables", "error", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	tel, err := telemetry.New(ctx, cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize monitoring: %v", err))
	}

	db, err := mysqldb.InitializeDatabase()
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}

	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.SHUTDOWN_TIMEOUT)
		defer cancelShutdown()

		zap.L().Info("Closing MySQL Connection...")
		if err := mysqldb.Close(db, shutdownCtx); err != nil {
			zap.L().Error("Error disconnecting from MySQL", zap.Error(err))
		} else {
			zap.L().Info("Disconnected from MySQL.")
		}

		zap.L().Info("Shutting down monitoring...")
		if err := tel.Shutdown(shutdownCtx); err != nil {
			zap.L().Error("Error during monitoring shutdown", zap.Error(err))
		} else {
			zap.L().Info("Monitoring shutdown complete.")
		}
	}()

	if err := model.AutoMigrate(db); err != nil {
		slog.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migration completed!")

	SeedTreasurer(db)

	if err := mysqldb.Ping(db, ctx); err != nil {
		slog.Error("Database ping failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connection successful!")

	stats := mysqldb.GetStats(db)
	slog.Info("Database stats:", "stats", stats)

	cld, err := cloudinary.InitCloudinary(cfg)
	if err != nil {
		slog.Error("Failed to initialize Cloudinary service:", "error", err)
		os.Exit(1)
	}

	redisClient, err := redisdb.NewRedis(cfg)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	go redisdb.WatchConnectionRedis(&redisClient, cfg)

	limiter := ratelimiter.NewRateLimiter(redisClient, 10, 20, 5*time.Minute)

	store := session.New(session.Config{
		Expiration:     24 * time.Hour,
		CookieHTTPOnly: true,
		CookieSameSite: "Strict",
	})

	presenter := presenter.NewPresenter(db, cld, cfg.JWT_SECRET_KEY, tel)
	router := router.NewRouter(presenter, db, tel, cfg, limiter, store)

	sweeper := scheduler.NewSweepScheduler(presenter.NgumbatoService, cfg.SWEEP_SCHEDULE, tel.Log)
	if err := sweeper.Start(); err != nil {
		slog.Error("Failed to start lateness sweep scheduler", "error", err)
		os.Exit(1)
	}

	addr := ":" + cfg.SERVER_PORT

	listenErr := make(chan error, 1)

	go func() {
		zap.L().Info("Server starting", zap.String("address", addr))
		if err := router.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		} else {
			listenErr <- nil
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		zap.L().Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-listenErr:
		if err != nil {
			zap.L().Error("Server listen error", zap.Error(err))
			os.Exit(1)
		}
	}

	zap.L().Info("Starting graceful shutdown...")

	sweeper.Stop()

	shutdownTimeout := 10 * time.Second
	if err := router.ShutdownWithTimeout(shutdownTimeout); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			zap.L().Warn("Server shutdown timed out", zap.Duration("timeout", shutdownTimeout))
		} else {
			zap.L().Error("Server shutdown error", zap.Error(err))
		}
	} else {
		zap.L().Info("Server gracefully stopped.")
	}

	zap.L().Info("Application shutdown complete.")
}

const (
	TreasurerID         uint64 = 1
	TreasurerNationalID string = "10100101"
)

// SeedTreasurer makes sure at least one treasurer account exists so the group
// can be administered on a fresh database.
func SeedTreasurer(db *gorm.DB) {
	slog.Info("Checking for treasurer account...")

	var treasurer model.Member
	err := db.First(&treasurer, TreasurerID).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		slog.Info("Treasurer account not found, creating one...")

		initialPassword := os.Getenv("TREASURER_INITIAL_PASSWORD")
		if initialPassword == "" {
			slog.Error("TREASURER_INITIAL_PASSWORD must be set to seed the treasurer account")
			os.Exit(1)
		}

		hashed, err := password.HashPassword(initialPassword)
		if err != nil {
			slog.Error("Failed to hash treasurer password", "error", err)
			os.Exit(1)
		}

		newTreasurer := model.Member{
			ID:                 TreasurerID,
			NationalID:         TreasurerNationalID,
			FullName:           "Group Treasurer",
			PhoneNumber:        "+254700000000",
			Password:           hashed,
			Role:               domain.TreasurerRole,
			IDPhotoURL:         "https://via.placeholder.com/150",
			SelfiePhotoURL:     "https://via.placeholder.com/150",
			MonthlyIncome:      0,
			VerificationStatus: domain.VerificationVerified,
		}

		if err := db.Create(&newTreasurer).Error; err != nil {
			slog.Error("Failed to seed treasurer account", "error", err)
			os.Exit(1)
		}
		slog.Info("Treasurer account created successfully.")
	} else if err != nil {
		slog.Error("Error checking for treasurer account", "error", err)
		os.Exit(1)
	} else {
		slog.Info("Treasurer account already exists.")
	}
}
