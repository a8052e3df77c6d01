package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"go.uber.org/zap"

	"github.com/sedaguven/davon-library-system/internal/app"
	"github.com/sedaguven/davon-library-system/internal/fakebackend"
	"github.com/sedaguven/davon-library-system/migrations"
)

// library-dev runs the bot against a seeded in-memory library backend and,
// unless USE_MOCK_DB=true, a throwaway ClickHouse journal
func main() {
	_ = godotenv.Load()

	logger, err := app.NewLogger("debug")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("Development run failed", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	ctx := context.Background()

	backend := fakebackend.New(fakebackend.Config{}, logger.Named("fakebackend"))
	if err := fakebackend.Seed(backend.Store()); err != nil {
		return err
	}
	backendPort := getEnv("FAKE_BACKEND_PORT", "8080")
	backend.Start(":" + backendPort)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		backend.Shutdown(shutdownCtx)
	}()

	os.Setenv("API_BASE_URL", "http://localhost:"+backendPort+"/api")
	os.Setenv("WEBHOOK_MODE", "false")
	if os.Getenv("SESSION_DB_PATH") == "" {
		os.Setenv("SESSION_DB_PATH", "session-dev.db")
	}
	logger.Info("Fake backend seeded",
		zap.String("admin", fakebackend.AdminEmail+" / "+fakebackend.AdminPassword),
		zap.String("member", fakebackend.MemberEmail+" / "+fakebackend.MemberPassword),
	)

	if os.Getenv("USE_MOCK_DB") != "true" {
		terminate, err := startClickHouse(ctx, logger)
		if err != nil {
			return err
		}
		defer terminate()
	}

	if os.Getenv("TELEGRAM_BOT_TOKEN") == "" {
		logger.Warn("TELEGRAM_BOT_TOKEN not set. Please set it in your .env file or environment.")
	}
	if os.Getenv("ALLOWED_USER_IDS") == "" {
		logger.Warn("ALLOWED_USER_IDS not set. The bot will not accept any commands.")
	}

	application, err := app.New()
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	return application.Run()
}

// startClickHouse runs a ClickHouse container, applies the journal
// migrations and points the application at it
func startClickHouse(ctx context.Context, logger *zap.Logger) (func(), error) {
	logger.Info("Starting ClickHouse testcontainer...")

	clickhouseContainer, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:24.3.3.102-alpine",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword("devpassword"),
		clickhouse.WithDatabase("default"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start ClickHouse container: %w", err)
	}
	terminate := func() {
		logger.Info("Stopping ClickHouse container...")
		if err := clickhouseContainer.Terminate(ctx); err != nil {
			logger.Warn("Failed to terminate container", zap.Error(err))
		}
	}

	host, err := clickhouseContainer.Host(ctx)
	if err != nil {
		terminate()
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := clickhouseContainer.MappedPort(ctx, "9000/tcp")
	if err != nil {
		terminate()
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}
	logger.Info("ClickHouse started", zap.String("host", host), zap.String("port", port.Port()))

	db, err := migrations.Open(migrations.DSN(host, port.Port(), "default", "default", "devpassword", false))
	if err != nil {
		terminate()
		return nil, err
	}
	defer db.Close()
	if err := migrations.Run(db, "up", logger); err != nil {
		terminate()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}

	os.Setenv("CLICKHOUSE_HOST", host)
	os.Setenv("CLICKHOUSE_PORT", port.Port())
	os.Setenv("CLICKHOUSE_DATABASE", "default")
	os.Setenv("CLICKHOUSE_USER", "default")
	os.Setenv("CLICKHOUSE_PASSWORD", "devpassword")
	os.Setenv("CLICKHOUSE_USE_TLS", "false")
	os.Setenv("USE_MOCK_DB", "false")
	return terminate, nil
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
