package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sedaguven/davon-library-system/migrations"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using existing environment variables")
	}

	if err := run(logger, os.Args[1:]); err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}
}

func run(logger *zap.Logger, args []string) error {
	host := getEnv("CLICKHOUSE_HOST", "localhost")
	database := getEnv("CLICKHOUSE_DATABASE", "default")

	db, err := migrations.Open(migrations.DSN(
		host,
		getEnv("CLICKHOUSE_PORT", "9000"),
		database,
		getEnv("CLICKHOUSE_USER", "default"),
		getEnv("CLICKHOUSE_PASSWORD", ""),
		getEnv("CLICKHOUSE_USE_TLS", "false") == "true",
	))
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("Connected to ClickHouse", zap.String("host", host), zap.String("database", database))

	command := "up"
	if len(args) > 0 {
		command = args[0]
	}
	return migrations.Run(db, command, logger)
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
