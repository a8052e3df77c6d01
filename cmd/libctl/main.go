package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sedaguven/davon-library-system/internal/app"
	"github.com/sedaguven/davon-library-system/internal/cli"
	"github.com/sedaguven/davon-library-system/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// the terminal is for command output, so only warnings are logged by default
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger, err := app.NewLogger(level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	env, closeEnv, err := cli.NewEnv(cfg, logger)
	if err != nil {
		return err
	}
	defer closeEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return cli.NewRootCommand(env).ExecuteContext(ctx)
}
