package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/sedaguven/davon-library-system/internal/bot"
	"github.com/sedaguven/davon-library-system/internal/config"
	"github.com/sedaguven/davon-library-system/internal/gateway"
	"github.com/sedaguven/davon-library-system/internal/session"
	"github.com/sedaguven/davon-library-system/internal/storage"
	"github.com/sedaguven/davon-library-system/internal/storage/ch"
	"github.com/sedaguven/davon-library-system/internal/storage/stubs"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// App represents the Telegram front-end application
type App struct {
	config   *config.Config
	logger   *zap.Logger
	sessions *sql.DB
	journal  storage.Storage
	backend  *gateway.Client
	bot      *bot.Bot
	server   *http.Server
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	envErr := godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ValidateBot(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if envErr != nil {
		logger.Info("No .env file found, using system environment variables")
	}

	app := &App{config: cfg, logger: logger}
	logger.Info("Starting Davon Library Bot...", zap.String("api_base_url", cfg.APIBaseURL))

	if err := app.initBackend(); err != nil {
		return nil, err
	}
	if err := app.initSessions(); err != nil {
		return nil, err
	}
	if err := app.initJournal(); err != nil {
		app.sessions.Close()
		return nil, err
	}
	if err := app.initBot(); err != nil {
		app.closeStores()
		return nil, err
	}
	app.initHTTPServer()

	return app, nil
}

// initBackend creates the shared gateway to the library REST API
func (a *App) initBackend() error {
	backend, err := gateway.New(gateway.Config{
		BaseURL: a.config.APIBaseURL,
		Timeout: a.config.APITimeout,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create backend client: %w", err)
	}
	a.backend = backend
	return nil
}

// initSessions opens the SQLite file holding every user's saved session
func (a *App) initSessions() error {
	db, err := session.OpenSQLite(a.config.SessionDBPath)
	if err != nil {
		return err
	}
	a.logger.Info("Session store opened", zap.String("path", a.config.SessionDBPath))
	a.sessions = db
	return nil
}

// initJournal connects the action journal
func (a *App) initJournal() error {
	var journal storage.Storage
	if a.config.UseMockDB {
		a.logger.Info("Using in-memory action journal")
		journal = stubs.NewMockDB()
	} else {
		tlsStatus := "without TLS"
		if a.config.ClickHouseUseTLS {
			tlsStatus = "with TLS"
		}
		a.logger.Info("Connecting to ClickHouse",
			zap.String("host", a.config.ClickHouseHost),
			zap.Int("port", a.config.ClickHousePort),
			zap.String("database", a.config.ClickHouseDatabase),
			zap.String("user", a.config.ClickHouseUser),
			zap.String("tls", tlsStatus),
		)
		clickhouseDB, err := ch.NewClickHouseDB(
			a.config.ClickHouseHost,
			a.config.ClickHousePort,
			a.config.ClickHouseDatabase,
			a.config.ClickHouseUser,
			a.config.ClickHousePassword,
			a.config.ClickHouseUseTLS,
		)
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		journal = clickhouseDB
	}

	if err := journal.Initialize(context.Background()); err != nil {
		journal.Close()
		return fmt.Errorf("failed to initialize action journal: %w", err)
	}
	a.logger.Info("Action journal initialized successfully")

	a.journal = journal
	return nil
}

// initBot initializes the Telegram bot
func (a *App) initBot() error {
	telegramBot, err := bot.NewBot(a.config.TelegramToken, bot.Deps{
		Backend:     a.backend,
		Journal:     a.journal,
		Credentials: bot.SQLiteCredentials(a.sessions),
	}, a.config.AllowedUserIDs, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	a.logger.Info("Bot created successfully", zap.Int64s("allowed_users", a.config.AllowedUserIDs))

	a.bot = telegramBot
	return nil
}

// routes builds the mux for health checks, the webhook and the Mini App API
func (a *App) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	// Root endpoint
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		mode := "polling"
		if a.config.WebhookMode {
			mode = "webhook"
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "Davon Library Bot is running (mode: %s)", mode)
	})

	// Webhook endpoint (only used in webhook mode)
	mux.HandleFunc("/telegram-webhook", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			a.logger.Warn("Error decoding webhook update", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		// Process update in background to respond quickly to Telegram
		if a.bot != nil {
			go a.bot.HandleWebhookUpdate(update)
		}
		w.WriteHeader(http.StatusOK)
	})

	if a.bot != nil {
		bot.NewHTTPServer(a.bot, a.config.WebhookMode).RegisterRoutes(mux)
	}
	return mux
}

// initHTTPServer starts the HTTP server in the background
func (a *App) initHTTPServer() {
	a.server = &http.Server{
		Addr:         ":" + a.config.Port,
		Handler:      a.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: a.config.APITimeout + 10*time.Second,
	}

	go func() {
		a.logger.Info("Starting HTTP server", zap.String("port", a.config.Port))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	if a.config.WebhookMode {
		a.logger.Info("Starting bot in WEBHOOK mode", zap.String("webhook_url", a.config.WebhookURL))
		if err := a.bot.StartWebhook(a.config.WebhookURL); err != nil {
			return fmt.Errorf("failed to setup webhook: %w", err)
		}
		a.logger.Info("Webhook configured. Bot will receive updates via HTTP endpoint /telegram-webhook")
	} else {
		// Polling mode: actively poll Telegram servers
		go func() {
			a.logger.Info("Starting bot in POLLING mode...")
			if err := a.bot.Start(); err != nil {
				errChan <- fmt.Errorf("failed to start bot: %w", err)
			}
		}()
	}

	select {
	case <-sigChan:
		a.logger.Info("Shutting down...")
	case err := <-errChan:
		a.logger.Error("Bot stopped", zap.Error(err))
		a.Shutdown()
		return err
	}
	return a.Shutdown()
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	a.bot.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	err := a.closeStores()
	if err != nil {
		a.logger.Error("Error closing stores", zap.Error(err))
	} else {
		a.logger.Info("Shutdown complete")
	}
	a.logger.Sync()
	return err
}

func (a *App) closeStores() error {
	var errs []error
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
	}
	if a.sessions != nil {
		errs = append(errs, a.sessions.Close())
	}
	return errors.Join(errs...)
}
