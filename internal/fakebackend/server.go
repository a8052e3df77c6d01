package fakebackend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sedaguven/davon-library-system/internal/models"
)

// Config configures a fake backend
type Config struct {
	// Secret signs bearer tokens
	Secret   []byte
	TokenTTL time.Duration
	// Now replaces the wall clock, e.g. to age loans in tests
	Now func() time.Time
}

// Server serves the library REST API from an in-memory Store
type Server struct {
	store    *Store
	secret   []byte
	tokenTTL time.Duration
	engine   *gin.Engine
	http     *http.Server
	logger   *zap.Logger
}

// New creates a fake backend over an empty store
func New(cfg Config, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	secret := cfg.Secret
	if len(secret) == 0 {
		secret = []byte("fake-backend-secret")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	s := &Server{
		store:    NewStore(cfg.Now),
		secret:   secret,
		tokenTTL: ttl,
		logger:   logger,
	}
	s.engine = s.routes()
	return s
}

// Store exposes the backing data for seeding and inspection
func (s *Server) Store() *Store {
	return s.store
}

// Handler returns the HTTP handler serving /api
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	api := r.Group("/api")
	api.POST("/auth/login", s.login)

	api.GET("/books", s.listBooks)
	api.GET("/books/:id", s.getBook)
	api.GET("/book-copies/by-book/:bookId", s.listCopies)
	api.GET("/reservations/queue-position", s.queuePosition)

	authed := api.Group("", s.requireAuth())
	authed.GET("/users/profile", s.profile)
	authed.POST("/library/borrow", s.borrow)
	authed.POST("/library/reserve", s.reserve)
	authed.GET("/reservations/user/:userId", s.userReservations)
	authed.PUT("/reservations/:id/cancel", s.cancelReservation)
	authed.GET("/loans/user/:userId", s.userLoans)
	authed.PUT("/loans/:id/return", s.returnLoan)

	admin := authed.Group("", requireRole(models.RoleAdmin))
	admin.GET("/users", s.listUsers)
	admin.GET("/loans/recent", s.recentLoans)
	admin.GET("/loans/loaned-out/count", s.loanedOutCount)
	admin.GET("/loans/overdue/count", s.overdueCount)
	admin.GET("/activities/recent", s.recentActivities)

	return r
}

// Start listens on addr in the background
func (s *Server) Start(addr string) {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		s.logger.Info("Starting fake backend", zap.String("addr", addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Fake backend error", zap.Error(err))
		}
	}()
}

// Shutdown stops a server started with Start
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown fake backend: %w", err)
	}
	return nil
}
