package bot

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/sedaguven/davon-library-system/internal/gateway"
	"github.com/sedaguven/davon-library-system/internal/workflow"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type ctxKey int

const telegramUserKey ctxKey = iota

// initDataMaxAge bounds how old a Mini App launch may be
const initDataMaxAge = 24 * time.Hour

// HTTPServer serves the Mini App JSON API
type HTTPServer struct {
	bot         *Bot
	webhookMode bool // If false (polling mode), skip authentication for easier local dev
	now         func() time.Time
}

// NewHTTPServer creates a new HTTP server for the Mini App
func NewHTTPServer(bot *Bot, webhookMode bool) *HTTPServer {
	return &HTTPServer{
		bot:         bot,
		webhookMode: webhookMode,
		now:         time.Now,
	}
}

// RegisterRoutes registers Mini App routes on the provided mux
func (hs *HTTPServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/books", hs.authMiddleware(hs.handleBooks))
	mux.HandleFunc("GET /api/books/{id}", hs.authMiddleware(hs.handleBook))
}

// validateTelegramInitData checks the Mini App initData signature and returns the Telegram user ID
func (hs *HTTPServer) validateTelegramInitData(initData string) (int64, error) {
	if initData == "" {
		return 0, fmt.Errorf("missing initData")
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return 0, fmt.Errorf("invalid initData format: %w", err)
	}

	hash := values.Get("hash")
	if hash == "" {
		return 0, fmt.Errorf("missing hash in initData")
	}
	values.Del("hash")

	if !hmac.Equal([]byte(signInitData(hs.bot.token, values)), []byte(hash)) {
		return 0, fmt.Errorf("invalid hash")
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("missing auth_date")
	}
	if hs.now().Sub(time.Unix(authDate, 0)) > initDataMaxAge {
		return 0, fmt.Errorf("initData is too old")
	}

	userStr := values.Get("user")
	if userStr == "" {
		return 0, fmt.Errorf("missing user data")
	}
	var userData struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(userStr), &userData); err != nil {
		return 0, fmt.Errorf("invalid user data: %w", err)
	}

	if !hs.bot.allowedUsers[userData.ID] {
		return 0, fmt.Errorf("user not allowed")
	}
	return userData.ID, nil
}

// signInitData computes the Telegram WebApp hash of the data-check-string
func signInitData(botToken string, values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var dataCheckString strings.Builder
	for i, k := range keys {
		if i > 0 {
			dataCheckString.WriteByte('\n')
		}
		dataCheckString.WriteString(k)
		dataCheckString.WriteByte('=')
		dataCheckString.WriteString(values.Get(k))
	}

	secretKey := hmac.New(sha256.New, []byte("WebAppData"))
	secretKey.Write([]byte(botToken))

	h := hmac.New(sha256.New, secretKey.Sum(nil))
	h.Write([]byte(dataCheckString.String()))
	return hex.EncodeToString(h.Sum(nil))
}

// authMiddleware validates Telegram Mini App authentication.
// In polling mode requests run as the anonymous user 0.
func (hs *HTTPServer) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !hs.webhookMode {
			hs.bot.logger.Debug("Skipping authentication (polling mode)",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)
			next(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "tma ") {
			hs.bot.logger.Warn("Missing or invalid authorization header")
			writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		userID, err := hs.validateTelegramInitData(strings.TrimPrefix(authHeader, "tma "))
		if err != nil {
			hs.bot.logger.Warn("Failed to validate initData",
				zap.Error(err),
				zap.String("remote_addr", r.RemoteAddr),
			)
			writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		hs.bot.logger.Debug("Authenticated request",
			zap.Int64("user_id", userID),
			zap.String("path", r.URL.Path),
		)
		next(w, r.WithContext(context.WithValue(r.Context(), telegramUserKey, userID)))
	}
}

func telegramUser(r *http.Request) int64 {
	id, _ := r.Context().Value(telegramUserKey).(int64)
	return id
}

type bookJSON struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	Description     string `json:"description,omitempty"`
	AvailableCopies int    `json:"availableCopies"`
	TotalCopies     int    `json:"totalCopies"`
}

type bookViewJSON struct {
	bookJSON
	Available          bool   `json:"available"`
	CopiesTracked      bool   `json:"copiesTracked"`
	AlreadyReserved    bool   `json:"alreadyReserved"`
	QueuePosition      int    `json:"queuePosition,omitempty"`
	ReservationUnknown bool   `json:"reservationUnknown,omitempty"`
	Action             string `json:"action"`
	Status             string `json:"status"`
}

// handleBooks returns one catalog page, optionally filtered by ?q= and ?availability=
func (hs *HTTPServer) handleBooks(w http.ResponseWriter, r *http.Request) {
	page := gateway.Page{
		Sort:  r.URL.Query().Get("sort"),
		Order: r.URL.Query().Get("order"),
	}
	page.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	page.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))

	availability, err := gateway.ParseAvailability(r.URL.Query().Get("availability"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := gateway.CatalogFilter{Query: r.URL.Query().Get("q"), Availability: availability}

	acc := hs.bot.accountFor(r.Context(), telegramUser(r))
	result, err := acc.Gateway.SearchBooks(r.Context(), filter, page)
	if err != nil {
		hs.bot.logger.Error("Failed to list books", zap.Error(err))
		writeJSONError(w, http.StatusBadGateway, "Failed to fetch books")
		return
	}

	books := make([]bookJSON, 0, len(result.Books))
	for _, b := range result.Books {
		books = append(books, bookJSON{
			ID:              b.ID,
			Title:           b.Title,
			Author:          b.Author,
			ISBN:            b.ISBN,
			Description:     b.Description,
			AvailableCopies: b.AvailableCopies,
			TotalCopies:     b.TotalCopies,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"books": books,
		"total": result.Total,
	})
}

// handleBook returns the reconciled view of one book for the requesting user
func (hs *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || bookID <= 0 {
		writeJSONError(w, http.StatusBadRequest, "Invalid book id")
		return
	}

	view, err := hs.bot.accountFor(r.Context(), telegramUser(r)).Workflow.View(r.Context(), bookID)
	switch {
	case errors.Is(err, workflow.ErrSessionLoading), errors.Is(err, workflow.ErrStaleIdentity):
		writeJSONError(w, http.StatusServiceUnavailable, userError(err))
		return
	case err != nil:
		hs.bot.logger.Error("Failed to load book view", zap.Int64("book_id", bookID), zap.Error(err))
		writeJSONError(w, http.StatusBadGateway, "Failed to fetch book")
		return
	case view.Verdict.NotFound:
		writeJSONError(w, http.StatusNotFound, "Book not found")
		return
	}

	writeJSON(w, http.StatusOK, bookViewJSON{
		bookJSON: bookJSON{
			ID:              view.Book.ID,
			Title:           view.Book.Title,
			Author:          view.Book.Author,
			ISBN:            view.Book.ISBN,
			Description:     view.Book.Description,
			AvailableCopies: view.Book.AvailableCopies,
			TotalCopies:     view.Book.TotalCopies,
		},
		Available:          view.Verdict.EffectiveAvailable,
		CopiesTracked:      view.Verdict.CopiesTracked,
		AlreadyReserved:    view.Verdict.AlreadyReserved,
		QueuePosition:      view.Verdict.QueuePosition,
		ReservationUnknown: view.Verdict.ReservationUnknown,
		Action:             view.Action.String(),
		Status:             view.StatusLine(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
