package bot

import (
	"database/sql"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/sedaguven/davon-library-system/internal/account"
	"github.com/sedaguven/davon-library-system/internal/gateway"
	"github.com/sedaguven/davon-library-system/internal/session"
	"github.com/sedaguven/davon-library-system/internal/storage"
)

// Sender is the part of the Telegram API the bot talks through
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// CredentialsFactory returns the durable credential store of one Telegram user
type CredentialsFactory func(telegramUserID int64) session.CredentialStore

// SQLiteCredentials keeps every Telegram user's session in db under "tg:<id>"
func SQLiteCredentials(db *sql.DB) CredentialsFactory {
	return func(telegramUserID int64) session.CredentialStore {
		return session.NewSQLiteCredentials(db, fmt.Sprintf("tg:%d", telegramUserID))
	}
}

// Deps are the library services the bot acts through
type Deps struct {
	Backend     *gateway.Client
	Journal     storage.Storage
	Credentials CredentialsFactory
}

// Bot represents the Telegram bot wrapper
type Bot struct {
	api          *tgbotapi.BotAPI
	sender       Sender
	token        string
	deps         Deps
	allowedUsers map[int64]bool
	states       map[int64]*ConversationState
	statesMu     sync.RWMutex
	userLocks    map[int64]*sync.Mutex
	filters      map[int64]gateway.CatalogFilter
	accounts     map[int64]*accountEntry
	accountsMu   sync.Mutex
	logger       *zap.Logger
}

type accountEntry struct {
	once sync.Once
	acc  *account.Account
}

// ConversationState tracks the state of multi-step commands
type ConversationState struct {
	Command string
	Step    int
	Data    map[string]interface{}
}
