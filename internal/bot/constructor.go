package bot

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/sedaguven/davon-library-system/internal/account"
	"github.com/sedaguven/davon-library-system/internal/gateway"
)

// NewBot creates a new Telegram bot
func NewBot(token string, deps Deps, allowedUserIDs []int64, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))

	b := newBot(api, token, deps, allowedUserIDs, logger)
	b.api = api
	return b, nil
}

func newBot(sender Sender, token string, deps Deps, allowedUserIDs []int64, logger *zap.Logger) *Bot {
	allowedUsers := make(map[int64]bool)
	for _, id := range allowedUserIDs {
		allowedUsers[id] = true
	}

	return &Bot{
		sender:       sender,
		token:        token,
		deps:         deps,
		allowedUsers: allowedUsers,
		states:       make(map[int64]*ConversationState),
		accounts:     make(map[int64]*accountEntry),
		userLocks:    make(map[int64]*sync.Mutex),
		filters:      make(map[int64]gateway.CatalogFilter),
		logger:       logger,
	}
}

// accountFor returns the library account of a Telegram user, restoring its
// saved session on first use. Only callers for the same user wait on a restore.
func (b *Bot) accountFor(ctx context.Context, telegramUserID int64) *account.Account {
	b.accountsMu.Lock()
	entry, ok := b.accounts[telegramUserID]
	if !ok {
		entry = &accountEntry{}
		b.accounts[telegramUserID] = entry
	}
	b.accountsMu.Unlock()

	entry.once.Do(func() {
		entry.acc = account.Open(ctx, b.deps.Backend, b.deps.Credentials(telegramUserID), b.deps.Journal,
			b.logger.With(zap.Int64("telegram_user_id", telegramUserID)))
	})
	return entry.acc
}

// lockUser serializes message handling for one user and returns the unlock func
func (b *Bot) lockUser(userID int64) func() {
	b.statesMu.Lock()
	mu, ok := b.userLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		b.userLocks[userID] = mu
	}
	b.statesMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (b *Bot) state(userID int64) (*ConversationState, bool) {
	b.statesMu.RLock()
	defer b.statesMu.RUnlock()
	state, ok := b.states[userID]
	return state, ok
}

func (b *Bot) setState(userID int64, state *ConversationState) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	b.states[userID] = state
}

func (b *Bot) clearState(userID int64) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	delete(b.states, userID)
}

func (b *Bot) catalogFilter(userID int64) gateway.CatalogFilter {
	b.statesMu.RLock()
	defer b.statesMu.RUnlock()
	return b.filters[userID]
}

func (b *Bot) setCatalogFilter(userID int64, filter gateway.CatalogFilter) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	b.filters[userID] = filter
}
