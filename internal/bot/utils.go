package bot

import (
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/sedaguven/davon-library-system/internal/account"
	"github.com/sedaguven/davon-library-system/internal/dashboard"
	"github.com/sedaguven/davon-library-system/internal/gateway"
	"github.com/sedaguven/davon-library-system/internal/workflow"
)

// sendMessage sends any Telegram message
func (b *Bot) sendMessage(c tgbotapi.Chattable) {
	if b.sender == nil {
		return
	}
	if _, err := b.sender.Send(c); err != nil {
		b.logger.Warn("Failed to send message", zap.Error(err))
	}
}

// request performs an API call that does not return a message
func (b *Bot) request(c tgbotapi.Chattable) {
	if b.sender == nil {
		return
	}
	if _, err := b.sender.Request(c); err != nil {
		b.logger.Debug("Telegram request failed", zap.Error(err))
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

// userError turns an error into text a library member can act on
func userError(err error) string {
	switch {
	case errors.Is(err, workflow.ErrNotAuthenticated):
		return "You are not logged in. Use /login first."
	case errors.Is(err, workflow.ErrSessionLoading):
		return "Your session is still loading, please try again."
	case errors.Is(err, workflow.ErrStaleIdentity):
		return "Your account changed while loading. Please try again."
	case errors.Is(err, workflow.ErrCommandInFlight):
		return "Still working on your previous request for this book."
	case errors.Is(err, workflow.ErrActionNotAllowed):
		return "This action is no longer available."
	case errors.Is(err, dashboard.ErrForbidden):
		return "This view is for administrators only."
	case errors.Is(err, account.ErrNoJournal):
		return "History is not available on this server."
	case errors.Is(err, gateway.ErrTimeout):
		return "The library server did not respond in time."
	}

	var httpErr *gateway.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Message != "" {
			return httpErr.Message
		}
		return fmt.Sprintf("The library server returned an error (%d).", httpErr.Status)
	}
	var netErr *gateway.NetworkError
	if errors.As(err, &netErr) {
		return "Could not reach the library server."
	}
	return fmt.Sprintf("Error: %v", err)
}
