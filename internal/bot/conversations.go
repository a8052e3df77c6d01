package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// handleConversation processes multi-step conversations
func (b *Bot) handleConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	userID := message.From.ID

	switch state.Command {
	case "login":
		b.handleLoginConversation(ctx, message, state)
	default:
		state.Step = -1
	}

	// Clean up completed conversations
	if state.Step == -1 {
		b.clearState(userID)
	}
}

// handleLoginConversation asks for email, then password, then signs in
func (b *Bot) handleLoginConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	switch state.Step {
	case 1: // Waiting for email
		email := strings.TrimSpace(message.Text)
		if !strings.Contains(email, "@") {
			b.reply(message.Chat.ID, "❌ That does not look like an email address. Please try again:")
			return
		}
		state.Data["email"] = email
		state.Step = 2
		b.reply(message.Chat.ID, "Please enter your password:")

	case 2: // Waiting for password
		email := state.Data["email"].(string)
		password := message.Text

		// keep the password out of the chat history
		b.request(tgbotapi.NewDeleteMessage(message.Chat.ID, message.MessageID))

		identity, err := b.accountFor(ctx, message.From.ID).Login(ctx, email, password)
		if err != nil {
			b.logger.Info("Login failed",
				zap.Int64("telegram_user_id", message.From.ID),
				zap.Error(err),
			)
			b.reply(message.Chat.ID, "❌ Login failed: "+userError(err))
		} else {
			b.reply(message.Chat.ID, fmt.Sprintf("✅ Logged in as %s (%s)", identity.Name, identity.Role))
		}

		state.Step = -1 // Mark conversation as complete
	}
}
