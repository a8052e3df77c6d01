package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/sedaguven/davon-library-system/internal/workflow"
)

// handleMessage processes a single message
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleMessage", zap.Any("panic", r))
			b.reply(message.Chat.ID, "An error occurred while processing your request. Please try again.")
		}
	}()

	userID := message.From.ID
	ctx := context.Background()

	// webhook updates arrive concurrently; one user's messages run in order
	unlock := b.lockUser(userID)
	defer unlock()

	if state, ok := b.state(userID); ok {
		switch {
		case state.Step == -1:
			b.clearState(userID)
		case message.IsCommand():
			// any command cancels the ongoing conversation
			b.clearState(userID)
		default:
			b.handleConversation(ctx, message, state)
			return
		}
	}

	if !message.IsCommand() {
		b.reply(message.Chat.ID, "Use /start to see available commands.")
		return
	}

	switch message.Command() {
	case "start", "help":
		b.handleStart(message)
	case "login":
		b.handleLoginStart(message)
	case "logout":
		b.handleLogout(ctx, message)
	case "whoami":
		b.handleWhoAmI(ctx, message)
	case "books":
		b.handleBooks(ctx, message)
	case "book":
		b.handleBook(ctx, message)
	case "loans":
		b.handleLoans(ctx, message)
	case "reservations":
		b.handleReservations(ctx, message)
	case "profile":
		b.handleProfile(ctx, message)
	case "dashboard":
		b.handleDashboard(ctx, message)
	case "users":
		b.handleUsers(ctx, message)
	case "history":
		b.handleHistory(ctx, message)
	default:
		b.reply(message.Chat.ID, "Unknown command. Use /start to see available commands.")
	}
}

// handleCallbackQuery processes inline keyboard button clicks
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleCallbackQuery", zap.Any("panic", r))
		}
	}()

	// Answer the callback query to remove loading state
	b.request(tgbotapi.NewCallback(query.ID, ""))

	if query.Message == nil {
		return
	}
	ctx := context.Background()

	prefix, arg, _ := strings.Cut(query.Data, ":")
	switch prefix {
	case "book":
		b.handleBookCallback(ctx, query, arg)
	case "borrow":
		b.handleCirculationCallback(ctx, query, arg, workflow.ActionBorrow)
	case "reserve":
		b.handleCirculationCallback(ctx, query, arg, workflow.ActionReserve)
	case "cancel":
		b.handleCancelCallback(ctx, query, arg)
	case "return":
		b.handleReturnCallback(ctx, query, arg)
	case "page":
		b.handlePageCallback(ctx, query, arg)
	}
}
