package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/sedaguven/davon-library-system/internal/account"
	"github.com/sedaguven/davon-library-system/internal/gateway"
	"github.com/sedaguven/davon-library-system/internal/session"
)

// handleStart shows welcome message and available commands
func (b *Bot) handleStart(message *tgbotapi.Message) {
	text := `Welcome to the Davon Library! 📚

Available commands:
/login - Sign in with your library account
/logout - Sign out
/whoami - Show who you are signed in as
/books [page] [available|unavailable] [text] - Browse or search the catalog
/book <id> - Show a book and borrow or reserve it
/loans - Your loans
/reservations - Your reservations
/profile - Your account summary
/dashboard - Library statistics (admins)
/users - Library accounts (admins)
/history - Your last actions`

	b.reply(message.Chat.ID, text)
}

// handleLoginStart initiates the login conversation
func (b *Bot) handleLoginStart(message *tgbotapi.Message) {
	b.setState(message.From.ID, &ConversationState{
		Command: "login",
		Step:    1,
		Data:    make(map[string]interface{}),
	})
	b.reply(message.Chat.ID, "Please enter your email:")
}

func (b *Bot) handleLogout(ctx context.Context, message *tgbotapi.Message) {
	acc := b.accountFor(ctx, message.From.ID)
	if err := acc.Logout(ctx); err != nil {
		b.reply(message.Chat.ID, userError(err))
		return
	}
	b.reply(message.Chat.ID, "You have been logged out.")
}

func (b *Bot) handleWhoAmI(ctx context.Context, message *tgbotapi.Message) {
	snap := b.accountFor(ctx, message.From.ID).Session.Current()
	switch {
	case snap.Authenticated():
		b.reply(message.Chat.ID, fmt.Sprintf("Logged in as %s (%s), role: %s",
			snap.Identity.Name, snap.Identity.Email, snap.Identity.Role))
	case snap.State == session.StateLoading:
		b.reply(message.Chat.ID, "Your session is still loading, please try again.")
	default:
		b.reply(message.Chat.ID, "You are not logged in. Use /login to sign in.")
	}
}

// handleBooks shows one page of the catalog
func (b *Bot) handleBooks(ctx context.Context, message *tgbotapi.Message) {
	number, filter, err := parseBooksArgs(message.CommandArguments())
	if err != nil {
		b.reply(message.Chat.ID, booksUsage)
		return
	}
	b.setCatalogFilter(message.From.ID, filter)

	text, keyboard, err := b.booksPage(ctx, message.From.ID, number)
	if err != nil {
		b.reply(message.Chat.ID, userError(err))
		return
	}
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	b.sendMessage(msg)
}

const booksUsage = "Usage: /books [page] [available|unavailable] [title or author]"

// parseBooksArgs reads "[page] [available|unavailable] [text]"
func parseBooksArgs(args string) (int, gateway.CatalogFilter, error) {
	var filter gateway.CatalogFilter
	number := 1
	fields := strings.Fields(args)

	if len(fields) > 0 {
		if n, err := strconv.Atoi(fields[0]); err == nil {
			if n < 1 {
				return 0, filter, fmt.Errorf("invalid page %d", n)
			}
			number = n
			fields = fields[1:]
		}
	}
	if len(fields) > 0 {
		if availability, err := gateway.ParseAvailability(fields[0]); err == nil && availability != gateway.AnyAvailability {
			filter.Availability = availability
			fields = fields[1:]
		}
	}
	filter.Query = strings.Join(fields, " ")
	return number, filter, nil
}

// booksPage renders a catalog page under the user's last /books filter
func (b *Bot) booksPage(ctx context.Context, userID int64, number int) (string, *tgbotapi.InlineKeyboardMarkup, error) {
	acc := b.accountFor(ctx, userID)
	filter := b.catalogFilter(userID)
	page, err := acc.Gateway.SearchBooks(ctx, filter, gateway.Page{Page: number, Limit: booksPageSize})
	if err != nil {
		return "", nil, err
	}
	text, keyboard := renderBooksPage(page, number, filter)
	return text, keyboard, nil
}

// handleBook renders the reconciled view of one book
func (b *Bot) handleBook(ctx context.Context, message *tgbotapi.Message) {
	bookID, err := strconv.ParseInt(strings.TrimSpace(message.CommandArguments()), 10, 64)
	if err != nil || bookID <= 0 {
		b.reply(message.Chat.ID, "Usage: /book <id>")
		return
	}
	b.sendBookView(ctx, message.Chat.ID, message.From.ID, bookID)
}

func (b *Bot) sendBookView(ctx context.Context, chatID, userID, bookID int64) {
	view, err := b.accountFor(ctx, userID).Workflow.View(ctx, bookID)
	if err != nil {
		b.reply(chatID, userError(err))
		return
	}

	text, keyboard := renderView(view)
	msg := tgbotapi.NewMessage(chatID, text)
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	b.sendMessage(msg)
}

func (b *Bot) handleLoans(ctx context.Context, message *tgbotapi.Message) {
	acc := b.accountFor(ctx, message.From.ID)
	identity, err := acc.Identity()
	if err != nil {
		b.reply(message.Chat.ID, userError(err))
		return
	}

	text, keyboard := renderLoans(acc.Gateway.ListLoansForUser(ctx, identity.ID))
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	b.sendMessage(msg)
}

func (b *Bot) handleReservations(ctx context.Context, message *tgbotapi.Message) {
	acc := b.accountFor(ctx, message.From.ID)
	identity, err := acc.Identity()
	if err != nil {
		b.reply(message.Chat.ID, userError(err))
		return
	}

	text, keyboard := renderReservations(acc.Gateway.ListReservationsForUser(ctx, identity.ID))
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	b.sendMessage(msg)
}

func (b *Bot) handleProfile(ctx context.Context, message *tgbotapi.Message) {
	acc := b.accountFor(ctx, message.From.ID)
	identity, err := acc.Identity()
	if err != nil {
		b.reply(message.Chat.ID, userError(err))
		return
	}

	profile, err := acc.Dashboard.MemberProfile(ctx, identity)
	if err != nil {
		b.reply(message.Chat.ID, userError(err))
		return
	}
	b.reply(message.Chat.ID, renderProfile(profile))
}

func (b *Bot) handleDashboard(ctx context.Context, message *tgbotapi.Message) {
	acc := b.accountFor(ctx, message.From.ID)
	identity, err := acc.Identity()
	if err != nil {
		b.reply(message.Chat.ID, userError(err))
		return
	}

	stats, err := acc.Dashboard.AdminStats(ctx, identity)
	if err != nil {
		b.reply(message.Chat.ID, userError(err))
		return
	}

	actions, err := acc.JournalStats(ctx, time.Now().Add(-account.StatsWindow))
	if err != nil {
		b.logger.Warn("Failed to read action stats", zap.Error(err))
	}
	b.reply(message.Chat.ID, renderStats(stats, actions))
}

func (b *Bot) handleUsers(ctx context.Context, message *tgbotapi.Message) {
	acc := b.accountFor(ctx, message.From.ID)
	identity, err := acc.Identity()
	if err != nil {
		b.reply(message.Chat.ID, userError(err))
		return
	}

	users, err := acc.Dashboard.Users(ctx, identity)
	if err != nil {
		b.reply(message.Chat.ID, userError(err))
		return
	}
	b.reply(message.Chat.ID, renderUsers(users))
}

func (b *Bot) handleHistory(ctx context.Context, message *tgbotapi.Message) {
	events, err := b.accountFor(ctx, message.From.ID).History(ctx)
	if err != nil {
		b.reply(message.Chat.ID, userError(err))
		return
	}
	b.reply(message.Chat.ID, renderHistory(events))
}
