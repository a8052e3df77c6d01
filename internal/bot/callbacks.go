package bot

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/sedaguven/davon-library-system/internal/workflow"
)

func parseID(arg string) (int64, bool) {
	id, err := strconv.ParseInt(arg, 10, 64)
	return id, err == nil && id > 0
}

// handleBookCallback opens a book from a catalog page
func (b *Bot) handleBookCallback(ctx context.Context, query *tgbotapi.CallbackQuery, arg string) {
	bookID, ok := parseID(arg)
	if !ok {
		return
	}
	b.sendBookView(ctx, query.Message.Chat.ID, query.From.ID, bookID)
}

// handleCirculationCallback runs the borrow or reserve button of a book view.
// The button is swapped for a placeholder until the command finishes, then
// the message shows the resulting view.
func (b *Bot) handleCirculationCallback(ctx context.Context, query *tgbotapi.CallbackQuery, arg string, action workflow.Action) {
	bookID, ok := parseID(arg)
	if !ok {
		return
	}
	chatID := query.Message.Chat.ID
	messageID := query.Message.MessageID
	acc := b.accountFor(ctx, query.From.ID)

	view, err := acc.Workflow.View(ctx, bookID)
	if err != nil {
		b.reply(chatID, userError(err))
		return
	}
	if view.Action != action {
		b.editView(chatID, messageID, view)
		b.reply(chatID, userError(workflow.ErrActionNotAllowed))
		return
	}
	if view.Viewer != nil && acc.Workflow.InFlight(view.Viewer.ID, bookID) {
		b.reply(chatID, userError(workflow.ErrCommandInFlight))
		return
	}

	b.request(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, workingKeyboard()))

	outcome, err := acc.Workflow.Execute(ctx, &view)
	if err != nil {
		b.reply(chatID, userError(err))
		b.editView(chatID, messageID, view)
		return
	}

	if outcome.Kind == workflow.OutcomeBorrowSucceeded {
		// borrowing changes copy state, so the view is fetched again
		if fresh, err := acc.Workflow.View(ctx, bookID); err == nil {
			view = fresh
		} else {
			b.logger.Warn("Failed to refresh book view", zap.Int64("book_id", bookID), zap.Error(err))
		}
	}
	b.editView(chatID, messageID, view)

	text := outcome.Message
	if outcome.Kind == workflow.OutcomeBorrowFailed && outcome.Err != nil {
		text += " " + userError(outcome.Err)
	}
	b.reply(chatID, text)
}

// editView replaces a book message with the given view
func (b *Bot) editView(chatID int64, messageID int, view workflow.BookView) {
	text, keyboard := renderView(view)
	b.editMessage(chatID, messageID, text, keyboard)
}

// handleCancelCallback cancels a reservation from the reservations list
func (b *Bot) handleCancelCallback(ctx context.Context, query *tgbotapi.CallbackQuery, arg string) {
	reservationID, ok := parseID(arg)
	if !ok {
		return
	}
	chatID := query.Message.Chat.ID
	acc := b.accountFor(ctx, query.From.ID)

	b.request(tgbotapi.NewEditMessageReplyMarkup(chatID, query.Message.MessageID, workingKeyboard()))
	err := acc.Workflow.CancelReservation(ctx, reservationID)

	identity, idErr := acc.Identity()
	if idErr == nil {
		text, keyboard := renderReservations(acc.Gateway.ListReservationsForUser(ctx, identity.ID))
		b.editMessage(chatID, query.Message.MessageID, text, keyboard)
	}

	if err != nil {
		b.reply(chatID, fmt.Sprintf("❌ Failed to cancel reservation: %s", userError(err)))
		return
	}
	b.reply(chatID, "✅ Reservation cancelled.")
}

// handleReturnCallback returns a loan from the loans list
func (b *Bot) handleReturnCallback(ctx context.Context, query *tgbotapi.CallbackQuery, arg string) {
	loanID, ok := parseID(arg)
	if !ok {
		return
	}
	chatID := query.Message.Chat.ID
	acc := b.accountFor(ctx, query.From.ID)

	b.request(tgbotapi.NewEditMessageReplyMarkup(chatID, query.Message.MessageID, workingKeyboard()))
	err := acc.Workflow.ReturnLoan(ctx, loanID)

	identity, idErr := acc.Identity()
	if idErr == nil {
		text, keyboard := renderLoans(acc.Gateway.ListLoansForUser(ctx, identity.ID))
		b.editMessage(chatID, query.Message.MessageID, text, keyboard)
	}

	if err != nil {
		b.reply(chatID, fmt.Sprintf("❌ Failed to return book: %s", userError(err)))
		return
	}
	b.reply(chatID, "✅ Book returned. Thank you!")
}

// handlePageCallback switches a catalog message to another page
func (b *Bot) handlePageCallback(ctx context.Context, query *tgbotapi.CallbackQuery, arg string) {
	number, err := strconv.Atoi(arg)
	if err != nil || number < 1 {
		return
	}

	text, keyboard, err := b.booksPage(ctx, query.From.ID, number)
	if err != nil {
		b.reply(query.Message.Chat.ID, userError(err))
		return
	}
	b.editMessage(query.Message.Chat.ID, query.Message.MessageID, text, keyboard)
}

func (b *Bot) editMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	if keyboard == nil {
		b.request(tgbotapi.NewEditMessageText(chatID, messageID, text))
		return
	}
	b.request(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *keyboard))
}
