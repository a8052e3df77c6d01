package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sedaguven/davon-library-system/internal/dashboard"
	"github.com/sedaguven/davon-library-system/internal/gateway"
	"github.com/sedaguven/davon-library-system/internal/models"
	"github.com/sedaguven/davon-library-system/internal/workflow"
)

const booksPageSize = 5

// renderView formats a reconciled book and the single action offered on it
func renderView(view workflow.BookView) (string, *tgbotapi.InlineKeyboardMarkup) {
	if view.Verdict.NotFound || view.Book == nil {
		return fmt.Sprintf("❌ Book #%d not found.", view.BookID), nil
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("📖 %s\n", view.Book.Title))
	if view.Book.Author != "" {
		text.WriteString(fmt.Sprintf("by %s\n", view.Book.Author))
	}
	if view.Book.ISBN != "" {
		text.WriteString(fmt.Sprintf("ISBN: %s\n", view.Book.ISBN))
	}
	if view.Book.Description != "" {
		text.WriteString("\n" + view.Book.Description + "\n")
	}
	text.WriteString(fmt.Sprintf("\nStatus: %s", view.StatusLine()))

	if view.Verdict.ReservationUnknown {
		text.WriteString("\n⚠️ Could not check your reservations for this book.")
	}
	if view.Viewer == nil {
		text.WriteString("\n\nLog in with /login to borrow or reserve.")
	}

	var button tgbotapi.InlineKeyboardButton
	switch view.Action {
	case workflow.ActionBorrow:
		button = tgbotapi.NewInlineKeyboardButtonData("📥 Borrow", fmt.Sprintf("borrow:%d", view.BookID))
	case workflow.ActionReserve:
		button = tgbotapi.NewInlineKeyboardButtonData("🔖 Reserve", fmt.Sprintf("reserve:%d", view.BookID))
	default:
		return text.String(), nil
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(button))
	return text.String(), &keyboard
}

// workingKeyboard replaces an action button while its command runs
func workingKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⏳ Working...", "noop")),
	)
}

// renderBooksPage formats one catalog page with a button per book and navigation
func renderBooksPage(page gateway.BookPage, number int, filter gateway.CatalogFilter) (string, *tgbotapi.InlineKeyboardMarkup) {
	if len(page.Books) == 0 {
		return "No books found.", nil
	}

	pages := (page.Total + booksPageSize - 1) / booksPageSize
	var text strings.Builder
	text.WriteString(fmt.Sprintf("📚 Catalog (page %d of %d)\n", number, pages))
	if !filter.IsZero() {
		text.WriteString(fmt.Sprintf("Filter: %s, %d matches\n", describeFilter(filter), page.Total))
	}
	text.WriteString("\n")

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, book := range page.Books {
		text.WriteString(fmt.Sprintf("#%d %s", book.ID, book.Title))
		if book.Author != "" {
			text.WriteString(" by " + book.Author)
		}
		text.WriteString("\n")
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(book.Title, fmt.Sprintf("book:%d", book.ID)),
		))
	}

	var nav []tgbotapi.InlineKeyboardButton
	if number > 1 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("◀ Prev", fmt.Sprintf("page:%d", number-1)))
	}
	if number < pages {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ▶", fmt.Sprintf("page:%d", number+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return text.String(), &keyboard
}

func describeFilter(f gateway.CatalogFilter) string {
	var parts []string
	if f.Availability != gateway.AnyAvailability {
		parts = append(parts, string(f.Availability))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		parts = append(parts, fmt.Sprintf("%q", q))
	}
	return strings.Join(parts, " ")
}

func loanLine(loan models.Loan) string {
	switch {
	case !loan.IsActive():
		return fmt.Sprintf("%s, returned %s", loan.Title, loan.ReturnedDate.Format("2006-01-02"))
	case loan.IsOverdue():
		return fmt.Sprintf("%s, overdue by %d days", loan.Title, -loan.DaysLeft)
	default:
		return fmt.Sprintf("%s, due %s (%d days left)", loan.Title, loan.DueDate.Format("2006-01-02"), loan.DaysLeft)
	}
}

// renderLoans lists active loans with a return button each
func renderLoans(loans []models.Loan) (string, *tgbotapi.InlineKeyboardMarkup) {
	var text strings.Builder
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, loan := range loans {
		if !loan.IsActive() {
			continue
		}
		text.WriteString(fmt.Sprintf("%d. %s\n", len(rows)+1, loanLine(loan)))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("↩ Return "+loan.Title, fmt.Sprintf("return:%d", loan.ID)),
		))
	}
	if len(rows) == 0 {
		return "You have no books on loan.", nil
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return "📚 Your loans:\n\n" + text.String(), &keyboard
}

// renderReservations lists active reservations with a cancel button each
func renderReservations(reservations []models.Reservation) (string, *tgbotapi.InlineKeyboardMarkup) {
	var text strings.Builder
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, r := range reservations {
		if !r.IsActive() {
			continue
		}
		line := r.Book.Title
		if r.QueuePosition > 0 {
			line += fmt.Sprintf(", #%d in queue", r.QueuePosition)
		}
		text.WriteString(fmt.Sprintf("%d. %s\n", len(rows)+1, line))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✖ Cancel "+r.Book.Title, fmt.Sprintf("cancel:%d", r.ID)),
		))
	}
	if len(rows) == 0 {
		return "You have no active reservations.", nil
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return "🔖 Your reservations:\n\n" + text.String(), &keyboard
}

func renderProfile(p dashboard.Profile) string {
	var text strings.Builder
	text.WriteString(fmt.Sprintf("👤 %s (%s)\nRole: %s\n\n", p.Identity.Name, p.Identity.Email, p.Identity.Role))
	text.WriteString(fmt.Sprintf("Total loans: %d\n", p.Stats.TotalLoans))
	text.WriteString(fmt.Sprintf("Books read: %d\n", p.Stats.BooksRead))
	text.WriteString(fmt.Sprintf("Active reservations: %d\n", p.Stats.ActiveReservations))

	if len(p.CurrentLoans) > 0 {
		text.WriteString("\nCurrent loans:\n")
		for _, loan := range p.CurrentLoans {
			text.WriteString("• " + loanLine(loan) + "\n")
		}
	}
	if len(p.LoanHistory) > 0 {
		text.WriteString("\nRecently returned:\n")
		for i, loan := range p.LoanHistory {
			if i == 5 {
				break
			}
			text.WriteString("• " + loanLine(loan) + "\n")
		}
	}
	return text.String()
}

func renderUsers(users []models.Identity) string {
	if len(users) == 0 {
		return "No users found."
	}
	var text strings.Builder
	text.WriteString(fmt.Sprintf("👥 Users (%d)\n\n", len(users)))
	for _, u := range users {
		text.WriteString(fmt.Sprintf("#%d %s <%s>", u.ID, u.Name, u.Email))
		if u.IsAdmin() {
			text.WriteString(", admin")
		}
		text.WriteString("\n")
	}
	return strings.TrimRight(text.String(), "\n")
}

func renderStats(s dashboard.Stats, actions []models.ActionStat) string {
	var text strings.Builder
	text.WriteString("📊 Library dashboard\n\n")
	text.WriteString(fmt.Sprintf("Users: %d\n", s.TotalUsers))
	text.WriteString(fmt.Sprintf("Books: %d\n", s.TotalBooks))
	text.WriteString(fmt.Sprintf("On loan: %d\n", s.BooksLoaned))
	text.WriteString(fmt.Sprintf("Overdue: %d\n", s.OverdueBooks))

	if len(s.RecentActivity) > 0 {
		text.WriteString("\nRecent activity:\n")
		for _, a := range s.RecentActivity {
			text.WriteString(fmt.Sprintf("• %s %s\n", a.Timestamp.Format("2006-01-02 15:04"), a.Description))
		}
	}

	if len(actions) > 0 {
		text.WriteString("\nClient actions this week:\n")
		for _, a := range actions {
			text.WriteString(fmt.Sprintf("• %s %s: %d\n", a.Action, a.Outcome, a.Count))
		}
	}
	return text.String()
}

func renderHistory(events []models.ActionEvent) string {
	if len(events) == 0 {
		return "No actions recorded yet."
	}

	var text strings.Builder
	text.WriteString("Your last actions:\n\n")
	for i, e := range events {
		target := ""
		if e.BookID != 0 {
			target = fmt.Sprintf(" book #%d", e.BookID)
		}
		text.WriteString(fmt.Sprintf("%d. %s %s%s: %s\n",
			i+1,
			e.At.Format("2006-01-02 15:04"),
			e.Action,
			target,
			e.Outcome))
	}
	return text.String()
}
