package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sedaguven/davon-library-system/internal/dashboard"
	"github.com/sedaguven/davon-library-system/internal/gateway"
	"github.com/sedaguven/davon-library-system/internal/models"
	"github.com/sedaguven/davon-library-system/internal/workflow"
)

const dateFormat = "2006-01-02"

func printBooks(w io.Writer, result gateway.BookPage, page gateway.Page) {
	if len(result.Books) == 0 {
		fmt.Fprintln(w, "No books found.")
		return
	}

	fmt.Fprintf(w, "%-5s %-30s %-25s %-10s %s\n", "ID", "Title", "Author", "Available", "Copies")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, b := range result.Books {
		availStr := "Yes"
		if !b.Available {
			availStr = "No"
		}
		fmt.Fprintf(w, "%-5d %-30s %-25s %-10s %d/%d\n",
			b.ID,
			truncateString(b.Title, 30),
			truncateString(b.Author, 25),
			availStr,
			b.AvailableCopies,
			b.TotalCopies)
	}

	pages := 1
	if page.Limit > 0 && result.Total > 0 {
		pages = (result.Total + page.Limit - 1) / page.Limit
	}
	fmt.Fprintf(w, "\nPage %d of %d, %d books\n", page.Page, pages, result.Total)
}

func printUsers(w io.Writer, users []models.Identity) {
	if len(users) == 0 {
		fmt.Fprintln(w, "No users found.")
		return
	}

	fmt.Fprintf(w, "%-5s %-25s %-30s %s\n", "ID", "Name", "Email", "Role")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, u := range users {
		fmt.Fprintf(w, "%-5d %-25s %-30s %s\n",
			u.ID,
			truncateString(u.Name, 25),
			truncateString(u.Email, 30),
			u.Role)
	}
	fmt.Fprintf(w, "\n%d users\n", len(users))
}

func printView(w io.Writer, view workflow.BookView) {
	b := view.Book
	fmt.Fprintf(w, "%s\n", b.Title)
	fmt.Fprintf(w, "Author: %s\n", b.Author)
	if b.ISBN != "" {
		fmt.Fprintf(w, "ISBN:   %s\n", b.ISBN)
	}
	fmt.Fprintf(w, "Status: %s\n", view.StatusLine())
	if b.Description != "" {
		fmt.Fprintf(w, "\n%s\n", b.Description)
	}
	if view.Verdict.ReservationUnknown {
		fmt.Fprintln(w, "\nWarning: your reservation status could not be checked.")
	}

	switch {
	case view.Viewer == nil:
		fmt.Fprintln(w, "\nLog in with `libctl login` to borrow or reserve.")
	case view.Action != workflow.ActionNone:
		fmt.Fprintf(w, "\nRun `libctl %s %d` to %s it.\n", view.Action, view.BookID, view.Action)
	}
}

func loanStatus(loan models.Loan) string {
	switch {
	case !loan.IsActive():
		return "returned " + loan.ReturnedDate.Format(dateFormat)
	case loan.IsOverdue():
		return fmt.Sprintf("overdue by %d days", -loan.DaysLeft)
	default:
		return fmt.Sprintf("%d days left", loan.DaysLeft)
	}
}

func printLoans(w io.Writer, loans []models.Loan, all bool) {
	var shown []models.Loan
	for _, loan := range loans {
		if all || loan.IsActive() {
			shown = append(shown, loan)
		}
	}
	if len(shown) == 0 {
		fmt.Fprintln(w, "You have no books on loan.")
		return
	}

	fmt.Fprintf(w, "%-5s %-30s %-10s %s\n", "ID", "Title", "Due", "Status")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, loan := range shown {
		fmt.Fprintf(w, "%-5d %-30s %-10s %s\n",
			loan.ID,
			truncateString(loan.Title, 30),
			loan.DueDate.Format(dateFormat),
			loanStatus(loan))
	}
}

func printReservations(w io.Writer, reservations []models.Reservation) {
	var active []models.Reservation
	for _, r := range reservations {
		if r.IsActive() {
			active = append(active, r)
		}
	}
	if len(active) == 0 {
		fmt.Fprintln(w, "You have no active reservations.")
		return
	}

	fmt.Fprintf(w, "%-5s %-30s %-10s %s\n", "ID", "Title", "Reserved", "Queue")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, r := range active {
		queue := "-"
		if r.QueuePosition > 0 {
			queue = fmt.Sprintf("#%d", r.QueuePosition)
		}
		fmt.Fprintf(w, "%-5d %-30s %-10s %s\n",
			r.ID,
			truncateString(r.Book.Title, 30),
			r.ReservationDate.Format(dateFormat),
			queue)
	}
}

func printProfile(w io.Writer, p dashboard.Profile) {
	fmt.Fprintf(w, "%s <%s>\n", p.Identity.Name, p.Identity.Email)
	fmt.Fprintf(w, "Role: %s\n\n", p.Identity.Role)
	fmt.Fprintf(w, "Total loans:         %d\n", p.Stats.TotalLoans)
	fmt.Fprintf(w, "Books read:          %d\n", p.Stats.BooksRead)
	fmt.Fprintf(w, "Active reservations: %d\n", p.Stats.ActiveReservations)

	if len(p.CurrentLoans) > 0 {
		fmt.Fprintln(w, "\nCurrent loans:")
		for _, loan := range p.CurrentLoans {
			fmt.Fprintf(w, "  %s, due %s (%s)\n", loan.Title, loan.DueDate.Format(dateFormat), loanStatus(loan))
		}
	}
}

func printStats(w io.Writer, s dashboard.Stats) {
	fmt.Fprintf(w, "Users:   %d\n", s.TotalUsers)
	fmt.Fprintf(w, "Books:   %d\n", s.TotalBooks)
	fmt.Fprintf(w, "On loan: %d\n", s.BooksLoaned)
	fmt.Fprintf(w, "Overdue: %d\n", s.OverdueBooks)

	if len(s.RecentActivity) > 0 {
		fmt.Fprintln(w, "\nRecent activity:")
		for _, a := range s.RecentActivity {
			fmt.Fprintf(w, "  %s  %s\n", a.Timestamp.Format("2006-01-02 15:04"), a.Description)
		}
	}
}

func printActionStats(w io.Writer, stats []models.ActionStat, window time.Duration) {
	fmt.Fprintf(w, "\nClient actions in the last %s:\n", window)
	if len(stats) == 0 {
		fmt.Fprintln(w, "  none")
		return
	}
	for _, s := range stats {
		fmt.Fprintf(w, "  %-8s %-22s %d\n", s.Action, s.Outcome, s.Count)
	}
}

func printHistory(w io.Writer, events []models.ActionEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No actions recorded yet.")
		return
	}
	for _, e := range events {
		target := "-"
		if e.BookID != 0 {
			target = fmt.Sprintf("book %d", e.BookID)
		}
		fmt.Fprintf(w, "%s  %-8s %-10s %s\n", e.At.Local().Format("2006-01-02 15:04"), e.Action, target, e.Outcome)
	}
}

// truncateString shortens s to maxLength runes, marking the cut with "..."
func truncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	return string(runes[:maxLength-3]) + "..."
}
