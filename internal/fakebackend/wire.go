package fakebackend

import (
	"math"
	"time"

	"github.com/sedaguven/davon-library-system/internal/models"
)

// Backend date formats: ISO local dates for due dates, local date-times elsewhere
const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05"
)

type userJSON struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type bookJSON struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	Author          string  `json:"author"`
	ISBN            string  `json:"isbn"`
	Description     string  `json:"description,omitempty"`
	AvailableCopies int     `json:"availableCopies"`
	TotalCopies     int     `json:"totalCopies"`
	Status          *string `json:"status,omitempty"`
}

type copyJSON struct {
	ID     int64  `json:"id"`
	BookID int64  `json:"bookId"`
	Status string `json:"status"`
}

type loanJSON struct {
	ID           int64   `json:"id"`
	BookID       int64   `json:"bookId"`
	Title        string  `json:"title"`
	DueDate      string  `json:"dueDate"`
	ReturnedDate *string `json:"returnedDate"`
	DaysLeft     int     `json:"daysLeft"`
}

type reservationJSON struct {
	ID              int64    `json:"id"`
	UserID          int64    `json:"userId"`
	Book            bookJSON `json:"book"`
	ReservationDate string   `json:"reservationDate"`
	Status          string   `json:"status"`
	QueuePosition   int      `json:"queuePosition"`
}

type activityJSON struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
	User        string `json:"user"`
	BookTitle   string `json:"bookTitle"`
}

type circulationJSON struct {
	UserID int64 `json:"userId" binding:"required"`
	BookID int64 `json:"bookId" binding:"required"`
}

type loginJSON struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func toUserJSON(id models.Identity) userJSON {
	return userJSON{ID: id.ID, Name: id.Name, Email: id.Email, Role: string(id.Role)}
}

func toBookJSON(b book) bookJSON {
	out := bookJSON{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		ISBN:            b.ISBN,
		Description:     b.Description,
		AvailableCopies: b.AvailableCopies,
		TotalCopies:     b.TotalCopies,
	}
	if b.explicit {
		status := string(b.Status)
		out.Status = &status
	}
	return out
}

func toLoanJSON(l loan, title string, now time.Time) loanJSON {
	out := loanJSON{
		ID:       l.id,
		BookID:   l.bookID,
		Title:    title,
		DueDate:  l.due.Format(dateLayout),
		DaysLeft: daysBetween(now, l.due),
	}
	if l.returned != nil {
		returned := l.returned.Format(dateTimeLayout)
		out.ReturnedDate = &returned
	}
	return out
}

func toReservationJSON(r reservation, b book, position int) reservationJSON {
	return reservationJSON{
		ID:              r.id,
		UserID:          r.userID,
		Book:            toBookJSON(b),
		ReservationDate: r.at.Format(dateTimeLayout),
		Status:          string(r.status),
		QueuePosition:   position,
	}
}

func toActivityJSON(a models.Activity) activityJSON {
	return activityJSON{
		Type:        a.Type,
		Description: a.Description,
		Timestamp:   a.Timestamp.Format(dateTimeLayout),
		User:        a.User,
		BookTitle:   a.BookTitle,
	}
}

// daysBetween counts whole calendar days from now until due, negative when overdue
func daysBetween(now, due time.Time) int {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Round(end.Sub(start).Hours() / 24))
}
