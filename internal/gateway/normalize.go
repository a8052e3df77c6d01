package gateway

import (
	"strings"
	"time"

	"github.com/sedaguven/davon-library-system/internal/models"
)

// BookDTO is a book record as sent by the backend. Older backends omit the
// status field, some omit the copy counters as well.
type BookDTO struct {
	ID              int64              `json:"id"`
	Title           string             `json:"title"`
	ISBN            string             `json:"isbn"`
	Author          string             `json:"author"`
	Description     string             `json:"description,omitempty"`
	CoverImage      string             `json:"coverImage,omitempty"`
	AvailableCopies *int               `json:"availableCopies,omitempty"`
	TotalCopies     *int               `json:"totalCopies,omitempty"`
	Status          *models.BookStatus `json:"status,omitempty"`
}

// BookCopyDTO is a copy record as sent by the backend
type BookCopyDTO struct {
	ID     int64             `json:"id"`
	BookID int64             `json:"bookId,omitempty"`
	Status models.CopyStatus `json:"status"`
}

// LoanDTO is a loan record. Dates arrive as ISO local dates or date-times.
type LoanDTO struct {
	ID           int64   `json:"id"`
	BookID       int64   `json:"bookId,omitempty"`
	Title        string  `json:"title"`
	DueDate      string  `json:"dueDate"`
	ReturnedDate *string `json:"returnedDate"`
	DaysLeft     int     `json:"daysLeft"`
}

// ReservationDTO is a reservation record
type ReservationDTO struct {
	ID              int64   `json:"id"`
	UserID          int64   `json:"userId,omitempty"`
	Book            BookDTO `json:"book"`
	ReservationDate string  `json:"reservationDate"`
	Status          string  `json:"status"`
	QueuePosition   int     `json:"queuePosition"`
}

// ActivityDTO is an admin activity feed record
type ActivityDTO struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
	User        string `json:"user"`
	BookTitle   string `json:"bookTitle"`
}

// availabilityRule derives a book's cached availability from one shape of
// backend record. ok is false when the rule does not apply to the record.
type availabilityRule struct {
	name  string
	apply func(dto BookDTO) (status models.BookStatus, ok bool)
}

// availabilityRules are evaluated in order; the first applicable rule wins
var availabilityRules = []availabilityRule{
	{
		name: "explicit status",
		apply: func(dto BookDTO) (models.BookStatus, bool) {
			if dto.Status == nil || *dto.Status == "" {
				return "", false
			}
			return models.BookStatus(strings.ToUpper(string(*dto.Status))), true
		},
	},
	{
		name: "copy count",
		apply: func(dto BookDTO) (models.BookStatus, bool) {
			if dto.AvailableCopies == nil {
				return "", false
			}
			if *dto.AvailableCopies > 0 {
				return models.BookAvailable, true
			}
			return models.BookUnavailable, true
		},
	},
	{
		name: "default available",
		apply: func(BookDTO) (models.BookStatus, bool) {
			return models.BookAvailable, true
		},
	},
}

// availabilityOf returns the status and the name of the rule that produced it
func availabilityOf(dto BookDTO) (models.BookStatus, string) {
	for _, rule := range availabilityRules {
		if status, ok := rule.apply(dto); ok {
			return status, rule.name
		}
	}
	// unreachable: the last rule always applies
	return models.BookAvailable, ""
}

// NormalizeBook maps a backend record onto the canonical Book shape
func NormalizeBook(dto BookDTO) models.Book {
	status, _ := availabilityOf(dto)
	book := models.Book{
		ID:          dto.ID,
		Title:       dto.Title,
		Author:      dto.Author,
		ISBN:        dto.ISBN,
		Description: dto.Description,
		CoverImage:  dto.CoverImage,
		Status:      status,
		Available:   status == models.BookAvailable,
	}
	if dto.AvailableCopies != nil {
		book.AvailableCopies = *dto.AvailableCopies
	}
	if dto.TotalCopies != nil {
		book.TotalCopies = *dto.TotalCopies
	}
	return book
}

func normalizeCopy(dto BookCopyDTO, bookID int64) models.BookCopy {
	copyBookID := dto.BookID
	if copyBookID == 0 {
		copyBookID = bookID
	}
	return models.BookCopy{
		ID:     dto.ID,
		BookID: copyBookID,
		Status: models.CopyStatus(strings.ToUpper(string(dto.Status))),
	}
}

func normalizeLoan(dto LoanDTO) models.Loan {
	loan := models.Loan{
		ID:       dto.ID,
		BookID:   dto.BookID,
		Title:    dto.Title,
		DueDate:  parseTime(dto.DueDate),
		DaysLeft: dto.DaysLeft,
	}
	if dto.ReturnedDate != nil && *dto.ReturnedDate != "" {
		returned := parseTime(*dto.ReturnedDate)
		loan.ReturnedDate = &returned
	}
	return loan
}

func normalizeReservation(dto ReservationDTO) models.Reservation {
	return models.Reservation{
		ID:              dto.ID,
		UserID:          dto.UserID,
		Book:            NormalizeBook(dto.Book),
		ReservationDate: parseTime(dto.ReservationDate),
		Status:          models.ReservationStatus(strings.ToUpper(dto.Status)),
		QueuePosition:   dto.QueuePosition,
	}
}

func normalizeActivity(dto ActivityDTO) models.Activity {
	return models.Activity{
		Type:        dto.Type,
		Description: dto.Description,
		Timestamp:   parseTime(dto.Timestamp),
		User:        dto.User,
		BookTitle:   dto.BookTitle,
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTime accepts the ISO forms the backend emits; unknown input yields the zero time
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
