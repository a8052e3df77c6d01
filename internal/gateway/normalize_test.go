package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sedaguven/davon-library-system/internal/models"
)

func intPtr(v int) *int { return &v }

func statusPtr(s models.BookStatus) *models.BookStatus { return &s }

func TestNormalizeBook_AvailabilityRules(t *testing.T) {
	testCases := []struct {
		name          string
		dto           BookDTO
		expectedRule  string
		expectedAvail bool
		description   string
	}{
		{
			name:          "explicit status available",
			dto:           BookDTO{ID: 1, Status: statusPtr(models.BookAvailable), AvailableCopies: intPtr(0)},
			expectedRule:  "explicit status",
			expectedAvail: true,
			description:   "status field wins over a zero copy count",
		},
		{
			name:          "explicit status unavailable",
			dto:           BookDTO{ID: 2, Status: statusPtr(models.BookUnavailable), AvailableCopies: intPtr(4)},
			expectedRule:  "explicit status",
			expectedAvail: false,
			description:   "status field wins over a positive copy count",
		},
		{
			name:          "lowercase status",
			dto:           BookDTO{ID: 3, Status: statusPtr("available")},
			expectedRule:  "explicit status",
			expectedAvail: true,
			description:   "status values are case-insensitive",
		},
		{
			name:          "copy count positive",
			dto:           BookDTO{ID: 4, AvailableCopies: intPtr(2)},
			expectedRule:  "copy count",
			expectedAvail: true,
			description:   "without status, availableCopies > 0 means available",
		},
		{
			name:          "copy count zero",
			dto:           BookDTO{ID: 5, AvailableCopies: intPtr(0)},
			expectedRule:  "copy count",
			expectedAvail: false,
			description:   "a zero counter is a real value, not a missing one",
		},
		{
			name:          "empty status falls through",
			dto:           BookDTO{ID: 6, Status: statusPtr(""), AvailableCopies: intPtr(0)},
			expectedRule:  "copy count",
			expectedAvail: false,
			description:   "an empty status string is treated as absent",
		},
		{
			name:          "legacy record",
			dto:           BookDTO{ID: 7, Title: "Legacy"},
			expectedRule:  "default available",
			expectedAvail: true,
			description:   "records without status or counters default to available",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, rule := availabilityOf(tc.dto)
			assert.Equal(t, tc.expectedRule, rule, tc.description)

			book := NormalizeBook(tc.dto)
			assert.Equal(t, tc.expectedAvail, book.Available, tc.description)
			assert.Equal(t, tc.dto.ID, book.ID)
		})
	}
}

func TestNormalizeBook_CopiesDefaultToZero(t *testing.T) {
	book := NormalizeBook(BookDTO{ID: 1, Title: "Dune", Author: "Frank Herbert", ISBN: "978-0441013593"})

	assert.Equal(t, 0, book.AvailableCopies)
	assert.Equal(t, 0, book.TotalCopies)
	assert.Equal(t, "Frank Herbert", book.Author)
	assert.Equal(t, models.BookAvailable, book.Status)
}

func TestNormalizeLoan_ActiveAndReturned(t *testing.T) {
	returned := "2024-03-02T10:15:00"

	active := normalizeLoan(LoanDTO{ID: 1, Title: "Dune", DueDate: "2024-03-10", DaysLeft: 3})
	assert.True(t, active.IsActive())
	assert.False(t, active.IsOverdue())
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), active.DueDate)

	done := normalizeLoan(LoanDTO{ID: 2, Title: "Emma", DueDate: "2024-03-01", ReturnedDate: &returned, DaysLeft: -1})
	assert.False(t, done.IsActive())
	assert.False(t, done.IsOverdue(), "returned loans are never overdue")
	if assert.NotNil(t, done.ReturnedDate) {
		assert.Equal(t, 15, done.ReturnedDate.Minute())
	}

	late := normalizeLoan(LoanDTO{ID: 3, DueDate: "2024-03-01", DaysLeft: -2})
	assert.True(t, late.IsOverdue())
}

func TestParseTime(t *testing.T) {
	assert.True(t, parseTime("").IsZero())
	assert.True(t, parseTime("not a date").IsZero())
	assert.Equal(t, 2024, parseTime("2024-01-15").Year())
	assert.Equal(t, 30, parseTime("2024-01-15T08:30:00Z").Minute())
	assert.Equal(t, 8, parseTime("2024-01-15T08:30:00.123").Hour())
}

func TestNormalizeReservation_Status(t *testing.T) {
	r := normalizeReservation(ReservationDTO{ID: 9, Status: "pending", QueuePosition: 2, Book: BookDTO{ID: 4, Title: "Dune"}})

	assert.Equal(t, models.ReservationPending, r.Status)
	assert.True(t, r.IsActive())
	assert.Equal(t, int64(4), r.Book.ID)

	cancelled := normalizeReservation(ReservationDTO{ID: 10, Status: "CANCELLED"})
	assert.False(t, cancelled.IsActive())
}
