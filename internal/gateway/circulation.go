package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/sedaguven/davon-library-system/internal/models"
)

type circulationRequest struct {
	UserID int64 `json:"userId"`
	BookID int64 `json:"bookId"`
}

// CreateLoan borrows a book for a user.
// The returned loan is nil when the backend acknowledged without a loan body.
func (c *Client) CreateLoan(ctx context.Context, userID, bookID int64) (*models.Loan, error) {
	data, err := c.send(ctx, request{
		method: http.MethodPost,
		path:   "/library/borrow",
		body:   circulationRequest{UserID: userID, BookID: bookID},
	})
	if err != nil {
		return nil, err
	}

	var dto LoanDTO
	if len(data) == 0 || json.Unmarshal(data, &dto) != nil || dto.ID == 0 {
		return nil, nil
	}
	loan := normalizeLoan(dto)
	if loan.BookID == 0 {
		loan.BookID = bookID
	}
	return &loan, nil
}

// CreateReservation places a user in a book's wait list.
// 409 means the user already holds an active reservation, 400 an invalid request.
func (c *Client) CreateReservation(ctx context.Context, userID, bookID int64) (*models.Reservation, error) {
	data, err := c.send(ctx, request{
		method: http.MethodPost,
		path:   "/library/reserve",
		body:   circulationRequest{UserID: userID, BookID: bookID},
	})
	if err != nil {
		return nil, err
	}

	var dto ReservationDTO
	if len(data) == 0 || json.Unmarshal(data, &dto) != nil || dto.ID == 0 {
		return nil, nil
	}
	reservation := normalizeReservation(dto)
	if reservation.UserID == 0 {
		reservation.UserID = userID
	}
	return &reservation, nil
}

// CancelReservation cancels a reservation
func (c *Client) CancelReservation(ctx context.Context, reservationID int64) error {
	return c.do(ctx, request{
		method: http.MethodPut,
		path:   fmt.Sprintf("/reservations/%d/cancel", reservationID),
	}, nil)
}

// ReturnLoan marks a loan as returned
func (c *Client) ReturnLoan(ctx context.Context, loanID int64) error {
	return c.do(ctx, request{
		method: http.MethodPut,
		path:   fmt.Sprintf("/loans/%d/return", loanID),
	}, nil)
}

// QueuePosition checks whether a user holds a reservation for a book.
// A 404 means no reservation and is not an error. A 2xx without a position
// yields ErrNoQueuePosition.
func (c *Client) QueuePosition(ctx context.Context, userID, bookID int64) (int, bool, error) {
	query := url.Values{}
	query.Set("userId", strconv.FormatInt(userID, 10))
	query.Set("bookId", strconv.FormatInt(bookID, 10))

	var position *int
	err := c.do(ctx, request{method: http.MethodGet, path: "/reservations/queue-position", query: query}, &position)
	if err != nil {
		if IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if position == nil {
		return 0, false, ErrNoQueuePosition
	}
	return *position, true, nil
}

// ListReservationsForUser returns the user's reservations; failures yield an empty list
func (c *Client) ListReservationsForUser(ctx context.Context, userID int64) []models.Reservation {
	var dtos []ReservationDTO
	err := c.do(ctx, request{method: http.MethodGet, path: fmt.Sprintf("/reservations/user/%d", userID)}, &dtos)
	if err != nil {
		c.logger.Warn("Failed to fetch reservations",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return []models.Reservation{}
	}

	reservations := make([]models.Reservation, 0, len(dtos))
	for _, dto := range dtos {
		reservation := normalizeReservation(dto)
		if reservation.UserID == 0 {
			reservation.UserID = userID
		}
		reservations = append(reservations, reservation)
	}
	return reservations
}

// ListLoansForUser returns the user's loans; failures yield an empty list
func (c *Client) ListLoansForUser(ctx context.Context, userID int64) []models.Loan {
	var dtos []LoanDTO
	err := c.do(ctx, request{method: http.MethodGet, path: fmt.Sprintf("/loans/user/%d", userID)}, &dtos)
	if err != nil {
		c.logger.Warn("Failed to fetch loans",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return []models.Loan{}
	}

	loans := make([]models.Loan, 0, len(dtos))
	for _, dto := range dtos {
		loans = append(loans, normalizeLoan(dto))
	}
	return loans
}
