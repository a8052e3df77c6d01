package workflow

import (
	"errors"
	"net/http"

	"github.com/sedaguven/davon-library-system/internal/gateway"
	"github.com/sedaguven/davon-library-system/internal/models"
)

// OutcomeKind classifies the result of a circulation command
type OutcomeKind string

const (
	OutcomeBorrowSucceeded      OutcomeKind = "borrow_succeeded"
	OutcomeBorrowFailed         OutcomeKind = "borrow_failed"
	OutcomeReserveSucceeded     OutcomeKind = "reserve_succeeded"
	OutcomeDuplicateReservation OutcomeKind = "duplicate_reservation"
	OutcomeInvalidRequest       OutcomeKind = "invalid_request"
	OutcomeReservationFailed    OutcomeKind = "reservation_failed"
)

// User-facing messages
const (
	MsgBorrowSucceeded      = "Book borrowed successfully!"
	MsgBorrowFailed         = "Failed to borrow book."
	MsgReserveSucceeded     = "Book reserved successfully!"
	MsgDuplicateReservation = "You already have an active reservation for this book."
	MsgInvalidRequest       = "Invalid reservation request."
	MsgReservationFailed    = "Failed to reserve book."
)

// Outcome is the interpreted result of Borrow or Reserve
type Outcome struct {
	Kind    OutcomeKind
	Message string
	// Err is the raw gateway error for failed outcomes
	Err         error
	Loan        *models.Loan
	Reservation *models.Reservation
}

// Succeeded reports whether the command was accepted by the backend
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeBorrowSucceeded || o.Kind == OutcomeReserveSucceeded
}

func borrowOutcome(loan *models.Loan, err error) Outcome {
	if err != nil {
		return Outcome{Kind: OutcomeBorrowFailed, Message: MsgBorrowFailed, Err: err}
	}
	return Outcome{Kind: OutcomeBorrowSucceeded, Message: MsgBorrowSucceeded, Loan: loan}
}

// reserveOutcome interprets a reservation result by status code
func reserveOutcome(reservation *models.Reservation, err error) Outcome {
	if err == nil {
		return Outcome{Kind: OutcomeReserveSucceeded, Message: MsgReserveSucceeded, Reservation: reservation}
	}

	var httpErr *gateway.HTTPError
	if !errors.As(err, &httpErr) {
		return Outcome{Kind: OutcomeReservationFailed, Message: MsgReservationFailed, Err: err}
	}

	switch httpErr.Status {
	case http.StatusConflict:
		return Outcome{Kind: OutcomeDuplicateReservation, Message: MsgDuplicateReservation, Err: err}
	case http.StatusBadRequest:
		msg := httpErr.Message
		if msg == "" {
			msg = MsgInvalidRequest
		}
		return Outcome{Kind: OutcomeInvalidRequest, Message: msg, Err: err}
	default:
		return Outcome{Kind: OutcomeReservationFailed, Message: MsgReservationFailed, Err: err}
	}
}
