package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sedaguven/davon-library-system/internal/availability"
	"github.com/sedaguven/davon-library-system/internal/models"
	"github.com/sedaguven/davon-library-system/internal/session"
)

var (
	ErrNotAuthenticated = errors.New("not logged in")
	ErrSessionLoading   = errors.New("session is still loading")
	ErrActionNotAllowed = errors.New("action not allowed for this book")
	ErrCommandInFlight  = errors.New("a command for this book is already in progress")
	ErrStaleIdentity    = errors.New("the signed-in user changed while the view was loading")
)

// Commands is the subset of the backend gateway that issues circulation commands
type Commands interface {
	CreateLoan(ctx context.Context, userID, bookID int64) (*models.Loan, error)
	CreateReservation(ctx context.Context, userID, bookID int64) (*models.Reservation, error)
	CancelReservation(ctx context.Context, reservationID int64) error
	ReturnLoan(ctx context.Context, loanID int64) error
}

// Reconciler produces availability verdicts
type Reconciler interface {
	Reconcile(ctx context.Context, bookID int64, viewer *models.Identity) (availability.Verdict, error)
}

// IdentitySource exposes the current session state
type IdentitySource interface {
	Current() session.Snapshot
}

// Journal records executed commands; it may be nil
type Journal interface {
	RecordAction(ctx context.Context, event models.ActionEvent) error
}

// BookView is a reconciled book together with the action offered to the viewer
type BookView struct {
	BookID  int64
	Book    *models.Book
	Verdict availability.Verdict
	Action  Action
	Viewer  *models.Identity
}

// StatusLine describes the view state for display
func (v BookView) StatusLine() string {
	switch {
	case v.Verdict.NotFound:
		return "Book not found"
	case v.Verdict.EffectiveAvailable && v.Verdict.CopiesTracked:
		return fmt.Sprintf("Available (%d copies on the shelf)", v.Verdict.AvailableCopies)
	case v.Verdict.EffectiveAvailable:
		return "Available"
	case v.Verdict.AlreadyReserved && v.Verdict.QueuePosition > 0:
		return fmt.Sprintf("Already reserved, you are #%d in the queue", v.Verdict.QueuePosition)
	case v.Verdict.AlreadyReserved:
		return "Already reserved"
	default:
		return "Currently unavailable"
	}
}

type commandKey struct {
	userID int64
	bookID int64
}

// Workflow exposes the valid action for a book and executes it
type Workflow struct {
	identity   IdentitySource
	reconciler Reconciler
	commands   Commands
	journal    Journal
	logger     *zap.Logger

	mu       sync.Mutex
	inFlight map[commandKey]struct{}
}

// New creates a workflow. journal may be nil.
func New(identity IdentitySource, reconciler Reconciler, commands Commands, journal Journal, logger *zap.Logger) *Workflow {
	return &Workflow{
		identity:   identity,
		reconciler: reconciler,
		commands:   commands,
		journal:    journal,
		logger:     logger,
		inFlight:   make(map[commandKey]struct{}),
	}
}

// View reconciles bookID for the current identity and decides the action
func (w *Workflow) View(ctx context.Context, bookID int64) (BookView, error) {
	before := w.identity.Current()
	if before.State == session.StateLoading {
		return BookView{}, ErrSessionLoading
	}

	verdict, err := w.reconciler.Reconcile(ctx, bookID, before.Identity)
	if err != nil {
		return BookView{}, err
	}

	if !sameViewer(before.Identity, w.identity.Current().Identity) {
		w.logger.Debug("Discarding book view for previous identity", zap.Int64("book_id", bookID))
		return BookView{}, ErrStaleIdentity
	}

	view := BookView{
		BookID:  bookID,
		Book:    verdict.Book,
		Verdict: verdict,
		Action:  Decide(verdict),
		Viewer:  before.Identity,
	}
	// anonymous viewers see availability but cannot act
	if view.Viewer == nil {
		view.Action = ActionNone
	}
	return view, nil
}

// Execute runs the view's exposed action
func (w *Workflow) Execute(ctx context.Context, view *BookView) (Outcome, error) {
	switch view.Action {
	case ActionBorrow:
		return w.Borrow(ctx, view)
	case ActionReserve:
		return w.Reserve(ctx, view)
	default:
		return Outcome{}, ErrActionNotAllowed
	}
}

// Borrow creates a loan. The caller should re-fetch the view on success.
func (w *Workflow) Borrow(ctx context.Context, view *BookView) (Outcome, error) {
	release, err := w.begin(view, ActionBorrow)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	loan, err := w.commands.CreateLoan(ctx, view.Viewer.ID, view.BookID)
	outcome := borrowOutcome(loan, err)
	w.record(ctx, view.Viewer.ID, view.BookID, "borrow", outcome)
	return outcome, nil
}

// Reserve creates a reservation. On success the view is updated in place to
// already reserved without a re-fetch.
func (w *Workflow) Reserve(ctx context.Context, view *BookView) (Outcome, error) {
	release, err := w.begin(view, ActionReserve)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	reservation, err := w.commands.CreateReservation(ctx, view.Viewer.ID, view.BookID)
	outcome := reserveOutcome(reservation, err)
	w.record(ctx, view.Viewer.ID, view.BookID, "reserve", outcome)

	if outcome.Kind == OutcomeReserveSucceeded {
		view.Verdict.AlreadyReserved = true
		view.Verdict.ReservationUnknown = false
		if reservation != nil {
			view.Verdict.QueuePosition = reservation.QueuePosition
		}
		view.Action = ActionNone
	}
	return outcome, nil
}

// InFlight reports whether a command for (userID, bookID) is running
func (w *Workflow) InFlight(userID, bookID int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, busy := w.inFlight[commandKey{userID: userID, bookID: bookID}]
	return busy
}

// CancelReservation cancels one of the current user's reservations
func (w *Workflow) CancelReservation(ctx context.Context, reservationID int64) error {
	viewer, err := w.currentViewer()
	if err != nil {
		return err
	}
	err = w.commands.CancelReservation(ctx, reservationID)
	w.recordSimple(ctx, viewer.ID, 0, "cancel", reservationID, err)
	if err != nil {
		return fmt.Errorf("failed to cancel reservation %d: %w", reservationID, err)
	}
	return nil
}

// ReturnLoan returns one of the current user's loans
func (w *Workflow) ReturnLoan(ctx context.Context, loanID int64) error {
	viewer, err := w.currentViewer()
	if err != nil {
		return err
	}
	err = w.commands.ReturnLoan(ctx, loanID)
	w.recordSimple(ctx, viewer.ID, 0, "return", loanID, err)
	if err != nil {
		return fmt.Errorf("failed to return loan %d: %w", loanID, err)
	}
	return nil
}

// begin validates a command against the view and marks it in flight
func (w *Workflow) begin(view *BookView, want Action) (func(), error) {
	if view == nil || view.Viewer == nil {
		return nil, ErrNotAuthenticated
	}
	if view.Action != want {
		return nil, ErrActionNotAllowed
	}
	if !sameViewer(view.Viewer, w.identity.Current().Identity) {
		return nil, ErrStaleIdentity
	}

	key := commandKey{userID: view.Viewer.ID, bookID: view.BookID}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.inFlight[key]; busy {
		return nil, ErrCommandInFlight
	}
	w.inFlight[key] = struct{}{}

	return func() {
		w.mu.Lock()
		delete(w.inFlight, key)
		w.mu.Unlock()
	}, nil
}

func (w *Workflow) currentViewer() (*models.Identity, error) {
	snap := w.identity.Current()
	switch {
	case snap.State == session.StateLoading:
		return nil, ErrSessionLoading
	case !snap.Authenticated():
		return nil, ErrNotAuthenticated
	}
	return snap.Identity, nil
}

func (w *Workflow) record(ctx context.Context, userID, bookID int64, action string, outcome Outcome) {
	detail := outcome.Message
	if outcome.Err != nil {
		detail = outcome.Err.Error()
	}
	w.logger.Info("Circulation command finished",
		zap.String("action", action),
		zap.Int64("user_id", userID),
		zap.Int64("book_id", bookID),
		zap.String("outcome", string(outcome.Kind)),
		zap.Error(outcome.Err),
	)
	w.journalEvent(ctx, models.ActionEvent{
		At:      time.Now().UTC(),
		UserID:  userID,
		BookID:  bookID,
		Action:  action,
		Outcome: string(outcome.Kind),
		Detail:  detail,
	})
}

func (w *Workflow) recordSimple(ctx context.Context, userID, bookID int64, action string, targetID int64, err error) {
	event := models.ActionEvent{
		At:      time.Now().UTC(),
		UserID:  userID,
		BookID:  bookID,
		Action:  action,
		Outcome: "succeeded",
		Detail:  fmt.Sprintf("id=%d", targetID),
	}
	if err != nil {
		event.Outcome = "failed"
		event.Detail = fmt.Sprintf("id=%d: %v", targetID, err)
	}
	w.logger.Info("Circulation command finished",
		zap.String("action", action),
		zap.Int64("user_id", userID),
		zap.Int64("target_id", targetID),
		zap.String("outcome", event.Outcome),
		zap.Error(err),
	)
	w.journalEvent(ctx, event)
}

// journalEvent never changes the command outcome
func (w *Workflow) journalEvent(ctx context.Context, event models.ActionEvent) {
	if w.journal == nil {
		return
	}
	if err := w.journal.RecordAction(ctx, event); err != nil {
		w.logger.Warn("Failed to journal action",
			zap.String("action", event.Action),
			zap.Error(err),
		)
	}
}

func sameViewer(a, b *models.Identity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID
}
