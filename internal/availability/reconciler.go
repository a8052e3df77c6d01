package availability

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sedaguven/davon-library-system/internal/models"
)

// Catalog is the subset of the backend gateway the reconciler reads from
type Catalog interface {
	GetBook(ctx context.Context, id int64) (*models.Book, error)
	ListCopies(ctx context.Context, bookID int64) []models.BookCopy
	QueuePosition(ctx context.Context, userID, bookID int64) (int, bool, error)
}

// Verdict is the reconciled availability of one book for one viewer
type Verdict struct {
	BookID   int64
	Book     *models.Book
	NotFound bool

	EffectiveAvailable bool
	// AvailableCopies is the live count of AVAILABLE copies when CopiesTracked
	AvailableCopies int
	CopiesTracked   bool

	AlreadyReserved bool
	QueuePosition   int
	// ReservationUnknown is set when the reservation check failed for a
	// reason other than "no reservation"
	ReservationUnknown bool
}

// Reconciler derives effective availability from book, copy and reservation state
type Reconciler struct {
	catalog Catalog
	logger  *zap.Logger
}

// NewReconciler creates a reconciler reading through catalog
func NewReconciler(catalog Catalog, logger *zap.Logger) *Reconciler {
	return &Reconciler{catalog: catalog, logger: logger}
}

// Reconcile produces the verdict for bookID as seen by viewer (nil when anonymous).
// The book and copy reads run concurrently and both settle before any decision.
func (r *Reconciler) Reconcile(ctx context.Context, bookID int64, viewer *models.Identity) (Verdict, error) {
	var (
		book   *models.Book
		copies []models.BookCopy
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		book, err = r.catalog.GetBook(gctx, bookID)
		return err
	})
	g.Go(func() error {
		copies = r.catalog.ListCopies(gctx, bookID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Verdict{}, fmt.Errorf("failed to fetch book %d: %w", bookID, err)
	}

	if book == nil {
		return Verdict{BookID: bookID, NotFound: true}, nil
	}

	v := Verdict{BookID: bookID, Book: book}
	v.EffectiveAvailable, v.AvailableCopies, v.CopiesTracked = EffectiveAvailability(*book, copies)

	if viewer == nil || v.EffectiveAvailable {
		return v, nil
	}

	position, found, err := r.catalog.QueuePosition(ctx, viewer.ID, bookID)
	if err != nil {
		r.logger.Warn("Reservation check failed, reserve stays enabled",
			zap.Int64("user_id", viewer.ID),
			zap.Int64("book_id", bookID),
			zap.Error(err),
		)
		v.ReservationUnknown = true
		return v, nil
	}
	v.AlreadyReserved = found
	v.QueuePosition = position
	return v, nil
}

// EffectiveAvailability returns whether book can be borrowed given its copies.
// A non-empty copy list supersedes the cached flag; an empty one defers to it.
func EffectiveAvailability(book models.Book, copies []models.BookCopy) (available bool, liveCopies int, tracked bool) {
	if len(copies) == 0 {
		return book.Available, 0, false
	}
	for _, c := range copies {
		if c.Status == models.CopyAvailable {
			liveCopies++
		}
	}
	return liveCopies > 0, liveCopies, true
}
