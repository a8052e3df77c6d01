package availability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sedaguven/davon-library-system/internal/models"
)

type fakeCatalog struct {
	mu          sync.Mutex
	book        *models.Book
	bookErr     error
	copies      []models.BookCopy
	copiesDelay time.Duration
	position    int
	reserved    bool
	queueErr    error
	queueCalls  int
}

func (f *fakeCatalog) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	return f.book, f.bookErr
}

func (f *fakeCatalog) ListCopies(ctx context.Context, bookID int64) []models.BookCopy {
	if f.copiesDelay > 0 {
		time.Sleep(f.copiesDelay)
	}
	return f.copies
}

func (f *fakeCatalog) QueuePosition(ctx context.Context, userID, bookID int64) (int, bool, error) {
	f.mu.Lock()
	f.queueCalls++
	f.mu.Unlock()
	return f.position, f.reserved, f.queueErr
}

func copiesWith(statuses ...models.CopyStatus) []models.BookCopy {
	copies := make([]models.BookCopy, 0, len(statuses))
	for i, s := range statuses {
		copies = append(copies, models.BookCopy{ID: int64(i + 1), Status: s})
	}
	return copies
}

var viewer = &models.Identity{ID: 7, Name: "Ada", Role: models.RoleUser}

func TestEffectiveAvailability_CopiesSupersedeFlag(t *testing.T) {
	testCases := []struct {
		name          string
		book          models.Book
		copies        []models.BookCopy
		expectedAvail bool
		expectedLive  int
		description   string
	}{
		{
			name:          "one available among checked out",
			book:          models.Book{ID: 1, AvailableCopies: 3, Available: true},
			copies:        copiesWith(models.CopyAvailable, models.CopyCheckedOut, models.CopyCheckedOut),
			expectedAvail: true,
			expectedLive:  1,
			description:   "only live AVAILABLE copies count",
		},
		{
			name:          "stale flag says available",
			book:          models.Book{ID: 1, AvailableCopies: 3, Available: true},
			copies:        copiesWith(models.CopyCheckedOut, models.CopyLost, models.CopyMaintenance),
			expectedAvail: false,
			description:   "a cached positive flag loses to copy state",
		},
		{
			name:          "stale flag says unavailable",
			book:          models.Book{ID: 1, AvailableCopies: 0, Available: false},
			copies:        copiesWith(models.CopyDamaged, models.CopyAvailable),
			expectedAvail: true,
			expectedLive:  1,
			description:   "a cached negative flag loses to copy state",
		},
		{
			name:          "all available",
			book:          models.Book{ID: 1, Available: false},
			copies:        copiesWith(models.CopyAvailable, models.CopyAvailable),
			expectedAvail: true,
			expectedLive:  2,
			description:   "every available copy is counted",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			avail, live, tracked := EffectiveAvailability(tc.book, tc.copies)
			assert.Equal(t, tc.expectedAvail, avail, tc.description)
			assert.Equal(t, tc.expectedLive, live, tc.description)
			assert.True(t, tracked)
		})
	}
}

func TestEffectiveAvailability_EmptyCopiesUseFlag(t *testing.T) {
	for _, flag := range []bool{true, false} {
		avail, live, tracked := EffectiveAvailability(models.Book{ID: 2, Available: flag}, nil)
		assert.Equal(t, flag, avail)
		assert.Equal(t, 0, live)
		assert.False(t, tracked)

		avail, _, _ = EffectiveAvailability(models.Book{ID: 2, Available: flag}, []models.BookCopy{})
		assert.Equal(t, flag, avail)
	}
}

func TestReconcile_LiveCopyCount(t *testing.T) {
	catalog := &fakeCatalog{
		book:   &models.Book{ID: 1, AvailableCopies: 3, Available: true},
		copies: copiesWith(models.CopyAvailable, models.CopyCheckedOut, models.CopyCheckedOut),
	}
	r := NewReconciler(catalog, zap.NewNop())

	v, err := r.Reconcile(context.Background(), 1, viewer)
	require.NoError(t, err)

	assert.True(t, v.EffectiveAvailable)
	assert.Equal(t, 1, v.AvailableCopies)
	assert.True(t, v.CopiesTracked)
	assert.Equal(t, 0, catalog.queueCalls, "available books skip the reservation check")
}

func TestReconcile_EmptyCopiesFallBackToFlag(t *testing.T) {
	catalog := &fakeCatalog{book: &models.Book{ID: 2, Available: false}, copies: []models.BookCopy{}}
	r := NewReconciler(catalog, zap.NewNop())

	v, err := r.Reconcile(context.Background(), 2, nil)
	require.NoError(t, err)

	assert.False(t, v.EffectiveAvailable)
	assert.False(t, v.CopiesTracked)
	assert.False(t, v.AlreadyReserved)
	assert.Equal(t, 0, catalog.queueCalls, "anonymous viewers skip the reservation check")
}

func TestReconcile_NotFound(t *testing.T) {
	r := NewReconciler(&fakeCatalog{}, zap.NewNop())

	v, err := r.Reconcile(context.Background(), 999, viewer)
	require.NoError(t, err)
	assert.True(t, v.NotFound)
	assert.Nil(t, v.Book)
	assert.Equal(t, int64(999), v.BookID)
}

func TestReconcile_BookErrorPropagates(t *testing.T) {
	boom := errors.New("backend down")
	r := NewReconciler(&fakeCatalog{bookErr: boom}, zap.NewNop())

	_, err := r.Reconcile(context.Background(), 3, viewer)
	assert.ErrorIs(t, err, boom)
}

func TestReconcile_WaitsForCopies(t *testing.T) {
	catalog := &fakeCatalog{
		book:        &models.Book{ID: 4, Available: true},
		copies:      copiesWith(models.CopyCheckedOut),
		copiesDelay: 30 * time.Millisecond,
	}
	r := NewReconciler(catalog, zap.NewNop())

	v, err := r.Reconcile(context.Background(), 4, nil)
	require.NoError(t, err)
	assert.False(t, v.EffectiveAvailable, "the slow copy list must still decide the verdict")
}

func TestReconcile_ReservationCheck(t *testing.T) {
	testCases := []struct {
		name             string
		reserved         bool
		position         int
		queueErr         error
		expectedReserved bool
		expectedUnknown  bool
		description      string
	}{
		{
			name:             "holds reservation",
			reserved:         true,
			position:         2,
			expectedReserved: true,
			description:      "a position value means an active reservation",
		},
		{
			name:        "no reservation",
			description: "not found means no reservation",
		},
		{
			name:            "check failed",
			queueErr:        errors.New("status 500"),
			expectedUnknown: true,
			description:     "other failures leave reserve enabled and flag the verdict",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			catalog := &fakeCatalog{
				book:     &models.Book{ID: 2, Available: false},
				reserved: tc.reserved,
				position: tc.position,
				queueErr: tc.queueErr,
			}
			r := NewReconciler(catalog, zap.NewNop())

			v, err := r.Reconcile(context.Background(), 2, viewer)
			require.NoError(t, err)

			assert.False(t, v.EffectiveAvailable)
			assert.Equal(t, tc.expectedReserved, v.AlreadyReserved, tc.description)
			assert.Equal(t, tc.expectedUnknown, v.ReservationUnknown, tc.description)
			assert.Equal(t, tc.position, v.QueuePosition)
			assert.Equal(t, 1, catalog.queueCalls)
		})
	}
}
