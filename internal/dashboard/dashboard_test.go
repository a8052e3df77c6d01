package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sedaguven/davon-library-system/internal/gateway"
	"github.com/sedaguven/davon-library-system/internal/models"
)

type fakeSource struct {
	users        gateway.UserPage
	books        gateway.BookPage
	booksErr     error
	loanedOut    int
	overdue      int
	activities   []models.Activity
	recentLoans  []models.Loan
	loans        []models.Loan
	reservations []models.Reservation
}

func (f *fakeSource) ListUsers(ctx context.Context) gateway.UserPage { return f.users }

func (f *fakeSource) ListBooks(ctx context.Context, p gateway.Page) (gateway.BookPage, error) {
	return f.books, f.booksErr
}

func (f *fakeSource) LoanedOutCount(ctx context.Context) int { return f.loanedOut }
func (f *fakeSource) OverdueCount(ctx context.Context) int   { return f.overdue }

func (f *fakeSource) RecentActivities(ctx context.Context, limit int) []models.Activity {
	return f.activities
}

func (f *fakeSource) RecentLoans(ctx context.Context) []models.Loan { return f.recentLoans }

func (f *fakeSource) ListLoansForUser(ctx context.Context, userID int64) []models.Loan {
	return f.loans
}

func (f *fakeSource) ListReservationsForUser(ctx context.Context, userID int64) []models.Reservation {
	return f.reservations
}

var (
	admin  = &models.Identity{ID: 1, Name: "Root", Role: models.RoleAdmin}
	member = &models.Identity{ID: 7, Name: "Ada", Role: models.RoleUser}
)

func TestAdminStats(t *testing.T) {
	source := &fakeSource{
		users:       gateway.UserPage{Users: []models.Identity{*admin, *member}, Total: 2},
		books:       gateway.BookPage{Total: 120},
		loanedOut:   14,
		overdue:     3,
		activities:  []models.Activity{{Type: "LOAN", Description: "Ada borrowed Dune"}},
		recentLoans: []models.Loan{{ID: 9, Title: "Dune"}},
	}
	svc := NewService(source, zap.NewNop())

	stats, err := svc.AdminStats(context.Background(), admin)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 120, stats.TotalBooks)
	assert.Equal(t, 14, stats.BooksLoaned)
	assert.Equal(t, 3, stats.OverdueBooks)
	assert.Len(t, stats.RecentActivity, 1)
	assert.Len(t, stats.RecentLoans, 1)
}

func TestAdminStats_Forbidden(t *testing.T) {
	svc := NewService(&fakeSource{}, zap.NewNop())

	_, err := svc.AdminStats(context.Background(), member)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.AdminStats(context.Background(), nil)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAdminStats_DegradesPerFigure(t *testing.T) {
	source := &fakeSource{
		users:     gateway.UserPage{Users: []models.Identity{*admin}},
		booksErr:  errors.New("backend down"),
		loanedOut: 4,
	}
	svc := NewService(source, zap.NewNop())

	stats, err := svc.AdminStats(context.Background(), admin)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.TotalUsers, "falls back to the listed users")
	assert.Equal(t, 0, stats.TotalBooks)
	assert.Equal(t, 4, stats.BooksLoaned)
}

func TestUsers(t *testing.T) {
	zoe := models.Identity{ID: 5, Name: "zoe Zimmer", Role: models.RoleUser}
	source := &fakeSource{
		users: gateway.UserPage{Users: []models.Identity{zoe, *member, *admin}, Total: 3},
	}
	svc := NewService(source, zap.NewNop())

	testCases := []struct {
		name        string
		description string
		identity    *models.Identity
		expectErr   error
	}{
		{name: "admin", description: "Admins see every account", identity: admin},
		{name: "member", description: "Members are refused", identity: member, expectErr: ErrForbidden},
		{name: "anonymous", description: "Nobody signed in is refused", identity: nil, expectErr: ErrForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			users, err := svc.Users(context.Background(), tc.identity)
			if tc.expectErr != nil {
				assert.ErrorIs(t, err, tc.expectErr, tc.description)
				assert.Nil(t, users)
				return
			}
			require.NoError(t, err, tc.description)
			require.Len(t, users, 3)
			assert.Equal(t, "zoe Zimmer", users[2].Name, "names sort without regard to case")
		})
	}
}

func TestUsers_BackendDown(t *testing.T) {
	svc := NewService(&fakeSource{users: gateway.UserPage{Users: []models.Identity{}}}, zap.NewNop())

	users, err := svc.Users(context.Background(), admin)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestMemberProfile(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	returnedEarly := now.Add(-72 * time.Hour)
	returnedLate := now.Add(-24 * time.Hour)

	source := &fakeSource{
		loans: []models.Loan{
			{ID: 1, Title: "Dune", DueDate: now.Add(96 * time.Hour)},
			{ID: 2, Title: "Emma", DueDate: now.Add(24 * time.Hour)},
			{ID: 3, Title: "Ulysses", ReturnedDate: &returnedEarly},
			{ID: 4, Title: "Beloved", ReturnedDate: &returnedLate},
		},
		reservations: []models.Reservation{
			{ID: 10, Status: models.ReservationActive},
			{ID: 11, Status: models.ReservationCancelled},
			{ID: 12, Status: models.ReservationPending},
		},
	}
	svc := NewService(source, zap.NewNop())

	profile, err := svc.MemberProfile(context.Background(), member)
	require.NoError(t, err)

	require.Len(t, profile.CurrentLoans, 2)
	assert.Equal(t, int64(2), profile.CurrentLoans[0].ID, "soonest due first")
	require.Len(t, profile.LoanHistory, 2)
	assert.Equal(t, int64(4), profile.LoanHistory[0].ID, "latest return first")
	assert.Len(t, profile.Reservations, 2)

	assert.Equal(t, ProfileStats{TotalLoans: 4, BooksRead: 2, ActiveReservations: 2}, profile.Stats)
	assert.Equal(t, member.ID, profile.Identity.ID)
}

func TestMemberProfile_Empty(t *testing.T) {
	svc := NewService(&fakeSource{}, zap.NewNop())

	profile, err := svc.MemberProfile(context.Background(), member)
	require.NoError(t, err)
	assert.NotNil(t, profile.CurrentLoans)
	assert.Empty(t, profile.LoanHistory)
	assert.Equal(t, ProfileStats{}, profile.Stats)

	_, err = svc.MemberProfile(context.Background(), nil)
	assert.Error(t, err)
}
