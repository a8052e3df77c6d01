package dashboard

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/sedaguven/davon-library-system/internal/gateway"
	"github.com/sedaguven/davon-library-system/internal/models"
)

// ErrForbidden is returned when a non-admin asks for admin statistics
var ErrForbidden = errors.New("access denied: admins only")

// RecentActivityLimit is the size of the admin activity feed
const RecentActivityLimit = 10

// Source is the subset of the backend gateway the dashboard reads from
type Source interface {
	ListUsers(ctx context.Context) gateway.UserPage
	ListBooks(ctx context.Context, p gateway.Page) (gateway.BookPage, error)
	LoanedOutCount(ctx context.Context) int
	OverdueCount(ctx context.Context) int
	RecentActivities(ctx context.Context, limit int) []models.Activity
	RecentLoans(ctx context.Context) []models.Loan
	ListLoansForUser(ctx context.Context, userID int64) []models.Loan
	ListReservationsForUser(ctx context.Context, userID int64) []models.Reservation
}

// Stats is the admin overview
type Stats struct {
	TotalUsers     int
	TotalBooks     int
	BooksLoaned    int
	OverdueBooks   int
	RecentActivity []models.Activity
	RecentLoans    []models.Loan
}

// ProfileStats summarizes a member's history
type ProfileStats struct {
	TotalLoans         int
	BooksRead          int
	ActiveReservations int
}

// Profile is a member's account page
type Profile struct {
	Identity     models.Identity
	CurrentLoans []models.Loan
	LoanHistory  []models.Loan
	Reservations []models.Reservation
	Stats        ProfileStats
}

// Service assembles dashboard views
type Service struct {
	source Source
	logger *zap.Logger
}

// NewService creates a dashboard service
func NewService(source Source, logger *zap.Logger) *Service {
	return &Service{source: source, logger: logger}
}

// AdminStats gathers the admin overview. Every figure degrades to zero on its own.
func (s *Service) AdminStats(ctx context.Context, identity *models.Identity) (Stats, error) {
	if identity == nil || !identity.IsAdmin() {
		return Stats{}, ErrForbidden
	}

	var stats Stats
	// every read degrades instead of failing, so the group never returns an error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		users := s.source.ListUsers(gctx)
		stats.TotalUsers = users.Total
		if stats.TotalUsers == 0 {
			stats.TotalUsers = len(users.Users)
		}
		return nil
	})
	g.Go(func() error {
		page, err := s.source.ListBooks(gctx, gateway.Page{Page: 1, Limit: 1})
		if err != nil {
			s.logger.Warn("Failed to count books", zap.Error(err))
			return nil
		}
		stats.TotalBooks = page.Total
		return nil
	})
	g.Go(func() error {
		stats.BooksLoaned = s.source.LoanedOutCount(gctx)
		return nil
	})
	g.Go(func() error {
		stats.OverdueBooks = s.source.OverdueCount(gctx)
		return nil
	})
	g.Go(func() error {
		stats.RecentActivity = s.source.RecentActivities(gctx, RecentActivityLimit)
		return nil
	})
	g.Go(func() error {
		stats.RecentLoans = s.source.RecentLoans(gctx)
		return nil
	})
	_ = g.Wait()

	return stats, nil
}

// Users lists the library's accounts for admins, ordered by name
func (s *Service) Users(ctx context.Context, identity *models.Identity) ([]models.Identity, error) {
	if identity == nil || !identity.IsAdmin() {
		return nil, ErrForbidden
	}

	users := s.source.ListUsers(ctx).Users
	coll := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(users, func(i, j int) bool {
		if c := coll.CompareString(users[i].Name, users[j].Name); c != 0 {
			return c < 0
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

// MemberProfile splits the member's loans into current and returned and
// lists their active reservations
func (s *Service) MemberProfile(ctx context.Context, identity *models.Identity) (Profile, error) {
	if identity == nil {
		return Profile{}, errors.New("not logged in")
	}

	var (
		loans        []models.Loan
		reservations []models.Reservation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loans = s.source.ListLoansForUser(gctx, identity.ID)
		return nil
	})
	g.Go(func() error {
		reservations = s.source.ListReservationsForUser(gctx, identity.ID)
		return nil
	})
	_ = g.Wait()

	profile := Profile{
		Identity:     *identity,
		CurrentLoans: []models.Loan{},
		LoanHistory:  []models.Loan{},
		Reservations: []models.Reservation{},
	}
	for _, loan := range loans {
		if loan.IsActive() {
			profile.CurrentLoans = append(profile.CurrentLoans, loan)
		} else {
			profile.LoanHistory = append(profile.LoanHistory, loan)
		}
	}
	for _, r := range reservations {
		if r.IsActive() {
			profile.Reservations = append(profile.Reservations, r)
		}
	}

	sort.Slice(profile.CurrentLoans, func(i, j int) bool {
		return profile.CurrentLoans[i].DueDate.Before(profile.CurrentLoans[j].DueDate)
	})
	sort.Slice(profile.LoanHistory, func(i, j int) bool {
		return profile.LoanHistory[i].ReturnedDate.After(*profile.LoanHistory[j].ReturnedDate)
	})

	profile.Stats = ProfileStats{
		TotalLoans:         len(loans),
		BooksRead:          len(profile.LoanHistory),
		ActiveReservations: len(profile.Reservations),
	}
	return profile, nil
}
