package fakebackend

import (
	"fmt"

	"github.com/sedaguven/davon-library-system/internal/models"
)

// Demo accounts created by Seed
const (
	AdminEmail     = "admin@davon.local"
	AdminPassword  = "admin123"
	MemberEmail    = "reader@davon.local"
	MemberPassword = "reader123"
)

// Seed fills the store with demo users and a catalog that covers every
// availability shape the client has to reconcile
func Seed(s *Store) error {
	if _, err := s.AddUser("Library Admin", AdminEmail, AdminPassword, models.RoleAdmin); err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	if _, err := s.AddUser("Ada Reader", MemberEmail, MemberPassword, models.RoleUser); err != nil {
		return fmt.Errorf("failed to seed member: %w", err)
	}

	three := 3
	zero := 0
	s.AddBook(BookSeed{
		Title:  "Dune",
		Author: "Frank Herbert",
		ISBN:   "978-0441013593",
		Copies: []models.CopyStatus{models.CopyAvailable, models.CopyCheckedOut, models.CopyCheckedOut},
		// the cached counter lags behind the shelf
		CachedAvailable: &three,
	})
	s.AddBook(BookSeed{
		Title:           "Beloved",
		Author:          "Toni Morrison",
		ISBN:            "978-1400033416",
		CachedAvailable: &zero,
	})
	s.AddBook(BookSeed{
		Title:  "Emma",
		Author: "Jane Austen",
		ISBN:   "978-0141439587",
		Copies: []models.CopyStatus{models.CopyCheckedOut, models.CopyMaintenance},
	})
	s.AddBook(BookSeed{
		Title:  "Ulysses",
		Author: "James Joyce",
		ISBN:   "978-0679722762",
		Copies: []models.CopyStatus{models.CopyAvailable, models.CopyAvailable},
		Status: models.BookAvailable,
	})
	s.AddBook(BookSeed{
		Title:  "the Odyssey",
		Author: "Homer",
		ISBN:   "978-0140268867",
	})
	return nil
}
