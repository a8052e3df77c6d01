package fakebackend

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/sedaguven/davon-library-system/internal/models"
)

// LoanPeriod is how long a borrowed book may be kept
const LoanPeriod = 14 * 24 * time.Hour

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrNoCopies           = errors.New("no copies available")
	ErrBookAvailable      = errors.New("book is available, borrow it instead")
	ErrDuplicateReserve   = errors.New("you already have an active reservation for this book")
	ErrAlreadyReturned    = errors.New("loan already returned")
	ErrReservationClosed  = errors.New("reservation is not active")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type user struct {
	identity     models.Identity
	passwordHash []byte
}

type book struct {
	models.Book
	// tracked books derive counters from their copies; untracked books only
	// carry the cached counter
	tracked bool
	// explicit marks books served with a status field
	explicit bool
}

type loan struct {
	id       int64
	userID   int64
	bookID   int64
	copyID   int64
	borrowed time.Time
	due      time.Time
	returned *time.Time
}

type reservation struct {
	id     int64
	userID int64
	bookID int64
	at     time.Time
	status models.ReservationStatus
}

// BookSeed describes a catalog entry to add
type BookSeed struct {
	Title       string
	Author      string
	ISBN        string
	Description string
	// Copies lists per-copy states; empty means copies are not tracked
	Copies []models.CopyStatus
	// CachedAvailable overrides the served availableCopies counter, which
	// lets a book carry a stale cache
	CachedAvailable *int
	// Status is served as the explicit status field when set
	Status models.BookStatus
}

// Store is the in-memory state of the fake backend
type Store struct {
	mu           sync.Mutex
	now          func() time.Time
	users        map[int64]*user
	books        map[int64]*book
	copies       map[int64][]models.BookCopy
	loans        []*loan
	reservations []*reservation
	activities   []models.Activity
	nextID       int64
}

// NewStore creates an empty store using now as its clock
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now:    now,
		users:  make(map[int64]*user),
		books:  make(map[int64]*book),
		copies: make(map[int64][]models.BookCopy),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// AddUser registers a user with a bcrypt-hashed password
func (s *Store) AddUser(name, email, password string, role models.Role) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.identity.Email == email {
			return 0, ErrAlreadyExists
		}
	}
	id := s.id()
	s.users[id] = &user{
		identity:     models.Identity{ID: id, Name: name, Email: email, Role: role},
		passwordHash: hash,
	}
	return id, nil
}

// AddBook adds a catalog entry and its copies
func (s *Store) AddBook(seed BookSeed) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.id()
	b := &book{
		Book: models.Book{
			ID:          id,
			Title:       seed.Title,
			Author:      seed.Author,
			ISBN:        seed.ISBN,
			Description: seed.Description,
		},
		tracked:  len(seed.Copies) > 0,
		explicit: seed.Status != "",
	}
	for _, status := range seed.Copies {
		s.copies[id] = append(s.copies[id], models.BookCopy{ID: s.id(), BookID: id, Status: status})
	}
	b.TotalCopies = len(seed.Copies)
	b.AvailableCopies = countAvailable(s.copies[id])
	if seed.CachedAvailable != nil {
		b.AvailableCopies = *seed.CachedAvailable
		if !b.tracked {
			b.TotalCopies = *seed.CachedAvailable
		}
	}
	b.Status = seed.Status
	s.books[id] = b
	return id
}

func countAvailable(copies []models.BookCopy) int {
	n := 0
	for _, c := range copies {
		if c.Status == models.CopyAvailable {
			n++
		}
	}
	return n
}

// Authenticate checks credentials and returns the identity
func (s *Store) Authenticate(email, password string) (models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.identity.Email != email {
			continue
		}
		if bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)) != nil {
			return models.Identity{}, ErrInvalidCredentials
		}
		return u.identity, nil
	}
	return models.Identity{}, ErrInvalidCredentials
}

// User returns a user by id
func (s *Store) User(id int64) (models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return models.Identity{}, ErrNotFound
	}
	return u.identity, nil
}

// Users returns all users ordered by id
func (s *Store) Users() []models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]models.Identity, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u.identity)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

// Books returns one page of the catalog and the total count.
// Titles and authors are ordered with English collation, ignoring case.
func (s *Store) Books(page, limit int, sortBy, order string) ([]book, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	books := make([]book, 0, len(s.books))
	for _, b := range s.books {
		books = append(books, *b)
	}

	coll := collate.New(language.English, collate.IgnoreCase)
	less := func(i, j int) bool { return books[i].ID < books[j].ID }
	switch sortBy {
	case "title":
		less = func(i, j int) bool { return coll.CompareString(books[i].Title, books[j].Title) < 0 }
	case "author":
		less = func(i, j int) bool { return coll.CompareString(books[i].Author, books[j].Author) < 0 }
	}
	if strings.EqualFold(order, "desc") {
		asc := less
		less = func(i, j int) bool { return asc(j, i) }
	}
	sort.SliceStable(books, less)

	total := len(books)
	start := (page - 1) * limit
	if start >= total {
		return []book{}, total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return books[start:end], total
}

// Book returns one catalog entry
func (s *Store) Book(id int64) (book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[id]
	if !ok {
		return book{}, ErrNotFound
	}
	return *b, nil
}

// Copies returns the copies of a book
func (s *Store) Copies(bookID int64) []models.BookCopy {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]models.BookCopy{}, s.copies[bookID]...)
}

// SetCopyStatus changes a copy's state without touching the book's cached counter
func (s *Store) SetCopyStatus(copyID int64, status models.CopyStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for bookID, copies := range s.copies {
		for i := range copies {
			if copies[i].ID == copyID {
				s.copies[bookID][i].Status = status
				return nil
			}
		}
	}
	return ErrNotFound
}

func (s *Store) availableLocked(b *book) bool {
	if b.tracked {
		return countAvailable(s.copies[b.ID]) > 0
	}
	return b.AvailableCopies > 0
}

// Borrow lends an available copy of bookID to userID
func (s *Store) Borrow(userID, bookID int64) (*loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	b, ok := s.books[bookID]
	if !ok {
		return nil, ErrNotFound
	}
	if !s.availableLocked(b) {
		return nil, ErrNoCopies
	}

	now := s.now()
	l := &loan{id: s.id(), userID: userID, bookID: bookID, borrowed: now, due: now.Add(LoanPeriod)}
	if b.tracked {
		for i := range s.copies[bookID] {
			if s.copies[bookID][i].Status == models.CopyAvailable {
				s.copies[bookID][i].Status = models.CopyCheckedOut
				l.copyID = s.copies[bookID][i].ID
				break
			}
		}
	}
	if b.AvailableCopies > 0 {
		b.AvailableCopies--
	}
	s.loans = append(s.loans, l)

	// a fulfilled wait ends the borrower's reservation
	for _, r := range s.reservations {
		if r.userID == userID && r.bookID == bookID && activeStatus(r.status) {
			r.status = models.ReservationFulfilled
		}
	}

	s.logActivityLocked("LOAN", u.identity.Name+" borrowed "+b.Title, u.identity.Name, b.Title)
	return l, nil
}

// Reserve queues userID for an unavailable book
func (s *Store) Reserve(userID, bookID int64) (*reservation, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, 0, ErrNotFound
	}
	b, ok := s.books[bookID]
	if !ok {
		return nil, 0, ErrNotFound
	}
	if s.availableLocked(b) {
		return nil, 0, ErrBookAvailable
	}
	if _, found := s.queuePositionLocked(userID, bookID); found {
		return nil, 0, ErrDuplicateReserve
	}

	r := &reservation{id: s.id(), userID: userID, bookID: bookID, at: s.now(), status: models.ReservationActive}
	s.reservations = append(s.reservations, r)
	position, _ := s.queuePositionLocked(userID, bookID)

	s.logActivityLocked("RESERVATION", u.identity.Name+" reserved "+b.Title, u.identity.Name, b.Title)
	return r, position, nil
}

// QueuePosition returns the 1-based position of userID's active reservation
func (s *Store) QueuePosition(userID, bookID int64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queuePositionLocked(userID, bookID)
}

func (s *Store) queuePositionLocked(userID, bookID int64) (int, bool) {
	position := 0
	for _, r := range s.reservations {
		if r.bookID != bookID || !activeStatus(r.status) {
			continue
		}
		position++
		if r.userID == userID {
			return position, true
		}
	}
	return 0, false
}

// CancelReservation cancels an active reservation
func (s *Store) CancelReservation(id int64) (*reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.reservations {
		if r.id != id {
			continue
		}
		if !activeStatus(r.status) {
			return nil, ErrReservationClosed
		}
		r.status = models.ReservationCancelled
		return r, nil
	}
	return nil, ErrNotFound
}

// Reservation returns one reservation
func (s *Store) Reservation(id int64) (reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.reservations {
		if r.id == id {
			return *r, nil
		}
	}
	return reservation{}, ErrNotFound
}

// ReservationsForUser lists a user's reservations with their queue positions
func (s *Store) ReservationsForUser(userID int64) ([]reservation, []int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		out       []reservation
		positions []int
	)
	for _, r := range s.reservations {
		if r.userID != userID {
			continue
		}
		out = append(out, *r)
		pos, _ := s.queuePositionLocked(userID, r.bookID)
		if !activeStatus(r.status) {
			pos = 0
		}
		positions = append(positions, pos)
	}
	return out, positions
}

// ReturnLoan closes a loan and puts its copy back on the shelf
func (s *Store) ReturnLoan(id int64) (*loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.loans {
		if l.id != id {
			continue
		}
		if l.returned != nil {
			return nil, ErrAlreadyReturned
		}
		now := s.now()
		l.returned = &now

		b := s.books[l.bookID]
		for i := range s.copies[l.bookID] {
			if s.copies[l.bookID][i].ID == l.copyID {
				s.copies[l.bookID][i].Status = models.CopyAvailable
			}
		}
		b.AvailableCopies++

		name := ""
		if u, ok := s.users[l.userID]; ok {
			name = u.identity.Name
		}
		s.logActivityLocked("RETURN", name+" returned "+b.Title, name, b.Title)
		return l, nil
	}
	return nil, ErrNotFound
}

// Loan returns one loan
func (s *Store) Loan(id int64) (loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.loans {
		if l.id == id {
			return *l, nil
		}
	}
	return loan{}, ErrNotFound
}

// LoansForUser lists a user's loans in borrow order
func (s *Store) LoansForUser(userID int64) []loan {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []loan
	for _, l := range s.loans {
		if l.userID == userID {
			out = append(out, *l)
		}
	}
	return out
}

// RecentLoans returns the latest loans across all users, newest first
func (s *Store) RecentLoans(limit int) []loan {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]loan, 0, limit)
	for i := len(s.loans) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *s.loans[i])
	}
	return out
}

// LoanCounts returns the number of active and overdue loans
func (s *Store) LoanCounts() (active, overdue int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, l := range s.loans {
		if l.returned != nil {
			continue
		}
		active++
		if now.After(l.due) {
			overdue++
		}
	}
	return active, overdue
}

// Title returns a book's title, or "" when unknown
func (s *Store) Title(bookID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.books[bookID]; ok {
		return b.Title
	}
	return ""
}

// Activities returns the activity feed, newest first
func (s *Store) Activities(limit int) []models.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Activity, 0, limit)
	for i := len(s.activities) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.activities[i])
	}
	return out
}

func (s *Store) logActivityLocked(kind, description, userName, title string) {
	s.activities = append(s.activities, models.Activity{
		Type:        kind,
		Description: description,
		Timestamp:   s.now(),
		User:        userName,
		BookTitle:   title,
	})
}

func activeStatus(status models.ReservationStatus) bool {
	return models.Reservation{Status: status}.IsActive()
}
