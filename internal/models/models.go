package models

import "time"

// Role is the access level of an Identity
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Identity represents the authenticated user of a client session
type Identity struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// IsAdmin reports whether the identity may open admin views
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// BookStatus is the explicit availability status some backends send with a book
type BookStatus string

const (
	BookAvailable   BookStatus = "AVAILABLE"
	BookUnavailable BookStatus = "UNAVAILABLE"
)

// Book represents a catalog entry.
// Available is the backend's cached flag; it can be stale and is superseded
// by live copy state when copies are tracked.
type Book struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Author          string     `json:"author"`
	ISBN            string     `json:"isbn"`
	Description     string     `json:"description"`
	CoverImage      string     `json:"coverImage"`
	AvailableCopies int        `json:"availableCopies"`
	TotalCopies     int        `json:"totalCopies"`
	Status          BookStatus `json:"status"`
	Available       bool       `json:"available"`
}

// CopyStatus is the state of a single physical copy
type CopyStatus string

const (
	CopyAvailable   CopyStatus = "AVAILABLE"
	CopyCheckedOut  CopyStatus = "CHECKED_OUT"
	CopyMaintenance CopyStatus = "MAINTENANCE"
	CopyDamaged     CopyStatus = "DAMAGED"
	CopyLost        CopyStatus = "LOST"
)

// BookCopy represents one physical copy of a book
type BookCopy struct {
	ID     int64      `json:"id"`
	BookID int64      `json:"bookId"`
	Status CopyStatus `json:"status"`
}

// Loan represents a borrow record
type Loan struct {
	ID           int64      `json:"id"`
	BookID       int64      `json:"bookId"`
	Title        string     `json:"title"`
	DueDate      time.Time  `json:"dueDate"`
	ReturnedDate *time.Time `json:"returnedDate"`
	DaysLeft     int        `json:"daysLeft"`
}

// IsActive reports whether the loan has not been returned yet
func (l Loan) IsActive() bool {
	return l.ReturnedDate == nil
}

// IsOverdue reports whether an active loan is past its due date
func (l Loan) IsOverdue() bool {
	return l.IsActive() && l.DaysLeft < 0
}

// ReservationStatus is the lifecycle state of a reservation
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationPending   ReservationStatus = "PENDING"
	ReservationFulfilled ReservationStatus = "FULFILLED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

// Reservation represents a place in a book's wait list
type Reservation struct {
	ID              int64             `json:"id"`
	UserID          int64             `json:"userId"`
	Book            Book              `json:"book"`
	ReservationDate time.Time         `json:"reservationDate"`
	Status          ReservationStatus `json:"status"`
	QueuePosition   int               `json:"queuePosition"`
}

// IsActive reports whether the reservation is still queued
func (r Reservation) IsActive() bool {
	return r.Status == ReservationActive || r.Status == ReservationPending
}

// Activity is one entry of the admin activity feed
type Activity struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	User        string    `json:"user"`
	BookTitle   string    `json:"bookTitle"`
}

// ActionEvent is a locally journaled circulation command and its outcome
type ActionEvent struct {
	At      time.Time
	UserID  int64
	BookID  int64
	Action  string
	Outcome string
	Detail  string
}

// ActionStat aggregates journaled commands by action and outcome
type ActionStat struct {
	Action  string
	Outcome string
	Count   int
}
