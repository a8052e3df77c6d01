package fakebackend

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid " + name})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func (s *Server) login(c *gin.Context) {
	var req loginJSON
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}

	identity, err := s.store.Authenticate(req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid email or password"})
		return
	}

	token, err := s.issueToken(identity)
	if err != nil {
		s.logger.Error("Failed to sign token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": toUserJSON(identity)})
}

func (s *Server) profile(c *gin.Context) {
	identity, err := s.store.User(c.GetInt64(ctxUserIDKey))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unknown user"})
		return
	}
	c.JSON(http.StatusOK, toUserJSON(identity))
}

func (s *Server) listUsers(c *gin.Context) {
	users := s.store.Users()
	out := make([]userJSON, 0, len(users))
	for _, u := range users {
		out = append(out, toUserJSON(u))
	}
	c.JSON(http.StatusOK, gin.H{"users": out, "total": len(out)})
}

func (s *Server) listBooks(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 10)
	books, total := s.store.Books(page, limit, c.DefaultQuery("sort", "title"), c.DefaultQuery("order", "asc"))

	out := make([]bookJSON, 0, len(books))
	for _, b := range books {
		out = append(out, toBookJSON(b))
	}
	c.JSON(http.StatusOK, gin.H{"books": out, "total": total})
}

func (s *Server) getBook(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	b, err := s.store.Book(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Book not found"})
		return
	}
	c.JSON(http.StatusOK, toBookJSON(b))
}

func (s *Server) listCopies(c *gin.Context) {
	id, ok := paramID(c, "bookId")
	if !ok {
		return
	}
	copies := s.store.Copies(id)
	out := make([]copyJSON, 0, len(copies))
	for _, cp := range copies {
		out = append(out, copyJSON{ID: cp.ID, BookID: cp.BookID, Status: string(cp.Status)})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) borrow(c *gin.Context) {
	var req circulationJSON
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "userId and bookId are required"})
		return
	}
	if !canActFor(c, req.UserID) {
		c.JSON(http.StatusForbidden, gin.H{"message": "forbidden"})
		return
	}

	l, err := s.store.Borrow(req.UserID, req.BookID)
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "User or book not found"})
		return
	case errors.Is(err, ErrNoCopies):
		c.JSON(http.StatusConflict, gin.H{"message": "No copies available"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, toLoanJSON(*l, s.store.Title(l.bookID), s.store.now()))
}

func (s *Server) reserve(c *gin.Context) {
	var req circulationJSON
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "userId and bookId are required"})
		return
	}
	if !canActFor(c, req.UserID) {
		c.JSON(http.StatusForbidden, gin.H{"message": "forbidden"})
		return
	}

	r, position, err := s.store.Reserve(req.UserID, req.BookID)
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "User or book not found"})
		return
	case errors.Is(err, ErrBookAvailable):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Book is available, borrow it instead"})
		return
	case errors.Is(err, ErrDuplicateReserve):
		c.JSON(http.StatusConflict, gin.H{"message": "You already have an active reservation for this book"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	b, _ := s.store.Book(r.bookID)
	c.JSON(http.StatusCreated, toReservationJSON(*r, b, position))
}

func (s *Server) queuePosition(c *gin.Context) {
	userID, err1 := strconv.ParseInt(c.Query("userId"), 10, 64)
	bookID, err2 := strconv.ParseInt(c.Query("bookId"), 10, 64)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "userId and bookId are required"})
		return
	}

	position, found := s.store.QueuePosition(userID, bookID)
	if !found {
		c.JSON(http.StatusNotFound, "Reservation not found.")
		return
	}
	c.JSON(http.StatusOK, position)
}

func (s *Server) userReservations(c *gin.Context) {
	userID, ok := paramID(c, "userId")
	if !ok {
		return
	}
	if !canActFor(c, userID) {
		c.JSON(http.StatusForbidden, gin.H{"message": "forbidden"})
		return
	}

	reservations, positions := s.store.ReservationsForUser(userID)
	out := make([]reservationJSON, 0, len(reservations))
	for i, r := range reservations {
		b, _ := s.store.Book(r.bookID)
		out = append(out, toReservationJSON(r, b, positions[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) cancelReservation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	existing, err := s.store.Reservation(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Reservation not found"})
		return
	}
	if !canActFor(c, existing.userID) {
		c.JSON(http.StatusForbidden, gin.H{"message": "forbidden"})
		return
	}

	r, err := s.store.CancelReservation(id)
	if errors.Is(err, ErrReservationClosed) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Reservation is not active"})
		return
	}
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Reservation not found"})
		return
	}
	b, _ := s.store.Book(r.bookID)
	c.JSON(http.StatusOK, toReservationJSON(*r, b, 0))
}

func (s *Server) userLoans(c *gin.Context) {
	userID, ok := paramID(c, "userId")
	if !ok {
		return
	}
	if !canActFor(c, userID) {
		c.JSON(http.StatusForbidden, gin.H{"message": "forbidden"})
		return
	}

	now := s.store.now()
	loans := s.store.LoansForUser(userID)
	out := make([]loanJSON, 0, len(loans))
	for _, l := range loans {
		out = append(out, toLoanJSON(l, s.store.Title(l.bookID), now))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) returnLoan(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	existing, err := s.store.Loan(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Loan not found"})
		return
	}
	if !canActFor(c, existing.userID) {
		c.JSON(http.StatusForbidden, gin.H{"message": "forbidden"})
		return
	}

	l, err := s.store.ReturnLoan(id)
	if errors.Is(err, ErrAlreadyReturned) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Loan already returned"})
		return
	}
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Loan not found"})
		return
	}
	c.JSON(http.StatusOK, toLoanJSON(*l, s.store.Title(l.bookID), s.store.now()))
}

func (s *Server) recentLoans(c *gin.Context) {
	now := s.store.now()
	loans := s.store.RecentLoans(queryInt(c, "limit", 10))
	out := make([]loanJSON, 0, len(loans))
	for _, l := range loans {
		out = append(out, toLoanJSON(l, s.store.Title(l.bookID), now))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) loanedOutCount(c *gin.Context) {
	active, _ := s.store.LoanCounts()
	c.JSON(http.StatusOK, active)
}

func (s *Server) overdueCount(c *gin.Context) {
	_, overdue := s.store.LoanCounts()
	c.JSON(http.StatusOK, overdue)
}

func (s *Server) recentActivities(c *gin.Context) {
	activities := s.store.Activities(queryInt(c, "limit", 10))
	out := make([]activityJSON, 0, len(activities))
	for _, a := range activities {
		out = append(out, toActivityJSON(a))
	}
	c.JSON(http.StatusOK, out)
}
