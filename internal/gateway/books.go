package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/sedaguven/davon-library-system/internal/models"
)

// Page selects a slice of the catalog
type Page struct {
	Page  int
	Limit int
	Sort  string
	Order string
}

// DefaultPage is the first catalog page ordered by title
var DefaultPage = Page{Page: 1, Limit: 10, Sort: "title", Order: "asc"}

// BookPage is one page of normalized catalog entries
type BookPage struct {
	Books []models.Book
	Total int
}

// ListBooks returns one page of the catalog
func (c *Client) ListBooks(ctx context.Context, p Page) (BookPage, error) {
	if p.Page <= 0 {
		p.Page = DefaultPage.Page
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPage.Limit
	}
	if p.Sort == "" {
		p.Sort = DefaultPage.Sort
	}
	if p.Order == "" {
		p.Order = DefaultPage.Order
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(p.Page))
	query.Set("limit", strconv.Itoa(p.Limit))
	query.Set("sort", p.Sort)
	query.Set("order", p.Order)

	var resp struct {
		Books []BookDTO `json:"books"`
		Total int       `json:"total"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/books", query: query}, &resp); err != nil {
		return BookPage{}, err
	}

	page := BookPage{
		Books: make([]models.Book, 0, len(resp.Books)),
		Total: resp.Total,
	}
	for _, dto := range resp.Books {
		page.Books = append(page.Books, NormalizeBook(dto))
	}
	return page, nil
}

// GetBook returns a single book, or nil when the backend reports 404
func (c *Client) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	var dto BookDTO
	err := c.do(ctx, request{method: http.MethodGet, path: fmt.Sprintf("/books/%d", id)}, &dto)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	book := NormalizeBook(dto)
	return &book, nil
}

// ListCopies returns the copies of a book.
// It never fails: any error yields an empty list.
func (c *Client) ListCopies(ctx context.Context, bookID int64) []models.BookCopy {
	var dtos []BookCopyDTO
	err := c.do(ctx, request{method: http.MethodGet, path: fmt.Sprintf("/book-copies/by-book/%d", bookID)}, &dtos)
	if err != nil {
		c.logger.Warn("Failed to fetch book copies",
			zap.Int64("book_id", bookID),
			zap.Error(err),
		)
		return []models.BookCopy{}
	}

	copies := make([]models.BookCopy, 0, len(dtos))
	for _, dto := range dtos {
		copies = append(copies, normalizeCopy(dto, bookID))
	}
	return copies
}
