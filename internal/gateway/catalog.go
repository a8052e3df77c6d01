package gateway

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/sedaguven/davon-library-system/internal/models"
)

// Availability narrows a catalog search by the normalized availability flag
type Availability string

const (
	AnyAvailability Availability = ""
	OnlyAvailable   Availability = "available"
	OnlyUnavailable Availability = "unavailable"
)

// ParseAvailability accepts "", "all", "available" and "unavailable"
func ParseAvailability(s string) (Availability, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "any":
		return AnyAvailability, nil
	case "available":
		return OnlyAvailable, nil
	case "unavailable":
		return OnlyUnavailable, nil
	}
	return AnyAvailability, fmt.Errorf("unknown availability %q (use available or unavailable)", s)
}

// CatalogFilter selects books by title or author text and availability
type CatalogFilter struct {
	Query        string
	Availability Availability
}

// IsZero reports whether the filter lets every book through
func (f CatalogFilter) IsZero() bool {
	return strings.TrimSpace(f.Query) == "" && f.Availability == AnyAvailability
}

// Match reports whether book passes the filter. The query matches a
// case-insensitive substring of the title or the author.
func (f CatalogFilter) Match(book models.Book) bool {
	switch f.Availability {
	case OnlyAvailable:
		if !book.Available {
			return false
		}
	case OnlyUnavailable:
		if book.Available {
			return false
		}
	}

	query := strings.TrimSpace(f.Query)
	if query == "" {
		return true
	}
	fold := cases.Fold()
	query = fold.String(query)
	return strings.Contains(fold.String(book.Title), query) ||
		strings.Contains(fold.String(book.Author), query)
}

// Apply keeps the books of page that pass the filter
func (f CatalogFilter) Apply(page BookPage) BookPage {
	if f.IsZero() {
		return page
	}
	out := BookPage{Books: make([]models.Book, 0, len(page.Books))}
	for _, book := range page.Books {
		if f.Match(book) {
			out.Books = append(out.Books, book)
		}
	}
	out.Total = len(out.Books)
	return out
}

// searchBatch is how many books SearchBooks requests per catalog page
const searchBatch = 100

// SearchBooks returns one page of the books that pass f. The backend has no
// search endpoint, so the whole catalog is read in batches and filtered here.
// An empty filter is a plain ListBooks.
func (c *Client) SearchBooks(ctx context.Context, f CatalogFilter, p Page) (BookPage, error) {
	if f.IsZero() {
		return c.ListBooks(ctx, p)
	}
	if p.Page <= 0 {
		p.Page = DefaultPage.Page
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPage.Limit
	}

	var all []models.Book
	for batch := 1; ; batch++ {
		page, err := c.ListBooks(ctx, Page{Page: batch, Limit: searchBatch, Sort: p.Sort, Order: p.Order})
		if err != nil {
			return BookPage{}, err
		}
		all = append(all, page.Books...)
		if len(page.Books) < searchBatch || len(all) >= page.Total {
			break
		}
	}

	matched := f.Apply(BookPage{Books: all, Total: len(all)})
	start := (p.Page - 1) * p.Limit
	if start >= len(matched.Books) {
		return BookPage{Books: []models.Book{}, Total: matched.Total}, nil
	}
	end := min(start+p.Limit, len(matched.Books))
	return BookPage{Books: matched.Books[start:end], Total: matched.Total}, nil
}
