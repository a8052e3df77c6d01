package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sedaguven/davon-library-system/internal/models"
)

func TestCatalogFilter_Match(t *testing.T) {
	dune := models.Book{Title: "Dune", Author: "Frank Herbert", Available: true}
	emma := models.Book{Title: "Emma", Author: "Jane Austen", Available: false}

	testCases := []struct {
		name        string
		description string
		filter      CatalogFilter
		book        models.Book
		expected    bool
	}{
		{name: "empty filter", description: "The zero filter lets everything through", book: emma, expected: true},
		{name: "title", description: "Title substring, any case", filter: CatalogFilter{Query: "dUN"}, book: dune, expected: true},
		{name: "author", description: "Author substring matches too", filter: CatalogFilter{Query: "austen"}, book: emma, expected: true},
		{name: "no match", description: "Neither title nor author contains the query", filter: CatalogFilter{Query: "tolkien"}, book: dune, expected: false},
		{name: "only available", description: "Unavailable books are dropped", filter: CatalogFilter{Availability: OnlyAvailable}, book: emma, expected: false},
		{name: "only unavailable", description: "Available books are dropped", filter: CatalogFilter{Availability: OnlyUnavailable}, book: dune, expected: false},
		{name: "both", description: "Query and availability must both hold", filter: CatalogFilter{Query: "jane", Availability: OnlyUnavailable}, book: emma, expected: true},
		{name: "blank query", description: "Whitespace is no query", filter: CatalogFilter{Query: "   "}, book: dune, expected: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.filter.Match(tc.book), tc.description)
		})
	}
}

func TestParseAvailability(t *testing.T) {
	for in, want := range map[string]Availability{
		"":            AnyAvailability,
		"all":         AnyAvailability,
		"Available":   OnlyAvailable,
		"unavailable": OnlyUnavailable,
	} {
		got, err := ParseAvailability(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseAvailability("maybe")
	assert.Error(t, err)
}

// catalogServer serves n books. Even IDs are by "Author A", odd by "Author B",
// and every third book has no copies left.
func catalogServer(t *testing.T, n int, calls *atomic.Int32) *Client {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/books", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		var items []string
		for id := (page-1)*limit + 1; id <= min(page*limit, n); id++ {
			author := "Author B"
			if id%2 == 0 {
				author = "Author A"
			}
			items = append(items, fmt.Sprintf(`{"id":%d,"title":"Book %d","author":%q,"availableCopies":%d}`, id, id, author, id%3))
		}
		writeJSON(w, http.StatusOK, fmt.Sprintf(`{"books":[%s],"total":%d}`, strings.Join(items, ","), n))
	})
	return setupTestClient(t, mux)
}

func TestSearchBooks(t *testing.T) {
	testCases := []struct {
		name          string
		description   string
		filter        CatalogFilter
		page          Page
		expectedIDs   []int64
		expectedTotal int
		expectedCalls int32
	}{
		{
			name:          "no filter",
			description:   "An empty filter is a single catalog request",
			page:          Page{Page: 2, Limit: 3},
			expectedIDs:   []int64{4, 5, 6},
			expectedTotal: 150,
			expectedCalls: 1,
		},
		{
			name:          "author across batches",
			description:   "The whole catalog is scanned and the matches paged locally",
			filter:        CatalogFilter{Query: "author a"},
			page:          Page{Page: 2, Limit: 3},
			expectedIDs:   []int64{8, 10, 12},
			expectedTotal: 75,
			expectedCalls: 2,
		},
		{
			name:          "author and availability",
			description:   "Books without copies are excluded",
			filter:        CatalogFilter{Query: "AUTHOR A", Availability: OnlyAvailable},
			page:          Page{Page: 1, Limit: 4},
			expectedIDs:   []int64{2, 4, 8, 10},
			expectedTotal: 50,
			expectedCalls: 2,
		},
		{
			name:          "past the matches",
			description:   "A page beyond the matches is empty but keeps the total",
			filter:        CatalogFilter{Query: "Book 150"},
			page:          Page{Page: 2, Limit: 10},
			expectedIDs:   []int64{},
			expectedTotal: 1,
			expectedCalls: 2,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			client := catalogServer(t, 150, &calls)

			page, err := client.SearchBooks(context.Background(), tc.filter, tc.page)
			require.NoError(t, err, tc.description)

			ids := make([]int64, 0, len(page.Books))
			for _, b := range page.Books {
				ids = append(ids, b.ID)
			}
			assert.Equal(t, tc.expectedIDs, ids, tc.description)
			assert.Equal(t, tc.expectedTotal, page.Total, tc.description)
			assert.Equal(t, tc.expectedCalls, calls.Load(), tc.description)
		})
	}
}

func TestSearchBooks_BackendFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/books", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"message":"boom"}`)
	})
	client := setupTestClient(t, mux)

	_, err := client.SearchBooks(context.Background(), CatalogFilter{Query: "x"}, DefaultPage)
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
}
