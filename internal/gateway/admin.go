package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/sedaguven/davon-library-system/internal/models"
)

// UserPage is the admin user listing
type UserPage struct {
	Users []models.Identity
	Total int
}

// ListUsers returns all users; failures yield an empty page
func (c *Client) ListUsers(ctx context.Context) UserPage {
	var resp struct {
		Users []UserDTO `json:"users"`
		Total int       `json:"total"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/users"}, &resp); err != nil {
		c.logger.Warn("Failed to fetch users", zap.Error(err))
		return UserPage{Users: []models.Identity{}}
	}

	page := UserPage{
		Users: make([]models.Identity, 0, len(resp.Users)),
		Total: resp.Total,
	}
	for _, dto := range resp.Users {
		page.Users = append(page.Users, normalizeUser(dto))
	}
	return page
}

// RecentLoans returns the latest loans across all users; failures yield an empty list
func (c *Client) RecentLoans(ctx context.Context) []models.Loan {
	var dtos []LoanDTO
	if err := c.do(ctx, request{method: http.MethodGet, path: "/loans/recent"}, &dtos); err != nil {
		c.logger.Warn("Failed to fetch recent loans", zap.Error(err))
		return []models.Loan{}
	}

	loans := make([]models.Loan, 0, len(dtos))
	for _, dto := range dtos {
		loans = append(loans, normalizeLoan(dto))
	}
	return loans
}

// LoanedOutCount returns the number of active loans; failures yield 0
func (c *Client) LoanedOutCount(ctx context.Context) int {
	return c.count(ctx, "/loans/loaned-out/count")
}

// OverdueCount returns the number of overdue loans; failures yield 0
func (c *Client) OverdueCount(ctx context.Context) int {
	return c.count(ctx, "/loans/overdue/count")
}

func (c *Client) count(ctx context.Context, path string) int {
	var n int
	if err := c.do(ctx, request{method: http.MethodGet, path: path}, &n); err != nil {
		c.logger.Warn("Failed to fetch count", zap.String("path", path), zap.Error(err))
		return 0
	}
	return n
}

// RecentActivities returns the admin activity feed; failures yield an empty list
func (c *Client) RecentActivities(ctx context.Context, limit int) []models.Activity {
	if limit <= 0 {
		limit = 10
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	var dtos []ActivityDTO
	if err := c.do(ctx, request{method: http.MethodGet, path: "/activities/recent", query: query}, &dtos); err != nil {
		c.logger.Warn("Failed to fetch recent activities", zap.Error(err))
		return []models.Activity{}
	}

	activities := make([]models.Activity, 0, len(dtos))
	for _, dto := range dtos {
		activities = append(activities, normalizeActivity(dto))
	}
	return activities
}
