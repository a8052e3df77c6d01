package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sedaguven/davon-library-system/internal/models"
)

// ErrMissingToken is returned when a login response carries no token
var ErrMissingToken = errors.New("login response did not include a token")

// UserDTO is a user record as sent by the backend
type UserDTO struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// LoginResult is the outcome of a successful login
type LoginResult struct {
	Token    string
	Identity models.Identity
}

func normalizeUser(dto UserDTO) models.Identity {
	role := models.Role(strings.ToLower(dto.Role))
	if role != models.RoleAdmin {
		role = models.RoleUser
	}
	return models.Identity{
		ID:    dto.ID,
		Name:  dto.Name,
		Email: dto.Email,
		Role:  role,
	}
}

// Login exchanges credentials for a bearer token and the user's identity
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var resp struct {
		Token string  `json:"token"`
		User  UserDTO `json:"user"`
	}
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body: map[string]string{
			"email":    email,
			"password": password,
		},
	}, &resp)
	if err != nil {
		return LoginResult{}, err
	}
	if resp.Token == "" {
		return LoginResult{}, ErrMissingToken
	}
	return LoginResult{Token: resp.Token, Identity: normalizeUser(resp.User)}, nil
}

// FetchProfile resolves the identity that owns token
func (c *Client) FetchProfile(ctx context.Context, token string) (models.Identity, error) {
	var dto UserDTO
	if err := c.do(ctx, request{method: http.MethodGet, path: "/users/profile", token: token}, &dto); err != nil {
		return models.Identity{}, err
	}
	return normalizeUser(dto), nil
}
