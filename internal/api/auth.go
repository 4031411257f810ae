package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Login exchanges credentials for a token. The credentials are sent as a
// form, the way an OAuth2 password grant expects them.
func (c *Client) Login(ctx context.Context, username, password string) (Token, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var token Token
	err := c.doJSON(ctx, request{
		method:      http.MethodPost,
		path:        "/auth/token",
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}, &token)
	if err != nil {
		return Token{}, err
	}
	if token.AccessToken == "" {
		return Token{}, fmt.Errorf("POST /auth/token: response carries no access token")
	}
	return token, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, user User) (User, error) {
	var created User
	if err := c.postJSON(ctx, "/auth/register", nil, user, &created); err != nil {
		return User{}, err
	}
	return created, nil
}
