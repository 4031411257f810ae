package api

import (
	"context"
	"net/http"
)

// Commit commits the backend's working tree with message.
func (c *Client) Commit(ctx context.Context, message string) (string, error) {
	var resp messageResponse
	req := struct {
		Message string `json:"message"`
	}{message}
	if err := c.postJSON(ctx, "/git/commit", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// CreateBranch creates and switches to a new branch.
func (c *Client) CreateBranch(ctx context.Context, name string) (string, error) {
	var resp messageResponse
	req := struct {
		Name string `json:"name"`
	}{name}
	if err := c.postJSON(ctx, "/git/create-branch", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// CurrentBranch returns the checked-out branch.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	var resp struct {
		Branch string `json:"branch"`
	}
	if err := c.getJSON(ctx, "/git/current-branch", nil, &resp); err != nil {
		return "", err
	}
	return resp.Branch, nil
}

// ListBranches returns every local branch.
func (c *Client) ListBranches(ctx context.Context) ([]string, error) {
	var resp struct {
		Branches []string `json:"branches"`
	}
	if err := c.getJSON(ctx, "/git/branches", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Branches == nil {
		resp.Branches = []string{}
	}
	return resp.Branches, nil
}

// ReviewChanges asks the backend to review pending changes.
func (c *Client) ReviewChanges(ctx context.Context) (string, error) {
	var resp struct {
		Review string `json:"review"`
	}
	if err := c.doJSON(ctx, request{method: http.MethodPost, path: "/git/review"}, &resp); err != nil {
		return "", err
	}
	return resp.Review, nil
}
