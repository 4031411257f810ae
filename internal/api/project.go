package api

import (
	"context"
	"encoding/json"
	"net/url"
)

// AnalyzeProject runs a static analysis of the project at path. The path
// is sent both as a query parameter and in the JSON body since backend
// versions differ in where they read it.
func (c *Client) AnalyzeProject(ctx context.Context, path string) (ProjectAnalysis, error) {
	query := url.Values{}
	query.Set("project_path", path)
	body := struct {
		ProjectPath string `json:"project_path"`
	}{path}

	var raw json.RawMessage
	if err := c.postJSON(ctx, "/project/analyze", query, body, &raw); err != nil {
		return nil, err
	}
	return decodeAnalysis(raw)
}

// ProjectSummary returns the backend's summary of the project in context.
func (c *Client) ProjectSummary(ctx context.Context) (json.RawMessage, error) {
	var resp struct {
		ProjectSummary json.RawMessage `json:"project_summary"`
	}
	if err := c.getJSON(ctx, "/project/summary", nil, &resp); err != nil {
		return nil, err
	}
	return resp.ProjectSummary, nil
}

// AddProjectToContext adds the project at path to the assistant's context.
func (c *Client) AddProjectToContext(ctx context.Context, path string) (string, error) {
	query := url.Values{}
	query.Set("project_path", path)

	var resp messageResponse
	if err := c.postJSON(ctx, "/project/add-to-context", query, nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}
