package api

import (
	"context"
	"encoding/json"
	"net/url"
)

// SearchWeb runs a web search and returns the backend's raw results field.
func (c *Client) SearchWeb(ctx context.Context, query string) (json.RawMessage, error) {
	return c.search(ctx, "/search/web", query)
}

// SearchKnowledgeBase searches the assistant's knowledge base.
func (c *Client) SearchKnowledgeBase(ctx context.Context, query string) (json.RawMessage, error) {
	return c.search(ctx, "/search/knowledge-base", query)
}

func (c *Client) search(ctx context.Context, path, query string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("query", query)

	var resp struct {
		Results json.RawMessage `json:"results"`
	}
	if err := c.getJSON(ctx, path, q, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}
