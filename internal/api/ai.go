package api

import (
	"context"
	"net/http"
	"net/url"
)

type promptRequest struct {
	Prompt string `json:"prompt"`
}

// Ask sends a prompt and returns the complete answer.
func (c *Client) Ask(ctx context.Context, prompt string) (string, error) {
	var resp struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/ai/ask", nil, promptRequest{Prompt: prompt}, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// StartStream sends a prompt and returns a Stream that yields the answer
// in arrival order. The caller must Close the stream.
func (c *Client) StartStream(ctx context.Context, prompt string) (*Stream, error) {
	body, err := jsonBody(promptRequest{Prompt: prompt})
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/ai/stream",
		body:        body,
		contentType: "application/json",
		streaming:   true,
	})
	if err != nil {
		return nil, err
	}
	return newStream("POST /ai/stream", resp.Body), nil
}

// SwitchModel selects the backend model and returns its confirmation.
func (c *Client) SwitchModel(ctx context.Context, model string) (string, error) {
	query := url.Values{}
	query.Set("model", model)

	var resp messageResponse
	if err := c.postJSON(ctx, "/ai/switch-model", query, nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}
