package api

import (
	"context"
	"encoding/json"
)

type codeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type debugRequest struct {
	Code     string `json:"code"`
	Error    string `json:"error"`
	Language string `json:"language"`
}

// RefactorSuggestions returns refactoring hints for code.
func (c *Client) RefactorSuggestions(ctx context.Context, code, language string) ([]RefactorSuggestion, error) {
	var raw json.RawMessage
	if err := c.postJSON(ctx, "/code/refactor", nil, codeRequest{Code: code, Language: language}, &raw); err != nil {
		return nil, err
	}
	return decodeSuggestions(raw)
}

// CompleteCode returns the text the backend proposes to append to code.
func (c *Client) CompleteCode(ctx context.Context, code, language string) (string, error) {
	var resp struct {
		Completion string `json:"completion"`
	}
	if err := c.postJSON(ctx, "/code/complete", nil, codeRequest{Code: code, Language: language}, &resp); err != nil {
		return "", err
	}
	return resp.Completion, nil
}

// DebugAssistance explains errText in the context of code.
func (c *Client) DebugAssistance(ctx context.Context, code, errText, language string) (string, error) {
	var resp struct {
		Assistance string `json:"assistance"`
	}
	req := debugRequest{Code: code, Error: errText, Language: language}
	if err := c.postJSON(ctx, "/code/debug", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.Assistance, nil
}
