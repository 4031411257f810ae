package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
)

// ListFiles returns the stored files.
func (c *Client) ListFiles(ctx context.Context) ([]FileEntry, error) {
	var resp struct {
		Files []FileEntry `json:"files"`
	}
	if err := c.getJSON(ctx, "/files/list", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Files == nil {
		resp.Files = []FileEntry{}
	}
	return resp.Files, nil
}

// UploadFile uploads the content of r under name as multipart field "file".
func (c *Client) UploadFile(ctx context.Context, name string, r io.Reader) (UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return UploadResult{}, fmt.Errorf("failed to read upload %s: %w", name, err)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("failed to finish form: %w", err)
	}

	var result UploadResult
	err = c.doJSON(ctx, request{
		method:      http.MethodPost,
		path:        "/files/upload",
		body:        &buf,
		contentType: mw.FormDataContentType(),
	}, &result)
	if err != nil {
		return UploadResult{}, err
	}
	return result, nil
}

// DeleteFile removes a stored file.
func (c *Client) DeleteFile(ctx context.Context, name string) (string, error) {
	var resp messageResponse
	if err := c.doJSON(ctx, request{method: http.MethodDelete, path: filePath(name)}, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// GetFileContent returns the content of a stored file.
func (c *Client) GetFileContent(ctx context.Context, name string) (string, error) {
	var resp struct {
		Content string `json:"content"`
	}
	if err := c.getJSON(ctx, filePath(name), nil, &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

func filePath(name string) string {
	return "/files/" + url.PathEscape(name)
}
