package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Token is the credential returned by a successful login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// User is an account as the backend describes it.
type User struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Password string `json:"password,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// FileEntry is one stored file. The backend lists either bare names or
// objects carrying metadata; both decode into FileEntry.
type FileEntry struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	Size         int64  `json:"size,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

// UnmarshalJSON accepts either a string or an object.
func (f *FileEntry) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return err
		}
		*f = FileEntry{Name: name}
		return nil
	}

	type plain FileEntry
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*f = FileEntry(p)
	if f.Name == "" {
		f.Name = f.ID
	}
	return nil
}

// UploadResult is the backend's answer to a file upload.
type UploadResult struct {
	Message  string    `json:"message"`
	FileInfo FileEntry `json:"file_info"`
}

// RefactorSuggestion is one refactoring hint for a line of code.
type RefactorSuggestion struct {
	Line       int    `json:"line"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
}

// AnalysisItem is one finding of a project analysis.
type AnalysisItem struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Line    int    `json:"line"`
}

// ProjectAnalysis maps file paths to their findings.
type ProjectAnalysis map[string][]AnalysisItem

// Files returns the analysed file paths, sorted.
func (p ProjectAnalysis) Files() []string {
	files := make([]string, 0, len(p))
	for file := range p {
		files = append(files, file)
	}
	sort.Strings(files)
	return files
}

// Count returns the total number of findings.
func (p ProjectAnalysis) Count() int {
	n := 0
	for _, items := range p {
		n += len(items)
	}
	return n
}

// messageResponse is the common {"message": ...} answer.
type messageResponse struct {
	Message string `json:"message"`
}

// decodeSuggestions accepts a bare array or an object with a suggestions
// field.
func decodeSuggestions(raw json.RawMessage) ([]RefactorSuggestion, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []RefactorSuggestion{}, nil
	}

	var suggestions []RefactorSuggestion
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &suggestions); err != nil {
			return nil, fmt.Errorf("failed to decode suggestions: %w", err)
		}
	} else {
		var wrapped struct {
			Suggestions []RefactorSuggestion `json:"suggestions"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode suggestions: %w", err)
		}
		suggestions = wrapped.Suggestions
	}
	if suggestions == nil {
		suggestions = []RefactorSuggestion{}
	}
	return suggestions, nil
}

// decodeAnalysis accepts {"project_analysis": {...}} or the bare map.
func decodeAnalysis(raw json.RawMessage) (ProjectAnalysis, error) {
	var wrapped struct {
		ProjectAnalysis ProjectAnalysis `json:"project_analysis"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.ProjectAnalysis != nil {
		return wrapped.ProjectAnalysis, nil
	}

	var analysis ProjectAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, fmt.Errorf("failed to decode project analysis: %w", err)
	}
	if analysis == nil {
		analysis = ProjectAnalysis{}
	}
	return analysis, nil
}
