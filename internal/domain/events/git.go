package events

// GitUpdatePayload is the payload for git_update events.
type GitUpdatePayload struct {
	Operation string `json:"operation,omitempty"` // commit, create-branch, checkout
	Branch    string `json:"branch,omitempty"`
	Message   string `json:"message,omitempty"`
}

// NewGitUpdateEvent creates a new git_update event.
func NewGitUpdateEvent(operation, branch, message string) *BaseEvent {
	return NewEvent(EventTypeGitUpdate, GitUpdatePayload{
		Operation: operation,
		Branch:    branch,
		Message:   message,
	})
}
