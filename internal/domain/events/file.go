package events

// FileChangeType represents the type of file change.
type FileChangeType string

const (
	FileChangeCreated  FileChangeType = "created"
	FileChangeModified FileChangeType = "modified"
	FileChangeDeleted  FileChangeType = "deleted"
)

// FileUpdatedPayload is the payload for file_updated events.
type FileUpdatedPayload struct {
	Name   string         `json:"name"`
	Change FileChangeType `json:"change,omitempty"`
	Size   int64          `json:"size,omitempty"`
}

// NewFileUpdatedEvent creates a new file_updated event.
func NewFileUpdatedEvent(name string, change FileChangeType, size int64) *BaseEvent {
	return NewEvent(EventTypeFileUpdated, FileUpdatedPayload{
		Name:   name,
		Change: change,
		Size:   size,
	})
}
