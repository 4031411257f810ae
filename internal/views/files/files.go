// Package files is the file manager view: the remote file listing and a
// preview of the selected file.
package files

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/brianly1003/aidev/internal/api"
	"github.com/brianly1003/aidev/internal/domain"
	"github.com/brianly1003/aidev/internal/domain/events"
	"github.com/brianly1003/aidev/internal/views"
)

// Backend is the part of the API client the file manager uses.
type Backend interface {
	ListFiles(ctx context.Context) ([]api.FileEntry, error)
	UploadFile(ctx context.Context, name string, r io.Reader) (api.UploadResult, error)
	DeleteFile(ctx context.Context, name string) (string, error)
	GetFileContent(ctx context.Context, name string) (string, error)
}

// View is the file manager view model. It is safe for concurrent use.
type View struct {
	backend   Backend
	life      *views.Lifecycle
	observers views.Observers

	mu       sync.Mutex
	files    []api.FileEntry
	selected string
	content  string
	status   string
}

// New creates an empty file manager view. Call Refresh to load the list.
func New(backend Backend) *View {
	return &View{
		backend: backend,
		life:    views.NewLifecycle(),
	}
}

// OnUpdate registers fn to run after every state change.
func (v *View) OnUpdate(fn func()) func() {
	return v.observers.Add(fn)
}

// Files returns a copy of the current listing.
func (v *View) Files() []api.FileEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]api.FileEntry, len(v.files))
	copy(out, v.files)
	return out
}

// Selected returns the previewed file and its content. ok is false when
// nothing is selected.
func (v *View) Selected() (name, content string, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selected, v.content, v.selected != ""
}

// Status returns the last user-visible message.
func (v *View) Status() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Refresh reloads the file listing.
func (v *View) Refresh(ctx context.Context) error {
	if v.life.Closed() {
		return domain.ErrAlreadyClosed
	}
	ctx, cancel := v.life.Context(ctx)
	defer cancel()

	list, err := v.backend.ListFiles(ctx)
	if err != nil {
		return v.fail("Error fetching files", err)
	}
	v.apply(func() { v.files = list })
	return nil
}

// Upload sends r as a file named name and reloads the listing.
func (v *View) Upload(ctx context.Context, name string, r io.Reader) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.NewValidationError("name", "cannot be empty")
	}
	if v.life.Closed() {
		return domain.ErrAlreadyClosed
	}
	reqCtx, cancel := v.life.Context(ctx)
	defer cancel()

	result, err := v.backend.UploadFile(reqCtx, name, r)
	if err != nil {
		return v.fail("Error uploading file", err)
	}
	v.apply(func() { v.status = result.Message })
	return v.Refresh(ctx)
}

// Delete removes name and reloads the listing. Deleting the selected file
// clears the preview.
func (v *View) Delete(ctx context.Context, name string) error {
	if name == "" {
		return domain.NewValidationError("name", "cannot be empty")
	}
	if v.life.Closed() {
		return domain.ErrAlreadyClosed
	}
	reqCtx, cancel := v.life.Context(ctx)
	defer cancel()

	message, err := v.backend.DeleteFile(reqCtx, name)
	if err != nil {
		return v.fail("Error deleting file", err)
	}
	v.apply(func() {
		if v.selected == name {
			v.selected = ""
			v.content = ""
		}
		v.status = message
	})
	return v.Refresh(ctx)
}

// Select fetches name's content and makes it the previewed file. On
// failure the previous selection is kept.
func (v *View) Select(ctx context.Context, name string) error {
	if name == "" {
		return domain.NewValidationError("name", "cannot be empty")
	}
	if v.life.Closed() {
		return domain.ErrAlreadyClosed
	}
	ctx, cancel := v.life.Context(ctx)
	defer cancel()

	content, err := v.backend.GetFileContent(ctx, name)
	if err != nil {
		return v.fail("Error fetching file content", err)
	}
	v.apply(func() {
		v.selected = name
		v.content = content
		v.status = ""
	})
	return nil
}

// ApplyUpdate reacts to a file_updated event from the realtime channel.
// A deleted selected file clears the preview, a changed one is fetched
// again, and the listing is reloaded in both cases.
func (v *View) ApplyUpdate(ctx context.Context, update events.FileUpdatedPayload) error {
	if v.life.Closed() {
		return domain.ErrAlreadyClosed
	}

	v.mu.Lock()
	selected := update.Name != "" && v.selected == update.Name
	v.mu.Unlock()

	if selected {
		if update.Change == events.FileChangeDeleted {
			v.apply(func() {
				if v.selected == update.Name {
					v.selected = ""
					v.content = ""
				}
			})
		} else if err := v.Select(ctx, update.Name); err != nil {
			return err
		}
	}
	return v.Refresh(ctx)
}

func (v *View) fail(what string, err error) error {
	if v.life.Closed() {
		return err
	}
	log.Debug().Err(err).Msg(strings.ToLower(what))
	v.apply(func() { v.status = fmt.Sprintf("%s: %v", what, err) })
	return err
}

func (v *View) apply(mutate func()) {
	v.mu.Lock()
	if v.life.Closed() {
		v.mu.Unlock()
		return
	}
	mutate()
	v.mu.Unlock()
	v.observers.Notify()
}

// Close discards any result still in flight.
func (v *View) Close() {
	v.life.Close()
}
