// Package git is the git manager view: branches, the current branch,
// commit and branch drafts, and the AI review of pending changes.
package git

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/brianly1003/aidev/internal/domain"
	"github.com/brianly1003/aidev/internal/domain/events"
	"github.com/brianly1003/aidev/internal/views"
)

// Backend is the part of the API client the git manager uses.
type Backend interface {
	Commit(ctx context.Context, message string) (string, error)
	CreateBranch(ctx context.Context, name string) (string, error)
	CurrentBranch(ctx context.Context) (string, error)
	ListBranches(ctx context.Context) ([]string, error)
	ReviewChanges(ctx context.Context) (string, error)
}

// State is the repository state as last reported by the backend.
type State struct {
	CurrentBranch string
	Branches      []string // sorted, no duplicates
}

// View is the git manager view model. It is safe for concurrent use.
type View struct {
	backend   Backend
	life      *views.Lifecycle
	observers views.Observers

	mu            sync.Mutex
	state         State
	commitMessage string
	branchName    string
	review        string
	status        string
}

// New creates a git manager view. Call Refresh to load the state.
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

// State returns a copy of the repository state.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return State{
		CurrentBranch: v.state.CurrentBranch,
		Branches:      append([]string(nil), v.state.Branches...),
	}
}

// CommitMessage returns the commit message draft.
func (v *View) CommitMessage() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.commitMessage
}

// BranchName returns the new branch name draft.
func (v *View) BranchName() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.branchName
}

// Review returns the last AI review.
func (v *View) Review() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.review
}

// Status returns the last user-visible message.
func (v *View) Status() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Refresh reloads the branch list and the current branch. Both requests
// are made even if one fails.
func (v *View) Refresh(ctx context.Context) error {
	if v.life.Closed() {
		return domain.ErrAlreadyClosed
	}
	ctx, cancel := v.life.Context(ctx)
	defer cancel()

	var errs []error

	branches, err := v.backend.ListBranches(ctx)
	if err != nil {
		errs = append(errs, v.fail("Error fetching branches", err))
	} else {
		v.apply(func() { v.state.Branches = uniqueSorted(branches) })
	}

	current, err := v.backend.CurrentBranch(ctx)
	if err != nil {
		errs = append(errs, v.fail("Error fetching current branch", err))
	} else {
		v.apply(func() { v.state.CurrentBranch = current })
	}

	return errors.Join(errs...)
}

// Commit commits with message. The message is kept as a draft until the
// commit succeeds.
func (v *View) Commit(ctx context.Context, message string) error {
	if v.life.Closed() {
		return domain.ErrAlreadyClosed
	}
	v.apply(func() { v.commitMessage = message })
	if strings.TrimSpace(message) == "" {
		return domain.NewValidationError("message", "cannot be empty")
	}

	reqCtx, cancel := v.life.Context(ctx)
	defer cancel()

	result, err := v.backend.Commit(reqCtx, message)
	if err != nil {
		return v.fail("Error committing changes", err)
	}
	if result == "" {
		result = "Changes committed successfully"
	}
	v.apply(func() {
		if v.commitMessage == message {
			v.commitMessage = ""
		}
		v.status = result
	})
	return nil
}

// CreateBranch creates and checks out name, then reloads the state.
func (v *View) CreateBranch(ctx context.Context, name string) error {
	if v.life.Closed() {
		return domain.ErrAlreadyClosed
	}
	v.apply(func() { v.branchName = name })
	if strings.TrimSpace(name) == "" {
		return domain.NewValidationError("name", "cannot be empty")
	}

	reqCtx, cancel := v.life.Context(ctx)
	defer cancel()

	result, err := v.backend.CreateBranch(reqCtx, name)
	if err != nil {
		return v.fail("Error creating branch", err)
	}
	v.apply(func() {
		if v.branchName == name {
			v.branchName = ""
		}
		v.status = result
	})
	return v.Refresh(ctx)
}

// RequestReview asks for an AI review of the pending changes.
func (v *View) RequestReview(ctx context.Context) error {
	if v.life.Closed() {
		return domain.ErrAlreadyClosed
	}
	ctx, cancel := v.life.Context(ctx)
	defer cancel()

	review, err := v.backend.ReviewChanges(ctx)
	if err != nil {
		return v.fail("Error reviewing changes", err)
	}
	v.apply(func() { v.review = review })
	return nil
}

// ApplyUpdate reacts to a git_update event from the realtime channel: the
// event's message becomes the status and the branches are reloaded.
func (v *View) ApplyUpdate(ctx context.Context, update events.GitUpdatePayload) error {
	if v.life.Closed() {
		return domain.ErrAlreadyClosed
	}
	if update.Message != "" {
		v.apply(func() { v.status = update.Message })
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

func uniqueSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
