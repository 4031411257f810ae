// Package analyzer is the project analyzer view.
package analyzer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/brianly1003/aidev/internal/api"
	"github.com/brianly1003/aidev/internal/domain"
	"github.com/brianly1003/aidev/internal/views"
)

// Backend is the part of the API client the analyzer uses.
type Backend interface {
	AnalyzeProject(ctx context.Context, path string) (api.ProjectAnalysis, error)
}

// View holds the last analysis of a project path.
type View struct {
	backend   Backend
	life      *views.Lifecycle
	observers views.Observers

	mu       sync.Mutex
	path     string
	analysis api.ProjectAnalysis
	running  bool
	status   string
}

// New creates an analyzer view.
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

// Path returns the path of the last analysis request.
func (v *View) Path() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.path
}

// Analysis returns a copy of the last successful analysis.
func (v *View) Analysis() api.ProjectAnalysis {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.analysis == nil {
		return nil
	}
	out := make(api.ProjectAnalysis, len(v.analysis))
	for file, items := range v.analysis {
		out[file] = append([]api.AnalysisItem(nil), items...)
	}
	return out
}

// Running reports whether an analysis is in flight.
func (v *View) Running() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.running
}

// Status returns the last user-visible message.
func (v *View) Status() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Analyze runs an analysis of path and replaces the stored result. A
// failed analysis keeps the previous result.
func (v *View) Analyze(ctx context.Context, path string) error {
	if v.life.Closed() {
		return domain.ErrAlreadyClosed
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return domain.NewValidationError("path", "cannot be empty")
	}

	v.apply(func() {
		v.path = path
		v.running = true
		v.status = ""
	})
	defer v.apply(func() { v.running = false })

	ctx, cancel := v.life.Context(ctx)
	defer cancel()

	analysis, err := v.backend.AnalyzeProject(ctx, path)
	if err != nil {
		if !v.life.Closed() {
			log.Debug().Err(err).Str("path", path).Msg("project analysis failed")
			v.apply(func() { v.status = fmt.Sprintf("Error analyzing project: %v", err) })
		}
		return err
	}
	v.apply(func() {
		v.analysis = analysis
		v.status = fmt.Sprintf("%d findings in %d files", analysis.Count(), len(analysis))
	})
	return nil
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
