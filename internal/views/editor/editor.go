// Package editor is the code editor view: the code buffer, its language,
// debounced refactoring suggestions, completion and debug assistance.
package editor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brianly1003/aidev/internal/api"
	"github.com/brianly1003/aidev/internal/config"
	"github.com/brianly1003/aidev/internal/debounce"
	"github.com/brianly1003/aidev/internal/domain"
	"github.com/brianly1003/aidev/internal/views"
)

const (
	// DefaultLanguage is the language of a new editor.
	DefaultLanguage = config.DefaultEditorLanguage

	// DefaultDebounce is the quiet period before suggestions are requested.
	DefaultDebounce = time.Duration(config.DefaultEditorDebounceMS) * time.Millisecond

	// DebugErrorReply replaces the assistance text when the request fails.
	DebugErrorReply = "An error occurred while fetching debug assistance."

	suggestKey = "suggest"
)

// Backend is the part of the API client the editor uses.
type Backend interface {
	RefactorSuggestions(ctx context.Context, code, language string) ([]api.RefactorSuggestion, error)
	CompleteCode(ctx context.Context, code, language string) (string, error)
	DebugAssistance(ctx context.Context, code, errText, language string) (string, error)
}

// Options configures a View.
type Options struct {
	Debounce time.Duration
	Language string
}

// OptionsFromConfig builds Options from the editor config section.
func OptionsFromConfig(cfg config.EditorConfig) Options {
	return Options{
		Debounce: cfg.Debounce(),
		Language: cfg.Language,
	}
}

// snapshot is the code/language pair a suggestion request was made for.
type snapshot struct {
	code     string
	language string
	gen      uint64
}

// View is the editor view model. It is safe for concurrent use.
type View struct {
	backend   Backend
	life      *views.Lifecycle
	observers views.Observers
	debouncer *debounce.Debouncer[snapshot]

	mu          sync.Mutex
	code        string
	language    string
	gen         uint64
	suggestions []api.RefactorSuggestion
	assistance  string
	status      string
	cancelSugg  context.CancelFunc
}

// New creates an editor with an empty buffer.
func New(backend Backend, opts Options) *View {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}

	v := &View{
		backend:  backend,
		life:     views.NewLifecycle(),
		language: opts.Language,
	}
	v.debouncer = debounce.New(opts.Debounce, func(_ string, s snapshot) {
		_ = v.suggest(context.Background(), s)
	})
	return v
}

// OnUpdate registers fn to run after every state change.
func (v *View) OnUpdate(fn func()) func() {
	return v.observers.Add(fn)
}

// Code returns the buffer.
func (v *View) Code() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.code
}

// Language returns the buffer's language.
func (v *View) Language() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.language
}

// Suggestions returns a copy of the current refactoring suggestions.
func (v *View) Suggestions() []api.RefactorSuggestion {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]api.RefactorSuggestion, len(v.suggestions))
	copy(out, v.suggestions)
	return out
}

// Assistance returns the last debug assistance text.
func (v *View) Assistance() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.assistance
}

// Status returns the last user-visible message.
func (v *View) Status() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// SetCode replaces the buffer and schedules a suggestion request.
func (v *View) SetCode(code string) {
	v.edit(func() { v.code = code })
}

// SetLanguage changes the language and schedules a suggestion request.
func (v *View) SetLanguage(language string) {
	v.edit(func() { v.language = language })
}

func (v *View) edit(mutate func()) {
	v.mu.Lock()
	if v.life.Closed() {
		v.mu.Unlock()
		return
	}
	mutate()
	v.gen++
	s := snapshot{code: v.code, language: v.language, gen: v.gen}
	v.mu.Unlock()
	v.observers.Notify()

	v.debouncer.Trigger(suggestKey, s)
}

// RefreshSuggestions requests suggestions for the current buffer now,
// dropping any scheduled request.
func (v *View) RefreshSuggestions(ctx context.Context) error {
	if v.life.Closed() {
		return domain.ErrAlreadyClosed
	}
	v.debouncer.Cancel(suggestKey)

	v.mu.Lock()
	s := snapshot{code: v.code, language: v.language, gen: v.gen}
	v.mu.Unlock()
	return v.suggest(ctx, s)
}

// suggest requests suggestions for s. A request for an older buffer is
// cancelled when a newer one starts, and its result is dropped.
func (v *View) suggest(ctx context.Context, s snapshot) error {
	if strings.TrimSpace(s.code) == "" {
		v.apply(s.gen, func() { v.suggestions = nil })
		return nil
	}

	ctx, cancel := v.life.Context(ctx)
	defer cancel()

	v.mu.Lock()
	if v.cancelSugg != nil {
		v.cancelSugg()
	}
	v.cancelSugg = cancel
	v.mu.Unlock()

	suggestions, err := v.backend.RefactorSuggestions(ctx, s.code, s.language)
	if err != nil {
		if v.current(s.gen) {
			log.Debug().Err(err).Msg("refactoring suggestions failed")
		}
		v.apply(s.gen, func() { v.status = fmt.Sprintf("Error getting refactoring suggestions: %v", err) })
		return err
	}
	v.apply(s.gen, func() {
		v.suggestions = suggestions
		v.status = ""
	})
	return nil
}

// current reports whether gen is still the latest buffer generation.
func (v *View) current(gen uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return gen == v.gen && !v.life.Closed()
}

// apply runs mutate if the view is open and gen is still current.
func (v *View) apply(gen uint64, mutate func()) {
	v.mu.Lock()
	if v.life.Closed() || gen != v.gen {
		v.mu.Unlock()
		return
	}
	mutate()
	v.mu.Unlock()
	v.observers.Notify()
}

// Complete asks for a completion of the buffer and appends it. The
// completion is dropped if the buffer changed while it was requested.
func (v *View) Complete(ctx context.Context) error {
	if v.life.Closed() {
		return domain.ErrAlreadyClosed
	}
	v.mu.Lock()
	s := snapshot{code: v.code, language: v.language, gen: v.gen}
	v.mu.Unlock()

	reqCtx, cancel := v.life.Context(ctx)
	defer cancel()

	completion, err := v.backend.CompleteCode(reqCtx, s.code, s.language)
	if err != nil {
		v.apply(s.gen, func() { v.status = fmt.Sprintf("Error getting code completion: %v", err) })
		return err
	}
	if !v.current(s.gen) {
		return nil
	}
	v.SetCode(s.code + completion)
	return nil
}

// Debug asks for help with errText in the context of the buffer. On
// failure the assistance text becomes DebugErrorReply.
func (v *View) Debug(ctx context.Context, errText string) error {
	if v.life.Closed() {
		return domain.ErrAlreadyClosed
	}
	v.mu.Lock()
	code, language := v.code, v.language
	v.mu.Unlock()

	reqCtx, cancel := v.life.Context(ctx)
	defer cancel()

	assistance, err := v.backend.DebugAssistance(reqCtx, code, errText, language)
	if err != nil {
		log.Debug().Err(err).Msg("debug assistance failed")
		assistance = DebugErrorReply
	}

	v.mu.Lock()
	if v.life.Closed() {
		v.mu.Unlock()
		return err
	}
	v.assistance = assistance
	v.mu.Unlock()
	v.observers.Notify()
	return err
}

// Close stops pending suggestion requests and discards late results.
func (v *View) Close() {
	if !v.life.Close() {
		return
	}
	v.debouncer.Stop()
}
