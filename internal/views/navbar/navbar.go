// Package navbar is the navigation bar view: the section links and the
// user menu that follows the session store.
package navbar

import (
	"fmt"
	"sync"

	"github.com/brianly1003/aidev/internal/session"
	"github.com/brianly1003/aidev/internal/views"
)

// LoginLabel is shown in place of the greeting when nobody is logged in.
const LoginLabel = "Login"

// Link is one navigation entry.
type Link struct {
	Title string
	Path  string
}

// Links are the application sections in display order.
var Links = []Link{
	{Title: "Home", Path: "/"},
	{Title: "Files", Path: "/files"},
	{Title: "Code Editor", Path: "/editor"},
	{Title: "Git Manager", Path: "/git"},
	{Title: "Project Analyzer", Path: "/analyze"},
}

// Sessions is the part of the session store the navbar follows.
type Sessions interface {
	Current() (session.Session, bool)
	Logout()
	OnChange(fn session.Listener) func()
}

// View mirrors the session store's user.
type View struct {
	sessions  Sessions
	observers views.Observers
	stop      func()

	mu       sync.Mutex
	username string
	closed   bool
}

// New creates a navbar that tracks sessions until Close.
func New(sessions Sessions) *View {
	v := &View{sessions: sessions}
	v.stop = sessions.OnChange(func(state session.State, current session.Session) {
		if state == session.StateLoggingIn {
			return
		}
		v.set(current.Username)
	})
	if current, ok := sessions.Current(); ok {
		v.username = current.Username
	}
	return v
}

// OnUpdate registers fn to run whenever the user changes.
func (v *View) OnUpdate(fn func()) func() {
	return v.observers.Add(fn)
}

// Username returns the logged-in user, or "".
func (v *View) Username() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.username
}

// LoggedIn reports whether a user is shown.
func (v *View) LoggedIn() bool {
	return v.Username() != ""
}

// Greeting returns "Welcome, <user>!" or LoginLabel.
func (v *View) Greeting() string {
	if user := v.Username(); user != "" {
		return fmt.Sprintf("Welcome, %s!", user)
	}
	return LoginLabel
}

// Logout ends the session. The navbar updates through the store.
func (v *View) Logout() {
	v.sessions.Logout()
}

func (v *View) set(username string) {
	v.mu.Lock()
	if v.closed || v.username == username {
		v.mu.Unlock()
		return
	}
	v.username = username
	v.mu.Unlock()
	v.observers.Notify()
}

// Close stops following the session store.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.mu.Unlock()
	v.stop()
}
