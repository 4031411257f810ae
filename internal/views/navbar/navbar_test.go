package navbar

import (
	"context"
	"testing"

	"github.com/brianly1003/aidev/internal/session"
)

func newStore(t *testing.T) *session.Store {
	t.Helper()
	store := session.NewStore(session.NewMemoryStorage(), session.AuthenticatorFunc(
		func(ctx context.Context, username, password string) (string, error) {
			return "tok-" + username, nil
		}))
	t.Cleanup(func() { _ = store.Dispose() })
	return store
}

func TestGreetingFollowsSession(t *testing.T) {
	store := newStore(t)
	v := New(store)
	defer v.Close()

	if v.Greeting() != LoginLabel || v.LoggedIn() {
		t.Errorf("Greeting() = %q before login", v.Greeting())
	}

	updates := 0
	v.OnUpdate(func() { updates++ })

	if err := store.Login(context.Background(), "alice", "wonderland"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if v.Greeting() != "Welcome, alice!" {
		t.Errorf("Greeting() = %q", v.Greeting())
	}

	v.Logout()
	if v.Greeting() != LoginLabel {
		t.Errorf("Greeting() = %q after logout", v.Greeting())
	}
	if store.State() != session.StateLoggedOut {
		t.Errorf("store state = %v", store.State())
	}
	if updates != 2 {
		t.Errorf("updates = %d, want 2", updates)
	}
}

func TestNewPicksUpExistingSession(t *testing.T) {
	store := newStore(t)
	if err := store.Login(context.Background(), "bob", "pw"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	v := New(store)
	defer v.Close()
	if v.Username() != "bob" {
		t.Errorf("Username() = %q", v.Username())
	}
}

func TestCloseStopsFollowing(t *testing.T) {
	store := newStore(t)
	v := New(store)
	v.Close()
	v.Close()

	if err := store.Login(context.Background(), "alice", "wonderland"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if v.LoggedIn() {
		t.Error("closed navbar should not follow the store")
	}
}

func TestLinks(t *testing.T) {
	want := []string{"/", "/files", "/editor", "/git", "/analyze"}
	if len(Links) != len(want) {
		t.Fatalf("len(Links) = %d", len(Links))
	}
	for i, l := range Links {
		if l.Path != want[i] {
			t.Errorf("Links[%d].Path = %q, want %q", i, l.Path, want[i])
		}
	}
}
