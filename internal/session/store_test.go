package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/brianly1003/aidev/internal/domain"
	"github.com/brianly1003/aidev/internal/testutil"
)

func passwordAuth(users map[string]string) AuthenticatorFunc {
	return func(ctx context.Context, username, password string) (string, error) {
		if users[username] != password {
			return "", domain.NewHTTPError("POST /auth/token", 401, `{"detail":"Incorrect username or password"}`)
		}
		return "tok-" + username, nil
	}
}

func TestStore_LoginSuccess(t *testing.T) {
	storage := NewMemoryStorage()
	store := NewStore(storage, passwordAuth(map[string]string{"alice": "wonderland"}))

	var states []State
	store.OnChange(func(state State, _ Session) { states = append(states, state) })

	if err := store.Login(context.Background(), "alice", "wonderland"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if store.State() != StateLoggedIn {
		t.Errorf("State() = %v, want logged_in", store.State())
	}
	current, ok := store.Current()
	if !ok || current.Username != "alice" || current.Token != "tok-alice" {
		t.Errorf("Current() = %+v, %v", current, ok)
	}
	if store.Token() != "tok-alice" {
		t.Errorf("Token() = %q", store.Token())
	}

	if token, ok, _ := storage.Get(KeyToken); !ok || token != "tok-alice" {
		t.Errorf("stored token = %q, %v", token, ok)
	}
	if user, ok, _ := storage.Get(KeyUser); !ok || user != `{"username":"alice"}` {
		t.Errorf("stored user = %q, %v", user, ok)
	}

	want := []State{StateLoggingIn, StateLoggedIn}
	if len(states) != len(want) || states[0] != want[0] || states[1] != want[1] {
		t.Errorf("transitions = %v, want %v", states, want)
	}
}

func TestStore_LoginFailure(t *testing.T) {
	storage := NewMemoryStorage()
	store := NewStore(storage, passwordAuth(map[string]string{"alice": "wonderland"}))

	err := store.Login(context.Background(), "alice", "wrong")
	if err == nil {
		t.Fatal("Login() should fail with a wrong password")
	}
	if !domain.IsAuthError(err) {
		t.Errorf("Login() error = %v, want auth error", err)
	}
	if store.State() != StateLoggedOut {
		t.Errorf("State() = %v, want logged_out", store.State())
	}
	if store.Token() != "" {
		t.Errorf("Token() = %q, want empty", store.Token())
	}
	if _, ok, _ := storage.Get(KeyToken); ok {
		t.Error("failed login must not persist a token")
	}
}

func TestStore_LoginValidation(t *testing.T) {
	called := false
	store := NewStore(nil, AuthenticatorFunc(func(ctx context.Context, u, p string) (string, error) {
		called = true
		return "x", nil
	}))

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"empty username", "", "pw"},
		{"blank username", "   ", "pw"},
		{"empty password", "alice", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Login(context.Background(), tt.username, tt.password)
			if !domain.IsValidationError(err) {
				t.Errorf("Login() error = %v, want validation error", err)
			}
		})
	}
	if called {
		t.Error("authenticator must not be called for invalid input")
	}
}

func TestStore_EmptyTokenIsFailure(t *testing.T) {
	store := NewStore(nil, AuthenticatorFunc(func(ctx context.Context, u, p string) (string, error) {
		return "", nil
	}))
	if err := store.Login(context.Background(), "alice", "pw"); err == nil {
		t.Fatal("Login() should fail when no token is issued")
	}
	if store.State() != StateLoggedOut {
		t.Errorf("State() = %v, want logged_out", store.State())
	}
}

func TestStore_ConcurrentLoginRejected(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	store := NewStore(nil, AuthenticatorFunc(func(ctx context.Context, u, p string) (string, error) {
		close(entered)
		<-release
		return "tok", nil
	}))

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		firstErr = store.Login(context.Background(), "alice", "pw")
	}()

	<-entered
	if store.State() != StateLoggingIn {
		t.Errorf("State() = %v, want logging_in", store.State())
	}
	if err := store.Login(context.Background(), "bob", "pw"); !errors.Is(err, domain.ErrLoginInProgress) {
		t.Errorf("second Login() error = %v, want ErrLoginInProgress", err)
	}

	close(release)
	wg.Wait()
	if firstErr != nil {
		t.Fatalf("first Login() error = %v", firstErr)
	}
	if store.Username() != "alice" {
		t.Errorf("Username() = %q, want alice", store.Username())
	}
}

func TestStore_LoginInterrupted(t *testing.T) {
	rejected := domain.NewHTTPError("POST /auth/token", 401, `{"detail":"Incorrect username or password"}`)

	tests := []struct {
		name          string
		startAsAlice  bool
		logoutDuring  bool
		authErr       error
		wantErr       error
		wantState     State
		wantUser      string
		wantStoredTok string
	}{
		{
			name:         "logout during login wins",
			logoutDuring: true,
			wantErr:      domain.ErrLoginCancelled,
			wantState:    StateLoggedOut,
		},
		{
			name:         "logout during re-login wins",
			startAsAlice: true,
			logoutDuring: true,
			wantErr:      domain.ErrLoginCancelled,
			wantState:    StateLoggedOut,
		},
		{
			name:          "failed re-login keeps previous session",
			startAsAlice:  true,
			authErr:       rejected,
			wantErr:       domain.ErrUnauthorized,
			wantState:     StateLoggedIn,
			wantUser:      "alice",
			wantStoredTok: "tok-alice",
		},
		{
			name:      "failed login stays logged out",
			authErr:   rejected,
			wantErr:   domain.ErrUnauthorized,
			wantState: StateLoggedOut,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entered := make(chan struct{})
			release := make(chan struct{})
			storage := NewMemoryStorage()
			store := NewStore(storage, AuthenticatorFunc(func(ctx context.Context, u, p string) (string, error) {
				if u == "alice" {
					return "tok-alice", nil
				}
				close(entered)
				<-release
				if tt.authErr != nil {
					return "", tt.authErr
				}
				return "tok-" + u, nil
			}))

			if tt.startAsAlice {
				if err := store.Login(context.Background(), "alice", "wonderland"); err != nil {
					t.Fatalf("Login(alice) error = %v", err)
				}
			}

			errc := make(chan error, 1)
			go func() { errc <- store.Login(context.Background(), "bob", "pw") }()

			<-entered
			if tt.logoutDuring {
				store.Logout()
			}
			close(release)

			err := <-errc
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Login(bob) error = %v, want %v", err, tt.wantErr)
			}
			if store.State() != tt.wantState {
				t.Errorf("State() = %v, want %v", store.State(), tt.wantState)
			}
			if store.Username() != tt.wantUser {
				t.Errorf("Username() = %q, want %q", store.Username(), tt.wantUser)
			}

			token, ok, _ := storage.Get(KeyToken)
			if token != tt.wantStoredTok || ok != (tt.wantStoredTok != "") {
				t.Errorf("stored token = %q (%v), want %q", token, ok, tt.wantStoredTok)
			}

			restarted := NewStore(storage, nil)
			if err := restarted.Init(context.Background()); err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			if restarted.Username() != tt.wantUser {
				t.Errorf("after restart Username() = %q, want %q", restarted.Username(), tt.wantUser)
			}
		})
	}
}

func TestStore_Logout(t *testing.T) {
	storage := NewMemoryStorage()
	store := NewStore(storage, passwordAuth(map[string]string{"alice": "wonderland"}))
	if err := store.Login(context.Background(), "alice", "wonderland"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	store.Logout()

	if store.State() != StateLoggedOut {
		t.Errorf("State() = %v, want logged_out", store.State())
	}
	if _, ok := store.Current(); ok {
		t.Error("Current() should report no session")
	}
	for _, key := range []string{KeyUser, KeyToken} {
		if _, ok, _ := storage.Get(key); ok {
			t.Errorf("%s still stored after logout", key)
		}
	}

	// Logging out twice is harmless.
	store.Logout()
	if store.State() != StateLoggedOut {
		t.Errorf("State() = %v after second logout", store.State())
	}
}

func TestStore_InitRehydrates(t *testing.T) {
	storage := NewMemoryStorage()
	_ = storage.Set(KeyUser, `{"username":"alice"}`)
	_ = storage.Set(KeyToken, "tok-alice")

	store := NewStore(storage, nil)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	current, ok := store.Current()
	if !ok || current.Username != "alice" || current.Token != "tok-alice" {
		t.Errorf("Current() = %+v, %v", current, ok)
	}
}

func TestStore_InitIgnoresIncompleteSession(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
	}{
		{"nothing saved", nil},
		{"token only", map[string]string{KeyToken: "tok"}},
		{"user only", map[string]string{KeyUser: `{"username":"alice"}`}},
		{"corrupt user", map[string]string{KeyUser: `{`, KeyToken: "tok"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := NewMemoryStorage()
			for k, v := range tt.values {
				_ = storage.Set(k, v)
			}
			store := NewStore(storage, nil)
			if err := store.Init(context.Background()); err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			if store.State() != StateLoggedOut {
				t.Errorf("State() = %v, want logged_out", store.State())
			}
		})
	}
}

func TestStore_CurrentIsACopy(t *testing.T) {
	store := NewStore(nil, passwordAuth(map[string]string{"alice": "wonderland"}))
	_ = store.Login(context.Background(), "alice", "wonderland")

	current, _ := store.Current()
	current.Token = "tampered"

	if store.Token() != "tok-alice" {
		t.Errorf("Token() = %q, store state was mutated through a copy", store.Token())
	}
}

func TestStore_OnChangeUnsubscribe(t *testing.T) {
	store := NewStore(nil, passwordAuth(map[string]string{"alice": "wonderland"}))

	calls := 0
	unsubscribe := store.OnChange(func(State, Session) { calls++ })
	unsubscribe()
	unsubscribe()

	_ = store.Login(context.Background(), "alice", "wonderland")
	if calls != 0 {
		t.Errorf("listener called %d times after unsubscribe", calls)
	}
}

func TestStore_DisposeRejectsLogin(t *testing.T) {
	store := NewStore(nil, passwordAuth(map[string]string{"alice": "wonderland"}))
	if err := store.Dispose(); err != nil {
		t.Fatalf("Dispose() error = %v", err)
	}
	if err := store.Dispose(); err != nil {
		t.Fatalf("second Dispose() error = %v", err)
	}
	if err := store.Login(context.Background(), "alice", "wonderland"); !errors.Is(err, domain.ErrAlreadyClosed) {
		t.Errorf("Login() after Dispose error = %v, want ErrAlreadyClosed", err)
	}
}

func TestStore_WatchFollowsOtherProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	auth := passwordAuth(map[string]string{"alice": "wonderland"})

	watchedStorage := NewFileStorage(path)
	watchedStorage.watchDelay = 20 * time.Millisecond
	watched := NewStore(watchedStorage, auth)
	defer func() { _ = watched.Dispose() }()

	if err := watched.Watch(context.Background()); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	other := NewStore(NewFileStorage(path), auth)
	if err := other.Login(context.Background(), "alice", "wonderland"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	testutil.Eventually(t, 2*time.Second, func() bool {
		return watched.Token() == "tok-alice"
	}, "watched store picked up login")

	other.Logout()

	testutil.Eventually(t, 2*time.Second, func() bool {
		return watched.State() == StateLoggedOut
	}, "watched store picked up logout")
}

func TestStore_WatchMemoryStorageIsNoop(t *testing.T) {
	store := NewStore(NewMemoryStorage(), nil)
	if err := store.Watch(context.Background()); err != nil {
		t.Errorf("Watch() error = %v", err)
	}
}
