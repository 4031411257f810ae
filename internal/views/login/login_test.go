package login

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/brianly1003/aidev/internal/api"
	"github.com/brianly1003/aidev/internal/domain"
	"github.com/brianly1003/aidev/internal/session"
	"github.com/brianly1003/aidev/internal/testutil"
)

func newStore(t *testing.T, fb *testutil.FakeBackend) *session.Store {
	t.Helper()
	var client *api.Client
	store := session.NewStore(session.NewMemoryStorage(), session.AuthenticatorFunc(
		func(ctx context.Context, username, password string) (string, error) {
			tok, err := client.Login(ctx, username, password)
			return tok.AccessToken, err
		}))
	client = api.New(api.Options{BaseURL: fb.URL()}, store)
	t.Cleanup(func() { _ = store.Dispose() })
	return store
}

func TestSubmitSuccess(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	store := newStore(t, fb)
	v := New(store, "/files")
	defer v.Close()

	if err := v.Submit(context.Background(), "alice", "wonderland"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !v.Done() || v.Error() != "" {
		t.Errorf("Done() = %v, Error() = %q", v.Done(), v.Error())
	}
	if store.State() != session.StateLoggedIn || store.Username() != "alice" {
		t.Errorf("store state = %v, user %q", store.State(), store.Username())
	}
	if v.Destination() != "/files" {
		t.Errorf("Destination() = %q", v.Destination())
	}
}

func TestSubmitRejected(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	store := newStore(t, fb)
	v := New(store, "")
	defer v.Close()

	err := v.Submit(context.Background(), "alice", "wrong")
	if !domain.IsAuthError(err) {
		t.Fatalf("Submit() error = %v, want auth error", err)
	}
	if v.Error() != ErrMsgRejected {
		t.Errorf("Error() = %q", v.Error())
	}
	if v.Done() || v.Submitting() {
		t.Error("form should be idle and not done")
	}
	if v.Destination() != DefaultDestination {
		t.Errorf("Destination() = %q", v.Destination())
	}
}

func TestSubmitServerError(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.FailNext(http.MethodPost, "/auth/token", http.StatusInternalServerError)
	v := New(newStore(t, fb), "")
	defer v.Close()

	if err := v.Submit(context.Background(), "alice", "wonderland"); err == nil {
		t.Fatal("Submit() should fail")
	}
	if v.Error() != ErrMsgFailed {
		t.Errorf("Error() = %q", v.Error())
	}
}

func TestSubmitClearsPreviousError(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	v := New(newStore(t, fb), "")
	defer v.Close()

	_ = v.Submit(context.Background(), "alice", "wrong")
	if v.Error() == "" {
		t.Fatal("expected an error message")
	}

	var seen []string
	v.OnUpdate(func() { seen = append(seen, v.Error()) })
	if err := v.Submit(context.Background(), "alice", "wonderland"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(seen) == 0 || seen[0] != "" {
		t.Errorf("first update should clear the error, got %q", seen)
	}
}

func TestSubmitValidation(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	v := New(newStore(t, fb), "")
	defer v.Close()

	if err := v.Submit(context.Background(), " ", "x"); !domain.IsValidationError(err) {
		t.Errorf("Submit() error = %v", err)
	}
	if v.Error() != ErrMsgRequired {
		t.Errorf("Error() = %q", v.Error())
	}
	if len(fb.Requests()) != 0 {
		t.Error("no request expected")
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("login failed: %w", domain.NewHTTPError("POST /auth/token", 401, "")), ErrMsgRejected},
		{domain.NewNetworkError("POST /auth/token", errors.New("refused")), ErrMsgFailed},
		{domain.NewValidationError("username", "cannot be empty"), ErrMsgRequired},
		{domain.ErrLoginInProgress, domain.ErrLoginInProgress.Error()},
		{fmt.Errorf("submit: %w", domain.ErrLoginCancelled), domain.ErrLoginCancelled.Error()},
	}
	for _, tt := range tests {
		if got := Message(tt.err); got != tt.want {
			t.Errorf("Message(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestSubmitAfterClose(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	v := New(newStore(t, fb), "")
	v.Close()

	if err := v.Submit(context.Background(), "alice", "wonderland"); !errors.Is(err, domain.ErrAlreadyClosed) {
		t.Errorf("Submit() error = %v", err)
	}
}
