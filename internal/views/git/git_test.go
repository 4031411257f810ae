package git

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/brianly1003/aidev/internal/api"
	"github.com/brianly1003/aidev/internal/domain"
	"github.com/brianly1003/aidev/internal/domain/events"
	"github.com/brianly1003/aidev/internal/testutil"
)

func newView(t *testing.T) (*View, *testutil.FakeBackend) {
	t.Helper()
	fb := testutil.NewFakeBackend(t)
	client := api.New(api.Options{BaseURL: fb.URL()}, api.StaticToken(fb.IssueToken("alice")))
	v := New(client)
	t.Cleanup(v.Close)
	return v, fb
}

func TestRefresh(t *testing.T) {
	v, _ := newView(t)

	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	state := v.State()
	if state.CurrentBranch != "main" || strings.Join(state.Branches, ",") != "main" {
		t.Errorf("State() = %+v", state)
	}
}

func TestRefreshPartialFailure(t *testing.T) {
	v, fb := newView(t)
	fb.FailNext(http.MethodGet, "/git/branches", http.StatusInternalServerError)

	err := v.Refresh(context.Background())
	if domain.StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("Refresh() error = %v", err)
	}
	if v.State().CurrentBranch != "main" {
		t.Error("current branch should still load when listing fails")
	}
	if !strings.HasPrefix(v.Status(), "Error fetching branches") {
		t.Errorf("Status() = %q", v.Status())
	}
}

func TestCommitClearsMessage(t *testing.T) {
	v, fb := newView(t)

	if err := v.Commit(context.Background(), "fix bug"); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if v.CommitMessage() != "" {
		t.Errorf("CommitMessage() = %q, want cleared", v.CommitMessage())
	}
	if v.Status() != "Committed: fix bug" {
		t.Errorf("Status() = %q", v.Status())
	}
	if reqs := fb.RequestsTo(http.MethodPost, "/git/commit"); len(reqs) != 1 || reqs[0].Body != `{"message":"fix bug"}` {
		t.Errorf("requests = %+v", reqs)
	}
}

func TestCommitFailureKeepsMessage(t *testing.T) {
	v, fb := newView(t)
	fb.FailNext(http.MethodPost, "/git/commit", http.StatusInternalServerError)

	if err := v.Commit(context.Background(), "fix bug"); err == nil {
		t.Fatal("Commit() should fail")
	}
	if v.CommitMessage() != "fix bug" {
		t.Errorf("CommitMessage() = %q, draft lost on failure", v.CommitMessage())
	}
}

func TestCommitEmptyMessage(t *testing.T) {
	v, fb := newView(t)

	if err := v.Commit(context.Background(), "  "); !domain.IsValidationError(err) {
		t.Errorf("Commit() error = %v, want validation error", err)
	}
	if len(fb.Requests()) != 0 {
		t.Error("empty commit message must not be sent")
	}
}

func TestCreateBranchRefreshes(t *testing.T) {
	v, _ := newView(t)

	if err := v.CreateBranch(context.Background(), "feature/x"); err != nil {
		t.Fatalf("CreateBranch() error = %v", err)
	}
	state := v.State()
	if state.CurrentBranch != "feature/x" {
		t.Errorf("CurrentBranch = %q", state.CurrentBranch)
	}
	if strings.Join(state.Branches, ",") != "feature/x,main" {
		t.Errorf("Branches = %v", state.Branches)
	}
	if v.BranchName() != "" {
		t.Errorf("BranchName() = %q, want cleared", v.BranchName())
	}
}

func TestRequestReview(t *testing.T) {
	v, _ := newView(t)

	if err := v.RequestReview(context.Background()); err != nil {
		t.Fatalf("RequestReview() error = %v", err)
	}
	if v.Review() != "Looks good." {
		t.Errorf("Review() = %q", v.Review())
	}
}

func TestApplyUpdate(t *testing.T) {
	v, fb := newView(t)
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	// Another client creates a branch; the event carries the result.
	client := api.New(api.Options{BaseURL: fb.URL()}, api.StaticToken(fb.IssueToken("bob")))
	if _, err := client.CreateBranch(context.Background(), "feature/y"); err != nil {
		t.Fatalf("CreateBranch() error = %v", err)
	}

	update := events.GitUpdatePayload{Operation: "create-branch", Branch: "feature/y", Message: "Created branch feature/y"}
	if err := v.ApplyUpdate(context.Background(), update); err != nil {
		t.Fatalf("ApplyUpdate() error = %v", err)
	}
	state := v.State()
	if state.CurrentBranch != "feature/y" || strings.Join(state.Branches, ",") != "feature/y,main" {
		t.Errorf("State() = %+v", state)
	}
	if v.Status() != "Created branch feature/y" {
		t.Errorf("Status() = %q", v.Status())
	}

	v.Close()
	if err := v.ApplyUpdate(context.Background(), update); !errors.Is(err, domain.ErrAlreadyClosed) {
		t.Errorf("ApplyUpdate() after Close error = %v", err)
	}
}

func TestUniqueSorted(t *testing.T) {
	got := uniqueSorted([]string{"main", "dev", "", "main", "a"})
	if strings.Join(got, ",") != "a,dev,main" {
		t.Errorf("uniqueSorted() = %v", got)
	}
}

func TestClose_DiscardsLateResult(t *testing.T) {
	v, fb := newView(t)
	release := fb.Hold(http.MethodPost, "/git/review")
	defer release()

	done := make(chan error, 1)
	go func() { done <- v.RequestReview(context.Background()) }()

	testutil.Eventually(t, time.Second, func() bool { return len(fb.RequestsTo(http.MethodPost, "/git/review")) == 1 }, "request sent")
	v.Close()
	release()
	<-done

	if v.Review() != "" {
		t.Errorf("Review() = %q after Close", v.Review())
	}
	if err := v.Refresh(context.Background()); !errors.Is(err, domain.ErrAlreadyClosed) {
		t.Errorf("Refresh() after Close error = %v", err)
	}
}
