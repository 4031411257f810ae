package analyzer

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/brianly1003/aidev/internal/api"
	"github.com/brianly1003/aidev/internal/domain"
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

func TestAnalyze(t *testing.T) {
	v, fb := newView(t)
	fb.Analysis["lib/util.py"] = []map[string]interface{}{
		{"type": "error", "message": "undefined name", "line": 7},
	}

	if err := v.Analyze(context.Background(), " ./project "); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	analysis := v.Analysis()
	files := analysis.Files()
	if len(files) != 2 || files[0] != "app.py" || files[1] != "lib/util.py" {
		t.Errorf("Files() = %v", files)
	}
	if analysis["lib/util.py"][0].Line != 7 {
		t.Errorf("finding = %+v", analysis["lib/util.py"][0])
	}
	if v.Path() != "./project" {
		t.Errorf("Path() = %q", v.Path())
	}
	if v.Status() != "2 findings in 2 files" {
		t.Errorf("Status() = %q", v.Status())
	}
	if v.Running() {
		t.Error("Running() should be false after completion")
	}
	reqs := fb.RequestsTo(http.MethodPost, "/project/analyze")
	if len(reqs) != 1 || reqs[0].Query != "project_path=.%2Fproject" {
		t.Errorf("requests = %+v", reqs)
	}
}

func TestAnalyzeEmptyPath(t *testing.T) {
	v, fb := newView(t)

	if err := v.Analyze(context.Background(), "   "); !domain.IsValidationError(err) {
		t.Errorf("Analyze() error = %v, want validation error", err)
	}
	if len(fb.Requests()) != 0 {
		t.Error("no request expected for an empty path")
	}
}

func TestAnalyzeFailureKeepsPreviousResult(t *testing.T) {
	v, fb := newView(t)
	if err := v.Analyze(context.Background(), "p"); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	fb.FailNext(http.MethodPost, "/project/analyze", http.StatusInternalServerError)
	if err := v.Analyze(context.Background(), "p"); err == nil {
		t.Fatal("Analyze() should fail")
	}
	if v.Analysis().Count() != 1 {
		t.Error("previous analysis should be kept")
	}
	if v.Status() == "" {
		t.Error("Status() should describe the failure")
	}
}

func TestAnalysisIsCopy(t *testing.T) {
	v, _ := newView(t)
	if err := v.Analyze(context.Background(), "p"); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	a := v.Analysis()
	a["app.py"][0].Message = "changed"
	delete(a, "app.py")

	if v.Analysis()["app.py"][0].Message != "unused import" {
		t.Error("Analysis() must return a copy")
	}
}

func TestClose_DiscardsLateResult(t *testing.T) {
	v, fb := newView(t)
	release := fb.Hold(http.MethodPost, "/project/analyze")
	defer release()

	done := make(chan error, 1)
	go func() { done <- v.Analyze(context.Background(), "p") }()

	testutil.Eventually(t, time.Second, v.Running, "analysis started")
	v.Close()
	release()
	<-done

	if v.Analysis() != nil {
		t.Error("late analysis should be discarded")
	}
	if err := v.Analyze(context.Background(), "p"); !errors.Is(err, domain.ErrAlreadyClosed) {
		t.Errorf("Analyze() after Close error = %v", err)
	}
}
