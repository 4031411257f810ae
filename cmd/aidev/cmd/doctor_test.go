package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brianly1003/aidev/internal/config"
	"github.com/brianly1003/aidev/internal/session"
)

func TestSummarizeDoctorChecks(t *testing.T) {
	summary := summarizeDoctorChecks([]doctorCheck{
		{ID: "a", Status: doctorStatusOK},
		{ID: "b", Status: doctorStatusWarn},
		{ID: "c", Status: doctorStatusFail},
		{ID: "d", Status: doctorStatusOK},
	})

	if summary.Total != 4 || summary.OK != 2 || summary.Warn != 1 || summary.Fail != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name    string
		summary doctorSummary
		want    doctorStatus
	}{
		{"all ok", doctorSummary{Total: 2, OK: 2}, doctorStatusOK},
		{"warn wins over ok", doctorSummary{Total: 2, OK: 1, Warn: 1}, doctorStatusWarn},
		{"fail wins over warn", doctorSummary{Total: 3, OK: 1, Warn: 1, Fail: 1}, doctorStatusFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := overallStatus(tt.summary); got != tt.want {
				t.Errorf("overallStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCheckBackend(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ok.Close()

	if check := checkBackend(ok.URL, 1); check.Status != doctorStatusOK {
		t.Errorf("404 answer: status = %s, message = %s", check.Status, check.Message)
	}

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	if check := checkBackend(broken.URL, 1); check.Status != doctorStatusWarn {
		t.Errorf("502 answer: status = %s", check.Status)
	}

	gone := httptest.NewServer(http.NotFoundHandler())
	url := gone.URL
	gone.Close()

	check := checkBackend(url, 1)
	if check.Status != doctorStatusFail {
		t.Errorf("closed server: status = %s", check.Status)
	}
	if check.Remediation == "" {
		t.Error("failing check should carry a remediation")
	}
}

func TestCheckSessionStorage_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	cfg := config.SessionConfig{Backend: config.SessionBackendFile, Path: path}

	checks := checkSessionStorage(cfg)
	if len(checks) != 1 || checks[0].Status != doctorStatusWarn {
		t.Fatalf("missing file: checks = %+v", checks)
	}

	storage := session.NewFileStorage(path)
	if err := storage.Set(session.KeyUser, `{"username":"alice"}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	checks = checkSessionStorage(cfg)
	if len(checks) != 2 {
		t.Fatalf("checks = %+v", checks)
	}
	if checks[0].Status != doctorStatusOK {
		t.Errorf("storage status = %s", checks[0].Status)
	}
	if checks[1].ID != "session.login" || checks[1].Status != doctorStatusWarn {
		t.Errorf("user without token should not count as logged in: %+v", checks[1])
	}

	if err := storage.Set(session.KeyToken, "tok-alice"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	checks = checkSessionStorage(cfg)
	if checks[1].Status != doctorStatusOK {
		t.Errorf("saved session: %+v", checks[1])
	}
}

func TestCheckSessionStorage_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	checks := checkSessionStorage(config.SessionConfig{Backend: config.SessionBackendFile, Path: path})
	if len(checks) != 1 || checks[0].Status != doctorStatusFail {
		t.Fatalf("checks = %+v", checks)
	}
}

func TestCheckSessionStorage_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	checks := checkSessionStorage(config.SessionConfig{Backend: config.SessionBackendSQLite, Path: path})

	if len(checks) != 2 || checks[0].Status != doctorStatusOK {
		t.Fatalf("checks = %+v", checks)
	}
	if checks[1].Status != doctorStatusWarn {
		t.Errorf("empty database should report no session: %+v", checks[1])
	}
}

func TestCheckConfigLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api:\n  base_url: ftp://nowhere\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, check := checkConfigLoad(path, []string{path})
	if cfg != nil {
		t.Error("invalid config should not be returned")
	}
	if check.Status != doctorStatusFail {
		t.Errorf("status = %s", check.Status)
	}
}

func TestFindFirstExistingPath(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(present, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	got := findFirstExistingPath([]string{"", filepath.Join(dir, "missing.yaml"), present})
	if got != present {
		t.Errorf("findFirstExistingPath() = %q, want %q", got, present)
	}
	if got := findFirstExistingPath([]string{filepath.Join(dir, "missing.yaml")}); got != "" {
		t.Errorf("findFirstExistingPath() = %q, want empty", got)
	}
}

func TestPrintDoctorOutput(t *testing.T) {
	report := doctorReport{
		Version: "test",
		Overall: doctorStatusWarn,
		Summary: doctorSummary{Total: 2, OK: 1, Warn: 1},
		Checks: []doctorCheck{
			{ID: "config.load", Status: doctorStatusOK, Message: "loaded", Remediation: "unused"},
			{ID: "session.login", Status: doctorStatusWarn, Message: "Not logged in", Remediation: "Run `aidev login`."},
		},
	}

	var text bytes.Buffer
	printDoctorText(&text, report)
	out := text.String()
	for _, want := range []string{"overall: WARN", "[OK] config.load: loaded", "[WARN] session.login", "fix: Run `aidev login`."} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "unused") {
		t.Error("remediation of a passing check should not be printed")
	}

	var raw bytes.Buffer
	if err := printDoctorJSON(&raw, report); err != nil {
		t.Fatalf("printDoctorJSON() error = %v", err)
	}
	var decoded doctorReport
	if err := json.Unmarshal(raw.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Overall != doctorStatusWarn || len(decoded.Checks) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
}
