package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/brianly1003/aidev/internal/config"
	"github.com/brianly1003/aidev/internal/session"
)

var (
	doctorJSON        bool
	doctorStrict      bool
	doctorHTTPTimeout int
)

type doctorStatus string

const (
	doctorStatusOK   doctorStatus = "ok"
	doctorStatusWarn doctorStatus = "warn"
	doctorStatusFail doctorStatus = "fail"
)

type doctorCheck struct {
	ID          string                 `json:"id"`
	Status      doctorStatus           `json:"status"`
	Message     string                 `json:"message"`
	Details     map[string]interface{} `json:"details,omitempty"`
	Remediation string                 `json:"remediation,omitempty"`
}

type doctorSummary struct {
	Total int `json:"total"`
	OK    int `json:"ok"`
	Warn  int `json:"warn"`
	Fail  int `json:"fail"`
}

type doctorReport struct {
	Version      string        `json:"version"`
	GeneratedAt  string        `json:"generated_at"`
	Overall      doctorStatus  `json:"overall_status"`
	Summary      doctorSummary `json:"summary"`
	Checks       []doctorCheck `json:"checks"`
	SearchConfig []string      `json:"config_search_paths,omitempty"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run local diagnostics with remediation hints",
	Long: `Run read-only diagnostics against the local aidev setup and the configured
backend, and print actionable hints.

By default the output is human-readable text.
Use --json for machine-readable output.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output machine-readable JSON")
	doctorCmd.Flags().BoolVar(&doctorStrict, "strict", false, "return non-zero on warnings")
	doctorCmd.Flags().IntVar(&doctorHTTPTimeout, "http-timeout", 2, "backend probe timeout in seconds")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	report := collectDoctorReport()

	if doctorJSON {
		if err := printDoctorJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else {
		printDoctorText(cmd.OutOrStdout(), report)
	}

	if report.Summary.Fail > 0 {
		return fmt.Errorf("doctor found %d failing check(s)", report.Summary.Fail)
	}
	if doctorStrict && report.Summary.Warn > 0 {
		return fmt.Errorf("doctor strict mode failed with %d warning(s)", report.Summary.Warn)
	}
	return nil
}

func collectDoctorReport() doctorReport {
	checks := make([]doctorCheck, 0, 8)

	configDir, _ := config.GetConfigDir()
	searchPaths := configSearchPaths(configDir)

	cfg := config.Default()
	loadedCfg, cfgCheck := checkConfigLoad(cfgFile, searchPaths)
	checks = append(checks, cfgCheck)
	if loadedCfg != nil {
		cfg = loadedCfg
	}

	checks = append(checks, checkConfigDirectory())
	checks = append(checks, checkSessionStorage(cfg.Session)...)
	checks = append(checks, checkBackend(cfg.API.BaseURL, doctorHTTPTimeout))

	summary := summarizeDoctorChecks(checks)
	return doctorReport{
		Version:      version,
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
		Overall:      overallStatus(summary),
		Summary:      summary,
		Checks:       checks,
		SearchConfig: searchPaths,
	}
}

func checkConfigLoad(path string, searchPaths []string) (*config.Config, doctorCheck) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, doctorCheck{
			ID:      "config.load",
			Status:  doctorStatusFail,
			Message: fmt.Sprintf("Failed to load config: %v", err),
			Details: map[string]interface{}{
				"config_path":  strings.TrimSpace(path),
				"search_paths": searchPaths,
			},
			Remediation: "Fix the config file, or run `aidev config init --force` to regenerate defaults.",
		}
	}

	source := findFirstExistingPath(searchPaths)
	msg := "Configuration loaded using built-in defaults and environment overrides"
	if source != "" {
		msg = "Configuration loaded successfully"
	}

	return cfg, doctorCheck{
		ID:      "config.load",
		Status:  doctorStatusOK,
		Message: msg,
		Details: map[string]interface{}{
			"loaded_from":  source,
			"search_paths": searchPaths,
		},
	}
}

func checkConfigDirectory() doctorCheck {
	dir, err := config.GetConfigDir()
	if err != nil {
		return doctorCheck{
			ID:          "config.directory",
			Status:      doctorStatusFail,
			Message:     fmt.Sprintf("Failed to resolve config directory: %v", err),
			Remediation: "Verify your HOME environment and filesystem permissions.",
		}
	}

	info, statErr := os.Stat(dir)
	switch {
	case os.IsNotExist(statErr):
		return doctorCheck{
			ID:          "config.directory",
			Status:      doctorStatusWarn,
			Message:     "Config directory does not exist yet",
			Details:     map[string]interface{}{"path": dir},
			Remediation: "Run `aidev config init` or `aidev login` to create it.",
		}
	case statErr != nil:
		return doctorCheck{
			ID:          "config.directory",
			Status:      doctorStatusFail,
			Message:     fmt.Sprintf("Failed to access config directory: %v", statErr),
			Details:     map[string]interface{}{"path": dir},
			Remediation: "Fix directory permissions or create the directory manually.",
		}
	case !info.IsDir():
		return doctorCheck{
			ID:          "config.directory",
			Status:      doctorStatusFail,
			Message:     "Config path exists but is not a directory",
			Details:     map[string]interface{}{"path": dir},
			Remediation: "Remove the file and recreate the directory with `mkdir -p ~/.aidev`.",
		}
	}

	return doctorCheck{
		ID:      "config.directory",
		Status:  doctorStatusOK,
		Message: "Config directory is available",
		Details: map[string]interface{}{"path": dir},
	}
}

// checkSessionStorage opens the session storage read-only and reports
// whether a session is saved in it.
func checkSessionStorage(cfg config.SessionConfig) []doctorCheck {
	details := map[string]interface{}{
		"backend": cfg.Backend,
		"path":    cfg.Path,
	}

	if cfg.Backend == config.SessionBackendFile || cfg.Backend == "" {
		if _, err := os.Stat(cfg.Path); os.IsNotExist(err) {
			return []doctorCheck{{
				ID:          "session.storage",
				Status:      doctorStatusWarn,
				Message:     "No session file yet",
				Details:     details,
				Remediation: "Run `aidev login`.",
			}}
		}
	}

	storage, err := session.OpenStorage(cfg)
	if err != nil {
		return []doctorCheck{{
			ID:          "session.storage",
			Status:      doctorStatusFail,
			Message:     fmt.Sprintf("Failed to open session storage: %v", err),
			Details:     details,
			Remediation: "Check session.backend and session.path in the config.",
		}}
	}
	defer storage.Close()

	_, hasUser, userErr := storage.Get(session.KeyUser)
	_, hasToken, tokenErr := storage.Get(session.KeyToken)
	if userErr != nil || tokenErr != nil {
		err := userErr
		if err == nil {
			err = tokenErr
		}
		return []doctorCheck{{
			ID:          "session.storage",
			Status:      doctorStatusFail,
			Message:     fmt.Sprintf("Session storage is unreadable: %v", err),
			Details:     details,
			Remediation: "Run `aidev logout` to reset it, then log in again.",
		}}
	}

	checks := []doctorCheck{{
		ID:      "session.storage",
		Status:  doctorStatusOK,
		Message: "Session storage is readable",
		Details: details,
	}}
	if hasUser && hasToken {
		checks = append(checks, doctorCheck{
			ID:      "session.login",
			Status:  doctorStatusOK,
			Message: "A session is saved",
		})
	} else {
		checks = append(checks, doctorCheck{
			ID:          "session.login",
			Status:      doctorStatusWarn,
			Message:     "Not logged in",
			Remediation: "Run `aidev login`.",
		})
	}
	return checks
}

// checkBackend probes the API base URL. Any HTTP answer means the backend
// is reachable.
func checkBackend(baseURL string, timeoutSeconds int) doctorCheck {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 2
	}
	client := &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second}

	resp, err := client.Get(baseURL + "/")
	if err != nil {
		return doctorCheck{
			ID:          "api.reachable",
			Status:      doctorStatusFail,
			Message:     fmt.Sprintf("Backend is not reachable: %v", err),
			Details:     map[string]interface{}{"url": baseURL},
			Remediation: "Start the backend or set api.base_url (AIDEV_API_BASE_URL).",
		}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))

	if resp.StatusCode >= http.StatusInternalServerError {
		return doctorCheck{
			ID:      "api.reachable",
			Status:  doctorStatusWarn,
			Message: fmt.Sprintf("Backend answered with status %d", resp.StatusCode),
			Details: map[string]interface{}{
				"url":         baseURL,
				"status_code": resp.StatusCode,
			},
			Remediation: "Check the backend logs.",
		}
	}

	return doctorCheck{
		ID:      "api.reachable",
		Status:  doctorStatusOK,
		Message: "Backend is reachable",
		Details: map[string]interface{}{
			"url":         baseURL,
			"status_code": resp.StatusCode,
		},
	}
}

func summarizeDoctorChecks(checks []doctorCheck) doctorSummary {
	summary := doctorSummary{Total: len(checks)}
	for _, check := range checks {
		switch check.Status {
		case doctorStatusOK:
			summary.OK++
		case doctorStatusWarn:
			summary.Warn++
		case doctorStatusFail:
			summary.Fail++
		}
	}
	return summary
}

func overallStatus(summary doctorSummary) doctorStatus {
	if summary.Fail > 0 {
		return doctorStatusFail
	}
	if summary.Warn > 0 {
		return doctorStatusWarn
	}
	return doctorStatusOK
}

func printDoctorJSON(out io.Writer, report doctorReport) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func printDoctorText(out io.Writer, report doctorReport) {
	fmt.Fprintf(out, "aidev doctor %s\n", report.Version)
	fmt.Fprintf(out, "generated_at: %s\n", report.GeneratedAt)
	fmt.Fprintf(out, "overall: %s  (ok=%d warn=%d fail=%d total=%d)\n\n",
		strings.ToUpper(string(report.Overall)),
		report.Summary.OK,
		report.Summary.Warn,
		report.Summary.Fail,
		report.Summary.Total,
	)

	for _, check := range report.Checks {
		label := "[OK]"
		if check.Status == doctorStatusWarn {
			label = "[WARN]"
		}
		if check.Status == doctorStatusFail {
			label = "[FAIL]"
		}

		fmt.Fprintf(out, "%s %s: %s\n", label, check.ID, check.Message)
		if check.Remediation != "" && check.Status != doctorStatusOK {
			fmt.Fprintf(out, "  fix: %s\n", check.Remediation)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Tip: run `aidev doctor --json` for machine-readable output.")
}

func findFirstExistingPath(paths []string) string {
	for _, candidate := range paths {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
