package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/brianly1003/aidev/internal/adapters/watcher"
	"github.com/brianly1003/aidev/internal/api"
	"github.com/brianly1003/aidev/internal/app"
	"github.com/brianly1003/aidev/internal/domain/events"
	"github.com/brianly1003/aidev/internal/hub"
	"github.com/brianly1003/aidev/internal/views/editor"
)

var (
	codeLanguage string
	codeErrText  string
	codeWrite    bool
)

// extLanguages maps file extensions to editor languages.
var extLanguages = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".go":   "go",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cc":   "cpp",
	".hpp":  "cpp",
	".cs":   "csharp",
	".rs":   "rust",
	".rb":   "ruby",
	".php":  "php",
}

// codeCmd groups the code assistance commands.
var codeCmd = &cobra.Command{
	Use:   "code",
	Short: "Refactoring, completion and debugging help for local code",
	Long: `Send a local source file to the assistant.

The language is taken from --language, then from the file extension, then
from editor.language in the config.`,
}

var codeRefactorCmd = &cobra.Command{
	Use:   "refactor <file>",
	Short: "Print refactoring suggestions for a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEditor(cmd, args[0], func(ctx context.Context, v *editor.View) error {
			if err := v.RefreshSuggestions(ctx); err != nil {
				return fmt.Errorf("failed to get suggestions: %w", err)
			}
			printSuggestions(cmd.OutOrStdout(), v.Suggestions())
			return nil
		})
	},
}

var codeCompleteCmd = &cobra.Command{
	Use:   "complete <file>",
	Short: "Complete the code in a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEditor(cmd, args[0], func(ctx context.Context, v *editor.View) error {
			before := v.Code()
			if err := v.Complete(ctx); err != nil {
				return fmt.Errorf("failed to complete code: %w", err)
			}
			after := v.Code()
			if codeWrite {
				if err := os.WriteFile(args[0], []byte(after), 0644); err != nil {
					return fmt.Errorf("failed to write %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote completion to %s\n", args[0])
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), strings.TrimPrefix(after, before))
			return nil
		})
	},
}

var codeDebugCmd = &cobra.Command{
	Use:   "debug <file>",
	Short: "Ask for help with an error in a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEditor(cmd, args[0], func(ctx context.Context, v *editor.View) error {
			err := v.Debug(ctx, codeErrText)
			fmt.Fprintln(cmd.OutOrStdout(), v.Assistance())
			return err
		})
	},
}

var codeWatchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Print suggestions each time a file is saved",
	Long: `Follow a local file and print fresh refactoring suggestions after each
save, once edits have settled for editor.debounce_ms.`,
	Args: cobra.ExactArgs(1),
	RunE: runCodeWatch,
}

func init() {
	rootCmd.AddCommand(codeCmd)
	codeCmd.AddCommand(codeRefactorCmd)
	codeCmd.AddCommand(codeCompleteCmd)
	codeCmd.AddCommand(codeDebugCmd)
	codeCmd.AddCommand(codeWatchCmd)

	codeCmd.PersistentFlags().StringVarP(&codeLanguage, "language", "l", "", "source language (default: from extension)")
	codeCompleteCmd.Flags().BoolVarP(&codeWrite, "write", "w", false, "write the completed code back to the file")
	codeDebugCmd.Flags().StringVarP(&codeErrText, "error", "e", "", "error message to explain")
	_ = codeDebugCmd.MarkFlagRequired("error")
}

// languageFor picks the editor language for path.
func languageFor(path, flag, fallback string) string {
	if flag != "" {
		return strings.ToLower(flag)
	}
	if lang, ok := extLanguages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return fallback
}

func newEditor(a *app.App, path string) *editor.View {
	opts := editor.OptionsFromConfig(a.Config().Editor)
	opts.Language = languageFor(path, codeLanguage, opts.Language)
	return editor.New(a.Client(), opts)
}

func withEditor(cmd *cobra.Command, path string, fn func(ctx context.Context, v *editor.View) error) error {
	code, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return runLoggedIn(cmd, func(ctx context.Context, a *app.App) error {
		v := newEditor(a, path)
		defer v.Close()
		v.SetCode(string(code))
		return fn(ctx, v)
	})
}

func printSuggestions(out io.Writer, suggestions []api.RefactorSuggestion) {
	if len(suggestions) == 0 {
		fmt.Fprintln(out, "No suggestions.")
		return
	}
	for _, s := range suggestions {
		fmt.Fprintf(out, "line %d: %s\n", s.Line, s.Message)
		if s.Suggestion != "" {
			for _, l := range strings.Split(strings.TrimRight(s.Suggestion, "\n"), "\n") {
				fmt.Fprintf(out, "    %s\n", l)
			}
		}
	}
}

func runCodeWatch(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	code, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	return runLoggedIn(cmd, func(ctx context.Context, a *app.App) error {
		out := cmd.OutOrStdout()
		v := newEditor(a, path)
		defer v.Close()

		// Print each distinct suggestion list once.
		var mu sync.Mutex
		var last string
		defer v.OnUpdate(func() {
			if v.Status() != "" {
				log.Warn().Msg(v.Status())
			}
			suggestions := v.Suggestions()
			rendered := fmt.Sprintf("%v", suggestions)
			mu.Lock()
			defer mu.Unlock()
			if rendered == last {
				return
			}
			last = rendered
			fmt.Fprintf(out, "--- %s (%s)\n", filepath.Base(path), v.Language())
			printSuggestions(out, suggestions)
		})()

		h := hub.New()
		if err := h.Start(); err != nil {
			return err
		}
		defer h.Stop()

		h.Subscribe(hub.NewFilteredSubscriber(
			hub.NewCallbackSubscriber("code-watch", func(event events.Event) {
				var payload events.FileUpdatedPayload
				if err := event.Decode(&payload); err != nil || payload.Name != path {
					return
				}
				if payload.Change == events.FileChangeDeleted {
					fmt.Fprintf(out, "%s was deleted\n", filepath.Base(path))
					return
				}
				data, err := os.ReadFile(path)
				if err != nil {
					log.Warn().Err(err).Str("path", path).Msg("failed to read changed file")
					return
				}
				v.SetCode(string(data))
			}),
			events.EventTypeFileUpdated,
		))

		w := watcher.NewWatcher(h, watcher.DefaultWindow, nil)
		if err := w.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer w.Stop()

		fmt.Fprintf(out, "Watching %s. Press Ctrl+C to stop.\n", path)
		v.SetCode(string(code))
		if err := v.RefreshSuggestions(ctx); err != nil {
			log.Warn().Err(err).Msg("initial suggestions failed")
		}

		<-ctx.Done()
		return nil
	})
}
