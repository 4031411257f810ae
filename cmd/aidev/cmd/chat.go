package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/peterh/liner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/brianly1003/aidev/internal/app"
	"github.com/brianly1003/aidev/internal/config"
	"github.com/brianly1003/aidev/internal/domain"
	"github.com/brianly1003/aidev/internal/views/chat"
)

var chatStream bool

// chatCmd asks the assistant a question or opens an interactive session.
var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Chat with the assistant",
	Long: `Send one prompt, or start an interactive session when no prompt is given.

In the interactive session, prefix a line with /stream to stream the
answer, /model <name> switches the backend model and /quit leaves.

Examples:
  aidev chat "What does a context.Context do?"
  aidev chat --stream "Explain goroutines"
  aidev chat`,
	RunE: runChat,
}

// modelCmd switches the backend model.
var modelCmd = &cobra.Command{
	Use:   "model <name>",
	Short: "Switch the assistant's model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoggedIn(cmd, func(ctx context.Context, a *app.App) error {
			msg, err := a.Client().SwitchModel(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to switch model: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(modelCmd)

	chatCmd.Flags().BoolVar(&chatStream, "stream", false, "stream the answer as it is generated")
}

func runChat(cmd *cobra.Command, args []string) error {
	return runLoggedIn(cmd, func(ctx context.Context, a *app.App) error {
		view := chat.New(a.Client())
		defer view.Close()

		printer := newChatPrinter(cmd.OutOrStdout(), view)
		defer view.OnUpdate(printer.update)()

		if len(args) > 0 {
			input := strings.Join(args, " ")
			if chatStream {
				input = chat.StreamPrefix + input
			}
			err := view.Send(ctx, input)
			printer.finish()
			return err
		}

		if err := a.WatchSession(ctx); err != nil {
			log.Debug().Err(err).Msg("session watch unavailable")
		}
		return chatREPL(ctx, a, view, printer)
	})
}

func chatREPL(ctx context.Context, a *app.App, view *chat.View, printer *chatPrinter) error {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	historyFile := chatHistoryPath()
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		saveChatHistory(line, historyFile)
		line.Close()
	}()

	fmt.Fprintf(printer.out, "Logged in as %s. Type /quit to leave.\n", a.Store().Username())
	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := a.RequireSession(); err != nil {
			fmt.Fprintln(printer.out, "Session ended.")
			return err
		}

		input, err := line.Prompt("you> ")
		if err != nil {
			// Ctrl+C, Ctrl+D and closed stdin all end the session.
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(printer.out)
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		switch {
		case input == "/quit" || input == "/exit":
			return nil
		case strings.HasPrefix(input, "/model "):
			msg, err := a.Client().SwitchModel(ctx, strings.TrimSpace(strings.TrimPrefix(input, "/model ")))
			if err != nil {
				fmt.Fprintf(printer.out, "error: %v\n", err)
				continue
			}
			fmt.Fprintln(printer.out, msg)
			continue
		}

		if err := view.Send(ctx, input); err != nil {
			log.Debug().Err(err).Msg("chat request failed")
			if domain.IsValidationError(err) {
				fmt.Fprintf(printer.out, "error: %v\n", err)
			}
		}
		printer.finish()
	}
}

func chatHistoryPath() string {
	dir, err := config.GetConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "chat_history")
}

func saveChatHistory(line *liner.State, path string) {
	if _, err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = line.WriteHistory(f)
}

// chatPrinter writes assistant messages as they grow. Streamed chunks are
// printed as deltas of the last assistant message.
type chatPrinter struct {
	out  io.Writer
	view *chat.View

	mu      sync.Mutex
	index   int
	printed int
	open    bool
}

func newChatPrinter(out io.Writer, view *chat.View) *chatPrinter {
	return &chatPrinter{out: out, view: view, index: -1}
}

func (p *chatPrinter) update() {
	last, ok := p.view.Last()
	if !ok || last.Role != chat.RoleAssistant {
		return
	}
	n := len(p.view.Messages()) - 1

	p.mu.Lock()
	defer p.mu.Unlock()
	if n != p.index {
		if p.open {
			fmt.Fprintln(p.out)
		}
		p.index = n
		p.printed = 0
	}
	if len(last.Content) > p.printed {
		fmt.Fprint(p.out, last.Content[p.printed:])
		p.printed = len(last.Content)
		p.open = true
	}
}

// finish ends the current answer's line.
func (p *chatPrinter) finish() {
	p.update()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		fmt.Fprintln(p.out)
		p.open = false
	}
}
