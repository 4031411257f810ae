package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/brianly1003/aidev/internal/app"
	"github.com/brianly1003/aidev/internal/domain/events"
	"github.com/brianly1003/aidev/internal/realtime"
)

var (
	eventTypes  []string
	eventPrompt string
)

// eventsCmd follows the realtime channel.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Print realtime events from the backend",
	Long: `Connect to the realtime channel and print every event until interrupted.

With --prompt, ask for a streamed answer over the channel instead and
exit once it is complete.

Examples:
  aidev events
  aidev events --type file_updated --type git_update
  aidev events --prompt "Summarize the last commit"`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().StringSliceVarP(&eventTypes, "type", "t", nil, "only print these event names")
	eventsCmd.Flags().StringVarP(&eventPrompt, "prompt", "p", "", "stream an answer to this prompt and exit")
}

func runEvents(cmd *cobra.Command, args []string) error {
	return runLoggedIn(cmd, func(ctx context.Context, a *app.App) error {
		out := cmd.OutOrStdout()
		if err := a.ConnectRealtime(ctx); err != nil {
			return err
		}

		if eventPrompt != "" {
			return streamOverRealtime(ctx, out, a.Realtime(), eventPrompt)
		}

		var mu sync.Mutex
		show := func(e events.Event) {
			mu.Lock()
			defer mu.Unlock()
			printEvent(out, e)
		}

		var subs []*realtime.Subscription
		if len(eventTypes) == 0 {
			subs = append(subs, a.Realtime().SubscribeAll(show))
		}
		for _, t := range eventTypes {
			subs = append(subs, a.Realtime().Subscribe(events.EventType(t), show))
		}
		defer func() {
			for _, s := range subs {
				s.Unsubscribe()
			}
		}()

		fmt.Fprintln(out, "Listening for events. Press Ctrl+C to stop.")
		<-ctx.Done()
		return nil
	})
}

// streamOverRealtime prints the chunks of one streamed answer.
func streamOverRealtime(ctx context.Context, out io.Writer, rt *realtime.Client, prompt string) error {
	done := make(chan struct{})
	var once sync.Once
	sub, err := rt.StreamAIResponse(ctx, prompt, func(chunk string, last bool) {
		fmt.Fprint(out, chunk)
		if last {
			once.Do(func() { close(done) })
		}
	})
	if err != nil {
		return fmt.Errorf("failed to request stream: %w", err)
	}
	defer sub.Unsubscribe()

	disconnected := make(chan struct{})
	dsub := rt.Subscribe(events.EventTypeDisconnect, func(events.Event) {
		select {
		case <-disconnected:
		default:
			close(disconnected)
		}
	})
	defer dsub.Unsubscribe()

	select {
	case <-done:
		fmt.Fprintln(out)
		return nil
	case <-disconnected:
		fmt.Fprintln(out)
		return fmt.Errorf("connection lost before the answer completed")
	case <-ctx.Done():
		fmt.Fprintln(out)
		return ctx.Err()
	}
}

func printEvent(out io.Writer, e events.Event) {
	var payload string
	if base, ok := e.(*events.BaseEvent); ok && len(base.Payload) > 0 {
		payload = string(base.Payload)
	}
	fmt.Fprintf(out, "%s %-18s %s\n", e.Timestamp().Local().Format("15:04:05"), e.Type(), payload)
}
