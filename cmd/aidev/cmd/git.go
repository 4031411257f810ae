package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/brianly1003/aidev/internal/app"
	"github.com/brianly1003/aidev/internal/domain/events"
	gitview "github.com/brianly1003/aidev/internal/views/git"
)

var (
	commitMessage string
	branchesWatch bool
)

// gitCmd groups the backend repository commands.
var gitCmd = &cobra.Command{
	Use:   "git",
	Short: "Work with the backend's git repository",
}

var gitCommitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Commit the pending changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGitView(cmd, func(ctx context.Context, v *gitview.View) error {
			if err := v.Commit(ctx, commitMessage); err != nil {
				return fmt.Errorf("failed to commit: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), v.Status())
			return nil
		})
	},
}

var gitBranchCmd = &cobra.Command{
	Use:   "branch <name>",
	Short: "Create and switch to a new branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGitView(cmd, func(ctx context.Context, v *gitview.View) error {
			if err := v.CreateBranch(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to create branch: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), v.Status())
			return nil
		})
	},
}

var gitCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Print the current branch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoggedIn(cmd, func(ctx context.Context, a *app.App) error {
			branch, err := a.Client().CurrentBranch(ctx)
			if err != nil {
				return fmt.Errorf("failed to get current branch: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), branch)
			return nil
		})
	},
}

var gitBranchesCmd = &cobra.Command{
	Use:   "branches",
	Short: "List branches, marking the current one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoggedIn(cmd, func(ctx context.Context, a *app.App) error {
			v := gitview.New(a.Client())
			defer v.Close()

			out := cmd.OutOrStdout()
			if err := v.Refresh(ctx); err != nil {
				return fmt.Errorf("failed to list branches: %w", err)
			}
			printBranches(out, v.State())
			if !branchesWatch {
				return nil
			}

			if err := a.ConnectRealtime(ctx); err != nil {
				return err
			}
			updates := make(chan events.GitUpdatePayload, 16)
			sub := a.Realtime().SubscribeGitUpdates(func(p events.GitUpdatePayload) {
				select {
				case updates <- p:
				default:
					log.Warn().Str("operation", p.Operation).Msg("dropping git update, listing is busy")
				}
			})
			defer sub.Unsubscribe()

			for {
				select {
				case <-ctx.Done():
					return nil
				case p := <-updates:
					if err := v.ApplyUpdate(ctx, p); err != nil {
						log.Warn().Err(err).Msg(v.Status())
						continue
					}
					fmt.Fprintf(out, "\n%s\n", v.Status())
					printBranches(out, v.State())
				}
			}
		})
	},
}

var gitReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Ask the assistant to review the pending changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGitView(cmd, func(ctx context.Context, v *gitview.View) error {
			if err := v.RequestReview(ctx); err != nil {
				return fmt.Errorf("failed to review changes: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), v.Review())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(gitCmd)
	gitCmd.AddCommand(gitCommitCmd)
	gitCmd.AddCommand(gitBranchCmd)
	gitCmd.AddCommand(gitCurrentCmd)
	gitCmd.AddCommand(gitBranchesCmd)
	gitCmd.AddCommand(gitReviewCmd)

	gitCommitCmd.Flags().StringVarP(&commitMessage, "message", "m", "", "commit message")
	_ = gitCommitCmd.MarkFlagRequired("message")
	gitBranchesCmd.Flags().BoolVarP(&branchesWatch, "watch", "w", false, "keep listing as branches change on the backend")
}

// printBranches lists branches, marking the current one with "*".
func printBranches(out io.Writer, state gitview.State) {
	for _, b := range state.Branches {
		marker := " "
		if b == state.CurrentBranch {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s\n", marker, b)
	}
}

func withGitView(cmd *cobra.Command, fn func(ctx context.Context, v *gitview.View) error) error {
	return runLoggedIn(cmd, func(ctx context.Context, a *app.App) error {
		v := gitview.New(a.Client())
		defer v.Close()
		return fn(ctx, v)
	})
}
