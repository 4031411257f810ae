package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brianly1003/aidev/internal/api"
	"github.com/brianly1003/aidev/internal/app"
	"github.com/brianly1003/aidev/internal/views/analyzer"
)

// projectCmd groups the project analysis commands.
var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Analyze projects and manage the assistant's project context",
}

var projectAnalyzeCmd = &cobra.Command{
	Use:   "analyze <path>",
	Short: "Run a static analysis of a project on the backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoggedIn(cmd, func(ctx context.Context, a *app.App) error {
			v := analyzer.New(a.Client())
			defer v.Close()

			if err := v.Analyze(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to analyze project: %w", err)
			}
			printAnalysis(cmd.OutOrStdout(), v.Analysis())
			fmt.Fprintln(cmd.OutOrStdout(), v.Status())
			return nil
		})
	},
}

var projectSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the summary of the project in context",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoggedIn(cmd, func(ctx context.Context, a *app.App) error {
			summary, err := a.Client().ProjectSummary(ctx)
			if err != nil {
				return fmt.Errorf("failed to get project summary: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), summary)
		})
	},
}

var projectAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Add a project to the assistant's context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoggedIn(cmd, func(ctx context.Context, a *app.App) error {
			msg, err := a.Client().AddProjectToContext(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to add project: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		})
	},
}

// searchCmd groups the search commands.
var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the web or the assistant's knowledge base",
}

var searchWebCmd = &cobra.Command{
	Use:   "web <query>",
	Short: "Search the web",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoggedIn(cmd, func(ctx context.Context, a *app.App) error {
			results, err := a.Client().SearchWeb(ctx, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("web search failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), results)
		})
	},
}

var searchKBCmd = &cobra.Command{
	Use:     "kb <query>",
	Aliases: []string{"knowledge-base"},
	Short:   "Search the knowledge base",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoggedIn(cmd, func(ctx context.Context, a *app.App) error {
			results, err := a.Client().SearchKnowledgeBase(ctx, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("knowledge base search failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), results)
		})
	},
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectAnalyzeCmd)
	projectCmd.AddCommand(projectSummaryCmd)
	projectCmd.AddCommand(projectAddCmd)

	rootCmd.AddCommand(searchCmd)
	searchCmd.AddCommand(searchWebCmd)
	searchCmd.AddCommand(searchKBCmd)
}

// printAnalysis lists findings grouped by file, files sorted by name.
func printAnalysis(out io.Writer, analysis api.ProjectAnalysis) {
	for _, file := range analysis.Files() {
		fmt.Fprintln(out, file)
		for _, item := range analysis[file] {
			fmt.Fprintf(out, "  line %d [%s] %s\n", item.Line, item.Type, item.Message)
		}
	}
}

// printJSON pretty-prints raw JSON, or prints it as is if it does not parse.
func printJSON(out io.Writer, raw json.RawMessage) error {
	if len(raw) == 0 {
		fmt.Fprintln(out, "null")
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = fmt.Fprintln(out, string(raw))
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(out)
	return err
}
