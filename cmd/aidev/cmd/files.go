package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/brianly1003/aidev/internal/api"
	"github.com/brianly1003/aidev/internal/app"
	"github.com/brianly1003/aidev/internal/domain/events"
	"github.com/brianly1003/aidev/internal/views/files"
)

var (
	uploadName string
	filesWatch bool
)

// filesCmd groups stored file commands.
var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Manage files stored on the backend",
}

var filesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoggedIn(cmd, func(ctx context.Context, a *app.App) error {
			v := files.New(a.Client())
			defer v.Close()

			out := cmd.OutOrStdout()
			if err := v.Refresh(ctx); err != nil {
				return fmt.Errorf("failed to list files: %w", err)
			}
			printFileTable(out, v.Files(), time.Now())
			if !filesWatch {
				return nil
			}

			if err := a.ConnectRealtime(ctx); err != nil {
				return err
			}
			updates := make(chan events.FileUpdatedPayload, 16)
			sub := a.Realtime().SubscribeFileUpdates(func(p events.FileUpdatedPayload) {
				select {
				case updates <- p:
				default:
					log.Warn().Str("file", p.Name).Msg("dropping file update, listing is busy")
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
					fmt.Fprintf(out, "\n%s %s\n", p.Name, p.Change)
					printFileTable(out, v.Files(), time.Now())
				}
			}
		})
	},
}

var filesUploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload a local file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}
		defer f.Close()

		name := uploadName
		if name == "" {
			name = filepath.Base(args[0])
		}
		return withFilesView(cmd, func(ctx context.Context, v *files.View) error {
			if err := v.Upload(ctx, name, f); err != nil {
				return fmt.Errorf("failed to upload %s: %w", name, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), v.Status())
			return nil
		})
	},
}

var filesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFilesView(cmd, func(ctx context.Context, v *files.View) error {
			if err := v.Delete(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to delete %s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), v.Status())
			return nil
		})
	},
}

var filesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a stored file's content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFilesView(cmd, func(ctx context.Context, v *files.View) error {
			if err := v.Select(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to fetch %s: %w", args[0], err)
			}
			_, content, _ := v.Selected()
			fmt.Fprint(cmd.OutOrStdout(), content)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(filesCmd)
	filesCmd.AddCommand(filesListCmd)
	filesCmd.AddCommand(filesUploadCmd)
	filesCmd.AddCommand(filesDeleteCmd)
	filesCmd.AddCommand(filesShowCmd)

	filesListCmd.Flags().BoolVarP(&filesWatch, "watch", "w", false, "keep listing as files change on the backend")
	filesUploadCmd.Flags().StringVar(&uploadName, "name", "", "name to store the file under (default: base name)")
}

func withFilesView(cmd *cobra.Command, fn func(ctx context.Context, v *files.View) error) error {
	return runLoggedIn(cmd, func(ctx context.Context, a *app.App) error {
		v := files.New(a.Client())
		defer v.Close()
		return fn(ctx, v)
	})
}

// printFileTable renders entries with human-readable sizes and ages.
// Metadata the backend did not send is shown as "-".
func printFileTable(out io.Writer, entries []api.FileEntry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No files.")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED")
	for _, e := range entries {
		size := "-"
		if e.Size > 0 {
			size = humanize.Bytes(uint64(e.Size))
		}
		modified := "-"
		if e.LastModified != "" {
			modified = e.LastModified
			if t, err := time.Parse(time.RFC3339, e.LastModified); err == nil {
				modified = humanize.RelTime(t, now, "ago", "from now")
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, size, modified)
	}
	tw.Flush()
}
