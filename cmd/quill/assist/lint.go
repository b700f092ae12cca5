package assistcmder

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/quill/pkg/assist"
	"github.com/papercomputeco/quill/pkg/cliui"
)

// watchDebounce coalesces the burst of events an editor save produces.
const watchDebounce = 200 * time.Millisecond

func newLintCmd(cmder *assistCommander) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "lint <file>",
		Short: "Report issues in a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !watch {
				return cmder.lint(cmd.Context(), args[0])
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return cmder.watchLint(ctx, args[0])
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-run lint every time the file is saved")

	return cmd
}

func (c *assistCommander) lint(ctx context.Context, path string) error {
	in, err := c.input(path)
	if err != nil {
		return err
	}

	var result assist.LintResult
	if err := c.call(ctx, assist.TaskLint, in, &result); err != nil {
		return err
	}

	if ok, err := c.printJSON(&result); ok {
		return err
	}
	RenderLint(c.out, in.Filename, &result)
	return nil
}

// watchLint lints path once and again after every write until ctx ends.
// Lint failures while watching are reported and do not stop the watch.
func (c *assistCommander) watchLint(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file on save, so watch the directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	run := func() {
		if err := c.lint(ctx, path); err != nil && ctx.Err() == nil {
			c.logger.Error("lint failed", "file", path, "error", err)
		}
		fmt.Fprintf(c.errOut, "  %s\n", cliui.DimStyle.Render("watching for changes, Ctrl+C to stop"))
	}
	run()

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			run()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("file watcher error: %w", err)
		}
	}
}

// RenderLint prints issues one per line in file:line:col form.
func RenderLint(w io.Writer, filename string, result *assist.LintResult) {
	if len(result.Issues) == 0 {
		fmt.Fprintf(w, "  %s %s: no issues\n", cliui.SuccessMark, filename)
		return
	}

	for _, issue := range result.Issues {
		loc := fmt.Sprintf("%s:%d", filename, issue.Line)
		if issue.Column > 0 {
			loc = fmt.Sprintf("%s:%d", loc, issue.Column)
		}

		line := fmt.Sprintf("  %s %s %s", cliui.HashStyle.Render(loc), cliui.Severity(issue.Severity), issue.Message)
		if issue.Rule != "" {
			line += " " + cliui.DimStyle.Render("("+issue.Rule+")")
		}
		fmt.Fprintln(w, line)
	}
}
