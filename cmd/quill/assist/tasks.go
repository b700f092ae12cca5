package assistcmder

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/quill/pkg/assist"
	"github.com/papercomputeco/quill/pkg/cliui"
)

func newReviewCmd(cmder *assistCommander) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "review <file>",
		Short: "Review a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := cmder.input(args[0])
			if err != nil {
				return err
			}

			var result assist.ReviewResult
			if err := cmder.call(cmd.Context(), assist.TaskReview, in, &result); err != nil {
				return err
			}
			if ok, err := cmder.printJSON(&result); ok {
				return err
			}

			md := ReviewMarkdown(in.Filename, &result)
			if raw {
				_, err := fmt.Fprint(cmder.out, md)
				return err
			}

			rendered, err := cliui.RenderMarkdown(md)
			if err != nil {
				cmder.logger.Debug("rendering review markdown", "error", err)
				rendered = md
			}
			_, err = fmt.Fprint(cmder.out, rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the review as plain markdown")

	return cmd
}

func newTestsCmd(cmder *assistCommander) *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "tests <file>",
		Short: "Generate tests for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := cmder.input(args[0])
			if err != nil {
				return err
			}

			var result assist.TestsResult
			if err := cmder.call(cmd.Context(), assist.TaskTests, in, &result); err != nil {
				return err
			}
			if ok, err := cmder.printJSON(&result); ok {
				return err
			}

			if outFile != "" {
				return cmder.writeCode(outFile, result.Code)
			}
			if result.Framework != "" {
				fmt.Fprintf(cmder.errOut, "  %s %s\n", cliui.KeyStyle.Render("framework"), cliui.ValueStyle.Render(result.Framework))
			}
			return printCode(cmder.out, result.Code)
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Write the generated tests to this file")

	return cmd
}

func newRefactorCmd(cmder *assistCommander) *cobra.Command {
	var (
		instruction string
		write       bool
	)

	cmd := &cobra.Command{
		Use:   "refactor <file>",
		Short: "Refactor a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := cmder.input(args[0])
			if err != nil {
				return err
			}
			in.Instruction = instruction

			var result assist.RefactorResult
			if err := cmder.call(cmd.Context(), assist.TaskRefactor, in, &result); err != nil {
				return err
			}
			if ok, err := cmder.printJSON(&result); ok {
				return err
			}

			if result.Explanation != "" {
				fmt.Fprintf(cmder.errOut, "%s\n\n", cliui.DimStyle.Render(result.Explanation))
			}
			if write {
				return cmder.writeCode(args[0], result.Code)
			}
			return printCode(cmder.out, result.Code)
		},
	}

	cmd.Flags().StringVarP(&instruction, "instruction", "i", "", "What the refactor should achieve")
	cmd.Flags().BoolVarP(&write, "write", "w", false, "Overwrite the file with the refactored code")

	return cmd
}

func newCompleteCmd(cmder *assistCommander) *cobra.Command {
	var line int

	cmd := &cobra.Command{
		Use:   "complete <file>",
		Short: "Complete code at a line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := cmder.input(args[0])
			if err != nil {
				return err
			}
			in.Prefix, in.Suffix = SplitAtLine(in.Code, line)
			in.Code = ""

			var result assist.CompletionResult
			if err := cmder.call(cmd.Context(), assist.TaskComplete, in, &result); err != nil {
				return err
			}
			if ok, err := cmder.printJSON(&result); ok {
				return err
			}
			return printCode(cmder.out, result.Completion)
		},
	}

	cmd.Flags().IntVarP(&line, "line", "n", 0, "1-based line to complete after (default: end of file)")

	return cmd
}

// SplitAtLine splits code after its line-th line. Lines outside the file
// split at the end.
func SplitAtLine(code string, line int) (prefix, suffix string) {
	if line <= 0 {
		return code, ""
	}

	offset := 0
	for i := 0; i < line; i++ {
		next := strings.IndexByte(code[offset:], '\n')
		if next < 0 {
			return code, ""
		}
		offset += next + 1
	}
	return code[:offset], code[offset:]
}

// ReviewMarkdown formats a review as markdown for rendering.
func ReviewMarkdown(filename string, result *assist.ReviewResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Review of `%s`\n\n", filename)
	fmt.Fprintf(&b, "**Score:** %d/10\n\n", result.Score)
	if result.Summary != "" {
		fmt.Fprintf(&b, "%s\n\n", result.Summary)
	}

	if len(result.Comments) == 0 {
		return b.String()
	}

	b.WriteString("## Comments\n\n")
	for _, c := range result.Comments {
		b.WriteString("- ")
		if c.Line > 0 {
			fmt.Fprintf(&b, "**L%d** ", c.Line)
		}
		if c.Category != "" {
			fmt.Fprintf(&b, "_%s_ ", c.Category)
		}
		b.WriteString(c.Comment)
		b.WriteString("\n")
		if c.Suggestion != "" {
			fmt.Fprintf(&b, "  - Suggestion: %s\n", c.Suggestion)
		}
	}
	b.WriteString("\n")

	return b.String()
}

func (c *assistCommander) writeCode(path, code string) error {
	if err := os.WriteFile(path, []byte(ensureNewline(code)), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(c.errOut, "  %s wrote %s\n", cliui.SuccessMark, cliui.NameStyle.Render(path))
	return nil
}

func printCode(w io.Writer, code string) error {
	_, err := io.WriteString(w, ensureNewline(code))
	return err
}

func ensureNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
