// Package assistcmder provides the assist commands that run the relay's
// one-shot code tasks against local files.
package assistcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/quill/pkg/assist"
	"github.com/papercomputeco/quill/pkg/cliui"
	"github.com/papercomputeco/quill/pkg/client"
	"github.com/papercomputeco/quill/pkg/config"
	"github.com/papercomputeco/quill/pkg/logger"
)

// assistCommander holds the flags shared by every assist subcommand.
type assistCommander struct {
	relayTarget string
	language    string
	asJSON      bool
	debug       bool

	out    io.Writer
	errOut io.Writer

	logger *slog.Logger
	client *client.Client
}

const assistLongDesc string = `Run one-shot code tasks through the quill relay.

Each subcommand sends a source file to the relay's assist endpoint and prints
the structured result. The language is inferred from the file extension
unless --language is given.

  quill assist lint <file>       Report issues (--watch re-runs on save)
  quill assist review <file>     Review the file and render the result
  quill assist tests <file>      Generate a test file
  quill assist refactor <file>   Rewrite the file following --instruction
  quill assist complete <file>   Complete the code at --line`

const assistShortDesc string = "Run one-shot code tasks through the quill relay"

func NewAssistCmd() *cobra.Command {
	cmder := &assistCommander{}

	cmd := &cobra.Command{
		Use:   "assist",
		Short: assistShortDesc,
		Long:  assistLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagRelayTarget})

			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.relayTarget = v.GetString("client.relay_target")
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()
			cmder.logger = logger.New(
				logger.WithWriter(cmder.errOut),
				logger.WithDebug(cmder.debug),
				logger.WithPretty(true),
			)
			cmder.client = client.New(cmder.relayTarget, client.WithLogger(cmder.logger))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cmder.relayTarget, config.Flags[config.FlagRelayTarget].Name,
		config.NewDefaultConfig().Client.RelayTarget, config.Flags[config.FlagRelayTarget].Description)
	cmd.PersistentFlags().StringVarP(&cmder.language, "language", "L", "", "Source language (default: inferred from the file extension)")
	cmd.PersistentFlags().BoolVar(&cmder.asJSON, "json", false, "Print the raw JSON result")

	cmd.AddCommand(newLintCmd(cmder))
	cmd.AddCommand(newReviewCmd(cmder))
	cmd.AddCommand(newTestsCmd(cmder))
	cmd.AddCommand(newRefactorCmd(cmder))
	cmd.AddCommand(newCompleteCmd(cmder))

	return cmd
}

// input reads path into an assist.Input.
func (c *assistCommander) input(path string) (assist.Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return assist.Input{}, fmt.Errorf("reading %s: %w", path, err)
	}

	lang := c.language
	if lang == "" {
		lang = LanguageFor(path)
	}
	if lang == "" {
		return assist.Input{}, fmt.Errorf("cannot infer the language of %s, pass --language", path)
	}

	return assist.Input{
		Code:     string(data),
		Language: lang,
		Filename: filepath.Base(path),
	}, nil
}

// call runs task with a spinner on stderr and decodes the result into out.
func (c *assistCommander) call(ctx context.Context, task assist.Task, in assist.Input, out any) error {
	msg := fmt.Sprintf("%s %s", task, in.Filename)
	return cliui.Step(c.errOut, msg, func() error {
		return c.client.Assist(ctx, task, in, out)
	})
}

// printJSON writes v indented when --json is set and reports whether it did.
func (c *assistCommander) printJSON(v any) (bool, error) {
	if !c.asJSON {
		return false, nil
	}
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}

// languages maps file extensions to the language names sent to the model.
var languages = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".rs":    "rust",
	".java":  "java",
	".kt":    "kotlin",
	".rb":    "ruby",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".swift": "swift",
	".php":   "php",
	".sh":    "bash",
	".sql":   "sql",
	".html":  "html",
	".css":   "css",
	".lua":   "lua",
}

// LanguageFor infers a language name from path's extension, or "".
func LanguageFor(path string) string {
	return languages[strings.ToLower(filepath.Ext(path))]
}
