// Package chatcmder provides the chat command for interactive coding chat
// through the quill relay.
package chatcmder

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/quill/pkg/cliui"
	"github.com/papercomputeco/quill/pkg/client"
	"github.com/papercomputeco/quill/pkg/config"
	"github.com/papercomputeco/quill/pkg/dotdir"
	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/logger"
	"github.com/papercomputeco/quill/pkg/pipeline"
	"github.com/papercomputeco/quill/pkg/utils"
)

type chatCommander struct {
	relayTarget string
	apiTarget   string
	tickMs      uint
	language    string
	codeOnly    bool
	outFile     string
	fresh       bool
	from        string
	image       string
	configDir   string
	debug       bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	logger *slog.Logger
}

const chatLongDesc string = `Start an interactive coding chat through the quill relay.

Replies stream from the relay and are revealed at a fixed typewriter cadence
when stdout is a terminal. Press Ctrl+C while a reply is streaming to cancel
it; the cancelled exchange is left out of the history.

The conversation is saved to .quill/session.json after every reply and
resumed on the next run. Use --new to start over, or --from <hash> to resume
from a stored transcript node via the history API.

With --code only the fenced code block of each reply is printed, once the
reply is complete. --out also writes that code to a file.

Examples:
  quill chat --language go
  quill chat --code --out main.go
  quill chat --from 3f9a1c2b7d4e`

const chatShortDesc string = "Interactive coding chat through the quill relay"

// exitCommand ends the chat loop.
const exitCommand = "/exit"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{
				config.FlagRelayTarget,
				config.FlagAPITarget,
				config.FlagTickMs,
			})

			cmder.relayTarget = v.GetString("client.relay_target")
			cmder.apiTarget = v.GetString("client.api_target")
			cmder.tickMs = v.GetUint("client.tick_ms")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagRelayTarget, &cmder.relayTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)
	config.AddUintFlag(cmd, config.Flags, config.FlagTickMs, &cmder.tickMs)
	cmd.Flags().StringVarP(&cmder.language, "language", "L", "", "Target programming language hint")
	cmd.Flags().BoolVar(&cmder.codeOnly, "code", false, "Print only the fenced code of each reply")
	cmd.Flags().StringVarP(&cmder.outFile, "out", "o", "", "Write the code of each reply to this file (implies --code)")
	cmd.Flags().BoolVar(&cmder.fresh, "new", false, "Discard the saved session and start a new conversation")
	cmd.Flags().StringVar(&cmder.from, "from", "", "Resume from a stored transcript node hash")
	cmd.Flags().StringVar(&cmder.image, "image", "", "Attach an image file or URL to the next message")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	c.logger = logger.New(
		logger.WithWriter(c.errOut),
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
	)
	if c.outFile != "" {
		c.codeOnly = true
	}

	state, err := c.loadSession(ctx)
	if err != nil {
		return err
	}

	image, err := loadImage(c.image)
	if err != nil {
		return err
	}

	relayClient := client.New(c.relayTarget, client.WithLogger(c.logger))
	session := pipeline.NewSession(
		pipeline.WithInterval(c.interval()),
		pipeline.WithExtractCode(c.codeOnly),
		pipeline.WithLogger(c.logger),
	)
	defer session.Cancel()

	c.printHeader(state)

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, cliui.UserPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == exitCommand {
			break
		}

		req := llm.ChatRequest{
			Messages: append(state.Messages, llm.NewTextMessage(llm.RoleUser, input)),
			Language: state.Language,
		}
		if image != "" {
			// Images align with messages; earlier turns carry none.
			req.Images = make([]*string, len(req.Messages))
			req.Images[len(req.Messages)-1] = &image
		}

		reply, err := c.exchange(ctx, session, relayClient, req)
		if err != nil {
			c.printError(err)
			continue
		}
		image = ""

		state.Messages = append(req.Messages, llm.NewTextMessage(llm.RoleAssistant, reply))
		if err := dotdir.NewManager().SaveSession(state, c.configDir); err != nil {
			c.logger.Debug("session not saved", "error", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// exchange streams one reply. It returns the raw reply text for the history.
// Ctrl+C cancels only the in-flight reply.
func (c *chatCommander) exchange(ctx context.Context, session *pipeline.Session, relayClient *client.Client, req llm.ChatRequest) (string, error) {
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	var (
		printed int
		code    string
	)
	cb := pipeline.Callbacks{
		OnFrame: func(shown string) {
			if c.codeOnly {
				return
			}
			fmt.Fprint(c.out, shown[printed:])
			printed = len(shown)
		},
		OnComplete: func(final string) {
			code = final
		},
	}

	open := func(ctx context.Context) (io.ReadCloser, error) {
		return relayClient.StreamChat(ctx, req)
	}

	if !c.codeOnly {
		fmt.Fprint(c.out, cliui.AssistantPrompt)
	}

	run := session.Start(runCtx, open, cb)
	var err error
	if c.codeOnly {
		err = cliui.Step(c.errOut, "generating", run.Wait)
	} else {
		err = run.Wait()
		fmt.Fprint(c.out, "\n\n")
	}

	if err != nil {
		if runCtx.Err() != nil && ctx.Err() == nil {
			return "", errCancelled
		}
		return "", err
	}

	if c.codeOnly {
		fmt.Fprintln(c.out, code)
	}
	if c.outFile != "" {
		if err := os.WriteFile(c.outFile, []byte(code), 0o644); err != nil {
			return "", fmt.Errorf("writing %s: %w", c.outFile, err)
		}
		fmt.Fprintf(c.errOut, "  %s wrote %s\n", cliui.SuccessMark, cliui.NameStyle.Render(c.outFile))
	}

	return run.Partial(), nil
}

var errCancelled = errors.New("reply cancelled")

func (c *chatCommander) printError(err error) {
	var (
		relayErr *client.Error
		abortErr *pipeline.AbortError
	)
	switch {
	case errors.Is(err, errCancelled):
		fmt.Fprintf(c.errOut, "  %s\n\n", cliui.DimStyle.Render("(cancelled)"))
	case errors.As(err, &relayErr) && relayErr.RateLimited():
		fmt.Fprintf(c.errOut, "  %s rate limited by the AI gateway, try again shortly\n\n", cliui.FailMark)
	case errors.As(err, &abortErr):
		fmt.Fprintf(c.errOut, "  %s connection lost after %d characters: %v\n\n",
			cliui.FailMark, len(abortErr.Partial), abortErr.Err)
	default:
		fmt.Fprintf(c.errOut, "  %s %v\n\n", cliui.FailMark, err)
	}
}

func (c *chatCommander) loadSession(ctx context.Context) (*dotdir.SessionState, error) {
	ddm := dotdir.NewManager()

	if c.fresh {
		if err := ddm.ClearSession(c.configDir); err != nil {
			return nil, fmt.Errorf("clearing session: %w", err)
		}
	}

	state := &dotdir.SessionState{}
	switch {
	case c.from != "":
		history, err := client.New(c.apiTarget, client.WithLogger(c.logger)).History(ctx, c.from)
		if err != nil {
			return nil, fmt.Errorf("loading history %s: %w", c.from, err)
		}
		state.HeadHash = history.HeadHash
		state.Messages = history.ChatMessages()

	case !c.fresh:
		saved, err := ddm.LoadSession(c.configDir)
		if err != nil {
			return nil, fmt.Errorf("loading session: %w", err)
		}
		if saved != nil {
			state = saved
		}
	}

	if c.language != "" {
		state.Language = c.language
	}
	return state, nil
}

func (c *chatCommander) printHeader(state *dotdir.SessionState) {
	fmt.Fprintln(c.out)
	switch {
	case state.HeadHash != "":
		fmt.Fprintf(c.out, "  %s Resuming from %s %s\n",
			cliui.SuccessMark,
			cliui.HashStyle.Render(utils.ShortHash(state.HeadHash)),
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(state.Messages))),
		)
	case len(state.Messages) > 0:
		fmt.Fprintf(c.out, "  %s Resuming saved session %s\n",
			cliui.SuccessMark,
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(state.Messages))),
		)
	default:
		fmt.Fprintf(c.out, "  %s New conversation\n", cliui.DimStyle.Render("●"))
	}

	if state.Language != "" {
		fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Language:"), cliui.NameStyle.Render(state.Language))
	}
	fmt.Fprintf(c.out, "  %s %s\n\n", cliui.KeyStyle.Render("Relay:"), cliui.DimStyle.Render(c.relayTarget))
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))
}

// interval is the typewriter tick. Output that is not a terminal is written
// as soon as it is decoded.
func (c *chatCommander) interval() time.Duration {
	f, ok := c.out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	return time.Duration(c.tickMs) * time.Millisecond
}

// loadImage returns ref unchanged when it is a URL, otherwise reads the file
// and returns it as a data URI.
func loadImage(ref string) (string, error) {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "data:") {
		return ref, nil
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}

	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
