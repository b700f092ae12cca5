// Package quillcmder
package quillcmder

import (
	"github.com/spf13/cobra"

	assistcmder "github.com/papercomputeco/quill/cmd/quill/assist"
	chatcmder "github.com/papercomputeco/quill/cmd/quill/chat"
	configcmder "github.com/papercomputeco/quill/cmd/quill/config"
	servecmder "github.com/papercomputeco/quill/cmd/quill/serve"
	versioncmder "github.com/papercomputeco/quill/cmd/quill/version"
)

const quillLongDesc string = `Quill is a streaming coding assistant behind an OpenAI-compatible relay.

Run services using:
  quill serve relay    Run the relay server
  quill serve api      Run the transcript API server
  quill serve          Run both servers together

Talk to the relay using:
  quill chat           Interactive coding chat
  quill assist         One-shot lint, review, tests, refactor and completion

Manage settings with "quill config".`

const quillShortDesc string = "Quill - streaming coding assistant"

func NewQuillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "quill",
		Short:        quillShortDesc,
		Long:         quillLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .quill/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(assistcmder.NewAssistCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
