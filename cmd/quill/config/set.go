package configcmder

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/quill/pkg/cliui"
	"github.com/papercomputeco/quill/pkg/config"
)

const setLongDesc string = `Set a configuration value.

Sets the given key to the provided value in config.toml in the .quill/
directory. Run "quill config init" first if no .quill/ directory exists.

Examples:
  quill config set relay.upstream https://openrouter.ai/api/v1
  quill config set relay.api_key sk-...
  quill config set client.tick_ms 20`

const setShortDesc string = "Set a configuration value"

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: setShortDesc,
		Long:  setLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			key, value := args[0], args[1]
			if err := validateKey(key); err != nil {
				return err
			}

			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cfger.GetTarget() == "" {
				return errors.New("no .quill directory found, run \"quill config init\" first")
			}

			if err := cfger.SetConfigValue(key, value); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printTarget(out, cfger)
			fmt.Fprintf(out, "  %s Set %s = %s\n\n",
				cliui.SuccessMark,
				cliui.KeyStyle.Render(key),
				displayValue(key, value),
			)
			return nil
		},
		ValidArgsFunction: completeKeys,
	}

	return cmd
}
