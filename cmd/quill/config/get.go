package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/quill/pkg/cliui"
	"github.com/papercomputeco/quill/pkg/config"
)

const getLongDesc string = `Get a configuration value.

Reads the value for the given key from config.toml in the .quill/
directory. Secret values such as relay.api_key are masked unless
--reveal is given.

Examples:
  quill config get relay.upstream
  quill config get relay.api_key --reveal`

const getShortDesc string = "Get a configuration value"

func newGetCmd() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: getShortDesc,
		Long:  getLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			key := args[0]
			if err := validateKey(key); err != nil {
				return err
			}

			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			value, err := cfger.GetConfigValue(key)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if reveal {
				fmt.Fprintln(out, value)
				return nil
			}

			printTarget(out, cfger)
			fmt.Fprintf(out, "  %s  %s\n\n", cliui.KeyStyle.Render(key), displayValue(key, value))
			return nil
		},
		ValidArgsFunction: completeKeys,
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print only the raw value, including secrets")

	return cmd
}
