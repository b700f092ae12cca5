package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/quill/pkg/cliui"
	"github.com/papercomputeco/quill/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays every configuration key and its value from config.toml in the
.quill/ directory, with defaults filled in. Secrets are masked.

Examples:
  quill config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			out := cmd.OutOrStdout()
			if target := cfger.GetTarget(); target != "" {
				fmt.Fprintf(out, "Using config file: %s\n\n", target)
			} else {
				fmt.Fprint(out, "No config file found. Using default config.\n\n")
			}

			keys := config.ValidConfigKeys()

			// Find the longest key name for alignment.
			maxLen := 0
			for _, k := range keys {
				maxLen = max(maxLen, len(k))
			}

			for _, key := range keys {
				value, err := cfger.GetConfigValue(key)
				if err != nil {
					return err
				}

				switch {
				case value == "":
					fmt.Fprintf(out, "%-*s = <not set>\n", maxLen, key)
				case config.IsSecretKey(key):
					fmt.Fprintf(out, "%-*s = %q\n", maxLen, key, cliui.Mask(value))
				default:
					fmt.Fprintf(out, "%-*s = %q\n", maxLen, key, value)
				}
			}

			return nil
		},
	}

	return cmd
}
