// Package configcmder provides the config command for managing persistent
// quill configuration stored in the .quill/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/quill/pkg/cliui"
	"github.com/papercomputeco/quill/pkg/config"
)

const configLongDesc string = `Manage persistent quill configuration.

Configuration is stored as config.toml in the .quill/ directory and provides
default values for command flags. CLI flags and QUILL_* environment variables
take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  relay.listen, relay.upstream, relay.model, relay.api_key, relay.persona,
  api.listen, storage.sqlite_path, storage.postgres_dsn,
  client.relay_target, client.api_target, client.tick_ms,
  eventstream.brokers, eventstream.topic

Use subcommands to initialize, get, set, or list configuration values:
  quill config init [--preset name]  Create .quill/config.toml
  quill config set <key> <value>     Set a configuration value
  quill config get <key>             Get a configuration value
  quill config list                  List all configuration values

Examples:
  quill config init --preset openrouter
  quill config set relay.model gpt-4o
  quill config get relay.upstream
  quill config list`

const configShortDesc string = "Manage persistent quill configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func validateKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func printTarget(w io.Writer, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}

// displayValue masks secrets and marks empty values.
func displayValue(key, value string) string {
	if value == "" {
		return cliui.DimStyle.Render("<not set>")
	}
	if config.IsSecretKey(key) {
		return cliui.ValueStyle.Render(cliui.Mask(value))
	}
	return cliui.ValueStyle.Render(value)
}
