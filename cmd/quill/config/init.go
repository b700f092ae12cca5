package configcmder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/quill/pkg/cliui"
	"github.com/papercomputeco/quill/pkg/config"
	"github.com/papercomputeco/quill/pkg/dotdir"
)

const initLongDesc string = `Initialize a .quill/ directory with a config.toml.

By default the directory is created in the current working directory, where
it takes precedence over ~/.quill/. Use --global to create ~/.quill/ instead,
or the global --config-dir flag to pick any directory.

--preset seeds the relay upstream and model for a known gateway:
  openai, openrouter, ollama

Examples:
  quill config init
  quill config init --preset ollama
  quill config init --global --preset openrouter`

const initShortDesc string = "Initialize a .quill/ directory and config"

func newInitCmd() *cobra.Command {
	var (
		preset string
		global bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			cfg := config.NewDefaultConfig()
			if preset != "" {
				var err error
				cfg, err = config.PresetConfig(preset)
				if err != nil {
					return err
				}
			}

			dir, err := initDir(configDir, global)
			if err != nil {
				return err
			}

			cfger, err := config.NewConfiger(dir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			path := cfger.GetTarget()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("checking %s: %w", path, err)
			}

			if err := cfger.SaveConfig(cfg); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Initialized %s\n\n", cliui.SuccessMark, cliui.NameStyle.Render(path))
			return nil
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Gateway preset ("+strings.Join(config.ValidPresetNames(), ", ")+")")
	cmd.Flags().BoolVar(&global, "global", false, "Initialize ~/.quill instead of ./.quill")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config.toml")

	return cmd
}

// initDir creates and returns the directory the config is written to.
func initDir(configDir string, global bool) (string, error) {
	if configDir != "" {
		return configDir, nil
	}

	ddm := dotdir.NewManager()
	if global {
		return ddm.Init("")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return ddm.Init(filepath.Clean(cwd))
}
