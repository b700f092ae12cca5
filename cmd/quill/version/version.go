// Package versioncmder
package versioncmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/quill/pkg/utils"
)

type VersionCommander struct{}

func NewVersionCmd() *cobra.Command {
	cmder := &VersionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "displays version",
		Long:  "displays the version of this CLI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			short, _ := cmd.Flags().GetBool("short")
			return cmder.run(cmd, short)
		},
	}

	cmd.Flags().Bool("short", false, "Print only the version")

	return cmd
}

func (c *VersionCommander) run(cmd *cobra.Command, short bool) error {
	if short {
		fmt.Fprintln(cmd.OutOrStdout(), utils.Version)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), utils.VersionString())
	return nil
}
