// Version command.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/panelhost/depot/pkg/depot"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "depot %s\n", depot.Version)
	},
}
