package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/symbiflow/sfbuild/internal/version"
)

var versionJSON bool

// versionCmd prints detailed version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		if versionJSON {
			fmt.Fprintln(cmd.OutOrStdout(), version.JSON())
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "output version information as JSON")
	rootCmd.AddCommand(versionCmd)
}
