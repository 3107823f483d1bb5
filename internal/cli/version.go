package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/csso/fngraph/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the fngraph version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fngraph %s\n", version.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
