package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List every registered function",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		for _, f := range a.Model().Functions() {
			if f.Description() != "" {
				fmt.Printf("%s\n    %s\n", f.Signature(), f.Description())
				continue
			}
			fmt.Println(f.Signature())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(functionsCmd)
}
