package commands

import (
	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goflagship-sdk/internal/cli"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Show the evaluation context",
	Long: `Print the evaluation context the SDK would resolve with, including the
persisted visitor id.

Example:
  flagship context --context country=SE`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		c, err := openClient()
		if err != nil {
			return err
		}
		defer func() {
			if serr := c.Stop(); serr != nil && err == nil {
				err = serr
			}
		}()

		if !quiet {
			return cli.PrintContext(cmd.OutOrStdout(), c.Context(), cli.OutputFormat(format))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(contextCmd)
}
