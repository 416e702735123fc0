package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goflagship-sdk/internal/cli"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve all flags for the context",
	Long: `Resolve flags for the evaluation context, persist the result and print it.

Examples:
  flagship resolve
  flagship resolve --context country=SE --format json`,
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

		ctx, cancel := commandContext()
		defer cancel()
		if err := c.FetchAndActivate(ctx); err != nil {
			return fmt.Errorf("failed to resolve flags: %w", err)
		}

		if !quiet {
			return cli.PrintFlags(cmd.OutOrStdout(), cli.FlagRows(c.Resolution()), cli.OutputFormat(format))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
