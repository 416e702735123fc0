package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goflagship-sdk/flagship"
	"github.com/TimurManjosov/goflagship-sdk/internal/cli"
	"github.com/TimurManjosov/goflagship-sdk/internal/value"
)

var (
	getCached  bool
	getDefault string
)

var getCmd = &cobra.Command{
	Use:   "get <flag[.path]>",
	Short: "Read a flag value",
	Long: `Read one flag value, or a field inside it, and report the flag as applied.

By default the flags are resolved first. With --cached the persisted
resolution from an earlier run is used instead.

Examples:
  flagship get banner
  flagship get banner.color --default '"red"'
  flagship get banner.size --cached --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		key := args[0]

		var def flagship.Value
		if getDefault != "" {
			if def, err = value.ParseJSON([]byte(getDefault)); err != nil {
				def = flagship.String(getDefault)
			}
		}

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
		if getCached {
			c.Activate()
		} else if err := c.FetchAndActivate(ctx); err != nil {
			return fmt.Errorf("failed to resolve flags: %w", err)
		}

		ev := c.GetValue(key, def)
		if err := waitDrained(ctx, c.PendingApplies); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: apply not confirmed, it will be retried on the next run: %v\n", err)
		}

		if !quiet {
			return cli.PrintEvaluation(cmd.OutOrStdout(), cli.NewEvaluationRow(key, ev), cli.OutputFormat(format))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)

	getCmd.Flags().BoolVar(&getCached, "cached", false, "Use the persisted resolution instead of resolving")
	getCmd.Flags().StringVar(&getDefault, "default", "", "Default value (JSON, or a plain string)")
}
