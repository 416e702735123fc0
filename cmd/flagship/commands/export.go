package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goflagship-sdk/flagship"
	"github.com/TimurManjosov/goflagship-sdk/internal/mockserver"
	"github.com/TimurManjosov/goflagship-sdk/internal/value"
)

var (
	exportOutput string
	exportCached bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export resolved flags as a mock server flags file",
	Long: `Resolve flags for the context and write them in the YAML format served
by flagship-mock, so a recorded resolution can be replayed locally.

Examples:
  flagship export --output flags.yaml
  flagship export --cached > flags.yaml`,
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
		if exportCached {
			c.Activate()
		} else if err := c.FetchAndActivate(ctx); err != nil {
			return fmt.Errorf("failed to resolve flags: %w", err)
		}

		flags := exportFlags(c.Resolution())
		data, err := mockserver.EncodeFlags(flags)
		if err != nil {
			return err
		}

		// Determine output destination
		if exportOutput == "" || exportOutput == "-" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(exportOutput, data, 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "Successfully exported %d flag(s) to %s\n", len(flags), exportOutput)
		}
		return nil
	},
}

func exportFlags(res *flagship.FlagResolution) []mockserver.Flag {
	if res == nil {
		return nil
	}
	flags := make([]mockserver.Flag, 0, len(res.Flags))
	for _, f := range res.Flags {
		flags = append(flags, mockserver.Flag{
			Name:      f.Flag,
			Variant:   f.Variant,
			Value:     value.PlainMap(f.Value),
			Reason:    string(f.Reason),
			SkipApply: !f.ShouldApply,
		})
	}
	return flags
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	exportCmd.Flags().BoolVar(&exportCached, "cached", false, "Export the persisted resolution instead of resolving")
}
