package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goflagship-sdk/flagship"
	"github.com/TimurManjosov/goflagship-sdk/internal/cli"
	"github.com/TimurManjosov/goflagship-sdk/internal/validation"
)

var trackFlush bool

var trackCmd = &cobra.Command{
	Use:   "track <event> [key=value...]",
	Short: "Track an event",
	Long: `Record an event with an optional payload. The current context is attached.

Events are written to the data directory and uploaded in batches. Use
--flush to upload right away.

Examples:
  flagship track signup
  flagship track purchase amount=12.5 currency=EUR --flush`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if res := validation.ValidateEventName(args[0]); !res.Valid {
			return fmt.Errorf("invalid event: %s", res.Error())
		}
		payload, err := cli.ParseAssignments(args[1:])
		if err != nil {
			return err
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

		if err := c.Track(args[0], payload); err != nil {
			return fmt.Errorf("failed to track event: %w", err)
		}
		if trackFlush {
			if err := flushAndWait(c); err != nil {
				return err
			}
		}

		printf(cmd, "Tracked %s\n", args[0])
		return nil
	},
}

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Upload all tracked events",
	Long: `Seal pending events into a batch and upload every batch on disk.

Example:
  flagship flush`,
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

		if err := flushAndWait(c); err != nil {
			return err
		}
		printf(cmd, "All events uploaded\n")
		return nil
	},
}

func flushAndWait(c *flagship.Client) error {
	if err := c.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	ctx, cancel := commandContext()
	defer cancel()
	err := waitDrained(ctx, func(context.Context) (int, error) {
		events, batches, err := c.Backlog()
		return events + batches, err
	})
	if err != nil {
		return fmt.Errorf("upload incomplete, events stay on disk: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(flushCmd)

	trackCmd.Flags().BoolVar(&trackFlush, "flush", false, "Upload the event immediately")
}
