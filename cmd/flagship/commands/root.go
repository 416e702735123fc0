package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goflagship-sdk/flagship"
	"github.com/TimurManjosov/goflagship-sdk/internal/cli"
)

var (
	// Global flags
	profile      string
	format       string
	contextPairs []string
	dataDir      string
	memoryStore  bool
	timeout      time.Duration
	quiet        bool
	verbose      bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "flagship",
	Short: "CLI tool for resolving feature flags and tracking events",
	Long: `Flagship drives the flagship SDK from the command line.

It resolves flags for an evaluation context, reads single flag values
(reporting them as applied), tracks events and flushes the event backlog.
State is kept in the data directory exactly as an application would.

Examples:
  flagship resolve --context country=SE
  flagship get banner.color --context user_id=42
  flagship track purchase amount=12.5 --flush
  flagship export -o flags.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "Profile from ~/.flagship/config.yaml (default: default_profile)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringArrayVarP(&contextPairs, "context", "c", nil, "Evaluation context entry key=value (repeatable)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "SDK data directory (default: profile data_dir or .flagship)")
	rootCmd.PersistentFlags().BoolVar(&memoryStore, "memory", false, "Keep SDK state in memory only")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Time to wait for the backend")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose output")
}

// openClient starts an SDK client for the selected profile and context
func openClient() (*flagship.Client, error) {
	cfg, err := cli.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	p, _, err := cli.GetProfile(cfg, profile)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	evalCtx, err := cli.ParseAssignments(contextPairs)
	if err != nil {
		return nil, err
	}

	logger := stdr.New(log.New(os.Stderr, "[flagship] ", log.LstdFlags))
	if verbose {
		stdr.SetVerbosity(1)
	}

	opts := flagship.Options{
		ClientSecret:   p.ClientSecret,
		ResolveURL:     p.ResolveURL,
		EventsURL:      p.EventsURL,
		Flags:          p.Flags,
		DataDir:        p.DataDir,
		HTTPTimeout:    timeout,
		InitialContext: evalCtx,
		Logger:         logger,
	}
	if dataDir != "" {
		opts.DataDir = dataDir
	}
	if memoryStore {
		opts.StoreType = flagship.StoreMemory
	}
	return flagship.New(opts)
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// waitDrained polls pending until it reports zero twice in a row
func waitDrained(ctx context.Context, pending func(context.Context) (int, error)) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	zeros := 0
	for {
		n, err := pending(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			zeros++
			if zeros == 2 {
				return nil
			}
		} else {
			zeros = 0
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%d item(s) still pending: %w", n, ctx.Err())
		case <-ticker.C:
		}
	}
}

func printf(cmd *cobra.Command, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), format, args...)
	}
}
