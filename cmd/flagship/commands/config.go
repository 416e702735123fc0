package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goflagship-sdk/internal/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage flagship CLI configuration file.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long: `Create a default configuration file at ~/.flagship/config.yaml

Example:
  flagship config init`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := cli.InitConfig(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		configPath, _ := cli.GetConfigPath()
		fmt.Printf("Configuration file created at: %s\n", configPath)
		fmt.Println("\nPlease edit the file to set your client secrets and backend URLs.")
		fmt.Println("Example:")
		fmt.Println("  flagship config set prod.client_secret my-secret")

		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration",
	Long: `Display the current configuration.

Example:
  flagship config list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		fmt.Printf("Default Profile: %s\n\n", cfg.DefaultProfile)
		fmt.Println("Profiles:")
		for _, name := range cfg.ProfileNames() {
			p := cfg.Profiles[name]
			fmt.Printf("  %s:\n", name)
			fmt.Printf("    resolve_url: %s\n", p.ResolveURL)
			fmt.Printf("    events_url: %s\n", p.EventsURL)
			// Mask client secret for security
			fmt.Printf("    client_secret: %s\n", cli.MaskSecret(p.ClientSecret))
			if p.DataDir != "" {
				fmt.Printf("    data_dir: %s\n", p.DataDir)
			}
			if len(p.Flags) > 0 {
				fmt.Printf("    flags: %s\n", strings.Join(p.Flags, ","))
			}
		}

		return nil
	},
}

func splitProfileKey(arg string) (string, string, error) {
	name, key, ok := strings.Cut(arg, ".")
	if !ok || name == "" || key == "" {
		return "", "", fmt.Errorf("invalid key format, expected 'profile.key' (e.g., 'local.resolve_url')")
	}
	return name, key, nil
}

var configGetCmd = &cobra.Command{
	Use:   "get <profile.key>",
	Short: "Get a configuration value",
	Long: `Get a specific configuration value.

Examples:
  flagship config get local.resolve_url
  flagship config get prod.client_secret`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		name, key, err := splitProfileKey(args[0])
		if err != nil {
			return err
		}

		p, ok := cfg.Profiles[name]
		if !ok {
			return fmt.Errorf("profile '%s' not found", name)
		}

		v, err := p.Get(key)
		if err != nil {
			return err
		}
		fmt.Println(v)

		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <profile.key> <value>",
	Short: "Set a configuration value",
	Long: `Set a specific configuration value. The special key "default" selects
the default profile.

Examples:
  flagship config set local.resolve_url http://localhost:8080
  flagship config set prod.client_secret my-secret
  flagship config set prod.flags banner,checkout
  flagship config set default prod`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if args[0] == "default" {
			if _, ok := cfg.Profiles[args[1]]; !ok {
				return fmt.Errorf("profile '%s' not found", args[1])
			}
			cfg.DefaultProfile = args[1]
		} else {
			name, key, err := splitProfileKey(args[0])
			if err != nil {
				return err
			}

			// Create profile if it doesn't exist
			p := cfg.Profiles[name]
			if err := p.Set(key, args[1]); err != nil {
				return err
			}
			cfg.Profiles[name] = p
		}

		if err := cli.SaveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Printf("Successfully set %s\n", args[0])

		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}
