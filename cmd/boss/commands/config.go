package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/boss/config"
	"github.com/teranos/boss/errors"
	"github.com/teranos/boss/sym"
)

// ConfigCmd represents the config command
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: sym.Config + " Show, create or check configuration",
	Long: sym.Config + ` config — Show, create or check boss configuration

Configuration sources (in order of precedence):
1. Environment variables (BOSS_* prefix, e.g. BOSS_BOSS_BATCH_SIZE;
   BOSS_DATABASE_DSN or DATABASE_URL for PostgreSQL)
2. Project config (./boss.toml, searched upwards)
3. User config (~/.boss/config.toml)
4. System config (/etc/boss/config.toml)
5. Default values

--config <file> replaces the file cascade with a single file.

Examples:
  boss config show                # Show effective configuration
  boss config show --format json  # Show configuration as JSON
  boss config init                # Write defaults to ./boss.toml
  boss config check boss.toml     # Report unknown keys`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with default values",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configCheckCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Validate a config file and report unknown keys",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigCheck,
}

var (
	configFormat string
	configForce  bool
)

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configInitCmd)
	ConfigCmd.AddCommand(configCheckCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to JSON")
		}
		fmt.Fprintln(out, string(data))

	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Fprintf(out, "# boss configuration\n%s", data)

	case "toml":
		data, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "# boss configuration\n%s", data)

	default:
		return errors.NewInvalidRequestError("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "boss.toml"
	if len(args) == 1 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		return errors.WithHint(
			errors.NewConflictError("%s already exists", path),
			"use --force to overwrite it",
		)
	}

	if err := config.Write(config.Default(), path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote default configuration to %s\n", sym.Config, path)
	return nil
}

func runConfigCheck(cmd *cobra.Command, args []string) error {
	path := ConfigPath
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		path = "boss.toml"
	}

	unknown, err := config.CheckFile(path)
	if err != nil {
		return err
	}
	if _, err := config.LoadFromFile(path); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}

	if len(unknown) > 0 {
		for _, key := range unknown {
			fmt.Fprintf(cmd.OutOrStdout(), "✗ unknown key: %s\n", key)
		}
		return errors.Newf("%s has %d unknown key(s)", path, len(unknown))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid\n", path)
	return nil
}
