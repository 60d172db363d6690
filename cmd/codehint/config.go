package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"codehint/internal/config"
	"codehint/internal/transport"
)

var (
	configFormat   string
	configForce    bool
	configManifest bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage codehint configuration",
	Long:  "View and create configuration stored in .codehint/config.{json,toml}",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	Long: `Display the configuration after defaults, the config file and
CODEHINT_* environment overrides are merged.

Examples:
  codehint config show
  codehint config show --format toml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(dirFlag)
		if err != nil {
			return err
		}
		return showConfig(cmd.OutOrStdout(), cfg, configFormat)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := initConfig(dirFlag, configFormat, configForce)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		if configManifest {
			if path, err = initManifest(dirFlag, configForce); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		}
		return nil
	},
}

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "json", "Output format (json, toml)")
	configInitCmd.Flags().StringVar(&configFormat, "format", "json", "File format (json, toml)")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configInitCmd.Flags().BoolVar(&configManifest, "manifest", false, "Also write "+transport.ManifestFile+" listing the default definitions")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func showConfig(w io.Writer, cfg *config.Config, format string) error {
	switch format {
	case "json":
		return writeJSON(w, cfg)
	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// initConfig writes the defaults unless a config file already exists.
func initConfig(dir, format string, force bool) (string, error) {
	if !force {
		matches, _ := filepath.Glob(filepath.Join(dir, config.DirName, "config.*"))
		for _, m := range matches {
			if _, err := os.Stat(m); err == nil {
				return "", fmt.Errorf("%s already exists (use --force to overwrite)", m)
			}
		}
	}
	return config.DefaultConfig().Save(dir, format)
}

// initManifest writes an environment manifest at the workspace root so its
// definition paths resolve the same way as transport.local.definitions.
func initManifest(dir string, force bool) (string, error) {
	path := filepath.Join(dir, transport.ManifestFile)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	m := &transport.Manifest{
		Name:        "default",
		Definitions: config.DefaultConfig().Transport.Local.Definitions,
	}
	if err := transport.SaveManifest(path, m); err != nil {
		return "", err
	}
	return path, nil
}
