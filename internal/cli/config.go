package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/glorpus-work/pkgcatalog/internal/logger"
	"github.com/glorpus-work/pkgcatalog/pkg/config"
	"github.com/spf13/cobra"
)

// NewConfigCmd creates the config command with subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  "View and initialize pkgcatalog configuration",
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigTargetsCmd(),
		newConfigInitCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the effective configuration, defaults included, as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := cfg.ToYAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigTargetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List the repository and architecture pairs a sync processes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, TabWidth, ' ', 0)
			_, _ = fmt.Fprintln(tw, "REPOSITORY\tARCH")
			for _, t := range cfg.Targets() {
				_, _ = fmt.Fprintf(tw, "%s\t%s\n", t.Repository, t.Architecture)
			}
			return tw.Flush()
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var (
		force  bool
		mirror string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file",
		Long:  "Create a configuration file for the core and extra repositories. A .toml path writes TOML.",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runConfigInit(force, mirror)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration file")
	cmd.Flags().StringVar(&mirror, "mirror", "https://geo.mirror.pkgbuild.com", "Mirror base URL")

	return cmd
}

func runConfigInit(force bool, mirror string) error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite): %w", configPath, os.ErrExist)
	}

	cfg := config.DefaultConfig()
	cfg.Mirror = mirror
	cfg.Repositories = map[string][]string{
		"core":  {"x86_64"},
		"extra": {"x86_64"},
	}
	if err := cfg.SaveConfig(configPath); err != nil {
		return fmt.Errorf("failed to save default configuration: %w", err)
	}

	logger.Info("Configuration file created", logger.Fields{"path": configPath})
	return nil
}
