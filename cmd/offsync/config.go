package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/offsync/internal/config"
	"github.com/mschirtzinger/offsync/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "setup",
	Short:   "Manage offsync configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the current settings",
	Long: `Write $OFFSYNC_HOME/config.toml with the effective settings, including
any environment or flag overrides. Use --force to replace an existing file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		path := filepath.Join(cfg.Home, config.FileName)

		if err := config.WriteFile(path, cfg, force); err != nil {
			if errors.Is(err, config.ErrConfigExists) {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			return err
		}
		fmt.Printf("%s Wrote %s\n", ui.RenderPass("✓"), path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if used := v.ConfigFileUsed(); used != "" {
			if _, err := os.Stat(used); err == nil {
				fmt.Printf("# loaded from %s\n", used)
			} else {
				fmt.Printf("# %s not found; showing defaults\n", used)
			}
		}
		return cfg.Encode(os.Stdout)
	},
}

func init() {
	configInitCmd.Flags().BoolP("force", "f", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
