package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/rirakoi/internal/config"
	"github.com/spf13/cobra"
)

var setupFlags struct {
	project bool
	force   bool
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create rirakoi configuration file",
	Long: `Create a rirakoi configuration file with sensible defaults.

By default, creates a global config at ~/.config/rirakoi/rirakoi.yml.
Use --project to create a project-local config in the current directory.`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().BoolVarP(&setupFlags.project, "project", "p", false, "Create config in current directory instead of global location")
	setupCmd.Flags().BoolVarP(&setupFlags.force, "force", "f", false, "Overwrite existing config file")
}

func runSetup(cmd *cobra.Command, args []string) error {
	// Determine target path
	targetPath := config.GlobalPath()
	if setupFlags.project {
		targetPath = config.ProjectPath()
	}

	if !setupFlags.force && fileExists(targetPath) {
		return fmt.Errorf("config file already exists at %s\n\nUse --force to overwrite", targetPath)
	}

	cfg := defaultConfig()

	var err error
	if setupFlags.project {
		err = config.WriteProject(cfg)
	} else {
		err = config.WriteGlobal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Config written to: %s\n\n", targetPath)
	fmt.Fprintln(cmd.OutOrStdout(), "Run 'rirakoi chat' to get started.")
	return nil
}

func defaultConfig() *config.Config {
	return &config.Config{
		APIBaseURL:   "http://127.0.0.1:8000",
		CustomerID:   "1",
		UserID:       "1",
		Timeout:      15 * time.Second,
		DataDir:      ".rirakoi",
		CacheBackend: config.CacheNATS,
		RedisAddr:    "localhost:6379",
		LogLevel:     "info",
	}
}

// fileExists checks if a file exists (helper for setup command).
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
