package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/contriblens/contriblens/internal/config"
	apperrors "github.com/contriblens/contriblens/internal/errors"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage ContribLens configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file to ~/.contriblens/config.yaml",
	RunE:  runConfigInit,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "tracker:\n")
	fmt.Fprintf(w, "  backend:    %s\n", cfg.Tracker.Backend)
	fmt.Fprintf(w, "  base_url:   %s\n", cfg.Tracker.BaseURL)
	fmt.Fprintf(w, "  token:      %s\n", maskToken(cfg.Tracker.Token))
	fmt.Fprintf(w, "  rate_limit: %d\n", cfg.Tracker.RateLimit)
	fmt.Fprintf(w, "  timeout:    %s\n", cfg.Tracker.Timeout)
	if len(cfg.Tracker.Projects) > 0 {
		fmt.Fprintf(w, "  projects:\n")
		for code, repo := range cfg.Tracker.Projects {
			fmt.Fprintf(w, "    %s: %s\n", code, repo)
		}
	}
	fmt.Fprintf(w, "cache:\n")
	fmt.Fprintf(w, "  directory: %s\n", cfg.Cache.Directory)
	fmt.Fprintf(w, "  backend:   %s\n", cfg.Cache.Backend)
	fmt.Fprintf(w, "analysis:\n")
	fmt.Fprintf(w, "  workers: %d\n", cfg.Analysis.Workers)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return apperrors.FileSystemError(err, "failed to resolve home directory")
	}
	path := filepath.Join(homeDir, ".contriblens", "config.yaml")

	if _, err := os.Stat(path); err == nil {
		return apperrors.ConfigErrorf("config file already exists at %s", path)
	}

	if err := config.Default().Save(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote default config to %s\n", path)
	return nil
}

// maskToken hides all but the last four characters of a credential
func maskToken(token string) string {
	if token == "" {
		return "(not set)"
	}
	if len(token) <= 4 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}
