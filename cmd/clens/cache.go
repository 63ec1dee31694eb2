package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/contriblens/contriblens/internal/classify"
	apperrors "github.com/contriblens/contriblens/internal/errors"
	"github.com/contriblens/contriblens/internal/kvstore"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the persistent issue classification cache",
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cache location and size",
	RunE:  runCacheInfo,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached issue classifications",
	Long: `Deletes the on-disk classification stores. The next analysis run
refetches every referenced ticket from the tracker.`,
	RunE: runCacheClear,
}

var cacheFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Flush and verify the on-disk classification stores",
	Long: `Opens the persistent stores, forcing corruption recovery for any
damaged file, then flushes them to disk.`,
	RunE: runCacheFlush,
}

func init() {
	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheFlushCmd)
}

func runCacheInfo(cmd *cobra.Command, args []string) error {
	fmt.Fprintf(cmd.OutOrStdout(), "Directory: %s\n", cfg.Cache.Directory)
	fmt.Fprintf(cmd.OutOrStdout(), "Backend:   %s\n", cfg.Cache.Backend)

	entries, err := os.ReadDir(cfg.Cache.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(cmd.OutOrStdout(), "Cache is empty (directory does not exist yet)")
			return nil
		}
		return apperrors.FileSystemError(err, "failed to read cache directory")
	}

	var total int64
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %s  %d bytes\n", entry.Name(), info.Size())
		total += info.Size()
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Total: %d bytes\n", total)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	entries, err := os.ReadDir(cfg.Cache.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(cmd.OutOrStdout(), "Cache already empty")
			return nil
		}
		return apperrors.FileSystemError(err, "failed to read cache directory")
	}

	removed := 0
	for _, entry := range entries {
		path := filepath.Join(cfg.Cache.Directory, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return apperrors.FileSystemError(err, fmt.Sprintf("failed to remove %s", path))
		}
		removed++
	}

	logger.WithField("files", removed).Debug("Cleared classification cache")
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache file(s) from %s\n", removed, cfg.Cache.Directory)
	return nil
}

func runCacheFlush(cmd *cobra.Command, args []string) error {
	cache, err := classify.NewCache(classify.Options{
		Directory: cfg.Cache.Directory,
		Backend:   kvstore.Backend(cfg.Cache.Backend),
	}, nil, logger)
	if err != nil {
		return fmt.Errorf("failed to open classification cache: %w", err)
	}
	defer cache.Close()

	if err := cache.Flush(); err != nil {
		return apperrors.FileSystemError(err, "failed to flush classification cache")
	}
	if cache.Degraded() {
		fmt.Fprintln(cmd.OutOrStdout(), "Warning: one or more stores could not be recovered; running session-only")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Classification stores flushed")
	return nil
}
