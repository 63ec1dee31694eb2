package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contriblens/contriblens/internal/aggregate"
	"github.com/contriblens/contriblens/internal/classify"
	apperrors "github.com/contriblens/contriblens/internal/errors"
	"github.com/contriblens/contriblens/internal/git"
	"github.com/contriblens/contriblens/internal/kvstore"
	"github.com/contriblens/contriblens/internal/output"
	"github.com/contriblens/contriblens/internal/tracker"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [repo-path]",
	Short: "Fold a repository's commit history into per-author statistics",
	Long: `Reads the commit history of a git repository, extracts issue tracker
ticket references from commit messages, classifies them against the
configured tracker (with a persistent on-disk cache), and prints a
per-author report.

Examples:
  clens analyze                       # analyze the repo in the working directory
  clens analyze ~/src/editor --since 2024-01-01
  clens analyze --format json > report.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("since", "", "only include commits authored on or after this date (YYYY-MM-DD)")
	analyzeCmd.Flags().String("until", "", "only include commits authored on or before this date (YYYY-MM-DD)")
	analyzeCmd.Flags().String("format", "table", "output format: table, json, csv")
	analyzeCmd.Flags().StringP("out", "o", "", "write the report to a file instead of stdout")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repoRoot := "."
	if len(args) > 0 {
		repoRoot = args[0]
	}

	from, err := parseDateFlag(cmd, "since")
	if err != nil {
		return err
	}
	to, err := parseDateFlag(cmd, "until")
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	formatter, err := output.NewFormatter(output.Format(format))
	if err != nil {
		return err
	}

	client, err := buildTrackerClient()
	if err != nil {
		return err
	}

	cache, err := classify.NewCache(classify.Options{
		Directory:    cfg.Cache.Directory,
		Backend:      kvstore.Backend(cfg.Cache.Backend),
		FetchTimeout: cfg.Tracker.Timeout,
	}, client, logger)
	if err != nil {
		return fmt.Errorf("failed to open classification cache: %w", err)
	}
	defer func() {
		if err := cache.Flush(); err != nil {
			logger.WithError(err).Warn("Failed to flush classification cache")
		}
		if err := cache.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close classification cache")
		}
	}()
	if cache.Degraded() {
		logger.Warn("Persistent cache unavailable, classifications will not survive this run")
	}

	engine := aggregate.NewEngine(cache, cfg.Analysis.Workers, logger)
	source := git.NewCLISource(logger)

	start := time.Now()
	result, err := engine.Run(ctx, source, repoRoot, from, to)
	if err != nil {
		if tracker.IsAuth(err) {
			return apperrors.Wrap(err, apperrors.ErrorTypeConfig, apperrors.SeverityCritical,
				"tracker rejected the configured credentials; check TRACKER_TOKEN")
		}
		return fmt.Errorf("analysis failed: %w", err)
	}
	logger.WithField("duration", time.Since(start)).Debug("Analysis complete")

	w := cmd.OutOrStdout()
	if outPath, _ := cmd.Flags().GetString("out"); outPath != "" {
		file, err := os.Create(outPath)
		if err != nil {
			return apperrors.FileSystemError(err, fmt.Sprintf("failed to create report file %s", outPath))
		}
		defer file.Close()
		w = file
	}

	return formatter.Format(result, w)
}

// buildTrackerClient constructs the issue tracker client selected by the
// configuration. An unknown backend is a configuration error, not a fallback.
func buildTrackerClient() (tracker.Client, error) {
	switch cfg.Tracker.Backend {
	case "youtrack", "":
		if cfg.Tracker.BaseURL == "" {
			return nil, apperrors.ConfigError("youtrack tracker requires a base URL; set TRACKER_URL or tracker.base_url")
		}
		return tracker.NewYouTrackClient(cfg.Tracker.BaseURL, cfg.Tracker.Token, cfg.Tracker.Timeout, logger), nil
	case "github":
		if len(cfg.Tracker.Projects) == 0 {
			return nil, apperrors.ConfigError("github tracker requires a project map; set tracker.projects (code -> owner/repo)")
		}
		return tracker.NewGitHubClient(cfg.Tracker.Token, cfg.Tracker.RateLimit, cfg.Tracker.Projects, logger), nil
	default:
		return nil, apperrors.ConfigErrorf("unknown tracker backend %q (expected youtrack or github)", cfg.Tracker.Backend)
	}
}

func parseDateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	value, _ := cmd.Flags().GetString(name)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, apperrors.ValidationErrorf("invalid --%s date %q (expected YYYY-MM-DD)", name, value)
	}
	return t, nil
}
