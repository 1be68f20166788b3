package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/campground-crawler/internal/crawler"
)

// newCrawlCmd creates the 'crawl' subcommand, which runs one full pass and
// exits.
func newCrawlCmd() *cobra.Command {
	var fresh bool
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run one crawl pass from the stored checkpoint",
		Long: `Crawls every remaining grid cell starting at the stored checkpoint, then
deduplicates and upserts the collected campgrounds and resets the checkpoint.
Interrupting the command keeps the checkpoint at the last attempted page.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, fresh)
		},
	}
	cmd.Flags().BoolVar(&fresh, "fresh", false, "discard the stored checkpoint and start at the first cell")
	return cmd
}

func runCrawl(cmd *cobra.Command, fresh bool) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := a.Logger()
	if fresh {
		if err := a.Checkpoints().Save(cmd.Context(), crawler.DefaultCursor()); err != nil {
			return fmt.Errorf("reset checkpoint: %w", err)
		}
		logger.Info("Checkpoint reset, starting from the first cell")
	}

	summary, err := a.Dispatcher().RunCrawl(cmd.Context())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("Crawl interrupted, resume with the same command",
				zap.String("run_id", summary.RunID),
				zap.Int("raw_records", summary.RawRecords),
			)
			return nil
		}
		logError(a, "Crawl failed", err)
		return fmt.Errorf("run crawl: %w", err)
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
