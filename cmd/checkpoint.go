package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/campground-crawler/internal/crawler"
)

func newCheckpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or reset the stored crawl checkpoint",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the stored cursor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cursor, err := a.Checkpoints().Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load checkpoint: %w", err)
			}
			raw, err := crawler.EncodeCursor(cursor)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Reset the cursor to the first cell",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if a.Dispatcher().Running() {
				return errors.New("cannot reset while a crawl is running")
			}
			if err := a.Checkpoints().Save(cmd.Context(), crawler.DefaultCursor()); err != nil {
				return fmt.Errorf("reset checkpoint: %w", err)
			}
			a.Logger().Info("Checkpoint reset", zap.Stringer("cursor", crawler.DefaultCursor()))
			return nil
		},
	})
	return cmd
}
