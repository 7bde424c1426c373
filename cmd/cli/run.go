package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/iwara-dl-go/internal/app"
	"github.com/yourusername/iwara-dl-go/internal/domain"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Log in, list videos and download them",
	Long: `Log in once, list one or more pages of videos and download every video with
bounded concurrency. Failed transient downloads are retried after a delay.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := listParamsFromFlags(cmd)
		if err != nil {
			return err
		}
		pages, _ := cmd.Flags().GetInt("pages")
		limitSteps, _ := cmd.Flags().GetInt("limit-steps")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		s.serveStatus(ctx, metricsAddr)

		if err := s.login(ctx); err != nil {
			return err
		}

		var summary *app.RunSummary
		if pages > 1 || limitSteps > 1 {
			summary, err = s.orchestrator.RunPages(ctx, params, pages, limitSteps)
		} else {
			summary, err = s.orchestrator.Run(ctx, params)
		}
		if summary != nil {
			printSummary(summary)
			s.printLedgerStats()
		}
		if err != nil && ctx.Err() == nil {
			return err
		}
		if ctx.Err() != nil {
			s.logAdapter.Base().Warn("Run interrupted", zap.Error(ctx.Err()))
		}
		return nil
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [video-id]",
	Short: "Download a single video by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := s.login(ctx); err != nil {
			return err
		}

		summary, err := s.orchestrator.FetchOne(ctx, args[0])
		if err != nil {
			return err
		}
		printSummary(summary)
		if summary.Succeeded == 0 {
			return fmt.Errorf("video %s was not downloaded", args[0])
		}
		return nil
	},
}

func init() {
	defaults := domain.DefaultListParams()
	runCmd.Flags().String("sort", string(defaults.Sort), "Sort order (date, trending, popularity, views, likes)")
	runCmd.Flags().String("rating", string(defaults.Rating), "Rating filter (all, general, ecchi)")
	runCmd.Flags().Int("page", defaults.Page, "First page to list")
	runCmd.Flags().Int("limit", defaults.Limit, "Videos per page")
	runCmd.Flags().Bool("subscribed", false, "Only list videos from subscribed users")
	runCmd.Flags().Int("pages", 1, "Number of consecutive pages to process")
	runCmd.Flags().Int("limit-steps", 1, "Fetch each page this many times with growing limits")
	runCmd.Flags().String("metrics-addr", "", "Serve /metrics, /health and the ledger API on this address during the run (e.g. :9090)")
}

// listParamsFromFlags builds and validates the listing parameters
func listParamsFromFlags(cmd *cobra.Command) (domain.ListParams, error) {
	params := domain.DefaultListParams()
	sortStr, _ := cmd.Flags().GetString("sort")
	ratingStr, _ := cmd.Flags().GetString("rating")
	params.Sort = domain.ListSort(sortStr)
	params.Rating = domain.ListRating(ratingStr)
	params.Page, _ = cmd.Flags().GetInt("page")
	params.Limit, _ = cmd.Flags().GetInt("limit")
	params.Subscribed, _ = cmd.Flags().GetBool("subscribed")

	if err := params.Validate(); err != nil {
		return params, err
	}
	return params, nil
}

func printSummary(summary *app.RunSummary) {
	fmt.Println("Run Summary:")
	fmt.Printf("  Run ID:     %s\n", summary.RunID)
	fmt.Printf("  Listed:     %d\n", summary.Listed)
	fmt.Printf("  Skipped:    %d\n", summary.Skipped)
	fmt.Printf("  Succeeded:  %d\n", summary.Succeeded)
	fmt.Printf("  Failed:     %d\n", summary.Failed)
	fmt.Printf("  Requeued:   %d\n", summary.Requeued)
	fmt.Printf("  Abandoned:  %d\n", summary.Abandoned)
	fmt.Printf("  Duration:   %s\n", summary.Duration.Round(time.Millisecond))
}

func (s *session) printLedgerStats() {
	stats, err := s.ledger.Stats()
	if err != nil {
		s.logAdapter.LogError("Failed to read ledger stats", zap.Error(err))
		return
	}
	fmt.Printf("Ledger: %d videos, %d downloaded, %d failed (%s)\n",
		stats.Total, stats.Succeeded, stats.Failed, s.ledger.Path())
}

