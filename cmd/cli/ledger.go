package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the download ledger",
}

var ledgerStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ledger statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, err := newLedgerOnly()
		if err != nil {
			return err
		}
		stats, err := ledger.Stats()
		if err != nil {
			return err
		}

		fmt.Println("Ledger Statistics:")
		fmt.Printf("  File:       %s\n", ledger.Path())
		fmt.Printf("  Total:      %d\n", stats.Total)
		fmt.Printf("  Downloaded: %d\n", stats.Succeeded)
		fmt.Printf("  Failed:     %d\n", stats.Failed)
		return nil
	},
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ledger records",
	RunE: func(cmd *cobra.Command, args []string) error {
		failedOnly, _ := cmd.Flags().GetBool("failed")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		ledger, err := newLedgerOnly()
		if err != nil {
			return err
		}
		snapshot, err := ledger.Snapshot()
		if err != nil {
			return err
		}

		records := snapshot.SortedRecords()
		if failedOnly {
			kept := records[:0]
			for _, record := range records {
				if !record.Success {
					kept = append(kept, record)
				}
			}
			records = kept
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(records)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tID\tTITLE\tSTATUS\tSIZE (MB)\tUPDATED")
		for _, record := range records {
			status := "ok"
			if !record.Success {
				status = "failed"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.1f\t%s\n",
				record.LocalID,
				record.VideoID,
				truncate(record.VideoTitle, 40),
				status,
				record.VideoSizeMB,
				record.DownloadTime)
		}
		return w.Flush()
	},
}

var ledgerGetCmd = &cobra.Command{
	Use:   "get [video-id]",
	Short: "Show one ledger record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, err := newLedgerOnly()
		if err != nil {
			return err
		}
		record, err := ledger.Get(args[0])
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("video %s is not in the ledger", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(record)
	},
}

func init() {
	ledgerListCmd.Flags().BoolP("failed", "f", false, "Only show failed records")
	ledgerListCmd.Flags().BoolP("json", "j", false, "Output in JSON format")

	ledgerCmd.AddCommand(ledgerStatsCmd)
	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerCmd.AddCommand(ledgerGetCmd)
}

// truncate shortens s to maxLen runes
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
