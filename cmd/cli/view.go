package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/iwara-dl-go/internal/domain"
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Make sure the ledger view server is up and print its address",
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL, _ := cmd.Flags().GetString("server")
		noAutoStart, _ := cmd.Flags().GetBool("no-auto-start")

		if serverURL == "" {
			config, err := loadConfig()
			if err != nil {
				return err
			}
			serverURL = fmt.Sprintf("http://localhost:%d", config.Server.Port)
		}

		ctx := cmd.Context()
		if noAutoStart {
			if !serverReady(ctx, serverURL) {
				return fmt.Errorf("ledger server not reachable at %s", serverURL)
			}
		} else if err := ensureServerRunning(ctx, serverURL); err != nil {
			return err
		}

		client := &http.Client{Timeout: 5 * time.Second}
		var stats domain.LedgerStats
		if err := getJSON(client, serverURL+"/api/v1/ledger/stats", &stats); err != nil {
			return err
		}
		var ip struct {
			IP string `json:"ip"`
		}
		if err := getJSON(client, serverURL+"/api/v1/ip", &ip); err != nil {
			ip.IP = "unknown"
		}

		fmt.Printf("Ledger view: %s/ecchiData\n", serverURL)
		fmt.Printf("  Host IP:    %s\n", ip.IP)
		fmt.Printf("  Total:      %d\n", stats.Total)
		fmt.Printf("  Downloaded: %d\n", stats.Succeeded)
		fmt.Printf("  Failed:     %d\n", stats.Failed)
		return nil
	},
}

func init() {
	viewCmd.Flags().String("server", "", "Ledger server URL (default: http://localhost:<server.port>)")
	viewCmd.Flags().Bool("no-auto-start", false, "Don't start the server if it is not running")
}

func getJSON(client *http.Client, url string, out interface{}) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
