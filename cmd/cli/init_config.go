package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourusername/iwara-dl-go/internal/app"
	"github.com/yourusername/iwara-dl-go/internal/domain"
)

var initConfigForce bool

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write a config.json with default values",
	Long: `Writes every setting with its default value. The credentials are placeholders;
runs refuse to start until they are replaced.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.json"
		if configPath != "" {
			path = configPath
		}
		if len(args) == 1 {
			path = args[0]
		}

		if _, err := os.Stat(path); err == nil && !initConfigForce {
			return fmt.Errorf("%s already exists, use --force to overwrite it", path)
		}
		if err := app.SaveConfig(domain.DefaultConfig(), path); err != nil {
			return err
		}
		fmt.Printf("Wrote default configuration to %s\n", path)
		fmt.Println("Set email and password before running a download.")
		return nil
	},
}

func init() {
	initConfigCmd.Flags().BoolVar(&initConfigForce, "force", false, "Overwrite an existing file")
}
