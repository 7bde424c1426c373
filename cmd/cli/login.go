package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var loginCheckCmd = &cobra.Command{
	Use:   "login-check",
	Short: "Verify the configured credentials",
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
		fmt.Printf("Logged in as %s\n", s.config.Email)
		return nil
	},
}
