/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"os"

	"github.com/hackdash/apiserver/config"
	"github.com/hackdash/apiserver/internal/db"
	"github.com/hackdash/apiserver/internal/notify"
	"github.com/hackdash/apiserver/internal/scheduler"
	"github.com/hackdash/apiserver/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// tickCmd runs one scheduler pass and prints the result, without starting
// the HTTP server. Notifications are logged rather than published.
var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one scheduler tick and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		logger, err := zap.NewProduction()
		if err != nil {
			return err
		}
		defer func() {
			_ = logger.Sync()
		}()

		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = dbConn.Close()
		}()

		hackathonRepo := store.NewHackathonRepository(dbConn)
		sched := scheduler.New(hackathonRepo, notify.NewLogDispatcher(logger), cfg.Scheduler.Interval, logger)

		result, err := sched.Tick(cmd.Context())
		if err != nil {
			return err
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(tickCmd)
}
