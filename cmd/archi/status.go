package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show goal queue, router, and budget status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		sys, err := Boot(context.Background(), cfg)
		if err != nil {
			return err
		}
		defer sys.Close()

		if logger != nil {
			logger.Debug("status queried")
		}

		gs := sys.GoalStore.GetStatus()
		fmt.Printf("goals: %d active / %d total\n", gs.ActiveGoals, gs.TotalGoals)
		fmt.Printf("tasks: %d pending, %d in progress, %d completed\n", gs.PendingTasks, gs.InProgressTasks, gs.CompletedTasks)

		local := "unavailable"
		if sys.Router.LocalAvailable() {
			local = "ready"
		}
		fmt.Printf("local model: %s\n", local)

		today := sys.Ledger.Summary("today")
		all := sys.Ledger.Summary("all")
		if logger != nil {
			logger.Info("budget summary", zap.Float64("today_usd", today.TotalCost), zap.Float64("all_time_usd", all.TotalCost))
		}
		fmt.Printf("cost today: $%.4f  all time: $%.4f (%d calls)\n", today.TotalCost, all.TotalCost, all.Calls)

		ds := sys.Dreamer.Status()
		fmt.Printf("dream cycle: idle=%v dreaming=%v total dreams=%d\n", ds.IsIdle, ds.IsDreaming, ds.TotalDreams)

		return nil
	},
}
