package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Create and inspect goals without opening the chat",
}

var goalCreatePriority int

var goalCreateCmd = &cobra.Command{
	Use:   "create [description]",
	Short: "Create a new goal",
	Args:  cobra.MinimumNArgs(1),
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

		description := joinArgs(args)
		goal := sys.GoalStore.CreateGoal(description, "user request via CLI", goalCreatePriority)
		if logger != nil {
			logger.Info("goal created", zap.String("goal_id", goal.ID), zap.Int("priority", goalCreatePriority))
		}
		fmt.Printf("Created goal %s: %s\n", goal.ID, goal.Description)
		return nil
	},
}

var goalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List goals and their task progress",
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

		status := sys.GoalStore.GetStatus()
		if logger != nil {
			logger.Debug("goal list queried", zap.Int("count", len(status.Goals)))
		}
		if len(status.Goals) == 0 {
			fmt.Println("No goals yet.")
			return nil
		}
		for _, g := range status.Goals {
			fmt.Printf("%s  %-40s  %d tasks  %.0f%% complete\n", g.ID, g.Description, len(g.Tasks), g.CompletionPercentage)
		}
		return nil
	},
}

func init() {
	goalCreateCmd.Flags().IntVar(&goalCreatePriority, "priority", 5, "Goal priority (1-10)")
	goalCmd.AddCommand(goalCreateCmd, goalListCmd)
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}
