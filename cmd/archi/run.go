package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runCmd decomposes a single instruction into a goal and drives it to
// completion synchronously, without the chat TUI or the Agent Loop's
// heartbeat — useful for scripts and cron entries.
var runCmd = &cobra.Command{
	Use:   "run [instruction]",
	Short: "Decompose an instruction into a goal and execute it to completion",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		sys, err := Boot(ctx, cfg)
		if err != nil {
			return err
		}
		defer sys.Close()

		instruction := joinArgs(args)
		goal := sys.GoalStore.CreateGoal(instruction, "user request via CLI run", 8)
		if logger != nil {
			logger.Info("goal created", zap.String("goal_id", goal.ID), zap.String("instruction", instruction))
		}
		fmt.Printf("created goal %s\n", goal.ID)

		if _, err := sys.GoalStore.DecomposeGoal(ctx, goal.ID, sys.Router); err != nil {
			if logger != nil {
				logger.Error("goal decomposition failed", zap.String("goal_id", goal.ID), zap.Error(err))
			}
			return fmt.Errorf("decompose goal: %w", err)
		}

		for {
			task := sys.GoalStore.GetNextTask()
			if task == nil {
				break
			}
			if err := sys.GoalStore.StartTask(task.ID); err != nil {
				return fmt.Errorf("start task %s: %w", task.ID, err)
			}

			fmt.Printf("executing: %s\n", task.Description)
			result, err := sys.Executor.Execute(ctx, task, sys.Router, nil)
			if err != nil {
				_ = sys.GoalStore.FailTask(task.ID, err.Error())
				if logger != nil {
					logger.Error("task execution failed", zap.String("task_id", task.ID), zap.Error(err))
				}
				return fmt.Errorf("execute task %s: %w", task.ID, err)
			}
			if !result.Success {
				_ = sys.GoalStore.FailTask(task.ID, result.Error)
				if logger != nil {
					logger.Warn("task failed", zap.String("task_id", task.ID), zap.String("reason", result.Error))
				}
				fmt.Printf("task %s failed: %s\n", task.ID, result.Error)
				continue
			}
			_ = sys.GoalStore.CompleteTask(task.ID, map[string]interface{}{
				"summary":       result.Summary,
				"steps":         result.StepsExecuted,
				"created_files": result.CreatedFiles,
				"verification":  result.Verification,
			})
			fmt.Printf("task %s complete: %s\n", task.ID, result.Summary)
		}

		_ = sys.GoalStore.SaveState()
		return nil
	},
}
