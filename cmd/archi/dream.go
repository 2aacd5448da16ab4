package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var dreamCmd = &cobra.Command{
	Use:   "dream",
	Short: "Show Dream Cycle status",
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

		s := sys.Dreamer.Status()
		if logger != nil {
			logger.Debug("dream status queried", zap.Bool("dreaming", s.IsDreaming), zap.Int("total_dreams", s.TotalDreams))
		}
		fmt.Printf("idle: %v (%.0fs)\n", s.IsIdle, s.IdleSeconds)
		fmt.Printf("dreaming: %v\n", s.IsDreaming)
		fmt.Printf("autonomous mode: %v\n", s.AutonomousMode)
		fmt.Printf("total dreams: %d\n", s.TotalDreams)
		if !s.LastActivity.IsZero() {
			fmt.Printf("last activity: %s\n", s.LastActivity.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}
