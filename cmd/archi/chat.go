package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"archi/internal/chat"
)

// runChat boots every component and starts the Agent Loop alongside
// the interactive Interaction Source. This is rootCmd's default
// action: run archi with no subcommand to get the chat.
func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if logger != nil {
			logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		}
		cancel()
	}()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sys, err := Boot(ctx, cfg)
	if err != nil {
		return err
	}
	defer sys.Close()

	loopErrCh := make(chan error, 1)
	go func() {
		loopErrCh <- sys.Loop.Run(ctx)
	}()

	if logger != nil {
		logger.Info("starting chat interaction source")
	}

	err = chat.Run(ctx, chat.Deps{
		Router:    sys.Router,
		GoalStore: sys.GoalStore,
		Ledger:    sys.Ledger,
		Safety:    sys.Safety,
		Registry:  sys.Registry,
		Loop:      sys.Loop,
	})

	cancel()
	<-loopErrCh
	return err
}
