package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"archi/internal/agentloop"
	"archi/internal/budget"
	"archi/internal/cache"
	"archi/internal/config"
	"archi/internal/dream"
	"archi/internal/executor"
	"archi/internal/goals"
	"archi/internal/provider"
	"archi/internal/router"
	"archi/internal/safety"
	"archi/internal/scheduler"
	"archi/internal/store"
	"archi/internal/tools"
	"archi/internal/tools/core"
)

// System bundles every constructed component, ensuring consistent
// wiring across the chat Interaction Source and the one-shot
// subcommands: both boot from the same Boot call.
type System struct {
	Config    *config.Config
	Store     *store.Store
	Ledger    *budget.Ledger
	Cache     *cache.Cache
	Router    *router.Router
	GoalStore *goals.Store
	Registry  *tools.Registry
	Executor  *executor.Executor
	Scheduler *scheduler.Scheduler
	Dreamer   *dream.Dreamer
	Safety    *safety.Controller
	Loop      *agentloop.Loop
}

// Boot constructs every component in dependency order from cfg. It is
// the single assembly point; a command that only needs the Goal Store
// still goes through Boot so its view of state matches the chat
// session's.
func Boot(ctx context.Context, cfg *config.Config) (*System, error) {
	if logger != nil {
		logger.Debug("booting system", zap.String("data_dir", cfg.DataDir))
	}

	st, err := store.Open(filepath.Join(cfg.DataDir, "archi.db"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	ledger := budget.New(cfg.Budget.HardStopUSD, cfg.Budget.MonthlyHardStopUSD, cfg.Monitoring.BudgetWarningPct, st)

	respCache := cache.New(0, 0, st)

	local := provider.NewLocalStub(cfg.Provider.Local.Model)

	var remote provider.Provider
	if r, err := provider.NewRemote(ctx, cfg.Provider.Remote.Kind, cfg.Provider.Remote.Model, cfg.Provider.Remote.APIKey, cfg.Provider.Remote.BaseURL); err == nil {
		remote = r
	} else if logger != nil {
		logger.Debug("remote provider unavailable", zap.Error(err))
	}

	rtr := router.New(local, remote, respCache, ledger)

	goalStore := goals.New(cfg.DataDir)

	registry := tools.NewRegistry()
	if err := core.RegisterAll(registry); err != nil {
		return nil, fmt.Errorf("register core tools: %w", err)
	}

	projectRoot, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	execCfg := executor.DefaultConfig(projectRoot, cfg.DataDir)
	exec := executor.New(execCfg, registry)

	sched := scheduler.New(cfg.Heartbeat)

	dreamer := dream.New(cfg.Dream, exec)
	dreamer.EnableAutonomousMode(goalStore, rtr)

	safetyCtl, err := safety.New(cfg.Safety, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("construct safety controller: %w", err)
	}

	loop, err := agentloop.New(*cfg, agentloop.Deps{
		Scheduler: sched,
		Dreamer:   dreamer,
		GoalStore: goalStore,
		Router:    rtr,
		Ledger:    ledger,
		Cache:     respCache,
		Registry:  registry,
		Safety:    safetyCtl,
		Store:     st,
	})
	if err != nil {
		return nil, fmt.Errorf("construct agent loop: %w", err)
	}

	if logger != nil {
		logger.Info("system booted", zap.Bool("remote_available", remote != nil), zap.Bool("local_available", rtr.LocalAvailable()))
	}

	return &System{
		Config:    cfg,
		Store:     st,
		Ledger:    ledger,
		Cache:     respCache,
		Router:    rtr,
		GoalStore: goalStore,
		Registry:  registry,
		Executor:  exec,
		Scheduler: sched,
		Dreamer:   dreamer,
		Safety:    safetyCtl,
		Loop:      loop,
	}, nil
}

// Close releases everything Boot opened.
func (s *System) Close() {
	if s.Store != nil {
		_ = s.Store.Close()
	}
}

// loadConfig reads cfgPath (or <dataDir>/config.yaml) falling back to
// defaults with dataDir overlaid, matching config.Load's
// missing-file-is-not-an-error contract.
func loadConfig() (*config.Config, error) {
	dd := dataDir
	if dd == "" {
		dd = "./data"
	}

	path := cfgPath
	if path == "" {
		path = filepath.Join(dd, "config.yaml")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}
