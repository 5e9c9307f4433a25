package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aspendos/council/internal/config"
	"github.com/aspendos/council/internal/council"
	"github.com/aspendos/council/internal/health"
	"github.com/aspendos/council/internal/ledger"
	"github.com/aspendos/council/internal/models"
	"github.com/aspendos/council/internal/provider"
	"github.com/aspendos/council/internal/routing"
	"github.com/aspendos/council/internal/scheduler"
	"github.com/aspendos/council/internal/store"
	"github.com/aspendos/council/internal/stream"
)

// app bundles the services every subcommand builds the same way:
// config, providers, breaker, ledger, broker, store, orchestrator,
// and the free-text classifier.
type app struct {
	cfg          *config.Config
	orchestrator *council.Orchestrator
	classifier   *routing.Classifier
	broker       *stream.Broker
	scheduler    *scheduler.Scheduler
	logger       *slog.Logger
}

// buildApp wires the process-wide services from the config file named
// by the persistent --config flag.
func buildApp(cmd *cobra.Command, sessionDir string) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.Default()

	registry := provider.NewRegistry(cfg.Providers)

	breaker := health.New(health.Settings{
		Window:           cfg.Tuning.BreakerWindow(),
		FailureThreshold: cfg.Tuning.BreakerThreshold,
		Cooldown:         cfg.Tuning.BreakerCooldown(),
		MaxCooldown:      cfg.Tuning.BreakerMaxCooldown(),
	})

	rates := make(map[string]ledger.Rate, len(cfg.Models))
	for _, m := range cfg.Models {
		rates[m.ID] = ledger.Rate{InputPer1K: m.InputPer1K, OutputPer1K: m.OutputPer1K}
	}
	led := ledger.New(rates, ledger.Rate{
		InputPer1K:  cfg.Tuning.DefaultInputPer1K,
		OutputPer1K: cfg.Tuning.DefaultOutputPer1K,
	})

	broker := stream.NewBroker(cfg.Tuning.StreamBufferCap, cfg.Tuning.ReplayWindow)
	sessions := store.NewFileStore(sessionDir)

	orchestrator := council.New(cfg, registry, breaker, led, broker, sessions, logger)

	tools, err := routing.NewToolRegistry()
	if err != nil {
		return nil, err
	}
	classifier := routing.NewClassifier(cfg, registry, tools, logger)

	// Fired reminders land on a per-owner broker topic so a connected
	// client can pick them up over the same event plumbing sessions use.
	sched := scheduler.New(func(r scheduler.Reminder) {
		topic := "reminders/" + r.Owner
		broker.Open(topic)
		broker.Publish(topic, models.NewEvent(models.EventReminderTrigger,
			models.ReminderTriggerData(r.ID, r.Action, r.TriggerAt)))
	}, logger)

	return &app{
		cfg:          cfg,
		orchestrator: orchestrator,
		classifier:   classifier,
		broker:       broker,
		scheduler:    sched,
		logger:       logger,
	}, nil
}
