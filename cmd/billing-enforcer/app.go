package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	awsadapter "github.com/yairfalse/billing-enforcer/internal/aws"
	"github.com/yairfalse/billing-enforcer/internal/config"
	"github.com/yairfalse/billing-enforcer/internal/enforcer"
	"github.com/yairfalse/billing-enforcer/internal/filter"
)

// buildEnforcer wires the SDK clients into an enforcer. Dry run keeps reads
// real and replaces every write with a log line.
func buildEnforcer(cfg *config.Config, clients *awsadapter.Clients, dryRun bool) (*enforcer.Enforcer, error) {
	exemptions := filter.New(cfg.Enforcement.ExemptPrefixes)
	if exemptions.IsEmpty() {
		log.Warn().Msg("no exempt prefixes configured, every On-Demand table will be deleted")
	} else {
		log.Info().Strs("exempt_prefixes", exemptions.Prefixes()).Msg("exemptions loaded")
	}

	ecfg := enforcer.Config{
		Store:      awsadapter.NewTableStore(clients.DynamoDB),
		Bus:        awsadapter.NewEventBus(clients.EventBridge, cfg.Events.BusName, cfg.Events.Source),
		Exemptions: exemptions,
		DryRun:     dryRun,
	}
	if cfg.NotificationsEnabled() {
		ecfg.Notifier = awsadapter.NewNotifier(clients.SNS, cfg.Notify.TopicARN)
	}

	if dryRun {
		ecfg.Store = enforcer.DryRunStore{TableStore: ecfg.Store}
		ecfg.Bus = enforcer.LogBus{}
		if ecfg.Notifier != nil {
			ecfg.Notifier = enforcer.LogNotifier{}
		}
	}

	enf, err := enforcer.New(ecfg)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	return enf, nil
}

// loadConfig reads and validates configuration.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// flusher exports buffered telemetry.
type flusher interface {
	ForceFlush(ctx context.Context) error
}
