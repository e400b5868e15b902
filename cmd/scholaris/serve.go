package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/scholaris-edu/scholaris/pkg/audit"
	cachesqlite "github.com/scholaris-edu/scholaris/pkg/cache/sqlite"
	"github.com/scholaris-edu/scholaris/pkg/catalog"
	"github.com/scholaris-edu/scholaris/pkg/config"
	"github.com/scholaris-edu/scholaris/pkg/fitter"
	"github.com/scholaris-edu/scholaris/pkg/gateway"
	"github.com/scholaris-edu/scholaris/pkg/ledger"
	ledgersqlite "github.com/scholaris-edu/scholaris/pkg/ledger/sqlite"
	"github.com/scholaris-edu/scholaris/pkg/models"
	"github.com/scholaris-edu/scholaris/pkg/orchestrator"
	"github.com/scholaris-edu/scholaris/pkg/provider"
	"github.com/scholaris-edu/scholaris/pkg/routing"
	"github.com/scholaris-edu/scholaris/pkg/tokens"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the generation gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cat, err := buildCatalog(cfg)
			if err != nil {
				return err
			}
			est := buildEstimator(cfg)

			sink, err := ledgersqlite.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("init ledger store: %w", err)
			}
			defer func() { _ = sink.Close() }()

			led := ledger.New(cfg.Budget, sink)
			if err := led.Load(ctx); err != nil {
				return err
			}
			led.SetAlertFunc(func(spend, cap float64) {
				log.Printf("[budget] ALERT: monthly spend $%.2f crossed %.0f%% of the $%.2f cap",
					spend, cfg.Budget.AlertThresholdFraction*100, cap)
			})

			clients := provider.NewRegistry()
			for _, p := range cfg.Providers {
				tier, err := models.ParseTier(p.Tier)
				if err != nil {
					return err
				}
				clients.Register(tier, provider.NewHTTPClient(p.Name, p.URL, p.APIKey, p.Timeout))
				log.Printf("registered provider %s for tier %s", p.Name, tier)
			}

			var cache *cachesqlite.Cache
			if cfg.Cache.Enabled {
				cache, err = cachesqlite.New(cfg.Cache.DBPath, cfg.Cache.TTL)
				if err != nil {
					return fmt.Errorf("init cache: %w", err)
				}
				defer func() { _ = cache.Close() }()
			}

			var auditor *audit.Logger
			if cfg.Audit.Enabled {
				auditor, err = audit.New(cfg.Audit.DBPath, cfg.Audit.RetentionDays)
				if err != nil {
					return fmt.Errorf("init audit log: %w", err)
				}
				defer func() { _ = auditor.Close() }()
			}

			engine, err := orchestrator.New(orchestrator.Params{
				Catalog:   cat,
				Estimator: est,
				Fitter:    fitter.New(cat, est),
				Policy:    routing.New(cat, est, cfg.Budget),
				Ledger:    led,
				Clients:   clients,
				Probe:     buildProbe(cfg),
				Cache:     cache,
				Audit:     auditor,
			})
			if err != nil {
				return err
			}

			sched := cron.New()
			if _, err := sched.AddFunc("@daily", func() {
				if n := led.Compact(); n > 0 {
					log.Printf("[ledger] compacted %d old events", n)
				}
			}); err != nil {
				return err
			}
			if cache != nil {
				if _, err := sched.AddFunc("@hourly", func() {
					if err := cache.Clear(true); err != nil {
						log.Printf("[cache] clear expired: %v", err)
					}
				}); err != nil {
					return err
				}
			}
			sched.Start()
			defer sched.Stop()

			log.Printf("starting scholaris gateway with config: %s", configPath)
			return gateway.New(cfg.Listen, engine).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "scholaris.yaml", "path to config file")
	return cmd
}

func buildCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if len(cfg.Models) == 0 {
		return catalog.Default(), nil
	}
	cat, err := catalog.New(cfg.Models...)
	if err != nil {
		return nil, fmt.Errorf("invalid model registry: %w", err)
	}
	return cat, nil
}

func buildEstimator(cfg *config.Config) *tokens.Estimator {
	est := tokens.NewEstimator()
	for family, divisor := range cfg.Estimator.Divisors {
		est.SetDivisor(family, divisor)
	}
	return est
}

func buildProbe(cfg *config.Config) provider.ConnectivityProbe {
	endpoints := make(map[models.Tier]string, len(cfg.Probe.Endpoints))
	for name, url := range cfg.Probe.Endpoints {
		tier, err := models.ParseTier(name)
		if err != nil {
			log.Printf("[probe] skipping endpoint for unknown tier %q", name)
			continue
		}
		endpoints[tier] = url
	}

	var probe provider.ConnectivityProbe
	if len(endpoints) > 0 {
		probe = provider.NewHTTPProbe(endpoints, cfg.Probe.Timeout)
	}

	var assumed []models.Tier
	for _, name := range cfg.Probe.Assume {
		if tier, err := models.ParseTier(name); err == nil {
			assumed = append(assumed, tier)
		}
	}
	if len(assumed) > 0 {
		probe = provider.Assume(probe, assumed...)
	}
	return probe
}
