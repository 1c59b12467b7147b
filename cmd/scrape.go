package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/analyzer"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/db"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/engine"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/lead"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/monitoring"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/scraper"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/zone"
)

var scrapeMaxZones int

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run the acquisition engine",
	Long:  "Leases zones by priority, scrapes each with a headless browser, and merges extracted businesses into the canonical lead store. Runs until interrupted, or until --max-zones leases in batch mode.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
		if err != nil {
			return err
		}
		defer pool.Close()

		leadStore := lead.NewPostgresStore(pool)
		resolver := lead.NewResolver(leadStore, cfg.Resolver.SimilarityThreshold, cfg.Resolver.CitySearchLimit)
		merger := lead.NewMerger(leadStore, resolver)

		browser := scraper.NewChromedpBrowser(cfg.Scraper)
		defer browser.Close()
		executor := scraper.NewExecutor(browser, merger, analyzer.FromConfig(cfg.Analyzer), cfg.Scraper)

		zoneStore := zone.NewPostgresStore(pool)
		scheduler := zone.NewScheduler(zoneStore, cfg.Scheduler)

		registry := prometheus.NewRegistry()
		metrics := monitoring.NewMetrics(registry)
		if cfg.Metrics.Enabled {
			listener := monitoring.NewListener(cfg.Metrics, registry)
			go func() {
				if err := listener.Serve(ctx); err != nil {
					zap.L().Error("metrics listener failed", zap.Error(err))
				}
			}()
		}

		// Free leases left behind by a previous crashed run before workers
		// start competing for zones.
		if freed, err := scheduler.SweepStaleLeases(ctx); err == nil && freed > 0 {
			fmt.Printf("freed %d stale leases\n", freed)
		}

		eng := engine.New(scheduler, zoneStore, executor, metrics, cfg.Engine, cfg.Scheduler)
		return eng.Run(ctx, scrapeMaxZones)
	},
}

func init() {
	scrapeCmd.Flags().IntVar(&scrapeMaxZones, "max-zones", 0, "stop after this many zone leases (0 = run forever)")
	rootCmd.AddCommand(scrapeCmd)
}
