package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/db"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/model"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/zone"
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Manage crawl zones",
}

var (
	zonesSeedFile   string
	zonesListSource string
	zonesListLimit  int
)

var zonesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed zones from a YAML file",
	Long:  "Inserts zone definitions from the seed file. Re-seeding the same file is a no-op: existing zones keep their earned priority scores.",
	RunE: func(cmd *cobra.Command, args []string) error {
		seeds, err := zone.LoadSeedFile(zonesSeedFile)
		if err != nil {
			return err
		}

		pool, err := db.Connect(cmd.Context(), cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
		if err != nil {
			return err
		}
		defer pool.Close()

		inserted, err := zone.NewPostgresStore(pool).SeedZones(cmd.Context(), seeds)
		if err != nil {
			return err
		}
		fmt.Printf("seeded %d new zones (%d in file)\n", inserted, len(seeds))
		return nil
	},
}

var zonesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List zones by priority",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := db.Connect(cmd.Context(), cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
		if err != nil {
			return err
		}
		defer pool.Close()

		zones, err := zone.NewPostgresStore(pool).ListZones(cmd.Context(), zone.ListOpts{
			Source:     model.Source(zonesListSource),
			OnlyActive: true,
			Limit:      zonesListLimit,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%-6s %-10s %-20s %-20s %7s %8s %8s %s\n",
			"ID", "SOURCE", "CATEGORY", "LOCATION", "SCORE", "SCRAPED", "RECORDS", "LOCKED")
		for _, z := range zones {
			locked := ""
			if z.IsLocked {
				locked = "yes"
			}
			fmt.Printf("%-6d %-10s %-20s %-20s %7d %8d %8d %s\n",
				z.ID, z.Source, z.Category, z.LocationName,
				z.PriorityScore, z.TimesScraped, z.TotalRecords, locked)
		}
		return nil
	},
}

var zonesDeactivateCmd = &cobra.Command{
	Use:   "deactivate <zone-id>",
	Short: "Take a zone out of scheduling",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		zoneID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid zone id %q", args[0])
		}

		pool, err := db.Connect(cmd.Context(), cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := zone.NewPostgresStore(pool).DeactivateZone(cmd.Context(), zoneID); err != nil {
			return err
		}
		fmt.Printf("zone %d deactivated\n", zoneID)
		return nil
	},
}

var zonesSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Free stale zone leases",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := db.Connect(cmd.Context(), cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
		if err != nil {
			return err
		}
		defer pool.Close()

		scheduler := zone.NewScheduler(zone.NewPostgresStore(pool), cfg.Scheduler)
		freed, err := scheduler.SweepStaleLeases(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("freed %d stale leases\n", freed)
		return nil
	},
}

func init() {
	zonesSeedCmd.Flags().StringVar(&zonesSeedFile, "file", "zones.yaml", "zone seed file")
	zonesListCmd.Flags().StringVar(&zonesListSource, "source", "", "filter by source (maps, directory)")
	zonesListCmd.Flags().IntVar(&zonesListLimit, "limit", 50, "maximum zones to list")

	zonesCmd.AddCommand(zonesSeedCmd, zonesListCmd, zonesDeactivateCmd, zonesSweepCmd)
	rootCmd.AddCommand(zonesCmd)
}
