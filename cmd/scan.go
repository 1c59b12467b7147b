package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/analyzer"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/db"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/lead"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/model"
)

var (
	scanName     string
	scanCity     string
	scanPhone    string
	scanAddress  string
	scanCategory string
	scanDryRun   bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <website-url>",
	Short: "Feed one business through the pipeline by hand",
	Long:  "Builds a manual-source candidate from the given website and flags, resolves it against the canonical store, and creates or merges the lead. With --dry-run the record flows through resolution and merging in memory without touching the database.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if scanName == "" {
			return fmt.Errorf("--name is required")
		}

		cand := model.CandidateRecord{
			Source:       model.SourceManual,
			BusinessName: scanName,
			WebsiteURL:   args[0],
			Phone:        scanPhone,
			Address:      scanAddress,
			City:         scanCity,
			Category:     scanCategory,
		}

		var store lead.Store
		if scanDryRun {
			store = lead.NewMemStore()
		} else {
			pool, err := db.Connect(cmd.Context(), cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
			if err != nil {
				return err
			}
			defer pool.Close()
			store = lead.NewPostgresStore(pool)
		}

		if analysis, err := analyzer.FromConfig(cfg.Analyzer).Analyze(cmd.Context(), cand.WebsiteURL); err != nil {
			zap.L().Warn("analyzer unavailable, continuing without analysis", zap.Error(err))
		} else {
			cand.Analysis = analysis
		}

		merger := lead.NewMerger(store, lead.NewResolver(store, cfg.Resolver.SimilarityThreshold, cfg.Resolver.CitySearchLimit))
		outcome, err := merger.MergeOrCreate(cmd.Context(), cand)
		if err != nil {
			return err
		}

		switch {
		case outcome.Created:
			fmt.Printf("created lead %d (%s)\n", outcome.Lead.ID, outcome.Lead.UniqueKey)
		case outcome.Merged:
			fmt.Printf("merged into lead %d (matched by %s)\n", outcome.Lead.ID, outcome.MatchedBy)
		default:
			fmt.Printf("no change: lead %d already carries this record\n", outcome.Lead.ID)
		}
		if scanDryRun {
			fmt.Println("dry run: nothing was written")
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanName, "name", "", "business name (required)")
	scanCmd.Flags().StringVar(&scanCity, "city", "", "business city")
	scanCmd.Flags().StringVar(&scanPhone, "phone", "", "business phone")
	scanCmd.Flags().StringVar(&scanAddress, "address", "", "street address")
	scanCmd.Flags().StringVar(&scanCategory, "category", "", "business category")
	scanCmd.Flags().BoolVar(&scanDryRun, "dry-run", false, "resolve and merge in memory only")
	rootCmd.AddCommand(scanCmd)
}
