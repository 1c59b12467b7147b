package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/db"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/lead"
)

var leadsLogLimit int

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect canonical leads",
}

var leadsLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent merge events",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := db.Connect(cmd.Context(), cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
		if err != nil {
			return err
		}
		defer pool.Close()

		entries, err := lead.NewPostgresStore(pool).RecentMergeLog(cmd.Context(), leadsLogLimit)
		if err != nil {
			return err
		}

		fmt.Printf("%-8s %-8s %-12s %-16s %s\n", "ID", "LEAD", "SOURCE", "MATCHED BY", "WHEN")
		for _, e := range entries {
			fmt.Printf("%-8d %-8d %-12s %-16s %s\n",
				e.ID, e.LeadID, e.Source, e.MatchedBy,
				e.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	leadsLogCmd.Flags().IntVar(&leadsLogLimit, "limit", 50, "maximum entries to show")
	leadsCmd.AddCommand(leadsLogCmd)
	rootCmd.AddCommand(leadsCmd)
}
