package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	cachepkg "github.com/markwatch/markwatch/pkg/cache/sqlite"
	"github.com/markwatch/markwatch/pkg/config"
	"github.com/spf13/cobra"
)

func openCache(configPath string) (*cachepkg.Cache, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return cachepkg.New(cfg.DBPath, cfg.Cache.TTLDays, cfg.Cache.ErrorTTLDays)
}

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the trademark cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stats, err := c.Statistics()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Entries:\t%d (%d fresh, %d stale)\n", stats.TotalEntries, stats.FreshEntries, stats.StaleEntries)
			fmt.Fprintf(w, "Hits (24h):\t%d\n", stats.Hits24h)
			fmt.Fprintf(w, "Misses (24h):\t%d\n", stats.Misses24h)
			fmt.Fprintf(w, "Hit rate (24h):\t%.1f%%\n", stats.HitRate24h)
			fmt.Fprintf(w, "Avg hit time:\t%v\n", stats.AvgHitTime)
			fmt.Fprintf(w, "Avg miss time:\t%v\n", stats.AvgMissTime)
			fmt.Fprintf(w, "TSDR calls saved:\t%d\n", stats.TSDRCallsSaved)
			fmt.Fprintf(w, "Classifier calls saved:\t%d\n", stats.ClassifierCallsSaved)
			fmt.Fprintf(w, "TTL:\t%d days\n", stats.TTLDays)
			return w.Flush()
		},
	}

	var staleOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if staleOnly {
				n, err := c.ClearStale()
				if err != nil {
					return err
				}
				fmt.Printf("Removed %d stale entries.\n", n)
				return nil
			}
			if err := c.ClearAll(); err != nil {
				return err
			}
			fmt.Println("All cache entries cleared.")
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&staleOnly, "stale", false, "only clear entries older than the TTL")

	var outPath string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export all cache entries to a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			entries, err := c.Export()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, data, 0644); err != nil {
				return err
			}
			fmt.Printf("Exported %d entries to %s.\n", len(entries), outPath)
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "trademark_cache.json", "output file")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached serial numbers, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			serials, err := c.Serials()
			if err != nil {
				return err
			}
			for _, s := range serials {
				fmt.Println(s)
			}
			return nil
		},
	}

	var retention time.Duration
	pruneCmd := &cobra.Command{
		Use:   "prune-stats",
		Short: "Delete stat events older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			n, err := c.PruneStats(retention)
			if err != nil {
				return err
			}
			fmt.Printf("Pruned %d stat events.\n", n)
			return nil
		},
	}
	pruneCmd.Flags().DurationVar(&retention, "older-than", 90*24*time.Hour, "delete stat events older than this")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "markwatch.yaml", "path to config file")
	cmd.AddCommand(statsCmd, clearCmd, exportCmd, listCmd, pruneCmd)
	return cmd
}
