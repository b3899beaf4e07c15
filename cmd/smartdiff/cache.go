package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"smartdiff/internal/config"
	"smartdiff/internal/storage"
)

var cachePruneAge time.Duration

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the parsed-function cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache contents",
	RunE:  runCacheStats,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop cache entries older than --age",
	RunE:  runCachePrune,
}

func init() {
	cachePruneCmd.Flags().DurationVar(&cachePruneAge, "age", 30*24*time.Hour,
		"Drop entries older than this")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}

func openCache() (*storage.FunctionCache, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, err
	}
	return storage.OpenFunctionCache(cfg.Cache.Path, newLogger())
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	cache, err := openCache()
	if err != nil {
		return err
	}
	defer cache.Close()

	files, entries, err := cache.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("Cached files:   %d\n", files)
	fmt.Printf("Cached entries: %d\n", entries)
	return nil
}

func runCachePrune(cmd *cobra.Command, args []string) error {
	cache, err := openCache()
	if err != nil {
		return err
	}
	defer cache.Close()

	dropped, err := cache.PruneOlderThan(time.Now().Add(-cachePruneAge))
	if err != nil {
		return err
	}
	fmt.Printf("Dropped %d entries\n", dropped)
	return nil
}
