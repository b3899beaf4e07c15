package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"smartdiff/internal/config"
)

var (
	configShowFormat string
	configInitForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage smartdiff configuration",
	Long:  "View and manage smartdiff configuration stored in .smartdiff/config.json",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the effective configuration with defaults applied.

Examples:
  smartdiff config show                # Pretty-print effective config
  smartdiff config show --format json  # Raw JSON output`,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long:  "Create .smartdiff/config.json with the default settings so they can be edited.",
	RunE:  runConfigInit,
}

func init() {
	configShowCmd.Flags().StringVar(&configShowFormat, "format", "human", "Output format (json, human)")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	if configShowFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	fmt.Printf("Matching:\n")
	fmt.Printf("  minSimilarityThreshold:   %.2f\n", cfg.Matching.MinSimilarityThreshold)
	fmt.Printf("  renameThreshold:          %.2f\n", cfg.Matching.RenameThreshold)
	fmt.Printf("  maxCandidatesPerFunction: %d\n", cfg.Matching.MaxCandidatesPerFunction)
	fmt.Printf("  enableManyToMany:         %v\n", cfg.Matching.EnableManyToMany)
	fmt.Printf("Weights:\n")
	fmt.Printf("  signature: %.2f  body: %.2f  context: %.2f\n",
		cfg.Weights.Signature, cfg.Weights.Body, cfg.Weights.Context)
	fmt.Printf("Tree edit:\n")
	fmt.Printf("  maxNodes: %d  maxDepth: %d  minSizeRatio: %.2f\n",
		cfg.TreeEdit.MaxNodes, cfg.TreeEdit.MaxDepth, cfg.TreeEdit.MinSizeRatio)
	fmt.Printf("Cross file:\n")
	fmt.Printf("  penalty: %.2f  minCrossFileSimilarity: %.2f  maxClusterSize: %d\n",
		cfg.CrossFile.Penalty, cfg.CrossFile.MinCrossFileSimilarity, cfg.CrossFile.MaxClusterSize)
	fmt.Printf("Workers: %d\n", cfg.Workers)
	fmt.Printf("Cache:   enabled=%v path=%s\n", cfg.Cache.Enabled, cfg.Cache.Path)
	fmt.Printf("Logging: format=%s level=%s\n", cfg.Logging.Format, cfg.Logging.Level)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := ".smartdiff/config.json"
	if _, err := os.Stat(path); err == nil && !configInitForce {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save("."); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
