package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"smartdiff/internal/config"
	"smartdiff/internal/export"
	"smartdiff/internal/parser"
	"smartdiff/internal/storage"
	"smartdiff/internal/symbols"
	"smartdiff/internal/tracker"
)

var (
	compareOutputPath string
	compareFormat     string
	compareSCIPPath   string
	compareConfigRoot string
	compareNoCache    bool
)

var compareCmd = &cobra.Command{
	Use:   "compare <source> <target>",
	Short: "Compare two versions of a codebase",
	Long: `Compare two files or directory trees at the syntax-tree level.

Functions are matched within each file first, then across files, so
moves, renames, splits, and merges show up as such instead of as
unrelated deletions and additions.

Examples:
  smartdiff compare old/ new/
  smartdiff compare old/cart.py new/cart.py --format json
  smartdiff compare old/ new/ -o report.json.zst
  smartdiff compare old/ new/ --scip .scip/index.scip`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().StringVarP(&compareOutputPath, "output", "o", "",
		"Write a report file (.json, .yaml, or a .zst variant) instead of printing")
	compareCmd.Flags().StringVar(&compareFormat, "format", "human",
		"Output format when printing: human or json")
	compareCmd.Flags().StringVar(&compareSCIPPath, "scip", "",
		"Path to a SCIP index used to raise move confidence")
	compareCmd.Flags().StringVar(&compareConfigRoot, "config-root", ".",
		"Directory whose .smartdiff/config.json is loaded")
	compareCmd.Flags().BoolVar(&compareNoCache, "no-cache", false,
		"Bypass the parsed-function cache even when enabled in config")

	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	ctx := cmd.Context()

	cfg, err := config.LoadConfig(compareConfigRoot)
	if err != nil {
		return err
	}

	if !parser.IsAvailable() {
		return fmt.Errorf("this build has no tree-sitter support, rebuild with CGO_ENABLED=1")
	}

	l := &loader{parser: parser.NewParser(), logger: logger}
	if cfg.Cache.Enabled && !compareNoCache {
		cache, err := storage.OpenFunctionCache(cfg.Cache.Path, logger)
		if err != nil {
			logger.Warn("continuing without function cache", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			defer cache.Close()
			l.cache = cache
		}
	}

	source, err := l.loadTree(ctx, args[0])
	if err != nil {
		return err
	}
	target, err := l.loadTree(ctx, args[1])
	if err != nil {
		return err
	}

	trk, err := tracker.New(cfg, logger)
	if err != nil {
		return err
	}
	if compareSCIPPath != "" {
		idx, err := symbols.LoadSCIP(compareSCIPPath)
		if err != nil {
			return err
		}
		trk.SetSymbolIndex(idx)
	} else {
		// Without a SCIP index, fall back to references derived from
		// the parsed call graph of the new version.
		trk.SetSymbolIndex(symbols.BuildIndex(target))
	}

	result, err := trk.Track(ctx, source, target)
	if err != nil {
		return err
	}

	if compareOutputPath != "" {
		report := export.NewReport(args[0], args[1], result)
		return export.NewWriter(logger).WriteFile(compareOutputPath, report)
	}

	if compareFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResultHuman(result)
	return nil
}

func printResultHuman(result *tracker.Result) {
	o := result.Overall
	fmt.Printf("Compared %d files, %d functions\n\n", o.TotalFiles, o.TotalFunctions)

	if len(result.MovedFunctions) > 0 {
		fmt.Printf("Moved (%d):\n", len(result.MovedFunctions))
		for _, m := range result.MovedFunctions {
			fmt.Printf("  %s: %s -> %s  (similarity %.2f, confidence %.2f, %s)\n",
				m.Name, m.SourceFile, m.TargetFile, m.Similarity, m.Confidence, m.MoveType)
		}
		fmt.Println()
	}

	if len(result.RenamedAndMoved) > 0 {
		fmt.Printf("Renamed and moved (%d):\n", len(result.RenamedAndMoved))
		for _, r := range result.RenamedAndMoved {
			fmt.Printf("  %s (%s) -> %s (%s)  (confidence %.2f)\n",
				r.OriginalName, r.SourceFile, r.NewName, r.TargetFile, r.Confidence)
		}
		fmt.Println()
	}

	if len(result.CrossFileSplits) > 0 {
		fmt.Printf("Split across files (%d):\n", len(result.CrossFileSplits))
		for _, s := range result.CrossFileSplits {
			fmt.Printf("  %s (%s) split into (combined similarity %.2f):\n",
				s.SourceFunction, s.SourceFile, s.CombinedSimilarity)
			for _, f := range s.Fragments {
				fmt.Printf("    %s (%s)\n", f.Name, f.File)
			}
		}
		fmt.Println()
	}

	if len(result.CrossFileMerges) > 0 {
		fmt.Printf("Merged across files (%d):\n", len(result.CrossFileMerges))
		for _, m := range result.CrossFileMerges {
			fmt.Printf("  %s (%s) merged from (combined similarity %.2f):\n",
				m.MergedFunction, m.TargetFile, m.CombinedSimilarity)
			for _, f := range m.Sources {
				fmt.Printf("    %s (%s)\n", f.Name, f.File)
			}
		}
		fmt.Println()
	}

	if len(result.DeletedFunctions) > 0 {
		fmt.Printf("Deleted (%d):\n", len(result.DeletedFunctions))
		for _, d := range result.DeletedFunctions {
			fmt.Printf("  %s (%s)\n", d.Name, d.File)
		}
		fmt.Println()
	}

	if len(result.AddedFunctions) > 0 {
		fmt.Printf("Added (%d):\n", len(result.AddedFunctions))
		for _, a := range result.AddedFunctions {
			fmt.Printf("  %s (%s)\n", a.Name, a.File)
		}
		fmt.Println()
	}

	if len(result.Migrations) > 0 {
		fmt.Println("Migrations:")
		for _, m := range result.Migrations {
			fmt.Printf("  %s -> %s: %d function(s)\n", m.FromFile, m.ToFile, m.Count)
		}
		fmt.Println()
	}

	files := make([]string, 0, len(result.FileResults))
	for f := range result.FileResults {
		files = append(files, f)
	}
	sort.Strings(files)
	modified := 0
	for _, f := range files {
		fr := result.FileResults[f]
		if changed := len(fr.Changes); changed > 0 {
			if modified == 0 {
				fmt.Println("Modified in place:")
			}
			modified++
			fmt.Printf("  %s: %d change(s), similarity %.2f\n", f, changed, fr.Similarity)
		}
	}
	if modified > 0 {
		fmt.Println()
	}

	fmt.Printf("Moves: %d  Renames: %d  Splits: %d  Merges: %d  Average confidence: %.2f\n",
		o.TotalMoves, o.TotalRenameMoves, o.TotalSplits, o.TotalMerges, o.AverageConfidence)
}
