package tracker

import (
	"sort"

	"smartdiff/internal/ast"
)

// aggregate turns the phase outputs into file statistics, symbol
// migration records, and overall numbers. The residue that survived
// every phase becomes the added and deleted function lists.
func (t *Tracker) aggregate(source, target map[string][]*ast.Function, srcResidue, tgtResidue []entry, result *Result) {
	t.logPhase(PhaseAggregate, nil)

	for _, file := range sortedFiles(source, target) {
		total := len(source[file])
		if tgtFns, ok := target[file]; ok {
			total = len(tgtFns)
		}
		result.FileStatistics[file] = &FileStats{
			TotalFunctions: total,
			NetChange:      len(target[file]) - len(source[file]),
		}
	}

	for _, e := range srcResidue {
		result.DeletedFunctions = append(result.DeletedFunctions, FunctionRef{
			Name: e.fn.Name(),
			File: e.file,
			Line: e.fn.Location.StartLine,
		})
		result.FileStatistics[e.file].Deleted++
	}
	for _, e := range tgtResidue {
		result.AddedFunctions = append(result.AddedFunctions, FunctionRef{
			Name: e.fn.Name(),
			File: e.file,
			Line: e.fn.Location.StartLine,
		})
		result.FileStatistics[e.file].Added++
	}

	type pair struct{ from, to string }
	migrations := make(map[pair][]string)
	confidences := make([]float64, 0, len(result.MovedFunctions)+len(result.RenamedAndMoved))

	for _, mv := range result.MovedFunctions {
		result.FileStatistics[mv.SourceFile].MovedOut++
		result.FileStatistics[mv.TargetFile].MovedIn++
		migrations[pair{mv.SourceFile, mv.TargetFile}] = append(
			migrations[pair{mv.SourceFile, mv.TargetFile}], mv.Name)
		confidences = append(confidences, mv.Confidence)
	}
	for _, rm := range result.RenamedAndMoved {
		result.FileStatistics[rm.SourceFile].MovedOut++
		result.FileStatistics[rm.SourceFile].Renamed++
		result.FileStatistics[rm.TargetFile].MovedIn++
		migrations[pair{rm.SourceFile, rm.TargetFile}] = append(
			migrations[pair{rm.SourceFile, rm.TargetFile}], rm.OriginalName)
		confidences = append(confidences, rm.Confidence)
	}
	for _, sp := range result.CrossFileSplits {
		confidences = append(confidences, sp.Confidence)
	}
	for _, mg := range result.CrossFileMerges {
		confidences = append(confidences, mg.Confidence)
	}

	pairs := make([]pair, 0, len(migrations))
	for p := range migrations {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a].from != pairs[b].from {
			return pairs[a].from < pairs[b].from
		}
		return pairs[a].to < pairs[b].to
	})
	for _, p := range pairs {
		symbols := migrations[p]
		sort.Strings(symbols)
		result.Migrations = append(result.Migrations, SymbolMigration{
			FromFile: p.from,
			ToFile:   p.to,
			Symbols:  symbols,
			Count:    len(symbols),
		})
	}

	totalFunctions := 0
	for _, fns := range source {
		totalFunctions += len(fns)
	}
	stats := OverallStats{
		TotalFiles:       len(result.FileStatistics),
		TotalFunctions:   totalFunctions,
		TotalMoves:       len(result.MovedFunctions),
		TotalRenameMoves: len(result.RenamedAndMoved),
		TotalSplits:      len(result.CrossFileSplits),
		TotalMerges:      len(result.CrossFileMerges),
	}
	if totalFunctions > 0 {
		stats.MovePercentage = float64(stats.TotalMoves+stats.TotalRenameMoves) /
			float64(totalFunctions) * 100
	}
	if len(confidences) > 0 {
		sum := 0.0
		for _, c := range confidences {
			sum += c
		}
		stats.AverageConfidence = sum / float64(len(confidences))
	}
	result.Overall = stats
}
