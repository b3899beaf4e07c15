// Package tracker follows functions across file boundaries. It runs
// same-file matching first, retries the leftovers globally to catch moves
// and rename-moves, clusters what remains into cross-file splits and
// merges, and aggregates everything into a codebase-level report.
package tracker

import (
	"context"
	"math"
	"sort"

	"smartdiff/internal/assign"
	"smartdiff/internal/ast"
	"smartdiff/internal/classify"
	"smartdiff/internal/config"
	"smartdiff/internal/engine"
	"smartdiff/internal/logging"
	"smartdiff/internal/scorer"
)

// Phase identifies a stage of a tracking run. A phase that finds nothing
// passes its unmatched sets through unchanged; no phase aborts the
// pipeline.
type Phase string

const (
	PhaseInit              Phase = "init"
	PhaseSameFileMatch     Phase = "same_file_match"
	PhaseCrossFileRetry    Phase = "cross_file_retry"
	PhaseClusterSplitMerge Phase = "cluster_split_merge"
	PhaseAggregate         Phase = "aggregate"
	PhaseDone              Phase = "done"
)

// splitCandidateThreshold admits weaker matches into split/merge
// clustering than the one-to-one phases would accept. A fragment carries
// only part of the original body, so its pairwise similarity is
// structurally bounded below a full match.
const splitCandidateThreshold = 0.6

// maxClusterFanout caps how many fragments a single split or merge may
// cover.
const maxClusterFanout = 5

// SymbolIndex reports whether a symbol name is referenced from a file.
// Used to raise move confidence when call sites already point at the
// destination.
type SymbolIndex interface {
	IsReferenced(symbol, file string) bool
}

// MoveType classifies how much a function changed while moving.
type MoveType string

const (
	SimpleMove           MoveType = "simple_move"
	MoveWithModification MoveType = "move_with_modification"
	RefactoringMove      MoveType = "refactoring_move"
	ComplexMove          MoveType = "complex_move"
)

// FunctionMove records a function that moved between files under the
// same name.
type FunctionMove struct {
	Name       string   `json:"name"`
	SourceFile string   `json:"sourceFile"`
	TargetFile string   `json:"targetFile"`
	Similarity float64  `json:"similarity"`
	Confidence float64  `json:"confidence"`
	MoveType   MoveType `json:"moveType"`
}

// RenameMove records a function that was renamed while moving.
type RenameMove struct {
	OriginalName string  `json:"originalName"`
	NewName      string  `json:"newName"`
	SourceFile   string  `json:"sourceFile"`
	TargetFile   string  `json:"targetFile"`
	Similarity   float64 `json:"similarity"`
	Confidence   float64 `json:"confidence"`
}

// FragmentRef names one member of a split or merge group.
type FragmentRef struct {
	Name string `json:"name"`
	File string `json:"file"`
}

// CrossFileSplit records one function distributed over several
// fragments, possibly across files.
type CrossFileSplit struct {
	SourceFunction     string        `json:"sourceFunction"`
	SourceFile         string        `json:"sourceFile"`
	Fragments          []FragmentRef `json:"fragments"`
	CombinedSimilarity float64       `json:"combinedSimilarity"`
	Confidence         float64       `json:"confidence"`
}

// CrossFileMerge records several functions collapsed into one.
type CrossFileMerge struct {
	Sources            []FragmentRef `json:"sources"`
	MergedFunction     string        `json:"mergedFunction"`
	TargetFile         string        `json:"targetFile"`
	CombinedSimilarity float64       `json:"combinedSimilarity"`
	Confidence         float64       `json:"confidence"`
}

// FunctionRef names a function left over after every phase.
type FunctionRef struct {
	Name string `json:"name"`
	File string `json:"file"`
	Line int    `json:"line"`
}

// FileStats summarizes what happened to one file.
type FileStats struct {
	TotalFunctions int `json:"totalFunctions"`
	MovedOut       int `json:"movedOut"`
	MovedIn        int `json:"movedIn"`
	Renamed        int `json:"renamed"`
	Added          int `json:"added"`
	Deleted        int `json:"deleted"`
	NetChange      int `json:"netChange"`
}

// SymbolMigration aggregates the moves between one ordered file pair.
type SymbolMigration struct {
	FromFile string   `json:"fromFile"`
	ToFile   string   `json:"toFile"`
	Symbols  []string `json:"symbols"`
	Count    int      `json:"count"`
}

// OverallStats summarizes a tracking run.
type OverallStats struct {
	TotalFiles        int     `json:"totalFiles"`
	TotalFunctions    int     `json:"totalFunctions"`
	TotalMoves        int     `json:"totalMoves"`
	TotalRenameMoves  int     `json:"totalRenameMoves"`
	TotalSplits       int     `json:"totalSplits"`
	TotalMerges       int     `json:"totalMerges"`
	MovePercentage    float64 `json:"movePercentage"`
	AverageConfidence float64 `json:"averageConfidence"`
}

// Result is the codebase-level report of a tracking run.
type Result struct {
	FileResults      map[string]*engine.MatchResult `json:"fileResults"`
	MovedFunctions   []FunctionMove                 `json:"movedFunctions"`
	RenamedAndMoved  []RenameMove                   `json:"renamedAndMoved"`
	CrossFileSplits  []CrossFileSplit               `json:"crossFileSplits"`
	CrossFileMerges  []CrossFileMerge               `json:"crossFileMerges"`
	AddedFunctions   []FunctionRef                  `json:"addedFunctions"`
	DeletedFunctions []FunctionRef                  `json:"deletedFunctions"`
	FileStatistics   map[string]*FileStats          `json:"fileStatistics"`
	Migrations       []SymbolMigration              `json:"migrations"`
	Overall          OverallStats                   `json:"overall"`
}

// entry is one unmatched function still in play, tagged with its file.
type entry struct {
	file string
	fn   *ast.Function
}

// Tracker runs the cross-file state machine. A Tracker is safe to reuse
// across runs; it holds no per-run state.
type Tracker struct {
	cfg        *config.Config
	log        *logging.Logger
	engine     *engine.Engine
	scorer     *scorer.Scorer
	retry      *assign.Solver
	classifier *classify.Classifier
	index      SymbolIndex
}

// New creates a tracker. Returns an error when the configuration is
// invalid.
func New(cfg *config.Config, log *logging.Logger) (*Tracker, error) {
	eng, err := engine.New(cfg, log)
	if err != nil {
		return nil, err
	}
	// The retry solver only recovers one-to-one moves; clustering runs as
	// its own phase afterwards.
	retryMatching := cfg.Matching
	retryMatching.EnableManyToMany = false
	return &Tracker{
		cfg:        cfg,
		log:        log,
		engine:     eng,
		scorer:     eng.Scorer(),
		retry:      assign.NewSolver(retryMatching, cfg.CrossFile),
		classifier: classify.New(cfg.Matching.RenameThreshold),
	}, nil
}

// SetSymbolIndex attaches a symbol index used to raise move confidence
// when the destination file already references the symbol.
func (t *Tracker) SetSymbolIndex(index SymbolIndex) {
	t.index = index
}

// Track compares two file-to-functions mappings and reports per-file
// results plus the cross-file moves, rename-moves, splits, and merges
// between them.
func (t *Tracker) Track(ctx context.Context, source, target map[string][]*ast.Function) (*Result, error) {
	t.logPhase(PhaseInit, map[string]interface{}{
		"sourceFiles": len(source),
		"targetFiles": len(target),
	})
	result := &Result{
		FileResults:    make(map[string]*engine.MatchResult),
		FileStatistics: make(map[string]*FileStats),
	}

	srcResidue, tgtResidue, err := t.sameFileMatch(ctx, source, target, result)
	if err != nil {
		return nil, err
	}

	srcResidue, tgtResidue, err = t.crossFileRetry(ctx, srcResidue, tgtResidue, result)
	if err != nil {
		return nil, err
	}

	srcResidue, tgtResidue = t.clusterSplitMerge(srcResidue, tgtResidue, result)

	t.aggregate(source, target, srcResidue, tgtResidue, result)

	t.logPhase(PhaseDone, map[string]interface{}{
		"moves":   result.Overall.TotalMoves,
		"renames": result.Overall.TotalRenameMoves,
		"splits":  result.Overall.TotalSplits,
		"merges":  result.Overall.TotalMerges,
	})
	return result, nil
}

// sameFileMatch compares each file against its own previous version and
// collects the functions no in-file assignment could account for.
func (t *Tracker) sameFileMatch(ctx context.Context, source, target map[string][]*ast.Function, result *Result) ([]entry, []entry, error) {
	t.logPhase(PhaseSameFileMatch, nil)

	var srcResidue, tgtResidue []entry
	for _, file := range sortedFiles(source, target) {
		srcFns := source[file]
		tgtFns := target[file]

		if len(srcFns) == 0 {
			for _, fn := range tgtFns {
				tgtResidue = append(tgtResidue, entry{file: file, fn: fn})
			}
			continue
		}
		if len(tgtFns) == 0 {
			for _, fn := range srcFns {
				srcResidue = append(srcResidue, entry{file: file, fn: fn})
			}
			continue
		}

		solved, err := t.engine.Match(ctx, srcFns, tgtFns)
		if err != nil {
			return nil, nil, err
		}
		result.FileResults[file] = t.fileResult(solved, srcFns, tgtFns)

		for _, i := range solved.UnmatchedSource {
			srcResidue = append(srcResidue, entry{file: file, fn: srcFns[i]})
		}
		for _, j := range solved.UnmatchedTarget {
			tgtResidue = append(tgtResidue, entry{file: file, fn: tgtFns[j]})
		}
	}
	return srcResidue, tgtResidue, nil
}

// crossFileRetry re-runs the solver over the global residue. The scorer
// applies the raised cross-file threshold itself, so same-file matches
// stay preferred; the reported similarity remains unpenalized.
func (t *Tracker) crossFileRetry(ctx context.Context, srcResidue, tgtResidue []entry, result *Result) ([]entry, []entry, error) {
	t.logPhase(PhaseCrossFileRetry, map[string]interface{}{
		"sourceResidue": len(srcResidue),
		"targetResidue": len(tgtResidue),
	})
	if len(srcResidue) == 0 || len(tgtResidue) == 0 {
		return srcResidue, tgtResidue, nil
	}

	n, m := len(srcResidue), len(tgtResidue)
	gated := make([][]float64, n)
	for i, src := range srcResidue {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		gated[i] = make([]float64, m)
		for j, tgt := range tgtResidue {
			if src.file == tgt.file {
				continue // already tried in sameFileMatch
			}
			if match := t.scorer.Match(src.fn, tgt.fn); match.Accepted {
				gated[i][j] = match.Similarity
			}
		}
	}

	solved := t.retry.Solve(gated, gated)

	consumedSrc := make(map[int]bool, n)
	consumedTgt := make(map[int]bool, m)
	for _, a := range solved.Assignments {
		src, tgt := srcResidue[a.SourceIndex], tgtResidue[a.TargetIndex]
		consumedSrc[a.SourceIndex] = true
		consumedTgt[a.TargetIndex] = true
		if src.fn.Name() == tgt.fn.Name() {
			result.MovedFunctions = append(result.MovedFunctions, FunctionMove{
				Name:       src.fn.Name(),
				SourceFile: src.file,
				TargetFile: tgt.file,
				Similarity: a.Similarity,
				Confidence: t.moveConfidence(src, tgt, a.Similarity),
				MoveType:   classifyMoveType(a.Similarity),
			})
		} else {
			result.RenamedAndMoved = append(result.RenamedAndMoved, RenameMove{
				OriginalName: src.fn.Name(),
				NewName:      tgt.fn.Name(),
				SourceFile:   src.file,
				TargetFile:   tgt.file,
				Similarity:   a.Similarity,
				Confidence:   t.renameMoveConfidence(src, tgt, a.Similarity),
			})
		}
	}

	return keepEntries(srcResidue, consumedSrc), keepEntries(tgtResidue, consumedTgt), nil
}

// clusterSplitMerge recovers split and merge relationships from the
// residue that survived both one-to-one phases. Candidates are admitted
// either on raw similarity or on a name that looks like a fragment of the
// original; each function joins at most one group.
func (t *Tracker) clusterSplitMerge(srcResidue, tgtResidue []entry, result *Result) ([]entry, []entry) {
	t.logPhase(PhaseClusterSplitMerge, map[string]interface{}{
		"sourceResidue": len(srcResidue),
		"targetResidue": len(tgtResidue),
	})

	consumedSrc := make(map[int]bool, len(srcResidue))
	consumedTgt := make(map[int]bool, len(tgtResidue))

	for i, src := range srcResidue {
		group := t.fragmentCandidates(src, tgtResidue, consumedTgt, classify.IsPotentialSplitName)
		if len(group) < 2 {
			continue
		}
		combined := 0.0
		fragments := make([]FragmentRef, len(group))
		names := make([]string, len(group))
		files := make([]string, len(group))
		for k, c := range group {
			tgt := tgtResidue[c.index]
			fragments[k] = FragmentRef{Name: tgt.fn.Name(), File: tgt.file}
			names[k] = tgt.fn.Name()
			files[k] = tgt.file
			combined += c.similarity
			consumedTgt[c.index] = true
		}
		combined /= float64(len(group))
		consumedSrc[i] = true

		result.CrossFileSplits = append(result.CrossFileSplits, CrossFileSplit{
			SourceFunction:     src.fn.Name(),
			SourceFile:         src.file,
			Fragments:          fragments,
			CombinedSimilarity: combined,
			Confidence: groupConfidence(combined, src.fn.Name(), src.file, names, files,
				classify.IsPotentialSplitName),
		})
	}

	for j, tgt := range tgtResidue {
		if consumedTgt[j] {
			continue
		}
		group := t.fragmentCandidates(tgt, srcResidue, consumedSrc,
			func(mergedName, sourceName string) bool {
				return classify.IsPotentialMergeName(sourceName, mergedName)
			})
		if len(group) < 2 {
			continue
		}
		combined := 0.0
		sources := make([]FragmentRef, len(group))
		names := make([]string, len(group))
		files := make([]string, len(group))
		for k, c := range group {
			src := srcResidue[c.index]
			sources[k] = FragmentRef{Name: src.fn.Name(), File: src.file}
			names[k] = src.fn.Name()
			files[k] = src.file
			combined += c.similarity
			consumedSrc[c.index] = true
		}
		combined /= float64(len(group))
		consumedTgt[j] = true

		result.CrossFileMerges = append(result.CrossFileMerges, CrossFileMerge{
			Sources:            sources,
			MergedFunction:     tgt.fn.Name(),
			TargetFile:         tgt.file,
			CombinedSimilarity: combined,
			Confidence: groupConfidence(combined, tgt.fn.Name(), tgt.file, names, files,
				func(mergedName, sourceName string) bool {
					return classify.IsPotentialMergeName(sourceName, mergedName)
				}),
		})
	}

	return keepEntries(srcResidue, consumedSrc), keepEntries(tgtResidue, consumedTgt)
}

// candidate pairs a residue index with its raw similarity to the anchor.
type candidate struct {
	index      int
	similarity float64
}

// fragmentCandidates collects the still-free entries that plausibly carry
// part of the anchor function, best first.
func (t *Tracker) fragmentCandidates(anchor entry, pool []entry, consumed map[int]bool, nameRelated func(string, string) bool) []candidate {
	var out []candidate
	for idx, e := range pool {
		if consumed[idx] {
			continue
		}
		sim := t.scorer.Score(anchor.fn, e.fn).Overall
		if sim >= splitCandidateThreshold || nameRelated(anchor.fn.Name(), e.fn.Name()) {
			out = append(out, candidate{index: idx, similarity: sim})
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].similarity > out[b].similarity })
	if len(out) > maxClusterFanout {
		out = out[:maxClusterFanout]
	}
	return out
}

func (t *Tracker) moveConfidence(src, tgt entry, similarity float64) float64 {
	confidence := similarity
	if src.fn.Name() == tgt.fn.Name() {
		confidence += 0.1
	}
	if classify.AreFilesRelated(src.file, tgt.file) {
		confidence += 0.05
	}
	if t.index != nil && t.index.IsReferenced(src.fn.Name(), tgt.file) {
		confidence += 0.1
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

func (t *Tracker) renameMoveConfidence(src, tgt entry, similarity float64) float64 {
	// A rename on top of a move carries less certainty than the move
	// alone.
	confidence := similarity * 0.8
	if t.scorer.BodySimilarity(src.fn, tgt.fn) >= 0.9 {
		confidence += 0.15
	}
	if paramCountRatio(src.fn, tgt.fn) >= 0.9 {
		confidence += 0.1
	}
	if classify.AreFilesRelated(src.file, tgt.file) {
		confidence += 0.05
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// groupConfidence starts from the structural base and raises it when the
// member names look like fragments of the anchor or the files are
// related.
func groupConfidence(combined float64, anchorName, anchorFile string, names, files []string, nameRelated func(string, string) bool) float64 {
	confidence := combined * 0.6
	relatedNames := 0
	for _, name := range names {
		if nameRelated(anchorName, name) {
			relatedNames++
		}
	}
	relatedFiles := 0
	for _, file := range files {
		if classify.AreFilesRelated(anchorFile, file) {
			relatedFiles++
		}
	}
	confidence += float64(relatedNames) / float64(len(names)) * 0.2
	confidence += float64(relatedFiles) / float64(len(files)) * 0.1
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

func classifyMoveType(similarity float64) MoveType {
	switch {
	case similarity >= 0.95:
		return SimpleMove
	case similarity >= 0.85:
		return MoveWithModification
	case similarity >= 0.75:
		return RefactoringMove
	default:
		return ComplexMove
	}
}

// fileResult classifies the in-file assignments of one file into a
// MatchResult. Unmatched functions are left out; later phases decide
// what became of them.
func (t *Tracker) fileResult(solved *assign.Result, srcFns, tgtFns []*ast.Function) *engine.MatchResult {
	res := &engine.MatchResult{
		Mapping: make(map[string]string, len(solved.Assignments)),
		Statistics: engine.MatchStatistics{
			SourceFunctions: len(srcFns),
			TargetFunctions: len(tgtFns),
			MatchedPairs:    solved.Stats.MatchedPairs,
			UnmatchedSource: solved.Stats.UnmatchedSource,
			UnmatchedTarget: solved.Stats.UnmatchedTarget,
			SplitCount:      solved.Stats.SplitCount,
			MergeCount:      solved.Stats.MergeCount,
			ComplexCount:    solved.Stats.ComplexCount,
			AverageMatched:  solved.AverageSimilarity,
		},
	}
	matchedSim := 0.0
	for _, a := range solved.Assignments {
		src, tgt := srcFns[a.SourceIndex], tgtFns[a.TargetIndex]
		res.Mapping[src.Hash] = tgt.Hash
		matchedSim += a.Similarity
		changeType := t.classifier.Classify(src, tgt, a.Similarity)
		if changeType == classify.ChangeNone {
			continue
		}
		res.Changes = append(res.Changes, engine.Change{
			Type:       changeType,
			Source:     engine.ElementFor(src),
			Target:     engine.ElementFor(tgt),
			Details:    engine.ChangeDetail{SimilarityScore: a.Similarity},
			Confidence: t.classifier.Confidence(changeType, a.Similarity),
		})
	}
	for _, mm := range solved.ManyToMany {
		res.Changes = append(res.Changes, engine.GroupChange(mm, srcFns, tgtFns))
	}

	if denom := max(len(srcFns), len(tgtFns)); denom > 0 {
		res.Similarity = math.Min(matchedSim/float64(denom), 1.0)
	}
	return res
}

func (t *Tracker) logPhase(phase Phase, fields map[string]interface{}) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["phase"] = string(phase)
	t.log.Debug("tracking phase", fields)
}

func keepEntries(entries []entry, consumed map[int]bool) []entry {
	var out []entry
	for i, e := range entries {
		if !consumed[i] {
			out = append(out, e)
		}
	}
	return out
}

func paramCountRatio(a, b *ast.Function) float64 {
	na, nb := len(a.Signature.Parameters), len(b.Signature.Parameters)
	if na == 0 && nb == 0 {
		return 1.0
	}
	lo, hi := na, nb
	if lo > hi {
		lo, hi = hi, lo
	}
	return float64(lo) / float64(hi)
}

func sortedFiles(source, target map[string][]*ast.Function) []string {
	seen := make(map[string]bool, len(source)+len(target))
	var files []string
	for f := range source {
		if !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
	}
	for f := range target {
		if !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
	}
	sort.Strings(files)
	return files
}
